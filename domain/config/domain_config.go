package config

import "time"

// DomainConfig holds all configurable business rules and constraints
type DomainConfig struct {
	// Memory model parameters
	InitialHalfLifeDays float64
	MinHalfLifeDays     float64
	MaxHalfLifeDays     float64
	TargetRecall        float64

	// Half-life regression feature weights
	WeightDifficulty float64
	WeightSuccesses  float64
	WeightFailures   float64
	WeightElapsed    float64
	WeightLag        float64

	// Review interval bounds, in days
	MinIntervalDays int
	MaxIntervalDays int

	// Adaptation thresholds
	FollowUpThreshold    float64
	StrongScoreThreshold float64
	StrongIntervalCapDays int
	MasteryThreshold     float64

	// Cognitive load parameters
	DefaultLoadLimit float64
	MinLoadLimit     float64
	MaxLoadLimit     float64
	RecentLoadFactor float64

	// Schedule constraints
	MinDailyStudyMinutes int
	MaxDailyStudyMinutes int
	MinUnitMinutes       int
	MaxUnitMinutes       int
	GracePeriod          time.Duration

	// Performance analysis
	RegressionWindowSize int
	TrendWindowSize      int

	// Profile smoothing
	RetentionSmoothing    float64
	ReadingSpeedSmoothing float64

	// Feature flags
	EnableAdaptation       bool
	EnableMissedEntrySweep bool
}

// DefaultDomainConfig returns the default domain configuration
func DefaultDomainConfig() *DomainConfig {
	return &DomainConfig{
		// Memory model parameters
		InitialHalfLifeDays: 1.0,
		MinHalfLifeDays:     0.5,
		MaxHalfLifeDays:     30.0,
		TargetRecall:        0.85,

		// Half-life regression feature weights
		WeightDifficulty: -0.05,
		WeightSuccesses:  0.15,
		WeightFailures:   -0.077,
		WeightElapsed:    0.05,
		WeightLag:        0.112,

		// Review interval bounds
		MinIntervalDays: 1,
		MaxIntervalDays: 30,

		// Adaptation thresholds
		FollowUpThreshold:     0.6,
		StrongScoreThreshold:  0.9,
		StrongIntervalCapDays: 14,
		MasteryThreshold:      0.9,

		// Cognitive load parameters
		DefaultLoadLimit: 1.0,
		MinLoadLimit:     0.5,
		MaxLoadLimit:     1.5,
		RecentLoadFactor: 0.1,

		// Schedule constraints
		MinDailyStudyMinutes: 15,
		MaxDailyStudyMinutes: 480,
		MinUnitMinutes:       10,
		MaxUnitMinutes:       60,
		GracePeriod:          24 * time.Hour,

		// Performance analysis
		RegressionWindowSize: 20,
		TrendWindowSize:      10,

		// Profile smoothing
		RetentionSmoothing:    0.7,
		ReadingSpeedSmoothing: 0.7,

		// Feature flags
		EnableAdaptation:       true,
		EnableMissedEntrySweep: true,
	}
}

// ProductionDomainConfig returns production-specific configuration
func ProductionDomainConfig() *DomainConfig {
	config := DefaultDomainConfig()

	// Tighter sweep window in production
	config.GracePeriod = 12 * time.Hour

	return config
}

// DevelopmentDomainConfig returns development-specific configuration
func DevelopmentDomainConfig() *DomainConfig {
	config := DefaultDomainConfig()

	// Longer grace period so local data does not get swept mid-testing
	config.GracePeriod = 72 * time.Hour
	config.EnableMissedEntrySweep = false

	return config
}

// LoadDomainConfig loads domain configuration based on environment
func LoadDomainConfig(environment string) *DomainConfig {
	switch environment {
	case "production":
		return ProductionDomainConfig()
	case "development":
		return DevelopmentDomainConfig()
	default:
		return DefaultDomainConfig()
	}
}

// Validate checks if the configuration is valid
func (c *DomainConfig) Validate() error {
	if c.MinHalfLifeDays <= 0 || c.MaxHalfLifeDays < c.MinHalfLifeDays {
		return ErrInvalidHalfLifeBounds
	}
	if c.TargetRecall <= 0 || c.TargetRecall >= 1 {
		return ErrInvalidTargetRecall
	}
	if c.MinIntervalDays < 1 || c.MaxIntervalDays < c.MinIntervalDays {
		return ErrInvalidIntervalBounds
	}
	if c.FollowUpThreshold >= c.StrongScoreThreshold {
		return ErrInvalidThresholds
	}
	return nil
}
