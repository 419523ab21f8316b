package entities

import (
	"time"

	"studypace/domain/config"
	"studypace/domain/core/valueobjects"
	pkgerrors "studypace/pkg/errors"
)

// LearnerProfile holds the per-learner parameters that drive scheduling.
// Retention rate and reading speed are smoothed observations; the cognitive
// load limit is a ceiling the schedule builder must respect.
type LearnerProfile struct {
	learnerID            valueobjects.LearnerID
	retentionRate        float64
	cognitiveLoadLimit   float64
	difficultyPreference float64
	readingSpeed         float64
	updatedAt            time.Time
	version              int
}

// NewLearnerProfile creates a profile with neutral defaults
func NewLearnerProfile(learnerID valueobjects.LearnerID) (*LearnerProfile, error) {
	if learnerID.IsZero() {
		return nil, pkgerrors.NewValidationError("learnerID cannot be empty")
	}

	return &LearnerProfile{
		learnerID:            learnerID,
		retentionRate:        0.5,
		cognitiveLoadLimit:   config.DefaultDomainConfig().DefaultLoadLimit,
		difficultyPreference: 0.5,
		readingSpeed:         200,
		updatedAt:            time.Now(),
		version:              1,
	}, nil
}

// ReconstructLearnerProfile reconstructs a profile from repository data
func ReconstructLearnerProfile(
	learnerID valueobjects.LearnerID,
	retentionRate, cognitiveLoadLimit, difficultyPreference, readingSpeed float64,
	updatedAt time.Time,
	version int,
) *LearnerProfile {
	return &LearnerProfile{
		learnerID:            learnerID,
		retentionRate:        retentionRate,
		cognitiveLoadLimit:   cognitiveLoadLimit,
		difficultyPreference: difficultyPreference,
		readingSpeed:         readingSpeed,
		updatedAt:            updatedAt,
		version:              version,
	}
}

// LearnerID returns the owning learner's ID
func (p *LearnerProfile) LearnerID() valueobjects.LearnerID {
	return p.learnerID
}

// RetentionRate returns the smoothed observed recall rate
func (p *LearnerProfile) RetentionRate() float64 {
	return p.retentionRate
}

// CognitiveLoadLimit returns the per-day load ceiling
func (p *LearnerProfile) CognitiveLoadLimit() float64 {
	return p.cognitiveLoadLimit
}

// DifficultyPreference returns the learner's preferred difficulty
func (p *LearnerProfile) DifficultyPreference() float64 {
	return p.difficultyPreference
}

// ReadingSpeed returns the learner's reading speed in words per minute
func (p *LearnerProfile) ReadingSpeed() float64 {
	return p.readingSpeed
}

// UpdatedAt returns when the profile was last updated
func (p *LearnerProfile) UpdatedAt() time.Time {
	return p.updatedAt
}

// Version returns the profile's version for optimistic locking
func (p *LearnerProfile) Version() int {
	return p.version
}

// ObserveRecall folds an observed score into the retention rate using
// exponential smoothing
func (p *LearnerProfile) ObserveRecall(score float64, cfg *config.DomainConfig) error {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	if score < 0 || score > 1 {
		return pkgerrors.NewValidationError("score must be in [0, 1]")
	}

	alpha := cfg.RetentionSmoothing
	p.retentionRate = alpha*p.retentionRate + (1-alpha)*score
	p.touch()
	return nil
}

// ObserveReadingSpeed folds an observed reading speed into the smoothed value
func (p *LearnerProfile) ObserveReadingSpeed(wordsPerMinute float64, cfg *config.DomainConfig) error {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	if wordsPerMinute <= 0 {
		return pkgerrors.NewValidationError("reading speed must be positive")
	}

	alpha := cfg.ReadingSpeedSmoothing
	p.readingSpeed = alpha*p.readingSpeed + (1-alpha)*wordsPerMinute
	p.touch()
	return nil
}

// RaiseLoadLimit widens the load ceiling after sustained strong performance
func (p *LearnerProfile) RaiseLoadLimit(cfg *config.DomainConfig) {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}

	p.cognitiveLoadLimit *= 1.1
	if p.cognitiveLoadLimit > cfg.MaxLoadLimit {
		p.cognitiveLoadLimit = cfg.MaxLoadLimit
	}
	p.touch()
}

// LowerLoadLimit narrows the load ceiling after sustained weak performance
func (p *LearnerProfile) LowerLoadLimit(cfg *config.DomainConfig) {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}

	p.cognitiveLoadLimit *= 0.9
	if p.cognitiveLoadLimit < cfg.MinLoadLimit {
		p.cognitiveLoadLimit = cfg.MinLoadLimit
	}
	p.touch()
}

// SetDifficultyPreference updates the preferred difficulty with validation
func (p *LearnerProfile) SetDifficultyPreference(pref float64) error {
	if pref < 0 || pref > 1 {
		return pkgerrors.NewValidationError("difficulty preference must be in [0, 1]")
	}
	p.difficultyPreference = pref
	p.touch()
	return nil
}

func (p *LearnerProfile) touch() {
	p.updatedAt = time.Now()
	p.version++
}
