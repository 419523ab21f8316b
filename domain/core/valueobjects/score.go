package valueobjects

import (
	"fmt"

	"studypace/domain/config"
)

// Score is a value object for a normalized performance score in [0, 1]
type Score struct {
	value float64
}

// NewScore creates a score with validation
func NewScore(value float64) (Score, error) {
	if value < 0 || value > 1 {
		return Score{}, fmt.Errorf("score must be in [0, 1], got %g", value)
	}
	return Score{value: value}, nil
}

// Value returns the raw score
func (s Score) Value() float64 {
	return s.value
}

// IsWeak reports whether the score falls below the follow-up threshold
func (s Score) IsWeak(cfg *config.DomainConfig) bool {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	return s.value < cfg.FollowUpThreshold
}

// IsStrong reports whether the score exceeds the strong-recall threshold
func (s Score) IsStrong(cfg *config.DomainConfig) bool {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	return s.value > cfg.StrongScoreThreshold
}

// Equals checks if two scores are equal
func (s Score) Equals(other Score) bool {
	return s.value == other.value
}
