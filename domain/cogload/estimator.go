// Package cogload estimates the mental cost of candidate study sessions.
package cogload

import (
	"studypace/domain/config"
	pkgerrors "studypace/pkg/errors"
)

// Estimator scores the cognitive load of candidate sessions.
// It is stateless and safe for concurrent use.
type Estimator struct {
	cfg *config.DomainConfig
}

// NewEstimator creates a load estimator with the given configuration
func NewEstimator(cfg *config.DomainConfig) *Estimator {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	return &Estimator{cfg: cfg}
}

// Estimate returns the cognitive load score of a candidate session.
//
// Load scales with duration times difficulty, normalized against the
// learner's load limit, then inflated by recent cumulative load over the
// trailing day. The result can exceed 1.0 to signal overload; admission
// against the daily ceiling is the schedule builder's call.
func (e *Estimator) Estimate(durationMinutes int, difficulty, loadLimit, recentLoad float64) (float64, error) {
	if durationMinutes <= 0 {
		return 0, pkgerrors.NewValidationError("duration must be positive")
	}
	if difficulty < 0 || difficulty > 1 {
		return 0, pkgerrors.NewValidationError("difficulty must be in [0, 1]")
	}
	if loadLimit <= 0 {
		return 0, pkgerrors.NewValidationError("load limit must be positive")
	}
	if recentLoad < 0 {
		return 0, pkgerrors.NewValidationError("recent load cannot be negative")
	}

	hours := float64(durationMinutes) / 60
	base := hours * difficulty / loadLimit
	fatigue := 1 + e.cfg.RecentLoadFactor*recentLoad

	return base * fatigue, nil
}

// Admissible reports whether adding a candidate session keeps the day's
// cumulative load at or under the ceiling. Loads from Estimate are already
// normalized against the learner's limit, so a full day is 1.0.
func (e *Estimator) Admissible(dayLoad, candidateLoad float64) bool {
	return dayLoad+candidateLoad <= 1
}
