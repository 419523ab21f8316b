// Package memory implements the half-life regression model that tracks how
// quickly a learner forgets each unit. Recall probability decays as
// 2^(-t/h) where h is the unit's current half-life in days; each observed
// review nudges log2(h) along a small set of weighted features.
package memory

import (
	"math"
	"time"

	"studypace/domain/config"
	pkgerrors "studypace/pkg/errors"
)

// PassThreshold separates a successful review from a failed one when
// updating the success and failure counters.
const PassThreshold = 0.6

// State is the per-(learner, unit) memory state the model evolves.
type State struct {
	HalfLifeDays   float64
	Successes      int
	Failures       int
	LastReviewedAt time.Time
}

// Model computes recall predictions and half-life updates.
// It is stateless and safe for concurrent use.
type Model struct {
	cfg *config.DomainConfig
}

// NewModel creates a memory model with the given configuration
func NewModel(cfg *config.DomainConfig) *Model {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	return &Model{cfg: cfg}
}

// Seed returns the initial state for a unit with no review history.
// Stronger retainers and easier material start with longer half-lives.
func (m *Model) Seed(retentionRate, difficulty float64, at time.Time) State {
	h := m.cfg.InitialHalfLifeDays * (0.5 + retentionRate) * (1.5 - difficulty)
	return State{
		HalfLifeDays:   m.clampHalfLife(h),
		LastReviewedAt: at,
	}
}

// PredictRecall returns the probability the learner still recalls the unit
// at the given time
func (m *Model) PredictRecall(state State, at time.Time) float64 {
	if state.HalfLifeDays <= 0 {
		return 0
	}
	elapsed := at.Sub(state.LastReviewedAt).Hours() / 24
	if elapsed <= 0 {
		return 1
	}
	return math.Exp2(-elapsed / state.HalfLifeDays)
}

// Update folds an observed review into the state and returns the new state.
// Higher observed scores never yield a shorter half-life than lower ones.
// The review must be timestamped strictly after the last one; a zero or
// negative elapsed time is rejected rather than folded.
func (m *Model) Update(state State, difficulty, observedScore float64, at time.Time) (State, error) {
	if observedScore < 0 || observedScore > 1 {
		return State{}, pkgerrors.NewValidationError("observed score must be in [0, 1]")
	}
	if difficulty < 0 || difficulty > 1 {
		return State{}, pkgerrors.NewValidationError("difficulty must be in [0, 1]")
	}
	if state.HalfLifeDays <= 0 {
		return State{}, pkgerrors.NewValidationError("state half-life must be positive")
	}
	if !at.After(state.LastReviewedAt) {
		return State{}, pkgerrors.NewValidationError("review time must be after the last review")
	}

	successes := state.Successes
	failures := state.Failures
	if observedScore >= PassThreshold {
		successes++
	} else {
		failures++
	}

	elapsedDays := at.Sub(state.LastReviewedAt).Hours() / 24
	// Lag is the elapsed time relative to the current half-life. Reviews
	// that arrive well past the half-life carry more signal.
	lagRatio := elapsedDays / state.HalfLifeDays

	delta := m.cfg.WeightDifficulty*difficulty +
		m.cfg.WeightSuccesses*float64(successes) +
		m.cfg.WeightFailures*float64(failures) +
		m.cfg.WeightElapsed*math.Log1p(elapsedDays) +
		m.cfg.WeightLag*math.Log1p(lagRatio)

	// The score multiplier is continuous and increasing in the observed
	// score, which keeps the update monotone.
	multiplier := 0.6 + 0.9*observedScore
	newHalfLife := math.Exp2(math.Log2(state.HalfLifeDays)+delta) * multiplier

	return State{
		HalfLifeDays:   m.clampHalfLife(newHalfLife),
		Successes:      successes,
		Failures:       failures,
		LastReviewedAt: at,
	}, nil
}

// OptimalIntervalDays returns the review interval, in whole days, at which
// predicted recall decays to the configured target
func (m *Model) OptimalIntervalDays(state State) int {
	days := -state.HalfLifeDays * math.Log2(m.cfg.TargetRecall)
	interval := int(math.Round(days))

	if interval < m.cfg.MinIntervalDays {
		return m.cfg.MinIntervalDays
	}
	if interval > m.cfg.MaxIntervalDays {
		return m.cfg.MaxIntervalDays
	}
	return interval
}

// MasteryHorizonDays returns how many days predicted recall stays at or
// above the given threshold without further review. Solves 2^(-t/h) >= p.
func (m *Model) MasteryHorizonDays(state State, threshold float64) float64 {
	if threshold <= 0 || threshold >= 1 {
		return 0
	}
	return -state.HalfLifeDays * math.Log2(threshold)
}

func (m *Model) clampHalfLife(h float64) float64 {
	if h < m.cfg.MinHalfLifeDays {
		return m.cfg.MinHalfLifeDays
	}
	if h > m.cfg.MaxHalfLifeDays {
		return m.cfg.MaxHalfLifeDays
	}
	return h
}
