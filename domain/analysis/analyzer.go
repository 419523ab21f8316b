// Package analysis summarizes review history for reporting. The analyzer is
// a read-only aggregator; its snapshots are advisory and always recomputable
// from the underlying records.
package analysis

import (
	"time"

	"studypace/domain/config"
	"studypace/domain/core/entities"
	"studypace/domain/memory"
	pkgerrors "studypace/pkg/errors"
)

// Trend classifies the direction of recent performance
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendStable    Trend = "stable"
	TrendDeclining Trend = "declining"
)

// slopeEpsilon separates a genuine trend from noise in the regression slope
const slopeEpsilon = 0.01

// Snapshot is a windowed, derived view of a learner's performance.
// Never persisted as a source of truth.
type Snapshot struct {
	ReviewCount          int        `json:"review_count"`
	AverageScore         float64    `json:"average_score"`
	AverageStudyMinutes  float64    `json:"average_study_minutes"`
	CompletionRate       float64    `json:"completion_rate"`
	Trend                Trend      `json:"trend"`
	TrendSlope           float64    `json:"trend_slope"`
	CurrentHalfLifeDays  float64    `json:"current_half_life_days"`
	ProjectedMasteryDate *time.Time `json:"projected_mastery_date,omitempty"`
	ComputedAt           time.Time  `json:"computed_at"`
}

// Analyzer computes performance snapshots and applies profile observations.
// It is stateless and safe for concurrent use.
type Analyzer struct {
	cfg   *config.DomainConfig
	model *memory.Model
}

// NewAnalyzer creates a performance analyzer
func NewAnalyzer(cfg *config.DomainConfig, model *memory.Model) *Analyzer {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	return &Analyzer{cfg: cfg, model: model}
}

// Snapshot computes a windowed summary over the given history. Records must
// be ordered by recording time ascending. The memory state is the current
// state for the unit of interest; a zero state omits the mastery projection.
func (a *Analyzer) Snapshot(
	records []*entities.ReviewRecord,
	entries []*entities.ScheduleEntry,
	state memory.State,
	now time.Time,
) *Snapshot {
	snap := &Snapshot{
		ReviewCount: len(records),
		Trend:       TrendStable,
		ComputedAt:  now,
	}

	if len(records) > 0 {
		var scoreSum, minuteSum float64
		for _, r := range records {
			scoreSum += r.Score().Value()
			minuteSum += r.ElapsedMinutes()
		}
		snap.AverageScore = scoreSum / float64(len(records))
		snap.AverageStudyMinutes = minuteSum / float64(len(records))
		snap.TrendSlope = a.trendSlope(records)
		snap.Trend = classifyTrend(snap.TrendSlope)
	}

	snap.CompletionRate = completionRate(entries)

	if state.HalfLifeDays > 0 {
		snap.CurrentHalfLifeDays = state.HalfLifeDays
		horizon := a.model.MasteryHorizonDays(state, a.cfg.MasteryThreshold)
		mastery := state.LastReviewedAt.Add(time.Duration(horizon * 24 * float64(time.Hour)))
		snap.ProjectedMasteryDate = &mastery
	}

	return snap
}

// ApplyObservation folds one completed session into the learner profile.
// This is the only path that mutates profile parameters.
func (a *Analyzer) ApplyObservation(profile *entities.LearnerProfile, score, elapsedMinutes float64, wordCount int) error {
	if profile == nil {
		return pkgerrors.NewValidationError("profile cannot be nil")
	}

	if err := profile.ObserveRecall(score, a.cfg); err != nil {
		return err
	}

	if wordCount > 0 && elapsedMinutes > 0 {
		if err := profile.ObserveReadingSpeed(float64(wordCount)/elapsedMinutes, a.cfg); err != nil {
			return err
		}
	}

	// Sustained signal moves the load ceiling a step at a time
	if score > a.cfg.StrongScoreThreshold {
		profile.RaiseLoadLimit(a.cfg)
	} else if score < a.cfg.FollowUpThreshold {
		profile.LowerLoadLimit(a.cfg)
	}

	return nil
}

// trendSlope fits a least-squares line over the most recent scores
func (a *Analyzer) trendSlope(records []*entities.ReviewRecord) float64 {
	window := a.cfg.TrendWindowSize
	if len(records) < 3 {
		return 0
	}
	if len(records) > window {
		records = records[len(records)-window:]
	}

	n := float64(len(records))
	var sumX, sumY, sumXY, sumXX float64
	for i, r := range records {
		x := float64(i)
		y := r.Score().Value()
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}

// classifyTrend maps the slope's sign and magnitude to a trend
func classifyTrend(slope float64) Trend {
	switch {
	case slope > slopeEpsilon:
		return TrendImproving
	case slope < -slopeEpsilon:
		return TrendDeclining
	default:
		return TrendStable
	}
}

func completionRate(entries []*entities.ScheduleEntry) float64 {
	var closed, completed int
	for _, e := range entries {
		switch e.Status() {
		case entities.StatusCompleted:
			closed++
			completed++
		case entities.StatusSkipped:
			closed++
		}
	}
	if closed == 0 {
		return 0
	}
	return float64(completed) / float64(closed)
}
