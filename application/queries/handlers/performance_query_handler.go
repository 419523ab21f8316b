package handlers

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"studypace/application/ports"
	"studypace/application/queries"
	"studypace/domain/analysis"
	"studypace/domain/core/entities"
	"studypace/domain/core/valueobjects"
	"studypace/domain/memory"
	pkgerrors "studypace/pkg/errors"
)

// PerformanceQueryHandler serves the read-only performance views: the
// learning curve and the windowed summary snapshot
type PerformanceQueryHandler struct {
	reviewRepo  ports.ReviewRepository
	entryRepo   ports.EntryRepository
	profileRepo ports.ProfileRepository
	unitRepo    ports.UnitRepository
	analyzer    *analysis.Analyzer
	logger      *zap.Logger
}

// NewPerformanceQueryHandler creates the handler
func NewPerformanceQueryHandler(
	reviewRepo ports.ReviewRepository,
	entryRepo ports.EntryRepository,
	profileRepo ports.ProfileRepository,
	unitRepo ports.UnitRepository,
	analyzer *analysis.Analyzer,
	logger *zap.Logger,
) *PerformanceQueryHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PerformanceQueryHandler{
		reviewRepo:  reviewRepo,
		entryRepo:   entryRepo,
		profileRepo: profileRepo,
		unitRepo:    unitRepo,
		analyzer:    analyzer,
		logger:      logger,
	}
}

// HandleLearningCurve executes the learning curve query for either a single
// unit or a whole material
func (h *PerformanceQueryHandler) HandleLearningCurve(ctx context.Context, q queries.GetLearningCurveQuery) (*queries.LearningCurveResult, error) {
	if err := q.Validate(); err != nil {
		return nil, pkgerrors.NewValidationError(err.Error())
	}

	learnerID, err := valueobjects.NewLearnerID(q.LearnerID)
	if err != nil {
		return nil, pkgerrors.NewValidationError(err.Error())
	}

	if q.UnitID != "" {
		return h.unitCurve(ctx, learnerID, q.UnitID)
	}
	return h.materialCurve(ctx, learnerID, q.MaterialID)
}

func (h *PerformanceQueryHandler) unitCurve(ctx context.Context, learnerID valueobjects.LearnerID, rawUnitID string) (*queries.LearningCurveResult, error) {
	unitID, err := valueobjects.NewUnitIDFromString(rawUnitID)
	if err != nil {
		return nil, pkgerrors.NewValidationError(err.Error())
	}
	if _, err := h.unitRepo.GetByID(ctx, unitID); err != nil {
		return nil, err
	}

	records, err := h.reviewRepo.ListByUnit(ctx, learnerID, unitID)
	if err != nil {
		return nil, err
	}

	result := &queries.LearningCurveResult{UnitID: rawUnitID}
	result.Points = curvePoints(records)

	var state memory.State
	if len(records) > 0 {
		last := records[len(records)-1]
		state = memory.State{HalfLifeDays: last.HalfLifeDays(), LastReviewedAt: last.RecordedAt()}
	}

	snap := h.analyzer.Snapshot(records, nil, state, time.Now())
	result.Trend = string(snap.Trend)
	result.TrendSlope = snap.TrendSlope
	result.CurrentHalfLifeDays = snap.CurrentHalfLifeDays
	result.ProjectedMasteryDate = snap.ProjectedMasteryDate
	return result, nil
}

// materialCurve merges the per-unit histories of a material into one curve.
// The mastery projection is the latest of the per-unit projections: the
// material is mastered when its slowest unit is.
func (h *PerformanceQueryHandler) materialCurve(ctx context.Context, learnerID valueobjects.LearnerID, materialID string) (*queries.LearningCurveResult, error) {
	units, err := h.unitRepo.ListByMaterial(ctx, materialID)
	if err != nil {
		return nil, err
	}
	if len(units) == 0 {
		return nil, pkgerrors.NewNotFoundError("material")
	}

	now := time.Now()
	merged := make([]*entities.ReviewRecord, 0)
	var mastery *time.Time

	for _, unit := range units {
		records, err := h.reviewRepo.ListByUnit(ctx, learnerID, unit.ID())
		if err != nil {
			return nil, err
		}
		merged = append(merged, records...)

		if len(records) > 0 {
			last := records[len(records)-1]
			state := memory.State{HalfLifeDays: last.HalfLifeDays(), LastReviewedAt: last.RecordedAt()}
			snap := h.analyzer.Snapshot(records, nil, state, now)
			if snap.ProjectedMasteryDate != nil && (mastery == nil || snap.ProjectedMasteryDate.After(*mastery)) {
				mastery = snap.ProjectedMasteryDate
			}
		}
	}

	sort.Slice(merged, func(i, j int) bool {
		return merged[i].RecordedAt().Before(merged[j].RecordedAt())
	})

	result := &queries.LearningCurveResult{MaterialID: materialID}
	result.Points = curvePoints(merged)
	result.ProjectedMasteryDate = mastery

	snap := h.analyzer.Snapshot(merged, nil, memory.State{}, now)
	result.Trend = string(snap.Trend)
	result.TrendSlope = snap.TrendSlope
	return result, nil
}

func curvePoints(records []*entities.ReviewRecord) []queries.CurvePoint {
	points := make([]queries.CurvePoint, 0, len(records))
	for _, r := range records {
		points = append(points, queries.CurvePoint{
			Timestamp:       r.RecordedAt(),
			ObservedScore:   r.Score().Value(),
			PredictedRecall: r.PredictedRecall(),
			HalfLifeDays:    r.HalfLifeDays(),
		})
	}
	return points
}

// HandleSummary executes the performance summary query
func (h *PerformanceQueryHandler) HandleSummary(ctx context.Context, q queries.GetPerformanceSummaryQuery) (*queries.PerformanceSummaryResult, error) {
	if err := q.Validate(); err != nil {
		return nil, pkgerrors.NewValidationError(err.Error())
	}

	learnerID, err := valueobjects.NewLearnerID(q.LearnerID)
	if err != nil {
		return nil, pkgerrors.NewValidationError(err.Error())
	}

	now := time.Now()
	from, to := q.From, q.To
	if from.IsZero() {
		from = now.AddDate(0, 0, -30)
	}
	if to.IsZero() {
		to = now
	}

	records, err := h.reviewRepo.ListByLearner(ctx, learnerID, from, to)
	if err != nil {
		return nil, err
	}
	entries, err := h.entryRepo.ListByDateRange(ctx, learnerID, from, to)
	if err != nil {
		return nil, err
	}
	profile, err := h.profileRepo.GetOrCreate(ctx, learnerID)
	if err != nil {
		return nil, err
	}

	snap := h.analyzer.Snapshot(records, entries, memory.State{}, now)

	return &queries.PerformanceSummaryResult{
		ReviewCount:         snap.ReviewCount,
		AverageScore:        snap.AverageScore,
		AverageStudyMinutes: snap.AverageStudyMinutes,
		CompletionRate:      snap.CompletionRate,
		Trend:               string(snap.Trend),
		TrendSlope:          snap.TrendSlope,
		RetentionRate:       profile.RetentionRate(),
		CognitiveLoadLimit:  profile.CognitiveLoadLimit(),
		ReadingSpeedWPM:     profile.ReadingSpeed(),
		ComputedAt:          snap.ComputedAt,
	}, nil
}
