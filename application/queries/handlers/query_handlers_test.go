package handlers

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"studypace/application/queries"
	"studypace/domain/analysis"
	"studypace/domain/config"
	"studypace/domain/core/entities"
	"studypace/domain/core/valueobjects"
	"studypace/domain/memory"
	memstore "studypace/infrastructure/persistence/memory"
	pkgerrors "studypace/pkg/errors"
)

type queryFixture struct {
	entryRepo   *memstore.EntryRepository
	reviewRepo  *memstore.ReviewRepository
	profileRepo *memstore.ProfileRepository
	unitRepo    *memstore.UnitRepository
	perf        *PerformanceQueryHandler
	list        *ListEntriesHandler
	learnerID   valueobjects.LearnerID
}

func newQueryFixture(t *testing.T) *queryFixture {
	t.Helper()

	cfg := config.DefaultDomainConfig()
	model := memory.NewModel(cfg)
	analyzer := analysis.NewAnalyzer(cfg, model)

	entryRepo := memstore.NewEntryRepository()
	reviewRepo := memstore.NewReviewRepository()
	profileRepo := memstore.NewProfileRepository()
	unitRepo := memstore.NewUnitRepository()

	learnerID, err := valueobjects.NewLearnerID("learner-1")
	require.NoError(t, err)

	return &queryFixture{
		entryRepo:   entryRepo,
		reviewRepo:  reviewRepo,
		profileRepo: profileRepo,
		unitRepo:    unitRepo,
		perf:        NewPerformanceQueryHandler(reviewRepo, entryRepo, profileRepo, unitRepo, analyzer, zap.NewNop()),
		list:        NewListEntriesHandler(entryRepo, zap.NewNop()),
		learnerID:   learnerID,
	}
}

func (f *queryFixture) addUnit(t *testing.T) *entities.MaterialUnit {
	t.Helper()
	diff, err := valueobjects.NewDifficulty(0.5)
	require.NoError(t, err)
	unit, err := entities.NewMaterialUnit("material-1", "Chapter", 0, 0, 5000, 1000, diff, 200)
	require.NoError(t, err)
	require.NoError(t, f.unitRepo.Save(context.Background(), unit))
	return unit
}

func (f *queryFixture) addReview(t *testing.T, unitID valueobjects.UnitID, eventID string, scoreVal, halfLife float64, at time.Time) {
	t.Helper()
	score, err := valueobjects.NewScore(scoreVal)
	require.NoError(t, err)
	record, err := entities.NewReviewRecord(f.learnerID, unitID, eventID, score, 20, 0.8, halfLife, at)
	require.NoError(t, err)
	require.NoError(t, f.reviewRepo.Append(context.Background(), record))
}

func (f *queryFixture) addEntry(t *testing.T, unitID valueobjects.UnitID, at time.Time) *entities.ScheduleEntry {
	t.Helper()
	entry, err := entities.NewScheduleEntry(f.learnerID, unitID, entities.SessionStudy, at, 30, 0.9, 0.25, 3, 0, 1000)
	require.NoError(t, err)
	entry.MarkEventsAsCommitted()
	require.NoError(t, f.entryRepo.Save(context.Background(), entry))
	return entry
}

func TestHandleLearningCurve_BuildsPointsAndProjection(t *testing.T) {
	f := newQueryFixture(t)
	unit := f.addUnit(t)
	now := time.Now()

	f.addReview(t, unit.ID(), "evt-1", 0.5, 1.2, now.AddDate(0, 0, -6))
	f.addReview(t, unit.ID(), "evt-2", 0.7, 2.4, now.AddDate(0, 0, -3))
	f.addReview(t, unit.ID(), "evt-3", 0.9, 5.1, now.AddDate(0, 0, -1))

	result, err := f.perf.HandleLearningCurve(context.Background(), queries.GetLearningCurveQuery{
		LearnerID: f.learnerID.String(),
		UnitID:    unit.ID().String(),
	})
	require.NoError(t, err)

	require.Len(t, result.Points, 3)
	assert.Equal(t, 0.5, result.Points[0].ObservedScore)
	assert.Equal(t, 5.1, result.Points[2].HalfLifeDays)
	assert.Equal(t, 5.1, result.CurrentHalfLifeDays)
	assert.Equal(t, string(analysis.TrendImproving), result.Trend)

	require.NotNil(t, result.ProjectedMasteryDate)
	assert.True(t, result.ProjectedMasteryDate.After(now.AddDate(0, 0, -1)))
}

func TestHandleLearningCurve_NoHistory(t *testing.T) {
	f := newQueryFixture(t)
	unit := f.addUnit(t)

	result, err := f.perf.HandleLearningCurve(context.Background(), queries.GetLearningCurveQuery{
		LearnerID: f.learnerID.String(),
		UnitID:    unit.ID().String(),
	})
	require.NoError(t, err)

	assert.Empty(t, result.Points)
	assert.Equal(t, string(analysis.TrendStable), result.Trend)
	assert.Zero(t, result.CurrentHalfLifeDays)
	assert.Nil(t, result.ProjectedMasteryDate)
}

func TestHandleLearningCurve_MaterialScopeMergesUnits(t *testing.T) {
	f := newQueryFixture(t)
	now := time.Now()

	diff, err := valueobjects.NewDifficulty(0.5)
	require.NoError(t, err)
	unitA, err := entities.NewMaterialUnit("material-1", "Chapter 1", 0, 0, 5000, 1000, diff, 200)
	require.NoError(t, err)
	unitB, err := entities.NewMaterialUnit("material-1", "Chapter 2", 1, 5000, 9000, 800, diff, 200)
	require.NoError(t, err)
	require.NoError(t, f.unitRepo.Save(context.Background(), unitA))
	require.NoError(t, f.unitRepo.Save(context.Background(), unitB))

	f.addReview(t, unitA.ID(), "evt-a1", 0.6, 2.0, now.AddDate(0, 0, -5))
	f.addReview(t, unitB.ID(), "evt-b1", 0.8, 8.0, now.AddDate(0, 0, -3))
	f.addReview(t, unitA.ID(), "evt-a2", 0.7, 3.0, now.AddDate(0, 0, -1))

	result, err := f.perf.HandleLearningCurve(context.Background(), queries.GetLearningCurveQuery{
		LearnerID:  f.learnerID.String(),
		MaterialID: "material-1",
	})
	require.NoError(t, err)

	require.Len(t, result.Points, 3)
	// merged curve is chronological across units
	assert.Equal(t, 0.6, result.Points[0].ObservedScore)
	assert.Equal(t, 0.8, result.Points[1].ObservedScore)
	assert.Equal(t, 0.7, result.Points[2].ObservedScore)
	assert.Equal(t, "material-1", result.MaterialID)
	require.NotNil(t, result.ProjectedMasteryDate)

	// mastery tracks the slowest unit: B's 8-day half-life projects past A's
	bState := memory.State{HalfLifeDays: 8.0, LastReviewedAt: now.AddDate(0, 0, -3)}
	assert.True(t, result.ProjectedMasteryDate.After(bState.LastReviewedAt))
}

func TestHandleLearningCurve_UnknownMaterial(t *testing.T) {
	f := newQueryFixture(t)

	_, err := f.perf.HandleLearningCurve(context.Background(), queries.GetLearningCurveQuery{
		LearnerID:  f.learnerID.String(),
		MaterialID: "no-such-material",
	})
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestHandleLearningCurve_UnknownUnit(t *testing.T) {
	f := newQueryFixture(t)

	_, err := f.perf.HandleLearningCurve(context.Background(), queries.GetLearningCurveQuery{
		LearnerID: f.learnerID.String(),
		UnitID:    valueobjects.NewUnitID().String(),
	})
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestHandleSummary_CombinesHistoryAndProfile(t *testing.T) {
	f := newQueryFixture(t)
	unit := f.addUnit(t)
	now := time.Now()

	f.addReview(t, unit.ID(), "evt-1", 0.6, 1.5, now.AddDate(0, 0, -4))
	f.addReview(t, unit.ID(), "evt-2", 0.8, 3.0, now.AddDate(0, 0, -2))

	completed := f.addEntry(t, unit.ID(), now.AddDate(0, 0, -2))
	require.NoError(t, completed.Complete(now.AddDate(0, 0, -2)))
	completed.MarkEventsAsCommitted()
	require.NoError(t, f.entryRepo.Save(context.Background(), completed))
	skipped := f.addEntry(t, unit.ID(), now.AddDate(0, 0, -1))
	require.NoError(t, skipped.Skip("missed deadline"))
	skipped.MarkEventsAsCommitted()
	require.NoError(t, f.entryRepo.Save(context.Background(), skipped))

	result, err := f.perf.HandleSummary(context.Background(), queries.GetPerformanceSummaryQuery{
		LearnerID: f.learnerID.String(),
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.ReviewCount)
	assert.InDelta(t, 0.7, result.AverageScore, 1e-9)
	assert.InDelta(t, 20, result.AverageStudyMinutes, 1e-9)
	assert.InDelta(t, 0.5, result.CompletionRate, 1e-9)

	// fresh profile defaults
	assert.InDelta(t, 0.5, result.RetentionRate, 1e-9)
	assert.InDelta(t, 1.0, result.CognitiveLoadLimit, 1e-9)
	assert.InDelta(t, 200, result.ReadingSpeedWPM, 1e-9)
	assert.False(t, result.ComputedAt.IsZero())
}

func TestHandleSummary_EmptyWindow(t *testing.T) {
	f := newQueryFixture(t)

	result, err := f.perf.HandleSummary(context.Background(), queries.GetPerformanceSummaryQuery{
		LearnerID: f.learnerID.String(),
	})
	require.NoError(t, err)

	assert.Zero(t, result.ReviewCount)
	assert.Zero(t, result.AverageScore)
	assert.Equal(t, string(analysis.TrendStable), result.Trend)
}

func TestListEntries_Pagination(t *testing.T) {
	f := newQueryFixture(t)
	unit := f.addUnit(t)
	now := time.Now()

	for i := 0; i < 5; i++ {
		f.addEntry(t, unit.ID(), now.Add(time.Duration(i+1)*24*time.Hour))
	}

	first, err := f.list.Handle(context.Background(), queries.ListEntriesQuery{
		LearnerID: f.learnerID.String(),
		Page:      1,
		PageSize:  2,
	})
	require.NoError(t, err)
	assert.Equal(t, 5, first.Total)
	require.Len(t, first.Entries, 2)

	last, err := f.list.Handle(context.Background(), queries.ListEntriesQuery{
		LearnerID: f.learnerID.String(),
		Page:      3,
		PageSize:  2,
	})
	require.NoError(t, err)
	require.Len(t, last.Entries, 1)

	// pages walk the schedule oldest first with no overlap
	assert.True(t, first.Entries[0].ScheduledAt.Before(first.Entries[1].ScheduledAt))
	assert.NotEqual(t, first.Entries[0].ID, last.Entries[0].ID)

	beyond, err := f.list.Handle(context.Background(), queries.ListEntriesQuery{
		LearnerID: f.learnerID.String(),
		Page:      9,
		PageSize:  2,
	})
	require.NoError(t, err)
	assert.Empty(t, beyond.Entries)
	assert.Equal(t, 5, beyond.Total)
}

func TestListEntries_DateRangeFilters(t *testing.T) {
	f := newQueryFixture(t)
	unit := f.addUnit(t)
	now := time.Now()

	inside := f.addEntry(t, unit.ID(), now.Add(24*time.Hour))
	f.addEntry(t, unit.ID(), now.Add(40*24*time.Hour))

	result, err := f.list.Handle(context.Background(), queries.ListEntriesQuery{
		LearnerID: f.learnerID.String(),
		From:      now,
		To:        now.Add(7 * 24 * time.Hour),
	})
	require.NoError(t, err)
	require.Len(t, result.Entries, 1)
	assert.Equal(t, inside.ID().String(), result.Entries[0].ID)
	assert.Equal(t, string(entities.SessionStudy), result.Entries[0].SessionType)
	assert.Equal(t, string(entities.StatusScheduled), result.Entries[0].Status)
}

func TestListEntries_ViewCarriesReplacementLink(t *testing.T) {
	f := newQueryFixture(t)
	unit := f.addUnit(t)
	now := time.Now()

	entry := f.addEntry(t, unit.ID(), now.Add(24*time.Hour))
	replacement, err := entry.Reschedule(now.Add(48 * time.Hour))
	require.NoError(t, err)
	entry.MarkEventsAsCommitted()
	replacement.MarkEventsAsCommitted()
	require.NoError(t, f.entryRepo.Save(context.Background(), entry))
	require.NoError(t, f.entryRepo.Save(context.Background(), replacement))

	result, err := f.list.Handle(context.Background(), queries.ListEntriesQuery{
		LearnerID: f.learnerID.String(),
	})
	require.NoError(t, err)
	require.Len(t, result.Entries, 2)

	byID := make(map[string]queries.EntryView, len(result.Entries))
	for _, v := range result.Entries {
		byID[v.ID] = v
	}
	original := byID[entry.ID().String()]
	assert.Equal(t, string(entities.StatusRescheduled), original.Status)
	assert.Equal(t, replacement.ID().String(), original.ReplacedBy)
	assert.Empty(t, byID[replacement.ID().String()].ReplacedBy)
}

func TestListEntries_InvalidRange(t *testing.T) {
	f := newQueryFixture(t)
	now := time.Now()

	_, err := f.list.Handle(context.Background(), queries.ListEntriesQuery{
		LearnerID: f.learnerID.String(),
		From:      now,
		To:        now.Add(-time.Hour),
	})
	assert.True(t, pkgerrors.IsValidation(err))
}

func TestQueryValidation(t *testing.T) {
	f := newQueryFixture(t)

	tests := []struct {
		name string
		call func() error
	}{
		{"curve missing learner", func() error {
			_, err := f.perf.HandleLearningCurve(context.Background(), queries.GetLearningCurveQuery{UnitID: valueobjects.NewUnitID().String()})
			return err
		}},
		{"curve malformed unit", func() error {
			_, err := f.perf.HandleLearningCurve(context.Background(), queries.GetLearningCurveQuery{LearnerID: "learner-1", UnitID: "not-a-uuid"})
			return err
		}},
		{"curve no scope", func() error {
			_, err := f.perf.HandleLearningCurve(context.Background(), queries.GetLearningCurveQuery{LearnerID: "learner-1"})
			return err
		}},
		{"curve both scopes", func() error {
			_, err := f.perf.HandleLearningCurve(context.Background(), queries.GetLearningCurveQuery{LearnerID: "learner-1", UnitID: valueobjects.NewUnitID().String(), MaterialID: "material-1"})
			return err
		}},
		{"summary missing learner", func() error {
			_, err := f.perf.HandleSummary(context.Background(), queries.GetPerformanceSummaryQuery{})
			return err
		}},
		{"list missing learner", func() error {
			_, err := f.list.Handle(context.Background(), queries.ListEntriesQuery{})
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			assert.True(t, pkgerrors.IsValidation(err), fmt.Sprintf("got %v", err))
		})
	}
}
