package handlers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"studypace/application/commands"
	"studypace/domain/analysis"
	"studypace/domain/cogload"
	"studypace/domain/config"
	"studypace/domain/core/entities"
	"studypace/domain/core/valueobjects"
	"studypace/domain/memory"
	"studypace/domain/ranking"
	"studypace/domain/scheduling"
	memstore "studypace/infrastructure/persistence/memory"
	pkgerrors "studypace/pkg/errors"
)

type fixture struct {
	entryRepo   *memstore.EntryRepository
	reviewRepo  *memstore.ReviewRepository
	profileRepo *memstore.ProfileRepository
	unitRepo    *memstore.UnitRepository
	idempotency *memstore.IdempotencyStore
	locker      *memstore.Locker
	publisher   *memstore.Publisher
	cfg         *config.DomainConfig
	model       *memory.Model
	estimator   *cogload.Estimator
	analyzer    *analysis.Analyzer

	generate  *GenerateScheduleOrchestrator
	record    *RecordPerformanceHandler
	adapt     *AdaptSchedulesHandler
	lifecycle *EntryLifecycleHandler
	sweep     *SweepMissedHandler
}

func newFixture() *fixture {
	cfg := config.DefaultDomainConfig()
	model := memory.NewModel(cfg)
	estimator := cogload.NewEstimator(cfg)
	analyzer := analysis.NewAnalyzer(cfg, model)
	logger := zap.NewNop()

	f := &fixture{
		entryRepo:   memstore.NewEntryRepository(),
		reviewRepo:  memstore.NewReviewRepository(),
		profileRepo: memstore.NewProfileRepository(),
		unitRepo:    memstore.NewUnitRepository(),
		idempotency: memstore.NewIdempotencyStore(),
		locker:      memstore.NewLocker(),
		publisher:   memstore.NewPublisher(),
		cfg:         cfg,
		model:       model,
		estimator:   estimator,
		analyzer:    analyzer,
	}

	f.generate = NewGenerateScheduleOrchestrator(
		f.entryRepo, f.reviewRepo, f.profileRepo, f.unitRepo, f.locker, f.publisher,
		model, ranking.NewRanker(model), scheduling.NewBuilder(cfg, estimator), estimator, cfg, logger,
	)
	f.record = NewRecordPerformanceHandler(
		f.entryRepo, f.reviewRepo, f.profileRepo, f.unitRepo, f.idempotency, f.locker, f.publisher,
		model, analyzer, estimator, cfg, logger,
	)
	f.adapt = NewAdaptSchedulesHandler(
		f.entryRepo, f.reviewRepo, f.profileRepo, f.unitRepo, f.locker, f.publisher, model, cfg, logger,
	)
	f.lifecycle = NewEntryLifecycleHandler(f.entryRepo, f.locker, f.publisher, logger)
	f.sweep = NewSweepMissedHandler(f.entryRepo, f.locker, f.publisher, cfg, logger)

	return f
}

func (f *fixture) addUnit(t *testing.T, materialID string, order int, difficulty float64) *entities.MaterialUnit {
	t.Helper()

	diff, err := valueobjects.NewDifficulty(difficulty)
	require.NoError(t, err)
	unit, err := entities.NewMaterialUnit(materialID, "unit", order, order*1000, (order+1)*1000, 2000, diff, 200)
	require.NoError(t, err)
	require.NoError(t, f.unitRepo.Save(context.Background(), unit))
	return unit
}

func countOpenForUnit(t *testing.T, f *fixture, learner string, unitID valueobjects.UnitID) int {
	t.Helper()

	learnerID, err := valueobjects.NewLearnerID(learner)
	require.NoError(t, err)
	entries, err := f.entryRepo.ListByUnit(context.Background(), learnerID, unitID)
	require.NoError(t, err)

	open := 0
	for _, e := range entries {
		if e.IsOpen() {
			open++
		}
	}
	return open
}

func TestGenerateSchedule_PersistsPlan(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		f.addUnit(t, "mat-1", i, 0.5)
	}

	result, err := f.generate.Handle(ctx, commands.GenerateScheduleCommand{
		LearnerID:         "learner-1",
		MaterialID:        "mat-1",
		TargetDate:        time.Now().AddDate(0, 0, 7),
		DailyStudyMinutes: 120,
	})
	require.NoError(t, err)
	require.Len(t, result.Entries, 4)
	assert.True(t, result.TargetMet)

	learnerID, err := valueobjects.NewLearnerID("learner-1")
	require.NoError(t, err)
	open, err := f.entryRepo.ListOpen(ctx, learnerID)
	require.NoError(t, err)
	assert.Len(t, open, 4)

	// First exposure to every unit is a study session
	for _, e := range result.Entries {
		assert.Equal(t, entities.SessionStudy, e.SessionType())
	}
}

func TestGenerateSchedule_SkipsUnitsWithOpenEntries(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		f.addUnit(t, "mat-1", i, 0.5)
	}
	cmd := commands.GenerateScheduleCommand{
		LearnerID:         "learner-1",
		MaterialID:        "mat-1",
		TargetDate:        time.Now().AddDate(0, 0, 7),
		DailyStudyMinutes: 120,
	}

	first, err := f.generate.Handle(ctx, cmd)
	require.NoError(t, err)
	require.Len(t, first.Entries, 3)

	// Regenerating must not duplicate open entries for the same units
	second, err := f.generate.Handle(ctx, cmd)
	require.NoError(t, err)
	assert.Empty(t, second.Entries)
	assert.Len(t, second.SkippedUnits, 3)

	for _, e := range first.Entries {
		assert.Equal(t, 1, countOpenForUnit(t, f, "learner-1", e.UnitID()))
	}
}

func TestGenerateSchedule_UnknownMaterial(t *testing.T) {
	f := newFixture()

	_, err := f.generate.Handle(context.Background(), commands.GenerateScheduleCommand{
		LearnerID:         "learner-1",
		MaterialID:        "missing",
		TargetDate:        time.Now().AddDate(0, 0, 7),
		DailyStudyMinutes: 120,
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestGenerateSchedule_TargetNotMetOverflows(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		f.addUnit(t, "mat-1", i, 0.9)
	}

	result, err := f.generate.Handle(ctx, commands.GenerateScheduleCommand{
		LearnerID:         "learner-1",
		MaterialID:        "mat-1",
		TargetDate:        time.Now().AddDate(0, 0, 1),
		DailyStudyMinutes: 60,
	})
	require.NoError(t, err)

	// Everything is placed, but the caller learns the target slipped
	assert.Len(t, result.Entries, 10)
	assert.False(t, result.TargetMet)
}

func TestRecordPerformance_WeakScoreCreatesOneFollowUp(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	unit := f.addUnit(t, "mat-1", 0, 0.72)

	gen, err := f.generate.Handle(ctx, commands.GenerateScheduleCommand{
		LearnerID:         "learner-1",
		MaterialID:        "mat-1",
		TargetDate:        time.Now().AddDate(0, 0, 3),
		DailyStudyMinutes: 120,
	})
	require.NoError(t, err)
	require.Len(t, gen.Entries, 1)
	priorInterval := gen.Entries[0].IntervalDays()

	result, err := f.record.Handle(ctx, commands.RecordPerformanceCommand{
		LearnerID:      "learner-1",
		UnitID:         unit.ID().String(),
		EventID:        "evt-1",
		ObservedScore:  0.4,
		ElapsedMinutes: 12,
		Timestamp:      time.Now(),
	})
	require.NoError(t, err)

	assert.Contains(t, result.AdaptationsApplied, "increase_review")
	require.NotNil(t, result.FollowUpEntry)
	assert.LessOrEqual(t, result.FollowUpEntry.IntervalDays(), priorInterval)
	assert.GreaterOrEqual(t, result.FollowUpEntry.IntervalDays(), 1)

	// Exactly one open entry remains for the unit: the follow-up
	assert.Equal(t, 1, countOpenForUnit(t, f, "learner-1", unit.ID()))
}

func TestRecordPerformance_IdempotentByEventID(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	unit := f.addUnit(t, "mat-1", 0, 0.5)

	cmd := commands.RecordPerformanceCommand{
		LearnerID:      "learner-1",
		UnitID:         unit.ID().String(),
		EventID:        "evt-dup",
		ObservedScore:  0.4,
		ElapsedMinutes: 10,
		Timestamp:      time.Now(),
	}

	first, err := f.record.Handle(ctx, cmd)
	require.NoError(t, err)
	require.NotNil(t, first.FollowUpEntry)
	assert.False(t, first.AlreadyProcessed)

	// Replaying the same event must not create a second follow-up
	second, err := f.record.Handle(ctx, cmd)
	require.NoError(t, err)
	assert.True(t, second.AlreadyProcessed)
	assert.Nil(t, second.FollowUpEntry)

	assert.Equal(t, 1, countOpenForUnit(t, f, "learner-1", unit.ID()))

	learnerID, err := valueobjects.NewLearnerID("learner-1")
	require.NoError(t, err)
	records, err := f.reviewRepo.ListByUnit(ctx, learnerID, unit.ID())
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestRecordPerformance_FirstReviewStrongScore(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	unit := f.addUnit(t, "mat-1", 0, 0.72)

	// Learner profile with retention 0.7
	learnerID, err := valueobjects.NewLearnerID("learner-1")
	require.NoError(t, err)
	profile, err := f.profileRepo.GetOrCreate(ctx, learnerID)
	require.NoError(t, err)
	for profile.RetentionRate() < 0.69 {
		require.NoError(t, profile.ObserveRecall(1.0, f.cfg))
	}

	seed := f.model.Seed(profile.RetentionRate(), unit.Difficulty().Value(), time.Now().Add(-24*time.Hour))

	result, err := f.record.Handle(ctx, commands.RecordPerformanceCommand{
		LearnerID:      "learner-1",
		UnitID:         unit.ID().String(),
		EventID:        "evt-first",
		ObservedScore:  0.9,
		ElapsedMinutes: 15,
		Timestamp:      time.Now(),
	})
	require.NoError(t, err)

	// Half-life grows from its seed and the next interval does not shrink
	assert.Greater(t, result.UpdatedHalfLifeDays, seed.HalfLifeDays)
	assert.GreaterOrEqual(t, result.NextIntervalDays, f.model.OptimalIntervalDays(seed))
}

func TestRecordPerformance_UnknownUnit(t *testing.T) {
	f := newFixture()

	_, err := f.record.Handle(context.Background(), commands.RecordPerformanceCommand{
		LearnerID:      "learner-1",
		UnitID:         valueobjects.NewUnitID().String(),
		EventID:        "evt-x",
		ObservedScore:  0.5,
		ElapsedMinutes: 10,
		Timestamp:      time.Now(),
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestRecordPerformance_RejectsOutOfOrderTimestamp(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	unit := f.addUnit(t, "mat-1", 0, 0.5)

	first := time.Now()
	_, err := f.record.Handle(ctx, commands.RecordPerformanceCommand{
		LearnerID:      "learner-1",
		UnitID:         unit.ID().String(),
		EventID:        "evt-1",
		ObservedScore:  0.8,
		ElapsedMinutes: 10,
		Timestamp:      first,
	})
	require.NoError(t, err)

	// A replayed payload under a fresh event ID, timestamped before the
	// last review, must not fold into the half-life
	_, err = f.record.Handle(ctx, commands.RecordPerformanceCommand{
		LearnerID:      "learner-1",
		UnitID:         unit.ID().String(),
		EventID:        "evt-2",
		ObservedScore:  0.8,
		ElapsedMinutes: 10,
		Timestamp:      first.Add(-time.Hour),
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))

	learnerID, err := valueobjects.NewLearnerID("learner-1")
	require.NoError(t, err)
	records, err := f.reviewRepo.ListByUnit(ctx, learnerID, unit.ID())
	require.NoError(t, err)
	assert.Len(t, records, 1)

	// The rejected attempt must not burn its event ID
	ok, err := f.idempotency.Reserve(ctx, learnerID, "evt-2")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRecordPerformance_FailureReleasesEventID(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	unit := f.addUnit(t, "mat-1", 0, 0.5)

	// First attempt fails downstream of the reservation
	badCmd := commands.RecordPerformanceCommand{
		LearnerID:      "learner-1",
		UnitID:         unit.ID().String(),
		EventID:        "evt-retry",
		ObservedScore:  0.5,
		ElapsedMinutes: 10,
		Timestamp:      time.Now(),
	}
	// Simulate the failure path by reserving then releasing directly
	learnerID, err := valueobjects.NewLearnerID("learner-1")
	require.NoError(t, err)
	fresh, err := f.idempotency.Reserve(ctx, learnerID, badCmd.EventID)
	require.NoError(t, err)
	require.True(t, fresh)
	require.NoError(t, f.idempotency.Release(ctx, learnerID, badCmd.EventID))

	// The retry must go through as a fresh event
	result, err := f.record.Handle(ctx, badCmd)
	require.NoError(t, err)
	assert.False(t, result.AlreadyProcessed)
}

func TestAdaptSchedules_SkipsOverdueEntries(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	unit := f.addUnit(t, "mat-1", 0, 0.5)

	learnerID, err := valueobjects.NewLearnerID("learner-1")
	require.NoError(t, err)
	overdue, err := entities.NewScheduleEntry(
		learnerID, unit.ID(), entities.SessionStudy,
		time.Now().Add(-72*time.Hour), 30, 0.5, 0.25, 1, 0, 1000,
	)
	require.NoError(t, err)
	require.NoError(t, f.entryRepo.Save(ctx, overdue))

	result, err := f.adapt.Handle(ctx, commands.AdaptSchedulesCommand{LearnerID: "learner-1"})
	require.NoError(t, err)

	assert.Equal(t, 1, result.EntriesExamined)
	assert.Equal(t, 1, result.EntriesSkipped)

	stored, err := f.entryRepo.GetByID(ctx, learnerID, overdue.ID())
	require.NoError(t, err)
	assert.Equal(t, entities.StatusSkipped, stored.Status())
}

func TestAdaptSchedules_PullsDriftedEntriesEarlier(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	unit := f.addUnit(t, "mat-1", 0, 0.5)
	learnerID, err := valueobjects.NewLearnerID("learner-1")
	require.NoError(t, err)

	// A weak review yesterday: optimal next review is much sooner than the
	// entry placed two weeks out
	_, err = f.record.Handle(ctx, commands.RecordPerformanceCommand{
		LearnerID:      "learner-1",
		UnitID:         unit.ID().String(),
		EventID:        "evt-1",
		ObservedScore:  0.65,
		ElapsedMinutes: 10,
		Timestamp:      time.Now().Add(-24 * time.Hour),
	})
	require.NoError(t, err)

	farOut, err := entities.NewScheduleEntry(
		learnerID, unit.ID(), entities.SessionReview,
		time.Now().AddDate(0, 0, 14), 30, 0.5, 0.25, 14, 0, 1000,
	)
	require.NoError(t, err)
	require.NoError(t, f.entryRepo.Save(ctx, farOut))

	result, err := f.adapt.Handle(ctx, commands.AdaptSchedulesCommand{LearnerID: "learner-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.EntriesRescheduled)

	stored, err := f.entryRepo.GetByID(ctx, learnerID, farOut.ID())
	require.NoError(t, err)
	assert.Equal(t, entities.StatusRescheduled, stored.Status())
	assert.False(t, stored.ReplacedBy().IsZero())

	replacement, err := f.entryRepo.GetByID(ctx, learnerID, stored.ReplacedBy())
	require.NoError(t, err)
	assert.True(t, replacement.ScheduledAt().Before(farOut.ScheduledAt()))
}

func TestSweepMissed_ClosesOverdueAcrossLearners(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	unit := f.addUnit(t, "mat-1", 0, 0.5)

	makeEntry := func(learner string, scheduledAt time.Time) *entities.ScheduleEntry {
		id, err := valueobjects.NewLearnerID(learner)
		require.NoError(t, err)
		e, err := entities.NewScheduleEntry(id, unit.ID(), entities.SessionStudy, scheduledAt, 30, 0.5, 0.25, 1, 0, 1000)
		require.NoError(t, err)
		require.NoError(t, f.entryRepo.Save(ctx, e))
		return e
	}

	stale1 := makeEntry("learner-1", time.Now().Add(-72*time.Hour))
	stale2 := makeEntry("learner-2", time.Now().Add(-72*time.Hour))
	fresh := makeEntry("learner-1", time.Now().Add(24*time.Hour))

	require.NoError(t, f.sweep.Handle(ctx, commands.SweepMissedCommand{}))

	for _, tc := range []struct {
		learner string
		entry   *entities.ScheduleEntry
		status  entities.EntryStatus
	}{
		{"learner-1", stale1, entities.StatusSkipped},
		{"learner-2", stale2, entities.StatusSkipped},
		{"learner-1", fresh, entities.StatusScheduled},
	} {
		id, err := valueobjects.NewLearnerID(tc.learner)
		require.NoError(t, err)
		stored, err := f.entryRepo.GetByID(ctx, id, tc.entry.ID())
		require.NoError(t, err)
		assert.Equal(t, tc.status, stored.Status())
	}
}

func TestEntryLifecycle_CompleteAndReschedule(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	unit := f.addUnit(t, "mat-1", 0, 0.5)
	learnerID, err := valueobjects.NewLearnerID("learner-1")
	require.NoError(t, err)

	entry, err := entities.NewScheduleEntry(
		learnerID, unit.ID(), entities.SessionStudy,
		time.Now().Add(24*time.Hour), 30, 0.5, 0.25, 1, 0, 1000,
	)
	require.NoError(t, err)
	require.NoError(t, f.entryRepo.Save(ctx, entry))

	newTime := time.Now().Add(96 * time.Hour)
	replacement, err := f.lifecycle.HandleReschedule(ctx, commands.RescheduleEntryCommand{
		LearnerID: "learner-1",
		EntryID:   entry.ID().String(),
		NewTime:   newTime,
	})
	require.NoError(t, err)
	assert.Equal(t, newTime, replacement.ScheduledAt())

	completed, err := f.lifecycle.HandleComplete(ctx, commands.CompleteEntryCommand{
		LearnerID: "learner-1",
		EntryID:   replacement.ID().String(),
	})
	require.NoError(t, err)
	assert.Equal(t, entities.StatusCompleted, completed.Status())

	// Completing a closed entry is a conflict
	_, err = f.lifecycle.HandleComplete(ctx, commands.CompleteEntryCommand{
		LearnerID: "learner-1",
		EntryID:   entry.ID().String(),
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsConflict(err))
}

func TestLocker_ConcurrencyConflict(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	learnerID, err := valueobjects.NewLearnerID("learner-1")
	require.NoError(t, err)

	unlock, err := f.locker.Acquire(ctx, learnerID)
	require.NoError(t, err)

	_, err = f.locker.Acquire(ctx, learnerID)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsConcurrency(err))

	require.NoError(t, unlock.Release(ctx))
	unlock2, err := f.locker.Acquire(ctx, learnerID)
	require.NoError(t, err)
	require.NoError(t, unlock2.Release(ctx))
}
