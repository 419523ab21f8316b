package handlers

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"studypace/application/commands"
	"studypace/application/ports"
	"studypace/domain/analysis"
	"studypace/domain/cogload"
	"studypace/domain/config"
	"studypace/domain/core/entities"
	"studypace/domain/core/valueobjects"
	"studypace/domain/events"
	"studypace/domain/memory"
	pkgerrors "studypace/pkg/errors"
)

// RecordPerformanceResult reports the effect of one performance event
type RecordPerformanceResult struct {
	UpdatedHalfLifeDays float64
	PredictedRecall     float64
	NextIntervalDays    int
	AdaptationsApplied  []string
	FollowUpEntry       *entities.ScheduleEntry
	AlreadyProcessed    bool
}

// RecordPerformanceHandler is the adaptation engine's event path: it appends
// the review record, updates the memory model, closes the matching entry,
// and decides whether the unit needs a follow-up session.
type RecordPerformanceHandler struct {
	entryRepo   ports.EntryRepository
	reviewRepo  ports.ReviewRepository
	profileRepo ports.ProfileRepository
	unitRepo    ports.UnitRepository
	idempotency ports.IdempotencyStore
	locker      ports.LearnerLocker
	publisher   ports.EventPublisher
	model       *memory.Model
	analyzer    *analysis.Analyzer
	estimator   *cogload.Estimator
	cfg         *config.DomainConfig
	logger      *zap.Logger
}

// NewRecordPerformanceHandler creates the handler
func NewRecordPerformanceHandler(
	entryRepo ports.EntryRepository,
	reviewRepo ports.ReviewRepository,
	profileRepo ports.ProfileRepository,
	unitRepo ports.UnitRepository,
	idempotency ports.IdempotencyStore,
	locker ports.LearnerLocker,
	publisher ports.EventPublisher,
	model *memory.Model,
	analyzer *analysis.Analyzer,
	estimator *cogload.Estimator,
	cfg *config.DomainConfig,
	logger *zap.Logger,
) *RecordPerformanceHandler {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecordPerformanceHandler{
		entryRepo:   entryRepo,
		reviewRepo:  reviewRepo,
		profileRepo: profileRepo,
		unitRepo:    unitRepo,
		idempotency: idempotency,
		locker:      locker,
		publisher:   publisher,
		model:       model,
		analyzer:    analyzer,
		estimator:   estimator,
		cfg:         cfg,
		logger:      logger,
	}
}

// Handle executes the record performance command
func (h *RecordPerformanceHandler) Handle(ctx context.Context, cmd commands.RecordPerformanceCommand) (_ *RecordPerformanceResult, err error) {
	if verr := cmd.Validate(); verr != nil {
		return nil, pkgerrors.NewValidationError(verr.Error())
	}

	learnerID, lerr := valueobjects.NewLearnerID(cmd.LearnerID)
	if lerr != nil {
		return nil, pkgerrors.NewValidationError(lerr.Error())
	}
	unitID, uerr := valueobjects.NewUnitIDFromString(cmd.UnitID)
	if uerr != nil {
		return nil, pkgerrors.NewValidationError(uerr.Error())
	}
	score, serr := valueobjects.NewScore(cmd.ObservedScore)
	if serr != nil {
		return nil, pkgerrors.NewValidationError(serr.Error())
	}

	unit, err := h.unitRepo.GetByID(ctx, unitID)
	if err != nil {
		return nil, err
	}

	unlock, err := h.locker.Acquire(ctx, learnerID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if rerr := unlock.Release(ctx); rerr != nil {
			h.logger.Warn("failed to release learner lock",
				zap.String("learnerID", learnerID.String()),
				zap.Error(rerr))
		}
	}()

	// Exactly one processing attempt wins per event ID
	fresh, err := h.idempotency.Reserve(ctx, learnerID, cmd.EventID)
	if err != nil {
		return nil, err
	}
	if !fresh {
		h.logger.Info("duplicate performance event ignored",
			zap.String("learnerID", learnerID.String()),
			zap.String("eventID", cmd.EventID))
		return &RecordPerformanceResult{AlreadyProcessed: true}, nil
	}
	defer func() {
		// A failed attempt must not burn the event ID
		if err != nil {
			if rerr := h.idempotency.Release(ctx, learnerID, cmd.EventID); rerr != nil {
				h.logger.Error("failed to release idempotency reservation",
					zap.String("eventID", cmd.EventID),
					zap.Error(rerr))
			}
		}
	}()

	profile, err := h.profileRepo.GetOrCreate(ctx, learnerID)
	if err != nil {
		return nil, err
	}

	records, err := h.reviewRepo.ListByUnit(ctx, learnerID, unitID)
	if err != nil {
		return nil, err
	}

	state := deriveMemoryState(h.model, records, profile.RetentionRate(), unit.Difficulty().Value(), cmd.Timestamp)
	predicted := h.model.PredictRecall(state, cmd.Timestamp)

	updated, err := h.model.Update(state, unit.Difficulty().Value(), score.Value(), cmd.Timestamp)
	if err != nil {
		return nil, err
	}

	record, err := entities.NewReviewRecord(
		learnerID, unitID, cmd.EventID, score,
		cmd.ElapsedMinutes, predicted, updated.HalfLifeDays, cmd.Timestamp,
	)
	if err != nil {
		return nil, err
	}
	if err = h.reviewRepo.Append(ctx, record); err != nil {
		return nil, err
	}

	completedEntry, err := h.completeOpenEntry(ctx, learnerID, unitID, cmd.Timestamp)
	if err != nil {
		return nil, err
	}

	result := &RecordPerformanceResult{
		UpdatedHalfLifeDays: updated.HalfLifeDays,
		PredictedRecall:     predicted,
		NextIntervalDays:    h.model.OptimalIntervalDays(updated),
	}

	if err = h.adapt(ctx, learnerID, unit, completedEntry, updated, score, result, cmd.Timestamp); err != nil {
		return nil, err
	}

	if err = h.analyzer.ApplyObservation(profile, score.Value(), cmd.ElapsedMinutes, unit.WordCount()); err != nil {
		return nil, err
	}
	if err = h.profileRepo.Save(ctx, profile); err != nil {
		return nil, err
	}

	h.publishPerformanceEvents(ctx, learnerID, unitID, score.Value(), predicted, updated.HalfLifeDays, result, completedEntry)

	h.logger.Info("performance recorded",
		zap.String("learnerID", learnerID.String()),
		zap.String("unitID", unitID.String()),
		zap.Float64("score", score.Value()),
		zap.Float64("halfLifeDays", updated.HalfLifeDays),
		zap.Strings("adaptations", result.AdaptationsApplied))

	return result, nil
}

// completeOpenEntry closes the unit's open entry, if one exists
func (h *RecordPerformanceHandler) completeOpenEntry(
	ctx context.Context,
	learnerID valueobjects.LearnerID,
	unitID valueobjects.UnitID,
	at time.Time,
) (*entities.ScheduleEntry, error) {
	entries, err := h.entryRepo.ListByUnit(ctx, learnerID, unitID)
	if err != nil {
		return nil, err
	}

	for _, entry := range entries {
		if !entry.IsOpen() {
			continue
		}
		if err := entry.Complete(at); err != nil {
			return nil, err
		}
		if err := h.entryRepo.Save(ctx, entry); err != nil {
			return nil, err
		}
		return entry, nil
	}

	return nil, nil
}

// adapt applies the threshold rules: weak recall pulls the next review
// closer, strong recall pushes it out. The middle band leaves the plan to
// the next generation cycle.
func (h *RecordPerformanceHandler) adapt(
	ctx context.Context,
	learnerID valueobjects.LearnerID,
	unit *entities.MaterialUnit,
	completedEntry *entities.ScheduleEntry,
	state memory.State,
	score valueobjects.Score,
	result *RecordPerformanceResult,
	at time.Time,
) error {
	priorInterval := h.model.OptimalIntervalDays(state)
	if completedEntry != nil {
		priorInterval = completedEntry.IntervalDays()
	}

	var interval int
	switch {
	case score.IsWeak(h.cfg):
		interval = priorInterval / 2
		if interval < 1 {
			interval = 1
		}
		result.AdaptationsApplied = append(result.AdaptationsApplied,
			"increase_review",
			fmt.Sprintf("reduce_interval_to_%d", interval))
	case score.IsStrong(h.cfg):
		interval = priorInterval * 2
		if interval > h.cfg.StrongIntervalCapDays {
			interval = h.cfg.StrongIntervalCapDays
		}
		result.AdaptationsApplied = append(result.AdaptationsApplied,
			fmt.Sprintf("increase_interval_to_%d", interval))
	default:
		return nil
	}

	followUp, err := h.createFollowUp(learnerID, unit, completedEntry, interval, at)
	if err != nil {
		return err
	}
	if err := h.entryRepo.Save(ctx, followUp); err != nil {
		return err
	}

	result.NextIntervalDays = interval
	result.FollowUpEntry = followUp
	return nil
}

func (h *RecordPerformanceHandler) createFollowUp(
	learnerID valueobjects.LearnerID,
	unit *entities.MaterialUnit,
	completedEntry *entities.ScheduleEntry,
	intervalDays int,
	at time.Time,
) (*entities.ScheduleEntry, error) {
	duration := unit.EstimatedMinutes()
	startOffset, endOffset := unit.StartOffset(), unit.EndOffset()
	if completedEntry != nil {
		duration = completedEntry.DurationMinutes()
		startOffset, endOffset = completedEntry.StartOffset(), completedEntry.EndOffset()
	}

	load, err := h.estimator.Estimate(duration, unit.Difficulty().Value(), h.cfg.DefaultLoadLimit, 0)
	if err != nil {
		return nil, err
	}

	return entities.NewScheduleEntry(
		learnerID,
		unit.ID(),
		entities.SessionReview,
		at.AddDate(0, 0, intervalDays),
		duration,
		1.0, // follow-ups jump the queue
		load,
		intervalDays,
		startOffset,
		endOffset,
	)
}

func (h *RecordPerformanceHandler) publishPerformanceEvents(
	ctx context.Context,
	learnerID valueobjects.LearnerID,
	unitID valueobjects.UnitID,
	score, predicted, halfLife float64,
	result *RecordPerformanceResult,
	completedEntry *entities.ScheduleEntry,
) {
	batch := []events.DomainEvent{
		events.NewReviewRecorded(learnerID, unitID, score, predicted, halfLife, time.Now()),
	}
	if completedEntry != nil {
		batch = append(batch, completedEntry.GetUncommittedEvents()...)
	}
	if result.FollowUpEntry != nil {
		batch = append(batch, result.FollowUpEntry.GetUncommittedEvents()...)
	}
	if len(result.AdaptationsApplied) > 0 {
		batch = append(batch, events.NewScheduleAdapted(learnerID, unitID, result.AdaptationsApplied, time.Now()))
	}

	if err := h.publisher.PublishBatch(ctx, batch); err != nil {
		h.logger.Warn("failed to publish performance events",
			zap.String("learnerID", learnerID.String()),
			zap.Error(err))
	}
	if completedEntry != nil {
		completedEntry.MarkEventsAsCommitted()
	}
	if result.FollowUpEntry != nil {
		result.FollowUpEntry.MarkEventsAsCommitted()
	}
}
