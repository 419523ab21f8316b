package handlers

import (
	"context"
	"time"

	"go.uber.org/zap"

	"studypace/application/commands"
	"studypace/application/ports"
	"studypace/domain/config"
	"studypace/domain/core/entities"
	"studypace/domain/core/valueobjects"
	"studypace/domain/memory"
	pkgerrors "studypace/pkg/errors"
)

// AdaptSchedulesResult summarizes one adaptation pass
type AdaptSchedulesResult struct {
	EntriesExamined    int
	EntriesSkipped     int
	EntriesRescheduled int
	Actions            []string
}

// AdaptSchedulesHandler re-evaluates a learner's open entries without a new
// performance event: overdue entries are closed as skipped, and entries
// whose memory state has drifted materially are pulled earlier.
type AdaptSchedulesHandler struct {
	entryRepo   ports.EntryRepository
	reviewRepo  ports.ReviewRepository
	profileRepo ports.ProfileRepository
	unitRepo    ports.UnitRepository
	locker      ports.LearnerLocker
	publisher   ports.EventPublisher
	model       *memory.Model
	cfg         *config.DomainConfig
	logger      *zap.Logger
}

// NewAdaptSchedulesHandler creates the handler
func NewAdaptSchedulesHandler(
	entryRepo ports.EntryRepository,
	reviewRepo ports.ReviewRepository,
	profileRepo ports.ProfileRepository,
	unitRepo ports.UnitRepository,
	locker ports.LearnerLocker,
	publisher ports.EventPublisher,
	model *memory.Model,
	cfg *config.DomainConfig,
	logger *zap.Logger,
) *AdaptSchedulesHandler {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdaptSchedulesHandler{
		entryRepo:   entryRepo,
		reviewRepo:  reviewRepo,
		profileRepo: profileRepo,
		unitRepo:    unitRepo,
		locker:      locker,
		publisher:   publisher,
		model:       model,
		cfg:         cfg,
		logger:      logger,
	}
}

// Handle executes the adapt schedules command
func (h *AdaptSchedulesHandler) Handle(ctx context.Context, cmd commands.AdaptSchedulesCommand) (*AdaptSchedulesResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, pkgerrors.NewValidationError(err.Error())
	}

	learnerID, err := valueobjects.NewLearnerID(cmd.LearnerID)
	if err != nil {
		return nil, pkgerrors.NewValidationError(err.Error())
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

	profile, err := h.profileRepo.GetOrCreate(ctx, learnerID)
	if err != nil {
		return nil, err
	}

	open, err := h.entryRepo.ListOpen(ctx, learnerID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	result := &AdaptSchedulesResult{}

	for _, entry := range open {
		unit, err := h.unitRepo.GetByID(ctx, entry.UnitID())
		if err != nil {
			return nil, err
		}
		if cmd.MaterialID != "" && unit.MaterialID() != cmd.MaterialID {
			continue
		}
		result.EntriesExamined++

		// Missed deadline: close as skipped; the next ranking pass gives the
		// unit its priority boost, no immediate reschedule
		if entry.IsOverdue(now, h.cfg.GracePeriod) {
			if err := entry.Skip("missed deadline"); err != nil {
				return nil, err
			}
			if err := h.entryRepo.Save(ctx, entry); err != nil {
				return nil, err
			}
			h.publishAndCommit(ctx, entry)
			result.EntriesSkipped++
			result.Actions = append(result.Actions, "skip_"+entry.ID().String())
			continue
		}

		records, err := h.reviewRepo.ListByUnit(ctx, learnerID, entry.UnitID())
		if err != nil {
			return nil, err
		}
		if len(records) == 0 {
			continue
		}

		state := deriveMemoryState(h.model, records, profile.RetentionRate(), unit.Difficulty().Value(), now)
		dueAt := state.LastReviewedAt.AddDate(0, 0, h.model.OptimalIntervalDays(state))

		// Pull the entry earlier only when the drift exceeds a full day,
		// and never into the past
		if entry.ScheduledAt().Sub(dueAt) > 24*time.Hour {
			if dueAt.Before(now) {
				dueAt = now.Add(time.Hour)
			}
			replacement, err := entry.Reschedule(dueAt)
			if err != nil {
				return nil, err
			}
			if err := h.entryRepo.SaveBatch(ctx, []*entities.ScheduleEntry{entry, replacement}); err != nil {
				return nil, err
			}
			h.publishAndCommit(ctx, entry)
			h.publishAndCommit(ctx, replacement)
			result.EntriesRescheduled++
			result.Actions = append(result.Actions, "reschedule_"+entry.ID().String())
		}
	}

	h.logger.Info("adaptation pass complete",
		zap.String("learnerID", learnerID.String()),
		zap.Int("examined", result.EntriesExamined),
		zap.Int("skipped", result.EntriesSkipped),
		zap.Int("rescheduled", result.EntriesRescheduled))

	return result, nil
}

func (h *AdaptSchedulesHandler) publishAndCommit(ctx context.Context, entry *entities.ScheduleEntry) {
	if err := h.publisher.PublishBatch(ctx, entry.GetUncommittedEvents()); err != nil {
		h.logger.Warn("failed to publish entry events",
			zap.String("entryID", entry.ID().String()),
			zap.Error(err))
	}
	entry.MarkEventsAsCommitted()
}
