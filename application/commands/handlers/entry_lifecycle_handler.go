package handlers

import (
	"context"
	"time"

	"go.uber.org/zap"

	"studypace/application/commands"
	"studypace/application/ports"
	"studypace/domain/core/entities"
	"studypace/domain/core/valueobjects"
	pkgerrors "studypace/pkg/errors"
)

// EntryLifecycleHandler serves the explicit per-entry transitions requested
// through the API: manual completion and rescheduling.
type EntryLifecycleHandler struct {
	entryRepo ports.EntryRepository
	locker    ports.LearnerLocker
	publisher ports.EventPublisher
	logger    *zap.Logger
}

// NewEntryLifecycleHandler creates the handler
func NewEntryLifecycleHandler(
	entryRepo ports.EntryRepository,
	locker ports.LearnerLocker,
	publisher ports.EventPublisher,
	logger *zap.Logger,
) *EntryLifecycleHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EntryLifecycleHandler{
		entryRepo: entryRepo,
		locker:    locker,
		publisher: publisher,
		logger:    logger,
	}
}

// HandleComplete executes the complete entry command
func (h *EntryLifecycleHandler) HandleComplete(ctx context.Context, cmd commands.CompleteEntryCommand) (*entities.ScheduleEntry, error) {
	if err := cmd.Validate(); err != nil {
		return nil, pkgerrors.NewValidationError(err.Error())
	}

	learnerID, entryID, err := parseEntryRef(cmd.LearnerID, cmd.EntryID)
	if err != nil {
		return nil, err
	}

	unlock, err := h.locker.Acquire(ctx, learnerID)
	if err != nil {
		return nil, err
	}
	defer h.release(ctx, unlock, learnerID)

	entry, err := h.entryRepo.GetByID(ctx, learnerID, entryID)
	if err != nil {
		return nil, err
	}

	at := cmd.CompletedAt
	if at.IsZero() {
		at = time.Now()
	}
	if err := entry.Complete(at); err != nil {
		return nil, err
	}
	if err := h.entryRepo.Save(ctx, entry); err != nil {
		return nil, err
	}

	h.publishAndCommit(ctx, entry)
	return entry, nil
}

// HandleReschedule executes the reschedule entry command. The entry is
// closed and a replacement is returned.
func (h *EntryLifecycleHandler) HandleReschedule(ctx context.Context, cmd commands.RescheduleEntryCommand) (*entities.ScheduleEntry, error) {
	if err := cmd.Validate(); err != nil {
		return nil, pkgerrors.NewValidationError(err.Error())
	}

	learnerID, entryID, err := parseEntryRef(cmd.LearnerID, cmd.EntryID)
	if err != nil {
		return nil, err
	}

	unlock, err := h.locker.Acquire(ctx, learnerID)
	if err != nil {
		return nil, err
	}
	defer h.release(ctx, unlock, learnerID)

	entry, err := h.entryRepo.GetByID(ctx, learnerID, entryID)
	if err != nil {
		return nil, err
	}

	replacement, err := entry.Reschedule(cmd.NewTime)
	if err != nil {
		return nil, err
	}
	if err := h.entryRepo.SaveBatch(ctx, []*entities.ScheduleEntry{entry, replacement}); err != nil {
		return nil, err
	}

	h.publishAndCommit(ctx, entry)
	h.publishAndCommit(ctx, replacement)
	return replacement, nil
}

func parseEntryRef(learner, entry string) (valueobjects.LearnerID, valueobjects.EntryID, error) {
	learnerID, err := valueobjects.NewLearnerID(learner)
	if err != nil {
		return valueobjects.LearnerID{}, valueobjects.EntryID{}, pkgerrors.NewValidationError(err.Error())
	}
	entryID, err := valueobjects.NewEntryIDFromString(entry)
	if err != nil {
		return valueobjects.LearnerID{}, valueobjects.EntryID{}, pkgerrors.NewValidationError(err.Error())
	}
	return learnerID, entryID, nil
}

func (h *EntryLifecycleHandler) release(ctx context.Context, unlock ports.Unlocker, learnerID valueobjects.LearnerID) {
	if err := unlock.Release(ctx); err != nil {
		h.logger.Warn("failed to release learner lock",
			zap.String("learnerID", learnerID.String()),
			zap.Error(err))
	}
}

func (h *EntryLifecycleHandler) publishAndCommit(ctx context.Context, entry *entities.ScheduleEntry) {
	if err := h.publisher.PublishBatch(ctx, entry.GetUncommittedEvents()); err != nil {
		h.logger.Warn("failed to publish entry events",
			zap.String("entryID", entry.ID().String()),
			zap.Error(err))
	}
	entry.MarkEventsAsCommitted()
}
