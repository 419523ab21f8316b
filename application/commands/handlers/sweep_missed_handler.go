package handlers

import (
	"context"
	"time"

	"go.uber.org/zap"

	"studypace/application/commands/bus"
	"studypace/application/ports"
	"studypace/domain/config"
	"studypace/domain/core/valueobjects"
	pkgerrors "studypace/pkg/errors"
)

// SweepMissedHandler closes entries whose deadline passed the grace period
// with no signal. It implements bus.CommandHandler so the sweeper can
// dispatch it through the command bus.
type SweepMissedHandler struct {
	entryRepo ports.EntryRepository
	locker    ports.LearnerLocker
	publisher ports.EventPublisher
	cfg       *config.DomainConfig
	logger    *zap.Logger
}

// NewSweepMissedHandler creates the handler
func NewSweepMissedHandler(
	entryRepo ports.EntryRepository,
	locker ports.LearnerLocker,
	publisher ports.EventPublisher,
	cfg *config.DomainConfig,
	logger *zap.Logger,
) *SweepMissedHandler {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SweepMissedHandler{
		entryRepo: entryRepo,
		locker:    locker,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
	}
}

// Handle implements bus.CommandHandler
func (h *SweepMissedHandler) Handle(ctx context.Context, _ bus.Command) error {
	learners, err := h.entryRepo.ListLearnersWithOpen(ctx)
	if err != nil {
		return err
	}

	now := time.Now()
	var swept int

	for _, learnerID := range learners {
		unlock, err := h.locker.Acquire(ctx, learnerID)
		if err != nil {
			// A busy learner is swept on the next tick
			if pkgerrors.IsConcurrency(err) {
				continue
			}
			return err
		}

		n, err := h.sweepLearner(ctx, learnerID, now)
		if rerr := unlock.Release(ctx); rerr != nil {
			h.logger.Warn("failed to release learner lock",
				zap.String("learnerID", learnerID.String()),
				zap.Error(rerr))
		}
		if err != nil {
			return err
		}
		swept += n
	}

	if swept > 0 {
		h.logger.Info("missed-deadline sweep complete",
			zap.Int("learners", len(learners)),
			zap.Int("entriesSkipped", swept))
	}
	return nil
}

func (h *SweepMissedHandler) sweepLearner(ctx context.Context, learnerID valueobjects.LearnerID, now time.Time) (int, error) {
	open, err := h.entryRepo.ListOpen(ctx, learnerID)
	if err != nil {
		return 0, err
	}

	var swept int
	for _, entry := range open {
		if !entry.IsOverdue(now, h.cfg.GracePeriod) {
			continue
		}
		if err := entry.Skip("missed deadline"); err != nil {
			return swept, err
		}
		if err := h.entryRepo.Save(ctx, entry); err != nil {
			return swept, err
		}
		if perr := h.publisher.PublishBatch(ctx, entry.GetUncommittedEvents()); perr != nil {
			h.logger.Warn("failed to publish entry events",
				zap.String("entryID", entry.ID().String()),
				zap.Error(perr))
		}
		entry.MarkEventsAsCommitted()
		swept++
	}
	return swept, nil
}
