package handlers

import (
	"context"
	"time"

	"go.uber.org/zap"

	"studypace/application/commands"
	"studypace/application/ports"
	"studypace/domain/cogload"
	"studypace/domain/config"
	"studypace/domain/core/entities"
	"studypace/domain/core/valueobjects"
	"studypace/domain/memory"
	"studypace/domain/ranking"
	"studypace/domain/scheduling"
	pkgerrors "studypace/pkg/errors"
)

// GenerateScheduleResult is the outcome of one generation pass
type GenerateScheduleResult struct {
	Entries      []*entities.ScheduleEntry
	TargetMet    bool
	SkippedUnits []valueobjects.UnitID
}

// GenerateScheduleOrchestrator runs the full generation unit of work:
// lock the learner, rank the material's units, pack them into days, and
// commit the batch atomically.
type GenerateScheduleOrchestrator struct {
	entryRepo   ports.EntryRepository
	reviewRepo  ports.ReviewRepository
	profileRepo ports.ProfileRepository
	unitRepo    ports.UnitRepository
	locker      ports.LearnerLocker
	publisher   ports.EventPublisher
	model       *memory.Model
	ranker      *ranking.Ranker
	builder     *scheduling.Builder
	estimator   *cogload.Estimator
	cfg         *config.DomainConfig
	logger      *zap.Logger
}

// NewGenerateScheduleOrchestrator creates the orchestrator
func NewGenerateScheduleOrchestrator(
	entryRepo ports.EntryRepository,
	reviewRepo ports.ReviewRepository,
	profileRepo ports.ProfileRepository,
	unitRepo ports.UnitRepository,
	locker ports.LearnerLocker,
	publisher ports.EventPublisher,
	model *memory.Model,
	ranker *ranking.Ranker,
	builder *scheduling.Builder,
	estimator *cogload.Estimator,
	cfg *config.DomainConfig,
	logger *zap.Logger,
) *GenerateScheduleOrchestrator {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GenerateScheduleOrchestrator{
		entryRepo:   entryRepo,
		reviewRepo:  reviewRepo,
		profileRepo: profileRepo,
		unitRepo:    unitRepo,
		locker:      locker,
		publisher:   publisher,
		model:       model,
		ranker:      ranker,
		builder:     builder,
		estimator:   estimator,
		cfg:         cfg,
		logger:      logger,
	}
}

// Handle executes the generate schedule command
func (h *GenerateScheduleOrchestrator) Handle(ctx context.Context, cmd commands.GenerateScheduleCommand) (*GenerateScheduleResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, pkgerrors.NewValidationError(err.Error())
	}

	learnerID, err := valueobjects.NewLearnerID(cmd.LearnerID)
	if err != nil {
		return nil, pkgerrors.NewValidationError(err.Error())
	}

	units, err := h.unitRepo.ListByMaterial(ctx, cmd.MaterialID)
	if err != nil {
		return nil, err
	}
	if len(units) == 0 {
		return nil, pkgerrors.NewNotFoundError("material")
	}

	// Generation is a read-modify-write over the learner's entry set, so it
	// runs under the per-learner lock
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

	now := time.Now()
	openEntries, err := h.entryRepo.ListOpen(ctx, learnerID)
	if err != nil {
		return nil, err
	}
	openUnits := make(map[string]bool, len(openEntries))
	for _, e := range openEntries {
		openUnits[e.UnitID().String()] = true
	}

	recentLoad, err := h.recentLoad(ctx, learnerID, now)
	if err != nil {
		return nil, err
	}

	candidates, reviewed, err := h.buildCandidates(ctx, learnerID, units, profile, now)
	if err != nil {
		return nil, err
	}

	ranked := h.ranker.Rank(candidates, now)

	items := make([]scheduling.Item, 0, len(ranked))
	unitsByID := make(map[string]*entities.MaterialUnit, len(units))
	for _, u := range units {
		unitsByID[u.ID().String()] = u
	}
	for i, c := range ranked {
		unit := unitsByID[c.UnitID.String()]
		items = append(items, scheduling.Item{
			UnitID:          c.UnitID,
			SessionType:     sessionTypeFor(i, reviewed[c.UnitID.String()]),
			Difficulty:      unit.Difficulty().Value(),
			DurationMinutes: unit.EstimatedMinutes(),
			IntervalDays:    h.model.OptimalIntervalDays(c.MemoryState),
			PriorityScore:   ranking.PriorityScore(i, len(ranked)),
			StartOffset:     unit.StartOffset(),
			EndOffset:       unit.EndOffset(),
		})
	}

	plan, err := h.builder.Build(
		learnerID, items, now, cmd.TargetDate,
		cmd.DailyStudyMinutes, profile.CognitiveLoadLimit(), recentLoad, openUnits,
	)
	if err != nil {
		return nil, err
	}

	// All-or-nothing commit of the generation batch
	if len(plan.Entries) > 0 {
		if err := h.entryRepo.SaveBatch(ctx, plan.Entries); err != nil {
			return nil, err
		}
	}

	h.publishEntryEvents(ctx, plan.Entries)

	h.logger.Info("schedule generated",
		zap.String("learnerID", learnerID.String()),
		zap.String("materialID", cmd.MaterialID),
		zap.Int("entries", len(plan.Entries)),
		zap.Bool("targetMet", plan.TargetMet))

	return &GenerateScheduleResult{
		Entries:      plan.Entries,
		TargetMet:    plan.TargetMet,
		SkippedUnits: plan.SkippedUnits,
	}, nil
}

// buildCandidates derives a ranking candidate per unit from its review
// history. The returned map marks units that have been reviewed before.
func (h *GenerateScheduleOrchestrator) buildCandidates(
	ctx context.Context,
	learnerID valueobjects.LearnerID,
	units []*entities.MaterialUnit,
	profile *entities.LearnerProfile,
	now time.Time,
) ([]ranking.Candidate, map[string]bool, error) {
	candidates := make([]ranking.Candidate, 0, len(units))
	reviewed := make(map[string]bool, len(units))

	for _, unit := range units {
		records, err := h.reviewRepo.ListByUnit(ctx, learnerID, unit.ID())
		if err != nil {
			return nil, nil, err
		}

		state := deriveMemoryState(h.model, records, profile.RetentionRate(), unit.Difficulty().Value(), now)

		// Unreviewed units are due immediately; reviewed units come due one
		// optimal interval after their last review
		dueAt := now
		if len(records) > 0 {
			reviewed[unit.ID().String()] = true
			interval := h.model.OptimalIntervalDays(state)
			dueAt = state.LastReviewedAt.AddDate(0, 0, interval)
		}

		candidates = append(candidates, ranking.Candidate{
			UnitID:      unit.ID(),
			Difficulty:  unit.Difficulty().Value(),
			DueAt:       dueAt,
			MemoryState: state,
		})
	}

	return candidates, reviewed, nil
}

// recentLoad sums the cognitive load of the learner's sessions over the
// trailing 24 hours
func (h *GenerateScheduleOrchestrator) recentLoad(ctx context.Context, learnerID valueobjects.LearnerID, now time.Time) (float64, error) {
	recent, err := h.entryRepo.ListByDateRange(ctx, learnerID, now.Add(-24*time.Hour), now)
	if err != nil {
		return 0, err
	}
	var load float64
	for _, e := range recent {
		if e.Status() == entities.StatusCompleted {
			load += e.CognitiveLoadScore()
		}
	}
	return load, nil
}

// sessionTypeFor picks the session type for a placement. First exposures
// are study sessions; reviewed units alternate between review and a
// periodic assessment.
func sessionTypeFor(position int, hasHistory bool) entities.SessionType {
	if !hasHistory {
		return entities.SessionStudy
	}
	if (position+1)%3 == 0 {
		return entities.SessionAssessment
	}
	return entities.SessionReview
}

func (h *GenerateScheduleOrchestrator) publishEntryEvents(ctx context.Context, entries []*entities.ScheduleEntry) {
	for _, entry := range entries {
		if err := h.publisher.PublishBatch(ctx, entry.GetUncommittedEvents()); err != nil {
			// Events are advisory; failures must not roll back the batch
			h.logger.Warn("failed to publish entry events",
				zap.String("entryID", entry.ID().String()),
				zap.Error(err))
		}
		entry.MarkEventsAsCommitted()
	}
}
