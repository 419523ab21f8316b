package handlers

import (
	"context"
	"time"

	"go.uber.org/zap"

	"studypace/application/ports"
	"studypace/application/queries"
	"studypace/domain/core/entities"
	"studypace/domain/core/valueobjects"
	pkgerrors "studypace/pkg/errors"
)

const defaultPageSize = 50

// ListEntriesHandler serves the paginated schedule listing
type ListEntriesHandler struct {
	entryRepo ports.EntryRepository
	logger    *zap.Logger
}

// NewListEntriesHandler creates the handler
func NewListEntriesHandler(entryRepo ports.EntryRepository, logger *zap.Logger) *ListEntriesHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ListEntriesHandler{entryRepo: entryRepo, logger: logger}
}

// Handle executes the list entries query
func (h *ListEntriesHandler) Handle(ctx context.Context, q queries.ListEntriesQuery) (*queries.ListEntriesResult, error) {
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
		from = now.AddDate(0, 0, -7)
	}
	if to.IsZero() {
		to = now.AddDate(0, 0, 30)
	}

	entries, err := h.entryRepo.ListByDateRange(ctx, learnerID, from, to)
	if err != nil {
		return nil, err
	}

	pageSize := q.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	// pages are 1-based
	page := q.Page
	if page < 1 {
		page = 1
	}

	total := len(entries)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	views := make([]queries.EntryView, 0, end-start)
	for _, e := range entries[start:end] {
		views = append(views, toEntryView(e))
	}

	return &queries.ListEntriesResult{
		Entries:  views,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	}, nil
}

func toEntryView(e *entities.ScheduleEntry) queries.EntryView {
	view := queries.EntryView{
		ID:                 e.ID().String(),
		UnitID:             e.UnitID().String(),
		SessionType:        string(e.SessionType()),
		ScheduledAt:        e.ScheduledAt(),
		DurationMinutes:    e.DurationMinutes(),
		PriorityScore:      e.PriorityScore(),
		CognitiveLoadScore: e.CognitiveLoadScore(),
		IntervalDays:       e.IntervalDays(),
		Status:             string(e.Status()),
		StartOffset:        e.StartOffset(),
		EndOffset:          e.EndOffset(),
		CompletedAt:        e.CompletedAt(),
	}
	if !e.ReplacedBy().IsZero() {
		view.ReplacedBy = e.ReplacedBy().String()
	}
	return view
}
