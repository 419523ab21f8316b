package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"studypace/application/commands"
	cmdhandlers "studypace/application/commands/handlers"
	"studypace/application/queries"
	qryhandlers "studypace/application/queries/handlers"
	"studypace/pkg/auth"
	"studypace/pkg/common"
	"studypace/pkg/utils"
)

const maxRequestBody = 1 << 20 // 1 MiB

// ScheduleHandler handles schedule-related HTTP requests
type ScheduleHandler struct {
	generate  *cmdhandlers.GenerateScheduleOrchestrator
	adapt     *cmdhandlers.AdaptSchedulesHandler
	lifecycle *cmdhandlers.EntryLifecycleHandler
	list      *qryhandlers.ListEntriesHandler
	logger    *zap.Logger
}

// NewScheduleHandler creates a new schedule handler
func NewScheduleHandler(
	generate *cmdhandlers.GenerateScheduleOrchestrator,
	adapt *cmdhandlers.AdaptSchedulesHandler,
	lifecycle *cmdhandlers.EntryLifecycleHandler,
	list *qryhandlers.ListEntriesHandler,
	logger *zap.Logger,
) *ScheduleHandler {
	return &ScheduleHandler{
		generate:  generate,
		adapt:     adapt,
		lifecycle: lifecycle,
		list:      list,
		logger:    logger,
	}
}

// GenerateScheduleRequest is the body for POST /schedules/generate
type GenerateScheduleRequest struct {
	MaterialID        string    `json:"material_id" validate:"required"`
	TargetDate        time.Time `json:"target_date" validate:"required"`
	DailyStudyMinutes int       `json:"daily_study_minutes" validate:"required,gt=0"`
}

// GenerateSchedule handles POST /schedules/generate
func (h *ScheduleHandler) GenerateSchedule(w http.ResponseWriter, r *http.Request) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		common.RespondAppError(w, err)
		return
	}

	var req GenerateScheduleRequest
	if err := common.ParseJSONBody(r, &req, maxRequestBody); err != nil {
		common.RespondError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		common.RespondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	result, err := h.generate.Handle(r.Context(), commands.GenerateScheduleCommand{
		LearnerID:         user.LearnerID,
		MaterialID:        req.MaterialID,
		TargetDate:        req.TargetDate,
		DailyStudyMinutes: req.DailyStudyMinutes,
	})
	if err != nil {
		common.RespondAppError(w, err)
		return
	}

	skipped := make([]string, 0, len(result.SkippedUnits))
	for _, id := range result.SkippedUnits {
		skipped = append(skipped, id.String())
	}
	common.RespondJSON(w, http.StatusCreated, map[string]interface{}{
		"entries":       toEntryResponses(result.Entries),
		"target_met":    result.TargetMet,
		"skipped_units": skipped,
	})
}

// ListEntries handles GET /schedules
func (h *ScheduleHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		common.RespondAppError(w, err)
		return
	}

	q := queries.ListEntriesQuery{LearnerID: user.LearnerID}
	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			common.RespondError(w, http.StatusBadRequest, "INVALID_PARAM", "from must be RFC3339")
			return
		}
		q.From = t
	}
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			common.RespondError(w, http.StatusBadRequest, "INVALID_PARAM", "to must be RFC3339")
			return
		}
		q.To = t
	}
	pagination := common.ExtractPaginationParams(r)
	q.Page = pagination.Page
	q.PageSize = pagination.PageSize

	result, err := h.list.Handle(r.Context(), q)
	if err != nil {
		common.RespondAppError(w, err)
		return
	}

	common.RespondWithMeta(w, http.StatusOK, result.Entries, &common.MetaInfo{
		Pagination: common.BuildPaginationMeta(result.Page, result.PageSize, result.Total),
	})
}

// CompleteEntryRequest is the body for POST /schedules/{entryID}/complete
type CompleteEntryRequest struct {
	CompletedAt time.Time `json:"completed_at"`
}

// CompleteEntry handles POST /schedules/{entryID}/complete
func (h *ScheduleHandler) CompleteEntry(w http.ResponseWriter, r *http.Request) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		common.RespondAppError(w, err)
		return
	}

	var req CompleteEntryRequest
	if r.ContentLength > 0 {
		if err := common.ParseJSONBody(r, &req, maxRequestBody); err != nil {
			common.RespondError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
			return
		}
	}

	entry, err := h.lifecycle.HandleComplete(r.Context(), commands.CompleteEntryCommand{
		LearnerID:   user.LearnerID,
		EntryID:     chi.URLParam(r, "entryID"),
		CompletedAt: req.CompletedAt,
	})
	if err != nil {
		common.RespondAppError(w, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, toEntryResponse(entry))
}

// RescheduleEntryRequest is the body for POST /schedules/{entryID}/reschedule
type RescheduleEntryRequest struct {
	NewTime time.Time `json:"new_time" validate:"required"`
}

// RescheduleEntry handles POST /schedules/{entryID}/reschedule
func (h *ScheduleHandler) RescheduleEntry(w http.ResponseWriter, r *http.Request) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		common.RespondAppError(w, err)
		return
	}

	var req RescheduleEntryRequest
	if err := common.ParseJSONBody(r, &req, maxRequestBody); err != nil {
		common.RespondError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		common.RespondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	replacement, err := h.lifecycle.HandleReschedule(r.Context(), commands.RescheduleEntryCommand{
		LearnerID: user.LearnerID,
		EntryID:   chi.URLParam(r, "entryID"),
		NewTime:   req.NewTime,
	})
	if err != nil {
		common.RespondAppError(w, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, toEntryResponse(replacement))
}

// AdaptSchedulesRequest is the body for POST /schedules/adapt
type AdaptSchedulesRequest struct {
	MaterialID string `json:"material_id,omitempty"`
}

// AdaptSchedules handles POST /schedules/adapt
func (h *ScheduleHandler) AdaptSchedules(w http.ResponseWriter, r *http.Request) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		common.RespondAppError(w, err)
		return
	}

	var req AdaptSchedulesRequest
	if r.ContentLength > 0 {
		if err := common.ParseJSONBody(r, &req, maxRequestBody); err != nil {
			common.RespondError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
			return
		}
	}

	result, err := h.adapt.Handle(r.Context(), commands.AdaptSchedulesCommand{
		LearnerID:  user.LearnerID,
		MaterialID: req.MaterialID,
	})
	if err != nil {
		common.RespondAppError(w, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"entries_examined":    result.EntriesExamined,
		"entries_skipped":     result.EntriesSkipped,
		"entries_rescheduled": result.EntriesRescheduled,
		"actions":             result.Actions,
	})
}
