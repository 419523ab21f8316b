package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"studypace/application/commands"
	cmdhandlers "studypace/application/commands/handlers"
	"studypace/application/queries"
	qryhandlers "studypace/application/queries/handlers"
	"studypace/pkg/auth"
	"studypace/pkg/common"
	"studypace/pkg/utils"
)

// PerformanceHandler handles performance-related HTTP requests
type PerformanceHandler struct {
	record      *cmdhandlers.RecordPerformanceHandler
	performance *qryhandlers.PerformanceQueryHandler
	logger      *zap.Logger
}

// NewPerformanceHandler creates a new performance handler
func NewPerformanceHandler(
	record *cmdhandlers.RecordPerformanceHandler,
	performance *qryhandlers.PerformanceQueryHandler,
	logger *zap.Logger,
) *PerformanceHandler {
	return &PerformanceHandler{
		record:      record,
		performance: performance,
		logger:      logger,
	}
}

// RecordPerformanceRequest is the body for POST /performance/record
type RecordPerformanceRequest struct {
	UnitID         string    `json:"unit_id" validate:"required,uuid"`
	EventID        string    `json:"event_id" validate:"required"`
	ObservedScore  float64   `json:"observed_score" validate:"min=0,max=1"`
	ElapsedMinutes float64   `json:"elapsed_minutes" validate:"gt=0"`
	Timestamp      time.Time `json:"timestamp"`
}

// RecordPerformance handles POST /performance/record
func (h *PerformanceHandler) RecordPerformance(w http.ResponseWriter, r *http.Request) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		common.RespondAppError(w, err)
		return
	}

	var req RecordPerformanceRequest
	if err := common.ParseJSONBody(r, &req, maxRequestBody); err != nil {
		common.RespondError(w, http.StatusBadRequest, "INVALID_BODY", err.Error())
		return
	}
	if err := utils.ValidateStruct(req); err != nil {
		common.RespondError(w, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	if req.Timestamp.IsZero() {
		req.Timestamp = time.Now()
	}

	result, err := h.record.Handle(r.Context(), commands.RecordPerformanceCommand{
		LearnerID:      user.LearnerID,
		UnitID:         req.UnitID,
		EventID:        req.EventID,
		ObservedScore:  req.ObservedScore,
		ElapsedMinutes: req.ElapsedMinutes,
		Timestamp:      req.Timestamp,
	})
	if err != nil {
		common.RespondAppError(w, err)
		return
	}

	status := http.StatusCreated
	if result.AlreadyProcessed {
		status = http.StatusOK
	}
	body := map[string]interface{}{
		"updated_half_life_days": result.UpdatedHalfLifeDays,
		"predicted_recall":       result.PredictedRecall,
		"next_interval_days":     result.NextIntervalDays,
		"adaptations_applied":    result.AdaptationsApplied,
		"already_processed":      result.AlreadyProcessed,
	}
	if result.FollowUpEntry != nil {
		body["follow_up_entry"] = toEntryResponse(result.FollowUpEntry)
	}
	common.RespondJSON(w, status, body)
}

// LearningCurve handles GET /performance/curve
func (h *PerformanceHandler) LearningCurve(w http.ResponseWriter, r *http.Request) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		common.RespondAppError(w, err)
		return
	}

	result, err := h.performance.HandleLearningCurve(r.Context(), queries.GetLearningCurveQuery{
		LearnerID:  user.LearnerID,
		UnitID:     r.URL.Query().Get("unit_id"),
		MaterialID: r.URL.Query().Get("material_id"),
	})
	if err != nil {
		common.RespondAppError(w, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, result)
}

// Summary handles GET /performance/summary
func (h *PerformanceHandler) Summary(w http.ResponseWriter, r *http.Request) {
	user, err := auth.GetUserFromContext(r.Context())
	if err != nil {
		common.RespondAppError(w, err)
		return
	}

	q := queries.GetPerformanceSummaryQuery{LearnerID: user.LearnerID}
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

	result, err := h.performance.HandleSummary(r.Context(), q)
	if err != nil {
		common.RespondAppError(w, err)
		return
	}

	common.RespondJSON(w, http.StatusOK, result)
}
