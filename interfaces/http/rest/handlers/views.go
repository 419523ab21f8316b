package handlers

import (
	"time"

	"studypace/domain/core/entities"
)

// entryResponse is the wire shape for a schedule entry
type entryResponse struct {
	ID              string     `json:"id"`
	UnitID          string     `json:"unit_id"`
	SessionType     string     `json:"session_type"`
	ScheduledAt     time.Time  `json:"scheduled_at"`
	DurationMinutes int        `json:"duration_minutes"`
	PriorityScore   float64    `json:"priority_score"`
	CognitiveLoad   float64    `json:"cognitive_load"`
	IntervalDays    int        `json:"interval_days"`
	StartOffset     int        `json:"start_offset"`
	EndOffset       int        `json:"end_offset"`
	Status          string     `json:"status"`
	ReplacedBy      string     `json:"replaced_by,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

func toEntryResponse(e *entities.ScheduleEntry) entryResponse {
	resp := entryResponse{
		ID:              e.ID().String(),
		UnitID:          e.UnitID().String(),
		SessionType:     string(e.SessionType()),
		ScheduledAt:     e.ScheduledAt(),
		DurationMinutes: e.DurationMinutes(),
		PriorityScore:   e.PriorityScore(),
		CognitiveLoad:   e.CognitiveLoadScore(),
		IntervalDays:    e.IntervalDays(),
		StartOffset:     e.StartOffset(),
		EndOffset:       e.EndOffset(),
		Status:          string(e.Status()),
		CompletedAt:     e.CompletedAt(),
	}
	if !e.ReplacedBy().IsZero() {
		resp.ReplacedBy = e.ReplacedBy().String()
	}
	return resp
}

func toEntryResponses(entries []*entities.ScheduleEntry) []entryResponse {
	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toEntryResponse(e))
	}
	return out
}
