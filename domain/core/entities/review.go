package entities

import (
	"time"

	"studypace/domain/core/valueobjects"
	pkgerrors "studypace/pkg/errors"
)

// ReviewRecord is one observed study outcome. Records are append-only; the
// memory model consumes them in timestamp order.
type ReviewRecord struct {
	id              string
	learnerID       valueobjects.LearnerID
	unitID          valueobjects.UnitID
	eventID         string
	score           valueobjects.Score
	elapsedMinutes  float64
	predictedRecall float64
	halfLifeDays    float64
	recordedAt      time.Time
}

// NewReviewRecord creates a record with validation
func NewReviewRecord(
	learnerID valueobjects.LearnerID,
	unitID valueobjects.UnitID,
	eventID string,
	score valueobjects.Score,
	elapsedMinutes float64,
	predictedRecall, halfLifeDays float64,
	recordedAt time.Time,
) (*ReviewRecord, error) {
	if learnerID.IsZero() {
		return nil, pkgerrors.NewValidationError("learnerID cannot be empty")
	}
	if unitID.IsZero() {
		return nil, pkgerrors.NewValidationError("unitID cannot be empty")
	}
	if eventID == "" {
		return nil, pkgerrors.NewValidationError("eventID cannot be empty")
	}
	if elapsedMinutes < 0 {
		return nil, pkgerrors.NewValidationError("elapsed time cannot be negative")
	}
	if halfLifeDays <= 0 {
		return nil, pkgerrors.NewValidationError("half-life must be positive")
	}
	if recordedAt.IsZero() {
		return nil, pkgerrors.NewValidationError("recordedAt cannot be zero")
	}

	return &ReviewRecord{
		id:              valueobjects.NewEntryID().String(),
		learnerID:       learnerID,
		unitID:          unitID,
		eventID:         eventID,
		score:           score,
		elapsedMinutes:  elapsedMinutes,
		predictedRecall: predictedRecall,
		halfLifeDays:    halfLifeDays,
		recordedAt:      recordedAt,
	}, nil
}

// ReconstructReviewRecord reconstructs a record from repository data
func ReconstructReviewRecord(
	id string,
	learnerID valueobjects.LearnerID,
	unitID valueobjects.UnitID,
	eventID string,
	score valueobjects.Score,
	elapsedMinutes, predictedRecall, halfLifeDays float64,
	recordedAt time.Time,
) *ReviewRecord {
	return &ReviewRecord{
		id:              id,
		learnerID:       learnerID,
		unitID:          unitID,
		eventID:         eventID,
		score:           score,
		elapsedMinutes:  elapsedMinutes,
		predictedRecall: predictedRecall,
		halfLifeDays:    halfLifeDays,
		recordedAt:      recordedAt,
	}
}

// ID returns the record's unique identifier
func (r *ReviewRecord) ID() string {
	return r.id
}

// LearnerID returns the owning learner's ID
func (r *ReviewRecord) LearnerID() valueobjects.LearnerID {
	return r.learnerID
}

// UnitID returns the reviewed unit's ID
func (r *ReviewRecord) UnitID() valueobjects.UnitID {
	return r.unitID
}

// EventID returns the triggering event's ID, used for idempotent replay
func (r *ReviewRecord) EventID() string {
	return r.eventID
}

// Score returns the observed performance score
func (r *ReviewRecord) Score() valueobjects.Score {
	return r.score
}

// ElapsedMinutes returns how long the session took
func (r *ReviewRecord) ElapsedMinutes() float64 {
	return r.elapsedMinutes
}

// PredictedRecall returns the recall probability predicted before the review
func (r *ReviewRecord) PredictedRecall() float64 {
	return r.predictedRecall
}

// HalfLifeDays returns the half-life in effect after this review
func (r *ReviewRecord) HalfLifeDays() float64 {
	return r.halfLifeDays
}

// RecordedAt returns when the review happened
func (r *ReviewRecord) RecordedAt() time.Time {
	return r.recordedAt
}
