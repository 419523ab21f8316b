package queries

import (
	"errors"
	"time"
)

// GetLearningCurveQuery requests the observed and predicted recall history
// for a learner, scoped to one unit or to a whole material
type GetLearningCurveQuery struct {
	LearnerID  string `json:"learner_id" validate:"required"`
	UnitID     string `json:"unit_id,omitempty" validate:"omitempty,uuid"`
	MaterialID string `json:"material_id,omitempty"`
}

// Validate validates the query
func (q GetLearningCurveQuery) Validate() error {
	if q.LearnerID == "" {
		return errors.New("learner ID is required")
	}
	if q.UnitID == "" && q.MaterialID == "" {
		return errors.New("unit ID or material ID is required")
	}
	if q.UnitID != "" && q.MaterialID != "" {
		return errors.New("unit ID and material ID are mutually exclusive")
	}
	return nil
}

// CurvePoint is one observation on the learning curve
type CurvePoint struct {
	Timestamp       time.Time `json:"timestamp"`
	ObservedScore   float64   `json:"observed_score"`
	PredictedRecall float64   `json:"predicted_recall"`
	HalfLifeDays    float64   `json:"half_life_days"`
}

// LearningCurveResult is the learning curve response
type LearningCurveResult struct {
	UnitID               string       `json:"unit_id,omitempty"`
	MaterialID           string       `json:"material_id,omitempty"`
	Points               []CurvePoint `json:"points"`
	Trend                string       `json:"trend"`
	TrendSlope           float64      `json:"trend_slope"`
	CurrentHalfLifeDays  float64      `json:"current_half_life_days"`
	ProjectedMasteryDate *time.Time   `json:"projected_mastery_date,omitempty"`
}
