package analysis

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studypace/domain/core/entities"
	"studypace/domain/core/valueobjects"
	"studypace/domain/memory"
)

func newTestAnalyzer() *Analyzer {
	return NewAnalyzer(nil, memory.NewModel(nil))
}

func makeRecords(t *testing.T, scores []float64) []*entities.ReviewRecord {
	t.Helper()

	learnerID, err := valueobjects.NewLearnerID("learner-1")
	require.NoError(t, err)
	unitID := valueobjects.NewUnitID()
	base := time.Now().Add(-time.Duration(len(scores)) * 24 * time.Hour)

	records := make([]*entities.ReviewRecord, len(scores))
	for i, s := range scores {
		score, err := valueobjects.NewScore(s)
		require.NoError(t, err)
		records[i], err = entities.NewReviewRecord(
			learnerID, unitID, fmt.Sprintf("event-%d", i), score,
			20, 0.8, 2.0, base.Add(time.Duration(i)*24*time.Hour),
		)
		require.NoError(t, err)
	}
	return records
}

func TestSnapshot_Averages(t *testing.T) {
	analyzer := newTestAnalyzer()
	records := makeRecords(t, []float64{0.6, 0.8, 1.0})

	snap := analyzer.Snapshot(records, nil, memory.State{}, time.Now())

	assert.Equal(t, 3, snap.ReviewCount)
	assert.InDelta(t, 0.8, snap.AverageScore, 1e-9)
	assert.InDelta(t, 20, snap.AverageStudyMinutes, 1e-9)
	assert.Nil(t, snap.ProjectedMasteryDate)
}

func TestSnapshot_EmptyHistory(t *testing.T) {
	analyzer := newTestAnalyzer()

	snap := analyzer.Snapshot(nil, nil, memory.State{}, time.Now())

	assert.Equal(t, 0, snap.ReviewCount)
	assert.Equal(t, TrendStable, snap.Trend)
	assert.Equal(t, 0.0, snap.CompletionRate)
}

func TestSnapshot_TrendClassification(t *testing.T) {
	analyzer := newTestAnalyzer()

	improving := analyzer.Snapshot(makeRecords(t, []float64{0.4, 0.55, 0.7, 0.85}), nil, memory.State{}, time.Now())
	assert.Equal(t, TrendImproving, improving.Trend)

	declining := analyzer.Snapshot(makeRecords(t, []float64{0.9, 0.75, 0.6, 0.45}), nil, memory.State{}, time.Now())
	assert.Equal(t, TrendDeclining, declining.Trend)

	stable := analyzer.Snapshot(makeRecords(t, []float64{0.7, 0.7, 0.7, 0.7}), nil, memory.State{}, time.Now())
	assert.Equal(t, TrendStable, stable.Trend)

	// Too few records to call a trend
	short := analyzer.Snapshot(makeRecords(t, []float64{0.2, 0.9}), nil, memory.State{}, time.Now())
	assert.Equal(t, TrendStable, short.Trend)
}

func TestSnapshot_MasteryProjection(t *testing.T) {
	analyzer := newTestAnalyzer()
	now := time.Now()
	state := memory.State{HalfLifeDays: 10, LastReviewedAt: now}

	snap := analyzer.Snapshot(nil, nil, state, now)

	require.NotNil(t, snap.ProjectedMasteryDate)
	assert.True(t, snap.ProjectedMasteryDate.After(now))
	assert.Equal(t, 10.0, snap.CurrentHalfLifeDays)

	// A longer half-life pushes mastery further out
	longer := analyzer.Snapshot(nil, nil, memory.State{HalfLifeDays: 20, LastReviewedAt: now}, now)
	require.NotNil(t, longer.ProjectedMasteryDate)
	assert.True(t, longer.ProjectedMasteryDate.After(*snap.ProjectedMasteryDate))
}

func TestSnapshot_CompletionRate(t *testing.T) {
	analyzer := newTestAnalyzer()
	learnerID, err := valueobjects.NewLearnerID("learner-1")
	require.NoError(t, err)

	newEntry := func() *entities.ScheduleEntry {
		e, err := entities.NewScheduleEntry(
			learnerID, valueobjects.NewUnitID(), entities.SessionReview,
			time.Now(), 30, 0.5, 0.2, 1, 0, 100,
		)
		require.NoError(t, err)
		return e
	}

	completed := newEntry()
	require.NoError(t, completed.Complete(time.Now()))
	skipped := newEntry()
	require.NoError(t, skipped.Skip("missed"))
	open := newEntry()

	snap := analyzer.Snapshot(nil, []*entities.ScheduleEntry{completed, skipped, open}, memory.State{}, time.Now())
	assert.InDelta(t, 0.5, snap.CompletionRate, 1e-9)
}

func TestApplyObservation(t *testing.T) {
	analyzer := newTestAnalyzer()
	learnerID, err := valueobjects.NewLearnerID("learner-1")
	require.NoError(t, err)
	profile, err := entities.NewLearnerProfile(learnerID)
	require.NoError(t, err)

	before := profile.RetentionRate()
	limitBefore := profile.CognitiveLoadLimit()

	// A strong score lifts retention and widens the load ceiling
	require.NoError(t, analyzer.ApplyObservation(profile, 0.95, 10, 2500))
	assert.Greater(t, profile.RetentionRate(), before)
	assert.Greater(t, profile.CognitiveLoadLimit(), limitBefore)
	assert.Greater(t, profile.ReadingSpeed(), 0.0)

	// A weak score narrows the ceiling again
	limitAfter := profile.CognitiveLoadLimit()
	require.NoError(t, analyzer.ApplyObservation(profile, 0.3, 10, 0))
	assert.Less(t, profile.CognitiveLoadLimit(), limitAfter)

	require.Error(t, analyzer.ApplyObservation(profile, 1.5, 10, 0))
	require.Error(t, analyzer.ApplyObservation(nil, 0.5, 10, 0))
}
