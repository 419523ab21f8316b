package memory

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studypace/domain/config"
)

func TestSeed_BoundsAndScaling(t *testing.T) {
	model := NewModel(nil)
	now := time.Now()

	// Hard material for a weak retainer bottoms out at the floor
	weak := model.Seed(0, 1.0, now)
	assert.Equal(t, 0.5, weak.HalfLifeDays)

	// Easy material for a strong retainer seeds well above the floor
	strong := model.Seed(1.0, 0.0, now)
	assert.Greater(t, strong.HalfLifeDays, weak.HalfLifeDays)
	assert.LessOrEqual(t, strong.HalfLifeDays, 30.0)
}

func TestPredictRecall_Decay(t *testing.T) {
	model := NewModel(nil)
	now := time.Now()
	state := State{HalfLifeDays: 2, LastReviewedAt: now}

	// At exactly one half-life, recall is 0.5
	p := model.PredictRecall(state, now.Add(48*time.Hour))
	assert.InDelta(t, 0.5, p, 1e-9)

	// Recall is monotonically decreasing in elapsed time
	p1 := model.PredictRecall(state, now.Add(24*time.Hour))
	p2 := model.PredictRecall(state, now.Add(72*time.Hour))
	assert.Greater(t, p1, p2)

	// No elapsed time means full recall
	assert.Equal(t, 1.0, model.PredictRecall(state, now))
}

func TestUpdate_StrongReviewExtendsHalfLife(t *testing.T) {
	model := NewModel(nil)
	now := time.Now()

	// First review one day after seeding, strong score
	seed := model.Seed(0.7, 0.72, now)
	updated, err := model.Update(seed, 0.72, 0.9, now.Add(24*time.Hour))
	require.NoError(t, err)

	assert.Greater(t, updated.HalfLifeDays, seed.HalfLifeDays)
	assert.Equal(t, 1, updated.Successes)
	assert.Equal(t, 0, updated.Failures)

	// Next interval never shrinks below the prior one after a strong review
	prior := model.OptimalIntervalDays(seed)
	next := model.OptimalIntervalDays(updated)
	assert.GreaterOrEqual(t, next, prior)
}

func TestUpdate_WeakReviewShortensHalfLife(t *testing.T) {
	model := NewModel(nil)
	now := time.Now()

	seed := model.Seed(0.7, 0.72, now)
	updated, err := model.Update(seed, 0.72, 0.4, now.Add(24*time.Hour))
	require.NoError(t, err)

	assert.Less(t, updated.HalfLifeDays, seed.HalfLifeDays)
	assert.Equal(t, 1, updated.Failures)
}

func TestUpdate_MonotoneInScore(t *testing.T) {
	model := NewModel(nil)
	now := time.Now()
	seed := model.Seed(0.5, 0.5, now)
	at := now.Add(48 * time.Hour)

	scores := []float64{0, 0.2, 0.4, 0.59, 0.6, 0.75, 0.9, 1.0}
	prev := -1.0
	for _, score := range scores {
		updated, err := model.Update(seed, 0.5, score, at)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, updated.HalfLifeDays, prev, "score %g", score)
		prev = updated.HalfLifeDays
	}
}

func TestUpdate_ClampsToBounds(t *testing.T) {
	model := NewModel(nil)
	now := time.Now()

	// Drive the half-life up with repeated perfect reviews
	state := model.Seed(1.0, 0.0, now)
	at := now
	for i := 0; i < 50; i++ {
		at = at.Add(10 * 24 * time.Hour)
		var err error
		state, err = model.Update(state, 0.0, 1.0, at)
		require.NoError(t, err)
	}
	assert.LessOrEqual(t, state.HalfLifeDays, 30.0)

	// Drive it down with repeated failures
	state = model.Seed(0.0, 1.0, now)
	at = now
	for i := 0; i < 50; i++ {
		at = at.Add(time.Hour)
		var err error
		state, err = model.Update(state, 1.0, 0.0, at)
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, state.HalfLifeDays, 0.5)
}

func TestUpdate_RejectsInvalidInputs(t *testing.T) {
	model := NewModel(nil)
	now := time.Now()
	state := model.Seed(0.5, 0.5, now)

	_, err := model.Update(state, 0.5, 1.5, now)
	require.Error(t, err)

	_, err = model.Update(state, -0.1, 0.5, now)
	require.Error(t, err)

	_, err = model.Update(State{}, 0.5, 0.5, now)
	require.Error(t, err)

	// A review timestamped at or before the last one must be rejected, not
	// folded with a clamped elapsed time
	_, err = model.Update(state, 0.5, 0.8, now)
	require.Error(t, err)

	_, err = model.Update(state, 0.5, 0.8, now.Add(-time.Hour))
	require.Error(t, err)
}

func TestOptimalIntervalDays_Bounds(t *testing.T) {
	model := NewModel(config.DefaultDomainConfig())

	// Short half-life floors at one day
	assert.Equal(t, 1, model.OptimalIntervalDays(State{HalfLifeDays: 0.5}))

	// The cap holds even for the longest half-life times an extreme target
	long := model.OptimalIntervalDays(State{HalfLifeDays: 30})
	assert.LessOrEqual(t, long, 30)
	assert.GreaterOrEqual(t, long, 1)
}

func TestMasteryHorizonDays(t *testing.T) {
	model := NewModel(nil)
	state := State{HalfLifeDays: 10}

	horizon := model.MasteryHorizonDays(state, 0.9)
	expected := -10 * math.Log2(0.9)
	assert.InDelta(t, expected, horizon, 1e-9)

	assert.Equal(t, 0.0, model.MasteryHorizonDays(state, 1.0))
	assert.Equal(t, 0.0, model.MasteryHorizonDays(state, 0))
}
