package cogload

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimate_BaseFormula(t *testing.T) {
	est := NewEstimator(nil)

	// 30 minutes at difficulty 0.5 with no recent load: 0.5h * 0.5 / 1.0
	load, err := est.Estimate(30, 0.5, 1.0, 0)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, load, 1e-9)
}

func TestEstimate_RecentLoadInflates(t *testing.T) {
	est := NewEstimator(nil)

	rested, err := est.Estimate(30, 0.5, 1.0, 0)
	require.NoError(t, err)

	fatigued, err := est.Estimate(30, 0.5, 1.0, 2.0)
	require.NoError(t, err)

	assert.Greater(t, fatigued, rested)
	// 10% inflation per unit of trailing load
	assert.InDelta(t, rested*1.2, fatigued, 1e-9)
}

func TestEstimate_LowerLimitRaisesLoad(t *testing.T) {
	est := NewEstimator(nil)

	normal, err := est.Estimate(60, 0.8, 1.0, 0)
	require.NoError(t, err)

	constrained, err := est.Estimate(60, 0.8, 0.5, 0)
	require.NoError(t, err)

	assert.InDelta(t, normal*2, constrained, 1e-9)
}

func TestEstimate_CanExceedOne(t *testing.T) {
	est := NewEstimator(nil)

	load, err := est.Estimate(120, 1.0, 0.5, 3.0)
	require.NoError(t, err)
	assert.Greater(t, load, 1.0)
}

func TestEstimate_Validation(t *testing.T) {
	est := NewEstimator(nil)

	_, err := est.Estimate(0, 0.5, 1.0, 0)
	require.Error(t, err)

	_, err = est.Estimate(30, 1.5, 1.0, 0)
	require.Error(t, err)

	_, err = est.Estimate(30, 0.5, 0, 0)
	require.Error(t, err)

	_, err = est.Estimate(30, 0.5, 1.0, -1)
	require.Error(t, err)
}

func TestAdmissible(t *testing.T) {
	est := NewEstimator(nil)

	assert.True(t, est.Admissible(0.5, 0.5))
	assert.True(t, est.Admissible(0, 0.25))
	assert.False(t, est.Admissible(0.8, 0.25))
}

func TestAdmissible_NormalizedAgainstLowLimit(t *testing.T) {
	est := NewEstimator(nil)

	// Estimate already divides by the learner's limit, so a lowered limit
	// inflates the normalized load rather than shrinking the ceiling
	load, err := est.Estimate(60, 1.0, 0.5, 0)
	require.NoError(t, err)
	assert.InDelta(t, 2.0, load, 1e-9)
	assert.False(t, est.Admissible(0, load))

	load, err = est.Estimate(60, 1.0, 1.0, 0)
	require.NoError(t, err)
	assert.True(t, est.Admissible(0, load))
}
