package scheduling

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studypace/domain/cogload"
	"studypace/domain/config"
	"studypace/domain/core/entities"
	"studypace/domain/core/valueobjects"
	pkgerrors "studypace/pkg/errors"
)

func newTestBuilder() *Builder {
	cfg := config.DefaultDomainConfig()
	return NewBuilder(cfg, cogload.NewEstimator(cfg))
}

func mustLearnerID(t *testing.T) valueobjects.LearnerID {
	t.Helper()
	id, err := valueobjects.NewLearnerID("learner-1")
	require.NoError(t, err)
	return id
}

func makeItems(n, minutes int, difficulty float64) []Item {
	items := make([]Item, n)
	for i := range items {
		items[i] = Item{
			UnitID:          valueobjects.NewUnitID(),
			SessionType:     entities.SessionStudy,
			Difficulty:      difficulty,
			DurationMinutes: minutes,
			IntervalDays:    1,
			PriorityScore:   1 - float64(i)*0.1,
			StartOffset:     i * 1000,
			EndOffset:       (i + 1) * 1000,
		}
	}
	return items
}

func TestBuild_FirstFitAcrossDays(t *testing.T) {
	builder := newTestBuilder()
	now := time.Now()

	// Five 30-minute units against a 90-minute daily budget: three land on
	// the first day, two on the second
	items := makeItems(5, 30, 0.5)
	plan, err := builder.Build(mustLearnerID(t), items, now, now.AddDate(0, 0, 2), 90, 1.0, 0, nil)
	require.NoError(t, err)
	require.Len(t, plan.Entries, 5)
	assert.True(t, plan.TargetMet)

	counts := map[string]int{}
	for _, e := range plan.Entries {
		counts[e.ScheduledAt().Format("2006-01-02")]++
	}
	require.Len(t, counts, 2)
	firstDay := plan.Entries[0].ScheduledAt().Format("2006-01-02")
	assert.Equal(t, 3, counts[firstDay])
}

func TestBuild_RespectsDailyMinutes(t *testing.T) {
	builder := newTestBuilder()
	now := time.Now()

	items := makeItems(4, 45, 0.3)
	plan, err := builder.Build(mustLearnerID(t), items, now, now.AddDate(0, 0, 10), 60, 1.0, 0, nil)
	require.NoError(t, err)
	require.Len(t, plan.Entries, 4)

	// 45-minute sessions cannot share a 60-minute day
	byDay := map[string]int{}
	for _, e := range plan.Entries {
		byDay[e.ScheduledAt().Format("2006-01-02")] += e.DurationMinutes()
	}
	for _, total := range byDay {
		assert.LessOrEqual(t, total, 60)
	}
	assert.Len(t, byDay, 4)
}

func TestBuild_RespectsLoadLimit(t *testing.T) {
	builder := newTestBuilder()
	now := time.Now()

	// Each 60-minute unit at difficulty 1.0 with limit 1.0 scores a full
	// load point, so days cannot hold more than one even though two would
	// fit the time budget
	items := makeItems(3, 60, 1.0)
	plan, err := builder.Build(mustLearnerID(t), items, now, now.AddDate(0, 0, 5), 180, 1.0, 0, nil)
	require.NoError(t, err)
	require.Len(t, plan.Entries, 3)

	byDay := map[string]float64{}
	for _, e := range plan.Entries {
		byDay[e.ScheduledAt().Format("2006-01-02")] += e.CognitiveLoadScore()
	}
	assert.Len(t, byDay, 3)
	for _, load := range byDay {
		assert.LessOrEqual(t, load, 1.0)
	}
}

func TestBuild_OverflowPastTargetDegradesGracefully(t *testing.T) {
	builder := newTestBuilder()
	now := time.Now()

	// Ten one-hour units cannot fit two 1-day windows at 60 min/day
	items := makeItems(10, 60, 0.2)
	plan, err := builder.Build(mustLearnerID(t), items, now, now.AddDate(0, 0, 2), 60, 1.5, 0, nil)
	require.NoError(t, err)

	require.Len(t, plan.Entries, 10)
	assert.False(t, plan.TargetMet)
}

func TestBuild_SkipsUnitsWithOpenEntries(t *testing.T) {
	builder := newTestBuilder()
	now := time.Now()

	items := makeItems(3, 30, 0.5)
	open := map[string]bool{items[1].UnitID.String(): true}

	plan, err := builder.Build(mustLearnerID(t), items, now, now.AddDate(0, 0, 3), 90, 1.0, 0, open)
	require.NoError(t, err)

	require.Len(t, plan.Entries, 2)
	require.Len(t, plan.SkippedUnits, 1)
	assert.True(t, plan.SkippedUnits[0].Equals(items[1].UnitID))

	for _, e := range plan.Entries {
		assert.False(t, e.UnitID().Equals(items[1].UnitID))
	}
}

func TestBuild_HigherPriorityPlacedEarlier(t *testing.T) {
	builder := newTestBuilder()
	now := time.Now()

	items := makeItems(6, 30, 0.5)
	plan, err := builder.Build(mustLearnerID(t), items, now, now.AddDate(0, 0, 5), 60, 1.0, 0, nil)
	require.NoError(t, err)
	require.Len(t, plan.Entries, 6)

	// Placement order follows the ranked input order
	for i := 1; i < len(plan.Entries); i++ {
		assert.False(t, plan.Entries[i].ScheduledAt().Before(plan.Entries[i-1].ScheduledAt()))
	}
	assert.True(t, plan.Entries[0].UnitID().Equals(items[0].UnitID))
}

func TestBuild_Validation(t *testing.T) {
	builder := newTestBuilder()
	now := time.Now()
	learnerID := mustLearnerID(t)

	_, err := builder.Build(learnerID, nil, now, now.Add(-time.Hour), 60, 1.0, 0, nil)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsValidation(err))

	_, err = builder.Build(learnerID, nil, now, now.AddDate(0, 0, 1), 5, 1.0, 0, nil)
	require.Error(t, err)

	_, err = builder.Build(learnerID, nil, now, now.AddDate(0, 0, 1), 60, 0, 0, nil)
	require.Error(t, err)
}

func TestBuild_OverloadedItemFailsInsteadOfLooping(t *testing.T) {
	builder := newTestBuilder()
	now := time.Now()

	// A 60-minute, difficulty-1.0 unit against a limit lowered to the floor
	// carries a normalized load of 2.0 and can never fit any day
	items := makeItems(1, 60, 1.0)
	done := make(chan struct{})
	var plan *Plan
	var err error
	go func() {
		plan, err = builder.Build(mustLearnerID(t), items, now, now.AddDate(0, 0, 2), 90, 0.5, 0, nil)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Build did not terminate")
	}
	require.Error(t, err)
	assert.True(t, pkgerrors.IsConflict(err))
	assert.Nil(t, plan)
}

// anyOverloaded reports whether some item alone exceeds the normalized
// daily load ceiling for the given limit
func anyOverloaded(items []Item, loadLimit float64) bool {
	for _, it := range items {
		if float64(it.DurationMinutes)/60*it.Difficulty/loadLimit > 1 {
			return true
		}
	}
	return false
}

func TestBuild_RandomBudgetsNeverExceeded(t *testing.T) {
	cfg := config.DefaultDomainConfig()
	builder := NewBuilder(cfg, cogload.NewEstimator(cfg))
	rng := rand.New(rand.NewSource(42))
	now := time.Now()
	learnerID := mustLearnerID(t)

	for trial := 0; trial < 20; trial++ {
		daily := 60 + rng.Intn(120)
		limit := cfg.MinLoadLimit + rng.Float64()*(cfg.MaxLoadLimit-cfg.MinLoadLimit)
		n := 1 + rng.Intn(12)
		items := make([]Item, n)
		for i := range items {
			items[i] = Item{
				UnitID:          valueobjects.NewUnitID(),
				SessionType:     entities.SessionReview,
				Difficulty:      rng.Float64(),
				DurationMinutes: 10 + rng.Intn(50),
				IntervalDays:    1,
				PriorityScore:   rng.Float64(),
				StartOffset:     0,
				EndOffset:       500,
			}
		}

		plan, err := builder.Build(learnerID, items, now, now.AddDate(0, 0, 1+rng.Intn(14)), daily, limit, 0, nil)
		if err != nil {
			// A build may only fail when some unit alone overloads a day
			require.True(t, anyOverloaded(items, limit), "trial %d limit %g", trial, limit)
			assert.True(t, pkgerrors.IsConflict(err), "trial %d", trial)
			continue
		}
		require.Len(t, plan.Entries, n)

		minutesByDay := map[string]int{}
		loadByDay := map[string]float64{}
		for _, e := range plan.Entries {
			day := e.ScheduledAt().Format("2006-01-02")
			minutesByDay[day] += e.DurationMinutes()
			loadByDay[day] += e.CognitiveLoadScore()
		}
		for day, total := range minutesByDay {
			assert.LessOrEqual(t, total, daily, "trial %d day %s", trial, day)
		}
		for day, load := range loadByDay {
			assert.LessOrEqual(t, load, 1.0+1e-9, "trial %d day %s", trial, day)
		}
	}
}
