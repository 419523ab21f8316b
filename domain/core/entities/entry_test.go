package entities

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studypace/domain/core/valueobjects"
	"studypace/domain/events"
	pkgerrors "studypace/pkg/errors"
)

func newTestEntry(t *testing.T) *ScheduleEntry {
	t.Helper()

	learnerID, err := valueobjects.NewLearnerID("learner-1")
	require.NoError(t, err)

	entry, err := NewScheduleEntry(
		learnerID,
		valueobjects.NewUnitID(),
		SessionStudy,
		time.Now().Add(24*time.Hour),
		30,
		0.8,
		0.25,
		1,
		0,
		1200,
	)
	require.NoError(t, err)
	return entry
}

func TestNewScheduleEntry(t *testing.T) {
	entry := newTestEntry(t)

	assert.Equal(t, StatusScheduled, entry.Status())
	assert.True(t, entry.IsOpen())
	assert.Equal(t, 30, entry.DurationMinutes())
	assert.True(t, entry.ReplacedBy().IsZero())
	assert.Nil(t, entry.CompletedAt())

	uncommitted := entry.GetUncommittedEvents()
	require.Len(t, uncommitted, 1)
	assert.Equal(t, "entry.scheduled", uncommitted[0].GetEventType())
}

func TestNewScheduleEntry_Validation(t *testing.T) {
	learnerID, err := valueobjects.NewLearnerID("learner-1")
	require.NoError(t, err)

	tests := []struct {
		name     string
		duration int
		interval int
		start    int
		end      int
	}{
		{"zero duration", 0, 1, 0, 100},
		{"negative interval", 30, -1, 0, 100},
		{"inverted offsets", 30, 1, 100, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewScheduleEntry(
				learnerID, valueobjects.NewUnitID(), SessionStudy,
				time.Now(), tt.duration, 0.5, 0.2, tt.interval, tt.start, tt.end,
			)
			require.Error(t, err)
			assert.True(t, pkgerrors.IsValidation(err))
		})
	}
}

func TestScheduleEntry_Complete(t *testing.T) {
	entry := newTestEntry(t)
	at := time.Now()

	err := entry.Complete(at)
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, entry.Status())
	assert.False(t, entry.IsOpen())
	require.NotNil(t, entry.CompletedAt())
	assert.Equal(t, at, *entry.CompletedAt())

	// Terminal: a second transition must be rejected
	err = entry.Complete(time.Now())
	require.Error(t, err)
	assert.True(t, pkgerrors.IsConflict(err))

	err = entry.Skip("missed")
	require.Error(t, err)
}

func TestScheduleEntry_Skip(t *testing.T) {
	entry := newTestEntry(t)

	err := entry.Skip("missed deadline")
	require.NoError(t, err)
	assert.Equal(t, StatusSkipped, entry.Status())

	err = entry.Skip("again")
	require.Error(t, err)
	assert.True(t, pkgerrors.IsConflict(err))
}

func TestScheduleEntry_Reschedule(t *testing.T) {
	entry := newTestEntry(t)
	newTime := time.Now().Add(72 * time.Hour)

	replacement, err := entry.Reschedule(newTime)
	require.NoError(t, err)
	require.NotNil(t, replacement)

	// Original is closed and linked to its replacement
	assert.Equal(t, StatusRescheduled, entry.Status())
	assert.True(t, entry.ReplacedBy().Equals(replacement.ID()))

	// Replacement carries the same unit and content offsets at the new time
	assert.Equal(t, StatusScheduled, replacement.Status())
	assert.True(t, replacement.UnitID().Equals(entry.UnitID()))
	assert.Equal(t, entry.StartOffset(), replacement.StartOffset())
	assert.Equal(t, entry.EndOffset(), replacement.EndOffset())
	assert.Equal(t, newTime, replacement.ScheduledAt())
	assert.False(t, replacement.ID().Equals(entry.ID()))

	// A closed entry cannot be rescheduled again
	_, err = entry.Reschedule(time.Now().Add(96 * time.Hour))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsConflict(err))
}

func TestScheduleEntry_IsOverdue(t *testing.T) {
	entry := newTestEntry(t)
	grace := 24 * time.Hour

	assert.False(t, entry.IsOverdue(time.Now(), grace))
	assert.True(t, entry.IsOverdue(entry.ScheduledAt().Add(grace+time.Minute), grace))

	require.NoError(t, entry.Complete(time.Now()))
	assert.False(t, entry.IsOverdue(entry.ScheduledAt().Add(48*time.Hour), grace))
}

func TestScheduleEntry_EventAccumulation(t *testing.T) {
	entry := newTestEntry(t)
	entry.MarkEventsAsCommitted()

	require.NoError(t, entry.Complete(time.Now()))

	uncommitted := entry.GetUncommittedEvents()
	require.Len(t, uncommitted, 1)

	completed, ok := uncommitted[0].(events.EntryCompleted)
	require.True(t, ok)
	assert.Equal(t, entry.ID().String(), completed.GetAggregateID())
}
