package timewheel

import (
	"testing"
	"time"

	"github.com/songokas/hvents/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduleOrdersByFireTime(t *testing.T) {
	w := New()
	now := time.Now()

	w.Schedule(Spec{Identity: "b", FireAt: now.Add(2 * time.Second)})
	w.Schedule(Spec{Identity: "a", FireAt: now.Add(1 * time.Second)})
	w.Schedule(Spec{Identity: "c", FireAt: now.Add(3 * time.Second)})

	peek, ok := w.Peek()
	require.True(t, ok)
	assert.WithinDuration(t, now.Add(time.Second), peek, 50*time.Millisecond)
	assert.Equal(t, 3, w.Size())
}

func TestScheduleReplacesSameIdentity(t *testing.T) {
	w := New()
	now := time.Now()

	w.Schedule(Spec{Identity: "x", FireAt: now.Add(5 * time.Second)})
	w.Schedule(Spec{Identity: "x", FireAt: now.Add(1 * time.Second)})

	assert.Equal(t, 1, w.Size())
	peek, ok := w.Peek()
	require.True(t, ok)
	assert.WithinDuration(t, now.Add(time.Second), peek, 50*time.Millisecond)
}

func TestCancelRemovesEntry(t *testing.T) {
	w := New()
	w.Schedule(Spec{Identity: "x", FireAt: time.Now().Add(time.Second)})
	w.Cancel("x")
	assert.Equal(t, 0, w.Size())
}

func TestDueNowPopsOnlyPastEntries(t *testing.T) {
	w := New()
	now := time.Now()
	w.Schedule(Spec{Identity: "past", FireAt: now.Add(-time.Second)})
	w.Schedule(Spec{Identity: "future", FireAt: now.Add(time.Hour)})

	due := w.DueNow(now)
	require.Len(t, due, 1)
	assert.Equal(t, "past", due[0].Identity)
	assert.Equal(t, 1, w.Size())
}

func TestParseSpecClockTimeRollsOverToTomorrow(t *testing.T) {
	now := time.Date(2026, 8, 3, 23, 0, 0, 0, time.Local)

	got, err := ParseSpec("08:00", now, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, got.Day())
	assert.Equal(t, 8, got.Hour())
}

func TestParseSpecClockTimeLaterTodayStaysToday(t *testing.T) {
	now := time.Date(2026, 8, 3, 6, 0, 0, 0, time.Local)

	got, err := ParseSpec("08:00", now, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Day())
	assert.Equal(t, 8, got.Hour())
}

func TestParseSpecRelative(t *testing.T) {
	now := time.Now()

	got, err := ParseSpec("in 4 seconds", now, nil)
	require.NoError(t, err)
	assert.WithinDuration(t, now.Add(4*time.Second), got, 50*time.Millisecond)
}

func TestParseSpecSunriseWithoutLocationErrors(t *testing.T) {
	_, err := ParseSpec("sunrise", time.Now(), nil)
	require.Error(t, err)
}

func TestParseSpecSunriseWithLocation(t *testing.T) {
	loc := &models.LocationConfig{Latitude: 51.5, Longitude: -0.12}
	now := time.Now()

	got, err := ParseSpec("sunrise", now, loc)
	require.NoError(t, err)
	assert.True(t, got.After(now) || got.Equal(now))
}
