package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDayKey_CrossesMidnightInLocalZone(t *testing.T) {
	// 21:30 UTC is already the next day in UTC+5.
	instant := time.Date(2026, 3, 14, 21, 30, 0, 0, time.UTC)

	assert.Equal(t, "2026-03-15", DayKey(instant, DefaultTZ))
	assert.Equal(t, "2026-03-14", DayKey(instant, time.UTC))
}

func TestDayKey_NilLocationFallsBackToDefault(t *testing.T) {
	instant := time.Date(2026, 3, 14, 21, 30, 0, 0, time.UTC)

	assert.Equal(t, DayKey(instant, DefaultTZ), DayKey(instant, nil))
}

func TestParseDayKey_RoundTrip(t *testing.T) {
	start, err := ParseDayKey("2026-03-15", DefaultTZ)
	require.NoError(t, err)

	assert.Equal(t, "2026-03-15", DayKey(start, DefaultTZ))
	assert.Equal(t, 0, start.Hour())
}

func TestParseDayKey_RejectsGarbage(t *testing.T) {
	_, err := ParseDayKey("not-a-date", DefaultTZ)
	assert.Error(t, err)
}

func TestStartOfDay_And_NextDayStart(t *testing.T) {
	instant := time.Date(2026, 3, 15, 13, 45, 12, 0, DefaultTZ)

	start := StartOfDay(instant, DefaultTZ)
	assert.Equal(t, time.Date(2026, 3, 15, 0, 0, 0, 0, DefaultTZ).Unix(), start.Unix())

	next := NextDayStart(instant, DefaultTZ)
	assert.Equal(t, time.Date(2026, 3, 16, 0, 0, 0, 0, DefaultTZ).Unix(), next.Unix())
}

func TestNextDailyRun_LaterToday(t *testing.T) {
	now := time.Date(2026, 3, 15, 1, 0, 0, 0, DefaultTZ)

	next := NextDailyRun(now, 3, 0, DefaultTZ)

	assert.Equal(t, time.Date(2026, 3, 15, 3, 0, 0, 0, DefaultTZ).Unix(), next.Unix())
}

func TestNextDailyRun_AlreadyPassedRollsToTomorrow(t *testing.T) {
	now := time.Date(2026, 3, 15, 3, 0, 0, 0, DefaultTZ)

	next := NextDailyRun(now, 3, 0, DefaultTZ)

	assert.Equal(t, time.Date(2026, 3, 16, 3, 0, 0, 0, DefaultTZ).Unix(), next.Unix())
}

func TestSameDay(t *testing.T) {
	morning := time.Date(2026, 3, 15, 0, 1, 0, 0, DefaultTZ)
	evening := time.Date(2026, 3, 15, 23, 59, 0, 0, DefaultTZ)
	nextDay := time.Date(2026, 3, 16, 0, 1, 0, 0, DefaultTZ)

	assert.True(t, SameDay(morning, evening, DefaultTZ))
	assert.False(t, SameDay(evening, nextDay, DefaultTZ))
}

func TestDaysBetween(t *testing.T) {
	a := time.Date(2026, 3, 15, 23, 0, 0, 0, DefaultTZ)
	b := time.Date(2026, 3, 18, 1, 0, 0, 0, DefaultTZ)

	assert.Equal(t, 3, DaysBetween(a, b, DefaultTZ))
	assert.Equal(t, -3, DaysBetween(b, a, DefaultTZ))
	assert.Equal(t, 0, DaysBetween(a, a, DefaultTZ))
}
