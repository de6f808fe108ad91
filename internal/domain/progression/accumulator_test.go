package progression

import (
	"testing"

	"github.com/bilim-hub/bilim-practice-hub/internal/domain/shared"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	today     = shared.DayKey("2026-08-29")
	yesterday = shared.DayKey("2026-08-28")
)

func TestCalculateXPUpdate_PlainAward(t *testing.T) {
	counters := Counters{XPTotal: 1000, XPAwardedToday: 50, DayKey: today}

	result, err := CalculateXPUpdate(counters, 30, today, DefaultDailyCap)

	require.NoError(t, err)
	assert.Equal(t, 30, result.XPGain)
	assert.Equal(t, 80, result.XPToday)
	assert.False(t, result.IsCapped)
	assert.Equal(t, Update{XPTotalDelta: 30, XPTodayValue: 80, DayKey: today}, result.Updates)
}

func TestCalculateXPUpdate_CappedToHeadroom(t *testing.T) {
	counters := Counters{XPAwardedToday: 190, DayKey: today}

	result, err := CalculateXPUpdate(counters, 50, today, 200)

	require.NoError(t, err)
	assert.Equal(t, 10, result.XPGain)
	assert.Equal(t, 200, result.XPToday)
	assert.True(t, result.IsCapped)
}

func TestCalculateXPUpdate_ZeroHeadroom(t *testing.T) {
	counters := Counters{XPAwardedToday: 200, DayKey: today}

	result, err := CalculateXPUpdate(counters, 25, today, 200)

	require.NoError(t, err)
	assert.Equal(t, 0, result.XPGain)
	assert.Equal(t, 200, result.XPToday)
	assert.True(t, result.IsCapped)
}

func TestCalculateXPUpdate_DayRolloverResetsCounter(t *testing.T) {
	counters := Counters{XPAwardedToday: 200, DayKey: yesterday}

	result, err := CalculateXPUpdate(counters, 50, today, 200)

	require.NoError(t, err)
	assert.Equal(t, 50, result.XPGain)
	assert.Equal(t, 50, result.XPToday)
	assert.False(t, result.IsCapped)
	assert.Equal(t, today, result.Updates.DayKey)
}

func TestCalculateXPUpdate_NeverExceedsCap(t *testing.T) {
	for awarded := 0; awarded <= 250; awarded += 10 {
		counters := Counters{XPAwardedToday: awarded, DayKey: today}
		result, err := CalculateXPUpdate(counters, 500, today, 200)
		require.NoError(t, err)
		assert.LessOrEqual(t, result.XPToday, 200)
	}
}

func TestCalculateXPUpdate_NegativeReward(t *testing.T) {
	_, err := CalculateXPUpdate(Counters{}, -1, today, 200)

	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrInvalidReward)
}

func TestCalculateLabAward(t *testing.T) {
	counters := Counters{DayKey: today, XPAwardedToday: 0}

	result, err := CalculateLabAward(counters, yesterday, 40, today, 200)

	require.NoError(t, err)
	assert.False(t, result.AlreadyCompleted)
	assert.Equal(t, 40, result.XPGain)
}

func TestCalculateLabAward_RepeatSameDay(t *testing.T) {
	counters := Counters{DayKey: today, XPAwardedToday: 40}

	result, err := CalculateLabAward(counters, today, 40, today, 200)

	require.NoError(t, err)
	assert.True(t, result.AlreadyCompleted)
	assert.Equal(t, 0, result.XPGain, "repeat completion is skipped entirely, not capped")
	assert.Equal(t, Update{}, result.Updates)
}
