package mission

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/bilim-hub/bilim-practice-hub/internal/domain/shared"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	today     = shared.DayKey("2026-08-29")
	tomorrow  = shared.DayKey("2026-08-30")
	startTime = time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
)

// completeN регистрирует n сдач с разными идентификаторами миссий.
func completeN(t *testing.T, state CooldownState, n int, cfg Config, rng *rand.Rand) CompletionResult {
	t.Helper()
	var result CompletionResult
	var err error
	for i := 1; i <= n; i++ {
		result, err = RegisterCompletion(state, fmt.Sprintf("mission_%d", i), today, startTime, cfg, rng)
		require.NoError(t, err)
		state = result.State
	}
	return result
}

func TestRegisterCompletion_CountsDistinctMissions(t *testing.T) {
	cfg := DefaultLimiterConfig()
	rng := rand.New(rand.NewSource(1))

	result := completeN(t, NewCooldownState(today), 3, cfg, rng)

	assert.Equal(t, 3, result.DailyCount)
	assert.Nil(t, result.Cooldown)
}

func TestRegisterCompletion_RepeatMissionDoesNotCount(t *testing.T) {
	cfg := DefaultLimiterConfig()
	rng := rand.New(rand.NewSource(1))
	state := NewCooldownState(today)

	for i := 0; i < 10; i++ {
		result, err := RegisterCompletion(state, "mission_1", today, startTime, cfg, rng)
		require.NoError(t, err)
		state = result.State
		assert.Equal(t, 1, result.DailyCount)
		assert.Nil(t, result.Cooldown)
	}
}

func TestRegisterCompletion_ThresholdOpensCooldown(t *testing.T) {
	cfg := DefaultLimiterConfig()
	rng := rand.New(rand.NewSource(42))

	result := completeN(t, NewCooldownState(today), 5, cfg, rng)

	require.NotNil(t, result.Cooldown)
	assert.True(t, result.CooldownStarted)
	assert.NotEmpty(t, result.Cooldown.Reason)

	duration := result.Cooldown.Until.Sub(startTime)
	assert.GreaterOrEqual(t, duration, DefaultCooldownMin)
	assert.LessOrEqual(t, duration, DefaultCooldownMax)
}

func TestRegisterCompletion_SixthCallDoesNotExtendCooldown(t *testing.T) {
	cfg := DefaultLimiterConfig()
	rng := rand.New(rand.NewSource(42))
	fifth := completeN(t, NewCooldownState(today), 5, cfg, rng)
	require.NotNil(t, fifth.Cooldown)

	sixth, err := RegisterCompletion(fifth.State, "mission_6", today,
		startTime.Add(time.Minute), cfg, rng)

	require.NoError(t, err)
	require.NotNil(t, sixth.Cooldown)
	assert.False(t, sixth.CooldownStarted)
	assert.Equal(t, fifth.Cooldown.Until, sixth.Cooldown.Until, "active cooldown is never extended")
}

func TestRegisterCompletion_CooldownClearsOnExpiry(t *testing.T) {
	cfg := DefaultLimiterConfig()
	rng := rand.New(rand.NewSource(42))
	fifth := completeN(t, NewCooldownState(today), 5, cfg, rng)
	require.NotNil(t, fifth.Cooldown)

	afterExpiry := fifth.Cooldown.Until.Add(time.Second)
	assert.Nil(t, ActiveCooldown(fifth.State, today, afterExpiry, cfg))

	// A completion after expiry proceeds with the window cleared, and the
	// count is already over the threshold so a fresh window opens.
	next, err := RegisterCompletion(fifth.State, "mission_7", today, afterExpiry, cfg, rng)
	require.NoError(t, err)
	require.NotNil(t, next.Cooldown)
	assert.True(t, next.CooldownStarted)
	assert.True(t, next.Cooldown.Until.After(afterExpiry))
}

func TestRegisterCompletion_DayRolloverResets(t *testing.T) {
	cfg := DefaultLimiterConfig()
	rng := rand.New(rand.NewSource(42))
	fifth := completeN(t, NewCooldownState(today), 5, cfg, rng)
	require.NotNil(t, fifth.Cooldown)

	next, err := RegisterCompletion(fifth.State, "mission_1", tomorrow,
		startTime.Add(24*time.Hour), cfg, rng)

	require.NoError(t, err)
	assert.Equal(t, 1, next.DailyCount)
	assert.Nil(t, next.Cooldown)
	assert.Equal(t, tomorrow, next.State.DayKey)
}

func TestRegisterCompletion_EmptyMissionID(t *testing.T) {
	_, err := RegisterCompletion(NewCooldownState(today), "", today, startTime,
		DefaultLimiterConfig(), rand.New(rand.NewSource(1)))

	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrInvalidMissionID)
}

func TestActiveCooldown(t *testing.T) {
	cfg := DefaultLimiterConfig()
	rng := rand.New(rand.NewSource(42))
	fifth := completeN(t, NewCooldownState(today), 5, cfg, rng)
	require.NotNil(t, fifth.Cooldown)

	active := ActiveCooldown(fifth.State, today, startTime.Add(time.Minute), cfg)
	require.NotNil(t, active)
	assert.Equal(t, fifth.Cooldown.Until, active.Until)

	assert.Nil(t, ActiveCooldown(fifth.State, tomorrow, startTime.Add(time.Minute), cfg),
		"day rollover drops the window")
}

func TestActiveCooldown_StaleBelowThreshold(t *testing.T) {
	cfg := DefaultLimiterConfig()
	until := startTime.Add(10 * time.Minute)
	reason := "stale"
	state := NewCooldownState(today)
	state.Completed["mission_1"] = true
	state.CooldownUntil = &until
	state.CooldownReason = &reason

	// The count no longer justifies the window, so it reads as inactive.
	assert.Nil(t, ActiveCooldown(state, today, startTime, cfg))
}

func TestCooldownDuration_WithinBounds(t *testing.T) {
	cfg := DefaultLimiterConfig()
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 1000; i++ {
		d := cooldownDuration(cfg, rng)
		assert.GreaterOrEqual(t, d, cfg.CooldownMin)
		assert.LessOrEqual(t, d, cfg.CooldownMax)
	}
}
