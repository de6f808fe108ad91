package eventhandler

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bilim-hub/bilim-practice-hub/internal/domain/shared"
)

// ─────────────────────────────────────────────────────────────────────────────
// Fake counter cache
// ─────────────────────────────────────────────────────────────────────────────

type fakeCounterCache struct {
	counters map[string]int
	incrErr  error
	dropped  []string
}

func newFakeCounterCache() *fakeCounterCache {
	return &fakeCounterCache{counters: map[string]int{}}
}

func counterKey(learnerID shared.LearnerID, dayKey shared.DayKey) string {
	return string(learnerID) + "/" + string(dayKey)
}

func (c *fakeCounterCache) IncrXPToday(_ context.Context, learnerID shared.LearnerID, dayKey shared.DayKey, gain int) (int, error) {
	if c.incrErr != nil {
		return 0, c.incrErr
	}
	key := counterKey(learnerID, dayKey)
	c.counters[key] += gain
	return c.counters[key], nil
}

func (c *fakeCounterCache) DropXPToday(_ context.Context, learnerID shared.LearnerID, dayKey shared.DayKey) error {
	key := counterKey(learnerID, dayKey)
	delete(c.counters, key)
	c.dropped = append(c.dropped, key)
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Tests
// ─────────────────────────────────────────────────────────────────────────────

const testLearnerID = "6f1f7a2e-44a1-4b02-9c7e-2f0a43a1d100"

func TestOnXPAwardedHandler_MirrorsGainIntoDailyCounter(t *testing.T) {
	cache := newFakeCounterCache()
	handler := NewOnXPAwardedHandler(cache, slog.Default())

	first := shared.NewXPAwardedEvent(testLearnerID, "2026-08-29", 100, 100, 100, false, "lab", "lab-1")
	require.NoError(t, handler.Handle(first))

	second := shared.NewXPAwardedEvent(testLearnerID, "2026-08-29", 50, 50, 150, false, "mission", "m-1")
	require.NoError(t, handler.Handle(second))

	assert.Equal(t, 150, cache.counters[counterKey(testLearnerID, "2026-08-29")])
	assert.Empty(t, cache.dropped)
}

func TestOnXPAwardedHandler_DropsCounterWhenIncrementFails(t *testing.T) {
	cache := newFakeCounterCache()
	cache.incrErr = errors.New("redis down")
	handler := NewOnXPAwardedHandler(cache, slog.Default())

	event := shared.NewXPAwardedEvent(testLearnerID, "2026-08-29", 100, 100, 100, false, "lab", "lab-1")
	require.NoError(t, handler.Handle(event), "mirror failures must not fail the award")

	assert.Equal(t, []string{counterKey(testLearnerID, "2026-08-29")}, cache.dropped)
}

func TestOnXPAwardedHandler_DropsCounterBehindDurableTotal(t *testing.T) {
	cache := newFakeCounterCache()
	handler := NewOnXPAwardedHandler(cache, slog.Default())

	// The durable total says 150, but the mirror only ever saw this one
	// 50-point award: serving 50 would under-report, so the key goes away.
	event := shared.NewXPAwardedEvent(testLearnerID, "2026-08-29", 50, 50, 150, false, "mission", "m-1")
	require.NoError(t, handler.Handle(event))

	assert.NotContains(t, cache.counters, counterKey(testLearnerID, "2026-08-29"))
	assert.Len(t, cache.dropped, 1)
}

func TestOnXPAwardedHandler_IgnoresOtherEvents(t *testing.T) {
	cache := newFakeCounterCache()
	handler := NewOnXPAwardedHandler(cache, slog.Default())

	until := time.Date(2026, 8, 29, 13, 0, 0, 0, time.UTC)
	event := shared.NewCooldownStartedEvent(testLearnerID, 5, until, "daily threshold reached")
	require.NoError(t, handler.Handle(event))

	assert.Empty(t, cache.counters)
}
