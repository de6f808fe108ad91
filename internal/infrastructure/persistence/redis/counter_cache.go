package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bilim-hub/bilim-practice-hub/internal/domain/mission"
	"github.com/bilim-hub/bilim-practice-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// COUNTER CACHE
// ══════════════════════════════════════════════════════════════════════════════

// CounterCache is the hot path for per-learner daily state: the XP counter
// lives here as an atomic INCRBY, and the mission limiter state is cached
// as JSON next to its durable postgres copy. Day-keyed entries carry a TTL
// slightly past midnight so stale days evict themselves.
type CounterCache struct {
	cache *Cache
}

// NewCounterCache creates a new CounterCache.
func NewCounterCache(cache *Cache) *CounterCache {
	return &CounterCache{cache: cache}
}

// IncrXPToday atomically bumps the learner's daily XP counter and returns
// the new value. The atomic increment is what keeps two devices racing to
// record progress from losing an award.
func (c *CounterCache) IncrXPToday(ctx context.Context, learnerID shared.LearnerID, dayKey shared.DayKey, gain int) (int, error) {
	key := XPTodayKey(string(learnerID), string(dayKey))

	total, err := c.cache.IncrBy(ctx, key, int64(gain))
	if err != nil {
		return 0, fmt.Errorf("failed to increment daily xp: %w", err)
	}
	if err := c.cache.Expire(ctx, key, TTLDailyCounter); err != nil {
		return int(total), fmt.Errorf("failed to set counter ttl: %w", err)
	}
	return int(total), nil
}

// GetXPToday reads the learner's daily XP counter. A missing key reads as
// zero with ok=false so callers can fall back to postgres.
func (c *CounterCache) GetXPToday(ctx context.Context, learnerID shared.LearnerID, dayKey shared.DayKey) (int, bool, error) {
	key := XPTodayKey(string(learnerID), string(dayKey))

	value, err := c.cache.GetString(ctx, key)
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to read daily xp: %w", err)
	}

	var total int
	if _, err := fmt.Sscanf(value, "%d", &total); err != nil {
		return 0, false, fmt.Errorf("failed to parse daily xp %q: %w", value, err)
	}
	return total, true, nil
}

// DropXPToday removes the learner's daily XP counter so the next read
// falls back to postgres. Used when a mirror update failed and the cached
// value can no longer be trusted.
func (c *CounterCache) DropXPToday(ctx context.Context, learnerID shared.LearnerID, dayKey shared.DayKey) error {
	if err := c.cache.Delete(ctx, XPTodayKey(string(learnerID), string(dayKey))); err != nil {
		return fmt.Errorf("failed to drop daily xp: %w", err)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Mission limiter state
// ─────────────────────────────────────────────────────────────────────────────

// limiterStateDTO is the cached JSON form of the limiter state.
type limiterStateDTO struct {
	DayKey         string     `json:"day_key"`
	Completed      []string   `json:"completed"`
	CooldownUntil  *time.Time `json:"cooldown_until,omitempty"`
	CooldownReason *string    `json:"cooldown_reason,omitempty"`
}

// GetLimiterState reads the cached limiter state. A miss returns ok=false.
func (c *CounterCache) GetLimiterState(ctx context.Context, learnerID shared.LearnerID, dayKey shared.DayKey) (mission.CooldownState, bool, error) {
	key := LimiterKey(string(learnerID), string(dayKey))

	var dto limiterStateDTO
	if err := c.cache.Get(ctx, key, &dto); err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return mission.CooldownState{}, false, nil
		}
		return mission.CooldownState{}, false, fmt.Errorf("failed to read limiter state: %w", err)
	}

	state := mission.NewCooldownState(shared.DayKey(dto.DayKey))
	for _, missionID := range dto.Completed {
		state.Completed[missionID] = true
	}
	state.CooldownUntil = dto.CooldownUntil
	state.CooldownReason = dto.CooldownReason
	return state, true, nil
}

// SetLimiterState caches the limiter state for its day.
func (c *CounterCache) SetLimiterState(ctx context.Context, learnerID shared.LearnerID, state mission.CooldownState) error {
	key := LimiterKey(string(learnerID), string(state.DayKey))

	dto := limiterStateDTO{
		DayKey:         string(state.DayKey),
		Completed:      make([]string, 0, len(state.Completed)),
		CooldownUntil:  state.CooldownUntil,
		CooldownReason: state.CooldownReason,
	}
	for missionID := range state.Completed {
		dto.Completed = append(dto.Completed, missionID)
	}

	if err := c.cache.Set(ctx, key, dto, TTLDailyCounter); err != nil {
		return fmt.Errorf("failed to cache limiter state: %w", err)
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SESSION VIEW CACHE
// ══════════════════════════════════════════════════════════════════════════════

// SessionViewCache caches rendered session views so the read path does not
// hit postgres on every poll of the practice UI.
type SessionViewCache struct {
	cache *Cache
}

// NewSessionViewCache creates a new SessionViewCache.
func NewSessionViewCache(cache *Cache) *SessionViewCache {
	return &SessionViewCache{cache: cache}
}

// Get reads a cached view into dest. Returns ErrCacheMiss on a miss.
func (c *SessionViewCache) Get(ctx context.Context, sessionID shared.SessionID, dest interface{}) error {
	return c.cache.Get(ctx, SessionViewKey(string(sessionID)), dest)
}

// Set caches a rendered view.
func (c *SessionViewCache) Set(ctx context.Context, sessionID shared.SessionID, view interface{}) error {
	return c.cache.Set(ctx, SessionViewKey(string(sessionID)), view, TTLSessionView)
}

// Invalidate drops the cached view after a mutation.
func (c *SessionViewCache) Invalidate(ctx context.Context, sessionID shared.SessionID) error {
	return c.cache.Delete(ctx, SessionViewKey(string(sessionID)))
}
