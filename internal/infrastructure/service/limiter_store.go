// Package service wires domain repository contracts to concrete
// infrastructure, combining the redis fast path with durable postgres.
package service

import (
	"context"
	"log/slog"

	"github.com/bilim-hub/bilim-practice-hub/internal/domain/mission"
	"github.com/bilim-hub/bilim-practice-hub/internal/domain/shared"
	rediscache "github.com/bilim-hub/bilim-practice-hub/internal/infrastructure/persistence/redis"
	"github.com/bilim-hub/bilim-practice-hub/pkg/circuitbreaker"
)

// LimiterStore implements mission.Repository over two tiers: the redis
// counter cache answers hot reads, postgres stays authoritative. A circuit
// breaker around redis keeps a cache outage from slowing the request path
// to a crawl of timeouts - reads degrade straight to postgres while the
// breaker is open.
type LimiterStore struct {
	cache   *rediscache.CounterCache
	durable mission.Repository
	breaker *circuitbreaker.CircuitBreaker
	logger  *slog.Logger
}

// NewLimiterStore creates a new LimiterStore.
func NewLimiterStore(
	cache *rediscache.CounterCache,
	durable mission.Repository,
	breaker *circuitbreaker.CircuitBreaker,
	logger *slog.Logger,
) *LimiterStore {
	return &LimiterStore{
		cache:   cache,
		durable: durable,
		breaker: breaker,
		logger:  logger.With("component", "limiter_store"),
	}
}

// GetState reads the limiter state, preferring the cache.
func (s *LimiterStore) GetState(ctx context.Context, learnerID shared.LearnerID, dayKey shared.DayKey) (mission.CooldownState, error) {
	var state mission.CooldownState
	var hit bool

	err := s.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		state, hit, err = s.cache.GetLimiterState(ctx, learnerID, dayKey)
		return err
	})
	if err == nil && hit {
		return state, nil
	}
	if err != nil {
		s.logger.Warn("limiter cache read failed, falling back to postgres",
			"learner_id", string(learnerID),
			"error", err)
	}

	state, err = s.durable.GetState(ctx, learnerID, dayKey)
	if err != nil {
		return mission.CooldownState{}, err
	}

	// Best effort refill; the durable copy is already correct.
	_ = s.breaker.Execute(ctx, func(ctx context.Context) error {
		return s.cache.SetLimiterState(ctx, learnerID, state)
	})
	return state, nil
}

// SaveState writes postgres first, then refreshes the cache.
func (s *LimiterStore) SaveState(ctx context.Context, learnerID shared.LearnerID, state mission.CooldownState) error {
	if err := s.durable.SaveState(ctx, learnerID, state); err != nil {
		return err
	}

	if err := s.breaker.Execute(ctx, func(ctx context.Context) error {
		return s.cache.SetLimiterState(ctx, learnerID, state)
	}); err != nil {
		s.logger.Warn("limiter cache refresh failed",
			"learner_id", string(learnerID),
			"error", err)
	}
	return nil
}
