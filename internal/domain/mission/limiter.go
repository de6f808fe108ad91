// Package mission реализует ограничитель частоты сдачи повторяемых миссий:
// суточный счётчик с порогом и случайным окном охлаждения.
package mission

import (
	"context"
	"math/rand"
	"time"

	"github.com/bilim-hub/bilim-practice-hub/internal/domain/shared"
)

const (
	// DefaultThreshold - сколько разных миссий за день открывает охлаждение.
	DefaultThreshold = 5

	// DefaultCooldownMin и DefaultCooldownMax - границы случайной
	// длительности окна охлаждения.
	DefaultCooldownMin = 5 * time.Minute
	DefaultCooldownMax = 10 * time.Minute

	// cooldownReason - человекочитаемая причина для интерфейса.
	cooldownReason = "daily mission limit reached, take a short break"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATE
// ══════════════════════════════════════════════════════════════════════════════

// CooldownState - суточное состояние ограничителя одного ученика.
type CooldownState struct {
	// DayKey - день, к которому относится состояние.
	// Смена дня обнуляет счётчик и охлаждение.
	DayKey shared.DayKey

	// Completed - миссии, сданные за день. Семантика множества:
	// повторная сдача той же миссии счётчик не увеличивает.
	Completed map[string]bool

	// CooldownUntil - конец активного окна охлаждения; nil, если окна нет.
	CooldownUntil *time.Time

	// CooldownReason - причина охлаждения; nil, если окна нет.
	CooldownReason *string
}

// NewCooldownState создаёт пустое состояние на день.
func NewCooldownState(dayKey shared.DayKey) CooldownState {
	return CooldownState{
		DayKey:    dayKey,
		Completed: map[string]bool{},
	}
}

// Clone создаёт глубокую копию состояния.
func (s CooldownState) Clone() CooldownState {
	clone := s
	clone.Completed = make(map[string]bool, len(s.Completed))
	for missionID := range s.Completed {
		clone.Completed[missionID] = true
	}
	if s.CooldownUntil != nil {
		until := *s.CooldownUntil
		clone.CooldownUntil = &until
	}
	if s.CooldownReason != nil {
		reason := *s.CooldownReason
		clone.CooldownReason = &reason
	}
	return clone
}

// DailyCount возвращает число разных миссий, сданных за день.
func (s CooldownState) DailyCount() int {
	return len(s.Completed)
}

// ══════════════════════════════════════════════════════════════════════════════
// CONFIG
// ══════════════════════════════════════════════════════════════════════════════

// Config - параметры ограничителя.
type Config struct {
	// Threshold - порог сдач, открывающий охлаждение.
	Threshold int

	// CooldownMin и CooldownMax - границы случайной длительности окна.
	CooldownMin time.Duration
	CooldownMax time.Duration
}

// DefaultLimiterConfig возвращает параметры по умолчанию.
func DefaultLimiterConfig() Config {
	return Config{
		Threshold:   DefaultThreshold,
		CooldownMin: DefaultCooldownMin,
		CooldownMax: DefaultCooldownMax,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// LIMITER
// ══════════════════════════════════════════════════════════════════════════════

// Cooldown - активное окно охлаждения, видимое вызывающему коду.
type Cooldown struct {
	// Until - конец окна.
	Until time.Time

	// Reason - человекочитаемая причина.
	Reason string
}

// CompletionResult - итог регистрации сдачи миссии.
type CompletionResult struct {
	// State - новое состояние ограничителя.
	State CooldownState

	// DailyCount - счётчик разных миссий после регистрации.
	DailyCount int

	// Cooldown - активное окно охлаждения; nil, если его нет.
	Cooldown *Cooldown

	// CooldownStarted - окно открылось именно этой регистрацией.
	CooldownStarted bool
}

// RegisterCompletion регистрирует сдачу миссии и при достижении порога
// открывает окно охлаждения со случайной длительностью из [CooldownMin,
// CooldownMax].
//
// Уже активное окно никогда не продлевается: повторные сдачи при открытом
// охлаждении возвращают его без изменений. Смена календарного дня
// обнуляет и счётчик, и охлаждение.
func RegisterCompletion(state CooldownState, missionID string, dayKey shared.DayKey, now time.Time, cfg Config, rng *rand.Rand) (CompletionResult, error) {
	if missionID == "" {
		return CompletionResult{}, shared.NewDomainError("mission", "RegisterCompletion",
			shared.ErrInvalidMissionID, "mission id must not be empty")
	}

	next := rolloverIfNeeded(state, dayKey)
	next = next.Clone()
	next.Completed[missionID] = true

	next = clearIfExpired(next, cfg, now)

	if next.CooldownUntil != nil {
		return CompletionResult{
			State:      next,
			DailyCount: next.DailyCount(),
			Cooldown:   &Cooldown{Until: *next.CooldownUntil, Reason: *next.CooldownReason},
		}, nil
	}

	result := CompletionResult{DailyCount: next.DailyCount()}
	if next.DailyCount() >= cfg.Threshold {
		until := now.Add(cooldownDuration(cfg, rng))
		reason := cooldownReason
		next.CooldownUntil = &until
		next.CooldownReason = &reason
		result.Cooldown = &Cooldown{Until: until, Reason: reason}
		result.CooldownStarted = true
	}
	result.State = next

	return result, nil
}

// ActiveCooldown возвращает активное окно охлаждения или nil.
//
// Окно гаснет само, без явного сброса: как только now >= CooldownUntil,
// сменился день, либо счётчик опустился ниже порога (например, после
// корректировки состояния), охлаждение считается неактивным.
func ActiveCooldown(state CooldownState, dayKey shared.DayKey, now time.Time, cfg Config) *Cooldown {
	if state.DayKey != dayKey {
		return nil
	}
	if state.CooldownUntil == nil || !now.Before(*state.CooldownUntil) {
		return nil
	}
	if state.DailyCount() < cfg.Threshold {
		return nil
	}
	reason := ""
	if state.CooldownReason != nil {
		reason = *state.CooldownReason
	}
	return &Cooldown{Until: *state.CooldownUntil, Reason: reason}
}

// rolloverIfNeeded обнуляет состояние при смене календарного дня.
func rolloverIfNeeded(state CooldownState, dayKey shared.DayKey) CooldownState {
	if state.DayKey == dayKey && state.Completed != nil {
		return state
	}
	return NewCooldownState(dayKey)
}

// clearIfExpired снимает погасшее или потерявшее основание охлаждение.
func clearIfExpired(state CooldownState, cfg Config, now time.Time) CooldownState {
	if state.CooldownUntil == nil {
		return state
	}
	if now.Before(*state.CooldownUntil) && state.DailyCount() >= cfg.Threshold {
		return state
	}
	state.CooldownUntil = nil
	state.CooldownReason = nil
	return state
}

// cooldownDuration выбирает длительность окна равномерно из
// [CooldownMin, CooldownMax].
func cooldownDuration(cfg Config, rng *rand.Rand) time.Duration {
	if cfg.CooldownMax <= cfg.CooldownMin {
		return cfg.CooldownMin
	}
	spread := cfg.CooldownMax - cfg.CooldownMin
	return cfg.CooldownMin + time.Duration(rng.Int63n(int64(spread)+1))
}

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет контракт хранилища состояния ограничителя.
// Реализация - redis с TTL до конца суток и postgres-резервом.
type Repository interface {
	// GetState возвращает состояние ученика на день.
	// Для нового дня возвращает пустое состояние, не ошибку.
	GetState(ctx context.Context, learnerID shared.LearnerID, dayKey shared.DayKey) (CooldownState, error)

	// SaveState перезаписывает состояние ученика.
	SaveState(ctx context.Context, learnerID shared.LearnerID, state CooldownState) error
}
