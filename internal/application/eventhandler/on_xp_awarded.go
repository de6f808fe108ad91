package eventhandler

import (
	"context"
	"log/slog"

	"github.com/bilim-hub/bilim-practice-hub/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON XP AWARDED HANDLER
// Каждое начисление XP зеркалируется в дневной счётчик Redis, чтобы
// чтение дневного прогресса не ходило в postgres на каждый опрос.
// Postgres остаётся источником истины: при любом расхождении зеркало
// сбрасывается, и чтение падает обратно на базу.
// ═══════════════════════════════════════════════════════════════════════════

// DailyCounterCache - дневной счётчик XP ученика.
// Реализация находится в infrastructure/persistence/redis.
type DailyCounterCache interface {
	// IncrXPToday атомарно прибавляет gain и возвращает новое значение.
	IncrXPToday(ctx context.Context, learnerID shared.LearnerID, dayKey shared.DayKey, gain int) (int, error)

	// DropXPToday сбрасывает счётчик, чтобы следующее чтение ушло в postgres.
	DropXPToday(ctx context.Context, learnerID shared.LearnerID, dayKey shared.DayKey) error
}

// OnXPAwardedHandler обрабатывает событие начисления XP.
type OnXPAwardedHandler struct {
	counters DailyCounterCache
	logger   *slog.Logger
}

// NewOnXPAwardedHandler создаёт обработчик.
func NewOnXPAwardedHandler(counters DailyCounterCache, logger *slog.Logger) *OnXPAwardedHandler {
	return &OnXPAwardedHandler{
		counters: counters,
		logger:   logger.With("handler", "on_xp_awarded"),
	}
}

// Handle обрабатывает событие.
func (h *OnXPAwardedHandler) Handle(event shared.Event) error {
	awarded, ok := event.(shared.XPAwardedEvent)
	if !ok {
		h.logger.Warn("received non-XPAwardedEvent",
			"event_type", event.EventType())
		return nil
	}

	ctx := context.Background()
	learnerID := shared.LearnerID(awarded.AggregateID())
	dayKey := shared.DayKey(awarded.DayKey)

	total, err := h.counters.IncrXPToday(ctx, learnerID, dayKey, awarded.XPGain)
	if err != nil {
		// Недосчитавшее зеркало опаснее промаха: сбрасываем ключ,
		// чтобы чтения ушли в postgres.
		h.logger.Warn("failed to mirror xp award, dropping counter",
			"learner_id", awarded.AggregateID(),
			"day_key", awarded.DayKey,
			"error", err)
		_ = h.counters.DropXPToday(ctx, learnerID, dayKey)
		return nil
	}

	// Зеркало меньше итога из события - значит, часть начислений мимо
	// него прошла. Больше - нормально: параллельное начисление успело
	// раньше своего события.
	if total < awarded.XPToday {
		h.logger.Warn("xp mirror behind durable total, dropping counter",
			"learner_id", awarded.AggregateID(),
			"day_key", awarded.DayKey,
			"mirror", total,
			"durable", awarded.XPToday)
		_ = h.counters.DropXPToday(ctx, learnerID, dayKey)
		return nil
	}

	h.logger.Debug("xp award mirrored",
		"learner_id", awarded.AggregateID(),
		"day_key", awarded.DayKey,
		"xp_gain", awarded.XPGain,
		"xp_today", total)
	return nil
}
