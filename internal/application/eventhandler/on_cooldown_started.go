package eventhandler

import (
	"log/slog"

	"github.com/bilim-hub/bilim-practice-hub/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON COOLDOWN STARTED HANDLER
// Фиксирует открытие окна охлаждения в журнале. Частые срабатывания у
// одного ученика - сигнал о фарме миссий, который смотрят на дашборде.
// ═══════════════════════════════════════════════════════════════════════════

// OnCooldownStartedHandler обрабатывает событие открытия охлаждения.
type OnCooldownStartedHandler struct {
	logger *slog.Logger
}

// NewOnCooldownStartedHandler создаёт обработчик.
func NewOnCooldownStartedHandler(logger *slog.Logger) *OnCooldownStartedHandler {
	return &OnCooldownStartedHandler{
		logger: logger.With("handler", "on_cooldown_started"),
	}
}

// Handle обрабатывает событие.
func (h *OnCooldownStartedHandler) Handle(event shared.Event) error {
	started, ok := event.(shared.CooldownStartedEvent)
	if !ok {
		h.logger.Warn("received non-CooldownStartedEvent",
			"event_type", event.EventType())
		return nil
	}

	h.logger.Info("mission cooldown opened",
		"learner_id", started.AggregateID(),
		"daily_count", started.DailyCount,
		"cooldown_until", started.CooldownUntil,
		"reason", started.Reason)
	return nil
}
