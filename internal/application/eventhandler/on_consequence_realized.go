// Package eventhandler содержит обработчики доменных событий.
package eventhandler

import (
	"context"
	"log/slog"

	"github.com/bilim-hub/bilim-practice-hub/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON CONSEQUENCE REALIZED HANDLER
// Реализованное следствие меняет ресурсный бандл сессии, поэтому
// кэшированное представление сессии нужно сбросить - иначе интерфейс
// покажет устаревшие ресурсы до следующей мутации.
// ═══════════════════════════════════════════════════════════════════════════

// SessionViewCache - кэш отображаемого состояния сессии.
// Реализация находится в infrastructure/persistence/redis.
type SessionViewCache interface {
	// Invalidate сбрасывает кэшированное представление сессии.
	Invalidate(ctx context.Context, sessionID shared.SessionID) error
}

// OnConsequenceRealizedHandler обрабатывает событие реализации следствия.
type OnConsequenceRealizedHandler struct {
	viewCache SessionViewCache
	logger    *slog.Logger
}

// NewOnConsequenceRealizedHandler создаёт обработчик.
func NewOnConsequenceRealizedHandler(viewCache SessionViewCache, logger *slog.Logger) *OnConsequenceRealizedHandler {
	return &OnConsequenceRealizedHandler{
		viewCache: viewCache,
		logger:    logger.With("handler", "on_consequence_realized"),
	}
}

// Handle обрабатывает событие.
func (h *OnConsequenceRealizedHandler) Handle(event shared.Event) error {
	realized, ok := event.(shared.ConsequenceRealizedEvent)
	if !ok {
		h.logger.Warn("received non-ConsequenceRealizedEvent",
			"event_type", event.EventType())
		return nil
	}

	ctx := context.Background()
	sessionID := shared.SessionID(realized.AggregateID())

	if err := h.viewCache.Invalidate(ctx, sessionID); err != nil {
		// Кэш протухнет сам по TTL; сбой инвалидации не фатален.
		h.logger.Warn("failed to invalidate session view",
			"session_id", realized.AggregateID(),
			"error", err)
		return nil
	}

	h.logger.Info("session view invalidated after consequence",
		"session_id", realized.AggregateID(),
		"consequence_id", realized.ConsequenceID,
		"rule_id", realized.RuleID)
	return nil
}
