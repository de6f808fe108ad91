package eventhandler

import (
	"context"
	"log/slog"

	"github.com/bilim-hub/bilim-practice-hub/internal/domain/session"
	"github.com/bilim-hub/bilim-practice-hub/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON BUSINESS APPROVED HANDLER
// Одобрение бизнеса - заметная веха практикума: поставщики начинают
// доверять новому предпринимателю, поэтому репутация по оси "suppliers"
// получает стартовый бонус.
// ═══════════════════════════════════════════════════════════════════════════

// supplierTrustBonus - стартовый бонус репутации поставщиков при одобрении.
const supplierTrustBonus = 5

// OnBusinessApprovedHandler обрабатывает событие одобрения бизнеса.
type OnBusinessApprovedHandler struct {
	sessionRepo session.Repository
	viewCache   SessionViewCache
	logger      *slog.Logger
}

// NewOnBusinessApprovedHandler создаёт обработчик.
func NewOnBusinessApprovedHandler(sessionRepo session.Repository, viewCache SessionViewCache, logger *slog.Logger) *OnBusinessApprovedHandler {
	return &OnBusinessApprovedHandler{
		sessionRepo: sessionRepo,
		viewCache:   viewCache,
		logger:      logger.With("handler", "on_business_approved"),
	}
}

// Handle обрабатывает событие.
func (h *OnBusinessApprovedHandler) Handle(event shared.Event) error {
	approved, ok := event.(shared.BusinessApprovedEvent)
	if !ok {
		h.logger.Warn("received non-BusinessApprovedEvent",
			"event_type", event.EventType())
		return nil
	}

	ctx := context.Background()
	sessionID := shared.SessionID(approved.AggregateID())

	snapshot, err := h.sessionRepo.GetByID(ctx, sessionID)
	if err != nil {
		h.logger.Error("failed to get session",
			"session_id", approved.AggregateID(),
			"error", err)
		return err
	}

	snapshot.Reputation["suppliers"] += supplierTrustBonus
	if err := h.sessionRepo.Update(ctx, snapshot); err != nil {
		h.logger.Error("failed to update session reputation",
			"session_id", approved.AggregateID(),
			"error", err)
		return err
	}

	if err := h.viewCache.Invalidate(ctx, sessionID); err != nil {
		h.logger.Warn("failed to invalidate session view",
			"session_id", approved.AggregateID(),
			"error", err)
	}

	h.logger.Info("supplier reputation boosted after approval",
		"session_id", approved.AggregateID(),
		"business_name", approved.BusinessName)
	return nil
}
