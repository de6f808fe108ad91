package command

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/bilim-hub/bilim-practice-hub/internal/domain/business"
	"github.com/bilim-hub/bilim-practice-hub/internal/domain/consequence"
	"github.com/bilim-hub/bilim-practice-hub/internal/domain/session"
	"github.com/bilim-hub/bilim-practice-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// TICK BUSINESS COMMAND
// Advances a session's business simulation one step: registration
// processing and the market perturbation of the cash balance.
// ══════════════════════════════════════════════════════════════════════════════

// TickBusinessCommand contains the data to tick a business simulation.
type TickBusinessCommand struct {
	// SessionID is the session whose business should be ticked.
	SessionID string

	// Now is the tick instant (defaults to now if zero). The handler
	// invokes the tick once per observed instant; the simulation itself
	// refuses to re-apply the market delta for an unchanged instant.
	Now time.Time

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c TickBusinessCommand) Validate() error {
	if !shared.SessionID(c.SessionID).IsValid() {
		return errors.New("tick_business: valid session_id is required")
	}
	return nil
}

// TickBusinessResult contains the outcome of a business tick.
type TickBusinessResult struct {
	// SessionID is the session that was ticked.
	SessionID string

	// Business is the state after the tick.
	Business business.SimState

	// Approved indicates the registration transitioned to approved on this tick.
	Approved bool

	// CashDelta is the market adjustment applied to the balance (after clamping).
	CashDelta int

	// RemainingMinutes is the wait left for a pending registration.
	RemainingMinutes int

	// Events contains domain events generated.
	Events []shared.Event
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// TickBusinessHandler handles the TickBusinessCommand.
type TickBusinessHandler struct {
	uow            UnitOfWork
	eventPublisher shared.EventPublisher
	cfg            business.Config
	rng            *rand.Rand
}

// NewTickBusinessHandler creates a new TickBusinessHandler.
// The random source is injected so market behavior is reproducible in tests.
func NewTickBusinessHandler(
	uow UnitOfWork,
	eventPublisher shared.EventPublisher,
	cfg business.Config,
	rng *rand.Rand,
) *TickBusinessHandler {
	if cfg.ProcessingWindow == 0 {
		cfg = business.DefaultConfig()
	}
	return &TickBusinessHandler{
		uow:            uow,
		eventPublisher: eventPublisher,
		cfg:            cfg,
		rng:            rng,
	}
}

// Handle executes the tick business command. The tick runs in one
// transaction with the session row locked, so the background sweep and a
// request-path tick on the same session serialize.
func (h *TickBusinessHandler) Handle(ctx context.Context, cmd TickBusinessCommand) (*TickBusinessResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("tick_business: validation failed: %w", err)
	}

	now := cmd.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var result *TickBusinessResult
	err := h.uow.InSessionTx(ctx, func(sessions session.Repository, _ consequence.Repository) error {
		snapshot, err := sessions.GetByID(ctx, shared.SessionID(cmd.SessionID))
		if err != nil {
			return fmt.Errorf("tick_business: failed to get session: %w", err)
		}
		if !snapshot.IsActive() {
			return shared.NewDomainError("command", "TickBusiness",
				shared.ErrSessionNotActive, "only active sessions are ticked")
		}

		before := snapshot.Business
		after := business.Tick(before, h.cfg, now, h.rng)

		result = &TickBusinessResult{
			SessionID:        cmd.SessionID,
			Business:         after,
			Approved:         before.RegistrationStatus == business.StatusPending && after.RegistrationStatus == business.StatusApproved,
			CashDelta:        after.CashBalance - before.CashBalance,
			RemainingMinutes: business.RegistrationRemainingMinutes(after, h.cfg, now),
			Events:           make([]shared.Event, 0, 1),
		}

		if result.Approved {
			name := ""
			if after.BusinessName != nil {
				name = *after.BusinessName
			}
			submittedAt := now
			if after.RegistrationSubmittedAt != nil {
				submittedAt = *after.RegistrationSubmittedAt
			}
			result.Events = append(result.Events,
				shared.NewBusinessApprovedEvent(cmd.SessionID, name, submittedAt, now))
		}

		snapshot.Business = after
		snapshot.UpdatedAt = now
		if err := sessions.Update(ctx, snapshot); err != nil {
			return fmt.Errorf("tick_business: failed to update session: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, e := range result.Events {
		_ = h.eventPublisher.Publish(e)
	}

	return result, nil
}
