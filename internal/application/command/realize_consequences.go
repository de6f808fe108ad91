package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bilim-hub/bilim-practice-hub/internal/domain/consequence"
	"github.com/bilim-hub/bilim-practice-hub/internal/domain/resource"
	"github.com/bilim-hub/bilim-practice-hub/internal/domain/session"
	"github.com/bilim-hub/bilim-practice-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REALIZE DUE CONSEQUENCES COMMAND
// Applies every matured consequence of a session to its resource bundle,
// in ascending scheduledAt order, at most once each.
// ══════════════════════════════════════════════════════════════════════════════

// RealizeDueConsequencesCommand contains the data to realize due consequences.
type RealizeDueConsequencesCommand struct {
	// SessionID is the session whose consequences should be realized.
	SessionID string

	// Now is the maturity cutoff (defaults to now if zero).
	Now time.Time

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c RealizeDueConsequencesCommand) Validate() error {
	if !shared.SessionID(c.SessionID).IsValid() {
		return errors.New("realize_consequences: valid session_id is required")
	}
	return nil
}

// RealizeDueConsequencesResult contains the outcome of a realization pass.
type RealizeDueConsequencesResult struct {
	// SessionID is the session that was processed.
	SessionID string

	// Realized is how many consequences were applied in this pass.
	Realized int

	// Skipped is how many turned out to be already applied (idempotent retries).
	Skipped int

	// Resources is the bundle after the pass.
	Resources resource.Bundle

	// Events contains domain events generated.
	Events []shared.Event
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// RealizeDueConsequencesHandler handles the RealizeDueConsequencesCommand.
type RealizeDueConsequencesHandler struct {
	uow            UnitOfWork
	scheduler      *consequence.Scheduler
	eventPublisher shared.EventPublisher
}

// NewRealizeDueConsequencesHandler creates a new RealizeDueConsequencesHandler.
func NewRealizeDueConsequencesHandler(
	uow UnitOfWork,
	scheduler *consequence.Scheduler,
	eventPublisher shared.EventPublisher,
) *RealizeDueConsequencesHandler {
	return &RealizeDueConsequencesHandler{
		uow:            uow,
		scheduler:      scheduler,
		eventPublisher: eventPublisher,
	}
}

// Handle executes the realize due consequences command.
//
// The pass runs in one transaction with the session row locked, so the
// applied_at stamps and the bundle they produced commit together - a
// consequence is never marked applied without its effects landing.
// MarkApplied stays a compare-and-swap on applied_at on top of that: if
// an earlier pass already claimed the consequence, this pass skips its
// effects instead of double-applying them.
func (h *RealizeDueConsequencesHandler) Handle(ctx context.Context, cmd RealizeDueConsequencesCommand) (*RealizeDueConsequencesResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("realize_consequences: validation failed: %w", err)
	}

	now := cmd.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var result *RealizeDueConsequencesResult
	err := h.uow.InSessionTx(ctx, func(sessions session.Repository, consequences consequence.Repository) error {
		snapshot, err := sessions.GetByID(ctx, shared.SessionID(cmd.SessionID))
		if err != nil {
			return fmt.Errorf("realize_consequences: failed to get session: %w", err)
		}

		due, err := consequences.ListDue(ctx, snapshot.SessionID, now)
		if err != nil {
			return fmt.Errorf("realize_consequences: failed to list due: %w", err)
		}

		result = &RealizeDueConsequencesResult{
			SessionID: cmd.SessionID,
			Resources: snapshot.Resources,
			Events:    make([]shared.Event, 0, len(due)),
		}
		if len(due) == 0 {
			return nil
		}

		bundle := snapshot.Resources
		for _, c := range due {
			if err := consequences.MarkApplied(ctx, c.ID, now); err != nil {
				if errors.Is(err, shared.ErrConsequenceApplied) {
					result.Skipped++
					continue
				}
				return fmt.Errorf("realize_consequences: failed to mark applied: %w", err)
			}

			bundle, _ = h.scheduler.Realize(c, bundle, now)
			result.Realized++
			result.Events = append(result.Events, shared.NewConsequenceRealizedEvent(
				cmd.SessionID, c.ID, c.RuleID, c.ScheduledAt, len(c.Effects)))
		}

		snapshot.Resources = bundle
		snapshot.UpdatedAt = now
		if err := sessions.Update(ctx, snapshot); err != nil {
			return fmt.Errorf("realize_consequences: failed to update session: %w", err)
		}
		result.Resources = bundle
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Events go out only after the transaction commits.
	for _, e := range result.Events {
		_ = h.eventPublisher.Publish(e)
	}

	return result, nil
}
