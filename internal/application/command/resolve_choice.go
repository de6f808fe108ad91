// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bilim-hub/bilim-practice-hub/internal/domain/business"
	"github.com/bilim-hub/bilim-practice-hub/internal/domain/consequence"
	"github.com/bilim-hub/bilim-practice-hub/internal/domain/decision"
	"github.com/bilim-hub/bilim-practice-hub/internal/domain/resource"
	"github.com/bilim-hub/bilim-practice-hub/internal/domain/session"
	"github.com/bilim-hub/bilim-practice-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESOLVE CHOICE COMMAND
// Resolves a learner's decision inside a practice session: applies the
// immediate resource effects, schedules the delayed consequences, and runs
// any lifecycle action the rule carries (business registration).
// ══════════════════════════════════════════════════════════════════════════════

// ResolveChoiceCommand contains the data to resolve a decision.
type ResolveChoiceCommand struct {
	// SessionID is the session the decision belongs to.
	SessionID string

	// ChoiceID identifies the rule in the decision catalog.
	ChoiceID string

	// Payload carries the choice's rule-specific fields
	// (e.g. businessName for registration, bulk for inventory purchases).
	Payload map[string]interface{}

	// Profile is the learner's skill/reputation slice used by fast-track rules.
	Profile decision.Profile

	// Now is the decision instant (defaults to now if zero).
	Now time.Time

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c ResolveChoiceCommand) Validate() error {
	if !shared.SessionID(c.SessionID).IsValid() {
		return errors.New("resolve_choice: valid session_id is required")
	}
	if !shared.ChoiceID(c.ChoiceID).IsValid() {
		return errors.New("resolve_choice: valid choice_id is required")
	}
	return nil
}

// ResolveChoiceResult contains the outcome of a resolved decision.
type ResolveChoiceResult struct {
	// SessionID is the session the decision belongs to.
	SessionID string

	// DecisionID is the identifier assigned to this decision.
	DecisionID string

	// Resources is the bundle after the immediate effects.
	Resources resource.Bundle

	// Business is the business state after any lifecycle action.
	Business business.SimState

	// Scheduled are the persisted delayed consequences.
	Scheduled []*consequence.Consequence

	// Events contains domain events generated.
	Events []shared.Event

	// ResolvedAt is the decision instant.
	ResolvedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// ResolveChoiceHandler handles the ResolveChoiceCommand.
//
// The whole read-modify-write cycle runs in one transaction with the
// session row locked: the session update and the consequence batch commit
// atomically, and a concurrent command on the same session waits for the
// lock instead of overwriting this one's effects.
type ResolveChoiceHandler struct {
	uow            UnitOfWork
	resolver       *decision.Resolver
	eventPublisher shared.EventPublisher
}

// NewResolveChoiceHandler creates a new ResolveChoiceHandler.
func NewResolveChoiceHandler(
	uow UnitOfWork,
	resolver *decision.Resolver,
	eventPublisher shared.EventPublisher,
) *ResolveChoiceHandler {
	return &ResolveChoiceHandler{
		uow:            uow,
		resolver:       resolver,
		eventPublisher: eventPublisher,
	}
}

// Handle executes the resolve choice command.
func (h *ResolveChoiceHandler) Handle(ctx context.Context, cmd ResolveChoiceCommand) (*ResolveChoiceResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("resolve_choice: validation failed: %w", err)
	}

	now := cmd.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var result *ResolveChoiceResult
	err := h.uow.InSessionTx(ctx, func(sessions session.Repository, consequences consequence.Repository) error {
		snapshot, err := sessions.GetByID(ctx, shared.SessionID(cmd.SessionID))
		if err != nil {
			return fmt.Errorf("resolve_choice: failed to get session: %w", err)
		}
		if !snapshot.IsActive() {
			return shared.NewDomainError("command", "ResolveChoice",
				shared.ErrSessionNotActive, "decisions are only accepted on active sessions")
		}

		// An invalid choice must never mutate state, so resolution runs
		// before anything is written.
		resolution, err := h.resolver.ResolveChoice(shared.ChoiceID(cmd.ChoiceID), cmd.Payload,
			snapshot.SessionID, cmd.Profile)
		if err != nil {
			return err
		}

		snapshot.Resources = resource.ApplyDelta(snapshot.Resources, resolution.Immediate)

		if resolution.Action == decision.ActionBusinessRegister {
			next, err := business.SubmitRegistration(snapshot.Business, resolution.BusinessName, now)
			if err != nil {
				return err
			}
			snapshot.Business = next
		}

		decisionID := uuid.NewString()
		scheduled := make([]*consequence.Consequence, 0, len(resolution.Delayed))
		for _, spec := range resolution.Delayed {
			scheduled = append(scheduled, &consequence.Consequence{
				ID:          uuid.NewString(),
				DecisionID:  decisionID,
				SessionID:   snapshot.SessionID,
				Type:        consequence.TypeDelayed,
				RuleID:      spec.RuleID,
				Effects:     spec.Effects,
				ScheduledAt: now.Add(spec.Delay),
				Seq:         snapshot.AllocateSeq(),
				CreatedAt:   now,
			})
		}

		snapshot.UpdatedAt = now
		if err := sessions.Update(ctx, snapshot); err != nil {
			return fmt.Errorf("resolve_choice: failed to update session: %w", err)
		}
		if len(scheduled) > 0 {
			if err := consequences.Create(ctx, scheduled); err != nil {
				return fmt.Errorf("resolve_choice: failed to schedule consequences: %w", err)
			}
		}

		event := shared.NewChoiceResolvedEvent(cmd.SessionID, string(snapshot.LearnerID),
			cmd.ChoiceID, len(resolution.Immediate), len(scheduled))

		result = &ResolveChoiceResult{
			SessionID:  cmd.SessionID,
			DecisionID: decisionID,
			Resources:  snapshot.Resources,
			Business:   snapshot.Business,
			Scheduled:  scheduled,
			Events:     []shared.Event{event},
			ResolvedAt: now,
		}
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
