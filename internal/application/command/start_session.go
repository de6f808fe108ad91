package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bilim-hub/bilim-practice-hub/internal/domain/consequence"
	"github.com/bilim-hub/bilim-practice-hub/internal/domain/resource"
	"github.com/bilim-hub/bilim-practice-hub/internal/domain/session"
	"github.com/bilim-hub/bilim-practice-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// START / COMPLETE SESSION COMMANDS
// Session lifecycle around the simulation: a session is created with the
// practice's starting resources and frozen (not deleted) on completion.
// ══════════════════════════════════════════════════════════════════════════════

// StartSessionCommand contains the data to start a practice session.
type StartSessionCommand struct {
	// LearnerID is the learner starting the session.
	LearnerID string

	// Start is the starting resource bundle (defaults if zero-valued).
	Start resource.Bundle

	// Now is the start instant (defaults to now if zero).
	Now time.Time

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c StartSessionCommand) Validate() error {
	if !shared.LearnerID(c.LearnerID).IsValid() {
		return errors.New("start_session: valid learner_id is required")
	}
	return nil
}

// StartSessionResult contains the created session.
type StartSessionResult struct {
	// Session is the freshly created snapshot.
	Session *session.Snapshot
}

// CompleteSessionCommand contains the data to complete a session.
type CompleteSessionCommand struct {
	// SessionID is the session to complete.
	SessionID string

	// Now is the completion instant (defaults to now if zero).
	Now time.Time

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c CompleteSessionCommand) Validate() error {
	if !shared.SessionID(c.SessionID).IsValid() {
		return errors.New("complete_session: valid session_id is required")
	}
	return nil
}

// CompleteSessionResult contains the frozen session.
type CompleteSessionResult struct {
	// Session is the completed snapshot.
	Session *session.Snapshot
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// SessionLifecycleHandler handles session start and completion.
type SessionLifecycleHandler struct {
	uow          UnitOfWork
	defaultStart resource.Bundle
}

// NewSessionLifecycleHandler creates a new SessionLifecycleHandler.
func NewSessionLifecycleHandler(uow UnitOfWork, defaultStart resource.Bundle) *SessionLifecycleHandler {
	return &SessionLifecycleHandler{
		uow:          uow,
		defaultStart: defaultStart,
	}
}

// HandleStart executes the start session command.
func (h *SessionLifecycleHandler) HandleStart(ctx context.Context, cmd StartSessionCommand) (*StartSessionResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("start_session: validation failed: %w", err)
	}

	now := cmd.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	start := cmd.Start
	if start.Equal(resource.Bundle{}) {
		start = h.defaultStart.Clone()
	}

	snapshot := session.NewSnapshot(shared.SessionID(uuid.NewString()),
		shared.LearnerID(cmd.LearnerID), start, now)

	err := h.uow.InSessionTx(ctx, func(sessions session.Repository, _ consequence.Repository) error {
		if err := sessions.Create(ctx, snapshot); err != nil {
			return fmt.Errorf("start_session: failed to create session: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &StartSessionResult{Session: snapshot}, nil
}

// HandleComplete executes the complete session command.
func (h *SessionLifecycleHandler) HandleComplete(ctx context.Context, cmd CompleteSessionCommand) (*CompleteSessionResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("complete_session: validation failed: %w", err)
	}

	now := cmd.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	var snapshot *session.Snapshot
	err := h.uow.InSessionTx(ctx, func(sessions session.Repository, _ consequence.Repository) error {
		var err error
		snapshot, err = sessions.GetByID(ctx, shared.SessionID(cmd.SessionID))
		if err != nil {
			return fmt.Errorf("complete_session: failed to get session: %w", err)
		}
		if err := snapshot.Complete(now); err != nil {
			return err
		}
		if err := sessions.Update(ctx, snapshot); err != nil {
			return fmt.Errorf("complete_session: failed to update session: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &CompleteSessionResult{Session: snapshot}, nil
}
