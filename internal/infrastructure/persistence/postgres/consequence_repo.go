package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bilim-hub/bilim-practice-hub/internal/domain/consequence"
	"github.com/bilim-hub/bilim-practice-hub/internal/domain/resource"
	"github.com/bilim-hub/bilim-practice-hub/internal/domain/shared"
)

// ConsequenceRepository implements consequence.Repository using PostgreSQL.
type ConsequenceRepository struct {
	db Querier
}

// NewConsequenceRepository creates a new ConsequenceRepository.
func NewConsequenceRepository(conn *Connection) *ConsequenceRepository {
	return &ConsequenceRepository{db: conn}
}

// withTx returns a copy bound to the transaction.
func (r *ConsequenceRepository) withTx(tx pgx.Tx) *ConsequenceRepository {
	return &ConsequenceRepository{db: tx}
}

const consequenceColumns = `
	id, decision_id, session_id, type, rule_id, effects,
	scheduled_at, applied_at, seq, created_at
`

// Create persists a batch of consequences (usually one decision's worth).
// Commands call it through their transaction, so the batch lands
// atomically with the session update that scheduled it.
func (r *ConsequenceRepository) Create(ctx context.Context, batch []*consequence.Consequence) error {
	if len(batch) == 0 {
		return nil
	}

	query := `
		INSERT INTO consequences (` + consequenceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	for _, c := range batch {
		effects, err := json.Marshal(c.Effects)
		if err != nil {
			return fmt.Errorf("failed to marshal effects: %w", err)
		}
		if _, err := r.db.Exec(ctx, query,
			c.ID, c.DecisionID, string(c.SessionID), string(c.Type), c.RuleID, effects,
			c.ScheduledAt, c.AppliedAt, c.Seq, c.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to insert consequence %s: %w", c.ID, err)
		}
	}
	return nil
}

// GetByID loads a consequence by its ID.
func (r *ConsequenceRepository) GetByID(ctx context.Context, id string) (*consequence.Consequence, error) {
	query := `SELECT ` + consequenceColumns + ` FROM consequences WHERE id = $1`

	c, err := scanConsequence(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.WrapError("consequence", "GetByID", shared.ErrConsequenceNotFound,
				fmt.Sprintf("consequence %s not found", id), err)
		}
		return nil, fmt.Errorf("failed to get consequence: %w", err)
	}
	return c, nil
}

// ListDue returns the session's matured, unapplied consequences ordered by
// (scheduled_at, seq) so simultaneous effects compose deterministically.
func (r *ConsequenceRepository) ListDue(ctx context.Context, sessionID shared.SessionID, now time.Time) ([]*consequence.Consequence, error) {
	query := `
		SELECT ` + consequenceColumns + `
		FROM consequences
		WHERE session_id = $1 AND scheduled_at <= $2 AND applied_at IS NULL
		ORDER BY scheduled_at, seq
	`

	rows, err := r.db.Query(ctx, query, string(sessionID), now)
	if err != nil {
		return nil, fmt.Errorf("failed to list due consequences: %w", err)
	}
	defer rows.Close()

	var due []*consequence.Consequence
	for rows.Next() {
		c, err := scanConsequence(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan consequence row: %w", err)
		}
		due = append(due, c)
	}
	return due, rows.Err()
}

// ListSessionsWithDue returns sessions holding matured consequences, for
// the background sweep.
func (r *ConsequenceRepository) ListSessionsWithDue(ctx context.Context, now time.Time, limit int) ([]shared.SessionID, error) {
	query := `
		SELECT DISTINCT session_id
		FROM consequences
		WHERE scheduled_at <= $1 AND applied_at IS NULL
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions with due consequences: %w", err)
	}
	defer rows.Close()

	var sessions []shared.SessionID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan session id: %w", err)
		}
		sessions = append(sessions, shared.SessionID(id))
	}
	return sessions, rows.Err()
}

// MarkApplied stamps applied_at with a compare-and-swap on NULL. A row
// already claimed by a concurrent pass yields ErrConsequenceApplied, which
// callers treat as an idempotent retry rather than a failure.
func (r *ConsequenceRepository) MarkApplied(ctx context.Context, id string, appliedAt time.Time) error {
	query := `
		UPDATE consequences SET applied_at = $2
		WHERE id = $1 AND applied_at IS NULL
	`

	tag, err := r.db.Exec(ctx, query, id, appliedAt)
	if err != nil {
		return fmt.Errorf("failed to mark consequence applied: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Either the row is missing or it was already applied.
		var exists bool
		if err := r.db.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM consequences WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check consequence existence: %w", err)
		}
		if !exists {
			return shared.NewDomainError("consequence", "MarkApplied", shared.ErrConsequenceNotFound,
				fmt.Sprintf("consequence %s not found", id))
		}
		return shared.NewDomainError("consequence", "MarkApplied", shared.ErrConsequenceApplied,
			fmt.Sprintf("consequence %s was already applied", id))
	}
	return nil
}

func scanConsequence(row pgx.Row) (*consequence.Consequence, error) {
	var (
		c           consequence.Consequence
		sessionID   string
		ctype       string
		effectsJSON []byte
	)

	err := row.Scan(
		&c.ID, &c.DecisionID, &sessionID, &ctype, &c.RuleID, &effectsJSON,
		&c.ScheduledAt, &c.AppliedAt, &c.Seq, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.SessionID = shared.SessionID(sessionID)
	c.Type = consequence.Type(ctype)
	c.Effects = []resource.Effect{}
	if err := json.Unmarshal(effectsJSON, &c.Effects); err != nil {
		return nil, fmt.Errorf("failed to unmarshal effects: %w", err)
	}
	return &c, nil
}
