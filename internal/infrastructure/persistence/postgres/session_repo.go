package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bilim-hub/bilim-practice-hub/internal/domain/business"
	"github.com/bilim-hub/bilim-practice-hub/internal/domain/session"
	"github.com/bilim-hub/bilim-practice-hub/internal/domain/shared"
)

// SessionRepository implements session.Repository using PostgreSQL.
type SessionRepository struct {
	db        Querier
	forUpdate bool
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(conn *Connection) *SessionRepository {
	return &SessionRepository{db: conn}
}

// withTx returns a copy bound to the transaction. Transaction-scoped
// reads lock the session row, serializing commands on one session.
func (r *SessionRepository) withTx(tx pgx.Tx) *SessionRepository {
	return &SessionRepository{db: tx, forUpdate: true}
}

const sessionColumns = `
	id, learner_id, status,
	currency, time_units, energy, inventory,
	reputation,
	registration_status, registration_submitted_at, business_name,
	cash_balance, business_inventory, loans, tax_obligations,
	market_exposure, last_market_update,
	next_seq, created_at, updated_at, completed_at
`

// Create persists a new session snapshot.
func (r *SessionRepository) Create(ctx context.Context, s *session.Snapshot) error {
	query := `
		INSERT INTO sessions (` + sessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
	`

	args, err := sessionArgs(s)
	if err != nil {
		return err
	}

	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		if IsUniqueViolation(err) {
			return shared.WrapError("session", "Create", shared.ErrSessionExists,
				fmt.Sprintf("session %s already exists", s.SessionID), err)
		}
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

// GetByID loads a session snapshot by its ID. Inside a command
// transaction the row is read with FOR UPDATE.
func (r *SessionRepository) GetByID(ctx context.Context, sessionID shared.SessionID) (*session.Snapshot, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`
	if r.forUpdate {
		query += ` FOR UPDATE`
	}

	snapshot, err := scanSession(r.db.QueryRow(ctx, query, string(sessionID)))
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.WrapError("session", "GetByID", shared.ErrSessionNotFound,
				fmt.Sprintf("session %s not found", sessionID), err)
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return snapshot, nil
}

// Update overwrites a session snapshot.
func (r *SessionRepository) Update(ctx context.Context, s *session.Snapshot) error {
	query := `
		UPDATE sessions SET
			status = $2,
			currency = $3, time_units = $4, energy = $5, inventory = $6,
			reputation = $7,
			registration_status = $8, registration_submitted_at = $9, business_name = $10,
			cash_balance = $11, business_inventory = $12, loans = $13, tax_obligations = $14,
			market_exposure = $15, last_market_update = $16,
			next_seq = $17, updated_at = $18, completed_at = $19
		WHERE id = $1
	`

	inventory, err := json.Marshal(s.Resources.Inventory)
	if err != nil {
		return fmt.Errorf("failed to marshal inventory: %w", err)
	}
	reputation, err := json.Marshal(s.Reputation)
	if err != nil {
		return fmt.Errorf("failed to marshal reputation: %w", err)
	}
	businessInventory, err := json.Marshal(s.Business.Inventory)
	if err != nil {
		return fmt.Errorf("failed to marshal business inventory: %w", err)
	}
	loans, err := json.Marshal(s.Business.Loans)
	if err != nil {
		return fmt.Errorf("failed to marshal loans: %w", err)
	}
	taxes, err := json.Marshal(s.Business.TaxObligations)
	if err != nil {
		return fmt.Errorf("failed to marshal tax obligations: %w", err)
	}

	tag, err := r.db.Exec(ctx, query,
		string(s.SessionID),
		string(s.Status),
		s.Resources.Currency, s.Resources.TimeUnits, s.Resources.Energy, inventory,
		reputation,
		string(s.Business.RegistrationStatus), s.Business.RegistrationSubmittedAt, s.Business.BusinessName,
		s.Business.CashBalance, businessInventory, loans, taxes,
		s.Business.MarketExposure, nullableTime(s.Business.LastMarketUpdate),
		s.NextSeq, s.UpdatedAt, s.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NewDomainError("session", "Update", shared.ErrSessionNotFound,
			fmt.Sprintf("session %s not found", s.SessionID))
	}
	return nil
}

// ListActiveByLearner returns the learner's active sessions.
func (r *SessionRepository) ListActiveByLearner(ctx context.Context, learnerID shared.LearnerID) ([]*session.Snapshot, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE learner_id = $1 AND status = 'active'
		ORDER BY created_at
	`

	rows, err := r.db.Query(ctx, query, string(learnerID))
	if err != nil {
		return nil, fmt.Errorf("failed to list active sessions: %w", err)
	}
	defer rows.Close()

	return scanSessions(rows)
}

// ListActiveWithBusiness returns active sessions whose business has been
// submitted or approved, for the background simulation tick.
func (r *SessionRepository) ListActiveWithBusiness(ctx context.Context, limit int) ([]*session.Snapshot, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE status = 'active' AND registration_status <> 'none'
		ORDER BY updated_at
		LIMIT $1
	`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list business sessions: %w", err)
	}
	defer rows.Close()

	return scanSessions(rows)
}

// ListCompletedBefore returns completed, not yet archived sessions.
func (r *SessionRepository) ListCompletedBefore(ctx context.Context, before time.Time, limit int) ([]*session.Snapshot, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE status = 'completed' AND completed_at < $1
		ORDER BY completed_at
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, before, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list completed sessions: %w", err)
	}
	defer rows.Close()

	return scanSessions(rows)
}

// MarkArchived flips a completed session to archived and stores the
// compressed snapshot in one transaction.
func (r *SessionRepository) MarkArchived(ctx context.Context, sessionID shared.SessionID, archivedAt time.Time) error {
	query := `
		UPDATE sessions SET status = 'archived', updated_at = $2
		WHERE id = $1 AND status = 'completed'
	`

	tag, err := r.db.Exec(ctx, query, string(sessionID), archivedAt)
	if err != nil {
		return fmt.Errorf("failed to mark session archived: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.NewDomainError("session", "MarkArchived", shared.ErrStateTransition,
			fmt.Sprintf("session %s is not in completed state", sessionID))
	}
	return nil
}

// SaveArchive stores the compressed payload of an archived session.
func (r *SessionRepository) SaveArchive(ctx context.Context, sessionID shared.SessionID, learnerID shared.LearnerID, compressed []byte, archivedAt time.Time) error {
	query := `
		INSERT INTO session_archives (session_id, learner_id, snapshot, archived_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (session_id) DO UPDATE SET snapshot = EXCLUDED.snapshot, archived_at = EXCLUDED.archived_at
	`

	if _, err := r.db.Exec(ctx, query, string(sessionID), string(learnerID), compressed, archivedAt); err != nil {
		return fmt.Errorf("failed to save session archive: %w", err)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Scan helpers
// ─────────────────────────────────────────────────────────────────────────────

func sessionArgs(s *session.Snapshot) ([]interface{}, error) {
	inventory, err := json.Marshal(s.Resources.Inventory)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal inventory: %w", err)
	}
	reputation, err := json.Marshal(s.Reputation)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal reputation: %w", err)
	}
	businessInventory, err := json.Marshal(s.Business.Inventory)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal business inventory: %w", err)
	}
	loans, err := json.Marshal(s.Business.Loans)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal loans: %w", err)
	}
	taxes, err := json.Marshal(s.Business.TaxObligations)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tax obligations: %w", err)
	}

	return []interface{}{
		string(s.SessionID), string(s.LearnerID), string(s.Status),
		s.Resources.Currency, s.Resources.TimeUnits, s.Resources.Energy, inventory,
		reputation,
		string(s.Business.RegistrationStatus), s.Business.RegistrationSubmittedAt, s.Business.BusinessName,
		s.Business.CashBalance, businessInventory, loans, taxes,
		s.Business.MarketExposure, nullableTime(s.Business.LastMarketUpdate),
		s.NextSeq, s.CreatedAt, s.UpdatedAt, s.CompletedAt,
	}, nil
}

func scanSession(row pgx.Row) (*session.Snapshot, error) {
	var (
		s                session.Snapshot
		sessionID        string
		learnerID        string
		status           string
		inventoryJSON    []byte
		reputationJSON   []byte
		regStatus        string
		bizInventoryJSON []byte
		loansJSON        []byte
		taxesJSON        []byte
		lastMarketUpdate *time.Time
	)

	err := row.Scan(
		&sessionID, &learnerID, &status,
		&s.Resources.Currency, &s.Resources.TimeUnits, &s.Resources.Energy, &inventoryJSON,
		&reputationJSON,
		&regStatus, &s.Business.RegistrationSubmittedAt, &s.Business.BusinessName,
		&s.Business.CashBalance, &bizInventoryJSON, &loansJSON, &taxesJSON,
		&s.Business.MarketExposure, &lastMarketUpdate,
		&s.NextSeq, &s.CreatedAt, &s.UpdatedAt, &s.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	s.SessionID = shared.SessionID(sessionID)
	s.LearnerID = shared.LearnerID(learnerID)
	s.Status = session.Status(status)
	s.Business.RegistrationStatus = business.RegistrationStatus(regStatus)
	if lastMarketUpdate != nil {
		s.Business.LastMarketUpdate = *lastMarketUpdate
	}

	if err := json.Unmarshal(inventoryJSON, &s.Resources.Inventory); err != nil {
		return nil, fmt.Errorf("failed to unmarshal inventory: %w", err)
	}
	if err := json.Unmarshal(reputationJSON, &s.Reputation); err != nil {
		return nil, fmt.Errorf("failed to unmarshal reputation: %w", err)
	}
	if err := json.Unmarshal(bizInventoryJSON, &s.Business.Inventory); err != nil {
		return nil, fmt.Errorf("failed to unmarshal business inventory: %w", err)
	}
	if err := json.Unmarshal(loansJSON, &s.Business.Loans); err != nil {
		return nil, fmt.Errorf("failed to unmarshal loans: %w", err)
	}
	if err := json.Unmarshal(taxesJSON, &s.Business.TaxObligations); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tax obligations: %w", err)
	}
	if s.Resources.Inventory == nil {
		s.Resources.Inventory = map[string]int{}
	}
	if s.Reputation == nil {
		s.Reputation = map[string]int{}
	}
	if s.Business.Inventory == nil {
		s.Business.Inventory = map[string]int{}
	}

	return &s, nil
}

func scanSessions(rows pgx.Rows) ([]*session.Snapshot, error) {
	var sessions []*session.Snapshot
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// nullableTime maps the zero time to NULL.
func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
