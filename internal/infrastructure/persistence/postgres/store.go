package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/bilim-hub/bilim-practice-hub/internal/domain/consequence"
	"github.com/bilim-hub/bilim-practice-hub/internal/domain/session"
)

// Store bundles the session and consequence repositories behind one
// transactional boundary. Command handlers run their read-modify-write
// cycle through InSessionTx, so a session update and the consequences it
// marks or schedules commit or roll back together.
type Store struct {
	conn         *Connection
	sessions     *SessionRepository
	consequences *ConsequenceRepository
}

// NewStore creates a new Store.
func NewStore(conn *Connection) *Store {
	return &Store{
		conn:         conn,
		sessions:     NewSessionRepository(conn),
		consequences: NewConsequenceRepository(conn),
	}
}

// Sessions returns the pool-scoped session repository for plain reads
// and background sweeps.
func (s *Store) Sessions() *SessionRepository {
	return s.sessions
}

// Consequences returns the pool-scoped consequence repository.
func (s *Store) Consequences() *ConsequenceRepository {
	return s.consequences
}

// InSessionTx runs fn with repositories bound to one transaction. The
// session read inside fn locks the session row (SELECT ... FOR UPDATE),
// so two commands touching the same session serialize instead of
// overwriting each other's effects.
func (s *Store) InSessionTx(ctx context.Context, fn func(sessions session.Repository, consequences consequence.Repository) error) error {
	return s.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		return fn(s.sessions.withTx(tx), s.consequences.withTx(tx))
	})
}
