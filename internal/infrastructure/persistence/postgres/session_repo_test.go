package postgres

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bilim-hub/bilim-practice-hub/internal/domain/shared"
)

// ─────────────────────────────────────────────────────────────────────────────
// Recording querier
// ─────────────────────────────────────────────────────────────────────────────

// recordingQuerier captures the SQL a repository issues without a live
// database. Every row read misses so calls bottom out in ErrNoRows.
type recordingQuerier struct {
	queries []string
}

func (q *recordingQuerier) Exec(_ context.Context, sql string, _ ...interface{}) (pgconn.CommandTag, error) {
	q.queries = append(q.queries, sql)
	return pgconn.CommandTag{}, nil
}

func (q *recordingQuerier) Query(_ context.Context, sql string, _ ...interface{}) (pgx.Rows, error) {
	q.queries = append(q.queries, sql)
	return nil, pgx.ErrNoRows
}

func (q *recordingQuerier) QueryRow(_ context.Context, sql string, _ ...interface{}) pgx.Row {
	q.queries = append(q.queries, sql)
	return noRow{}
}

type noRow struct{}

func (noRow) Scan(...interface{}) error { return pgx.ErrNoRows }

// ─────────────────────────────────────────────────────────────────────────────
// Tests
// ─────────────────────────────────────────────────────────────────────────────

func TestSessionRepository_GetByID_PoolScopedReadsWithoutLock(t *testing.T) {
	rec := &recordingQuerier{}
	repo := &SessionRepository{db: rec}

	_, err := repo.GetByID(context.Background(), shared.SessionID("missing"))

	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrSessionNotFound)
	require.Len(t, rec.queries, 1)
	assert.NotContains(t, rec.queries[0], "FOR UPDATE")
}

func TestSessionRepository_GetByID_TransactionalReadLocksRow(t *testing.T) {
	rec := &recordingQuerier{}
	repo := &SessionRepository{db: rec, forUpdate: true}

	_, err := repo.GetByID(context.Background(), shared.SessionID("missing"))

	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrSessionNotFound)
	require.Len(t, rec.queries, 1)
	assert.Contains(t, rec.queries[0], "FOR UPDATE")
}
