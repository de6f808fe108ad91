package session

import (
	"testing"
	"time"

	"github.com/bilim-hub/bilim-practice-hub/internal/domain/resource"
	"github.com/bilim-hub/bilim-practice-hub/internal/domain/shared"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	sessionID = shared.SessionID("6f1f7a2e-44a1-4b02-9c7e-2f0a43a1d001")
	learnerID = shared.LearnerID("6f1f7a2e-44a1-4b02-9c7e-2f0a43a1d100")
	now       = time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
)

func TestNewSnapshot(t *testing.T) {
	start := resource.NewBundle(1000, 10, 100)

	snapshot := NewSnapshot(sessionID, learnerID, start, now)

	assert.Equal(t, StatusActive, snapshot.Status)
	assert.True(t, snapshot.IsActive())
	assert.True(t, snapshot.Resources.Equal(start))
	assert.Nil(t, snapshot.CompletedAt)
}

func TestSnapshot_AllocateSeq(t *testing.T) {
	snapshot := NewSnapshot(sessionID, learnerID, resource.NewBundle(0, 0, 0), now)

	assert.Equal(t, int64(1), snapshot.AllocateSeq())
	assert.Equal(t, int64(2), snapshot.AllocateSeq())
	assert.Equal(t, int64(3), snapshot.AllocateSeq())
}

func TestSnapshot_Complete(t *testing.T) {
	snapshot := NewSnapshot(sessionID, learnerID, resource.NewBundle(0, 0, 0), now)

	err := snapshot.Complete(now.Add(time.Hour))

	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, snapshot.Status)
	require.NotNil(t, snapshot.CompletedAt)
	assert.Equal(t, now.Add(time.Hour), *snapshot.CompletedAt)

	// Completing twice is a state error.
	err = snapshot.Complete(now.Add(2 * time.Hour))
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrSessionNotActive)
}

func TestSnapshot_CloneIsDeep(t *testing.T) {
	snapshot := NewSnapshot(sessionID, learnerID, resource.NewBundle(100, 5, 50), now)
	snapshot.Reputation["suppliers"] = 10
	snapshot.Resources.Inventory["flour"] = 3

	clone := snapshot.Clone()
	clone.Reputation["suppliers"] = -5
	clone.Resources.Inventory["flour"] = 77
	clone.Business.CashBalance = 999

	assert.Equal(t, 10, snapshot.Reputation["suppliers"])
	assert.Equal(t, 3, snapshot.Resources.Inventory["flour"])
	assert.Equal(t, 0, snapshot.Business.CashBalance)
}
