package consequence

import (
	"testing"
	"time"

	"github.com/bilim-hub/bilim-practice-hub/internal/domain/resource"
	"github.com/bilim-hub/bilim-practice-hub/internal/domain/shared"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	sessionA = shared.SessionID("6f1f7a2e-44a1-4b02-9c7e-2f0a43a1d001")
	sessionB = shared.SessionID("6f1f7a2e-44a1-4b02-9c7e-2f0a43a1d002")
	baseTime = time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
)

func delayedConsequence(id string, session shared.SessionID, scheduledAt time.Time, seq int64, effects ...resource.Effect) *Consequence {
	return &Consequence{
		ID:          id,
		DecisionID:  "decision-" + id,
		SessionID:   session,
		Type:        TypeDelayed,
		RuleID:      "rule-" + id,
		Effects:     effects,
		ScheduledAt: scheduledAt,
		Seq:         seq,
		CreatedAt:   scheduledAt.Add(-time.Hour),
	}
}

func TestConsequence_IsDue(t *testing.T) {
	c := delayedConsequence("c1", sessionA, baseTime, 1, resource.Currency(10))

	assert.False(t, c.IsDue(baseTime.Add(-time.Second)))
	assert.True(t, c.IsDue(baseTime))
	assert.True(t, c.IsDue(baseTime.Add(time.Hour)))

	appliedAt := baseTime
	c.AppliedAt = &appliedAt
	assert.False(t, c.IsDue(baseTime.Add(time.Hour)), "applied consequences are never due")
}

func TestScheduler_Realize(t *testing.T) {
	scheduler := NewScheduler()
	bundle := resource.NewBundle(100, 5, 50)
	c := delayedConsequence("c1", sessionA, baseTime, 1, resource.Currency(-30), resource.Energy(10))

	next, applied := scheduler.Realize(c, bundle, baseTime.Add(time.Minute))

	assert.Equal(t, 70, next.Currency)
	assert.Equal(t, 60, next.Energy)
	require.NotNil(t, applied.AppliedAt)
	assert.Equal(t, baseTime.Add(time.Minute), *applied.AppliedAt)

	// The input consequence is never mutated.
	assert.Nil(t, c.AppliedAt)
}

func TestScheduler_RealizeAppliedIsNoOp(t *testing.T) {
	scheduler := NewScheduler()
	bundle := resource.NewBundle(100, 5, 50)
	c := delayedConsequence("c1", sessionA, baseTime, 1, resource.Currency(-30))
	appliedAt := baseTime
	c.AppliedAt = &appliedAt

	next, applied := scheduler.Realize(c, bundle, baseTime.Add(time.Hour))

	assert.True(t, next.Equal(bundle), "already-applied consequence must not change the bundle")
	assert.Equal(t, appliedAt, *applied.AppliedAt, "applied mark is not rewritten")
}

func TestScheduler_RealizeAllComposesInOrder(t *testing.T) {
	scheduler := NewScheduler()
	bundle := resource.NewBundle(10, 0, 0)

	// First a clamping debit, then a credit: composition order decides the result.
	due := []*Consequence{
		delayedConsequence("c1", sessionA, baseTime, 1, resource.Currency(-50)),
		delayedConsequence("c2", sessionA, baseTime.Add(time.Minute), 2, resource.Currency(30)),
	}

	next, applied := scheduler.RealizeAll(due, bundle, baseTime.Add(time.Hour))

	assert.Equal(t, 30, next.Currency)
	require.Len(t, applied, 2)
	for _, c := range applied {
		assert.NotNil(t, c.AppliedAt)
	}
}

func TestFilterDue(t *testing.T) {
	all := []*Consequence{
		delayedConsequence("late", sessionA, baseTime.Add(time.Hour), 3),
		delayedConsequence("early", sessionA, baseTime.Add(-time.Hour), 1),
		delayedConsequence("other-session", sessionB, baseTime.Add(-time.Hour), 2),
		delayedConsequence("now", sessionA, baseTime, 4),
	}
	appliedAt := baseTime.Add(-30 * time.Minute)
	appliedOne := delayedConsequence("applied", sessionA, baseTime.Add(-2*time.Hour), 0)
	appliedOne.AppliedAt = &appliedAt
	all = append(all, appliedOne)

	due := FilterDue(all, sessionA, baseTime)

	require.Len(t, due, 2)
	assert.Equal(t, "early", due[0].ID)
	assert.Equal(t, "now", due[1].ID)
}

func TestSortDue_TiesBrokenByCreationOrder(t *testing.T) {
	due := []*Consequence{
		delayedConsequence("second", sessionA, baseTime, 2),
		delayedConsequence("first", sessionA, baseTime, 1),
		delayedConsequence("earliest", sessionA, baseTime.Add(-time.Minute), 9),
	}

	SortDue(due)

	assert.Equal(t, "earliest", due[0].ID)
	assert.Equal(t, "first", due[1].ID)
	assert.Equal(t, "second", due[2].ID)
}
