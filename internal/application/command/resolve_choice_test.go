package command

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/bilim-hub/bilim-practice-hub/internal/domain/business"
	"github.com/bilim-hub/bilim-practice-hub/internal/domain/consequence"
	"github.com/bilim-hub/bilim-practice-hub/internal/domain/decision"
	"github.com/bilim-hub/bilim-practice-hub/internal/domain/resource"
	"github.com/bilim-hub/bilim-practice-hub/internal/domain/session"
	"github.com/bilim-hub/bilim-practice-hub/internal/domain/shared"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testSessionID = "6f1f7a2e-44a1-4b02-9c7e-2f0a43a1d001"
	testLearnerID = "6f1f7a2e-44a1-4b02-9c7e-2f0a43a1d100"
	testNow       = time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
)

// ─────────────────────────────────────────────────────────────────────────────
// In-memory fakes
// ─────────────────────────────────────────────────────────────────────────────

type fakeSessionRepo struct {
	sessions  map[shared.SessionID]*session.Snapshot
	updateErr error
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{sessions: map[shared.SessionID]*session.Snapshot{}}
}

func (r *fakeSessionRepo) snapshot() map[shared.SessionID]*session.Snapshot {
	copied := make(map[shared.SessionID]*session.Snapshot, len(r.sessions))
	for id, s := range r.sessions {
		copied[id] = s.Clone()
	}
	return copied
}

func (r *fakeSessionRepo) Create(_ context.Context, s *session.Snapshot) error {
	if _, ok := r.sessions[s.SessionID]; ok {
		return shared.ErrSessionExists
	}
	r.sessions[s.SessionID] = s.Clone()
	return nil
}

func (r *fakeSessionRepo) GetByID(_ context.Context, id shared.SessionID) (*session.Snapshot, error) {
	s, ok := r.sessions[id]
	if !ok {
		return nil, shared.ErrSessionNotFound
	}
	return s.Clone(), nil
}

func (r *fakeSessionRepo) Update(_ context.Context, s *session.Snapshot) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	r.sessions[s.SessionID] = s.Clone()
	return nil
}

func (r *fakeSessionRepo) ListActiveByLearner(_ context.Context, learnerID shared.LearnerID) ([]*session.Snapshot, error) {
	var out []*session.Snapshot
	for _, s := range r.sessions {
		if s.LearnerID == learnerID && s.IsActive() {
			out = append(out, s.Clone())
		}
	}
	return out, nil
}

func (r *fakeSessionRepo) ListActiveWithBusiness(_ context.Context, limit int) ([]*session.Snapshot, error) {
	var out []*session.Snapshot
	for _, s := range r.sessions {
		if s.IsActive() && s.Business.RegistrationStatus != business.StatusNone && len(out) < limit {
			out = append(out, s.Clone())
		}
	}
	return out, nil
}

func (r *fakeSessionRepo) ListCompletedBefore(_ context.Context, before time.Time, limit int) ([]*session.Snapshot, error) {
	var out []*session.Snapshot
	for _, s := range r.sessions {
		if s.Status == session.StatusCompleted && s.CompletedAt != nil && s.CompletedAt.Before(before) && len(out) < limit {
			out = append(out, s.Clone())
		}
	}
	return out, nil
}

func (r *fakeSessionRepo) MarkArchived(_ context.Context, id shared.SessionID, _ time.Time) error {
	s, ok := r.sessions[id]
	if !ok {
		return shared.ErrSessionNotFound
	}
	s.Status = session.StatusArchived
	return nil
}

type fakeConsequenceRepo struct {
	consequences map[string]*consequence.Consequence
	createErr    error
}

func newFakeConsequenceRepo() *fakeConsequenceRepo {
	return &fakeConsequenceRepo{consequences: map[string]*consequence.Consequence{}}
}

func (r *fakeConsequenceRepo) snapshot() map[string]*consequence.Consequence {
	copied := make(map[string]*consequence.Consequence, len(r.consequences))
	for id, c := range r.consequences {
		copied[id] = c.Clone()
	}
	return copied
}

func (r *fakeConsequenceRepo) Create(_ context.Context, batch []*consequence.Consequence) error {
	if r.createErr != nil {
		return r.createErr
	}
	for _, c := range batch {
		r.consequences[c.ID] = c.Clone()
	}
	return nil
}

func (r *fakeConsequenceRepo) GetByID(_ context.Context, id string) (*consequence.Consequence, error) {
	c, ok := r.consequences[id]
	if !ok {
		return nil, shared.ErrConsequenceNotFound
	}
	return c.Clone(), nil
}

func (r *fakeConsequenceRepo) ListDue(_ context.Context, sessionID shared.SessionID, now time.Time) ([]*consequence.Consequence, error) {
	all := make([]*consequence.Consequence, 0, len(r.consequences))
	for _, c := range r.consequences {
		all = append(all, c.Clone())
	}
	return consequence.FilterDue(all, sessionID, now), nil
}

func (r *fakeConsequenceRepo) ListSessionsWithDue(_ context.Context, now time.Time, limit int) ([]shared.SessionID, error) {
	seen := map[shared.SessionID]bool{}
	var out []shared.SessionID
	for _, c := range r.consequences {
		if c.IsDue(now) && !seen[c.SessionID] && len(out) < limit {
			seen[c.SessionID] = true
			out = append(out, c.SessionID)
		}
	}
	return out, nil
}

func (r *fakeConsequenceRepo) MarkApplied(_ context.Context, id string, appliedAt time.Time) error {
	c, ok := r.consequences[id]
	if !ok {
		return shared.ErrConsequenceNotFound
	}
	if c.AppliedAt != nil {
		return shared.ErrConsequenceApplied
	}
	at := appliedAt
	c.AppliedAt = &at
	return nil
}

// fakeUnitOfWork runs the function against the in-memory repositories and
// rolls both back when it fails, mirroring the transactional store.
type fakeUnitOfWork struct {
	sessions     *fakeSessionRepo
	consequences *fakeConsequenceRepo
}

func newFakeUnitOfWork() *fakeUnitOfWork {
	return &fakeUnitOfWork{
		sessions:     newFakeSessionRepo(),
		consequences: newFakeConsequenceRepo(),
	}
}

func (u *fakeUnitOfWork) InSessionTx(_ context.Context, fn func(sessions session.Repository, consequences consequence.Repository) error) error {
	sessionsBefore := u.sessions.snapshot()
	consequencesBefore := u.consequences.snapshot()
	if err := fn(u.sessions, u.consequences); err != nil {
		u.sessions.sessions = sessionsBefore
		u.consequences.consequences = consequencesBefore
		return err
	}
	return nil
}

type fakePublisher struct {
	published []shared.Event
}

func (p *fakePublisher) Publish(event shared.Event) error {
	p.published = append(p.published, event)
	return nil
}

func (p *fakePublisher) PublishBatch(events []shared.Event) error {
	p.published = append(p.published, events...)
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Fixtures
// ─────────────────────────────────────────────────────────────────────────────

func seedSession(t *testing.T, repo *fakeSessionRepo) *session.Snapshot {
	t.Helper()
	snapshot := session.NewSnapshot(shared.SessionID(testSessionID),
		shared.LearnerID(testLearnerID), resource.NewBundle(1000, 10, 100), testNow)
	require.NoError(t, repo.Create(context.Background(), snapshot))
	return snapshot
}

func newResolver(t *testing.T) *decision.Resolver {
	t.Helper()
	return decision.NewResolver(decision.DefaultCatalog())
}

func newSeededRand() *rand.Rand {
	return rand.New(rand.NewSource(42))
}

// ─────────────────────────────────────────────────────────────────────────────
// Tests
// ─────────────────────────────────────────────────────────────────────────────

func TestResolveChoiceHandler_BusinessRegister(t *testing.T) {
	uow := newFakeUnitOfWork()
	sessions := uow.sessions
	publisher := &fakePublisher{}
	seedSession(t, sessions)

	handler := NewResolveChoiceHandler(uow, newResolver(t), publisher)
	result, err := handler.Handle(context.Background(), ResolveChoiceCommand{
		SessionID: testSessionID,
		ChoiceID:  "business_register",
		Payload:   map[string]interface{}{"businessName": "Acme"},
		Now:       testNow,
	})

	require.NoError(t, err)
	assert.Equal(t, business.StatusPending, result.Business.RegistrationStatus)
	require.NotNil(t, result.Business.BusinessName)
	assert.Equal(t, "Acme", *result.Business.BusinessName)
	assert.Equal(t, 0, result.Business.CashBalance, "registration leaves the cash balance untouched")
	assert.Empty(t, result.Scheduled)
	assert.Len(t, publisher.published, 1)

	// Immediate costs were applied to the session bundle.
	stored, err := sessions.GetByID(context.Background(), shared.SessionID(testSessionID))
	require.NoError(t, err)
	assert.Equal(t, 8, stored.Resources.TimeUnits)
	assert.Equal(t, 95, stored.Resources.Energy)
	assert.Equal(t, 1000, stored.Resources.Currency)
}

func TestResolveChoiceHandler_UnknownChoiceMutatesNothing(t *testing.T) {
	uow := newFakeUnitOfWork()
	sessions := uow.sessions
	consequences := uow.consequences
	seedSession(t, sessions)

	handler := NewResolveChoiceHandler(uow, newResolver(t), &fakePublisher{})
	_, err := handler.Handle(context.Background(), ResolveChoiceCommand{
		SessionID: testSessionID,
		ChoiceID:  "open_casino",
		Now:       testNow,
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	stored, err := sessions.GetByID(context.Background(), shared.SessionID(testSessionID))
	require.NoError(t, err)
	assert.Equal(t, 1000, stored.Resources.Currency)
	assert.Empty(t, consequences.consequences)
}

func TestResolveChoiceHandler_SchedulesDelayedConsequences(t *testing.T) {
	uow := newFakeUnitOfWork()
	seedSession(t, uow.sessions)

	handler := NewResolveChoiceHandler(uow, newResolver(t), &fakePublisher{})
	result, err := handler.Handle(context.Background(), ResolveChoiceCommand{
		SessionID: testSessionID,
		ChoiceID:  "take_loan",
		Now:       testNow,
	})

	require.NoError(t, err)
	assert.Equal(t, 1500, result.Resources.Currency)
	require.Len(t, result.Scheduled, 1)
	repayment := result.Scheduled[0]
	assert.Equal(t, "loan_repayment", repayment.RuleID)
	assert.Equal(t, testNow.Add(24*time.Hour), repayment.ScheduledAt)
	assert.Nil(t, repayment.AppliedAt)
}

func TestRealizeDueConsequencesHandler_AtMostOnce(t *testing.T) {
	uow := newFakeUnitOfWork()
	seedSession(t, uow.sessions)

	resolve := NewResolveChoiceHandler(uow, newResolver(t), &fakePublisher{})
	_, err := resolve.Handle(context.Background(), ResolveChoiceCommand{
		SessionID: testSessionID,
		ChoiceID:  "take_loan",
		Now:       testNow,
	})
	require.NoError(t, err)

	realize := NewRealizeDueConsequencesHandler(uow,
		consequence.NewScheduler(), &fakePublisher{})

	// Before maturity nothing is realized.
	early, err := realize.Handle(context.Background(), RealizeDueConsequencesCommand{
		SessionID: testSessionID,
		Now:       testNow.Add(time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, early.Realized)

	// At maturity the repayment lands exactly once.
	first, err := realize.Handle(context.Background(), RealizeDueConsequencesCommand{
		SessionID: testSessionID,
		Now:       testNow.Add(25 * time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Realized)
	assert.Equal(t, 950, first.Resources.Currency)

	// A retried pass sees nothing due and changes nothing.
	second, err := realize.Handle(context.Background(), RealizeDueConsequencesCommand{
		SessionID: testSessionID,
		Now:       testNow.Add(26 * time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Realized)
	assert.Equal(t, 950, second.Resources.Currency)
}

func TestTickBusinessHandler_ApprovesAfterWindow(t *testing.T) {
	uow := newFakeUnitOfWork()
	publisher := &fakePublisher{}
	seedSession(t, uow.sessions)

	resolve := NewResolveChoiceHandler(uow, newResolver(t), &fakePublisher{})
	_, err := resolve.Handle(context.Background(), ResolveChoiceCommand{
		SessionID: testSessionID,
		ChoiceID:  "business_register",
		Payload:   map[string]interface{}{"businessName": "Acme"},
		Now:       testNow,
	})
	require.NoError(t, err)

	cfg := business.DefaultConfig()
	tick := NewTickBusinessHandler(uow, publisher, cfg, newSeededRand())

	pending, err := tick.Handle(context.Background(), TickBusinessCommand{
		SessionID: testSessionID,
		Now:       testNow.Add(10 * time.Minute),
	})
	require.NoError(t, err)
	assert.False(t, pending.Approved)
	assert.Equal(t, 20, pending.RemainingMinutes)

	approved, err := tick.Handle(context.Background(), TickBusinessCommand{
		SessionID: testSessionID,
		Now:       testNow.Add(cfg.ProcessingWindow),
	})
	require.NoError(t, err)
	assert.True(t, approved.Approved)
	assert.Equal(t, business.StatusApproved, approved.Business.RegistrationStatus)
	require.NotEmpty(t, approved.Events)
	assert.Equal(t, shared.EventBusinessApproved, approved.Events[0].EventType())
}

func TestResolveChoiceHandler_ScheduleFailureRollsBackSession(t *testing.T) {
	uow := newFakeUnitOfWork()
	publisher := &fakePublisher{}
	seedSession(t, uow.sessions)

	uow.consequences.createErr = errors.New("insert failed")

	handler := NewResolveChoiceHandler(uow, newResolver(t), publisher)
	_, err := handler.Handle(context.Background(), ResolveChoiceCommand{
		SessionID: testSessionID,
		ChoiceID:  "take_loan",
		Now:       testNow,
	})
	require.Error(t, err)

	// The loan principal was applied inside the transaction, so a failed
	// consequence insert must take the session update down with it.
	stored, err := uow.sessions.GetByID(context.Background(), shared.SessionID(testSessionID))
	require.NoError(t, err)
	assert.Equal(t, 1000, stored.Resources.Currency)
	assert.Empty(t, uow.consequences.consequences)
	assert.Empty(t, publisher.published, "no events before commit")
}

func TestRealizeDueConsequencesHandler_UpdateFailureKeepsConsequenceDue(t *testing.T) {
	uow := newFakeUnitOfWork()
	publisher := &fakePublisher{}
	seedSession(t, uow.sessions)

	resolve := NewResolveChoiceHandler(uow, newResolver(t), &fakePublisher{})
	_, err := resolve.Handle(context.Background(), ResolveChoiceCommand{
		SessionID: testSessionID,
		ChoiceID:  "take_loan",
		Now:       testNow,
	})
	require.NoError(t, err)

	realize := NewRealizeDueConsequencesHandler(uow,
		consequence.NewScheduler(), publisher)
	maturity := testNow.Add(25 * time.Hour)

	// A consequence must never stay marked applied when the bundle it
	// produced failed to persist.
	uow.sessions.updateErr = errors.New("connection reset")
	_, err = realize.Handle(context.Background(), RealizeDueConsequencesCommand{
		SessionID: testSessionID,
		Now:       maturity,
	})
	require.Error(t, err)
	assert.Empty(t, publisher.published)

	due, err := uow.consequences.ListDue(context.Background(),
		shared.SessionID(testSessionID), maturity)
	require.NoError(t, err)
	require.Len(t, due, 1, "rolled-back consequence is selectable again")
	assert.Nil(t, due[0].AppliedAt)

	// Once the write path recovers, the retried pass lands the repayment.
	uow.sessions.updateErr = nil
	retried, err := realize.Handle(context.Background(), RealizeDueConsequencesCommand{
		SessionID: testSessionID,
		Now:       maturity,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, retried.Realized)
	assert.Equal(t, 950, retried.Resources.Currency)
	assert.Len(t, publisher.published, 1)
}

func TestSessionLifecycleHandler_StartAndComplete(t *testing.T) {
	uow := newFakeUnitOfWork()
	handler := NewSessionLifecycleHandler(uow, resource.NewBundle(1000, 10, 100))

	started, err := handler.HandleStart(context.Background(), StartSessionCommand{
		LearnerID: testLearnerID,
		Now:       testNow,
	})
	require.NoError(t, err)
	assert.Equal(t, 1000, started.Session.Resources.Currency)

	completed, err := handler.HandleComplete(context.Background(), CompleteSessionCommand{
		SessionID: string(started.Session.SessionID),
		Now:       testNow.Add(time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, session.StatusCompleted, completed.Session.Status)

	stored, err := uow.sessions.GetByID(context.Background(), started.Session.SessionID)
	require.NoError(t, err)
	assert.Equal(t, session.StatusCompleted, stored.Status)
}
