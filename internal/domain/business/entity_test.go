package business

import (
	"math/rand"
	"testing"
	"time"

	"github.com/bilim-hub/bilim-practice-hub/internal/domain/shared"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

func TestSubmitRegistration(t *testing.T) {
	state := NewSimState()
	state.CashBalance = 100

	next, err := SubmitRegistration(state, "Acme", now)

	require.NoError(t, err)
	assert.Equal(t, StatusPending, next.RegistrationStatus)
	require.NotNil(t, next.BusinessName)
	assert.Equal(t, "Acme", *next.BusinessName)
	require.NotNil(t, next.RegistrationSubmittedAt)
	assert.Equal(t, now, *next.RegistrationSubmittedAt)
	assert.Equal(t, 100, next.CashBalance, "registration never touches the cash balance")

	// The input state stays untouched.
	assert.Equal(t, StatusNone, state.RegistrationStatus)
}

func TestSubmitRegistration_EmptyName(t *testing.T) {
	_, err := SubmitRegistration(NewSimState(), "   ", now)

	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrBusinessNameRequired)
}

func TestSubmitRegistration_AlreadyPending(t *testing.T) {
	state, err := SubmitRegistration(NewSimState(), "Acme", now)
	require.NoError(t, err)

	_, err = SubmitRegistration(state, "Acme 2", now.Add(time.Minute))

	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrRegistrationPending)
}

func TestSubmitRegistration_AlreadyApproved(t *testing.T) {
	state, err := SubmitRegistration(NewSimState(), "Acme", now)
	require.NoError(t, err)
	state = TickRegistration(state, DefaultConfig(), now.Add(time.Hour))
	require.Equal(t, StatusApproved, state.RegistrationStatus)

	_, err = SubmitRegistration(state, "Acme 2", now.Add(2*time.Hour))

	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrRegistrationApproved)
}

func TestSubmitRegistration_RejectedMayRetry(t *testing.T) {
	state := NewSimState()
	state.RegistrationStatus = StatusRejected

	next, err := SubmitRegistration(state, "Acme Reborn", now)

	require.NoError(t, err)
	assert.Equal(t, StatusPending, next.RegistrationStatus)
}

func TestTickRegistration(t *testing.T) {
	cfg := DefaultConfig()
	state, err := SubmitRegistration(NewSimState(), "Acme", now)
	require.NoError(t, err)

	// Inside the processing window: no transition.
	early := TickRegistration(state, cfg, now.Add(cfg.ProcessingWindow-time.Second))
	assert.Equal(t, StatusPending, early.RegistrationStatus)

	// On the boundary: approved.
	approved := TickRegistration(state, cfg, now.Add(cfg.ProcessingWindow))
	assert.Equal(t, StatusApproved, approved.RegistrationStatus)

	// Repeated ticks over approved change nothing.
	again := TickRegistration(approved, cfg, now.Add(2*cfg.ProcessingWindow))
	assert.Equal(t, approved, again)
}

func TestRegistrationRemainingMinutes(t *testing.T) {
	cfg := DefaultConfig()
	state, err := SubmitRegistration(NewSimState(), "Acme", now)
	require.NoError(t, err)

	assert.Equal(t, 30, RegistrationRemainingMinutes(state, cfg, now))
	assert.Equal(t, 20, RegistrationRemainingMinutes(state, cfg, now.Add(10*time.Minute)))
	assert.Equal(t, 1, RegistrationRemainingMinutes(state, cfg, now.Add(29*time.Minute+30*time.Second)))
	assert.Equal(t, 0, RegistrationRemainingMinutes(state, cfg, now.Add(time.Hour)), "floored at zero")
	assert.Equal(t, 0, RegistrationRemainingMinutes(NewSimState(), cfg, now), "no pending registration")
}

func TestMarketFluctuation_Bounded(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 1000; i++ {
		delta := MarketFluctuation(2.0, 25, rng)
		assert.GreaterOrEqual(t, delta, -50)
		assert.LessOrEqual(t, delta, 50)
	}
}

func TestMarketFluctuation_ScalesWithExposure(t *testing.T) {
	maxAbs := func(exposure float64) int {
		rng := rand.New(rand.NewSource(7))
		max := 0
		for i := 0; i < 5000; i++ {
			delta := MarketFluctuation(exposure, 25, rng)
			if delta < 0 {
				delta = -delta
			}
			if delta > max {
				max = delta
			}
		}
		return max
	}

	assert.Greater(t, maxAbs(4.0), maxAbs(0.5))
	assert.Equal(t, 0, MarketFluctuation(0, 25, rand.New(rand.NewSource(1))))
}

func TestTick_AppliesMarketDeltaOnce(t *testing.T) {
	cfg := DefaultConfig()
	state, err := SubmitRegistration(NewSimState(), "Acme", now)
	require.NoError(t, err)
	state.CashBalance = 1000

	ticked := Tick(state, cfg, now.Add(time.Minute), rand.New(rand.NewSource(42)))
	assert.Equal(t, now.Add(time.Minute), ticked.LastMarketUpdate)

	// Same instant again: the market delta must not be re-applied.
	again := Tick(ticked, cfg, now.Add(time.Minute), rand.New(rand.NewSource(99)))
	assert.Equal(t, ticked.CashBalance, again.CashBalance)
	assert.Equal(t, ticked.LastMarketUpdate, again.LastMarketUpdate)
}

func TestTick_ClampsCashAtZero(t *testing.T) {
	cfg := Config{ProcessingWindow: 30 * time.Minute, MarketVolatility: 50}
	state, err := SubmitRegistration(NewSimState(), "Acme", now)
	require.NoError(t, err)
	state.CashBalance = 1
	state.MarketExposure = 10

	// Over many seeded ticks the balance dips but never goes negative.
	rng := rand.New(rand.NewSource(3))
	current := state
	for i := 1; i <= 200; i++ {
		current = Tick(current, cfg, now.Add(time.Duration(i)*time.Minute), rng)
		require.GreaterOrEqual(t, current.CashBalance, 0)
	}
}

func TestTick_NoMarketBeforeRegistration(t *testing.T) {
	state := NewSimState()
	state.CashBalance = 500

	ticked := Tick(state, DefaultConfig(), now, rand.New(rand.NewSource(1)))

	assert.Equal(t, 500, ticked.CashBalance)
	assert.True(t, ticked.LastMarketUpdate.IsZero())
}

func TestSimState_CloneIsDeep(t *testing.T) {
	state := NewSimState()
	state.Inventory["flour"] = 5
	state.Loans = []Loan{{ID: "l1", Principal: 500, Repayment: 550, DueAt: now}}

	clone := state.Clone()
	clone.Inventory["flour"] = 99
	clone.Loans[0].Repayment = 0

	assert.Equal(t, 5, state.Inventory["flour"])
	assert.Equal(t, 550, state.Loans[0].Repayment)
}
