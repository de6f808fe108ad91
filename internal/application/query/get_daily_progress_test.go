package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bilim-hub/bilim-practice-hub/internal/domain/mission"
	"github.com/bilim-hub/bilim-practice-hub/internal/domain/progression"
	"github.com/bilim-hub/bilim-practice-hub/internal/domain/shared"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testLearnerID = "6f1f7a2e-44a1-4b02-9c7e-2f0a43a1d100"
	testNow       = time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
)

// ─────────────────────────────────────────────────────────────────────────────
// In-memory fakes
// ─────────────────────────────────────────────────────────────────────────────

type fakeProgressionRepo struct {
	counters progression.Counters
}

func (r *fakeProgressionRepo) GetCounters(_ context.Context, _ shared.LearnerID) (progression.Counters, error) {
	return r.counters, nil
}

func (r *fakeProgressionRepo) ApplyUpdate(_ context.Context, _ shared.LearnerID, _ progression.Update) error {
	return nil
}

func (r *fakeProgressionRepo) GetLabCompletionDay(_ context.Context, _ shared.LearnerID, _ string) (shared.DayKey, error) {
	return "", nil
}

func (r *fakeProgressionRepo) MarkLabCompleted(_ context.Context, _ shared.LearnerID, _ string, _ shared.DayKey) error {
	return nil
}

type fakeMissionRepo struct{}

func (r *fakeMissionRepo) GetState(_ context.Context, _ shared.LearnerID, dayKey shared.DayKey) (mission.CooldownState, error) {
	return mission.NewCooldownState(dayKey), nil
}

func (r *fakeMissionRepo) SaveState(_ context.Context, _ shared.LearnerID, _ mission.CooldownState) error {
	return nil
}

type fakeXPTodayCache struct {
	value  int
	hit    bool
	getErr error
}

func (c *fakeXPTodayCache) GetXPToday(_ context.Context, _ shared.LearnerID, _ shared.DayKey) (int, bool, error) {
	if c.getErr != nil {
		return 0, false, c.getErr
	}
	return c.value, c.hit, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Tests
// ─────────────────────────────────────────────────────────────────────────────

func newProgressHandler(repo *fakeProgressionRepo, cache XPTodayCache) *GetDailyProgressHandler {
	return NewGetDailyProgressHandler(repo, &fakeMissionRepo{}, cache,
		mission.DefaultLimiterConfig(), 500, time.UTC)
}

func TestGetDailyProgressHandler_MirrorHitServesXPToday(t *testing.T) {
	repo := &fakeProgressionRepo{counters: progression.Counters{
		XPTotal: 900, XPAwardedToday: 100, DayKey: shared.DayKeyOf(testNow, time.UTC),
	}}
	cache := &fakeXPTodayCache{value: 150, hit: true}

	dto, err := newProgressHandler(repo, cache).Handle(context.Background(),
		GetDailyProgressQuery{LearnerID: testLearnerID, Now: testNow})

	require.NoError(t, err)
	assert.Equal(t, 150, dto.XPToday, "mirror is fresher than the durable counter")
	assert.Equal(t, 900, dto.XPTotal)
}

func TestGetDailyProgressHandler_MirrorMissFallsBackToPostgres(t *testing.T) {
	repo := &fakeProgressionRepo{counters: progression.Counters{
		XPTotal: 900, XPAwardedToday: 100, DayKey: shared.DayKeyOf(testNow, time.UTC),
	}}

	cases := []struct {
		name  string
		cache XPTodayCache
	}{
		{"no cache wired", nil},
		{"miss", &fakeXPTodayCache{}},
		{"read error", &fakeXPTodayCache{getErr: errors.New("redis down")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dto, err := newProgressHandler(repo, tc.cache).Handle(context.Background(),
				GetDailyProgressQuery{LearnerID: testLearnerID, Now: testNow})

			require.NoError(t, err)
			assert.Equal(t, 100, dto.XPToday)
		})
	}
}

func TestGetDailyProgressHandler_StaleDayReadsZero(t *testing.T) {
	repo := &fakeProgressionRepo{counters: progression.Counters{
		XPTotal: 900, XPAwardedToday: 100, DayKey: shared.DayKey("2026-08-28"),
	}}

	dto, err := newProgressHandler(repo, &fakeXPTodayCache{}).Handle(context.Background(),
		GetDailyProgressQuery{LearnerID: testLearnerID, Now: testNow})

	require.NoError(t, err)
	assert.Equal(t, 0, dto.XPToday)
	assert.False(t, dto.CapReached)
}
