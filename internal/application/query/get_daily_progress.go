package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bilim-hub/bilim-practice-hub/internal/domain/mission"
	"github.com/bilim-hub/bilim-practice-hub/internal/domain/progression"
	"github.com/bilim-hub/bilim-practice-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET DAILY PROGRESS QUERY
// Возвращает дневной прогресс ученика: опыт за сегодня относительно
// суточного лимита, сданные миссии и активное окно охлаждения.
// ══════════════════════════════════════════════════════════════════════════════

// GetDailyProgressQuery содержит параметры запроса дневного прогресса.
type GetDailyProgressQuery struct {
	// LearnerID - идентификатор ученика.
	LearnerID string

	// Now - момент чтения (пустой = сейчас).
	Now time.Time
}

// Validate проверяет корректность параметров.
func (q *GetDailyProgressQuery) Validate() error {
	if !shared.LearnerID(q.LearnerID).IsValid() {
		return errors.New("valid learner_id must be provided")
	}
	if q.Now.IsZero() {
		q.Now = time.Now().UTC()
	}
	return nil
}

// DailyProgressDTO - дневной прогресс для интерфейса.
type DailyProgressDTO struct {
	// LearnerID - идентификатор ученика.
	LearnerID string `json:"learner_id"`

	// DayKey - календарный день прогресса.
	DayKey string `json:"day_key"`

	// XPTotal - суммарный опыт за всё время.
	XPTotal int `json:"xp_total"`

	// XPToday - опыт за сегодня.
	XPToday int `json:"xp_today"`

	// DailyCap - суточный лимит опыта.
	DailyCap int `json:"daily_cap"`

	// CapReached - лимит на сегодня исчерпан.
	CapReached bool `json:"cap_reached"`

	// MissionsCompleted - разных миссий сдано сегодня.
	MissionsCompleted int `json:"missions_completed"`

	// MissionThreshold - порог, открывающий охлаждение.
	MissionThreshold int `json:"mission_threshold"`

	// CooldownUntil - конец активного окна охлаждения (nil - окна нет).
	CooldownUntil *time.Time `json:"cooldown_until,omitempty"`

	// CooldownReason - причина охлаждения.
	CooldownReason string `json:"cooldown_reason,omitempty"`
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// XPTodayCache - зеркало дневного счётчика XP в Redis. Ключи привязаны к
// календарному дню, поэтому попадание всегда относится к запрошенному дню.
// Реализация находится в infrastructure/persistence/redis.
type XPTodayCache interface {
	// GetXPToday читает дневной счётчик; промах - ok=false.
	GetXPToday(ctx context.Context, learnerID shared.LearnerID, dayKey shared.DayKey) (int, bool, error)
}

// GetDailyProgressHandler обрабатывает GetDailyProgressQuery.
type GetDailyProgressHandler struct {
	progressionRepo progression.Repository
	missionRepo     mission.Repository
	xpCache         XPTodayCache

	limiterCfg mission.Config
	dailyCap   int
	location   *time.Location
}

// NewGetDailyProgressHandler создаёт обработчик.
// xpCache опционален (nil - читаем только postgres).
func NewGetDailyProgressHandler(
	progressionRepo progression.Repository,
	missionRepo mission.Repository,
	xpCache XPTodayCache,
	limiterCfg mission.Config,
	dailyCap int,
	location *time.Location,
) *GetDailyProgressHandler {
	if limiterCfg.Threshold == 0 {
		limiterCfg = mission.DefaultLimiterConfig()
	}
	if dailyCap <= 0 {
		dailyCap = progression.DefaultDailyCap
	}
	if location == nil {
		location = time.UTC
	}
	return &GetDailyProgressHandler{
		progressionRepo: progressionRepo,
		missionRepo:     missionRepo,
		xpCache:         xpCache,
		limiterCfg:      limiterCfg,
		dailyCap:        dailyCap,
		location:        location,
	}
}

// Handle выполняет запрос дневного прогресса.
func (h *GetDailyProgressHandler) Handle(ctx context.Context, q GetDailyProgressQuery) (*DailyProgressDTO, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("get_daily_progress: %w", err)
	}

	dayKey := shared.DayKeyOf(q.Now, h.location)
	learnerID := shared.LearnerID(q.LearnerID)

	counters, err := h.progressionRepo.GetCounters(ctx, learnerID)
	if err != nil {
		return nil, fmt.Errorf("get_daily_progress: failed to get counters: %w", err)
	}
	state, err := h.missionRepo.GetState(ctx, learnerID, dayKey)
	if err != nil {
		return nil, fmt.Errorf("get_daily_progress: failed to get limiter state: %w", err)
	}

	// Сохранённый счётчик относится к прошлому дню - показываем ноль.
	xpToday := counters.XPAwardedToday
	if counters.DayKey != dayKey {
		xpToday = 0
	}
	// Зеркало в Redis свежее: в него начисления попадают через событие,
	// а не через транзакцию. Промах или ошибка - остаёмся на postgres.
	if h.xpCache != nil {
		if cached, ok, err := h.xpCache.GetXPToday(ctx, learnerID, dayKey); err == nil && ok {
			xpToday = cached
		}
	}
	missionsToday := 0
	if state.DayKey == dayKey {
		missionsToday = state.DailyCount()
	}

	dto := &DailyProgressDTO{
		LearnerID:         q.LearnerID,
		DayKey:            string(dayKey),
		XPTotal:           counters.XPTotal,
		XPToday:           xpToday,
		DailyCap:          h.dailyCap,
		CapReached:        xpToday >= h.dailyCap,
		MissionsCompleted: missionsToday,
		MissionThreshold:  h.limiterCfg.Threshold,
	}
	if active := mission.ActiveCooldown(state, dayKey, q.Now, h.limiterCfg); active != nil {
		until := active.Until
		dto.CooldownUntil = &until
		dto.CooldownReason = active.Reason
	}

	return dto, nil
}
