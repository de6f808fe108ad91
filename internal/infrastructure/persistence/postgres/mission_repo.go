package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bilim-hub/bilim-practice-hub/internal/domain/mission"
	"github.com/bilim-hub/bilim-practice-hub/internal/domain/shared"
)

// MissionRepository implements mission.Repository using PostgreSQL.
// It is the durable copy behind the redis fast path: the limiter survives
// a cache flush at the cost of one extra read on a cold day.
type MissionRepository struct {
	conn *Connection
}

// NewMissionRepository creates a new MissionRepository.
func NewMissionRepository(conn *Connection) *MissionRepository {
	return &MissionRepository{conn: conn}
}

// GetState loads the learner's limiter state for the day. A missing row
// reads as a fresh day, not as an error.
func (r *MissionRepository) GetState(ctx context.Context, learnerID shared.LearnerID, dayKey shared.DayKey) (mission.CooldownState, error) {
	query := `
		SELECT completed, cooldown_until, cooldown_reason
		FROM mission_limiter_state
		WHERE learner_id = $1 AND day_key = $2
	`

	var (
		completedJSON []byte
		until         *time.Time
		reason        *string
	)
	err := r.conn.QueryRow(ctx, query, string(learnerID), string(dayKey)).
		Scan(&completedJSON, &until, &reason)
	if err != nil {
		if IsNoRows(err) {
			return mission.NewCooldownState(dayKey), nil
		}
		return mission.CooldownState{}, fmt.Errorf("failed to get limiter state: %w", err)
	}

	var completed []string
	if err := json.Unmarshal(completedJSON, &completed); err != nil {
		return mission.CooldownState{}, fmt.Errorf("failed to unmarshal completed set: %w", err)
	}

	state := mission.NewCooldownState(dayKey)
	for _, missionID := range completed {
		state.Completed[missionID] = true
	}
	state.CooldownUntil = until
	state.CooldownReason = reason
	return state, nil
}

// SaveState overwrites the learner's limiter state for its day.
func (r *MissionRepository) SaveState(ctx context.Context, learnerID shared.LearnerID, state mission.CooldownState) error {
	completed := make([]string, 0, len(state.Completed))
	for missionID := range state.Completed {
		completed = append(completed, missionID)
	}
	completedJSON, err := json.Marshal(completed)
	if err != nil {
		return fmt.Errorf("failed to marshal completed set: %w", err)
	}

	query := `
		INSERT INTO mission_limiter_state (learner_id, day_key, completed, cooldown_until, cooldown_reason, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (learner_id, day_key) DO UPDATE SET
			completed = EXCLUDED.completed,
			cooldown_until = EXCLUDED.cooldown_until,
			cooldown_reason = EXCLUDED.cooldown_reason,
			updated_at = NOW()
	`

	if _, err := r.conn.Exec(ctx, query, string(learnerID), string(state.DayKey),
		completedJSON, state.CooldownUntil, state.CooldownReason); err != nil {
		return fmt.Errorf("failed to save limiter state: %w", err)
	}
	return nil
}
