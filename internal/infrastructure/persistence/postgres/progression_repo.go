package postgres

import (
	"context"
	"fmt"

	"github.com/bilim-hub/bilim-practice-hub/internal/domain/progression"
	"github.com/bilim-hub/bilim-practice-hub/internal/domain/shared"
)

// ProgressionRepository implements progression.Repository using PostgreSQL.
type ProgressionRepository struct {
	conn *Connection
}

// NewProgressionRepository creates a new ProgressionRepository.
func NewProgressionRepository(conn *Connection) *ProgressionRepository {
	return &ProgressionRepository{conn: conn}
}

// GetCounters loads the learner's counters; a missing row reads as zero
// counters, not as an error.
func (r *ProgressionRepository) GetCounters(ctx context.Context, learnerID shared.LearnerID) (progression.Counters, error) {
	query := `
		SELECT xp_total, xp_today, day_key
		FROM progression_counters
		WHERE learner_id = $1
	`

	var counters progression.Counters
	var dayKey string
	err := r.conn.QueryRow(ctx, query, string(learnerID)).
		Scan(&counters.XPTotal, &counters.XPAwardedToday, &dayKey)
	if err != nil {
		if IsNoRows(err) {
			return progression.Counters{}, nil
		}
		return progression.Counters{}, fmt.Errorf("failed to get counters: %w", err)
	}
	counters.DayKey = shared.DayKey(dayKey)
	return counters, nil
}

// ApplyUpdate writes an award back. The total is bumped with an atomic
// increment so concurrent awards for the same learner never lose XP; the
// daily counter is an overwrite guarded by the day key.
func (r *ProgressionRepository) ApplyUpdate(ctx context.Context, learnerID shared.LearnerID, update progression.Update) error {
	query := `
		INSERT INTO progression_counters (learner_id, xp_total, xp_today, day_key, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (learner_id) DO UPDATE SET
			xp_total = progression_counters.xp_total + $2,
			xp_today = CASE
				WHEN progression_counters.day_key = $4 THEN GREATEST(progression_counters.xp_today, $3)
				ELSE $3
			END,
			day_key = $4,
			updated_at = NOW()
	`

	if _, err := r.conn.Exec(ctx, query, string(learnerID),
		update.XPTotalDelta, update.XPTodayValue, string(update.DayKey)); err != nil {
		return fmt.Errorf("failed to apply progression update: %w", err)
	}
	return nil
}

// GetLabCompletionDay returns the day key of the lab's last award, or an
// empty key when the lab has never been completed.
func (r *ProgressionRepository) GetLabCompletionDay(ctx context.Context, learnerID shared.LearnerID, labID string) (shared.DayKey, error) {
	query := `
		SELECT day_key FROM lab_completions
		WHERE learner_id = $1 AND lab_id = $2
	`

	var dayKey string
	err := r.conn.QueryRow(ctx, query, string(learnerID), labID).Scan(&dayKey)
	if err != nil {
		if IsNoRows(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get lab completion day: %w", err)
	}
	return shared.DayKey(dayKey), nil
}

// MarkLabCompleted records the day the lab was last awarded.
func (r *ProgressionRepository) MarkLabCompleted(ctx context.Context, learnerID shared.LearnerID, labID string, dayKey shared.DayKey) error {
	query := `
		INSERT INTO lab_completions (learner_id, lab_id, day_key, completed_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (learner_id, lab_id) DO UPDATE SET
			day_key = EXCLUDED.day_key,
			completed_at = NOW()
	`

	if _, err := r.conn.Exec(ctx, query, string(learnerID), labID, string(dayKey)); err != nil {
		return fmt.Errorf("failed to mark lab completed: %w", err)
	}
	return nil
}
