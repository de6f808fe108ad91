// Package jobs contains implementations of the practice hub's scheduled jobs.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bilim-hub/bilim-practice-hub/internal/application/command"
	"github.com/bilim-hub/bilim-practice-hub/internal/domain/consequence"
	"github.com/bilim-hub/bilim-practice-hub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// REALIZE DUE CONSEQUENCES JOB
// ══════════════════════════════════════════════════════════════════════════════

// RealizeDueJob sweeps sessions holding matured consequences and realizes
// them. The request path also realizes on read, so this sweep is a safety
// net for idle sessions nobody is looking at - a loan repayment must land
// even if the learner never opens the app again.
type RealizeDueJob struct {
	consequenceRepo consequence.Repository
	realizeHandler  *command.RealizeDueConsequencesHandler
	logger          *slog.Logger
	config          RealizeDueConfig
}

// RealizeDueConfig contains configuration for the sweep.
type RealizeDueConfig struct {
	// BatchSize caps how many sessions one sweep touches.
	BatchSize int

	// MaxAttempts is the retry budget per session; realization is
	// idempotent, so retrying a half-failed session is safe.
	MaxAttempts int
}

// DefaultRealizeDueConfig returns default configuration.
func DefaultRealizeDueConfig() RealizeDueConfig {
	return RealizeDueConfig{
		BatchSize:   200,
		MaxAttempts: 3,
	}
}

// NewRealizeDueJob creates a new RealizeDueJob.
func NewRealizeDueJob(
	consequenceRepo consequence.Repository,
	realizeHandler *command.RealizeDueConsequencesHandler,
	logger *slog.Logger,
	config RealizeDueConfig,
) *RealizeDueJob {
	if config.BatchSize == 0 {
		config = DefaultRealizeDueConfig()
	}
	return &RealizeDueJob{
		consequenceRepo: consequenceRepo,
		realizeHandler:  realizeHandler,
		logger:          logger.With("job", "realize_due"),
		config:          config,
	}
}

// Name implements scheduler.Job.
func (j *RealizeDueJob) Name() string {
	return "realize_due_consequences"
}

// Description implements scheduler.Job.
func (j *RealizeDueJob) Description() string {
	return "Realizes matured consequences for sessions with due entries"
}

// Run implements scheduler.Job.
func (j *RealizeDueJob) Run(ctx context.Context) error {
	now := time.Now().UTC()

	sessions, err := j.consequenceRepo.ListSessionsWithDue(ctx, now, j.config.BatchSize)
	if err != nil {
		return fmt.Errorf("realize_due: failed to list sessions: %w", err)
	}
	if len(sessions) == 0 {
		return nil
	}

	j.logger.Info("sweeping sessions with due consequences", "sessions", len(sessions))

	var realized, failed int
	for _, sessionID := range sessions {
		err := retry.Do(ctx, func(ctx context.Context) error {
			result, err := j.realizeHandler.Handle(ctx, command.RealizeDueConsequencesCommand{
				SessionID: string(sessionID),
				Now:       now,
			})
			if err != nil {
				return err
			}
			realized += result.Realized
			return nil
		},
			retry.WithMaxAttempts(j.config.MaxAttempts),
			retry.WithRetryIf(func(err error) bool { return !retry.IsPermanent(err) }),
		)
		if err != nil {
			failed++
			j.logger.Error("failed to realize session consequences",
				"session_id", string(sessionID),
				"error", err)
		}
	}

	j.logger.Info("sweep finished",
		"sessions", len(sessions),
		"realized", realized,
		"failed_sessions", failed)

	if failed == len(sessions) {
		return fmt.Errorf("realize_due: all %d sessions failed", failed)
	}
	return nil
}
