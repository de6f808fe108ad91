package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bilim-hub/bilim-practice-hub/internal/application/command"
	"github.com/bilim-hub/bilim-practice-hub/internal/domain/session"
)

// ══════════════════════════════════════════════════════════════════════════════
// TICK BUSINESSES JOB
// ══════════════════════════════════════════════════════════════════════════════

// TickBusinessesJob advances every active business simulation one step:
// pending registrations get approved once their processing window has
// elapsed, and approved businesses take their market adjustment. The
// simulation is idempotent per instant, so overlapping with a request-path
// tick costs nothing.
type TickBusinessesJob struct {
	sessionRepo session.Repository
	tickHandler *command.TickBusinessHandler
	logger      *slog.Logger
	config      TickBusinessesConfig
}

// TickBusinessesConfig contains configuration for the tick sweep.
type TickBusinessesConfig struct {
	// BatchSize caps how many sessions one sweep ticks.
	BatchSize int
}

// DefaultTickBusinessesConfig returns default configuration.
func DefaultTickBusinessesConfig() TickBusinessesConfig {
	return TickBusinessesConfig{
		BatchSize: 500,
	}
}

// NewTickBusinessesJob creates a new TickBusinessesJob.
func NewTickBusinessesJob(
	sessionRepo session.Repository,
	tickHandler *command.TickBusinessHandler,
	logger *slog.Logger,
	config TickBusinessesConfig,
) *TickBusinessesJob {
	if config.BatchSize == 0 {
		config = DefaultTickBusinessesConfig()
	}
	return &TickBusinessesJob{
		sessionRepo: sessionRepo,
		tickHandler: tickHandler,
		logger:      logger.With("job", "tick_businesses"),
		config:      config,
	}
}

// Name implements scheduler.Job.
func (j *TickBusinessesJob) Name() string {
	return "tick_businesses"
}

// Description implements scheduler.Job.
func (j *TickBusinessesJob) Description() string {
	return "Advances business registration processing and market state for active sessions"
}

// Run implements scheduler.Job.
func (j *TickBusinessesJob) Run(ctx context.Context) error {
	now := time.Now().UTC()

	sessions, err := j.sessionRepo.ListActiveWithBusiness(ctx, j.config.BatchSize)
	if err != nil {
		return fmt.Errorf("tick_businesses: failed to list sessions: %w", err)
	}
	if len(sessions) == 0 {
		return nil
	}

	var approved, failed int
	for _, snapshot := range sessions {
		result, err := j.tickHandler.Handle(ctx, command.TickBusinessCommand{
			SessionID: string(snapshot.SessionID),
			Now:       now,
		})
		if err != nil {
			failed++
			j.logger.Error("failed to tick business",
				"session_id", string(snapshot.SessionID),
				"error", err)
			continue
		}
		if result.Approved {
			approved++
		}
	}

	j.logger.Info("tick sweep finished",
		"sessions", len(sessions),
		"approved", approved,
		"failed", failed)

	if failed == len(sessions) {
		return fmt.Errorf("tick_businesses: all %d sessions failed", failed)
	}
	return nil
}
