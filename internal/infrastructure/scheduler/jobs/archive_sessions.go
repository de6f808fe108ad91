package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/bilim-hub/bilim-practice-hub/internal/domain/session"
	"github.com/bilim-hub/bilim-practice-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ARCHIVE SESSIONS JOB
// ══════════════════════════════════════════════════════════════════════════════

// ArchiveStore persists the compressed payload of an archived session.
// Implemented by the postgres session repository.
type ArchiveStore interface {
	SaveArchive(ctx context.Context, sessionID shared.SessionID, learnerID shared.LearnerID, compressed []byte, archivedAt time.Time) error
}

// ArchiveSessionsJob moves completed sessions past the retention threshold
// out of the hot table: the full snapshot is serialized, zstd-compressed
// and stored in the archive table, then the session row flips to archived.
// The archive write happens before the status flip, so a crash between the
// two leaves the session eligible for the next sweep, never half-archived.
type ArchiveSessionsJob struct {
	sessionRepo    session.Repository
	archiveStore   ArchiveStore
	eventPublisher shared.EventPublisher
	encoder        *zstd.Encoder
	logger         *slog.Logger
	config         ArchiveSessionsConfig
}

// ArchiveSessionsConfig contains configuration for the archive sweep.
type ArchiveSessionsConfig struct {
	// Retention is how long a completed session stays in the hot table.
	Retention time.Duration

	// BatchSize caps how many sessions one sweep archives.
	BatchSize int
}

// DefaultArchiveSessionsConfig returns default configuration.
func DefaultArchiveSessionsConfig() ArchiveSessionsConfig {
	return ArchiveSessionsConfig{
		Retention: 30 * 24 * time.Hour,
		BatchSize: 100,
	}
}

// NewArchiveSessionsJob creates a new ArchiveSessionsJob.
func NewArchiveSessionsJob(
	sessionRepo session.Repository,
	archiveStore ArchiveStore,
	eventPublisher shared.EventPublisher,
	logger *slog.Logger,
	config ArchiveSessionsConfig,
) (*ArchiveSessionsJob, error) {
	if config.BatchSize == 0 {
		config = DefaultArchiveSessionsConfig()
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return nil, fmt.Errorf("archive_sessions: failed to create zstd encoder: %w", err)
	}

	return &ArchiveSessionsJob{
		sessionRepo:    sessionRepo,
		archiveStore:   archiveStore,
		eventPublisher: eventPublisher,
		encoder:        encoder,
		logger:         logger.With("job", "archive_sessions"),
		config:         config,
	}, nil
}

// Name implements scheduler.Job.
func (j *ArchiveSessionsJob) Name() string {
	return "archive_sessions"
}

// Description implements scheduler.Job.
func (j *ArchiveSessionsJob) Description() string {
	return "Compresses and archives completed sessions past the retention threshold"
}

// Run implements scheduler.Job.
func (j *ArchiveSessionsJob) Run(ctx context.Context) error {
	now := time.Now().UTC()
	threshold := now.Add(-j.config.Retention)

	sessions, err := j.sessionRepo.ListCompletedBefore(ctx, threshold, j.config.BatchSize)
	if err != nil {
		return fmt.Errorf("archive_sessions: failed to list completed sessions: %w", err)
	}
	if len(sessions) == 0 {
		return nil
	}

	j.logger.Info("archiving completed sessions", "sessions", len(sessions))

	var archived, failed int
	for _, snapshot := range sessions {
		if err := j.archiveOne(ctx, snapshot, now); err != nil {
			failed++
			j.logger.Error("failed to archive session",
				"session_id", string(snapshot.SessionID),
				"error", err)
		} else {
			archived++
		}
	}

	j.logger.Info("archive sweep finished", "archived", archived, "failed", failed)

	if failed == len(sessions) {
		return fmt.Errorf("archive_sessions: all %d sessions failed", failed)
	}
	return nil
}

func (j *ArchiveSessionsJob) archiveOne(ctx context.Context, snapshot *session.Snapshot, now time.Time) error {
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	compressed := j.encoder.EncodeAll(raw, make([]byte, 0, len(raw)/2))

	if err := j.archiveStore.SaveArchive(ctx, snapshot.SessionID, snapshot.LearnerID, compressed, now); err != nil {
		return err
	}
	if err := j.sessionRepo.MarkArchived(ctx, snapshot.SessionID, now); err != nil {
		return err
	}

	_ = j.eventPublisher.Publish(shared.NewSessionArchivedEvent(
		string(snapshot.SessionID), string(snapshot.LearnerID), len(compressed)))
	return nil
}
