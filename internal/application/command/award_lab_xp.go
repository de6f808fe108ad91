package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bilim-hub/bilim-practice-hub/internal/domain/progression"
	"github.com/bilim-hub/bilim-practice-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// AWARD LAB XP COMMAND
// Grants experience for a completed lab, honoring the daily cap and the
// once-per-day rule for the same lab.
// ══════════════════════════════════════════════════════════════════════════════

// AwardLabXPCommand contains the data to award lab experience.
type AwardLabXPCommand struct {
	// LearnerID is the learner receiving the award.
	LearnerID string

	// LabID identifies the completed lab.
	LabID string

	// RawReward is the lab's nominal XP value before capping.
	RawReward int

	// Now is the award instant (defaults to now if zero).
	Now time.Time

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c AwardLabXPCommand) Validate() error {
	if !shared.LearnerID(c.LearnerID).IsValid() {
		return errors.New("award_lab_xp: valid learner_id is required")
	}
	if c.LabID == "" {
		return errors.New("award_lab_xp: lab_id is required")
	}
	if c.RawReward < 0 {
		return errors.New("award_lab_xp: raw_reward must not be negative")
	}
	return nil
}

// AwardLabXPResult contains the outcome of a lab award.
type AwardLabXPResult struct {
	// LearnerID is the learner that was awarded.
	LearnerID string

	// XPGain is the experience actually granted after capping.
	XPGain int

	// XPToday is the daily counter after the award.
	XPToday int

	// IsCapped indicates the award hit the daily cap.
	IsCapped bool

	// AlreadyCompleted indicates the lab was already completed today
	// and the award was skipped entirely.
	AlreadyCompleted bool

	// Events contains domain events generated.
	Events []shared.Event
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// AwardLabXPHandler handles the AwardLabXPCommand.
type AwardLabXPHandler struct {
	progressionRepo progression.Repository
	eventPublisher  shared.EventPublisher

	dailyCap int
	location *time.Location
}

// NewAwardLabXPHandler creates a new AwardLabXPHandler.
// The location fixes which calendar day an instant belongs to.
func NewAwardLabXPHandler(
	progressionRepo progression.Repository,
	eventPublisher shared.EventPublisher,
	dailyCap int,
	location *time.Location,
) *AwardLabXPHandler {
	if dailyCap <= 0 {
		dailyCap = progression.DefaultDailyCap
	}
	if location == nil {
		location = time.UTC
	}
	return &AwardLabXPHandler{
		progressionRepo: progressionRepo,
		eventPublisher:  eventPublisher,
		dailyCap:        dailyCap,
		location:        location,
	}
}

// Handle executes the award lab XP command.
func (h *AwardLabXPHandler) Handle(ctx context.Context, cmd AwardLabXPCommand) (*AwardLabXPResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("award_lab_xp: validation failed: %w", err)
	}

	now := cmd.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	dayKey := shared.DayKeyOf(now, h.location)
	learnerID := shared.LearnerID(cmd.LearnerID)

	counters, err := h.progressionRepo.GetCounters(ctx, learnerID)
	if err != nil {
		return nil, fmt.Errorf("award_lab_xp: failed to get counters: %w", err)
	}
	lastCompleted, err := h.progressionRepo.GetLabCompletionDay(ctx, learnerID, cmd.LabID)
	if err != nil {
		return nil, fmt.Errorf("award_lab_xp: failed to get lab completion day: %w", err)
	}

	award, err := progression.CalculateLabAward(counters, lastCompleted, cmd.RawReward, dayKey, h.dailyCap)
	if err != nil {
		return nil, err
	}

	result := &AwardLabXPResult{
		LearnerID:        cmd.LearnerID,
		XPGain:           award.XPGain,
		XPToday:          award.XPToday,
		IsCapped:         award.IsCapped,
		AlreadyCompleted: award.AlreadyCompleted,
		Events:           make([]shared.Event, 0, 1),
	}
	if award.AlreadyCompleted {
		return result, nil
	}

	if err := h.progressionRepo.ApplyUpdate(ctx, learnerID, award.Updates); err != nil {
		return nil, fmt.Errorf("award_lab_xp: failed to apply update: %w", err)
	}
	if err := h.progressionRepo.MarkLabCompleted(ctx, learnerID, cmd.LabID, dayKey); err != nil {
		return nil, fmt.Errorf("award_lab_xp: failed to mark lab completed: %w", err)
	}

	result.Events = append(result.Events, shared.NewXPAwardedEvent(cmd.LearnerID,
		string(dayKey), cmd.RawReward, award.XPGain, award.XPToday, award.IsCapped, "lab", cmd.LabID))
	for _, e := range result.Events {
		_ = h.eventPublisher.Publish(e)
	}

	return result, nil
}
