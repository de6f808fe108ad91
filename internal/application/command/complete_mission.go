package command

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/bilim-hub/bilim-practice-hub/internal/domain/mission"
	"github.com/bilim-hub/bilim-practice-hub/internal/domain/progression"
	"github.com/bilim-hub/bilim-practice-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMPLETE MISSION COMMAND
// Records a repeatable mission completion, awards its XP through the daily
// cap, and opens a cooldown window once the daily threshold is hit.
// ══════════════════════════════════════════════════════════════════════════════

// CompleteMissionCommand contains the data to record a mission completion.
type CompleteMissionCommand struct {
	// LearnerID is the learner completing the mission.
	LearnerID string

	// MissionID identifies the repeatable mission.
	MissionID string

	// RawReward is the mission's nominal XP value before capping.
	RawReward int

	// Now is the completion instant (defaults to now if zero).
	Now time.Time

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c CompleteMissionCommand) Validate() error {
	if !shared.LearnerID(c.LearnerID).IsValid() {
		return errors.New("complete_mission: valid learner_id is required")
	}
	if c.MissionID == "" {
		return errors.New("complete_mission: mission_id is required")
	}
	if c.RawReward < 0 {
		return errors.New("complete_mission: raw_reward must not be negative")
	}
	return nil
}

// CompleteMissionResult contains the outcome of a mission completion.
type CompleteMissionResult struct {
	// LearnerID is the learner that completed the mission.
	LearnerID string

	// DailyCount is how many distinct missions were completed today.
	DailyCount int

	// Cooldown is the active cooldown window, if any.
	Cooldown *mission.Cooldown

	// CooldownStarted indicates this completion opened the window.
	CooldownStarted bool

	// Rejected indicates the completion was refused because a cooldown
	// window was already active; no XP is awarded in that case.
	Rejected bool

	// XPGain is the experience granted for this completion.
	XPGain int

	// XPToday is the daily XP counter after the award.
	XPToday int

	// IsCapped indicates the XP award hit the daily cap.
	IsCapped bool

	// Events contains domain events generated.
	Events []shared.Event
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// CompleteMissionHandler handles the CompleteMissionCommand.
type CompleteMissionHandler struct {
	missionRepo     mission.Repository
	progressionRepo progression.Repository
	eventPublisher  shared.EventPublisher

	limiterCfg mission.Config
	dailyCap   int
	location   *time.Location
	rng        *rand.Rand
}

// NewCompleteMissionHandler creates a new CompleteMissionHandler.
// The random source drives cooldown duration and is injected for
// reproducible tests.
func NewCompleteMissionHandler(
	missionRepo mission.Repository,
	progressionRepo progression.Repository,
	eventPublisher shared.EventPublisher,
	limiterCfg mission.Config,
	dailyCap int,
	location *time.Location,
	rng *rand.Rand,
) *CompleteMissionHandler {
	if limiterCfg.Threshold == 0 {
		limiterCfg = mission.DefaultLimiterConfig()
	}
	if dailyCap <= 0 {
		dailyCap = progression.DefaultDailyCap
	}
	if location == nil {
		location = time.UTC
	}
	return &CompleteMissionHandler{
		missionRepo:     missionRepo,
		progressionRepo: progressionRepo,
		eventPublisher:  eventPublisher,
		limiterCfg:      limiterCfg,
		dailyCap:        dailyCap,
		location:        location,
		rng:             rng,
	}
}

// Handle executes the complete mission command.
func (h *CompleteMissionHandler) Handle(ctx context.Context, cmd CompleteMissionCommand) (*CompleteMissionResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("complete_mission: validation failed: %w", err)
	}

	now := cmd.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	dayKey := shared.DayKeyOf(now, h.location)
	learnerID := shared.LearnerID(cmd.LearnerID)

	state, err := h.missionRepo.GetState(ctx, learnerID, dayKey)
	if err != nil {
		return nil, fmt.Errorf("complete_mission: failed to get limiter state: %w", err)
	}

	// A completion attempted inside an active window earns nothing;
	// the limiter still reports the unchanged window back to the caller.
	if active := mission.ActiveCooldown(state, dayKey, now, h.limiterCfg); active != nil {
		return &CompleteMissionResult{
			LearnerID:  cmd.LearnerID,
			DailyCount: state.DailyCount(),
			Cooldown:   active,
			Rejected:   true,
		}, nil
	}

	completion, err := mission.RegisterCompletion(state, cmd.MissionID, dayKey, now, h.limiterCfg, h.rng)
	if err != nil {
		return nil, err
	}
	if err := h.missionRepo.SaveState(ctx, learnerID, completion.State); err != nil {
		return nil, fmt.Errorf("complete_mission: failed to save limiter state: %w", err)
	}

	result := &CompleteMissionResult{
		LearnerID:       cmd.LearnerID,
		DailyCount:      completion.DailyCount,
		Cooldown:        completion.Cooldown,
		CooldownStarted: completion.CooldownStarted,
		Events:          make([]shared.Event, 0, 2),
	}

	if cmd.RawReward > 0 {
		counters, err := h.progressionRepo.GetCounters(ctx, learnerID)
		if err != nil {
			return nil, fmt.Errorf("complete_mission: failed to get counters: %w", err)
		}
		award, err := progression.CalculateXPUpdate(counters, cmd.RawReward, dayKey, h.dailyCap)
		if err != nil {
			return nil, err
		}
		if err := h.progressionRepo.ApplyUpdate(ctx, learnerID, award.Updates); err != nil {
			return nil, fmt.Errorf("complete_mission: failed to apply update: %w", err)
		}
		result.XPGain = award.XPGain
		result.XPToday = award.XPToday
		result.IsCapped = award.IsCapped
		result.Events = append(result.Events, shared.NewXPAwardedEvent(cmd.LearnerID,
			string(dayKey), cmd.RawReward, award.XPGain, award.XPToday, award.IsCapped, "mission", cmd.MissionID))
	}

	if completion.CooldownStarted {
		result.Events = append(result.Events, shared.NewCooldownStartedEvent(cmd.LearnerID,
			completion.DailyCount, completion.Cooldown.Until, completion.Cooldown.Reason))
	}

	for _, e := range result.Events {
		_ = h.eventPublisher.Publish(e)
	}

	return result, nil
}
