// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"encoding/json"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types - these drive the event-driven architecture.
// Each event represents something significant that happened in the engine.
const (
	// Session events
	EventSessionStarted   EventType = "session.started"
	EventSessionCompleted EventType = "session.completed"
	EventSessionArchived  EventType = "session.archived"

	// Decision events
	EventChoiceResolved EventType = "decision.choice_resolved"

	// Consequence events
	EventConsequenceScheduled EventType = "consequence.scheduled"
	EventConsequenceRealized  EventType = "consequence.realized"

	// Business events
	EventRegistrationSubmitted EventType = "business.registration_submitted"
	EventBusinessApproved      EventType = "business.approved"
	EventBusinessRejected      EventType = "business.rejected"
	EventMarketMoved           EventType = "business.market_moved"

	// Progression events
	EventXPAwarded    EventType = "progression.xp_awarded"
	EventXPCapReached EventType = "progression.xp_cap_reached"
	EventLabCompleted EventType = "progression.lab_completed"

	// Mission events
	EventMissionCompleted EventType = "mission.completed"
	EventCooldownStarted  EventType = "mission.cooldown_started"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Decision Events
// ═══════════════════════════════════════════════════════════════════════════

// ChoiceResolvedEvent is emitted when a learner's choice has been resolved
// and its immediate effects applied.
type ChoiceResolvedEvent struct {
	BaseEvent
	LearnerID        string `json:"learner_id"`
	ChoiceID         string `json:"choice_id"`
	ImmediateEffects int    `json:"immediate_effects"`
	DelayedEffects   int    `json:"delayed_effects"`
}

// Payload implements Event interface.
func (e ChoiceResolvedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"learner_id":        e.LearnerID,
		"choice_id":         e.ChoiceID,
		"immediate_effects": e.ImmediateEffects,
		"delayed_effects":   e.DelayedEffects,
	}
}

// NewChoiceResolvedEvent creates a new ChoiceResolvedEvent.
func NewChoiceResolvedEvent(sessionID, learnerID, choiceID string, immediate, delayed int) ChoiceResolvedEvent {
	return ChoiceResolvedEvent{
		BaseEvent:        NewBaseEvent(EventChoiceResolved, sessionID),
		LearnerID:        learnerID,
		ChoiceID:         choiceID,
		ImmediateEffects: immediate,
		DelayedEffects:   delayed,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Consequence Events
// ═══════════════════════════════════════════════════════════════════════════

// ConsequenceRealizedEvent is emitted when a delayed consequence has been
// applied to the session's resource bundle (exactly once).
type ConsequenceRealizedEvent struct {
	BaseEvent
	ConsequenceID string    `json:"consequence_id"`
	RuleID        string    `json:"rule_id"`
	ScheduledAt   time.Time `json:"scheduled_at"`
	Effects       int       `json:"effects"`
}

// Payload implements Event interface.
func (e ConsequenceRealizedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"consequence_id": e.ConsequenceID,
		"rule_id":        e.RuleID,
		"scheduled_at":   e.ScheduledAt,
		"effects":        e.Effects,
	}
}

// NewConsequenceRealizedEvent creates a new ConsequenceRealizedEvent.
func NewConsequenceRealizedEvent(sessionID, consequenceID, ruleID string, scheduledAt time.Time, effects int) ConsequenceRealizedEvent {
	return ConsequenceRealizedEvent{
		BaseEvent:     NewBaseEvent(EventConsequenceRealized, sessionID),
		ConsequenceID: consequenceID,
		RuleID:        ruleID,
		ScheduledAt:   scheduledAt,
		Effects:       effects,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Business Events
// ═══════════════════════════════════════════════════════════════════════════

// BusinessApprovedEvent is emitted when a pending registration passes its
// processing window and becomes approved.
type BusinessApprovedEvent struct {
	BaseEvent
	BusinessName string    `json:"business_name"`
	SubmittedAt  time.Time `json:"submitted_at"`
	ApprovedAt   time.Time `json:"approved_at"`
}

// Payload implements Event interface.
func (e BusinessApprovedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"business_name": e.BusinessName,
		"submitted_at":  e.SubmittedAt,
		"approved_at":   e.ApprovedAt,
	}
}

// NewBusinessApprovedEvent creates a new BusinessApprovedEvent.
func NewBusinessApprovedEvent(sessionID, businessName string, submittedAt, approvedAt time.Time) BusinessApprovedEvent {
	return BusinessApprovedEvent{
		BaseEvent:    NewBaseEvent(EventBusinessApproved, sessionID),
		BusinessName: businessName,
		SubmittedAt:  submittedAt,
		ApprovedAt:   approvedAt,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Progression Events
// ═══════════════════════════════════════════════════════════════════════════

// XPAwardedEvent is emitted when XP is granted to a learner.
type XPAwardedEvent struct {
	BaseEvent
	DayKey    string `json:"day_key"`
	RawReward int    `json:"raw_reward"`
	XPGain    int    `json:"xp_gain"`
	XPToday   int    `json:"xp_today"`
	IsCapped  bool   `json:"is_capped"`
	Source    string `json:"source"` // "lab", "mission", "decision"
	SourceID  string `json:"source_id"`
}

// Payload implements Event interface.
func (e XPAwardedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"day_key":    e.DayKey,
		"raw_reward": e.RawReward,
		"xp_gain":    e.XPGain,
		"xp_today":   e.XPToday,
		"is_capped":  e.IsCapped,
		"source":     e.Source,
		"source_id":  e.SourceID,
	}
}

// NewXPAwardedEvent creates a new XPAwardedEvent. The day key is the local
// calendar day the award counts toward.
func NewXPAwardedEvent(learnerID, dayKey string, rawReward, xpGain, xpToday int, capped bool, source, sourceID string) XPAwardedEvent {
	return XPAwardedEvent{
		BaseEvent: NewBaseEvent(EventXPAwarded, learnerID),
		DayKey:    dayKey,
		RawReward: rawReward,
		XPGain:    xpGain,
		XPToday:   xpToday,
		IsCapped:  capped,
		Source:    source,
		SourceID:  sourceID,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Mission Events
// ═══════════════════════════════════════════════════════════════════════════

// CooldownStartedEvent is emitted when the mission completion threshold is
// reached and a cooldown window opens.
type CooldownStartedEvent struct {
	BaseEvent
	DailyCount    int       `json:"daily_count"`
	CooldownUntil time.Time `json:"cooldown_until"`
	Reason        string    `json:"reason"`
}

// Payload implements Event interface.
func (e CooldownStartedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"daily_count":    e.DailyCount,
		"cooldown_until": e.CooldownUntil,
		"reason":         e.Reason,
	}
}

// NewCooldownStartedEvent creates a new CooldownStartedEvent.
func NewCooldownStartedEvent(learnerID string, dailyCount int, until time.Time, reason string) CooldownStartedEvent {
	return CooldownStartedEvent{
		BaseEvent:     NewBaseEvent(EventCooldownStarted, learnerID),
		DailyCount:    dailyCount,
		CooldownUntil: until,
		Reason:        reason,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Session Events
// ═══════════════════════════════════════════════════════════════════════════

// SessionArchivedEvent is emitted when a completed session has been archived.
type SessionArchivedEvent struct {
	BaseEvent
	LearnerID       string `json:"learner_id"`
	CompressedBytes int    `json:"compressed_bytes"`
}

// Payload implements Event interface.
func (e SessionArchivedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"learner_id":       e.LearnerID,
		"compressed_bytes": e.CompressedBytes,
	}
}

// NewSessionArchivedEvent creates a new SessionArchivedEvent.
func NewSessionArchivedEvent(sessionID, learnerID string, compressedBytes int) SessionArchivedEvent {
	return SessionArchivedEvent{
		BaseEvent:       NewBaseEvent(EventSessionArchived, sessionID),
		LearnerID:       learnerID,
		CompressedBytes: compressedBytes,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (for serialization and transport)
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport/storage.
type EventEnvelope struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	AggregateID   string          `json:"aggregate_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
