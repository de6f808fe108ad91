// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// LearnerID represents a unique learner identifier (UUID format).
type LearnerID string

// UUID validation regex (simple version).
var uuidRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// IsValid checks if the learner ID is a valid UUID.
func (l LearnerID) IsValid() bool {
	return uuidRegex.MatchString(string(l))
}

// String returns the string representation.
func (l LearnerID) String() string {
	return string(l)
}

// IsEmpty checks if the ID is empty.
func (l LearnerID) IsEmpty() bool {
	return l == ""
}

// NewLearnerID creates a new LearnerID with validation.
func NewLearnerID(id string) (LearnerID, error) {
	lid := LearnerID(strings.ToLower(strings.TrimSpace(id)))
	if !lid.IsValid() {
		return "", NewDomainError("shared", "NewLearnerID", ErrInvalidID, "invalid learner ID format")
	}
	return lid, nil
}

// SessionID represents a unique practice session identifier (UUID format).
type SessionID string

// IsValid checks if the session ID is a valid UUID.
func (s SessionID) IsValid() bool {
	return uuidRegex.MatchString(string(s))
}

// String returns the string representation.
func (s SessionID) String() string {
	return string(s)
}

// IsEmpty checks if the ID is empty.
func (s SessionID) IsEmpty() bool {
	return s == ""
}

// NewSessionID creates a new SessionID with validation.
func NewSessionID(id string) (SessionID, error) {
	sid := SessionID(strings.ToLower(strings.TrimSpace(id)))
	if !sid.IsValid() {
		return "", NewDomainError("shared", "NewSessionID", ErrInvalidID, "invalid session ID format")
	}
	return sid, nil
}

// ChoiceID represents an identifier of a decision rule in the catalog.
// Format: lowercase snake_case, e.g. "business_register", "take_loan".
type ChoiceID string

var choiceIDRegex = regexp.MustCompile(`^[a-z][a-z0-9_]{1,63}$`)

// IsValid checks if the choice ID has the catalog format.
func (c ChoiceID) IsValid() bool {
	return choiceIDRegex.MatchString(string(c))
}

// String returns the string representation.
func (c ChoiceID) String() string {
	return string(c)
}

// ═══════════════════════════════════════════════════════════════════════════
// DayKey Value Object (calendar-day scoping)
// ═══════════════════════════════════════════════════════════════════════════

// DayKey identifies one calendar day in the server reference timezone.
// All daily caps and cooldown counters are scoped by DayKey: when the key
// changes, the counter state resets. The key is passed explicitly into every
// transition so the logic stays reproducible in tests and correct across
// multiple server instances.
type DayKey string

const dayKeyLayout = "2006-01-02"

var dayKeyRegex = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// IsValid checks if the day key has the YYYY-MM-DD format.
func (d DayKey) IsValid() bool {
	return dayKeyRegex.MatchString(string(d))
}

// String returns the string representation.
func (d DayKey) String() string {
	return string(d)
}

// IsZero checks if the day key is unset.
func (d DayKey) IsZero() bool {
	return d == ""
}

// DayKeyOf derives the day key for a moment in the given location.
func DayKeyOf(t time.Time, loc *time.Location) DayKey {
	if loc == nil {
		loc = time.UTC
	}
	return DayKey(t.In(loc).Format(dayKeyLayout))
}

// ═══════════════════════════════════════════════════════════════════════════
// XP Value Object (Experience Points)
// ═══════════════════════════════════════════════════════════════════════════

// XP represents experience points earned by a learner.
type XP int

const (
	// XP boundaries
	MinXP XP = 0
	MaxXP XP = 1000000 // 1 million XP cap
)

// IsValid checks if the XP value is within valid range.
func (x XP) IsValid() bool {
	return x >= MinXP && x <= MaxXP
}

// Int returns the underlying int value.
func (x XP) Int() int {
	return int(x)
}

// Add adds XP and returns the result, capped at MaxXP.
func (x XP) Add(amount int) XP {
	result := XP(int(x) + amount)
	if result > MaxXP {
		return MaxXP
	}
	if result < MinXP {
		return MinXP
	}
	return result
}

// Subtract subtracts XP and returns the result, floored at MinXP.
func (x XP) Subtract(amount int) XP {
	result := XP(int(x) - amount)
	if result < MinXP {
		return MinXP
	}
	return result
}

// NewXP creates a new XP value with validation.
func NewXP(amount int) (XP, error) {
	if amount < int(MinXP) {
		return 0, NewDomainError("shared", "NewXP", ErrNegativeValue, "XP cannot be negative")
	}
	if amount > int(MaxXP) {
		return MaxXP, nil // Cap at max
	}
	return XP(amount), nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Reputation Value Object
// ═══════════════════════════════════════════════════════════════════════════

// Reputation represents a learner's standing on one reputation axis
// (e.g. "suppliers", "customers") inside the business practical.
type Reputation int

const (
	MinReputation Reputation = -100
	MaxReputation Reputation = 100
)

// IsValid checks if the reputation is within valid range.
func (r Reputation) IsValid() bool {
	return r >= MinReputation && r <= MaxReputation
}

// Adjust shifts reputation by delta, clamped to the valid range.
func (r Reputation) Adjust(delta int) Reputation {
	result := Reputation(int(r) + delta)
	if result > MaxReputation {
		return MaxReputation
	}
	if result < MinReputation {
		return MinReputation
	}
	return result
}

// String returns the string representation with sign.
func (r Reputation) String() string {
	return fmt.Sprintf("%+d", int(r))
}
