// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	ErrInvalidEntity = errors.New("invalid entity")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidFormat   = errors.New("invalid format")

	// State errors
	ErrInvalidState     = errors.New("invalid state")
	ErrStateTransition  = errors.New("invalid state transition")
	ErrAlreadyProcessed = errors.New("already processed")
	ErrExpired          = errors.New("expired")

	// Concurrency errors
	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrOptimisticLock         = errors.New("optimistic lock failure")

	// Infrastructure errors
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrTimeout          = errors.New("operation timeout")
	ErrRateLimited      = errors.New("rate limited")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "decision", "consequence", "business"
	Op      string // Operation that failed, e.g., "Resolve", "Realize"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Decision domain errors
var (
	ErrUnknownChoice      = NewDomainError("decision", "Resolve", ErrInvalidInput, "unknown choice id")
	ErrInvalidPayload     = NewDomainError("decision", "Resolve", ErrInvalidInput, "choice payload is missing or malformed")
	ErrRuleCatalogInvalid = NewDomainError("decision", "LoadCatalog", ErrInvalidFormat, "rule catalog is invalid")
)

// Consequence domain errors
var (
	ErrConsequenceNotFound = NewDomainError("consequence", "Find", ErrNotFound, "consequence not found")
	ErrConsequenceApplied  = NewDomainError("consequence", "Realize", ErrAlreadyProcessed, "consequence already applied")
)

// Session domain errors
var (
	ErrSessionNotFound  = NewDomainError("session", "Find", ErrNotFound, "practice session not found")
	ErrSessionNotActive = NewDomainError("session", "CheckStatus", ErrInvalidState, "practice session is not active")
	ErrSessionExists    = NewDomainError("session", "Create", ErrAlreadyExists, "practice session already exists")
)

// Business domain errors
var (
	ErrRegistrationPending  = NewDomainError("business", "Submit", ErrStateTransition, "registration already pending")
	ErrRegistrationApproved = NewDomainError("business", "Submit", ErrStateTransition, "business already registered")
	ErrBusinessNameRequired = NewDomainError("business", "Submit", ErrEmptyValue, "business name is required")
)

// Progression domain errors
var (
	ErrProfileNotFound = NewDomainError("progression", "Find", ErrNotFound, "learner profile not found")
	ErrInvalidReward   = NewDomainError("progression", "Award", ErrNegativeValue, "xp reward cannot be negative")
)

// Mission domain errors
var (
	ErrInvalidMissionID = NewDomainError("mission", "Validate", ErrInvalidID, "invalid mission id")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyProcessed checks if the error marks an idempotent repeat.
func IsAlreadyProcessed(err error) bool {
	return errors.Is(err, ErrAlreadyProcessed)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsConflict checks if the error is a state conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyExists) ||
		errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrStateTransition)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrConcurrentModification)
}
