package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for classifying domain failures.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state")
	ErrIneligible   = errors.New("ineligible")
	ErrBelowMinimum = errors.New("below minimum purchase")
	ErrUnauthorized = errors.New("unauthorized")
	ErrGateway      = errors.New("gateway error")
	// ErrGatewayUnavailable marks transport-level failures (timeouts, refused
	// connections) where the provider outcome is inconclusive, as opposed to an
	// authoritative provider rejection.
	ErrGatewayUnavailable = errors.New("gateway unavailable")
	ErrSignature    = errors.New("invalid signature")
	ErrInconsistent = errors.New("inconsistent state")
	ErrConflict     = errors.New("conflict")
	ErrValidation   = errors.New("validation failed")
)

// DomainError carries a human-readable message alongside a sentinel classification.
// The message propagates unmodified to the API boundary for direct display.
type DomainError struct {
	Err     error
	Message string
}

func (e *DomainError) Error() string { return e.Message }

func (e *DomainError) Unwrap() error { return e.Err }

// Is lets errors.Is match against the sentinel classification.
func (e *DomainError) Is(target error) bool { return errors.Is(e.Err, target) }

// NewNotFoundError reports that an entity could not be found.
func NewNotFoundError(entity, id string) *DomainError {
	return &DomainError{Err: ErrNotFound, Message: fmt.Sprintf("%s %s not found", entity, id)}
}

// NewInvalidStateError reports a rejected state transition or an unusable entity state.
func NewInvalidStateError(message string) *DomainError {
	return &DomainError{Err: ErrInvalidState, Message: message}
}

// NewTransitionError reports a rejected lifecycle transition from one status to another.
func NewTransitionError(from, to string) *DomainError {
	return &DomainError{Err: ErrInvalidState, Message: fmt.Sprintf("cannot transition from %s to %s", from, to)}
}

// NewIneligibleError reports that an entity does not apply to the given target.
func NewIneligibleError(message string) *DomainError {
	return &DomainError{Err: ErrIneligible, Message: message}
}

// NewBelowMinimumError reports a subtotal under the required purchase floor.
func NewBelowMinimumError(minimum float64) *DomainError {
	return &DomainError{Err: ErrBelowMinimum, Message: fmt.Sprintf("subtotal is below the minimum purchase amount of %.2f", minimum)}
}

// NewUnauthorizedError reports a missing or insufficient caller role.
func NewUnauthorizedError(message string) *DomainError {
	return &DomainError{Err: ErrUnauthorized, Message: message}
}

// NewGatewayError reports a payment provider rejection or communication failure.
func NewGatewayError(provider, message string) *DomainError {
	return &DomainError{Err: ErrGateway, Message: fmt.Sprintf("%s: %s", provider, message)}
}

// NewGatewayUnavailableError reports a transport failure talking to a provider.
// The provider outcome is inconclusive; callers reconcile later instead of
// recording a terminal state.
func NewGatewayUnavailableError(provider, message string) *DomainError {
	return &DomainError{Err: ErrGatewayUnavailable, Message: fmt.Sprintf("%s unreachable: %s", provider, message)}
}

// NewSignatureError reports a webhook signature that failed verification.
func NewSignatureError(provider string) *DomainError {
	return &DomainError{Err: ErrSignature, Message: fmt.Sprintf("%s webhook signature verification failed", provider)}
}

// NewInconsistentError reports a conflicting terminal-state transition that must be
// reconciled manually instead of overwritten.
func NewInconsistentError(message string) *DomainError {
	return &DomainError{Err: ErrInconsistent, Message: message}
}

// NewConflictError reports a concurrent-modification conflict.
func NewConflictError(message string) *DomainError {
	return &DomainError{Err: ErrConflict, Message: message}
}

// NewValidationError reports malformed or rejected input.
func NewValidationError(message string) *DomainError {
	return &DomainError{Err: ErrValidation, Message: message}
}
