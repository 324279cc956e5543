package workflow

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the approval workflow. Callers match them with errors.Is.
var (
	// ErrConfiguration is returned when a rule or org chart cannot produce a usable chain
	ErrConfiguration = errors.New("configuration error")

	// ErrUnauthorizedDecision is returned when the actor may not act on a request or expense
	ErrUnauthorizedDecision = errors.New("unauthorized decision")

	// ErrInvalidState is returned when an operation does not fit the current expense or request status
	ErrInvalidState = errors.New("invalid state")

	// ErrAlreadyFinalized is returned when an expense already reached APPROVED or REJECTED
	ErrAlreadyFinalized = errors.New("expense already finalized")

	// ErrConversionUnavailable is returned when the currency converter fails (retryable)
	ErrConversionUnavailable = errors.New("currency conversion unavailable")

	// ErrContention is returned when the per-expense lock could not be acquired in time (retryable)
	ErrContention = errors.New("expense is busy")

	// ErrPersistence is returned when the store fails; the enclosing transaction is rolled back
	ErrPersistence = errors.New("persistence failure")

	// ErrNotFound is returned when an expense or request does not exist
	ErrNotFound = errors.New("not found")

	// ErrValidation is returned for malformed input
	ErrValidation = errors.New("validation failed")

	// ErrInvalidTransition is returned when the state machine does not permit a trigger
	ErrInvalidTransition = fmt.Errorf("%w: transition not permitted", ErrInvalidState)

	// ErrGuardFailed is returned when a guard condition fails
	ErrGuardFailed = fmt.Errorf("%w: guard condition failed", ErrInvalidState)
)

// IsTransient reports whether err is worth retrying by the caller
func IsTransient(err error) bool {
	return errors.Is(err, ErrConversionUnavailable) || errors.Is(err, ErrContention)
}

// Persistence wraps a storage failure so it matches ErrPersistence while keeping the cause
func Persistence(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrPersistence) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, err)
}
