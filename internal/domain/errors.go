// Package domain defines the core business entities and errors.
package domain

import (
	"errors"
	"fmt"
)

// Common domain errors used across the application.
var (
	// ErrValidation is returned when input fails validation. Validation errors
	// are always raised before any network call is made.
	ErrValidation = errors.New("validation failed")

	// ErrInsufficientFunds is returned when a debit exceeds the current balance.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrCooldownActive is returned when an ad reward is requested before the
	// cooldown window has elapsed.
	ErrCooldownActive = errors.New("ad reward cooldown active")

	// ErrAdNotReady is returned when no ad has been loaded yet.
	ErrAdNotReady = errors.New("ad not ready")

	// ErrAdNotCompleted is returned when an ad was dismissed before it granted
	// its reward.
	ErrAdNotCompleted = errors.New("ad dismissed before reward")

	// ErrRewardInFlight is returned when an ad reward is requested while
	// another request is still running.
	ErrRewardInFlight = errors.New("ad reward already in progress")

	// ErrNetwork is returned when the remote backend could not be reached or
	// rejected a call for reasons other than validation.
	ErrNetwork = errors.New("network error")

	// ErrReconciliationGap marks a divergence between local and remote state
	// that could not be closed automatically.
	ErrReconciliationGap = errors.New("local and remote state diverged")

	// ErrNoActiveSession is returned when a draw is attempted before a spread
	// has been selected.
	ErrNoActiveSession = errors.New("no active reading session")
)

// Validation errors. Each wraps ErrValidation.
var (
	ErrInvalidTemplate = fmt.Errorf("%w: unknown or locked spread template", ErrValidation)
	ErrSlotOutOfRange  = fmt.Errorf("%w: slot index out of range", ErrValidation)
	ErrInvalidAmount   = fmt.Errorf("%w: amount must be positive", ErrValidation)
	ErrUnknownProduct  = fmt.Errorf("%w: unknown product", ErrValidation)
	ErrAlreadyOwned    = fmt.Errorf("%w: product already owned", ErrValidation)
	ErrInvalidLanguage = fmt.Errorf("%w: unsupported language", ErrValidation)
	ErrEmptyUsername   = fmt.Errorf("%w: username cannot be empty", ErrValidation)
)

// ValidationError describes a single invalid field.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Message)
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

// Unwrap returns the underlying sentinel, or ErrValidation when none was set.
func (e *ValidationError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrValidation
}

// NewValidationError creates a ValidationError for the given field that wraps
// the provided sentinel.
func NewValidationError(field, message string, err error) *ValidationError {
	return &ValidationError{Field: field, Message: message, Err: err}
}

// IsValidation reports whether err is any kind of validation failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// Stable machine-readable codes carried in backend error responses.
const (
	CodeValidation        = "validation_failed"
	CodeInsufficientFunds = "insufficient_funds"
	CodeAlreadyOwned      = "already_owned"
	CodeUnknownProduct    = "unknown_product"
	CodeNotFound          = "not_found"
	CodeInternal          = "internal"
)

// ErrNotFound is returned when a referenced user or resource does not exist.
var ErrNotFound = errors.New("not found")

// CodeFor returns the response code for err.
func CodeFor(err error) string {
	switch {
	case errors.Is(err, ErrInsufficientFunds):
		return CodeInsufficientFunds
	case errors.Is(err, ErrAlreadyOwned):
		return CodeAlreadyOwned
	case errors.Is(err, ErrUnknownProduct):
		return CodeUnknownProduct
	case errors.Is(err, ErrValidation):
		return CodeValidation
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	default:
		return CodeInternal
	}
}

// ErrorForCode maps a response code back onto its sentinel, or nil for an
// unknown code.
func ErrorForCode(code string) error {
	switch code {
	case CodeInsufficientFunds:
		return ErrInsufficientFunds
	case CodeAlreadyOwned:
		return ErrAlreadyOwned
	case CodeUnknownProduct:
		return ErrUnknownProduct
	case CodeValidation:
		return ErrValidation
	case CodeNotFound:
		return ErrNotFound
	default:
		return nil
	}
}
