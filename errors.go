package billing

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound      = errors.New("billing: not found")
	ErrAlreadyExists = errors.New("billing: already exists")
	ErrInvalidInput  = errors.New("billing: invalid input")
	ErrUnauthorized  = errors.New("billing: unauthorized")

	// Invoice errors
	ErrInvoiceNotFound   = errors.New("billing: invoice not found")
	ErrInvoiceVoid       = errors.New("billing: invoice is void")
	ErrInvoicePaid       = errors.New("billing: invoice already paid")
	ErrInvalidTransition = errors.New("billing: invalid invoice status transition")
	ErrInvalidLineItem   = errors.New("billing: invalid line item")
	ErrInvoiceBusy       = errors.New("billing: invoice is locked by another operation")

	// Payment errors
	ErrPaymentNotFound = errors.New("billing: payment not found")
	ErrInvalidAmount   = errors.New("billing: invalid amount")
	ErrInvalidPayment  = errors.New("billing: invalid payment")
	ErrInvalidMethod   = errors.New("billing: invalid payment method")

	// Gateway errors
	ErrInvalidSignature     = errors.New("billing: invalid gateway signature")
	ErrGatewayNotConfigured = errors.New("billing: payment gateway not configured")

	// Schedule errors
	ErrScheduledPaymentNotFound = errors.New("billing: scheduled payment not found")
	ErrInvalidSchedule          = errors.New("billing: invalid schedule")
	ErrScheduleNotPending       = errors.New("billing: scheduled payment is no longer scheduled")

	// Store errors
	ErrStoreNotReady   = errors.New("billing: store not ready")
	ErrStoreClosed     = errors.New("billing: store is closed")
	ErrMigrationFailed = errors.New("billing: migration failed")
)

// ValidationError is a field-level failure. It unwraps to Kind so callers
// can match the sentinel with errors.Is.
type ValidationError struct {
	Kind    error
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("billing: validation failed for %s: %s", e.Field, e.Message)
}

func (e ValidationError) Unwrap() error {
	return e.Kind
}

func invalid(kind error, field, msg string) error {
	return ValidationError{Kind: kind, Field: field, Message: msg}
}

// MultiError collects several errors.
type MultiError struct {
	Errors []error
}

func (e MultiError) Error() string {
	if len(e.Errors) == 0 {
		return "billing: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("billing: %d errors occurred", len(e.Errors))
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (e MultiError) Unwrap() []error {
	return e.Errors
}

// Add adds an error to the multi-error.
func (e *MultiError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// HasErrors returns true if there are any errors.
func (e MultiError) HasErrors() bool {
	return len(e.Errors) > 0
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInvoiceNotFound) ||
		errors.Is(err, ErrPaymentNotFound) ||
		errors.Is(err, ErrScheduledPaymentNotFound)
}

// IsValidation returns true if the error was caused by caller input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidPayment) ||
		errors.Is(err, ErrInvalidMethod) ||
		errors.Is(err, ErrInvalidSchedule) ||
		errors.Is(err, ErrInvalidLineItem) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrInvoiceVoid)
}

// IsRetryable returns true if the error is temporary and the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreNotReady)
}
