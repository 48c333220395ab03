package iptu

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure scenarios.
var (
	// Access and input errors
	ErrUnauthorized  = errors.New("iptu: unauthorized")
	ErrInvalidParams = errors.New("iptu: invalid params")
	ErrReentrant     = errors.New("iptu: reentrant call")

	// Assessment errors
	ErrAlreadyExists      = errors.New("iptu: assessment already exists")
	ErrNotFound           = errors.New("iptu: assessment not found")
	ErrNotActive          = errors.New("iptu: assessment is not active")
	ErrInvalidInstallment = errors.New("iptu: invalid installment number")

	// Payment errors
	ErrAlreadyPaid    = errors.New("iptu: installment already paid")
	ErrWrongAmount    = errors.New("iptu: wrong payment amount")
	ErrWrongPayer     = errors.New("iptu: payer is not the taxpayer")
	ErrTransferFailed = errors.New("iptu: transfer failed")

	// Store and lifecycle errors
	ErrMigrationFailed    = errors.New("iptu: migration failed")
	ErrRolesNotConfigured = errors.New("iptu: admin and treasury roles not configured")
)

// ValidationError describes which parameter was rejected. It matches
// ErrInvalidParams under errors.Is.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("iptu: invalid %s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is(err, ErrInvalidParams) match.
func (e ValidationError) Unwrap() error { return ErrInvalidParams }

func invalid(field, msg string) error {
	return ValidationError{Field: field, Message: msg}
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsPaymentRejected reports whether err is one of the validation failures
// of a payment. None of them change ledger state.
func IsPaymentRejected(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrNotActive) ||
		errors.Is(err, ErrInvalidInstallment) ||
		errors.Is(err, ErrAlreadyPaid) ||
		errors.Is(err, ErrWrongAmount) ||
		errors.Is(err, ErrWrongPayer)
}

// IsRetryable returns true if the caller may retry the same call later.
// The ledger never retries on its own.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransferFailed) ||
		errors.Is(err, ErrReentrant)
}
