/*
errors.go - Centralized error types for the ledger engine

PURPOSE:
  All engine errors in one place. Three categories, matching how callers
  must react:
  1. Validation errors - deterministic bad input, surfaced, never retried
  2. Insufficient history - projection runs abort entirely, no partial rows
  3. Persistence errors - the store failed; local mutation was rolled back

USAGE:
  if errors.Is(err, ledger.ErrInvalidAmount) { ... }

  var verr *ledger.ValidationError
  if errors.As(err, &verr) {
      // verr.Field, verr.Value carry context for the caller
  }

SEE ALSO:
  - schedule.go, allocate.go: produce validation errors
  - projection.go: produces ErrInsufficientHistory
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidPrincipal is returned when a schedule is requested for a
	// principal that is zero or negative.
	ErrInvalidPrincipal = errors.New("invalid principal")

	// ErrInvalidInstallmentCount is returned when the installment count is
	// less than one.
	ErrInvalidInstallmentCount = errors.New("invalid installment count")

	// ErrInvalidRate is returned for negative interest rates.
	ErrInvalidRate = errors.New("invalid interest rate")

	// ErrInvalidAmount is returned when a payment amount is not positive.
	ErrInvalidAmount = errors.New("invalid payment amount")

	// ErrInvalidStatus is returned for a manual override to an unknown status.
	ErrInvalidStatus = errors.New("invalid installment status")

	// ErrInvalidScenario is returned for an unknown projection scenario.
	ErrInvalidScenario = errors.New("invalid scenario")

	// ErrInsufficientHistory is returned when the trailing lookback window
	// yields zero snapshots. The projection run aborts with no partial rows.
	ErrInsufficientHistory = errors.New("insufficient snapshot history")

	// ErrAgreementNotFound is returned when a referenced agreement is missing.
	ErrAgreementNotFound = errors.New("agreement not found")

	// ErrInstallmentNotFound is returned when a referenced installment is missing.
	ErrInstallmentNotFound = errors.New("installment not found")

	// ErrPaymentNotFound is returned when a referenced payment is missing.
	ErrPaymentNotFound = errors.New("payment not found")

	// ErrDebtorNotFound is returned when a referenced debtor is missing.
	ErrDebtorNotFound = errors.New("debtor not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError wraps a validation sentinel with the offending field and
// value. The engine never silently corrects invalid input.
type ValidationError struct {
	Field string
	Value string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%v: %s=%s", e.Err, e.Field, e.Value)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func newValidationError(err error, field, value string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Err: err}
}

// InsufficientHistoryError reports an empty lookback window with its bounds.
type InsufficientHistoryError struct {
	From, To string // month keys, for the caller's message
}

func (e *InsufficientHistoryError) Error() string {
	return fmt.Sprintf("insufficient snapshot history in [%s, %s]", e.From, e.To)
}

func (e *InsufficientHistoryError) Unwrap() error { return ErrInsufficientHistory }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsValidation returns true if the error is a deterministic-input error.
// Retrying with the same input cannot succeed.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidPrincipal) ||
		errors.Is(err, ErrInvalidInstallmentCount) ||
		errors.Is(err, ErrInvalidRate) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidStatus) ||
		errors.Is(err, ErrInvalidScenario)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAgreementNotFound) ||
		errors.Is(err, ErrInstallmentNotFound) ||
		errors.Is(err, ErrPaymentNotFound) ||
		errors.Is(err, ErrDebtorNotFound)
}
