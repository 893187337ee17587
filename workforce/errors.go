/*
errors.go - Centralized error types for the workforce engine

PURPOSE:
  All error types in one place for consistency and discoverability.

ERROR CATEGORIES:
  1. Validation errors - malformed intents, unknown ids, impossible factors.
     Rejected before any mutation; the caller may retry with fixed input.
  2. Invariant violations - payroll totals diverging, cadence regression.
     Programming errors. The tick is aborted and the host discards it.
  3. Store errors - persistence failures and idempotency conflicts.

  Backpressure (no eligible employee, insufficient time budget) is NOT an
  error. Those tasks stay queued and may produce a warning.

USAGE:
  if errors.Is(err, workforce.ErrEmployeeNotFound) { ... }

  var verr *workforce.ValidationError
  if errors.As(err, &verr) {
      fmt.Println(verr.Field, verr.Reason)
  }

SEE ALSO:
  - intents.go: Produces ValidationError
  - payroll.go: Produces InvariantError
*/
package workforce

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidIntent is the root of every validation failure.
	ErrInvalidIntent = errors.New("invalid intent")

	ErrEmployeeNotFound  = errors.New("employee not found")
	ErrTaskNotFound      = errors.New("task not found")
	ErrUnknownTaskCode   = errors.New("unknown task code")
	ErrUnknownStructure  = errors.New("unknown structure")
	ErrUnknownRole       = errors.New("unknown role")
	ErrCandidateNotFound = errors.New("market candidate not found")
	ErrCandidateExpired  = errors.New("market candidate expired")
	ErrInvalidRateFactor = errors.New("invalid rate increase factor")
	ErrInvalidContext    = errors.New("invalid task context")
	ErrTaskTerminal      = errors.New("task already in a terminal state")

	// ErrInvariantViolation is the root of every invariant failure.
	ErrInvariantViolation = errors.New("invariant violation")

	ErrPayrollImbalance  = errors.New("payroll totals diverged")
	ErrCadenceRegression = errors.New("raise cadence regressed")

	// ErrDuplicateIdempotencyKey is returned when a ledger entry with the
	// same idempotency key already exists. Expected on retries.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrSnapshotNotFound is returned by stores when no snapshot matches.
	ErrSnapshotNotFound = errors.New("snapshot not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError describes why an intent was rejected.
type ValidationError struct {
	Intent string // e.g. "workforce.raise.accept"
	Field  string
	Reason string
	Err    error // more specific sentinel, optional
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", e.Intent, e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", e.Intent, e.Field, e.Reason)
}

// Is lets errors.Is match both ErrInvalidIntent and the specific sentinel.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidIntent
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(intent, field string, sentinel error, format string, args ...any) *ValidationError {
	return &ValidationError{Intent: intent, Field: field, Reason: fmt.Sprintf(format, args...), Err: sentinel}
}

// InvariantError reports a broken engine invariant. The tick must be discarded.
type InvariantError struct {
	Check  string
	Detail string
	Err    error
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant %s violated: %s", e.Check, e.Detail)
}

func (e *InvariantError) Is(target error) bool {
	return target == ErrInvariantViolation
}

func (e *InvariantError) Unwrap() error {
	return e.Err
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsValidation returns true if the error is due to invalid caller input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidIntent)
}

// IsInvariant returns true if the error means the tick must be discarded.
func IsInvariant(err error) bool {
	return errors.Is(err, ErrInvariantViolation)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEmployeeNotFound) ||
		errors.Is(err, ErrTaskNotFound) ||
		errors.Is(err, ErrCandidateNotFound) ||
		errors.Is(err, ErrSnapshotNotFound)
}
