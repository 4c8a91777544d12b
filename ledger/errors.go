/*
errors.go - Centralized error taxonomy for the payment ledger

PURPOSE:
  All error types in one place. Callers distinguish "your input was
  invalid" from "the system could not complete this right now" with
  errors.Is; the UI layer maps these to user-facing messages.

ERROR CATEGORIES:
  1. Validation errors   - rejected before any storage write
  2. Conflict errors     - duplicates, folio races, already-voided
  3. Storage errors      - lock contention that survived the retry budget

SEE ALSO:
  - store/sqlite/retry.go: produces ErrStorageUnavailable
  - service.go: wraps these with operation context
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
	// ErrValidation is returned for bad input (non-positive or
	// out-of-range amount, more than two decimals, empty name).
	// Validation errors never reach storage.
	ErrValidation = errors.New("validation failed")

	// ErrDuplicateEnrollment is returned when the (campaign, person)
	// pair already exists. Surfaced to the user as "already enrolled".
	ErrDuplicateEnrollment = errors.New("person already enrolled in campaign")

	// ErrFolioTaken is returned by the store when an insert loses the
	// folio race to a sibling process. The service retries on it; it
	// should not normally escape to callers.
	ErrFolioTaken = errors.New("folio already taken")

	// ErrIdentifierConflict is returned when folio derivation keeps
	// colliding past its retry budget.
	ErrIdentifierConflict = errors.New("could not derive a unique folio")

	// ErrStorageUnavailable is returned after the lock-contention retry
	// budget is exhausted. Fatal to the operation, not to the process.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrAlreadyVoided is returned when voiding a payment that is
	// already flagged. A no-op with explanation.
	ErrAlreadyVoided = errors.New("payment already voided")

	// ErrAlreadyExists is returned by restore when a live enrollment
	// with the backed-up identity exists, and by campaign creation on
	// a duplicate name.
	ErrAlreadyExists = errors.New("record already exists")

	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrReauthRequired is returned when the void path cannot verify
	// the actor's credential.
	ErrReauthRequired = errors.New("re-authentication failed")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError reports which field was rejected and why.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// FolioConflictError reports an exhausted folio derivation.
type FolioConflictError struct {
	Scope    FolioScope
	Attempts int
}

func (e *FolioConflictError) Error() string {
	return fmt.Sprintf("folio conflict in %s scope after %d attempts", e.Scope, e.Attempts)
}

func (e *FolioConflictError) Unwrap() error { return ErrIdentifierConflict }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is the caller's fault and
// retrying the same input cannot succeed.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrDuplicateEnrollment) ||
		errors.Is(err, ErrAlreadyVoided) ||
		errors.Is(err, ErrAlreadyExists) ||
		errors.Is(err, ErrReauthRequired)
}

// IsTransient returns true if the same call might succeed later.
func IsTransient(err error) bool {
	return errors.Is(err, ErrStorageUnavailable) ||
		errors.Is(err, ErrIdentifierConflict)
}
