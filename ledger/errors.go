/*
errors.go - Centralized error types for the ledger engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers classify errors with errors.Is / errors.As and the helpers below.

ERROR CATEGORIES:
  1. Validation errors - Client-correctable input problems
  2. Not-found errors  - Referenced account/entry does not exist
  3. Partial application - One side of a balance mutation committed, the
     other failed. Operational; requires reconciliation, never silently
     swallowed.

SEE ALSO:
  - validator.go: Produces AccountNotFoundError and ValidationError
  - mutator.go: Produces PartialApplicationError
*/
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrAccountNotFound is returned when a referenced account does not exist,
	// whether looked up by id or by account number.
	ErrAccountNotFound = errors.New("account not found")

	// ErrEntryNotFound is returned when a referenced entry id does not exist.
	ErrEntryNotFound = errors.New("entry not found")

	// ErrValidation is returned when a required field is missing or malformed.
	ErrValidation = errors.New("validation failed")

	// ErrDuplicateAccountNo is returned when creating an account whose number
	// is already taken. Account numbers are the join key for entries and must
	// be unique.
	ErrDuplicateAccountNo = errors.New("duplicate account number")

	// ErrPartialApplication is returned when a balance mutation succeeded on
	// one side and failed on the other, leaving the ledger inconsistent until
	// reconciled.
	ErrPartialApplication = errors.New("partial balance application")

	// ErrNoAuthenticatedUser is returned when an operation is invoked without
	// a caller identity.
	ErrNoAuthenticatedUser = errors.New("no authenticated user")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// Side names one half of an entry in errors and events.
type Side string

const (
	SideDebit  Side = "debit"
	SideCredit Side = "credit"
)

// AccountNotFoundError reports which side of an entry referenced a
// nonexistent account number.
type AccountNotFoundError struct {
	Side      Side
	AccountNo string
}

func (e *AccountNotFoundError) Error() string {
	return fmt.Sprintf("no account was found with number %q (%s side)", e.AccountNo, e.Side)
}

func (e *AccountNotFoundError) Unwrap() error {
	return ErrAccountNotFound
}

// ValidationError reports the offending field so clients can correct it.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// PartialApplicationError carries everything reconciliation tooling needs:
// which side committed, which side failed, the account number and amount of
// the failed side, and the full draft.
type PartialApplicationError struct {
	AppliedSide Side
	FailedSide  Side
	AccountNo   string
	Amount      decimal.Decimal
	Draft       EntryDraft
	Cause       error
}

func (e *PartialApplicationError) Error() string {
	return fmt.Sprintf("partial application: %s side committed, %s side failed for account %q amount %s: %v",
		e.AppliedSide, e.FailedSide, e.AccountNo, e.Amount, e.Cause)
}

func (e *PartialApplicationError) Unwrap() error {
	return ErrPartialApplication
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing account or entry.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAccountNotFound) ||
		errors.Is(err, ErrEntryNotFound)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrDuplicateAccountNo)
}
