/*
Package ledger provides the core double-entry bookkeeping engine.

PURPOSE:
  This package contains the entity model and orchestration logic for a
  double-entry ledger: accounts hold running debit/credit totals, and
  every entry moves an amount from one account to another. Creating an
  entry atomically resolves both account references and applies the
  monetary effect to both sides.

KEY CONCEPTS IN THIS FILE (types.go):
  - Account: A balance-holding entity with separate debit/credit accumulators
  - Entry: One double-entry transaction (debit side + credit side)
  - EntryDraft: What a caller submits; user attribution is injected by the engine
  - AccountUpdate/EntryUpdate: Whitelist-based partial updates

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point errors
  2. Type Safety: Strong typing for IDs prevents mixing account/entry/user IDs
  3. Copied values: An entry carries accountNo/amount by value, never live
     references to account records

SEE ALSO:
  - validator.go: Account reference resolution
  - mutator.go: Balance application
  - engine.go: The create-entry state machine
*/
package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type AccountID string
type EntryID string

// UserID identifies the authenticated caller. The engine never resolves it;
// it is supplied per operation by the identity layer and stored for
// attribution only.
type UserID string

// NewAccountID returns a fresh opaque account identifier.
func NewAccountID() AccountID { return AccountID("acct-" + uuid.NewString()) }

// NewEntryID returns a fresh opaque entry identifier.
func NewEntryID() EntryID { return EntryID("entry-" + uuid.NewString()) }

// =============================================================================
// ACCOUNT - Balance-holding entity
// =============================================================================

// Field constraints for account creation and update.
const (
	AccountNoMinLen = 1
	AccountNoMaxLen = 20
	CategoryMinLen  = 2
	CategoryMaxLen  = 100
)

// Account is a named balance-holding entity.
//
// INVARIANT: Debits and Credits start at zero and only ever increase through
// entry application. There is no direct decrement path; the update whitelist
// that allows overwriting them exists as an administrative escape hatch.
type Account struct {
	ID        AccountID       `json:"id"`
	AccountNo string          `json:"account_no"`
	Category  string          `json:"category"`
	Debits    decimal.Decimal `json:"debits"`
	Credits   decimal.Decimal `json:"credits"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// AccountUpdate is a whitelist-based partial update. Nil fields are kept
// as-is; anything outside this fixed set is ignored by callers, not rejected.
type AccountUpdate struct {
	AccountNo *string
	Category  *string
	Debits    *decimal.Decimal
	Credits   *decimal.Decimal
}

// =============================================================================
// ENTRY - One double-entry transaction
// =============================================================================

// EntrySide names one half of an entry: the account whose total changes,
// and by how much. Accounts are referenced by business key (accountNo),
// not by internal id.
type EntrySide struct {
	AccountNo string          `json:"account_no"`
	Amount    decimal.Decimal `json:"amount"`
}

// Entry records one double-entry transaction. The debit side increases its
// account's Debits total; the credit side increases its account's Credits
// total, by the respective amounts.
type Entry struct {
	ID        EntryID   `json:"id"`
	Debit     EntrySide `json:"debit"`
	Credit    EntrySide `json:"credit"`
	Date      time.Time `json:"date"`
	UserID    UserID    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// EntryDraft is a proposed entry before validation. The attributed user is
// never taken from the draft; the engine injects the caller's identity.
type EntryDraft struct {
	Debit  EntrySide
	Credit EntrySide
	Date   time.Time
}

// EntryUpdate is a whitelist-based partial update for an entry. The
// attributed user is not part of the whitelist: updates always overwrite it
// with the caller's identity.
//
// NOTE: Updating an entry does NOT reverse or reapply balance effects.
// Account totals reflect the entry as originally created.
type EntryUpdate struct {
	Debit  *EntrySide
	Credit *EntrySide
	Date   *time.Time
}
