/*
store.go - Persistence interfaces for accounts and entries

PURPOSE:
  Defines the interface between the engine and the database. Different
  implementations can use SQLite or in-memory storage; one concrete store
  typically implements both interfaces.

KEY INTERFACES:
  AccountStore: Account records keyed by id, looked up by account number
  EntryStore:   Entry records
  TxStores:     Transactional extension for atomic multi-record writes

BALANCE MUTATION:
  AddToBalances is the single balance-mutation primitive. The engine never
  reads totals and writes them back; implementations must serialize the
  increment so that two concurrent entries crediting the same account both
  land (no lost updates).

ATOMIC TRANSFERS:
  A store that implements TxStores lets the engine wrap both balance
  increments and the entry insert in one transaction, making partial
  application impossible on that path. Plain stores fall back to the
  sequential protocol in engine.go.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production SQLite
  - ledger/store/memory.go: In-memory for testing
*/
package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ACCOUNT STORE
// =============================================================================

// AccountStore handles persistence of account records.
type AccountStore interface {
	// InsertAccount persists a new account. Fails with ErrDuplicateAccountNo
	// if the account number is already taken.
	InsertAccount(ctx context.Context, account Account) error

	// FindAccountByNo looks an account up by its business key.
	// Returns ErrAccountNotFound if absent.
	FindAccountByNo(ctx context.Context, accountNo string) (*Account, error)

	// GetAccount looks an account up by internal id.
	// Returns ErrAccountNotFound if absent.
	GetAccount(ctx context.Context, id AccountID) (*Account, error)

	// SaveAccount persists in-place edits of an existing account's fields.
	// Returns ErrAccountNotFound if the id does not exist. Safe to call
	// twice in sequence with the same resulting record.
	SaveAccount(ctx context.Context, account Account) error

	// DeleteAccount removes an account unconditionally. Deleting a missing
	// id is not an error, and entries referencing the account are not
	// touched.
	DeleteAccount(ctx context.Context, id AccountID) error

	// ListAccounts returns all accounts.
	ListAccounts(ctx context.Context) ([]Account, error)

	// AddToBalances atomically increments the account's running totals:
	// debits += debitDelta, credits += creditDelta. Implementations must
	// serialize concurrent increments on the same account.
	// Returns ErrAccountNotFound if the account number does not exist.
	AddToBalances(ctx context.Context, accountNo string, debitDelta, creditDelta decimal.Decimal) error
}

// =============================================================================
// ENTRY STORE
// =============================================================================

// EntryStore handles persistence of entry records.
type EntryStore interface {
	// InsertEntry persists a new entry.
	InsertEntry(ctx context.Context, entry Entry) error

	// GetEntry returns an entry by id. Returns ErrEntryNotFound if absent.
	GetEntry(ctx context.Context, id EntryID) (*Entry, error)

	// SaveEntry persists in-place edits of an existing entry.
	// Returns ErrEntryNotFound if the id does not exist.
	SaveEntry(ctx context.Context, entry Entry) error

	// DeleteEntry removes an entry unconditionally. Balance effects applied
	// at creation are NOT reversed.
	DeleteEntry(ctx context.Context, id EntryID) error

	// ListEntries returns all entries.
	ListEntries(ctx context.Context) ([]Entry, error)
}

// =============================================================================
// TRANSACTIONAL STORES - For atomic operations across multiple writes
// =============================================================================

// Stores bundles the two stores a transaction scope operates on.
type Stores struct {
	Accounts AccountStore
	Entries  EntryStore
}

// TxStores wraps a store pair with transaction support.
type TxStores interface {
	// WithTx executes fn against transaction-scoped stores.
	// If fn returns an error, every write inside is rolled back.
	// If fn returns nil, all writes commit together.
	WithTx(ctx context.Context, fn func(Stores) error) error
}
