/*
engine.go - Ledger engine orchestration

PURPOSE:
  Composes the Validator and Mutator into the single entry-creation
  operation and carries the thin CRUD surface for accounts and entries.
  The engine itself sequences validation, mutation, and persistence; no
  work happens through storage hooks.

CREATE-ENTRY STATE MACHINE:
  Received   -> draft with debit, credit, date (user injected by caller)
  Validating -> both accounts resolve, date bound holds; failure is a
                no-op on every account and entry
  Mutating   -> debit increment, then credit increment
  Persisting -> entry written, carrying accountNo/amount by value
  Committed  -> entry visible to subsequent reads

  With a transactional store (TxStores) the Mutating and Persisting steps
  run inside one transaction. Against plain stores a failure mid-mutation
  is terminal for the call and reported as PartialApplicationError; no
  automatic retry or compensation is attempted.

IDENTITY:
  Every operation takes the caller's UserID explicitly. An empty UserID is
  rejected with ErrNoAuthenticatedUser before anything else happens.

SEE ALSO:
  - validator.go: Reference resolution
  - mutator.go: Balance application
  - store.go: Store interfaces
*/
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

// =============================================================================
// ENGINE
// =============================================================================

// Engine is the orchestrator for all ledger operations.
type Engine struct {
	accounts  AccountStore
	entries   EntryStore
	tx        TxStores // nil when the stores have no transaction support
	validator *Validator
	mutator   *Mutator
	publisher Publisher
	now       func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithTxStores enables atomic entry application: balance increments and the
// entry insert commit or roll back together.
func WithTxStores(tx TxStores) Option {
	return func(e *Engine) { e.tx = tx }
}

// WithPublisher attaches an event publisher notified after each commit.
func WithPublisher(p Publisher) Option {
	return func(e *Engine) { e.publisher = p }
}

// WithClock overrides the engine clock (for tests).
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
		e.validator.Now = now
	}
}

// NewEngine creates an engine over the given stores.
func NewEngine(accounts AccountStore, entries EntryStore, opts ...Option) *Engine {
	e := &Engine{
		accounts:  accounts,
		entries:   entries,
		validator: NewValidator(accounts),
		mutator:   NewMutator(accounts),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// =============================================================================
// ACCOUNT OPERATIONS
// =============================================================================

// CreateAccount opens a new account with zeroed totals.
func (e *Engine) CreateAccount(ctx context.Context, user UserID, accountNo, category string) (*Account, error) {
	if err := requireUser(user); err != nil {
		return nil, err
	}
	if err := validateAccountNo(accountNo); err != nil {
		return nil, err
	}
	if err := validateCategory(category); err != nil {
		return nil, err
	}

	now := e.now()
	account := Account{
		ID:        NewAccountID(),
		AccountNo: accountNo,
		Category:  category,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := e.accounts.InsertAccount(ctx, account); err != nil {
		return nil, err
	}
	return &account, nil
}

// GetAccount returns a single account by id.
func (e *Engine) GetAccount(ctx context.Context, user UserID, id AccountID) (*Account, error) {
	if err := requireUser(user); err != nil {
		return nil, err
	}
	return e.accounts.GetAccount(ctx, id)
}

// ListAccounts returns all accounts.
func (e *Engine) ListAccounts(ctx context.Context, user UserID) ([]Account, error) {
	if err := requireUser(user); err != nil {
		return nil, err
	}
	return e.accounts.ListAccounts(ctx)
}

// UpdateAccount replaces the whitelisted fields of an existing account.
// Fields absent from the update are kept; nothing else can be overwritten.
func (e *Engine) UpdateAccount(ctx context.Context, user UserID, id AccountID, upd AccountUpdate) (*Account, error) {
	if err := requireUser(user); err != nil {
		return nil, err
	}

	account, err := e.accounts.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}

	if upd.AccountNo != nil {
		if err := validateAccountNo(*upd.AccountNo); err != nil {
			return nil, err
		}
		account.AccountNo = *upd.AccountNo
	}
	if upd.Category != nil {
		if err := validateCategory(*upd.Category); err != nil {
			return nil, err
		}
		account.Category = *upd.Category
	}
	if upd.Debits != nil {
		account.Debits = *upd.Debits
	}
	if upd.Credits != nil {
		account.Credits = *upd.Credits
	}
	account.UpdatedAt = e.now()

	if err := e.accounts.SaveAccount(ctx, *account); err != nil {
		return nil, err
	}
	return account, nil
}

// DeleteAccount removes the account record. It does not check for
// referencing entries, and deleting a missing id is not an error.
func (e *Engine) DeleteAccount(ctx context.Context, user UserID, id AccountID) error {
	if err := requireUser(user); err != nil {
		return err
	}
	return e.accounts.DeleteAccount(ctx, id)
}

// =============================================================================
// ENTRY CREATION - the core operation
// =============================================================================

// CreateEntry runs the full create-entry state machine: validate both
// account references and the date, apply the debit and credit balance
// effects, persist the entry, then notify the publisher.
func (e *Engine) CreateEntry(ctx context.Context, user UserID, draft EntryDraft) (*Entry, error) {
	if err := requireUser(user); err != nil {
		return nil, err
	}

	// Validating: both lookups happen before any mutation.
	if _, _, err := e.validator.Resolve(ctx, draft); err != nil {
		return nil, err
	}

	entry := Entry{
		ID:        NewEntryID(),
		Debit:     draft.Debit,
		Credit:    draft.Credit,
		Date:      draft.Date,
		UserID:    user,
		CreatedAt: e.now(),
	}

	if e.tx != nil {
		// Mutating + Persisting as one unit: a failure anywhere rolls back
		// both increments and the entry insert.
		err := e.tx.WithTx(ctx, func(s Stores) error {
			if err := NewMutator(s.Accounts).Apply(ctx, draft); err != nil {
				return err
			}
			return s.Entries.InsertEntry(ctx, entry)
		})
		if err != nil {
			return nil, err
		}
	} else {
		// Mutating: debit side, then credit side, as independent writes.
		if err := e.mutator.Apply(ctx, draft); err != nil {
			if errors.Is(err, ErrPartialApplication) {
				e.logInconsistency(err, draft)
			}
			return nil, err
		}

		// Persisting: balances are already mutated; an insert failure here
		// leaves them ahead of the entry record.
		if err := e.entries.InsertEntry(ctx, entry); err != nil {
			e.logInconsistency(fmt.Errorf("entry insert after balance application: %w", err), draft)
			return nil, err
		}
	}

	// Committed.
	if e.publisher != nil {
		if err := e.publisher.EntryCommitted(ctx, entry); err != nil {
			// Publishing is best-effort and never fails the operation.
			log.Printf("ledger: publish entry %s: %v", entry.ID, err)
		}
	}

	return &entry, nil
}

// logInconsistency records the context reconciliation needs: account
// numbers, amounts, and the full draft. This must never be silent.
func (e *Engine) logInconsistency(err error, draft EntryDraft) {
	log.Printf("ledger: RECONCILIATION REQUIRED: %v (debit %s %s, credit %s %s)",
		err,
		draft.Debit.AccountNo, draft.Debit.Amount,
		draft.Credit.AccountNo, draft.Credit.Amount,
	)
}

// =============================================================================
// ENTRY CRUD
// =============================================================================

// GetEntry returns a single entry by id.
func (e *Engine) GetEntry(ctx context.Context, user UserID, id EntryID) (*Entry, error) {
	if err := requireUser(user); err != nil {
		return nil, err
	}
	return e.entries.GetEntry(ctx, id)
}

// ListEntries returns all entries.
func (e *Engine) ListEntries(ctx context.Context, user UserID) ([]Entry, error) {
	if err := requireUser(user); err != nil {
		return nil, err
	}
	return e.entries.ListEntries(ctx)
}

// UpdateEntry replaces the whitelisted fields of an existing entry and
// re-attributes it to the caller. Balance effects are NOT reapplied:
// account totals keep reflecting the entry as originally created.
func (e *Engine) UpdateEntry(ctx context.Context, user UserID, id EntryID, upd EntryUpdate) (*Entry, error) {
	if err := requireUser(user); err != nil {
		return nil, err
	}

	entry, err := e.entries.GetEntry(ctx, id)
	if err != nil {
		return nil, err
	}

	if upd.Debit != nil {
		entry.Debit = *upd.Debit
	}
	if upd.Credit != nil {
		entry.Credit = *upd.Credit
	}
	if upd.Date != nil {
		entry.Date = *upd.Date
	}
	entry.UserID = user

	if err := e.entries.SaveEntry(ctx, *entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// DeleteEntry removes the entry record. The balance effects applied at
// creation remain on the referenced accounts.
func (e *Engine) DeleteEntry(ctx context.Context, user UserID, id EntryID) error {
	if err := requireUser(user); err != nil {
		return err
	}
	return e.entries.DeleteEntry(ctx, id)
}

// =============================================================================
// FIELD VALIDATION
// =============================================================================

func requireUser(user UserID) error {
	if user == "" {
		return ErrNoAuthenticatedUser
	}
	return nil
}

func validateAccountNo(accountNo string) error {
	if len(accountNo) < AccountNoMinLen {
		return &ValidationError{Field: "account_no", Message: "this field is required"}
	}
	if len(accountNo) > AccountNoMaxLen {
		return &ValidationError{
			Field:   "account_no",
			Message: fmt.Sprintf("must be at most %d characters", AccountNoMaxLen),
		}
	}
	return nil
}

func validateCategory(category string) error {
	if len(category) < CategoryMinLen {
		return &ValidationError{
			Field:   "category",
			Message: fmt.Sprintf("must be at least %d characters", CategoryMinLen),
		}
	}
	if len(category) > CategoryMaxLen {
		return &ValidationError{
			Field:   "category",
			Message: fmt.Sprintf("must be at most %d characters", CategoryMaxLen),
		}
	}
	return nil
}
