/*
validator.go - Entry reference resolution and date validation

PURPOSE:
  Resolves a proposed entry's two account references against the account
  store and rejects unresolvable ones, naming the offending side and
  account number. Also enforces the date bound (an entry cannot be dated
  in the future).

ORDERING INVARIANT:
  Both lookups happen before any mutation. An entry referencing a
  nonexistent account must produce NO side effect on any account or on
  the entry itself; the engine only calls the mutator after Resolve
  returns cleanly.
*/
package ledger

import (
	"context"
	"time"
)

// Validator resolves entry drafts against the account store.
type Validator struct {
	Accounts AccountStore

	// Now is the clock used for the date bound. Defaults to time.Now;
	// injectable for tests.
	Now func() time.Time
}

// NewValidator creates a validator over the given account store.
func NewValidator(accounts AccountStore) *Validator {
	return &Validator{Accounts: accounts, Now: time.Now}
}

// Resolve checks the draft's required fields and date bound, then looks up
// the debit account and the credit account, in that order. On success it
// returns both resolved accounts; on failure nothing has been mutated.
func (v *Validator) Resolve(ctx context.Context, draft EntryDraft) (debit, credit *Account, err error) {
	if draft.Debit.AccountNo == "" {
		return nil, nil, &ValidationError{Field: "debit.account_no", Message: "this field is required"}
	}
	if draft.Credit.AccountNo == "" {
		return nil, nil, &ValidationError{Field: "credit.account_no", Message: "this field is required"}
	}
	if draft.Date.IsZero() {
		return nil, nil, &ValidationError{Field: "date", Message: "this field is required"}
	}
	if draft.Date.After(v.now()) {
		return nil, nil, &ValidationError{Field: "date", Message: "must be less than or equal to the current date"}
	}

	debit, err = v.Accounts.FindAccountByNo(ctx, draft.Debit.AccountNo)
	if err != nil {
		return nil, nil, wrapLookup(err, SideDebit, draft.Debit.AccountNo)
	}

	credit, err = v.Accounts.FindAccountByNo(ctx, draft.Credit.AccountNo)
	if err != nil {
		return nil, nil, wrapLookup(err, SideCredit, draft.Credit.AccountNo)
	}

	return debit, credit, nil
}

func (v *Validator) now() time.Time {
	if v.Now != nil {
		return v.Now()
	}
	return time.Now()
}

// wrapLookup converts a store-level not-found into an AccountNotFoundError
// that names the side; other store failures pass through unmodified.
func wrapLookup(err error, side Side, accountNo string) error {
	if IsNotFound(err) {
		return &AccountNotFoundError{Side: side, AccountNo: accountNo}
	}
	return err
}
