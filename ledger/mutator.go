/*
mutator.go - Balance application for a validated entry

PURPOSE:
  Applies the monetary effect of a validated entry onto the two referenced
  accounts: the debit account's debits total and the credit account's
  credits total each increase by the respective amount.

PARTIAL APPLICATION:
  The two increments are a logical unit, but against a plain store they are
  two independent writes. A failure after the first write and before the
  second is surfaced as *PartialApplicationError with full reconciliation
  context. When the engine runs the mutator inside a store transaction
  (TxStores), the rollback makes this state unreachable.
*/
package ledger

import (
	"context"

	"github.com/shopspring/decimal"
)

// Mutator applies balance effects through the store's atomic increment
// primitive. It never reads totals back, so concurrent entries on the same
// account cannot lose updates.
type Mutator struct {
	Accounts AccountStore
}

// NewMutator creates a mutator over the given account store.
func NewMutator(accounts AccountStore) *Mutator {
	return &Mutator{Accounts: accounts}
}

// Apply increments the debit account's debits by draft.Debit.Amount, then
// the credit account's credits by draft.Credit.Amount.
//
// If the first increment fails, nothing has been applied and the store
// error is returned as-is. If the second increment fails, the debit side
// has already committed and the error is a *PartialApplicationError.
func (m *Mutator) Apply(ctx context.Context, draft EntryDraft) error {
	if err := m.Accounts.AddToBalances(ctx, draft.Debit.AccountNo, draft.Debit.Amount, decimal.Zero); err != nil {
		return err
	}

	if err := m.Accounts.AddToBalances(ctx, draft.Credit.AccountNo, decimal.Zero, draft.Credit.Amount); err != nil {
		return &PartialApplicationError{
			AppliedSide: SideDebit,
			FailedSide:  SideCredit,
			AccountNo:   draft.Credit.AccountNo,
			Amount:      draft.Credit.Amount,
			Draft:       draft,
			Cause:       err,
		}
	}

	return nil
}
