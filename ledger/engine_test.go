package ledger_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/ledger-engine/ledger"
	"github.com/warp/ledger-engine/ledger/store"
)

const testUser = ledger.UserID("user-accountant")

func newTestEngine(t *testing.T) (*ledger.Engine, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	engine := ledger.NewEngine(mem, mem, ledger.WithTxStores(mem))
	return engine, mem
}

func openAccount(t *testing.T, engine *ledger.Engine, accountNo, category string) *ledger.Account {
	t.Helper()
	account, err := engine.CreateAccount(context.Background(), testUser, accountNo, category)
	require.NoError(t, err)
	return account
}

func draft(debitNo string, debitAmt string, creditNo string, creditAmt string, date time.Time) ledger.EntryDraft {
	return ledger.EntryDraft{
		Debit:  ledger.EntrySide{AccountNo: debitNo, Amount: decimal.RequireFromString(debitAmt)},
		Credit: ledger.EntrySide{AccountNo: creditNo, Amount: decimal.RequireFromString(creditAmt)},
		Date:   date,
	}
}

// =============================================================================
// ACCOUNT LIFECYCLE
// =============================================================================

func TestCreateAccount_StartsWithZeroTotals(t *testing.T) {
	// GIVEN an empty ledger
	engine, _ := newTestEngine(t)

	// WHEN an account is opened
	account := openAccount(t, engine, "1001", "Assets")

	// THEN both accumulators start at zero
	assert.Equal(t, "1001", account.AccountNo)
	assert.Equal(t, "Assets", account.Category)
	assert.True(t, account.Debits.IsZero())
	assert.True(t, account.Credits.IsZero())
	assert.NotEmpty(t, account.ID)
}

func TestCreateAccount_RejectsDuplicateAccountNo(t *testing.T) {
	// GIVEN an existing account 1001
	engine, _ := newTestEngine(t)
	openAccount(t, engine, "1001", "Assets")

	// WHEN a second account claims the same number
	_, err := engine.CreateAccount(context.Background(), testUser, "1001", "Liabilities")

	// THEN the open is rejected
	assert.ErrorIs(t, err, ledger.ErrDuplicateAccountNo)
}

func TestCreateAccount_ValidatesFieldLengths(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	cases := []struct {
		name      string
		accountNo string
		category  string
	}{
		{"empty account number", "", "Assets"},
		{"account number too long", "123456789012345678901", "Assets"},
		{"category too short", "1001", "A"},
		{"category too long", "1001", string(make([]byte, 101))},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := engine.CreateAccount(ctx, testUser, tc.accountNo, tc.category)
			assert.ErrorIs(t, err, ledger.ErrValidation)
		})
	}
}

func TestUpdateAccount_OnlyWhitelistedFieldsChange(t *testing.T) {
	// GIVEN an account with a known creation time
	engine, _ := newTestEngine(t)
	account := openAccount(t, engine, "1001", "Assets")

	// WHEN category and debits are replaced
	newCategory := "Fixed Assets"
	newDebits := decimal.RequireFromString("10")
	updated, err := engine.UpdateAccount(context.Background(), testUser, account.ID, ledger.AccountUpdate{
		Category: &newCategory,
		Debits:   &newDebits,
	})
	require.NoError(t, err)

	// THEN only those fields moved
	assert.Equal(t, "1001", updated.AccountNo)
	assert.Equal(t, "Fixed Assets", updated.Category)
	assert.True(t, updated.Debits.Equal(newDebits))
	assert.True(t, updated.Credits.IsZero())
	assert.Equal(t, account.CreatedAt, updated.CreatedAt)
}

func TestUpdateAccount_RenameToTakenNumberFails(t *testing.T) {
	engine, _ := newTestEngine(t)
	openAccount(t, engine, "1001", "Assets")
	other := openAccount(t, engine, "2001", "Revenue")

	taken := "1001"
	_, err := engine.UpdateAccount(context.Background(), testUser, other.ID, ledger.AccountUpdate{AccountNo: &taken})
	assert.ErrorIs(t, err, ledger.ErrDuplicateAccountNo)
}

func TestDeleteAccount_MissingIDIsNotAnError(t *testing.T) {
	engine, _ := newTestEngine(t)
	err := engine.DeleteAccount(context.Background(), testUser, ledger.AccountID("acct-nope"))
	assert.NoError(t, err)
}

// =============================================================================
// ENTRY CREATION - the double-entry core
// =============================================================================

func TestCreateEntry_AppliesBothSides(t *testing.T) {
	// GIVEN accounts 1001 and 2001 with zero totals
	engine, _ := newTestEngine(t)
	debitAcct := openAccount(t, engine, "1001", "Assets")
	creditAcct := openAccount(t, engine, "2001", "Revenue")
	ctx := context.Background()

	// WHEN an entry moves 50 from 2001 to 1001
	entry, err := engine.CreateEntry(ctx, testUser, draft("1001", "50", "2001", "50", time.Now().Add(-time.Hour)))
	require.NoError(t, err)

	// THEN the debit account gained 50 debits and the credit account 50 credits
	gotDebit, err := engine.GetAccount(ctx, testUser, debitAcct.ID)
	require.NoError(t, err)
	gotCredit, err := engine.GetAccount(ctx, testUser, creditAcct.ID)
	require.NoError(t, err)

	assert.Equal(t, "50", gotDebit.Debits.String())
	assert.True(t, gotDebit.Credits.IsZero())
	assert.Equal(t, "50", gotCredit.Credits.String())
	assert.True(t, gotCredit.Debits.IsZero())

	// AND the entry snapshots account numbers and amounts by value
	assert.Equal(t, "1001", entry.Debit.AccountNo)
	assert.Equal(t, "2001", entry.Credit.AccountNo)
	assert.Equal(t, testUser, entry.UserID)
	assert.NotEmpty(t, entry.ID)
}

func TestCreateEntry_UnknownDebitAccountLeavesEverythingUntouched(t *testing.T) {
	// GIVEN only account 2001 exists
	engine, _ := newTestEngine(t)
	creditAcct := openAccount(t, engine, "2001", "Revenue")
	ctx := context.Background()

	// WHEN the entry references a nonexistent debit account
	_, err := engine.CreateEntry(ctx, testUser, draft("9999", "50", "2001", "50", time.Now().Add(-time.Hour)))

	// THEN the error names the debit side and nothing was applied
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)

	var nfErr *ledger.AccountNotFoundError
	require.ErrorAs(t, err, &nfErr)
	assert.Equal(t, ledger.SideDebit, nfErr.Side)
	assert.Equal(t, "9999", nfErr.AccountNo)

	got, err := engine.GetAccount(ctx, testUser, creditAcct.ID)
	require.NoError(t, err)
	assert.True(t, got.Credits.IsZero())

	entries, err := engine.ListEntries(ctx, testUser)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCreateEntry_UnknownCreditAccountAppliesNothing(t *testing.T) {
	// GIVEN only the debit account exists
	engine, _ := newTestEngine(t)
	debitAcct := openAccount(t, engine, "1001", "Assets")
	ctx := context.Background()

	// WHEN the credit side references a nonexistent account
	_, err := engine.CreateEntry(ctx, testUser, draft("1001", "50", "9999", "50", time.Now().Add(-time.Hour)))

	// THEN both lookups ran before any mutation, so the debit account is untouched
	require.Error(t, err)
	var nfErr *ledger.AccountNotFoundError
	require.ErrorAs(t, err, &nfErr)
	assert.Equal(t, ledger.SideCredit, nfErr.Side)

	got, err := engine.GetAccount(ctx, testUser, debitAcct.ID)
	require.NoError(t, err)
	assert.True(t, got.Debits.IsZero())
}

func TestCreateEntry_RejectsFutureDate(t *testing.T) {
	// GIVEN a fixed clock
	fixed := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	mem := store.NewMemory()
	engine := ledger.NewEngine(mem, mem,
		ledger.WithTxStores(mem),
		ledger.WithClock(func() time.Time { return fixed }),
	)
	ctx := context.Background()
	_, err := engine.CreateAccount(ctx, testUser, "1001", "Assets")
	require.NoError(t, err)
	_, err = engine.CreateAccount(ctx, testUser, "2001", "Revenue")
	require.NoError(t, err)

	// WHEN the entry is dated one second past now
	_, err = engine.CreateEntry(ctx, testUser, draft("1001", "50", "2001", "50", fixed.Add(time.Second)))

	// THEN it is rejected as a validation error
	assert.ErrorIs(t, err, ledger.ErrValidation)

	// AND a date exactly at now passes
	_, err = engine.CreateEntry(ctx, testUser, draft("1001", "50", "2001", "50", fixed))
	assert.NoError(t, err)
}

func TestCreateEntry_RequiresBothSidesAndDate(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()
	openAccount(t, engine, "1001", "Assets")
	openAccount(t, engine, "2001", "Revenue")
	valid := time.Now().Add(-time.Hour)

	cases := []struct {
		name  string
		draft ledger.EntryDraft
	}{
		{"missing debit account", draft("", "50", "2001", "50", valid)},
		{"missing credit account", draft("1001", "50", "", "50", valid)},
		{"zero date", draft("1001", "50", "2001", "50", time.Time{})},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := engine.CreateEntry(ctx, testUser, tc.draft)
			assert.ErrorIs(t, err, ledger.ErrValidation)
		})
	}
}

func TestCreateEntry_ConcurrentCreatesLoseNoUpdates(t *testing.T) {
	// GIVEN two accounts and 50 concurrent entries of 1 each
	engine, _ := newTestEngine(t)
	debitAcct := openAccount(t, engine, "1001", "Assets")
	creditAcct := openAccount(t, engine, "2001", "Revenue")
	ctx := context.Background()
	date := time.Now().Add(-time.Hour)

	const n = 50
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.CreateEntry(ctx, testUser, draft("1001", "1", "2001", "1", date))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	// THEN every increment survived
	gotDebit, err := engine.GetAccount(ctx, testUser, debitAcct.ID)
	require.NoError(t, err)
	gotCredit, err := engine.GetAccount(ctx, testUser, creditAcct.ID)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("%d", n), gotDebit.Debits.String())
	assert.Equal(t, fmt.Sprintf("%d", n), gotCredit.Credits.String())

	entries, err := engine.ListEntries(ctx, testUser)
	require.NoError(t, err)
	assert.Len(t, entries, n)
}

func TestCreateEntry_DecimalAmountsStayExact(t *testing.T) {
	// GIVEN accounts and three entries with cent-level amounts
	engine, _ := newTestEngine(t)
	debitAcct := openAccount(t, engine, "1001", "Assets")
	openAccount(t, engine, "2001", "Revenue")
	ctx := context.Background()
	date := time.Now().Add(-time.Hour)

	for _, amt := range []string{"0.10", "0.20", "0.70"} {
		_, err := engine.CreateEntry(ctx, testUser, draft("1001", amt, "2001", amt, date))
		require.NoError(t, err)
	}

	// THEN the total is exactly 1, no float drift
	got, err := engine.GetAccount(ctx, testUser, debitAcct.ID)
	require.NoError(t, err)
	assert.True(t, got.Debits.Equal(decimal.RequireFromString("1")))
}

// =============================================================================
// PARTIAL APPLICATION - non-transactional stores
// =============================================================================

// failingBalances wraps a store and fails AddToBalances for one account.
type failingBalances struct {
	*store.Memory
	failAccountNo string
}

func (f *failingBalances) AddToBalances(ctx context.Context, accountNo string, debitDelta, creditDelta decimal.Decimal) error {
	if accountNo == f.failAccountNo {
		return errors.New("storage unavailable")
	}
	return f.Memory.AddToBalances(ctx, accountNo, debitDelta, creditDelta)
}

func TestCreateEntry_CreditFailureAfterDebitIsPartialApplication(t *testing.T) {
	// GIVEN a non-transactional store whose credit-side write fails
	mem := store.NewMemory()
	failing := &failingBalances{Memory: mem, failAccountNo: "2001"}
	engine := ledger.NewEngine(failing, mem)
	ctx := context.Background()

	debitAcct, err := engine.CreateAccount(ctx, testUser, "1001", "Assets")
	require.NoError(t, err)
	_, err = engine.CreateAccount(ctx, testUser, "2001", "Revenue")
	require.NoError(t, err)

	// WHEN the entry is created
	_, err = engine.CreateEntry(ctx, testUser, draft("1001", "50", "2001", "50", time.Now().Add(-time.Hour)))

	// THEN the failure is reported as a partial application naming both sides
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrPartialApplication)

	var partial *ledger.PartialApplicationError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, ledger.SideDebit, partial.AppliedSide)
	assert.Equal(t, ledger.SideCredit, partial.FailedSide)
	assert.Equal(t, "2001", partial.AccountNo)

	// AND the debit increment stuck while no entry was recorded
	got, err := engine.GetAccount(ctx, testUser, debitAcct.ID)
	require.NoError(t, err)
	assert.Equal(t, "50", got.Debits.String())

	entries, err := engine.ListEntries(ctx, testUser)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCreateEntry_TransactionalStoreRollsBackCreditFailure(t *testing.T) {
	// GIVEN a transactional store whose credit-side write fails inside the tx
	mem := store.NewMemory()
	engine := ledger.NewEngine(mem, mem, ledger.WithTxStores(&failingTx{mem: mem, failAccountNo: "2001"}))
	ctx := context.Background()

	debitAcct, err := engine.CreateAccount(ctx, testUser, "1001", "Assets")
	require.NoError(t, err)
	_, err = engine.CreateAccount(ctx, testUser, "2001", "Revenue")
	require.NoError(t, err)

	// WHEN the entry is created
	_, err = engine.CreateEntry(ctx, testUser, draft("1001", "50", "2001", "50", time.Now().Add(-time.Hour)))
	require.Error(t, err)

	// THEN the debit increment rolled back with the transaction
	got, err := engine.GetAccount(ctx, testUser, debitAcct.ID)
	require.NoError(t, err)
	assert.True(t, got.Debits.IsZero())
}

// failingTx runs the memory transaction but injects a credit-side failure.
type failingTx struct {
	mem           *store.Memory
	failAccountNo string
}

func (f *failingTx) WithTx(ctx context.Context, fn func(ledger.Stores) error) error {
	return f.mem.WithTx(ctx, func(s ledger.Stores) error {
		return fn(ledger.Stores{
			Accounts: &failingTxAccounts{AccountStore: s.Accounts, failAccountNo: f.failAccountNo},
			Entries:  s.Entries,
		})
	})
}

type failingTxAccounts struct {
	ledger.AccountStore
	failAccountNo string
}

func (f *failingTxAccounts) AddToBalances(ctx context.Context, accountNo string, debitDelta, creditDelta decimal.Decimal) error {
	if accountNo == f.failAccountNo {
		return errors.New("storage unavailable")
	}
	return f.AccountStore.AddToBalances(ctx, accountNo, debitDelta, creditDelta)
}

// =============================================================================
// ENTRY CRUD
// =============================================================================

func TestUpdateEntry_ReattributesAndKeepsBalances(t *testing.T) {
	// GIVEN a committed entry created by one user
	engine, _ := newTestEngine(t)
	debitAcct := openAccount(t, engine, "1001", "Assets")
	openAccount(t, engine, "2001", "Revenue")
	ctx := context.Background()

	entry, err := engine.CreateEntry(ctx, testUser, draft("1001", "50", "2001", "50", time.Now().Add(-time.Hour)))
	require.NoError(t, err)

	// WHEN another user changes the debit amount
	editor := ledger.UserID("user-editor")
	newDebit := ledger.EntrySide{AccountNo: "1001", Amount: decimal.RequireFromString("75")}
	updated, err := engine.UpdateEntry(ctx, editor, entry.ID, ledger.EntryUpdate{Debit: &newDebit})
	require.NoError(t, err)

	// THEN the entry re-attributes to the editor
	assert.Equal(t, editor, updated.UserID)
	assert.Equal(t, "75", updated.Debit.Amount.String())

	// AND account totals still reflect the original application
	got, err := engine.GetAccount(ctx, testUser, debitAcct.ID)
	require.NoError(t, err)
	assert.Equal(t, "50", got.Debits.String())
}

func TestDeleteEntry_BalanceEffectsRemain(t *testing.T) {
	// GIVEN a committed entry
	engine, _ := newTestEngine(t)
	debitAcct := openAccount(t, engine, "1001", "Assets")
	creditAcct := openAccount(t, engine, "2001", "Revenue")
	ctx := context.Background()

	entry, err := engine.CreateEntry(ctx, testUser, draft("1001", "50", "2001", "50", time.Now().Add(-time.Hour)))
	require.NoError(t, err)

	// WHEN the entry is deleted
	require.NoError(t, engine.DeleteEntry(ctx, testUser, entry.ID))

	// THEN the entry is gone but the applied totals stay
	_, err = engine.GetEntry(ctx, testUser, entry.ID)
	assert.ErrorIs(t, err, ledger.ErrEntryNotFound)

	gotDebit, err := engine.GetAccount(ctx, testUser, debitAcct.ID)
	require.NoError(t, err)
	gotCredit, err := engine.GetAccount(ctx, testUser, creditAcct.ID)
	require.NoError(t, err)
	assert.Equal(t, "50", gotDebit.Debits.String())
	assert.Equal(t, "50", gotCredit.Credits.String())
}

// =============================================================================
// IDENTITY
// =============================================================================

func TestAllOperationsRejectEmptyUser(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()
	none := ledger.UserID("")

	cases := []struct {
		name string
		call func() error
	}{
		{"create account", func() error { _, err := engine.CreateAccount(ctx, none, "1001", "Assets"); return err }},
		{"list accounts", func() error { _, err := engine.ListAccounts(ctx, none); return err }},
		{"get account", func() error { _, err := engine.GetAccount(ctx, none, "acct-x"); return err }},
		{"update account", func() error { _, err := engine.UpdateAccount(ctx, none, "acct-x", ledger.AccountUpdate{}); return err }},
		{"delete account", func() error { return engine.DeleteAccount(ctx, none, "acct-x") }},
		{"create entry", func() error {
			_, err := engine.CreateEntry(ctx, none, draft("1001", "1", "2001", "1", time.Now()))
			return err
		}},
		{"list entries", func() error { _, err := engine.ListEntries(ctx, none); return err }},
		{"get entry", func() error { _, err := engine.GetEntry(ctx, none, "entry-x"); return err }},
		{"update entry", func() error { _, err := engine.UpdateEntry(ctx, none, "entry-x", ledger.EntryUpdate{}); return err }},
		{"delete entry", func() error { return engine.DeleteEntry(ctx, none, "entry-x") }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, tc.call(), ledger.ErrNoAuthenticatedUser)
		})
	}
}

// =============================================================================
// EVENTS
// =============================================================================

type recordingPublisher struct {
	mu      sync.Mutex
	entries []ledger.Entry
	fail    bool
}

func (p *recordingPublisher) EntryCommitted(_ context.Context, entry ledger.Entry) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("broker down")
	}
	p.entries = append(p.entries, entry)
	return nil
}

func TestCreateEntry_NotifiesPublisherAfterCommit(t *testing.T) {
	// GIVEN an engine with a publisher attached
	mem := store.NewMemory()
	pub := &recordingPublisher{}
	engine := ledger.NewEngine(mem, mem, ledger.WithTxStores(mem), ledger.WithPublisher(pub))
	ctx := context.Background()

	_, err := engine.CreateAccount(ctx, testUser, "1001", "Assets")
	require.NoError(t, err)
	_, err = engine.CreateAccount(ctx, testUser, "2001", "Revenue")
	require.NoError(t, err)

	// WHEN an entry commits
	entry, err := engine.CreateEntry(ctx, testUser, draft("1001", "50", "2001", "50", time.Now().Add(-time.Hour)))
	require.NoError(t, err)

	// THEN exactly one event carries the committed entry
	require.Len(t, pub.entries, 1)
	assert.Equal(t, entry.ID, pub.entries[0].ID)
}

func TestCreateEntry_PublisherFailureDoesNotFailTheOperation(t *testing.T) {
	mem := store.NewMemory()
	engine := ledger.NewEngine(mem, mem, ledger.WithTxStores(mem), ledger.WithPublisher(&recordingPublisher{fail: true}))
	ctx := context.Background()

	_, err := engine.CreateAccount(ctx, testUser, "1001", "Assets")
	require.NoError(t, err)
	_, err = engine.CreateAccount(ctx, testUser, "2001", "Revenue")
	require.NoError(t, err)

	entry, err := engine.CreateEntry(ctx, testUser, draft("1001", "50", "2001", "50", time.Now().Add(-time.Hour)))
	require.NoError(t, err)
	assert.NotNil(t, entry)
}
