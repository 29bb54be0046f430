/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements ledger.AccountStore, ledger.EntryStore and ledger.TxStores
  using SQLite. In production, the same patterns apply to PostgreSQL - only
  minor SQL dialect differences.

KEY TABLES:
  accounts: Account records with running debit/credit totals
  entries:  Double-entry records, referencing accounts by account_no

UNIQUENESS:
  account_no carries a UNIQUE index. Entries join to accounts by this
  business key, so two accounts must never share a number; a duplicate
  insert fails with ledger.ErrDuplicateAccountNo.

BALANCE INCREMENTS:
  Totals are stored as decimal strings (shopspring/decimal has no exact
  SQL representation), so AddToBalances does its read-modify-write inside
  a database transaction while holding the store mutex. The mutex
  serializes all writers, which is what rules out lost updates.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/ledger.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  engine := ledger.NewEngine(store, store, ledger.WithTxStores(store))

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - ledger/store.go: Interface definitions
  - ledger/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/ledger-engine/ledger"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection: SQLite allows a single writer anyway, and pooled
	// connections to ":memory:" would each get their own database.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Accounts (balance-holding entities)
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		account_no TEXT NOT NULL,
		category TEXT NOT NULL,
		debits TEXT NOT NULL DEFAULT '0',
		credits TEXT NOT NULL DEFAULT '0',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- account_no is the join key for entries; it must be unique
	CREATE UNIQUE INDEX IF NOT EXISTS idx_accounts_account_no
		ON accounts(account_no);

	-- Entries (double-entry records)
	CREATE TABLE IF NOT EXISTS entries (
		id TEXT PRIMARY KEY,
		debit_account_no TEXT NOT NULL,
		debit_amount TEXT NOT NULL,
		credit_account_no TEXT NOT NULL,
		credit_amount TEXT NOT NULL,
		entry_date TEXT NOT NULL,
		user_id TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_entries_debit_account
		ON entries(debit_account_no);
	CREATE INDEX IF NOT EXISTS idx_entries_credit_account
		ON entries(credit_account_no);
	CREATE INDEX IF NOT EXISTS idx_entries_user
		ON entries(user_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// ACCOUNT STORE (ledger.AccountStore interface)
// =============================================================================

// InsertAccount persists a new account.
func (s *Store) InsertAccount(ctx context.Context, account ledger.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.insertAccountTx(ctx, s.db, account)
}

func (s *Store) insertAccountTx(ctx context.Context, db dbtx, account ledger.Account) error {
	query := `
		INSERT INTO accounts (id, account_no, category, debits, credits, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.ExecContext(ctx, query,
		account.ID,
		account.AccountNo,
		account.Category,
		account.Debits.String(),
		account.Credits.String(),
		account.CreatedAt.UTC().Format(time.RFC3339),
		account.UpdatedAt.UTC().Format(time.RFC3339),
	)

	if err != nil {
		if isUniqueConstraintError(err) {
			return ledger.ErrDuplicateAccountNo
		}
		return fmt.Errorf("failed to insert account: %w", err)
	}

	return nil
}

// FindAccountByNo looks an account up by its business key.
func (s *Store) FindAccountByNo(ctx context.Context, accountNo string) (*ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.findAccountByNoTx(ctx, s.db, accountNo)
}

func (s *Store) findAccountByNoTx(ctx context.Context, db dbtx, accountNo string) (*ledger.Account, error) {
	row := db.QueryRowContext(ctx,
		`SELECT id, account_no, category, debits, credits, created_at, updated_at
		 FROM accounts WHERE account_no = ?`,
		accountNo,
	)
	return scanAccount(row)
}

// GetAccount looks an account up by internal id.
func (s *Store) GetAccount(ctx context.Context, id ledger.AccountID) (*ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT id, account_no, category, debits, credits, created_at, updated_at
		 FROM accounts WHERE id = ?`,
		id,
	)
	return scanAccount(row)
}

// SaveAccount persists in-place edits of an existing account.
func (s *Store) SaveAccount(ctx context.Context, account ledger.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.saveAccountTx(ctx, s.db, account)
}

func (s *Store) saveAccountTx(ctx context.Context, db dbtx, account ledger.Account) error {
	query := `
		UPDATE accounts
		SET account_no = ?, category = ?, debits = ?, credits = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := db.ExecContext(ctx, query,
		account.AccountNo,
		account.Category,
		account.Debits.String(),
		account.Credits.String(),
		account.UpdatedAt.UTC().Format(time.RFC3339),
		account.ID,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ledger.ErrDuplicateAccountNo
		}
		return fmt.Errorf("failed to save account: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ledger.ErrAccountNotFound
	}
	return nil
}

// DeleteAccount removes an account. Missing ids are not an error, and
// entries referencing the account are left in place.
func (s *Store) DeleteAccount(ctx context.Context, id ledger.AccountID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM accounts WHERE id = ?", id)
	return err
}

// ListAccounts returns all accounts ordered by account number.
func (s *Store) ListAccounts(ctx context.Context) ([]ledger.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.listAccountsTx(ctx, s.db)
}

func (s *Store) listAccountsTx(ctx context.Context, db dbtx) ([]ledger.Account, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, account_no, category, debits, credits, created_at, updated_at
		 FROM accounts ORDER BY account_no`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []ledger.Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, *account)
	}
	return accounts, rows.Err()
}

// AddToBalances increments the running totals of one account. Totals are
// stored as decimal strings, so the read and write happen inside a
// transaction while the store mutex is held.
func (s *Store) AddToBalances(ctx context.Context, accountNo string, debitDelta, creditDelta decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.addToBalancesTx(ctx, tx, accountNo, debitDelta, creditDelta); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) addToBalancesTx(ctx context.Context, db dbtx, accountNo string, debitDelta, creditDelta decimal.Decimal) error {
	account, err := s.findAccountByNoTx(ctx, db, accountNo)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx,
		"UPDATE accounts SET debits = ?, credits = ?, updated_at = ? WHERE id = ?",
		account.Debits.Add(debitDelta).String(),
		account.Credits.Add(creditDelta).String(),
		time.Now().UTC().Format(time.RFC3339),
		account.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update balances: %w", err)
	}
	return nil
}

// =============================================================================
// ENTRY STORE (ledger.EntryStore interface)
// =============================================================================

// InsertEntry persists a new entry.
func (s *Store) InsertEntry(ctx context.Context, entry ledger.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.insertEntryTx(ctx, s.db, entry)
}

func (s *Store) insertEntryTx(ctx context.Context, db dbtx, entry ledger.Entry) error {
	query := `
		INSERT INTO entries
		(id, debit_account_no, debit_amount, credit_account_no, credit_amount, entry_date, user_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.ExecContext(ctx, query,
		entry.ID,
		entry.Debit.AccountNo,
		entry.Debit.Amount.String(),
		entry.Credit.AccountNo,
		entry.Credit.Amount.String(),
		entry.Date.UTC().Format(time.RFC3339),
		entry.UserID,
		entry.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to insert entry: %w", err)
	}
	return nil
}

// GetEntry returns an entry by id.
func (s *Store) GetEntry(ctx context.Context, id ledger.EntryID) (*ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT id, debit_account_no, debit_amount, credit_account_no, credit_amount, entry_date, user_id, created_at
		 FROM entries WHERE id = ?`,
		id,
	)
	return scanEntry(row)
}

// SaveEntry persists in-place edits of an existing entry.
func (s *Store) SaveEntry(ctx context.Context, entry ledger.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.saveEntryTx(ctx, s.db, entry)
}

func (s *Store) saveEntryTx(ctx context.Context, db dbtx, entry ledger.Entry) error {
	query := `
		UPDATE entries
		SET debit_account_no = ?, debit_amount = ?, credit_account_no = ?, credit_amount = ?, entry_date = ?, user_id = ?
		WHERE id = ?
	`

	result, err := db.ExecContext(ctx, query,
		entry.Debit.AccountNo,
		entry.Debit.Amount.String(),
		entry.Credit.AccountNo,
		entry.Credit.Amount.String(),
		entry.Date.UTC().Format(time.RFC3339),
		entry.UserID,
		entry.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to save entry: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ledger.ErrEntryNotFound
	}
	return nil
}

// DeleteEntry removes an entry. Balance effects are not reversed.
func (s *Store) DeleteEntry(ctx context.Context, id ledger.EntryID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM entries WHERE id = ?", id)
	return err
}

// ListEntries returns all entries, oldest first.
func (s *Store) ListEntries(ctx context.Context) ([]ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.listEntriesTx(ctx, s.db)
}

func (s *Store) listEntriesTx(ctx context.Context, db dbtx) ([]ledger.Entry, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, debit_account_no, debit_amount, credit_account_no, credit_amount, entry_date, user_id, created_at
		 FROM entries ORDER BY created_at ASC, id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []ledger.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

// =============================================================================
// TRANSACTIONAL STORES (ledger.TxStores interface)
// =============================================================================

// WithTx executes a function within a database transaction. The store mutex
// is held for the duration, so transactional entry application is also
// serialized against every other writer.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Stores) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	view := &txStore{tx: sqlTx, parent: s}
	if err := fn(ledger.Stores{Accounts: view, Entries: view}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

type txStore struct {
	tx     *sql.Tx
	parent *Store
}

func (ts *txStore) InsertAccount(ctx context.Context, account ledger.Account) error {
	return ts.parent.insertAccountTx(ctx, ts.tx, account)
}

func (ts *txStore) FindAccountByNo(ctx context.Context, accountNo string) (*ledger.Account, error) {
	return ts.parent.findAccountByNoTx(ctx, ts.tx, accountNo)
}

func (ts *txStore) GetAccount(ctx context.Context, id ledger.AccountID) (*ledger.Account, error) {
	row := ts.tx.QueryRowContext(ctx,
		`SELECT id, account_no, category, debits, credits, created_at, updated_at
		 FROM accounts WHERE id = ?`,
		id,
	)
	return scanAccount(row)
}

func (ts *txStore) SaveAccount(ctx context.Context, account ledger.Account) error {
	return ts.parent.saveAccountTx(ctx, ts.tx, account)
}

func (ts *txStore) DeleteAccount(ctx context.Context, id ledger.AccountID) error {
	_, err := ts.tx.ExecContext(ctx, "DELETE FROM accounts WHERE id = ?", id)
	return err
}

func (ts *txStore) ListAccounts(ctx context.Context) ([]ledger.Account, error) {
	return ts.parent.listAccountsTx(ctx, ts.tx)
}

func (ts *txStore) AddToBalances(ctx context.Context, accountNo string, debitDelta, creditDelta decimal.Decimal) error {
	return ts.parent.addToBalancesTx(ctx, ts.tx, accountNo, debitDelta, creditDelta)
}

func (ts *txStore) InsertEntry(ctx context.Context, entry ledger.Entry) error {
	return ts.parent.insertEntryTx(ctx, ts.tx, entry)
}

func (ts *txStore) GetEntry(ctx context.Context, id ledger.EntryID) (*ledger.Entry, error) {
	row := ts.tx.QueryRowContext(ctx,
		`SELECT id, debit_account_no, debit_amount, credit_account_no, credit_amount, entry_date, user_id, created_at
		 FROM entries WHERE id = ?`,
		id,
	)
	return scanEntry(row)
}

func (ts *txStore) SaveEntry(ctx context.Context, entry ledger.Entry) error {
	return ts.parent.saveEntryTx(ctx, ts.tx, entry)
}

func (ts *txStore) DeleteEntry(ctx context.Context, id ledger.EntryID) error {
	_, err := ts.tx.ExecContext(ctx, "DELETE FROM entries WHERE id = ?", id)
	return err
}

func (ts *txStore) ListEntries(ctx context.Context) ([]ledger.Entry, error) {
	return ts.parent.listEntriesTx(ctx, ts.tx)
}

// =============================================================================
// SCANNING HELPERS
// =============================================================================

// scannable is satisfied by *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

func scanAccount(row scannable) (*ledger.Account, error) {
	var (
		account              ledger.Account
		debits, credits      string
		createdAt, updatedAt string
	)

	err := row.Scan(&account.ID, &account.AccountNo, &account.Category,
		&debits, &credits, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ledger.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}

	account.Debits = mustParseDecimal(debits)
	account.Credits = mustParseDecimal(credits)
	account.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	account.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &account, nil
}

func scanEntry(row scannable) (*ledger.Entry, error) {
	var (
		entry                     ledger.Entry
		debitAmount, creditAmount string
		entryDate, createdAt      string
	)

	err := row.Scan(&entry.ID, &entry.Debit.AccountNo, &debitAmount,
		&entry.Credit.AccountNo, &creditAmount, &entryDate, &entry.UserID, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ledger.ErrEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan entry: %w", err)
	}

	entry.Debit.Amount = mustParseDecimal(debitAmount)
	entry.Credit.Amount = mustParseDecimal(creditAmount)
	entry.Date, _ = time.Parse(time.RFC3339, entryDate)
	entry.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &entry, nil
}

func mustParseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}

var (
	_ ledger.AccountStore = (*Store)(nil)
	_ ledger.EntryStore   = (*Store)(nil)
	_ ledger.TxStores     = (*Store)(nil)
)
