// Package store provides an in-memory implementation of the ledger store
// interfaces, for tests and development.
package store

import (
	"context"
	"maps"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/warp/ledger-engine/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements ledger.AccountStore, ledger.EntryStore and
// ledger.TxStores. A single mutex serializes every operation, which also
// makes AddToBalances safe under concurrent entry creation.
type Memory struct {
	mu       sync.Mutex
	accounts map[ledger.AccountID]ledger.Account
	byNo     map[string]ledger.AccountID
	entries  map[ledger.EntryID]ledger.Entry
}

func NewMemory() *Memory {
	return &Memory{
		accounts: make(map[ledger.AccountID]ledger.Account),
		byNo:     make(map[string]ledger.AccountID),
		entries:  make(map[ledger.EntryID]ledger.Entry),
	}
}

// =============================================================================
// ACCOUNT STORE
// =============================================================================

func (m *Memory) InsertAccount(_ context.Context, account ledger.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertAccountLocked(account)
}

func (m *Memory) FindAccountByNo(_ context.Context, accountNo string) (*ledger.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findAccountByNoLocked(accountNo)
}

func (m *Memory) GetAccount(_ context.Context, id ledger.AccountID) (*ledger.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getAccountLocked(id)
}

func (m *Memory) SaveAccount(_ context.Context, account ledger.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveAccountLocked(account)
}

func (m *Memory) DeleteAccount(_ context.Context, id ledger.AccountID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteAccountLocked(id)
}

func (m *Memory) ListAccounts(_ context.Context) ([]ledger.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listAccountsLocked()
}

func (m *Memory) AddToBalances(_ context.Context, accountNo string, debitDelta, creditDelta decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addToBalancesLocked(accountNo, debitDelta, creditDelta)
}

func (m *Memory) insertAccountLocked(account ledger.Account) error {
	if _, taken := m.byNo[account.AccountNo]; taken {
		return ledger.ErrDuplicateAccountNo
	}
	m.accounts[account.ID] = account
	m.byNo[account.AccountNo] = account.ID
	return nil
}

func (m *Memory) findAccountByNoLocked(accountNo string) (*ledger.Account, error) {
	id, ok := m.byNo[accountNo]
	if !ok {
		return nil, ledger.ErrAccountNotFound
	}
	account := m.accounts[id]
	return &account, nil
}

func (m *Memory) getAccountLocked(id ledger.AccountID) (*ledger.Account, error) {
	account, ok := m.accounts[id]
	if !ok {
		return nil, ledger.ErrAccountNotFound
	}
	return &account, nil
}

func (m *Memory) saveAccountLocked(account ledger.Account) error {
	prev, ok := m.accounts[account.ID]
	if !ok {
		return ledger.ErrAccountNotFound
	}
	if prev.AccountNo != account.AccountNo {
		if _, taken := m.byNo[account.AccountNo]; taken {
			return ledger.ErrDuplicateAccountNo
		}
		delete(m.byNo, prev.AccountNo)
		m.byNo[account.AccountNo] = account.ID
	}
	m.accounts[account.ID] = account
	return nil
}

func (m *Memory) deleteAccountLocked(id ledger.AccountID) error {
	if account, ok := m.accounts[id]; ok {
		delete(m.byNo, account.AccountNo)
		delete(m.accounts, id)
	}
	return nil
}

func (m *Memory) listAccountsLocked() ([]ledger.Account, error) {
	result := make([]ledger.Account, 0, len(m.accounts))
	for _, account := range m.accounts {
		result = append(result, account)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].AccountNo < result[j].AccountNo })
	return result, nil
}

func (m *Memory) addToBalancesLocked(accountNo string, debitDelta, creditDelta decimal.Decimal) error {
	id, ok := m.byNo[accountNo]
	if !ok {
		return ledger.ErrAccountNotFound
	}
	account := m.accounts[id]
	account.Debits = account.Debits.Add(debitDelta)
	account.Credits = account.Credits.Add(creditDelta)
	m.accounts[id] = account
	return nil
}

// =============================================================================
// ENTRY STORE
// =============================================================================

func (m *Memory) InsertEntry(_ context.Context, entry ledger.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertEntryLocked(entry)
}

func (m *Memory) GetEntry(_ context.Context, id ledger.EntryID) (*ledger.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getEntryLocked(id)
}

func (m *Memory) SaveEntry(_ context.Context, entry ledger.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveEntryLocked(entry)
}

func (m *Memory) DeleteEntry(_ context.Context, id ledger.EntryID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, id)
	return nil
}

func (m *Memory) ListEntries(_ context.Context) ([]ledger.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listEntriesLocked()
}

func (m *Memory) insertEntryLocked(entry ledger.Entry) error {
	m.entries[entry.ID] = entry
	return nil
}

func (m *Memory) getEntryLocked(id ledger.EntryID) (*ledger.Entry, error) {
	entry, ok := m.entries[id]
	if !ok {
		return nil, ledger.ErrEntryNotFound
	}
	return &entry, nil
}

func (m *Memory) saveEntryLocked(entry ledger.Entry) error {
	if _, ok := m.entries[entry.ID]; !ok {
		return ledger.ErrEntryNotFound
	}
	m.entries[entry.ID] = entry
	return nil
}

func (m *Memory) listEntriesLocked() ([]ledger.Entry, error) {
	result := make([]ledger.Entry, 0, len(m.entries))
	for _, entry := range m.entries {
		result = append(result, entry)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// =============================================================================
// TRANSACTIONAL STORES (ledger.TxStores)
// =============================================================================

// WithTx snapshots the whole state, runs fn against unlocked views, and
// restores the snapshot if fn fails. The mutex is held for the duration,
// so the "transaction" is also fully serialized.
func (m *Memory) WithTx(_ context.Context, fn func(ledger.Stores) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	accounts := maps.Clone(m.accounts)
	byNo := maps.Clone(m.byNo)
	entries := maps.Clone(m.entries)

	view := &txView{m: m}
	if err := fn(ledger.Stores{Accounts: view, Entries: view}); err != nil {
		m.accounts = accounts
		m.byNo = byNo
		m.entries = entries
		return err
	}
	return nil
}

// txView calls the unlocked internals; the parent mutex is already held by
// WithTx.
type txView struct{ m *Memory }

func (t *txView) InsertAccount(_ context.Context, account ledger.Account) error {
	return t.m.insertAccountLocked(account)
}

func (t *txView) FindAccountByNo(_ context.Context, accountNo string) (*ledger.Account, error) {
	return t.m.findAccountByNoLocked(accountNo)
}

func (t *txView) GetAccount(_ context.Context, id ledger.AccountID) (*ledger.Account, error) {
	return t.m.getAccountLocked(id)
}

func (t *txView) SaveAccount(_ context.Context, account ledger.Account) error {
	return t.m.saveAccountLocked(account)
}

func (t *txView) DeleteAccount(_ context.Context, id ledger.AccountID) error {
	return t.m.deleteAccountLocked(id)
}

func (t *txView) ListAccounts(_ context.Context) ([]ledger.Account, error) {
	return t.m.listAccountsLocked()
}

func (t *txView) AddToBalances(_ context.Context, accountNo string, debitDelta, creditDelta decimal.Decimal) error {
	return t.m.addToBalancesLocked(accountNo, debitDelta, creditDelta)
}

func (t *txView) InsertEntry(_ context.Context, entry ledger.Entry) error {
	return t.m.insertEntryLocked(entry)
}

func (t *txView) GetEntry(_ context.Context, id ledger.EntryID) (*ledger.Entry, error) {
	return t.m.getEntryLocked(id)
}

func (t *txView) SaveEntry(_ context.Context, entry ledger.Entry) error {
	return t.m.saveEntryLocked(entry)
}

func (t *txView) DeleteEntry(_ context.Context, id ledger.EntryID) error {
	delete(t.m.entries, id)
	return nil
}

func (t *txView) ListEntries(_ context.Context) ([]ledger.Entry, error) {
	return t.m.listEntriesLocked()
}

var (
	_ ledger.AccountStore = (*Memory)(nil)
	_ ledger.EntryStore   = (*Memory)(nil)
	_ ledger.TxStores     = (*Memory)(nil)
)
