// Package memory implements store.Store with in-process maps. Records are
// cloned on the way in and out so callers never share state with the store.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"

	ledger "github.com/xraph/bankledger"
	"github.com/xraph/bankledger/account"
	"github.com/xraph/bankledger/store"
	"github.com/xraph/bankledger/transfer"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	mu sync.RWMutex

	// Account storage, keyed by account id
	accounts     map[string]*account.Account
	accountOrder []string

	// Transaction records, per account in append order
	transactions map[string][]*account.Transaction

	// Transfer storage, keyed by recipient and key
	transfers     map[string]*transfer.Transfer
	transferOrder []string

	// Sender-side stubs, keyed by sender and key
	stubs map[string]*transfer.Stub

	closed bool
}

func New() *Store {
	return &Store{
		accounts:     make(map[string]*account.Account),
		transactions: make(map[string][]*account.Transaction),
		transfers:    make(map[string]*transfer.Transfer),
		stubs:        make(map[string]*transfer.Stub),
	}
}

func scopedKey(owner, key string) string {
	return owner + "\x00" + key
}

// ──────────────────────────────────────────────────
// Account Store implementation
// ──────────────────────────────────────────────────

func (s *Store) CreateAccount(_ context.Context, a *account.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ledger.ErrStoreClosed
	}
	if _, exists := s.accounts[a.ID]; exists {
		return ledger.ErrAccountExists
	}
	s.accounts[a.ID] = a.Clone()
	s.accountOrder = append(s.accountOrder, a.ID)
	return nil
}

func (s *Store) GetAccount(_ context.Context, accountID string) (*account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ledger.ErrStoreClosed
	}
	if a, ok := s.accounts[accountID]; ok {
		return a.Clone(), nil
	}
	return nil, ledger.ErrAccountNotFound
}

func (s *Store) UpdateAccount(_ context.Context, a *account.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ledger.ErrStoreClosed
	}
	if _, exists := s.accounts[a.ID]; !exists {
		return ledger.ErrAccountNotFound
	}
	s.accounts[a.ID] = a.Clone()
	return nil
}

func (s *Store) ListAccounts(_ context.Context) ([]*account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ledger.ErrStoreClosed
	}
	result := make([]*account.Account, 0, len(s.accountOrder))
	for _, accountID := range s.accountOrder {
		result = append(result, s.accounts[accountID].Clone())
	}
	return result, nil
}

func (s *Store) AppendTransaction(_ context.Context, t *account.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ledger.ErrStoreClosed
	}
	if _, exists := s.accounts[t.AccountID]; !exists {
		return ledger.ErrAccountNotFound
	}
	c := *t
	s.transactions[t.AccountID] = append(s.transactions[t.AccountID], &c)
	return nil
}

func (s *Store) ListTransactions(_ context.Context, accountID string) ([]*account.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ledger.ErrStoreClosed
	}
	records := s.transactions[accountID]
	result := make([]*account.Transaction, 0, len(records))
	for _, t := range records {
		c := *t
		result = append(result, &c)
	}
	return result, nil
}

func (s *Store) ActivityTotals(_ context.Context) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ledger.ErrStoreClosed
	}
	totals := make(map[string]int64, len(s.transactions))
	for accountID, records := range s.transactions {
		for _, t := range records {
			totals[accountID] = account.AddActivity(totals[accountID], t.Amount)
		}
	}
	return totals, nil
}

// ──────────────────────────────────────────────────
// Transfer Store implementation
// ──────────────────────────────────────────────────

func (s *Store) CreateTransfer(_ context.Context, t *transfer.Transfer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ledger.ErrStoreClosed
	}
	k := scopedKey(t.To, t.Key)
	if _, exists := s.transfers[k]; exists {
		return ledger.ErrAlreadyExists
	}
	s.transfers[k] = t.Clone()
	s.transferOrder = append(s.transferOrder, k)
	return nil
}

func (s *Store) GetTransfer(_ context.Context, recipient, key string) (*transfer.Transfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ledger.ErrStoreClosed
	}
	if t, ok := s.transfers[scopedKey(recipient, key)]; ok {
		return t.Clone(), nil
	}
	return nil, ledger.ErrTransferNotFound
}

func (s *Store) UpdateTransfer(_ context.Context, t *transfer.Transfer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ledger.ErrStoreClosed
	}
	k := scopedKey(t.To, t.Key)
	if _, exists := s.transfers[k]; !exists {
		return ledger.ErrTransferNotFound
	}
	s.transfers[k] = t.Clone()
	return nil
}

func (s *Store) ListTransfers(_ context.Context, opts transfer.ListOpts) ([]*transfer.Transfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ledger.ErrStoreClosed
	}
	result := make([]*transfer.Transfer, 0)
	for _, k := range s.transferOrder {
		if t := s.transfers[k]; opts.Match(t) {
			result = append(result, t.Clone())
		}
	}
	return result, nil
}

func (s *Store) PutStub(_ context.Context, st *transfer.Stub) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ledger.ErrStoreClosed
	}
	c := *st
	s.stubs[scopedKey(st.Sender, st.Key)] = &c
	return nil
}

func (s *Store) GetStub(_ context.Context, sender, key string) (*transfer.Stub, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ledger.ErrStoreClosed
	}
	if st, ok := s.stubs[scopedKey(sender, key)]; ok {
		c := *st
		return &c, nil
	}
	return nil, ledger.ErrTransferNotFound
}

// ──────────────────────────────────────────────────
// Transactions and lifecycle
// ──────────────────────────────────────────────────

// snapshot is a copy of the store's state taken before a transaction.
// Records are replaced rather than mutated, so copying the containers is
// enough.
type snapshot struct {
	accounts      map[string]*account.Account
	accountOrder  []string
	transactions  map[string][]*account.Transaction
	transfers     map[string]*transfer.Transfer
	transferOrder []string
	stubs         map[string]*transfer.Stub
}

// RunInTx runs fn and restores the pre-call state if it fails. Concurrent
// writers outside fn are not isolated; the ledger serialises its own
// operations.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.RLock()
	snap := snapshot{
		accounts:      maps.Clone(s.accounts),
		accountOrder:  slices.Clone(s.accountOrder),
		transactions:  make(map[string][]*account.Transaction, len(s.transactions)),
		transfers:     maps.Clone(s.transfers),
		transferOrder: slices.Clone(s.transferOrder),
		stubs:         maps.Clone(s.stubs),
	}
	for k, v := range s.transactions {
		snap.transactions[k] = slices.Clone(v)
	}
	s.mu.RUnlock()

	if err := fn(ctx); err != nil {
		s.mu.Lock()
		s.accounts = snap.accounts
		s.accountOrder = snap.accountOrder
		s.transactions = snap.transactions
		s.transfers = snap.transfers
		s.transferOrder = snap.transferOrder
		s.stubs = snap.stubs
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Store) Migrate(_ context.Context) error { return nil }

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ledger.ErrStoreClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}
