package store

import (
	"context"

	"github.com/xraph/bankledger/account"
	"github.com/xraph/bankledger/transfer"
)

// Store is the unified storage interface for all ledger records.
// Instead of embedding account.Store and transfer.Store, all methods are
// declared explicitly so the contract reads in one place.
type Store interface {
	// Account methods
	CreateAccount(ctx context.Context, a *account.Account) error
	GetAccount(ctx context.Context, accountID string) (*account.Account, error)
	UpdateAccount(ctx context.Context, a *account.Account) error
	ListAccounts(ctx context.Context) ([]*account.Account, error)

	// Transaction record methods
	AppendTransaction(ctx context.Context, t *account.Transaction) error
	ListTransactions(ctx context.Context, accountID string) ([]*account.Transaction, error)
	ActivityTotals(ctx context.Context) (map[string]int64, error)

	// Transfer methods
	CreateTransfer(ctx context.Context, t *transfer.Transfer) error
	GetTransfer(ctx context.Context, recipient, key string) (*transfer.Transfer, error)
	UpdateTransfer(ctx context.Context, t *transfer.Transfer) error
	ListTransfers(ctx context.Context, opts transfer.ListOpts) ([]*transfer.Transfer, error)
	PutStub(ctx context.Context, s *transfer.Stub) error
	GetStub(ctx context.Context, sender, key string) (*transfer.Stub, error)

	// RunInTx runs fn so that every write it performs through the ctx it
	// receives commits or fails together.
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

var (
	_ account.Store  = Store(nil)
	_ transfer.Store = Store(nil)
)
