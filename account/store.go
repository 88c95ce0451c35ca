package account

import "context"

type Store interface {
	CreateAccount(ctx context.Context, a *Account) error
	GetAccount(ctx context.Context, accountID string) (*Account, error)
	UpdateAccount(ctx context.Context, a *Account) error
	ListAccounts(ctx context.Context) ([]*Account, error)

	AppendTransaction(ctx context.Context, t *Transaction) error
	ListTransactions(ctx context.Context, accountID string) ([]*Transaction, error)
	// ActivityTotals sums transaction amounts per account. Accounts with no
	// transactions may be absent from the result.
	ActivityTotals(ctx context.Context) (map[string]int64, error)
}
