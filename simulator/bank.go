// Package simulator exposes the ledger through a boolean and nullable
// contract: failed operations return false or nil instead of an error.
package simulator

import (
	"context"
	"log/slog"

	ledger "github.com/xraph/bankledger"
	"github.com/xraph/bankledger/store/memory"
)

// Bank is a memory-backed ledger with a flat call surface.
type Bank struct {
	l   *ledger.Ledger
	ctx context.Context
}

// New creates and starts a Bank on a fresh memory store, so OnInit plugins
// passed in opts fire before New returns. Errors are logged at debug level
// by the underlying ledger and otherwise discarded.
func New(opts ...ledger.Option) *Bank {
	opts = append([]ledger.Option{ledger.WithLogger(slog.New(slog.DiscardHandler))}, opts...)
	b := &Bank{
		l:   ledger.New(memory.New(), opts...),
		ctx: context.Background(),
	}
	// The memory store has no schema, so Start cannot fail here.
	_ = b.l.Start(b.ctx)
	return b
}

// Ledger returns the wrapped ledger.
func (b *Bank) Ledger() *ledger.Ledger { return b.l }

// CreateAccount reports whether a new account was created.
func (b *Bank) CreateAccount(timestamp int64, accountID string) bool {
	return b.l.CreateAccount(b.ctx, timestamp, accountID) == nil
}

// Deposit returns the new balance, or nil if the deposit was rejected.
func (b *Bank) Deposit(timestamp int64, accountID string, amount int64) *int64 {
	return nullable(b.l.Deposit(b.ctx, timestamp, accountID, amount))
}

// Pay returns the new balance, or nil if the payment was rejected.
func (b *Bank) Pay(timestamp int64, accountID string, amount int64) *int64 {
	return nullable(b.l.Pay(b.ctx, timestamp, accountID, amount))
}

// TopAccounts returns up to n "id(total)" entries, most active first.
func (b *Bank) TopAccounts(timestamp int64, n int) []string {
	activities, err := b.l.TopAccounts(b.ctx, timestamp, n)
	if err != nil {
		return []string{}
	}

	result := make([]string, 0, len(activities))
	for _, a := range activities {
		result = append(result, a.String())
	}
	return result
}

// Transfer returns the new transfer key, or nil if the transfer was rejected.
func (b *Bank) Transfer(timestamp int64, fromID, toID string, amount int64) *string {
	key, err := b.l.Transfer(b.ctx, timestamp, fromID, toID, amount)
	if err != nil {
		return nil
	}
	return &key
}

// AcceptTransfer reports whether the transfer was accepted. A false result
// may still have expired the transfer and refunded its sender.
func (b *Bank) AcceptTransfer(timestamp int64, accountID, transferID string) bool {
	return b.l.AcceptTransfer(b.ctx, timestamp, accountID, transferID) == nil
}

// RevokeTransfer reports whether the transfer was revoked.
func (b *Bank) RevokeTransfer(timestamp int64, accountID, transferID string) bool {
	return b.l.RevokeTransfer(b.ctx, timestamp, accountID, transferID) == nil
}

func nullable(v int64, err error) *int64 {
	if err != nil {
		return nil
	}
	return &v
}
