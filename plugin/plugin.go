// Package plugin provides an extensible plugin system for the ledger.
// Plugins hook into lifecycle events; the ledger never waits on them for
// correctness and ignores their errors beyond logging.
package plugin

import (
	"context"

	"github.com/xraph/bankledger/account"
	"github.com/xraph/bankledger/transfer"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the ledger starts.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, l interface{}) error
}

// OnShutdown is called when the ledger stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Account hooks
// ──────────────────────────────────────────────────

// OnAccountCreated is called after an account is created.
type OnAccountCreated interface {
	Plugin
	OnAccountCreated(ctx context.Context, a *account.Account) error
}

// OnFundsDeposited is called after a deposit is recorded.
type OnFundsDeposited interface {
	Plugin
	OnFundsDeposited(ctx context.Context, txn *account.Transaction, balance int64) error
}

// OnPaymentMade is called after a payment is recorded.
type OnPaymentMade interface {
	Plugin
	OnPaymentMade(ctx context.Context, txn *account.Transaction, balance int64) error
}

// ──────────────────────────────────────────────────
// Transfer lifecycle hooks
// ──────────────────────────────────────────────────

// OnTransferInitiated is called after funds are escrowed for a transfer.
type OnTransferInitiated interface {
	Plugin
	OnTransferInitiated(ctx context.Context, t *transfer.Transfer) error
}

// OnTransferAccepted is called after a recipient accepts a transfer.
type OnTransferAccepted interface {
	Plugin
	OnTransferAccepted(ctx context.Context, t *transfer.Transfer) error
}

// OnTransferRevoked is called after a sender revokes a transfer.
type OnTransferRevoked interface {
	Plugin
	OnTransferRevoked(ctx context.Context, t *transfer.Transfer) error
}

// OnTransferExpired is called after an accept attempt finds a transfer
// past its expiry and refunds the sender.
type OnTransferExpired interface {
	Plugin
	OnTransferExpired(ctx context.Context, t *transfer.Transfer) error
}

// ──────────────────────────────────────────────────
// Rejections
// ──────────────────────────────────────────────────

// OnOperationRejected is called when an operation fails. op is the
// operation name, e.g. "deposit" or "accept_transfer".
type OnOperationRejected interface {
	Plugin
	OnOperationRejected(ctx context.Context, op string, err error) error
}
