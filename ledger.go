package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/xraph/bankledger/account"
	"github.com/xraph/bankledger/id"
	"github.com/xraph/bankledger/plugin"
	"github.com/xraph/bankledger/store"
	"github.com/xraph/bankledger/transfer"
)

// Operation names reported to OnOperationRejected hooks.
const (
	OpCreateAccount  = "create_account"
	OpDeposit        = "deposit"
	OpPay            = "pay"
	OpTopAccounts    = "top_accounts"
	OpTransfer       = "transfer"
	OpAcceptTransfer = "accept_transfer"
	OpRevokeTransfer = "revoke_transfer"
)

// Ledger is the banking engine. It owns every balance, transaction record
// and transfer through its store, and serialises all operations.
type Ledger struct {
	mu      sync.Mutex
	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger

	transferWindow int64
	skipMigrate    bool
}

// New creates a new Ledger instance.
func New(s store.Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:          s,
		plugins:        plugin.NewRegistry(),
		logger:         slog.Default(),
		transferWindow: transfer.Day,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Option configures a Ledger instance.
type Option func(*Ledger)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
		l.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(l *Ledger) {
		_ = l.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithPluginTimeout bounds every plugin call.
func WithPluginTimeout(d time.Duration) Option {
	return func(l *Ledger) {
		l.plugins.WithTimeout(d)
	}
}

// WithTransferWindow sets how long, in logical milliseconds, a transfer
// stays acceptable after it is initiated.
func WithTransferWindow(window int64) Option {
	return func(l *Ledger) {
		if window > 0 {
			l.transferWindow = window
		}
	}
}

// WithoutMigrate makes Start skip store migration, for schemas managed
// outside the process.
func WithoutMigrate() Option {
	return func(l *Ledger) { l.skipMigrate = true }
}

// Plugins returns the plugin registry.
func (l *Ledger) Plugins() *plugin.Registry { return l.plugins }

// Start migrates the store and initialises plugins.
func (l *Ledger) Start(ctx context.Context) error {
	if !l.skipMigrate {
		if err := l.store.Migrate(ctx); err != nil {
			return fmt.Errorf("%w: %w", ErrMigrationFailed, err)
		}
	}

	l.plugins.EmitInit(ctx, l)

	l.logger.Info("ledger started",
		"plugins", l.plugins.Count(),
		"transfer_window", l.transferWindow,
	)
	return nil
}

// Stop shuts down plugins and closes the store.
func (l *Ledger) Stop() error {
	ctx := context.Background()
	l.plugins.EmitShutdown(ctx)

	return l.store.Close()
}

// ──────────────────────────────────────────────────
// Accounts
// ──────────────────────────────────────────────────

// CreateAccount opens a zero-balance account. It fails with
// ErrAccountExists if accountID is taken; the existing account is left
// untouched.
func (l *Ledger) CreateAccount(ctx context.Context, timestamp int64, accountID string) error {
	if accountID == "" {
		return l.reject(ctx, OpCreateAccount, ValidationError{Field: "account_id", Message: "must not be empty"})
	}

	a := &account.Account{ID: accountID, CreatedAt: timestamp}

	l.mu.Lock()
	err := l.store.CreateAccount(ctx, a)
	l.mu.Unlock()

	if err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			err = ErrAccountExists
		}
		return l.reject(ctx, OpCreateAccount, err)
	}

	l.logger.Debug("account created", "account_id", accountID, "timestamp", timestamp)
	l.plugins.EmitAccountCreated(ctx, a.Clone())
	return nil
}

// GetAccount returns a snapshot of an account.
func (l *Ledger) GetAccount(ctx context.Context, accountID string) (*account.Account, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.store.GetAccount(ctx, accountID)
}

// History returns an account's transaction records in the order they
// were appended.
func (l *Ledger) History(ctx context.Context, accountID string) ([]*account.Transaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.store.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	return l.store.ListTransactions(ctx, accountID)
}

// Deposit adds amount to an account and returns the new balance. A zero
// deposit is accepted and still recorded.
func (l *Ledger) Deposit(ctx context.Context, timestamp int64, accountID string, amount int64) (int64, error) {
	if amount < 0 {
		return 0, l.reject(ctx, OpDeposit, ErrInvalidAmount)
	}

	var (
		balance int64
		txn     *account.Transaction
	)

	l.mu.Lock()
	err := l.store.RunInTx(ctx, func(ctx context.Context) error {
		a, err := l.store.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}

		if err := credit(a, amount); err != nil {
			return err
		}
		if err := l.store.UpdateAccount(ctx, a); err != nil {
			return err
		}

		txn = account.NewTransaction(accountID, timestamp, amount, account.ActionDeposit)
		balance = a.Balance
		return l.store.AppendTransaction(ctx, txn)
	})
	l.mu.Unlock()

	if err != nil {
		return 0, l.reject(ctx, OpDeposit, err)
	}

	l.plugins.EmitFundsDeposited(ctx, txn, balance)
	return balance, nil
}

// Pay withdraws amount from an account and returns the new balance.
// Paying out the whole balance is allowed.
func (l *Ledger) Pay(ctx context.Context, timestamp int64, accountID string, amount int64) (int64, error) {
	if amount < 0 {
		return 0, l.reject(ctx, OpPay, ErrInvalidAmount)
	}

	var (
		balance int64
		txn     *account.Transaction
	)

	l.mu.Lock()
	err := l.store.RunInTx(ctx, func(ctx context.Context) error {
		a, err := l.store.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}
		if a.Balance < amount {
			return ErrInsufficientFunds
		}

		a.Balance -= amount
		if err := l.store.UpdateAccount(ctx, a); err != nil {
			return err
		}

		txn = account.NewTransaction(accountID, timestamp, amount, account.ActionPayment)
		balance = a.Balance
		return l.store.AppendTransaction(ctx, txn)
	})
	l.mu.Unlock()

	if err != nil {
		return 0, l.reject(ctx, OpPay, err)
	}

	l.plugins.EmitPaymentMade(ctx, txn, balance)
	return balance, nil
}

// TopAccounts ranks accounts by lifetime transaction volume, highest
// first with ties broken by account id, and returns at most n of them.
func (l *Ledger) TopAccounts(ctx context.Context, timestamp int64, n int) ([]account.Activity, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	accounts, err := l.store.ListAccounts(ctx)
	if err != nil {
		return nil, l.reject(ctx, OpTopAccounts, err)
	}
	totals, err := l.store.ActivityTotals(ctx)
	if err != nil {
		return nil, l.reject(ctx, OpTopAccounts, err)
	}

	activities := make([]account.Activity, 0, len(accounts))
	for _, a := range accounts {
		activities = append(activities, account.Activity{AccountID: a.ID, Total: totals[a.ID]})
	}

	l.logger.Debug("ranked accounts", "timestamp", timestamp, "accounts", len(accounts), "n", n)
	return account.Rank(activities, n), nil
}

// ──────────────────────────────────────────────────
// Transfers
// ──────────────────────────────────────────────────

// Transfer escrows amount from fromID for toID and returns the transfer
// key, which is scoped to the recipient. The sender is debited at once.
func (l *Ledger) Transfer(ctx context.Context, timestamp int64, fromID, toID string, amount int64) (string, error) {
	if amount <= 0 {
		return "", l.reject(ctx, OpTransfer, ErrInvalidAmount)
	}

	var t *transfer.Transfer

	l.mu.Lock()
	err := l.store.RunInTx(ctx, func(ctx context.Context) error {
		sender, err := l.store.GetAccount(ctx, fromID)
		if err != nil {
			return err
		}
		recipient := sender
		if toID != fromID {
			if recipient, err = l.store.GetAccount(ctx, toID); err != nil {
				return err
			}
		}
		if sender.Balance < amount {
			return ErrInsufficientFunds
		}

		t = &transfer.Transfer{
			ID:        id.NewTransferID(),
			Key:       transfer.Key(recipient.TransfersReceived),
			From:      fromID,
			To:        toID,
			Amount:    amount,
			CreatedAt: timestamp,
			ExpiresAt: timestamp + l.transferWindow,
			Status:    transfer.StatusPending,
		}

		recipient.TransfersReceived++
		sender.Balance -= amount

		if err := l.store.UpdateAccount(ctx, sender); err != nil {
			return err
		}
		if recipient != sender {
			if err := l.store.UpdateAccount(ctx, recipient); err != nil {
				return err
			}
		}
		if err := l.store.CreateTransfer(ctx, t); err != nil {
			return err
		}
		return l.store.PutStub(ctx, transfer.StubOf(t))
	})
	l.mu.Unlock()

	if err != nil {
		return "", l.reject(ctx, OpTransfer, err)
	}

	l.logger.Debug("transfer initiated",
		"key", t.Key,
		"from", fromID,
		"to", toID,
		"amount", amount,
		"expires_at", t.ExpiresAt,
	)
	l.plugins.EmitTransferInitiated(ctx, t.Clone())
	return t.Key, nil
}

// AcceptTransfer settles a pending transfer addressed to accountID. If
// timestamp is past the transfer's expiry the transfer is expired, the
// sender refunded, and ErrTransferExpired returned; that state change is
// kept even though the call fails.
func (l *Ledger) AcceptTransfer(ctx context.Context, timestamp int64, accountID, key string) error {
	var (
		t       *transfer.Transfer
		expired bool
	)

	l.mu.Lock()
	err := l.store.RunInTx(ctx, func(ctx context.Context) error {
		recipient, err := l.store.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}
		if t, err = l.store.GetTransfer(ctx, accountID, key); err != nil {
			return err
		}
		if t.To != accountID {
			return ErrNotRecipient
		}
		if !t.Pending() {
			return ErrTransferNotPending
		}

		sender := recipient
		if t.From != accountID {
			if sender, err = l.store.GetAccount(ctx, t.From); err != nil {
				return err
			}
		}

		if t.PastExpiry(timestamp) {
			expired = true
			if err := t.Resolve(transfer.StatusExpired, timestamp); err != nil {
				return err
			}
			if err := credit(sender, t.Amount); err != nil {
				return err
			}
			if err := l.store.UpdateAccount(ctx, sender); err != nil {
				return err
			}
			return l.store.UpdateTransfer(ctx, t)
		}

		if err := t.Resolve(transfer.StatusAccepted, timestamp); err != nil {
			return err
		}
		if err := credit(recipient, t.Amount); err != nil {
			return err
		}
		if err := l.store.UpdateAccount(ctx, recipient); err != nil {
			return err
		}
		if err := l.store.UpdateTransfer(ctx, t); err != nil {
			return err
		}

		for _, owner := range []string{t.To, t.From} {
			txn := account.NewTransaction(owner, timestamp, t.Amount, account.ActionTransfer)
			txn.TransferKey = t.Key
			if err := l.store.AppendTransaction(ctx, txn); err != nil {
				return err
			}
		}
		return nil
	})
	l.mu.Unlock()

	if err != nil {
		return l.reject(ctx, OpAcceptTransfer, err)
	}

	if expired {
		l.logger.Info("transfer expired on accept",
			"key", t.Key,
			"from", t.From,
			"to", t.To,
			"refund", t.Amount,
			"timestamp", timestamp,
		)
		l.plugins.EmitTransferExpired(ctx, t.Clone())
		return l.reject(ctx, OpAcceptTransfer, ErrTransferExpired)
	}

	l.plugins.EmitTransferAccepted(ctx, t.Clone())
	return nil
}

// RevokeTransfer cancels a pending transfer sent by senderID and refunds
// the escrow. Revoking after the expiry instant fails without changing
// the transfer; only AcceptTransfer marks transfers expired.
func (l *Ledger) RevokeTransfer(ctx context.Context, timestamp int64, senderID, key string) error {
	var t *transfer.Transfer

	l.mu.Lock()
	err := l.store.RunInTx(ctx, func(ctx context.Context) error {
		sender, err := l.store.GetAccount(ctx, senderID)
		if err != nil {
			return err
		}
		stub, err := l.store.GetStub(ctx, senderID, key)
		if err != nil {
			return err
		}
		if t, err = l.store.GetTransfer(ctx, stub.Recipient, key); err != nil {
			return err
		}
		if t.From != senderID {
			return ErrNotSender
		}
		if !t.Pending() {
			return ErrTransferNotPending
		}
		if !t.Revocable(timestamp) {
			return ErrTransferExpired
		}

		if err := t.Resolve(transfer.StatusRevoked, timestamp); err != nil {
			return err
		}
		if err := credit(sender, t.Amount); err != nil {
			return err
		}
		if err := l.store.UpdateAccount(ctx, sender); err != nil {
			return err
		}
		return l.store.UpdateTransfer(ctx, t)
	})
	l.mu.Unlock()

	if err != nil {
		return l.reject(ctx, OpRevokeTransfer, err)
	}

	l.plugins.EmitTransferRevoked(ctx, t.Clone())
	return nil
}

// GetTransfer returns the transfer stored under recipient with key. It
// does not evaluate expiry.
func (l *Ledger) GetTransfer(ctx context.Context, recipient, key string) (*transfer.Transfer, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.store.GetTransfer(ctx, recipient, key)
}

// ListTransfers returns the transfers matching opts.
func (l *Ledger) ListTransfers(ctx context.Context, opts transfer.ListOpts) ([]*transfer.Transfer, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.store.ListTransfers(ctx, opts)
}

// ──────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────

// reject reports a failed operation to plugins and returns err.
// Infrastructure failures are logged at error level.
func (l *Ledger) reject(ctx context.Context, op string, err error) error {
	if IsRejection(err) {
		l.logger.Debug("operation rejected", "op", op, "error", err)
	} else {
		l.logger.Error("operation failed", "op", op, "error", err)
	}
	l.plugins.EmitOperationRejected(ctx, op, err)
	return err
}

// credit adds amount to a's balance, refusing any credit that would push the
// balance past math.MaxInt64.
func credit(a *account.Account, amount int64) error {
	if amount > math.MaxInt64-a.Balance {
		return fmt.Errorf("%w: account %s", ErrBalanceOverflow, a.ID)
	}
	a.Balance += amount
	return nil
}
