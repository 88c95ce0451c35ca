package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/bankledger/account"
	"github.com/xraph/bankledger/transfer"
)

// DefaultTimeout bounds every plugin call.
const DefaultTimeout = 5 * time.Second

// Registry manages all registered plugins and dispatches events to the
// ones implementing each hook. Implementers are cached by interface at
// registration time.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	onInit              []OnInit
	onShutdown          []OnShutdown
	onAccountCreated    []OnAccountCreated
	onFundsDeposited    []OnFundsDeposited
	onPaymentMade       []OnPaymentMade
	onTransferInitiated []OnTransferInitiated
	onTransferAccepted  []OnTransferAccepted
	onTransferRevoked   []OnTransferRevoked
	onTransferExpired   []OnTransferExpired
	onRejected          []OnOperationRejected
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-call plugin timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnAccountCreated); ok {
		r.onAccountCreated = append(r.onAccountCreated, v)
	}
	if v, ok := p.(OnFundsDeposited); ok {
		r.onFundsDeposited = append(r.onFundsDeposited, v)
	}
	if v, ok := p.(OnPaymentMade); ok {
		r.onPaymentMade = append(r.onPaymentMade, v)
	}
	if v, ok := p.(OnTransferInitiated); ok {
		r.onTransferInitiated = append(r.onTransferInitiated, v)
	}
	if v, ok := p.(OnTransferAccepted); ok {
		r.onTransferAccepted = append(r.onTransferAccepted, v)
	}
	if v, ok := p.(OnTransferRevoked); ok {
		r.onTransferRevoked = append(r.onTransferRevoked, v)
	}
	if v, ok := p.(OnTransferExpired); ok {
		r.onTransferExpired = append(r.onTransferExpired, v)
	}
	if v, ok := p.(OnOperationRejected); ok {
		r.onRejected = append(r.onRejected, v)
	}

	r.logger.Debug("plugin registered", "plugin", p.Name())
	return nil
}

// Get returns a plugin by name, or nil.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// emit calls fn for each hook implementer, logging failures under hook.
func emit[T Plugin](r *Registry, ctx context.Context, hook string, hooks func(*Registry) []T, fn func(T) error) {
	r.mu.RLock()
	plugins := hooks(r)
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error { return fn(p) }); err != nil {
			r.logger.Warn("plugin "+hook+" failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, ledger interface{}) {
	emit(r, ctx, "OnInit", func(r *Registry) []OnInit { return r.onInit },
		func(p OnInit) error { return p.OnInit(ctx, ledger) })
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	emit(r, ctx, "OnShutdown", func(r *Registry) []OnShutdown { return r.onShutdown },
		func(p OnShutdown) error { return p.OnShutdown(ctx) })
}

// EmitAccountCreated emits an account created event.
func (r *Registry) EmitAccountCreated(ctx context.Context, a *account.Account) {
	emit(r, ctx, "OnAccountCreated", func(r *Registry) []OnAccountCreated { return r.onAccountCreated },
		func(p OnAccountCreated) error { return p.OnAccountCreated(ctx, a) })
}

// EmitFundsDeposited emits a deposit event.
func (r *Registry) EmitFundsDeposited(ctx context.Context, txn *account.Transaction, balance int64) {
	emit(r, ctx, "OnFundsDeposited", func(r *Registry) []OnFundsDeposited { return r.onFundsDeposited },
		func(p OnFundsDeposited) error { return p.OnFundsDeposited(ctx, txn, balance) })
}

// EmitPaymentMade emits a payment event.
func (r *Registry) EmitPaymentMade(ctx context.Context, txn *account.Transaction, balance int64) {
	emit(r, ctx, "OnPaymentMade", func(r *Registry) []OnPaymentMade { return r.onPaymentMade },
		func(p OnPaymentMade) error { return p.OnPaymentMade(ctx, txn, balance) })
}

// EmitTransferInitiated emits a transfer initiated event.
func (r *Registry) EmitTransferInitiated(ctx context.Context, t *transfer.Transfer) {
	emit(r, ctx, "OnTransferInitiated", func(r *Registry) []OnTransferInitiated { return r.onTransferInitiated },
		func(p OnTransferInitiated) error { return p.OnTransferInitiated(ctx, t) })
}

// EmitTransferAccepted emits a transfer accepted event.
func (r *Registry) EmitTransferAccepted(ctx context.Context, t *transfer.Transfer) {
	emit(r, ctx, "OnTransferAccepted", func(r *Registry) []OnTransferAccepted { return r.onTransferAccepted },
		func(p OnTransferAccepted) error { return p.OnTransferAccepted(ctx, t) })
}

// EmitTransferRevoked emits a transfer revoked event.
func (r *Registry) EmitTransferRevoked(ctx context.Context, t *transfer.Transfer) {
	emit(r, ctx, "OnTransferRevoked", func(r *Registry) []OnTransferRevoked { return r.onTransferRevoked },
		func(p OnTransferRevoked) error { return p.OnTransferRevoked(ctx, t) })
}

// EmitTransferExpired emits a transfer expired event.
func (r *Registry) EmitTransferExpired(ctx context.Context, t *transfer.Transfer) {
	emit(r, ctx, "OnTransferExpired", func(r *Registry) []OnTransferExpired { return r.onTransferExpired },
		func(p OnTransferExpired) error { return p.OnTransferExpired(ctx, t) })
}

// EmitOperationRejected emits a rejection event.
func (r *Registry) EmitOperationRejected(ctx context.Context, op string, err error) {
	emit(r, ctx, "OnOperationRejected", func(r *Registry) []OnOperationRejected { return r.onRejected },
		func(p OnOperationRejected) error { return p.OnOperationRejected(ctx, op, err) })
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the ledger.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
