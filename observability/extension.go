// Package observability provides a metrics extension for Ledger that records
// lifecycle event counts via a MetricFactory.
package observability

import (
	"context"
	"errors"

	ledger "github.com/xraph/bankledger"
	"github.com/xraph/bankledger/account"
	"github.com/xraph/bankledger/plugin"
	"github.com/xraph/bankledger/transfer"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin              = (*MetricsExtension)(nil)
	_ plugin.OnInit              = (*MetricsExtension)(nil)
	_ plugin.OnAccountCreated    = (*MetricsExtension)(nil)
	_ plugin.OnFundsDeposited    = (*MetricsExtension)(nil)
	_ plugin.OnPaymentMade       = (*MetricsExtension)(nil)
	_ plugin.OnTransferInitiated = (*MetricsExtension)(nil)
	_ plugin.OnTransferAccepted  = (*MetricsExtension)(nil)
	_ plugin.OnTransferRevoked   = (*MetricsExtension)(nil)
	_ plugin.OnTransferExpired   = (*MetricsExtension)(nil)
	_ plugin.OnOperationRejected = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as a Ledger plugin to automatically track banking metrics.
type MetricsExtension struct {
	factory MetricFactory

	// Account metrics
	AccountsCreated Counter
	Deposits        Counter
	DepositAmount   Histogram
	Payments        Counter
	PaymentAmount   Histogram

	// Transfer metrics
	TransfersInitiated Counter
	TransfersAccepted  Counter
	TransfersRevoked   Counter
	TransfersExpired   Counter
	TransferAmount     Histogram
	EscrowReleased     Counter

	// Rejection metrics
	Rejections        Counter
	InsufficientFunds Counter
	StoreErrors       Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		// Account metrics
		AccountsCreated: factory.Counter("ledger.account.created"),
		Deposits:        factory.Counter("ledger.deposit.count"),
		DepositAmount:   factory.Histogram("ledger.deposit.amount"),
		Payments:        factory.Counter("ledger.payment.count"),
		PaymentAmount:   factory.Histogram("ledger.payment.amount"),

		// Transfer metrics
		TransfersInitiated: factory.Counter("ledger.transfer.initiated"),
		TransfersAccepted:  factory.Counter("ledger.transfer.accepted"),
		TransfersRevoked:   factory.Counter("ledger.transfer.revoked"),
		TransfersExpired:   factory.Counter("ledger.transfer.expired"),
		TransferAmount:     factory.Histogram("ledger.transfer.amount"),
		EscrowReleased:     factory.Counter("ledger.transfer.escrow.released"),

		// Rejection metrics
		Rejections:        factory.Counter("ledger.operation.rejected"),
		InsufficientFunds: factory.Counter("ledger.operation.insufficient_funds"),
		StoreErrors:       factory.Counter("ledger.store.errors"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	return nil
}

// ──────────────────────────────────────────────────
// Account hooks
// ──────────────────────────────────────────────────

// OnAccountCreated implements plugin.OnAccountCreated.
func (m *MetricsExtension) OnAccountCreated(_ context.Context, _ *account.Account) error {
	m.AccountsCreated.Inc()
	return nil
}

// OnFundsDeposited implements plugin.OnFundsDeposited.
func (m *MetricsExtension) OnFundsDeposited(_ context.Context, txn *account.Transaction, _ int64) error {
	m.Deposits.Inc()
	m.DepositAmount.Observe(float64(txn.Amount))
	return nil
}

// OnPaymentMade implements plugin.OnPaymentMade.
func (m *MetricsExtension) OnPaymentMade(_ context.Context, txn *account.Transaction, _ int64) error {
	m.Payments.Inc()
	m.PaymentAmount.Observe(float64(txn.Amount))
	return nil
}

// ──────────────────────────────────────────────────
// Transfer hooks
// ──────────────────────────────────────────────────

// OnTransferInitiated implements plugin.OnTransferInitiated.
func (m *MetricsExtension) OnTransferInitiated(_ context.Context, t *transfer.Transfer) error {
	m.TransfersInitiated.Inc()
	m.TransferAmount.Observe(float64(t.Amount))
	return nil
}

// OnTransferAccepted implements plugin.OnTransferAccepted.
func (m *MetricsExtension) OnTransferAccepted(_ context.Context, t *transfer.Transfer) error {
	m.TransfersAccepted.Inc()
	m.EscrowReleased.Add(float64(t.Amount))
	return nil
}

// OnTransferRevoked implements plugin.OnTransferRevoked.
func (m *MetricsExtension) OnTransferRevoked(_ context.Context, t *transfer.Transfer) error {
	m.TransfersRevoked.Inc()
	m.EscrowReleased.Add(float64(t.Amount))
	return nil
}

// OnTransferExpired implements plugin.OnTransferExpired.
func (m *MetricsExtension) OnTransferExpired(_ context.Context, t *transfer.Transfer) error {
	m.TransfersExpired.Inc()
	m.EscrowReleased.Add(float64(t.Amount))
	return nil
}

// ──────────────────────────────────────────────────
// Rejections
// ──────────────────────────────────────────────────

// OnOperationRejected implements plugin.OnOperationRejected.
func (m *MetricsExtension) OnOperationRejected(_ context.Context, _ string, err error) error {
	switch {
	case !ledger.IsRejection(err):
		m.StoreErrors.Inc()
	case errors.Is(err, ledger.ErrInsufficientFunds):
		m.InsufficientFunds.Inc()
		m.Rejections.Inc()
	default:
		m.Rejections.Inc()
	}
	return nil
}
