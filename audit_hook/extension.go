// Package audithook bridges Ledger lifecycle events to an audit trail backend.
//
// It defines a local Recorder interface so the package carries no backend
// dependency. Callers inject a Recorder, a RecorderFunc adapter, or the
// slog-backed LogRecorder at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/bankledger/account"
	"github.com/xraph/bankledger/id"
	"github.com/xraph/bankledger/plugin"
	"github.com/xraph/bankledger/transfer"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin              = (*Extension)(nil)
	_ plugin.OnAccountCreated    = (*Extension)(nil)
	_ plugin.OnFundsDeposited    = (*Extension)(nil)
	_ plugin.OnPaymentMade       = (*Extension)(nil)
	_ plugin.OnTransferInitiated = (*Extension)(nil)
	_ plugin.OnTransferAccepted  = (*Extension)(nil)
	_ plugin.OnTransferRevoked   = (*Extension)(nil)
	_ plugin.OnTransferExpired   = (*Extension)(nil)
	_ plugin.OnOperationRejected = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a single audit trail entry.
type AuditEvent struct {
	ID         id.EventID     `json:"id"`
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Timestamp  int64          `json:"timestamp"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges Ledger lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Account hooks
// ──────────────────────────────────────────────────

// OnAccountCreated implements plugin.OnAccountCreated.
func (e *Extension) OnAccountCreated(ctx context.Context, a *account.Account) error {
	return e.record(ctx, ActionAccountCreated, SeverityInfo, OutcomeSuccess,
		ResourceAccount, a.ID, CategoryAccount, a.CreatedAt, nil,
	)
}

// OnFundsDeposited implements plugin.OnFundsDeposited.
func (e *Extension) OnFundsDeposited(ctx context.Context, txn *account.Transaction, balance int64) error {
	return e.record(ctx, ActionFundsDeposited, SeverityInfo, OutcomeSuccess,
		ResourceAccount, txn.AccountID, CategoryPayment, txn.Timestamp, nil,
		"transaction_id", txn.ID.String(),
		"amount", txn.Amount,
		"balance", balance,
	)
}

// OnPaymentMade implements plugin.OnPaymentMade.
func (e *Extension) OnPaymentMade(ctx context.Context, txn *account.Transaction, balance int64) error {
	return e.record(ctx, ActionPaymentMade, SeverityInfo, OutcomeSuccess,
		ResourceAccount, txn.AccountID, CategoryPayment, txn.Timestamp, nil,
		"transaction_id", txn.ID.String(),
		"amount", txn.Amount,
		"balance", balance,
	)
}

// ──────────────────────────────────────────────────
// Transfer hooks
// ──────────────────────────────────────────────────

// OnTransferInitiated implements plugin.OnTransferInitiated.
func (e *Extension) OnTransferInitiated(ctx context.Context, t *transfer.Transfer) error {
	return e.record(ctx, ActionTransferInitiated, SeverityInfo, OutcomeSuccess,
		ResourceTransfer, t.ID.String(), CategoryTransfer, t.CreatedAt, nil,
		transferMeta(t)...,
	)
}

// OnTransferAccepted implements plugin.OnTransferAccepted.
func (e *Extension) OnTransferAccepted(ctx context.Context, t *transfer.Transfer) error {
	return e.record(ctx, ActionTransferAccepted, SeverityInfo, OutcomeSuccess,
		ResourceTransfer, t.ID.String(), CategoryTransfer, t.ResolvedAt, nil,
		transferMeta(t)...,
	)
}

// OnTransferRevoked implements plugin.OnTransferRevoked.
func (e *Extension) OnTransferRevoked(ctx context.Context, t *transfer.Transfer) error {
	return e.record(ctx, ActionTransferRevoked, SeverityInfo, OutcomeSuccess,
		ResourceTransfer, t.ID.String(), CategoryTransfer, t.ResolvedAt, nil,
		transferMeta(t)...,
	)
}

// OnTransferExpired implements plugin.OnTransferExpired.
func (e *Extension) OnTransferExpired(ctx context.Context, t *transfer.Transfer) error {
	return e.record(ctx, ActionTransferExpired, SeverityWarning, OutcomeSuccess,
		ResourceTransfer, t.ID.String(), CategoryTransfer, t.ResolvedAt, nil,
		transferMeta(t)...,
	)
}

// OnOperationRejected implements plugin.OnOperationRejected.
func (e *Extension) OnOperationRejected(ctx context.Context, op string, err error) error {
	return e.record(ctx, ActionOperationRejected, SeverityWarning, OutcomeFailure,
		ResourceOperation, op, CategoryAccess, 0, err,
		"op", op,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

func transferMeta(t *transfer.Transfer) []any {
	return []any{
		"key", t.Key,
		"from", t.From,
		"to", t.To,
		"amount", t.Amount,
		"expires_at", t.ExpiresAt,
		"status", string(t.Status),
	}
}

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	timestamp int64,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		ID:         id.NewEventID(),
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Timestamp:  timestamp,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}

// LogRecorder writes audit events as structured log records.
type LogRecorder struct {
	logger *slog.Logger
}

// NewLogRecorder creates a LogRecorder. A nil logger uses slog.Default.
func NewLogRecorder(logger *slog.Logger) *LogRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogRecorder{logger: logger.With("component", "audit")}
}

// Record implements Recorder.
func (r *LogRecorder) Record(ctx context.Context, event *AuditEvent) error {
	attrs := []slog.Attr{
		slog.String("event_id", event.ID.String()),
		slog.String("action", event.Action),
		slog.String("resource", event.Resource),
		slog.String("resource_id", event.ResourceID),
		slog.String("category", event.Category),
		slog.String("outcome", event.Outcome),
		slog.Int64("timestamp", event.Timestamp),
	}
	if event.Reason != "" {
		attrs = append(attrs, slog.String("reason", event.Reason))
	}
	for k, v := range event.Metadata {
		if k == "error" {
			continue
		}
		attrs = append(attrs, slog.Any("meta."+k, v))
	}

	r.logger.LogAttrs(ctx, severityLevel(event.Severity), "audit "+event.Action, attrs...)
	return nil
}

func severityLevel(severity string) slog.Level {
	switch severity {
	case SeverityWarning:
		return slog.LevelWarn
	case SeverityError, SeverityCritical:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

