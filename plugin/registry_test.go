package plugin_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/bankledger/account"
	"github.com/xraph/bankledger/plugin"
	"github.com/xraph/bankledger/transfer"
)

type counting struct {
	name     string
	accounts atomic.Int32
	accepted atomic.Int32
	err      error
}

func (c *counting) Name() string { return c.name }

func (c *counting) OnAccountCreated(context.Context, *account.Account) error {
	c.accounts.Add(1)
	return c.err
}

func (c *counting) OnTransferAccepted(context.Context, *transfer.Transfer) error {
	c.accepted.Add(1)
	return c.err
}

type nameOnly struct{}

func (nameOnly) Name() string { return "name-only" }

type slow struct{}

func (slow) Name() string { return "slow" }

func (slow) OnAccountCreated(context.Context, *account.Account) error {
	time.Sleep(200 * time.Millisecond)
	return nil
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	r := plugin.NewRegistry().WithLogger(slog.New(slog.DiscardHandler))

	if err := r.Register(&counting{name: "a"}); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(&counting{name: "a"}); err == nil {
		t.Error("duplicate name should fail")
	}
	if err := r.Register(nameOnly{}); err != nil {
		t.Fatal(err)
	}

	if got := r.Count(); got != 2 {
		t.Errorf("Count: got %d, want 2", got)
	}
	if r.Get("name-only") == nil || r.Get("missing") != nil {
		t.Error("Get returned the wrong plugin")
	}
	if got := len(r.List()); got != 2 {
		t.Errorf("List: got %d, want 2", got)
	}
}

func TestEmitDispatchesOnlyToImplementers(t *testing.T) {
	ctx := context.Background()
	r := plugin.NewRegistry().WithLogger(slog.New(slog.DiscardHandler))

	first := &counting{name: "first"}
	second := &counting{name: "second"}
	for _, p := range []plugin.Plugin{first, nameOnly{}, second} {
		if err := r.Register(p); err != nil {
			t.Fatal(err)
		}
	}

	r.EmitAccountCreated(ctx, &account.Account{ID: "a"})
	r.EmitTransferAccepted(ctx, &transfer.Transfer{Key: "transfer0"})
	r.EmitTransferAccepted(ctx, &transfer.Transfer{Key: "transfer1"})
	r.EmitPaymentMade(ctx, &account.Transaction{}, 0)

	for _, c := range []*counting{first, second} {
		if got := c.accounts.Load(); got != 1 {
			t.Errorf("%s accounts: got %d, want 1", c.name, got)
		}
		if got := c.accepted.Load(); got != 2 {
			t.Errorf("%s accepted: got %d, want 2", c.name, got)
		}
	}
}

func TestEmitLogsFailuresAndTimeouts(t *testing.T) {
	var buf bytes.Buffer
	r := plugin.NewRegistry().
		WithLogger(slog.New(slog.NewTextHandler(&buf, nil))).
		WithTimeout(20 * time.Millisecond)

	failing := &counting{name: "failing", err: errors.New("boom")}
	for _, p := range []plugin.Plugin{failing, slow{}} {
		if err := r.Register(p); err != nil {
			t.Fatal(err)
		}
	}

	r.EmitAccountCreated(context.Background(), &account.Account{ID: "a"})

	out := buf.String()
	if !strings.Contains(out, "plugin=failing") || !strings.Contains(out, "boom") {
		t.Errorf("missing failure log: %s", out)
	}
	if !strings.Contains(out, "plugin timeout: slow") {
		t.Errorf("missing timeout log: %s", out)
	}
}
