package observability_test

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	ledger "github.com/xraph/bankledger"
	"github.com/xraph/bankledger/observability"
	"github.com/xraph/bankledger/store/memory"
)

func counterValue(t *testing.T, c observability.Counter) float64 {
	t.Helper()
	pc, ok := c.(prometheus.Counter)
	if !ok {
		t.Fatalf("counter is %T, want prometheus.Counter", c)
	}
	return testutil.ToFloat64(pc)
}

func histogramCount(t *testing.T, reg *prometheus.Registry, name string) uint64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf.GetMetric()[0].GetHistogram().GetSampleCount()
		}
	}
	t.Fatalf("histogram %s not registered", name)
	return 0
}

func TestMetricsExtensionCountsLedgerEvents(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	m := observability.NewMetricsExtension(observability.NewPrometheusFactory(reg))

	l := ledger.New(memory.New(), ledger.WithPlugin(m), ledger.WithTransferWindow(10))
	if err := l.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer l.Stop()

	_ = l.CreateAccount(ctx, 1, "a")
	_ = l.CreateAccount(ctx, 2, "b")
	_, _ = l.Deposit(ctx, 3, "a", 100)
	_, _ = l.Pay(ctx, 4, "a", 500)
	k0, _ := l.Transfer(ctx, 5, "a", "b", 20)
	k1, _ := l.Transfer(ctx, 6, "a", "b", 30)
	_ = l.AcceptTransfer(ctx, 7, "b", k0)
	_ = l.AcceptTransfer(ctx, 100, "b", k1)

	tests := []struct {
		name    string
		counter observability.Counter
		want    float64
	}{
		{"accounts", m.AccountsCreated, 2},
		{"deposits", m.Deposits, 1},
		{"payments", m.Payments, 0},
		{"initiated", m.TransfersInitiated, 2},
		{"accepted", m.TransfersAccepted, 1},
		{"expired", m.TransfersExpired, 1},
		{"revoked", m.TransfersRevoked, 0},
		{"escrow released", m.EscrowReleased, 50},
		{"rejections", m.Rejections, 2},
		{"insufficient funds", m.InsufficientFunds, 1},
		{"store errors", m.StoreErrors, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := counterValue(t, tt.counter); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}

	if got := histogramCount(t, reg, "ledger_transfer_amount"); got != 2 {
		t.Errorf("transfer amount samples: got %d, want 2", got)
	}
}

func TestStoreErrorsAreCountedSeparately(t *testing.T) {
	m := observability.NewMetricsExtension(observability.NewPrometheusFactory(prometheus.NewRegistry()))

	_ = m.OnOperationRejected(context.Background(), ledger.OpDeposit, errors.New("disk on fire"))
	_ = m.OnOperationRejected(context.Background(), ledger.OpDeposit, ledger.ErrAccountNotFound)

	if got := counterValue(t, m.StoreErrors); got != 1 {
		t.Errorf("store errors: got %v, want 1", got)
	}
	if got := counterValue(t, m.Rejections); got != 1 {
		t.Errorf("rejections: got %v, want 1", got)
	}
}

func TestPrometheusFactoryNames(t *testing.T) {
	reg := prometheus.NewRegistry()
	f := observability.NewPrometheusFactory(reg)

	c1 := f.Counter("ledger.account.created")
	c2 := f.Counter("ledger.account.created")
	c1.Inc()
	c2.Add(2)

	if got := counterValue(t, c1); got != 3 {
		t.Errorf("shared counter: got %v, want 3", got)
	}

	n, err := testutil.GatherAndCount(reg, "ledger_account_created_total")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("registered series: got %d, want 1", n)
	}
}
