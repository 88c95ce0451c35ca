package simulator_test

import (
	"context"
	"fmt"
	"math"
	"slices"
	"testing"

	ledger "github.com/xraph/bankledger"
	"github.com/xraph/bankledger/simulator"
	"github.com/xraph/bankledger/transfer"
)

func expectBalance(t *testing.T, got *int64, want int64) {
	t.Helper()
	if got == nil {
		t.Fatalf("got nil, want %d", want)
	}
	if *got != want {
		t.Errorf("got %d, want %d", *got, want)
	}
}

func expectNull(t *testing.T, got *int64) {
	t.Helper()
	if got != nil {
		t.Errorf("got %d, want nil", *got)
	}
}

func expectKey(t *testing.T, got *string, want string) string {
	t.Helper()
	if got == nil {
		t.Fatalf("got nil, want %s", want)
	}
	if *got != want {
		t.Errorf("got %s, want %s", *got, want)
	}
	return *got
}

func TestAccountsAndBalances(t *testing.T) {
	t.Run("create", func(t *testing.T) {
		b := simulator.New()
		if !b.CreateAccount(1, "acc1") {
			t.Error("first create should succeed")
		}
		if b.CreateAccount(2, "acc1") {
			t.Error("duplicate create should fail")
		}
		if !b.CreateAccount(3, "acc2") {
			t.Error("second account should succeed")
		}
	})

	t.Run("unknown account", func(t *testing.T) {
		b := simulator.New()
		expectNull(t, b.Deposit(4, "ghost", 100))
		expectNull(t, b.Pay(8, "ghost", 20))
	})

	t.Run("deposits accumulate", func(t *testing.T) {
		b := simulator.New()
		b.CreateAccount(5, "acc1")
		expectBalance(t, b.Deposit(6, "acc1", 100), 100)
		expectBalance(t, b.Deposit(7, "acc1", 50), 150)
	})

	t.Run("no overdraw", func(t *testing.T) {
		b := simulator.New()
		b.CreateAccount(9, "acc1")
		b.Deposit(10, "acc1", 100)
		expectNull(t, b.Pay(11, "acc1", 150))
	})

	t.Run("payments", func(t *testing.T) {
		b := simulator.New()
		b.CreateAccount(12, "acc1")
		b.Deposit(13, "acc1", 200)
		expectBalance(t, b.Pay(14, "acc1", 50), 150)
		expectBalance(t, b.Pay(15, "acc1", 150), 0)
	})

	t.Run("zero and negative amounts", func(t *testing.T) {
		b := simulator.New()
		b.CreateAccount(16, "acc1")
		expectBalance(t, b.Deposit(1, "acc1", 0), 0)
		expectNull(t, b.Deposit(2, "acc1", -10))
		expectBalance(t, b.Pay(1, "acc1", 0), 0)
		expectNull(t, b.Pay(2, "acc1", -5))
	})

	t.Run("many accounts", func(t *testing.T) {
		b := simulator.New()
		for i := int64(0); i < 100; i++ {
			accountID := fmt.Sprintf("acc%d", i)
			if !b.CreateAccount(i, accountID) {
				t.Fatalf("create %s failed", accountID)
			}
			expectBalance(t, b.Deposit(i+1000, accountID, i), i)
		}
		expectBalance(t, b.Pay(1100, "acc50", 25), 25)
		expectBalance(t, b.Pay(1101, "acc99", 99), 0)
	})
}

func TestTopAccounts(t *testing.T) {
	tests := []struct {
		name  string
		setup func(b *simulator.Bank)
		n     int
		want  []string
	}{
		{
			name:  "no accounts",
			setup: func(*simulator.Bank) {},
			n:     3,
			want:  []string{},
		},
		{
			name: "sorted by activity",
			setup: func(b *simulator.Bank) {
				b.CreateAccount(1, "charlie")
				b.CreateAccount(2, "alpha")
				b.CreateAccount(3, "bravo")
				b.Deposit(4, "charlie", 300)
				b.Deposit(5, "alpha", 500)
				b.Pay(6, "alpha", 100)
				b.Deposit(7, "bravo", 700)
			},
			n:    3,
			want: []string{"bravo(700)", "alpha(600)", "charlie(300)"},
		},
		{
			name: "fewer than requested",
			setup: func(b *simulator.Bank) {
				b.CreateAccount(1, "alpha")
				b.Deposit(2, "alpha", 200)
			},
			n:    5,
			want: []string{"alpha(200)"},
		},
		{
			name: "only top n",
			setup: func(b *simulator.Bank) {
				b.CreateAccount(1, "a")
				b.CreateAccount(2, "b")
				b.CreateAccount(3, "c")
				b.Deposit(4, "a", 100)
				b.Deposit(5, "b", 300)
				b.Deposit(6, "c", 200)
			},
			n:    2,
			want: []string{"b(300)", "c(200)"},
		},
		{
			name: "ties alphabetical",
			setup: func(b *simulator.Bank) {
				b.CreateAccount(1, "alpha")
				b.CreateAccount(2, "bravo")
				b.Deposit(3, "alpha", 100)
				b.Deposit(4, "bravo", 100)
			},
			n:    2,
			want: []string{"alpha(100)", "bravo(100)"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := simulator.New()
			tt.setup(b)
			got := b.TopAccounts(8, tt.n)
			if got == nil {
				t.Fatal("TopAccounts returned nil, want a non-nil slice")
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTransfers(t *testing.T) {
	t.Run("missing accounts", func(t *testing.T) {
		b := simulator.New()
		if b.Transfer(1, "a", "b", 100) != nil {
			t.Error("transfer between missing accounts should fail")
		}
		b.CreateAccount(2, "a")
		if b.Transfer(3, "a", "b", 100) != nil {
			t.Error("transfer to missing account should fail")
		}
		b.CreateAccount(4, "b")
		if b.Transfer(5, "ghost", "b", 100) != nil {
			t.Error("transfer from missing account should fail")
		}
	})

	t.Run("insufficient balance", func(t *testing.T) {
		b := simulator.New()
		b.CreateAccount(1, "a")
		b.CreateAccount(2, "b")
		if b.Transfer(3, "a", "b", 50) != nil {
			t.Error("transfer without funds should fail")
		}
	})

	t.Run("accept", func(t *testing.T) {
		b := simulator.New()
		b.CreateAccount(1, "alice")
		b.CreateAccount(2, "bob")
		b.Deposit(3, "alice", 200)

		key := expectKey(t, b.Transfer(4, "alice", "bob", 150), "transfer0")
		if !b.AcceptTransfer(5, "bob", key) {
			t.Fatal("accept should succeed")
		}
		expectBalance(t, b.Pay(6, "bob", 150), 0)
	})

	t.Run("sequential keys", func(t *testing.T) {
		b := simulator.New()
		b.CreateAccount(1, "src")
		b.CreateAccount(2, "target")
		b.Deposit(2, "src", 500)

		expectKey(t, b.Transfer(3, "src", "target", 100), "transfer0")
		expectKey(t, b.Transfer(4, "src", "target", 200), "transfer1")
		expectKey(t, b.Transfer(5, "src", "target", 50), "transfer2")
	})

	t.Run("accept twice", func(t *testing.T) {
		b := simulator.New()
		b.CreateAccount(1, "a")
		b.CreateAccount(2, "b")
		b.Deposit(2, "a", 100)

		key := expectKey(t, b.Transfer(3, "a", "b", 100), "transfer0")
		if !b.AcceptTransfer(4, "b", key) {
			t.Fatal("first accept should succeed")
		}
		if b.AcceptTransfer(5, "b", key) {
			t.Error("second accept should fail")
		}
	})

	t.Run("wrong recipient", func(t *testing.T) {
		b := simulator.New()
		b.CreateAccount(1, "a")
		b.CreateAccount(2, "b")
		b.CreateAccount(3, "c")
		b.Deposit(2, "a", 150)

		key := expectKey(t, b.Transfer(3, "a", "b", 100), "transfer0")
		if b.AcceptTransfer(4, "c", key) {
			t.Error("accept by non-recipient should fail")
		}
	})

	t.Run("unknown key", func(t *testing.T) {
		b := simulator.New()
		b.CreateAccount(1, "a")
		if b.AcceptTransfer(2, "a", "transfer999") {
			t.Error("accept of unknown key should fail")
		}
	})

	t.Run("expired refunds sender", func(t *testing.T) {
		b := simulator.New()
		b.CreateAccount(1, "sender")
		b.CreateAccount(2, "receiver")
		b.Deposit(2, "sender", 100)

		key := expectKey(t, b.Transfer(10, "sender", "receiver", 100), "transfer0")
		if b.AcceptTransfer(11+2*transfer.Day, "receiver", key) {
			t.Fatal("accept after expiry should fail")
		}
		expectBalance(t, b.Pay(17, "sender", 100), 0)
		expectNull(t, b.Pay(18, "receiver", 1))
	})
}

func TestRevocation(t *testing.T) {
	t.Run("refund and block accept", func(t *testing.T) {
		b := simulator.New()
		b.CreateAccount(1, "sender")
		b.CreateAccount(2, "receiver")
		b.Deposit(2, "sender", 100)

		key := expectKey(t, b.Transfer(3, "sender", "receiver", 100), "transfer0")
		if !b.RevokeTransfer(4, "sender", key) {
			t.Fatal("revoke should succeed")
		}
		expectBalance(t, b.Pay(5, "sender", 100), 0)
		if b.AcceptTransfer(6, "receiver", key) {
			t.Error("accept after revoke should fail")
		}
	})

	t.Run("revoke twice", func(t *testing.T) {
		b := simulator.New()
		b.CreateAccount(1, "sender")
		b.CreateAccount(2, "receiver")
		b.Deposit(2, "sender", 50)

		key := expectKey(t, b.Transfer(3, "sender", "receiver", 50), "transfer0")
		b.RevokeTransfer(4, "sender", key)
		if b.RevokeTransfer(5, "sender", key) {
			t.Error("second revoke should fail")
		}
	})

	t.Run("after accept", func(t *testing.T) {
		b := simulator.New()
		b.CreateAccount(1, "s")
		b.CreateAccount(2, "r")
		b.Deposit(2, "s", 200)

		key := expectKey(t, b.Transfer(3, "s", "r", 200), "transfer0")
		b.AcceptTransfer(4, "r", key)
		if b.RevokeTransfer(5, "s", key) {
			t.Error("revoke after accept should fail")
		}
	})

	t.Run("not the sender", func(t *testing.T) {
		b := simulator.New()
		b.CreateAccount(1, "src")
		b.CreateAccount(2, "dst")
		b.CreateAccount(3, "evil")
		b.Deposit(2, "src", 100)

		key := expectKey(t, b.Transfer(3, "src", "dst", 100), "transfer0")
		if b.RevokeTransfer(4, "evil", key) {
			t.Error("revoke by a third party should fail")
		}
	})

	t.Run("unknown key", func(t *testing.T) {
		b := simulator.New()
		b.CreateAccount(1, "src")
		if b.RevokeTransfer(2, "src", "transfer999") {
			t.Error("revoke of unknown key should fail")
		}
	})

	t.Run("single refund", func(t *testing.T) {
		b := simulator.New()
		b.CreateAccount(1, "a")
		b.CreateAccount(2, "b")
		b.Deposit(2, "a", 100)

		key := expectKey(t, b.Transfer(3, "a", "b", 100), "transfer0")
		if !b.RevokeTransfer(4, "a", key) {
			t.Fatal("revoke should succeed")
		}
		if b.RevokeTransfer(5, "a", key) {
			t.Error("second revoke should fail")
		}
		expectBalance(t, b.Pay(6, "a", 100), 0)
		expectNull(t, b.Pay(7, "a", 1))
	})
}

type initCounter struct{ calls int }

func (*initCounter) Name() string { return "init-counter" }

func (c *initCounter) OnInit(context.Context, interface{}) error {
	c.calls++
	return nil
}

func TestNewStartsLedger(t *testing.T) {
	counter := &initCounter{}
	simulator.New(ledger.WithPlugin(counter))
	if counter.calls != 1 {
		t.Errorf("OnInit calls: got %d, want 1", counter.calls)
	}
}

func TestBalanceCeiling(t *testing.T) {
	b := simulator.New()
	b.CreateAccount(1, "a")
	b.CreateAccount(2, "c")
	b.Deposit(3, "c", 10)

	expectBalance(t, b.Deposit(4, "a", math.MaxInt64), math.MaxInt64)
	expectNull(t, b.Deposit(5, "a", 1))

	want := []string{fmt.Sprintf("a(%d)", int64(math.MaxInt64)), "c(10)"}
	if got := b.TopAccounts(6, 2); !slices.Equal(got, want) {
		t.Errorf("top: got %v, want %v", got, want)
	}
}
