package postgres_test

import (
	"context"
	"errors"
	"os"
	"testing"

	ledger "github.com/xraph/bankledger"
	"github.com/xraph/bankledger/account"
	"github.com/xraph/bankledger/id"
	"github.com/xraph/bankledger/store/postgres"
	"github.com/xraph/bankledger/transfer"
)

// openStore connects to BANKLEDGER_TEST_POSTGRES_DSN and resets the ledger
// tables. Tests skip when it is unset.
func openStore(t *testing.T) *postgres.Store {
	t.Helper()

	dsn := os.Getenv("BANKLEDGER_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("BANKLEDGER_TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	s, err := postgres.Open(ctx, dsn)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if _, err := s.Pool().Exec(ctx,
		`TRUNCATE ledger_transfer_stubs, ledger_transfers, ledger_transactions, ledger_accounts RESTART IDENTITY`,
	); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return s
}

func TestAccountsAndTransactions(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	for _, accountID := range []string{"b", "a"} {
		if err := s.CreateAccount(ctx, &account.Account{ID: accountID}); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.CreateAccount(ctx, &account.Account{ID: "a"}); !errors.Is(err, ledger.ErrAlreadyExists) {
		t.Errorf("duplicate: got %v", err)
	}

	accounts, err := s.ListAccounts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(accounts) != 2 || accounts[0].ID != "b" {
		t.Errorf("order: got %v", accounts)
	}

	if err := s.AppendTransaction(ctx, account.NewTransaction("a", 1, 30, account.ActionDeposit)); err != nil {
		t.Fatal(err)
	}
	if err := s.AppendTransaction(ctx, account.NewTransaction("ghost", 1, 30, account.ActionDeposit)); !ledger.IsNotFound(err) {
		t.Errorf("append to missing account: got %v", err)
	}

	totals, err := s.ActivityTotals(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if totals["a"] != 30 {
		t.Errorf("totals: got %v", totals)
	}
}

func TestTransfersAndStubs(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	for _, accountID := range []string{"a", "b"} {
		if err := s.CreateAccount(ctx, &account.Account{ID: accountID}); err != nil {
			t.Fatal(err)
		}
	}

	tr := &transfer.Transfer{ID: id.NewTransferID(), Key: "transfer0", From: "a", To: "b", Amount: 5, ExpiresAt: 10, Status: transfer.StatusPending}
	if err := s.CreateTransfer(ctx, tr); err != nil {
		t.Fatal(err)
	}
	if err := s.PutStub(ctx, transfer.StubOf(tr)); err != nil {
		t.Fatal(err)
	}

	st, err := s.GetStub(ctx, "a", "transfer0")
	if err != nil || st.Recipient != "b" {
		t.Fatalf("GetStub: %+v %v", st, err)
	}

	err = s.RunInTx(ctx, func(ctx context.Context) error {
		got, err := s.GetTransfer(ctx, "b", "transfer0")
		if err != nil {
			return err
		}
		if err := got.Resolve(transfer.StatusRevoked, 3); err != nil {
			return err
		}
		return s.UpdateTransfer(ctx, got)
	})
	if err != nil {
		t.Fatalf("RunInTx: %v", err)
	}

	revoked, err := s.ListTransfers(ctx, transfer.ListOpts{Status: transfer.StatusRevoked})
	if err != nil {
		t.Fatal(err)
	}
	if len(revoked) != 1 || revoked[0].ResolvedAt != 3 {
		t.Errorf("revoked: got %+v", revoked)
	}
}
