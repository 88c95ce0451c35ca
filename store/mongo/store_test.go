package mongo_test

import (
	"context"
	"errors"
	"os"
	"testing"

	ledger "github.com/xraph/bankledger"
	"github.com/xraph/bankledger/account"
	"github.com/xraph/bankledger/id"
	"github.com/xraph/bankledger/store/mongo"
	"github.com/xraph/bankledger/transfer"
)

// openStore connects to BANKLEDGER_TEST_MONGO_URI using a throwaway
// database. Tests skip when it is unset.
func openStore(t *testing.T) *mongo.Store {
	t.Helper()

	uri := os.Getenv("BANKLEDGER_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("BANKLEDGER_TEST_MONGO_URI not set")
	}

	var opts []mongo.Option
	if os.Getenv("BANKLEDGER_TEST_MONGO_STANDALONE") != "" {
		opts = append(opts, mongo.WithStandalone())
	}

	ctx := context.Background()
	s, err := mongo.Open(ctx, uri, "bankledger_test_"+id.NewEventID().String(), opts...)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() {
		_ = s.DB().Drop(context.Background())
		_ = s.Close()
	})

	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return s
}

func TestAccountsKeepOrderAndTotals(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	for _, accountID := range []string{"c", "a", "b"} {
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
	if len(accounts) != 3 || accounts[0].ID != "c" || accounts[2].ID != "b" {
		t.Errorf("order: got %v", accounts)
	}

	for _, r := range []*account.Transaction{
		account.NewTransaction("a", 1, 10, account.ActionDeposit),
		account.NewTransaction("a", 2, 5, account.ActionPayment),
	} {
		if err := s.AppendTransaction(ctx, r); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.AppendTransaction(ctx, account.NewTransaction("ghost", 3, 1, account.ActionDeposit)); !ledger.IsNotFound(err) {
		t.Errorf("append to missing account: got %v", err)
	}

	history, err := s.ListTransactions(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 2 || history[1].Action != account.ActionPayment {
		t.Errorf("history: got %+v", history)
	}

	totals, err := s.ActivityTotals(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if totals["a"] != 15 {
		t.Errorf("totals: got %v", totals)
	}
}

func TestTransfersAndStubs(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	tr := &transfer.Transfer{ID: id.NewTransferID(), Key: "transfer0", From: "a", To: "b", Amount: 5, ExpiresAt: 10, Status: transfer.StatusPending}
	if err := s.CreateTransfer(ctx, tr); err != nil {
		t.Fatal(err)
	}
	dup := tr.Clone()
	dup.ID = id.NewTransferID()
	if err := s.CreateTransfer(ctx, dup); !errors.Is(err, ledger.ErrAlreadyExists) {
		t.Errorf("duplicate key for recipient: got %v", err)
	}

	for _, recipient := range []string{"b", "c"} {
		if err := s.PutStub(ctx, &transfer.Stub{Sender: "a", Key: "transfer0", Recipient: recipient}); err != nil {
			t.Fatal(err)
		}
	}
	st, err := s.GetStub(ctx, "a", "transfer0")
	if err != nil || st.Recipient != "c" {
		t.Errorf("GetStub: %+v %v", st, err)
	}

	got, err := s.GetTransfer(ctx, "b", "transfer0")
	if err != nil {
		t.Fatal(err)
	}
	if err := got.Resolve(transfer.StatusAccepted, 4); err != nil {
		t.Fatal(err)
	}
	if err := s.UpdateTransfer(ctx, got); err != nil {
		t.Fatal(err)
	}

	accepted, err := s.ListTransfers(ctx, transfer.ListOpts{Status: transfer.StatusAccepted})
	if err != nil {
		t.Fatal(err)
	}
	if len(accepted) != 1 || accepted[0].ID.String() != tr.ID.String() {
		t.Errorf("accepted: got %+v", accepted)
	}
	if _, err := s.GetTransfer(ctx, "a", "transfer0"); !errors.Is(err, ledger.ErrTransferNotFound) {
		t.Errorf("GetTransfer wrong recipient: got %v", err)
	}
}
