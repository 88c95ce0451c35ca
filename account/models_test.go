package account_test

import (
	"math"
	"reflect"
	"testing"

	"github.com/xraph/bankledger/account"
)

func TestActivityString(t *testing.T) {
	got := account.Activity{AccountID: "alpha", Total: 600}.String()
	if got != "alpha(600)" {
		t.Errorf("expected alpha(600), got %q", got)
	}
}

func names(activities []account.Activity) []string {
	out := make([]string, 0, len(activities))
	for _, a := range activities {
		out = append(out, a.String())
	}
	return out
}

func TestAddActivity(t *testing.T) {
	tests := []struct {
		total, amount, want int64
	}{
		{0, 0, 0},
		{40, 60, 100},
		{math.MaxInt64 - 1, 1, math.MaxInt64},
		{math.MaxInt64 - 1, 2, math.MaxInt64},
		{math.MaxInt64, math.MaxInt64, math.MaxInt64},
	}
	for _, tt := range tests {
		if got := account.AddActivity(tt.total, tt.amount); got != tt.want {
			t.Errorf("AddActivity(%d, %d): got %d, want %d", tt.total, tt.amount, got, tt.want)
		}
	}
}

func TestRank(t *testing.T) {
	tests := []struct {
		name  string
		input []account.Activity
		n     int
		want  []string
	}{
		{
			name:  "empty",
			input: nil,
			n:     3,
			want:  []string{},
		},
		{
			name: "descending by total",
			input: []account.Activity{
				{AccountID: "charlie", Total: 300},
				{AccountID: "alpha", Total: 600},
				{AccountID: "bravo", Total: 700},
			},
			n:    3,
			want: []string{"bravo(700)", "alpha(600)", "charlie(300)"},
		},
		{
			name: "ties by account id",
			input: []account.Activity{
				{AccountID: "bravo", Total: 100},
				{AccountID: "alpha", Total: 100},
			},
			n:    2,
			want: []string{"alpha(100)", "bravo(100)"},
		},
		{
			name: "capped at n",
			input: []account.Activity{
				{AccountID: "a", Total: 100},
				{AccountID: "b", Total: 300},
				{AccountID: "c", Total: 200},
			},
			n:    2,
			want: []string{"b(300)", "c(200)"},
		},
		{
			name: "n larger than input",
			input: []account.Activity{
				{AccountID: "alpha", Total: 200},
			},
			n:    5,
			want: []string{"alpha(200)"},
		},
		{
			name: "non-positive n",
			input: []account.Activity{
				{AccountID: "alpha", Total: 200},
			},
			n:    0,
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := names(account.Rank(tt.input, tt.n))
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestNewTransaction(t *testing.T) {
	txn := account.NewTransaction("alice", 7, 50, account.ActionPayment)
	if txn.ID.IsNil() {
		t.Fatal("expected a transaction id")
	}
	if txn.AccountID != "alice" || txn.Timestamp != 7 || txn.Amount != 50 || txn.Action != account.ActionPayment {
		t.Errorf("unexpected transaction: %+v", txn)
	}
}

func TestClone(t *testing.T) {
	a := &account.Account{ID: "alice", Balance: 10}
	c := a.Clone()
	c.Balance = 99
	if a.Balance != 10 {
		t.Errorf("clone aliased the original: %d", a.Balance)
	}
}
