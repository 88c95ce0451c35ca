package account

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/xraph/bankledger/id"
)

// Action classifies a transaction record.
type Action string

const (
	ActionDeposit  Action = "deposit"
	ActionPayment  Action = "payment"
	ActionTransfer Action = "transfer"
)

// Account holds a balance and the counter used to mint the keys of
// transfers it receives. Timestamps are logical, caller supplied values.
type Account struct {
	ID                string `json:"id"`
	Balance           int64  `json:"balance"`
	TransfersReceived int64  `json:"transfers_received"`
	CreatedAt         int64  `json:"created_at"`
}

// Clone returns a copy that shares nothing with a.
func (a *Account) Clone() *Account {
	c := *a
	return &c
}

// Transaction is an append-only activity record. Amount is the raw
// volume of the action; payments are not negated.
type Transaction struct {
	ID          id.TransactionID `json:"id"`
	AccountID   string           `json:"account_id"`
	Timestamp   int64            `json:"timestamp"`
	Amount      int64            `json:"amount"`
	Action      Action           `json:"action"`
	TransferKey string           `json:"transfer_key,omitempty"`
}

// NewTransaction builds a record with a fresh ID.
func NewTransaction(accountID string, ts, amount int64, action Action) *Transaction {
	return &Transaction{
		ID:        id.NewTransactionID(),
		AccountID: accountID,
		Timestamp: ts,
		Amount:    amount,
		Action:    action,
	}
}

// Activity is an account's lifetime transaction volume.
type Activity struct {
	AccountID string `json:"account_id"`
	Total     int64  `json:"total"`
}

// String renders the activity as "id(total)".
func (a Activity) String() string {
	return fmt.Sprintf("%s(%d)", a.AccountID, a.Total)
}

// AddActivity adds a non-negative amount to a running activity total,
// saturating at math.MaxInt64.
func AddActivity(total, amount int64) int64 {
	if amount > math.MaxInt64-total {
		return math.MaxInt64
	}
	return total + amount
}

// Rank orders activities by total descending, then account id ascending,
// and keeps at most n of them. The input slice is sorted in place.
func Rank(activities []Activity, n int) []Activity {
	if n <= 0 || len(activities) == 0 {
		return []Activity{}
	}

	slices.SortFunc(activities, func(a, b Activity) int {
		if c := cmp.Compare(b.Total, a.Total); c != 0 {
			return c
		}
		return cmp.Compare(a.AccountID, b.AccountID)
	})

	if n < len(activities) {
		activities = activities[:n]
	}
	return activities
}
