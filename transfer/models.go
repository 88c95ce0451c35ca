package transfer

import (
	"errors"
	"fmt"

	"github.com/xraph/bankledger/id"
)

// Day is the default escrow window in logical milliseconds.
const Day int64 = 24 * 60 * 60 * 1000

var (
	ErrNotPending        = errors.New("ledger: transfer is not pending")
	ErrInvalidTransition = errors.New("ledger: invalid transfer transition")
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRevoked  Status = "revoked"
	StatusExpired  Status = "expired"
)

// Terminal reports whether no transition may leave s.
func (s Status) Terminal() bool {
	switch s {
	case StatusAccepted, StatusRevoked, StatusExpired:
		return true
	default:
		return false
	}
}

// Key formats the recipient-scoped key of the ordinal-th transfer a
// recipient has received.
func Key(ordinal int64) string {
	return fmt.Sprintf("transfer%d", ordinal)
}

// Transfer is an escrowed movement of funds. Key is unique per recipient
// only; ID is unique across the ledger.
type Transfer struct {
	ID         id.TransferID `json:"id"`
	Key        string        `json:"key"`
	From       string        `json:"from"`
	To         string        `json:"to"`
	Amount     int64         `json:"amount"`
	CreatedAt  int64         `json:"created_at"`
	ExpiresAt  int64         `json:"expires_at"`
	Status     Status        `json:"status"`
	ResolvedAt int64         `json:"resolved_at,omitempty"`
}

// Clone returns a copy that shares nothing with t.
func (t *Transfer) Clone() *Transfer {
	c := *t
	return &c
}

// Pending reports whether t is still awaiting resolution.
func (t *Transfer) Pending() bool {
	return t.Status == StatusPending
}

// PastExpiry reports whether accepting at ts is too late. The expiry
// instant itself is still acceptable.
func (t *Transfer) PastExpiry(ts int64) bool {
	return ts > t.ExpiresAt
}

// Revocable reports whether the escrow window still allows revocation at ts.
func (t *Transfer) Revocable(ts int64) bool {
	return !(t.ExpiresAt < ts)
}

// Resolve moves a pending transfer to a terminal status.
func (t *Transfer) Resolve(to Status, ts int64) error {
	if !to.Terminal() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, to)
	}
	if !t.Pending() {
		return ErrNotPending
	}
	t.Status = to
	t.ResolvedAt = ts
	return nil
}

// Stub is the sender-side handle used to find a transfer stored under its
// recipient.
type Stub struct {
	Sender    string `json:"sender"`
	Key       string `json:"key"`
	Recipient string `json:"recipient"`
	ExpiresAt int64  `json:"expires_at"`
}

// StubOf derives the sender-side stub of t.
func StubOf(t *Transfer) *Stub {
	return &Stub{
		Sender:    t.From,
		Key:       t.Key,
		Recipient: t.To,
		ExpiresAt: t.ExpiresAt,
	}
}
