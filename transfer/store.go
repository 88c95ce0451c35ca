package transfer

import "context"

type Store interface {
	CreateTransfer(ctx context.Context, t *Transfer) error
	GetTransfer(ctx context.Context, recipient, key string) (*Transfer, error)
	UpdateTransfer(ctx context.Context, t *Transfer) error
	ListTransfers(ctx context.Context, opts ListOpts) ([]*Transfer, error)

	// PutStub stores s, replacing any stub with the same sender and key.
	PutStub(ctx context.Context, s *Stub) error
	GetStub(ctx context.Context, sender, key string) (*Stub, error)
}

// ListOpts filters ListTransfers. Zero fields match everything.
type ListOpts struct {
	From   string
	To     string
	Status Status
}

// Match reports whether t passes the filter.
func (o ListOpts) Match(t *Transfer) bool {
	if o.From != "" && t.From != o.From {
		return false
	}
	if o.To != "" && t.To != o.To {
		return false
	}
	if o.Status != "" && t.Status != o.Status {
		return false
	}
	return true
}
