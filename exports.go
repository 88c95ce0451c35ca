package ledger

import (
	"github.com/xraph/bankledger/account"
	"github.com/xraph/bankledger/transfer"
)

// Re-export common types so callers rarely need the sub-packages.

// Account is re-exported from the account package.
type Account = account.Account

// Transaction is re-exported from the account package.
type Transaction = account.Transaction

// Activity is re-exported from the account package.
type Activity = account.Activity

// Transfer is re-exported from the transfer package.
type Transfer = transfer.Transfer

// TransferStatus is re-exported from the transfer package.
type TransferStatus = transfer.Status

// Re-export transfer statuses and the default escrow window.
const (
	TransferPending  = transfer.StatusPending
	TransferAccepted = transfer.StatusAccepted
	TransferRevoked  = transfer.StatusRevoked
	TransferExpired  = transfer.StatusExpired

	Day = transfer.Day
)
