// Package ledger provides an in-memory style banking engine for Go
// applications: accounts, deposits, payments, activity rankings and
// escrowed transfers that a recipient must accept within a window.
//
// Ledger is designed as a library, not a service. Import it directly into
// your Go application, or run cmd/bankledger for an HTTP front end. It
// provides:
//
//   - Integer balances with overdraft protection
//   - An append-only transaction history per account
//   - Activity rankings over lifetime transaction volume
//   - Escrowed transfers with accept, revoke and lazy expiry
//   - Pluggable storage (memory, SQLite, PostgreSQL, MongoDB)
//   - Audit trail and metrics via plugins
//
// # Quick Start
//
// Create a ledger instance with your preferred store:
//
//	import (
//	    "github.com/xraph/bankledger"
//	    "github.com/xraph/bankledger/store/memory"
//	)
//
//	l := ledger.New(memory.New())
//	if err := l.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer l.Stop()
//
// # Time
//
// Every operation takes a caller-supplied timestamp in milliseconds. The
// ledger never reads the wall clock; expiry and ordering follow those
// timestamps only.
//
// # Transfers
//
// A transfer debits the sender at once and holds the funds in escrow:
//
//	key, err := l.Transfer(ctx, 1, "alice", "bob", 300)
//
// Keys look like "transfer0", "transfer1", ... and are counted per
// recipient, so two recipients may both hold a "transfer0". The recipient
// settles with AcceptTransfer and the sender may cancel with
// RevokeTransfer. Accepting after the window refunds the sender, marks the
// transfer expired and returns ErrTransferExpired.
//
// # Errors
//
// Every failure is reported as an error. Well-defined rejections wrap one
// of the sentinels in this package and satisfy IsRejection; anything else
// comes from the store.
//
// # TypeID
//
// Transaction records and transfers carry TypeIDs for global identity:
//
//	txn_01h2xcejqtf2nbrexx3vqjhp41   // Transaction ID
//	xfer_01h455vb4pex5vsknk084sn02q  // Transfer ID
package ledger
