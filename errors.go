package ledger

import (
	"errors"
	"fmt"

	"github.com/xraph/bankledger/transfer"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound      = errors.New("ledger: not found")
	ErrAlreadyExists = errors.New("ledger: already exists")
	ErrInvalidInput  = errors.New("ledger: invalid input")

	// Account errors
	ErrAccountNotFound   = fmt.Errorf("%w: account", ErrNotFound)
	ErrAccountExists     = fmt.Errorf("%w: account", ErrAlreadyExists)
	ErrInvalidAmount     = fmt.Errorf("%w: amount", ErrInvalidInput)
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")
	ErrBalanceOverflow   = errors.New("ledger: balance overflow")

	// Transfer errors
	ErrTransferNotFound   = fmt.Errorf("%w: transfer", ErrNotFound)
	ErrTransferNotPending = transfer.ErrNotPending
	ErrTransferExpired    = errors.New("ledger: transfer expired")
	ErrNotRecipient       = errors.New("ledger: account is not the transfer recipient")
	ErrNotSender          = errors.New("ledger: account is not the transfer sender")

	// Store errors
	ErrStoreClosed     = errors.New("ledger: store is closed")
	ErrMigrationFailed = errors.New("ledger: migration failed")
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("ledger: validation failed for %s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is match ErrInvalidInput.
func (e ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsRejection returns true if err is a well-defined rejection of the
// request rather than a storage or infrastructure failure.
func IsRejection(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrAlreadyExists) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrBalanceOverflow) ||
		errors.Is(err, ErrTransferNotPending) ||
		errors.Is(err, ErrTransferExpired) ||
		errors.Is(err, ErrNotRecipient) ||
		errors.Is(err, ErrNotSender)
}
