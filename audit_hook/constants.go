package audithook

// Action constants for audit events.
const (
	// Account actions
	ActionAccountCreated = "account.created"
	ActionFundsDeposited = "funds.deposited"
	ActionPaymentMade    = "payment.made"

	// Transfer actions
	ActionTransferInitiated = "transfer.initiated"
	ActionTransferAccepted  = "transfer.accepted"
	ActionTransferRevoked   = "transfer.revoked"
	ActionTransferExpired   = "transfer.expired"

	// Rejections
	ActionOperationRejected = "operation.rejected"
)

// Resource constants for audit events.
const (
	ResourceAccount   = "account"
	ResourceTransfer  = "transfer"
	ResourceOperation = "operation"
)

// Category constants for audit events.
const (
	CategoryAccount  = "account"
	CategoryPayment  = "payment"
	CategoryTransfer = "transfer"
	CategoryAccess   = "access"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
