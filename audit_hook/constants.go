package audithook

// Action constants for audit events.
const (
	// Assessment actions
	ActionAssessmentCreated     = "assessment.created"
	ActionAssessmentActivated   = "assessment.activated"
	ActionAssessmentDeactivated = "assessment.deactivated"

	// Payment actions
	ActionInstallmentPaid = "installment.paid"
	ActionPaymentRejected = "payment.rejected"

	// Transfer actions
	ActionFundsForwarded = "funds.forwarded"
	ActionTransferFailed = "transfer.failed"

	// Role actions
	ActionTreasuryUpdated  = "treasury.updated"
	ActionAdminTransferred = "admin.transferred"
)

// Resource constants for audit events.
const (
	ResourceAssessment  = "assessment"
	ResourceInstallment = "installment"
	ResourceTransfer    = "transfer"
	ResourceRole        = "role"
)

// Category constants for audit events.
const (
	CategoryAssessment = "assessment"
	CategoryPayment    = "payment"
	CategoryTreasury   = "treasury"
	CategoryAccess     = "access"
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
