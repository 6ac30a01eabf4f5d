package audithook

// Action constants for audit events.
const (
	// Invoice actions
	ActionInvoiceCreated       = "invoice.created"
	ActionInvoiceSent          = "invoice.sent"
	ActionInvoiceStatusChanged = "invoice.status_changed"
	ActionInvoicePaid          = "invoice.paid"
	ActionInvoiceOverdue       = "invoice.overdue"
	ActionInvoiceVoided        = "invoice.voided"

	// Payment actions
	ActionPaymentRecorded  = "payment.recorded"
	ActionPaymentSucceeded = "payment.succeeded"
	ActionPaymentFailed    = "payment.failed"

	// Scheduled payment actions
	ActionScheduleCreated   = "schedule.created"
	ActionScheduleProcessed = "schedule.processed"
	ActionScheduleCancelled = "schedule.cancelled"
	ActionScheduleFailed    = "schedule.failed"

	// Gateway actions
	ActionWebhookRejected = "webhook.rejected"
	ActionWebhookIgnored  = "webhook.ignored"
)

// Resource constants for audit events.
const (
	ResourceInvoice  = "invoice"
	ResourcePayment  = "payment"
	ResourceSchedule = "scheduled_payment"
	ResourceWebhook  = "webhook"
)

// Category constants for audit events.
const (
	CategoryBilling     = "billing"
	CategoryPayment     = "payment"
	CategoryIntegration = "integration"
	CategorySecurity    = "security"
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
