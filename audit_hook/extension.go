// Package audithook bridges billing lifecycle events to an audit trail
// backend.
//
// It defines a local Recorder interface so the package does not depend on
// any particular audit store. Callers inject a RecorderFunc adapter at
// wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/billing/gateway"
	"github.com/xraph/billing/invoice"
	"github.com/xraph/billing/payment"
	"github.com/xraph/billing/plugin"
	"github.com/xraph/billing/schedule"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                    = (*Extension)(nil)
	_ plugin.OnInvoiceCreated          = (*Extension)(nil)
	_ plugin.OnInvoiceSent             = (*Extension)(nil)
	_ plugin.OnInvoiceStatusChanged    = (*Extension)(nil)
	_ plugin.OnInvoicePaid             = (*Extension)(nil)
	_ plugin.OnInvoiceOverdue          = (*Extension)(nil)
	_ plugin.OnInvoiceVoided           = (*Extension)(nil)
	_ plugin.OnPaymentRecorded         = (*Extension)(nil)
	_ plugin.OnPaymentSucceeded        = (*Extension)(nil)
	_ plugin.OnPaymentFailed           = (*Extension)(nil)
	_ plugin.OnScheduledPaymentCreated = (*Extension)(nil)
	_ plugin.OnScheduledPaymentSettled = (*Extension)(nil)
	_ plugin.OnWebhookRejected         = (*Extension)(nil)
	_ plugin.OnWebhookIgnored          = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a single audit trail entry.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges billing lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Invoice lifecycle hooks
// ──────────────────────────────────────────────────

// OnInvoiceCreated implements plugin.OnInvoiceCreated.
func (e *Extension) OnInvoiceCreated(ctx context.Context, inv *invoice.Invoice) error {
	return e.record(ctx, ActionInvoiceCreated, SeverityInfo, OutcomeSuccess,
		ResourceInvoice, inv.ID.String(), CategoryBilling, "",
		"number", inv.Number,
		"customer_id", inv.CustomerID,
		"amount", inv.Amount.String(),
		"requires_deposit", inv.RequiresDeposit,
	)
}

// OnInvoiceSent implements plugin.OnInvoiceSent.
func (e *Extension) OnInvoiceSent(ctx context.Context, inv *invoice.Invoice) error {
	return e.record(ctx, ActionInvoiceSent, SeverityInfo, OutcomeSuccess,
		ResourceInvoice, inv.ID.String(), CategoryBilling, "",
		"customer_id", inv.CustomerID,
		"due_date", inv.DueDate,
	)
}

// OnInvoiceStatusChanged implements plugin.OnInvoiceStatusChanged.
func (e *Extension) OnInvoiceStatusChanged(ctx context.Context, inv *invoice.Invoice, from invoice.Status) error {
	return e.record(ctx, ActionInvoiceStatusChanged, SeverityInfo, OutcomeSuccess,
		ResourceInvoice, inv.ID.String(), CategoryBilling, "",
		"from", string(from),
		"to", string(inv.Status),
	)
}

// OnInvoicePaid implements plugin.OnInvoicePaid.
func (e *Extension) OnInvoicePaid(ctx context.Context, inv *invoice.Invoice) error {
	return e.record(ctx, ActionInvoicePaid, SeverityInfo, OutcomeSuccess,
		ResourceInvoice, inv.ID.String(), CategoryPayment, "",
		"customer_id", inv.CustomerID,
		"amount", inv.Amount.String(),
	)
}

// OnInvoiceOverdue implements plugin.OnInvoiceOverdue.
func (e *Extension) OnInvoiceOverdue(ctx context.Context, inv *invoice.Invoice) error {
	return e.record(ctx, ActionInvoiceOverdue, SeverityWarning, OutcomeFailure,
		ResourceInvoice, inv.ID.String(), CategoryBilling, "past due date",
		"customer_id", inv.CustomerID,
		"due_date", inv.DueDate,
	)
}

// OnInvoiceVoided implements plugin.OnInvoiceVoided.
func (e *Extension) OnInvoiceVoided(ctx context.Context, inv *invoice.Invoice, reason string) error {
	return e.record(ctx, ActionInvoiceVoided, SeverityWarning, OutcomeSuccess,
		ResourceInvoice, inv.ID.String(), CategoryBilling, reason,
		"customer_id", inv.CustomerID,
	)
}

// ──────────────────────────────────────────────────
// Payment lifecycle hooks
// ──────────────────────────────────────────────────

// OnPaymentRecorded implements plugin.OnPaymentRecorded.
func (e *Extension) OnPaymentRecorded(ctx context.Context, p *payment.Payment) error {
	return e.record(ctx, ActionPaymentRecorded, SeverityInfo, OutcomeSuccess,
		ResourcePayment, p.ID.String(), CategoryPayment, "",
		"invoice_id", p.InvoiceID.String(),
		"amount", p.Amount.String(),
		"method", string(p.Method),
	)
}

// OnPaymentSucceeded implements plugin.OnPaymentSucceeded.
func (e *Extension) OnPaymentSucceeded(ctx context.Context, p *payment.Payment) error {
	return e.record(ctx, ActionPaymentSucceeded, SeverityInfo, OutcomeSuccess,
		ResourcePayment, p.ID.String(), CategoryPayment, "",
		"invoice_id", p.InvoiceID.String(),
		"amount", p.Amount.String(),
		"gateway_txn_id", p.GatewayTxnID,
	)
}

// OnPaymentFailed implements plugin.OnPaymentFailed.
func (e *Extension) OnPaymentFailed(ctx context.Context, p *payment.Payment) error {
	return e.record(ctx, ActionPaymentFailed, SeverityError, OutcomeFailure,
		ResourcePayment, p.ID.String(), CategoryPayment, p.Notes,
		"invoice_id", p.InvoiceID.String(),
		"amount", p.Amount.String(),
		"gateway_txn_id", p.GatewayTxnID,
	)
}

// ──────────────────────────────────────────────────
// Scheduled payment hooks
// ──────────────────────────────────────────────────

// OnScheduledPaymentCreated implements plugin.OnScheduledPaymentCreated.
func (e *Extension) OnScheduledPaymentCreated(ctx context.Context, sp *schedule.ScheduledPayment) error {
	return e.record(ctx, ActionScheduleCreated, SeverityInfo, OutcomeSuccess,
		ResourceSchedule, sp.ID.String(), CategoryPayment, "",
		"invoice_id", sp.InvoiceID.String(),
		"amount", sp.Amount.String(),
		"scheduled_date", sp.ScheduledDate,
	)
}

// OnScheduledPaymentSettled implements plugin.OnScheduledPaymentSettled.
func (e *Extension) OnScheduledPaymentSettled(ctx context.Context, sp *schedule.ScheduledPayment) error {
	action, severity, outcome := ActionScheduleProcessed, SeverityInfo, OutcomeSuccess
	switch sp.Status {
	case schedule.StatusCancelled:
		action = ActionScheduleCancelled
	case schedule.StatusFailed:
		action, severity, outcome = ActionScheduleFailed, SeverityError, OutcomeFailure
	}

	return e.record(ctx, action, severity, outcome,
		ResourceSchedule, sp.ID.String(), CategoryPayment, sp.Notes,
		"invoice_id", sp.InvoiceID.String(),
		"payment_id", sp.PaymentID.String(),
	)
}

// ──────────────────────────────────────────────────
// Gateway hooks
// ──────────────────────────────────────────────────

// OnWebhookRejected implements plugin.OnWebhookRejected.
func (e *Extension) OnWebhookRejected(ctx context.Context, n gateway.Notification, reason string) error {
	return e.record(ctx, ActionWebhookRejected, SeverityCritical, OutcomeFailure,
		ResourceWebhook, n.OrderID, CategorySecurity, reason,
		"merchant_id", n.MerchantID,
		"gateway_payment_id", n.PaymentID,
		"status_code", n.StatusCode,
	)
}

// OnWebhookIgnored implements plugin.OnWebhookIgnored.
func (e *Extension) OnWebhookIgnored(ctx context.Context, n gateway.Notification, reason string) error {
	return e.record(ctx, ActionWebhookIgnored, SeverityWarning, OutcomeSuccess,
		ResourceWebhook, n.OrderID, CategoryIntegration, reason,
		"gateway_payment_id", n.PaymentID,
		"status_code", n.StatusCode,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
// Recorder failures are logged and swallowed.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	reason string,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
