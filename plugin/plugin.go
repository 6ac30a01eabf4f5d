// Package plugin lets extensions observe billing events. Every hook is
// optional; a plugin implements only the interfaces it cares about.
// Hooks run after the state change has been committed, and their failures
// are logged, never propagated.
package plugin

import (
	"context"

	"github.com/xraph/billing/gateway"
	"github.com/xraph/billing/invoice"
	"github.com/xraph/billing/payment"
	"github.com/xraph/billing/schedule"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the engine starts.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine any) error
}

// OnShutdown is called when the engine stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Invoice hooks
// ──────────────────────────────────────────────────

// OnInvoiceCreated is called when a draft invoice is created.
type OnInvoiceCreated interface {
	Plugin
	OnInvoiceCreated(ctx context.Context, inv *invoice.Invoice) error
}

// OnInvoiceSent is called when an invoice moves from draft to sent.
type OnInvoiceSent interface {
	Plugin
	OnInvoiceSent(ctx context.Context, inv *invoice.Invoice) error
}

// OnInvoiceStatusChanged is called whenever reconciliation changes an
// invoice's status.
type OnInvoiceStatusChanged interface {
	Plugin
	OnInvoiceStatusChanged(ctx context.Context, inv *invoice.Invoice, from invoice.Status) error
}

// OnInvoicePaid is called when an invoice becomes fully paid.
type OnInvoicePaid interface {
	Plugin
	OnInvoicePaid(ctx context.Context, inv *invoice.Invoice) error
}

// OnInvoiceOverdue is called when an invoice is first observed overdue.
type OnInvoiceOverdue interface {
	Plugin
	OnInvoiceOverdue(ctx context.Context, inv *invoice.Invoice) error
}

// OnInvoiceVoided is called when an invoice is voided.
type OnInvoiceVoided interface {
	Plugin
	OnInvoiceVoided(ctx context.Context, inv *invoice.Invoice, reason string) error
}

// ──────────────────────────────────────────────────
// Payment hooks
// ──────────────────────────────────────────────────

// OnPaymentRecorded is called when a pending payment is recorded.
type OnPaymentRecorded interface {
	Plugin
	OnPaymentRecorded(ctx context.Context, p *payment.Payment) error
}

// OnPaymentSucceeded is called when a payment settles successfully.
type OnPaymentSucceeded interface {
	Plugin
	OnPaymentSucceeded(ctx context.Context, p *payment.Payment) error
}

// OnPaymentFailed is called when a payment settles as failed.
type OnPaymentFailed interface {
	Plugin
	OnPaymentFailed(ctx context.Context, p *payment.Payment) error
}

// ──────────────────────────────────────────────────
// Scheduled payment hooks
// ──────────────────────────────────────────────────

// OnScheduledPaymentCreated is called when an installment is scheduled.
type OnScheduledPaymentCreated interface {
	Plugin
	OnScheduledPaymentCreated(ctx context.Context, sp *schedule.ScheduledPayment) error
}

// OnScheduledPaymentSettled is called when an installment leaves the
// scheduled state (processed, cancelled or failed).
type OnScheduledPaymentSettled interface {
	Plugin
	OnScheduledPaymentSettled(ctx context.Context, sp *schedule.ScheduledPayment) error
}

// ──────────────────────────────────────────────────
// Gateway hooks
// ──────────────────────────────────────────────────

// OnWebhookRejected is called when a notification fails verification.
type OnWebhookRejected interface {
	Plugin
	OnWebhookRejected(ctx context.Context, n gateway.Notification, reason string) error
}

// OnWebhookIgnored is called for notifications that are authentic but
// change nothing: unmatched orders and redeliveries.
type OnWebhookIgnored interface {
	Plugin
	OnWebhookIgnored(ctx context.Context, n gateway.Notification, reason string) error
}
