// Package observability provides a metrics extension for the billing engine
// that records lifecycle event counts through a pluggable MetricFactory.
package observability

import (
	"context"

	"github.com/xraph/billing/gateway"
	"github.com/xraph/billing/invoice"
	"github.com/xraph/billing/payment"
	"github.com/xraph/billing/plugin"
	"github.com/xraph/billing/schedule"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin                    = (*MetricsExtension)(nil)
	_ plugin.OnInvoiceCreated          = (*MetricsExtension)(nil)
	_ plugin.OnInvoiceSent             = (*MetricsExtension)(nil)
	_ plugin.OnInvoicePaid             = (*MetricsExtension)(nil)
	_ plugin.OnInvoiceOverdue          = (*MetricsExtension)(nil)
	_ plugin.OnInvoiceVoided           = (*MetricsExtension)(nil)
	_ plugin.OnPaymentRecorded         = (*MetricsExtension)(nil)
	_ plugin.OnPaymentSucceeded        = (*MetricsExtension)(nil)
	_ plugin.OnPaymentFailed           = (*MetricsExtension)(nil)
	_ plugin.OnScheduledPaymentCreated = (*MetricsExtension)(nil)
	_ plugin.OnScheduledPaymentSettled = (*MetricsExtension)(nil)
	_ plugin.OnWebhookRejected         = (*MetricsExtension)(nil)
	_ plugin.OnWebhookIgnored          = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as a billing plugin to track invoice and payment volume.
type MetricsExtension struct {
	// Invoice metrics
	InvoiceCreated Counter
	InvoiceSent    Counter
	InvoicePaid    Counter
	InvoiceOverdue Counter
	InvoiceVoided  Counter
	InvoiceAmount  Histogram

	// Payment metrics
	PaymentRecorded  Counter
	PaymentSucceeded Counter
	PaymentFailed    Counter
	PaymentAmount    Histogram

	// Schedule metrics
	ScheduleCreated   Counter
	ScheduleProcessed Counter
	ScheduleCancelled Counter
	ScheduleFailed    Counter

	// Gateway metrics
	WebhookRejected Counter
	WebhookIgnored  Counter
}

// NewMetricsExtension creates a MetricsExtension whose metrics come from
// factory. Amount histograms observe major currency units.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		InvoiceCreated: factory.Counter("billing.invoice.created"),
		InvoiceSent:    factory.Counter("billing.invoice.sent"),
		InvoicePaid:    factory.Counter("billing.invoice.paid"),
		InvoiceOverdue: factory.Counter("billing.invoice.overdue"),
		InvoiceVoided:  factory.Counter("billing.invoice.voided"),
		InvoiceAmount:  factory.Histogram("billing.invoice.amount"),

		PaymentRecorded:  factory.Counter("billing.payment.recorded"),
		PaymentSucceeded: factory.Counter("billing.payment.succeeded"),
		PaymentFailed:    factory.Counter("billing.payment.failed"),
		PaymentAmount:    factory.Histogram("billing.payment.amount"),

		ScheduleCreated:   factory.Counter("billing.schedule.created"),
		ScheduleProcessed: factory.Counter("billing.schedule.processed"),
		ScheduleCancelled: factory.Counter("billing.schedule.cancelled"),
		ScheduleFailed:    factory.Counter("billing.schedule.failed"),

		WebhookRejected: factory.Counter("billing.webhook.rejected"),
		WebhookIgnored:  factory.Counter("billing.webhook.ignored"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// ──────────────────────────────────────────────────
// Invoice lifecycle hooks
// ──────────────────────────────────────────────────

// OnInvoiceCreated implements plugin.OnInvoiceCreated.
func (m *MetricsExtension) OnInvoiceCreated(_ context.Context, inv *invoice.Invoice) error {
	m.InvoiceCreated.Inc()
	m.InvoiceAmount.Observe(major(inv.Amount.Amount))
	return nil
}

// OnInvoiceSent implements plugin.OnInvoiceSent.
func (m *MetricsExtension) OnInvoiceSent(_ context.Context, _ *invoice.Invoice) error {
	m.InvoiceSent.Inc()
	return nil
}

// OnInvoicePaid implements plugin.OnInvoicePaid.
func (m *MetricsExtension) OnInvoicePaid(_ context.Context, _ *invoice.Invoice) error {
	m.InvoicePaid.Inc()
	return nil
}

// OnInvoiceOverdue implements plugin.OnInvoiceOverdue.
func (m *MetricsExtension) OnInvoiceOverdue(_ context.Context, _ *invoice.Invoice) error {
	m.InvoiceOverdue.Inc()
	return nil
}

// OnInvoiceVoided implements plugin.OnInvoiceVoided.
func (m *MetricsExtension) OnInvoiceVoided(_ context.Context, _ *invoice.Invoice, _ string) error {
	m.InvoiceVoided.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Payment lifecycle hooks
// ──────────────────────────────────────────────────

// OnPaymentRecorded implements plugin.OnPaymentRecorded.
func (m *MetricsExtension) OnPaymentRecorded(_ context.Context, _ *payment.Payment) error {
	m.PaymentRecorded.Inc()
	return nil
}

// OnPaymentSucceeded implements plugin.OnPaymentSucceeded.
func (m *MetricsExtension) OnPaymentSucceeded(_ context.Context, p *payment.Payment) error {
	m.PaymentSucceeded.Inc()
	m.PaymentAmount.Observe(major(p.Amount.Amount))
	return nil
}

// OnPaymentFailed implements plugin.OnPaymentFailed.
func (m *MetricsExtension) OnPaymentFailed(_ context.Context, _ *payment.Payment) error {
	m.PaymentFailed.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Schedule lifecycle hooks
// ──────────────────────────────────────────────────

// OnScheduledPaymentCreated implements plugin.OnScheduledPaymentCreated.
func (m *MetricsExtension) OnScheduledPaymentCreated(_ context.Context, _ *schedule.ScheduledPayment) error {
	m.ScheduleCreated.Inc()
	return nil
}

// OnScheduledPaymentSettled implements plugin.OnScheduledPaymentSettled.
func (m *MetricsExtension) OnScheduledPaymentSettled(_ context.Context, sp *schedule.ScheduledPayment) error {
	switch sp.Status {
	case schedule.StatusProcessed:
		m.ScheduleProcessed.Inc()
	case schedule.StatusCancelled:
		m.ScheduleCancelled.Inc()
	case schedule.StatusFailed:
		m.ScheduleFailed.Inc()
	}
	return nil
}

// ──────────────────────────────────────────────────
// Gateway hooks
// ──────────────────────────────────────────────────

// OnWebhookRejected implements plugin.OnWebhookRejected.
func (m *MetricsExtension) OnWebhookRejected(_ context.Context, _ gateway.Notification, _ string) error {
	m.WebhookRejected.Inc()
	return nil
}

// OnWebhookIgnored implements plugin.OnWebhookIgnored.
func (m *MetricsExtension) OnWebhookIgnored(_ context.Context, _ gateway.Notification, _ string) error {
	m.WebhookIgnored.Inc()
	return nil
}

// major converts minor units to major units for two-decimal currencies.
func major(minor int64) float64 { return float64(minor) / 100 }
