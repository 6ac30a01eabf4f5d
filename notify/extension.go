package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/billing/invoice"
	"github.com/xraph/billing/payment"
	"github.com/xraph/billing/plugin"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin             = (*Extension)(nil)
	_ plugin.OnShutdown         = (*Extension)(nil)
	_ plugin.OnInvoiceSent      = (*Extension)(nil)
	_ plugin.OnInvoicePaid      = (*Extension)(nil)
	_ plugin.OnInvoiceOverdue   = (*Extension)(nil)
	_ plugin.OnPaymentSucceeded = (*Extension)(nil)
	_ plugin.OnPaymentFailed    = (*Extension)(nil)
)

// Sender delivers a notification.
type Sender interface {
	Send(ctx context.Context, r Request) error
}

// Extension tells customers about their invoices and payments. Delivery is
// asynchronous; failures are logged and dropped.
type Extension struct {
	sender  Sender
	logger  *slog.Logger
	timeout time.Duration

	wg sync.WaitGroup
}

// Option configures an Extension.
type Option func(*Extension)

// WithLogger sets the logger for the extension.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extension) { e.logger = logger }
}

// WithTimeout bounds each delivery attempt.
func WithTimeout(d time.Duration) Option {
	return func(e *Extension) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// New creates an Extension delivering through s.
func New(s Sender, opts ...Option) *Extension {
	e := &Extension{
		sender:  s,
		logger:  slog.Default(),
		timeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "notify" }

// OnShutdown waits for in-flight deliveries.
func (e *Extension) OnShutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until every queued delivery has finished.
func (e *Extension) Wait() { e.wg.Wait() }

// OnInvoiceSent implements plugin.OnInvoiceSent.
func (e *Extension) OnInvoiceSent(_ context.Context, inv *invoice.Invoice) error {
	e.dispatch(Request{
		UserID:            inv.CustomerID,
		Type:              TypeInfo,
		Message:           fmt.Sprintf("New invoice %s issued", inv.Number),
		Details:           fmt.Sprintf("Amount due %s by %s", inv.Amount.String(), inv.DueDate.Format("2006-01-02")),
		RelatedEntityID:   inv.ID.String(),
		RelatedEntityType: EntityInvoice,
	})
	return nil
}

// OnInvoicePaid implements plugin.OnInvoicePaid.
func (e *Extension) OnInvoicePaid(_ context.Context, inv *invoice.Invoice) error {
	e.dispatch(Request{
		UserID:            inv.CustomerID,
		Type:              TypeSuccess,
		Message:           fmt.Sprintf("Invoice %s is fully paid", inv.Number),
		RelatedEntityID:   inv.ID.String(),
		RelatedEntityType: EntityInvoice,
	})
	return nil
}

// OnInvoiceOverdue implements plugin.OnInvoiceOverdue.
func (e *Extension) OnInvoiceOverdue(_ context.Context, inv *invoice.Invoice) error {
	e.dispatch(Request{
		UserID:            inv.CustomerID,
		Type:              TypeWarning,
		Message:           fmt.Sprintf("Invoice %s is overdue", inv.Number),
		Details:           fmt.Sprintf("Payment was due on %s", inv.DueDate.Format("2006-01-02")),
		RelatedEntityID:   inv.ID.String(),
		RelatedEntityType: EntityInvoice,
	})
	return nil
}

// OnPaymentSucceeded implements plugin.OnPaymentSucceeded.
func (e *Extension) OnPaymentSucceeded(_ context.Context, p *payment.Payment) error {
	e.dispatch(Request{
		UserID:            p.CustomerID,
		Type:              TypeSuccess,
		Message:           fmt.Sprintf("Payment of %s received", p.Amount.String()),
		RelatedEntityID:   p.ID.String(),
		RelatedEntityType: EntityPayment,
	})
	return nil
}

// OnPaymentFailed implements plugin.OnPaymentFailed.
func (e *Extension) OnPaymentFailed(_ context.Context, p *payment.Payment) error {
	e.dispatch(Request{
		UserID:            p.CustomerID,
		Type:              TypeError,
		Message:           fmt.Sprintf("Payment of %s failed", p.Amount.String()),
		Details:           p.Notes,
		RelatedEntityID:   p.ID.String(),
		RelatedEntityType: EntityPayment,
	})
	return nil
}

// dispatch sends r in the background. Hook contexts end with the hook, so
// delivery runs on its own deadline.
func (e *Extension) dispatch(r Request) {
	if r.UserID == "" {
		return
	}

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
		defer cancel()

		if err := e.sender.Send(ctx, r); err != nil {
			e.logger.Warn("notification delivery failed",
				"user_id", r.UserID,
				"type", r.Type,
				"related_entity_id", r.RelatedEntityID,
				"error", err,
			)
			return
		}
		e.logger.Debug("notification sent",
			"user_id", r.UserID,
			"type", r.Type,
		)
	}()
}
