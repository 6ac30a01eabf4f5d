package billing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/billing/id"
	"github.com/xraph/billing/payment"
	"github.com/xraph/billing/plugin"
	"github.com/xraph/billing/types"
)

// Recorder owns the payment lifecycle: a payment is recorded pending and
// settled exactly once. Settlement goes through Engine.SettlePayment, which
// holds the invoice lock and re-validates the balance.
type Recorder struct {
	store   payment.Store
	plugins *plugin.Registry
	logger  *slog.Logger
	now     func() time.Time
}

// Record stores a new pending payment.
func (r *Recorder) Record(ctx context.Context, invID id.InvoiceID, customerID string, amount types.Money, method payment.Method) (*payment.Payment, error) {
	return r.record(ctx, invID, customerID, amount, method, payment.StatusPending)
}

// recordSettled stores a payment that is already successful in a single
// write, so a failure cannot leave it pending.
func (r *Recorder) recordSettled(ctx context.Context, invID id.InvoiceID, customerID string, amount types.Money, method payment.Method) (*payment.Payment, error) {
	p, err := r.record(ctx, invID, customerID, amount, method, payment.StatusSuccess)
	if err != nil {
		return nil, err
	}
	r.logger.Info("payment settled",
		"payment_id", p.ID.String(),
		"invoice_id", p.InvoiceID.String(),
		"status", p.Status,
		"amount", p.Amount.String(),
	)
	r.plugins.EmitPaymentSettled(ctx, p)
	return p, nil
}

func (r *Recorder) record(ctx context.Context, invID id.InvoiceID, customerID string, amount types.Money, method payment.Method, status payment.Status) (*payment.Payment, error) {
	if !amount.IsPositive() {
		return nil, invalid(ErrInvalidAmount, "amount", "must be greater than zero")
	}
	if !method.Valid() {
		return nil, invalid(ErrInvalidMethod, "method", fmt.Sprintf("unknown method %q", method))
	}

	p := &payment.Payment{
		Entity:     types.NewEntityAt(r.now()),
		ID:         id.NewPaymentID(),
		InvoiceID:  invID,
		CustomerID: customerID,
		Amount:     types.New(amount.Amount, amount.Currency),
		Method:     method,
		Status:     status,
	}
	if err := r.store.CreatePayment(ctx, p); err != nil {
		return nil, err
	}

	r.logger.Debug("payment recorded",
		"payment_id", p.ID.String(),
		"invoice_id", invID.String(),
		"amount", p.Amount.String(),
		"method", p.Method,
	)
	r.plugins.EmitPaymentRecorded(ctx, p)

	return p, nil
}

// settle moves a pending payment to success or failure and reports whether
// this call performed the transition. Settling a payment that is already
// terminal is a no-op that returns the stored record.
func (r *Recorder) settle(ctx context.Context, payID id.PaymentID, s payment.Settlement) (*payment.Payment, bool, error) {
	if !s.Status.Terminal() {
		return nil, false, invalid(ErrInvalidInput, "status", fmt.Sprintf("cannot settle to %q", s.Status))
	}

	applied, err := r.store.SettlePayment(ctx, payID, s, r.now())
	if err != nil {
		return nil, false, err
	}

	p, err := r.store.GetPayment(ctx, payID)
	if err != nil {
		return nil, false, err
	}
	if !applied {
		r.logger.Debug("payment already settled",
			"payment_id", payID.String(),
			"status", p.Status,
		)
		return p, false, nil
	}

	r.logger.Info("payment settled",
		"payment_id", p.ID.String(),
		"invoice_id", p.InvoiceID.String(),
		"status", p.Status,
		"amount", p.Amount.String(),
	)
	r.plugins.EmitPaymentSettled(ctx, p)

	return p, true, nil
}

// Get returns a payment by ID.
func (r *Recorder) Get(ctx context.Context, payID id.PaymentID) (*payment.Payment, error) {
	return r.store.GetPayment(ctx, payID)
}

// ListByInvoice returns an invoice's payments, newest first.
func (r *Recorder) ListByInvoice(ctx context.Context, invID id.InvoiceID) ([]*payment.Payment, error) {
	return r.store.ListPaymentsByInvoice(ctx, invID)
}

// ListByCustomer returns a customer's payments, newest first.
func (r *Recorder) ListByCustomer(ctx context.Context, customerID string) ([]*payment.Payment, error) {
	return r.store.ListPaymentsByCustomer(ctx, customerID)
}

// TotalPaid sums the invoice's successful payments. It is always computed
// from the stored payments, never cached.
func (r *Recorder) TotalPaid(ctx context.Context, invID id.InvoiceID, currency string) (types.Money, error) {
	total, err := r.store.SumSucceeded(ctx, invID)
	if err != nil {
		return types.Money{}, err
	}
	return types.New(total, currency), nil
}
