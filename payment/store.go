package payment

import (
	"context"
	"time"

	"github.com/xraph/billing/id"
)

// Store persists payments. List methods return newest first.
type Store interface {
	CreatePayment(ctx context.Context, p *Payment) error
	GetPayment(ctx context.Context, payID id.PaymentID) (*Payment, error)
	ListPaymentsByInvoice(ctx context.Context, invID id.InvoiceID) ([]*Payment, error)
	ListPaymentsByCustomer(ctx context.Context, customerID string) ([]*Payment, error)
	GetPaymentByGatewayTxn(ctx context.Context, txnID string) (*Payment, error)

	// SettlePayment moves a payment out of pending. It reports false
	// without error when the payment was no longer pending.
	SettlePayment(ctx context.Context, payID id.PaymentID, s Settlement, at time.Time) (bool, error)

	// SumSucceeded totals successful payments for an invoice in minor units.
	SumSucceeded(ctx context.Context, invID id.InvoiceID) (int64, error)
}
