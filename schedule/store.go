package schedule

import (
	"context"
	"time"

	"github.com/xraph/billing/id"
)

// Store persists scheduled payments.
type Store interface {
	CreateScheduledPayment(ctx context.Context, sp *ScheduledPayment) error
	GetScheduledPayment(ctx context.Context, spID id.ScheduledPaymentID) (*ScheduledPayment, error)
	ListScheduledPayments(ctx context.Context, opts ListOpts) ([]*ScheduledPayment, error)

	// TransitionScheduledPayment moves a scheduled payment out of the
	// scheduled state. It reports false when it had already left it.
	TransitionScheduledPayment(ctx context.Context, spID id.ScheduledPaymentID, t Transition, at time.Time) (bool, error)
}

// ListOpts filters scheduled payment listings. Dates compare on the
// calendar day; zero values mean "no filter".
type ListOpts struct {
	CustomerID string
	InvoiceID  id.InvoiceID
	Status     Status
	On         time.Time // scheduled_date == On
	OnOrBefore time.Time // scheduled_date <= OnOrBefore
}
