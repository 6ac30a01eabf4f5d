package invoice

import (
	"context"
	"time"

	"github.com/xraph/billing/id"
)

// Store persists invoices together with their line items.
type Store interface {
	CreateInvoice(ctx context.Context, inv *Invoice) error
	GetInvoice(ctx context.Context, invID id.InvoiceID) (*Invoice, error)
	UpdateInvoice(ctx context.Context, inv *Invoice) error
	ListInvoices(ctx context.Context, opts ListOpts) ([]*Invoice, error)
	// ListOverdueInvoices returns unpaid or partially paid invoices whose
	// due date is before asOf.
	ListOverdueInvoices(ctx context.Context, asOf time.Time) ([]*Invoice, error)

	// AcquireInvoiceLock takes a lease on the invoice for owner until the
	// given time. It reports false without error while another owner holds
	// a lease that has not expired at now. Re-acquiring an owned lease
	// extends it.
	AcquireInvoiceLock(ctx context.Context, invID id.InvoiceID, owner string, now, until time.Time) (bool, error)

	// ReleaseInvoiceLock drops the lease if owner still holds it.
	ReleaseInvoiceLock(ctx context.Context, invID id.InvoiceID, owner string) error
}

// ListOpts filters invoice listings. Zero values mean "no filter".
type ListOpts struct {
	CustomerID string
	Status     Status
	Limit      int
	Offset     int
}
