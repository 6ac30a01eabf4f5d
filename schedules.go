package billing

import (
	"context"
	"time"

	"github.com/xraph/billing/id"
	"github.com/xraph/billing/plugin"
	"github.com/xraph/billing/schedule"
	"github.com/xraph/billing/types"
)

// Schedules owns scheduled-payment records and their transitions. It does
// not charge anyone; execution goes through Engine.ExecuteScheduledPayment.
type Schedules struct {
	store   schedule.Store
	plugins *plugin.Registry
	now     func() time.Time
}

func (s *Schedules) create(ctx context.Context, sp *schedule.ScheduledPayment) error {
	if sp.ID.IsNil() {
		sp.ID = id.NewScheduledPaymentID()
	}
	sp.Entity = types.NewEntityAt(s.now())
	sp.Status = schedule.StatusScheduled

	if err := s.store.CreateScheduledPayment(ctx, sp); err != nil {
		return err
	}

	s.plugins.EmitScheduledPaymentCreated(ctx, sp)
	return nil
}

// Get returns a scheduled payment by ID.
func (s *Schedules) Get(ctx context.Context, spID id.ScheduledPaymentID) (*schedule.ScheduledPayment, error) {
	return s.store.GetScheduledPayment(ctx, spID)
}

// ListByCustomer returns every scheduled payment of a customer.
func (s *Schedules) ListByCustomer(ctx context.Context, customerID string) ([]*schedule.ScheduledPayment, error) {
	return s.store.ListScheduledPayments(ctx, schedule.ListOpts{CustomerID: customerID})
}

// ListByInvoice returns every scheduled payment against an invoice.
func (s *Schedules) ListByInvoice(ctx context.Context, invID id.InvoiceID) ([]*schedule.ScheduledPayment, error) {
	return s.store.ListScheduledPayments(ctx, schedule.ListOpts{InvoiceID: invID})
}

// ListByStatus returns scheduled payments in the given status.
func (s *Schedules) ListByStatus(ctx context.Context, status schedule.Status) ([]*schedule.ScheduledPayment, error) {
	return s.store.ListScheduledPayments(ctx, schedule.ListOpts{Status: status})
}

// DueOn returns payments still scheduled for the calendar day of date.
func (s *Schedules) DueOn(ctx context.Context, date time.Time) ([]*schedule.ScheduledPayment, error) {
	return s.store.ListScheduledPayments(ctx, schedule.ListOpts{
		Status: schedule.StatusScheduled,
		On:     date,
	})
}

// Overdue returns payments still scheduled on or before date.
func (s *Schedules) Overdue(ctx context.Context, date time.Time) ([]*schedule.ScheduledPayment, error) {
	return s.store.ListScheduledPayments(ctx, schedule.ListOpts{
		Status:     schedule.StatusScheduled,
		OnOrBefore: date,
	})
}

// ScheduledTotal sums the amounts still scheduled against an invoice.
func (s *Schedules) ScheduledTotal(ctx context.Context, invID id.InvoiceID, currency string) (types.Money, error) {
	items, err := s.store.ListScheduledPayments(ctx, schedule.ListOpts{
		InvoiceID: invID,
		Status:    schedule.StatusScheduled,
	})
	if err != nil {
		return types.Money{}, err
	}

	total := types.Zero(currency)
	for _, sp := range items {
		total = total.Add(sp.Amount)
	}
	return total, nil
}

// Cancel moves a scheduled payment to cancelled.
func (s *Schedules) Cancel(ctx context.Context, spID id.ScheduledPaymentID, reason string) (*schedule.ScheduledPayment, error) {
	return s.transition(ctx, spID, schedule.Transition{Status: schedule.StatusCancelled, Notes: reason})
}

// MarkProcessed links the produced payment and moves to processed.
func (s *Schedules) MarkProcessed(ctx context.Context, spID id.ScheduledPaymentID, payID id.PaymentID) (*schedule.ScheduledPayment, error) {
	return s.transition(ctx, spID, schedule.Transition{Status: schedule.StatusProcessed, PaymentID: payID})
}

// MarkFailed records why execution failed.
func (s *Schedules) MarkFailed(ctx context.Context, spID id.ScheduledPaymentID, reason string) (*schedule.ScheduledPayment, error) {
	return s.transition(ctx, spID, schedule.Transition{Status: schedule.StatusFailed, Notes: reason})
}

func (s *Schedules) transition(ctx context.Context, spID id.ScheduledPaymentID, t schedule.Transition) (*schedule.ScheduledPayment, error) {
	applied, err := s.store.TransitionScheduledPayment(ctx, spID, t, s.now())
	if err != nil {
		return nil, err
	}

	sp, err := s.store.GetScheduledPayment(ctx, spID)
	if err != nil {
		return nil, err
	}
	if !applied {
		return sp, ErrScheduleNotPending
	}

	s.plugins.EmitScheduledPaymentSettled(ctx, sp)
	return sp, nil
}
