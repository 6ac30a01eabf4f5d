package audithook_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	audithook "github.com/xraph/billing/audit_hook"
	"github.com/xraph/billing/gateway"
	"github.com/xraph/billing/id"
	"github.com/xraph/billing/invoice"
	"github.com/xraph/billing/payment"
	"github.com/xraph/billing/schedule"
	"github.com/xraph/billing/types"
)

type memRecorder struct {
	mu     sync.Mutex
	events []*audithook.AuditEvent
}

func (r *memRecorder) Record(_ context.Context, evt *audithook.AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return nil
}

func TestExtensionRecordsEvents(t *testing.T) {
	ctx := context.Background()
	rec := &memRecorder{}
	ext := audithook.New(rec)

	inv := &invoice.Invoice{ID: id.NewInvoiceID(), CustomerID: "cus_1", Amount: types.LKR(1000)}
	p := &payment.Payment{ID: id.NewPaymentID(), InvoiceID: inv.ID, Amount: types.LKR(1000), Status: payment.StatusFailed, Notes: "PayHere status code: -2"}
	sp := &schedule.ScheduledPayment{ID: id.NewScheduledPaymentID(), InvoiceID: inv.ID, Status: schedule.StatusCancelled}

	_ = ext.OnInvoiceCreated(ctx, inv)
	_ = ext.OnPaymentFailed(ctx, p)
	_ = ext.OnScheduledPaymentSettled(ctx, sp)
	_ = ext.OnWebhookRejected(ctx, gateway.Notification{OrderID: inv.ID.String()}, "signature mismatch")

	tests := []struct {
		action   string
		resource string
		outcome  string
		reason   string
	}{
		{audithook.ActionInvoiceCreated, inv.ID.String(), audithook.OutcomeSuccess, ""},
		{audithook.ActionPaymentFailed, p.ID.String(), audithook.OutcomeFailure, p.Notes},
		{audithook.ActionScheduleCancelled, sp.ID.String(), audithook.OutcomeSuccess, ""},
		{audithook.ActionWebhookRejected, inv.ID.String(), audithook.OutcomeFailure, "signature mismatch"},
	}
	if len(rec.events) != len(tests) {
		t.Fatalf("expected %d events, got %d", len(tests), len(rec.events))
	}
	for i, tt := range tests {
		got := rec.events[i]
		if got.Action != tt.action || got.ResourceID != tt.resource || got.Outcome != tt.outcome || got.Reason != tt.reason {
			t.Errorf("event %d: got %+v", i, got)
		}
	}
	if rec.events[0].Metadata["customer_id"] != "cus_1" {
		t.Errorf("metadata not carried: %v", rec.events[0].Metadata)
	}
}

func TestExtensionFiltersActions(t *testing.T) {
	ctx := context.Background()
	inv := &invoice.Invoice{ID: id.NewInvoiceID(), Amount: types.LKR(1)}

	rec := &memRecorder{}
	ext := audithook.New(rec, audithook.WithEnabledActions(audithook.ActionInvoicePaid))
	_ = ext.OnInvoiceCreated(ctx, inv)
	_ = ext.OnInvoicePaid(ctx, inv)
	if len(rec.events) != 1 || rec.events[0].Action != audithook.ActionInvoicePaid {
		t.Errorf("enabled filter: %v", rec.events)
	}

	rec = &memRecorder{}
	ext = audithook.New(rec, audithook.WithDisabledActions(audithook.ActionInvoiceCreated))
	_ = ext.OnInvoiceCreated(ctx, inv)
	_ = ext.OnInvoicePaid(ctx, inv)
	if len(rec.events) != 1 || rec.events[0].Action != audithook.ActionInvoicePaid {
		t.Errorf("disabled filter: %v", rec.events)
	}
}

func TestExtensionSwallowsRecorderErrors(t *testing.T) {
	failing := audithook.RecorderFunc(func(context.Context, *audithook.AuditEvent) error {
		return errors.New("backend down")
	})
	ext := audithook.New(failing, audithook.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	err := ext.OnInvoicePaid(context.Background(), &invoice.Invoice{ID: id.NewInvoiceID()})
	if err != nil {
		t.Errorf("recorder errors must not propagate: %v", err)
	}
}
