package plugin_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/xraph/billing/invoice"
	"github.com/xraph/billing/payment"
	"github.com/xraph/billing/plugin"
)

type recorder struct {
	name string
	err  error

	mu     sync.Mutex
	events []string
}

func (r *recorder) Name() string { return r.name }

func (r *recorder) record(ev string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

func (r *recorder) OnInvoiceStatusChanged(_ context.Context, inv *invoice.Invoice, from invoice.Status) error {
	return r.record(string(from) + "->" + string(inv.Status))
}

func (r *recorder) OnInvoicePaid(_ context.Context, _ *invoice.Invoice) error {
	return r.record("paid")
}

func (r *recorder) OnInvoiceOverdue(_ context.Context, _ *invoice.Invoice) error {
	return r.record("overdue")
}

func (r *recorder) OnPaymentSucceeded(_ context.Context, _ *payment.Payment) error {
	return r.record("succeeded")
}

func (r *recorder) OnPaymentFailed(_ context.Context, _ *payment.Payment) error {
	return r.record("failed")
}

func (r *recorder) got() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return strings.Join(r.events, ",")
}

type blocker struct{}

func (blocker) Name() string { return "blocker" }

func (blocker) OnPaymentSucceeded(context.Context, *payment.Payment) error {
	time.Sleep(200 * time.Millisecond)
	return nil
}

type panicker struct{}

func (panicker) Name() string { return "panicker" }

func (panicker) OnPaymentFailed(context.Context, *payment.Payment) error {
	panic("boom")
}

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestRegisterRejectsDuplicates(t *testing.T) {
	r := plugin.NewRegistry().WithLogger(quiet())
	if err := r.Register(&recorder{name: "audit"}); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(&recorder{name: "audit"}); err == nil {
		t.Fatal("expected duplicate registration error")
	}
	if r.Count() != 1 {
		t.Errorf("Count = %d, want 1", r.Count())
	}
	if r.Get("audit") == nil {
		t.Error("Get(audit) = nil")
	}
	if r.Get("missing") != nil {
		t.Error("Get(missing) should be nil")
	}
}

func TestStatusChangedImpliesPaidAndOverdue(t *testing.T) {
	tests := []struct {
		from, to invoice.Status
		want     string
	}{
		{invoice.StatusSent, invoice.StatusPartiallyPaid, "sent->partially_paid"},
		{invoice.StatusPartiallyPaid, invoice.StatusPaid, "partially_paid->paid,paid"},
		{invoice.StatusSent, invoice.StatusOverdue, "sent->overdue,overdue"},
	}

	for _, tt := range tests {
		t.Run(string(tt.to), func(t *testing.T) {
			rec := &recorder{name: "rec"}
			r := plugin.NewRegistry().WithLogger(quiet())
			if err := r.Register(rec); err != nil {
				t.Fatal(err)
			}
			r.EmitInvoiceStatusChanged(context.Background(), &invoice.Invoice{Status: tt.to}, tt.from)
			if got := rec.got(); got != tt.want {
				t.Errorf("events = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPaymentSettledDispatchesByStatus(t *testing.T) {
	rec := &recorder{name: "rec"}
	r := plugin.NewRegistry().WithLogger(quiet())
	if err := r.Register(rec); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	r.EmitPaymentSettled(ctx, &payment.Payment{Status: payment.StatusSuccess})
	r.EmitPaymentSettled(ctx, &payment.Payment{Status: payment.StatusFailed})
	r.EmitPaymentSettled(ctx, &payment.Payment{Status: payment.StatusPending})

	if got := rec.got(); got != "succeeded,failed" {
		t.Errorf("events = %q", got)
	}
}

func TestHookFailuresAreContained(t *testing.T) {
	rec := &recorder{name: "rec", err: errors.New("sink down")}
	r := plugin.NewRegistry().WithLogger(quiet()).WithTimeout(20 * time.Millisecond)
	for _, p := range []plugin.Plugin{blocker{}, panicker{}, rec} {
		if err := r.Register(p); err != nil {
			t.Fatal(err)
		}
	}

	ctx := context.Background()
	start := time.Now()
	r.EmitPaymentSettled(ctx, &payment.Payment{Status: payment.StatusSuccess})
	r.EmitPaymentSettled(ctx, &payment.Payment{Status: payment.StatusFailed})

	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("blocked for %v", elapsed)
	}
	if got := rec.got(); got != "succeeded,failed" {
		t.Errorf("events = %q, later plugins must still run", got)
	}
}
