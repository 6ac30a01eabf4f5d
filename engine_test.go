package billing_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/billing"
	"github.com/xraph/billing/gateway"
	"github.com/xraph/billing/id"
	"github.com/xraph/billing/invoice"
	"github.com/xraph/billing/payment"
	"github.com/xraph/billing/schedule"
	"github.com/xraph/billing/store/memory"
	"github.com/xraph/billing/types"
)

const customerID = "cus_42"

var baseTime = time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newEngine(t *testing.T, opts ...billing.Option) (*billing.Engine, *testClock) {
	t.Helper()

	clock := &testClock{t: baseTime}
	all := append([]billing.Option{
		billing.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		billing.WithClock(clock.Now),
		billing.WithGateway(gateway.Config{MerchantID: "M1", MerchantSecret: "S1", Sandbox: true}),
	}, opts...)

	e := billing.New(memory.New(), all...)
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() { _ = e.Stop() })
	return e, clock
}

func sentInvoice(t *testing.T, e *billing.Engine, amount int64) *invoice.Invoice {
	t.Helper()
	ctx := context.Background()

	inv := &invoice.Invoice{
		CustomerID: customerID,
		ServiceRef: "svc_1",
		LineItems: []invoice.LineItem{
			{Description: "Service", Quantity: 1, UnitPrice: types.LKR(amount), Type: invoice.ItemServiceFee},
		},
	}
	if err := e.CreateInvoice(ctx, inv); err != nil {
		t.Fatalf("create invoice: %v", err)
	}
	sent, err := e.SendInvoice(ctx, inv.ID)
	if err != nil {
		t.Fatalf("send invoice: %v", err)
	}
	return sent
}

func summary(t *testing.T, e *billing.Engine, inv *invoice.Invoice) *invoice.Summary {
	t.Helper()
	s, err := e.InvoiceSummary(context.Background(), inv.ID, billing.Customer(customerID))
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	return s
}

func TestApplyDirectPayment(t *testing.T) {
	tests := []struct {
		name       string
		amount     int64
		pay        int64
		method     payment.Method
		wantStatus invoice.Status
		wantPay    payment.Status
		wantBal    int64
	}{
		{"full cash payment", 700000, 700000, payment.MethodCash, invoice.StatusPaid, payment.StatusSuccess, 0},
		{"partial bank transfer", 2200000, 1000000, payment.MethodBankTransfer, invoice.StatusPartiallyPaid, payment.StatusSuccess, 1200000},
		{"card stays pending", 500000, 500000, payment.MethodCard, invoice.StatusSent, payment.StatusPending, 500000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newEngine(t)
			inv := sentInvoice(t, e, tt.amount)

			p, err := e.ApplyDirectPayment(context.Background(), inv.ID, types.LKR(tt.pay), tt.method, customerID)
			if err != nil {
				t.Fatalf("apply: %v", err)
			}
			if p.Status != tt.wantPay {
				t.Errorf("payment status: got %s, want %s", p.Status, tt.wantPay)
			}

			s := summary(t, e, inv)
			if s.Status != tt.wantStatus {
				t.Errorf("invoice status: got %s, want %s", s.Status, tt.wantStatus)
			}
			if s.Balance.Amount != tt.wantBal {
				t.Errorf("balance: got %d, want %d", s.Balance.Amount, tt.wantBal)
			}
		})
	}
}

func TestApplyDirectPaymentRejections(t *testing.T) {
	ctx := context.Background()

	t.Run("overpayment", func(t *testing.T) {
		e, _ := newEngine(t)
		inv := sentInvoice(t, e, 100000)

		_, err := e.ApplyDirectPayment(ctx, inv.ID, types.LKR(150000), payment.MethodCash, customerID)
		if !errors.Is(err, billing.ErrInvalidPayment) {
			t.Fatalf("expected ErrInvalidPayment, got %v", err)
		}

		if s := summary(t, e, inv); s.Status != invoice.StatusSent || s.TotalPaid.Amount != 0 {
			t.Errorf("invoice changed: status %s, paid %d", s.Status, s.TotalPaid.Amount)
		}
		payments, _ := e.Payments().ListByInvoice(ctx, inv.ID)
		if len(payments) != 0 {
			t.Errorf("expected no payments, got %d", len(payments))
		}
	})

	t.Run("overpayment after partial", func(t *testing.T) {
		e, _ := newEngine(t)
		inv := sentInvoice(t, e, 100000)

		if _, err := e.ApplyDirectPayment(ctx, inv.ID, types.LKR(60000), payment.MethodCash, customerID); err != nil {
			t.Fatalf("first payment: %v", err)
		}
		_, err := e.ApplyDirectPayment(ctx, inv.ID, types.LKR(60000), payment.MethodCash, customerID)
		if !errors.Is(err, billing.ErrInvalidPayment) {
			t.Fatalf("expected ErrInvalidPayment, got %v", err)
		}
	})

	t.Run("non-positive amount", func(t *testing.T) {
		e, _ := newEngine(t)
		inv := sentInvoice(t, e, 100000)

		for _, amt := range []int64{0, -100} {
			_, err := e.ApplyDirectPayment(ctx, inv.ID, types.LKR(amt), payment.MethodCash, customerID)
			if !errors.Is(err, billing.ErrInvalidPayment) {
				t.Errorf("amount %d: expected ErrInvalidPayment, got %v", amt, err)
			}
		}
	})

	t.Run("currency mismatch", func(t *testing.T) {
		e, _ := newEngine(t)
		inv := sentInvoice(t, e, 100000)

		_, err := e.ApplyDirectPayment(ctx, inv.ID, types.USD(100), payment.MethodCash, customerID)
		if !errors.Is(err, billing.ErrInvalidPayment) {
			t.Fatalf("expected ErrInvalidPayment, got %v", err)
		}
	})

	t.Run("wrong customer", func(t *testing.T) {
		e, _ := newEngine(t)
		inv := sentInvoice(t, e, 100000)

		_, err := e.ApplyDirectPayment(ctx, inv.ID, types.LKR(100), payment.MethodCash, "cus_other")
		if !errors.Is(err, billing.ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("unknown invoice", func(t *testing.T) {
		e, _ := newEngine(t)

		_, err := e.ApplyDirectPayment(ctx, id.NewInvoiceID(), types.LKR(100), payment.MethodCash, customerID)
		if !errors.Is(err, billing.ErrInvoiceNotFound) {
			t.Fatalf("expected ErrInvoiceNotFound, got %v", err)
		}
	})

	t.Run("draft invoice", func(t *testing.T) {
		e, _ := newEngine(t)
		inv := &invoice.Invoice{
			CustomerID: customerID,
			LineItems:  []invoice.LineItem{{Description: "x", Quantity: 1, UnitPrice: types.LKR(100)}},
		}
		if err := e.CreateInvoice(ctx, inv); err != nil {
			t.Fatalf("create: %v", err)
		}

		_, err := e.ApplyDirectPayment(ctx, inv.ID, types.LKR(100), payment.MethodCash, customerID)
		if !errors.Is(err, billing.ErrInvalidPayment) {
			t.Fatalf("expected ErrInvalidPayment, got %v", err)
		}
	})

	t.Run("void invoice", func(t *testing.T) {
		e, _ := newEngine(t)
		inv := sentInvoice(t, e, 100000)

		if _, err := e.VoidInvoice(ctx, inv.ID, "duplicate"); err != nil {
			t.Fatalf("void: %v", err)
		}
		_, err := e.ApplyDirectPayment(ctx, inv.ID, types.LKR(100), payment.MethodCash, customerID)
		if !errors.Is(err, billing.ErrInvalidPayment) {
			t.Fatalf("expected ErrInvalidPayment, got %v", err)
		}
		if s := summary(t, e, inv); s.Status != invoice.StatusVoid {
			t.Errorf("status: got %s, want void", s.Status)
		}
	})
}

func TestConcurrentDirectPayments(t *testing.T) {
	e, _ := newEngine(t)
	inv := sentInvoice(t, e, 100000)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.ApplyDirectPayment(context.Background(), inv.ID, types.LKR(60000), payment.MethodCash, customerID)
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			} else if !errors.Is(err, billing.ErrInvalidPayment) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 1 {
		t.Errorf("expected exactly one payment to pass the balance check, got %d", succeeded)
	}
	if s := summary(t, e, inv); s.TotalPaid.Amount > s.Amount.Amount {
		t.Errorf("total paid %d exceeds amount %d", s.TotalPaid.Amount, s.Amount.Amount)
	}
}

func TestCreateInvoice(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)

	inv := &invoice.Invoice{
		CustomerID: customerID,
		Amount:     types.LKR(1), // ignored
		LineItems: []invoice.LineItem{
			{Description: "Labor", Quantity: 3, UnitPrice: types.LKR(150000), Amount: types.LKR(9), Type: invoice.ItemLabor},
			{Description: "Brake pads", Quantity: 2, UnitPrice: types.LKR(25050), Type: invoice.ItemParts},
			{Description: "Disposal", Quantity: 1, UnitPrice: types.LKR(1000)},
		},
	}
	if err := e.CreateInvoice(ctx, inv); err != nil {
		t.Fatalf("create: %v", err)
	}

	if inv.Amount.Amount != 450000+50100+1000 {
		t.Errorf("amount: got %d", inv.Amount.Amount)
	}
	if inv.LineItems[0].Amount.Amount != 450000 {
		t.Errorf("line total: got %d", inv.LineItems[0].Amount.Amount)
	}
	if inv.LineItems[2].Type != invoice.ItemOther {
		t.Errorf("default item type: got %q", inv.LineItems[2].Type)
	}
	if inv.Status != invoice.StatusDraft {
		t.Errorf("status: got %s", inv.Status)
	}
	if want := "INV-" + strings.ToUpper(inv.ID.Suffix()[:8]); inv.Number != want {
		t.Errorf("number: got %s, want %s", inv.Number, want)
	}
	if !inv.DueDate.Equal(baseTime.Add(30 * 24 * time.Hour)) {
		t.Errorf("due date: got %v", inv.DueDate)
	}
	if inv.Currency != billing.DefaultCurrency {
		t.Errorf("currency: got %s", inv.Currency)
	}
}

func TestCreateInvoiceValidation(t *testing.T) {
	tests := []struct {
		name string
		inv  *invoice.Invoice
		want error
	}{
		{"no items", &invoice.Invoice{CustomerID: customerID}, billing.ErrInvalidLineItem},
		{"no customer", &invoice.Invoice{LineItems: []invoice.LineItem{
			{Description: "x", Quantity: 1, UnitPrice: types.LKR(100)},
		}}, billing.ErrInvalidInput},
		{"zero quantity", &invoice.Invoice{CustomerID: customerID, LineItems: []invoice.LineItem{
			{Description: "x", Quantity: 0, UnitPrice: types.LKR(100)},
		}}, billing.ErrInvalidLineItem},
		{"negative price", &invoice.Invoice{CustomerID: customerID, LineItems: []invoice.LineItem{
			{Description: "x", Quantity: 1, UnitPrice: types.LKR(-100)},
		}}, billing.ErrInvalidLineItem},
		{"deposit too large", &invoice.Invoice{CustomerID: customerID, RequiresDeposit: true, DepositAmount: types.LKR(500),
			LineItems: []invoice.LineItem{{Description: "x", Quantity: 1, UnitPrice: types.LKR(100)}},
		}, billing.ErrInvalidInput},
		{"due before issue", &invoice.Invoice{CustomerID: customerID,
			IssueDate: baseTime, DueDate: baseTime.Add(-48 * time.Hour),
			LineItems: []invoice.LineItem{{Description: "x", Quantity: 1, UnitPrice: types.LKR(100)}},
		}, billing.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newEngine(t)
			err := e.CreateInvoice(context.Background(), tt.inv)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestSendAndVoidTransitions(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)

	inv := sentInvoice(t, e, 100000)

	again, err := e.SendInvoice(ctx, inv.ID)
	if err != nil || again.Status != invoice.StatusSent {
		t.Fatalf("resend should be a no-op: %v %v", again, err)
	}

	paid := sentInvoice(t, e, 5000)
	if _, err := e.ApplyDirectPayment(ctx, paid.ID, types.LKR(5000), payment.MethodCash, customerID); err != nil {
		t.Fatalf("pay: %v", err)
	}
	if _, err := e.VoidInvoice(ctx, paid.ID, "mistake"); !errors.Is(err, billing.ErrInvalidTransition) {
		t.Errorf("voiding a paid invoice: expected ErrInvalidTransition, got %v", err)
	}

	voided, err := e.VoidInvoice(ctx, inv.ID, "customer cancelled")
	if err != nil {
		t.Fatalf("void: %v", err)
	}
	if voided.VoidedAt == nil || voided.VoidReason != "customer cancelled" {
		t.Errorf("void metadata not recorded: %+v", voided)
	}
	if _, err := e.SendInvoice(ctx, inv.ID); !errors.Is(err, billing.ErrInvoiceVoid) {
		t.Errorf("sending a void invoice: expected ErrInvoiceVoid, got %v", err)
	}
	if _, err := e.VoidInvoice(ctx, inv.ID, "again"); err != nil {
		t.Errorf("second void should be a no-op: %v", err)
	}
}

func TestOverdueDerivation(t *testing.T) {
	ctx := context.Background()
	e, clock := newEngine(t)

	inv := &invoice.Invoice{
		CustomerID: customerID,
		DueDate:    baseTime.Add(5 * 24 * time.Hour),
		LineItems:  []invoice.LineItem{{Description: "x", Quantity: 1, UnitPrice: types.LKR(100000)}},
	}
	if err := e.CreateInvoice(ctx, inv); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := e.SendInvoice(ctx, inv.ID); err != nil {
		t.Fatalf("send: %v", err)
	}

	// Still within terms on the due date itself.
	clock.Advance(5 * 24 * time.Hour)
	if s := summary(t, e, inv); s.Status != invoice.StatusSent {
		t.Fatalf("on due date: got %s, want sent", s.Status)
	}

	clock.Advance(24 * time.Hour)
	if s := summary(t, e, inv); s.Status != invoice.StatusOverdue {
		t.Fatalf("after due date: got %s, want overdue", s.Status)
	}

	overdue, err := e.ListOverdueInvoices(ctx)
	if err != nil {
		t.Fatalf("list overdue: %v", err)
	}
	if len(overdue) != 1 || overdue[0].ID != inv.ID {
		t.Fatalf("expected the invoice to be listed overdue, got %d", len(overdue))
	}

	if _, err := e.ApplyDirectPayment(ctx, inv.ID, types.LKR(40000), payment.MethodCash, customerID); err != nil {
		t.Fatalf("partial: %v", err)
	}
	if s := summary(t, e, inv); s.Status != invoice.StatusOverdue {
		t.Errorf("partially paid past due: got %s, want overdue", s.Status)
	}

	if _, err := e.ApplyDirectPayment(ctx, inv.ID, types.LKR(60000), payment.MethodCash, customerID); err != nil {
		t.Fatalf("remainder: %v", err)
	}
	if s := summary(t, e, inv); s.Status != invoice.StatusPaid || !s.Balance.IsZero() {
		t.Errorf("after full payment: got %s balance %d", s.Status, s.Balance.Amount)
	}
}

func TestDepositAttribution(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)

	inv := &invoice.Invoice{
		CustomerID:      customerID,
		RequiresDeposit: true,
		LineItems:       []invoice.LineItem{{Description: "Project", Quantity: 1, UnitPrice: types.LKR(100001)}},
	}
	if err := e.CreateInvoice(ctx, inv); err != nil {
		t.Fatalf("create: %v", err)
	}
	if inv.DepositAmount.Amount != 50000 || inv.FinalAmount.Amount != 50001 {
		t.Fatalf("split: deposit %d final %d", inv.DepositAmount.Amount, inv.FinalAmount.Amount)
	}
	if _, err := e.SendInvoice(ctx, inv.ID); err != nil {
		t.Fatalf("send: %v", err)
	}

	steps := []struct {
		pay         int64
		depositPaid int64
		finalPaid   int64
		depositDone bool
		finalDone   bool
	}{
		{30000, 30000, 0, false, false},
		{40000, 50000, 20000, true, false},
		{30001, 50000, 50001, true, true},
	}

	for i, st := range steps {
		if _, err := e.ApplyDirectPayment(ctx, inv.ID, types.LKR(st.pay), payment.MethodBankTransfer, customerID); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		got, err := e.GetInvoice(ctx, inv.ID, billing.Customer(customerID))
		if err != nil {
			t.Fatalf("step %d get: %v", i, err)
		}
		if got.DepositPaid.Amount != st.depositPaid || got.FinalPaid.Amount != st.finalPaid {
			t.Errorf("step %d: deposit %d final %d", i, got.DepositPaid.Amount, got.FinalPaid.Amount)
		}
		if (got.DepositPaidAt != nil) != st.depositDone || (got.FinalPaidAt != nil) != st.finalDone {
			t.Errorf("step %d: paid-at markers deposit=%v final=%v", i, got.DepositPaidAt != nil, got.FinalPaidAt != nil)
		}
	}
}

func TestRoleAwareAccess(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)

	mine := sentInvoice(t, e, 1000)
	other := &invoice.Invoice{
		CustomerID: "cus_other",
		LineItems:  []invoice.LineItem{{Description: "x", Quantity: 1, UnitPrice: types.LKR(100)}},
	}
	if err := e.CreateInvoice(ctx, other); err != nil {
		t.Fatalf("create: %v", err)
	}

	list, err := e.ListInvoices(ctx, billing.Customer(customerID), invoice.ListOpts{CustomerID: "cus_other"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ID != mine.ID {
		t.Errorf("customer should only see their own invoice, got %d", len(list))
	}

	all, err := e.ListInvoices(ctx, billing.Actor{ID: "emp_1", Role: billing.RoleEmployee}, invoice.ListOpts{})
	if err != nil {
		t.Fatalf("list staff: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("staff should see all invoices, got %d", len(all))
	}

	if _, err := e.GetInvoice(ctx, other.ID, billing.Customer(customerID)); !errors.Is(err, billing.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := e.GetInvoice(ctx, other.ID, billing.Actor{ID: "adm", Role: billing.RoleAdmin}); err != nil {
		t.Errorf("admin get: %v", err)
	}

	p, err := e.ApplyDirectPayment(ctx, mine.ID, types.LKR(500), payment.MethodCash, customerID)
	if err != nil {
		t.Fatalf("pay: %v", err)
	}
	if _, err := e.GetPayment(ctx, p.ID, billing.Customer("cus_other")); !errors.Is(err, billing.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
	history, err := e.PaymentHistory(ctx, customerID, billing.Customer(customerID))
	if err != nil || len(history) != 1 {
		t.Errorf("history: %d %v", len(history), err)
	}
}

func TestPaymentsNewestFirst(t *testing.T) {
	ctx := context.Background()
	e, clock := newEngine(t)
	inv := sentInvoice(t, e, 10000)

	for _, amt := range []int64{100, 200, 300} {
		if _, err := e.ApplyDirectPayment(ctx, inv.ID, types.LKR(amt), payment.MethodCash, customerID); err != nil {
			t.Fatalf("pay: %v", err)
		}
		clock.Advance(time.Minute)
	}

	payments, err := e.InvoicePayments(ctx, inv.ID, billing.Customer(customerID))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(payments) != 3 || payments[0].Amount.Amount != 300 || payments[2].Amount.Amount != 100 {
		t.Errorf("unexpected order: %v", payments)
	}
}

func TestSettlePaymentIsIdempotent(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)
	inv := sentInvoice(t, e, 10000)

	p, err := e.Payments().Record(ctx, inv.ID, customerID, types.LKR(100), payment.MethodCard)
	if err != nil {
		t.Fatalf("record: %v", err)
	}

	first, err := e.SettlePayment(ctx, p.ID, payment.Settlement{Status: payment.StatusFailed, Notes: "declined"})
	if err != nil || first.Status != payment.StatusFailed {
		t.Fatalf("first settle: %v %v", first, err)
	}
	second, err := e.SettlePayment(ctx, p.ID, payment.Settlement{Status: payment.StatusSuccess})
	if err != nil {
		t.Fatalf("second settle: %v", err)
	}
	if second.Status != payment.StatusFailed || second.Notes != "declined" {
		t.Errorf("terminal payment changed: %+v", second)
	}

	if _, err := e.Payments().Record(ctx, inv.ID, customerID, types.LKR(0), payment.MethodCash); !errors.Is(err, billing.ErrInvalidAmount) {
		t.Errorf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := e.SettlePayment(ctx, p.ID, payment.Settlement{Status: payment.StatusPending}); !errors.Is(err, billing.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := e.SettlePayment(ctx, id.NewPaymentID(), payment.Settlement{Status: payment.StatusSuccess}); !errors.Is(err, billing.ErrPaymentNotFound) {
		t.Errorf("expected ErrPaymentNotFound, got %v", err)
	}
}

func TestSettlePaymentRevalidatesSuccess(t *testing.T) {
	ctx := context.Background()

	t.Run("pending payments exceeding the balance", func(t *testing.T) {
		e, _ := newEngine(t)
		inv := sentInvoice(t, e, 100000)

		var pending []*payment.Payment
		for range 2 {
			p, err := e.ApplyDirectPayment(ctx, inv.ID, types.LKR(100000), payment.MethodCard, customerID)
			if err != nil {
				t.Fatalf("apply: %v", err)
			}
			pending = append(pending, p)
		}

		var statuses []payment.Status
		for _, p := range pending {
			got, err := e.SettlePayment(ctx, p.ID, payment.Settlement{Status: payment.StatusSuccess})
			if err != nil {
				t.Fatalf("settle: %v", err)
			}
			statuses = append(statuses, got.Status)
		}
		if statuses[0] != payment.StatusSuccess || statuses[1] != payment.StatusFailed {
			t.Errorf("statuses = %v, want [success failed]", statuses)
		}

		s := summary(t, e, inv)
		if s.TotalPaid.Amount != 100000 || s.Status != invoice.StatusPaid {
			t.Errorf("total paid %d status %s, want 100000 paid", s.TotalPaid.Amount, s.Status)
		}
	})

	t.Run("void invoice", func(t *testing.T) {
		e, _ := newEngine(t)
		inv := sentInvoice(t, e, 100000)

		p, err := e.ApplyDirectPayment(ctx, inv.ID, types.LKR(40000), payment.MethodCard, customerID)
		if err != nil {
			t.Fatalf("apply: %v", err)
		}
		if _, err := e.VoidInvoice(ctx, inv.ID, "duplicate"); err != nil {
			t.Fatalf("void: %v", err)
		}

		got, err := e.SettlePayment(ctx, p.ID, payment.Settlement{Status: payment.StatusSuccess})
		if err != nil {
			t.Fatalf("settle: %v", err)
		}
		if got.Status != payment.StatusFailed || !strings.Contains(got.Notes, "void") {
			t.Errorf("payment = %s %q, want failed on void invoice", got.Status, got.Notes)
		}
	})
}

// notify builds a correctly signed notification for the test merchant.
func notify(orderID, paymentID, amount, status string) gateway.Notification {
	return gateway.SignNotification(gateway.Notification{
		MerchantID: "M1",
		OrderID:    orderID,
		PaymentID:  paymentID,
		Amount:     amount,
		Currency:   "LKR",
		StatusCode: status,
	}, "S1")
}

func initiate(t *testing.T, e *billing.Engine, inv *invoice.Invoice, amount int64) *gateway.InitiationParams {
	t.Helper()
	params, err := e.InitiateGatewayPayment(context.Background(), inv.ID, types.LKR(amount), gateway.Customer{
		CustomerID: customerID,
		FirstName:  "Nimal",
		Email:      "nimal@example.com",
	})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	return params
}

func paymentID(t *testing.T, s string) id.PaymentID {
	t.Helper()
	pid, err := id.ParsePaymentID(s)
	if err != nil {
		t.Fatalf("parse payment id %q: %v", s, err)
	}
	return pid
}

func TestGatewayRoundTrip(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)
	inv := sentInvoice(t, e, 50000)

	params := initiate(t, e, inv, 50000)
	if params.OrderID != inv.ID.String() || params.Amount != "500.00" || params.Currency != "LKR" {
		t.Fatalf("unexpected params: %+v", params)
	}
	if want := gateway.Sign("M1", inv.ID.String(), "500.00", "LKR", "S1"); params.Hash != want {
		t.Errorf("hash: got %s, want %s", params.Hash, want)
	}
	if params.Items != "Invoice "+inv.Number {
		t.Errorf("items: got %q", params.Items)
	}

	pending, err := e.GetPayment(ctx, paymentID(t, params.PaymentID), billing.Customer(customerID))
	if err != nil {
		t.Fatalf("get payment: %v", err)
	}
	if pending.Status != payment.StatusPending || pending.Method != payment.MethodOnline {
		t.Fatalf("expected pending online payment, got %s %s", pending.Status, pending.Method)
	}

	p, err := e.ProcessGatewayNotification(ctx, notify(inv.ID.String(), "PH1", "500.00", gateway.StatusCodeSuccess))
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if p == nil || p.ID != pending.ID {
		t.Fatalf("notification matched the wrong payment: %v", p)
	}
	if p.Status != payment.StatusSuccess || p.GatewayTxnID != "PH1" {
		t.Errorf("payment: status %s txn %q", p.Status, p.GatewayTxnID)
	}
	if s := summary(t, e, inv); s.Status != invoice.StatusPaid {
		t.Errorf("invoice status: got %s, want paid", s.Status)
	}

	t.Run("duplicate delivery", func(t *testing.T) {
		again, err := e.ProcessGatewayNotification(ctx, notify(inv.ID.String(), "PH1", "500.00", gateway.StatusCodeSuccess))
		if err != nil {
			t.Fatalf("duplicate: %v", err)
		}
		if again == nil || again.ID != p.ID || again.Status != payment.StatusSuccess {
			t.Errorf("duplicate should return the settled payment unchanged: %v", again)
		}
		payments, _ := e.Payments().ListByInvoice(ctx, inv.ID)
		if len(payments) != 1 {
			t.Errorf("expected 1 payment, got %d", len(payments))
		}
		if s := summary(t, e, inv); s.TotalPaid.Amount != 50000 {
			t.Errorf("total paid counted twice: %d", s.TotalPaid.Amount)
		}
	})
}

func TestGatewayNotificationRejected(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t)
	inv := sentInvoice(t, e, 50000)
	params := initiate(t, e, inv, 50000)

	tests := []struct {
		name   string
		mutate func(n *gateway.Notification)
	}{
		{"tampered status", func(n *gateway.Notification) { n.StatusCode = gateway.StatusCodeSuccess }},
		{"tampered amount", func(n *gateway.Notification) { n.Amount = "5.00" }},
		{"missing signature", func(n *gateway.Notification) { n.Signature = "" }},
		{"foreign merchant", func(n *gateway.Notification) {
			*n = gateway.SignNotification(gateway.Notification{
				MerchantID: "M2", OrderID: n.OrderID, Amount: n.Amount, Currency: n.Currency, StatusCode: n.StatusCode,
			}, "S1")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := notify(inv.ID.String(), "PH1", "500.00", gateway.StatusCodeFailed)
			tt.mutate(&n)

			if _, err := e.ProcessGatewayNotification(ctx, n); !errors.Is(err, billing.ErrInvalidSignature) {
				t.Fatalf("expected ErrInvalidSignature, got %v", err)
			}
			p, _ := e.Payments().Get(ctx, paymentID(t, params.PaymentID))
			if p.Status != payment.StatusPending {
				t.Errorf("payment changed to %s", p.Status)
			}
		})
	}
}

func TestGatewayNotificationOutcomes(t *testing.T) {
	ctx := context.Background()

	t.Run("failure code", func(t *testing.T) {
		e, _ := newEngine(t)
		inv := sentInvoice(t, e, 50000)
		initiate(t, e, inv, 50000)

		p, err := e.ProcessGatewayNotification(ctx, notify(inv.ID.String(), "PH9", "500.00", gateway.StatusCodeFailed))
		if err != nil {
			t.Fatalf("notify: %v", err)
		}
		if p.Status != payment.StatusFailed {
			t.Errorf("status: got %s, want failed", p.Status)
		}
		if !strings.Contains(p.Notes, "-2") {
			t.Errorf("notes should carry the status code: %q", p.Notes)
		}
		if s := summary(t, e, inv); s.Status != invoice.StatusSent {
			t.Errorf("invoice status: got %s, want sent", s.Status)
		}
	})

	t.Run("unknown order", func(t *testing.T) {
		e, _ := newEngine(t)
		for _, order := range []string{"not-an-id", id.NewInvoiceID().String()} {
			p, err := e.ProcessGatewayNotification(ctx, notify(order, "PH1", "1.00", gateway.StatusCodeSuccess))
			if err != nil || p != nil {
				t.Errorf("order %q: expected silent ignore, got %v %v", order, p, err)
			}
		}
	})

	t.Run("no pending gateway payment", func(t *testing.T) {
		e, _ := newEngine(t)
		inv := sentInvoice(t, e, 50000)
		if _, err := e.ApplyDirectPayment(ctx, inv.ID, types.LKR(100), payment.MethodCash, customerID); err != nil {
			t.Fatalf("cash: %v", err)
		}

		p, err := e.ProcessGatewayNotification(ctx, notify(inv.ID.String(), "PH1", "1.00", gateway.StatusCodeSuccess))
		if err != nil || p != nil {
			t.Errorf("expected silent ignore, got %v %v", p, err)
		}
	})

	t.Run("amount mismatch", func(t *testing.T) {
		e, _ := newEngine(t)
		inv := sentInvoice(t, e, 50000)
		initiate(t, e, inv, 20000)

		p, err := e.ProcessGatewayNotification(ctx, notify(inv.ID.String(), "PH1", "500.00", gateway.StatusCodeSuccess))
		if err != nil {
			t.Fatalf("notify: %v", err)
		}
		if p.Status != payment.StatusFailed {
			t.Errorf("status: got %s, want failed", p.Status)
		}
		if s := summary(t, e, inv); s.TotalPaid.Amount != 0 {
			t.Errorf("mismatched success must not count: %d", s.TotalPaid.Amount)
		}
	})

	t.Run("success exceeding balance", func(t *testing.T) {
		e, _ := newEngine(t)
		inv := sentInvoice(t, e, 50000)
		initiate(t, e, inv, 50000)

		// Paid in cash while the card checkout was open.
		if _, err := e.ApplyDirectPayment(ctx, inv.ID, types.LKR(50000), payment.MethodCash, customerID); err != nil {
			t.Fatalf("cash: %v", err)
		}

		p, err := e.ProcessGatewayNotification(ctx, notify(inv.ID.String(), "PH1", "500.00", gateway.StatusCodeSuccess))
		if err != nil {
			t.Fatalf("notify: %v", err)
		}
		if p.Status != payment.StatusFailed || !strings.Contains(p.Notes, "exceeds") {
			t.Errorf("expected failed with balance note, got %s %q", p.Status, p.Notes)
		}
		if s := summary(t, e, inv); s.TotalPaid.Amount != 50000 {
			t.Errorf("total paid: got %d, want 50000", s.TotalPaid.Amount)
		}
	})
}

func TestGatewayNotConfigured(t *testing.T) {
	e := billing.New(memory.New(), billing.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	_, err := e.InitiateGatewayPayment(context.Background(), id.NewInvoiceID(), types.LKR(1), gateway.Customer{})
	if !errors.Is(err, billing.ErrGatewayNotConfigured) {
		t.Errorf("expected ErrGatewayNotConfigured, got %v", err)
	}
}

func TestSchedulePayment(t *testing.T) {
	ctx := context.Background()
	day := 24 * time.Hour

	t.Run("validation", func(t *testing.T) {
		e, _ := newEngine(t)
		inv := sentInvoice(t, e, 100000)

		if _, err := e.SchedulePayment(ctx, inv.ID, types.LKR(60000), baseTime.Add(7*day), customerID); err != nil {
			t.Fatalf("first: %v", err)
		}

		tests := []struct {
			name   string
			amount types.Money
			date   time.Time
			want   error
		}{
			{"today", types.LKR(100), baseTime.Add(2 * time.Hour), billing.ErrInvalidSchedule},
			{"past", types.LKR(100), baseTime.Add(-day), billing.ErrInvalidSchedule},
			{"zero amount", types.LKR(0), baseTime.Add(day), billing.ErrInvalidSchedule},
			{"exceeds unscheduled balance", types.LKR(50000), baseTime.Add(day), billing.ErrInvalidSchedule},
			{"currency", types.USD(100), baseTime.Add(day), billing.ErrInvalidSchedule},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := e.SchedulePayment(ctx, inv.ID, tt.amount, tt.date, customerID)
				if !errors.Is(err, tt.want) {
					t.Errorf("expected %v, got %v", tt.want, err)
				}
			})
		}

		if _, err := e.SchedulePayment(ctx, inv.ID, types.LKR(40000), baseTime.Add(day), customerID); err != nil {
			t.Errorf("remaining balance should still be schedulable: %v", err)
		}
		if _, err := e.SchedulePayment(ctx, inv.ID, types.LKR(100), baseTime.Add(day), "cus_other"); !errors.Is(err, billing.ErrUnauthorized) {
			t.Errorf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("due and overdue", func(t *testing.T) {
		e, clock := newEngine(t)
		inv := sentInvoice(t, e, 100000)

		sp, err := e.SchedulePayment(ctx, inv.ID, types.LKR(30000), baseTime.Add(3*day), customerID)
		if err != nil {
			t.Fatalf("schedule: %v", err)
		}
		if !sp.ScheduledDate.Equal(invoice.Day(baseTime.Add(3 * day))) {
			t.Errorf("date should be truncated to the day: %v", sp.ScheduledDate)
		}

		due, _ := e.Schedules().DueOn(ctx, baseTime.Add(3*day+5*time.Hour))
		if len(due) != 1 || due[0].ID != sp.ID {
			t.Errorf("due on: got %d", len(due))
		}
		if due, _ := e.Schedules().DueOn(ctx, baseTime.Add(2*day)); len(due) != 0 {
			t.Errorf("nothing should be due the day before, got %d", len(due))
		}

		clock.Advance(5 * day)
		overdue, _ := e.Schedules().Overdue(ctx, clock.Now())
		if len(overdue) != 1 {
			t.Errorf("overdue: got %d", len(overdue))
		}
	})

	t.Run("execute", func(t *testing.T) {
		e, clock := newEngine(t)
		inv := sentInvoice(t, e, 100000)

		sp, err := e.SchedulePayment(ctx, inv.ID, types.LKR(100000), baseTime.Add(2*day), customerID)
		if err != nil {
			t.Fatalf("schedule: %v", err)
		}
		clock.Advance(2 * day)

		if _, _, err := e.ExecuteScheduledPayment(ctx, sp.ID, payment.MethodCard); !errors.Is(err, billing.ErrInvalidMethod) {
			t.Errorf("card: expected ErrInvalidMethod, got %v", err)
		}

		done, p, err := e.ExecuteScheduledPayment(ctx, sp.ID, payment.MethodBankTransfer)
		if err != nil {
			t.Fatalf("execute: %v", err)
		}
		if done.Status != schedule.StatusProcessed || done.PaymentID != p.ID {
			t.Errorf("schedule: %s linked %s", done.Status, done.PaymentID)
		}
		if s := summary(t, e, inv); s.Status != invoice.StatusPaid {
			t.Errorf("invoice: got %s, want paid", s.Status)
		}

		if _, _, err := e.ExecuteScheduledPayment(ctx, sp.ID, payment.MethodCash); !errors.Is(err, billing.ErrScheduleNotPending) {
			t.Errorf("re-execute: expected ErrScheduleNotPending, got %v", err)
		}
	})

	t.Run("execute after balance shrank", func(t *testing.T) {
		e, _ := newEngine(t)
		inv := sentInvoice(t, e, 100000)

		sp, err := e.SchedulePayment(ctx, inv.ID, types.LKR(80000), baseTime.Add(2*day), customerID)
		if err != nil {
			t.Fatalf("schedule: %v", err)
		}
		if _, err := e.ApplyDirectPayment(ctx, inv.ID, types.LKR(50000), payment.MethodCash, customerID); err != nil {
			t.Fatalf("cash: %v", err)
		}

		failed, p, err := e.ExecuteScheduledPayment(ctx, sp.ID, payment.MethodCash)
		if !errors.Is(err, billing.ErrInvalidPayment) {
			t.Fatalf("expected ErrInvalidPayment, got %v", err)
		}
		if p != nil || failed.Status != schedule.StatusFailed || failed.Notes == "" {
			t.Errorf("schedule should be failed with a reason: %+v", failed)
		}
	})

	t.Run("cancel", func(t *testing.T) {
		e, _ := newEngine(t)
		inv := sentInvoice(t, e, 100000)

		sp, err := e.SchedulePayment(ctx, inv.ID, types.LKR(100000), baseTime.Add(2*day), customerID)
		if err != nil {
			t.Fatalf("schedule: %v", err)
		}
		if _, err := e.CancelScheduledPayment(ctx, sp.ID, billing.Customer("cus_other")); !errors.Is(err, billing.ErrUnauthorized) {
			t.Errorf("expected ErrUnauthorized, got %v", err)
		}
		cancelled, err := e.CancelScheduledPayment(ctx, sp.ID, billing.Customer(customerID))
		if err != nil || cancelled.Status != schedule.StatusCancelled {
			t.Fatalf("cancel: %v %v", cancelled, err)
		}
		if _, err := e.CancelScheduledPayment(ctx, sp.ID, billing.Customer(customerID)); !errors.Is(err, billing.ErrScheduleNotPending) {
			t.Errorf("second cancel: expected ErrScheduleNotPending, got %v", err)
		}

		// Cancelled amounts no longer count against the balance.
		if _, err := e.SchedulePayment(ctx, inv.ID, types.LKR(100000), baseTime.Add(3*day), customerID); err != nil {
			t.Errorf("reschedule: %v", err)
		}
	})
}

// slowRecorder widens the window between recording a payment and
// reconciling its invoice.
type slowRecorder struct{}

func (slowRecorder) Name() string { return "slow-recorder" }

func (slowRecorder) OnPaymentRecorded(context.Context, *payment.Payment) error {
	time.Sleep(20 * time.Millisecond)
	return nil
}

func TestExecuteScheduledPaymentOnce(t *testing.T) {
	ctx := context.Background()
	e, clock := newEngine(t, billing.WithPlugin(slowRecorder{}))
	inv := sentInvoice(t, e, 1000000)

	sp, err := e.SchedulePayment(ctx, inv.ID, types.LKR(300000), baseTime.Add(48*time.Hour), customerID)
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	clock.Advance(48 * time.Hour)

	var (
		wg       sync.WaitGroup
		ok       atomic.Int32
		notReady atomic.Int32
	)
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := e.ExecuteScheduledPayment(ctx, sp.ID, payment.MethodCash)
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, billing.ErrScheduleNotPending):
				notReady.Add(1)
			default:
				t.Errorf("execute: %v", err)
			}
		}()
	}
	wg.Wait()

	if ok.Load() != 1 || notReady.Load() != 1 {
		t.Errorf("executions: %d ok, %d not pending; want 1 and 1", ok.Load(), notReady.Load())
	}
	if s := summary(t, e, inv); s.TotalPaid.Amount != 300000 {
		t.Errorf("total paid: got %d, want 300000", s.TotalPaid.Amount)
	}
}

func TestInvoiceLease(t *testing.T) {
	ctx := context.Background()

	t.Run("held by another instance", func(t *testing.T) {
		e, clock := newEngine(t, billing.WithLockWait(60*time.Millisecond))
		inv := sentInvoice(t, e, 100000)

		now := clock.Now()
		held, err := e.Store().AcquireInvoiceLock(ctx, inv.ID, "instance-b", now, now.Add(time.Minute))
		if err != nil || !held {
			t.Fatalf("acquire: %v %v", held, err)
		}

		if _, err := e.ApplyDirectPayment(ctx, inv.ID, types.LKR(100000), payment.MethodCash, customerID); !errors.Is(err, billing.ErrInvoiceBusy) {
			t.Fatalf("expected ErrInvoiceBusy, got %v", err)
		}

		if err := e.Store().ReleaseInvoiceLock(ctx, inv.ID, "instance-b"); err != nil {
			t.Fatal(err)
		}
		if _, err := e.ApplyDirectPayment(ctx, inv.ID, types.LKR(100000), payment.MethodCash, customerID); err != nil {
			t.Fatalf("after release: %v", err)
		}
	})

	t.Run("expired lease is taken over", func(t *testing.T) {
		e, clock := newEngine(t, billing.WithLockWait(60*time.Millisecond))
		inv := sentInvoice(t, e, 100000)

		now := clock.Now()
		if _, err := e.Store().AcquireInvoiceLock(ctx, inv.ID, "crashed", now, now.Add(time.Minute)); err != nil {
			t.Fatal(err)
		}
		clock.Advance(2 * time.Minute)

		if _, err := e.ApplyDirectPayment(ctx, inv.ID, types.LKR(100000), payment.MethodCash, customerID); err != nil {
			t.Fatalf("apply: %v", err)
		}
	})

	t.Run("engines sharing a store", func(t *testing.T) {
		shared := memory.New()
		engines := make([]*billing.Engine, 2)
		for i := range engines {
			engines[i] = billing.New(shared,
				billing.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
				billing.WithClock(func() time.Time { return baseTime }),
				billing.WithPlugin(slowRecorder{}),
			)
		}
		inv := sentInvoice(t, engines[0], 100000)

		var (
			wg sync.WaitGroup
			ok atomic.Int32
		)
		for _, e := range engines {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := e.ApplyDirectPayment(ctx, inv.ID, types.LKR(100000), payment.MethodCash, customerID)
				switch {
				case err == nil:
					ok.Add(1)
				case !errors.Is(err, billing.ErrInvalidPayment):
					t.Errorf("apply: %v", err)
				}
			}()
		}
		wg.Wait()

		if ok.Load() != 1 {
			t.Errorf("successful payments = %d, want 1", ok.Load())
		}
		if s := summary(t, engines[1], inv); s.TotalPaid.Amount != 100000 {
			t.Errorf("total paid: got %d, want 100000", s.TotalPaid.Amount)
		}
	})
}

// flakyStore fails invoice updates on demand.
type flakyStore struct {
	*memory.Store
	failUpdates atomic.Bool
}

func (s *flakyStore) UpdateInvoice(ctx context.Context, inv *invoice.Invoice) error {
	if s.failUpdates.Load() {
		return errors.New("connection reset")
	}
	return s.Store.UpdateInvoice(ctx, inv)
}

func TestImmediatePaymentIsRecordedSettled(t *testing.T) {
	ctx := context.Background()
	fs := &flakyStore{Store: memory.New()}
	e := billing.New(fs,
		billing.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		billing.WithClock(func() time.Time { return baseTime }),
	)
	inv := sentInvoice(t, e, 100000)

	fs.failUpdates.Store(true)
	p, err := e.ApplyDirectPayment(ctx, inv.ID, types.LKR(100000), payment.MethodBankTransfer, customerID)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if p.Status != payment.StatusSuccess {
		t.Errorf("payment status: got %s, want success", p.Status)
	}

	payments, err := e.Payments().ListByInvoice(ctx, inv.ID)
	if err != nil {
		t.Fatal(err)
	}
	for _, got := range payments {
		if got.Status == payment.StatusPending {
			t.Errorf("payment %s left pending", got.ID)
		}
	}

	fs.failUpdates.Store(false)
	if s := summary(t, e, inv); s.Status != invoice.StatusPaid {
		t.Errorf("invoice: got %s, want paid once updates recover", s.Status)
	}
}

func TestListInvoicesFiltersDerivedStatus(t *testing.T) {
	ctx := context.Background()
	e, clock := newEngine(t)
	staff := billing.Actor{ID: "emp_1", Role: billing.RoleEmployee}

	late := sentInvoice(t, e, 100000)
	clock.Advance(invoice.DefaultTerm + 48*time.Hour)
	current := sentInvoice(t, e, 50000)

	tests := []struct {
		status invoice.Status
		want   []id.InvoiceID
	}{
		{invoice.StatusOverdue, []id.InvoiceID{late.ID}},
		{invoice.StatusSent, []id.InvoiceID{current.ID}},
		{invoice.StatusPaid, nil},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			got, err := e.ListInvoices(ctx, staff, invoice.ListOpts{Status: tt.status})
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("len = %d, want %d", len(got), len(tt.want))
			}
			for i, inv := range got {
				if inv.ID != tt.want[i] || inv.Status != tt.status {
					t.Errorf("got %s (%s), want %s", inv.ID, inv.Status, tt.want[i])
				}
			}
		})
	}

	page, err := e.ListInvoices(ctx, staff, invoice.ListOpts{Status: invoice.StatusOverdue, Offset: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 0 {
		t.Errorf("offset past the filtered set returned %d", len(page))
	}
}

type recordingPlugin struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPlugin) Name() string { return "recording" }

func (p *recordingPlugin) add(ev string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *recordingPlugin) OnInvoiceCreated(context.Context, *invoice.Invoice) error {
	p.add("created")
	return nil
}

func (p *recordingPlugin) OnInvoicePaid(context.Context, *invoice.Invoice) error {
	p.add("paid")
	return nil
}

func (p *recordingPlugin) OnPaymentSucceeded(context.Context, *payment.Payment) error {
	p.add("payment_succeeded")
	return nil
}

func (p *recordingPlugin) OnWebhookRejected(context.Context, gateway.Notification, string) error {
	p.add("webhook_rejected")
	return nil
}

type failingPlugin struct{}

func (failingPlugin) Name() string { return "failing" }

func (failingPlugin) OnPaymentSucceeded(context.Context, *payment.Payment) error {
	return errors.New("downstream unavailable")
}

func (failingPlugin) OnInvoicePaid(context.Context, *invoice.Invoice) error {
	panic("boom")
}

func TestPluginsObserveEvents(t *testing.T) {
	ctx := context.Background()
	rec := &recordingPlugin{}
	e, _ := newEngine(t, billing.WithPlugin(rec), billing.WithPlugin(failingPlugin{}))

	inv := sentInvoice(t, e, 1000)
	if _, err := e.ApplyDirectPayment(ctx, inv.ID, types.LKR(1000), payment.MethodCash, customerID); err != nil {
		t.Fatalf("payment should succeed despite failing plugins: %v", err)
	}
	bad := notify(inv.ID.String(), "PH1", "10.00", gateway.StatusCodeSuccess)
	bad.Signature = "00"
	_, _ = e.ProcessGatewayNotification(ctx, bad)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	want := []string{"created", "payment_succeeded", "paid", "webhook_rejected"}
	if strings.Join(rec.events, ",") != strings.Join(want, ",") {
		t.Errorf("events: got %v, want %v", rec.events, want)
	}
	if e.Plugins().Count() != 2 {
		t.Errorf("plugin count: got %d", e.Plugins().Count())
	}
}
