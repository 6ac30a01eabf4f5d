package invoice

import (
	"testing"
	"time"

	"github.com/xraph/billing/types"
)

var now = time.Date(2026, 5, 1, 15, 30, 0, 0, time.UTC)

func newInvoice(amount int64) *Invoice {
	inv := &Invoice{
		Currency: "lkr",
		Status:   StatusSent,
		DueDate:  now.Add(10 * 24 * time.Hour),
		LineItems: []LineItem{
			{Description: "x", Quantity: 1, UnitPrice: types.LKR(amount)},
		},
	}
	inv.Recalculate()
	return inv
}

func TestDerive(t *testing.T) {
	tests := []struct {
		name   string
		status Status
		paid   int64
		at     time.Time
		want   Status
	}{
		{"unpaid", StatusSent, 0, now, StatusSent},
		{"partial", StatusSent, 400, now, StatusPartiallyPaid},
		{"exact", StatusSent, 1000, now, StatusPaid},
		{"paid wins over past due", StatusOverdue, 1000, now.AddDate(0, 1, 0), StatusPaid},
		{"past due", StatusSent, 0, now.AddDate(0, 0, 11), StatusOverdue},
		{"partial past due", StatusPartiallyPaid, 400, now.AddDate(0, 0, 11), StatusOverdue},
		{"last day of terms", StatusSent, 0, now.AddDate(0, 0, 10).Add(8 * time.Hour), StatusSent},
		{"draft untouched", StatusDraft, 1000, now, StatusDraft},
		{"void untouched", StatusVoid, 1000, now, StatusVoid},
		{"overdue cured by extension", StatusOverdue, 0, now, StatusSent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := newInvoice(1000)
			inv.Status = tt.status
			if got := inv.Derive(types.LKR(tt.paid), tt.at); got != tt.want {
				t.Errorf("Derive() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestReconcileReportsChanges(t *testing.T) {
	inv := newInvoice(1000)

	if inv.Reconcile(types.LKR(0), now) {
		t.Error("no payments should not change a sent invoice")
	}
	if !inv.Reconcile(types.LKR(1000), now) {
		t.Fatal("full payment should change the invoice")
	}
	if inv.Status != StatusPaid || inv.PaidAt == nil {
		t.Errorf("expected paid with timestamp, got %s %v", inv.Status, inv.PaidAt)
	}
	paidAt := *inv.PaidAt
	if inv.Reconcile(types.LKR(1000), now.Add(time.Hour)) {
		t.Error("second reconcile should be a no-op")
	}
	if !inv.PaidAt.Equal(paidAt) {
		t.Error("paid timestamp moved")
	}
}

func TestRecalculateDeposit(t *testing.T) {
	inv := &Invoice{
		Currency:        "lkr",
		RequiresDeposit: true,
		LineItems: []LineItem{
			{Description: "a", Quantity: 3, UnitPrice: types.LKR(333)},
			{Description: "b", Quantity: 1, UnitPrice: types.LKR(2)},
		},
	}
	inv.Recalculate()

	if inv.Amount.Amount != 1001 {
		t.Fatalf("amount: got %d", inv.Amount.Amount)
	}
	if inv.DepositAmount.Amount != 500 || inv.FinalAmount.Amount != 501 {
		t.Errorf("split: %d/%d", inv.DepositAmount.Amount, inv.FinalAmount.Amount)
	}

	inv.DepositAmount = types.LKR(200)
	inv.Recalculate()
	if inv.FinalAmount.Amount != 801 {
		t.Errorf("explicit deposit: final %d", inv.FinalAmount.Amount)
	}
}

func TestAttribution(t *testing.T) {
	inv := &Invoice{
		Currency:        "lkr",
		Status:          StatusSent,
		DueDate:         now.AddDate(0, 1, 0),
		RequiresDeposit: true,
		DepositAmount:   types.LKR(300),
		LineItems:       []LineItem{{Description: "x", Quantity: 1, UnitPrice: types.LKR(1000)}},
	}
	inv.Recalculate()

	inv.Reconcile(types.LKR(500), now)
	if inv.DepositPaid.Amount != 300 || inv.FinalPaid.Amount != 200 {
		t.Errorf("attribution: deposit %d final %d", inv.DepositPaid.Amount, inv.FinalPaid.Amount)
	}
	if inv.DepositPaidAt == nil || inv.FinalPaidAt != nil {
		t.Errorf("markers: deposit %v final %v", inv.DepositPaidAt, inv.FinalPaidAt)
	}

	inv.Reconcile(types.LKR(1000), now)
	if inv.FinalPaidAt == nil || inv.Status != StatusPaid {
		t.Errorf("final marker missing, status %s", inv.Status)
	}
}

func TestSummarize(t *testing.T) {
	inv := newInvoice(1000)
	inv.Number = "INV-ABC"

	s := inv.Summarize(types.LKR(250))
	if s.Balance.Amount != 750 || s.TotalPaid.Amount != 250 || s.Number != "INV-ABC" {
		t.Errorf("unexpected summary: %+v", s)
	}
}

func TestNumberFor(t *testing.T) {
	tests := map[string]string{
		"01h455vb4pex5vsknk084sn02q": "INV-01H455VB",
		"abc":                        "INV-ABC",
	}
	for in, want := range tests {
		if got := NumberFor(in); got != want {
			t.Errorf("NumberFor(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDay(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	in := time.Date(2026, 5, 2, 2, 0, 0, 0, loc) // 2026-05-01 20:30 UTC
	if got := Day(in); !got.Equal(time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Day() = %v", got)
	}
}
