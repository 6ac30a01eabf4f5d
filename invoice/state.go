package invoice

import (
	"strings"
	"time"

	"github.com/xraph/billing/types"
)

// DefaultTerm is the due-date offset applied when none is supplied.
const DefaultTerm = 30 * 24 * time.Hour

// Recalculate recomputes every line item's amount and the invoice total.
// When deposit tracking is on, the final portion absorbs whatever the
// deposit does not cover.
func (inv *Invoice) Recalculate() {
	total := types.Zero(inv.Currency)
	for i := range inv.LineItems {
		li := &inv.LineItems[i]
		li.UnitPrice.Currency = total.Currency
		li.Amount = li.UnitPrice.Multiply(li.Quantity)
		total = total.Add(li.Amount)
	}
	inv.Amount = total

	if !inv.RequiresDeposit {
		inv.DepositAmount = types.Zero(inv.Currency)
		inv.FinalAmount = types.Zero(inv.Currency)
		return
	}
	if inv.DepositAmount.IsZero() {
		inv.DepositAmount = total.Divide(2)
	}
	inv.DepositAmount.Currency = total.Currency
	inv.FinalAmount = total.Subtract(inv.DepositAmount)
}

// Balance returns the amount still owed given the sum of successful payments.
func (inv *Invoice) Balance(totalPaid types.Money) types.Money {
	return inv.Amount.Subtract(totalPaid)
}

// Payable reports whether payments may currently be applied.
func (inv *Invoice) Payable() bool {
	switch inv.Status {
	case StatusSent, StatusPartiallyPaid, StatusOverdue:
		return true
	default:
		return false
	}
}

// IsPastDue reports whether the due date lies strictly before the
// calendar day of now.
func (inv *Invoice) IsPastDue(now time.Time) bool {
	return Day(now).After(Day(inv.DueDate))
}

// Derive computes the status implied by totalPaid at time now.
// Draft and void invoices keep their status; everything else is a function
// of the payment total and the due date.
func (inv *Invoice) Derive(totalPaid types.Money, now time.Time) Status {
	switch inv.Status {
	case StatusDraft, StatusVoid:
		return inv.Status
	}

	switch {
	case totalPaid.Amount >= inv.Amount.Amount:
		return StatusPaid
	case inv.IsPastDue(now):
		return StatusOverdue
	case totalPaid.Amount > 0:
		return StatusPartiallyPaid
	default:
		return StatusSent
	}
}

// Reconcile applies the derived status and deposit/final attribution to the
// invoice and reports whether anything changed.
func (inv *Invoice) Reconcile(totalPaid types.Money, now time.Time) bool {
	before := *inv

	next := inv.Derive(totalPaid, now)
	inv.Status = next
	if next == StatusPaid && inv.PaidAt == nil {
		at := now.UTC()
		inv.PaidAt = &at
	}
	if inv.RequiresDeposit {
		inv.attribute(totalPaid, now)
	}

	return before.Status != inv.Status ||
		!before.DepositPaid.Equal(inv.DepositPaid) ||
		!before.FinalPaid.Equal(inv.FinalPaid) ||
		(before.PaidAt == nil) != (inv.PaidAt == nil)
}

// attribute splits totalPaid sequentially: the deposit fills first, the
// final portion receives the remainder.
func (inv *Invoice) attribute(totalPaid types.Money, now time.Time) {
	deposit := totalPaid.Min(inv.DepositAmount)
	if deposit.Amount < 0 {
		deposit = types.Zero(inv.Currency)
	}
	inv.DepositPaid = deposit
	inv.FinalPaid = totalPaid.Subtract(deposit)

	at := now.UTC()
	if inv.DepositPaidAt == nil && inv.DepositAmount.IsPositive() &&
		inv.DepositPaid.Amount >= inv.DepositAmount.Amount {
		inv.DepositPaidAt = &at
	}
	if inv.FinalPaidAt == nil && inv.FinalAmount.IsPositive() &&
		inv.FinalPaid.Amount >= inv.FinalAmount.Amount {
		inv.FinalPaidAt = &at
	}
}

// Summarize builds a Summary for the given payment total.
func (inv *Invoice) Summarize(totalPaid types.Money) *Summary {
	return &Summary{
		InvoiceID:     inv.ID,
		Number:        inv.Number,
		Status:        inv.Status,
		Amount:        inv.Amount,
		TotalPaid:     totalPaid,
		Balance:       inv.Balance(totalPaid),
		DepositAmount: inv.DepositAmount,
		DepositPaid:   inv.DepositPaid,
		FinalAmount:   inv.FinalAmount,
		FinalPaid:     inv.FinalPaid,
	}
}

// NumberFor formats the human-facing invoice number from an ID suffix.
func NumberFor(suffix string) string {
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	return "INV-" + strings.ToUpper(suffix)
}

// Day truncates t to midnight UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
