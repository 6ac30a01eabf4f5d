// Package schedule defines future-dated installment payments.
package schedule

import (
	"time"

	"github.com/xraph/billing/id"
	"github.com/xraph/billing/types"
)

// Status is the lifecycle state of a scheduled payment.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusProcessed Status = "processed"
	StatusCancelled Status = "cancelled"
	StatusFailed    Status = "failed"
)

// ScheduledPayment is a commitment to charge an amount on a future date.
type ScheduledPayment struct {
	types.Entity
	ID            id.ScheduledPaymentID `json:"id"`
	InvoiceID     id.InvoiceID          `json:"invoice_id"`
	CustomerID    string                `json:"customer_id"`
	Amount        types.Money           `json:"amount"`
	ScheduledDate time.Time             `json:"scheduled_date"`
	Status        Status                `json:"status"`
	PaymentID     id.PaymentID          `json:"payment_id,omitempty"`
	Notes         string                `json:"notes,omitempty"`
}

// Transition is the outcome written when a scheduled payment leaves
// the scheduled state.
type Transition struct {
	Status    Status
	PaymentID id.PaymentID
	Notes     string
}
