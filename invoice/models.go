// Package invoice defines invoices, their line items and the rules that
// derive an invoice's status and balance from the payments applied to it.
package invoice

import (
	"time"

	"github.com/xraph/billing/id"
	"github.com/xraph/billing/types"
)

// Status is the lifecycle state of an invoice.
type Status string

const (
	StatusDraft         Status = "draft"
	StatusSent          Status = "sent"
	StatusPartiallyPaid Status = "partially_paid"
	StatusPaid          Status = "paid"
	StatusOverdue       Status = "overdue"
	StatusVoid          Status = "void"
)

// Invoice is a request for payment issued to a customer for a completed
// service or project.
type Invoice struct {
	types.Entity
	ID         id.InvoiceID `json:"id"`
	Number     string       `json:"number"`
	CustomerID string       `json:"customer_id"`
	ServiceRef string       `json:"service_ref,omitempty"`
	Status     Status       `json:"status"`
	Currency   string       `json:"currency"`
	Amount     types.Money  `json:"amount"`
	LineItems  []LineItem   `json:"line_items"`
	IssueDate  time.Time    `json:"issue_date"`
	DueDate    time.Time    `json:"due_date"`

	// Two-phase billing. When RequiresDeposit is false the deposit and
	// final fields stay zero.
	RequiresDeposit bool        `json:"requires_deposit"`
	DepositAmount   types.Money `json:"deposit_amount"`
	DepositPaid     types.Money `json:"deposit_paid"`
	DepositPaidAt   *time.Time  `json:"deposit_paid_at,omitempty"`
	FinalAmount     types.Money `json:"final_amount"`
	FinalPaid       types.Money `json:"final_paid"`
	FinalPaidAt     *time.Time  `json:"final_paid_at,omitempty"`

	SentAt     *time.Time `json:"sent_at,omitempty"`
	PaidAt     *time.Time `json:"paid_at,omitempty"`
	VoidedAt   *time.Time `json:"voided_at,omitempty"`
	VoidReason string     `json:"void_reason,omitempty"`
	Notes      string     `json:"notes,omitempty"`
}

// LineItem is a single billable entry. Amount is always derived from
// Quantity and UnitPrice.
type LineItem struct {
	ID          id.LineItemID `json:"id"`
	InvoiceID   id.InvoiceID  `json:"invoice_id"`
	Description string        `json:"description"`
	Quantity    int64         `json:"quantity"`
	UnitPrice   types.Money   `json:"unit_price"`
	Amount      types.Money   `json:"amount"`
	Type        ItemType      `json:"type"`
}

// ItemType is a free-form category tag. The constants cover the common ones.
type ItemType string

const (
	ItemLabor      ItemType = "labor"
	ItemParts      ItemType = "parts"
	ItemServiceFee ItemType = "service_fee"
	ItemMaterials  ItemType = "materials"
	ItemOther      ItemType = "other"
)

// Summary is a read-only projection of an invoice's financial position.
type Summary struct {
	InvoiceID     id.InvoiceID `json:"invoice_id"`
	Number        string       `json:"number"`
	Status        Status       `json:"status"`
	Amount        types.Money  `json:"amount"`
	TotalPaid     types.Money  `json:"total_paid"`
	Balance       types.Money  `json:"balance"`
	DepositAmount types.Money  `json:"deposit_amount"`
	DepositPaid   types.Money  `json:"deposit_paid"`
	FinalAmount   types.Money  `json:"final_amount"`
	FinalPaid     types.Money  `json:"final_paid"`
}
