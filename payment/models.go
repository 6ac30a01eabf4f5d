// Package payment defines payment records and their settlement lifecycle.
package payment

import (
	"github.com/xraph/billing/id"
	"github.com/xraph/billing/types"
)

// Method is how a payment was made.
type Method string

const (
	MethodCash         Method = "cash"
	MethodCard         Method = "card"
	MethodBankTransfer Method = "bank_transfer"
	MethodOnline       Method = "online"
)

// Valid reports whether m is a known method.
func (m Method) Valid() bool {
	switch m {
	case MethodCash, MethodCard, MethodBankTransfer, MethodOnline:
		return true
	default:
		return false
	}
}

// SettlesImmediately reports whether funds are confirmed at the point of
// recording. Card and online payments settle through the gateway callback.
func (m Method) SettlesImmediately() bool {
	return m == MethodCash || m == MethodBankTransfer
}

// Status is the settlement state of a payment.
type Status string

const (
	StatusPending Status = "pending"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// Payment is a single attempt to pay an invoice.
type Payment struct {
	types.Entity
	ID           id.PaymentID `json:"id"`
	InvoiceID    id.InvoiceID `json:"invoice_id"`
	CustomerID   string       `json:"customer_id"`
	Amount       types.Money  `json:"amount"`
	Method       Method       `json:"method"`
	Status       Status       `json:"status"`
	GatewayTxnID string       `json:"gateway_txn_id,omitempty"`
	Notes        string       `json:"notes,omitempty"`
}

// Settlement describes the outcome applied to a pending payment.
type Settlement struct {
	Status       Status
	GatewayTxnID string
	Notes        string
}
