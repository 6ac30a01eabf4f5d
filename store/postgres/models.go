package postgres

import (
	"encoding/json"
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/billing/id"
	"github.com/xraph/billing/invoice"
	"github.com/xraph/billing/payment"
	"github.com/xraph/billing/schedule"
	"github.com/xraph/billing/types"
)

// ==================== Invoice models ====================

type invoiceModel struct {
	grove.BaseModel `grove:"table:billing_invoices"`

	ID                 string          `grove:"id,pk"`
	Number             string          `grove:"number"`
	CustomerID         string          `grove:"customer_id"`
	ServiceRef         string          `grove:"service_ref"`
	Status             string          `grove:"status"`
	Currency           string          `grove:"currency"`
	AmountCents        int64           `grove:"amount_cents"`
	LineItems          json.RawMessage `grove:"line_items,type:jsonb"`
	IssueDate          time.Time       `grove:"issue_date"`
	DueDate            time.Time       `grove:"due_date"`
	RequiresDeposit    bool            `grove:"requires_deposit"`
	DepositAmountCents int64           `grove:"deposit_amount_cents"`
	DepositPaidCents   int64           `grove:"deposit_paid_cents"`
	DepositPaidAt      *time.Time      `grove:"deposit_paid_at"`
	FinalAmountCents   int64           `grove:"final_amount_cents"`
	FinalPaidCents     int64           `grove:"final_paid_cents"`
	FinalPaidAt        *time.Time      `grove:"final_paid_at"`
	SentAt             *time.Time      `grove:"sent_at"`
	PaidAt             *time.Time      `grove:"paid_at"`
	VoidedAt           *time.Time      `grove:"voided_at"`
	VoidReason         string          `grove:"void_reason"`
	Notes              string          `grove:"notes"`
	CreatedAt          time.Time       `grove:"created_at"`
	UpdatedAt          time.Time       `grove:"updated_at"`
}

func toInvoiceModel(inv *invoice.Invoice) *invoiceModel {
	lineItems, _ := json.Marshal(inv.LineItems) //nolint:errcheck // best-effort

	return &invoiceModel{
		ID:                 inv.ID.String(),
		Number:             inv.Number,
		CustomerID:         inv.CustomerID,
		ServiceRef:         inv.ServiceRef,
		Status:             string(inv.Status),
		Currency:           inv.Currency,
		AmountCents:        inv.Amount.Amount,
		LineItems:          lineItems,
		IssueDate:          inv.IssueDate,
		DueDate:            inv.DueDate,
		RequiresDeposit:    inv.RequiresDeposit,
		DepositAmountCents: inv.DepositAmount.Amount,
		DepositPaidCents:   inv.DepositPaid.Amount,
		DepositPaidAt:      inv.DepositPaidAt,
		FinalAmountCents:   inv.FinalAmount.Amount,
		FinalPaidCents:     inv.FinalPaid.Amount,
		FinalPaidAt:        inv.FinalPaidAt,
		SentAt:             inv.SentAt,
		PaidAt:             inv.PaidAt,
		VoidedAt:           inv.VoidedAt,
		VoidReason:         inv.VoidReason,
		Notes:              inv.Notes,
		CreatedAt:          inv.CreatedAt,
		UpdatedAt:          inv.UpdatedAt,
	}
}

func fromInvoiceModel(m *invoiceModel) (*invoice.Invoice, error) {
	invID, err := id.ParseInvoiceID(m.ID)
	if err != nil {
		return nil, err
	}

	var lineItems []invoice.LineItem
	if len(m.LineItems) > 0 {
		if err := json.Unmarshal(m.LineItems, &lineItems); err != nil {
			return nil, err
		}
	}

	money := func(cents int64) types.Money { return types.Money{Amount: cents, Currency: m.Currency} }

	return &invoice.Invoice{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:              invID,
		Number:          m.Number,
		CustomerID:      m.CustomerID,
		ServiceRef:      m.ServiceRef,
		Status:          invoice.Status(m.Status),
		Currency:        m.Currency,
		Amount:          money(m.AmountCents),
		LineItems:       lineItems,
		IssueDate:       m.IssueDate,
		DueDate:         m.DueDate,
		RequiresDeposit: m.RequiresDeposit,
		DepositAmount:   money(m.DepositAmountCents),
		DepositPaid:     money(m.DepositPaidCents),
		DepositPaidAt:   m.DepositPaidAt,
		FinalAmount:     money(m.FinalAmountCents),
		FinalPaid:       money(m.FinalPaidCents),
		FinalPaidAt:     m.FinalPaidAt,
		SentAt:          m.SentAt,
		PaidAt:          m.PaidAt,
		VoidedAt:        m.VoidedAt,
		VoidReason:      m.VoidReason,
		Notes:           m.Notes,
	}, nil
}

// ==================== Payment models ====================

type paymentModel struct {
	grove.BaseModel `grove:"table:billing_payments"`

	ID           string    `grove:"id,pk"`
	InvoiceID    string    `grove:"invoice_id"`
	CustomerID   string    `grove:"customer_id"`
	AmountCents  int64     `grove:"amount_cents"`
	Currency     string    `grove:"currency"`
	Method       string    `grove:"method"`
	Status       string    `grove:"status"`
	GatewayTxnID string    `grove:"gateway_txn_id"`
	Notes        string    `grove:"notes"`
	CreatedAt    time.Time `grove:"created_at"`
	UpdatedAt    time.Time `grove:"updated_at"`
}

func toPaymentModel(p *payment.Payment) *paymentModel {
	return &paymentModel{
		ID:           p.ID.String(),
		InvoiceID:    p.InvoiceID.String(),
		CustomerID:   p.CustomerID,
		AmountCents:  p.Amount.Amount,
		Currency:     p.Amount.Currency,
		Method:       string(p.Method),
		Status:       string(p.Status),
		GatewayTxnID: p.GatewayTxnID,
		Notes:        p.Notes,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

func fromPaymentModel(m *paymentModel) (*payment.Payment, error) {
	payID, err := id.ParsePaymentID(m.ID)
	if err != nil {
		return nil, err
	}
	invID, err := id.ParseInvoiceID(m.InvoiceID)
	if err != nil {
		return nil, err
	}

	return &payment.Payment{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:           payID,
		InvoiceID:    invID,
		CustomerID:   m.CustomerID,
		Amount:       types.Money{Amount: m.AmountCents, Currency: m.Currency},
		Method:       payment.Method(m.Method),
		Status:       payment.Status(m.Status),
		GatewayTxnID: m.GatewayTxnID,
		Notes:        m.Notes,
	}, nil
}

// ==================== Scheduled payment models ====================

type scheduledPaymentModel struct {
	grove.BaseModel `grove:"table:billing_scheduled_payments"`

	ID            string    `grove:"id,pk"`
	InvoiceID     string    `grove:"invoice_id"`
	CustomerID    string    `grove:"customer_id"`
	AmountCents   int64     `grove:"amount_cents"`
	Currency      string    `grove:"currency"`
	ScheduledDate time.Time `grove:"scheduled_date"`
	Status        string    `grove:"status"`
	PaymentID     string    `grove:"payment_id"`
	Notes         string    `grove:"notes"`
	CreatedAt     time.Time `grove:"created_at"`
	UpdatedAt     time.Time `grove:"updated_at"`
}

func toScheduledPaymentModel(sp *schedule.ScheduledPayment) *scheduledPaymentModel {
	return &scheduledPaymentModel{
		ID:            sp.ID.String(),
		InvoiceID:     sp.InvoiceID.String(),
		CustomerID:    sp.CustomerID,
		AmountCents:   sp.Amount.Amount,
		Currency:      sp.Amount.Currency,
		ScheduledDate: sp.ScheduledDate,
		Status:        string(sp.Status),
		PaymentID:     sp.PaymentID.String(),
		Notes:         sp.Notes,
		CreatedAt:     sp.CreatedAt,
		UpdatedAt:     sp.UpdatedAt,
	}
}

func fromScheduledPaymentModel(m *scheduledPaymentModel) (*schedule.ScheduledPayment, error) {
	spID, err := id.ParseScheduledPaymentID(m.ID)
	if err != nil {
		return nil, err
	}
	invID, err := id.ParseInvoiceID(m.InvoiceID)
	if err != nil {
		return nil, err
	}

	var payID id.PaymentID
	if m.PaymentID != "" {
		if payID, err = id.ParsePaymentID(m.PaymentID); err != nil {
			return nil, err
		}
	}

	return &schedule.ScheduledPayment{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:            spID,
		InvoiceID:     invID,
		CustomerID:    m.CustomerID,
		Amount:        types.Money{Amount: m.AmountCents, Currency: m.Currency},
		ScheduledDate: m.ScheduledDate.UTC(),
		Status:        schedule.Status(m.Status),
		PaymentID:     payID,
		Notes:         m.Notes,
	}, nil
}

// ==================== Invoice lock model ====================

type invoiceLockModel struct {
	grove.BaseModel `grove:"table:billing_invoice_locks"`

	InvoiceID string    `grove:"invoice_id,pk"`
	Owner     string    `grove:"owner"`
	ExpiresAt time.Time `grove:"expires_at"`
}
