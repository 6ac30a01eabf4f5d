package billing

import (
	"context"
	"fmt"
	"strings"

	"github.com/xraph/billing/id"
	"github.com/xraph/billing/invoice"
	"github.com/xraph/billing/payment"
	"github.com/xraph/billing/types"
)

// ──────────────────────────────────────────────────
// Invoice management
// ──────────────────────────────────────────────────

// CreateInvoice validates and stores a draft invoice. Line item totals and
// the invoice amount are always recomputed; caller-supplied totals are
// ignored.
func (e *Engine) CreateInvoice(ctx context.Context, inv *invoice.Invoice) error {
	now := e.clock()

	if inv.Currency == "" {
		inv.Currency = e.currency
	}
	inv.Currency = strings.ToLower(inv.Currency)

	if err := validateInvoice(inv); err != nil {
		return err
	}

	if inv.ID.IsNil() {
		inv.ID = id.NewInvoiceID()
	}
	inv.Number = invoice.NumberFor(inv.ID.Suffix())
	inv.Entity = types.NewEntityAt(now)
	inv.Status = invoice.StatusDraft

	if inv.IssueDate.IsZero() {
		inv.IssueDate = now
	}
	if inv.DueDate.IsZero() {
		inv.DueDate = inv.IssueDate.Add(invoice.DefaultTerm)
	}
	if invoice.Day(inv.DueDate).Before(invoice.Day(inv.IssueDate)) {
		return invalid(ErrInvalidInput, "due_date", "must not be before the issue date")
	}

	for i := range inv.LineItems {
		li := &inv.LineItems[i]
		if li.ID.IsNil() {
			li.ID = id.NewLineItemID()
		}
		li.InvoiceID = inv.ID
		if li.Type == "" {
			li.Type = invoice.ItemOther
		}
	}

	if inv.RequiresDeposit && inv.DepositAmount.Currency != "" && !inv.DepositAmount.SameCurrency(types.Zero(inv.Currency)) {
		return invalid(ErrInvalidInput, "deposit_amount", "currency differs from invoice currency")
	}
	inv.Recalculate()
	if inv.RequiresDeposit {
		if !inv.DepositAmount.IsPositive() || !inv.DepositAmount.LessThan(inv.Amount) {
			return invalid(ErrInvalidInput, "deposit_amount", "must be between zero and the invoice amount")
		}
	}
	inv.DepositPaid = types.Zero(inv.Currency)
	inv.FinalPaid = types.Zero(inv.Currency)

	if err := e.store.CreateInvoice(ctx, inv); err != nil {
		return err
	}

	e.logger.Info("invoice created",
		"invoice_id", inv.ID.String(),
		"number", inv.Number,
		"customer_id", inv.CustomerID,
		"amount", inv.Amount.String(),
	)
	e.plugins.EmitInvoiceCreated(ctx, inv)

	return nil
}

func validateInvoice(inv *invoice.Invoice) error {
	var errs MultiError

	if strings.TrimSpace(inv.CustomerID) == "" {
		errs.Add(invalid(ErrInvalidInput, "customer_id", "is required"))
	}
	if len(inv.LineItems) == 0 {
		errs.Add(invalid(ErrInvalidLineItem, "line_items", "at least one item is required"))
	}
	for i, li := range inv.LineItems {
		field := fmt.Sprintf("line_items[%d]", i)
		if strings.TrimSpace(li.Description) == "" {
			errs.Add(invalid(ErrInvalidLineItem, field+".description", "is required"))
		}
		if li.Quantity <= 0 {
			errs.Add(invalid(ErrInvalidLineItem, field+".quantity", "must be a positive integer"))
		}
		if !li.UnitPrice.IsPositive() {
			errs.Add(invalid(ErrInvalidLineItem, field+".unit_price", "must be greater than zero"))
		}
		if li.UnitPrice.Currency != "" && !li.UnitPrice.SameCurrency(types.Zero(inv.Currency)) {
			errs.Add(invalid(ErrInvalidLineItem, field+".unit_price", "currency differs from invoice currency"))
		}
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

// GetInvoice returns an invoice with its status re-derived. Customers may
// only read their own invoices.
func (e *Engine) GetInvoice(ctx context.Context, invID id.InvoiceID, actor Actor) (*invoice.Invoice, error) {
	unlock, err := e.lockInvoice(ctx, invID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	inv, err := e.store.GetInvoice(ctx, invID)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(inv.CustomerID) {
		return nil, ErrUnauthorized
	}
	if _, err := e.reconcile(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// InvoiceSummary reports amount, total paid, balance and the
// deposit/final split.
func (e *Engine) InvoiceSummary(ctx context.Context, invID id.InvoiceID, actor Actor) (*invoice.Summary, error) {
	unlock, err := e.lockInvoice(ctx, invID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	inv, err := e.store.GetInvoice(ctx, invID)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(inv.CustomerID) {
		return nil, ErrUnauthorized
	}
	total, err := e.reconcile(ctx, inv)
	if err != nil {
		return nil, err
	}
	return inv.Summarize(total), nil
}

// ListInvoices lists invoices visible to the actor. Customers are always
// restricted to their own invoices. A status filter matches the derived
// status, so it applies after derivation and pagination follows it.
func (e *Engine) ListInvoices(ctx context.Context, actor Actor, opts invoice.ListOpts) ([]*invoice.Invoice, error) {
	if !actor.Staff() {
		if actor.ID == "" {
			return nil, ErrUnauthorized
		}
		opts.CustomerID = actor.ID
	}

	query := opts
	if opts.Status != "" {
		query.Status, query.Limit, query.Offset = "", 0, 0
	}

	invoices, err := e.store.ListInvoices(ctx, query)
	if err != nil {
		return nil, err
	}

	now := e.clock()
	matched := invoices[:0]
	for _, inv := range invoices {
		total, err := e.recorder.TotalPaid(ctx, inv.ID, inv.Currency)
		if err != nil {
			return nil, err
		}
		inv.Status = inv.Derive(total, now)
		if opts.Status == "" || inv.Status == opts.Status {
			matched = append(matched, inv)
		}
	}
	if opts.Status == "" {
		return matched, nil
	}
	return paginate(matched, opts.Offset, opts.Limit), nil
}

func paginate[T any](items []T, offset, limit int) []T {
	offset = max(offset, 0)
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// ListOverdueInvoices returns sent or partially paid invoices whose due
// date has passed, persisting the overdue status on each.
func (e *Engine) ListOverdueInvoices(ctx context.Context) ([]*invoice.Invoice, error) {
	candidates, err := e.store.ListOverdueInvoices(ctx, e.clock())
	if err != nil {
		return nil, err
	}

	result := make([]*invoice.Invoice, 0, len(candidates))
	for _, c := range candidates {
		inv, err := e.reconcileByID(ctx, c.ID)
		if err != nil {
			return nil, err
		}
		if inv.Status == invoice.StatusOverdue {
			result = append(result, inv)
		}
	}
	return result, nil
}

// SendInvoice moves a draft invoice to sent. Sending an invoice that is
// already past draft is a no-op; a void invoice cannot be sent.
func (e *Engine) SendInvoice(ctx context.Context, invID id.InvoiceID) (*invoice.Invoice, error) {
	unlock, err := e.lockInvoice(ctx, invID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	inv, err := e.store.GetInvoice(ctx, invID)
	if err != nil {
		return nil, err
	}

	switch inv.Status {
	case invoice.StatusVoid:
		return nil, ErrInvoiceVoid
	case invoice.StatusDraft:
	default:
		return inv, nil
	}

	now := e.clock()
	inv.Status = invoice.StatusSent
	inv.SentAt = &now
	inv.TouchAt(now)
	if err := e.store.UpdateInvoice(ctx, inv); err != nil {
		return nil, err
	}

	e.logger.Info("invoice sent",
		"invoice_id", inv.ID.String(),
		"customer_id", inv.CustomerID,
	)
	e.plugins.EmitInvoiceSent(ctx, inv)

	if _, err := e.reconcile(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// VoidInvoice cancels an invoice administratively. Paid invoices cannot be
// voided; voiding twice is a no-op.
func (e *Engine) VoidInvoice(ctx context.Context, invID id.InvoiceID, reason string) (*invoice.Invoice, error) {
	unlock, err := e.lockInvoice(ctx, invID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	inv, err := e.store.GetInvoice(ctx, invID)
	if err != nil {
		return nil, err
	}
	if _, err := e.reconcile(ctx, inv); err != nil {
		return nil, err
	}

	switch inv.Status {
	case invoice.StatusVoid:
		return inv, nil
	case invoice.StatusPaid:
		return nil, fmt.Errorf("%w: %w", ErrInvalidTransition, ErrInvoicePaid)
	}

	now := e.clock()
	from := inv.Status
	inv.Status = invoice.StatusVoid
	inv.VoidedAt = &now
	inv.VoidReason = reason
	inv.TouchAt(now)
	if err := e.store.UpdateInvoice(ctx, inv); err != nil {
		return nil, err
	}

	e.logger.Info("invoice voided",
		"invoice_id", inv.ID.String(),
		"from", from,
		"reason", reason,
	)
	e.plugins.EmitInvoiceVoided(ctx, inv, reason)

	return inv, nil
}

// ──────────────────────────────────────────────────
// Payment queries
// ──────────────────────────────────────────────────

// GetPayment returns a payment the actor is allowed to see.
func (e *Engine) GetPayment(ctx context.Context, payID id.PaymentID, actor Actor) (*payment.Payment, error) {
	p, err := e.recorder.Get(ctx, payID)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(p.CustomerID) {
		return nil, ErrUnauthorized
	}
	return p, nil
}

// InvoicePayments lists an invoice's payments, newest first.
func (e *Engine) InvoicePayments(ctx context.Context, invID id.InvoiceID, actor Actor) ([]*payment.Payment, error) {
	inv, err := e.store.GetInvoice(ctx, invID)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(inv.CustomerID) {
		return nil, ErrUnauthorized
	}
	return e.recorder.ListByInvoice(ctx, invID)
}

// PaymentHistory lists a customer's payments, newest first.
func (e *Engine) PaymentHistory(ctx context.Context, customerID string, actor Actor) ([]*payment.Payment, error) {
	if !actor.CanAccess(customerID) {
		return nil, ErrUnauthorized
	}
	return e.recorder.ListByCustomer(ctx, customerID)
}

// ──────────────────────────────────────────────────
// Status derivation
// ──────────────────────────────────────────────────

// reconcile recomputes the paid total from successful payments, applies
// the derived status and persists it when it changed. Callers hold the
// invoice lock.
func (e *Engine) reconcile(ctx context.Context, inv *invoice.Invoice) (types.Money, error) {
	total, err := e.recorder.TotalPaid(ctx, inv.ID, inv.Currency)
	if err != nil {
		return types.Money{}, err
	}

	now := e.clock()
	from := inv.Status
	if !inv.Reconcile(total, now) {
		return total, nil
	}

	inv.TouchAt(now)
	if err := e.store.UpdateInvoice(ctx, inv); err != nil {
		return types.Money{}, err
	}

	if from != inv.Status {
		e.logger.Info("invoice status changed",
			"invoice_id", inv.ID.String(),
			"from", from,
			"to", inv.Status,
			"total_paid", total.String(),
			"amount", inv.Amount.String(),
		)
		e.plugins.EmitInvoiceStatusChanged(ctx, inv, from)
	}
	return total, nil
}

func (e *Engine) reconcileByID(ctx context.Context, invID id.InvoiceID) (*invoice.Invoice, error) {
	unlock, err := e.lockInvoice(ctx, invID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	inv, err := e.store.GetInvoice(ctx, invID)
	if err != nil {
		return nil, err
	}
	if _, err := e.reconcile(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}
