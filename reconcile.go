package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xraph/billing/gateway"
	"github.com/xraph/billing/id"
	"github.com/xraph/billing/invoice"
	"github.com/xraph/billing/payment"
	"github.com/xraph/billing/schedule"
	"github.com/xraph/billing/types"
)

// ──────────────────────────────────────────────────
// Direct payments
// ──────────────────────────────────────────────────

// ApplyDirectPayment records a payment made by customerID against an
// invoice. Cash and bank transfers settle immediately and advance the
// invoice; card and online payments stay pending until the gateway
// reports back.
func (e *Engine) ApplyDirectPayment(ctx context.Context, invID id.InvoiceID, amount types.Money, method payment.Method, customerID string) (*payment.Payment, error) {
	unlock, err := e.lockInvoice(ctx, invID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	return e.applyDirectPayment(ctx, invID, amount, method, customerID)
}

func (e *Engine) applyDirectPayment(ctx context.Context, invID id.InvoiceID, amount types.Money, method payment.Method, customerID string) (*payment.Payment, error) {
	inv, err := e.store.GetInvoice(ctx, invID)
	if err != nil {
		return nil, err
	}
	if inv.CustomerID != customerID {
		return nil, ErrUnauthorized
	}
	if !method.Valid() {
		return nil, invalid(ErrInvalidMethod, "method", fmt.Sprintf("unknown method %q", method))
	}

	if _, err := e.checkPayable(ctx, inv, amount); err != nil {
		return nil, err
	}

	if !method.SettlesImmediately() {
		return e.recorder.Record(ctx, inv.ID, inv.CustomerID, amount, method)
	}

	p, err := e.recorder.recordSettled(ctx, inv.ID, inv.CustomerID, amount, method)
	if err != nil {
		return nil, err
	}
	if _, err := e.reconcile(ctx, inv); err != nil {
		// The payment stands; the next read re-derives the invoice.
		e.logger.Warn("billing: reconcile after payment failed",
			"invoice_id", inv.ID.String(),
			"payment_id", p.ID.String(),
			"error", err,
		)
	}

	return p, nil
}

// SettlePayment moves a pending payment to success or failure and
// reconciles its invoice. A success is re-validated against the invoice
// under its lock: when the invoice is void or the payment no longer fits
// the balance, the payment is failed instead.
func (e *Engine) SettlePayment(ctx context.Context, payID id.PaymentID, s payment.Settlement) (*payment.Payment, error) {
	if !s.Status.Terminal() {
		return nil, invalid(ErrInvalidInput, "status", fmt.Sprintf("cannot settle to %q", s.Status))
	}

	p, err := e.store.GetPayment(ctx, payID)
	if err != nil {
		return nil, err
	}

	unlock, err := e.lockInvoice(ctx, p.InvoiceID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	inv, err := e.store.GetInvoice(ctx, p.InvoiceID)
	if err != nil {
		return nil, err
	}

	if s.Status == payment.StatusSuccess {
		reason, err := e.rejectSuccess(ctx, inv, p)
		if err != nil {
			return nil, err
		}
		if reason != "" {
			s = payment.Settlement{Status: payment.StatusFailed, GatewayTxnID: s.GatewayTxnID, Notes: "rejected: " + reason}
			e.logger.Error("payment success could not be applied",
				"payment_id", p.ID.String(),
				"invoice_id", inv.ID.String(),
				"reason", reason,
			)
		}
	}

	p, applied, err := e.recorder.settle(ctx, payID, s)
	if err != nil {
		return nil, err
	}
	if applied && p.Status == payment.StatusSuccess {
		if _, err := e.reconcile(ctx, inv); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// rejectSuccess reports why a pending payment can no longer succeed, or
// the empty string when it still fits.
func (e *Engine) rejectSuccess(ctx context.Context, inv *invoice.Invoice, p *payment.Payment) (string, error) {
	total, err := e.reconcile(ctx, inv)
	if err != nil {
		return "", err
	}
	switch {
	case inv.Status == invoice.StatusVoid:
		return "invoice is void", nil
	case p.Amount.GreaterThan(inv.Balance(total)):
		return fmt.Sprintf("%s exceeds outstanding balance %s", p.Amount, inv.Balance(total)), nil
	}
	return "", nil
}

// checkPayable re-derives the invoice status and verifies amount against
// the current balance. It returns the balance.
func (e *Engine) checkPayable(ctx context.Context, inv *invoice.Invoice, amount types.Money) (types.Money, error) {
	total, err := e.reconcile(ctx, inv)
	if err != nil {
		return types.Money{}, err
	}

	if !inv.Payable() {
		return types.Money{}, invalid(ErrInvalidPayment, "invoice", fmt.Sprintf("invoice is %s", inv.Status))
	}
	if !amount.IsPositive() {
		return types.Money{}, invalid(ErrInvalidPayment, "amount", "must be greater than zero")
	}
	if !amount.SameCurrency(inv.Amount) {
		return types.Money{}, invalid(ErrInvalidPayment, "currency",
			fmt.Sprintf("expected %s, got %s", inv.Amount.CurrencyCode(), amount.CurrencyCode()))
	}

	balance := inv.Balance(total)
	if amount.GreaterThan(balance) {
		return types.Money{}, invalid(ErrInvalidPayment, "amount",
			fmt.Sprintf("%s exceeds outstanding balance %s", amount, balance))
	}
	return balance, nil
}

// ──────────────────────────────────────────────────
// Gateway payments
// ──────────────────────────────────────────────────

// InitiateGatewayPayment records a pending online payment and returns the
// signed checkout payload. The invoice ID is the gateway order ID, which is
// how the later notification finds the payment.
func (e *Engine) InitiateGatewayPayment(ctx context.Context, invID id.InvoiceID, amount types.Money, customer gateway.Customer) (*gateway.InitiationParams, error) {
	if e.signer == nil {
		return nil, ErrGatewayNotConfigured
	}

	unlock, err := e.lockInvoice(ctx, invID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	inv, err := e.store.GetInvoice(ctx, invID)
	if err != nil {
		return nil, err
	}
	if inv.CustomerID != customer.CustomerID {
		return nil, ErrUnauthorized
	}
	if _, err := e.checkPayable(ctx, inv, amount); err != nil {
		return nil, err
	}

	p, err := e.recorder.Record(ctx, inv.ID, inv.CustomerID, amount, payment.MethodOnline)
	if err != nil {
		return nil, err
	}

	params := e.signer.Initiate(inv.ID.String(), "Invoice "+inv.Number, amount, customer)
	params.PaymentID = p.ID.String()

	e.logger.Info("gateway payment initiated",
		"invoice_id", inv.ID.String(),
		"payment_id", p.ID.String(),
		"amount", amount.String(),
		"sandbox", params.Sandbox,
	)

	return params, nil
}

// ProcessGatewayNotification applies an asynchronous gateway callback.
// Authenticity is checked before anything else. Unmatched and redelivered
// notifications are logged and return no error; the returned payment is
// nil when nothing matched.
func (e *Engine) ProcessGatewayNotification(ctx context.Context, n gateway.Notification) (*payment.Payment, error) {
	if e.signer == nil {
		return nil, ErrGatewayNotConfigured
	}

	if !e.signer.Verify(n) || n.MerchantID != e.signer.Config().MerchantID {
		e.logger.Warn("webhook signature rejected",
			"order_id", n.OrderID,
			"merchant_id", n.MerchantID,
			"status_code", n.StatusCode,
		)
		e.plugins.EmitWebhookRejected(ctx, n, "signature mismatch")
		return nil, ErrInvalidSignature
	}

	invID, err := id.ParseInvoiceID(n.OrderID)
	if err != nil {
		e.ignore(ctx, n, "unknown order id")
		return nil, nil //nolint:nilnil // unmatched notifications are not errors
	}

	unlock, err := e.lockInvoice(ctx, invID)
	if errors.Is(err, ErrInvoiceNotFound) {
		e.ignore(ctx, n, "invoice not found")
		return nil, nil //nolint:nilnil // unmatched notifications are not errors
	}
	if err != nil {
		return nil, err
	}
	defer unlock()

	inv, err := e.store.GetInvoice(ctx, invID)
	if errors.Is(err, ErrInvoiceNotFound) {
		e.ignore(ctx, n, "invoice not found")
		return nil, nil //nolint:nilnil // unmatched notifications are not errors
	}
	if err != nil {
		return nil, err
	}

	p, err := e.matchNotification(ctx, n, invID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		e.ignore(ctx, n, "no matching payment")
		return nil, nil //nolint:nilnil // unmatched notifications are not errors
	}
	if p.Status.Terminal() {
		e.ignore(ctx, n, "duplicate delivery")
		return p, nil
	}

	settlement, err := e.settlementFor(ctx, n, inv, p)
	if err != nil {
		return nil, err
	}

	p, applied, err := e.recorder.settle(ctx, p.ID, settlement)
	if err != nil {
		return nil, err
	}
	if !applied {
		e.ignore(ctx, n, "duplicate delivery")
		return p, nil
	}

	if p.Status == payment.StatusSuccess {
		if _, err := e.reconcile(ctx, inv); err != nil {
			return nil, err
		}
	}

	return p, nil
}

// matchNotification finds the payment a notification refers to: the one
// already carrying its gateway transaction ID, otherwise the most recent
// gateway-mediated payment on the invoice.
func (e *Engine) matchNotification(ctx context.Context, n gateway.Notification, invID id.InvoiceID) (*payment.Payment, error) {
	if n.PaymentID != "" {
		p, err := e.store.GetPaymentByGatewayTxn(ctx, n.PaymentID)
		switch {
		case err == nil && p.InvoiceID == invID:
			return p, nil
		case err != nil && !errors.Is(err, ErrPaymentNotFound):
			return nil, err
		}
	}

	payments, err := e.recorder.ListByInvoice(ctx, invID)
	if err != nil {
		return nil, err
	}
	for _, p := range payments {
		if !p.Method.SettlesImmediately() {
			return p, nil
		}
	}
	return nil, nil //nolint:nilnil // absence is a valid outcome
}

// settlementFor maps the notification onto an outcome. A success is only
// honoured when it matches the recorded amount and still fits within the
// invoice balance.
func (e *Engine) settlementFor(ctx context.Context, n gateway.Notification, inv *invoice.Invoice, p *payment.Payment) (payment.Settlement, error) {
	s := payment.Settlement{
		GatewayTxnID: n.PaymentID,
		Notes:        "PayHere status code: " + n.StatusCode,
	}
	if n.StatusMessage != "" {
		s.Notes += " (" + n.StatusMessage + ")"
	}

	if !n.Succeeded() {
		s.Status = payment.StatusFailed
		return s, nil
	}

	paid, err := n.Money()
	if err != nil || !paid.Equal(p.Amount) {
		s.Status = payment.StatusFailed
		s.Notes = fmt.Sprintf("rejected: notified amount %s %s does not match payment amount %s",
			n.Amount, strings.ToUpper(n.Currency), p.Amount)
		e.logger.Error("webhook amount mismatch",
			"payment_id", p.ID.String(),
			"notified", n.Amount,
			"expected", p.Amount.FormatMajor(),
		)
		return s, nil
	}

	reason, err := e.rejectSuccess(ctx, inv, p)
	if err != nil {
		return s, err
	}
	if reason == "" {
		s.Status = payment.StatusSuccess
		return s, nil
	}
	s.Status = payment.StatusFailed
	s.Notes = "rejected: " + reason

	e.logger.Error("gateway success could not be applied",
		"payment_id", p.ID.String(),
		"invoice_id", inv.ID.String(),
		"reason", s.Notes,
		"gateway_payment_id", n.PaymentID,
	)
	return s, nil
}

func (e *Engine) ignore(ctx context.Context, n gateway.Notification, reason string) {
	e.logger.Info("webhook ignored",
		"order_id", n.OrderID,
		"gateway_payment_id", n.PaymentID,
		"status_code", n.StatusCode,
		"reason", reason,
	)
	e.plugins.EmitWebhookIgnored(ctx, n, reason)
}

// ──────────────────────────────────────────────────
// Scheduled payments
// ──────────────────────────────────────────────────

// SchedulePayment books a future installment. The balance check is made
// against the current balance minus amounts already scheduled; it does
// not reserve funds, so execution re-validates.
func (e *Engine) SchedulePayment(ctx context.Context, invID id.InvoiceID, amount types.Money, date time.Time, customerID string) (*schedule.ScheduledPayment, error) {
	unlock, err := e.lockInvoice(ctx, invID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	inv, err := e.store.GetInvoice(ctx, invID)
	if err != nil {
		return nil, err
	}
	if inv.CustomerID != customerID {
		return nil, ErrUnauthorized
	}

	total, err := e.reconcile(ctx, inv)
	if err != nil {
		return nil, err
	}
	if !inv.Payable() {
		return nil, invalid(ErrInvalidSchedule, "invoice", fmt.Sprintf("invoice is %s", inv.Status))
	}
	if !amount.IsPositive() {
		return nil, invalid(ErrInvalidSchedule, "amount", "must be greater than zero")
	}
	if !amount.SameCurrency(inv.Amount) {
		return nil, invalid(ErrInvalidSchedule, "currency",
			fmt.Sprintf("expected %s, got %s", inv.Amount.CurrencyCode(), amount.CurrencyCode()))
	}
	if !invoice.Day(date).After(invoice.Day(e.clock())) {
		return nil, invalid(ErrInvalidSchedule, "scheduled_date", "must be in the future")
	}

	scheduled, err := e.schedules.ScheduledTotal(ctx, inv.ID, inv.Currency)
	if err != nil {
		return nil, err
	}
	available := inv.Balance(total).Subtract(scheduled)
	if amount.GreaterThan(available) {
		return nil, invalid(ErrInvalidSchedule, "amount",
			fmt.Sprintf("%s exceeds unscheduled balance %s", amount, available))
	}

	sp := &schedule.ScheduledPayment{
		InvoiceID:     inv.ID,
		CustomerID:    inv.CustomerID,
		Amount:        amount,
		ScheduledDate: invoice.Day(date),
	}
	if err := e.schedules.create(ctx, sp); err != nil {
		return nil, err
	}

	e.logger.Info("payment scheduled",
		"scheduled_payment_id", sp.ID.String(),
		"invoice_id", inv.ID.String(),
		"amount", amount.String(),
		"date", sp.ScheduledDate.Format(time.DateOnly),
	)

	return sp, nil
}

// ExecuteScheduledPayment charges a scheduled installment with a method
// that settles immediately. The balance is re-validated; if the payment
// can no longer be applied the installment is marked failed and the
// validation error is returned.
func (e *Engine) ExecuteScheduledPayment(ctx context.Context, spID id.ScheduledPaymentID, method payment.Method) (*schedule.ScheduledPayment, *payment.Payment, error) {
	if !method.SettlesImmediately() {
		return nil, nil, invalid(ErrInvalidMethod, "method", "scheduled payments require an immediately settled method")
	}

	sp, err := e.schedules.Get(ctx, spID)
	if err != nil {
		return nil, nil, err
	}

	unlock, err := e.lockInvoice(ctx, sp.InvoiceID)
	if err != nil {
		return sp, nil, err
	}
	defer unlock()

	// Only the holder of the invoice lock may observe the installment as
	// still scheduled and charge it.
	sp, err = e.schedules.Get(ctx, spID)
	if err != nil {
		return nil, nil, err
	}
	if sp.Status != schedule.StatusScheduled {
		return sp, nil, ErrScheduleNotPending
	}

	p, err := e.applyDirectPayment(ctx, sp.InvoiceID, sp.Amount, method, sp.CustomerID)
	if err != nil {
		if !IsValidation(err) && !errors.Is(err, ErrUnauthorized) {
			return sp, nil, err
		}
		failed, ferr := e.schedules.MarkFailed(ctx, spID, err.Error())
		if ferr != nil {
			return sp, nil, ferr
		}
		e.logger.Warn("scheduled payment failed",
			"scheduled_payment_id", spID.String(),
			"invoice_id", sp.InvoiceID.String(),
			"error", err,
		)
		return failed, nil, err
	}

	processed, err := e.schedules.MarkProcessed(ctx, spID, p.ID)
	if err != nil {
		return sp, p, err
	}

	e.logger.Info("scheduled payment processed",
		"scheduled_payment_id", spID.String(),
		"payment_id", p.ID.String(),
	)
	return processed, p, nil
}

// CancelScheduledPayment cancels an installment the actor owns.
func (e *Engine) CancelScheduledPayment(ctx context.Context, spID id.ScheduledPaymentID, actor Actor) (*schedule.ScheduledPayment, error) {
	sp, err := e.schedules.Get(ctx, spID)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(sp.CustomerID) {
		return nil, ErrUnauthorized
	}

	unlock, err := e.lockInvoice(ctx, sp.InvoiceID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	return e.schedules.Cancel(ctx, spID, "")
}
