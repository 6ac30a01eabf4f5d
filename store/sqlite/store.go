package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/billing"
	"github.com/xraph/billing/id"
	"github.com/xraph/billing/invoice"
	"github.com/xraph/billing/payment"
	"github.com/xraph/billing/schedule"
	billingstore "github.com/xraph/billing/store"
)

// compile-time interface check
var _ billingstore.Store = (*Store)(nil)

// Store implements store.Store using SQLite via Grove ORM.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
}

// New creates a new SQLite store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("billing/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("billing/sqlite: %w: %w", billing.ErrMigrationFailed, err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Invoice Store ====================

func (s *Store) CreateInvoice(ctx context.Context, inv *invoice.Invoice) error {
	_, err := s.sdb.NewInsert(toInvoiceModel(inv)).Exec(ctx)
	return err
}

func (s *Store) GetInvoice(ctx context.Context, invID id.InvoiceID) (*invoice.Invoice, error) {
	m := new(invoiceModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", invID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, billing.ErrInvoiceNotFound
		}
		return nil, err
	}
	return fromInvoiceModel(m)
}

func (s *Store) UpdateInvoice(ctx context.Context, inv *invoice.Invoice) error {
	res, err := s.sdb.NewUpdate(toInvoiceModel(inv)).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return billing.ErrInvoiceNotFound
	}
	return nil
}

func (s *Store) ListInvoices(ctx context.Context, opts invoice.ListOpts) ([]*invoice.Invoice, error) {
	var models []invoiceModel
	q := s.sdb.NewSelect(&models)

	if opts.CustomerID != "" {
		q = q.Where("customer_id = ?", opts.CustomerID)
	}
	if opts.Status != "" {
		q = q.Where("status = ?", string(opts.Status))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at DESC, id DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return fromInvoiceModels(models)
}

func (s *Store) ListOverdueInvoices(ctx context.Context, asOf time.Time) ([]*invoice.Invoice, error) {
	var models []invoiceModel
	err := s.sdb.NewSelect(&models).
		Where("status IN (?, ?, ?)",
			string(invoice.StatusSent), string(invoice.StatusPartiallyPaid), string(invoice.StatusOverdue)).
		Where("due_date < ?", invoice.Day(asOf)).
		OrderExpr("due_date ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return fromInvoiceModels(models)
}

func fromInvoiceModels(models []invoiceModel) ([]*invoice.Invoice, error) {
	result := make([]*invoice.Invoice, len(models))
	for i := range models {
		inv, err := fromInvoiceModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = inv
	}
	return result, nil
}

// AcquireInvoiceLock extends a lease the owner holds or takes over an
// expired one with a conditional update, and otherwise inserts a new lease.
// The primary key on invoice_id rejects a second concurrent insert.
func (s *Store) AcquireInvoiceLock(ctx context.Context, invID id.InvoiceID, owner string, now, until time.Time) (bool, error) {
	res, err := s.sdb.NewUpdate((*invoiceLockModel)(nil)).
		Set("owner = ?", owner).
		Set("expires_at = ?", until).
		Where("invoice_id = ?", invID.String()).
		Where("(expires_at < ? OR owner = ?)", now, owner).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if rows > 0 {
		return true, nil
	}

	_, insErr := s.sdb.NewInsert(&invoiceLockModel{
		InvoiceID: invID.String(),
		Owner:     owner,
		ExpiresAt: until,
	}).Exec(ctx)
	if insErr == nil {
		return true, nil
	}

	held := new(invoiceLockModel)
	err = s.sdb.NewSelect(held).Where("invoice_id = ?", invID.String()).Scan(ctx)
	switch {
	case err == nil:
		return false, nil
	case !isNoRows(err):
		return false, err
	}
	if _, err := s.GetInvoice(ctx, invID); err != nil {
		return false, err
	}
	return false, insErr
}

func (s *Store) ReleaseInvoiceLock(ctx context.Context, invID id.InvoiceID, owner string) error {
	_, err := s.sdb.NewDelete((*invoiceLockModel)(nil)).
		Where("invoice_id = ?", invID.String()).
		Where("owner = ?", owner).
		Exec(ctx)
	return err
}

// ==================== Payment Store ====================

func (s *Store) CreatePayment(ctx context.Context, p *payment.Payment) error {
	_, err := s.sdb.NewInsert(toPaymentModel(p)).Exec(ctx)
	return err
}

func (s *Store) GetPayment(ctx context.Context, payID id.PaymentID) (*payment.Payment, error) {
	m := new(paymentModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", payID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, billing.ErrPaymentNotFound
		}
		return nil, err
	}
	return fromPaymentModel(m)
}

func (s *Store) GetPaymentByGatewayTxn(ctx context.Context, txnID string) (*payment.Payment, error) {
	if txnID == "" {
		return nil, billing.ErrPaymentNotFound
	}
	m := new(paymentModel)
	err := s.sdb.NewSelect(m).
		Where("gateway_txn_id = ?", txnID).
		OrderExpr("created_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, billing.ErrPaymentNotFound
		}
		return nil, err
	}
	return fromPaymentModel(m)
}

func (s *Store) ListPaymentsByInvoice(ctx context.Context, invID id.InvoiceID) ([]*payment.Payment, error) {
	return s.listPayments(ctx, "invoice_id = ?", invID.String())
}

func (s *Store) ListPaymentsByCustomer(ctx context.Context, customerID string) ([]*payment.Payment, error) {
	return s.listPayments(ctx, "customer_id = ?", customerID)
}

func (s *Store) listPayments(ctx context.Context, where string, arg any) ([]*payment.Payment, error) {
	var models []paymentModel
	err := s.sdb.NewSelect(&models).
		Where(where, arg).
		OrderExpr("created_at DESC, id DESC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]*payment.Payment, len(models))
	for i := range models {
		p, err := fromPaymentModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = p
	}
	return result, nil
}

// SettlePayment only touches rows still pending, so concurrent settlements
// of the same payment cannot both apply.
func (s *Store) SettlePayment(ctx context.Context, payID id.PaymentID, st payment.Settlement, at time.Time) (bool, error) {
	res, err := s.sdb.NewUpdate((*paymentModel)(nil)).
		Set("status = ?", string(st.Status)).
		Set("gateway_txn_id = COALESCE(NULLIF(?, ''), gateway_txn_id)", st.GatewayTxnID).
		Set("notes = COALESCE(NULLIF(?, ''), notes)", st.Notes).
		Set("updated_at = ?", at).
		Where("id = ?", payID.String()).
		Where("status = ?", string(payment.StatusPending)).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if rows > 0 {
		return true, nil
	}

	// Distinguish "already settled" from "missing".
	if _, err := s.GetPayment(ctx, payID); err != nil {
		return false, err
	}
	return false, nil
}

func (s *Store) SumSucceeded(ctx context.Context, invID id.InvoiceID) (int64, error) {
	var total int64
	err := s.sdb.NewRaw(`
		SELECT COALESCE(SUM(amount_cents), 0) FROM billing_payments
		WHERE invoice_id = ? AND status = ?
	`, invID.String(), string(payment.StatusSuccess)).Scan(ctx, &total)
	if err != nil {
		return 0, err
	}
	return total, nil
}

// ==================== Scheduled Payment Store ====================

func (s *Store) CreateScheduledPayment(ctx context.Context, sp *schedule.ScheduledPayment) error {
	_, err := s.sdb.NewInsert(toScheduledPaymentModel(sp)).Exec(ctx)
	return err
}

func (s *Store) GetScheduledPayment(ctx context.Context, spID id.ScheduledPaymentID) (*schedule.ScheduledPayment, error) {
	m := new(scheduledPaymentModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", spID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, billing.ErrScheduledPaymentNotFound
		}
		return nil, err
	}
	return fromScheduledPaymentModel(m)
}

func (s *Store) ListScheduledPayments(ctx context.Context, opts schedule.ListOpts) ([]*schedule.ScheduledPayment, error) {
	var models []scheduledPaymentModel
	q := s.sdb.NewSelect(&models)

	where := func(expr string, arg any) { q = q.Where(expr, arg) }
	if opts.CustomerID != "" {
		where("customer_id = ?", opts.CustomerID)
	}
	if !opts.InvoiceID.IsNil() {
		where("invoice_id = ?", opts.InvoiceID.String())
	}
	if opts.Status != "" {
		where("status = ?", string(opts.Status))
	}
	if !opts.On.IsZero() {
		day := invoice.Day(opts.On)
		where("scheduled_date >= ?", day)
		where("scheduled_date < ?", day.AddDate(0, 0, 1))
	}
	if !opts.OnOrBefore.IsZero() {
		where("scheduled_date < ?", invoice.Day(opts.OnOrBefore).AddDate(0, 0, 1))
	}
	q = q.OrderExpr("scheduled_date ASC, id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*schedule.ScheduledPayment, len(models))
	for i := range models {
		sp, err := fromScheduledPaymentModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = sp
	}
	return result, nil
}

func (s *Store) TransitionScheduledPayment(ctx context.Context, spID id.ScheduledPaymentID, t schedule.Transition, at time.Time) (bool, error) {
	res, err := s.sdb.NewUpdate((*scheduledPaymentModel)(nil)).
		Set("status = ?", string(t.Status)).
		Set("payment_id = COALESCE(NULLIF(?, ''), payment_id)", t.PaymentID.String()).
		Set("notes = COALESCE(NULLIF(?, ''), notes)", t.Notes).
		Set("updated_at = ?", at).
		Where("id = ?", spID.String()).
		Where("status = ?", string(schedule.StatusScheduled)).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if rows > 0 {
		return true, nil
	}

	if _, err := s.GetScheduledPayment(ctx, spID); err != nil {
		return false, err
	}
	return false, nil
}

// ==================== Helpers ====================

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
