package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/billing"
	"github.com/xraph/billing/id"
	"github.com/xraph/billing/invoice"
	"github.com/xraph/billing/payment"
	"github.com/xraph/billing/schedule"
	billingstore "github.com/xraph/billing/store"
)

// Collection name constants.
const (
	colInvoices  = "billing_invoices"
	colPayments  = "billing_payments"
	colSchedules = "billing_scheduled_payments"
	colLocks     = "billing_invoice_locks"
)

// compile-time interface check
var _ billingstore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all billing collections.
func (s *Store) Migrate(ctx context.Context) error {
	for col, models := range migrationIndexes() {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("billing/mongo: %w: %s indexes: %w", billing.ErrMigrationFailed, col, err)
		}
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
	_, err := s.mdb.NewInsert(toInvoiceModel(inv)).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return billing.ErrAlreadyExists
		}
		return fmt.Errorf("billing/mongo: create invoice: %w", err)
	}
	return nil
}

func (s *Store) GetInvoice(ctx context.Context, invID id.InvoiceID) (*invoice.Invoice, error) {
	var m invoiceModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": invID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, billing.ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("billing/mongo: get invoice: %w", err)
	}
	return fromInvoiceModel(&m)
}

func (s *Store) UpdateInvoice(ctx context.Context, inv *invoice.Invoice) error {
	m := toInvoiceModel(inv)

	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("billing/mongo: update invoice: %w", err)
	}
	if res.MatchedCount() == 0 {
		return billing.ErrInvoiceNotFound
	}
	return nil
}

func (s *Store) ListInvoices(ctx context.Context, opts invoice.ListOpts) ([]*invoice.Invoice, error) {
	var models []invoiceModel

	filter := bson.M{}
	if opts.CustomerID != "" {
		filter["customer_id"] = opts.CustomerID
	}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("billing/mongo: list invoices: %w", err)
	}
	return fromInvoiceModels(models)
}

func (s *Store) ListOverdueInvoices(ctx context.Context, asOf time.Time) ([]*invoice.Invoice, error) {
	var models []invoiceModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{
			"status": bson.M{"$in": bson.A{
				string(invoice.StatusSent),
				string(invoice.StatusPartiallyPaid),
				string(invoice.StatusOverdue),
			}},
			"due_date": bson.M{"$lt": invoice.Day(asOf)},
		}).
		Sort(bson.D{{Key: "due_date", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("billing/mongo: list overdue invoices: %w", err)
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

// AcquireInvoiceLock keys the lease document on the invoice ID, so two
// concurrent inserts for the same invoice cannot both succeed.
func (s *Store) AcquireInvoiceLock(ctx context.Context, invID id.InvoiceID, owner string, now, until time.Time) (bool, error) {
	if _, err := s.GetInvoice(ctx, invID); err != nil {
		return false, err
	}

	res, err := s.mdb.NewUpdate((*invoiceLockModel)(nil)).
		Filter(bson.M{
			"_id": invID.String(),
			"$or": bson.A{
				bson.M{"expires_at": bson.M{"$lt": now}},
				bson.M{"owner": owner},
			},
		}).
		Set("owner", owner).
		Set("expires_at", until).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("billing/mongo: acquire invoice lock: %w", err)
	}
	if res.MatchedCount() > 0 {
		return true, nil
	}

	_, err = s.mdb.NewInsert(&invoiceLockModel{
		InvoiceID: invID.String(),
		Owner:     owner,
		ExpiresAt: until,
	}).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("billing/mongo: acquire invoice lock: %w", err)
	}
	return true, nil
}

func (s *Store) ReleaseInvoiceLock(ctx context.Context, invID id.InvoiceID, owner string) error {
	_, err := s.mdb.Collection(colLocks).DeleteOne(ctx, bson.M{"_id": invID.String(), "owner": owner})
	if err != nil {
		return fmt.Errorf("billing/mongo: release invoice lock: %w", err)
	}
	return nil
}

// ==================== Payment Store ====================

func (s *Store) CreatePayment(ctx context.Context, p *payment.Payment) error {
	_, err := s.mdb.NewInsert(toPaymentModel(p)).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return billing.ErrAlreadyExists
		}
		return fmt.Errorf("billing/mongo: create payment: %w", err)
	}
	return nil
}

func (s *Store) GetPayment(ctx context.Context, payID id.PaymentID) (*payment.Payment, error) {
	var m paymentModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": payID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, billing.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("billing/mongo: get payment: %w", err)
	}
	return fromPaymentModel(&m)
}

func (s *Store) GetPaymentByGatewayTxn(ctx context.Context, txnID string) (*payment.Payment, error) {
	if txnID == "" {
		return nil, billing.ErrPaymentNotFound
	}
	var m paymentModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"gateway_txn_id": txnID}).
		Sort(bson.D{{Key: "created_at", Value: -1}}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, billing.ErrPaymentNotFound
		}
		return nil, fmt.Errorf("billing/mongo: get payment by txn: %w", err)
	}
	return fromPaymentModel(&m)
}

func (s *Store) ListPaymentsByInvoice(ctx context.Context, invID id.InvoiceID) ([]*payment.Payment, error) {
	return s.listPayments(ctx, bson.M{"invoice_id": invID.String()})
}

func (s *Store) ListPaymentsByCustomer(ctx context.Context, customerID string) ([]*payment.Payment, error) {
	return s.listPayments(ctx, bson.M{"customer_id": customerID})
}

func (s *Store) listPayments(ctx context.Context, filter bson.M) ([]*payment.Payment, error) {
	var models []paymentModel
	err := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("billing/mongo: list payments: %w", err)
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

// SettlePayment filters on the pending status so only one settlement of a
// payment can match.
func (s *Store) SettlePayment(ctx context.Context, payID id.PaymentID, st payment.Settlement, at time.Time) (bool, error) {
	update := s.mdb.NewUpdate((*paymentModel)(nil)).
		Filter(bson.M{"_id": payID.String(), "status": string(payment.StatusPending)}).
		Set("status", string(st.Status)).
		Set("updated_at", at)
	if st.GatewayTxnID != "" {
		update = update.Set("gateway_txn_id", st.GatewayTxnID)
	}
	if st.Notes != "" {
		update = update.Set("notes", st.Notes)
	}

	res, err := update.Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("billing/mongo: settle payment: %w", err)
	}
	if res.MatchedCount() > 0 {
		return true, nil
	}

	if _, err := s.GetPayment(ctx, payID); err != nil {
		return false, err
	}
	return false, nil
}

func (s *Store) SumSucceeded(ctx context.Context, invID id.InvoiceID) (int64, error) {
	pipeline := bson.A{
		bson.M{
			"$match": bson.M{
				"invoice_id": invID.String(),
				"status":     string(payment.StatusSuccess),
			},
		},
		bson.M{
			"$group": bson.M{
				"_id":   nil,
				"total": bson.M{"$sum": "$amount_cents"},
			},
		},
	}

	cursor, err := s.mdb.Collection(colPayments).Aggregate(ctx, pipeline)
	if err != nil {
		return 0, fmt.Errorf("billing/mongo: sum payments: %w", err)
	}
	defer cursor.Close(ctx)

	var results []struct {
		Total int64 `bson:"total"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return 0, fmt.Errorf("billing/mongo: sum payments decode: %w", err)
	}

	if len(results) == 0 {
		return 0, nil
	}
	return results[0].Total, nil
}

// ==================== Scheduled Payment Store ====================

func (s *Store) CreateScheduledPayment(ctx context.Context, sp *schedule.ScheduledPayment) error {
	_, err := s.mdb.NewInsert(toScheduledPaymentModel(sp)).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return billing.ErrAlreadyExists
		}
		return fmt.Errorf("billing/mongo: create scheduled payment: %w", err)
	}
	return nil
}

func (s *Store) GetScheduledPayment(ctx context.Context, spID id.ScheduledPaymentID) (*schedule.ScheduledPayment, error) {
	var m scheduledPaymentModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": spID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, billing.ErrScheduledPaymentNotFound
		}
		return nil, fmt.Errorf("billing/mongo: get scheduled payment: %w", err)
	}
	return fromScheduledPaymentModel(&m)
}

func (s *Store) ListScheduledPayments(ctx context.Context, opts schedule.ListOpts) ([]*schedule.ScheduledPayment, error) {
	var models []scheduledPaymentModel

	filter := bson.M{}
	if opts.CustomerID != "" {
		filter["customer_id"] = opts.CustomerID
	}
	if !opts.InvoiceID.IsNil() {
		filter["invoice_id"] = opts.InvoiceID.String()
	}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}

	date := bson.M{}
	if !opts.On.IsZero() {
		day := invoice.Day(opts.On)
		date["$gte"] = day
		date["$lt"] = day.AddDate(0, 0, 1)
	}
	if !opts.OnOrBefore.IsZero() {
		end := invoice.Day(opts.OnOrBefore).AddDate(0, 0, 1)
		if cur, ok := date["$lt"].(time.Time); !ok || end.Before(cur) {
			date["$lt"] = end
		}
	}
	if len(date) > 0 {
		filter["scheduled_date"] = date
	}

	err := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "scheduled_date", Value: 1}, {Key: "_id", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("billing/mongo: list scheduled payments: %w", err)
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
	update := s.mdb.NewUpdate((*scheduledPaymentModel)(nil)).
		Filter(bson.M{"_id": spID.String(), "status": string(schedule.StatusScheduled)}).
		Set("status", string(t.Status)).
		Set("updated_at", at)
	if !t.PaymentID.IsNil() {
		update = update.Set("payment_id", t.PaymentID.String())
	}
	if t.Notes != "" {
		update = update.Set("notes", t.Notes)
	}

	res, err := update.Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("billing/mongo: transition scheduled payment: %w", err)
	}
	if res.MatchedCount() > 0 {
		return true, nil
	}

	if _, err := s.GetScheduledPayment(ctx, spID); err != nil {
		return false, err
	}
	return false, nil
}

// ==================== Helpers ====================

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all billing collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colInvoices: {
			{
				Keys:    bson.D{{Key: "number", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "customer_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "due_date", Value: 1}}},
		},
		colPayments: {
			{Keys: bson.D{{Key: "invoice_id", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "customer_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{
				Keys:    bson.D{{Key: "gateway_txn_id", Value: 1}},
				Options: options.Index().SetSparse(true),
			},
		},
		colSchedules: {
			{Keys: bson.D{{Key: "invoice_id", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "customer_id", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "scheduled_date", Value: 1}}},
		},
	}
}
