// Package memory implements store.Store in process memory. It backs tests
// and single-node development runs.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xraph/billing"
	"github.com/xraph/billing/id"
	"github.com/xraph/billing/invoice"
	"github.com/xraph/billing/payment"
	"github.com/xraph/billing/schedule"
	"github.com/xraph/billing/store"
)

var _ store.Store = (*Store)(nil)

// Store keeps copies of every record; callers never share memory with it.
type Store struct {
	mu sync.RWMutex

	invoices  map[string]*invoice.Invoice
	payments  map[string]*payment.Payment
	schedules map[string]*schedule.ScheduledPayment
	leases    map[string]lease
}

type lease struct {
	owner string
	until time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		invoices:  make(map[string]*invoice.Invoice),
		payments:  make(map[string]*payment.Payment),
		schedules: make(map[string]*schedule.ScheduledPayment),
		leases:    make(map[string]lease),
	}
}

// ──────────────────────────────────────────────────
// Invoices
// ──────────────────────────────────────────────────

func (s *Store) CreateInvoice(_ context.Context, inv *invoice.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.invoices[inv.ID.String()]; exists {
		return billing.ErrAlreadyExists
	}
	s.invoices[inv.ID.String()] = cloneInvoice(inv)
	return nil
}

func (s *Store) GetInvoice(_ context.Context, invID id.InvoiceID) (*invoice.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if inv, ok := s.invoices[invID.String()]; ok {
		return cloneInvoice(inv), nil
	}
	return nil, billing.ErrInvoiceNotFound
}

func (s *Store) UpdateInvoice(_ context.Context, inv *invoice.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.invoices[inv.ID.String()]; !ok {
		return billing.ErrInvoiceNotFound
	}
	s.invoices[inv.ID.String()] = cloneInvoice(inv)
	return nil
}

func (s *Store) ListInvoices(_ context.Context, opts invoice.ListOpts) ([]*invoice.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*invoice.Invoice
	for _, inv := range s.invoices {
		if opts.CustomerID != "" && inv.CustomerID != opts.CustomerID {
			continue
		}
		if opts.Status != "" && inv.Status != opts.Status {
			continue
		}
		result = append(result, cloneInvoice(inv))
	}
	sort.Slice(result, func(i, j int) bool {
		return newer(result[i].CreatedAt, result[j].CreatedAt, result[i].ID, result[j].ID)
	})

	return paginate(result, opts.Limit, opts.Offset), nil
}

func (s *Store) ListOverdueInvoices(_ context.Context, asOf time.Time) ([]*invoice.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := invoice.Day(asOf)
	var result []*invoice.Invoice
	for _, inv := range s.invoices {
		switch inv.Status {
		case invoice.StatusSent, invoice.StatusPartiallyPaid, invoice.StatusOverdue:
		default:
			continue
		}
		if inv.DueDate.Before(cutoff) {
			result = append(result, cloneInvoice(inv))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].DueDate.Before(result[j].DueDate) })
	return result, nil
}

func (s *Store) AcquireInvoiceLock(_ context.Context, invID id.InvoiceID, owner string, now, until time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := invID.String()
	if _, ok := s.invoices[key]; !ok {
		return false, billing.ErrInvoiceNotFound
	}
	if l, held := s.leases[key]; held && l.owner != owner && l.until.After(now) {
		return false, nil
	}
	s.leases[key] = lease{owner: owner, until: until}
	return true, nil
}

func (s *Store) ReleaseInvoiceLock(_ context.Context, invID id.InvoiceID, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if l, held := s.leases[invID.String()]; held && l.owner == owner {
		delete(s.leases, invID.String())
	}
	return nil
}

// ──────────────────────────────────────────────────
// Payments
// ──────────────────────────────────────────────────

func (s *Store) CreatePayment(_ context.Context, p *payment.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.payments[p.ID.String()]; exists {
		return billing.ErrAlreadyExists
	}
	cp := *p
	s.payments[p.ID.String()] = &cp
	return nil
}

func (s *Store) GetPayment(_ context.Context, payID id.PaymentID) (*payment.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.payments[payID.String()]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, billing.ErrPaymentNotFound
}

func (s *Store) GetPaymentByGatewayTxn(_ context.Context, txnID string) (*payment.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if txnID == "" {
		return nil, billing.ErrPaymentNotFound
	}
	for _, p := range s.payments {
		if p.GatewayTxnID == txnID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, billing.ErrPaymentNotFound
}

func (s *Store) ListPaymentsByInvoice(_ context.Context, invID id.InvoiceID) ([]*payment.Payment, error) {
	return s.listPayments(func(p *payment.Payment) bool { return p.InvoiceID == invID }), nil
}

func (s *Store) ListPaymentsByCustomer(_ context.Context, customerID string) ([]*payment.Payment, error) {
	return s.listPayments(func(p *payment.Payment) bool { return p.CustomerID == customerID }), nil
}

func (s *Store) listPayments(match func(*payment.Payment) bool) []*payment.Payment {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*payment.Payment
	for _, p := range s.payments {
		if match(p) {
			cp := *p
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return newer(result[i].CreatedAt, result[j].CreatedAt, result[i].ID, result[j].ID)
	})
	return result
}

func (s *Store) SettlePayment(_ context.Context, payID id.PaymentID, st payment.Settlement, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payments[payID.String()]
	if !ok {
		return false, billing.ErrPaymentNotFound
	}
	if p.Status != payment.StatusPending {
		return false, nil
	}

	p.Status = st.Status
	if st.GatewayTxnID != "" {
		p.GatewayTxnID = st.GatewayTxnID
	}
	if st.Notes != "" {
		p.Notes = st.Notes
	}
	p.TouchAt(at)
	return true, nil
}

func (s *Store) SumSucceeded(_ context.Context, invID id.InvoiceID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total int64
	for _, p := range s.payments {
		if p.InvoiceID == invID && p.Status == payment.StatusSuccess {
			total += p.Amount.Amount
		}
	}
	return total, nil
}

// ──────────────────────────────────────────────────
// Scheduled payments
// ──────────────────────────────────────────────────

func (s *Store) CreateScheduledPayment(_ context.Context, sp *schedule.ScheduledPayment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.schedules[sp.ID.String()]; exists {
		return billing.ErrAlreadyExists
	}
	cp := *sp
	s.schedules[sp.ID.String()] = &cp
	return nil
}

func (s *Store) GetScheduledPayment(_ context.Context, spID id.ScheduledPaymentID) (*schedule.ScheduledPayment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if sp, ok := s.schedules[spID.String()]; ok {
		cp := *sp
		return &cp, nil
	}
	return nil, billing.ErrScheduledPaymentNotFound
}

func (s *Store) ListScheduledPayments(_ context.Context, opts schedule.ListOpts) ([]*schedule.ScheduledPayment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*schedule.ScheduledPayment
	for _, sp := range s.schedules {
		if opts.CustomerID != "" && sp.CustomerID != opts.CustomerID {
			continue
		}
		if !opts.InvoiceID.IsNil() && sp.InvoiceID != opts.InvoiceID {
			continue
		}
		if opts.Status != "" && sp.Status != opts.Status {
			continue
		}
		day := invoice.Day(sp.ScheduledDate)
		if !opts.On.IsZero() && !day.Equal(invoice.Day(opts.On)) {
			continue
		}
		if !opts.OnOrBefore.IsZero() && day.After(invoice.Day(opts.OnOrBefore)) {
			continue
		}
		cp := *sp
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ScheduledDate.Before(result[j].ScheduledDate)
	})
	return result, nil
}

func (s *Store) TransitionScheduledPayment(_ context.Context, spID id.ScheduledPaymentID, t schedule.Transition, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sp, ok := s.schedules[spID.String()]
	if !ok {
		return false, billing.ErrScheduledPaymentNotFound
	}
	if sp.Status != schedule.StatusScheduled {
		return false, nil
	}

	sp.Status = t.Status
	if !t.PaymentID.IsNil() {
		sp.PaymentID = t.PaymentID
	}
	if t.Notes != "" {
		sp.Notes = t.Notes
	}
	sp.TouchAt(at)
	return true, nil
}

// ──────────────────────────────────────────────────
// Core
// ──────────────────────────────────────────────────

func (s *Store) Migrate(_ context.Context) error { return nil }

func (s *Store) Ping(_ context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func cloneInvoice(inv *invoice.Invoice) *invoice.Invoice {
	cp := *inv
	cp.LineItems = append([]invoice.LineItem(nil), inv.LineItems...)
	return &cp
}

// newer orders by creation time descending, falling back to the
// K-sortable ID.
func newer(a, b time.Time, aID, bID id.ID) bool {
	if !a.Equal(b) {
		return a.After(b)
	}
	return aID.String() > bID.String()
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
