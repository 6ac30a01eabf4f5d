package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/billing/gateway"
	"github.com/xraph/billing/invoice"
	"github.com/xraph/billing/payment"
	"github.com/xraph/billing/schedule"
)

// DefaultTimeout bounds a single hook invocation.
const DefaultTimeout = 5 * time.Second

// Registry manages registered plugins. Hook implementations are discovered
// once at registration so dispatch is a slice walk.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	onInit                    []OnInit
	onShutdown                []OnShutdown
	onInvoiceCreated          []OnInvoiceCreated
	onInvoiceSent             []OnInvoiceSent
	onInvoiceStatusChanged    []OnInvoiceStatusChanged
	onInvoicePaid             []OnInvoicePaid
	onInvoiceOverdue          []OnInvoiceOverdue
	onInvoiceVoided           []OnInvoiceVoided
	onPaymentRecorded         []OnPaymentRecorded
	onPaymentSucceeded        []OnPaymentSucceeded
	onPaymentFailed           []OnPaymentFailed
	onScheduledPaymentCreated []OnScheduledPaymentCreated
	onScheduledPaymentSettled []OnScheduledPaymentSettled
	onWebhookRejected         []OnWebhookRejected
	onWebhookIgnored          []OnWebhookIgnored
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout overrides the per-hook timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Register adds a plugin to the registry and caches its hooks.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	var hooks []string

	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
		hooks = append(hooks, "OnInit")
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
		hooks = append(hooks, "OnShutdown")
	}
	if v, ok := p.(OnInvoiceCreated); ok {
		r.onInvoiceCreated = append(r.onInvoiceCreated, v)
		hooks = append(hooks, "OnInvoiceCreated")
	}
	if v, ok := p.(OnInvoiceSent); ok {
		r.onInvoiceSent = append(r.onInvoiceSent, v)
		hooks = append(hooks, "OnInvoiceSent")
	}
	if v, ok := p.(OnInvoiceStatusChanged); ok {
		r.onInvoiceStatusChanged = append(r.onInvoiceStatusChanged, v)
		hooks = append(hooks, "OnInvoiceStatusChanged")
	}
	if v, ok := p.(OnInvoicePaid); ok {
		r.onInvoicePaid = append(r.onInvoicePaid, v)
		hooks = append(hooks, "OnInvoicePaid")
	}
	if v, ok := p.(OnInvoiceOverdue); ok {
		r.onInvoiceOverdue = append(r.onInvoiceOverdue, v)
		hooks = append(hooks, "OnInvoiceOverdue")
	}
	if v, ok := p.(OnInvoiceVoided); ok {
		r.onInvoiceVoided = append(r.onInvoiceVoided, v)
		hooks = append(hooks, "OnInvoiceVoided")
	}
	if v, ok := p.(OnPaymentRecorded); ok {
		r.onPaymentRecorded = append(r.onPaymentRecorded, v)
		hooks = append(hooks, "OnPaymentRecorded")
	}
	if v, ok := p.(OnPaymentSucceeded); ok {
		r.onPaymentSucceeded = append(r.onPaymentSucceeded, v)
		hooks = append(hooks, "OnPaymentSucceeded")
	}
	if v, ok := p.(OnPaymentFailed); ok {
		r.onPaymentFailed = append(r.onPaymentFailed, v)
		hooks = append(hooks, "OnPaymentFailed")
	}
	if v, ok := p.(OnScheduledPaymentCreated); ok {
		r.onScheduledPaymentCreated = append(r.onScheduledPaymentCreated, v)
		hooks = append(hooks, "OnScheduledPaymentCreated")
	}
	if v, ok := p.(OnScheduledPaymentSettled); ok {
		r.onScheduledPaymentSettled = append(r.onScheduledPaymentSettled, v)
		hooks = append(hooks, "OnScheduledPaymentSettled")
	}
	if v, ok := p.(OnWebhookRejected); ok {
		r.onWebhookRejected = append(r.onWebhookRejected, v)
		hooks = append(hooks, "OnWebhookRejected")
	}
	if v, ok := p.(OnWebhookIgnored); ok {
		r.onWebhookIgnored = append(r.onWebhookIgnored, v)
		hooks = append(hooks, "OnWebhookIgnored")
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"hooks", hooks,
	)

	return nil
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission
// ──────────────────────────────────────────────────

// snapshot copies a hook list under the read lock.
func snapshot[T Plugin](r *Registry, list *[]T) []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]T, len(*list))
	copy(out, *list)
	return out
}

func emit[T Plugin](ctx context.Context, r *Registry, hook string, list *[]T, fn func(T) error) {
	for _, p := range snapshot(r, list) {
		if err := r.callWithTimeout(ctx, p.Name(), func() error { return fn(p) }); err != nil {
			r.logger.Warn("plugin hook failed",
				"plugin", p.Name(),
				"hook", hook,
				"error", err,
			)
		}
	}
}

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine any) {
	emit(ctx, r, "OnInit", &r.onInit, func(p OnInit) error { return p.OnInit(ctx, engine) })
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	emit(ctx, r, "OnShutdown", &r.onShutdown, func(p OnShutdown) error { return p.OnShutdown(ctx) })
}

// EmitInvoiceCreated emits an invoice created event.
func (r *Registry) EmitInvoiceCreated(ctx context.Context, inv *invoice.Invoice) {
	emit(ctx, r, "OnInvoiceCreated", &r.onInvoiceCreated, func(p OnInvoiceCreated) error {
		return p.OnInvoiceCreated(ctx, inv)
	})
}

// EmitInvoiceSent emits an invoice sent event.
func (r *Registry) EmitInvoiceSent(ctx context.Context, inv *invoice.Invoice) {
	emit(ctx, r, "OnInvoiceSent", &r.onInvoiceSent, func(p OnInvoiceSent) error {
		return p.OnInvoiceSent(ctx, inv)
	})
}

// EmitInvoiceStatusChanged emits a status change, plus the paid or
// overdue event the new status implies.
func (r *Registry) EmitInvoiceStatusChanged(ctx context.Context, inv *invoice.Invoice, from invoice.Status) {
	emit(ctx, r, "OnInvoiceStatusChanged", &r.onInvoiceStatusChanged, func(p OnInvoiceStatusChanged) error {
		return p.OnInvoiceStatusChanged(ctx, inv, from)
	})

	switch inv.Status {
	case invoice.StatusPaid:
		emit(ctx, r, "OnInvoicePaid", &r.onInvoicePaid, func(p OnInvoicePaid) error {
			return p.OnInvoicePaid(ctx, inv)
		})
	case invoice.StatusOverdue:
		emit(ctx, r, "OnInvoiceOverdue", &r.onInvoiceOverdue, func(p OnInvoiceOverdue) error {
			return p.OnInvoiceOverdue(ctx, inv)
		})
	}
}

// EmitInvoiceVoided emits an invoice voided event.
func (r *Registry) EmitInvoiceVoided(ctx context.Context, inv *invoice.Invoice, reason string) {
	emit(ctx, r, "OnInvoiceVoided", &r.onInvoiceVoided, func(p OnInvoiceVoided) error {
		return p.OnInvoiceVoided(ctx, inv, reason)
	})
}

// EmitPaymentRecorded emits a payment recorded event.
func (r *Registry) EmitPaymentRecorded(ctx context.Context, pay *payment.Payment) {
	emit(ctx, r, "OnPaymentRecorded", &r.onPaymentRecorded, func(p OnPaymentRecorded) error {
		return p.OnPaymentRecorded(ctx, pay)
	})
}

// EmitPaymentSettled emits the succeeded or failed event for a settled payment.
func (r *Registry) EmitPaymentSettled(ctx context.Context, pay *payment.Payment) {
	switch pay.Status {
	case payment.StatusSuccess:
		emit(ctx, r, "OnPaymentSucceeded", &r.onPaymentSucceeded, func(p OnPaymentSucceeded) error {
			return p.OnPaymentSucceeded(ctx, pay)
		})
	case payment.StatusFailed:
		emit(ctx, r, "OnPaymentFailed", &r.onPaymentFailed, func(p OnPaymentFailed) error {
			return p.OnPaymentFailed(ctx, pay)
		})
	}
}

// EmitScheduledPaymentCreated emits a scheduled payment created event.
func (r *Registry) EmitScheduledPaymentCreated(ctx context.Context, sp *schedule.ScheduledPayment) {
	emit(ctx, r, "OnScheduledPaymentCreated", &r.onScheduledPaymentCreated, func(p OnScheduledPaymentCreated) error {
		return p.OnScheduledPaymentCreated(ctx, sp)
	})
}

// EmitScheduledPaymentSettled emits a scheduled payment settled event.
func (r *Registry) EmitScheduledPaymentSettled(ctx context.Context, sp *schedule.ScheduledPayment) {
	emit(ctx, r, "OnScheduledPaymentSettled", &r.onScheduledPaymentSettled, func(p OnScheduledPaymentSettled) error {
		return p.OnScheduledPaymentSettled(ctx, sp)
	})
}

// EmitWebhookRejected emits a webhook rejected event.
func (r *Registry) EmitWebhookRejected(ctx context.Context, n gateway.Notification, reason string) {
	emit(ctx, r, "OnWebhookRejected", &r.onWebhookRejected, func(p OnWebhookRejected) error {
		return p.OnWebhookRejected(ctx, n, reason)
	})
}

// EmitWebhookIgnored emits a webhook ignored event.
func (r *Registry) EmitWebhookIgnored(ctx context.Context, n gateway.Notification, reason string) {
	emit(ctx, r, "OnWebhookIgnored", &r.onWebhookIgnored, func(p OnWebhookIgnored) error {
		return p.OnWebhookIgnored(ctx, n, reason)
	})
}

// callWithTimeout runs fn, giving up after the registry timeout.
// Plugins must never stall a reconciliation.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- fmt.Errorf("plugin panic: %s: %v", pluginName, rec)
			}
		}()
		done <- fn()
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
