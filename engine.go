package billing

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xraph/billing/gateway"
	"github.com/xraph/billing/id"
	"github.com/xraph/billing/plugin"
	"github.com/xraph/billing/store"
)

// DefaultCurrency is used for invoices created without a currency.
const DefaultCurrency = "lkr"

// Invoice lease defaults.
const (
	DefaultLockTTL  = 30 * time.Second
	DefaultLockWait = 5 * time.Second
)

// Engine reconciles invoices with the payments applied against them.
// It owns the invoice ledger, the payment recorder and the schedule
// manager, and drives the gateway handshake.
type Engine struct {
	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger
	signer  *gateway.Signer
	now     func() time.Time

	currency string
	locks    *keyedMutex
	lockTTL  time.Duration
	lockWait time.Duration

	recorder  *Recorder
	schedules *Schedules
}

// New creates an Engine backed by s.
func New(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:    s,
		plugins:  plugin.NewRegistry(),
		logger:   slog.Default(),
		now:      time.Now,
		currency: DefaultCurrency,
		locks:    newKeyedMutex(),
		lockTTL:  DefaultLockTTL,
		lockWait: DefaultLockWait,
	}

	for _, opt := range opts {
		opt(e)
	}

	e.recorder = &Recorder{store: s, plugins: e.plugins, logger: e.logger, now: e.clock}
	e.schedules = &Schedules{store: s, plugins: e.plugins, now: e.clock}

	return e
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Engine) {
		_ = e.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithPluginTimeout bounds each plugin hook call.
func WithPluginTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.plugins.WithTimeout(d)
	}
}

// WithGateway enables hosted-checkout payments with the given merchant
// configuration.
func WithGateway(cfg gateway.Config) Option {
	return func(e *Engine) {
		e.signer = gateway.NewSigner(cfg)
	}
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithCurrency sets the default invoice currency.
func WithCurrency(code string) Option {
	return func(e *Engine) {
		if code != "" {
			e.currency = strings.ToLower(code)
		}
	}
}

// WithLockTTL sets how long an invoice lease survives a crashed holder.
func WithLockTTL(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.lockTTL = d
		}
	}
}

// WithLockWait bounds how long an operation waits for another instance to
// release an invoice before failing with ErrInvoiceBusy.
func WithLockWait(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.lockWait = d
		}
	}
}

// Start migrates the store and initializes plugins.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.store.Migrate(ctx); err != nil {
		return err
	}

	e.plugins.EmitInit(ctx, e)

	e.logger.Info("billing engine started",
		"plugins", e.plugins.Count(),
		"gateway", e.signer != nil,
		"currency", e.currency,
	)

	return nil
}

// Stop shuts down plugins and closes the store.
func (e *Engine) Stop() error {
	e.plugins.EmitShutdown(context.Background())
	return e.store.Close()
}

// Store returns the underlying store.
func (e *Engine) Store() store.Store { return e.store }

// Plugins returns the plugin registry.
func (e *Engine) Plugins() *plugin.Registry { return e.plugins }

// Payments returns the payment recorder.
func (e *Engine) Payments() *Recorder { return e.recorder }

// Schedules returns the scheduled-payment manager.
func (e *Engine) Schedules() *Schedules { return e.schedules }

// Now returns the engine's current time in UTC.
func (e *Engine) Now() time.Time { return e.clock() }

// Currency returns the default invoice currency.
func (e *Engine) Currency() string { return e.currency }

// Signer returns the gateway signer, or nil when no gateway is configured.
func (e *Engine) Signer() *gateway.Signer { return e.signer }

func (e *Engine) clock() time.Time { return e.now().UTC() }

// ──────────────────────────────────────────────────
// Per-invoice serialization
// ──────────────────────────────────────────────────

// lockInvoice serializes read-check-write sequences on one invoice. The
// in-process mutex orders goroutines of this engine; the store lease orders
// engines sharing the same database.
func (e *Engine) lockInvoice(ctx context.Context, invID id.InvoiceID) (func(), error) {
	unlock := e.locks.Lock(invID.String())
	owner := uuid.NewString()

	deadline := time.Now().Add(e.lockWait)
	backoff := 25 * time.Millisecond
	for {
		now := e.clock()
		ok, err := e.store.AcquireInvoiceLock(ctx, invID, owner, now, now.Add(e.lockTTL))
		if err != nil {
			unlock()
			return nil, err
		}
		if ok {
			break
		}
		if time.Now().Add(backoff).After(deadline) {
			unlock()
			return nil, ErrInvoiceBusy
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			unlock()
			return nil, ctx.Err()
		case <-timer.C:
		}
		backoff = min(backoff*2, 200*time.Millisecond)
	}

	return func() {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := e.store.ReleaseInvoiceLock(rctx, invID, owner); err != nil {
			e.logger.Warn("billing: release invoice lease failed",
				"invoice_id", invID.String(),
				"error", err,
			)
		}
		unlock()
	}, nil
}

// keyedMutex serializes read-check-write sequences per invoice so two
// payments against the same invoice cannot both pass the balance check.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

// Lock acquires the lock for key and returns its release function.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()

	return func() {
		m.Unlock()

		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
