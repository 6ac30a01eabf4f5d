// Package api exposes the billing engine over HTTP with gin.
//
// Identity is established upstream: every authenticated route reads the
// acting party from the X-Actor-ID and X-Actor-Role headers. The gateway
// notification route is public and form-encoded.
package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xraph/billing"
)

// DefaultBasePath prefixes every billing route.
const DefaultBasePath = "/api/v1"

// Handler serves the billing HTTP API.
type Handler struct {
	engine   *billing.Engine
	logger   *slog.Logger
	basePath string
	gatherer prometheus.Gatherer
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) { h.logger = logger }
}

// WithBasePath overrides DefaultBasePath.
func WithBasePath(path string) Option {
	return func(h *Handler) {
		if path != "" {
			h.basePath = "/" + strings.Trim(path, "/")
		}
	}
}

// WithMetrics serves g on GET /metrics.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(h *Handler) { h.gatherer = g }
}

// New creates a Handler for engine.
func New(engine *billing.Engine, opts ...Option) *Handler {
	h := &Handler{
		engine:   engine,
		logger:   slog.Default(),
		basePath: DefaultBasePath,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Router builds a gin engine with the billing routes and middleware.
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), h.accessLog())
	h.Register(r)
	return r
}

// Register mounts the billing routes on r.
func (h *Handler) Register(r gin.IRouter) {
	if h.gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})))
	}
	r.GET("/healthz", h.Health)

	base := r.Group(h.basePath)

	// Gateway callback, unauthenticated.
	base.POST("/payments/notify", h.Notify)

	authed := base.Group("", RequireActor())

	invoices := authed.Group("/invoices")
	invoices.POST("", RequireStaff(), h.CreateInvoice)
	invoices.GET("", h.ListInvoices)
	invoices.GET("/overdue", RequireStaff(), h.ListOverdueInvoices)
	invoices.GET("/:id", h.GetInvoice)
	invoices.GET("/:id/summary", h.GetInvoiceSummary)
	invoices.GET("/:id/payments", h.ListInvoicePayments)
	invoices.POST("/:id/send", RequireStaff(), h.SendInvoice)
	invoices.POST("/:id/void", RequireStaff(), h.VoidInvoice)

	payments := authed.Group("/payments")
	payments.POST("", h.CreatePayment)
	payments.POST("/initiate", h.InitiatePayment)
	payments.GET("", h.PaymentHistory)
	payments.GET("/:id", h.GetPayment)

	schedules := authed.Group("/schedules")
	schedules.POST("", h.CreateSchedule)
	schedules.GET("", h.ListSchedules)
	schedules.GET("/due", RequireStaff(), h.ListDueSchedules)
	schedules.POST("/:id/execute", RequireStaff(), h.ExecuteSchedule)
	schedules.POST("/:id/cancel", h.CancelSchedule)
}

// Health reports store reachability.
func (h *Handler) Health(c *gin.Context) {
	if err := h.engine.Store().Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
