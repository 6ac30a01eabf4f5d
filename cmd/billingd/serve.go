package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/xraph/billing"
	"github.com/xraph/billing/api"
	audithook "github.com/xraph/billing/audit_hook"
	"github.com/xraph/billing/extension"
	"github.com/xraph/billing/internal/logger"
	"github.com/xraph/billing/observability"
	promfactory "github.com/xraph/billing/observability/prometheus"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the billing HTTP API",
	Long: `Run the billing HTTP API with the in-memory store.

Relevant environment variables:
  HTTP_ADDR                 Listen address (default :8086)
  BILLING_CURRENCY          Default invoice currency (default lkr)
  PAYHERE_MERCHANT_ID       Enables gateway payments when set
  PAYHERE_MERCHANT_SECRET   Merchant secret, raw or base64
  PAYHERE_SANDBOX           Use the sandbox checkout (default true)
  NOTIFY_URL                Customer notification service base URL`,
	Example: `  billingd serve
  billingd serve --overdue-sweep 15m --env-file /etc/billing.env`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Duration("overdue-sweep", time.Hour, "Interval between overdue invoice sweeps (0 disables)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	log := logger.WithComponent("serve")

	sweep, _ := cmd.Flags().GetDuration("overdue-sweep")

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	auditLog := logger.WithComponent("audit")
	audit := audithook.New(audithook.RecorderFunc(func(_ context.Context, evt *audithook.AuditEvent) error {
		auditLog.Info().
			Str("action", evt.Action).
			Str("resource", evt.Resource).
			Str("resource_id", evt.ResourceID).
			Str("outcome", evt.Outcome).
			Str("reason", evt.Reason).
			Interface("metadata", evt.Metadata).
			Msg("audit")
		return nil
	}), audithook.WithLogger(logger.Slog("audit")))

	ext := extension.New(
		extension.WithConfig(extension.Config{
			BasePath:      cfg.BasePath,
			Currency:      cfg.Currency,
			PluginTimeout: cfg.PluginTimeout,
			Driver:        extension.DriverMemory,
			Gateway:       cfg.Gateway,
			NotifyURL:     cfg.NotifyURL,
		}),
		extension.WithLogger(logger.Slog("billing")),
		extension.WithPlugin(observability.NewMetricsExtension(promfactory.NewFactory(reg))),
		extension.WithPlugin(audit),
	)
	if err := ext.Setup(); err != nil {
		return err
	}
	engine := ext.Engine()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := engine.Start(ctx); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}
	defer func() {
		if err := engine.Stop(); err != nil {
			log.Error().Err(err).Msg("engine stop failed")
		}
	}()

	if cfg.LogLevel != "debug" && cfg.LogLevel != "trace" {
		gin.SetMode(gin.ReleaseMode)
	}

	h := api.New(engine,
		api.WithLogger(logger.Slog("http")),
		api.WithMetrics(reg),
		api.WithBasePath(cfg.BasePath),
	)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if sweep > 0 {
		go sweepOverdue(ctx, engine, sweep)
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", cfg.HTTPAddr).
			Str("base_path", cfg.BasePath).
			Bool("gateway", cfg.GatewayEnabled()).
			Bool("sandbox", cfg.Gateway.Sandbox).
			Msg("billing api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// sweepOverdue persists the overdue status on past-due invoices so the
// overdue hooks fire without a read.
func sweepOverdue(ctx context.Context, engine *billing.Engine, every time.Duration) {
	log := logger.WithComponent("overdue-sweep")
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			overdue, err := engine.ListOverdueInvoices(ctx)
			if err != nil {
				log.Error().Err(err).Msg("sweep failed")
				continue
			}
			log.Debug().Int("overdue", len(overdue)).Msg("sweep complete")
		}
	}
}
