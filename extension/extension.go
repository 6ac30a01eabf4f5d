// Package extension provides the Forge extension adapter for the billing
// engine.
//
// It implements the forge.Extension interface to integrate billing into a
// Forge application with DI registration and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.billing" or "billing" keys.
package extension

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/xraph/forge"
	"github.com/xraph/grove"
	"github.com/xraph/vessel"

	"github.com/xraph/billing"
	"github.com/xraph/billing/api"
	"github.com/xraph/billing/notify"
	"github.com/xraph/billing/store"
	"github.com/xraph/billing/store/memory"
	"github.com/xraph/billing/store/mongo"
	"github.com/xraph/billing/store/postgres"
	"github.com/xraph/billing/store/sqlite"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "billing"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Invoice and payment reconciliation engine"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts the billing engine as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *billing.Engine
	store      store.Store
	groveDB    *grove.DB
	logger     *slog.Logger
	engineOpts []billing.Option
}

// New creates a new billing Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying billing engine.
// This is nil until Register is called.
func (e *Extension) Engine() *billing.Engine { return e.engine }

// Config returns the resolved configuration.
func (e *Extension) Config() Config { return e.config }

// Register implements [forge.Extension]. It loads configuration,
// initializes the billing engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	if err := e.Setup(); err != nil {
		return err
	}

	return vessel.Provide(fapp.Container(), func() (*billing.Engine, error) {
		return e.engine, nil
	})
}

// Setup builds the store and engine from the resolved configuration. Register
// calls it; it is exported for hosts that run without a Forge app.
func (e *Extension) Setup() error {
	if e.store == nil {
		s, err := e.buildStore()
		if err != nil {
			return err
		}
		e.store = s
	}

	opts, err := e.buildEngineOpts()
	if err != nil {
		return err
	}
	e.engine = billing.New(e.store, opts...)
	return nil
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("billing: extension not initialized")
	}

	if !e.config.DisableMigrate {
		if err := e.engine.Start(ctx); err != nil {
			return err
		}
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("billing: store not initialized")
	}
	return e.store.Ping(ctx)
}

// RegisterRoutes mounts the billing HTTP API on r unless routes are
// disabled.
func (e *Extension) RegisterRoutes(r gin.IRouter, opts ...api.Option) {
	if e.config.DisableRoutes || e.engine == nil {
		return
	}
	opts = append([]api.Option{api.WithBasePath(e.config.BasePath)}, opts...)
	api.New(e.engine, opts...).Register(r)
}

// buildStore picks the backend for the configured driver.
func (e *Extension) buildStore() (store.Store, error) {
	driver := strings.ToLower(strings.TrimSpace(e.config.Driver))
	if e.groveDB == nil {
		if driver != "" && driver != DriverMemory {
			return nil, fmt.Errorf("billing: driver %q requires a grove database", driver)
		}
		return memory.New(), nil
	}

	switch driver {
	case DriverPostgres:
		return postgres.New(e.groveDB), nil
	case DriverSQLite:
		return sqlite.New(e.groveDB), nil
	case DriverMongo:
		return mongo.New(e.groveDB), nil
	default:
		return nil, fmt.Errorf("billing: unsupported store driver %q", e.config.Driver)
	}
}

// buildEngineOpts constructs billing.Option values from the resolved config.
func (e *Extension) buildEngineOpts() ([]billing.Option, error) {
	opts := make([]billing.Option, 0, len(e.engineOpts)+5)

	logger := e.logger
	if logger == nil {
		logger = slog.Default()
	}
	opts = append(opts, billing.WithLogger(logger))
	opts = append(opts, billing.WithCurrency(e.config.Currency))
	if e.config.PluginTimeout > 0 {
		opts = append(opts, billing.WithPluginTimeout(e.config.PluginTimeout))
	}

	if e.config.Gateway.MerchantID != "" {
		if err := e.config.Gateway.Validate(); err != nil {
			return nil, fmt.Errorf("billing: %w", err)
		}
		opts = append(opts, billing.WithGateway(e.config.Gateway))
	}

	if e.config.NotifyURL != "" {
		opts = append(opts, billing.WithPlugin(notify.New(
			notify.NewClient(e.config.NotifyURL, nil),
			notify.WithLogger(logger.With("plugin", "notify")),
		)))
	}

	// Append any pass-through engine options.
	opts = append(opts, e.engineOpts...)

	return opts, nil
}

// --- Config Loading (mirrors grove/shield extension pattern) ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	// Try loading from config file.
	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("billing: configuration is required but not found in config files; " +
				"ensure 'extensions.billing' or 'billing' key exists in your config")
		}

		e.config = mergeWithDefaults(programmaticConfig)
	} else {
		e.config = mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("billing: configuration loaded",
		forge.F("disable_routes", e.config.DisableRoutes),
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("base_path", e.config.BasePath),
		forge.F("currency", e.config.Currency),
		forge.F("driver", e.config.Driver),
		forge.F("gateway", e.config.Gateway.MerchantID != ""),
		forge.F("sandbox", e.config.Gateway.Sandbox),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()

	for _, key := range []string{"extensions.billing", "billing"} {
		if !cm.IsSet(key) {
			continue
		}
		var cfg Config
		if err := cm.Bind(key, &cfg); err != nil {
			e.Logger().Warn("billing: failed to bind config",
				forge.F("key", key),
				forge.F("error", err.Error()),
			)
			continue
		}
		e.Logger().Debug("billing: loaded config from file", forge.F("key", key))
		return cfg, true
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.BasePath == "" {
		cfg.BasePath = defaults.BasePath
	}
	if cfg.Currency == "" {
		cfg.Currency = defaults.Currency
	}
	if cfg.PluginTimeout == 0 {
		cfg.PluginTimeout = defaults.PluginTimeout
	}
	if cfg.Driver == "" {
		cfg.Driver = defaults.Driver
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic values fill gaps.
func mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	if programmaticConfig.DisableRoutes {
		yamlConfig.DisableRoutes = true
	}
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}

	if yamlConfig.BasePath == "" {
		yamlConfig.BasePath = programmaticConfig.BasePath
	}
	if yamlConfig.Currency == "" {
		yamlConfig.Currency = programmaticConfig.Currency
	}
	if yamlConfig.PluginTimeout == 0 {
		yamlConfig.PluginTimeout = programmaticConfig.PluginTimeout
	}
	if yamlConfig.Driver == "" {
		yamlConfig.Driver = programmaticConfig.Driver
	}
	if yamlConfig.NotifyURL == "" {
		yamlConfig.NotifyURL = programmaticConfig.NotifyURL
	}
	if yamlConfig.Gateway.MerchantID == "" {
		yamlConfig.Gateway = programmaticConfig.Gateway
	}

	return mergeWithDefaults(yamlConfig)
}
