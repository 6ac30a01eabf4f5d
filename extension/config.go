package extension

import (
	"time"

	"github.com/xraph/billing/gateway"
)

// Store drivers understood by the extension.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMongo    = "mongo"
)

// Config holds the billing extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.billing" or "billing" keys).
type Config struct {
	// DisableRoutes prevents HTTP route registration.
	DisableRoutes bool `json:"disable_routes" mapstructure:"disable_routes" yaml:"disable_routes"`

	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// BasePath is the URL prefix for billing routes (default: "/api/v1").
	BasePath string `json:"base_path" mapstructure:"base_path" yaml:"base_path"`

	// Currency is the default invoice currency (default: "lkr").
	Currency string `json:"currency" mapstructure:"currency" yaml:"currency"`

	// PluginTimeout bounds each plugin hook call (default: 5s).
	PluginTimeout time.Duration `json:"plugin_timeout" mapstructure:"plugin_timeout" yaml:"plugin_timeout"`

	// Driver selects the store backend built around the grove database
	// passed with WithGroveDB: postgres, sqlite or mongo. Without a grove
	// database the in-memory store is used.
	Driver string `json:"driver" mapstructure:"driver" yaml:"driver"`

	// Gateway holds the hosted-checkout merchant settings. Online payments
	// are disabled while MerchantID is empty.
	Gateway gateway.Config `json:"gateway" mapstructure:"gateway" yaml:"gateway"`

	// NotifyURL is the base URL of the customer notification service.
	// Empty disables customer notifications.
	NotifyURL string `json:"notify_url" mapstructure:"notify_url" yaml:"notify_url"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BasePath:      "/api/v1",
		Currency:      "lkr",
		PluginTimeout: 5 * time.Second,
		Driver:        DriverMemory,
	}
}
