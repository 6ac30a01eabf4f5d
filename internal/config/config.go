// Package config loads billingd settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/xraph/billing/gateway"
	"github.com/xraph/billing/internal/logger"
)

// Config is the billingd runtime configuration.
type Config struct {
	HTTPAddr string
	BasePath string
	Currency string
	Shutdown time.Duration

	// PayHere merchant settings
	Gateway gateway.Config

	// Customer notification service; empty disables notifications.
	NotifyURL string

	PluginTimeout time.Duration

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

// Load reads .env files when present, then the process environment.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: load env file: %w", err)
	}

	timeout, err := time.ParseDuration(getEnv("BILLING_PLUGIN_TIMEOUT", "5s"))
	if err != nil {
		return nil, fmt.Errorf("config: BILLING_PLUGIN_TIMEOUT: %w", err)
	}
	shutdown, err := time.ParseDuration(getEnv("BILLING_SHUTDOWN_TIMEOUT", "15s"))
	if err != nil {
		return nil, fmt.Errorf("config: BILLING_SHUTDOWN_TIMEOUT: %w", err)
	}
	sandbox, err := strconv.ParseBool(getEnv("PAYHERE_SANDBOX", "true"))
	if err != nil {
		return nil, fmt.Errorf("config: PAYHERE_SANDBOX: %w", err)
	}

	cfg := &Config{
		HTTPAddr: getEnv("HTTP_ADDR", ":8086"),
		BasePath: getEnv("BILLING_BASE_PATH", "/api/v1"),
		Currency: strings.ToLower(getEnv("BILLING_CURRENCY", "lkr")),
		Shutdown: shutdown,
		Gateway: gateway.Config{
			MerchantID:     getEnv("PAYHERE_MERCHANT_ID", ""),
			MerchantSecret: getEnv("PAYHERE_MERCHANT_SECRET", ""),
			Sandbox:        sandbox,
			ReturnURL:      getEnv("PAYHERE_RETURN_URL", ""),
			CancelURL:      getEnv("PAYHERE_CANCEL_URL", ""),
			NotifyURL:      getEnv("PAYHERE_NOTIFY_URL", ""),
		},
		NotifyURL:     getEnv("NOTIFY_URL", ""),
		PluginTimeout: timeout,
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "console"),
		LogTimeFormat: getEnv("LOG_TIME_FORMAT", time.RFC3339),
		LogOutput:     getEnv("LOG_OUTPUT", "stdout"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Gateway.MerchantID != "" || c.Gateway.MerchantSecret != "" {
		if err := c.Gateway.Validate(); err != nil {
			return err
		}
	}
	if c.PluginTimeout <= 0 {
		return errors.New("BILLING_PLUGIN_TIMEOUT must be positive")
	}
	return nil
}

// GatewayEnabled reports whether PayHere credentials are configured.
func (c *Config) GatewayEnabled() bool {
	return c.Gateway.MerchantID != ""
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
