package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":8086" || cfg.Currency != "lkr" || cfg.Shutdown != 15*time.Second {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.PluginTimeout != 5*time.Second {
		t.Errorf("plugin timeout = %v", cfg.PluginTimeout)
	}
	if cfg.GatewayEnabled() {
		t.Error("gateway enabled without credentials")
	}
	if !cfg.Gateway.Sandbox {
		t.Error("sandbox should default to true")
	}
}

func TestLoadFromEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "PAYHERE_MERCHANT_ID=1211149\nPAYHERE_MERCHANT_SECRET=c2VjcmV0\nPAYHERE_SANDBOX=false\nBILLING_CURRENCY=USD\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		for _, k := range []string{"PAYHERE_MERCHANT_ID", "PAYHERE_MERCHANT_SECRET", "PAYHERE_SANDBOX", "BILLING_CURRENCY"} {
			os.Unsetenv(k)
		}
	})

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.GatewayEnabled() || cfg.Gateway.MerchantID != "1211149" || cfg.Gateway.Sandbox {
		t.Errorf("gateway = %+v", cfg.Gateway)
	}
	if cfg.Currency != "usd" {
		t.Errorf("currency = %q", cfg.Currency)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad shutdown timeout", map[string]string{"BILLING_SHUTDOWN_TIMEOUT": "later"}},
		{"secret without merchant", map[string]string{"PAYHERE_MERCHANT_SECRET": "x"}},
		{"bad timeout", map[string]string{"BILLING_PLUGIN_TIMEOUT": "soon"}},
		{"bad sandbox flag", map[string]string{"PAYHERE_SANDBOX": "maybe"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(filepath.Join(t.TempDir(), "missing.env")); err == nil {
				t.Error("expected error")
			}
		})
	}
}
