package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goliatone/go-folio/core"
)

func TestViperLoader_ReadsPrefixedAndLegacyEnv(t *testing.T) {
	t.Setenv("FOLIO_WEBHOOK_SECRET", "primary")
	t.Setenv("WEBHOOK_SECRET", "legacy")
	t.Setenv("CB_API_KEY", "cb-key")
	t.Setenv("XUBIO_SECRET_ID", "xubio-secret")
	t.Setenv("FOLIO_XUBIO_TIMEOUT", "3s")
	t.Setenv("FOLIO_XUBIO_MAX_ATTEMPTS", "5")

	loader, err := newViperLoader("")
	if err != nil {
		t.Fatalf("new loader: %v", err)
	}
	raw, err := loader.LoadRaw(context.Background())
	if err != nil {
		t.Fatalf("load raw: %v", err)
	}

	webhook, _ := raw["webhook"].(map[string]any)
	if webhook["secret"] != "primary" {
		t.Fatalf("expected prefixed variable to win, got %#v", webhook["secret"])
	}
	cloudbeds, _ := raw["cloudbeds"].(map[string]any)
	if cloudbeds["api_key"] != "cb-key" {
		t.Fatalf("expected legacy cloudbeds key, got %#v", cloudbeds)
	}
	xubio, _ := raw["xubio"].(map[string]any)
	if xubio["client_secret"] != "xubio-secret" {
		t.Fatalf("expected legacy xubio secret, got %#v", xubio)
	}
	if xubio["timeout"] != 3*time.Second || xubio["max_attempts"] != int64(5) {
		t.Fatalf("expected typed values, got %#v", xubio)
	}
	if _, ok := raw["store"]; ok {
		t.Fatalf("expected unset sections to be omitted, got %#v", raw["store"])
	}
}

func TestLoadConfig_LayersFileEnvAndFlags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "folio.yaml")
	content := []byte("mode: degraded\nwebhook:\n  secret: from-file\nxubio:\n  retry_base_delay: 50ms\nlog:\n  level: debug\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("XUBIO_ENDPOINT", "https://xubio.test/invoices")

	cfg, err := loadConfig(context.Background(), path, core.Config{Log: core.LogConfig{Level: "warn"}})
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.StoreMode() != core.StoreModeDegraded {
		t.Fatalf("expected degraded mode from file, got %q", cfg.Mode)
	}
	if cfg.Webhook.Secret != "from-file" || cfg.Xubio.Endpoint != "https://xubio.test/invoices" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.Xubio.RetryBaseDelay != 50*time.Millisecond {
		t.Fatalf("expected file duration, got %v", cfg.Xubio.RetryBaseDelay)
	}
	if cfg.Log.Level != "warn" {
		t.Fatalf("expected flag override, got %q", cfg.Log.Level)
	}
	if cfg.Xubio.MaxAttempts != core.DefaultSubmitMaxAttempts {
		t.Fatalf("expected default attempts, got %d", cfg.Xubio.MaxAttempts)
	}
}

func TestLoadConfig_StrictModeRequiresDSN(t *testing.T) {
	if _, err := loadConfig(context.Background(), "", core.Config{}); err == nil {
		t.Fatalf("expected strict mode without dsn to fail validation")
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := loadConfig(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"), core.Config{})
	if !core.IsConfiguration(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestSetPathNestsKeys(t *testing.T) {
	raw := map[string]any{}
	setPath(raw, "store.dsn", "x")
	setPath(raw, "store.driver", "sqlite3")
	setPath(raw, "mode", "strict")
	store, _ := raw["store"].(map[string]any)
	if store["dsn"] != "x" || store["driver"] != "sqlite3" || raw["mode"] != "strict" {
		t.Fatalf("unexpected map: %#v", raw)
	}
}
