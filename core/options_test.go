package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fixedConfigProvider struct {
	cfg Config
	err error
}

func (p *fixedConfigProvider) Load(context.Context, Config) (Config, error) {
	return p.cfg, p.err
}

func TestLoadConfig_LayersDefaultsLoadedAndRuntime(t *testing.T) {
	loader := StaticRawConfigLoader{Values: map[string]any{
		"mode": "degraded",
		"webhook": map[string]any{
			"secret": "from-config",
		},
		"xubio": map[string]any{
			"client_id":    "client",
			"max_attempts": 5,
		},
	}}

	cfg, err := LoadConfig(context.Background(), NewCfgxConfigProvider(loader), nil, Config{
		Xubio: XubioConfig{RetryBaseDelay: 20 * time.Millisecond},
		Log:   LogConfig{Level: "debug"},
	})
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.StoreMode() != StoreModeDegraded || cfg.Webhook.Secret != "from-config" {
		t.Fatalf("expected loaded values, got %+v", cfg)
	}
	if cfg.Xubio.ClientID != "client" || cfg.Xubio.MaxAttempts != 5 {
		t.Fatalf("expected loaded xubio values, got %+v", cfg.Xubio)
	}
	if cfg.Xubio.RetryBaseDelay != 20*time.Millisecond || cfg.Log.Level != "debug" {
		t.Fatalf("expected runtime overrides, got %+v", cfg)
	}
	if cfg.Xubio.TokenSafetyMargin != DefaultTokenSafetyMargin || cfg.Webhook.SecretHeader != DefaultWebhookSecretHeader {
		t.Fatalf("expected defaults to survive, got %+v", cfg)
	}
}

func TestLoadConfig_RuntimeOverridesLoadedValues(t *testing.T) {
	provider := &fixedConfigProvider{cfg: Config{
		Mode:    "degraded",
		Webhook: WebhookConfig{Secret: "loaded"},
	}}
	cfg, err := LoadConfig(context.Background(), provider, nil, Config{Webhook: WebhookConfig{Secret: "runtime"}})
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Webhook.Secret != "runtime" {
		t.Fatalf("expected runtime secret, got %q", cfg.Webhook.Secret)
	}
}

func TestLoadConfig_ValidatesResult(t *testing.T) {
	if _, err := LoadConfig(context.Background(), NewCfgxConfigProvider(nil), nil, Config{}); err == nil {
		t.Fatalf("expected strict mode without dsn to fail")
	}
}

func TestLoadConfig_PropagatesProviderError(t *testing.T) {
	boom := errors.New("boom")
	if _, err := LoadConfig(context.Background(), &fixedConfigProvider{err: boom}, nil, Config{}); !errors.Is(err, boom) {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestStaticRawConfigLoaderCopiesValues(t *testing.T) {
	values := map[string]any{"mode": "strict"}
	raw, err := StaticRawConfigLoader{Values: values}.LoadRaw(context.Background())
	if err != nil {
		t.Fatalf("load raw: %v", err)
	}
	raw["mode"] = "degraded"
	if values["mode"] != "strict" {
		t.Fatalf("expected loader to return a copy")
	}
}
