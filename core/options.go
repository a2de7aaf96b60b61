package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-config/cfgx"
	opts "github.com/goliatone/go-options"
)

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type StaticRawConfigLoader struct {
	Values map[string]any
}

func (l StaticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = StaticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// GoOptionsResolver merges defaults < loaded config < runtime overrides.
type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			configToLayerMap(defaults, true),
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			configToLayerMap(loaded, false),
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			configToLayerMap(runtime, false),
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return resolved, nil
}

// LoadConfig loads raw values through provider and layers runtime overrides
// on top, validating the result.
func LoadConfig(ctx context.Context, provider ConfigProvider, resolver OptionsResolver, runtime Config) (Config, error) {
	defaults := DefaultConfig()
	if provider == nil {
		provider = NewCfgxConfigProvider(nil)
	}
	if resolver == nil {
		resolver = GoOptionsResolver{}
	}
	loaded, err := provider.Load(ctx, defaults)
	if err != nil {
		return Config{}, err
	}
	return resolver.Resolve(defaults, loaded, runtime)
}

type layer struct {
	values      map[string]any
	includeZero bool
}

func (l layer) str(key string, value string) {
	if l.includeZero || strings.TrimSpace(value) != "" {
		l.values[key] = value
	}
}

func (l layer) duration(key string, value time.Duration) {
	if l.includeZero || value != 0 {
		l.values[key] = value
	}
}

func (l layer) integer(key string, value int64) {
	if l.includeZero || value != 0 {
		l.values[key] = value
	}
}

func (l layer) boolean(key string, value bool) {
	if l.includeZero || value {
		l.values[key] = value
	}
}

func (l layer) section(key string, build func(layer)) {
	child := layer{values: map[string]any{}, includeZero: l.includeZero}
	build(child)
	if len(child.values) > 0 {
		l.values[key] = child.values
	}
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	root := layer{values: map[string]any{}, includeZero: includeZero}
	root.str("service_name", cfg.ServiceName)
	root.str("mode", cfg.Mode)
	root.section("webhook", func(l layer) {
		l.str("secret", cfg.Webhook.Secret)
		l.str("secret_header", cfg.Webhook.SecretHeader)
		l.integer("max_body_bytes", cfg.Webhook.MaxBodyBytes)
	})
	root.section("cloudbeds", func(l layer) {
		l.str("api_key", cfg.Cloudbeds.APIKey)
		l.str("base_url", cfg.Cloudbeds.BaseURL)
		l.duration("timeout", cfg.Cloudbeds.Timeout)
	})
	root.section("xubio", func(l layer) {
		l.str("client_id", cfg.Xubio.ClientID)
		l.str("client_secret", cfg.Xubio.ClientSecret)
		l.str("token_url", cfg.Xubio.TokenURL)
		l.str("endpoint", cfg.Xubio.Endpoint)
		l.str("api_key", cfg.Xubio.APIKey)
		l.duration("timeout", cfg.Xubio.Timeout)
		l.duration("token_safety_margin", cfg.Xubio.TokenSafetyMargin)
		l.integer("max_attempts", int64(cfg.Xubio.MaxAttempts))
		l.duration("retry_base_delay", cfg.Xubio.RetryBaseDelay)
		l.duration("retry_max_delay", cfg.Xubio.RetryMaxDelay)
	})
	root.section("store", func(l layer) {
		l.str("driver", cfg.Store.Driver)
		l.str("dsn", cfg.Store.DSN)
		l.boolean("debug", cfg.Store.Debug)
		l.duration("ping_timeout", cfg.Store.PingTimeout)
		l.duration("record_cache_ttl", cfg.Store.RecordCacheTTL)
	})
	root.section("http", func(l layer) {
		l.str("addr", cfg.HTTP.Addr)
		l.duration("read_timeout", cfg.HTTP.ReadTimeout)
		l.duration("write_timeout", cfg.HTTP.WriteTimeout)
	})
	root.section("log", func(l layer) {
		l.str("level", cfg.Log.Level)
		l.str("format", cfg.Log.Format)
	})
	return root.values
}
