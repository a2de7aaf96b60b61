package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	DefaultWebhookSecretHeader   = "x-webhook-secret"
	DefaultCloudbedsBaseURL      = "https://hotels.cloudbeds.com/accounting/v1.0"
	DefaultXubioTokenURL         = "https://xubio.com/API/1.1/TokenEndpoint"
	DefaultTokenSafetyMargin     = 10 * time.Second
	DefaultSubmitMaxAttempts     = 3
	DefaultRetryBaseDelay        = 300 * time.Millisecond
	DefaultRetryMaxDelay         = 5 * time.Second
	DefaultOutboundTimeout       = 15 * time.Second
	DefaultHTTPAddr              = ":8080"
	DefaultHTTPReadTimeout       = 10 * time.Second
	DefaultHTTPWriteTimeout      = 60 * time.Second
	DefaultStorePingTimeout      = 5 * time.Second
	DefaultStoreDriver           = "postgres"
	DefaultRecordCacheTTL        = 30 * time.Second
	DefaultWebhookMaxBodyBytes   = 1 << 20
	DefaultLogLevel              = "info"
	DefaultLogFormat             = "text"
	DefaultServiceName           = "folio"
	DefaultOriginSystem          = "cloudbeds"
	DefaultUnknownCustomerName   = "Unknown"
	defaultStoreOtelIdentifierID = "go-folio"
)

type WebhookConfig struct {
	Secret       string `koanf:"secret" mapstructure:"secret"`
	SecretHeader string `koanf:"secret_header" mapstructure:"secret_header"`
	MaxBodyBytes int64  `koanf:"max_body_bytes" mapstructure:"max_body_bytes"`
}

type CloudbedsConfig struct {
	APIKey  string        `koanf:"api_key" mapstructure:"api_key"`
	BaseURL string        `koanf:"base_url" mapstructure:"base_url"`
	Timeout time.Duration `koanf:"timeout" mapstructure:"timeout"`
}

type XubioConfig struct {
	ClientID          string        `koanf:"client_id" mapstructure:"client_id"`
	ClientSecret      string        `koanf:"client_secret" mapstructure:"client_secret"`
	TokenURL          string        `koanf:"token_url" mapstructure:"token_url"`
	Endpoint          string        `koanf:"endpoint" mapstructure:"endpoint"`
	APIKey            string        `koanf:"api_key" mapstructure:"api_key"`
	Timeout           time.Duration `koanf:"timeout" mapstructure:"timeout"`
	TokenSafetyMargin time.Duration `koanf:"token_safety_margin" mapstructure:"token_safety_margin"`
	MaxAttempts       int           `koanf:"max_attempts" mapstructure:"max_attempts"`
	RetryBaseDelay    time.Duration `koanf:"retry_base_delay" mapstructure:"retry_base_delay"`
	RetryMaxDelay     time.Duration `koanf:"retry_max_delay" mapstructure:"retry_max_delay"`
}

type StoreConfig struct {
	Driver         string        `koanf:"driver" mapstructure:"driver"`
	DSN            string        `koanf:"dsn" mapstructure:"dsn"`
	Debug          bool          `koanf:"debug" mapstructure:"debug"`
	PingTimeout    time.Duration `koanf:"ping_timeout" mapstructure:"ping_timeout"`
	RecordCacheTTL time.Duration `koanf:"record_cache_ttl" mapstructure:"record_cache_ttl"`
}

func (c StoreConfig) GetDebug() bool {
	return c.Debug
}

func (c StoreConfig) GetDriver() string {
	return strings.TrimSpace(c.Driver)
}

func (c StoreConfig) GetServer() string {
	return strings.TrimSpace(c.DSN)
}

func (c StoreConfig) GetPingTimeout() time.Duration {
	if c.PingTimeout <= 0 {
		return DefaultStorePingTimeout
	}
	return c.PingTimeout
}

func (c StoreConfig) GetOtelIdentifier() string {
	return defaultStoreOtelIdentifierID
}

type HTTPConfig struct {
	Addr         string        `koanf:"addr" mapstructure:"addr"`
	ReadTimeout  time.Duration `koanf:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout" mapstructure:"write_timeout"`
}

type LogConfig struct {
	Level  string `koanf:"level" mapstructure:"level"`
	Format string `koanf:"format" mapstructure:"format"`
}

type Config struct {
	ServiceName string          `koanf:"service_name" mapstructure:"service_name"`
	Mode        string          `koanf:"mode" mapstructure:"mode"`
	Webhook     WebhookConfig   `koanf:"webhook" mapstructure:"webhook"`
	Cloudbeds   CloudbedsConfig `koanf:"cloudbeds" mapstructure:"cloudbeds"`
	Xubio       XubioConfig     `koanf:"xubio" mapstructure:"xubio"`
	Store       StoreConfig     `koanf:"store" mapstructure:"store"`
	HTTP        HTTPConfig      `koanf:"http" mapstructure:"http"`
	Log         LogConfig       `koanf:"log" mapstructure:"log"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: DefaultServiceName,
		Mode:        string(StoreModeStrict),
		Webhook: WebhookConfig{
			SecretHeader: DefaultWebhookSecretHeader,
			MaxBodyBytes: DefaultWebhookMaxBodyBytes,
		},
		Cloudbeds: CloudbedsConfig{
			BaseURL: DefaultCloudbedsBaseURL,
			Timeout: DefaultOutboundTimeout,
		},
		Xubio: XubioConfig{
			TokenURL:          DefaultXubioTokenURL,
			Timeout:           DefaultOutboundTimeout,
			TokenSafetyMargin: DefaultTokenSafetyMargin,
			MaxAttempts:       DefaultSubmitMaxAttempts,
			RetryBaseDelay:    DefaultRetryBaseDelay,
			RetryMaxDelay:     DefaultRetryMaxDelay,
		},
		Store: StoreConfig{
			Driver:         DefaultStoreDriver,
			PingTimeout:    DefaultStorePingTimeout,
			RecordCacheTTL: DefaultRecordCacheTTL,
		},
		HTTP: HTTPConfig{
			Addr:         DefaultHTTPAddr,
			ReadTimeout:  DefaultHTTPReadTimeout,
			WriteTimeout: DefaultHTTPWriteTimeout,
		},
		Log: LogConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// StoreMode resolves the configured operating mode. Degraded mode must be
// requested explicitly; an empty value is strict.
func (c Config) StoreMode() StoreMode {
	if strings.EqualFold(strings.TrimSpace(c.Mode), string(StoreModeDegraded)) {
		return StoreModeDegraded
	}
	return StoreModeStrict
}

func (c Config) Validate() error {
	if err := c.ValidateSettings(); err != nil {
		return err
	}
	if c.StoreMode() == StoreModeStrict && strings.TrimSpace(c.Store.DSN) == "" {
		return NewConfigurationError(
			"core: store.dsn is required unless mode is degraded",
			map[string]any{"mode": string(StoreModeStrict)},
		)
	}
	return nil
}

// ValidateSettings checks everything except the store connection, for hosts
// that supply their own store.
func (c Config) ValidateSettings() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return NewConfigurationError("core: service_name is required", nil)
	}
	mode := strings.ToLower(strings.TrimSpace(c.Mode))
	if mode != "" && mode != string(StoreModeStrict) && mode != string(StoreModeDegraded) {
		return NewConfigurationError(
			fmt.Sprintf("core: mode must be %q or %q, got %q", StoreModeStrict, StoreModeDegraded, c.Mode),
			map[string]any{"mode": c.Mode},
		)
	}
	switch strings.TrimSpace(c.Store.Driver) {
	case "", "postgres", "sqlite3":
	default:
		return NewConfigurationError(
			fmt.Sprintf("core: unsupported store.driver %q", c.Store.Driver),
			map[string]any{"driver": c.Store.Driver},
		)
	}
	if c.Xubio.MaxAttempts < 0 {
		return NewConfigurationError("core: xubio.max_attempts must not be negative", nil)
	}
	return nil
}
