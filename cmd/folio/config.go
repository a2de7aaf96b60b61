package main

import (
	"context"
	"strings"

	"github.com/goliatone/go-folio/core"
	"github.com/spf13/viper"
)

type keyKind int

const (
	kindString keyKind = iota
	kindDuration
	kindInt
	kindBool
)

type configKey struct {
	path   string
	kind   keyKind
	legacy []string
}

// configKeys lists every setting read from the environment. Each key binds
// FOLIO_<PATH> plus any legacy variable names.
var configKeys = []configKey{
	{path: "service_name"},
	{path: "mode"},
	{path: "webhook.secret", legacy: []string{"WEBHOOK_SECRET"}},
	{path: "webhook.secret_header"},
	{path: "webhook.max_body_bytes", kind: kindInt},
	{path: "cloudbeds.api_key", legacy: []string{"CB_API_KEY"}},
	{path: "cloudbeds.base_url", legacy: []string{"CB_BASE_URL"}},
	{path: "cloudbeds.timeout", kind: kindDuration},
	{path: "xubio.client_id", legacy: []string{"XUBIO_CLIENT_ID"}},
	{path: "xubio.client_secret", legacy: []string{"XUBIO_SECRET_ID"}},
	{path: "xubio.token_url", legacy: []string{"XUBIO_TOKEN_URL"}},
	{path: "xubio.endpoint", legacy: []string{"XUBIO_ENDPOINT"}},
	{path: "xubio.api_key", legacy: []string{"XUBIO_API_KEY"}},
	{path: "xubio.timeout", kind: kindDuration},
	{path: "xubio.token_safety_margin", kind: kindDuration},
	{path: "xubio.max_attempts", kind: kindInt},
	{path: "xubio.retry_base_delay", kind: kindDuration},
	{path: "xubio.retry_max_delay", kind: kindDuration},
	{path: "store.driver"},
	{path: "store.dsn", legacy: []string{"DATABASE_URL"}},
	{path: "store.debug", kind: kindBool},
	{path: "store.ping_timeout", kind: kindDuration},
	{path: "store.record_cache_ttl", kind: kindDuration},
	{path: "http.addr", legacy: []string{"ADDR"}},
	{path: "http.read_timeout", kind: kindDuration},
	{path: "http.write_timeout", kind: kindDuration},
	{path: "log.level", legacy: []string{"LOG_LEVEL"}},
	{path: "log.format"},
}

const envPrefix = "FOLIO"

// viperLoader reads settings from an optional config file and the
// environment and hands them to the go-config builder as a nested map.
type viperLoader struct {
	v *viper.Viper
}

func newViperLoader(configFile string) (*viperLoader, error) {
	v := viper.New()
	for _, key := range configKeys {
		names := append([]string{envName(key.path)}, key.legacy...)
		if err := v.BindEnv(append([]string{key.path}, names...)...); err != nil {
			return nil, err
		}
	}
	if configFile = strings.TrimSpace(configFile); configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, core.NewConfigurationError(
				"folio: read config file: "+err.Error(),
				map[string]any{"path": configFile},
			)
		}
	}
	return &viperLoader{v: v}, nil
}

func (l *viperLoader) LoadRaw(context.Context) (map[string]any, error) {
	raw := map[string]any{}
	for _, key := range configKeys {
		if !l.v.IsSet(key.path) {
			continue
		}
		var value any
		switch key.kind {
		case kindDuration:
			value = l.v.GetDuration(key.path)
		case kindInt:
			value = l.v.GetInt64(key.path)
		case kindBool:
			value = l.v.GetBool(key.path)
		default:
			value = strings.TrimSpace(l.v.GetString(key.path))
		}
		setPath(raw, key.path, value)
	}
	return raw, nil
}

func envName(path string) string {
	return envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(path, ".", "_"))
}

func setPath(root map[string]any, path string, value any) {
	parts := strings.Split(path, ".")
	node := root
	for _, part := range parts[:len(parts)-1] {
		child, ok := node[part].(map[string]any)
		if !ok {
			child = map[string]any{}
			node[part] = child
		}
		node = child
	}
	node[parts[len(parts)-1]] = value
}

// loadConfig resolves defaults, file and environment values, then applies
// the flag overrides in runtime.
func loadConfig(ctx context.Context, configFile string, runtime core.Config) (core.Config, error) {
	loader, err := newViperLoader(configFile)
	if err != nil {
		return core.Config{}, err
	}
	return core.LoadConfig(ctx, core.NewCfgxConfigProvider(loader), core.GoOptionsResolver{}, runtime)
}
