package folio

import (
	"net/http"
	"time"

	"github.com/goliatone/go-folio/core"
)

type Option func(*bridgeOptions)

type bridgeOptions struct {
	logger            core.Logger
	loggerProvider    core.LoggerProvider
	metrics           core.MetricsRecorder
	metricsHandler    http.Handler
	transport         core.TransportAdapter
	persistenceClient any
	store             core.IdempotencyStore
	eventLog          core.EventLog
	now               func() time.Time
}

func WithLogger(logger core.Logger) Option {
	return func(o *bridgeOptions) {
		o.logger = logger
	}
}

func WithLoggerProvider(provider core.LoggerProvider) Option {
	return func(o *bridgeOptions) {
		o.loggerProvider = provider
	}
}

func WithMetrics(metrics core.MetricsRecorder) Option {
	return func(o *bridgeOptions) {
		o.metrics = metrics
	}
}

// WithMetricsHandler exposes a scrape handler on the metrics route.
func WithMetricsHandler(handler http.Handler) Option {
	return func(o *bridgeOptions) {
		o.metricsHandler = handler
	}
}

// WithTransport replaces the outbound HTTP adapter shared by the Cloudbeds
// and Xubio clients.
func WithTransport(adapter core.TransportAdapter) Option {
	return func(o *bridgeOptions) {
		o.transport = adapter
	}
}

// WithPersistenceClient reuses an open go-persistence-bun client (or a
// *bun.DB) instead of opening one from the store config.
func WithPersistenceClient(client any) Option {
	return func(o *bridgeOptions) {
		o.persistenceClient = client
	}
}

// WithStore supplies the idempotency store directly. The store also serves
// record reads and the event log when it implements those contracts.
func WithStore(store core.IdempotencyStore) Option {
	return func(o *bridgeOptions) {
		o.store = store
	}
}

func WithEventLog(log core.EventLog) Option {
	return func(o *bridgeOptions) {
		o.eventLog = log
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *bridgeOptions) {
		o.now = now
	}
}
