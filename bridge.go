package folio

import (
	"context"
	"errors"
	"net/http"

	"github.com/goliatone/go-folio/adapters/gocommand"
	"github.com/goliatone/go-folio/auth"
	foliocommand "github.com/goliatone/go-folio/command"
	"github.com/goliatone/go-folio/core"
	"github.com/goliatone/go-folio/inbound"
	"github.com/goliatone/go-folio/providers/cloudbeds"
	"github.com/goliatone/go-folio/providers/xubio"
	folioquery "github.com/goliatone/go-folio/query"
	sqlstore "github.com/goliatone/go-folio/store/sql"
	"github.com/goliatone/go-folio/store/memory"
	"github.com/goliatone/go-folio/transport"
	"github.com/goliatone/go-folio/webhooks"
	glog "github.com/goliatone/go-logger/glog"
)

type Config = core.Config

func DefaultConfig() Config {
	return core.DefaultConfig()
}

type Commands struct {
	ProcessWebhook *foliocommand.ProcessWebhookCommand
	ReplayEvent    *foliocommand.ReplayEventCommand
}

type Queries struct {
	GetRecord   *folioquery.GetRecordQuery
	ListRecords *folioquery.ListRecordsQuery
}

// Bridge wires the webhook pipeline from configuration: store, token cache,
// Cloudbeds resolver, Xubio client, processor and HTTP handler.
type Bridge struct {
	config    core.Config
	logger    core.Logger
	mode      core.StoreMode
	store     core.IdempotencyStore
	reader    core.RecordReader
	eventLog  core.EventLog
	tokens    *auth.TokenCache
	resolver  *cloudbeds.Resolver
	submitter *xubio.Client
	processor *webhooks.Processor
	handler   *inbound.Handler
	commands  Commands
	queries   Queries
	closers   []func() error
}

func New(cfg core.Config, opts ...Option) (*Bridge, error) {
	options := bridgeOptions{}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	validate := cfg.Validate
	if options.store != nil || options.persistenceClient != nil {
		validate = cfg.ValidateSettings
	}
	if err := validate(); err != nil {
		return nil, err
	}

	_, logger := glog.Resolve(cfg.ServiceName, options.loggerProvider, options.logger)
	logger = glog.Ensure(logger)
	metrics := options.metrics
	if metrics == nil {
		metrics = core.NopMetricsRecorder{}
	}

	bridge := &Bridge{config: cfg, logger: logger}
	if err := bridge.setupStore(cfg, options); err != nil {
		_ = bridge.Close()
		return nil, err
	}

	adapter := options.transport
	if adapter == nil {
		adapter = transport.NewRESTAdapter(&http.Client{})
	}

	bridge.tokens = auth.NewTokenCache(auth.TokenCacheConfig{
		ClientID:     cfg.Xubio.ClientID,
		ClientSecret: cfg.Xubio.ClientSecret,
		TokenURL:     cfg.Xubio.TokenURL,
		SafetyMargin: cfg.Xubio.TokenSafetyMargin,
		Timeout:      cfg.Xubio.Timeout,
		Transport:    adapter,
		Logger:       logger,
		Now:          options.now,
	})
	bridge.submitter = xubio.NewClient(xubio.Config{
		Endpoint:       cfg.Xubio.Endpoint,
		APIKey:         cfg.Xubio.APIKey,
		Timeout:        cfg.Xubio.Timeout,
		MaxAttempts:    cfg.Xubio.MaxAttempts,
		RetryBaseDelay: cfg.Xubio.RetryBaseDelay,
		RetryMaxDelay:  cfg.Xubio.RetryMaxDelay,
		Tokens:         bridge.tokens,
		Transport:      adapter,
		Logger:         logger,
		Metrics:        metrics,
	})
	bridge.resolver = cloudbeds.NewResolver(cloudbeds.Config{
		APIKey:    cfg.Cloudbeds.APIKey,
		BaseURL:   cfg.Cloudbeds.BaseURL,
		Timeout:   cfg.Cloudbeds.Timeout,
		Transport: adapter,
		Logger:    logger,
		Metrics:   metrics,
	})

	mapper := xubio.NewMapper()
	if options.now != nil {
		mapper.Now = options.now
	}

	processor := webhooks.NewProcessor(bridge.store, bridge.resolver, mapper, bridge.submitter)
	processor.Verifier = webhooks.NewSharedSecretVerifier(cfg.Webhook.SecretHeader, cfg.Webhook.Secret)
	processor.SecretHeader = cfg.Webhook.SecretHeader
	processor.EventLog = bridge.eventLog
	processor.Logger = logger
	processor.Metrics = metrics
	if options.now != nil {
		processor.Now = options.now
	}
	bridge.processor = processor

	handler := inbound.NewHandler(processor)
	handler.MaxBodyBytes = cfg.Webhook.MaxBodyBytes
	handler.HealthTimeout = cfg.Store.GetPingTimeout()
	handler.Metrics = options.metricsHandler
	handler.Logger = logger
	if pinger, ok := bridge.store.(inbound.HealthChecker); ok {
		handler.Health = pinger
	}
	bridge.handler = handler

	bridge.commands = Commands{
		ProcessWebhook: foliocommand.NewProcessWebhookCommand(processor),
		ReplayEvent:    foliocommand.NewReplayEventCommand(processor),
	}
	bridge.queries = Queries{
		GetRecord:   folioquery.NewGetRecordQuery(bridge.reader),
		ListRecords: folioquery.NewListRecordsQuery(bridge.reader),
	}

	if bridge.mode == core.StoreModeDegraded {
		logger.Warn("folio: running in degraded mode, deliveries are not deduplicated")
	}
	return bridge, nil
}

func (b *Bridge) setupStore(cfg core.Config, options bridgeOptions) error {
	switch {
	case options.store != nil:
		b.store = options.store
	case cfg.StoreMode() == core.StoreModeDegraded:
		b.store = memory.NewDegradedStore(b.logger)
	default:
		client := options.persistenceClient
		if client == nil {
			opened, err := sqlstore.Open(cfg.Store)
			if err != nil {
				return err
			}
			b.closers = append(b.closers, opened.Close)
			client = opened
		}
		ttl := cfg.Store.RecordCacheTTL
		stores, err := sqlstore.NewStores(client, ttl)
		if err != nil {
			return err
		}
		b.store = stores.Idempotency()
		b.reader = stores.Reader()
		b.eventLog = stores.EventLog
	}

	if b.reader == nil {
		if reader, ok := b.store.(core.RecordReader); ok {
			b.reader = reader
		}
	}
	if options.eventLog != nil {
		b.eventLog = options.eventLog
	}
	if b.eventLog == nil {
		if log, ok := b.store.(core.EventLog); ok {
			b.eventLog = log
		}
	}
	b.mode = core.StoreModeStrict
	if reporter, ok := b.store.(core.ModeReporter); ok {
		b.mode = reporter.Mode()
	}
	return nil
}

// DeliverWebhook runs one raw delivery and returns the HTTP status to answer.
func (b *Bridge) DeliverWebhook(ctx context.Context, rawBody []byte, headers map[string]string) int {
	return b.handler.DeliverWebhook(ctx, rawBody, headers)
}

func (b *Bridge) Process(ctx context.Context, req core.InboundRequest) (core.Outcome, error) {
	return b.processor.Process(ctx, req)
}

func (b *Bridge) Replay(ctx context.Context, eventID string) (core.Outcome, error) {
	return b.processor.Replay(ctx, eventID)
}

func (b *Bridge) Get(ctx context.Context, eventID string) (core.ProcessingRecord, error) {
	return b.queries.GetRecord.Query(ctx, folioquery.GetRecordMessage{EventID: eventID})
}

func (b *Bridge) List(ctx context.Context, status core.ProcessingStatus, limit int) ([]core.ProcessingRecord, error) {
	return b.queries.ListRecords.Query(ctx, folioquery.ListRecordsMessage{Status: string(status), Limit: limit})
}

// Handler returns the HTTP router serving the webhook, health and metrics
// routes.
func (b *Bridge) Handler() http.Handler {
	return b.handler.Router()
}

// Server builds an http.Server with the configured address and timeouts.
func (b *Bridge) Server() *http.Server {
	cfg := b.config.HTTP
	addr := cfg.Addr
	if addr == "" {
		addr = core.DefaultHTTPAddr
	}
	read := cfg.ReadTimeout
	if read <= 0 {
		read = core.DefaultHTTPReadTimeout
	}
	write := cfg.WriteTimeout
	if write <= 0 {
		write = core.DefaultHTTPWriteTimeout
	}
	return &http.Server{
		Addr:              addr,
		Handler:           b.Handler(),
		ReadTimeout:       read,
		ReadHeaderTimeout: read,
		WriteTimeout:      write,
		IdleTimeout:       2 * write,
	}
}

// RegisterCommands subscribes the bridge's commands and queries on the
// go-command dispatcher.
func (b *Bridge) RegisterCommands(adapter *gocommand.RegistryAdapter) (gocommand.Subscriptions, error) {
	return gocommand.RegisterHandlers(adapter, b.processor, b.reader)
}

func (b *Bridge) Commands() Commands {
	if b == nil {
		return Commands{}
	}
	return b.commands
}

func (b *Bridge) Queries() Queries {
	if b == nil {
		return Queries{}
	}
	return b.queries
}

func (b *Bridge) Processor() *webhooks.Processor {
	return b.processor
}

func (b *Bridge) Tokens() *auth.TokenCache {
	return b.tokens
}

func (b *Bridge) Mode() core.StoreMode {
	return b.mode
}

func (b *Bridge) Config() core.Config {
	return b.config
}

// Ping checks the backing store when it supports health checks.
func (b *Bridge) Ping(ctx context.Context) error {
	pinger, ok := b.store.(inbound.HealthChecker)
	if !ok {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, b.config.Store.GetPingTimeout())
	defer cancel()
	return pinger.Ping(ctx)
}

// Close releases resources the bridge opened itself.
func (b *Bridge) Close() error {
	if b == nil {
		return nil
	}
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	b.closers = nil
	return errors.Join(errs...)
}
