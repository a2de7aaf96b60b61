package xubio

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-folio/core"
	"github.com/goliatone/go-folio/transport"
	glog "github.com/goliatone/go-logger/glog"
)

const ProviderID = "xubio"

type Config struct {
	Endpoint       string
	APIKey         string
	Timeout        time.Duration
	MaxAttempts    int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	Tokens         core.TokenSource
	Transport      core.TransportAdapter
	Logger         glog.Logger
	Metrics        core.MetricsRecorder
	Sleep          func(ctx context.Context, d time.Duration) error
	Rand           func() float64
}

type Client struct {
	endpoint string
	apiKey   string
	timeout  time.Duration
	tokens   core.TokenSource
	adapter  core.TransportAdapter
	retrier  *transport.Retrier
	logger   glog.Logger
	observer core.Observer
}

func NewClient(cfg Config) *Client {
	adapter := cfg.Transport
	if adapter == nil {
		adapter = transport.NewRESTAdapter(nil)
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = core.DefaultSubmitMaxAttempts
	}
	baseDelay := cfg.RetryBaseDelay
	if baseDelay <= 0 {
		baseDelay = core.DefaultRetryBaseDelay
	}
	maxDelay := cfg.RetryMaxDelay
	if maxDelay <= 0 {
		maxDelay = core.DefaultRetryMaxDelay
	}
	logger := glog.Ensure(cfg.Logger)
	return &Client{
		endpoint: strings.TrimSpace(cfg.Endpoint),
		apiKey:   strings.TrimSpace(cfg.APIKey),
		timeout:  cfg.Timeout,
		tokens:   cfg.Tokens,
		adapter:  adapter,
		retrier: &transport.Retrier{
			MaxAttempts: maxAttempts,
			Policy: transport.ExponentialRetryPolicy{
				Initial: baseDelay,
				Max:     maxDelay,
				Jitter:  true,
				Rand:    cfg.Rand,
			},
			MaxDelay: maxDelay,
			Sleep:    cfg.Sleep,
		},
		logger:   logger,
		observer: core.NewObserver("folio.xubio", logger, cfg.Metrics),
	}
}

// Call issues an authenticated request. A 401 invalidates the token and the
// request is replayed exactly once with a fresh one; a second 401 is an
// authentication error. Any other response is returned to the caller as is.
func (c *Client) Call(ctx context.Context, req core.TransportRequest) (core.TransportResponse, error) {
	if c == nil || c.tokens == nil {
		return core.TransportResponse{}, core.NewConfigurationError(
			"xubio: client requires a token source",
			map[string]any{"provider": ProviderID},
		)
	}
	res, token, err := c.do(ctx, req)
	if err != nil {
		return core.TransportResponse{}, err
	}
	if res.StatusCode != http.StatusUnauthorized {
		return res, nil
	}

	c.logger.Info("xubio: token rejected, refreshing", "url", req.URL)
	c.tokens.Invalidate(token)
	res, _, err = c.do(ctx, req)
	if err != nil {
		return core.TransportResponse{}, err
	}
	if res.StatusCode == http.StatusUnauthorized {
		return core.TransportResponse{}, core.NewAuthenticationError(
			"xubio: request rejected with 401 after token refresh",
			map[string]any{"provider": ProviderID, "url": req.URL},
		)
	}
	return res, nil
}

func (c *Client) do(ctx context.Context, req core.TransportRequest) (core.TransportResponse, string, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return core.TransportResponse{}, "", err
	}
	headers := make(map[string]string, len(req.Headers)+3)
	for key, value := range req.Headers {
		headers[key] = value
	}
	headers["Authorization"] = "Bearer " + token
	if _, ok := headers["Accept"]; !ok {
		headers["Accept"] = "application/json"
	}
	if c.apiKey != "" {
		headers["apikey"] = c.apiKey
	}
	req.Headers = headers
	if req.Timeout <= 0 {
		req.Timeout = c.timeout
	}
	res, err := c.adapter.Do(ctx, req)
	return res, token, err
}

// SubmitInvoice posts payload to the configured endpoint. Network errors, 429
// and 5xx responses are retried with backoff; other 4xx fail immediately.
func (c *Client) SubmitInvoice(ctx context.Context, payload core.InvoicePayload) (json.RawMessage, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if c == nil || c.endpoint == "" {
		return nil, core.NewConfigurationError(
			"xubio: invoice endpoint is not configured",
			map[string]any{"provider": ProviderID},
		)
	}
	body, err := Encode(payload)
	if err != nil {
		return nil, core.NewInternalError(
			fmt.Sprintf("xubio: encode invoice: %v", err),
			map[string]any{"origin_transaction_id": payload.OriginTransactionID},
		)
	}

	startedAt := time.Now()
	var result json.RawMessage
	attempts, err := c.retrier.Do(ctx, func(ctx context.Context, attempt int) error {
		res, callErr := c.Call(ctx, core.TransportRequest{
			Method:  http.MethodPost,
			URL:     c.endpoint,
			Headers: map[string]string{"Content-Type": "application/json"},
			Body:    body,
		})
		if callErr != nil {
			if transport.IsNetworkError(callErr) {
				c.logger.Warn("xubio: submit attempt failed", "attempt", attempt, "error", callErr)
				return core.NewTransientDownstreamError(callErr, "xubio: invoice submission failed", map[string]any{
					"attempt": attempt,
				})
			}
			return callErr
		}
		if res.StatusCode >= 200 && res.StatusCode <= 299 {
			result = normalizeResult(res.Body)
			return nil
		}
		metadata := map[string]any{
			"attempt":     attempt,
			"status_code": res.StatusCode,
			"body":        truncate(string(res.Body), 512),
		}
		message := fmt.Sprintf("xubio: invoice submission returned %d", res.StatusCode)
		if transport.RetryableStatus(res.StatusCode) {
			c.logger.Warn("xubio: submit attempt failed", "attempt", attempt, "status_code", res.StatusCode)
			return transport.WithRetryAfter(
				core.NewTransientDownstreamError(nil, message, metadata),
				transport.RetryAfter(res.Headers),
			)
		}
		return core.NewPermanentDownstreamError(nil, message, metadata)
	})
	c.observer.Observe(ctx, startedAt, "submit", outcomeOf(err), err, map[string]any{
		"attempts":              attempts,
		"origin_transaction_id": payload.OriginTransactionID,
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func normalizeResult(body []byte) json.RawMessage {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return json.RawMessage("null")
	}
	if json.Valid([]byte(trimmed)) {
		return json.RawMessage(trimmed)
	}
	quoted, _ := json.Marshal(trimmed)
	return quoted
}

func outcomeOf(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	return value[:limit] + "..."
}

var _ core.InvoiceSubmitter = (*Client)(nil)
