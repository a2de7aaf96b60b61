package inbound

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-folio/core"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/gorilla/mux"
)

const (
	RouteWebhook = "/webhook"
	RouteHealth  = "/healthz"
	RouteMetrics = "/metrics"
)

type Processor interface {
	Process(ctx context.Context, req core.InboundRequest) (core.Outcome, error)
}

// ProcessorFunc adapts a function into a Processor.
type ProcessorFunc func(ctx context.Context, req core.InboundRequest) (core.Outcome, error)

func (f ProcessorFunc) Process(ctx context.Context, req core.InboundRequest) (core.Outcome, error) {
	return f(ctx, req)
}

type HealthChecker interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	Processor     Processor
	Health        HealthChecker
	Metrics       http.Handler
	MaxBodyBytes  int64
	HealthTimeout time.Duration
	Logger        core.Logger
	Now           func() time.Time
}

func NewHandler(processor Processor) *Handler {
	return &Handler{
		Processor:     processor,
		MaxBodyBytes:  core.DefaultWebhookMaxBodyBytes,
		HealthTimeout: core.DefaultStorePingTimeout,
		Logger:        glog.Nop(),
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// DeliverWebhook runs one delivery and returns the response status.
func (h *Handler) DeliverWebhook(ctx context.Context, rawBody []byte, headers map[string]string) int {
	status, _ := h.deliver(ctx, rawBody, headers)
	return status
}

func (h *Handler) deliver(ctx context.Context, rawBody []byte, headers map[string]string) (int, core.Outcome) {
	if h == nil || h.Processor == nil {
		h.logError(ctx, "webhook delivery failed", inboundInternal("inbound: processor is required", nil), core.Outcome{})
		return http.StatusInternalServerError, core.Outcome{}
	}
	outcome, err := h.Processor.Process(ctx, core.InboundRequest{
		Headers:    headers,
		Body:       rawBody,
		ReceivedAt: h.now(),
	})
	if err != nil {
		h.logError(ctx, "webhook delivery failed", err, outcome)
	}
	return StatusFor(err), outcome
}

// Router wires the webhook, health and metrics routes. Other methods on the
// webhook route answer 405.
func (h *Handler) Router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc(RouteWebhook, h.ServeWebhook).Methods(http.MethodPost)
	router.HandleFunc(RouteHealth, h.ServeHealth).Methods(http.MethodGet)
	if h.Metrics != nil {
		router.Handle(RouteMetrics, h.Metrics).Methods(http.MethodGet)
	}
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeText(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	})
	return router
}

func (h *Handler) ServeWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := h.readBody(w, r)
	if err != nil {
		h.logError(r.Context(), "webhook body rejected", err, core.Outcome{})
		writeText(w, StatusFor(err), responseText(StatusFor(err), core.Outcome{}))
		return
	}
	status, outcome := h.deliver(r.Context(), body, FlattenHeaders(r.Header))
	writeText(w, status, responseText(status, outcome))
}

func (h *Handler) ServeHealth(w http.ResponseWriter, r *http.Request) {
	if h.Health == nil {
		writeText(w, http.StatusOK, "ok")
		return
	}
	timeout := h.HealthTimeout
	if timeout <= 0 {
		timeout = core.DefaultStorePingTimeout
	}
	ctx, cancel := context.WithTimeout(r.Context(), timeout)
	defer cancel()
	if err := h.Health.Ping(ctx); err != nil {
		h.logError(r.Context(), "health check failed", err, core.Outcome{})
		writeText(w, http.StatusServiceUnavailable, "unavailable")
		return
	}
	writeText(w, http.StatusOK, "ok")
}

func (h *Handler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	limit := h.MaxBodyBytes
	if limit <= 0 {
		limit = core.DefaultWebhookMaxBodyBytes
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, inboundBadInput(err, "inbound: request body too large", map[string]any{"limit": limit})
		}
		return nil, inboundBadInput(err, "inbound: read request body", nil)
	}
	return body, nil
}

func (h *Handler) logError(ctx context.Context, message string, err error, outcome core.Outcome) {
	logger := glog.Ensure(nil)
	if h != nil && h.Logger != nil {
		logger = h.Logger
	}
	args := []any{"error", err.Error(), "status", StatusFor(err)}
	if code := core.TextCode(err); code != "" {
		args = append(args, "error_code", code)
	}
	if outcome.EventID != "" {
		args = append(args, "event_id", outcome.EventID, "state", string(outcome.State))
	}
	logger.WithContext(ctx).Error(message, args...)
}

func (h *Handler) now() time.Time {
	if h != nil && h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

// FlattenHeaders keeps the first value of each header under a lower-cased key.
func FlattenHeaders(headers http.Header) map[string]string {
	out := make(map[string]string, len(headers))
	for key, values := range headers {
		if len(values) == 0 {
			continue
		}
		out[strings.ToLower(key)] = values[0]
	}
	return out
}

func responseText(status int, outcome core.Outcome) string {
	switch status {
	case http.StatusOK:
		if outcome.Duplicate {
			return "duplicate"
		}
		return "ok"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusBadRequest:
		return "bad request"
	default:
		return "error"
	}
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}
