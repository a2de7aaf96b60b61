package inbound

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/goliatone/go-folio/core"
	"github.com/goliatone/go-folio/providers/xubio"
	"github.com/goliatone/go-folio/store/memory"
	"github.com/goliatone/go-folio/webhooks"
)

func TestDeliverWebhook_StatusMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{name: "success", want: http.StatusOK},
		{name: "bad secret", err: core.NewWebhookAuthenticationError("bad secret", nil), want: http.StatusUnauthorized},
		{name: "malformed", err: core.NewBadInputError("malformed", nil), want: http.StatusBadRequest},
		{name: "downstream auth", err: core.NewAuthenticationError("xubio rejected token", nil), want: http.StatusInternalServerError},
		{name: "transient", err: core.NewTransientDownstreamError(nil, "xubio down", nil), want: http.StatusInternalServerError},
		{name: "plain", err: errors.New("boom"), want: http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := NewHandler(ProcessorFunc(func(context.Context, core.InboundRequest) (core.Outcome, error) {
				return core.Outcome{}, tc.err
			}))
			if got := handler.DeliverWebhook(context.Background(), []byte(`{}`), nil); got != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, got)
			}
		})
	}
}

func TestDeliverWebhook_NilProcessor(t *testing.T) {
	if got := (&Handler{}).DeliverWebhook(context.Background(), nil, nil); got != http.StatusInternalServerError {
		t.Fatalf("expected 500 without processor, got %d", got)
	}
}

func TestRouter_EndToEndWithDuplicates(t *testing.T) {
	store := memory.NewStore()
	processor := webhooks.NewProcessor(store, stubResolver{}, xubio.NewMapper(), &countingSubmitter{})
	processor.Verifier = webhooks.NewSharedSecretVerifier("", "s3cret")
	processor.EventLog = store

	handler := NewHandler(processor)
	handler.Health = store
	server := httptest.NewServer(handler.Router())
	defer server.Close()

	post := func(secret string, body string) (int, string) {
		req, err := http.NewRequest(http.MethodPost, server.URL+RouteWebhook, strings.NewReader(body))
		if err != nil {
			t.Fatalf("build request: %v", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if secret != "" {
			req.Header.Set("X-Webhook-Secret", secret)
		}
		res, err := server.Client().Do(req)
		if err != nil {
			t.Fatalf("post webhook: %v", err)
		}
		defer res.Body.Close()
		buf := new(strings.Builder)
		_, _ = io.Copy(buf, res.Body)
		return res.StatusCode, buf.String()
	}

	if status, body := post("s3cret", `{"transactionId":"tx1","amount":100}`); status != http.StatusOK || body != "ok" {
		t.Fatalf("expected 200 ok, got %d %q", status, body)
	}
	if status, body := post("s3cret", `{"transactionId":"tx1","amount":100}`); status != http.StatusOK || body != "duplicate" {
		t.Fatalf("expected 200 duplicate, got %d %q", status, body)
	}
	if status, _ := post("nope", `{"transactionId":"tx2"}`); status != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", status)
	}
	if status, _ := post("s3cret", `{"transactionId":`); status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}

	res, err := server.Client().Get(server.URL + RouteWebhook)
	if err != nil {
		t.Fatalf("get webhook: %v", err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", res.StatusCode)
	}

	health, err := server.Client().Get(server.URL + RouteHealth)
	if err != nil {
		t.Fatalf("get health: %v", err)
	}
	health.Body.Close()
	if health.StatusCode != http.StatusOK {
		t.Fatalf("expected healthy, got %d", health.StatusCode)
	}
}

func TestServeWebhook_BodyLimit(t *testing.T) {
	called := false
	handler := NewHandler(ProcessorFunc(func(context.Context, core.InboundRequest) (core.Outcome, error) {
		called = true
		return core.Outcome{}, nil
	}))
	handler.MaxBodyBytes = 8

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, RouteWebhook, strings.NewReader(`{"transactionId":"tx1"}`))
	handler.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for oversized body, got %d", rec.Code)
	}
	if called {
		t.Fatalf("processor must not run for oversized body")
	}
}

func TestServeWebhook_PassesLowercasedHeaders(t *testing.T) {
	var seen map[string]string
	handler := NewHandler(ProcessorFunc(func(_ context.Context, req core.InboundRequest) (core.Outcome, error) {
		seen = req.Headers
		return core.Outcome{}, nil
	}))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, RouteWebhook, strings.NewReader(`{}`))
	req.Header.Set("X-Webhook-Secret", "s3cret")
	handler.ServeWebhook(rec, req)
	if seen["x-webhook-secret"] != "s3cret" {
		t.Fatalf("expected lower-cased header, got %#v", seen)
	}
}

func TestServeHealth_Unavailable(t *testing.T) {
	handler := NewHandler(nil)
	handler.Health = failingPinger{}
	rec := httptest.NewRecorder()
	handler.ServeHealth(rec, httptest.NewRequest(http.MethodGet, RouteHealth, nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestRouter_ServesMetricsHandler(t *testing.T) {
	handler := NewHandler(nil)
	handler.Metrics = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("folio_webhook_process_total 1"))
	})
	rec := httptest.NewRecorder()
	handler.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, RouteMetrics, nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "folio_webhook") {
		t.Fatalf("unexpected metrics response: %d %q", rec.Code, rec.Body.String())
	}
}

type stubResolver struct{}

func (stubResolver) ResolveByReference(_ context.Context, referenceID string, _ string) (*core.ResolvedDetail, error) {
	return &core.ResolvedDetail{TransactionID: referenceID}, nil
}

type countingSubmitter struct {
	calls int
}

func (s *countingSubmitter) SubmitInvoice(context.Context, core.InvoicePayload) (json.RawMessage, error) {
	s.calls++
	return json.RawMessage(`{"id":"inv-1"}`), nil
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("db down") }
