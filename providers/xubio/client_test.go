package xubio

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-folio/core"
	"github.com/goliatone/go-folio/providers/devkit"
	"github.com/goliatone/go-folio/transport"
)

type fakeTokens struct {
	mu          sync.Mutex
	issued      int
	current     string
	invalidated []string
}

func (f *fakeTokens) Token(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.current == "" {
		f.issued++
		f.current = "token-" + string(rune('0'+f.issued))
	}
	return f.current, nil
}

func (f *fakeTokens) Invalidate(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, token)
	if f.current == token {
		f.current = ""
	}
}

type sleepRecorder struct {
	delays []time.Duration
}

func (s *sleepRecorder) Sleep(_ context.Context, d time.Duration) error {
	s.delays = append(s.delays, d)
	return nil
}

func newTestClient(adapter core.TransportAdapter, tokens core.TokenSource, sleeps *sleepRecorder) *Client {
	return NewClient(Config{
		Endpoint:       "https://xubio.example/invoices",
		APIKey:         "api-key",
		MaxAttempts:    3,
		RetryBaseDelay: 100 * time.Millisecond,
		RetryMaxDelay:  time.Second,
		Tokens:         tokens,
		Transport:      adapter,
		Sleep:          sleeps.Sleep,
		Rand:           func() float64 { return 0.5 },
	})
}

func samplePayload() core.InvoicePayload {
	return core.InvoicePayload{
		Date:                "2025-09-24",
		Customer:            core.InvoiceCustomer{Name: "Ada"},
		Items:               []core.InvoiceItem{{Description: "Payment tx1", Quantity: 1, UnitPrice: 100}},
		Total:               100,
		Origin:              "cloudbeds",
		OriginTransactionID: "tx1",
	}
}

func TestClient_CallRetriesOnceAfter401(t *testing.T) {
	adapter := devkit.NewFakeTransportAdapter(
		devkit.StatusResponse(http.StatusUnauthorized),
		devkit.JSONResponse(http.StatusOK, `{"id":1}`),
	)
	tokens := &fakeTokens{}
	client := newTestClient(adapter, tokens, &sleepRecorder{})

	res, err := client.Call(context.Background(), core.TransportRequest{Method: http.MethodGet, URL: "https://xubio.example/x"})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.StatusCode)
	}
	requests := adapter.Requests()
	if len(requests) != 2 {
		t.Fatalf("expected exactly one retried request, got %d requests", len(requests))
	}
	if requests[0].Headers["Authorization"] != "Bearer token-1" || requests[1].Headers["Authorization"] != "Bearer token-2" {
		t.Fatalf("expected refreshed bearer on retry, got %q then %q", requests[0].Headers["Authorization"], requests[1].Headers["Authorization"])
	}
	if requests[1].Headers["apikey"] != "api-key" {
		t.Fatalf("expected api key header")
	}
	if tokens.issued != 2 || len(tokens.invalidated) != 1 {
		t.Fatalf("expected one refresh, got issued=%d invalidated=%v", tokens.issued, tokens.invalidated)
	}
}

func TestClient_CallSurfacesRepeated401AsAuthenticationError(t *testing.T) {
	adapter := devkit.NewFakeTransportAdapter(devkit.StatusResponse(http.StatusUnauthorized))
	client := newTestClient(adapter, &fakeTokens{}, &sleepRecorder{})

	_, err := client.Call(context.Background(), core.TransportRequest{Method: http.MethodGet, URL: "https://xubio.example/x"})
	if !core.IsAuthentication(err) {
		t.Fatalf("expected authentication error, got %v", err)
	}
	if core.IsWebhookUnauthorized(err) {
		t.Fatalf("downstream 401 must not map to an inbound 401")
	}
	if len(adapter.Requests()) != 2 {
		t.Fatalf("expected two requests, got %d", len(adapter.Requests()))
	}
}

func TestClient_SubmitInvoiceRetries500UpToLimit(t *testing.T) {
	adapter := devkit.NewFakeTransportAdapter(devkit.JSONResponse(http.StatusInternalServerError, `{"error":"boom"}`))
	sleeps := &sleepRecorder{}
	client := newTestClient(adapter, &fakeTokens{}, sleeps)

	_, err := client.SubmitInvoice(context.Background(), samplePayload())
	if !core.IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if len(adapter.Requests()) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(adapter.Requests()))
	}
	if len(sleeps.delays) != 2 || sleeps.delays[1] <= sleeps.delays[0] {
		t.Fatalf("expected increasing backoff, got %v", sleeps.delays)
	}
}

func TestClient_SubmitInvoiceDoesNotRetry400(t *testing.T) {
	adapter := devkit.NewFakeTransportAdapter(devkit.JSONResponse(http.StatusBadRequest, `{"error":"invalid"}`))
	sleeps := &sleepRecorder{}
	client := newTestClient(adapter, &fakeTokens{}, sleeps)

	_, err := client.SubmitInvoice(context.Background(), samplePayload())
	if !core.IsPermanent(err) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if len(adapter.Requests()) != 1 || len(sleeps.delays) != 0 {
		t.Fatalf("expected a single attempt, got %d requests and sleeps %v", len(adapter.Requests()), sleeps.delays)
	}
}

func TestClient_SubmitInvoiceRetriesNetworkErrorThenSucceeds(t *testing.T) {
	adapter := devkit.NewFakeTransportAdapter(
		devkit.ErrorResponse(failingNetwork()),
		devkit.JSONResponse(http.StatusTooManyRequests, `{}`),
		devkit.JSONResponse(http.StatusCreated, `{"transaccionid":42}`),
	)
	sleeps := &sleepRecorder{}
	client := newTestClient(adapter, &fakeTokens{}, sleeps)

	result, err := client.SubmitInvoice(context.Background(), samplePayload())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if string(result) != `{"transaccionid":42}` {
		t.Fatalf("unexpected result %s", string(result))
	}
	requests := adapter.Requests()
	if len(requests) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(requests))
	}
	if !strings.Contains(string(requests[2].Body), `"origin_transaction_id":"tx1"`) {
		t.Fatalf("expected invoice body, got %s", string(requests[2].Body))
	}
	if requests[2].Method != http.MethodPost || requests[2].Headers["Content-Type"] != "application/json" {
		t.Fatalf("expected JSON POST, got %s %v", requests[2].Method, requests[2].Headers)
	}
}

func TestClient_SubmitInvoiceHonorsRetryAfter(t *testing.T) {
	throttled := devkit.JSONResponse(http.StatusTooManyRequests, `{}`)
	throttled.Response.Headers["Retry-After"] = "3"
	adapter := devkit.NewFakeTransportAdapter(throttled, devkit.JSONResponse(http.StatusOK, `{}`))
	sleeps := &sleepRecorder{}
	client := newTestClient(adapter, &fakeTokens{}, sleeps)

	if _, err := client.SubmitInvoice(context.Background(), samplePayload()); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(sleeps.delays) != 1 || sleeps.delays[0] != time.Second {
		t.Fatalf("expected Retry-After capped at the max delay, got %v", sleeps.delays)
	}
}

func TestClient_SubmitInvoiceRequiresEndpoint(t *testing.T) {
	client := NewClient(Config{Tokens: &fakeTokens{}})
	_, err := client.SubmitInvoice(context.Background(), samplePayload())
	if !core.IsConfiguration(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func failingNetwork() error {
	_, err := transport.NewRESTAdapter(networkDoer{}).Do(context.Background(), core.TransportRequest{URL: "https://xubio.example/invoices"})
	return err
}

type networkDoer struct{}

func (networkDoer) Do(*http.Request) (*http.Response, error) {
	return nil, errors.New("connection reset by peer")
}
