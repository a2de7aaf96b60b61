package cloudbeds

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-folio/core"
	"github.com/goliatone/go-folio/transport"
	glog "github.com/goliatone/go-logger/glog"
)

const ProviderID = "cloudbeds"

type Config struct {
	APIKey    string
	BaseURL   string
	Timeout   time.Duration
	Transport core.TransportAdapter
	Logger    glog.Logger
	Metrics   core.MetricsRecorder
}

type Resolver struct {
	apiKey   string
	baseURL  string
	timeout  time.Duration
	adapter  core.TransportAdapter
	logger   glog.Logger
	observer core.Observer
}

func NewResolver(cfg Config) *Resolver {
	adapter := cfg.Transport
	if adapter == nil {
		adapter = transport.NewRESTAdapter(nil)
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = core.DefaultCloudbedsBaseURL
	}
	logger := glog.Ensure(cfg.Logger)
	return &Resolver{
		apiKey:   strings.TrimSpace(cfg.APIKey),
		baseURL:  baseURL,
		timeout:  cfg.Timeout,
		adapter:  adapter,
		logger:   logger,
		observer: core.NewObserver("folio.cloudbeds", logger, cfg.Metrics),
	}
}

// ResolveByReference looks the transaction up by id and, when it references a
// reservation, attaches the reservation detail. A reference that does not
// resolve yields nil without an error.
func (r *Resolver) ResolveByReference(ctx context.Context, referenceID string, propertyID string) (*core.ResolvedDetail, error) {
	referenceID = strings.TrimSpace(referenceID)
	if referenceID == "" {
		return nil, nil
	}
	if r.apiKey == "" {
		return nil, core.NewConfigurationError(
			"cloudbeds: api key is not configured",
			map[string]any{"provider": ProviderID},
		)
	}

	startedAt := time.Now()
	detail, err := r.resolve(ctx, referenceID, strings.TrimSpace(propertyID))
	outcome := "resolved"
	switch {
	case err != nil:
		outcome = "failure"
	case detail == nil:
		outcome = "not_found"
	}
	r.observer.Observe(ctx, startedAt, "resolve", outcome, err, map[string]any{
		"reference_id": referenceID,
		"property_id":  propertyID,
	})
	return detail, err
}

func (r *Resolver) resolve(ctx context.Context, referenceID string, propertyID string) (*core.ResolvedDetail, error) {
	query := map[string]string{}
	if propertyID != "" {
		query["propertyID"] = propertyID
	}
	body, found, err := r.get(ctx, "/transactions/"+url.PathEscape(referenceID), query)
	if err != nil || !found {
		return nil, err
	}
	payload, found, err := unwrapEnvelope(body)
	if err != nil {
		return nil, core.NewUpstreamError(err, "cloudbeds: decode transaction", map[string]any{
			"reference_id": referenceID,
		})
	}
	if !found {
		return nil, nil
	}

	var tx transactionDTO
	if err := json.Unmarshal(payload, &tx); err != nil {
		return nil, core.NewUpstreamError(err, "cloudbeds: decode transaction", map[string]any{
			"reference_id": referenceID,
		})
	}
	detail := tx.toDetail(referenceID, propertyID, payload)

	if reservationID := tx.reservationID(); reservationID != "" {
		reservation, err := r.reservation(ctx, reservationID, propertyID)
		if err != nil {
			return nil, err
		}
		detail.Reservation = reservation
	}
	return detail, nil
}

func (r *Resolver) reservation(ctx context.Context, reservationID string, propertyID string) (*core.ReservationDetail, error) {
	query := map[string]string{}
	if propertyID != "" {
		query["propertyID"] = propertyID
	}
	body, found, err := r.get(ctx, "/reservations/"+url.PathEscape(reservationID), query)
	if err != nil || !found {
		return nil, err
	}
	payload, found, err := unwrapEnvelope(body)
	if err != nil || !found {
		if err != nil {
			r.logger.Warn("cloudbeds: undecodable reservation", "reservation_id", reservationID, "error", err)
		}
		return nil, nil
	}
	var dto reservationDTO
	if err := json.Unmarshal(payload, &dto); err != nil {
		r.logger.Warn("cloudbeds: undecodable reservation", "reservation_id", reservationID, "error", err)
		return nil, nil
	}
	return dto.toDetail(reservationID, payload), nil
}

// get returns found=false for 404 and empty bodies.
func (r *Resolver) get(ctx context.Context, path string, query map[string]string) ([]byte, bool, error) {
	res, err := r.adapter.Do(ctx, core.TransportRequest{
		Method: http.MethodGet,
		URL:    r.baseURL + path,
		Headers: map[string]string{
			"Authorization": "Bearer " + r.apiKey,
			"Accept":        "application/json",
		},
		Query:   query,
		Timeout: r.timeout,
	})
	if err != nil {
		return nil, false, core.NewUpstreamError(err, "cloudbeds: request failed", map[string]any{"path": path})
	}
	if res.StatusCode == http.StatusNotFound {
		return nil, false, nil
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, false, core.NewUpstreamError(
			nil,
			fmt.Sprintf("cloudbeds: %s returned %d", path, res.StatusCode),
			map[string]any{"path": path, "status_code": res.StatusCode, "body": truncate(string(res.Body), 512)},
		)
	}
	body := bytes.TrimSpace(res.Body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return nil, false, nil
	}
	return body, true, nil
}

type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
}

// unwrapEnvelope accepts either a bare object or {success, data} where data is
// an object or a list. success:false and empty data mean not found.
func unwrapEnvelope(body []byte) (json.RawMessage, bool, error) {
	if len(body) > 0 && body[0] == '[' {
		return firstElement(body)
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, false, err
	}
	if env.Success != nil && !*env.Success {
		return nil, false, nil
	}
	data := bytes.TrimSpace(env.Data)
	if len(data) == 0 {
		if env.Success != nil {
			return nil, false, nil
		}
		return body, true, nil
	}
	if bytes.Equal(data, []byte("null")) {
		return nil, false, nil
	}
	if data[0] == '[' {
		return firstElement(data)
	}
	return json.RawMessage(data), true, nil
}

func firstElement(list []byte) (json.RawMessage, bool, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(list, &items); err != nil {
		return nil, false, err
	}
	if len(items) == 0 {
		return nil, false, nil
	}
	return items[0], true, nil
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	return value[:limit] + "..."
}

var _ core.DetailResolver = (*Resolver)(nil)
