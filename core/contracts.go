package core

import (
	"context"
	"encoding/json"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

// IdempotencyStore owns the ProcessingRecord lifecycle. Claim must be an
// atomic insert-or-ignore on the event id.
type IdempotencyStore interface {
	Claim(ctx context.Context, in ClaimInput) (ClaimResult, error)
	Record(ctx context.Context, eventID string, status ProcessingStatus, result json.RawMessage, errMessage string) error
}

// ReclaimableStore supports operator replay of failed events.
type ReclaimableStore interface {
	IdempotencyStore
	Reclaim(ctx context.Context, eventID string) (ProcessingRecord, bool, error)
}

type RecordReader interface {
	Get(ctx context.Context, eventID string) (ProcessingRecord, error)
	List(ctx context.Context, status ProcessingStatus, limit int) ([]ProcessingRecord, error)
}

type EventLog interface {
	Append(ctx context.Context, entry EventLogEntry) (string, error)
	SetOutcome(ctx context.Context, id string, outcome string) error
}

// StoreMode reports whether a store enforces deduplication.
type StoreMode string

const (
	StoreModeStrict   StoreMode = "strict"
	StoreModeDegraded StoreMode = "degraded"
)

type ModeReporter interface {
	Mode() StoreMode
}

type DetailResolver interface {
	ResolveByReference(ctx context.Context, referenceID string, propertyID string) (*ResolvedDetail, error)
}

type InvoiceMapper interface {
	MapToInvoice(event InboundEvent, detail *ResolvedDetail) InvoicePayload
}

type InvoiceSubmitter interface {
	SubmitInvoice(ctx context.Context, payload InvoicePayload) (json.RawMessage, error)
}

type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Invalidate(token string)
}

type TransportRequest struct {
	Method               string
	URL                  string
	Headers              map[string]string
	Query                map[string]string
	Body                 []byte
	Timeout              time.Duration
	MaxResponseBodyBytes int64
}

type TransportResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
	Metadata   map[string]any
}

type TransportAdapter interface {
	Kind() string
	Do(ctx context.Context, req TransportRequest) (TransportResponse, error)
}

type InboundRequest struct {
	Headers    map[string]string
	Body       []byte
	ReceivedAt time.Time
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}
