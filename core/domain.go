package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type ProcessingStatus string

const (
	ProcessingStatusReceived ProcessingStatus = "received"
	ProcessingStatusSent     ProcessingStatus = "sent"
	ProcessingStatusFailed   ProcessingStatus = "failed"
)

func (s ProcessingStatus) Terminal() bool {
	return s == ProcessingStatusSent || s == ProcessingStatusFailed
}

func ParseProcessingStatus(value string) (ProcessingStatus, error) {
	switch ProcessingStatus(strings.TrimSpace(strings.ToLower(value))) {
	case ProcessingStatusReceived:
		return ProcessingStatusReceived, nil
	case ProcessingStatusSent:
		return ProcessingStatusSent, nil
	case ProcessingStatusFailed:
		return ProcessingStatusFailed, nil
	default:
		return "", NewBadInputError(
			fmt.Sprintf("core: unknown processing status %q", value),
			map[string]any{"status": value},
		)
	}
}

// PipelineState names the orchestrator state an event reached.
type PipelineState string

const (
	PipelineStateClaiming   PipelineState = "claiming"
	PipelineStateResolving  PipelineState = "resolving"
	PipelineStateMapping    PipelineState = "mapping"
	PipelineStateSubmitting PipelineState = "submitting"
	PipelineStateRecording  PipelineState = "recording"
	PipelineStateDone       PipelineState = "done"
	PipelineStateRejected   PipelineState = "rejected"
	PipelineStateFailed     PipelineState = "failed"
)

// SynthesizedEventIDPrefix marks ids generated for events that arrived
// without a transaction id. Such events cannot be deduplicated.
const SynthesizedEventIDPrefix = "noid-"

type InboundEvent struct {
	EventID             string
	Synthesized         bool
	PropertyID          string
	ReferenceID         string
	TransactionDateTime string
	ServiceDate         string
	Amount              *float64
	GuestName           string
	ReceivedAt          time.Time
	RawPayload          json.RawMessage
}

type ProcessingRecord struct {
	EventID          string           `json:"event_id"`
	PropertyID       string           `json:"property_id,omitempty"`
	RawPayload       json.RawMessage  `json:"raw_payload,omitempty"`
	Status           ProcessingStatus `json:"status"`
	DownstreamResult json.RawMessage  `json:"downstream_result,omitempty"`
	Error            string           `json:"error,omitempty"`
	Attempts         int              `json:"attempts"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

type GuestDetail struct {
	Name  string
	TaxID string
	Email string
}

type ReservationDetail struct {
	ID        string
	Status    string
	GuestName string
	Email     string
	CheckIn   string
	CheckOut  string
	Raw       json.RawMessage
}

// ResolvedDetail is the authoritative transaction data fetched from the
// property-management platform.
type ResolvedDetail struct {
	TransactionID   string
	PropertyID      string
	Amount          *float64
	Tax             *float64
	Currency        string
	TransactionDate string
	Guest           GuestDetail
	Reservation     *ReservationDetail
	Raw             json.RawMessage
}

type InvoiceCustomer struct {
	Name  string  `json:"name"`
	VAT   *string `json:"vat"`
	Email *string `json:"email"`
}

type InvoiceItem struct {
	Description string  `json:"description"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	Tax         float64 `json:"tax"`
}

// InvoicePayload is the accounting-service document built from an event.
type InvoicePayload struct {
	Date                string          `json:"date"`
	Customer            InvoiceCustomer `json:"customer"`
	Items               []InvoiceItem   `json:"items"`
	Total               float64         `json:"total"`
	Origin              string          `json:"origin"`
	OriginTransactionID string          `json:"origin_transaction_id"`
}

type Credential struct {
	Token     string
	ExpiresAt time.Time
}

func (c Credential) ValidAt(now time.Time, margin time.Duration) bool {
	if strings.TrimSpace(c.Token) == "" || c.ExpiresAt.IsZero() {
		return false
	}
	return now.Before(c.ExpiresAt.Add(-margin))
}

type ClaimInput struct {
	EventID    string
	PropertyID string
	RawPayload json.RawMessage
}

type ClaimResult struct {
	Claimed bool
	Record  ProcessingRecord
}

type EventLogEntry struct {
	ID          string
	EventID     string
	PropertyID  string
	Synthesized bool
	Headers     map[string]string
	RawPayload  json.RawMessage
	Outcome     string
	ReceivedAt  time.Time
}

const (
	EventOutcomeReceived  = "received"
	EventOutcomeDuplicate = "duplicate"
	EventOutcomeSent      = "sent"
	EventOutcomeNoop      = "noop"
	EventOutcomeFailed    = "failed"
)

// Outcome summarizes one pass of the webhook pipeline.
type Outcome struct {
	EventID   string           `json:"event_id"`
	State     PipelineState    `json:"state"`
	Status    ProcessingStatus `json:"status,omitempty"`
	Duplicate bool             `json:"duplicate,omitempty"`
	Submitted bool             `json:"submitted,omitempty"`
	Result    json.RawMessage  `json:"result,omitempty"`
}
