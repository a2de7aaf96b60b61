package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type processingRecordRow struct {
	bun.BaseModel `bun:"table:processing_records,alias:pr"`

	EventID          string    `bun:"event_id,pk"`
	PropertyID       string    `bun:"property_id,notnull"`
	RawPayload       string    `bun:"raw_payload,notnull"`
	Status           string    `bun:"status,notnull"`
	DownstreamResult *string   `bun:"downstream_result"`
	LastError        string    `bun:"last_error,notnull"`
	Attempts         int       `bun:"attempts,notnull"`
	CreatedAt        time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt        time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type webhookEventRow struct {
	bun.BaseModel `bun:"table:webhook_events,alias:we"`

	ID          string    `bun:"id,pk"`
	EventID     string    `bun:"event_id,notnull"`
	PropertyID  string    `bun:"property_id,notnull"`
	Synthesized bool      `bun:"synthesized,notnull"`
	Headers     string    `bun:"headers,notnull"`
	RawPayload  string    `bun:"raw_payload,notnull"`
	Outcome     string    `bun:"outcome,notnull"`
	ReceivedAt  time.Time `bun:"received_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt   time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
