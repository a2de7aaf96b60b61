package query

import (
	"strings"

	"github.com/goliatone/go-folio/core"
)

const (
	TypeGetRecord   = "folio.query.record.get"
	TypeListRecords = "folio.query.record.list"

	MaxListLimit = 500
)

type GetRecordMessage struct {
	EventID string
}

func (GetRecordMessage) Type() string { return TypeGetRecord }

func (m GetRecordMessage) Validate() error {
	if strings.TrimSpace(m.EventID) == "" {
		return queryValidationError("event_id", "event id is required")
	}
	return nil
}

// ListRecordsMessage filters by status when Status is set. A zero Limit uses
// the store default.
type ListRecordsMessage struct {
	Status string
	Limit  int
}

func (ListRecordsMessage) Type() string { return TypeListRecords }

func (m ListRecordsMessage) Validate() error {
	if status := strings.TrimSpace(m.Status); status != "" {
		if _, err := core.ParseProcessingStatus(status); err != nil {
			return queryValidationError("status", "status must be received, sent or failed")
		}
	}
	if m.Limit < 0 {
		return queryValidationError("limit", "limit must be >= 0")
	}
	if m.Limit > MaxListLimit {
		return queryValidationError("limit", "limit must be <= 500")
	}
	return nil
}

func (m ListRecordsMessage) status() core.ProcessingStatus {
	status, err := core.ParseProcessingStatus(m.Status)
	if err != nil {
		return ""
	}
	return status
}
