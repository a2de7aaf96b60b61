package sqlstore

import (
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

// processingRecordHandlers key rows by event id, which is not a uuid, so the
// repository is only used for reads and lookups go through the event_id column.
func processingRecordHandlers() repository.ModelHandlers[*processingRecordRow] {
	return repository.ModelHandlers[*processingRecordRow]{
		NewRecord: func() *processingRecordRow {
			return &processingRecordRow{}
		},
		GetID: func(record *processingRecordRow) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.EventID)
		},
		SetID: func(*processingRecordRow, uuid.UUID) {},
		GetIdentifier: func() string {
			return "event_id"
		},
		GetIdentifierValue: func(record *processingRecordRow) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.EventID)
		},
	}
}

func webhookEventHandlers() repository.ModelHandlers[*webhookEventRow] {
	return repository.ModelHandlers[*webhookEventRow]{
		NewRecord: func() *webhookEventRow {
			return &webhookEventRow{}
		},
		GetID: func(record *webhookEventRow) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *webhookEventRow, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *webhookEventRow) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ID)
		},
	}
}

func parseUUID(value string) uuid.UUID {
	parsed, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return uuid.Nil
	}
	return parsed
}
