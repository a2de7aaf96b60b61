package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-folio/core"
	"github.com/google/uuid"
)

type Store struct {
	mu      sync.Mutex
	records map[string]core.ProcessingRecord
	events  []core.EventLogEntry
	now     func() time.Time
}

func NewStore() *Store {
	return &Store{
		records: map[string]core.ProcessingRecord{},
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (*Store) Mode() core.StoreMode {
	return core.StoreModeStrict
}

func (s *Store) Claim(_ context.Context, in core.ClaimInput) (core.ClaimResult, error) {
	eventID := strings.TrimSpace(in.EventID)
	if eventID == "" {
		return core.ClaimResult{}, core.NewBadInputError("memory: event id is required", nil)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[eventID]; exists {
		return core.ClaimResult{Claimed: false}, nil
	}
	now := s.now()
	record := core.ProcessingRecord{
		EventID:    eventID,
		PropertyID: strings.TrimSpace(in.PropertyID),
		RawPayload: cloneRaw(in.RawPayload),
		Status:     core.ProcessingStatusReceived,
		Attempts:   1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.records[eventID] = record
	return core.ClaimResult{Claimed: true, Record: cloneRecord(record)}, nil
}

func (s *Store) Record(
	_ context.Context,
	eventID string,
	status core.ProcessingStatus,
	result json.RawMessage,
	errMessage string,
) error {
	eventID = strings.TrimSpace(eventID)
	if !status.Terminal() {
		return core.NewBadInputError(fmt.Sprintf("memory: cannot record non-terminal status %q", status), nil)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[eventID]
	if !ok {
		return core.NewNotFoundError(fmt.Sprintf("memory: processing record %q not found", eventID), nil)
	}
	switch record.Status {
	case core.ProcessingStatusReceived:
	case status:
		return nil
	default:
		return core.NewInvalidTransitionError(
			fmt.Sprintf("memory: event %q is already %s", eventID, record.Status),
			map[string]any{"event_id": eventID, "from": string(record.Status), "to": string(status)},
		)
	}
	record.Status = status
	record.DownstreamResult = cloneRaw(result)
	record.Error = strings.TrimSpace(errMessage)
	record.UpdatedAt = s.now()
	s.records[eventID] = record
	return nil
}

func (s *Store) Reclaim(_ context.Context, eventID string) (core.ProcessingRecord, bool, error) {
	eventID = strings.TrimSpace(eventID)
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[eventID]
	if !ok {
		return core.ProcessingRecord{}, false, core.NewNotFoundError(fmt.Sprintf("memory: processing record %q not found", eventID), nil)
	}
	if record.Status != core.ProcessingStatusFailed {
		return cloneRecord(record), false, nil
	}
	record.Status = core.ProcessingStatusReceived
	record.Error = ""
	record.Attempts++
	record.UpdatedAt = s.now()
	s.records[eventID] = record
	return cloneRecord(record), true, nil
}

func (s *Store) Get(_ context.Context, eventID string) (core.ProcessingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[strings.TrimSpace(eventID)]
	if !ok {
		return core.ProcessingRecord{}, core.NewNotFoundError(fmt.Sprintf("memory: processing record %q not found", eventID), nil)
	}
	return cloneRecord(record), nil
}

func (s *Store) List(_ context.Context, status core.ProcessingStatus, limit int) ([]core.ProcessingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.ProcessingRecord, 0, len(s.records))
	for _, record := range s.records {
		if status != "" && record.Status != status {
			continue
		}
		out = append(out, cloneRecord(record))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].EventID < out[j].EventID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) Append(_ context.Context, entry core.EventLogEntry) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if strings.TrimSpace(entry.ID) == "" {
		entry.ID = uuid.NewString()
	}
	if entry.ReceivedAt.IsZero() {
		entry.ReceivedAt = s.now()
	}
	if entry.Outcome == "" {
		entry.Outcome = core.EventOutcomeReceived
	}
	entry.RawPayload = cloneRaw(entry.RawPayload)
	s.events = append(s.events, entry)
	return entry.ID, nil
}

func (s *Store) SetOutcome(_ context.Context, id string, outcome string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.events {
		if s.events[i].ID == id {
			s.events[i].Outcome = outcome
			return nil
		}
	}
	return core.NewNotFoundError(fmt.Sprintf("memory: webhook event %q not found", id), nil)
}

// Events returns a copy of the delivery log in append order.
func (s *Store) Events() []core.EventLogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.EventLogEntry(nil), s.events...)
}

func (*Store) Ping(context.Context) error {
	return nil
}

func cloneRecord(record core.ProcessingRecord) core.ProcessingRecord {
	record.RawPayload = cloneRaw(record.RawPayload)
	record.DownstreamResult = cloneRaw(record.DownstreamResult)
	return record
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	return append(json.RawMessage(nil), raw...)
}

var (
	_ core.ReclaimableStore = (*Store)(nil)
	_ core.RecordReader     = (*Store)(nil)
	_ core.EventLog         = (*Store)(nil)
	_ core.ModeReporter     = (*Store)(nil)
)
