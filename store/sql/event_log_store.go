package sqlstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-folio/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// EventLogStore keeps every authenticated delivery verbatim, duplicates
// included, so deliveries can be audited and replayed.
type EventLogStore struct {
	db   *bun.DB
	repo repository.Repository[*webhookEventRow]
	now  func() time.Time
}

func NewEventLogStore(db *bun.DB) (*EventLogStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*webhookEventRow](db, webhookEventHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid webhook event repository wiring: %w", err)
		}
	}
	return &EventLogStore{
		db:   db,
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *EventLogStore) Append(ctx context.Context, entry core.EventLogEntry) (string, error) {
	if s == nil || s.repo == nil {
		return "", core.NewStoreUnavailableError(nil, "sqlstore: event log store is not configured", nil)
	}
	headers, err := json.Marshal(entry.Headers)
	if err != nil {
		return "", core.WrapBadInputError(err, "sqlstore: encode delivery headers", nil)
	}
	receivedAt := entry.ReceivedAt.UTC()
	if entry.ReceivedAt.IsZero() {
		receivedAt = s.now()
	}
	id := strings.TrimSpace(entry.ID)
	if id == "" {
		id = uuid.NewString()
	}
	outcome := strings.TrimSpace(entry.Outcome)
	if outcome == "" {
		outcome = core.EventOutcomeReceived
	}
	row := &webhookEventRow{
		ID:          id,
		EventID:     strings.TrimSpace(entry.EventID),
		PropertyID:  strings.TrimSpace(entry.PropertyID),
		Synthesized: entry.Synthesized,
		Headers:     string(headers),
		RawPayload:  rawString(entry.RawPayload),
		Outcome:     outcome,
		ReceivedAt:  receivedAt,
		UpdatedAt:   receivedAt,
	}
	if _, err := s.repo.Create(ctx, row); err != nil {
		return "", core.NewStoreUnavailableError(err, "sqlstore: append webhook event", map[string]any{"event_id": row.EventID})
	}
	return id, nil
}

func (s *EventLogStore) SetOutcome(ctx context.Context, id string, outcome string) error {
	if s == nil || s.db == nil {
		return core.NewStoreUnavailableError(nil, "sqlstore: event log store is not configured", nil)
	}
	_, err := s.db.NewUpdate().
		Model((*webhookEventRow)(nil)).
		Set("outcome = ?", strings.TrimSpace(outcome)).
		Set("updated_at = ?", s.now()).
		Where("id = ?", strings.TrimSpace(id)).
		Exec(ctx)
	if err != nil {
		return core.NewStoreUnavailableError(err, "sqlstore: set webhook event outcome", map[string]any{"id": id})
	}
	return nil
}

// ListByEvent returns the deliveries recorded for an event id, oldest first.
func (s *EventLogStore) ListByEvent(ctx context.Context, eventID string) ([]core.EventLogEntry, error) {
	if s == nil || s.repo == nil {
		return nil, core.NewStoreUnavailableError(nil, "sqlstore: event log store is not configured", nil)
	}
	rows, _, err := s.repo.List(ctx,
		repository.SelectBy("event_id", "=", strings.TrimSpace(eventID)),
		repository.OrderBy("received_at ASC"),
	)
	if err != nil {
		return nil, core.NewStoreUnavailableError(err, "sqlstore: list webhook events", map[string]any{"event_id": eventID})
	}
	out := make([]core.EventLogEntry, 0, len(rows))
	for _, row := range rows {
		if row == nil {
			continue
		}
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r *webhookEventRow) toDomain() core.EventLogEntry {
	entry := core.EventLogEntry{
		ID:          r.ID,
		EventID:     r.EventID,
		PropertyID:  r.PropertyID,
		Synthesized: r.Synthesized,
		Headers:     map[string]string{},
		Outcome:     r.Outcome,
		ReceivedAt:  r.ReceivedAt.UTC(),
	}
	if r.Headers != "" {
		_ = json.Unmarshal([]byte(r.Headers), &entry.Headers)
	}
	if r.RawPayload != "" {
		entry.RawPayload = json.RawMessage(r.RawPayload)
	}
	return entry
}

var _ core.EventLog = (*EventLogStore)(nil)
