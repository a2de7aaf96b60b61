package sqlstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-folio/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

const defaultListLimit = 50

// ProcessingStore is the strict idempotency store. Claims rely on the unique
// event_id and never read before writing.
type ProcessingStore struct {
	db   *bun.DB
	repo repository.Repository[*processingRecordRow]
	now  func() time.Time
}

func NewProcessingStore(db *bun.DB) (*ProcessingStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*processingRecordRow](db, processingRecordHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid processing record repository wiring: %w", err)
		}
	}
	return &ProcessingStore{
		db:   db,
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

func (*ProcessingStore) Mode() core.StoreMode {
	return core.StoreModeStrict
}

func (s *ProcessingStore) Claim(ctx context.Context, in core.ClaimInput) (core.ClaimResult, error) {
	if s == nil || s.db == nil {
		return core.ClaimResult{}, core.NewStoreUnavailableError(nil, "sqlstore: processing store is not configured", nil)
	}
	eventID := strings.TrimSpace(in.EventID)
	if eventID == "" {
		return core.ClaimResult{}, core.NewBadInputError("sqlstore: event id is required", nil)
	}

	now := s.now()
	row := &processingRecordRow{
		EventID:    eventID,
		PropertyID: strings.TrimSpace(in.PropertyID),
		RawPayload: rawString(in.RawPayload),
		Status:     string(core.ProcessingStatusReceived),
		Attempts:   1,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	res, err := s.db.NewInsert().
		Model(row).
		On("CONFLICT (event_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		if isUniqueViolation(err) {
			return core.ClaimResult{Claimed: false}, nil
		}
		return core.ClaimResult{}, core.NewStoreUnavailableError(err, "sqlstore: claim event", map[string]any{"event_id": eventID})
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return core.ClaimResult{}, core.NewStoreUnavailableError(err, "sqlstore: claim event rows affected", map[string]any{"event_id": eventID})
	}
	if affected == 0 {
		return core.ClaimResult{Claimed: false}, nil
	}
	return core.ClaimResult{Claimed: true, Record: row.toDomain()}, nil
}

// Record moves a received event to a terminal status. Repeating the status an
// event already holds is a no-op; any other change out of a terminal status is
// rejected.
func (s *ProcessingStore) Record(
	ctx context.Context,
	eventID string,
	status core.ProcessingStatus,
	result json.RawMessage,
	errMessage string,
) error {
	if s == nil || s.db == nil {
		return core.NewStoreUnavailableError(nil, "sqlstore: processing store is not configured", nil)
	}
	eventID = strings.TrimSpace(eventID)
	if !status.Terminal() {
		return core.NewBadInputError(
			fmt.Sprintf("sqlstore: cannot record non-terminal status %q", status),
			map[string]any{"event_id": eventID},
		)
	}

	res, err := s.db.NewUpdate().
		Model((*processingRecordRow)(nil)).
		Set("status = ?", string(status)).
		Set("downstream_result = ?", nullableRaw(result)).
		Set("last_error = ?", strings.TrimSpace(errMessage)).
		Set("updated_at = ?", s.now()).
		Where("event_id = ?", eventID).
		Where("status = ?", string(core.ProcessingStatusReceived)).
		Exec(ctx)
	if err != nil {
		return core.NewStoreUnavailableError(err, "sqlstore: record event status", map[string]any{"event_id": eventID})
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return core.NewStoreUnavailableError(err, "sqlstore: record event rows affected", map[string]any{"event_id": eventID})
	}
	if affected > 0 {
		return nil
	}

	current, err := s.Get(ctx, eventID)
	if err != nil {
		return err
	}
	if current.Status == status {
		return nil
	}
	return core.NewInvalidTransitionError(
		fmt.Sprintf("sqlstore: event %q is already %s", eventID, current.Status),
		map[string]any{"event_id": eventID, "from": string(current.Status), "to": string(status)},
	)
}

// Reclaim moves a failed event back to received so it can be processed again.
// It reports false when the event is not in the failed state.
func (s *ProcessingStore) Reclaim(ctx context.Context, eventID string) (core.ProcessingRecord, bool, error) {
	if s == nil || s.db == nil {
		return core.ProcessingRecord{}, false, core.NewStoreUnavailableError(nil, "sqlstore: processing store is not configured", nil)
	}
	eventID = strings.TrimSpace(eventID)
	res, err := s.db.NewUpdate().
		Model((*processingRecordRow)(nil)).
		Set("status = ?", string(core.ProcessingStatusReceived)).
		Set("attempts = attempts + 1").
		Set("last_error = ?", "").
		Set("updated_at = ?", s.now()).
		Where("event_id = ?", eventID).
		Where("status = ?", string(core.ProcessingStatusFailed)).
		Exec(ctx)
	if err != nil {
		return core.ProcessingRecord{}, false, core.NewStoreUnavailableError(err, "sqlstore: reclaim event", map[string]any{"event_id": eventID})
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return core.ProcessingRecord{}, false, core.NewStoreUnavailableError(err, "sqlstore: reclaim rows affected", map[string]any{"event_id": eventID})
	}
	record, err := s.Get(ctx, eventID)
	if err != nil {
		return core.ProcessingRecord{}, false, err
	}
	return record, affected > 0, nil
}

func (s *ProcessingStore) Get(ctx context.Context, eventID string) (core.ProcessingRecord, error) {
	if s == nil || s.repo == nil {
		return core.ProcessingRecord{}, core.NewStoreUnavailableError(nil, "sqlstore: processing store is not configured", nil)
	}
	eventID = strings.TrimSpace(eventID)
	rows, _, err := s.repo.List(ctx,
		repository.SelectBy("event_id", "=", eventID),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return core.ProcessingRecord{}, core.NewStoreUnavailableError(err, "sqlstore: get processing record", map[string]any{"event_id": eventID})
	}
	if len(rows) == 0 || rows[0] == nil {
		return core.ProcessingRecord{}, core.NewNotFoundError(
			fmt.Sprintf("sqlstore: processing record %q not found", eventID),
			map[string]any{"event_id": eventID},
		)
	}
	return rows[0].toDomain(), nil
}

func (s *ProcessingStore) List(ctx context.Context, status core.ProcessingStatus, limit int) ([]core.ProcessingRecord, error) {
	if s == nil || s.repo == nil {
		return nil, core.NewStoreUnavailableError(nil, "sqlstore: processing store is not configured", nil)
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	selectors := []repository.SelectCriteria{
		repository.OrderBy("updated_at DESC"),
		repository.SelectPaginate(limit, 0),
	}
	if status != "" {
		selectors = append(selectors, repository.SelectBy("status", "=", string(status)))
	}
	rows, _, err := s.repo.List(ctx, selectors...)
	if err != nil {
		return nil, core.NewStoreUnavailableError(err, "sqlstore: list processing records", nil)
	}
	out := make([]core.ProcessingRecord, 0, len(rows))
	for _, row := range rows {
		if row == nil {
			continue
		}
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (s *ProcessingStore) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return core.NewStoreUnavailableError(nil, "sqlstore: processing store is not configured", nil)
	}
	if err := s.db.PingContext(ctx); err != nil {
		return core.NewStoreUnavailableError(err, "sqlstore: ping", nil)
	}
	return nil
}

func (r *processingRecordRow) toDomain() core.ProcessingRecord {
	record := core.ProcessingRecord{
		EventID:    r.EventID,
		PropertyID: r.PropertyID,
		Status:     core.ProcessingStatus(r.Status),
		Error:      r.LastError,
		Attempts:   r.Attempts,
		CreatedAt:  r.CreatedAt.UTC(),
		UpdatedAt:  r.UpdatedAt.UTC(),
	}
	if r.RawPayload != "" {
		record.RawPayload = json.RawMessage(r.RawPayload)
	}
	if r.DownstreamResult != nil && *r.DownstreamResult != "" {
		record.DownstreamResult = json.RawMessage(*r.DownstreamResult)
	}
	return record
}

func rawString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	return string(raw)
}

func nullableRaw(raw json.RawMessage) *string {
	if len(raw) == 0 {
		return nil
	}
	value := string(raw)
	return &value
}

func isUniqueViolation(err error) bool {
	message := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(message, "unique constraint failed") ||
		strings.Contains(message, "duplicate key value violates unique constraint")
}

var (
	_ core.ReclaimableStore = (*ProcessingStore)(nil)
	_ core.RecordReader     = (*ProcessingStore)(nil)
	_ core.ModeReporter     = (*ProcessingStore)(nil)
)
