package memory

import (
	"context"
	"encoding/json"

	"github.com/goliatone/go-folio/core"
	glog "github.com/goliatone/go-logger/glog"
)

// DegradedStore runs without persistence. Every claim succeeds, so events are
// not deduplicated, and recorded outcomes are only logged.
type DegradedStore struct {
	logger glog.Logger
}

func NewDegradedStore(logger glog.Logger) *DegradedStore {
	return &DegradedStore{logger: glog.Ensure(logger)}
}

func (*DegradedStore) Mode() core.StoreMode {
	return core.StoreModeDegraded
}

func (s *DegradedStore) Claim(_ context.Context, in core.ClaimInput) (core.ClaimResult, error) {
	s.logger.Warn("memory: degraded mode claim, deduplication disabled", "event_id", in.EventID)
	return core.ClaimResult{
		Claimed: true,
		Record: core.ProcessingRecord{
			EventID:    in.EventID,
			PropertyID: in.PropertyID,
			RawPayload: cloneRaw(in.RawPayload),
			Status:     core.ProcessingStatusReceived,
			Attempts:   1,
		},
	}, nil
}

func (s *DegradedStore) Record(
	_ context.Context,
	eventID string,
	status core.ProcessingStatus,
	result json.RawMessage,
	errMessage string,
) error {
	s.logger.Warn("memory: degraded mode record not persisted",
		"event_id", eventID,
		"status", string(status),
		"result", string(result),
		"error", errMessage,
	)
	return nil
}

func (*DegradedStore) Reclaim(_ context.Context, eventID string) (core.ProcessingRecord, bool, error) {
	return core.ProcessingRecord{}, false, core.NewUnsupportedError(
		"memory: replay is unavailable in degraded mode",
		map[string]any{"event_id": eventID},
	)
}

func (*DegradedStore) Get(_ context.Context, eventID string) (core.ProcessingRecord, error) {
	return core.ProcessingRecord{}, core.NewUnsupportedError(
		"memory: records are not kept in degraded mode",
		map[string]any{"event_id": eventID},
	)
}

func (*DegradedStore) List(context.Context, core.ProcessingStatus, int) ([]core.ProcessingRecord, error) {
	return nil, core.NewUnsupportedError("memory: records are not kept in degraded mode", nil)
}

func (*DegradedStore) Append(context.Context, core.EventLogEntry) (string, error) {
	return "", nil
}

func (*DegradedStore) SetOutcome(context.Context, string, string) error {
	return nil
}

func (*DegradedStore) Ping(context.Context) error {
	return nil
}

var (
	_ core.ReclaimableStore = (*DegradedStore)(nil)
	_ core.RecordReader     = (*DegradedStore)(nil)
	_ core.EventLog         = (*DegradedStore)(nil)
	_ core.ModeReporter     = (*DegradedStore)(nil)
)
