package sqlstore

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/goliatone/go-folio/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const processingRecordCacheKeyPrefix = "go-folio::processing_record::v1"

// CachedRecordStore serves record reads through a cache and drops the cached
// entry on every write for that event.
type CachedRecordStore struct {
	base  *ProcessingStore
	cache repositorycache.CacheService
}

func NewCachedRecordStore(base *ProcessingStore, cacheService repositorycache.CacheService) (*CachedRecordStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base processing store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: processing record cache service is required")
	}
	return &CachedRecordStore{base: base, cache: cacheService}, nil
}

// ProcessingRecordCacheKey returns go-folio::processing_record::v1::<event_id>
// with the id URL-path escaped.
func ProcessingRecordCacheKey(eventID string) string {
	return processingRecordCacheKeyPrefix + "::" + url.PathEscape(strings.TrimSpace(eventID))
}

func (*CachedRecordStore) Mode() core.StoreMode {
	return core.StoreModeStrict
}

func (s *CachedRecordStore) Claim(ctx context.Context, in core.ClaimInput) (core.ClaimResult, error) {
	result, err := s.base.Claim(ctx, in)
	if err != nil {
		return result, err
	}
	if result.Claimed {
		if err := s.invalidate(ctx, in.EventID); err != nil {
			return result, err
		}
	}
	return result, nil
}

func (s *CachedRecordStore) Record(
	ctx context.Context,
	eventID string,
	status core.ProcessingStatus,
	result json.RawMessage,
	errMessage string,
) error {
	if err := s.base.Record(ctx, eventID, status, result, errMessage); err != nil {
		return err
	}
	return s.invalidate(ctx, eventID)
}

func (s *CachedRecordStore) Reclaim(ctx context.Context, eventID string) (core.ProcessingRecord, bool, error) {
	record, reclaimed, err := s.base.Reclaim(ctx, eventID)
	if err != nil {
		return record, reclaimed, err
	}
	if reclaimed {
		if err := s.invalidate(ctx, eventID); err != nil {
			return record, reclaimed, err
		}
	}
	return record, reclaimed, nil
}

func (s *CachedRecordStore) Get(ctx context.Context, eventID string) (core.ProcessingRecord, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.ProcessingRecord{}, fmt.Errorf("sqlstore: cached record store is not configured")
	}
	record, err := repositorycache.GetOrFetch(ctx, s.cache, ProcessingRecordCacheKey(eventID), func(ctx context.Context) (core.ProcessingRecord, error) {
		return s.base.Get(ctx, eventID)
	})
	if err != nil {
		return core.ProcessingRecord{}, err
	}
	return cloneRecord(record), nil
}

func (s *CachedRecordStore) List(ctx context.Context, status core.ProcessingStatus, limit int) ([]core.ProcessingRecord, error) {
	return s.base.List(ctx, status, limit)
}

func (s *CachedRecordStore) Ping(ctx context.Context) error {
	return s.base.Ping(ctx)
}

func (s *CachedRecordStore) invalidate(ctx context.Context, eventID string) error {
	if err := s.cache.Delete(ctx, ProcessingRecordCacheKey(eventID)); err != nil {
		return core.NewStoreUnavailableError(err, "sqlstore: invalidate cached record", map[string]any{"event_id": eventID})
	}
	return nil
}

func cloneRecord(record core.ProcessingRecord) core.ProcessingRecord {
	cloned := record
	cloned.RawPayload = append(json.RawMessage(nil), record.RawPayload...)
	if record.DownstreamResult != nil {
		cloned.DownstreamResult = append(json.RawMessage(nil), record.DownstreamResult...)
	}
	if len(cloned.RawPayload) == 0 {
		cloned.RawPayload = nil
	}
	return cloned
}

var (
	_ core.ReclaimableStore = (*CachedRecordStore)(nil)
	_ core.RecordReader     = (*CachedRecordStore)(nil)
)
