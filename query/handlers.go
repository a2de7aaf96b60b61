package query

import (
	"context"
	"strings"

	"github.com/goliatone/go-folio/core"
)

type GetRecordQuery struct {
	reader core.RecordReader
}

func NewGetRecordQuery(reader core.RecordReader) *GetRecordQuery {
	return &GetRecordQuery{reader: reader}
}

func (q *GetRecordQuery) Query(ctx context.Context, msg GetRecordMessage) (core.ProcessingRecord, error) {
	if q == nil || q.reader == nil {
		return core.ProcessingRecord{}, queryDependencyError("query: record reader is required")
	}
	if err := msg.Validate(); err != nil {
		return core.ProcessingRecord{}, err
	}
	return q.reader.Get(ctx, strings.TrimSpace(msg.EventID))
}

type ListRecordsQuery struct {
	reader core.RecordReader
}

func NewListRecordsQuery(reader core.RecordReader) *ListRecordsQuery {
	return &ListRecordsQuery{reader: reader}
}

func (q *ListRecordsQuery) Query(ctx context.Context, msg ListRecordsMessage) ([]core.ProcessingRecord, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: record reader is required")
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return q.reader.List(ctx, msg.status(), msg.Limit)
}
