package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-folio/core"
)

var (
	_ gocmd.Querier[GetRecordMessage, core.ProcessingRecord]     = (*GetRecordQuery)(nil)
	_ gocmd.Querier[ListRecordsMessage, []core.ProcessingRecord] = (*ListRecordsQuery)(nil)
)
