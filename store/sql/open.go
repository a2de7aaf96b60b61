package sqlstore

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-folio/core"
	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// Open connects to the configured database through go-persistence-bun.
// Migrations are registered by the caller before Migrate is invoked.
func Open(cfg core.StoreConfig) (*persistence.Client, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, core.NewConfigurationError("sqlstore: store dsn is required", nil)
	}
	driver := strings.TrimSpace(cfg.Driver)
	if driver == "" {
		driver = DriverPostgres
	}
	dialect, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}
	sqlDB, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, core.NewStoreUnavailableError(err, "sqlstore: open database", map[string]any{"driver": driver})
	}
	if driver == DriverSQLite {
		sqlDB.SetMaxOpenConns(1)
	}
	cfg.Driver = driver
	client, err := persistence.New(cfg, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, core.NewStoreUnavailableError(err, "sqlstore: create persistence client", map[string]any{"driver": driver})
	}
	return client, nil
}

func dialectFor(driver string) (schema.Dialect, error) {
	switch driver {
	case DriverPostgres:
		return pgdialect.New(), nil
	case DriverSQLite:
		return sqlitedialect.New(), nil
	default:
		return nil, core.NewConfigurationError(
			fmt.Sprintf("sqlstore: unsupported driver %q", driver),
			map[string]any{"driver": driver},
		)
	}
}

// Stores bundles the SQL-backed components built over one database.
type Stores struct {
	Records  *ProcessingStore
	Cached   *CachedRecordStore
	EventLog *EventLogStore
}

// NewStores builds the processing and event log stores. A positive cacheTTL
// wraps record reads in a go-repository-cache service.
func NewStores(persistenceClient any, cacheTTL time.Duration) (*Stores, error) {
	db, err := resolveBunDB(persistenceClient)
	if err != nil {
		return nil, err
	}
	records, err := NewProcessingStore(db)
	if err != nil {
		return nil, err
	}
	eventLog, err := NewEventLogStore(db)
	if err != nil {
		return nil, err
	}
	stores := &Stores{Records: records, EventLog: eventLog}
	if cacheTTL > 0 {
		config := repositorycache.DefaultConfig()
		config.TTL = cacheTTL
		cacheService, err := repositorycache.NewCacheService(config)
		if err != nil {
			return nil, fmt.Errorf("sqlstore: create record cache: %w", err)
		}
		cached, err := NewCachedRecordStore(records, cacheService)
		if err != nil {
			return nil, err
		}
		stores.Cached = cached
	}
	return stores, nil
}

// Idempotency returns the cached store when configured, else the plain one.
func (s *Stores) Idempotency() core.ReclaimableStore {
	if s.Cached != nil {
		return s.Cached
	}
	return s.Records
}

func (s *Stores) Reader() core.RecordReader {
	if s.Cached != nil {
		return s.Cached
	}
	return s.Records
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
