package migrations

import (
	"fmt"
	"io/fs"
	"strings"

	folio "github.com/goliatone/go-folio"
)

// Migration tree dialects. Postgres files sit at the root of the embedded
// tree and the sqlite variants under sqlite/.
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

const migrationsDir = "data/sql/migrations"

// RegisterFunc receives the migration tree selected for a driver.
type RegisterFunc func(fsys fs.FS)

// DialectForDriver maps a database/sql driver name onto a migration dialect.
func DialectForDriver(driver string) string {
	switch strings.TrimSpace(strings.ToLower(driver)) {
	case "sqlite", "sqlite3":
		return DialectSQLite
	default:
		return DialectPostgres
	}
}

// Source returns the embedded migration tree for dialect. The tree must hold
// at least one *.up.sql file.
func Source(dialect string) (fs.FS, error) {
	base, err := fs.Sub(folio.GetMigrationsFS(), migrationsDir)
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve %s: %w", migrationsDir, err)
	}

	var fsys fs.FS
	switch dialect {
	case DialectPostgres:
		fsys = base
	case DialectSQLite:
		if fsys, err = fs.Sub(base, DialectSQLite); err != nil {
			return nil, fmt.Errorf("migrations: resolve sqlite tree: %w", err)
		}
	default:
		return nil, fmt.Errorf("migrations: unsupported dialect %q", dialect)
	}

	matches, err := fs.Glob(fsys, "*.up.sql")
	if err != nil {
		return nil, fmt.Errorf("migrations: glob %s tree: %w", dialect, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("migrations: %s tree has no *.up.sql files", dialect)
	}
	return fsys, nil
}

// Register hands the migration tree for driver to registerFn and returns the
// dialect it resolved.
func Register(driver string, registerFn RegisterFunc) (string, error) {
	dialect := DialectForDriver(driver)
	if registerFn == nil {
		return dialect, fmt.Errorf("migrations: register function is required")
	}
	fsys, err := Source(dialect)
	if err != nil {
		return dialect, err
	}
	registerFn(fsys)
	return dialect, nil
}
