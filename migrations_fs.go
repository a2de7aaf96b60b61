package folio

import (
	"embed"
	"io/fs"
)

// migrationsFS holds the SQL schema for both dialects. SQLite alternatives
// live under data/sql/migrations/sqlite.
//
//go:embed data/sql/migrations/*.sql data/sql/migrations/sqlite/*.sql
var migrationsFS embed.FS

func GetMigrationsFS() fs.FS {
	return migrationsFS
}
