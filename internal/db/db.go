// Package db records board, ESC and lidar data to a sqlite database.
package db

import (
	"database/sql"
	"embed"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/banshee-data/mausbridge/internal/timeutil"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// pragmas applied to every connection opened by NewDB.
var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA temp_store=MEMORY",
}

type DB struct {
	*sql.DB

	// Clock stamps recorded rows. Defaults to the wall clock.
	Clock timeutil.Clock
}

// NewDB opens (creating if needed) the database at path and migrates it to
// the latest schema.
func NewDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// Pragmas are per connection.
	sqlDB.SetMaxOpenConns(1)

	for _, p := range pragmas {
		if _, err := sqlDB.Exec(p); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}

	db := &DB{DB: sqlDB, Clock: timeutil.RealClock{}}
	if err := db.MigrateUp(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}
