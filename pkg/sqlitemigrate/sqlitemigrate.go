// Package sqlitemigrate applies embedded, ordered SQL migrations against
// a modernc.org/sqlite-backed *sql.DB.
//
// The teacher (pkg/database/client.go) runs its postgres migrations
// through golang-migrate's iofs source and postgres driver. golang-migrate
// ships an equivalent sqlite3 driver, but that driver brings in
// mattn/go-sqlite3 (cgo) to back some of its instance-introspection paths
// — a dependency that conflicts with this module's pure-Go
// modernc.org/sqlite choice. This package keeps golang-migrate's actual
// bookkeeping idea (a schema_migrations table recording which numbered
// files have already run, applied inside one transaction per file) without
// the cgo-tied driver.
package sqlitemigrate

import (
	stdsql "database/sql"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

const tableDDL = `CREATE TABLE IF NOT EXISTS schema_migrations (version TEXT PRIMARY KEY, applied_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now')))`

// Up applies every ".up.sql" file under dir in filename order that is not
// already recorded in schema_migrations, each inside its own transaction.
func Up(db *stdsql.DB, migrations fs.FS, dir string) error {
	if _, err := db.Exec(tableDDL); err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	entries, err := fs.ReadDir(migrations, dir)
	if err != nil {
		return fmt.Errorf("read migrations directory %q: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".up.sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, name := range files {
		version := strings.TrimSuffix(name, ".up.sql")

		var applied int
		if err := db.QueryRow(`SELECT COUNT(*) FROM schema_migrations WHERE version = ?`, version).Scan(&applied); err != nil {
			return fmt.Errorf("check migration %s applied: %w", version, err)
		}
		if applied > 0 {
			continue
		}

		sqlBytes, err := fs.ReadFile(migrations, dir+"/"+name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %s: %w", version, err)
		}
		if _, err := tx.Exec(string(sqlBytes)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %s: %w", version, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations (version) VALUES (?)`, version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", version, err)
		}
	}

	return nil
}
