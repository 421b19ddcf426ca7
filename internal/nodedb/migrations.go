package nodedb

import (
	"database/sql"
	"fmt"

	"latus/internal/logging"
)

// Migration defines a database schema migration.
type Migration struct {
	Table  string
	Column string
	Def    string
}

// pendingMigrations upgrades databases written by older builds whose events
// table is missing newer columns. New databases already have everything.
var pendingMigrations = []Migration{
	// v1 databases predate the mtime column (change detection used size only)
	{"events", "mtime_ns", "INTEGER"},
	// v1 databases predate the insertion timestamp
	{"events", "created_at", "DATETIME"},
}

// runMigrations applies column migrations for existing databases.
func runMigrations(db *sql.DB) error {
	applied := 0
	for _, m := range pendingMigrations {
		if !tableExists(db, m.Table) {
			continue
		}
		if columnExists(db, m.Table, m.Column) {
			continue
		}
		query := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", m.Table, m.Column, m.Def)
		if _, err := db.Exec(query); err != nil {
			// Column may already exist in a different form; don't fail.
			logging.Get(logging.CategoryStore).Warn("migration failed: %s.%s: %v", m.Table, m.Column, err)
			continue
		}
		logging.Store("migration applied: added %s.%s", m.Table, m.Column)
		applied++
	}
	if applied > 0 {
		logging.Store("schema migrations complete: applied=%d", applied)
	}
	return nil
}

// tableExists checks the sqlite master table.
func tableExists(db *sql.DB, table string) bool {
	var name string
	err := db.QueryRow(
		"SELECT name FROM sqlite_master WHERE type='table' AND name = ?", table).Scan(&name)
	return err == nil
}

// columnExists checks a table's columns using PRAGMA table_info.
func columnExists(db *sql.DB, table, column string) bool {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false
	}
	defer rows.Close()

	for rows.Next() {
		var cid, notnull, pk int
		var name, ctype string
		var dflt interface{}
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			continue
		}
		if name == column {
			return true
		}
	}
	return false
}
