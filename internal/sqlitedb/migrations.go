package sqlitedb

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sort"
)

// Migration represents a schema migration step.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// Schema is an ordered set of migrations for one database file.
type Schema struct {
	// Marker names the table created by migration 1. A database holding it
	// without any recorded versions is treated as already at version 1.
	Marker     string
	Migrations []Migration
}

// Latest returns the highest version in the schema.
func (s Schema) Latest() int {
	latest := 0
	for _, m := range s.Migrations {
		if m.Version > latest {
			latest = m.Version
		}
	}
	return latest
}

// MigrationStatus reports the current and available migration versions.
type MigrationStatus struct {
	CurrentVersion   int             `json:"current_version"`
	AvailableVersion int             `json:"available_version"`
	Pending          []MigrationInfo `json:"pending"`
}

// MigrationInfo describes a single migration.
type MigrationInfo struct {
	Version     int    `json:"version"`
	Description string `json:"description"`
}

const migrationsTableSQL = `
CREATE TABLE IF NOT EXISTS schema_migrations (
  version INTEGER PRIMARY KEY,
  applied_at TEXT NOT NULL
);
`

// ensureMigrationsTable creates the schema_migrations table if it doesn't exist.
func ensureMigrationsTable(db *sql.DB) error {
	_, err := db.Exec(migrationsTableSQL)
	return err
}

// CurrentVersion returns the highest applied migration version, or 0 if none.
func CurrentVersion(db *sql.DB) (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, err
	}
	return version, nil
}

// detectPreMigrationDB checks if the first migration's table exists but no
// migrations have been recorded. Such a database was created by hand or by a
// build that predates the migration framework.
func detectPreMigrationDB(db *sql.DB, marker string) (bool, error) {
	if marker == "" {
		return false, nil
	}
	var tableExists int
	err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", marker).Scan(&tableExists)
	if err != nil {
		return false, err
	}
	if tableExists == 0 {
		return false, nil
	}

	var migrationsExist int
	err = db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_migrations'").Scan(&migrationsExist)
	if err != nil {
		return false, err
	}
	if migrationsExist == 0 {
		return true, nil
	}

	// Table exists but may be empty (e.g. created but no versions recorded).
	var count int
	err = db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count)
	if err != nil {
		return false, err
	}
	return count == 0, nil
}

// RunMigrations applies all pending migrations in order.
func RunMigrations(db *sql.DB, schema Schema) error {
	// Detect pre-migration databases BEFORE creating the migrations table.
	preMigration, err := detectPreMigrationDB(db, schema.Marker)
	if err != nil {
		return fmt.Errorf("detect pre-migration db: %w", err)
	}

	if err := ensureMigrationsTable(db); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	if preMigration {
		if _, err := db.Exec("INSERT OR IGNORE INTO schema_migrations (version, applied_at) VALUES (?, datetime('now'))", 1); err != nil {
			return fmt.Errorf("stamp pre-migration db: %w", err)
		}
	}

	current, err := CurrentVersion(db)
	if err != nil {
		return fmt.Errorf("get current version: %w", err)
	}

	for _, m := range sortedMigrations(schema.Migrations) {
		if m.Version <= current {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_migrations (version, applied_at) VALUES (?, datetime('now'))", m.Version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// MigrationPlan returns the current migration status without applying anything.
func MigrationPlan(db *sql.DB, schema Schema) (*MigrationStatus, error) {
	preMigration, err := detectPreMigrationDB(db, schema.Marker)
	if err != nil {
		return nil, err
	}

	if err := ensureMigrationsTable(db); err != nil {
		return nil, err
	}

	current, err := CurrentVersion(db)
	if err != nil {
		return nil, err
	}

	// If pre-migration DB, treat as version 1 for planning purposes.
	effective := current
	if preMigration && effective == 0 {
		effective = 1
	}

	sorted := sortedMigrations(schema.Migrations)
	available := schema.Latest()

	return &MigrationStatus{
		CurrentVersion:   effective,
		AvailableVersion: available,
		Pending:          pendingAfter(sorted, effective),
	}, nil
}

func sortedMigrations(migrations []Migration) []Migration {
	sorted := make([]Migration, len(migrations))
	copy(sorted, migrations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Version < sorted[j].Version })
	return sorted
}

// Inspect reports the migration status of the database at path without
// applying anything. A missing file reports version 0.
func Inspect(path string, schema Schema) (*MigrationStatus, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return &MigrationStatus{
			AvailableVersion: schema.Latest(),
			Pending:          pendingAfter(sortedMigrations(schema.Migrations), 0),
		}, nil
	}
	db, err := OpenRaw(path)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return MigrationPlan(db, schema)
}

func pendingAfter(sorted []Migration, version int) []MigrationInfo {
	var pending []MigrationInfo
	for _, m := range sorted {
		if m.Version > version {
			pending = append(pending, MigrationInfo{Version: m.Version, Description: m.Description})
		}
	}
	return pending
}
