package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"time"

	"mproc/internal/sqlitedb"
)

const metadataFileName = "mproc.db"

// Store wraps the metadata SQLite database. The handle opens on first use.
type Store struct {
	db *sqlitedb.Lazy
}

// Open prepares the metadata store at path. Nothing touches disk until the
// first read or write.
func Open(path string) *Store {
	return &Store{db: sqlitedb.NewLazy(path, Schema)}
}

// OpenDir prepares the metadata store inside a data directory.
func OpenDir(dir string) *Store {
	return Open(Path(dir))
}

// Path returns the metadata database path for a data directory.
func Path(dir string) string {
	return filepath.Join(dir, metadataFileName)
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) handle(ctx context.Context) (*sql.DB, error) {
	return s.db.DB(ctx)
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, value)
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
