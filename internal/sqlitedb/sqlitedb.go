package sqlitedb

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const (
	busyTimeoutMS   = 5000
	maxOpenConns    = 1
	maxIdleConns    = 1
	connMaxLifetime = 5 * time.Minute
)

// Open opens the SQLite database at path and applies the schema's pending migrations.
func Open(path string, schema Schema) (*sql.DB, error) {
	dsn, err := DSN(path)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	if err := configureDB(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := RunMigrations(db, schema); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// OpenRaw opens the database without configuring or migrating it.
func OpenRaw(path string) (*sql.DB, error) {
	dsn, err := DSN(path)
	if err != nil {
		return nil, err
	}
	return sql.Open("sqlite", dsn)
}

// DSN converts a filesystem path into a sqlite file URL.
func DSN(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("db path is required")
	}
	u := url.URL{Scheme: "file", Path: path}
	return u.String(), nil
}

func configureDB(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		"PRAGMA foreign_keys = ON;",
		fmt.Sprintf("PRAGMA busy_timeout = %d;", busyTimeoutMS),
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}

	// Tune connection pool for local usage.
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	return nil
}

// Lazy opens a database on first use and hands the same handle to every caller.
// Concurrent first calls wait for the single open attempt. An open failure is
// remembered for the life of the value.
type Lazy struct {
	path   string
	schema Schema

	once sync.Once
	db   *sql.DB
	err  error
}

// NewLazy prepares a lazily opened database. Nothing touches disk until DB is called.
func NewLazy(path string, schema Schema) *Lazy {
	return &Lazy{path: path, schema: schema}
}

// DB returns the shared handle, opening it on the first call.
func (l *Lazy) DB(ctx context.Context) (*sql.DB, error) {
	if l == nil {
		return nil, fmt.Errorf("database is not configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.once.Do(func() {
		l.db, l.err = Open(l.path, l.schema)
		if l.err != nil {
			l.err = fmt.Errorf("open %s: %w", l.path, l.err)
		}
	})
	return l.db, l.err
}

// Path returns the database file path.
func (l *Lazy) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Close closes the handle if it was opened.
func (l *Lazy) Close() error {
	if l == nil {
		return nil
	}
	// Prevent a later DB call from opening a fresh handle after close.
	l.once.Do(func() { l.err = fmt.Errorf("database %s is closed", l.path) })
	if l.db == nil {
		return nil
	}
	return l.db.Close()
}
