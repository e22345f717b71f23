package blobstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"mproc/internal/codec"
	"mproc/internal/models"
	"mproc/internal/sqlitedb"
)

const (
	// IDPrefix marks blob ids so they never collide with task ids.
	IDPrefix = "f-"

	// DefaultMediaType is recorded when a payload arrives without a usable type.
	DefaultMediaType = codec.DefaultMediaType

	indexFileName = "files.db"
	objectDirName = "objects"
)

const fileColumns = "id, name, media_type, sha256, size_bytes, blob_key, created_at"

// FileStore keeps blob records in a SQLite index and their bytes in an ObjectStore.
type FileStore struct {
	index   *sqlitedb.Lazy
	objects ObjectStore
	logger  *slog.Logger

	// mu orders index writes against object removal so a shared object is
	// never deleted while a new record for it is being inserted.
	mu  sync.Mutex
	now func() time.Time
}

var _ BlobStore = (*FileStore)(nil)

// NewFileStore builds a store over an index handle and an object store.
func NewFileStore(index *sqlitedb.Lazy, objects ObjectStore, logger *slog.Logger) *FileStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{
		index:   index,
		objects: objects,
		logger:  logger.With("component", "blobstore"),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// OpenDir prepares a FileStore under dir. The index database opens on first use.
func OpenDir(dir string, logger *slog.Logger) (*FileStore, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, fmt.Errorf("blob directory is required")
	}
	cas, err := NewLocalCAS(filepath.Join(dir, objectDirName))
	if err != nil {
		return nil, fmt.Errorf("object tree: %w", err)
	}
	index := sqlitedb.NewLazy(filepath.Join(dir, indexFileName), IndexSchema)
	return NewFileStore(index, cas, logger), nil
}

// IndexPath returns the path of the record index database.
func IndexPath(dir string) string {
	return filepath.Join(dir, indexFileName)
}

// Close releases the index handle.
func (s *FileStore) Close() error {
	if s == nil {
		return nil
	}
	return s.index.Close()
}

// Put stores payload bytes under a fresh record id. The media type is
// normalized so it survives a data URL round trip unchanged; one that cannot
// be parsed is recorded as DefaultMediaType.
func (s *FileStore) Put(ctx context.Context, r io.Reader, name, mediaType string) (models.BlobInfo, error) {
	var zero models.BlobInfo
	db, err := s.index.DB(ctx)
	if err != nil {
		return zero, err
	}

	normalized, err := codec.NormalizeMediaType(mediaType)
	if err != nil {
		s.logger.Warn("unparseable media type; storing as octet-stream", "name", name, "media_type", mediaType)
		normalized = DefaultMediaType
	}
	mediaType = normalized

	s.mu.Lock()
	defer s.mu.Unlock()

	obj, err := s.objects.Put(ctx, r)
	if err != nil {
		return zero, fmt.Errorf("store bytes: %w", err)
	}

	info := models.BlobInfo{
		ID:        NewID(),
		Name:      name,
		Type:      mediaType,
		SHA256:    obj.SHA256,
		SizeBytes: obj.SizeBytes,
		BlobKey:   obj.BlobKey,
		CreatedAt: s.now(),
	}

	_, err = db.ExecContext(ctx, `INSERT INTO files (`+fileColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		info.ID, info.Name, info.Type, info.SHA256, info.SizeBytes, info.BlobKey, formatTime(info.CreatedAt))
	if err != nil {
		s.dropObjectIfUnshared(ctx, db, obj.BlobKey)
		return zero, fmt.Errorf("index blob: %w", err)
	}

	return info, nil
}

// Get returns the record with its payload, or nil when the id is unknown or its
// bytes are gone.
func (s *FileStore) Get(ctx context.Context, id string) (*models.BlobRecord, error) {
	info, err := s.Stat(ctx, id)
	if err != nil || info == nil {
		return nil, err
	}

	rc, err := s.objects.Open(ctx, info.BlobKey)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("blob bytes missing", "id", id, "blob_key", info.BlobKey)
			return nil, nil
		}
		return nil, err
	}
	defer rc.Close()

	payload, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", id, err)
	}
	return &models.BlobRecord{BlobInfo: *info, Payload: payload}, nil
}

// Stat returns record metadata without reading the payload.
func (s *FileStore) Stat(ctx context.Context, id string) (*models.BlobInfo, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, nil
	}
	db, err := s.index.DB(ctx)
	if err != nil {
		return nil, err
	}
	row := db.QueryRowContext(ctx, `SELECT `+fileColumns+` FROM files WHERE id = ?`, id)
	return scanBlobInfo(row)
}

// Delete removes a record. The object file goes only when no other record
// shares its digest.
func (s *FileStore) Delete(ctx context.Context, id string) (err error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil
	}
	db, err := s.index.DB(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var key string
	err = tx.QueryRowContext(ctx, "SELECT blob_key FROM files WHERE id = ?", id).Scan(&key)
	if err == sql.ErrNoRows {
		err = nil
		_ = tx.Rollback()
		return nil
	}
	if err != nil {
		return err
	}

	if _, err = tx.ExecContext(ctx, "DELETE FROM files WHERE id = ?", id); err != nil {
		return err
	}
	var remaining int
	if err = tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM files WHERE blob_key = ?", key).Scan(&remaining); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return err
	}

	if remaining == 0 {
		if delErr := s.objects.Delete(ctx, key); delErr != nil {
			s.logger.Warn("delete blob bytes failed", "id", id, "blob_key", key, "error", delErr)
		}
	}
	return nil
}

// List enumerates every record in creation order.
func (s *FileStore) List(ctx context.Context) ([]models.BlobInfo, error) {
	db, err := s.index.DB(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT `+fileColumns+` FROM files ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	infos := []models.BlobInfo{}
	for rows.Next() {
		info, err := scanBlobInfo(rows)
		if err != nil {
			return nil, err
		}
		if info == nil {
			continue
		}
		infos = append(infos, *info)
	}
	return infos, rows.Err()
}

func (s *FileStore) dropObjectIfUnshared(ctx context.Context, db *sql.DB, key string) {
	var count int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM files WHERE blob_key = ?", key).Scan(&count); err != nil {
		s.logger.Warn("count blob references failed", "blob_key", key, "error", err)
		return
	}
	if count > 0 {
		return
	}
	if err := s.objects.Delete(ctx, key); err != nil {
		s.logger.Warn("delete orphaned bytes failed", "blob_key", key, "error", err)
	}
}

// NewID returns a fresh blob record id.
func NewID() string {
	return IDPrefix + uuid.NewString()
}

// IsID reports whether value has the blob id shape.
func IsID(value string) bool {
	if !strings.HasPrefix(value, IDPrefix) {
		return false
	}
	_, err := uuid.Parse(strings.TrimPrefix(value, IDPrefix))
	return err == nil
}

func scanBlobInfo(scanner interface {
	Scan(dest ...any) error
}) (*models.BlobInfo, error) {
	var info models.BlobInfo
	var createdAt string
	if err := scanner.Scan(
		&info.ID,
		&info.Name,
		&info.Type,
		&info.SHA256,
		&info.SizeBytes,
		&info.BlobKey,
		&createdAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	parsed, err := parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	info.CreatedAt = parsed
	return &info, nil
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
