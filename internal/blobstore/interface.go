package blobstore

import (
	"context"
	"io"

	"mproc/internal/models"
)

// ObjectInfo describes one persisted payload in the object tree.
type ObjectInfo struct {
	SHA256    string
	SizeBytes int64
	BlobKey   string
}

// ObjectStore is the byte-storage abstraction beneath the record index.
type ObjectStore interface {
	Put(ctx context.Context, r io.Reader) (ObjectInfo, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// BlobStore holds immutable blob records addressed by opaque ids.
//
// Get returns nil, nil for an unknown id. Delete of an unknown id is a no-op.
// Records are never updated in place.
type BlobStore interface {
	Put(ctx context.Context, r io.Reader, name, mediaType string) (models.BlobInfo, error)
	Get(ctx context.Context, id string) (*models.BlobRecord, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]models.BlobInfo, error)
}
