package blobstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	objectKeyPrefix = "sha256"
	tempDirName     = "tmp"
	tempPattern     = "put-*"

	// staleTempAge is how old a leftover temp file must be before NewLocalCAS
	// removes it. Younger files may belong to a Put in another process.
	staleTempAge = time.Hour
)

// LocalCAS keeps payload bytes under sha256/<aa>/<bb>/<digest>. Identical
// payloads share one read-only object file; the record index above it decides
// when an object may go.
type LocalCAS struct {
	root string
}

var _ ObjectStore = (*LocalCAS)(nil)

// NewLocalCAS prepares the object tree at root and clears temp files left by
// interrupted writes.
func NewLocalCAS(root string) (*LocalCAS, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("object root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	cas := &LocalCAS{root: abs}
	if err := os.MkdirAll(cas.tempDir(), 0o755); err != nil {
		return nil, err
	}
	cas.removeStaleTemp(time.Now().Add(-staleTempAge))
	return cas, nil
}

// Root returns the absolute root directory.
func (c *LocalCAS) Root() string {
	return c.root
}

// Put hashes r while copying it into a temp file, then moves the file onto its
// digest path. When that object already exists the temp copy is dropped.
func (c *LocalCAS) Put(ctx context.Context, r io.Reader) (ObjectInfo, error) {
	if r == nil {
		return ObjectInfo{}, fmt.Errorf("payload reader is required")
	}
	if err := ctx.Err(); err != nil {
		return ObjectInfo{}, err
	}

	tmpPath, info, err := c.writeTemp(r)
	if err != nil {
		return ObjectInfo{}, err
	}
	defer os.Remove(tmpPath)

	dst := filepath.Join(c.root, filepath.FromSlash(info.BlobKey))
	if exists(dst) {
		return info, nil
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return ObjectInfo{}, err
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		// A concurrent Put of the same payload may have won the rename.
		if exists(dst) {
			return info, nil
		}
		return ObjectInfo{}, fmt.Errorf("place object %s: %w", info.BlobKey, err)
	}
	return info, nil
}

func (c *LocalCAS) writeTemp(r io.Reader) (string, ObjectInfo, error) {
	tmp, err := os.CreateTemp(c.tempDir(), tempPattern)
	if err != nil {
		return "", ObjectInfo{}, err
	}
	path := tmp.Name()
	fail := func(err error) (string, ObjectInfo, error) {
		_ = tmp.Close()
		_ = os.Remove(path)
		return "", ObjectInfo{}, err
	}

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(tmp, h), r)
	if err != nil {
		return fail(err)
	}
	if err := tmp.Sync(); err != nil {
		return fail(err)
	}
	if err := tmp.Chmod(0o444); err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		return fail(err)
	}

	digest := hex.EncodeToString(h.Sum(nil))
	return path, ObjectInfo{SHA256: digest, SizeBytes: n, BlobKey: objectKey(digest)}, nil
}

// Open returns a reader for the object stored under key.
func (c *LocalCAS) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := c.pathFromKey(key)
	if err != nil {
		return nil, err
	}
	return os.Open(path)
}

// Delete removes an object and any fan-out directories it leaves empty.
// Missing objects are ignored.
func (c *LocalCAS) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := c.pathFromKey(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	c.pruneEmptyDirs(filepath.Dir(path))
	return nil
}

// pruneEmptyDirs walks up from dir toward the sha256 directory, removing
// directories until one is not empty.
func (c *LocalCAS) pruneEmptyDirs(dir string) {
	stop := filepath.Join(c.root, objectKeyPrefix)
	for dir != stop && strings.HasPrefix(dir, stop) {
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

func (c *LocalCAS) removeStaleTemp(cutoff time.Time) {
	matches, err := filepath.Glob(filepath.Join(c.tempDir(), tempPattern))
	if err != nil {
		return
	}
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		_ = os.Remove(path)
	}
}

func (c *LocalCAS) tempDir() string {
	return filepath.Join(c.root, tempDirName)
}

// pathFromKey accepts only keys produced by objectKey.
func (c *LocalCAS) pathFromKey(key string) (string, error) {
	if !validObjectKey(key) {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(c.root, filepath.FromSlash(key)), nil
}

func objectKey(digest string) string {
	return fmt.Sprintf("%s/%s/%s/%s", objectKeyPrefix, digest[0:2], digest[2:4], digest)
}

func validObjectKey(key string) bool {
	parts := strings.Split(key, "/")
	if len(parts) != 4 || parts[0] != objectKeyPrefix {
		return false
	}
	digest := parts[3]
	if len(digest) != sha256.Size*2 {
		return false
	}
	if _, err := hex.DecodeString(digest); err != nil {
		return false
	}
	return parts[1] == digest[0:2] && parts[2] == digest[2:4]
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
