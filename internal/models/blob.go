package models

import "time"

// BlobInfo describes one stored blob record without its payload.
type BlobInfo struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	SHA256    string    `json:"sha256"`
	SizeBytes int64     `json:"size_bytes"`
	BlobKey   string    `json:"blob_key"`
	CreatedAt time.Time `json:"created_at"`
}

// BlobRecord is an immutable stored payload referenced by tasks.
type BlobRecord struct {
	BlobInfo
	Payload []byte `json:"-"`
}
