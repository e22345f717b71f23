package tasks

import (
	"context"
	"fmt"
	"io"
	"mime"
	"strings"

	"mproc/internal/codec"
	"mproc/internal/models"
)

type uploadPolicy struct {
	maxBytes int64
	allowed  map[string]struct{}
	// prefixes holds "image/" for an allowed entry of "image/*".
	prefixes []string
}

func newUploadPolicy(maxBytes int64, allowedMediaTypes []string) uploadPolicy {
	policy := uploadPolicy{maxBytes: maxBytes}
	for _, raw := range allowedMediaTypes {
		raw = strings.ToLower(strings.TrimSpace(raw))
		if raw == "" {
			continue
		}
		if strings.HasSuffix(raw, "/*") {
			policy.prefixes = append(policy.prefixes, strings.TrimSuffix(raw, "*"))
			continue
		}
		normalized, err := normalizeMediaType(raw)
		if err != nil || normalized == "" {
			continue
		}
		if policy.allowed == nil {
			policy.allowed = map[string]struct{}{}
		}
		policy.allowed[normalized] = struct{}{}
	}
	return policy
}

func (p uploadPolicy) allows(mediaType string) bool {
	if len(p.allowed) == 0 && len(p.prefixes) == 0 {
		return true
	}
	base, err := normalizeMediaType(mediaType)
	if err != nil {
		return false
	}
	if base == "" {
		base = "application/octet-stream"
	}
	if _, ok := p.allowed[base]; ok {
		return true
	}
	for _, prefix := range p.prefixes {
		if strings.HasPrefix(base, prefix) {
			return true
		}
	}
	return false
}

func normalizeMediaType(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	parsed, _, err := mime.ParseMediaType(raw)
	if err != nil {
		return "", fmt.Errorf("invalid media type %q", raw)
	}
	return strings.ToLower(strings.TrimSpace(parsed)), nil
}

// limitedReader fails once more than limit bytes have been read.
type limitedReader struct {
	r     io.Reader
	limit int64
	read  int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	l.read += int64(n)
	if l.read > l.limit {
		return n, fmt.Errorf("%w: %d bytes", ErrUploadTooLarge, l.limit)
	}
	return n, err
}

// storeUpload writes one upload as a new blob. A media type that does not
// parse is rejected like one outside the allow list.
func (r *Repository) storeUpload(ctx context.Context, up Upload) (models.BlobInfo, error) {
	if up.Body == nil {
		return models.BlobInfo{}, fmt.Errorf("upload %q has no content", up.Name)
	}
	mediaType, err := codec.NormalizeMediaType(up.Type)
	if err != nil {
		return models.BlobInfo{}, fmt.Errorf("%w: %v", ErrMediaTypeRejected, err)
	}
	if !r.policy.allows(mediaType) {
		return models.BlobInfo{}, fmt.Errorf("%w: %s", ErrMediaTypeRejected, mediaType)
	}
	body := up.Body
	if r.policy.maxBytes > 0 {
		body = &limitedReader{r: body, limit: r.policy.maxBytes}
	}
	info, err := r.blobs.Put(ctx, body, up.Name, mediaType)
	if err != nil {
		return models.BlobInfo{}, fmt.Errorf("store %q: %w", up.Name, err)
	}
	return info, nil
}

// storeUploads writes every upload in order. On failure the blobs stored so
// far are deleted again.
func (r *Repository) storeUploads(ctx context.Context, uploads []Upload) ([]models.AttachmentRef, error) {
	refs := make([]models.AttachmentRef, 0, len(uploads))
	for _, up := range uploads {
		info, err := r.storeUpload(ctx, up)
		if err != nil {
			r.discardBlobs(ctx, refIDs(refs))
			return nil, err
		}
		refs = append(refs, models.AttachmentRef{ID: info.ID, Name: info.Name, Type: info.Type})
	}
	return refs, nil
}

// discardBlobs removes blobs that were stored for a mutation that did not happen.
func (r *Repository) discardBlobs(ctx context.Context, ids []string) {
	for _, id := range ids {
		if id == "" {
			continue
		}
		if err := r.blobs.Delete(ctx, id); err != nil {
			r.logger.Warn("discard blob failed", "blob_id", id, "error", err)
		}
	}
}

func refIDs(refs []models.AttachmentRef) []string {
	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		ids = append(ids, ref.ID)
	}
	return ids
}
