package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"mproc/internal/codec"
	"mproc/internal/gc"
	"mproc/internal/models"
	"mproc/internal/store"
)

// ExportVersion is written into every export document.
const ExportVersion = 1

const (
	defaultIconName       = "icon"
	defaultAttachmentName = "file"
)

// Document is the portable export format. Payloads are inlined as data URLs.
type Document struct {
	Version    int            `json:"version"`
	ExportedAt string         `json:"exportedAt"`
	Tasks      []DocumentTask `json:"tasks"`
}

// DocumentTask is one task in an export document.
type DocumentTask struct {
	ID          string               `json:"id"`
	Title       string               `json:"title"`
	Due         string               `json:"due"`
	Description string               `json:"description"`
	Color       string               `json:"color"`
	Completed   bool                 `json:"completed"`
	CreatedAt   DocumentTime         `json:"createdAt"`
	IconID      string               `json:"iconId,omitempty"`
	IconDataURL string               `json:"iconDataURL,omitempty"`
	IconName    string               `json:"iconName,omitempty"`
	IconType    string               `json:"iconType,omitempty"`
	Attachments []DocumentAttachment `json:"attachments"`
}

// DocumentAttachment carries an inline payload, or only an id in older files.
type DocumentAttachment struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name"`
	Type    string `json:"type"`
	DataURL string `json:"dataURL,omitempty"`
}

// DocumentTime is written as unix milliseconds and read from either unix
// milliseconds or an RFC 3339 string.
type DocumentTime struct {
	time.Time
}

func (t DocumentTime) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("0"), nil
	}
	return []byte(strconv.FormatInt(t.UnixMilli(), 10)), nil
}

func (t *DocumentTime) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" || raw == "" {
		t.Time = time.Time{}
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			t.Time = time.Time{}
			return nil
		}
		parsed, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("createdAt: %w", err)
		}
		t.Time = parsed.UTC()
		return nil
	}
	ms, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("createdAt: %w", err)
	}
	if ms <= 0 {
		t.Time = time.Time{}
		return nil
	}
	t.Time = time.UnixMilli(int64(ms)).UTC()
	return nil
}

// ImportResult reports a completed import.
type ImportResult struct {
	Imported  int       `json:"imported"`
	Stored    int       `json:"stored"`
	Collected gc.Result `json:"collected"`
}

// Export snapshots the collection with every referenced payload inlined.
// Dangling references are left out.
func (r *Repository) Export(ctx context.Context) (Document, error) {
	snapshot := r.All()

	doc := Document{
		Version:    ExportVersion,
		ExportedAt: r.now().UTC().Format(time.RFC3339Nano),
		Tasks:      make([]DocumentTask, 0, len(snapshot)),
	}
	for _, task := range snapshot {
		out := DocumentTask{
			ID:          task.ID,
			Title:       task.Title,
			Due:         task.Due,
			Description: task.Description,
			Color:       task.Color,
			Completed:   task.Completed,
			CreatedAt:   DocumentTime{task.CreatedAt},
			Attachments: []DocumentAttachment{},
		}

		if task.IconID != "" {
			rec, err := r.blobs.Get(ctx, task.IconID)
			if err != nil {
				return Document{}, fmt.Errorf("export icon of %s: %w", task.ID, err)
			}
			if rec != nil {
				dataURL, err := r.encodeRecord(rec)
				if err != nil {
					return Document{}, fmt.Errorf("encode icon of %s: %w", task.ID, err)
				}
				out.IconDataURL = dataURL
				out.IconName = rec.Name
				out.IconType = rec.Type
			}
		}

		for _, ref := range task.Attachments {
			rec, err := r.blobs.Get(ctx, ref.ID)
			if err != nil {
				return Document{}, fmt.Errorf("export attachment %s: %w", ref.ID, err)
			}
			if rec == nil {
				continue
			}
			dataURL, err := r.encodeRecord(rec)
			if err != nil {
				return Document{}, fmt.Errorf("encode attachment %s: %w", ref.ID, err)
			}
			out.Attachments = append(out.Attachments, DocumentAttachment{
				Name:    rec.Name,
				Type:    rec.Type,
				DataURL: dataURL,
			})
		}

		doc.Tasks = append(doc.Tasks, out)
	}
	return doc, nil
}

// WriteExport encodes the export document as indented JSON.
func (r *Repository) WriteExport(ctx context.Context, w io.Writer) error {
	doc, err := r.Export(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// Import replaces the collection with the tasks in the document read from src.
// Nothing changes unless every task decodes and stores. confirm must be true
// when the collection is not empty.
func (r *Repository) Import(ctx context.Context, src io.Reader, confirm bool) (ImportResult, error) {
	var result ImportResult
	body, err := io.ReadAll(src)
	if err != nil {
		return result, &ImportError{Index: -1, Err: err}
	}
	doc, err := parseDocument(body)
	if err != nil {
		return result, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.tasks) > 0 && !confirm {
		return result, ErrImportNeedsConfirm
	}

	var stored []string
	fail := func(index int, err error) (ImportResult, error) {
		r.discardBlobs(ctx, stored)
		return ImportResult{}, &ImportError{Index: index, Err: err}
	}

	seen := map[string]struct{}{}
	imported := make([]models.Task, 0, len(doc.Tasks))
	for i, in := range doc.Tasks {
		if err := ctx.Err(); err != nil {
			return fail(i, err)
		}
		title := strings.TrimSpace(in.Title)
		if title == "" {
			return fail(i, ErrTitleRequired)
		}
		due, err := normalizeDue(in.Due)
		if err != nil {
			return fail(i, err)
		}

		id := strings.TrimSpace(in.ID)
		if _, dup := seen[id]; id == "" || dup {
			id, err = store.GenerateTaskID(func(candidate string) (bool, error) {
				_, taken := seen[candidate]
				return taken, nil
			})
			if err != nil {
				return fail(i, err)
			}
		}
		seen[id] = struct{}{}

		task := models.Task{
			ID:          id,
			Title:       title,
			Due:         due,
			Description: in.Description,
			Color:       strings.TrimSpace(in.Color),
			Completed:   in.Completed,
			CreatedAt:   in.CreatedAt.Time,
			Attachments: []models.AttachmentRef{},
		}
		if task.Color == "" {
			task.Color = r.defaultColor
		}
		if task.CreatedAt.IsZero() {
			task.CreatedAt = r.now()
		}

		switch {
		case in.IconDataURL != "":
			info, err := r.putDataURL(ctx, in.IconDataURL, firstNonEmpty(in.IconName, defaultIconName), in.IconType)
			if err != nil {
				return fail(i, fmt.Errorf("icon: %w", err))
			}
			stored = append(stored, info.ID)
			task.IconID = info.ID
		case in.IconID != "":
			task.IconID = in.IconID
		}

		for _, a := range in.Attachments {
			switch {
			case a.DataURL != "":
				name := firstNonEmpty(a.Name, defaultAttachmentName)
				info, err := r.putDataURL(ctx, a.DataURL, name, a.Type)
				if err != nil {
					return fail(i, fmt.Errorf("attachment %q: %w", name, err))
				}
				stored = append(stored, info.ID)
				task.Attachments = append(task.Attachments, models.AttachmentRef{ID: info.ID, Name: name, Type: info.Type})
			case a.ID != "":
				task.Attachments = append(task.Attachments, models.AttachmentRef{ID: a.ID, Name: a.Name, Type: a.Type})
			}
		}

		imported = append(imported, task)
	}

	previous := r.tasks
	var released []string
	for _, task := range previous {
		released = append(released, task.BlobRefs()...)
	}
	r.tasks = imported

	result.Imported = len(imported)
	result.Stored = len(stored)
	persistErr := r.persistTasks(ctx)
	result.Collected = gc.CollectOrphans(ctx, r.blobs, r.tasks, released, r.logger)
	ids := make([]string, 0, len(imported))
	for _, task := range imported {
		ids = append(ids, task.ID)
	}
	r.notifier.TasksChanged(ids)

	r.logger.Info("imported tasks", "count", result.Imported, "blobs", result.Stored, "collected", result.Collected.DeletedCount)
	return result, persistErr
}

func parseDocument(body []byte) (Document, error) {
	var probe struct {
		Tasks json.RawMessage `json:"tasks"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return Document{}, &ImportError{Index: -1, Err: fmt.Errorf("invalid JSON: %w", err)}
	}
	trimmed := bytes.TrimSpace(probe.Tasks)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return Document{}, &ImportError{Index: -1, Err: errors.New("tasks must be an array")}
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return Document{}, &ImportError{Index: -1, Err: err}
	}
	doc := Document{Tasks: make([]DocumentTask, 0, len(raw))}
	for i, item := range raw {
		var task DocumentTask
		if err := json.Unmarshal(item, &task); err != nil {
			return Document{}, &ImportError{Index: i, Err: err}
		}
		doc.Tasks = append(doc.Tasks, task)
	}
	return doc, nil
}

// putDataURL decodes a data URL and stores it. An empty mediaType falls back to
// the type declared inside the data URL.
// encodeRecord renders a stored record as a data URL. Records written before
// media types were normalized may carry a type the codec rejects; those are
// exported as octet-stream rather than failing the whole document.
func (r *Repository) encodeRecord(rec *models.BlobRecord) (string, error) {
	dataURL, err := codec.EncodeBlob(rec.Payload, rec.Type)
	if err == nil {
		return dataURL, nil
	}
	r.logger.Warn("blob media type not encodable; exporting as octet-stream", "blob_id", rec.ID, "media_type", rec.Type, "error", err)
	rec.Type = codec.DefaultMediaType
	return codec.EncodeBlob(rec.Payload, rec.Type)
}

func (r *Repository) putDataURL(ctx context.Context, dataURL, name, mediaType string) (models.BlobInfo, error) {
	payload, decodedType, err := codec.DecodeBlob(dataURL)
	if err != nil {
		return models.BlobInfo{}, err
	}
	return r.blobs.Put(ctx, bytes.NewReader(payload), name, codec.ResolveMediaType(mediaType, decodedType))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
