// Package migration moves legacy inline payloads out of task metadata and into
// the blob store.
package migration

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"mproc/internal/blobstore"
	"mproc/internal/codec"
	"mproc/internal/models"
)

const (
	defaultIconName       = "icon"
	defaultAttachmentName = "file"
)

// Result summarizes one migration pass.
type Result struct {
	Tasks   []models.Task
	Changed bool
	// Stored counts payloads written to the blob store.
	Stored int
	// Dropped counts inline payloads or empty references that were discarded.
	Dropped int
	// Released lists blob ids the migrated tasks no longer reference. The
	// caller collects them once the migrated tasks are saved.
	Released []string
}

// Engine rewrites tasks so they hold only blob references.
type Engine struct {
	blobs  blobstore.BlobStore
	logger *slog.Logger
}

// NewEngine creates a migration engine writing to blobs.
func NewEngine(blobs blobstore.BlobStore, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{blobs: blobs, logger: logger.With("component", "migration")}
}

// Run migrates every task. The input slice is not modified. A payload that
// cannot be decoded or stored is logged and dropped; the remaining fields and
// tasks still migrate. Running again on migrated data stores nothing.
func (e *Engine) Run(ctx context.Context, tasks []models.Task) (Result, error) {
	result := Result{Tasks: make([]models.Task, 0, len(tasks))}
	for _, task := range tasks {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		if !needsMigration(task) {
			result.Tasks = append(result.Tasks, task.Clone())
			continue
		}

		result.Changed = true
		migrated := task.Clone()

		if inline := migrated.InlineIcon; inline != nil {
			migrated.InlineIcon = nil
			name := firstNonEmpty(inline.Name, defaultIconName)
			info, err := e.store(ctx, inline.DataURL, name, inline.Type)
			if err != nil {
				e.logger.Warn("icon migration failed; dropping icon", "task_id", task.ID, "error", err)
				result.Dropped++
			} else {
				if migrated.IconID != "" && migrated.IconID != info.ID {
					result.Released = append(result.Released, migrated.IconID)
				}
				migrated.IconID = info.ID
				result.Stored++
			}
		}

		refs := make([]models.AttachmentRef, 0, len(migrated.Attachments))
		for _, ref := range migrated.Attachments {
			switch {
			case ref.Inline != nil:
				inline := ref.Inline
				name := firstNonEmpty(ref.Name, inline.Name, defaultAttachmentName)
				mediaType := firstNonEmpty(ref.Type, inline.Type)
				info, err := e.store(ctx, inline.DataURL, name, mediaType)
				if err != nil {
					e.logger.Warn("attachment migration failed; dropping attachment", "task_id", task.ID, "name", name, "error", err)
					result.Dropped++
					continue
				}
				refs = append(refs, models.AttachmentRef{ID: info.ID, Name: name, Type: info.Type})
				result.Stored++
			case ref.ID != "":
				refs = append(refs, ref)
			default:
				result.Dropped++
			}
		}
		migrated.Attachments = refs
		result.Tasks = append(result.Tasks, migrated)
	}

	if result.Changed {
		e.logger.Info("migrated inline payloads", "stored", result.Stored, "dropped", result.Dropped)
	}
	return result, nil
}

// store decodes a data URL and writes it as a new blob. A blank or
// unparseable mediaType falls back to the type declared inside the data URL.
func (e *Engine) store(ctx context.Context, dataURL, name, mediaType string) (models.BlobInfo, error) {
	payload, decodedType, err := codec.DecodeBlob(dataURL)
	if err != nil {
		return models.BlobInfo{}, err
	}
	info, err := e.blobs.Put(ctx, bytes.NewReader(payload), name, codec.ResolveMediaType(mediaType, decodedType))
	if err != nil {
		return models.BlobInfo{}, fmt.Errorf("store blob: %w", err)
	}
	return info, nil
}

func needsMigration(task models.Task) bool {
	if task.HasInlinePayload() {
		return true
	}
	for _, ref := range task.Attachments {
		if ref.ID == "" {
			return true
		}
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
