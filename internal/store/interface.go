package store

import (
	"context"

	"mproc/internal/models"
)

// MetadataStore persists the task collection and settings.
//
// SaveTasks replaces the whole collection. Rows are always written in the
// current format, so legacy inline payloads never survive a save.
type MetadataStore interface {
	SaveTasks(ctx context.Context, tasks []models.Task) error
	LoadTasks(ctx context.Context) ([]models.Task, error)
	SaveSettings(ctx context.Context, settings models.Settings) error
	LoadSettings(ctx context.Context) (models.Settings, error)
}

var _ MetadataStore = (*Store)(nil)
