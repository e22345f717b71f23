package tasks

import (
	"io"

	"mproc/internal/models"
)

// Upload is one file handed to the repository for storage as a blob.
type Upload struct {
	Name string
	Type string
	Body io.Reader
}

// TaskInput holds the fields of a new task.
type TaskInput struct {
	Title       string
	Due         string
	Description string
	Color       string
	Icon        *Upload
	Attachments []Upload
}

// TaskPatch lists the fields to change on an existing task. Nil pointers are
// left alone. Attachments are appended after the existing ones.
type TaskPatch struct {
	Title       *string
	Due         *string
	Description *string
	Color       *string
	Completed   *bool
	Icon        *Upload
	ClearIcon   bool
	Attachments []Upload
}

// IsEmpty reports whether the patch changes nothing.
func (p TaskPatch) IsEmpty() bool {
	return p.Title == nil && p.Due == nil && p.Description == nil && p.Color == nil &&
		p.Completed == nil && p.Icon == nil && !p.ClearIcon && len(p.Attachments) == 0
}

// SettingsPatch lists the settings to change.
type SettingsPatch struct {
	Sort                *string
	AutosaveAttachments *bool
	Particles           *bool
	ParticlesCount      *int
	Theme               *string
}

// Notifier receives change notifications after each committed mutation.
type Notifier interface {
	TasksChanged(ids []string)
	SettingsChanged(settings models.Settings)
}

type nopNotifier struct{}

func (nopNotifier) TasksChanged([]string)            {}
func (nopNotifier) SettingsChanged(models.Settings) {}
