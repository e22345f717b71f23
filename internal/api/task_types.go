package api

import (
	"mproc/internal/gc"
	"mproc/internal/models"
)

// TaskCreateRequest defines the JSON payload for creating a task. Files are
// sent as multipart/form-data instead.
type TaskCreateRequest struct {
	Title       string `json:"title"`
	Due         string `json:"due,omitempty"`
	Description string `json:"description,omitempty"`
	Color       string `json:"color,omitempty"`
}

// TaskUpdateRequest defines the payload for updating a task.
type TaskUpdateRequest struct {
	Title       *string `json:"title,omitempty"`
	Due         *string `json:"due,omitempty"`
	Description *string `json:"description,omitempty"`
	Color       *string `json:"color,omitempty"`
	Completed   *bool   `json:"completed,omitempty"`
	ClearIcon   bool    `json:"clear_icon,omitempty"`
}

// TaskListResponse is the response from GET /v1/tasks.
type TaskListResponse struct {
	Tasks    []models.Task   `json:"tasks"`
	Sort     models.SortMode `json:"sort"`
	Progress models.Progress `json:"progress"`
}

// CompleteRequest sets the completed flag of one task.
type CompleteRequest struct {
	Completed bool `json:"completed"`
}

// ReorderRequest carries the new order of one list after a drag.
type ReorderRequest struct {
	IDs       []string `json:"ids"`
	Completed bool     `json:"completed"`
}

// ClearCompletedResponse is the response from POST /v1/tasks/clear-completed.
type ClearCompletedResponse struct {
	Removed int `json:"removed"`
}

// SettingsUpdateRequest defines the payload for PATCH /v1/settings.
type SettingsUpdateRequest struct {
	Sort                *string `json:"sort,omitempty"`
	AutosaveAttachments *bool   `json:"autosave_attachments,omitempty"`
	Particles           *bool   `json:"particles,omitempty"`
	ParticlesCount      *int    `json:"particles_count,omitempty"`
	Theme               *string `json:"theme,omitempty"`
}

// ImportResponse is the response from POST /v1/import.
type ImportResponse struct {
	Imported  int       `json:"imported"`
	Stored    int       `json:"stored"`
	Collected gc.Result `json:"collected"`
}

// BlobGCRequest defines the payload for POST /v1/admin/gc.
type BlobGCRequest struct {
	DryRun bool `json:"dry_run"`
}

// BlobGCResponse reports a blob sweep.
type BlobGCResponse struct {
	CandidateCount int   `json:"candidate_count"`
	DeletedCount   int   `json:"deleted_count"`
	FailedCount    int   `json:"failed_count"`
	ReclaimedBytes int64 `json:"reclaimed_bytes"`
	DryRun         bool  `json:"dry_run"`
}

// InfoResponse is the response from GET /v1/info.
type InfoResponse struct {
	DataDir    string          `json:"data_dir"`
	TotalTasks int             `json:"total_tasks"`
	Progress   models.Progress `json:"progress"`
	Settings   models.Settings `json:"settings"`
}
