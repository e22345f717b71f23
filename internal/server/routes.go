package server

import (
	"net/http"
)

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Health check and info.
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /v1/info", s.handleInfo)

	// Tasks collection.
	mux.HandleFunc("GET /v1/tasks", s.handleListTasks)
	mux.HandleFunc("POST /v1/tasks", s.handleCreateTask)
	mux.HandleFunc("POST /v1/tasks/reorder", s.handleReorder)
	mux.HandleFunc("POST /v1/tasks/clear-completed", s.handleClearCompleted)

	// Single task.
	mux.HandleFunc("GET /v1/tasks/{id}", s.handleGetTask)
	mux.HandleFunc("PATCH /v1/tasks/{id}", s.handleUpdateTask)
	mux.HandleFunc("DELETE /v1/tasks/{id}", s.handleDeleteTask)
	mux.HandleFunc("POST /v1/tasks/{id}/duplicate", s.handleDuplicateTask)
	mux.HandleFunc("POST /v1/tasks/{id}/complete", s.handleCompleteTask)

	// Task files.
	mux.HandleFunc("POST /v1/tasks/{id}/attachments", s.handleAddAttachments)
	mux.HandleFunc("DELETE /v1/tasks/{id}/attachments/{blob_id}", s.handleRemoveAttachment)
	mux.HandleFunc("PUT /v1/tasks/{id}/icon", s.handleSetIcon)
	mux.HandleFunc("DELETE /v1/tasks/{id}/icon", s.handleClearIcon)
	mux.HandleFunc("GET /v1/blobs/{blob_id}", s.handleGetBlob)

	// Import/Export.
	mux.HandleFunc("GET /v1/export", s.handleExport)
	mux.HandleFunc("POST /v1/import", s.handleImport)

	// Settings and maintenance.
	mux.HandleFunc("GET /v1/settings", s.handleGetSettings)
	mux.HandleFunc("PATCH /v1/settings", s.handleUpdateSettings)
	mux.HandleFunc("POST /v1/admin/gc", s.handleAdminGCBlobs)

	// Change feed.
	if s.hub != nil {
		mux.HandleFunc("GET /v1/events", s.handleEvents)
	}

	return mux
}
