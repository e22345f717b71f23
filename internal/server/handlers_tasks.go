package server

import (
	"fmt"
	"mime"
	"net/http"
	"strings"

	"mproc/internal/api"
	"mproc/internal/models"
	"mproc/internal/tasks"
)

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	completed, err := queryOptionalBool(r, "completed")
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, err)
		return
	}

	mode := s.repo.Settings().Sort
	if raw := strings.TrimSpace(query.Get("sort")); raw != "" {
		parsed, err := models.ParseSortMode(raw)
		if err != nil {
			s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(err, ErrCodeInvalidSort))
			return
		}
		mode = parsed
	}

	list, err := s.repo.List(tasks.ListOptions{Sort: mode, Query: query.Get("q"), Completed: completed})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if list == nil {
		list = []models.Task{}
	}

	s.writeJSON(w, http.StatusOK, api.TaskListResponse{Tasks: list, Sort: mode, Progress: s.repo.Progress()})
}

// handleCreateTask accepts either a JSON body or a multipart form carrying an
// optional "icon" file and any number of "attachments" files.
func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var in tasks.TaskInput

	if isMultipart(r) {
		form, err := s.parseUploadForm(w, r)
		if err != nil {
			s.writeErrorReq(w, r, httpStatusFromError(err), err)
			return
		}
		files, err := openFormUploads(form)
		if err != nil {
			s.writeErrorReq(w, r, http.StatusBadRequest, err)
			return
		}
		defer files.Close()

		in = tasks.TaskInput{
			Title:       form.Value.Get("title"),
			Due:         form.Value.Get("due"),
			Description: form.Value.Get("description"),
			Color:       form.Value.Get("color"),
			Icon:        files.icon,
			Attachments: files.attachments,
		}
	} else {
		var req api.TaskCreateRequest
		if !s.decodeJSONReq(w, r, &req) {
			return
		}
		in = tasks.TaskInput{Title: req.Title, Due: req.Due, Description: req.Description, Color: req.Color}
	}

	task, err := s.repo.Create(r.Context(), in)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, task)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r, "id")
	if !ok {
		return
	}

	task, err := s.repo.Get(id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r, "id")
	if !ok {
		return
	}

	var req api.TaskUpdateRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}
	patch := tasks.TaskPatch{
		Title:       req.Title,
		Due:         req.Due,
		Description: req.Description,
		Color:       req.Color,
		Completed:   req.Completed,
		ClearIcon:   req.ClearIcon,
	}
	if patch.IsEmpty() {
		s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(fmt.Errorf("no fields to update"), ErrCodeMissingRequired))
		return
	}

	task, err := s.repo.Update(r.Context(), id, patch)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r, "id")
	if !ok {
		return
	}

	if err := s.repo.Remove(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"id": id})
}

func (s *Server) handleDuplicateTask(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r, "id")
	if !ok {
		return
	}

	task, err := s.repo.Duplicate(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, task)
}

func (s *Server) handleCompleteTask(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathIDOrBadRequest(w, r, "id")
	if !ok {
		return
	}

	var req api.CompleteRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}

	task, err := s.repo.SetCompleted(r.Context(), id, req.Completed)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleReorder(w http.ResponseWriter, r *http.Request) {
	var req api.ReorderRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}
	for _, id := range req.IDs {
		if !validateID(id) {
			s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(fmt.Errorf("invalid id %q", id), ErrCodeInvalidID))
			return
		}
	}

	if err := s.repo.Reorder(r.Context(), req.IDs, req.Completed); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{"ids": req.IDs, "completed": req.Completed})
}

func (s *Server) handleClearCompleted(w http.ResponseWriter, r *http.Request) {
	removed, err := s.repo.ClearCompleted(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, api.ClearCompletedResponse{Removed: removed})
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}
