package server

import (
	"fmt"
	"net/http"

	"mproc/internal/api"
	"mproc/internal/tasks"
)

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.repo.Settings())
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req api.SettingsUpdateRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}

	settings, err := s.repo.UpdateSettings(r.Context(), tasks.SettingsPatch{
		Sort:                req.Sort,
		AutosaveAttachments: req.AutosaveAttachments,
		Particles:           req.Particles,
		ParticlesCount:      req.ParticlesCount,
		Theme:               req.Theme,
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, settings)
}

// handleAdminGCBlobs sweeps blob records no task references. Deleting
// requires the X-Confirm: true header.
func (s *Server) handleAdminGCBlobs(w http.ResponseWriter, r *http.Request) {
	var req api.BlobGCRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}
	if !req.DryRun && r.Header.Get("X-Confirm") != "true" {
		s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(fmt.Errorf("non-dry-run requires X-Confirm: true header"), ErrCodeMissingRequired))
		return
	}

	result, err := s.repo.SweepBlobs(r.Context(), !req.DryRun)
	if err != nil {
		s.writeErrorReq(w, r, http.StatusInternalServerError, storeFailure(err))
		return
	}

	resp := api.BlobGCResponse{
		CandidateCount: result.CandidateCount,
		DeletedCount:   result.DeletedCount,
		FailedCount:    result.FailedCount,
		ReclaimedBytes: result.ReclaimedBytes,
		DryRun:         result.DryRun,
	}
	s.writeJSON(w, http.StatusOK, resp)
}
