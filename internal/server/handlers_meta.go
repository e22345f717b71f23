package server

import (
	"net/http"

	"mproc/internal/api"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	resp := api.InfoResponse{
		DataDir:    s.dataDir,
		TotalTasks: s.repo.Len(),
		Progress:   s.repo.Progress(),
		Settings:   s.repo.Settings(),
	}

	s.writeJSON(w, http.StatusOK, resp)
}
