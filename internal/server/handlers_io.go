package server

import (
	"bytes"
	"net/http"

	"mproc/internal/api"
)

const exportFileName = "todo-list.json"

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if !s.acquireLimiter(s.exportLimiter, w, r, "export") {
		return
	}
	defer s.releaseLimiter(s.exportLimiter)

	// Buffer the document so a blob read failure can still be reported as an error.
	var buf bytes.Buffer
	if err := s.repo.WriteExport(r.Context(), &buf); err != nil {
		s.writeErrorReq(w, r, http.StatusInternalServerError, makeAPIError(http.StatusInternalServerError, "internal", ErrCodeExportFailed, err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="`+exportFileName+`"`)
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		s.log().Error("export write", "method", r.Method, "path", r.URL.Path, "error", err)
	}
}

// handleImport replaces the collection with the posted export document.
// confirm=true is required when tasks already exist.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if !s.acquireLimiter(s.importLimiter, w, r, "import") {
		return
	}
	defer s.releaseLimiter(s.importLimiter)

	confirm, err := queryBool(r, "confirm")
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, importJSONMaxBody)
	result, err := s.repo.Import(r.Context(), r.Body, confirm)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, api.ImportResponse{
		Imported:  result.Imported,
		Stored:    result.Stored,
		Collected: result.Collected,
	})
}
