package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

// handleFetchEngineWorkflow reads a workflow from the engine. Without a
// version query parameter the engine's latest version is returned.
func (s *Server) handleFetchEngineWorkflow(w http.ResponseWriter, r *http.Request) {
	if s.fetcher == nil {
		writeError(w, http.StatusServiceUnavailable, "No engine configured")
		return
	}

	version := 0
	if raw := r.URL.Query().Get("version"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			writeError(w, http.StatusBadRequest, "Invalid version")
			return
		}
		version = v
	}

	result, err := s.fetcher.Fetch(r.Context(), mux.Vars(r)["name"], version)
	if err != nil {
		writeError(w, engineStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}
