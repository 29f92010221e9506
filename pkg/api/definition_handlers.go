package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/tcmartin/flowstudio/pkg/flowchart"
	"github.com/tcmartin/flowstudio/pkg/loader"
	"github.com/tcmartin/flowstudio/pkg/models"
	"github.com/tcmartin/flowstudio/pkg/registry"
)

// handleListDefinitions lists all stored definitions
func (s *Server) handleListDefinitions(w http.ResponseWriter, r *http.Request) {
	infos, err := s.registry.List()
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, infos)
}

// handleCreateDefinition stores an editor document or a definition
func (s *Server) handleCreateDefinition(w http.ResponseWriter, r *http.Request) {
	info, err := s.storeBody(r, "")
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

// handleUpdateDefinition stores the body as a new revision
func (s *Server) handleUpdateDefinition(w http.ResponseWriter, r *http.Request) {
	info, err := s.storeBody(r, mux.Vars(r)["id"])
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// storeBody creates a definition, or a revision of id when id is set.
// Editor documents are normalized before they are stored.
func (s *Server) storeBody(r *http.Request, id string) (registry.DefinitionInfo, error) {
	body, err := readBody(r)
	if err != nil {
		return registry.DefinitionInfo{}, err
	}
	format := formatOf(r)

	if loader.IsEditorDocument(body, format) {
		doc, err := s.loader.ParseEditorDocument(body, format)
		if err != nil {
			return registry.DefinitionInfo{}, wrapLoader(err)
		}
		if id == "" {
			return s.registry.CreateFromDocument(*doc)
		}
		return s.registry.UpdateFromDocument(id, *doc)
	}

	def, err := s.loader.ParseDefinition(body, format)
	if err != nil {
		return registry.DefinitionInfo{}, wrapLoader(err)
	}
	if id == "" {
		return s.registry.Create(def)
	}
	return s.registry.Update(id, def)
}

// handleSearchDefinitions filters definitions by metadata
func (s *Server) handleSearchDefinitions(w http.ResponseWriter, r *http.Request) {
	var filters registry.SearchFilters
	if err := decodeJSON(r, &filters); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	infos, err := s.registry.Search(filters)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, infos)
}

// handleGetDefinition returns the latest revision of a definition
func (s *Server) handleGetDefinition(w http.ResponseWriter, r *http.Request) {
	def, err := s.registry.Get(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, def)
}

// handleDeleteDefinition removes a definition with all revisions
func (s *Server) handleDeleteDefinition(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.Delete(mux.Vars(r)["id"]); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListVersions lists the revisions of a definition
func (s *Server) handleListVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := s.registry.ListVersions(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, versions)
}

// handleGetVersion returns one revision of a definition
func (s *Server) handleGetVersion(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	version, err := strconv.Atoi(vars["version"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid version")
		return
	}

	def, err := s.registry.GetVersion(vars["id"], version)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, def)
}

// handleUpdateMetadata replaces the tags, category and custom fields, and
// the status when one is given
func (s *Server) handleUpdateMetadata(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var metadata registry.DefinitionMetadata
	if err := decodeJSON(r, &metadata); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if err := s.registry.UpdateMetadata(id, metadata); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	info, err := s.registry.GetInfo(id)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// handleDefinitionDiagram renders a stored definition. The version query
// parameter selects a revision; the default is the latest.
func (s *Server) handleDefinitionDiagram(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	query := r.URL.Query()

	var (
		def *models.WorkflowDefinition
		err error
	)
	if raw := query.Get("version"); raw != "" {
		version, convErr := strconv.Atoi(raw)
		if convErr != nil {
			writeError(w, http.StatusBadRequest, "Invalid version")
			return
		}
		def, err = s.registry.GetVersion(id, version)
	} else {
		def, err = s.registry.Get(id)
	}
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	diagram, err := flowchart.RenderDefinition(def, s.renderOptions(query.Get("direction"), false, nil))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, RenderResponse{Diagram: diagram})
}

// handlePublishDefinition sends the latest revision to the engine
func (s *Server) handlePublishDefinition(w http.ResponseWriter, r *http.Request) {
	if s.publisher == nil {
		writeError(w, http.StatusServiceUnavailable, "No engine configured")
		return
	}

	result, err := s.publisher.Publish(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, engineStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(v)
}
