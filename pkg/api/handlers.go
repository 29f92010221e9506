package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/tcmartin/flowstudio/pkg/flowchart"
	"github.com/tcmartin/flowstudio/pkg/models"
	"github.com/tcmartin/flowstudio/pkg/normalizer"
)

// maxBodySize bounds request bodies
const maxBodySize = 4 << 20

// RenderRequest is the body of a render call. Definition wins over Tasks
// when both are set.
type RenderRequest struct {
	Definition *models.WorkflowDefinition   `json:"definition,omitempty"`
	Tasks      []models.Task                `json:"tasks,omitempty"`
	Direction  string                       `json:"direction,omitempty"`
	ShowStatus bool                         `json:"showStatus,omitempty"`
	Statuses   map[string]models.TaskStatus `json:"statuses,omitempty"`
}

// RenderResponse carries the Mermaid source of a flowchart
type RenderResponse struct {
	Diagram string `json:"diagram"`
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleNormalize turns an editor document into a workflow definition
func (s *Server) handleNormalize(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	doc, err := s.loader.ParseEditorDocument(body, formatOf(r))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	def, err := normalizer.NormalizeDocument(*doc, s.catalog)
	logger := s.logger.WithContext(r.Context())
	if err != nil {
		logger.LogNormalize(doc.Workflow.Name, 0, err)
		writeError(w, statusFor(err), err.Error())
		return
	}
	logger.LogNormalize(def.Name, def.TaskCount(), nil)
	writeJSON(w, http.StatusOK, def)
}

// handleRender renders a definition or task list as a flowchart
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	var req RenderRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	tasks := req.Tasks
	if req.Definition != nil {
		tasks = req.Definition.Tasks
	}

	diagram, err := flowchart.Render(tasks, s.renderOptions(req.Direction, req.ShowStatus, req.Statuses))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, RenderResponse{Diagram: diagram})
}

func readBody(r *http.Request) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r.Body, maxBodySize))
}
