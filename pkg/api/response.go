package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tcmartin/flowstudio/pkg/conductor"
	"github.com/tcmartin/flowstudio/pkg/flowchart"
	"github.com/tcmartin/flowstudio/pkg/loader"
	"github.com/tcmartin/flowstudio/pkg/normalizer"
	"github.com/tcmartin/flowstudio/pkg/registry"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// statusFor maps domain errors onto HTTP status codes
func statusFor(err error) int {
	var apiErr *conductor.APIError
	switch {
	case errors.Is(err, registry.ErrDefinitionNotFound),
		errors.Is(err, registry.ErrVersionNotFound),
		errors.Is(err, conductor.ErrWorkflowNotFound):
		return http.StatusNotFound
	case errors.Is(err, normalizer.ErrUnresolvedTaskType),
		errors.Is(err, normalizer.ErrDuplicateReference),
		errors.Is(err, normalizer.ErrMissingReference),
		errors.Is(err, flowchart.ErrMaxDepthExceeded):
		return http.StatusUnprocessableEntity
	case errors.Is(err, registry.ErrInvalidDefinition),
		errors.Is(err, registry.ErrInvalidMetadata),
		errors.Is(err, loader.ErrInvalidDocument),
		errors.Is(err, loader.ErrInvalidDefinition),
		errors.Is(err, flowchart.ErrInvalidDirection):
		return http.StatusBadRequest
	case errors.As(err, &apiErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// engineStatus is statusFor for calls that went through the engine, where
// unclassified failures are the engine's
func engineStatus(err error) int {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		return http.StatusBadGateway
	}
	return status
}

// formatOf picks the document format from the request content type
func formatOf(r *http.Request) loader.Format {
	if strings.Contains(r.Header.Get("Content-Type"), "yaml") {
		return loader.FormatYAML
	}
	return loader.FormatJSON
}

// wrapLoader marks undecodable bodies as invalid documents
func wrapLoader(err error) error {
	if errors.Is(err, loader.ErrInvalidDocument) || errors.Is(err, loader.ErrInvalidDefinition) {
		return err
	}
	return fmt.Errorf("%w: %w", loader.ErrInvalidDocument, err)
}
