package loader

import (
	"github.com/tcmartin/flowstudio/pkg/models"
)

// Format is the encoding of a document on disk or on the wire
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// DocumentLoader parses editor documents and engine workflow definitions.
type DocumentLoader interface {
	// ParseEditorDocument decodes an editor document. A bare node list is
	// accepted as a document without workflow settings.
	ParseEditorDocument(data []byte, format Format) (*models.EditorDocument, error)

	// ParseDefinition decodes a workflow definition, a one-element
	// definition list or a bare task list
	ParseDefinition(data []byte, format Format) (*models.WorkflowDefinition, error)

	// Validate checks the document structure before normalization
	Validate(doc *models.EditorDocument) error
}
