// Package loader reads editor documents and workflow definitions from JSON
// or YAML.
package loader

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kaptinlin/jsonschema"
	"github.com/tidwall/gjson"

	"github.com/tcmartin/flowstudio/pkg/models"
	"github.com/tcmartin/flowstudio/pkg/utils"
)

var (
	ErrInvalidDocument   = errors.New("invalid editor document")
	ErrInvalidDefinition = errors.New("invalid workflow definition")
)

// DefaultLoader implements DocumentLoader with schema checks
type DefaultLoader struct {
	documentSchema   *jsonschema.Schema
	definitionSchema *jsonschema.Schema
}

// NewLoader creates a loader with compiled document schemas
func NewLoader() (*DefaultLoader, error) {
	compiler := jsonschema.NewCompiler()

	documentSchema, err := compiler.Compile([]byte(EditorDocumentSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile editor document schema: %w", err)
	}
	definitionSchema, err := compiler.Compile([]byte(DefinitionSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile definition schema: %w", err)
	}

	return &DefaultLoader{
		documentSchema:   documentSchema,
		definitionSchema: definitionSchema,
	}, nil
}

// DetectFormat picks the format from the file extension
func DetectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// LoadEditorDocument reads and parses an editor document file
func LoadEditorDocument(path string) (*models.EditorDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read editor document: %w", err)
	}
	l, err := NewLoader()
	if err != nil {
		return nil, err
	}
	return l.ParseEditorDocument(data, DetectFormat(path))
}

// LoadDefinition reads and parses a workflow definition file
func LoadDefinition(path string) (*models.WorkflowDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read workflow definition: %w", err)
	}
	l, err := NewLoader()
	if err != nil {
		return nil, err
	}
	return l.ParseDefinition(data, DetectFormat(path))
}

// IsEditorDocument reports whether data looks like an editor document
// rather than an engine definition
func IsEditorDocument(data []byte, format Format) bool {
	content, err := toJSON(data, format)
	if err != nil {
		return false
	}
	parsed := gjson.ParseBytes(content)
	if parsed.IsArray() {
		first := parsed.Get("0")
		return first.Get("id").Exists() && !first.Get("tasks").Exists() && !first.Get("taskReferenceName").Exists()
	}
	return parsed.Get("nodes").Exists()
}

// ParseEditorDocument decodes and validates an editor document
func (l *DefaultLoader) ParseEditorDocument(data []byte, format Format) (*models.EditorDocument, error) {
	content, err := toJSON(data, format)
	if err != nil {
		return nil, err
	}

	if bytes.HasPrefix(content, []byte("[")) {
		content = []byte(`{"nodes":` + string(content) + `}`)
	}

	if err := validateSchema(l.documentSchema, content); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	var doc models.EditorDocument
	if err := json.Unmarshal(content, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	if err := l.Validate(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// ParseDefinition decodes and validates a workflow definition
func (l *DefaultLoader) ParseDefinition(data []byte, format Format) (*models.WorkflowDefinition, error) {
	content, err := toJSON(data, format)
	if err != nil {
		return nil, err
	}

	parsed := gjson.ParseBytes(content)
	if parsed.IsArray() {
		items := parsed.Array()
		switch {
		case len(items) == 1 && items[0].Get("tasks").Exists():
			content = []byte(items[0].Raw)
		case len(items) > 1 && items[0].Get("tasks").Exists():
			return nil, fmt.Errorf("%w: expected one definition, found %d", ErrInvalidDefinition, len(items))
		default:
			content = []byte(`{"tasks":` + parsed.Raw + `}`)
		}
	}

	if err := validateSchema(l.definitionSchema, content); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}

	var def models.WorkflowDefinition
	if err := json.Unmarshal(content, &def); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDefinition, err)
	}
	if def.SchemaVersion == 0 {
		def.SchemaVersion = models.DefaultSchemaVersion
	}
	return &def, nil
}

// Validate checks that the document has nodes and that top-level node ids
// are set and unique
func (l *DefaultLoader) Validate(doc *models.EditorDocument) error {
	if doc == nil || len(doc.Nodes) == 0 {
		return fmt.Errorf("%w: document must have at least one node", ErrInvalidDocument)
	}

	seen := make(map[string]int, len(doc.Nodes))
	for i, node := range doc.Nodes {
		if node.ID == "" {
			return fmt.Errorf("%w: node %d has no id", ErrInvalidDocument, i)
		}
		if first, ok := seen[node.ID]; ok {
			return fmt.Errorf("%w: node id '%s' used by nodes %d and %d", ErrInvalidDocument, node.ID, first, i)
		}
		seen[node.ID] = i
	}
	return nil
}

func toJSON(data []byte, format Format) ([]byte, error) {
	if format == FormatYAML {
		return utils.YAMLToJSON(data)
	}

	content := bytes.TrimSpace(data)
	if !json.Valid(content) {
		return nil, fmt.Errorf("invalid JSON document")
	}
	return content, nil
}

func validateSchema(schema *jsonschema.Schema, content []byte) error {
	var value any
	if err := json.Unmarshal(content, &value); err != nil {
		return err
	}

	result := schema.Validate(value)
	if result.Valid {
		return nil
	}

	messages := make([]string, 0, len(result.Errors))
	for path, err := range result.Errors {
		messages = append(messages, fmt.Sprintf("%v: %s", path, err.Error()))
	}
	sort.Strings(messages)
	return errors.New(strings.Join(messages, "; "))
}
