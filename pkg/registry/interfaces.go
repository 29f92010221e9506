// Package registry provides functionality for managing workflow definitions.
package registry

import (
	"context"
	"time"

	"github.com/tcmartin/flowstudio/pkg/models"
)

// DefinitionRegistry manages stored workflow definitions. Every create or
// update writes a new numbered revision.
type DefinitionRegistry interface {
	// CreateFromDocument normalizes an editor document and stores the result
	CreateFromDocument(doc models.EditorDocument) (DefinitionInfo, error)

	// Create stores a new workflow definition
	Create(def *models.WorkflowDefinition) (DefinitionInfo, error)

	// Get retrieves the latest revision of a definition
	Get(id string) (*models.WorkflowDefinition, error)

	// GetVersion retrieves a specific revision of a definition
	GetVersion(id string, version int) (*models.WorkflowDefinition, error)

	// GetInfo retrieves the metadata of a definition
	GetInfo(id string) (DefinitionInfo, error)

	// List returns all definitions
	List() ([]DefinitionInfo, error)

	// ListVersions returns all revisions of a definition
	ListVersions(id string) ([]VersionInfo, error)

	// Update stores def as a new revision of an existing definition
	Update(id string, def *models.WorkflowDefinition) (DefinitionInfo, error)

	// UpdateFromDocument normalizes doc and stores it as a new revision
	UpdateFromDocument(id string, doc models.EditorDocument) (DefinitionInfo, error)

	// Delete removes a definition and all its revisions
	Delete(id string) error

	// UpdateMetadata updates the metadata for a definition without changing it
	UpdateMetadata(id string, metadata DefinitionMetadata) error

	// MarkPublished records that a revision was sent to the engine
	MarkPublished(id string, version int, at time.Time) error

	// Search searches for definitions based on metadata filters
	Search(filters SearchFilters) ([]DefinitionInfo, error)
}

// EngineClient is the part of the engine API the registry services use
type EngineClient interface {
	PutWorkflows(ctx context.Context, defs ...*models.WorkflowDefinition) error
	GetWorkflow(ctx context.Context, name string, version int) (*models.WorkflowDefinition, error)
}

// DefinitionInfo contains metadata about a definition
type DefinitionInfo struct {
	ID               string         `json:"id"`
	Name             string         `json:"name"`
	Description      string         `json:"description"`
	Version          int            `json:"version"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	Tags             []string       `json:"tags,omitempty"`
	Category         string         `json:"category,omitempty"`
	Status           string         `json:"status,omitempty"`
	PublishedVersion int            `json:"published_version,omitempty"`
	PublishedAt      *time.Time     `json:"published_at,omitempty"`
	Custom           map[string]any `json:"custom,omitempty"`
}

// VersionInfo describes one stored revision
type VersionInfo struct {
	DefinitionID string `json:"definition_id"`
	Version      int    `json:"version"`
	Published    bool   `json:"published"`
}

// DefinitionMetadata contains additional metadata for a definition
type DefinitionMetadata struct {
	// Tags for categorizing and searching definitions
	Tags []string `json:"tags,omitempty"`

	// Category for grouping definitions
	Category string `json:"category,omitempty"`

	// Status of the definition (draft, published, archived)
	Status string `json:"status,omitempty" validate:"omitempty,oneof=draft published archived"`

	// Custom metadata fields
	Custom map[string]any `json:"custom,omitempty"`
}

// SearchFilters defines the filters for searching definitions
type SearchFilters struct {
	// Search by name (partial match)
	NameContains string `json:"name_contains,omitempty"`

	// Search by description (partial match)
	DescriptionContains string `json:"description_contains,omitempty"`

	// Filter by tags (match any tag in the list)
	Tags []string `json:"tags,omitempty"`

	// Filter by category (exact match)
	Category string `json:"category,omitempty"`

	// Filter by status (exact match)
	Status string `json:"status,omitempty"`

	// Filter by creation date range
	CreatedAfter  *time.Time `json:"created_after,omitempty"`
	CreatedBefore *time.Time `json:"created_before,omitempty"`

	// Filter by update date range
	UpdatedAfter  *time.Time `json:"updated_after,omitempty"`
	UpdatedBefore *time.Time `json:"updated_before,omitempty"`

	// Pagination parameters
	Page     int `json:"page,omitempty"`      // 1-based page number
	PageSize int `json:"page_size,omitempty"` // Number of items per page
}

// Options contains options for creating a definition registry
type Options struct {
	// Catalog is the field catalog used when normalizing editor documents
	Catalog models.FieldCatalog
}
