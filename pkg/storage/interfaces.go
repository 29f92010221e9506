// Package storage provides interfaces for persistent storage.
package storage

import (
	"errors"
	"time"
)

// Errors returned by every storage backend
var (
	ErrDefinitionNotFound = errors.New("definition not found")
	ErrVersionNotFound    = errors.New("definition version not found")
	ErrCacheMiss          = errors.New("cache miss")
)

// StorageProvider defines the interface for persistence backends
type StorageProvider interface {
	// Initialize sets up the storage backend
	Initialize() error

	// Close cleans up resources
	Close() error

	// GetDefinitionStore returns a store for studio workflow definitions
	GetDefinitionStore() DefinitionStore

	// GetCacheStore returns a store for definitions fetched from the engine
	GetCacheStore() CacheStore
}

// DefinitionStore manages workflow definition persistence. Every save
// creates or replaces one numbered version; the highest version is the
// current one.
type DefinitionStore interface {
	// SaveDefinition persists a definition as version metadata.Version and
	// replaces the stored metadata
	SaveDefinition(metadata DefinitionMetadata, definition []byte) error

	// GetDefinition retrieves the latest version of a definition
	GetDefinition(id string) ([]byte, error)

	// GetDefinitionVersion retrieves a specific version of a definition
	GetDefinitionVersion(id string, version int) ([]byte, error)

	// ListDefinitionVersions returns the stored versions in ascending order
	ListDefinitionVersions(id string) ([]int, error)

	// ListDefinitions returns all definition IDs
	ListDefinitions() ([]string, error)

	// DeleteDefinition removes a definition and all its versions
	DeleteDefinition(id string) error

	// GetDefinitionMetadata retrieves metadata for a definition
	GetDefinitionMetadata(id string) (DefinitionMetadata, error)

	// ListDefinitionsWithMetadata returns metadata for every definition
	ListDefinitionsWithMetadata() ([]DefinitionMetadata, error)

	// UpdateDefinitionMetadata updates the descriptive metadata fields
	UpdateDefinitionMetadata(id string, metadata DefinitionMetadata) error

	// SearchDefinitions returns the definitions matching filter
	SearchDefinitions(filter SearchFilter) ([]DefinitionMetadata, error)
}

// CacheStore keeps the last definition fetched from the engine per name
// and version. Version 0 stands for the latest engine version.
type CacheStore interface {
	// PutDefinition stores a definition; a zero ttl never expires
	PutDefinition(name string, version int, definition []byte, ttl time.Duration) error

	// GetDefinition returns a cached definition or ErrCacheMiss
	GetDefinition(name string, version int) ([]byte, error)

	// DeleteDefinition removes a cached definition
	DeleteDefinition(name string, version int) error
}

// Definition statuses
const (
	StatusDraft     = "draft"
	StatusPublished = "published"
	StatusArchived  = "archived"
)

// DefinitionMetadata contains information about a stored definition
type DefinitionMetadata struct {
	// ID of the definition
	ID string `json:"id"`

	// Name of the workflow
	Name string `json:"name"`

	// Description of the workflow
	Description string `json:"description"`

	// Version is the latest stored version
	Version int `json:"version"`

	// CreatedAt is when the definition was created
	CreatedAt int64 `json:"created_at"`

	// UpdatedAt is when the definition was last updated
	UpdatedAt int64 `json:"updated_at"`

	// Tags for categorizing and searching definitions
	Tags []string `json:"tags,omitempty"`

	// Category for grouping definitions
	Category string `json:"category,omitempty"`

	// Status of the definition (draft, published, archived)
	Status string `json:"status,omitempty"`

	// PublishedVersion is the stored version last sent to the engine
	PublishedVersion int `json:"published_version,omitempty"`

	// PublishedAt is when the definition was last published
	PublishedAt int64 `json:"published_at,omitempty"`

	// Custom metadata fields
	Custom map[string]any `json:"custom,omitempty"`
}
