package storage

import (
	"sort"
	"sync"
	"time"
)

// MemoryProvider implements the StorageProvider interface using in-memory storage
type MemoryProvider struct {
	definitionStore *MemoryDefinitionStore
	cacheStore      *MemoryCacheStore
}

// NewMemoryProvider creates a new in-memory storage provider
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		definitionStore: NewMemoryDefinitionStore(),
		cacheStore:      NewMemoryCacheStore(),
	}
}

// Initialize sets up the storage backend
func (p *MemoryProvider) Initialize() error {
	// Nothing to initialize for in-memory storage
	return nil
}

// Close cleans up resources
func (p *MemoryProvider) Close() error {
	// Nothing to close for in-memory storage
	return nil
}

// GetDefinitionStore returns a store for workflow definitions
func (p *MemoryProvider) GetDefinitionStore() DefinitionStore {
	return p.definitionStore
}

// GetCacheStore returns a store for engine definitions
func (p *MemoryProvider) GetCacheStore() CacheStore {
	return p.cacheStore
}

// MemoryDefinitionStore implements the DefinitionStore interface using in-memory storage
type MemoryDefinitionStore struct {
	versions map[string]map[int][]byte
	metadata map[string]DefinitionMetadata
	mu       sync.RWMutex
}

// NewMemoryDefinitionStore creates a new in-memory definition store
func NewMemoryDefinitionStore() *MemoryDefinitionStore {
	return &MemoryDefinitionStore{
		versions: make(map[string]map[int][]byte),
		metadata: make(map[string]DefinitionMetadata),
	}
}

// SaveDefinition persists a definition version
func (s *MemoryDefinitionStore) SaveDefinition(metadata DefinitionMetadata, definition []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.versions[metadata.ID]; !ok {
		s.versions[metadata.ID] = make(map[int][]byte)
	}

	stored := make([]byte, len(definition))
	copy(stored, definition)
	s.versions[metadata.ID][metadata.Version] = stored
	s.metadata[metadata.ID] = metadata

	return nil
}

// GetDefinition retrieves the latest version of a definition
func (s *MemoryDefinitionStore) GetDefinition(id string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	versions, ok := s.versions[id]
	if !ok {
		return nil, ErrDefinitionNotFound
	}

	latest := 0
	for version := range versions {
		if version > latest {
			latest = version
		}
	}

	return versions[latest], nil
}

// GetDefinitionVersion retrieves a specific version of a definition
func (s *MemoryDefinitionStore) GetDefinitionVersion(id string, version int) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	versions, ok := s.versions[id]
	if !ok {
		return nil, ErrDefinitionNotFound
	}

	definition, ok := versions[version]
	if !ok {
		return nil, ErrVersionNotFound
	}

	return definition, nil
}

// ListDefinitionVersions returns the stored versions in ascending order
func (s *MemoryDefinitionStore) ListDefinitionVersions(id string) ([]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	versions, ok := s.versions[id]
	if !ok {
		return nil, ErrDefinitionNotFound
	}

	list := make([]int, 0, len(versions))
	for version := range versions {
		list = append(list, version)
	}
	sort.Ints(list)

	return list, nil
}

// ListDefinitions returns all definition IDs
func (s *MemoryDefinitionStore) ListDefinitions() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.metadata))
	for id := range s.metadata {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return ids, nil
}

// DeleteDefinition removes a definition and all its versions
func (s *MemoryDefinitionStore) DeleteDefinition(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.metadata[id]; !ok {
		return ErrDefinitionNotFound
	}

	delete(s.versions, id)
	delete(s.metadata, id)

	return nil
}

// GetDefinitionMetadata retrieves metadata for a definition
func (s *MemoryDefinitionStore) GetDefinitionMetadata(id string) (DefinitionMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	metadata, ok := s.metadata[id]
	if !ok {
		return DefinitionMetadata{}, ErrDefinitionNotFound
	}

	return metadata, nil
}

// ListDefinitionsWithMetadata returns metadata for every definition
func (s *MemoryDefinitionStore) ListDefinitionsWithMetadata() ([]DefinitionMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]DefinitionMetadata, 0, len(s.metadata))
	for _, metadata := range s.metadata {
		list = append(list, metadata)
	}
	sortMetadata(list)

	return list, nil
}

// UpdateDefinitionMetadata updates the descriptive metadata fields
func (s *MemoryDefinitionStore) UpdateDefinitionMetadata(id string, metadata DefinitionMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.metadata[id]
	if !ok {
		return ErrDefinitionNotFound
	}

	existing = mergeMetadata(existing, metadata)
	existing.UpdatedAt = time.Now().Unix()
	s.metadata[id] = existing

	return nil
}

// SearchDefinitions returns the definitions matching filter
func (s *MemoryDefinitionStore) SearchDefinitions(filter SearchFilter) ([]DefinitionMetadata, error) {
	all, err := s.ListDefinitionsWithMetadata()
	if err != nil {
		return nil, err
	}
	return filter.Apply(all), nil
}

type cacheEntry struct {
	definition []byte
	expiresAt  time.Time
}

// MemoryCacheStore implements the CacheStore interface using in-memory storage
type MemoryCacheStore struct {
	entries map[string]cacheEntry
	now     func() time.Time
	mu      sync.RWMutex
}

// NewMemoryCacheStore creates a new in-memory cache store
func NewMemoryCacheStore() *MemoryCacheStore {
	return &MemoryCacheStore{
		entries: make(map[string]cacheEntry),
		now:     time.Now,
	}
}

// PutDefinition stores a definition; a zero ttl never expires
func (s *MemoryCacheStore) PutDefinition(name string, version int, definition []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := cacheEntry{definition: append([]byte(nil), definition...)}
	if ttl > 0 {
		entry.expiresAt = s.now().Add(ttl)
	}
	s.entries[cacheKey(name, version)] = entry

	return nil
}

// GetDefinition returns a cached definition or ErrCacheMiss
func (s *MemoryCacheStore) GetDefinition(name string, version int) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[cacheKey(name, version)]
	if !ok {
		return nil, ErrCacheMiss
	}
	if !entry.expiresAt.IsZero() && !s.now().Before(entry.expiresAt) {
		return nil, ErrCacheMiss
	}

	return entry.definition, nil
}

// DeleteDefinition removes a cached definition
func (s *MemoryCacheStore) DeleteDefinition(name string, version int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, cacheKey(name, version))
	return nil
}
