package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/tcmartin/flowstudio/pkg/models"
	"github.com/tcmartin/flowstudio/pkg/normalizer"
	"github.com/tcmartin/flowstudio/pkg/storage"
)

// Errors returned by the definition registry
var (
	ErrDefinitionNotFound = errors.New("definition not found")
	ErrVersionNotFound    = errors.New("definition version not found")
	ErrInvalidDefinition  = errors.New("invalid workflow definition")
	ErrInvalidMetadata    = errors.New("invalid definition metadata")
)

// DefinitionRegistryService implements the DefinitionRegistry interface
type DefinitionRegistryService struct {
	store    storage.DefinitionStore
	catalog  models.FieldCatalog
	validate *validator.Validate
	now      func() time.Time
}

// NewDefinitionRegistry creates a new definition registry service
func NewDefinitionRegistry(store storage.DefinitionStore, options Options) *DefinitionRegistryService {
	catalog := options.Catalog
	if catalog.Len() == 0 {
		catalog = models.DefaultFieldCatalog()
	}
	return &DefinitionRegistryService{
		store:    store,
		catalog:  catalog,
		validate: validator.New(),
		now:      time.Now,
	}
}

// CreateFromDocument normalizes an editor document and stores the result
func (r *DefinitionRegistryService) CreateFromDocument(doc models.EditorDocument) (DefinitionInfo, error) {
	def, err := normalizer.NormalizeDocument(doc, r.catalog)
	if err != nil {
		return DefinitionInfo{}, fmt.Errorf("%w: %w", ErrInvalidDefinition, err)
	}
	return r.Create(def)
}

// Create stores a new workflow definition
func (r *DefinitionRegistryService) Create(def *models.WorkflowDefinition) (DefinitionInfo, error) {
	data, err := r.encode(def)
	if err != nil {
		return DefinitionInfo{}, err
	}

	now := r.now().Unix()
	metadata := storage.DefinitionMetadata{
		ID:          uuid.New().String(),
		Name:        def.Name,
		Description: def.Description,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
		Status:      storage.StatusDraft,
	}

	if err := r.store.SaveDefinition(metadata, data); err != nil {
		return DefinitionInfo{}, fmt.Errorf("failed to save definition: %w", err)
	}

	return toInfo(metadata), nil
}

// Get retrieves the latest revision of a definition
func (r *DefinitionRegistryService) Get(id string) (*models.WorkflowDefinition, error) {
	data, err := r.store.GetDefinition(id)
	if err != nil {
		return nil, translate(err)
	}
	return decode(data)
}

// GetVersion retrieves a specific revision of a definition
func (r *DefinitionRegistryService) GetVersion(id string, version int) (*models.WorkflowDefinition, error) {
	data, err := r.store.GetDefinitionVersion(id, version)
	if err != nil {
		return nil, translate(err)
	}
	return decode(data)
}

// GetInfo retrieves the metadata of a definition
func (r *DefinitionRegistryService) GetInfo(id string) (DefinitionInfo, error) {
	metadata, err := r.store.GetDefinitionMetadata(id)
	if err != nil {
		return DefinitionInfo{}, translate(err)
	}
	return toInfo(metadata), nil
}

// List returns all definitions
func (r *DefinitionRegistryService) List() ([]DefinitionInfo, error) {
	metadataList, err := r.store.ListDefinitionsWithMetadata()
	if err != nil {
		return nil, fmt.Errorf("failed to list definitions: %w", err)
	}
	return toInfos(metadataList), nil
}

// ListVersions returns all revisions of a definition
func (r *DefinitionRegistryService) ListVersions(id string) ([]VersionInfo, error) {
	metadata, err := r.store.GetDefinitionMetadata(id)
	if err != nil {
		return nil, translate(err)
	}

	versions, err := r.store.ListDefinitionVersions(id)
	if err != nil {
		return nil, translate(err)
	}

	infos := make([]VersionInfo, len(versions))
	for i, version := range versions {
		infos[i] = VersionInfo{
			DefinitionID: id,
			Version:      version,
			Published:    version == metadata.PublishedVersion,
		}
	}
	return infos, nil
}

// Update stores def as a new revision of an existing definition
func (r *DefinitionRegistryService) Update(id string, def *models.WorkflowDefinition) (DefinitionInfo, error) {
	metadata, err := r.store.GetDefinitionMetadata(id)
	if err != nil {
		return DefinitionInfo{}, translate(err)
	}

	data, err := r.encode(def)
	if err != nil {
		return DefinitionInfo{}, err
	}

	metadata.Name = def.Name
	metadata.Description = def.Description
	metadata.Version++
	metadata.UpdatedAt = r.now().Unix()

	if err := r.store.SaveDefinition(metadata, data); err != nil {
		return DefinitionInfo{}, fmt.Errorf("failed to update definition: %w", err)
	}

	return toInfo(metadata), nil
}

// UpdateFromDocument normalizes doc and stores it as a new revision
func (r *DefinitionRegistryService) UpdateFromDocument(id string, doc models.EditorDocument) (DefinitionInfo, error) {
	def, err := normalizer.NormalizeDocument(doc, r.catalog)
	if err != nil {
		return DefinitionInfo{}, fmt.Errorf("%w: %w", ErrInvalidDefinition, err)
	}
	return r.Update(id, def)
}

// Delete removes a definition and all its revisions
func (r *DefinitionRegistryService) Delete(id string) error {
	if err := r.store.DeleteDefinition(id); err != nil {
		return translate(err)
	}
	return nil
}

// UpdateMetadata updates the metadata for a definition without changing it
func (r *DefinitionRegistryService) UpdateMetadata(id string, metadata DefinitionMetadata) error {
	if err := r.validate.Struct(metadata); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidMetadata, err)
	}

	update := storage.DefinitionMetadata{
		Tags:     metadata.Tags,
		Category: metadata.Category,
		Status:   metadata.Status,
		Custom:   metadata.Custom,
	}
	if err := r.store.UpdateDefinitionMetadata(id, update); err != nil {
		return translate(err)
	}
	return nil
}

// MarkPublished records that a revision was sent to the engine
func (r *DefinitionRegistryService) MarkPublished(id string, version int, at time.Time) error {
	existing, err := r.store.GetDefinitionMetadata(id)
	if err != nil {
		return translate(err)
	}

	update := existing
	update.Status = storage.StatusPublished
	update.PublishedVersion = version
	update.PublishedAt = at.Unix()
	if err := r.store.UpdateDefinitionMetadata(id, update); err != nil {
		return translate(err)
	}
	return nil
}

// Search searches for definitions based on metadata filters
func (r *DefinitionRegistryService) Search(filters SearchFilters) ([]DefinitionInfo, error) {
	filter := storage.SearchFilter{
		NameContains:        filters.NameContains,
		DescriptionContains: filters.DescriptionContains,
		Tags:                filters.Tags,
		Category:            filters.Category,
		Status:              filters.Status,
		CreatedAfter:        unixOrZero(filters.CreatedAfter),
		CreatedBefore:       unixOrZero(filters.CreatedBefore),
		UpdatedAfter:        unixOrZero(filters.UpdatedAfter),
		UpdatedBefore:       unixOrZero(filters.UpdatedBefore),
		Page:                filters.Page,
		PageSize:            filters.PageSize,
	}

	metadataList, err := r.store.SearchDefinitions(filter)
	if err != nil {
		return nil, fmt.Errorf("failed to search definitions: %w", err)
	}
	return toInfos(metadataList), nil
}

// encode checks a definition and serializes it for storage
func (r *DefinitionRegistryService) encode(def *models.WorkflowDefinition) ([]byte, error) {
	if def == nil {
		return nil, fmt.Errorf("%w: definition is required", ErrInvalidDefinition)
	}
	if def.Name == "" {
		return nil, fmt.Errorf("%w: workflow name is required", ErrInvalidDefinition)
	}
	if err := models.ValidateReferenceNames(def.Tasks); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDefinition, err)
	}
	if err := models.CheckTree(def.Tasks); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDefinition, err)
	}
	stored := *def
	if stored.SchemaVersion == 0 {
		stored.SchemaVersion = models.DefaultSchemaVersion
	}

	data, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal definition: %w", err)
	}
	return data, nil
}

func decode(data []byte) (*models.WorkflowDefinition, error) {
	var def models.WorkflowDefinition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to unmarshal stored definition: %w", err)
	}
	return &def, nil
}

// translate maps storage sentinels onto registry sentinels
func translate(err error) error {
	switch {
	case errors.Is(err, storage.ErrDefinitionNotFound):
		return ErrDefinitionNotFound
	case errors.Is(err, storage.ErrVersionNotFound):
		return ErrVersionNotFound
	default:
		return fmt.Errorf("definition store: %w", err)
	}
}

func toInfo(metadata storage.DefinitionMetadata) DefinitionInfo {
	info := DefinitionInfo{
		ID:               metadata.ID,
		Name:             metadata.Name,
		Description:      metadata.Description,
		Version:          metadata.Version,
		CreatedAt:        time.Unix(metadata.CreatedAt, 0),
		UpdatedAt:        time.Unix(metadata.UpdatedAt, 0),
		Tags:             metadata.Tags,
		Category:         metadata.Category,
		Status:           metadata.Status,
		PublishedVersion: metadata.PublishedVersion,
		Custom:           metadata.Custom,
	}
	if metadata.PublishedAt != 0 {
		at := time.Unix(metadata.PublishedAt, 0)
		info.PublishedAt = &at
	}
	return info
}

func toInfos(list []storage.DefinitionMetadata) []DefinitionInfo {
	infos := make([]DefinitionInfo, len(list))
	for i, metadata := range list {
		infos[i] = toInfo(metadata)
	}
	return infos
}

func unixOrZero(t *time.Time) int64 {
	if t == nil {
		return 0
	}
	return t.Unix()
}
