package registry

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tcmartin/flowstudio/pkg/models"
	"github.com/tcmartin/flowstudio/pkg/normalizer"
	"github.com/tcmartin/flowstudio/pkg/storage"
)

func newTestRegistry() *DefinitionRegistryService {
	return NewDefinitionRegistry(storage.NewMemoryDefinitionStore(), Options{})
}

func testDocument(name string, ids ...string) models.EditorDocument {
	doc := models.EditorDocument{Workflow: models.WorkflowMetadata{Name: name, Description: "test flow"}}
	for _, id := range ids {
		doc.Nodes = append(doc.Nodes, models.EditorNode{
			ID:       id,
			TaskType: "SIMPLE",
			Label:    id,
			Config:   json.RawMessage(`{"inputParameters":{"orderId":"${workflow.input.orderId}"}}`),
		})
	}
	return doc
}

func testDefinition(name string, refs ...string) *models.WorkflowDefinition {
	def := &models.WorkflowDefinition{WorkflowMetadata: models.WorkflowMetadata{Name: name}}
	for _, ref := range refs {
		def.Tasks = append(def.Tasks, models.Task{
			Name:              ref,
			TaskReferenceName: ref,
			Type:              models.TaskTypeSimple,
		})
	}
	return def
}

func TestCreateFromDocument(t *testing.T) {
	registry := newTestRegistry()

	info, err := registry.CreateFromDocument(testDocument("orders", "reserve", "charge"))
	require.NoError(t, err)

	_, err = uuid.Parse(info.ID)
	assert.NoError(t, err)
	assert.Equal(t, "orders", info.Name)
	assert.Equal(t, "test flow", info.Description)
	assert.Equal(t, 1, info.Version)
	assert.Equal(t, storage.StatusDraft, info.Status)

	def, err := registry.Get(info.ID)
	require.NoError(t, err)
	require.Len(t, def.Tasks, 2)
	assert.Equal(t, "reserve", def.Tasks[0].TaskReferenceName)
	assert.Equal(t, "charge", def.Tasks[1].TaskReferenceName)
	assert.Equal(t, "${workflow.input.orderId}", def.Tasks[0].InputParameters["orderId"])
	assert.Equal(t, models.DefaultSchemaVersion, def.SchemaVersion)
}

func TestCreateFromDocumentUnresolved(t *testing.T) {
	registry := newTestRegistry()

	doc := testDocument("orders", "reserve")
	doc.Nodes = append(doc.Nodes, models.EditorNode{ID: "mystery", Label: "Mystery"})

	_, err := registry.CreateFromDocument(doc)
	assert.ErrorIs(t, err, ErrInvalidDefinition)
	assert.ErrorIs(t, err, normalizer.ErrUnresolvedTaskType)

	list, err := registry.List()
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCreateValidation(t *testing.T) {
	registry := newTestRegistry()

	tests := []struct {
		name string
		def  *models.WorkflowDefinition
	}{
		{"nil", nil},
		{"no name", testDefinition("", "a")},
		{"duplicate refs", testDefinition("orders", "a", "a")},
		{"missing required", &models.WorkflowDefinition{
			WorkflowMetadata: models.WorkflowMetadata{Name: "orders"},
			Tasks:            []models.Task{{Name: "j", TaskReferenceName: "j", Type: models.TaskTypeJoin}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := registry.Create(tt.def)
			assert.ErrorIs(t, err, ErrInvalidDefinition)
		})
	}
}

func TestCreateDoesNotMutateInput(t *testing.T) {
	registry := newTestRegistry()

	def := testDefinition("orders", "a")
	_, err := registry.Create(def)
	require.NoError(t, err)
	assert.Equal(t, 0, def.SchemaVersion)
}

func TestVersioning(t *testing.T) {
	registry := newTestRegistry()

	info, err := registry.Create(testDefinition("orders", "a"))
	require.NoError(t, err)

	updated, err := registry.Update(info.ID, testDefinition("orders_v2", "a", "b"))
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Version)
	assert.Equal(t, "orders_v2", updated.Name)

	updated, err = registry.UpdateFromDocument(info.ID, testDocument("orders_v3", "x", "y", "z"))
	require.NoError(t, err)
	assert.Equal(t, 3, updated.Version)

	latest, err := registry.Get(info.ID)
	require.NoError(t, err)
	assert.Len(t, latest.Tasks, 3)

	first, err := registry.GetVersion(info.ID, 1)
	require.NoError(t, err)
	assert.Len(t, first.Tasks, 1)
	assert.Equal(t, "orders", first.Name)

	_, err = registry.GetVersion(info.ID, 9)
	assert.ErrorIs(t, err, ErrVersionNotFound)

	versions, err := registry.ListVersions(info.ID)
	require.NoError(t, err)
	require.Len(t, versions, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{versions[0].Version, versions[1].Version, versions[2].Version})

	_, err = registry.Update(info.ID, testDefinition("", "a"))
	assert.ErrorIs(t, err, ErrInvalidDefinition)

	_, err = registry.Update("missing", testDefinition("orders", "a"))
	assert.ErrorIs(t, err, ErrDefinitionNotFound)
}

func TestDelete(t *testing.T) {
	registry := newTestRegistry()

	info, err := registry.Create(testDefinition("orders", "a"))
	require.NoError(t, err)

	require.NoError(t, registry.Delete(info.ID))

	_, err = registry.Get(info.ID)
	assert.ErrorIs(t, err, ErrDefinitionNotFound)
	assert.ErrorIs(t, registry.Delete(info.ID), ErrDefinitionNotFound)
}

func TestMetadataAndSearch(t *testing.T) {
	registry := newTestRegistry()

	orders, err := registry.Create(testDefinition("order_fulfillment", "a"))
	require.NoError(t, err)
	refunds, err := registry.Create(testDefinition("refund_flow", "a"))
	require.NoError(t, err)

	require.NoError(t, registry.UpdateMetadata(refunds.ID, DefinitionMetadata{
		Tags:     []string{"payments"},
		Category: "finance",
		Status:   storage.StatusArchived,
	}))

	err = registry.UpdateMetadata(refunds.ID, DefinitionMetadata{Status: "deleted"})
	assert.ErrorIs(t, err, ErrInvalidMetadata)

	assert.ErrorIs(t, registry.UpdateMetadata("missing", DefinitionMetadata{}), ErrDefinitionNotFound)

	info, err := registry.GetInfo(refunds.ID)
	require.NoError(t, err)
	assert.Equal(t, "finance", info.Category)
	assert.Equal(t, storage.StatusArchived, info.Status)

	found, err := registry.Search(SearchFilters{Tags: []string{"payments"}})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, refunds.ID, found[0].ID)

	found, err = registry.Search(SearchFilters{NameContains: "order"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, orders.ID, found[0].ID)

	future := time.Now().Add(time.Hour)
	found, err = registry.Search(SearchFilters{CreatedAfter: &future})
	require.NoError(t, err)
	assert.Empty(t, found)

	list, err := registry.List()
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestMarkPublished(t *testing.T) {
	registry := newTestRegistry()

	info, err := registry.Create(testDefinition("orders", "a"))
	require.NoError(t, err)
	require.NoError(t, registry.UpdateMetadata(info.ID, DefinitionMetadata{Tags: []string{"core"}}))

	at := time.Unix(1700000000, 0)
	require.NoError(t, registry.MarkPublished(info.ID, 1, at))

	got, err := registry.GetInfo(info.ID)
	require.NoError(t, err)
	assert.Equal(t, storage.StatusPublished, got.Status)
	assert.Equal(t, 1, got.PublishedVersion)
	require.NotNil(t, got.PublishedAt)
	assert.Equal(t, at.Unix(), got.PublishedAt.Unix())
	assert.Equal(t, []string{"core"}, got.Tags)

	versions, err := registry.ListVersions(info.ID)
	require.NoError(t, err)
	assert.True(t, versions[0].Published)
}
