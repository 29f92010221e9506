package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDefinitionStore(t *testing.T, store DefinitionStore, idPrefix string) {
	t.Helper()

	now := time.Now().Unix()
	orderID := idPrefix + "order"
	refundID := idPrefix + "refund"

	order := DefinitionMetadata{
		ID:          orderID,
		Name:        "order_fulfillment",
		Description: "Ships paid orders",
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
		Status:      StatusDraft,
	}

	t.Run("missing definition", func(t *testing.T) {
		_, err := store.GetDefinition(idPrefix + "missing")
		assert.ErrorIs(t, err, ErrDefinitionNotFound)

		_, err = store.GetDefinitionMetadata(idPrefix + "missing")
		assert.ErrorIs(t, err, ErrDefinitionNotFound)

		_, err = store.ListDefinitionVersions(idPrefix + "missing")
		assert.ErrorIs(t, err, ErrDefinitionNotFound)

		assert.ErrorIs(t, store.DeleteDefinition(idPrefix+"missing"), ErrDefinitionNotFound)
	})

	t.Run("versions", func(t *testing.T) {
		require.NoError(t, store.SaveDefinition(order, []byte(`{"version":1}`)))

		order.Version = 2
		require.NoError(t, store.SaveDefinition(order, []byte(`{"version":2}`)))

		latest, err := store.GetDefinition(orderID)
		require.NoError(t, err)
		assert.JSONEq(t, `{"version":2}`, string(latest))

		first, err := store.GetDefinitionVersion(orderID, 1)
		require.NoError(t, err)
		assert.JSONEq(t, `{"version":1}`, string(first))

		_, err = store.GetDefinitionVersion(orderID, 7)
		assert.ErrorIs(t, err, ErrVersionNotFound)

		versions, err := store.ListDefinitionVersions(orderID)
		require.NoError(t, err)
		assert.Equal(t, []int{1, 2}, versions)

		metadata, err := store.GetDefinitionMetadata(orderID)
		require.NoError(t, err)
		assert.Equal(t, 2, metadata.Version)
		assert.Equal(t, "order_fulfillment", metadata.Name)
	})

	t.Run("metadata and search", func(t *testing.T) {
		refund := DefinitionMetadata{
			ID:        refundID,
			Name:      "refund_flow",
			Version:   1,
			CreatedAt: now,
			UpdatedAt: now,
			Status:    StatusDraft,
		}
		require.NoError(t, store.SaveDefinition(refund, []byte(`{}`)))

		err := store.UpdateDefinitionMetadata(refundID, DefinitionMetadata{
			Tags:     []string{"payments", "support"},
			Category: "finance",
			Status:   StatusPublished,
			Custom:   map[string]any{"team": "billing"},
		})
		require.NoError(t, err)

		metadata, err := store.GetDefinitionMetadata(refundID)
		require.NoError(t, err)
		assert.Equal(t, []string{"payments", "support"}, metadata.Tags)
		assert.Equal(t, "finance", metadata.Category)
		assert.Equal(t, StatusPublished, metadata.Status)
		assert.Equal(t, "billing", metadata.Custom["team"])
		assert.Equal(t, "refund_flow", metadata.Name)

		// An update without status keeps the stored one
		require.NoError(t, store.UpdateDefinitionMetadata(refundID, DefinitionMetadata{
			Tags:     []string{"payments"},
			Category: "finance",
		}))
		metadata, err = store.GetDefinitionMetadata(refundID)
		require.NoError(t, err)
		assert.Equal(t, StatusPublished, metadata.Status)
		assert.Equal(t, []string{"payments"}, metadata.Tags)

		assert.ErrorIs(t, store.UpdateDefinitionMetadata(idPrefix+"missing", DefinitionMetadata{}), ErrDefinitionNotFound)

		ids, err := store.ListDefinitions()
		require.NoError(t, err)
		assert.Contains(t, ids, orderID)
		assert.Contains(t, ids, refundID)

		found, err := store.SearchDefinitions(SearchFilter{Tags: []string{"payments"}})
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, refundID, found[0].ID)

		found, err = store.SearchDefinitions(SearchFilter{NameContains: "ORDER"})
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, orderID, found[0].ID)

		found, err = store.SearchDefinitions(SearchFilter{Status: StatusDraft, Category: "finance"})
		require.NoError(t, err)
		assert.Empty(t, found)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.DeleteDefinition(orderID))

		_, err := store.GetDefinition(orderID)
		assert.ErrorIs(t, err, ErrDefinitionNotFound)

		_, err = store.GetDefinitionVersion(orderID, 1)
		assert.ErrorIs(t, err, ErrDefinitionNotFound)

		ids, err := store.ListDefinitions()
		require.NoError(t, err)
		assert.NotContains(t, ids, orderID)

		require.NoError(t, store.DeleteDefinition(refundID))
	})
}

func testCacheStore(t *testing.T, cache CacheStore, namePrefix string) {
	t.Helper()

	name := namePrefix + "order_fulfillment"

	_, err := cache.GetDefinition(name, 1)
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, cache.PutDefinition(name, 1, []byte(`{"name":"order_fulfillment"}`), 0))
	require.NoError(t, cache.PutDefinition(name, 0, []byte(`{"latest":true}`), time.Hour))

	data, err := cache.GetDefinition(name, 1)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"order_fulfillment"}`, string(data))

	data, err = cache.GetDefinition(name, 0)
	require.NoError(t, err)
	assert.JSONEq(t, `{"latest":true}`, string(data))

	require.NoError(t, cache.DeleteDefinition(name, 1))
	_, err = cache.GetDefinition(name, 1)
	assert.ErrorIs(t, err, ErrCacheMiss)

	require.NoError(t, cache.DeleteDefinition(name, 0))
}
