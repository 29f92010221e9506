package storage

import (
	"sort"
	"strconv"
	"strings"
)

// DefaultPageSize is used when a filter asks for a page without a size
const DefaultPageSize = 10

// SearchFilter selects definitions by metadata. Zero fields match
// everything.
type SearchFilter struct {
	NameContains        string   `json:"name_contains,omitempty"`
	DescriptionContains string   `json:"description_contains,omitempty"`
	Tags                []string `json:"tags,omitempty"`
	Category            string   `json:"category,omitempty"`
	Status              string   `json:"status,omitempty"`
	CreatedAfter        int64    `json:"created_after,omitempty"`
	CreatedBefore       int64    `json:"created_before,omitempty"`
	UpdatedAfter        int64    `json:"updated_after,omitempty"`
	UpdatedBefore       int64    `json:"updated_before,omitempty"`
	Page                int      `json:"page,omitempty"`
	PageSize            int      `json:"page_size,omitempty"`
}

// Matches reports whether metadata satisfies every filter field
func (f SearchFilter) Matches(metadata DefinitionMetadata) bool {
	if f.NameContains != "" && !containsFold(metadata.Name, f.NameContains) {
		return false
	}
	if f.DescriptionContains != "" && !containsFold(metadata.Description, f.DescriptionContains) {
		return false
	}
	if len(f.Tags) > 0 && !hasAnyTag(metadata.Tags, f.Tags) {
		return false
	}
	if f.Category != "" && metadata.Category != f.Category {
		return false
	}
	if f.Status != "" && metadata.Status != f.Status {
		return false
	}
	if f.CreatedAfter != 0 && metadata.CreatedAt < f.CreatedAfter {
		return false
	}
	if f.CreatedBefore != 0 && metadata.CreatedAt > f.CreatedBefore {
		return false
	}
	if f.UpdatedAfter != 0 && metadata.UpdatedAt < f.UpdatedAfter {
		return false
	}
	if f.UpdatedBefore != 0 && metadata.UpdatedAt > f.UpdatedBefore {
		return false
	}
	return true
}

// Apply filters, sorts and paginates a metadata list
func (f SearchFilter) Apply(all []DefinitionMetadata) []DefinitionMetadata {
	results := []DefinitionMetadata{}
	for _, metadata := range all {
		if f.Matches(metadata) {
			results = append(results, metadata)
		}
	}
	sortMetadata(results)

	if f.Page <= 0 {
		return results
	}

	pageSize := f.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	start := (f.Page - 1) * pageSize
	if start >= len(results) {
		return []DefinitionMetadata{}
	}
	end := start + pageSize
	if end > len(results) {
		end = len(results)
	}
	return results[start:end]
}

// mergeMetadata copies the descriptive fields of update onto existing. An
// empty status keeps the stored one.
func mergeMetadata(existing, update DefinitionMetadata) DefinitionMetadata {
	existing.Tags = update.Tags
	existing.Category = update.Category
	if update.Status != "" {
		existing.Status = update.Status
	}
	existing.Custom = update.Custom
	if update.PublishedVersion != 0 {
		existing.PublishedVersion = update.PublishedVersion
		existing.PublishedAt = update.PublishedAt
	}
	return existing
}

// sortMetadata orders by name, then id
func sortMetadata(list []DefinitionMetadata) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].Name != list[j].Name {
			return list[i].Name < list[j].Name
		}
		return list[i].ID < list[j].ID
	})
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func hasAnyTag(tags, wanted []string) bool {
	for _, tag := range wanted {
		for _, have := range tags {
			if tag == have {
				return true
			}
		}
	}
	return false
}

// cacheKey identifies an engine definition by name and version
func cacheKey(name string, version int) string {
	return name + ":" + strconv.Itoa(version)
}
