package models

import "sort"

// catalogExtras are engine task fields without a dedicated Task slot
var catalogExtras = []string{
	"taskDefinition",
	"rateLimited",
	"defaultExclusiveJoinTask",
	"onStateChange",
	"permissive",
	"cacheConfig",
}

// FieldCatalog is the set of task fields allowed to survive cleaning
type FieldCatalog struct {
	fields map[string]bool
}

// NewFieldCatalog creates a catalog holding exactly the given fields
func NewFieldCatalog(fields ...string) FieldCatalog {
	catalog := FieldCatalog{fields: make(map[string]bool, len(fields))}
	for _, field := range fields {
		if field != "" {
			catalog.fields[field] = true
		}
	}
	return catalog
}

// DefaultFieldCatalog returns every Task field plus the common engine
// fields stored in Task.Extra
func DefaultFieldCatalog() FieldCatalog {
	fields := make([]string, 0, len(taskFields)+len(catalogExtras))
	for field := range taskFields {
		fields = append(fields, field)
	}
	return NewFieldCatalog(append(fields, catalogExtras...)...)
}

// With returns a copy of the catalog extended by fields
func (c FieldCatalog) With(fields ...string) FieldCatalog {
	return NewFieldCatalog(append(c.Fields(), fields...)...)
}

// Has reports whether field is in the catalog
func (c FieldCatalog) Has(field string) bool {
	return c.fields[field]
}

// Len returns the number of fields in the catalog
func (c FieldCatalog) Len() int {
	return len(c.fields)
}

// Fields returns the catalog fields sorted by name
func (c FieldCatalog) Fields() []string {
	fields := make([]string, 0, len(c.fields))
	for field := range c.fields {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}
