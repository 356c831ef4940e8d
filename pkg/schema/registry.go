// Package schema declares the logical schema the filter engine enforces on
// top of a store that has none: which fields can be filtered or sorted, their
// scalar types, and which composite secondary indexes exist.
package schema

import (
	"sort"

	"github.com/adfharrison1/go-crm/pkg/domain"
)

// FieldType is the scalar type of a declared field.
type FieldType string

const (
	FieldTypeString  FieldType = "string"
	FieldTypeInteger FieldType = "integer"
)

// Kind maps the field type onto the value kind records carry.
func (t FieldType) Kind() domain.ValueKind {
	if t == FieldTypeInteger {
		return domain.KindInteger
	}
	return domain.KindString
}

// Field describes one declared field.
type Field struct {
	Name       string
	Type       FieldType
	Filterable bool
	Sortable   bool
}

// IndexDescriptor describes a composite secondary index: records sharing a
// partition value are stored ordered by the sort field.
type IndexDescriptor struct {
	Name           string `json:"name"`
	PartitionField string `json:"partition_field"`
	SortField      string `json:"sort_field"`
}

// Registry is an immutable lookup over declared fields and indexes.
// It is safe for concurrent use.
type Registry struct {
	fields  map[string]Field
	indexes map[[2]string]IndexDescriptor
	ordered []IndexDescriptor
}

// NewRegistry builds a registry. Later declarations of the same field or
// (partition, sort) pair replace earlier ones.
func NewRegistry(fields []Field, indexes []IndexDescriptor) *Registry {
	r := &Registry{
		fields:  make(map[string]Field, len(fields)),
		indexes: make(map[[2]string]IndexDescriptor, len(indexes)),
	}
	for _, f := range fields {
		r.fields[f.Name] = f
	}
	for _, idx := range indexes {
		key := [2]string{idx.PartitionField, idx.SortField}
		if _, exists := r.indexes[key]; !exists {
			r.ordered = append(r.ordered, idx)
		} else {
			for i := range r.ordered {
				if r.ordered[i].PartitionField == idx.PartitionField && r.ordered[i].SortField == idx.SortField {
					r.ordered[i] = idx
				}
			}
		}
		r.indexes[key] = idx
	}
	return r
}

// IsFilterable reports whether field may appear in a FilterSet.
func (r *Registry) IsFilterable(field string) bool {
	f, ok := r.fields[field]
	return ok && f.Filterable
}

// IsSortable reports whether field may be used in a SortSpec.
func (r *Registry) IsSortable(field string) bool {
	f, ok := r.fields[field]
	return ok && f.Sortable
}

// IndexFor returns the index partitioned by equalityField and sorted by
// sortField, if one is declared.
func (r *Registry) IndexFor(equalityField, sortField string) (IndexDescriptor, bool) {
	idx, ok := r.indexes[[2]string{equalityField, sortField}]
	return idx, ok
}

// IndexByName looks an index up by name.
func (r *Registry) IndexByName(name string) (IndexDescriptor, bool) {
	for _, idx := range r.ordered {
		if idx.Name == name {
			return idx, true
		}
	}
	return IndexDescriptor{}, false
}

// Field returns the declaration of name.
func (r *Registry) Field(name string) (Field, bool) {
	f, ok := r.fields[name]
	return f, ok
}

// Indexes returns all declared indexes in declaration order.
func (r *Registry) Indexes() []IndexDescriptor {
	out := make([]IndexDescriptor, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// FilterableFields returns the filterable field names, sorted.
func (r *Registry) FilterableFields() []string {
	var names []string
	for name, f := range r.fields {
		if f.Filterable {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// SortableFields returns the sortable field names, sorted.
func (r *Registry) SortableFields() []string {
	var names []string
	for name, f := range r.fields {
		if f.Sortable {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
