// Package query validates filter requests and chooses an access path for
// them. Both steps are pure: they consult the schema registry and nothing
// else.
package query

import (
	"sort"

	"github.com/adfharrison1/go-crm/pkg/cursor"
	"github.com/adfharrison1/go-crm/pkg/domain"
	"github.com/adfharrison1/go-crm/pkg/schema"
)

// Page size bounds.
const (
	MinLimit     = 1
	MaxLimit     = 200
	DefaultLimit = 100
)

// Validate checks req against the registry and decodes its cursor. The
// returned cursor is nil when the request has none. An empty sort direction
// means ascending.
func Validate(reg *schema.Registry, req domain.FilterRequest) (*cursor.Cursor, error) {
	if req.Limit < MinLimit || req.Limit > MaxLimit {
		return nil, domain.ErrLimitOutOfRange.With("limit %d not in [%d, %d]", req.Limit, MinLimit, MaxLimit)
	}

	if req.Sort != nil {
		if !reg.IsSortable(req.Sort.Field) {
			return nil, domain.ErrUnsortableField.With("field %q", req.Sort.Field)
		}
		if d := req.Sort.Direction; !d.Valid() {
			return nil, domain.ErrInvalidSortDirection.With("direction %q", d)
		}
	}

	fields := make([]string, 0, len(req.Filters))
	for field := range req.Filters {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		if err := validateCondition(reg, field, req.Filters[field]); err != nil {
			return nil, err
		}
	}

	if req.Cursor == "" {
		return nil, nil
	}
	c, err := cursor.Decode(req.Cursor)
	if err != nil {
		return nil, domain.ErrMalformedCursor.With("%v", err)
	}
	return &c, nil
}

func validateCondition(reg *schema.Registry, field string, cond domain.Condition) error {
	if !reg.IsFilterable(field) {
		return domain.ErrUnfilterableField.With("field %q", field)
	}
	decl, _ := reg.Field(field)

	switch {
	case cond.Equals != nil && cond.Range != nil:
		return domain.ErrInvalidFilter.With("field %q has both a value and a range", field)
	case cond.Equals != nil:
		if cond.Equals.Kind != decl.Type.Kind() {
			return domain.ErrInvalidFilter.With("field %q expects %s, got %s", field, decl.Type, cond.Equals.Kind)
		}
	case cond.Range != nil:
		if decl.Type != schema.FieldTypeInteger {
			return domain.ErrInvalidFilter.With("field %q does not support ranges", field)
		}
		if cond.Range.Min != nil && cond.Range.Max != nil && *cond.Range.Min > *cond.Range.Max {
			return domain.ErrInvalidFilter.With("field %q: min %d > max %d", field, *cond.Range.Min, *cond.Range.Max)
		}
	default:
		return domain.ErrInvalidFilter.With("field %q has no condition", field)
	}
	return nil
}
