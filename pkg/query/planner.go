package query

import (
	"sort"
	"strconv"

	"github.com/adfharrison1/go-crm/pkg/cursor"
	"github.com/adfharrison1/go-crm/pkg/domain"
	"github.com/adfharrison1/go-crm/pkg/predicate"
	"github.com/adfharrison1/go-crm/pkg/schema"
	"github.com/adfharrison1/go-crm/pkg/storage"
)

// Planner chooses between an indexed query and a scan. It is stateless and
// safe for concurrent use.
type Planner struct {
	registry *schema.Registry
}

// NewPlanner creates a planner over reg.
func NewPlanner(reg *schema.Registry) *Planner {
	return &Planner{registry: reg}
}

// Plan picks the access path for a validated request. An index is used when
// an equality filter and the sort field together match a declared index;
// equality fields are tried in lexical order. Everything else scans.
func (p *Planner) Plan(req domain.FilterRequest, c *cursor.Cursor) (Plan, error) {
	if idx, value, ok := p.indexFor(req); ok {
		plan := &IndexedPlan{
			Index:          idx,
			PartitionValue: value,
			Direction:      req.Sort.Direction,
			Residual:       predicate.Build(req.Filters, idx.PartitionField),
		}
		if c != nil {
			start, err := p.indexStart(idx, value, *c)
			if err != nil {
				return nil, err
			}
			plan.Start = start
		}
		return plan, nil
	}

	plan := &ScanPlan{
		Predicate: predicate.Build(req.Filters),
		Sort:      req.Sort,
	}
	if c != nil {
		if c.Kind != cursor.KindScan {
			return nil, domain.ErrIncompatibleCursor.With("%s cursor on a scan", c.Kind)
		}
		plan.Start = &storage.ScanKey{ID: c.LastID}
	}
	return plan, nil
}

func (p *Planner) indexFor(req domain.FilterRequest) (schema.IndexDescriptor, domain.Value, bool) {
	if req.Sort == nil {
		return schema.IndexDescriptor{}, domain.Value{}, false
	}
	var fields []string
	for field, cond := range req.Filters {
		if cond.IsEquality() {
			fields = append(fields, field)
		}
	}
	sort.Strings(fields)
	for _, field := range fields {
		if idx, ok := p.registry.IndexFor(field, req.Sort.Field); ok {
			return idx, *req.Filters[field].Equals, true
		}
	}
	return schema.IndexDescriptor{}, domain.Value{}, false
}

func (p *Planner) indexStart(idx schema.IndexDescriptor, partition domain.Value, c cursor.Cursor) (*storage.IndexKey, error) {
	if c.Kind != cursor.KindIndex {
		return nil, domain.ErrIncompatibleCursor.With("%s cursor on index %s", c.Kind, idx.Name)
	}
	if _, ok := p.registry.IndexByName(c.Index); !ok {
		return nil, domain.ErrMalformedCursor.With("unknown index %q", c.Index)
	}
	if c.Index != idx.Name || c.Partition != partition.String() {
		return nil, domain.ErrIncompatibleCursor.With("cursor for %s/%s used on %s/%s",
			c.Index, c.Partition, idx.Name, partition)
	}

	sortValue := domain.StringValue(c.SortValue)
	if decl, ok := p.registry.Field(idx.SortField); ok && decl.Type == schema.FieldTypeInteger {
		n, err := strconv.ParseInt(c.SortValue, 10, 64)
		if err != nil {
			return nil, domain.ErrMalformedCursor.With("sort value %q is not an integer", c.SortValue)
		}
		sortValue = domain.IntValue(n)
	}
	return &storage.IndexKey{PartitionValue: partition, SortValue: sortValue, ID: c.LastID}, nil
}
