package api

import (
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/adfharrison1/go-crm/pkg/domain"
	"github.com/adfharrison1/go-crm/pkg/query"
	"github.com/adfharrison1/go-crm/pkg/schema"
)

// Query parameters shared by the listing endpoints.
const (
	paramLimit     = "limit"
	paramCursor    = "cursor"
	paramSortBy    = "sort_by"
	paramSortOrder = "sort_order"

	suffixMin = "_min"
	suffixMax = "_max"
)

// parsePaging reads limit, cursor and sort parameters.
func parsePaging(q url.Values) (domain.FilterRequest, error) {
	req := domain.FilterRequest{Limit: query.DefaultLimit, Cursor: q.Get(paramCursor)}
	if raw := q.Get(paramLimit); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return req, domain.ErrLimitOutOfRange.With("limit %q is not an integer", raw)
		}
		req.Limit = n
	}
	if field := q.Get(paramSortBy); field != "" {
		dir := domain.SortDirection(strings.ToLower(q.Get(paramSortOrder)))
		if dir == "" {
			dir = domain.SortAscending
		}
		req.Sort = &domain.SortSpec{Field: field, Direction: dir}
	} else if q.Get(paramSortOrder) != "" {
		return req, domain.ErrInvalidSortDirection.With("sort_order given without sort_by")
	}
	return req, nil
}

// parseFilters turns the remaining parameters into a FilterSet. A string
// field is matched with field=value; an integer field accepts field=n,
// field_min=n and field_max=n.
func parseFilters(reg *schema.Registry, q url.Values) (domain.FilterSet, error) {
	filters := domain.FilterSet{}
	ranges := map[string]*domain.Range{}

	for _, key := range sortedParams(q) {
		switch key {
		case paramLimit, paramCursor, paramSortBy, paramSortOrder:
			continue
		}
		raw := q.Get(key)

		field, bound := key, ""
		if _, ok := reg.Field(key); !ok {
			for _, suffix := range []string{suffixMin, suffixMax} {
				if strings.HasSuffix(key, suffix) {
					field, bound = strings.TrimSuffix(key, suffix), suffix
				}
			}
		}
		f, ok := reg.Field(field)
		if !ok || !f.Filterable {
			return nil, domain.ErrUnfilterableField.With("unknown filter parameter %q", key)
		}

		if f.Type == schema.FieldTypeString {
			if bound != "" {
				return nil, domain.ErrInvalidFilter.With("%s is a string field and takes no range", field)
			}
			filters[field] = domain.Eq(domain.StringValue(raw))
			continue
		}

		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, domain.ErrInvalidFilter.With("%s: %q is not an integer", key, raw)
		}
		switch bound {
		case "":
			filters[field] = domain.Eq(domain.IntValue(n))
		case suffixMin:
			rangeFor(ranges, field).Min = &n
		case suffixMax:
			rangeFor(ranges, field).Max = &n
		}
	}

	for field, rg := range ranges {
		if _, exact := filters[field]; exact {
			return nil, domain.ErrInvalidFilter.With("%s has both an exact value and a range", field)
		}
		filters[field] = domain.Between(rg.Min, rg.Max)
	}
	return filters, nil
}

func rangeFor(ranges map[string]*domain.Range, field string) *domain.Range {
	rg, ok := ranges[field]
	if !ok {
		rg = &domain.Range{}
		ranges[field] = rg
	}
	return rg
}

func sortedParams(q url.Values) []string {
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
