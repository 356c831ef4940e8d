package domain

// SortDirection specifies ascending or descending order.
type SortDirection string

const (
	SortAscending  SortDirection = "asc"
	SortDescending SortDirection = "desc"
)

// Valid reports whether d is one of the supported directions.
func (d SortDirection) Valid() bool {
	return d == SortAscending || d == SortDescending
}

// SortSpec orders results by a single field.
type SortSpec struct {
	Field     string        `json:"field"`
	Direction SortDirection `json:"direction"`
}

// Range is an inclusive integer range; a nil bound is open.
type Range struct {
	Min *int64 `json:"min,omitempty"`
	Max *int64 `json:"max,omitempty"`
}

// Condition constrains one field: either an exact value or a range.
type Condition struct {
	Equals *Value
	Range  *Range
}

// IsEquality reports whether the condition is an exact match.
func (c Condition) IsEquality() bool {
	return c.Equals != nil
}

// Eq builds an equality condition.
func Eq(v Value) Condition {
	return Condition{Equals: &v}
}

// Between builds a range condition. Either bound may be nil.
func Between(min, max *int64) Condition {
	return Condition{Range: &Range{Min: min, Max: max}}
}

// FilterSet maps field names to conditions. All conditions must hold.
type FilterSet map[string]Condition

// FilterRequest is a single filter/page request.
type FilterRequest struct {
	Filters FilterSet
	Sort    *SortSpec
	Limit   int
	Cursor  string
}

// Page is one page of results.
type Page struct {
	Items      []Record `json:"results"`
	NextCursor string   `json:"next_cursor,omitempty"`
	Count      int      `json:"count"`
}
