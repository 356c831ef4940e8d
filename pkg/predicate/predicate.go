// Package predicate compiles filter conditions into a conjunction of
// field-level comparisons that a store evaluates per item during a scan or
// an index query.
package predicate

import (
	"sort"
	"strings"

	"github.com/adfharrison1/go-crm/pkg/domain"
)

// Op is a comparison operator.
type Op string

const (
	OpEq  Op = "="
	OpGte Op = ">="
	OpLte Op = "<="
)

// Clause compares one field against a value.
type Clause struct {
	Field string
	Op    Op
	Value domain.Value
}

// Predicate is a conjunction of clauses. A nil *Predicate matches everything.
type Predicate struct {
	Clauses []Clause
}

// Build compiles filters into a predicate, skipping fields listed in
// consumed (already satisfied by an index key). Clauses are ordered by field
// name, equality before bounds. Returns nil when nothing remains.
func Build(filters domain.FilterSet, consumed ...string) *Predicate {
	skip := make(map[string]struct{}, len(consumed))
	for _, f := range consumed {
		skip[f] = struct{}{}
	}

	fields := make([]string, 0, len(filters))
	for field := range filters {
		if _, ok := skip[field]; ok {
			continue
		}
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var clauses []Clause
	for _, field := range fields {
		cond := filters[field]
		switch {
		case cond.Equals != nil:
			clauses = append(clauses, Clause{Field: field, Op: OpEq, Value: *cond.Equals})
		case cond.Range != nil:
			if cond.Range.Min != nil {
				clauses = append(clauses, Clause{Field: field, Op: OpGte, Value: domain.IntValue(*cond.Range.Min)})
			}
			if cond.Range.Max != nil {
				clauses = append(clauses, Clause{Field: field, Op: OpLte, Value: domain.IntValue(*cond.Range.Max)})
			}
		}
	}
	if len(clauses) == 0 {
		return nil
	}
	return &Predicate{Clauses: clauses}
}

// Empty reports whether p constrains nothing.
func (p *Predicate) Empty() bool {
	return p == nil || len(p.Clauses) == 0
}

// Matches evaluates every clause against r. A record missing a constrained
// field, or holding a value of another kind, does not match.
func (p *Predicate) Matches(r domain.Record) bool {
	if p.Empty() {
		return true
	}
	for _, c := range p.Clauses {
		if !c.Matches(r) {
			return false
		}
	}
	return true
}

// Matches evaluates a single clause.
func (c Clause) Matches(r domain.Record) bool {
	actual, ok := r.Value(c.Field)
	if !ok {
		return false
	}
	cmp, err := actual.Compare(c.Value)
	if err != nil {
		return false
	}
	switch c.Op {
	case OpEq:
		return cmp == 0
	case OpGte:
		return cmp >= 0
	case OpLte:
		return cmp <= 0
	default:
		return false
	}
}

// Split partitions p into the clauses on field and the rest. Either result
// may be nil.
func (p *Predicate) Split(field string) (on []Clause, rest *Predicate) {
	if p.Empty() {
		return nil, nil
	}
	var others []Clause
	for _, c := range p.Clauses {
		if c.Field == field {
			on = append(on, c)
			continue
		}
		others = append(others, c)
	}
	if len(others) > 0 {
		rest = &Predicate{Clauses: others}
	}
	return on, rest
}

// Fields returns the distinct fields referenced by p in clause order.
func (p *Predicate) Fields() []string {
	if p.Empty() {
		return nil
	}
	seen := make(map[string]struct{}, len(p.Clauses))
	var out []string
	for _, c := range p.Clauses {
		if _, ok := seen[c.Field]; ok {
			continue
		}
		seen[c.Field] = struct{}{}
		out = append(out, c.Field)
	}
	return out
}

// String renders p for logs, e.g. "city = Boston AND events_hosted >= 1".
func (p *Predicate) String() string {
	if p.Empty() {
		return "<none>"
	}
	parts := make([]string, len(p.Clauses))
	for i, c := range p.Clauses {
		parts[i] = c.Field + " " + string(c.Op) + " " + c.Value.String()
	}
	return strings.Join(parts, " AND ")
}
