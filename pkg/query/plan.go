package query

import (
	"github.com/adfharrison1/go-crm/pkg/domain"
	"github.com/adfharrison1/go-crm/pkg/predicate"
	"github.com/adfharrison1/go-crm/pkg/schema"
	"github.com/adfharrison1/go-crm/pkg/storage"
)

// Plan is the chosen access path: *IndexedPlan or *ScanPlan.
type Plan interface {
	plan()
}

// IndexedPlan reads one partition of a composite index in sort order.
type IndexedPlan struct {
	Index          schema.IndexDescriptor
	PartitionValue domain.Value
	Direction      domain.SortDirection
	// Start resumes after a previous page. Nil on the first page.
	Start *storage.IndexKey
	// Residual holds the filters the index key does not satisfy.
	Residual *predicate.Predicate
}

// ScanPlan walks the whole table in storage order.
type ScanPlan struct {
	Predicate *predicate.Predicate
	// Sort is applied to each page in memory. May be nil.
	Sort  *domain.SortSpec
	Start *storage.ScanKey
}

func (*IndexedPlan) plan() {}
func (*ScanPlan) plan()    {}

// Forward reports whether the index is read in ascending order.
func (p *IndexedPlan) Forward() bool {
	return p.Direction != domain.SortDescending
}
