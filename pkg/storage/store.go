package storage

import (
	"context"
	"errors"

	"github.com/adfharrison1/go-crm/pkg/domain"
	"github.com/adfharrison1/go-crm/pkg/predicate"
	"github.com/adfharrison1/go-crm/pkg/schema"
)

// ErrNotFound is returned by RecordStore.Get for unknown ids.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists is returned by RecordStore.Create when the id is taken.
var ErrAlreadyExists = errors.New("record already exists")

// ErrDuplicateEmail is returned when a write would give two records the
// same email.
var ErrDuplicateEmail = errors.New("email already in use")

// ErrUnknownIndex is returned by Query when the index is not declared on
// the store.
var ErrUnknownIndex = errors.New("unknown index")

// IndexKey is a position inside a composite index. ID breaks ties between
// records sharing a sort value.
type IndexKey struct {
	PartitionValue domain.Value
	SortValue      domain.Value
	ID             int64
}

// ScanKey is a position in storage order.
type ScanKey struct {
	ID int64
}

// QueryInput describes an ordered range read on one index partition.
type QueryInput struct {
	Index          schema.IndexDescriptor
	PartitionValue domain.Value
	Forward        bool
	Limit          int
	// StartKey resumes strictly after the given position.
	StartKey *IndexKey
	// Filter is evaluated per item after the key condition. May be nil.
	Filter *predicate.Predicate
}

// QueryOutput holds items in index order. LastKey is set when the read
// stopped before exhausting the partition.
type QueryOutput struct {
	Items   []domain.Record
	LastKey *IndexKey
}

// ScanInput describes a filtered full-table traversal.
type ScanInput struct {
	Filter   *predicate.Predicate
	Limit    int
	StartKey *ScanKey
}

// ScanOutput holds items in storage order. LastKey is set when the scan
// stopped before reaching the end of the table.
type ScanOutput struct {
	Items   []domain.Record
	LastKey *ScanKey
}

// Store is the read capability the filter engine plans against.
type Store interface {
	Query(ctx context.Context, in QueryInput) (QueryOutput, error)
	Scan(ctx context.Context, in ScanInput) (ScanOutput, error)
}

// RecordStore adds single-key access used by the route layer.
type RecordStore interface {
	Store
	// Put inserts or replaces the record with rec.ID.
	Put(ctx context.Context, rec domain.Record) error
	// Create inserts rec only if no record has rec.ID.
	Create(ctx context.Context, rec domain.Record) error
	Get(ctx context.Context, id int64) (domain.Record, error)
	// NextID returns an id not yet used by any record.
	NextID(ctx context.Context) (int64, error)
}
