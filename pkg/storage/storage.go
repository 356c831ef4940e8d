package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/adfharrison1/go-crm/pkg/domain"
	"github.com/adfharrison1/go-crm/pkg/indexing"
	"github.com/adfharrison1/go-crm/pkg/schema"
	"go.uber.org/zap"
)

// MemoryStore is an in-process RecordStore. Records live in a map keyed by
// id, storage order is ascending id, and every index declared in the
// registry is maintained on write. State can be snapshotted to a single file.
type MemoryStore struct {
	mu          sync.RWMutex
	records     map[int64]*domain.Record
	order       []int64 // ascending ids, the scan order
	emails      map[string]int64
	indexEngine *indexing.IndexEngine
	registry    *schema.Registry
	nextID      int64
	dirty       bool

	// Configuration
	dataFile       string
	backgroundSave bool
	saveInterval   time.Duration
	logger         *zap.Logger

	// Background workers
	backgroundWg sync.WaitGroup
	stopChan     chan struct{}
}

var _ RecordStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store for the users registry unless
// WithRegistry says otherwise.
func NewMemoryStore(options ...StorageOption) *MemoryStore {
	ms := &MemoryStore{
		records:      make(map[int64]*domain.Record),
		emails:       make(map[string]int64),
		registry:     schema.Users(),
		nextID:       1,
		saveInterval: 5 * time.Minute,
		logger:       zap.NewNop(),
		stopChan:     make(chan struct{}),
	}

	for _, option := range options {
		option(ms)
	}

	ms.indexEngine = indexing.NewIndexEngine(ms.registry.Indexes()...)
	return ms
}

// Put inserts or replaces the record with rec.ID.
func (ms *MemoryStore) Put(ctx context.Context, rec domain.Record) error {
	return ms.write(ctx, rec, false)
}

// Create inserts rec unless its id is taken.
func (ms *MemoryStore) Create(ctx context.Context, rec domain.Record) error {
	return ms.write(ctx, rec, true)
}

func (ms *MemoryStore) write(ctx context.Context, rec domain.Record, create bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rec.ID <= 0 {
		return fmt.Errorf("invalid record id %d", rec.ID)
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()
	if _, exists := ms.records[rec.ID]; exists && create {
		return fmt.Errorf("%w: %d", ErrAlreadyExists, rec.ID)
	}
	if key, ok := emailKey(&rec); ok {
		if owner, taken := ms.emails[key]; taken && owner != rec.ID {
			return fmt.Errorf("%w: %s", ErrDuplicateEmail, *rec.Email)
		}
	}
	ms.putLocked(rec)
	ms.dirty = true
	return nil
}

// emailKey is the case-insensitive uniqueness key of rec's email.
func emailKey(rec *domain.Record) (string, bool) {
	if rec == nil || rec.Email == nil {
		return "", false
	}
	key := strings.ToLower(strings.TrimSpace(*rec.Email))
	return key, key != ""
}

func (ms *MemoryStore) putLocked(rec domain.Record) {
	stored := rec
	old, exists := ms.records[rec.ID]
	if key, ok := emailKey(old); ok && ms.emails[key] == rec.ID {
		delete(ms.emails, key)
	}
	if key, ok := emailKey(&stored); ok {
		ms.emails[key] = rec.ID
	}
	ms.records[rec.ID] = &stored
	if !exists {
		i := sort.Search(len(ms.order), func(i int) bool { return ms.order[i] >= rec.ID })
		ms.order = append(ms.order, 0)
		copy(ms.order[i+1:], ms.order[i:])
		ms.order[i] = rec.ID
	}
	ms.indexEngine.UpdateIndexForRecord(old, &stored)
	if rec.ID >= ms.nextID {
		ms.nextID = rec.ID + 1
	}
}

// Get returns a copy of the record with id.
func (ms *MemoryStore) Get(ctx context.Context, id int64) (domain.Record, error) {
	if err := ctx.Err(); err != nil {
		return domain.Record{}, err
	}
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	rec, ok := ms.records[id]
	if !ok {
		return domain.Record{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return *rec, nil
}

// NextID reserves the next unused id.
func (ms *MemoryStore) NextID(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	id := ms.nextID
	ms.nextID++
	return id, nil
}

// Query reads one index partition in (sort value, id) order. Limit counts
// matching items; LastKey is the key of the last returned item when the
// partition holds further entries.
func (ms *MemoryStore) Query(ctx context.Context, in QueryInput) (QueryOutput, error) {
	if err := ctx.Err(); err != nil {
		return QueryOutput{}, err
	}
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	idx, ok := ms.indexEngine.GetIndex(in.Index.Name)
	if !ok {
		return QueryOutput{}, fmt.Errorf("%w: %s", ErrUnknownIndex, in.Index.Name)
	}

	var after *indexing.Entry
	if in.StartKey != nil {
		after = &indexing.Entry{Sort: in.StartKey.SortValue, ID: in.StartKey.ID}
	}
	ids := idx.Range(in.PartitionValue.String(), in.Forward, after)

	var out QueryOutput
	for i, id := range ids {
		rec := ms.records[id]
		if !in.Filter.Matches(*rec) {
			continue
		}
		out.Items = append(out.Items, *rec)
		if in.Limit > 0 && len(out.Items) == in.Limit {
			if i < len(ids)-1 {
				sv, _ := rec.Value(in.Index.SortField)
				out.LastKey = &IndexKey{PartitionValue: in.PartitionValue, SortValue: sv, ID: id}
			}
			break
		}
	}
	return out, nil
}

// Scan walks the table in ascending id order. Limit counts matching items;
// LastKey is set when records remain past the last returned one.
func (ms *MemoryStore) Scan(ctx context.Context, in ScanInput) (ScanOutput, error) {
	if err := ctx.Err(); err != nil {
		return ScanOutput{}, err
	}
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	start := 0
	if in.StartKey != nil {
		start = sort.Search(len(ms.order), func(i int) bool { return ms.order[i] > in.StartKey.ID })
	}

	var out ScanOutput
	for i := start; i < len(ms.order); i++ {
		rec := ms.records[ms.order[i]]
		if !in.Filter.Matches(*rec) {
			continue
		}
		out.Items = append(out.Items, *rec)
		if in.Limit > 0 && len(out.Items) == in.Limit {
			if i < len(ms.order)-1 {
				out.LastKey = &ScanKey{ID: rec.ID}
			}
			break
		}
	}
	return out, nil
}

// Len returns the number of stored records.
func (ms *MemoryStore) Len() int {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return len(ms.records)
}

// Indexes returns the names of the maintained indexes.
func (ms *MemoryStore) Indexes() []string {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return ms.indexEngine.GetIndexes()
}
