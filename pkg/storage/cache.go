package storage

import (
	"context"

	"github.com/adfharrison1/go-crm/pkg/domain"
)

// CachedStore serves Get from an LRU cache in front of a remote store.
// Range reads always go to the store so pages reflect its current state.
type CachedStore struct {
	RecordStore
	cache *LRUCache
}

var _ RecordStore = (*CachedStore)(nil)

// NewCachedStore caches up to capacity records read from or written
// through store.
func NewCachedStore(store RecordStore, capacity int) *CachedStore {
	return &CachedStore{RecordStore: store, cache: NewLRUCache(capacity)}
}

func (c *CachedStore) Get(ctx context.Context, id int64) (domain.Record, error) {
	if rec, ok := c.cache.Get(id); ok {
		return rec, nil
	}
	rec, err := c.RecordStore.Get(ctx, id)
	if err != nil {
		return domain.Record{}, err
	}
	c.cache.Put(rec)
	return rec, nil
}

// Put writes through. A failed write evicts the id since the store state
// is unknown.
func (c *CachedStore) Put(ctx context.Context, rec domain.Record) error {
	if err := c.RecordStore.Put(ctx, rec); err != nil {
		c.cache.Remove(rec.ID)
		return err
	}
	c.cache.Put(rec)
	return nil
}

// Create caches rec once the store accepted it. A rejected create leaves
// the cached record for that id alone.
func (c *CachedStore) Create(ctx context.Context, rec domain.Record) error {
	if err := c.RecordStore.Create(ctx, rec); err != nil {
		return err
	}
	c.cache.Put(rec)
	return nil
}

// Stats reports cache occupancy and hit counts.
func (c *CachedStore) Stats() map[string]interface{} {
	hits, misses := c.cache.Ratio()
	return map[string]interface{}{
		"cache_entries":  c.cache.Len(),
		"cache_capacity": c.cache.Capacity(),
		"cache_hits":     hits,
		"cache_misses":   misses,
	}
}
