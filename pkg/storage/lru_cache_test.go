package storage

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/adfharrison1/go-crm/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLRUCache(t *testing.T) {
	cache := NewLRUCache(100)
	assert.NotNil(t, cache)
	assert.Equal(t, 100, cache.Capacity())
	assert.Equal(t, 0, cache.Len())
}

func TestLRUCache_GetAndPut(t *testing.T) {
	cache := NewLRUCache(10)
	recs := fixture()

	cache.Put(recs[0])
	cache.Put(recs[1])

	got, found := cache.Get(1)
	assert.True(t, found)
	assert.Equal(t, "Alice", *got.FirstName)

	got, found = cache.Get(2)
	assert.True(t, found)
	assert.Equal(t, "Bob", *got.FirstName)

	_, found = cache.Get(99)
	assert.False(t, found)

	hits, misses := cache.Ratio()
	assert.Equal(t, uint64(2), hits)
	assert.Equal(t, uint64(1), misses)
}

func TestLRUCache_CapacityAndEviction(t *testing.T) {
	cache := NewLRUCache(2)
	recs := fixture()

	cache.Put(recs[0])
	cache.Put(recs[1])
	// touch 1 so 2 becomes the oldest
	cache.Get(1)
	cache.Put(recs[2])

	assert.Equal(t, 2, cache.Len())
	_, found := cache.Get(2)
	assert.False(t, found)
	_, found = cache.Get(1)
	assert.True(t, found)
	_, found = cache.Get(3)
	assert.True(t, found)
}

func TestLRUCache_UpdateAndRemove(t *testing.T) {
	cache := NewLRUCache(2)
	rec := fixture()[0]
	cache.Put(rec)

	rec.City = domain.StringPtr("Buffalo")
	cache.Put(rec)
	assert.Equal(t, 1, cache.Len())
	got, _ := cache.Get(1)
	assert.Equal(t, "Buffalo", *got.City)

	cache.Remove(1)
	cache.Remove(1)
	assert.Equal(t, 0, cache.Len())
}

func TestLRUCache_Concurrent(t *testing.T) {
	cache := NewLRUCache(5)
	recs := fixture()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				rec := recs[(i+j)%len(recs)]
				cache.Put(rec)
				cache.Get(rec.ID)
			}
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, cache.Len(), 5)
}

// failingStore wraps a MemoryStore and fails Put when err is set.
type failingStore struct {
	*MemoryStore
	err  error
	gets int
}

func (f *failingStore) Put(ctx context.Context, rec domain.Record) error {
	if f.err != nil {
		return f.err
	}
	return f.MemoryStore.Put(ctx, rec)
}

func (f *failingStore) Get(ctx context.Context, id int64) (domain.Record, error) {
	f.gets++
	return f.MemoryStore.Get(ctx, id)
}

func TestCachedStore(t *testing.T) {
	ctx := context.Background()
	inner := &failingStore{MemoryStore: newTestStore(t)}
	cached := NewCachedStore(inner, 4)

	t.Run("get reads through once", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			rec, err := cached.Get(ctx, 7)
			require.NoError(t, err)
			assert.Equal(t, "Grace", *rec.FirstName)
		}
		assert.Equal(t, 1, inner.gets)
	})

	t.Run("missing ids are not cached", func(t *testing.T) {
		before := inner.gets
		_, err := cached.Get(ctx, 99)
		assert.True(t, errors.Is(err, ErrNotFound))
		_, err = cached.Get(ctx, 99)
		assert.True(t, errors.Is(err, ErrNotFound))
		assert.Equal(t, before+2, inner.gets)
	})

	t.Run("put writes through", func(t *testing.T) {
		rec := fixture()[6]
		rec.City = domain.StringPtr("Buffalo")
		require.NoError(t, cached.Put(ctx, rec))

		got, err := cached.Get(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, "Buffalo", *got.City)

		stored, err := inner.MemoryStore.Get(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, "Buffalo", *stored.City)
	})

	t.Run("failed put evicts", func(t *testing.T) {
		inner.err = errors.New("throttled")
		defer func() { inner.err = nil }()

		rec := fixture()[6]
		assert.Error(t, cached.Put(ctx, rec))

		before := inner.gets
		got, err := cached.Get(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, "Buffalo", *got.City)
		assert.Equal(t, before+1, inner.gets)
	})

	t.Run("create caches only accepted records", func(t *testing.T) {
		taken := domain.Record{ID: 7, FirstName: domain.StringPtr("Kim")}
		assert.ErrorIs(t, cached.Create(ctx, taken), ErrAlreadyExists)
		got, err := cached.Get(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, "Grace", *got.FirstName)

		before := inner.gets
		fresh := domain.Record{ID: 11, FirstName: domain.StringPtr("Kim")}
		require.NoError(t, cached.Create(ctx, fresh))
		got, err = cached.Get(ctx, 11)
		require.NoError(t, err)
		assert.Equal(t, "Kim", *got.FirstName)
		assert.Equal(t, before, inner.gets)
	})

	t.Run("range reads pass through", func(t *testing.T) {
		out, err := cached.Scan(ctx, ScanInput{Limit: 3})
		require.NoError(t, err)
		assert.Equal(t, []int64{1, 2, 3}, ids(out.Items))
	})

	stats := cached.Stats()
	assert.Equal(t, 4, stats["cache_capacity"])
}
