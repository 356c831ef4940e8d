package storage

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/adfharrison1/go-crm/pkg/domain"
	"github.com/adfharrison1/go-crm/pkg/predicate"
	"github.com/adfharrison1/go-crm/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixture() []domain.Record {
	u := func(id int64, first, company, title, city string, hosted, attended int64) domain.Record {
		return domain.Record{
			ID:             id,
			FirstName:      domain.StringPtr(first),
			Company:        domain.StringPtr(company),
			JobTitle:       domain.StringPtr(title),
			City:           domain.StringPtr(city),
			EventsHosted:   domain.Int64Ptr(hosted),
			EventsAttended: domain.Int64Ptr(attended),
		}
	}
	return []domain.Record{
		u(1, "Alice", "Acme Corp", "Engineer", "New York", 2, 5),
		u(2, "Bob", "Beta LLC", "Manager", "San Francisco", 3, 2),
		u(3, "Carol", "Acme Corp", "Designer", "Boston", 0, 7),
		u(4, "David", "Delta Inc", "Engineer", "Austin", 1, 4),
		u(5, "Eve", "Beta LLC", "Manager", "Seattle", 0, 3),
		u(6, "Frank", "Gamma Co", "Engineer", "Denver", 0, 1),
		u(7, "Grace", "Acme Corp", "Manager", "Chicago", 2, 6),
		u(8, "Hank", "Delta Inc", "Designer", "Miami", 0, 2),
		u(9, "Ivy", "Gamma Co", "Engineer", "Portland", 0, 4),
		u(10, "Jack", "Acme Corp", "Designer", "Dallas", 1, 5),
	}
}

func newTestStore(t *testing.T) *MemoryStore {
	t.Helper()
	ms := NewMemoryStore()
	// insert out of order to exercise storage ordering
	recs := fixture()
	for i := len(recs) - 1; i >= 0; i-- {
		require.NoError(t, ms.Put(context.Background(), recs[i]))
	}
	return ms
}

func mustIndex(t *testing.T, name string) schema.IndexDescriptor {
	t.Helper()
	idx, ok := schema.Users().IndexByName(name)
	require.True(t, ok)
	return idx
}

func ids(recs []domain.Record) []int64 {
	out := make([]int64, len(recs))
	for i, r := range recs {
		out[i] = r.ID
	}
	return out
}

func TestMemoryStore_PutGet(t *testing.T) {
	ctx := context.Background()
	ms := newTestStore(t)

	rec, err := ms.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "Grace", *rec.FirstName)

	_, err = ms.Get(ctx, 99)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Error(t, ms.Put(ctx, domain.Record{ID: 0}))

	// replace moves the record between index partitions
	rec.Company = domain.StringPtr("Beta LLC")
	require.NoError(t, ms.Put(ctx, rec))
	assert.Equal(t, 10, ms.Len())

	out, err := ms.Query(ctx, QueryInput{
		Index:          mustIndex(t, schema.IndexCompanyJobTitle),
		PartitionValue: domain.StringValue("Acme Corp"),
		Forward:        true,
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 10, 1}, ids(out.Items))

	out, err = ms.Query(ctx, QueryInput{
		Index:          mustIndex(t, schema.IndexCompanyJobTitle),
		PartitionValue: domain.StringValue("Beta LLC"),
		Forward:        true,
	})
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 5, 7}, ids(out.Items))
}

func TestMemoryStore_Create(t *testing.T) {
	ctx := context.Background()
	ms := newTestStore(t)

	kim := domain.Record{ID: 3, FirstName: domain.StringPtr("Kim"), Email: domain.StringPtr("kim@example.com")}
	assert.ErrorIs(t, ms.Create(ctx, kim), ErrAlreadyExists)
	rec, err := ms.Get(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "Carol", *rec.FirstName)

	kim.ID = 11
	require.NoError(t, ms.Create(ctx, kim))
	assert.Equal(t, 11, ms.Len())

	lee := domain.Record{ID: 12, Email: domain.StringPtr(" KIM@example.com")}
	assert.ErrorIs(t, ms.Create(ctx, lee), ErrDuplicateEmail)
	assert.ErrorIs(t, ms.Put(ctx, lee), ErrDuplicateEmail)
	assert.Equal(t, 11, ms.Len())

	// changing an email releases the old one
	kim.Email = domain.StringPtr("kim.lee@example.com")
	require.NoError(t, ms.Put(ctx, kim))
	require.NoError(t, ms.Create(ctx, lee))
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	ms := newTestStore(t)

	rec, err := ms.Get(ctx, 1)
	require.NoError(t, err)
	rec.ID = 42

	again, err := ms.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), again.ID)
}

func TestMemoryStore_NextID(t *testing.T) {
	ctx := context.Background()
	ms := NewMemoryStore()

	id, err := ms.NextID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	require.NoError(t, ms.Put(ctx, domain.Record{ID: 10}))
	id, err = ms.NextID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(11), id)

	var wg sync.WaitGroup
	seen := make(chan int64, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := ms.NextID(ctx)
			assert.NoError(t, err)
			seen <- id
		}()
	}
	wg.Wait()
	close(seen)

	unique := make(map[int64]struct{})
	for id := range seen {
		unique[id] = struct{}{}
	}
	assert.Len(t, unique, 50)
}

func TestMemoryStore_Query(t *testing.T) {
	ctx := context.Background()
	ms := newTestStore(t)
	byCompany := mustIndex(t, schema.IndexCompanyJobTitle)
	byTitle := mustIndex(t, schema.IndexJobTitleCompany)

	tests := []struct {
		name        string
		in          QueryInput
		wantIDs     []int64
		wantLastKey *IndexKey
	}{
		{
			name:    "forward",
			in:      QueryInput{Index: byCompany, PartitionValue: domain.StringValue("Acme Corp"), Forward: true},
			wantIDs: []int64{3, 10, 1, 7},
		},
		{
			name:    "reverse",
			in:      QueryInput{Index: byCompany, PartitionValue: domain.StringValue("Acme Corp")},
			wantIDs: []int64{7, 1, 10, 3},
		},
		{
			name:    "limit sets last key",
			in:      QueryInput{Index: byCompany, PartitionValue: domain.StringValue("Acme Corp"), Forward: true, Limit: 2},
			wantIDs: []int64{3, 10},
			wantLastKey: &IndexKey{
				PartitionValue: domain.StringValue("Acme Corp"),
				SortValue:      domain.StringValue("Designer"),
				ID:             10,
			},
		},
		{
			name: "resume after tie",
			in: QueryInput{
				Index: byCompany, PartitionValue: domain.StringValue("Acme Corp"), Forward: true, Limit: 2,
				StartKey: &IndexKey{SortValue: domain.StringValue("Designer"), ID: 3},
			},
			wantIDs: []int64{10, 1},
			wantLastKey: &IndexKey{
				PartitionValue: domain.StringValue("Acme Corp"),
				SortValue:      domain.StringValue("Engineer"),
				ID:             1,
			},
		},
		{
			name: "resume reverse",
			in: QueryInput{
				Index: byCompany, PartitionValue: domain.StringValue("Acme Corp"),
				StartKey: &IndexKey{SortValue: domain.StringValue("Engineer"), ID: 1},
			},
			wantIDs: []int64{10, 3},
		},
		{
			name:    "limit equal to remaining leaves no last key",
			in:      QueryInput{Index: byCompany, PartitionValue: domain.StringValue("Acme Corp"), Forward: true, Limit: 4},
			wantIDs: []int64{3, 10, 1, 7},
		},
		{
			name: "filter",
			in: QueryInput{
				Index: byTitle, PartitionValue: domain.StringValue("Engineer"), Forward: true,
				Filter: predicate.Build(domain.FilterSet{"events_attended": domain.Between(domain.Int64Ptr(4), nil)}),
			},
			wantIDs: []int64{1, 4, 9},
		},
		{
			name:    "unknown partition",
			in:      QueryInput{Index: byCompany, PartitionValue: domain.StringValue("Omega"), Forward: true},
			wantIDs: []int64{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := ms.Query(ctx, tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.wantIDs, ids(out.Items))
			assert.Equal(t, tt.wantLastKey, out.LastKey)
		})
	}
}

func TestMemoryStore_QueryUnknownIndex(t *testing.T) {
	ms := newTestStore(t)
	_, err := ms.Query(context.Background(), QueryInput{
		Index:          schema.IndexDescriptor{Name: "city-state-index"},
		PartitionValue: domain.StringValue("Boston"),
	})
	assert.ErrorIs(t, err, ErrUnknownIndex)
}

func TestMemoryStore_SparseIndex(t *testing.T) {
	ctx := context.Background()
	ms := newTestStore(t)
	require.NoError(t, ms.Put(ctx, domain.Record{ID: 11, Company: domain.StringPtr("Acme Corp")}))

	out, err := ms.Query(ctx, QueryInput{
		Index:          mustIndex(t, schema.IndexCompanyJobTitle),
		PartitionValue: domain.StringValue("Acme Corp"),
		Forward:        true,
	})
	require.NoError(t, err)
	assert.NotContains(t, ids(out.Items), int64(11))

	scan, err := ms.Scan(ctx, ScanInput{})
	require.NoError(t, err)
	assert.Contains(t, ids(scan.Items), int64(11))
}

func TestMemoryStore_Scan(t *testing.T) {
	ctx := context.Background()
	ms := newTestStore(t)

	t.Run("storage order", func(t *testing.T) {
		out, err := ms.Scan(ctx, ScanInput{})
		require.NoError(t, err)
		assert.Equal(t, []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, ids(out.Items))
		assert.Nil(t, out.LastKey)
	})

	t.Run("pages until exhausted", func(t *testing.T) {
		var (
			all   []int64
			start *ScanKey
		)
		for page := 0; page < 10; page++ {
			out, err := ms.Scan(ctx, ScanInput{Limit: 3, StartKey: start})
			require.NoError(t, err)
			all = append(all, ids(out.Items)...)
			if out.LastKey == nil {
				break
			}
			start = out.LastKey
		}
		assert.Equal(t, []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, all)
	})

	t.Run("filter", func(t *testing.T) {
		out, err := ms.Scan(ctx, ScanInput{
			Filter: predicate.Build(domain.FilterSet{"events_hosted": domain.Between(domain.Int64Ptr(1), domain.Int64Ptr(2))}),
			Limit:  2,
		})
		require.NoError(t, err)
		assert.Equal(t, []int64{1, 4}, ids(out.Items))
		assert.Equal(t, &ScanKey{ID: 4}, out.LastKey)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := ms.Scan(cctx, ScanInput{})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestMemoryStore_ConcurrentReadsAndWrites(t *testing.T) {
	ctx := context.Background()
	ms := newTestStore(t)
	byCompany := mustIndex(t, schema.IndexCompanyJobTitle)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			err := ms.Put(ctx, domain.Record{
				ID:       int64(100 + i),
				Company:  domain.StringPtr("Acme Corp"),
				JobTitle: domain.StringPtr(fmt.Sprintf("Intern %02d", i)),
			})
			assert.NoError(t, err)
		}(i)
		go func() {
			defer wg.Done()
			_, err := ms.Query(ctx, QueryInput{Index: byCompany, PartitionValue: domain.StringValue("Acme Corp"), Forward: true})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	out, err := ms.Query(ctx, QueryInput{Index: byCompany, PartitionValue: domain.StringValue("Acme Corp"), Forward: true})
	require.NoError(t, err)
	assert.Len(t, out.Items, 24)
}
