package engine

import (
	"context"
	"fmt"
	"testing"

	"github.com/adfharrison1/go-crm/pkg/domain"
	"github.com/adfharrison1/go-crm/pkg/schema"
	"github.com/adfharrison1/go-crm/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// LargeDatasetSize is big enough to page many times without slowing the suite.
const LargeDatasetSize = 10000

func newLargeEngine(tb testing.TB) *Engine {
	tb.Helper()
	store := storage.NewMemoryStore()
	ctx := context.Background()
	for i := 1; i <= LargeDatasetSize; i++ {
		rec := domain.Record{
			ID:             int64(i),
			FirstName:      domain.StringPtr(fmt.Sprintf("user%d", i)),
			Company:        domain.StringPtr(fmt.Sprintf("company%d", i%20)),
			JobTitle:       domain.StringPtr(fmt.Sprintf("title%d", i%7)),
			City:           domain.StringPtr(fmt.Sprintf("city%d", i%50)),
			Role:           domain.StringPtr([]string{domain.RoleAttendee, domain.RoleHost}[i%2]),
			EventsHosted:   domain.Int64Ptr(int64(i % 5)),
			EventsAttended: domain.Int64Ptr(int64(i % 13)),
		}
		require.NoError(tb, store.Put(ctx, rec))
	}
	return New(store, schema.Users())
}

// drain follows cursors to the end and returns every id in page order.
func drain(tb testing.TB, e *Engine, req domain.FilterRequest) []int64 {
	tb.Helper()
	var out []int64
	for pages := 0; ; pages++ {
		require.Less(tb, pages, LargeDatasetSize, "cursor chain does not terminate")
		page, err := e.FilterRecords(context.Background(), req)
		require.NoError(tb, err)
		out = append(out, ids(page.Items)...)
		if page.NextCursor == "" {
			return out
		}
		req.Cursor = page.NextCursor
	}
}

func TestLargeDataset_PagingVisitsEachMatchOnce(t *testing.T) {
	e := newLargeEngine(t)

	tests := []struct {
		name     string
		req      domain.FilterRequest
		expected int
	}{
		{
			name: "indexed",
			req: domain.FilterRequest{
				Filters: domain.FilterSet{"company": eq("company3")},
				Sort:    sortBy("job_title", domain.SortAscending),
				Limit:   37,
			},
			expected: LargeDatasetSize / 20,
		},
		{
			name: "indexed with residual range",
			req: domain.FilterRequest{
				Filters: domain.FilterSet{
					"job_title":     eq("title2"),
					"events_hosted": domain.Between(domain.Int64Ptr(1), domain.Int64Ptr(2)),
				},
				Sort:  sortBy("company", domain.SortDescending),
				Limit: 50,
			},
		},
		{
			name: "scan",
			req: domain.FilterRequest{
				Filters: domain.FilterSet{"role": eq(domain.RoleHost)},
				Limit:   200,
			},
			expected: LargeDatasetSize / 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := drain(t, e, tt.req)

			seen := make(map[int64]bool, len(got))
			for _, id := range got {
				assert.False(t, seen[id], "id %d returned twice", id)
				seen[id] = true
			}
			if tt.expected > 0 {
				assert.Len(t, got, tt.expected)
			} else {
				assert.NotEmpty(t, got)
			}
		})
	}
}

func BenchmarkFilterRecords_Indexed(b *testing.B) {
	e := newLargeEngine(b)
	req := domain.FilterRequest{
		Filters: domain.FilterSet{"company": eq("company3")},
		Sort:    sortBy("job_title", domain.SortAscending),
		Limit:   100,
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := e.FilterRecords(context.Background(), req); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkFilterRecords_Scan(b *testing.B) {
	e := newLargeEngine(b)
	req := domain.FilterRequest{
		Filters: domain.FilterSet{"city": eq("city7")},
		Sort:    sortBy("events_attended", domain.SortDescending),
		Limit:   100,
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := e.FilterRecords(context.Background(), req); err != nil {
			b.Fatal(err)
		}
	}
}
