package indexing

import (
	"sort"

	"github.com/adfharrison1/go-crm/pkg/domain"
	"github.com/adfharrison1/go-crm/pkg/schema"
)

// Entry is one record's position in a composite index.
type Entry struct {
	Sort domain.Value
	ID   int64
}

// compare orders entries by sort value, then id.
func (e Entry) compare(other Entry) int {
	if c, err := e.Sort.Compare(other.Sort); err == nil && c != 0 {
		return c
	}
	switch {
	case e.ID < other.ID:
		return -1
	case e.ID > other.ID:
		return 1
	}
	return 0
}

// Index is a composite secondary index: records are grouped by partition
// value and kept ordered by (sort value, id) inside each partition. Records
// missing either key attribute are not indexed.
type Index struct {
	Descriptor schema.IndexDescriptor
	partitions map[string][]Entry
}

// NewIndex creates an empty index for desc.
func NewIndex(desc schema.IndexDescriptor) *Index {
	return &Index{
		Descriptor: desc,
		partitions: make(map[string][]Entry),
	}
}

func (idx *Index) keyOf(rec *domain.Record) (string, Entry, bool) {
	if rec == nil {
		return "", Entry{}, false
	}
	pv, ok := rec.Value(idx.Descriptor.PartitionField)
	if !ok {
		return "", Entry{}, false
	}
	sv, ok := rec.Value(idx.Descriptor.SortField)
	if !ok {
		return "", Entry{}, false
	}
	return pv.String(), Entry{Sort: sv, ID: rec.ID}, true
}

// search returns the first position in entries not less than e.
func search(entries []Entry, e Entry) int {
	return sort.Search(len(entries), func(i int) bool {
		return entries[i].compare(e) >= 0
	})
}

// UpdateIndex moves a record from its old position to its new one. Either
// side may be nil for inserts and deletes.
func (idx *Index) UpdateIndex(oldRec, newRec *domain.Record) {
	if partition, entry, ok := idx.keyOf(oldRec); ok {
		entries := idx.partitions[partition]
		i := search(entries, entry)
		if i < len(entries) && entries[i].compare(entry) == 0 {
			entries = append(entries[:i], entries[i+1:]...)
		}
		if len(entries) == 0 {
			delete(idx.partitions, partition)
		} else {
			idx.partitions[partition] = entries
		}
	}
	if partition, entry, ok := idx.keyOf(newRec); ok {
		entries := idx.partitions[partition]
		i := search(entries, entry)
		entries = append(entries, Entry{})
		copy(entries[i+1:], entries[i:])
		entries[i] = entry
		idx.partitions[partition] = entries
	}
}

// Range returns the ids of partition in index order, starting strictly after
// the position (sortValue, id) when after is non-nil.
func (idx *Index) Range(partition string, forward bool, after *Entry) []int64 {
	entries := idx.partitions[partition]
	var out []int64
	if forward {
		start := 0
		if after != nil {
			start = search(entries, *after)
			if start < len(entries) && entries[start].compare(*after) == 0 {
				start++
			}
		}
		out = make([]int64, 0, len(entries)-start)
		for i := start; i < len(entries); i++ {
			out = append(out, entries[i].ID)
		}
		return out
	}

	end := len(entries)
	if after != nil {
		end = search(entries, *after)
	}
	out = make([]int64, 0, end)
	for i := end - 1; i >= 0; i-- {
		out = append(out, entries[i].ID)
	}
	return out
}

// Len returns the number of indexed records.
func (idx *Index) Len() int {
	n := 0
	for _, entries := range idx.partitions {
		n += len(entries)
	}
	return n
}

// IndexEngine owns the indexes of one table.
type IndexEngine struct {
	indexes map[string]*Index
}

// NewIndexEngine creates an engine with one empty index per descriptor.
func NewIndexEngine(descs ...schema.IndexDescriptor) *IndexEngine {
	ie := &IndexEngine{indexes: make(map[string]*Index, len(descs))}
	for _, desc := range descs {
		ie.indexes[desc.Name] = NewIndex(desc)
	}
	return ie
}

// GetIndex returns the named index.
func (ie *IndexEngine) GetIndex(name string) (*Index, bool) {
	idx, ok := ie.indexes[name]
	return idx, ok
}

// GetIndexes returns the index names, sorted.
func (ie *IndexEngine) GetIndexes() []string {
	names := make([]string, 0, len(ie.indexes))
	for name := range ie.indexes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BuildIndex discards the contents of every index and reindexes records.
func (ie *IndexEngine) BuildIndex(records map[int64]*domain.Record) {
	for name, idx := range ie.indexes {
		fresh := NewIndex(idx.Descriptor)
		for _, rec := range records {
			fresh.UpdateIndex(nil, rec)
		}
		ie.indexes[name] = fresh
	}
}

// UpdateIndexForRecord applies a record change to every index.
func (ie *IndexEngine) UpdateIndexForRecord(oldRec, newRec *domain.Record) {
	for _, idx := range ie.indexes {
		idx.UpdateIndex(oldRec, newRec)
	}
}
