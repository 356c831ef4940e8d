package storage

import (
	"container/list"
	"sync"

	"github.com/adfharrison1/go-crm/pkg/domain"
)

// LRUCache holds the most recently used records by id.
type LRUCache struct {
	mu       sync.Mutex
	capacity int
	list     *list.List
	cache    map[int64]*list.Element
	hits     uint64
	misses   uint64
}

type cacheEntry struct {
	id     int64
	record domain.Record
}

func NewLRUCache(capacity int) *LRUCache {
	return &LRUCache{
		capacity: capacity,
		list:     list.New(),
		cache:    make(map[int64]*list.Element),
	}
}

func (lru *LRUCache) Get(id int64) (domain.Record, bool) {
	lru.mu.Lock()
	defer lru.mu.Unlock()

	if element, exists := lru.cache[id]; exists {
		lru.list.MoveToFront(element)
		lru.hits++
		return element.Value.(*cacheEntry).record, true
	}
	lru.misses++
	return domain.Record{}, false
}

func (lru *LRUCache) Put(rec domain.Record) {
	lru.mu.Lock()
	defer lru.mu.Unlock()

	if element, exists := lru.cache[rec.ID]; exists {
		element.Value.(*cacheEntry).record = rec
		lru.list.MoveToFront(element)
		return
	}

	element := lru.list.PushFront(&cacheEntry{id: rec.ID, record: rec})
	lru.cache[rec.ID] = element

	if lru.list.Len() > lru.capacity {
		lru.evictOldest()
	}
}

func (lru *LRUCache) evictOldest() {
	element := lru.list.Back()
	if element != nil {
		delete(lru.cache, element.Value.(*cacheEntry).id)
		lru.list.Remove(element)
	}
}

func (lru *LRUCache) Remove(id int64) {
	lru.mu.Lock()
	defer lru.mu.Unlock()

	if element, exists := lru.cache[id]; exists {
		delete(lru.cache, id)
		lru.list.Remove(element)
	}
}

func (lru *LRUCache) Capacity() int {
	return lru.capacity
}

func (lru *LRUCache) Len() int {
	lru.mu.Lock()
	defer lru.mu.Unlock()
	return lru.list.Len()
}

// Ratio returns hits and misses since creation.
func (lru *LRUCache) Ratio() (hits, misses uint64) {
	lru.mu.Lock()
	defer lru.mu.Unlock()
	return lru.hits, lru.misses
}
