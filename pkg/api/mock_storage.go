package api

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/adfharrison1/go-crm/pkg/domain"
	"github.com/adfharrison1/go-crm/pkg/storage"
)

var errRangeReadsUnsupported = errors.New("mock store does not serve range reads")

// MockRecordStore provides a mock implementation of storage.RecordStore for
// testing. Range reads are not served; pair it with MockFilterer.
type MockRecordStore struct {
	mu          sync.RWMutex
	records     map[int64]domain.Record
	nextID      int64
	putCalls    int
	getCalls    int
	createCalls int

	// Err, when set, is returned by every call.
	Err error
}

// NewMockRecordStore creates a new mock store holding recs.
func NewMockRecordStore(recs ...domain.Record) *MockRecordStore {
	m := &MockRecordStore{records: make(map[int64]domain.Record)}
	for _, rec := range recs {
		m.records[rec.ID] = rec
		if rec.ID > m.nextID {
			m.nextID = rec.ID
		}
	}
	return m
}

func (m *MockRecordStore) Query(ctx context.Context, in storage.QueryInput) (storage.QueryOutput, error) {
	return storage.QueryOutput{}, errRangeReadsUnsupported
}

func (m *MockRecordStore) Scan(ctx context.Context, in storage.ScanInput) (storage.ScanOutput, error) {
	return storage.ScanOutput{}, errRangeReadsUnsupported
}

func (m *MockRecordStore) Put(ctx context.Context, rec domain.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.putCalls++
	if m.Err != nil {
		return m.Err
	}
	return m.storeLocked(rec)
}

func (m *MockRecordStore) Create(ctx context.Context, rec domain.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.createCalls++
	if m.Err != nil {
		return m.Err
	}
	if _, exists := m.records[rec.ID]; exists {
		return fmt.Errorf("user %d: %w", rec.ID, storage.ErrAlreadyExists)
	}
	return m.storeLocked(rec)
}

func (m *MockRecordStore) storeLocked(rec domain.Record) error {
	if rec.Email != nil {
		for id, other := range m.records {
			if id != rec.ID && other.Email != nil && strings.EqualFold(*other.Email, *rec.Email) {
				return fmt.Errorf("%s: %w", *rec.Email, storage.ErrDuplicateEmail)
			}
		}
	}
	m.records[rec.ID] = rec
	if rec.ID > m.nextID {
		m.nextID = rec.ID
	}
	return nil
}

func (m *MockRecordStore) Get(ctx context.Context, id int64) (domain.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	m.getCalls++
	if m.Err != nil {
		return domain.Record{}, m.Err
	}
	rec, ok := m.records[id]
	if !ok {
		return domain.Record{}, fmt.Errorf("user %d: %w", id, storage.ErrNotFound)
	}
	return rec, nil
}

func (m *MockRecordStore) NextID(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return 0, m.Err
	}
	m.nextID++
	return m.nextID, nil
}

// GetPutCalls returns the number of Put calls
func (m *MockRecordStore) GetPutCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.putCalls
}

// GetCreateCalls returns the number of Create calls
func (m *MockRecordStore) GetCreateCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.createCalls
}

// GetGetCalls returns the number of Get calls
func (m *MockRecordStore) GetGetCalls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getCalls
}

// Count returns the number of stored records.
func (m *MockRecordStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// MockFilterer records the requests it receives and answers with Page or Err.
type MockFilterer struct {
	mu       sync.Mutex
	requests []domain.FilterRequest

	Page *domain.Page
	Err  error
}

func (m *MockFilterer) FilterRecords(ctx context.Context, req domain.FilterRequest) (*domain.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Page != nil {
		return m.Page, nil
	}
	return &domain.Page{Items: []domain.Record{}}, nil
}

// Requests returns the requests received so far.
func (m *MockFilterer) Requests() []domain.FilterRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.FilterRequest, len(m.requests))
	copy(out, m.requests)
	return out
}
