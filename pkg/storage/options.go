package storage

import (
	"time"

	"github.com/adfharrison1/go-crm/pkg/schema"
	"go.uber.org/zap"
)

type StorageOption func(*MemoryStore)

// WithDataFile sets the snapshot file used by Save and Close.
func WithDataFile(path string) StorageOption {
	return func(ms *MemoryStore) {
		ms.dataFile = path
	}
}

// WithBackgroundSave snapshots dirty state to the data file every interval.
func WithBackgroundSave(interval time.Duration) StorageOption {
	return func(ms *MemoryStore) {
		ms.backgroundSave = interval > 0
		ms.saveInterval = interval
	}
}

func WithLogger(logger *zap.Logger) StorageOption {
	return func(ms *MemoryStore) {
		if logger != nil {
			ms.logger = logger
		}
	}
}

// WithRegistry sets the schema whose indexes the store maintains.
func WithRegistry(registry *schema.Registry) StorageOption {
	return func(ms *MemoryStore) {
		if registry != nil {
			ms.registry = registry
		}
	}
}
