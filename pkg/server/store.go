package server

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/adfharrison1/go-crm/pkg/api"
	"github.com/adfharrison1/go-crm/pkg/config"
	"github.com/adfharrison1/go-crm/pkg/schema"
	"github.com/adfharrison1/go-crm/pkg/storage"
	"github.com/adfharrison1/go-crm/pkg/storage/dynamo"
	"github.com/adfharrison1/go-crm/pkg/storage/sqlite"
)

// Store is the backend selected by config together with its lifecycle.
type Store struct {
	storage.RecordStore

	// Stats is set for backends that report statistics.
	Stats api.StatsProvider

	close func() error
}

// Close releases the backend.
func (s *Store) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// OpenStore opens the backend named by cfg.Store. The memory store loads
// its snapshot and starts the background saver; the SQLite store gets the
// registry's indexes.
func OpenStore(ctx context.Context, cfg config.Config, reg *schema.Registry, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Store {
	case config.StoreMemory:
		opts := []storage.StorageOption{
			storage.WithRegistry(reg),
			storage.WithLogger(logger.Named("memory")),
		}
		if cfg.DataFile != "" {
			opts = append(opts, storage.WithDataFile(cfg.DataFile))
		}
		if cfg.SaveInterval > 0 {
			opts = append(opts, storage.WithBackgroundSave(cfg.SaveInterval))
		}
		ms := storage.NewMemoryStore(opts...)
		if cfg.DataFile != "" {
			if err := ms.LoadFromFile(cfg.DataFile); err != nil {
				return nil, fmt.Errorf("load snapshot: %w", err)
			}
		}
		ms.StartBackgroundWorkers()
		return &Store{RecordStore: ms, Stats: ms, close: ms.Close}, nil

	case config.StoreDynamoDB:
		client, err := dynamo.NewClient(ctx, cfg.DynamoRegion, cfg.DynamoEndpoint)
		if err != nil {
			return nil, err
		}
		ds := dynamo.New(client,
			dynamo.WithTable(cfg.DynamoTable),
			dynamo.WithRegistry(reg),
			dynamo.WithLogger(logger.Named("dynamo")),
		)
		return withCache(&Store{RecordStore: ds}, cfg.CacheSize), nil

	case config.StoreSQLite:
		ss, err := sqlite.Open(cfg.SQLiteDSN, logger.Named("sqlite"))
		if err != nil {
			return nil, err
		}
		if err := ss.CreateIndexes(ctx, reg); err != nil {
			ss.Close()
			return nil, err
		}
		return withCache(&Store{RecordStore: ss, close: ss.Close}, cfg.CacheSize), nil

	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

// withCache puts an LRU record cache in front of s when size is positive.
func withCache(s *Store, size int) *Store {
	if size <= 0 {
		return s
	}
	cached := storage.NewCachedStore(s.RecordStore, size)
	s.RecordStore = cached
	s.Stats = cached
	return s
}

// InitTable creates the DynamoDB users table and its indexes. It succeeds
// when the table already exists.
func InitTable(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := dynamo.NewClient(ctx, cfg.DynamoRegion, cfg.DynamoEndpoint)
	if err != nil {
		return err
	}
	ds := dynamo.New(client,
		dynamo.WithTable(cfg.DynamoTable),
		dynamo.WithRegistry(schema.Users()),
		dynamo.WithLogger(logger.Named("dynamo")),
	)
	return ds.CreateTable(ctx)
}
