package api

import (
	"context"

	"github.com/adfharrison1/go-crm/pkg/domain"
	"github.com/adfharrison1/go-crm/pkg/metrics"
	"github.com/adfharrison1/go-crm/pkg/schema"
	"github.com/adfharrison1/go-crm/pkg/storage"
	"go.uber.org/zap"
)

// Filterer answers filter requests.
type Filterer interface {
	FilterRecords(ctx context.Context, req domain.FilterRequest) (*domain.Page, error)
}

// StatsProvider reports store statistics for the health endpoint.
type StatsProvider interface {
	Stats() map[string]interface{}
}

// Handler provides HTTP handlers for the users API
type Handler struct {
	records  storage.RecordStore
	filterer Filterer
	registry *schema.Registry
	logger   *zap.Logger
	metrics  *metrics.Metrics
	stats    StatsProvider
}

type HandlerOption func(*Handler)

func WithLogger(logger *zap.Logger) HandlerOption {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) HandlerOption {
	return func(h *Handler) {
		h.metrics = m
	}
}

// WithStats adds store statistics to the health response.
func WithStats(stats StatsProvider) HandlerOption {
	return func(h *Handler) {
		h.stats = stats
	}
}

// NewHandler creates a new API handler with dependency injection
func NewHandler(records storage.RecordStore, filterer Filterer, registry *schema.Registry, opts ...HandlerOption) *Handler {
	h := &Handler{
		records:  records,
		filterer: filterer,
		registry: registry,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}
