// Package engine answers filter requests: it validates the request, plans an
// access path, makes exactly one store call and assembles the page.
package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/adfharrison1/go-crm/pkg/cursor"
	"github.com/adfharrison1/go-crm/pkg/domain"
	"github.com/adfharrison1/go-crm/pkg/metrics"
	"github.com/adfharrison1/go-crm/pkg/query"
	"github.com/adfharrison1/go-crm/pkg/schema"
	"github.com/adfharrison1/go-crm/pkg/storage"
	"go.uber.org/zap"
)

// Access path labels used in logs and metrics.
const (
	pathIndex = "index"
	pathScan  = "scan"
	pathNone  = "none"
)

// Engine holds no per-request state and is safe for concurrent use.
type Engine struct {
	store    storage.Store
	registry *schema.Registry
	planner  *query.Planner
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

type Option func(*Engine)

func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// New creates an engine reading from store under the rules of registry.
func New(store storage.Store, registry *schema.Registry, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		registry: registry,
		planner:  query.NewPlanner(registry),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// FilterRecords returns one page of records matching req. Errors are
// *domain.Error values classified as invalid argument, upstream unavailable
// or internal.
func (e *Engine) FilterRecords(ctx context.Context, req domain.FilterRequest) (*domain.Page, error) {
	c, err := query.Validate(e.registry, req)
	if err != nil {
		e.observe(pathNone, 0, err)
		return nil, err
	}

	plan, err := e.planner.Plan(req, c)
	if err != nil {
		e.observe(pathNone, 0, err)
		return nil, err
	}

	var (
		page *domain.Page
		path string
	)
	switch p := plan.(type) {
	case *query.IndexedPlan:
		path = pathIndex
		e.logger.Debug("filter plan",
			zap.String("path", path),
			zap.String("index", p.Index.Name),
			zap.String("partition", p.PartitionValue.String()),
			zap.String("direction", string(p.Direction)),
			zap.Stringer("residual", p.Residual),
			zap.Bool("resumed", p.Start != nil),
		)
		page, err = e.runIndexed(ctx, p, req.Limit)
	case *query.ScanPlan:
		path = pathScan
		e.logger.Debug("filter plan",
			zap.String("path", path),
			zap.Stringer("predicate", p.Predicate),
			zap.Bool("sorted", p.Sort != nil),
			zap.Bool("resumed", p.Start != nil),
		)
		page, err = e.runScan(ctx, p, req.Limit)
	default:
		err = domain.InternalError("internal error", fmt.Errorf("unhandled plan %T", plan))
	}

	if err != nil {
		e.observe(path, 0, err)
		return nil, err
	}
	e.observe(path, page.Count, nil)
	return page, nil
}

func (e *Engine) runIndexed(ctx context.Context, p *query.IndexedPlan, limit int) (*domain.Page, error) {
	start := time.Now()
	out, err := e.store.Query(ctx, storage.QueryInput{
		Index:          p.Index,
		PartitionValue: p.PartitionValue,
		Forward:        p.Forward(),
		Limit:          limit + 1,
		StartKey:       p.Start,
		Filter:         p.Residual,
	})
	e.metrics.ObserveStoreCall("query", start)
	if err != nil {
		e.logger.Error("store query failed", zap.String("index", p.Index.Name), zap.Error(err))
		return nil, domain.UpstreamUnavailable(err)
	}

	items := out.Items
	next := out.LastKey
	if len(items) > limit {
		items = items[:limit]
		last := items[limit-1]
		sv, ok := last.Value(p.Index.SortField)
		if !ok {
			e.logger.Error("indexed record lacks sort key",
				zap.Int64("id", last.ID), zap.String("field", p.Index.SortField))
			return nil, domain.InternalError("internal error", fmt.Errorf("record %d lacks %s", last.ID, p.Index.SortField))
		}
		next = &storage.IndexKey{PartitionValue: p.PartitionValue, SortValue: sv, ID: last.ID}
	}

	page := newPage(items)
	if next != nil {
		token, err := cursor.Encode(cursor.Index(p.Index.Name, p.PartitionValue.String(), next.SortValue.String(), next.ID))
		if err != nil {
			return nil, domain.InternalError("internal error", err)
		}
		page.NextCursor = token
	}
	return page, nil
}

func (e *Engine) runScan(ctx context.Context, p *query.ScanPlan, limit int) (*domain.Page, error) {
	start := time.Now()
	out, err := e.store.Scan(ctx, storage.ScanInput{
		Filter:   p.Predicate,
		Limit:    limit + 1,
		StartKey: p.Start,
	})
	e.metrics.ObserveStoreCall("scan", start)
	if err != nil {
		e.logger.Error("store scan failed", zap.Error(err))
		return nil, domain.UpstreamUnavailable(err)
	}

	// The cursor follows storage order, so it is taken before sorting.
	items := out.Items
	next := out.LastKey
	if len(items) > limit {
		items = items[:limit]
		next = &storage.ScanKey{ID: items[limit-1].ID}
	}

	if p.Sort != nil {
		if err := sortRecords(items, *p.Sort); err != nil {
			e.logger.Error("in-memory sort failed",
				zap.String("field", p.Sort.Field), zap.Int("items", len(items)), zap.Error(err))
			return nil, domain.ErrSortFailed.With("%v", err)
		}
	}

	page := newPage(items)
	if next != nil {
		token, err := cursor.Encode(cursor.Scan(next.ID))
		if err != nil {
			return nil, domain.InternalError("internal error", err)
		}
		page.NextCursor = token
	}
	return page, nil
}

func newPage(items []domain.Record) *domain.Page {
	if items == nil {
		items = []domain.Record{}
	}
	return &domain.Page{Items: items, Count: len(items)}
}

// sortRecords orders items by spec.Field, breaking ties by ascending id. Every
// item must carry the field and all values must share one kind.
func sortRecords(items []domain.Record, spec domain.SortSpec) error {
	keys := make(map[int64]domain.Value, len(items))
	var kind domain.ValueKind
	for _, rec := range items {
		v, ok := rec.Value(spec.Field)
		if !ok {
			return fmt.Errorf("record %d has no %s", rec.ID, spec.Field)
		}
		if kind == 0 {
			kind = v.Kind
		} else if v.Kind != kind {
			return fmt.Errorf("record %d: %s is %s, want %s", rec.ID, spec.Field, v.Kind, kind)
		}
		keys[rec.ID] = v
	}

	desc := spec.Direction == domain.SortDescending
	sort.SliceStable(items, func(i, j int) bool {
		c, _ := keys[items[i].ID].Compare(keys[items[j].ID])
		if c == 0 {
			return items[i].ID < items[j].ID
		}
		if desc {
			return c > 0
		}
		return c < 0
	})
	return nil
}

func (e *Engine) observe(path string, items int, err error) {
	outcome := "ok"
	if err != nil {
		outcome = domain.KindOf(err).String()
	}
	e.metrics.ObserveFilter(path, outcome, items)
}
