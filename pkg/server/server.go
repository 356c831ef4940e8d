// Package server wires a configured store, the filter engine and the HTTP
// routes into a runnable server.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/adfharrison1/go-crm/pkg/api"
	"github.com/adfharrison1/go-crm/pkg/config"
	"github.com/adfharrison1/go-crm/pkg/engine"
	"github.com/adfharrison1/go-crm/pkg/metrics"
	"github.com/adfharrison1/go-crm/pkg/schema"
	"github.com/adfharrison1/go-crm/pkg/seed"
)

// Server holds references to storage, router, etc.
type Server struct {
	cfg      config.Config
	logger   *zap.Logger
	router   *mux.Router
	store    *Store
	registry *prometheus.Registry
}

// NewServer opens the configured store, seeds it when asked, and builds the
// router.
func NewServer(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	reg := schema.Users()

	store, err := OpenStore(ctx, cfg, reg, logger)
	if err != nil {
		return nil, err
	}
	if cfg.Seed {
		n, err := seed.Load(ctx, store)
		if err != nil {
			store.Close()
			return nil, err
		}
		logger.Info("seeded reference users", zap.Int("count", n))
	}

	s := &Server{
		cfg:    cfg,
		logger: logger,
		router: mux.NewRouter(),
		store:  store,
	}

	var m *metrics.Metrics
	if cfg.Metrics {
		s.registry = prometheus.NewRegistry()
		s.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		m = metrics.New(s.registry)
		s.router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})).Methods("GET")
	}

	eng := engine.New(store, reg, engine.WithLogger(logger.Named("engine")), engine.WithMetrics(m))
	handlerOpts := []api.HandlerOption{api.WithLogger(logger.Named("api")), api.WithMetrics(m)}
	if store.Stats != nil {
		handlerOpts = append(handlerOpts, api.WithStats(store.Stats))
	}
	api.NewHandler(store, eng, reg, handlerOpts...).RegisterRoutes(s.router)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Warn("no route found", zap.String("method", r.Method), zap.String("path", r.URL.Path))
		api.WriteJSONError(w, http.StatusNotFound, "no route for "+r.URL.Path)
	})

	return s, nil
}

// Router exposes the internal mux.Router.
func (s *Server) Router() http.Handler {
	return s.router
}

// Run serves HTTP until ctx is done, then drains in-flight requests and
// closes the store.
func (s *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting go-crm server", zap.String("listen", s.cfg.Listen), zap.String("store", s.cfg.Store))
		errCh <- httpServer.ListenAndServe()
	}()

	var serveErr error
	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		s.logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			serveErr = fmt.Errorf("server forced to shutdown: %w", err)
		}
	}

	if err := s.Close(); err != nil && serveErr == nil {
		serveErr = err
	}
	s.logger.Info("server exited")
	return serveErr
}

// Close releases the store, writing a final snapshot for the memory store.
func (s *Server) Close() error {
	return s.store.Close()
}
