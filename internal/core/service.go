package core

import (
	"context"
	"iter"
	"time"

	"lifecyclecore/pkg/domain"
	"lifecyclecore/pkg/log"
)

// Service exposes the taxonomy query operations with observability
// attached. It is the surface handed to transport adapters.
type Service struct {
	store   domain.Store
	logger  log.Logger
	metrics MetricsRecorder
}

// ServiceOption customises service construction.
type ServiceOption func(*Service)

// WithLogger attaches a structured logger.
func WithLogger(logger log.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics attaches a metrics recorder.
func WithMetrics(rec MetricsRecorder) ServiceOption {
	return func(s *Service) {
		if rec != nil {
			s.metrics = rec
		}
	}
}

// NewService constructs a service backed by the supplied store.
func NewService(store domain.Store, opts ...ServiceOption) *Service {
	s := &Service{
		store:   store,
		logger:  log.NewNoopLogger(),
		metrics: NoopMetricsRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the underlying storage implementation.
func (s *Service) Store() domain.Store {
	return s.store
}

func (s *Service) observe(op string, start time.Time, err error) {
	status := "ok"
	switch {
	case domain.IsNotFound(err):
		status = "not_found"
	case err != nil:
		status = "error"
	}
	elapsed := time.Since(start)
	s.metrics.ObserveQuery(op, status, elapsed)
	if err != nil && !domain.IsNotFound(err) {
		s.logger.Error("query failed", log.String("operation", op), log.Err(err))
		return
	}
	s.logger.Debug("query served", log.String("operation", op), log.String("status", status), log.Duration("elapsed", elapsed))
}

// ListStages returns every stage in canonical order.
func (s *Service) ListStages(_ context.Context) []Stage {
	defer func(start time.Time) { s.observe("list_stages", start, nil) }(time.Now())
	return s.store.ListStages()
}

// GetStage returns a single stage by id.
func (s *Service) GetStage(_ context.Context, id int64) (Stage, error) {
	start := time.Now()
	stage, err := s.store.GetStage(id)
	s.observe("get_stage", start, err)
	return stage, err
}

// ListCategories returns the tool categories of a stage.
func (s *Service) ListCategories(_ context.Context, stageID int64) ([]ToolCategory, error) {
	start := time.Now()
	cats, err := s.store.ListCategories(stageID)
	s.observe("list_categories", start, err)
	return cats, err
}

// ListTools returns the example tools of a category.
func (s *Service) ListTools(_ context.Context, categoryID int64) ([]Tool, error) {
	start := time.Now()
	tools, err := s.store.ListTools(categoryID)
	s.observe("list_tools", start, err)
	return tools, err
}

// SearchTools returns the restartable matching-tool sequence for a query.
func (s *Service) SearchTools(_ context.Context, query string) iter.Seq[Tool] {
	defer func(start time.Time) { s.observe("search_tools", start, nil) }(time.Now())
	return s.store.SearchTools(query)
}

// ListConnections returns the outgoing edges of a stage, optionally
// filtered by connection type.
func (s *Service) ListConnections(_ context.Context, stageID int64, kind ConnectionType) ([]Connection, error) {
	start := time.Now()
	edges, err := s.store.ListConnections(stageID, kind)
	s.observe("list_connections", start, err)
	return edges, err
}

// Snapshot returns the full dataset for export.
func (s *Service) Snapshot(_ context.Context) Dataset {
	defer func(start time.Time) { s.observe("snapshot", start, nil) }(time.Now())
	return s.store.Snapshot()
}
