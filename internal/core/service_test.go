package core

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"lifecyclecore/internal/infra/persistence/memory"
	"lifecyclecore/internal/seed"
	"lifecyclecore/pkg/domain"
)

type captureRecorder struct {
	mu           sync.Mutex
	observations []string
}

func (c *captureRecorder) ObserveQuery(operation, status string, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observations = append(c.observations, operation+"/"+status)
}

func seededService(t *testing.T, recorder MetricsRecorder) *Service {
	t.Helper()
	store := memory.NewStore(domain.DefaultRulesEngine())
	if err := store.ImportDataset(context.Background(), seed.MustDataset()); err != nil {
		t.Fatalf("import seed dataset: %v", err)
	}
	opts := []ServiceOption{}
	if recorder != nil {
		opts = append(opts, WithMetrics(recorder))
	}
	return NewService(store, opts...)
}

func TestServiceRecordsStatusPerQuery(t *testing.T) {
	recorder := &captureRecorder{}
	service := seededService(t, recorder)
	ctx := context.Background()

	if got := len(service.ListStages(ctx)); got != 12 {
		t.Fatalf("expected 12 stages, got %d", got)
	}
	if _, err := service.GetStage(ctx, 1); err != nil {
		t.Fatalf("get stage: %v", err)
	}
	if _, err := service.GetStage(ctx, 999); !domain.IsNotFound(err) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}

	want := []string{"list_stages/ok", "get_stage/ok", "get_stage/not_found"}
	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	if len(recorder.observations) != len(want) {
		t.Fatalf("observations %v, want %v", recorder.observations, want)
	}
	for i, obs := range want {
		if recorder.observations[i] != obs {
			t.Fatalf("observation %d is %q, want %q", i, recorder.observations[i], obs)
		}
	}
}

func TestServiceQueriesDelegate(t *testing.T) {
	service := seededService(t, nil)
	ctx := context.Background()

	cats, err := service.ListCategories(ctx, 1)
	if err != nil || len(cats) == 0 {
		t.Fatalf("categories: %v (%d)", err, len(cats))
	}
	tools, err := service.ListTools(ctx, cats[0].ID)
	if err != nil {
		t.Fatalf("tools: %v", err)
	}
	if len(tools) == 0 {
		t.Fatalf("expected tools for category %d", cats[0].ID)
	}

	edges, err := service.ListConnections(ctx, 12, domain.ConnectionAlternative)
	if err != nil {
		t.Fatalf("connections: %v", err)
	}
	if len(edges) != 1 || edges[0].ToStageID != 4 {
		t.Fatalf("expected alternative edge 12->4, got %+v", edges)
	}

	matches := 0
	for range service.SearchTools(ctx, "python") {
		matches++
	}
	if matches == 0 {
		t.Fatal("expected search matches for python")
	}

	snap := service.Snapshot(ctx)
	if len(snap.Stages) != 12 {
		t.Fatalf("snapshot stages %d", len(snap.Stages))
	}
}

func TestExpvarMetricsRecorderAggregates(t *testing.T) {
	rec := NewExpvarMetricsRecorder("")
	rec.ObserveQuery("get_stage", "ok", 5*time.Millisecond)
	rec.ObserveQuery("get_stage", "ok", 7*time.Millisecond)
	rec.ObserveQuery("get_stage", "not_found", time.Millisecond)

	snap := rec.Snapshot()
	// Duration totals accumulate every observation regardless of status;
	// only the result counters split by status.
	if snap.DurationsMS["get_stage"] != 13 {
		t.Fatalf("durations %v", snap.DurationsMS)
	}
	if snap.Results["get_stage"]["ok"] != 2 || snap.Results["get_stage"]["not_found"] != 1 {
		t.Fatalf("results %v", snap.Results)
	}
}

func TestPrometheusMetricsRecorder(t *testing.T) {
	registry := prometheus.NewRegistry()
	rec, err := NewPrometheusMetricsRecorder(registry)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	rec.ObserveQuery("search_tools", "ok", 3*time.Millisecond)
	rec.ObserveQuery("search_tools", "ok", 4*time.Millisecond)

	count := testutil.ToFloat64(rec.results.WithLabelValues("search_tools", "ok"))
	if count != 2 {
		t.Fatalf("counter %v, want 2", count)
	}

	// Registering twice on the same registry collides.
	if _, err := NewPrometheusMetricsRecorder(registry); err == nil {
		t.Fatal("expected duplicate registration error")
	}
}

func TestOpenStoreSelectsDriver(t *testing.T) {
	t.Setenv("LIFECYCLE_STORAGE_DRIVER", "memory")
	store, err := OpenStore(domain.DefaultRulesEngine())
	if err != nil {
		t.Fatalf("open memory store: %v", err)
	}
	if _, ok := store.(*memory.Store); !ok {
		t.Fatalf("expected memory store, got %T", store)
	}

	t.Setenv("LIFECYCLE_STORAGE_DRIVER", "bogus")
	if _, err := OpenStore(domain.DefaultRulesEngine()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
