// Command lifecycled serves the research data lifecycle taxonomy over HTTP.
//
// Storage and blob drivers are selected via LIFECYCLE_* environment
// variables; only the listen address is a flag.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lifecyclecore/internal/adapters/api"
	"lifecyclecore/internal/blob"
	"lifecyclecore/internal/core"
	"lifecyclecore/internal/export"
	"lifecyclecore/internal/seed"
	"lifecyclecore/pkg/domain"
	"lifecyclecore/pkg/log"
)

const shutdownTimeout = 10 * time.Second

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	flag.Parse()

	logger := log.NewZerologAdapter()
	if err := run(*addr, logger); err != nil {
		logger.Error("lifecycled exited", log.Err(err))
		os.Exit(1)
	}
}

func run(addr string, logger log.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine := domain.DefaultRulesEngine()
	store, err := core.OpenStore(engine)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("store close failed", log.Err(err))
		}
	}()

	if err := seedIfEmpty(ctx, store, logger); err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	metrics, err := core.NewPrometheusMetricsRecorder(registry)
	if err != nil {
		return err
	}
	service := core.NewService(store, core.WithLogger(logger), core.WithMetrics(metrics))

	blobStore, err := blob.Open(ctx)
	if err != nil {
		return err
	}
	exporter := export.NewExporter(blobStore, export.WithLogger(logger))

	handler := api.NewHandler(service)
	handler.Exporter = exporter
	handler.Logger = logger

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.Handle("/", handler)

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("lifecycled listening",
			log.String("addr", addr),
			log.String("blob_driver", string(blobStore.Driver())),
		)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
	}
	return nil
}

// seedIfEmpty loads the embedded taxonomy into a fresh store. Durable
// backends persist it; the memory backend just imports it.
func seedIfEmpty(ctx context.Context, store domain.Store, logger log.Logger) error {
	if !store.Snapshot().Empty() {
		return nil
	}
	ds := seed.MustDataset()
	switch s := store.(type) {
	case core.Seeder:
		if err := s.Seed(ctx, ds); err != nil {
			return err
		}
	case core.Importer:
		if err := s.ImportDataset(ctx, ds); err != nil {
			return err
		}
	}
	logger.Info("seeded embedded taxonomy",
		log.Int("stages", len(ds.Stages)),
		log.Int("categories", len(ds.Categories)),
		log.Int("tools", len(ds.Tools)),
		log.Int("connections", len(ds.Connections)),
	)
	return nil
}
