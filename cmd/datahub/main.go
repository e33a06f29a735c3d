// Command datahub serves the climate data API: a thin HTTP façade over an
// external Earth-observation compute backend, with request caching and
// asynchronous raster exports.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yieldera/climate-datahub/internal/backend"
	"github.com/yieldera/climate-datahub/internal/cache"
	"github.com/yieldera/climate-datahub/internal/config"
	"github.com/yieldera/climate-datahub/internal/dataset"
	"github.com/yieldera/climate-datahub/internal/jobs"
	"github.com/yieldera/climate-datahub/internal/logger"
	"github.com/yieldera/climate-datahub/internal/metrics"
	"github.com/yieldera/climate-datahub/internal/observability"
	"github.com/yieldera/climate-datahub/internal/server"
	"github.com/yieldera/climate-datahub/internal/storage"
)

// set at build time via -ldflags
var (
	version  = "dev"
	revision = ""
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.FromEnv()

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		Component: "datahub",
	}, os.Stdout)
	log := logger.NewSlog(&zl)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := backend.NewHTTPClient(cfg.BackendURL, cfg.BackendCredentials, 60*time.Second)
	registry := dataset.NewRegistry(client)

	reqCache, err := cache.New(cfg.CacheDir, cfg.CacheTTL, cfg.CacheMemEntries, log)
	if err != nil {
		return fmt.Errorf("init cache: %w", err)
	}
	jobStore, err := jobs.NewStore(cfg.JobsDir, log)
	if err != nil {
		return fmt.Errorf("init job store: %w", err)
	}
	outputs, err := storage.New(cfg.OutputDir, log)
	if err != nil {
		return fmt.Errorf("init output store: %w", err)
	}

	srv := server.New(server.Deps{
		Config:   cfg,
		Log:      log,
		Backend:  client,
		Datasets: registry,
		Cache:    reqCache,
		Jobs:     jobStore,
		Outputs:  outputs,
		Version:  version,
	})
	worker := jobs.NewWorker(jobStore, srv.RunExport, cfg.JobWorkers, cfg.JobQueue, log)
	srv.SetWorker(worker)
	worker.Start(ctx)

	observability.ExposeBuildInfo(version, revision)

	// sweep stale state from previous runs, then hourly
	jobStore.CleanupOlderThan(cfg.JobRetention)
	outputs.CleanupOlderThan(cfg.JobRetention)
	reqCache.Sweep()
	go janitor(ctx, cfg, jobStore, outputs, reqCache)

	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		log.Info("api listening", "addr", cfg.Addr, "version", version)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("api server: %w", err)
		}
	}()

	var metricsSrv *http.Server
	if cfg.MetricsEnabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.MetricsPath, metrics.Handler())
		metricsSrv = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			log.Info("metrics listening", "addr", cfg.MetricsAddr, "path", cfg.MetricsPath)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("api shutdown incomplete", "err", err)
	}
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			log.Warn("metrics shutdown incomplete", "err", err)
		}
	}
	worker.Wait()
	log.Info("bye")
	return nil
}

// janitor enforces the retention window while the process runs.
func janitor(ctx context.Context, cfg config.Config, jobStore *jobs.Store, outputs *storage.Store, reqCache *cache.Cache) {
	t := time.NewTicker(time.Hour)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			jobStore.CleanupOlderThan(cfg.JobRetention)
			outputs.CleanupOlderThan(cfg.JobRetention)
			reqCache.Sweep()
		}
	}
}
