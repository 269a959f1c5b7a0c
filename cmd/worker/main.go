package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caseflow-io/evidence-pipeline/internal/bootstrap"
	"github.com/caseflow-io/evidence-pipeline/internal/config"
	"github.com/caseflow-io/evidence-pipeline/internal/observability/logging"
	"github.com/caseflow-io/evidence-pipeline/internal/observability/metrics"
	"github.com/caseflow-io/evidence-pipeline/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config error", "error", err)
		os.Exit(1)
	}
	logger := logging.NewJSONLogger("evidence-worker", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap error", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics("evidence-worker")
	app.Processor.SetStageObserver(func(stage string, elapsed time.Duration) {
		workerMetrics.ObserveStage("evidence-worker", stage, elapsed)
	})
	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: workerMetrics.Handler(),
	}
	go func() {
		logger.Info("worker metrics listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("worker metrics server error", "error", err)
		}
	}()

	pool := worker.NewPool(app.Queue, app.Processor, worker.Config{
		Concurrency: cfg.WorkerConcurrency,
		JobTimeout:  time.Duration(cfg.JobTimeoutSecs) * time.Second,
		Metrics:     workerMetrics,
		Service:     "evidence-worker",
		Logger:      logger,
	})

	logger.Info("worker subscribed", "subject", cfg.NATSSubject, "concurrency", cfg.WorkerConcurrency)
	if err := pool.Run(ctx); err != nil {
		logger.Error("worker pool error", "error", err)
		os.Exit(1)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)
}
