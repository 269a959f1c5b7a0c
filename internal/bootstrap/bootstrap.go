// Package bootstrap wires configuration into the concrete adapters and the
// processing usecase. Both binaries share this assembly so they cannot
// drift apart on construction details.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/caseflow-io/evidence-pipeline/internal/config"
	"github.com/caseflow-io/evidence-pipeline/internal/core/ports"
	"github.com/caseflow-io/evidence-pipeline/internal/core/usecase"
	"github.com/caseflow-io/evidence-pipeline/internal/infrastructure/entities"
	"github.com/caseflow-io/evidence-pipeline/internal/infrastructure/extraction"
	"github.com/caseflow-io/evidence-pipeline/internal/infrastructure/llm/ollama"
	"github.com/caseflow-io/evidence-pipeline/internal/infrastructure/ocr/tesseract"
	progressmemory "github.com/caseflow-io/evidence-pipeline/internal/infrastructure/progress/memory"
	progressredis "github.com/caseflow-io/evidence-pipeline/internal/infrastructure/progress/redis"
	"github.com/caseflow-io/evidence-pipeline/internal/infrastructure/queue/nats"
	"github.com/caseflow-io/evidence-pipeline/internal/infrastructure/repository/postgres"
	"github.com/caseflow-io/evidence-pipeline/internal/infrastructure/resilience"
	"github.com/caseflow-io/evidence-pipeline/internal/infrastructure/storage/localfs"
)

type App struct {
	Config config.Config

	Queue     ports.MessageQueue
	Processor *usecase.ProcessEvidenceUseCase

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewEvidenceRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	jobs := postgres.NewJobRepository(db)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:        cfg.RetryMaxAttempts,
		RetryInitialBackoff:     time.Duration(cfg.RetryInitialBackoffMs) * time.Millisecond,
		RetryMaxBackoff:         time.Duration(cfg.RetryMaxBackoffMs) * time.Millisecond,
		RetryMultiplier:         2.0,
		BreakerEnabled:          cfg.BreakerEnabled,
		BreakerMinRequests:      uint32(cfg.BreakerMinRequests),
		BreakerFailureRatio:     cfg.BreakerFailureRatio,
		BreakerOpenTimeout:      time.Duration(cfg.BreakerOpenTimeoutSecs) * time.Second,
		BreakerHalfOpenMaxCalls: uint32(cfg.BreakerHalfOpenMaxCalls),
	})

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
		Logger:             logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	var cache ports.ProgressCache
	var closeCache func()
	switch cfg.ProgressBackend {
	case "memory":
		cache = progressmemory.New(time.Duration(cfg.ProgressTTLSecs) * time.Second)
		closeCache = func() {}
	default:
		redisCache := progressredis.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB,
			time.Duration(cfg.ProgressTTLSecs)*time.Second)
		if err := redisCache.Ping(ctx); err != nil {
			// Progress is advisory: log and continue, entries will be
			// written once redis comes back.
			logger.Warn("progress_cache_unreachable", "addr", cfg.RedisAddr, "error", err)
		}
		cache = redisCache
		closeCache = func() { _ = redisCache.Close() }
	}

	ollamaClient := ollama.NewWithOptions(cfg.OllamaURL, cfg.OllamaModel, ollama.Options{
		HTTPTimeout:        time.Duration(cfg.OllamaHTTPSecs) * time.Second,
		RequestsPerSecond:  cfg.OllamaRPS,
		Burst:              cfg.OllamaBurst,
		ResilienceExecutor: executor,
	})

	processor := usecase.NewProcessEvidenceUseCase(
		repo,
		jobs,
		storage,
		cache,
		queue,
		extraction.New(),
		tesseract.New(cfg.OCRLanguages...),
		ollama.NewClassifier(ollamaClient),
		entities.New(),
		ollama.NewSummarizer(ollamaClient),
		time.Duration(cfg.StageTimeoutSecs)*time.Second,
		logger,
	)

	return &App{
		Config:    cfg,
		Queue:     queue,
		Processor: processor,

		closeFn: func() {
			queue.Close()
			closeCache()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
