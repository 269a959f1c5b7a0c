// Package worker drains process requests from the message queue through a
// bounded pool, so a burst of uploads cannot start an unbounded number of
// OCR and model calls at once.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/caseflow-io/evidence-pipeline/internal/core/domain"
	"github.com/caseflow-io/evidence-pipeline/internal/core/ports"
	"github.com/caseflow-io/evidence-pipeline/internal/observability/metrics"
)

// Runner executes one claimed process request end to end.
type Runner interface {
	RunQueued(ctx context.Context, req domain.ProcessRequest) (*domain.ProcessingResult, error)
}

type Pool struct {
	queue       ports.MessageQueue
	runner      Runner
	concurrency int
	jobTimeout  time.Duration
	metrics     *metrics.WorkerMetrics
	service     string
	logger      *slog.Logger
}

type Config struct {
	Concurrency int
	JobTimeout  time.Duration
	Metrics     *metrics.WorkerMetrics
	Service     string
	Logger      *slog.Logger
}

func NewPool(queue ports.MessageQueue, runner Runner, cfg Config) *Pool {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 4
	}
	jobTimeout := cfg.JobTimeout
	if jobTimeout <= 0 {
		jobTimeout = 15 * time.Minute
	}
	service := cfg.Service
	if service == "" {
		service = "evidence-worker"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		queue:       queue,
		runner:      runner,
		concurrency: concurrency,
		jobTimeout:  jobTimeout,
		metrics:     cfg.Metrics,
		service:     service,
		logger:      logger,
	}
}

// Run blocks until ctx is cancelled. The subscription callback only hands
// the request to the pool; all processing happens on the pool goroutines.
func (p *Pool) Run(ctx context.Context) error {
	requests := make(chan domain.ProcessRequest)

	group, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < p.concurrency; i++ {
		group.Go(func() error {
			for {
				select {
				case <-groupCtx.Done():
					return nil
				case req, ok := <-requests:
					if !ok {
						return nil
					}
					p.handle(groupCtx, req)
				}
			}
		})
	}

	group.Go(func() error {
		defer close(requests)
		err := p.queue.SubscribeProcessRequests(groupCtx, func(handlerCtx context.Context, req domain.ProcessRequest) error {
			select {
			case requests <- req:
				return nil
			case <-handlerCtx.Done():
				return handlerCtx.Err()
			}
		})
		if err != nil && groupCtx.Err() == nil {
			return fmt.Errorf("subscribe process requests: %w", err)
		}
		return nil
	})

	return group.Wait()
}

func (p *Pool) handle(ctx context.Context, req domain.ProcessRequest) {
	if p.metrics != nil {
		p.metrics.StartJob()
		if !req.EnqueuedAt.IsZero() {
			p.metrics.ObserveQueueLag(p.service, time.Since(req.EnqueuedAt))
		}
	}

	jobCtx, cancel := context.WithTimeout(ctx, p.jobTimeout)
	defer cancel()

	start := time.Now()
	result, err := p.runner.RunQueued(jobCtx, req)
	duration := time.Since(start)

	if p.metrics != nil {
		p.metrics.FinishJob(p.service, duration, err)
	}

	switch {
	case err != nil:
		p.logger.Error("evidence_process_failed",
			"job_id", req.JobID,
			"evidence_id", req.EvidenceID,
			"duration_ms", duration.Milliseconds(),
			"error", err,
		)
	case result == nil:
		// Claim lost to another worker or a terminal job: nothing to do.
		p.logger.Debug("evidence_process_skipped",
			"job_id", req.JobID,
			"evidence_id", req.EvidenceID,
		)
	default:
		p.logger.Info("evidence_process_finished",
			"job_id", req.JobID,
			"evidence_id", req.EvidenceID,
			"status", result.Status,
			"duration_ms", duration.Milliseconds(),
		)
	}
}
