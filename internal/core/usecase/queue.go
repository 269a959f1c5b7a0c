package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/caseflow-io/evidence-pipeline/internal/core/domain"
)

// Queue registers a processing job and publishes a process request. It is
// idempotent with respect to concurrency: when a non-terminal job already
// exists for the evidence ID, that job's ID is returned and nothing new is
// published. A COMPLETED document without Force returns an empty job ID;
// the caller answers with the current status instead of re-processing.
func (uc *ProcessEvidenceUseCase) Queue(ctx context.Context, evidenceID string, opts domain.ProcessorOptions) (string, error) {
	ev, err := uc.loadEvidence(ctx, evidenceID)
	if err != nil {
		return "", err
	}
	if err := validateMime(ev.MimeType); err != nil {
		return "", err
	}
	if ev.Status == domain.StatusCompleted && !opts.Force {
		return "", nil
	}

	// Surface file-unavailable before any job exists.
	reader, err := uc.storage.Open(ctx, ev.StorageKey)
	if err != nil {
		return "", domain.WrapError(domain.ErrInvalidInput, "open evidence bytes", err)
	}
	_ = reader.Close()

	now := time.Now().UTC()
	job := &domain.ProcessingJob{
		ID:         uuid.NewString(),
		EvidenceID: evidenceID,
		Status:     domain.JobQueued,
		CreatedAt:  now,
	}
	created, active, err := uc.jobs.CreateIfAbsent(ctx, job)
	if err != nil {
		return "", fmt.Errorf("register job: %w", err)
	}
	if !created {
		uc.logger.Info("queue.coalesced", "evidence_id", evidenceID, "job_id", active.ID)
		return active.ID, nil
	}

	if err := uc.repo.UpdateStatus(ctx, evidenceID, domain.StatusQueued, ""); err != nil {
		uc.finishFailed(ctx, evidenceID, job.ID, fmt.Sprintf("mark queued: %v", err))
		return "", fmt.Errorf("mark queued: %w", err)
	}
	uc.cacheProgress(ctx, evidenceID, domain.StepQueued, 0, "")

	req := domain.ProcessRequest{
		JobID:      job.ID,
		EvidenceID: evidenceID,
		Options:    opts,
		EnqueuedAt: now,
	}
	if err := uc.queue.PublishProcessRequest(ctx, req); err != nil {
		uc.finishFailed(ctx, evidenceID, job.ID, fmt.Sprintf("publish process request: %v", err))
		return "", fmt.Errorf("publish process request: %w", err)
	}

	uc.logger.Info("queue.enqueued", "evidence_id", evidenceID, "job_id", job.ID)
	return job.ID, nil
}
