package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/caseflow-io/evidence-pipeline/internal/core/domain"
)

func TestQueuePublishesProcessRequest(t *testing.T) {
	f := newFixture(pdfEvidence(), []byte("%PDF"))

	jobID, err := f.uc.Queue(context.Background(), "ev-1", domain.ProcessorOptions{SkipOCR: true})
	if err != nil {
		t.Fatalf("Queue() error = %v", err)
	}
	if jobID == "" {
		t.Fatalf("expected a job id")
	}
	if len(f.queue.published) != 1 {
		t.Fatalf("published %d requests, want 1", len(f.queue.published))
	}
	req := f.queue.published[0]
	if req.JobID != jobID || req.EvidenceID != "ev-1" || !req.Options.SkipOCR {
		t.Fatalf("unexpected request: %+v", req)
	}
	if ev := f.repo.evidence["ev-1"]; ev.Status != domain.StatusQueued {
		t.Fatalf("evidence status = %s, want QUEUED", ev.Status)
	}
}

func TestQueueCoalescesOnActiveJob(t *testing.T) {
	f := newFixture(pdfEvidence(), []byte("%PDF"))
	now := time.Now().UTC()
	_, _, err := f.jobs.CreateIfAbsent(context.Background(), &domain.ProcessingJob{
		ID: "job-0", EvidenceID: "ev-1", Status: domain.JobRunning, CreatedAt: now,
	})
	if err != nil {
		t.Fatalf("seed job: %v", err)
	}

	jobID, err := f.uc.Queue(context.Background(), "ev-1", domain.ProcessorOptions{})
	if err != nil {
		t.Fatalf("Queue() error = %v", err)
	}
	if jobID != "job-0" {
		t.Fatalf("job id = %s, want existing job-0", jobID)
	}
	if len(f.queue.published) != 0 {
		t.Fatalf("coalesced enqueue must not publish, got %d", len(f.queue.published))
	}
}

func TestQueueCompletedWithoutForceReturnsEmptyJobID(t *testing.T) {
	ev := pdfEvidence()
	ev.Status = domain.StatusCompleted
	f := newFixture(ev, []byte("%PDF"))

	jobID, err := f.uc.Queue(context.Background(), "ev-1", domain.ProcessorOptions{})
	if err != nil {
		t.Fatalf("Queue() error = %v", err)
	}
	if jobID != "" {
		t.Fatalf("job id = %q, want empty", jobID)
	}
	if len(f.queue.published) != 0 {
		t.Fatalf("completed evidence must not be re-enqueued")
	}
}

func TestQueueCompletedWithForceEnqueues(t *testing.T) {
	ev := pdfEvidence()
	ev.Status = domain.StatusCompleted
	f := newFixture(ev, []byte("%PDF"))

	jobID, err := f.uc.Queue(context.Background(), "ev-1", domain.ProcessorOptions{Force: true})
	if err != nil {
		t.Fatalf("Queue() error = %v", err)
	}
	if jobID == "" || len(f.queue.published) != 1 {
		t.Fatalf("force must enqueue a new job")
	}
}

func TestQueueUnreadableObjectFailsBeforeJobExists(t *testing.T) {
	f := newFixture(pdfEvidence(), []byte("%PDF"))
	f.storage.openErr = errors.New("disk gone")

	_, err := f.uc.Queue(context.Background(), "ev-1", domain.ProcessorOptions{})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if len(f.jobs.jobs) != 0 {
		t.Fatalf("no job may exist after a pre-flight failure")
	}
}

func TestQueuePublishFailureMarksJobFailed(t *testing.T) {
	f := newFixture(pdfEvidence(), []byte("%PDF"))
	f.queue.publishErr = errors.New("nats down")

	_, err := f.uc.Queue(context.Background(), "ev-1", domain.ProcessorOptions{})
	if err == nil {
		t.Fatalf("expected error")
	}
	if f.repo.finishStatus != domain.StatusFailed {
		t.Fatalf("evidence must be FAILED after publish failure, got %s", f.repo.finishStatus)
	}
	if _, ok := f.jobs.active["ev-1"]; ok {
		t.Fatalf("failed job must not stay active")
	}
}
