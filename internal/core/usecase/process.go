package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/caseflow-io/evidence-pipeline/internal/core/domain"
	"github.com/caseflow-io/evidence-pipeline/internal/core/ports"
)

// Progress milestones written at stage boundaries. Sub-stage progress is not
// observable from the underlying extraction calls, so the pipeline reports
// only these.
const (
	progressExtracting  = 0
	progressOCR         = 20
	progressClassifying = 40
	progressEntities    = 60
	progressSummarizing = 80
	progressDone        = 100
)

type ProcessEvidenceUseCase struct {
	repo       ports.EvidenceRepository
	jobs       ports.JobStore
	storage    ports.ObjectStorage
	cache      ports.ProgressCache
	queue      ports.MessageQueue
	extractor  ports.TextExtractor
	ocr        ports.OCREngine
	classifier ports.DocumentClassifier
	entities   ports.EntityExtractor
	summarizer ports.Summarizer

	stageTimeout time.Duration
	logger       *slog.Logger
	locks        *keyedMutex
	stageTimes   StageObserver
}

// StageObserver receives the wall-clock duration of every completed stage.
type StageObserver func(stage string, elapsed time.Duration)

// SetStageObserver attaches a stage-duration sink, typically the worker's
// metrics. A nil observer disables observation.
func (uc *ProcessEvidenceUseCase) SetStageObserver(fn StageObserver) {
	uc.stageTimes = fn
}

func NewProcessEvidenceUseCase(
	repo ports.EvidenceRepository,
	jobs ports.JobStore,
	storage ports.ObjectStorage,
	cache ports.ProgressCache,
	queue ports.MessageQueue,
	extractor ports.TextExtractor,
	ocr ports.OCREngine,
	classifier ports.DocumentClassifier,
	entities ports.EntityExtractor,
	summarizer ports.Summarizer,
	stageTimeout time.Duration,
	logger *slog.Logger,
) *ProcessEvidenceUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	if stageTimeout <= 0 {
		stageTimeout = 2 * time.Minute
	}
	return &ProcessEvidenceUseCase{
		repo:         repo,
		jobs:         jobs,
		storage:      storage,
		cache:        cache,
		queue:        queue,
		extractor:    extractor,
		ocr:          ocr,
		classifier:   classifier,
		entities:     entities,
		summarizer:   summarizer,
		stageTimeout: stageTimeout,
		logger:       logger,
		locks:        newKeyedMutex(),
	}
}

// Process runs the pipeline synchronously on the calling context. Input
// errors (unknown evidence, unsupported MIME, unreadable bytes) come back as
// typed errors before any job exists; stage failures terminate the job and
// are reported inside the returned result.
func (uc *ProcessEvidenceUseCase) Process(ctx context.Context, evidenceID string, opts domain.ProcessorOptions) (*domain.ProcessingResult, error) {
	ev, err := uc.loadEvidence(ctx, evidenceID)
	if err != nil {
		return nil, err
	}
	if err := validateMime(ev.MimeType); err != nil {
		return nil, err
	}

	if !opts.Force {
		if coalesced := uc.coalesce(ctx, ev); coalesced != nil {
			return coalesced, nil
		}
	}

	if !uc.locks.TryAcquire(evidenceID) {
		// A synchronous call raced an in-flight run in this process.
		return resultFromEvidence(ev), nil
	}
	defer uc.locks.Release(evidenceID)

	data, err := uc.readBytes(ctx, ev)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	job := &domain.ProcessingJob{
		ID:         uuid.NewString(),
		EvidenceID: evidenceID,
		Status:     domain.JobRunning,
		StartedAt:  &now,
		CreatedAt:  now,
	}
	created, active, err := uc.jobs.CreateIfAbsent(ctx, job)
	if err != nil {
		return nil, fmt.Errorf("register job: %w", err)
	}
	if !created {
		uc.logger.Info("process.coalesced", "evidence_id", evidenceID, "job_id", active.ID)
		return resultFromEvidence(ev), nil
	}

	return uc.run(ctx, ev, job, data, opts), nil
}

// RunQueued executes a previously queued job on a worker. Duplicate queue
// deliveries lose the claim and return without side effects.
func (uc *ProcessEvidenceUseCase) RunQueued(ctx context.Context, req domain.ProcessRequest) (*domain.ProcessingResult, error) {
	claimed, err := uc.jobs.Claim(ctx, req.JobID)
	if err != nil {
		return nil, fmt.Errorf("claim job %s: %w", req.JobID, err)
	}
	if !claimed {
		attrs := []any{"job_id", req.JobID, "evidence_id", req.EvidenceID}
		if existing, lookupErr := uc.jobs.GetByID(ctx, req.JobID); lookupErr == nil {
			attrs = append(attrs, "job_status", existing.Status)
		}
		uc.logger.Info("process.duplicate_delivery", attrs...)
		return nil, nil
	}

	// The previous run for this evidence may still be unwinding between its
	// terminal write and the lock release; wait for it rather than failing a
	// healthy claimed job.
	if err := uc.locks.Acquire(ctx, req.EvidenceID); err != nil {
		return nil, fmt.Errorf("wait for evidence %s lock: %w", req.EvidenceID, err)
	}
	defer uc.locks.Release(req.EvidenceID)

	ev, err := uc.loadEvidence(ctx, req.EvidenceID)
	if err != nil {
		uc.finishFailed(ctx, req.EvidenceID, req.JobID, err.Error())
		return nil, err
	}

	data, err := uc.readBytes(ctx, ev)
	if err != nil {
		uc.finishFailed(ctx, req.EvidenceID, req.JobID, err.Error())
		return nil, err
	}

	job := &domain.ProcessingJob{ID: req.JobID, EvidenceID: req.EvidenceID, Status: domain.JobRunning}
	return uc.run(ctx, ev, job, data, req.Options), nil
}

// run executes the stage sequence for one claimed job. Stage failures are
// caught at the stage boundary and become the terminal FAILED state; there
// is no automatic retry past that point.
func (uc *ProcessEvidenceUseCase) run(ctx context.Context, ev *domain.Evidence, job *domain.ProcessingJob, data []byte, opts domain.ProcessorOptions) *domain.ProcessingResult {
	start := time.Now()
	result := &domain.ProcessingResult{EvidenceID: ev.ID}

	finish := func() *domain.ProcessingResult {
		result.ProcessingTimeMs = time.Since(start).Milliseconds()
		return result
	}
	observe := func(stage string, since time.Time) {
		if uc.stageTimes != nil {
			uc.stageTimes(stage, time.Since(since))
		}
	}
	fail := func(stage string, err error) *domain.ProcessingResult {
		msg := fmt.Sprintf("%s stage: %v", stage, err)
		uc.logger.Error("process.stage_failed",
			"evidence_id", ev.ID, "job_id", job.ID, "stage", stage,
			"kind", errorKind(err), "error", err,
		)
		uc.finishFailed(ctx, ev.ID, job.ID, msg)
		result.Status = domain.StatusFailed
		result.Error = msg
		return finish()
	}

	if err := uc.repo.UpdateStatus(ctx, ev.ID, domain.StatusProcessing, ""); err != nil {
		return fail("bootstrap", err)
	}

	isImage := domain.IsImage(ev.MimeType)
	text := ""

	// Image types have no text layer; extraction is never invoked for them.
	if !isImage {
		uc.writeProgress(ctx, ev.ID, job.ID, domain.StepExtracting, progressExtracting, "")
		stageStart := time.Now()
		extraction, err := uc.extractor.Extract(ctx, data, ev.MimeType)
		if err != nil {
			return fail("extraction", err)
		}
		if err := uc.repo.SaveExtraction(ctx, ev.ID, extraction); err != nil {
			return fail("extraction", err)
		}
		observe("extraction", stageStart)
		result.Extraction = &extraction
		text = extraction.Text
	}

	// OCR runs only when there is no usable text or extraction confidence
	// fell below the threshold; digitally-native documents never pay for it.
	if uc.needsOCR(isImage, result.Extraction, opts) {
		uc.writeProgress(ctx, ev.ID, job.ID, domain.StepOCRProcessing, progressOCR, "")
		stageStart := time.Now()
		var ocrRes domain.OCRResult
		err := uc.callStage(ctx, func(callCtx context.Context) error {
			var callErr error
			ocrRes, callErr = uc.ocr.Recognize(callCtx, data, ev.MimeType)
			return callErr
		})
		if err != nil {
			return fail("ocr", err)
		}
		if err := uc.repo.SaveOCR(ctx, ev.ID, ocrRes); err != nil {
			return fail("ocr", err)
		}
		observe("ocr", stageStart)
		result.OCR = &ocrRes
		if len(ocrRes.Text) > len(text) {
			text = ocrRes.Text
		}
	}

	if opts.MaxTextLength > 0 {
		text = truncate(text, opts.MaxTextLength)
	}

	if !opts.SkipClassification {
		uc.writeProgress(ctx, ev.ID, job.ID, domain.StepClassifying, progressClassifying, "")
		stageStart := time.Now()
		var cls domain.ClassificationResult
		err := uc.callStage(ctx, func(callCtx context.Context) error {
			var callErr error
			cls, callErr = uc.classifier.Classify(callCtx, text)
			return callErr
		})
		if err != nil {
			return fail("classification", err)
		}
		if err := uc.repo.SaveClassification(ctx, ev.ID, cls); err != nil {
			return fail("classification", err)
		}
		observe("classification", stageStart)
		result.Classification = &cls
	}

	if !opts.SkipEntities {
		uc.writeProgress(ctx, ev.ID, job.ID, domain.StepExtractingEntities, progressEntities, "")
		stageStart := time.Now()
		entities, err := uc.entities.Extract(ctx, text)
		if err != nil {
			return fail("entities", err)
		}
		if err := uc.repo.SaveEntities(ctx, ev.ID, entities); err != nil {
			return fail("entities", err)
		}
		observe("entities", stageStart)
		result.Entities = &entities
	}

	if !opts.SkipSummarization {
		uc.writeProgress(ctx, ev.ID, job.ID, domain.StepSummarizing, progressSummarizing, "")
		stageStart := time.Now()
		var summary domain.SummarizationResult
		err := uc.callStage(ctx, func(callCtx context.Context) error {
			var callErr error
			summary, callErr = uc.summarizer.Summarize(callCtx, text)
			return callErr
		})
		if err != nil {
			return fail("summarization", err)
		}
		if err := uc.repo.SaveSummary(ctx, ev.ID, summary); err != nil {
			return fail("summarization", err)
		}
		observe("summarization", stageStart)
		result.Summary = &summary
	}

	if err := uc.repo.Finish(ctx, ev.ID, domain.StatusCompleted, ""); err != nil {
		return fail("finalize", err)
	}
	if err := uc.jobs.Finish(ctx, job.ID, domain.JobCompleted); err != nil {
		uc.logger.Warn("process.job_finish_failed", "job_id", job.ID, "error", err)
	}
	uc.writeProgress(ctx, ev.ID, job.ID, domain.StepCompleted, progressDone, "")

	result.Status = domain.StatusCompleted
	uc.logger.Info("process.completed",
		"evidence_id", ev.ID, "job_id", job.ID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return finish()
}

func (uc *ProcessEvidenceUseCase) needsOCR(isImage bool, extraction *domain.ExtractionResult, opts domain.ProcessorOptions) bool {
	if opts.SkipOCR {
		return false
	}
	if isImage {
		return true
	}
	if extraction == nil || extraction.Text == "" {
		return true
	}
	if extraction.Confidence != nil && *extraction.Confidence < opts.Threshold() {
		return true
	}
	return false
}

// callStage wraps an external-capability call with the per-stage timeout and
// normalizes deadline expiry to the typed timeout kind.
func (uc *ProcessEvidenceUseCase) callStage(ctx context.Context, fn func(context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, uc.stageTimeout)
	defer cancel()

	err := fn(callCtx)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return domain.WrapError(domain.ErrTimeout, "stage call", err)
	}
	return err
}

func (uc *ProcessEvidenceUseCase) writeProgress(ctx context.Context, evidenceID, jobID string, step domain.Step, progress int, message string) {
	if err := uc.jobs.UpdateProgress(ctx, jobID, progress); err != nil {
		uc.logger.Warn("process.job_progress_failed", "job_id", jobID, "error", err)
	}
	uc.cacheProgress(ctx, evidenceID, step, progress, message)
}

func (uc *ProcessEvidenceUseCase) cacheProgress(ctx context.Context, evidenceID string, step domain.Step, progress int, message string) {
	err := uc.cache.Set(ctx, domain.Progress{
		EvidenceID: evidenceID,
		Step:       step,
		Progress:   progress,
		Message:    message,
		UpdatedAt:  time.Now().UTC(),
	})
	if err != nil {
		// Advisory cache only; never fails the job.
		uc.logger.Debug("process.progress_cache_unavailable", "evidence_id", evidenceID, "error", err)
	}
}

func (uc *ProcessEvidenceUseCase) finishFailed(ctx context.Context, evidenceID, jobID, msg string) {
	if err := uc.repo.Finish(ctx, evidenceID, domain.StatusFailed, msg); err != nil {
		uc.logger.Error("process.mark_failed_error", "evidence_id", evidenceID, "error", err)
	}
	if jobID != "" {
		if err := uc.jobs.Finish(ctx, jobID, domain.JobFailed); err != nil {
			uc.logger.Warn("process.job_finish_failed", "job_id", jobID, "error", err)
		}
	}
	uc.cacheProgress(ctx, evidenceID, domain.StepFailed, progressDone, msg)
}

// coalesce returns the current state when a non-terminal job already exists
// or the document is already COMPLETED. Not an error: idempotent no-op.
func (uc *ProcessEvidenceUseCase) coalesce(ctx context.Context, ev *domain.Evidence) *domain.ProcessingResult {
	if ev.Status == domain.StatusCompleted {
		return resultFromEvidence(ev)
	}
	active, err := uc.jobs.GetActiveForEvidence(ctx, ev.ID)
	if err != nil && !domain.IsKind(err, domain.ErrJobNotFound) {
		uc.logger.Warn("process.active_job_lookup_failed", "evidence_id", ev.ID, "error", err)
		return nil
	}
	if active != nil {
		return resultFromEvidence(ev)
	}
	return nil
}

func (uc *ProcessEvidenceUseCase) loadEvidence(ctx context.Context, evidenceID string) (*domain.Evidence, error) {
	ev, err := uc.repo.GetByID(ctx, evidenceID)
	if err != nil {
		return nil, fmt.Errorf("fetch evidence %s: %w", evidenceID, err)
	}
	return ev, nil
}

func (uc *ProcessEvidenceUseCase) readBytes(ctx context.Context, ev *domain.Evidence) ([]byte, error) {
	reader, err := uc.storage.Open(ctx, ev.StorageKey)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "open evidence bytes", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "read evidence bytes", err)
	}
	return data, nil
}

func validateMime(mimeType string) error {
	if !domain.IsSupportedMime(mimeType) {
		return domain.WrapError(domain.ErrUnsupportedInput, "validate mime", fmt.Errorf("mime type %q", mimeType))
	}
	return nil
}

func resultFromEvidence(ev *domain.Evidence) *domain.ProcessingResult {
	return &domain.ProcessingResult{
		EvidenceID:     ev.ID,
		Status:         ev.Status,
		Extraction:     ev.Extraction,
		OCR:            ev.OCR,
		Classification: ev.Classification,
		Entities:       ev.Entities,
		Summary:        ev.Summary,
		Error:          ev.ProcessingError,
	}
}

func errorKind(err error) string {
	switch {
	case domain.IsKind(err, domain.ErrUnsupportedInput):
		return "unsupported_input"
	case domain.IsKind(err, domain.ErrTimeout):
		return "dependency_timeout"
	case domain.IsKind(err, domain.ErrMalformedInput):
		return "malformed_input"
	default:
		return "internal"
	}
}
