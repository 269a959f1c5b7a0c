package ports

import (
	"context"
	"io"

	"github.com/caseflow-io/evidence-pipeline/internal/core/domain"
)

// EvidenceRepository persists evidence processing state. Stage results are
// written incrementally as the pipeline advances; Finish is the single
// terminal write (status, error, processedAt).
type EvidenceRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Evidence, error)
	UpdateStatus(ctx context.Context, id string, status domain.ProcessingStatus, errMessage string) error
	SaveExtraction(ctx context.Context, id string, res domain.ExtractionResult) error
	SaveOCR(ctx context.Context, id string, res domain.OCRResult) error
	SaveClassification(ctx context.Context, id string, res domain.ClassificationResult) error
	SaveEntities(ctx context.Context, id string, res domain.ExtractedEntities) error
	SaveSummary(ctx context.Context, id string, res domain.SummarizationResult) error
	Finish(ctx context.Context, id string, status domain.ProcessingStatus, errMessage string) error
}

// JobStore persists processing jobs and carries the at-most-one-active-job
// invariant: CreateIfAbsent either inserts the given job or returns the
// existing non-terminal job for the same evidence ID.
type JobStore interface {
	CreateIfAbsent(ctx context.Context, job *domain.ProcessingJob) (created bool, active *domain.ProcessingJob, err error)
	Claim(ctx context.Context, jobID string) (bool, error)
	UpdateProgress(ctx context.Context, jobID string, progress int) error
	Finish(ctx context.Context, jobID string, status domain.JobStatus) error
	GetByID(ctx context.Context, jobID string) (*domain.ProcessingJob, error)
	GetActiveForEvidence(ctx context.Context, evidenceID string) (*domain.ProcessingJob, error)
}

// ObjectStorage holds the original evidence bytes; owned by the ingestion
// collaborator, read-only for the pipeline.
type ObjectStorage interface {
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// ProgressCache is the advisory in-flight progress store. Implementations
// must be best-effort: a miss is (zero, false, nil), not an error.
type ProgressCache interface {
	Set(ctx context.Context, progress domain.Progress) error
	Get(ctx context.Context, evidenceID string) (domain.Progress, bool, error)
}

// MessageQueue carries process requests from enqueue to workers.
type MessageQueue interface {
	PublishProcessRequest(ctx context.Context, req domain.ProcessRequest) error
	SubscribeProcessRequests(ctx context.Context, handler func(context.Context, domain.ProcessRequest) error) error
}

// TextExtractor pulls machine-readable text out of document bytes.
// Pure transformation: no persistence, no progress writes.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte, mimeType string) (domain.ExtractionResult, error)
}

// OCREngine runs optical character recognition over image bytes.
type OCREngine interface {
	Recognize(ctx context.Context, image []byte, mimeType string) (domain.OCRResult, error)
}

// DocumentClassifier assigns a document type from the fixed taxonomy.
type DocumentClassifier interface {
	Classify(ctx context.Context, text string) (domain.ClassificationResult, error)
}

// EntityExtractor pulls structured entities out of extracted text.
type EntityExtractor interface {
	Extract(ctx context.Context, text string) (domain.ExtractedEntities, error)
}

// Summarizer produces a short summary with key points.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (domain.SummarizationResult, error)
}
