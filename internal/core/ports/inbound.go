package ports

import (
	"context"

	"github.com/caseflow-io/evidence-pipeline/internal/core/domain"
)

// EvidenceProcessor is the inbound contract for the processing pipeline.
//
// Process runs the full pipeline inline and blocks until terminal; stage
// failures are reported inside the result, not as Go errors. Queue registers
// a job and returns its ID immediately; if a non-terminal job already exists
// for the evidence ID, the existing job's ID is returned. GetStatus is
// meaningful at any point of the lifecycle.
type EvidenceProcessor interface {
	Process(ctx context.Context, evidenceID string, opts domain.ProcessorOptions) (*domain.ProcessingResult, error)
	Queue(ctx context.Context, evidenceID string, opts domain.ProcessorOptions) (string, error)
	GetStatus(ctx context.Context, evidenceID string) (*domain.EvidenceStatus, error)
}
