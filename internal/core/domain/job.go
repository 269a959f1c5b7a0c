package domain

import "time"

type JobStatus string

const (
	JobQueued    JobStatus = "QUEUED"
	JobRunning   JobStatus = "RUNNING"
	JobCompleted JobStatus = "COMPLETED"
	JobFailed    JobStatus = "FAILED"
)

func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed
}

// ProcessingJob is one execution attempt of the pipeline against one
// evidence document. At most one non-terminal job exists per evidence ID.
type ProcessingJob struct {
	ID          string     `json:"id"`
	EvidenceID  string     `json:"evidence_id"`
	Status      JobStatus  `json:"status"`
	Progress    int        `json:"progress"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Step names the pipeline stage an in-flight job is currently in.
type Step string

const (
	StepQueued             Step = "QUEUED"
	StepExtracting         Step = "EXTRACTING"
	StepOCRProcessing      Step = "OCR_PROCESSING"
	StepClassifying        Step = "CLASSIFYING"
	StepExtractingEntities Step = "EXTRACTING_ENTITIES"
	StepSummarizing        Step = "SUMMARIZING"
	StepCompleted          Step = "COMPLETED"
	StepFailed             Step = "FAILED"
)

// Progress is the advisory in-flight snapshot kept in the progress cache.
// It may be stale or absent; the durable status on the evidence record is
// the source of truth.
type Progress struct {
	EvidenceID string    `json:"evidence_id"`
	Step       Step      `json:"step"`
	Progress   int       `json:"progress"`
	Message    string    `json:"message,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ProcessRequest is the queue payload carried from enqueue to a worker.
type ProcessRequest struct {
	JobID      string           `json:"job_id"`
	EvidenceID string           `json:"evidence_id"`
	Options    ProcessorOptions `json:"options"`
	EnqueuedAt time.Time        `json:"enqueued_at"`
}
