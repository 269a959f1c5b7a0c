package domain

import "time"

type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "PENDING"
	StatusQueued     ProcessingStatus = "QUEUED"
	StatusProcessing ProcessingStatus = "PROCESSING"
	StatusCompleted  ProcessingStatus = "COMPLETED"
	StatusFailed     ProcessingStatus = "FAILED"
)

// IsTerminal reports whether no further automatic transition may happen.
func (s ProcessingStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Evidence is one uploaded evidentiary document attached to a dispute case.
// The raw bytes live in object storage under StorageKey; this record carries
// only processing state and the structured outputs. It is created by the
// ingestion collaborator and mutated exclusively by the pipeline.
type Evidence struct {
	ID              string           `json:"id"`
	CaseID          string           `json:"case_id"`
	Filename        string           `json:"filename"`
	MimeType        string           `json:"mime_type"`
	StorageKey      string           `json:"storage_key"`
	Status          ProcessingStatus `json:"processing_status"`
	ProcessingError string           `json:"processing_error,omitempty"`
	ProcessedAt     *time.Time       `json:"processed_at,omitempty"`

	Extraction     *ExtractionResult     `json:"extraction,omitempty"`
	OCR            *OCRResult            `json:"ocr,omitempty"`
	Classification *ClassificationResult `json:"classification,omitempty"`
	Entities       *ExtractedEntities    `json:"entities,omitempty"`
	Summary        *SummarizationResult  `json:"summary,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EvidenceStatus is the read model served to polling clients. Text is
// truncated to a bounded length by the status usecase.
type EvidenceStatus struct {
	EvidenceID      string           `json:"evidence_id"`
	Status          ProcessingStatus `json:"processing_status"`
	ProcessingError string           `json:"processing_error,omitempty"`
	ProcessedAt     *time.Time       `json:"processed_at,omitempty"`

	ExtractedText  string                `json:"extracted_text,omitempty"`
	DocumentType   DocumentType          `json:"document_type,omitempty"`
	Classification *ClassificationResult `json:"classification,omitempty"`
	Entities       *ExtractedEntities    `json:"entities,omitempty"`
	Summary        string                `json:"summary,omitempty"`
	KeyPoints      []string              `json:"key_points,omitempty"`

	CurrentJob *ProcessingJob `json:"current_job,omitempty"`
	Progress   *Progress      `json:"progress,omitempty"`
}
