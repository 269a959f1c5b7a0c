package domain

import "time"

type ExtractionMethod string

const (
	MethodDirectText     ExtractionMethod = "direct-text"
	MethodOfficeDocument ExtractionMethod = "office-document"
	MethodPlainText      ExtractionMethod = "plain-text"
	MethodOCR            ExtractionMethod = "ocr"
)

// DocumentMetadata is optional descriptive metadata recovered from the
// document container (PDF Info dictionary, office doc props).
type DocumentMetadata struct {
	Author      string     `json:"author,omitempty"`
	Title       string     `json:"title,omitempty"`
	CreatedDate *time.Time `json:"created_date,omitempty"`
}

type ExtractionResult struct {
	Text       string            `json:"text"`
	Method     ExtractionMethod  `json:"method"`
	Confidence *float64          `json:"confidence,omitempty"`
	PageCount  *int              `json:"page_count,omitempty"`
	Metadata   *DocumentMetadata `json:"metadata,omitempty"`
}

type OCRBlockType string

const (
	BlockPage     OCRBlockType = "page"
	BlockLine     OCRBlockType = "line"
	BlockWord     OCRBlockType = "word"
	BlockTable    OCRBlockType = "table"
	BlockCell     OCRBlockType = "cell"
	BlockKeyValue OCRBlockType = "key-value"
)

type BoundingBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

type OCRBlock struct {
	Type       OCRBlockType `json:"type"`
	Text       string       `json:"text"`
	Confidence float64      `json:"confidence"`
	Box        *BoundingBox `json:"box,omitempty"`
}

// OCRResult carries recognized text with block-level confidence.
// Confidence is on a 0-100 scale; zero text with zero confidence is a
// valid outcome for an image with nothing readable on it.
type OCRResult struct {
	Text       string     `json:"text"`
	Confidence float64    `json:"confidence"`
	Blocks     []OCRBlock `json:"blocks,omitempty"`
}

type DocumentType string

const (
	DocContract       DocumentType = "contract"
	DocInvoice        DocumentType = "invoice"
	DocReceipt        DocumentType = "receipt"
	DocBankStatement  DocumentType = "bank-statement"
	DocIDDocument     DocumentType = "id-document"
	DocCorrespondence DocumentType = "correspondence"
	DocCourtFiling    DocumentType = "court-filing"
	DocPhoto          DocumentType = "photo"
	DocOther          DocumentType = "other"
)

// DocumentTypes is the fixed classification taxonomy.
var DocumentTypes = []DocumentType{
	DocContract, DocInvoice, DocReceipt, DocBankStatement, DocIDDocument,
	DocCorrespondence, DocCourtFiling, DocPhoto, DocOther,
}

func IsKnownDocumentType(t DocumentType) bool {
	for _, known := range DocumentTypes {
		if t == known {
			return true
		}
	}
	return false
}

type ClassificationResult struct {
	DocumentType DocumentType `json:"document_type"`
	Confidence   float64      `json:"confidence"`
	Reasoning    string       `json:"reasoning,omitempty"`
}

type DateEntity struct {
	Raw     string `json:"raw"`
	ISO     string `json:"iso"`
	Context string `json:"context,omitempty"`
}

type AmountEntity struct {
	Value    float64 `json:"value"`
	Currency string  `json:"currency"`
	Raw      string  `json:"raw"`
	Context  string  `json:"context,omitempty"`
}

type PartyType string

const (
	PartyPerson       PartyType = "person"
	PartyOrganization PartyType = "organization"
	PartyUnknown      PartyType = "unknown"
)

type PartyEntity struct {
	Name string    `json:"name"`
	Type PartyType `json:"type"`
	Role string    `json:"role,omitempty"`
}

type ExtractedEntities struct {
	Dates     []DateEntity   `json:"dates"`
	Amounts   []AmountEntity `json:"amounts"`
	Parties   []PartyEntity  `json:"parties"`
	Addresses []string       `json:"addresses"`
	Emails    []string       `json:"emails"`
	Phones    []string       `json:"phones"`
}

type SummarizationResult struct {
	Summary   string   `json:"summary"`
	KeyPoints []string `json:"key_points"`
}

// ProcessorOptions configures one processing attempt. Zero values mean
// "run everything with defaults".
type ProcessorOptions struct {
	SkipOCR                bool    `json:"skip_ocr,omitempty"`
	SkipClassification     bool    `json:"skip_classification,omitempty"`
	SkipEntities           bool    `json:"skip_entities,omitempty"`
	SkipSummarization      bool    `json:"skip_summarization,omitempty"`
	OCRConfidenceThreshold float64 `json:"ocr_confidence_threshold,omitempty"`
	MaxTextLength          int     `json:"max_text_length,omitempty"`
	Force                  bool    `json:"force,omitempty"`
}

// DefaultOCRConfidenceThreshold applies when options leave the threshold
// unset. Extraction confidence below it routes the document through OCR.
const DefaultOCRConfidenceThreshold = 60.0

func (o ProcessorOptions) Threshold() float64 {
	if o.OCRConfidenceThreshold > 0 {
		return o.OCRConfidenceThreshold
	}
	return DefaultOCRConfidenceThreshold
}

// ProcessingResult is the terminal aggregate of one pipeline run.
// A stage field is nil when the stage was skipped or never reached.
type ProcessingResult struct {
	EvidenceID       string                `json:"evidence_id"`
	Status           ProcessingStatus      `json:"processing_status"`
	Extraction       *ExtractionResult     `json:"extraction,omitempty"`
	OCR              *OCRResult            `json:"ocr,omitempty"`
	Classification   *ClassificationResult `json:"classification,omitempty"`
	Entities         *ExtractedEntities    `json:"entities,omitempty"`
	Summary          *SummarizationResult  `json:"summary,omitempty"`
	Error            string                `json:"error,omitempty"`
	ProcessingTimeMs int64                 `json:"processing_time_ms"`
}
