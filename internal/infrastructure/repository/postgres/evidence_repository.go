package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/caseflow-io/evidence-pipeline/internal/core/domain"
)

type EvidenceRepository struct {
	db *sql.DB
}

func NewEvidenceRepository(db *sql.DB) *EvidenceRepository {
	return &EvidenceRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *EvidenceRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026081201)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS evidence (
	id TEXT PRIMARY KEY,
	case_id TEXT NOT NULL,
	filename TEXT NOT NULL,
	mime_type TEXT NOT NULL,
	storage_key TEXT NOT NULL,
	status TEXT NOT NULL,
	processing_error TEXT NOT NULL DEFAULT '',
	processed_at TIMESTAMPTZ,
	extraction JSONB,
	ocr JSONB,
	classification JSONB,
	entities JSONB,
	summary JSONB,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_evidence_case_id ON evidence(case_id);
CREATE INDEX IF NOT EXISTS idx_evidence_status ON evidence(status);

CREATE TABLE IF NOT EXISTS processing_jobs (
	id TEXT PRIMARY KEY,
	evidence_id TEXT NOT NULL,
	status TEXT NOT NULL,
	progress INTEGER NOT NULL DEFAULT 0,
	started_at TIMESTAMPTZ,
	completed_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_processing_jobs_evidence_id ON processing_jobs(evidence_id);

CREATE UNIQUE INDEX IF NOT EXISTS uq_processing_jobs_active
ON processing_jobs(evidence_id)
WHERE status IN ('QUEUED','RUNNING');
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *EvidenceRepository) GetByID(ctx context.Context, id string) (*domain.Evidence, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, case_id, filename, mime_type, storage_key, status, processing_error, processed_at,
	extraction, ocr, classification, entities, summary, created_at, updated_at
FROM evidence
WHERE id = $1
`, id)

	var ev domain.Evidence
	var status string
	var extractionRaw, ocrRaw, classificationRaw, entitiesRaw, summaryRaw []byte

	err := row.Scan(
		&ev.ID, &ev.CaseID, &ev.Filename, &ev.MimeType, &ev.StorageKey, &status, &ev.ProcessingError, &ev.ProcessedAt,
		&extractionRaw, &ocrRaw, &classificationRaw, &entitiesRaw, &summaryRaw, &ev.CreatedAt, &ev.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrEvidenceNotFound, "evidence.get", fmt.Errorf("id %s", id))
		}
		return nil, fmt.Errorf("scan evidence: %w", err)
	}
	ev.Status = domain.ProcessingStatus(status)

	if err := unmarshalColumn(extractionRaw, &ev.Extraction); err != nil {
		return nil, fmt.Errorf("unmarshal extraction: %w", err)
	}
	if err := unmarshalColumn(ocrRaw, &ev.OCR); err != nil {
		return nil, fmt.Errorf("unmarshal ocr: %w", err)
	}
	if err := unmarshalColumn(classificationRaw, &ev.Classification); err != nil {
		return nil, fmt.Errorf("unmarshal classification: %w", err)
	}
	if err := unmarshalColumn(entitiesRaw, &ev.Entities); err != nil {
		return nil, fmt.Errorf("unmarshal entities: %w", err)
	}
	if err := unmarshalColumn(summaryRaw, &ev.Summary); err != nil {
		return nil, fmt.Errorf("unmarshal summary: %w", err)
	}
	return &ev, nil
}

func (r *EvidenceRepository) UpdateStatus(ctx context.Context, id string, status domain.ProcessingStatus, errMessage string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE evidence
SET status = $2, processing_error = $3, updated_at = $4
WHERE id = $1
`, id, string(status), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update evidence status: %w", err)
	}
	return requireRow(res, "evidence.update_status", id)
}

func (r *EvidenceRepository) SaveExtraction(ctx context.Context, id string, res domain.ExtractionResult) error {
	return r.saveStage(ctx, id, "extraction", res)
}

func (r *EvidenceRepository) SaveOCR(ctx context.Context, id string, res domain.OCRResult) error {
	return r.saveStage(ctx, id, "ocr", res)
}

func (r *EvidenceRepository) SaveClassification(ctx context.Context, id string, res domain.ClassificationResult) error {
	return r.saveStage(ctx, id, "classification", res)
}

func (r *EvidenceRepository) SaveEntities(ctx context.Context, id string, res domain.ExtractedEntities) error {
	return r.saveStage(ctx, id, "entities", res)
}

func (r *EvidenceRepository) SaveSummary(ctx context.Context, id string, res domain.SummarizationResult) error {
	return r.saveStage(ctx, id, "summary", res)
}

// saveStage writes one JSONB stage column. The column name comes from a
// fixed internal set, never from input.
func (r *EvidenceRepository) saveStage(ctx context.Context, id, column string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", column, err)
	}
	query := fmt.Sprintf(`UPDATE evidence SET %s = $2, updated_at = $3 WHERE id = $1`, column)
	res, err := r.db.ExecContext(ctx, query, id, payload, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save %s: %w", column, err)
	}
	return requireRow(res, "evidence.save_"+column, id)
}

func (r *EvidenceRepository) Finish(ctx context.Context, id string, status domain.ProcessingStatus, errMessage string) error {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
UPDATE evidence
SET status = $2, processing_error = $3, processed_at = $4, updated_at = $4
WHERE id = $1
`, id, string(status), errMessage, now)
	if err != nil {
		return fmt.Errorf("finish evidence: %w", err)
	}
	return requireRow(res, "evidence.finish", id)
}

func requireRow(res sql.Result, op, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrEvidenceNotFound, op, fmt.Errorf("id %s", id))
	}
	return nil
}

func unmarshalColumn[T any](raw []byte, out **T) error {
	if len(raw) == 0 {
		return nil
	}
	var value T
	if err := json.Unmarshal(raw, &value); err != nil {
		return err
	}
	*out = &value
	return nil
}
