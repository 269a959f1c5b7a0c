package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/caseflow-io/evidence-pipeline/internal/core/domain"
)

func newEvidenceRepoWithMock(t *testing.T) (*EvidenceRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &EvidenceRepository{db: db}, mock, func() { _ = db.Close() }
}

func TestGetByIDReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newEvidenceRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, case_id, filename").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrEvidenceNotFound) {
		t.Fatalf("expected ErrEvidenceNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetByIDDecodesStageColumns(t *testing.T) {
	repo, mock, done := newEvidenceRepoWithMock(t)
	defer done()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "case_id", "filename", "mime_type", "storage_key", "status", "processing_error", "processed_at",
		"extraction", "ocr", "classification", "entities", "summary", "created_at", "updated_at",
	}).AddRow(
		"ev-1", "case-1", "contract.pdf", domain.MimePDF, "cases/case-1/ev-1", string(domain.StatusCompleted), "", now,
		[]byte(`{"text":"agreement text","method":"direct-text"}`), nil,
		[]byte(`{"document_type":"contract","confidence":0.9}`), nil,
		[]byte(`{"summary":"A contract.","key_points":["signed"]}`), now, now,
	)
	mock.ExpectQuery("SELECT id, case_id, filename").
		WithArgs("ev-1").
		WillReturnRows(rows)

	ev, err := repo.GetByID(context.Background(), "ev-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if ev.Extraction == nil || ev.Extraction.Text != "agreement text" {
		t.Fatalf("extraction not decoded: %+v", ev.Extraction)
	}
	if ev.OCR != nil {
		t.Fatalf("expected nil ocr, got %+v", ev.OCR)
	}
	if ev.Classification == nil || ev.Classification.DocumentType != domain.DocContract {
		t.Fatalf("classification not decoded: %+v", ev.Classification)
	}
	if ev.Summary == nil || ev.Summary.Summary != "A contract." {
		t.Fatalf("summary not decoded: %+v", ev.Summary)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateStatusReturnsDomainNotFoundWhenNoRowsAffected(t *testing.T) {
	repo, mock, done := newEvidenceRepoWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE evidence").
		WithArgs("missing", string(domain.StatusProcessing), "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), "missing", domain.StatusProcessing, "")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrEvidenceNotFound) {
		t.Fatalf("expected ErrEvidenceNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveClassificationWritesJSONColumn(t *testing.T) {
	repo, mock, done := newEvidenceRepoWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE evidence SET classification").
		WithArgs("ev-1", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SaveClassification(context.Background(), "ev-1", domain.ClassificationResult{
		DocumentType: domain.DocInvoice,
		Confidence:   0.87,
	})
	if err != nil {
		t.Fatalf("SaveClassification() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestFinishStampsProcessedAt(t *testing.T) {
	repo, mock, done := newEvidenceRepoWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE evidence").
		WithArgs("ev-1", string(domain.StatusCompleted), "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Finish(context.Background(), "ev-1", domain.StatusCompleted, ""); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
