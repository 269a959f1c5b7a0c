package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/caseflow-io/evidence-pipeline/internal/core/domain"
)

// JobRepository enforces the single-active-job rule durably: the partial
// unique index uq_processing_jobs_active rejects a second QUEUED or RUNNING
// row for the same evidence ID, and CreateIfAbsent turns that conflict into
// a lookup of the surviving job.
type JobRepository struct {
	db *sql.DB
}

func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) CreateIfAbsent(ctx context.Context, job *domain.ProcessingJob) (bool, *domain.ProcessingJob, error) {
	res, err := r.db.ExecContext(ctx, `
INSERT INTO processing_jobs (id, evidence_id, status, progress, started_at, completed_at, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (evidence_id) WHERE status IN ('QUEUED','RUNNING') DO NOTHING
`,
		job.ID, job.EvidenceID, string(job.Status), job.Progress, job.StartedAt, job.CompletedAt, job.CreatedAt,
	)
	if err != nil {
		return false, nil, fmt.Errorf("insert job: %w", err)
	}

	inserted, err := res.RowsAffected()
	if err != nil {
		return false, nil, fmt.Errorf("insert job rows affected: %w", err)
	}
	if inserted == 1 {
		return true, job, nil
	}

	active, err := r.GetActiveForEvidence(ctx, job.EvidenceID)
	if err != nil {
		// The active job finished between the conflict and the lookup.
		// Callers retry by enqueueing again.
		if domain.IsKind(err, domain.ErrJobNotFound) {
			return false, nil, domain.WrapError(domain.ErrTemporary, "job.create", err)
		}
		return false, nil, err
	}
	return false, active, nil
}

// Claim moves a QUEUED job to RUNNING. It reports false when the job is
// already claimed or finished, which makes redelivered queue messages
// harmless.
func (r *JobRepository) Claim(ctx context.Context, jobID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
UPDATE processing_jobs
SET status = $2, started_at = $3
WHERE id = $1 AND status = $4
`, jobID, string(domain.JobRunning), time.Now().UTC(), string(domain.JobQueued))
	if err != nil {
		return false, fmt.Errorf("claim job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim job rows affected: %w", err)
	}
	return affected == 1, nil
}

func (r *JobRepository) UpdateProgress(ctx context.Context, jobID string, progress int) error {
	_, err := r.db.ExecContext(ctx, `
UPDATE processing_jobs
SET progress = $2
WHERE id = $1
`, jobID, progress)
	if err != nil {
		return fmt.Errorf("update job progress: %w", err)
	}
	return nil
}

func (r *JobRepository) Finish(ctx context.Context, jobID string, status domain.JobStatus) error {
	progress := 100
	if status != domain.JobCompleted {
		// Keep the last reported progress on failure.
		_, err := r.db.ExecContext(ctx, `
UPDATE processing_jobs
SET status = $2, completed_at = $3
WHERE id = $1
`, jobID, string(status), time.Now().UTC())
		if err != nil {
			return fmt.Errorf("finish job: %w", err)
		}
		return nil
	}

	_, err := r.db.ExecContext(ctx, `
UPDATE processing_jobs
SET status = $2, progress = $3, completed_at = $4
WHERE id = $1
`, jobID, string(status), progress, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("finish job: %w", err)
	}
	return nil
}

func (r *JobRepository) GetByID(ctx context.Context, jobID string) (*domain.ProcessingJob, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, evidence_id, status, progress, started_at, completed_at, created_at
FROM processing_jobs
WHERE id = $1
`, jobID)
	return scanJob(row, jobID)
}

func (r *JobRepository) GetActiveForEvidence(ctx context.Context, evidenceID string) (*domain.ProcessingJob, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, evidence_id, status, progress, started_at, completed_at, created_at
FROM processing_jobs
WHERE evidence_id = $1 AND status IN ('QUEUED','RUNNING')
`, evidenceID)
	return scanJob(row, evidenceID)
}

func scanJob(row *sql.Row, ref string) (*domain.ProcessingJob, error) {
	var job domain.ProcessingJob
	var status string
	err := row.Scan(&job.ID, &job.EvidenceID, &status, &job.Progress, &job.StartedAt, &job.CompletedAt, &job.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrJobNotFound, "job.get", fmt.Errorf("ref %s", ref))
		}
		return nil, fmt.Errorf("scan job: %w", err)
	}
	job.Status = domain.JobStatus(status)
	return &job, nil
}
