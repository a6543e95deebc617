package storage

import (
	"context"
	"fmt"

	"agendawatch/internal/models"
)

type JobRepo struct {
	db *DB
}

func NewJobRepo(db *DB) *JobRepo {
	return &JobRepo{db: db}
}

func (r *JobRepo) CreateJob(ctx context.Context, j models.IngestJob) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO ingest_jobs (job_id, company_id, municipality, status, total_documents)
VALUES ($1, $2, $3, $4, $5)`,
		j.JobID, j.CompanyID, j.Municipality, models.JobStatusPending, j.TotalDocuments)
	if err != nil {
		return fmt.Errorf("insert ingest job: %w", err)
	}
	return nil
}

func (r *JobRepo) UpdateJobStatus(ctx context.Context, jobID, status string) error {
	_, err := r.db.Pool.Exec(ctx, `
UPDATE ingest_jobs SET status=$2,
  started_at = CASE WHEN $2='processing' AND started_at IS NULL THEN NOW() ELSE started_at END,
  completed_at = CASE WHEN $2 IN ('completed','failed','cancelled') THEN NOW() ELSE completed_at END
WHERE job_id=$1`, jobID, status)
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	return nil
}

func (r *JobRepo) UpdateJobProgress(ctx context.Context, jobID string, progress, total, processed, errorCount int) error {
	_, err := r.db.Pool.Exec(ctx, `
UPDATE ingest_jobs SET progress=$2, total_documents=$3, processed_documents=$4, error_count=$5
WHERE job_id=$1`, jobID, progress, total, processed, errorCount)
	if err != nil {
		return fmt.Errorf("update job progress: %w", err)
	}
	return nil
}

func (r *JobRepo) GetJob(ctx context.Context, jobID string) (models.IngestJob, error) {
	var j models.IngestJob
	err := r.db.Pool.QueryRow(ctx, `
SELECT job_id, company_id, municipality, status, progress, total_documents, processed_documents, error_count,
       started_at, completed_at, created_at
FROM ingest_jobs WHERE job_id=$1`, jobID).
		Scan(&j.JobID, &j.CompanyID, &j.Municipality, &j.Status, &j.Progress, &j.TotalDocuments, &j.ProcessedDocuments, &j.ErrorCount, &j.StartedAt, &j.CompletedAt, &j.CreatedAt)
	if err != nil {
		return models.IngestJob{}, fmt.Errorf("get ingest job: %w", err)
	}
	return j, nil
}

func (r *JobRepo) ListJobs(ctx context.Context, companyID string) ([]models.IngestJob, error) {
	rows, err := r.db.Pool.Query(ctx, `
SELECT job_id, company_id, municipality, status, progress, total_documents, processed_documents, error_count,
       started_at, completed_at, created_at
FROM ingest_jobs WHERE company_id=$1 ORDER BY created_at DESC`, companyID)
	if err != nil {
		return nil, fmt.Errorf("list ingest jobs: %w", err)
	}
	defer rows.Close()
	out := make([]models.IngestJob, 0)
	for rows.Next() {
		var j models.IngestJob
		if err := rows.Scan(&j.JobID, &j.CompanyID, &j.Municipality, &j.Status, &j.Progress, &j.TotalDocuments, &j.ProcessedDocuments, &j.ErrorCount, &j.StartedAt, &j.CompletedAt, &j.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ingest job: %w", err)
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// CancelJob marks a job cancelled. In-flight document analyses are not
// interrupted; their results are discarded against the cancelled job.
func (r *JobRepo) CancelJob(ctx context.Context, jobID string) error {
	tag, err := r.db.Pool.Exec(ctx, `
UPDATE ingest_jobs SET status='cancelled', completed_at=NOW()
WHERE job_id=$1 AND status NOT IN ('completed','failed','cancelled')`, jobID)
	if err != nil {
		return fmt.Errorf("cancel job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("cancel job: job %s not found or already finished", jobID)
	}
	return nil
}
