// Package repo implements the domain repositories on PostgreSQL.
package repo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"adcraft/internal/domain"
)

// JobRepositoryPG implements domain.JobRepository.
type JobRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewJobRepository creates a job repository backed by PostgreSQL.
func NewJobRepository(pool *pgxpool.Pool) *JobRepositoryPG {
	return &JobRepositoryPG{pool: pool}
}

// Create inserts a job. Re-submitting an existing id resets it to the new
// status and input so the worker re-runs it.
func (r *JobRepositoryPG) Create(ctx context.Context, job *domain.Job) error {
	query := `
INSERT INTO jobs (id, job_type, status, input_json, dev_mode, api_version, locale)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO UPDATE SET
    job_type = EXCLUDED.job_type,
    status = EXCLUDED.status,
    input_json = EXCLUDED.input_json,
    dev_mode = EXCLUDED.dev_mode,
    api_version = EXCLUDED.api_version,
    locale = EXCLUDED.locale,
    result_key = '',
    error_message = '',
    updated_at = now();
`
	_, err := r.pool.Exec(ctx, query,
		job.ID,
		job.Type,
		job.Status,
		job.InputJSON,
		job.DevMode,
		job.APIVersion,
		job.Locale,
	)
	return err
}

// UpdateStatus writes the job's status. Last write wins; there is no state
// machine check at this layer.
func (r *JobRepositoryPG) UpdateStatus(ctx context.Context, jobID string, status domain.JobStatus, errMsg *string, resultKey string) error {
	query := `
UPDATE jobs
SET status = $2,
    error_message = COALESCE($3, error_message),
    result_key = CASE WHEN $4 <> '' THEN $4 ELSE result_key END,
    updated_at = now()
WHERE id = $1;
`
	tag, err := r.pool.Exec(ctx, query, jobID, status, errMsg, resultKey)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetByID loads one job.
func (r *JobRepositoryPG) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	row := r.pool.QueryRow(ctx, `
SELECT id, job_type, status, input_json, result_key, error_message, dev_mode, api_version, locale, created_at, updated_at
FROM jobs
WHERE id = $1;
`, jobID)

	var job domain.Job
	err := row.Scan(
		&job.ID,
		&job.Type,
		&job.Status,
		&job.InputJSON,
		&job.ResultKey,
		&job.ErrorMessage,
		&job.DevMode,
		&job.APIVersion,
		&job.Locale,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &job, nil
}

var _ domain.JobRepository = (*JobRepositoryPG)(nil)
