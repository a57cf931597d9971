package repo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"studio/internal/domain"
)

// JobRepositoryPG implements domain.JobRepository.
type JobRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewJobRepository creates a new job repository backed by PostgreSQL.
func NewJobRepository(pool *pgxpool.Pool) *JobRepositoryPG {
	return &JobRepositoryPG{pool: pool}
}

// Create inserts a new job record.
func (r *JobRepositoryPG) Create(ctx context.Context, job *domain.GenerationJob) error {
	query := `
INSERT INTO generation_jobs (id, user_id, kind, provider, provider_job_id, status, progress, attempts, submitted_params, result_ref, error_message)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11);
`
	_, err := r.pool.Exec(ctx, query,
		job.ID,
		job.UserID,
		job.Kind,
		job.Provider,
		job.ProviderJobID,
		job.Status,
		job.Progress,
		job.Attempts,
		job.SubmittedParams,
		job.ResultRef,
		job.ErrorMessage,
	)
	return err
}

// GetByID fetches a job by its identifier.
func (r *JobRepositoryPG) GetByID(ctx context.Context, jobID string) (*domain.GenerationJob, error) {
	query := selectJob + `
WHERE id = $1;
`
	return r.scanOne(r.pool.QueryRow(ctx, query, jobID))
}

// GetForUser fetches a job only if it belongs to the user.
func (r *JobRepositoryPG) GetForUser(ctx context.Context, jobID, userID string) (*domain.GenerationJob, error) {
	query := selectJob + `
WHERE id = $1 AND user_id = $2;
`
	return r.scanOne(r.pool.QueryRow(ctx, query, jobID, userID))
}

// UpdateSnapshot records the latest poll result for a job.
func (r *JobRepositoryPG) UpdateSnapshot(ctx context.Context, jobID string, snap domain.Snapshot, attempts int) error {
	query := `
UPDATE generation_jobs
SET status = $2,
    progress = GREATEST(progress, $3),
    attempts = $4,
    result_ref = COALESCE(NULLIF($5, ''), result_ref),
    error_message = $6,
    updated_at = NOW()
WHERE id = $1;
`
	_, err := r.pool.Exec(ctx, query, jobID, snap.Status, snap.Progress, attempts, snap.ResultRef, snap.Message)
	return err
}

// ClaimRunnable returns one non-terminal, unleased job and stamps a lease on
// it. The lease keeps other workers off the row for its whole duration; SKIP
// LOCKED only covers the claim transaction itself. A crashed worker's job
// becomes claimable again once its lease expires. Returns a not-found error
// when no job is runnable.
func (r *JobRepositoryPG) ClaimRunnable(ctx context.Context, lease time.Duration) (*domain.GenerationJob, error) {
	query := selectJob + `
WHERE status IN ('pending', 'processing')
  AND (lease_until IS NULL OR lease_until < NOW())
ORDER BY updated_at ASC
LIMIT 1
FOR UPDATE SKIP LOCKED;
`
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	job, err := r.scanOne(tx.QueryRow(ctx, query))
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx,
		`UPDATE generation_jobs SET lease_until = NOW() + make_interval(secs => $2), updated_at = NOW() WHERE id = $1;`,
		job.ID, lease.Seconds(),
	); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return job, nil
}

// ReleaseLease makes the job immediately claimable again.
func (r *JobRepositoryPG) ReleaseLease(ctx context.Context, jobID string) error {
	_, err := r.pool.Exec(ctx, `UPDATE generation_jobs SET lease_until = NULL WHERE id = $1;`, jobID)
	return err
}

const selectJob = `
SELECT id, user_id, kind, provider, provider_job_id, status, progress, attempts, submitted_params, result_ref, error_message, created_at, updated_at
FROM generation_jobs`

func (r *JobRepositoryPG) scanOne(row pgx.Row) (*domain.GenerationJob, error) {
	var job domain.GenerationJob
	if err := row.Scan(
		&job.ID,
		&job.UserID,
		&job.Kind,
		&job.Provider,
		&job.ProviderJobID,
		&job.Status,
		&job.Progress,
		&job.Attempts,
		&job.SubmittedParams,
		&job.ResultRef,
		&job.ErrorMessage,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewError(domain.ErrKindNotFound, "job not found")
		}
		return nil, err
	}
	return &job, nil
}
