package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mediaforge/internal/domain"
)

// JobRepositoryPG implements domain.JobStore.
type JobRepositoryPG struct {
	pool *pgxpool.Pool
}

// NewJobRepository creates a new job repository backed by PostgreSQL.
func NewJobRepository(pool *pgxpool.Pool) *JobRepositoryPG {
	return &JobRepositoryPG{pool: pool}
}

// Create inserts a new job record.
func (r *JobRepositoryPG) Create(ctx context.Context, job *domain.Job) error {
	meta, err := json.Marshal(job.Meta)
	if err != nil {
		return fmt.Errorf("marshal job meta: %w", err)
	}
	query := `
INSERT INTO jobs (id, owner_id, team_id, kind, status, provider, input_json, required_credits, result_ref, meta_json)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);
`
	_, err = r.pool.Exec(ctx, query,
		job.ID,
		job.OwnerID,
		job.TeamID,
		job.Kind,
		job.Status,
		job.Provider,
		nullableBytes(job.InputJSON),
		job.RequiredCredits,
		job.ResultRef,
		meta,
	)
	return err
}

// GetByID fetches a job by its identifier.
func (r *JobRepositoryPG) GetByID(ctx context.Context, jobID string) (*domain.Job, error) {
	query := `
SELECT id, owner_id, team_id, kind, status, provider, input_json, required_credits, result_ref, meta_json, created_at, updated_at
FROM jobs
WHERE id = $1;
`
	row := r.pool.QueryRow(ctx, query, jobID)
	return scanJob(row)
}

// ListByOwner returns the owner's most recent jobs.
func (r *JobRepositoryPG) ListByOwner(ctx context.Context, ownerID string, limit int) ([]domain.Job, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
SELECT id, owner_id, team_id, kind, status, provider, input_json, required_credits, result_ref, meta_json, created_at, updated_at
FROM jobs
WHERE owner_id = $1
ORDER BY created_at DESC
LIMIT $2;
`
	rows, err := r.pool.Query(ctx, query, ownerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *job)
	}
	return out, rows.Err()
}

// ListStale returns jobs in the given status whose last update predates
// olderThan, oldest first. Used by the reconciliation sweep.
func (r *JobRepositoryPG) ListStale(ctx context.Context, status domain.JobStatus, olderThan time.Time, limit int) ([]domain.Job, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
SELECT id, owner_id, team_id, kind, status, provider, input_json, required_credits, result_ref, meta_json, created_at, updated_at
FROM jobs
WHERE status = $1 AND updated_at < $2
ORDER BY updated_at ASC
LIMIT $3;
`
	rows, err := r.pool.Query(ctx, query, status, olderThan, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *job)
	}
	return out, rows.Err()
}

// SetStatus updates the job status and, when non-empty, the result reference.
func (r *JobRepositoryPG) SetStatus(ctx context.Context, jobID string, status domain.JobStatus, resultRef string) error {
	query := `
UPDATE jobs
SET status = $2,
    result_ref = CASE WHEN $3 = '' THEN result_ref ELSE $3 END,
    updated_at = NOW()
WHERE id = $1;
`
	tag, err := r.pool.Exec(ctx, query, jobID, status, resultRef)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SetMeta replaces the job's metadata document.
func (r *JobRepositoryPG) SetMeta(ctx context.Context, jobID string, meta domain.JobMeta) error {
	doc, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal job meta: %w", err)
	}
	query := `
UPDATE jobs
SET meta_json = $2,
    updated_at = NOW()
WHERE id = $1;
`
	tag, err := r.pool.Exec(ctx, query, jobID, doc)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Delete removes a job row. Used only to roll back a row whose credit
// reservation failed.
func (r *JobRepositoryPG) Delete(ctx context.Context, jobID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM jobs WHERE id = $1;`, jobID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanJob(row pgx.Row) (*domain.Job, error) {
	var job domain.Job
	var meta []byte
	if err := row.Scan(
		&job.ID,
		&job.OwnerID,
		&job.TeamID,
		&job.Kind,
		&job.Status,
		&job.Provider,
		&job.InputJSON,
		&job.RequiredCredits,
		&job.ResultRef,
		&meta,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &job.Meta); err != nil {
			return nil, fmt.Errorf("unmarshal job meta: %w", err)
		}
	}
	return &job, nil
}

func nullableBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}

var _ domain.JobStore = (*JobRepositoryPG)(nil)
