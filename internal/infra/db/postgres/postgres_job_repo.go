package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-fortune-reading/internal/domain"
	"telegram-fortune-reading/internal/domain/model"
	"telegram-fortune-reading/internal/domain/ports/repository"
)

var _ repository.JobStore = (*JobRepo)(nil)

// JobRepo persists queue jobs. Dequeue uses FOR UPDATE SKIP LOCKED so
// concurrent worker processes never claim the same row.
type JobRepo struct {
	pool *pgxpool.Pool
	tm   repository.TransactionManager
}

func NewJobRepo(pool *pgxpool.Pool, tm repository.TransactionManager) *JobRepo {
	return &JobRepo{pool: pool, tm: tm}
}

func (r *JobRepo) Insert(ctx context.Context, job *model.Job) error {
	const q = `
INSERT INTO jobs (id, queue, payload, state, retry_count, retry_limit,
                  visible_at, expires_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now(), now());`

	_, err := r.pool.Exec(ctx, q,
		job.ID, job.Queue, job.Payload, string(job.State),
		job.RetryCount, job.RetryLimit, job.VisibleAt, job.ExpiresAt)
	return err
}

// FetchDue claims the oldest due created job of the queue and marks it
// active. ULID job IDs are time-ordered, so ORDER BY id is FIFO.
func (r *JobRepo) FetchDue(ctx context.Context, queue string) (*model.Job, error) {
	var job *model.Job

	err := r.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		const fetch = `
SELECT id, queue, payload, state, retry_count, retry_limit,
       visible_at, expires_at, created_at, updated_at
  FROM jobs
 WHERE queue = $1 AND state = 'created' AND visible_at <= now()
 ORDER BY id
 LIMIT 1
 FOR UPDATE SKIP LOCKED;`

		row, err := pickRow(ctx, r.pool, tx, fetch, queue)
		if err != nil {
			return err
		}

		var j model.Job
		var state string
		if err := row.Scan(&j.ID, &j.Queue, &j.Payload, &state, &j.RetryCount, &j.RetryLimit,
			&j.VisibleAt, &j.ExpiresAt, &j.CreatedAt, &j.UpdatedAt); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrNotFound
			}
			return domain.ErrReadDatabaseRow
		}
		j.State = model.JobState(state)

		const mark = `
UPDATE jobs SET state = 'active', started_at = now(), updated_at = now()
 WHERE id = $1;`
		if _, err := execSQL(ctx, r.pool, tx, mark, j.ID); err != nil {
			return err
		}
		now := time.Now()
		j.State = model.JobStateActive
		j.StartedAt = &now

		job = &j
		return nil
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (r *JobRepo) Complete(ctx context.Context, jobID string, out model.JobOutput) error {
	return r.finish(ctx, jobID, model.JobStateCompleted, out)
}

func (r *JobRepo) Fail(ctx context.Context, jobID string, out model.JobOutput) error {
	return r.finish(ctx, jobID, model.JobStateFailed, out)
}

func (r *JobRepo) finish(ctx context.Context, jobID string, state model.JobState, out model.JobOutput) error {
	blob, err := json.Marshal(out)
	if err != nil {
		return err
	}
	const q = `
UPDATE jobs
   SET state = $2, output = $3, completed_at = now(), updated_at = now()
 WHERE id = $1 AND state = 'active';`
	tag, err := r.pool.Exec(ctx, q, jobID, string(state), blob)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Retry returns an active job to created with one more retry on the
// counter, visible again at visibleAt.
func (r *JobRepo) Retry(ctx context.Context, jobID string, visibleAt time.Time) error {
	const q = `
UPDATE jobs
   SET state = 'created', retry_count = retry_count + 1,
       visible_at = $2, started_at = NULL, updated_at = now()
 WHERE id = $1 AND state = 'active';`
	tag, err := r.pool.Exec(ctx, q, jobID, visibleAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SweepStale force-fails active jobs started before cutoff. Used once at
// worker startup to repair locks abandoned by a crashed process.
func (r *JobRepo) SweepStale(ctx context.Context, cutoff time.Time, out model.JobOutput) (int, error) {
	blob, err := json.Marshal(out)
	if err != nil {
		return 0, err
	}
	const q = `
UPDATE jobs
   SET state = 'failed', output = $2, completed_at = now(), updated_at = now()
 WHERE state = 'active' AND started_at IS NOT NULL AND started_at < $1;`
	tag, err := r.pool.Exec(ctx, q, cutoff, blob)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *JobRepo) CountByState(ctx context.Context, queue string) (map[model.JobState]int, error) {
	const q = `SELECT state, COUNT(*) FROM jobs WHERE queue = $1 GROUP BY state;`
	rows, err := r.pool.Query(ctx, q, queue)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[model.JobState]int{}
	for rows.Next() {
		var state string
		var n int
		if err := rows.Scan(&state, &n); err != nil {
			return nil, err
		}
		out[model.JobState(state)] = n
	}
	return out, rows.Err()
}
