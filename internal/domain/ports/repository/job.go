package repository

import (
	"context"
	"time"

	"telegram-fortune-reading/internal/domain/model"
)

// JobStore persists queue jobs. Locking semantics (one logical owner per
// active job) are enforced here, not by the workers.
type JobStore interface {
	Insert(ctx context.Context, job *model.Job) error

	// FetchDue atomically claims the oldest created job of queue whose
	// visibility time has passed and marks it active with a started_at
	// stamp. Returns domain.ErrNotFound when no job is due.
	FetchDue(ctx context.Context, queue string) (*model.Job, error)

	// Complete marks the job completed with the given output.
	Complete(ctx context.Context, jobID string, out model.JobOutput) error

	// Fail marks the job failed with the given output.
	Fail(ctx context.Context, jobID string, out model.JobOutput) error

	// Retry returns an active job to created with an incremented retry
	// count, visible again at visibleAt.
	Retry(ctx context.Context, jobID string, visibleAt time.Time) error

	// SweepStale force-fails active jobs whose started_at is older than
	// cutoff and returns how many were swept.
	SweepStale(ctx context.Context, cutoff time.Time, out model.JobOutput) (int, error)

	// CountByState returns per-state job counts for one queue.
	CountByState(ctx context.Context, queue string) (map[model.JobState]int, error)
}
