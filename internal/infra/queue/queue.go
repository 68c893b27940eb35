// Package queue is the durable job queue: validated enqueue, polling
// workers with at-least-once delivery, bounded retries, and the
// stale-lock sweep run at process startup.
package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"telegram-fortune-reading/internal/domain"
	"telegram-fortune-reading/internal/domain/model"
	"telegram-fortune-reading/internal/domain/ports/repository"
	"telegram-fortune-reading/internal/infra/logging"
	"telegram-fortune-reading/internal/infra/metrics"
)

// Handler processes one job. Returning a domain.NonRetryable error closes
// the job out as completed-with-error (no pointless retries); any other
// error requeues the job until its retry limit, then fails it.
type Handler func(ctx context.Context, job *model.Job) error

const (
	minSweepAgeMinutes = 1
	maxSweepAgeMinutes = 1440
)

// Service is an explicitly constructed queue handle with a
// Start/Stop lifecycle, injected into producers and workers rather than
// looked up from global state.
type Service struct {
	store        repository.JobStore
	validate     *validator.Validate
	pollInterval time.Duration
	defaults     model.EnqueueOptions
	log          *zerolog.Logger

	mu       sync.Mutex
	handlers map[string]Handler
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func NewService(store repository.JobStore, pollInterval time.Duration, defaults model.EnqueueOptions, logger *zerolog.Logger) *Service {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	l := logger.With().Str("component", "JobQueue").Logger()
	return &Service{
		store:        store,
		validate:     validator.New(),
		pollInterval: pollInterval,
		defaults:     defaults.Normalize(),
		log:          &l,
		handlers:     map[string]Handler{},
	}
}

// Enqueue validates payload against the queue's schema and persists the
// job. Invalid payloads are rejected synchronously and never enqueued.
func (s *Service) Enqueue(ctx context.Context, queue string, payload any, opts model.EnqueueOptions) (string, error) {
	proto, err := model.PayloadFor(queue)
	if err != nil {
		return "", err
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("%w: marshal payload: %v", domain.ErrInvalidArgument, err)
	}
	// Round-trip into the queue's canonical payload type so extra or
	// mistyped fields cannot smuggle past validation.
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(proto); err != nil {
		return "", fmt.Errorf("%w: payload shape: %v", domain.ErrInvalidArgument, err)
	}
	if err := s.validate.Struct(proto); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}

	opts = mergeOptions(opts, s.defaults)
	now := time.Now()
	job := &model.Job{
		ID:         ulid.Make().String(),
		Queue:      queue,
		Payload:    raw,
		State:      model.JobStateCreated,
		RetryLimit: opts.RetryLimit,
		VisibleAt:  now,
		ExpiresAt:  now.Add(opts.ExpireIn),
	}
	if err := s.store.Insert(ctx, job); err != nil {
		return "", fmt.Errorf("enqueue %s: %w", queue, err)
	}
	s.log.Debug().Str("queue", queue).Str("job_id", job.ID).Msg("job enqueued")
	return job.ID, nil
}

// RegisterWorker binds handler to queue. One polling goroutine per queue,
// one job at a time, so the compensation reasoning stays per-job.
func (s *Service) RegisterWorker(queue string, handler Handler) error {
	if _, err := model.PayloadFor(queue); err != nil {
		return err
	}
	if handler == nil {
		return domain.ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.handlers[queue]; dup {
		return fmt.Errorf("%w: worker for %s", domain.ErrAlreadyExists, queue)
	}
	s.handlers[queue] = handler
	return nil
}

// Start launches the polling loops for all registered workers.
func (s *Service) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.cancel = cancel
	queues := make([]string, 0, len(s.handlers))
	for q := range s.handlers {
		queues = append(queues, q)
	}
	s.mu.Unlock()

	for _, q := range queues {
		s.wg.Add(1)
		go s.pollLoop(ctx, q)
	}
	s.wg.Add(1)
	go s.depthLoop(ctx, queues)
	s.log.Info().Int("queues", len(queues)).Msg("queue workers started")
}

// Stop cancels the polling loops and waits for in-flight jobs.
func (s *Service) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

func (s *Service) pollLoop(ctx context.Context, queue string) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.processOne(ctx, queue)
		}
	}
}

func (s *Service) processOne(ctx context.Context, queue string) {
	job, err := s.store.FetchDue(ctx, queue)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			s.log.Error().Err(err).Str("queue", queue).Msg("fetch job failed")
		}
		return
	}

	s.mu.Lock()
	handler := s.handlers[queue]
	s.mu.Unlock()

	jctx := logging.WithJobID(ctx, job.ID)
	log := logging.With(jctx, s.log)
	log.Info().Str("queue", queue).Msg("processing job")

	start := time.Now()
	herr := handler(jctx, job)
	metrics.ObserveJobDuration(queue, float64(time.Since(start).Milliseconds()))

	switch {
	case herr == nil:
		if err := s.store.Complete(ctx, job.ID, model.JobOutput{OK: true}); err != nil {
			log.Error().Err(err).Msg("could not mark job completed")
		}
		metrics.IncJob(queue, "completed")
		log.Info().Str("queue", queue).Dur("duration", time.Since(start)).Msg("job completed")

	case domain.IsNonRetryable(herr):
		// Validation-class failure: close the job out so the queue does
		// not retry it, but keep the error on record.
		out := model.JobOutput{OK: false, Error: herr.Error(), Note: "non-retryable"}
		if err := s.store.Complete(ctx, job.ID, out); err != nil {
			log.Error().Err(err).Msg("could not close out non-retryable job")
		}
		metrics.IncJob(queue, "completed")
		log.Error().Err(herr).Str("queue", queue).Msg("job failed non-retryably")

	case job.RetryCount < job.RetryLimit:
		visibleAt := time.Now().Add(s.defaults.RetryDelay)
		if err := s.store.Retry(ctx, job.ID, visibleAt); err != nil {
			log.Error().Err(err).Msg("could not requeue job")
		}
		metrics.IncJob(queue, "retried")
		log.Warn().Err(herr).Str("queue", queue).
			Int("retry", job.RetryCount+1).Int("retry_limit", job.RetryLimit).
			Msg("job requeued after error")

	default:
		out := model.JobOutput{OK: false, Error: herr.Error()}
		if err := s.store.Fail(ctx, job.ID, out); err != nil {
			log.Error().Err(err).Msg("could not mark job failed")
		}
		metrics.IncJob(queue, "failed")
		log.Error().Err(herr).Str("queue", queue).Msg("job failed, retries exhausted")
	}
}

func (s *Service) depthLoop(ctx context.Context, queues []string) {
	defer s.wg.Done()
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, q := range queues {
				counts, err := s.store.CountByState(ctx, q)
				if err != nil {
					continue
				}
				for state, n := range counts {
					metrics.SetQueueDepth(q, string(state), n)
				}
			}
		}
	}
}

// CleanupStaleLocks force-fails active jobs older than maxAgeMinutes.
// Runs once at worker-process startup to repair locks abandoned by a
// previous crash. The age is clamped to [1,1440] minutes so a bad config
// value cannot sweep legitimately slow jobs.
func (s *Service) CleanupStaleLocks(ctx context.Context, maxAgeMinutes int) (int, error) {
	if maxAgeMinutes < minSweepAgeMinutes {
		maxAgeMinutes = minSweepAgeMinutes
	}
	if maxAgeMinutes > maxSweepAgeMinutes {
		maxAgeMinutes = maxSweepAgeMinutes
	}
	cutoff := time.Now().Add(-time.Duration(maxAgeMinutes) * time.Minute)
	n, err := s.store.SweepStale(ctx, cutoff, model.JobOutput{
		OK:    false,
		Error: "stale - cleared by cleanup",
		Note:  "abandoned by a crashed worker",
	})
	if err != nil {
		return 0, fmt.Errorf("stale lock sweep: %w", err)
	}
	if n > 0 {
		metrics.AddSwept(n)
		s.log.Warn().Int("count", n).Int("max_age_minutes", maxAgeMinutes).Msg("stale jobs cleared")
	}
	return n, nil
}

// Depths returns a per-queue state snapshot for the ops endpoint.
func (s *Service) Depths(ctx context.Context) (map[string]map[model.JobState]int, error) {
	s.mu.Lock()
	queues := make([]string, 0, len(s.handlers))
	for q := range s.handlers {
		queues = append(queues, q)
	}
	s.mu.Unlock()

	out := map[string]map[model.JobState]int{}
	for _, q := range queues {
		counts, err := s.store.CountByState(ctx, q)
		if err != nil {
			return nil, err
		}
		out[q] = counts
	}
	return out, nil
}

func mergeOptions(opts, defaults model.EnqueueOptions) model.EnqueueOptions {
	if opts.RetryLimit <= 0 {
		opts.RetryLimit = defaults.RetryLimit
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = defaults.RetryDelay
	}
	if opts.ExpireIn <= 0 {
		opts.ExpireIn = defaults.ExpireIn
	}
	return opts
}
