package usecase

import (
	"context"
	"time"

	"telegram-fortune-reading/internal/domain"
)

// RetryPolicy bounds retries around a single external call.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 2 * time.Second
	}
	return p
}

// withRetry runs op up to p.MaxAttempts times with exponential backoff
// (base, 2*base, 4*base, ...). Non-retryable errors and context
// cancellation stop immediately. The last error is returned.
func withRetry(ctx context.Context, p RetryPolicy, op func(ctx context.Context) error) error {
	p = p.normalized()
	var err error
	delay := p.BaseDelay
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		err = op(ctx)
		if err == nil {
			return nil
		}
		if domain.IsNonRetryable(err) || attempt == p.MaxAttempts {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}
