package sync

import (
	"context"
	"math/rand"
	"time"

	"github.com/sirupsen/logrus"
)

// Retrier runs an operation with exponential backoff and jitter. The
// engine itself never retries; callers that want retry semantics (CLI
// one-shots, ad hoc scripts) wrap engine operations with one of these.
type Retrier struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	logger      *logrus.Entry
}

// NewRetrier creates a Retrier with the given bounds.
func NewRetrier(maxAttempts int, baseDelay, maxDelay time.Duration, logger *logrus.Logger) *Retrier {
	return &Retrier{
		MaxAttempts: maxAttempts,
		BaseDelay:   baseDelay,
		MaxDelay:    maxDelay,
		logger:      logger.WithField("component", "retrier"),
	}
}

// Do runs fn until it succeeds, attempts are exhausted, or the context
// is cancelled. Returns the last error on exhaustion.
func (r *Retrier) Do(ctx context.Context, name string, fn func(context.Context) error) error {
	var lastErr error
	for attempt := 1; attempt <= r.MaxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt == r.MaxAttempts {
			break
		}

		delay := r.backoff(attempt)
		r.logger.WithError(lastErr).WithFields(logrus.Fields{
			"operation": name,
			"attempt":   attempt,
			"delay":     delay,
		}).Warn("Operation failed, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return lastErr
}

// backoff doubles the base delay per attempt, caps it at MaxDelay, and
// adds up to 50% jitter to avoid synchronized retries.
func (r *Retrier) backoff(attempt int) time.Duration {
	delay := r.BaseDelay << uint(attempt-1)
	if delay > r.MaxDelay || delay <= 0 {
		delay = r.MaxDelay
	}
	jitter := time.Duration(rand.Int63n(int64(delay)/2 + 1))
	return delay + jitter
}
