package gateway

import (
	"context"
	"time"
)

// Default retry budget for calls that wait out the remote consistency
// window.
const (
	DefaultAttempts = 5
	DefaultBackoff  = 300 * time.Millisecond
)

// RetryPolicy is a bounded, fixed-backoff retry budget.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration

	// Sleep waits between attempts. Nil uses a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// DefaultRetryPolicy returns the default budget.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: DefaultAttempts, Backoff: DefaultBackoff}
}

func (p RetryPolicy) attempts() int {
	if p.Attempts < 1 {
		return 1
	}
	return p.Attempts
}

// wait blocks for the backoff or until ctx is done.
func (p RetryPolicy) wait(ctx context.Context) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, p.Backoff)
	}
	if p.Backoff <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(p.Backoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Do runs fn up to Attempts times, waiting Backoff between attempts, while
// fn returns a retryable error. Returns the last error.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 1; attempt <= p.attempts(); attempt++ {
		if attempt > 1 {
			if werr := p.wait(ctx); werr != nil {
				return werr
			}
		}
		err = fn(ctx)
		if !IsRetryable(err) {
			return err
		}
	}
	return err
}
