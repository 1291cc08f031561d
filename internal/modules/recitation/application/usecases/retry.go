package usecases

import (
	"context"
	"log/slog"
	"time"
)

// RetryPolicy bounds attempts at a remote operation. Each attempt runs under
// its own Timeout; attempts are separated by an exponential backoff starting
// at Backoff and capped at MaxBackoff.
type RetryPolicy struct {
	Attempts   int
	Timeout    time.Duration
	Backoff    time.Duration
	MaxBackoff time.Duration
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:   3,
		Timeout:    5 * time.Second,
		Backoff:    250 * time.Millisecond,
		MaxBackoff: 2 * time.Second,
	}
}

// Do runs fn until it succeeds, the attempts are exhausted or ctx is done.
// It returns the last error from fn, or ctx.Err() if ctx ended first.
func (p RetryPolicy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	attempts := max(p.Attempts, 1)
	delay := p.Backoff

	var err error
	for attempt := range attempts {
		err = p.attempt(ctx, fn)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		slog.Debug("attempt failed",
			"op", op,
			"attempt", attempt+1,
			"attempts", attempts,
			"error", err,
		)

		if attempt == attempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if p.MaxBackoff > 0 && delay > p.MaxBackoff {
			delay = p.MaxBackoff
		}
	}
	return err
}

func (p RetryPolicy) attempt(ctx context.Context, fn func(ctx context.Context) error) error {
	if p.Timeout <= 0 {
		return fn(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()
	return fn(attemptCtx)
}
