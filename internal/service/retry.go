package service

import (
	"context"
	"fmt"
	"time"

	"coin-tip-ledger/pkg/apperror"
)

// RetryPolicy retries an operation that failed with DAEMON_003 using a fixed
// delay. Attempts counts retries, so the operation runs at most Attempts+1 times.
type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
	// OnRetry is called before each retry; attempt starts at 1.
	OnRetry func(attempt int, err error)
}

// retry runs fn under p. Non-transient errors are returned unchanged. When the
// retries are exhausted the last error is escalated to DAEMON_002.
func retry[T any](ctx context.Context, p RetryPolicy, op string, fn func() (T, error)) (T, error) {
	var zero T
	for attempt := 0; ; attempt++ {
		v, err := fn()
		if err == nil {
			return v, nil
		}
		if !apperror.HasCode(err, apperror.CodeTransientNetwork) {
			return zero, err
		}
		if attempt >= p.Attempts {
			return zero, apperror.ErrDaemon(op, fmt.Errorf("gave up after %d attempts: %w", attempt+1, err))
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt+1, err)
		}
		if err := sleepCtx(ctx, p.Delay); err != nil {
			return zero, fmt.Errorf("%s: %w", op, err)
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
