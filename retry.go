package grid

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"
)

// Retry executes task with Fibonacci backoff up to maxRetries retries.
// Errors that ShouldRetry rejects end the loop immediately. If retries are
// exhausted, gaveUpTask is invoked (when not nil) and the final error is returned.
func Retry(ctx context.Context, maxRetries uint64, task func(ctx context.Context) error, gaveUpTask func(ctx context.Context)) error {
	b := retry.WithMaxRetries(maxRetries, retry.NewFibonacci(100*time.Millisecond))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		if err := task(ctx); err != nil {
			if ShouldRetry(err) {
				return retry.RetryableError(err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		Logger().Warn("gave up", "error", err)
		if gaveUpTask != nil {
			gaveUpTask(ctx)
		}
		return err
	}
	return nil
}

// ShouldRetry reports whether the error is retryable: non-nil, not a
// context cancellation and not a grid error whose code marks a permanent
// condition.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var ge Error
	if errors.As(err, &ge) {
		switch ge.Code {
		case CacheIDConflict, TxIncompatible, CacheClosed, InvalidTxState:
			return false
		}
	}
	return true
}
