package shared

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const (
	conflictRetries   = 3
	conflictBaseDelay = 100 * time.Millisecond
)

// RetryOnConflict runs fn, retrying with exponential backoff (100ms, 200ms)
// while it fails with a SQLite concurrency error.
func RetryOnConflict(ctx context.Context, op string, fn func() error) error {
	var err error
	for i := 0; i < conflictRetries; i++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !IsSQLiteConflictError(err) || i == conflictRetries-1 {
			break
		}

		delay := conflictBaseDelay * time.Duration(1<<i)
		slog.Debug("SQLite conflict, retrying", "op", op, "attempt", i+1, "delay", delay)
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", op, ctx.Err())
		case <-time.After(delay):
		}
	}

	if IsSQLiteConflictError(err) {
		return fmt.Errorf("%s failed after %d attempts: %w", op, conflictRetries, err)
	}
	return err
}
