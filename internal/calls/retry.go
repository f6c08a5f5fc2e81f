package calls

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Bounds for the optimistic-concurrency retry loop around conditional store
// writes.
const (
	writeMaxAttempts = 3
	writeBackoffStep = 100 * time.Millisecond
)

// withWriteRetry runs fn, retrying on ErrWriteConflict with a linearly
// increasing backoff (writeBackoffStep x attempt). Any other error returns
// immediately; an exhausted retry budget surfaces the conflict as fatal.
func withWriteRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 1; attempt <= writeMaxAttempts; attempt++ {
		err = fn()
		if err == nil || !errors.Is(err, ErrWriteConflict) {
			return err
		}
		if attempt == writeMaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(writeBackoffStep * time.Duration(attempt)):
		}
	}
	return fmt.Errorf("retries exhausted after %d attempts: %w", writeMaxAttempts, err)
}
