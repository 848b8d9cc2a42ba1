package cloudwatch

import (
	"context"
	"fmt"
	"time"
)

const (
	maxRetries     = 3
	initialBackoff = 100 * time.Millisecond
)

// errPermanent marks errors that retrying cannot fix.
type errPermanent struct{ err error }

func (e errPermanent) Error() string { return e.err.Error() }
func (e errPermanent) Unwrap() error { return e.err }

// withRetry calls fn up to maxRetries times with exponential backoff.
func withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error
	backoff := initialBackoff

	for attempt := 0; attempt < maxRetries; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if perm, ok := err.(errPermanent); ok {
			return perm.err
		}
		lastErr = err

		if attempt < maxRetries-1 {
			select {
			case <-time.After(backoff):
				backoff *= 2
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return fmt.Errorf("failed after %d retries: %w", maxRetries, lastErr)
}
