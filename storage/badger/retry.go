package badger

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const (
	defaultMaxAttempts = 5
	defaultBaseDelay   = 10 * time.Millisecond
)

// retryOnConflict runs operation until it does not fail with a transaction
// conflict, doubling the delay between attempts.
// Other errors are returned immediately. Returns the last conflict error if
// all attempts fail.
func retryOnConflict(ctx context.Context, logger *slog.Logger, operation func() error, maxAttempts int, baseDelay time.Duration) error {
	var lastErr error
	for attempt := 1; attempt <= max(maxAttempts, 1); attempt++ {
		// Check context before attempting
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = operation()
		if lastErr == nil {
			if attempt > 1 {
				logger.Debug("transaction committed after retry", "attempt", attempt)
			}
			return nil
		}
		if !errors.Is(lastErr, badger.ErrConflict) {
			return lastErr
		}

		logger.Debug("transaction conflict, will retry", "attempt", attempt, "maxAttempts", maxAttempts)

		// Don't sleep after the last attempt
		if attempt >= maxAttempts {
			break
		}

		// Calculate exponential backoff: baseDelay * 2^(attempt-1)
		delay := baseDelay << (attempt - 1)

		// Sleep with context awareness
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return lastErr
}
