package badger

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryOnConflict_EventualSuccess(t *testing.T) {
	attempts := 0
	operation := func() error {
		attempts++
		if attempts < 3 {
			return badger.ErrConflict
		}
		return nil
	}

	err := retryOnConflict(context.Background(), slog.Default(), operation, 5, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 3, attempts, "should succeed on third attempt")
}

func TestRetryOnConflict_AllAttemptsConflict(t *testing.T) {
	attempts := 0
	operation := func() error {
		attempts++
		return badger.ErrConflict
	}

	err := retryOnConflict(context.Background(), slog.Default(), operation, 3, time.Millisecond)
	assert.ErrorIs(t, err, badger.ErrConflict)
	assert.Equal(t, 3, attempts, "should attempt exactly maxAttempts times")
}

func TestRetryOnConflict_OtherErrorsAreNotRetried(t *testing.T) {
	attempts := 0
	expectedErr := errors.New("persistent error")
	operation := func() error {
		attempts++
		return expectedErr
	}

	err := retryOnConflict(context.Background(), slog.Default(), operation, 5, time.Millisecond)
	assert.Equal(t, expectedErr, err)
	assert.Equal(t, 1, attempts)
}

func TestRetryOnConflict_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	operation := func() error {
		attempts++
		if attempts == 2 {
			cancel()
		}
		return badger.ErrConflict
	}

	err := retryOnConflict(ctx, slog.Default(), operation, 10, time.Millisecond)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, attempts)
}
