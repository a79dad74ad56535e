package store

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithRetry(t *testing.T) {
	ctx := context.Background()

	calls := 0
	err := withRetry(ctx, func() error {
		calls++
		if calls < 3 {
			return fmt.Errorf("deadlock: %w", ErrRetryable)
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = withRetry(ctx, func() error {
		calls++
		return ErrRetryable
	})
	assert.ErrorIs(t, err, ErrRetryable)
	assert.Equal(t, maxTxAttempts, calls)

	calls = 0
	boom := errors.New("boom")
	err = withRetry(ctx, func() error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	calls = 0
	err = withRetry(cancelled, func() error {
		calls++
		return ErrRetryable
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
