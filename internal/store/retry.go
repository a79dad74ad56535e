package store

import (
	"context"
	"errors"
	"time"
)

const (
	maxTxAttempts = 3
	retryBackoff  = 25 * time.Millisecond
)

func withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = fn()
		if err == nil || !errors.Is(err, ErrRetryable) {
			return err
		}
		if attempt == maxTxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * retryBackoff):
		}
	}
	return err
}
