package store

import "errors"

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate key")
	// ErrRetryable marks deadlocks and serialization failures. WithTx retries
	// the whole unit when fn returns an error wrapping it.
	ErrRetryable = errors.New("retryable conflict")
)
