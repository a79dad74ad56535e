package services

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

var (
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("admin access required")
	ErrInvalidRequest    = errors.New("invalid request")
	ErrNotFound          = errors.New("not found")
	ErrInvalidState      = errors.New("invalid state")
	ErrInsufficientFunds = errors.New("insufficient balance")
	ErrDuplicateRequest  = errors.New("duplicate request")
	ErrConflict          = errors.New("already exists")
)

var domainErrors = []error{
	ErrUnauthorized, ErrForbidden, ErrInvalidRequest, ErrNotFound,
	ErrInvalidState, ErrInsufficientFunds, ErrDuplicateRequest, ErrConflict,
}

// IsDomainError reports whether err carries one of the sentinels above.
// Anything else is a store or driver failure.
func IsDomainError(err error) bool {
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// wrapStoreError passes domain errors through and logs everything else.
func wrapStoreError(logger zerolog.Logger, err error, msg string) error {
	if IsDomainError(err) {
		return err
	}
	logger.Error().Err(err).Msg(msg)
	return fmt.Errorf("%s: %w", msg, err)
}
