// Package common defines shared constants and sentinel errors used across
// lakeadmin layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Lookup errors. NotFound is recoverable and often means "already done".
	ErrorNotFound = errors.New("not found")

	// Uniqueness violation; terminal, the caller must choose a new identifier.
	ErrorConflict = errors.New("already exists")

	// External system failures. Both are retryable by the caller.
	ErrorBackend        = errors.New("backend error")
	ErrorBackendTimeout = errors.New("backend timeout")

	// Primary step succeeded, a secondary step did not.
	ErrorPartialFailure = errors.New("partial failure")

	// Request-level errors.
	ErrorValidation   = errors.New("validation error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
