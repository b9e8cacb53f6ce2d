// Package common defines shared constants and sentinel errors used across
// PassVault components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound    = errors.New("not found")
	ErrEntryExists = errors.New("entry already exists")

	// Service-level errors (generic/internal flow control).
	ErrInternal        = errors.New("internal error")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrInvalidArgument = errors.New("invalid argument")

	// Secret acceptance policy errors.
	ErrWeakPassword     = errors.New("password does not meet strength policy")
	ErrBreachedPassword = errors.New("password found in breach corpus")

	// ErrProofMismatch is returned by an update whose old-password proof does
	// not match the stored secret. Deliberately generic: callers must not leak
	// more detail than "the provided data is not valid".
	ErrProofMismatch = errors.New("old password does not match")

	// ErrDecryptionFailed indicates a corrupted record or a record written
	// under a different key. Never swallowed silently.
	ErrDecryptionFailed = errors.New("decryption failed")

	// Auth errors.
	ErrInvalidToken        = errors.New("invalid token")
	ErrTokenExpired        = errors.New("token expired")
	ErrRefreshTokenExpired = errors.New("refresh token expired")
)
