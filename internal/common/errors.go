// Package common defines shared constants and sentinel errors used across
// attachsync components. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Queue invariant violations. These indicate a caller bug and are
	// surfaced instead of retried.
	ErrMissingLocalURI = errors.New("attachment has no local uri")
	ErrMissingFilename = errors.New("attachment has no filename")
	ErrInvalidFilename = errors.New("attachment filename is not a plain file name")
	ErrNotEligible     = errors.New("attachment state does not allow this transfer")

	// Lifecycle errors.
	ErrAlreadyStarted = errors.New("queue already started")
	ErrNotStarted     = errors.New("queue not started")

	// Transaction errors.
	ErrNestedTransaction = errors.New("nested transaction")
)
