package session

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a session id is unknown or has already been swept.
	ErrNotFound = errors.New("session not found")
	// ErrExpired is returned when a session's TTL has passed.
	ErrExpired = errors.New("session expired")
	// ErrInactive is returned when an operation requires an active session.
	ErrInactive = errors.New("session not active")
	// ErrInvalidInput is returned for missing or malformed request data.
	ErrInvalidInput = errors.New("invalid input")
)

// StorageError wraps a failure of the backing store so callers can
// distinguish "store unavailable" from lifecycle errors.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("session storage %s failed: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}
