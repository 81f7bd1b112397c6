package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when a record with the same id already exists.
	ErrDuplicate = errors.New("persistence: duplicate record")
	// ErrConstraintViolation is returned when a document cannot be stored as given.
	ErrConstraintViolation = errors.New("persistence: constraint violation")
	// ErrClosed is returned by stores after Close.
	ErrClosed = errors.New("persistence: store closed")
)
