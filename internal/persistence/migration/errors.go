package migration

import (
	"errors"
	"fmt"
)

var (
	// ErrMigrationFailed indicates that a migration execution failed.
	ErrMigrationFailed = errors.New("migration execution failed")
	// ErrInvalidMigrationFile indicates a malformed file name or empty body.
	ErrInvalidMigrationFile = errors.New("invalid migration file format")
	// ErrDuplicateVersion indicates that two files share a version.
	ErrDuplicateVersion = errors.New("duplicate migration version")
	// ErrVersionConflict indicates a gap in the sequence or an applied version
	// with no matching file.
	ErrVersionConflict = errors.New("migration version conflict")
	// ErrChecksumMismatch indicates an applied file was edited afterwards.
	ErrChecksumMismatch = errors.New("migration checksum mismatch")
)

// MigrationError wraps migration failures with the version and file involved.
type MigrationError struct {
	Version   string
	File      string
	Operation string
	Err       error
}

func (e *MigrationError) Error() string {
	if e.Version != "" {
		return fmt.Sprintf("migration %s (%s): %s: %v", e.Version, e.File, e.Operation, e.Err)
	}
	return fmt.Sprintf("migration error (%s): %s: %v", e.File, e.Operation, e.Err)
}

func (e *MigrationError) Unwrap() error {
	return e.Err
}

func newMigrationError(version, file, operation string, err error) *MigrationError {
	return &MigrationError{Version: version, File: file, Operation: operation, Err: err}
}
