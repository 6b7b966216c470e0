package migration

import (
	"errors"
	"fmt"
)

var (
	// ErrMigrationFailed indicates that a migration execution failed.
	ErrMigrationFailed = errors.New("migration: execution failed")
	// ErrInvalidMigrationFile indicates a malformed migration file.
	ErrInvalidMigrationFile = errors.New("migration: invalid migration file")
	// ErrInvalidVersion indicates a non-numeric version.
	ErrInvalidVersion = errors.New("migration: invalid version")
	// ErrDuplicateVersion indicates two files share a version.
	ErrDuplicateVersion = errors.New("migration: duplicate version")
	// ErrVersionConflict indicates a gap in the sequence or an applied
	// version with no file.
	ErrVersionConflict = errors.New("migration: version conflict")
	// ErrChecksumMismatch indicates an applied file was edited afterwards.
	ErrChecksumMismatch = errors.New("migration: checksum mismatch")
)

// MigrationError adds file context to a failure.
type MigrationError struct {
	Version   string
	FilePath  string
	Operation string
	Err       error
}

func (e *MigrationError) Error() string {
	if e.Version != "" {
		return fmt.Sprintf("migration %s (%s): %s: %v", e.Version, e.FilePath, e.Operation, e.Err)
	}
	return fmt.Sprintf("migration (%s): %s: %v", e.FilePath, e.Operation, e.Err)
}

func (e *MigrationError) Unwrap() error { return e.Err }

// DatabaseError adds statement context to a driver failure.
type DatabaseError struct {
	Version   string
	Operation string
	Err       error
}

func (e *DatabaseError) Error() string {
	if e.Version != "" {
		return fmt.Sprintf("migration %s: database error during %s: %v", e.Version, e.Operation, e.Err)
	}
	return fmt.Sprintf("migration: database error during %s: %v", e.Operation, e.Err)
}

func (e *DatabaseError) Unwrap() error { return e.Err }
