package migration

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMigrationFailed      = errors.New("migration execution failed")
	ErrInvalidMigrationFile = errors.New("invalid migration file")
	ErrDuplicateVersion     = errors.New("duplicate migration version")
	// ErrVersionConflict covers gaps in the file sequence and applied versions without a file.
	ErrVersionConflict = errors.New("migration version conflict")
	// ErrChecksumMismatch means an applied migration file was edited afterwards.
	ErrChecksumMismatch = errors.New("migration checksum mismatch")
)

// Error records which migration, file and step a failure belongs to.
// Version and File are empty when the step is not tied to one migration.
type Error struct {
	Version string
	File    string
	Op      string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("migration")
	if e.Version != "" {
		b.WriteString(" ")
		b.WriteString(e.Version)
	}
	if e.File != "" {
		fmt.Fprintf(&b, " (%s)", e.File)
	}
	fmt.Fprintf(&b, ": %s: %v", e.Op, e.Err)
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

func fail(version, file, op string, err error) *Error {
	return &Error{Version: version, File: file, Op: op, Err: err}
}
