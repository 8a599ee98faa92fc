/*
errors.go - Error types for the file subsystem

PURPOSE:
  All journal error types in one place. Higher layers classify these into
  the fatal/recoverable taxonomy with errors.Is, so every failure that can
  cross a package boundary is either a sentinel or unwraps to one.

ERROR CATEGORIES:
  1. Resolution errors - stale ids, mismatched line hints (recoverable)
  2. Write errors - backup or rename failures (fatal; nothing was applied
     or the temp file was left for manual recovery)

SEE ALSO:
  - locate.go: returns NotFoundError
  - writer.go: returns BackupError / RenameError
  - ledger/outcome.go: maps these onto the user-facing taxonomy
*/
package journal

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when an entry id no longer resolves or a line
	// hint no longer matches the expected directive header. The file was
	// edited since the caller's snapshot; re-resolve and retry.
	ErrNotFound = errors.New("entry not found")

	// ErrBackupFailed is returned when the pre-mutation backup could not be
	// written. The operation aborts before touching the original file.
	ErrBackupFailed = errors.New("backup write failed")

	// ErrRenameFailed is returned when the final atomic rename failed. The
	// original file is untouched and the fully-written temp file is left in
	// place for manual recovery. Never retried automatically.
	ErrRenameFailed = errors.New("atomic rename failed")

	// ErrInvalidSpan is returned for spans that do not fit the current
	// content (negative, inverted, or past end-of-file).
	ErrInvalidSpan = errors.New("invalid line span")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// NotFoundError reports why an entry failed to resolve.
type NotFoundError struct {
	ID     EntryID
	Kind   Kind
	Line   int // hinted line, -1 when resolution failed before any hint
	Reason string
}

func (e *NotFoundError) Error() string {
	if e.Line >= 0 {
		return fmt.Sprintf("%s %q not found at line %d: %s", e.Kind, e.ID, e.Line+1, e.Reason)
	}
	return fmt.Sprintf("%s %q not found: %s", e.Kind, e.ID, e.Reason)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// BackupError reports a failed pre-mutation backup write.
type BackupError struct {
	Path string
	Err  error
}

func (e *BackupError) Error() string {
	return fmt.Sprintf("write backup %s: %v", e.Path, e.Err)
}

func (e *BackupError) Unwrap() error { return ErrBackupFailed }

// RenameError reports a failed atomic rename. TempPath points at the
// fully-written replacement content.
type RenameError struct {
	TempPath string
	Path     string
	Err      error
}

func (e *RenameError) Error() string {
	return fmt.Sprintf("rename %s over %s: %v (temp file kept for recovery)", e.TempPath, e.Path, e.Err)
}

func (e *RenameError) Unwrap() error { return ErrRenameFailed }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound reports whether err is a resolution failure the caller can fix
// by refreshing its view of the file.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsFatalWrite reports whether err aborted a mutation in a way that needs
// operator attention before retrying.
func IsFatalWrite(err error) bool {
	return errors.Is(err, ErrBackupFailed) || errors.Is(err, ErrRenameFailed)
}
