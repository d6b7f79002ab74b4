package migration

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
)

// Error is implemented by every migration failure. The set of
// implementations is closed to this package.
type Error interface {
	error
	// Retryable reports whether the failed step may be attempted again
	Retryable() bool
	// ShouldRollback reports whether partial work must be undone
	ShouldRollback() bool
	migrationError()
}

// IsRetryable reports whether err is a retryable migration error
func IsRetryable(err error) bool {
	var me Error
	return errors.As(err, &me) && me.Retryable()
}

// ShouldRollback reports whether err requires a rollback
func ShouldRollback(err error) bool {
	var me Error
	return errors.As(err, &me) && me.ShouldRollback()
}

// noRollback is embedded by failures that leave nothing to undo
type noRollback struct{}

func (noRollback) Retryable() bool      { return false }
func (noRollback) ShouldRollback() bool { return false }
func (noRollback) migrationError()      {}

// needsRollback is embedded by failures that happen after mutation began
type needsRollback struct{}

func (needsRollback) Retryable() bool      { return false }
func (needsRollback) ShouldRollback() bool { return true }
func (needsRollback) migrationError()      {}

// ErrInsufficientDiskSpace is returned when the target volume is too small
type ErrInsufficientDiskSpace struct {
	noRollback
	Needed    uint64
	Available uint64
}

func (e *ErrInsufficientDiskSpace) Error() string {
	return fmt.Sprintf("Insufficient disk space: need %d bytes, have %d bytes", e.Needed, e.Available)
}

// Shortfall renders the missing space for humans, e.g. "1.2 GiB"
func (e *ErrInsufficientDiskSpace) Shortfall() string {
	if e.Available >= e.Needed {
		return humanize.IBytes(0)
	}
	return humanize.IBytes(e.Needed - e.Available)
}

// ErrLockedWorktree is returned when a worktree is held by another process
type ErrLockedWorktree struct {
	noRollback
	Path string
}

func (e *ErrLockedWorktree) Error() string {
	return fmt.Sprintf("Locked worktree detected: %s. Please unlock it first with 'git worktree unlock'", e.Path)
}

// ErrBackupFailed is returned when the backup could not be written
type ErrBackupFailed struct {
	noRollback
	Reason string
}

func (e *ErrBackupFailed) Error() string {
	return fmt.Sprintf("Failed to create backup: %s", e.Reason)
}

// ErrRestoreFailed is returned when a backup could not be restored
type ErrRestoreFailed struct {
	noRollback
	Reason string
}

func (e *ErrRestoreFailed) Error() string {
	return fmt.Sprintf("Failed to restore backup: %s", e.Reason)
}

// ErrWorktreeMigrationFailed is returned when converting one worktree fails
type ErrWorktreeMigrationFailed struct {
	needsRollback
	Branch string
	Reason string
}

func (e *ErrWorktreeMigrationFailed) Error() string {
	return fmt.Sprintf("Failed to migrate worktree '%s': %s", e.Branch, e.Reason)
}

// ErrBareRepoCreationFailed is returned when the bare repository could not be created
type ErrBareRepoCreationFailed struct {
	needsRollback
	Reason string
}

func (e *ErrBareRepoCreationFailed) Error() string {
	return fmt.Sprintf("Failed to create bare repository: %s", e.Reason)
}

// ErrNetwork is returned when a network step failed on its final attempt
type ErrNetwork struct {
	Reason      string
	Attempt     int
	MaxAttempts int
	Err         error
}

func (e *ErrNetwork) Error() string {
	return fmt.Sprintf("Network error (attempt %d/%d): %s", e.Attempt, e.MaxAttempts, e.Reason)
}

func (e *ErrNetwork) Unwrap() error        { return e.Err }
func (e *ErrNetwork) Retryable() bool      { return true }
func (e *ErrNetwork) ShouldRollback() bool { return true }
func (e *ErrNetwork) migrationError()      {}

// ErrRollbackFailed is returned when a rollback could not restore the source
type ErrRollbackFailed struct {
	noRollback
	Reason string
	Err    error
}

func (e *ErrRollbackFailed) Error() string {
	return fmt.Sprintf("Rollback failed: %s", e.Reason)
}

func (e *ErrRollbackFailed) Unwrap() error { return e.Err }

// ErrValidationFailed is a generic precondition failure
type ErrValidationFailed struct {
	noRollback
	Reason string
}

func (e *ErrValidationFailed) Error() string {
	return fmt.Sprintf("Validation failed: %s", e.Reason)
}

// ErrCancelled is returned when the caller cancelled the migration
type ErrCancelled struct {
	noRollback
}

func (e *ErrCancelled) Error() string {
	return "Migration cancelled by user"
}

// ErrInvalidSource is returned when the source is not a subdirectory-layout repository
type ErrInvalidSource struct {
	noRollback
	Reason string
}

func (e *ErrInvalidSource) Error() string {
	return fmt.Sprintf("Not a valid migration source: %s", e.Reason)
}

// ErrGit is returned when a git operation fails mid-migration
type ErrGit struct {
	needsRollback
	Reason string
}

func (e *ErrGit) Error() string {
	return fmt.Sprintf("Git operation failed: %s", e.Reason)
}

// ErrIO is returned when a filesystem operation fails mid-migration
type ErrIO struct {
	needsRollback
	Path   string
	Reason string
	Err    error
}

func (e *ErrIO) Error() string {
	return fmt.Sprintf("IO error at %s: %s", e.Path, e.Reason)
}

func (e *ErrIO) Unwrap() error { return e.Err }

// ErrPermissionDenied is returned when the target is not writable
type ErrPermissionDenied struct {
	noRollback
	Path string
}

func (e *ErrPermissionDenied) Error() string {
	return fmt.Sprintf("Permission denied: %s", e.Path)
}

func newIOError(path string, err error) *ErrIO {
	return &ErrIO{Path: path, Reason: err.Error(), Err: err}
}
