// Package lock provides per-worktree advisory locks backed by flock(2).
//
// A worktree is locked when some process holds an exclusive flock on the
// sentinel file {worktree}/.gwt.lock. The sentinel may exist without being
// locked; only the kernel lock counts.
package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// FileName is the name of the sentinel file inside a worktree.
const FileName = ".gwt.lock"

// ErrWorktreeLocked is returned when the OS-level lock call fails.
type ErrWorktreeLocked struct {
	Path string
	Err  error
}

func (e *ErrWorktreeLocked) Error() string {
	return fmt.Sprintf("failed to lock worktree '%s': %v", e.Path, e.Err)
}

func (e *ErrWorktreeLocked) Unwrap() error {
	return e.Err
}

// WorktreeLock is an exclusive advisory lock on a single worktree.
// It is held while fh is non-nil.
type WorktreeLock struct {
	worktreePath string
	fh           *flock.Flock
}

// New returns an unheld lock for the worktree at path.
func New(worktreePath string) *WorktreeLock {
	return &WorktreeLock{worktreePath: worktreePath}
}

// WorktreePath returns the worktree this lock protects.
func (l *WorktreeLock) WorktreePath() string {
	return l.worktreePath
}

// LockFilePath returns the sentinel path for this worktree.
func (l *WorktreeLock) LockFilePath() string {
	return sentinelPath(l.worktreePath)
}

// Locked reports whether this instance currently holds the lock.
func (l *WorktreeLock) Locked() bool {
	return l.fh != nil
}

// TryLock attempts to take the lock without blocking. It returns false
// with a nil error when another holder owns it.
func (l *WorktreeLock) TryLock() (bool, error) {
	if l.fh != nil {
		return true, nil
	}
	if err := os.MkdirAll(l.worktreePath, 0755); err != nil {
		return false, fmt.Errorf("failed to create worktree directory: %w", err)
	}

	fh := flock.New(l.LockFilePath())
	ok, err := fh.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to lock %s: %w", l.LockFilePath(), err)
	}
	if !ok {
		return false, nil
	}
	l.fh = fh
	return true, nil
}

// Lock blocks until the lock is acquired.
func (l *WorktreeLock) Lock() error {
	if l.fh != nil {
		return nil
	}
	if err := os.MkdirAll(l.worktreePath, 0755); err != nil {
		return &ErrWorktreeLocked{Path: l.worktreePath, Err: err}
	}

	fh := flock.New(l.LockFilePath())
	if err := fh.Lock(); err != nil {
		return &ErrWorktreeLocked{Path: l.worktreePath, Err: err}
	}
	l.fh = fh
	return nil
}

// LockContext polls for the lock every retryDelay until it is acquired or
// ctx is done.
func (l *WorktreeLock) LockContext(ctx context.Context, retryDelay time.Duration) error {
	if l.fh != nil {
		return nil
	}
	if err := os.MkdirAll(l.worktreePath, 0755); err != nil {
		return &ErrWorktreeLocked{Path: l.worktreePath, Err: err}
	}

	fh := flock.New(l.LockFilePath())
	ok, err := fh.TryLockContext(ctx, retryDelay)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return &ErrWorktreeLocked{Path: l.worktreePath, Err: err}
	}
	if !ok {
		return ctx.Err()
	}
	l.fh = fh
	return nil
}

// Unlock releases the lock. Unlocking an unheld lock is a no-op.
func (l *WorktreeLock) Unlock() error {
	if l.fh == nil {
		return nil
	}
	fh := l.fh
	l.fh = nil
	if err := fh.Unlock(); err != nil {
		return fmt.Errorf("failed to unlock %s: %w", fh.Path(), err)
	}
	return nil
}

// IsLocked reports whether any process holds the lock for the worktree at
// path. It never creates the sentinel file.
func IsLocked(worktreePath string) bool {
	path := sentinelPath(worktreePath)
	if _, err := os.Stat(path); err != nil {
		return false
	}

	// O_RDONLY without O_CREATE: a sentinel removed in between makes the
	// open fail instead of recreating it.
	probe := flock.New(path, flock.SetFlag(os.O_RDONLY))
	ok, err := probe.TryLock()
	if err != nil {
		return false
	}
	if !ok {
		return true
	}
	_ = probe.Unlock()
	return false
}

func sentinelPath(worktreePath string) string {
	return filepath.Join(worktreePath, FileName)
}
