package lock

// LockGuard holds a WorktreeLock until Release is called.
type LockGuard struct {
	lock *WorktreeLock
}

// Acquire blocks until the worktree lock is held.
func Acquire(worktreePath string) (*LockGuard, error) {
	l := New(worktreePath)
	if err := l.Lock(); err != nil {
		return nil, err
	}
	return &LockGuard{lock: l}, nil
}

// TryAcquire returns a nil guard and nil error when the lock is busy.
func TryAcquire(worktreePath string) (*LockGuard, error) {
	l := New(worktreePath)
	ok, err := l.TryLock()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &LockGuard{lock: l}, nil
}

// Path returns the locked worktree path.
func (g *LockGuard) Path() string {
	return g.lock.WorktreePath()
}

// Release unlocks. Safe to call more than once and on a nil guard.
func (g *LockGuard) Release() error {
	if g == nil || !g.lock.Locked() {
		return nil
	}
	return g.lock.Unlock()
}

// WithLock runs fn while holding the worktree lock. The lock is released
// on every exit path, including a panic in fn.
func WithLock(worktreePath string, fn func() error) (err error) {
	g, err := Acquire(worktreePath)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := g.Release(); rerr != nil && err == nil {
			err = rerr
		}
	}()
	return fn()
}
