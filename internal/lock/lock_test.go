package lock

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTryLockExclusive(t *testing.T) {
	dir := t.TempDir()

	first := New(dir)
	ok, err := first.TryLock()
	require.NoError(t, err)
	require.True(t, ok)
	defer first.Unlock()

	second := New(dir)
	ok, err = second.TryLock()
	require.NoError(t, err)
	assert.False(t, ok, "second instance must not acquire a held lock")
	assert.False(t, second.Locked())

	assert.True(t, IsLocked(dir))

	require.NoError(t, first.Unlock())
	assert.False(t, IsLocked(dir))

	ok, err = second.TryLock()
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, second.Unlock())
}

func TestTryLockIsReentrantForHolder(t *testing.T) {
	dir := t.TempDir()
	l := New(dir)

	ok, err := l.TryLock()
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = l.TryLock()
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, l.Unlock())
}

func TestIsLockedDoesNotCreateSentinel(t *testing.T) {
	dir := t.TempDir()

	assert.False(t, IsLocked(dir))
	_, err := os.Stat(filepath.Join(dir, FileName))
	assert.True(t, os.IsNotExist(err), "IsLocked must not create the lock file")

	assert.False(t, IsLocked(filepath.Join(dir, "missing", "worktree")))
}

func TestIsLockedWithStaleSentinel(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), nil, 0644))

	assert.False(t, IsLocked(dir))
}

func TestLockCreatesParentDirectories(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	l := New(dir)

	require.NoError(t, l.Lock())
	assert.FileExists(t, l.LockFilePath())
	assert.True(t, IsLocked(dir))
	require.NoError(t, l.Unlock())
}

func TestUnlockWithoutLockIsNoop(t *testing.T) {
	l := New(t.TempDir())
	assert.NoError(t, l.Unlock())
	assert.NoError(t, l.Unlock())
}

func TestLockContextTimesOut(t *testing.T) {
	dir := t.TempDir()
	holder := New(dir)
	require.NoError(t, holder.Lock())
	defer holder.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	waiter := New(dir)
	err := waiter.LockContext(ctx, 10*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, waiter.Locked())
}

func TestGuard(t *testing.T) {
	dir := t.TempDir()

	g, err := TryAcquire(dir)
	require.NoError(t, err)
	require.NotNil(t, g)
	assert.Equal(t, dir, g.Path())

	busy, err := TryAcquire(dir)
	require.NoError(t, err)
	assert.Nil(t, busy)

	require.NoError(t, g.Release())
	require.NoError(t, g.Release())
	assert.False(t, IsLocked(dir))

	var nilGuard *LockGuard
	assert.NoError(t, nilGuard.Release())
}

func TestWithLock(t *testing.T) {
	dir := t.TempDir()

	err := WithLock(dir, func() error {
		assert.True(t, IsLocked(dir))
		return nil
	})
	require.NoError(t, err)
	assert.False(t, IsLocked(dir))

	assert.Panics(t, func() {
		_ = WithLock(dir, func() error {
			panic("boom")
		})
	})
	assert.False(t, IsLocked(dir), "lock must be released after a panic")
}
