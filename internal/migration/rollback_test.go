package migration

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastBackoff(t *testing.T) {
	t.Helper()
	orig := backoffBase
	backoffBase = time.Millisecond
	t.Cleanup(func() { backoffBase = orig })
}

func TestRetryRecoversFromTransientFailures(t *testing.T) {
	fastBackoff(t)
	calls := 0

	got, err := RetryWithBackoff(context.Background(), 3, func(attempt int) (string, error) {
		calls++
		assert.Equal(t, calls, attempt)
		if attempt < 3 {
			return "", &ErrNetwork{Reason: "connection reset", Attempt: attempt, MaxAttempts: 3}
		}
		return "fetched", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "fetched", got)
	assert.Equal(t, 3, calls)
}

func TestRetryGivesUpAfterMaxAttempts(t *testing.T) {
	fastBackoff(t)
	calls := 0

	_, err := RetryWithBackoff(context.Background(), 2, func(attempt int) (int, error) {
		calls++
		return 0, &ErrNetwork{Reason: "unreachable", Attempt: attempt, MaxAttempts: 2}
	})

	assert.Equal(t, 2, calls)
	var netErr *ErrNetwork
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, 2, netErr.Attempt)
	assert.Equal(t, 2, netErr.MaxAttempts)
	assert.Equal(t, "unreachable", netErr.Reason)
}

func TestRetryStopsOnNonRetryableError(t *testing.T) {
	fastBackoff(t)
	calls := 0
	cause := &ErrGit{Reason: "bad object"}

	_, err := RetryWithBackoff(context.Background(), 5, func(int) (int, error) {
		calls++
		return 0, cause
	})

	assert.Equal(t, 1, calls)
	var netErr *ErrNetwork
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, 1, netErr.Attempt)
	assert.ErrorIs(t, err, cause)
}

func TestRetryHonorsCancellationWhileWaiting(t *testing.T) {
	orig := backoffBase
	backoffBase = time.Hour
	t.Cleanup(func() { backoffBase = orig })

	ctx, cancel := context.WithCancel(context.Background())
	_, err := RetryWithBackoff(ctx, 3, func(int) (int, error) {
		cancel()
		return 0, &ErrNetwork{Reason: "flaky"}
	})

	var cancelled *ErrCancelled
	assert.ErrorAs(t, err, &cancelled)
}

func TestRollbackRemovesOnlyJournaledPaths(t *testing.T) {
	tempDir := t.TempDir()
	source := filepath.Join(tempDir, "app")
	target := filepath.Join(tempDir, "target")
	cfg := NewConfig(source, target, "app.git")

	require.NoError(t, os.MkdirAll(filepath.Join(source, ".git"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(source, ".git", "HEAD"), []byte("ref: refs/heads/main\n"), 0644))
	_, err := CreateBackup(source, cfg.BackupPath())
	require.NoError(t, err)

	// Simulate a half-finished run.
	require.NoError(t, os.RemoveAll(filepath.Join(source, ".git")))
	for _, dir := range []string{cfg.BareRepoPath(), cfg.WorktreePath("main"), cfg.WorktreePath("feature/auth")} {
		require.NoError(t, os.MkdirAll(dir, 0755))
	}
	unrelated := filepath.Join(target, "notes")
	require.NoError(t, os.MkdirAll(unrelated, 0755))

	journal := NewJournal("")
	require.NoError(t, journal.Record(JournalEntry{Kind: EntryBareRepo, Path: cfg.BareRepoPath()}))
	require.NoError(t, journal.Record(JournalEntry{Kind: EntryWorktree, Path: cfg.WorktreePath("main"), Branch: "main"}))
	require.NoError(t, journal.Record(JournalEntry{Kind: EntryWorktree, Path: cfg.WorktreePath("feature/auth"), Branch: "feature/auth"}))

	require.NoError(t, Rollback(cfg, journal))

	assert.NoDirExists(t, cfg.BareRepoPath())
	assert.NoDirExists(t, cfg.WorktreePath("main"))
	assert.NoDirExists(t, filepath.Join(target, "feature"), "empty parent of a nested branch is pruned")
	assert.DirExists(t, unrelated, "paths not in the journal are kept")
	assert.NoDirExists(t, cfg.BackupPath())
	assert.FileExists(t, filepath.Join(source, ".git", "HEAD"))
}

func TestRollbackFailsWhenRestoreFails(t *testing.T) {
	tempDir := t.TempDir()
	cfg := NewConfig(filepath.Join(tempDir, "app"), filepath.Join(tempDir, "target"), "app.git")

	// A backup whose .git cannot be copied back: the source path is a file,
	// so the restore target cannot be created underneath it.
	require.NoError(t, os.MkdirAll(filepath.Join(cfg.BackupPath(), ".git"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(tempDir, "app"), []byte("not a dir"), 0644))

	err := Rollback(cfg, nil)
	var rbErr *ErrRollbackFailed
	require.ErrorAs(t, err, &rbErr)
	var restoreErr *ErrRestoreFailed
	assert.True(t, errors.As(err, &restoreErr))
	assert.DirExists(t, cfg.BackupPath(), "backup is kept when restore fails")
}

func TestRollbackMigrationUsesPersistedJournal(t *testing.T) {
	tempDir := t.TempDir()
	source := filepath.Join(tempDir, "app")
	cfg := NewConfig(source, filepath.Join(tempDir, "target"), "app.git")

	require.NoError(t, os.MkdirAll(filepath.Join(source, ".git"), 0755))
	_, err := CreateBackup(source, cfg.BackupPath())
	require.NoError(t, err)

	journal := NewJournal(filepath.Join(cfg.BackupPath(), JournalFile))
	require.NoError(t, os.MkdirAll(cfg.BareRepoPath(), 0755))
	require.NoError(t, journal.Record(JournalEntry{Kind: EntryBareRepo, Path: cfg.BareRepoPath()}))

	require.NoError(t, RollbackMigration(cfg))
	assert.NoDirExists(t, cfg.BareRepoPath())
	assert.NoDirExists(t, cfg.BackupPath())
}

func TestPruneEmptyParents(t *testing.T) {
	root := t.TempDir()
	deep := filepath.Join(root, "a", "b", "c")
	require.NoError(t, os.MkdirAll(deep, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a", "keep"), nil, 0644))

	pruneEmptyParents(deep, root)

	assert.NoDirExists(t, filepath.Join(root, "a", "b"))
	assert.DirExists(t, filepath.Join(root, "a"), "non-empty directory stays")
	assert.DirExists(t, root)

	pruneEmptyParents(filepath.Dir(root), root)
	assert.DirExists(t, root, "directories outside the stop path are never touched")
}
