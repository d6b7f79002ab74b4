package migration

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, root string) {
	t.Helper()
	files := map[string]os.FileMode{
		".git/HEAD":                          0644,
		".git/hooks/post-checkout":           0755,
		".git/objects/ab/cdef":               0444,
		".worktrees/dev/.git":                0644,
		".worktrees/dev/run.sh":              0750,
		".worktrees/feature/auth/secret.txt": 0600,
		".gwt/settings.toml":                 0644,
	}
	for rel, mode := range files {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(rel), mode))
		require.NoError(t, os.Chmod(path, mode))
	}
	require.NoError(t, os.Symlink("run.sh", filepath.Join(root, ".worktrees", "dev", "link")))
	require.NoError(t, os.WriteFile(filepath.Join(root, "README.md"), []byte("not backed up"), 0644))
}

func TestBackupRoundTrip(t *testing.T) {
	tempDir := t.TempDir()
	source := filepath.Join(tempDir, "app")
	backupDir := filepath.Join(tempDir, "target", BackupDirName)
	writeTree(t, source)
	before := snapshotTree(t, source)

	info, err := CreateBackup(source, backupDir)
	require.NoError(t, err)
	assert.Equal(t, source, info.Source)
	assert.WithinDuration(t, time.Now(), info.CreatedAt, time.Minute)
	assert.NoFileExists(t, filepath.Join(backupDir, "README.md"))

	stored, err := ReadBackupInfo(backupDir)
	require.NoError(t, err)
	assert.Equal(t, source, stored.Source)
	assert.True(t, info.CreatedAt.Equal(stored.CreatedAt))

	// Damage the source, then restore twice.
	require.NoError(t, os.RemoveAll(filepath.Join(source, ".git")))
	require.NoError(t, os.WriteFile(filepath.Join(source, ".worktrees", "dev", "run.sh"), []byte("changed"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(source, ".worktrees", "stray"), []byte("x"), 0644))

	require.NoError(t, RestoreBackup(backupDir, source))
	require.NoError(t, RestoreBackup(backupDir, source))

	assert.Equal(t, before, snapshotTree(t, source))

	target, err := os.Readlink(filepath.Join(source, ".worktrees", "dev", "link"))
	require.NoError(t, err)
	assert.Equal(t, "run.sh", target)
}

func TestBackupSkipsMissingDirectories(t *testing.T) {
	tempDir := t.TempDir()
	source := filepath.Join(tempDir, "app")
	require.NoError(t, os.MkdirAll(filepath.Join(source, ".git"), 0755))

	backupDir := filepath.Join(tempDir, BackupDirName)
	_, err := CreateBackup(source, backupDir)
	require.NoError(t, err)

	assert.DirExists(t, filepath.Join(backupDir, ".git"))
	assert.NoDirExists(t, filepath.Join(backupDir, ".worktrees"))
	assert.NoDirExists(t, filepath.Join(backupDir, ".gwt"))

	// Restoring leaves directories the backup does not hold alone.
	require.NoError(t, os.MkdirAll(filepath.Join(source, ".gwt"), 0755))
	require.NoError(t, RestoreBackup(backupDir, source))
	assert.DirExists(t, filepath.Join(source, ".gwt"))
}

func TestBackupFailsOnUnreadableSource(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}
	tempDir := t.TempDir()
	source := filepath.Join(tempDir, "app")
	locked := filepath.Join(source, ".git", "private")
	require.NoError(t, os.MkdirAll(locked, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(locked, "key"), []byte("x"), 0644))
	require.NoError(t, os.Chmod(locked, 0))
	t.Cleanup(func() { _ = os.Chmod(locked, 0755) })

	_, err := CreateBackup(source, filepath.Join(tempDir, BackupDirName))
	var backupErr *ErrBackupFailed
	assert.ErrorAs(t, err, &backupErr)
}

func TestRestoreWithoutBackup(t *testing.T) {
	err := RestoreBackup(filepath.Join(t.TempDir(), "missing"), t.TempDir())
	var restoreErr *ErrRestoreFailed
	assert.ErrorAs(t, err, &restoreErr)
}
