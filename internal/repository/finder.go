package repository

import (
	"fmt"
	"os"
	"path/filepath"
)

// FindSourceRoot walks up from startPath to the nearest directory whose
// .git entry is a directory. Linked worktrees have a .git file and are
// skipped, so starting inside .worktrees/<branch> finds the main repository.
func FindSourceRoot(startPath string) (string, error) {
	dir, err := filepath.Abs(startPath)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", startPath, err)
	}

	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no git repository found above %s", startPath)
		}
		dir = parent
	}
}

// IsSubdirLayout reports whether root holds a .git directory and a
// .worktrees directory
func IsSubdirLayout(root string) bool {
	gitInfo, err := os.Stat(filepath.Join(root, ".git"))
	if err != nil || !gitInfo.IsDir() {
		return false
	}
	wtInfo, err := os.Stat(filepath.Join(root, ".worktrees"))
	return err == nil && wtInfo.IsDir()
}
