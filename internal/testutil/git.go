// Package testutil builds throwaway git repositories for tests.
package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

var gitEnv = []string{
	"GIT_AUTHOR_NAME=Test User",
	"GIT_AUTHOR_EMAIL=test@example.com",
	"GIT_COMMITTER_NAME=Test User",
	"GIT_COMMITTER_EMAIL=test@example.com",
	"GIT_CONFIG_NOSYSTEM=1",
	"GIT_TERMINAL_PROMPT=0",
}

// Git runs git in dir and fails the test on error
func Git(t testing.TB, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), gitEnv...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %s failed: %v\n%s", strings.Join(args, " "), err, out)
	}
	return strings.TrimSpace(string(out))
}

// WriteFile writes content under root, creating parent directories
func WriteFile(t testing.TB, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

// InitRepo creates a repository at root with one commit on main
func InitRepo(t testing.TB, root string) {
	t.Helper()
	if err := os.MkdirAll(root, 0755); err != nil {
		t.Fatalf("failed to create %s: %v", root, err)
	}
	Git(t, root, "init", "--quiet")
	Git(t, root, "symbolic-ref", "HEAD", "refs/heads/main")
	WriteFile(t, root, ".gitignore", ".worktrees/\n.gwt/\n.gwt.lock\n")
	WriteFile(t, root, "README.md", "# test\n")
	Git(t, root, "add", ".")
	Git(t, root, "commit", "--quiet", "-m", "initial")
}

// NewSubdirRepo creates a repository at root in the subdirectory layout:
// the main worktree on main, an (ignored) root/.worktrees directory, and
// one linked worktree per branch under root/.worktrees/<branch>, each with
// a committed <branch>.txt.
func NewSubdirRepo(t testing.TB, root string, branches ...string) {
	t.Helper()
	InitRepo(t, root)
	if err := os.MkdirAll(filepath.Join(root, ".worktrees"), 0755); err != nil {
		t.Fatalf("failed to create .worktrees: %v", err)
	}
	for _, branch := range branches {
		wtPath := filepath.Join(root, ".worktrees", filepath.FromSlash(branch))
		Git(t, root, "worktree", "add", "--quiet", "-b", branch, wtPath)
		name := strings.ReplaceAll(branch, "/", "-") + ".txt"
		WriteFile(t, wtPath, name, branch+"\n")
		Git(t, wtPath, "add", name)
		Git(t, wtPath, "commit", "--quiet", "-m", "add "+name)
	}
}
