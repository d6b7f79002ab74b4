package worktree

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/gwt-tools/gwt/internal/git"
	"github.com/gwt-tools/gwt/internal/testutil"
)

// createTestBareRepo creates a bare clone of a repository with main and dev
func createTestBareRepo(t *testing.T, tempDir string) string {
	t.Helper()
	src := filepath.Join(tempDir, "src")
	testutil.NewSubdirRepo(t, src, "dev")
	barePath := filepath.Join(tempDir, "app.git")
	testutil.Git(t, tempDir, "clone", "--quiet", "--bare", src, barePath)
	return barePath
}

func TestAddWorktreeNoCheckout(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "gwt-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	barePath := createTestBareRepo(t, tempDir)
	mgr := NewManager()
	ctx := context.Background()

	wtPath := filepath.Join(tempDir, "dev")
	if err := mgr.AddWorktree(ctx, barePath, AddOptions{Path: wtPath, Branch: "dev", NoCheckout: true}); err != nil {
		t.Fatalf("AddWorktree failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(wtPath, ".git")); err != nil {
		t.Fatalf("expected .git file in worktree: %v", err)
	}
	if _, err := os.Stat(filepath.Join(wtPath, "dev.txt")); err == nil {
		t.Error("--no-checkout must not populate files")
	}

	testutil.WriteFile(t, wtPath, "dev.txt", "dev\n")
	testutil.WriteFile(t, wtPath, "README.md", "# test\n")
	testutil.WriteFile(t, wtPath, ".gitignore", ".worktrees/\n.gwt/\n.gwt.lock\n")
	if err := mgr.ResetIndex(ctx, wtPath); err != nil {
		t.Fatalf("ResetIndex failed: %v", err)
	}
	if status := testutil.Git(t, wtPath, "status", "--porcelain"); status != "" {
		t.Errorf("expected clean worktree after reset, got:\n%s", status)
	}

	if err := mgr.TrackUpstream(ctx, wtPath, "dev"); err != nil {
		t.Errorf("TrackUpstream without remote branch should be a no-op: %v", err)
	}

	worktrees, err := mgr.List(barePath)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(worktrees) != 1 || worktrees[0].Branch != "dev" {
		t.Errorf("expected one dev worktree, got %+v", worktrees)
	}
}

func TestAddWorktreeErrors(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "gwt-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	barePath := createTestBareRepo(t, tempDir)
	mgr := NewManager()
	ctx := context.Background()

	err = mgr.AddWorktree(ctx, barePath, AddOptions{Path: filepath.Join(tempDir, "nope"), Branch: "nope"})
	var notFound *ErrBranchNotFound
	if !errors.As(err, &notFound) {
		t.Errorf("expected ErrBranchNotFound, got %v", err)
	}

	occupied := filepath.Join(tempDir, "occupied")
	if err := os.MkdirAll(occupied, 0755); err != nil {
		t.Fatal(err)
	}
	err = mgr.AddWorktree(ctx, barePath, AddOptions{Path: occupied, Branch: "dev"})
	var exists *ErrWorktreeAlreadyExists
	if !errors.As(err, &exists) {
		t.Errorf("expected ErrWorktreeAlreadyExists, got %v", err)
	}
}

func TestAddWorktreeDetached(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "gwt-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	barePath := createTestBareRepo(t, tempDir)
	commit, err := git.NewExecutor(barePath).Execute("rev-parse", "main")
	if err != nil {
		t.Fatal(err)
	}

	wtPath := filepath.Join(tempDir, "pinned")
	if err := NewManager().AddWorktree(context.Background(), barePath, AddOptions{Path: wtPath, Detach: true, Commit: commit}); err != nil {
		t.Fatalf("AddWorktree failed: %v", err)
	}
	if head := testutil.Git(t, wtPath, "rev-parse", "HEAD"); head != commit {
		t.Errorf("expected HEAD %s, got %s", commit, head)
	}
}
