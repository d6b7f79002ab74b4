package e2e

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/gwt-tools/gwt/internal/testutil"
)

func TestLock_RunHoldsLock(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test in short mode")
	}

	tempDir := createTempDir(t, "lock-run")
	wt := filepath.Join(tempDir, "wt")

	// The nested status call sees the lock held by the outer run
	stdout := runGwtSuccess(t, tempDir, "lock", "run", wt, "--", gwtBinary, "lock", "status", wt)
	assertOutputContains(t, stdout, "locked")
	if strings.Contains(stdout, "unlocked") {
		t.Errorf("expected worktree to be locked during run, got:\n%s", stdout)
	}

	stdout = runGwtSuccess(t, tempDir, "lock", "status", wt)
	assertOutputContains(t, stdout, "unlocked")
}

func TestLock_RunFailsWhenHeld(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test in short mode")
	}

	tempDir := createTempDir(t, "lock-held")
	wt := filepath.Join(tempDir, "wt")

	_, stderr, err := runGwt(t, tempDir, "lock", "run", wt, "--", gwtBinary, "lock", "run", "--no-wait", wt, "--", "true")
	if err == nil {
		t.Fatal("expected nested lock run to fail")
	}
	assertOutputContains(t, stderr, "held by another process")
}

func TestScan(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping e2e test in short mode")
	}

	tempDir := createTempDir(t, "scan")
	subdir := filepath.Join(tempDir, "src", "app")
	plain := filepath.Join(tempDir, "src", "plain")
	testutil.NewSubdirRepo(t, subdir, "dev")
	testutil.InitRepo(t, plain)

	stdout := runGwtSuccess(t, tempDir, "scan", filepath.Join(tempDir, "src"))
	assertOutputContains(t, stdout, subdir)
	if strings.Contains(stdout, plain+"\n") {
		t.Errorf("plain repository should not be listed:\n%s", stdout)
	}
}
