package global

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gwt-tools/gwt/internal/testutil"
)

func TestScanRepositories(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "gwt-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	testutil.NewSubdirRepo(t, filepath.Join(tempDir, "work", "api"), "dev")
	testutil.NewSubdirRepo(t, filepath.Join(tempDir, "work", "web"))
	testutil.InitRepo(t, filepath.Join(tempDir, "work", "plain"))
	testutil.NewSubdirRepo(t, filepath.Join(tempDir, ".hidden", "secret"))

	repos, err := ScanRepositories([]string{tempDir, filepath.Join(tempDir, "missing")})
	if err != nil {
		t.Fatalf("ScanRepositories failed: %v", err)
	}

	found := map[string]string{}
	for _, r := range repos {
		found[r.Name] = r.RelativePath
	}

	if len(repos) != 2 {
		t.Errorf("expected 2 repositories, got %d: %+v", len(repos), repos)
	}
	if found["api"] != filepath.Join("work", "api") {
		t.Errorf("expected api at work/api, got %q", found["api"])
	}
	if _, ok := found["web"]; !ok {
		t.Error("expected web to be found")
	}
	if _, ok := found["plain"]; ok {
		t.Error("repository without .worktrees must not be reported")
	}
	if _, ok := found["secret"]; ok {
		t.Error("hidden directories must be skipped")
	}
}

func TestScanRepositoriesDeduplicates(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "gwt-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	testutil.NewSubdirRepo(t, filepath.Join(tempDir, "app"))

	repos, err := ScanRepositories([]string{tempDir, tempDir})
	if err != nil {
		t.Fatalf("ScanRepositories failed: %v", err)
	}
	if len(repos) != 1 {
		t.Errorf("expected 1 repository, got %d", len(repos))
	}
}
