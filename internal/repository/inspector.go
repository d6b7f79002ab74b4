package repository

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/gwt-tools/gwt/internal/git"
)

// Inspector lists the worktrees of a source repository
type Inspector struct{}

// NewInspector creates a new inspector
func NewInspector() *Inspector {
	return &Inspector{}
}

// ListWorktrees returns every non-bare worktree registered with the
// repository at sourceRoot, main repository first. Paths are expressed
// under sourceRoot as given, even when git reports them symlink-resolved.
// Dirty is set for worktrees with uncommitted or untracked changes.
func (i *Inspector) ListWorktrees(ctx context.Context, sourceRoot string) ([]git.Worktree, error) {
	executor := git.NewExecutor(sourceRoot)
	output, err := executor.ExecuteContext(ctx, "worktree", "list", "--porcelain")
	if err != nil {
		return nil, fmt.Errorf("failed to list worktrees: %w", err)
	}

	realRoot, err := filepath.EvalSymlinks(sourceRoot)
	if err != nil {
		realRoot = sourceRoot
	}

	var worktrees []git.Worktree
	for _, wt := range git.ParseWorktreeList(output) {
		if wt.IsBare {
			continue
		}
		wt.Path = rebase(realRoot, sourceRoot, wt.Path)

		if !wt.Prunable {
			dirty, err := git.NewExecutor(wt.Path).IsDirty(ctx)
			if err != nil {
				log.WithError(err).WithField("path", wt.Path).Warn("could not determine worktree status")
			}
			wt.Dirty = dirty
		}
		worktrees = append(worktrees, wt)
	}

	return worktrees, nil
}

func rebase(realRoot, root, path string) string {
	rel, err := filepath.Rel(realRoot, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return path
	}
	return filepath.Join(root, rel)
}
