// Package worktree creates and inspects linked worktrees of a bare repository.
package worktree

import (
	"context"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/gwt-tools/gwt/internal/git"
)

// Manager runs worktree commands against a bare repository
type Manager struct{}

// NewManager creates a new worktree manager
func NewManager() *Manager {
	return &Manager{}
}

// ErrWorktreeAlreadyExists is returned when the worktree path is already occupied
type ErrWorktreeAlreadyExists struct {
	BranchName   string
	WorktreePath string
}

func (e *ErrWorktreeAlreadyExists) Error() string {
	return fmt.Sprintf("cannot add worktree for '%s': '%s' already exists", e.BranchName, e.WorktreePath)
}

// ErrBranchNotFound is returned when the specified branch doesn't exist
type ErrBranchNotFound struct {
	BranchName string
}

func (e *ErrBranchNotFound) Error() string {
	return fmt.Sprintf("branch '%s' not found in bare repository", e.BranchName)
}

// AddOptions contains options for adding a worktree
type AddOptions struct {
	Path       string // Worktree directory to create
	Branch     string // Existing branch to check out; ignored when Detach is set
	Detach     bool   // Check out Commit with a detached HEAD
	Commit     string // Commit for detached worktrees
	NoCheckout bool   // Register the worktree without populating files
}

// AddWorktree registers a new worktree of the bare repository at barePath
func (m *Manager) AddWorktree(ctx context.Context, barePath string, opts AddOptions) error {
	if _, err := os.Lstat(opts.Path); err == nil {
		return &ErrWorktreeAlreadyExists{BranchName: opts.Branch, WorktreePath: opts.Path}
	}

	executor := git.NewExecutor(barePath)
	if !opts.Detach && !executor.LocalBranchExists(opts.Branch) {
		return &ErrBranchNotFound{BranchName: opts.Branch}
	}

	args := []string{"worktree", "add"}
	if opts.NoCheckout {
		args = append(args, "--no-checkout")
	}
	if opts.Detach {
		args = append(args, "--detach", opts.Path, opts.Commit)
	} else {
		args = append(args, opts.Path, opts.Branch)
	}

	log.WithFields(log.Fields{
		"bare":   barePath,
		"path":   opts.Path,
		"branch": opts.Branch,
	}).Debug("adding worktree")

	if _, err := executor.ExecuteContext(ctx, args...); err != nil {
		return fmt.Errorf("failed to add worktree: %w", err)
	}
	return nil
}

// ResetIndex makes the index of the worktree match its HEAD without
// touching working files.
func (m *Manager) ResetIndex(ctx context.Context, worktreePath string) error {
	if _, err := git.NewExecutor(worktreePath).ExecuteContext(ctx, "reset", "--quiet"); err != nil {
		return fmt.Errorf("failed to reset index: %w", err)
	}
	return nil
}

// TrackUpstream sets origin/<branch> as upstream when that remote branch
// exists. A missing remote branch is not an error.
func (m *Manager) TrackUpstream(ctx context.Context, worktreePath, branch string) error {
	executor := git.NewExecutor(worktreePath)
	if !executor.HasRemote("origin") || !executor.RemoteBranchExists("origin", branch) {
		return nil
	}
	if err := executor.SetUpstream(ctx, "origin", branch); err != nil {
		return fmt.Errorf("failed to set upstream for '%s': %w", branch, err)
	}
	return nil
}

// List returns all worktrees of the bare repository, excluding the bare
// repository itself.
func (m *Manager) List(barePath string) ([]git.Worktree, error) {
	output, err := git.NewExecutor(barePath).Execute("worktree", "list", "--porcelain")
	if err != nil {
		return nil, fmt.Errorf("failed to list worktrees: %w", err)
	}

	var worktrees []git.Worktree
	for _, wt := range git.ParseWorktreeList(output) {
		if wt.IsBare {
			continue
		}
		worktrees = append(worktrees, wt)
	}

	return worktrees, nil
}
