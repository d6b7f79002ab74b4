package git

import (
	"context"
	"strings"
)

// ListRemotes returns a list of configured remotes
func (e *Executor) ListRemotes() ([]string, error) {
	output, err := e.Execute("remote")
	if err != nil {
		return nil, err
	}

	if output == "" {
		return []string{}, nil
	}

	return strings.Split(output, "\n"), nil
}

// HasRemote checks if the given name is a configured remote
func (e *Executor) HasRemote(name string) bool {
	remotes, err := e.ListRemotes()
	if err != nil {
		return false
	}

	for _, remote := range remotes {
		if remote == name {
			return true
		}
	}
	return false
}

// LocalBranchExists checks if a local branch exists
func (e *Executor) LocalBranchExists(branch string) bool {
	_, err := e.Execute("show-ref", "--verify", "--quiet", "refs/heads/"+branch)
	return err == nil
}

// RemoteBranchExists checks if a remote tracking branch exists
func (e *Executor) RemoteBranchExists(remote, branch string) bool {
	_, err := e.Execute("show-ref", "--verify", "--quiet", "refs/remotes/"+remote+"/"+branch)
	return err == nil
}

// ResolveHEAD returns the branch name that HEAD points to (e.g., "main").
// Returns empty string if HEAD is detached or on error.
func (e *Executor) ResolveHEAD() string {
	output, err := e.Execute("symbolic-ref", "--short", "HEAD")
	if err != nil {
		return ""
	}
	return output
}

// HasStash reports whether refs/stash exists
func (e *Executor) HasStash() bool {
	_, err := e.Execute("rev-parse", "--verify", "--quiet", "refs/stash")
	return err == nil
}

// IsDirty reports whether the working tree has uncommitted or untracked changes.
// The index is left untouched: status would otherwise refresh its stat cache.
func (e *Executor) IsDirty(ctx context.Context) (bool, error) {
	output, err := e.ExecuteContext(ctx, "--no-optional-locks", "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return output != "", nil
}

// SetUpstream sets the upstream of branch to remote/branch
func (e *Executor) SetUpstream(ctx context.Context, remote, branch string) error {
	_, err := e.ExecuteContext(ctx, "branch", "--set-upstream-to="+remote+"/"+branch, branch)
	return err
}
