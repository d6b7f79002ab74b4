package git

import (
	"strings"
)

// Worktree represents a git worktree
type Worktree struct {
	Path       string
	Head       string
	Branch     string
	IsMain     bool
	IsBare     bool
	Locked     bool
	LockReason string
	Prunable   bool
	// Dirty is filled in by callers that inspect the working tree; the
	// porcelain listing does not report it.
	Dirty bool
}

// IsDetached reports whether the worktree has no branch checked out
func (w Worktree) IsDetached() bool {
	return w.Branch == "detached"
}

// ParseWorktreeList parses the output of "git worktree list --porcelain"
func ParseWorktreeList(output string) []Worktree {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	var worktrees []Worktree
	var current Worktree

	flush := func() {
		if current.Path == "" {
			return
		}
		current.IsMain = len(worktrees) == 0
		worktrees = append(worktrees, current)
		current = Worktree{}
	}

	for _, line := range lines {
		line = strings.TrimSpace(line)

		switch {
		case line == "":
			// Empty line marks end of worktree entry
			flush()
		case strings.HasPrefix(line, "worktree "):
			current.Path = strings.TrimPrefix(line, "worktree ")
		case strings.HasPrefix(line, "HEAD "):
			current.Head = strings.TrimPrefix(line, "HEAD ")
		case strings.HasPrefix(line, "branch "):
			current.Branch = strings.TrimPrefix(strings.TrimPrefix(line, "branch "), "refs/heads/")
		case line == "detached":
			current.Branch = "detached"
		case line == "bare":
			current.IsBare = true
		case line == "locked" || strings.HasPrefix(line, "locked "):
			current.Locked = true
			current.LockReason = strings.TrimSpace(strings.TrimPrefix(line, "locked"))
		case line == "prunable" || strings.HasPrefix(line, "prunable "):
			current.Prunable = true
		}
	}
	flush()

	return worktrees
}
