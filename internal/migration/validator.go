package migration

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	gogit "github.com/go-git/go-git/v5"
	log "github.com/sirupsen/logrus"

	"github.com/gwt-tools/gwt/internal/git"
	"github.com/gwt-tools/gwt/internal/lock"
)

// ValidationResult collects every precondition failure found
type ValidationResult struct {
	Passed         bool
	Errors         []error
	Warnings       []string
	SpaceNeeded    uint64
	SpaceAvailable uint64
	// Worktrees are the migration candidates, main repository first
	Worktrees []git.Worktree
}

// Err returns the first validation error, or nil when validation passed
func (r *ValidationResult) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	return r.Errors[0]
}

func (r *ValidationResult) fail(err error) {
	r.Errors = append(r.Errors, err)
	r.Passed = false
}

func (r *ValidationResult) warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.Warnings = append(r.Warnings, msg)
	log.Warn(msg)
}

// Validator checks migration preconditions without modifying anything
type Validator struct {
	inspector RepositoryInspector
	freeSpace func(path string) (uint64, error)
	writable  func(path string) bool
}

// NewValidator returns a validator backed by the real filesystem
func NewValidator(inspector RepositoryInspector) *Validator {
	return &Validator{
		inspector: inspector,
		freeSpace: availableBytes,
		writable:  isWritable,
	}
}

// Validate runs every precondition check against the filesystem
func Validate(ctx context.Context, cfg Config, inspector RepositoryInspector) (*ValidationResult, error) {
	return NewValidator(inspector).Validate(ctx, cfg)
}

// Validate checks cfg. The returned error is only set when validation
// itself could not run; failed checks are reported in the result.
func (v *Validator) Validate(ctx context.Context, cfg Config) (*ValidationResult, error) {
	result := &ValidationResult{Passed: true}

	if err := cfg.Check(); err != nil {
		result.fail(err)
		return result, nil
	}

	if err := checkSource(cfg.SourceRoot); err != nil {
		result.fail(err)
		return result, nil
	}

	worktrees, err := v.inspector.ListWorktrees(ctx, cfg.SourceRoot)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		result.fail(&ErrInvalidSource{Reason: fmt.Sprintf("cannot inspect repository: %v", err)})
		return result, nil
	}

	worktreesDir := filepath.Join(cfg.SourceRoot, WorktreesDirName)
	for _, wt := range worktrees {
		if wt.Prunable {
			result.warn("skipping prunable worktree %s; run 'git worktree prune'", wt.Path)
			continue
		}
		if wt.Locked || lock.IsLocked(wt.Path) {
			result.fail(&ErrLockedWorktree{Path: wt.Path})
			return result, nil
		}
		if !wt.IsMain && !isWithin(worktreesDir, wt.Path) {
			result.fail(&ErrValidationFailed{Reason: fmt.Sprintf("worktree %s is outside %s", wt.Path, worktreesDir)})
			continue
		}
		if wt.Dirty {
			result.warn("worktree %s has uncommitted changes; they will be carried over", wt.Path)
		}
		result.Worktrees = append(result.Worktrees, wt)
	}

	if _, err := os.Lstat(cfg.BareRepoPath()); err == nil {
		result.fail(&ErrInvalidSource{Reason: fmt.Sprintf("bare repository path already exists: %s", cfg.BareRepoPath())})
	}
	if _, err := os.Lstat(cfg.BackupPath()); err == nil {
		result.fail(&ErrValidationFailed{Reason: fmt.Sprintf("a previous backup exists at %s; roll it back or remove it first", cfg.BackupPath())})
	}

	seen := map[string]string{
		cfg.BareRepoPath(): "bare repository",
		cfg.BackupPath():   "backup",
	}
	for _, wt := range result.Worktrees {
		target := cfg.WorktreePath(TargetName(cfg, wt))
		if other, ok := seen[target]; ok {
			result.fail(&ErrValidationFailed{Reason: fmt.Sprintf("worktree %s would be placed at %s, which is used by %s", wt.Path, target, other)})
			continue
		}
		seen[target] = wt.Path
		// The whole new subtree must be ours: an existing parent would be
		// deleted with the main repository's files after the migration.
		top := filepath.Join(cfg.TargetRoot, strings.SplitN(filepath.ToSlash(TargetName(cfg, wt)), "/", 2)[0])
		if _, err := os.Lstat(top); err == nil {
			result.fail(&ErrValidationFailed{Reason: fmt.Sprintf("target path already exists: %s", top)})
		}
	}

	ancestor := nearestExistingDir(cfg.TargetRoot)
	result.SpaceNeeded = spaceNeeded(cfg, result.Worktrees)
	available, err := v.freeSpace(ancestor)
	if err != nil {
		result.warn("cannot determine free space at %s: %v", ancestor, err)
	} else {
		result.SpaceAvailable = available
		if result.SpaceNeeded > available {
			result.fail(&ErrInsufficientDiskSpace{Needed: result.SpaceNeeded, Available: available})
		}
	}

	if !v.writable(ancestor) {
		result.fail(&ErrPermissionDenied{Path: ancestor})
	}

	log.WithFields(log.Fields{
		"passed":    result.Passed,
		"worktrees": len(result.Worktrees),
		"needed":    humanize.IBytes(result.SpaceNeeded),
		"available": humanize.IBytes(result.SpaceAvailable),
	}).Info("validation finished")
	return result, nil
}

func checkSource(source string) error {
	info, err := os.Stat(filepath.Join(source, ".git"))
	if err != nil || !info.IsDir() {
		return &ErrInvalidSource{Reason: fmt.Sprintf("%s has no .git directory", source)}
	}
	if _, err := gogit.PlainOpen(source); err != nil {
		return &ErrInvalidSource{Reason: fmt.Sprintf("cannot open repository at %s: %v", source, err)}
	}
	info, err = os.Stat(filepath.Join(source, WorktreesDirName))
	if err != nil || !info.IsDir() {
		return &ErrInvalidSource{Reason: fmt.Sprintf("%s has no %s directory", source, WorktreesDirName)}
	}
	return nil
}

// TargetName is the directory name a worktree gets under the target root:
// its branch, or for a detached HEAD the source directory name.
func TargetName(cfg Config, wt git.Worktree) string {
	if wt.Branch != "" && !wt.IsDetached() {
		return wt.Branch
	}
	if wt.IsMain {
		return filepath.Base(cfg.SourceRoot)
	}
	rel, err := filepath.Rel(filepath.Join(cfg.SourceRoot, WorktreesDirName), wt.Path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.Base(wt.Path)
	}
	return filepath.ToSlash(rel)
}

// spaceNeeded sums the repository database and every working directory
func spaceNeeded(cfg Config, worktrees []git.Worktree) uint64 {
	total := treeSize(filepath.Join(cfg.SourceRoot, ".git"), nil)
	for _, wt := range worktrees {
		if wt.IsMain {
			total += treeSize(wt.Path, mainRootExcludes(cfg, nil))
			continue
		}
		total += treeSize(wt.Path, nil)
	}
	return total
}

// treeSize adds up regular file sizes below root. Symlinks count their own
// size and are not followed. Unreadable entries are skipped.
func treeSize(root string, skip func(path string) bool) uint64 {
	var total uint64
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if skip != nil && path != root && skip(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			total += uint64(info.Size())
		}
		return nil
	})
	return total
}

func nearestExistingDir(path string) string {
	dir := filepath.Clean(path)
	for {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return dir
		}
		dir = parent
	}
}

// isWithin reports whether path is root or lies below it
func isWithin(root, path string) bool {
	rel, err := filepath.Rel(filepath.Clean(root), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
