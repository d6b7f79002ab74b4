package migration

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	gogit "github.com/go-git/go-git/v5"

	"github.com/gwt-tools/gwt/internal/url"
)

const (
	// DefaultMaxRetries bounds retries of network-touching steps
	DefaultMaxRetries = 3
	// BackupDirName is the backup directory created under the target root
	BackupDirName = ".gwt-migration-backup"
	// WorktreesDirName is the subdirectory holding linked worktrees in the source layout
	WorktreesDirName = ".worktrees"
	// ProjectDirName holds gwt metadata in both layouts
	ProjectDirName = ".gwt"
)

// Config describes one migration. Treat it as immutable once built.
type Config struct {
	SourceRoot   string
	TargetRoot   string
	BareRepoName string
	DryRun       bool
	MaxRetries   int
}

// NewConfig returns a Config with the default retry bound
func NewConfig(sourceRoot, targetRoot, bareRepoName string) Config {
	return Config{
		SourceRoot:   sourceRoot,
		TargetRoot:   targetRoot,
		BareRepoName: bareRepoName,
		MaxRetries:   DefaultMaxRetries,
	}
}

// BareRepoPath is where the bare repository will be created
func (c Config) BareRepoPath() string {
	return filepath.Join(c.TargetRoot, c.BareRepoName)
}

// WorktreePath is where the worktree for branch will live. Slashes in the
// branch name become nested directories.
func (c Config) WorktreePath(branch string) string {
	return filepath.Join(c.TargetRoot, filepath.FromSlash(branch))
}

// BackupPath is the backup directory for this migration
func (c Config) BackupPath() string {
	return filepath.Join(c.TargetRoot, BackupDirName)
}

// Check reports a configuration that cannot describe a migration
func (c Config) Check() error {
	switch {
	case c.SourceRoot == "":
		return &ErrValidationFailed{Reason: "source root is empty"}
	case c.TargetRoot == "":
		return &ErrValidationFailed{Reason: "target root is empty"}
	case c.BareRepoName == "":
		return &ErrValidationFailed{Reason: "bare repository name is empty"}
	case strings.ContainsAny(c.BareRepoName, `/\`) || c.BareRepoName == "." || c.BareRepoName == "..":
		return &ErrValidationFailed{Reason: fmt.Sprintf("bare repository name %q must be a single path component", c.BareRepoName)}
	case c.MaxRetries < 1:
		return &ErrValidationFailed{Reason: fmt.Sprintf("max retries must be at least 1, got %d", c.MaxRetries)}
	}
	return nil
}

// DeriveBareRepoName returns "<name>.git" for a remote URL or a local
// repository path. For a path that exists, the origin URL takes precedence
// over the directory name.
func DeriveBareRepoName(urlOrPath string) string {
	if _, err := os.Stat(urlOrPath); err == nil {
		if remoteURL := originURL(urlOrPath); remoteURL != "" {
			return url.BareRepoName(remoteURL)
		}
		if abs, err := filepath.Abs(urlOrPath); err == nil {
			return url.BareRepoName(abs)
		}
	}
	return url.BareRepoName(urlOrPath)
}

func originURL(repoPath string) string {
	repo, err := gogit.PlainOpen(repoPath)
	if err != nil {
		return ""
	}
	remote, err := repo.Remote("origin")
	if err != nil {
		return ""
	}
	urls := remote.Config().URLs
	if len(urls) == 0 {
		return ""
	}
	return urls[0]
}
