// Package url parses git remote URLs.
package url

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

// RepoPath represents a parsed repository location
type RepoPath struct {
	Host string // e.g., "github.com"; empty for local paths
	User string // e.g., "acme"
	Repo string // e.g., "widgets"
}

// String returns the full path representation (host/user/repo)
func (r *RepoPath) String() string {
	return path.Join(r.Host, r.User, r.Repo)
}

// Name returns the last segment of the repository path
func (r *RepoPath) Name() string {
	return path.Base(r.Repo)
}

// scpLikeRegex matches SSH URLs like git@github.com:user/repo.git
var scpLikeRegex = regexp.MustCompile(`^(?:[\w.-]+@)?([\w.-]+):([^/].*?)(?:\.git)?/?$`)

// ParseRemoteURL parses a git remote URL.
// Supports:
//   - HTTPS/SSH/git URL: https://github.com/user/repo.git, ssh://git@host/user/repo
//   - SCP-like: git@github.com:user/repo.git
//   - file URL or local path: file:///srv/git/repo.git, /srv/git/repo
func ParseRemoteURL(remoteURL string) (*RepoPath, error) {
	input := strings.TrimSpace(remoteURL)
	if input == "" {
		return nil, fmt.Errorf("empty repository URL")
	}

	if strings.Contains(input, "://") {
		u, err := url.Parse(input)
		if err != nil {
			return nil, fmt.Errorf("invalid URL: %w", err)
		}
		if u.Scheme == "file" {
			return fromLocalPath(u.Path)
		}
		return splitRepoPath(u.Host, u.Path, input)
	}

	// Windows drive letters look like scp host "C:"; treat them as paths.
	if matches := scpLikeRegex.FindStringSubmatch(input); matches != nil && len(matches[1]) > 1 {
		return splitRepoPath(matches[1], matches[2], input)
	}

	return fromLocalPath(input)
}

func splitRepoPath(host, p, original string) (*RepoPath, error) {
	p = strings.Trim(p, "/")
	p = strings.TrimSuffix(p, ".git")
	parts := strings.Split(p, "/")
	if p == "" {
		return nil, fmt.Errorf("invalid repository URL: %s", original)
	}
	if len(parts) == 1 {
		return &RepoPath{Host: host, Repo: parts[0]}, nil
	}
	return &RepoPath{
		Host: host,
		User: parts[0],
		Repo: strings.Join(parts[1:], "/"),
	}, nil
}

func fromLocalPath(p string) (*RepoPath, error) {
	clean := filepath.Clean(p)
	name := strings.TrimSuffix(filepath.Base(clean), ".git")
	if name == "" || name == "." || name == string(filepath.Separator) {
		return nil, fmt.Errorf("cannot determine repository name from path: %s", p)
	}
	return &RepoPath{Repo: name}, nil
}

// BareRepoName returns "<name>.git" for a remote URL or local path,
// falling back to "repo.git" when no name can be derived.
func BareRepoName(urlOrPath string) string {
	name := "repo"
	if rp, err := ParseRemoteURL(urlOrPath); err == nil && rp.Name() != "" {
		name = rp.Name()
	}
	return name + ".git"
}
