package global

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/gwt-tools/gwt/internal/repository"
)

// RepoInfo holds information about a discovered repository
type RepoInfo struct {
	// Path is the absolute path to the repository
	Path string
	// RelativePath is the path relative to the scanned root
	RelativePath string
	// Name is the repository name (last component of the path)
	Name string
}

// ScanRepositories walks the given roots for repositories still in the
// subdirectory layout
func ScanRepositories(roots []string) ([]RepoInfo, error) {
	var repos []RepoInfo
	seen := make(map[string]bool)

	for _, root := range roots {
		root = ExpandTilde(root)
		if _, err := os.Stat(root); os.IsNotExist(err) {
			continue
		}

		err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return nil // Skip directories we can't access
			}

			if !d.IsDir() {
				return nil
			}

			// Skip hidden directories (except the root itself)
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}

			if repository.IsSubdirLayout(path) {
				abs, _ := filepath.Abs(path)
				if !seen[abs] {
					seen[abs] = true
					relPath, _ := filepath.Rel(root, path)
					repos = append(repos, RepoInfo{
						Path:         abs,
						RelativePath: relPath,
						Name:         filepath.Base(abs),
					})
				}
				return filepath.SkipDir // Don't descend into repositories
			}

			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	return repos, nil
}
