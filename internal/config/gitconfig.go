package config

import (
	"fmt"

	"github.com/gwt-tools/gwt/internal/git"
)

const (
	gitKeyBareRepoName = "gwt.barereponame"
	gitKeyTarget       = "gwt.target"
)

// LoadRepoSettings reads the [gwt] section of the repository at repoRoot.
// Unset keys are left empty.
func LoadRepoSettings(repoRoot string) *RepoSettings {
	return &RepoSettings{
		BareRepoName: gitConfigGet(repoRoot, gitKeyBareRepoName),
		Target:       gitConfigGet(repoRoot, gitKeyTarget),
	}
}

// SaveRepoSettings writes the non-empty fields to the repository's git-config
func SaveRepoSettings(repoRoot string, s *RepoSettings) error {
	if s.BareRepoName != "" {
		if err := gitConfigSet(repoRoot, gitKeyBareRepoName, s.BareRepoName); err != nil {
			return err
		}
	}
	if s.Target != "" {
		if err := gitConfigSet(repoRoot, gitKeyTarget, s.Target); err != nil {
			return err
		}
	}
	return nil
}

func gitConfigGet(repoRoot, key string) string {
	value, err := git.NewExecutor(repoRoot).Execute("config", "--local", "--get", key)
	if err != nil {
		return ""
	}
	return value
}

func gitConfigSet(repoRoot, key, value string) error {
	if _, err := git.NewExecutor(repoRoot).Execute("config", "--local", key, value); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}
