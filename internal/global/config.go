// Package global loads tool-wide gwt settings.
package global

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gwt-tools/gwt/internal/git"
)

const (
	// DefaultLogLevel is used when neither env nor git-config set one
	DefaultLogLevel = "warn"
	// DefaultMaxRetries bounds network retries when unset
	DefaultMaxRetries = 3

	envLogLevel   = "GWT_LOG_LEVEL"
	envMaxRetries = "GWT_MAX_RETRIES"

	gitKeyLogLevel   = "gwt.loglevel"
	gitKeyMaxRetries = "gwt.maxretries"
)

// Source names where a setting came from
type Source string

const (
	SourceEnv       Source = "env"
	SourceGitConfig Source = "git-config"
	SourceDefault   Source = "default"
)

// Config holds the global gwt configuration
type Config struct {
	LogLevel         string
	LogLevelSource   Source
	MaxRetries       int
	MaxRetriesSource Source
}

// LoadConfig loads the global configuration.
// Priority: env > git-config > default
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	executor := git.NewExecutor("")

	cfg.LogLevel, cfg.LogLevelSource = lookup(executor, envLogLevel, gitKeyLogLevel, DefaultLogLevel)

	raw, source := lookup(executor, envMaxRetries, gitKeyMaxRetries, strconv.Itoa(DefaultMaxRetries))
	retries, err := strconv.Atoi(raw)
	if err != nil || retries < 1 {
		return nil, fmt.Errorf("invalid max retries %q from %s: must be a positive integer", raw, source)
	}
	cfg.MaxRetries, cfg.MaxRetriesSource = retries, source

	return cfg, nil
}

func lookup(executor *git.Executor, envKey, gitKey, def string) (string, Source) {
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		return v, SourceEnv
	}
	if v, err := executor.Execute("config", "--get", gitKey); err == nil && v != "" {
		return v, SourceGitConfig
	}
	return def, SourceDefault
}

// ExpandTilde expands a leading ~/ to the user's home directory
func ExpandTilde(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
