// Package config reads and writes migration descriptions: TOML files for
// export/import and git-config for per-repository defaults.
package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/gwt-tools/gwt/internal/global"
	"github.com/gwt-tools/gwt/internal/migration"
)

// LoadFile reads a migration file from disk
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return ImportMigrationFromTOML(string(data))
}

// ExportMigrationToTOML exports a migration config to TOML format
func ExportMigrationToTOML(cfg migration.Config) (string, error) {
	file := File{Migration: Migration{
		Source:       cfg.SourceRoot,
		Target:       cfg.TargetRoot,
		BareRepoName: cfg.BareRepoName,
		DryRun:       cfg.DryRun,
		MaxRetries:   cfg.MaxRetries,
	}}

	var buf bytes.Buffer
	encoder := toml.NewEncoder(&buf)
	if err := encoder.Encode(file); err != nil {
		return "", fmt.Errorf("failed to encode config: %w", err)
	}
	return buf.String(), nil
}

// ImportMigrationFromTOML imports a migration file from TOML format
func ImportMigrationFromTOML(data string) (*File, error) {
	var file File
	meta, err := toml.Decode(data, &file)
	if err != nil {
		return nil, fmt.Errorf("failed to parse TOML: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown keys in migration file: %v", undecoded)
	}
	if file.Migration.MaxRetries < 0 {
		return nil, fmt.Errorf("max_retries must not be negative")
	}
	return &file, nil
}

// Apply overlays the fields set in the file onto cfg
func (f *File) Apply(cfg *migration.Config) {
	m := f.Migration
	if m.Source != "" {
		cfg.SourceRoot = global.ExpandTilde(m.Source)
	}
	if m.Target != "" {
		cfg.TargetRoot = global.ExpandTilde(m.Target)
	}
	if m.BareRepoName != "" {
		cfg.BareRepoName = m.BareRepoName
	}
	if m.DryRun {
		cfg.DryRun = true
	}
	if m.MaxRetries > 0 {
		cfg.MaxRetries = m.MaxRetries
	}
}
