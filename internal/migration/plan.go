package migration

import (
	"fmt"
	"io"
	"math"

	"github.com/BurntSushi/toml"
)

// Plan is what a migration would do, as reported by a dry run
type Plan struct {
	Source         string            `toml:"source"`
	Target         string            `toml:"target"`
	BareRepo       string            `toml:"bare_repo"`
	Backup         string            `toml:"backup"`
	SpaceNeeded    int64             `toml:"space_needed"`
	SpaceAvailable int64             `toml:"space_available"`
	Warnings       []string          `toml:"warnings,omitempty"`
	Worktrees      []PlannedWorktree `toml:"worktree"`
}

// PlannedWorktree maps one source worktree to its new location
type PlannedWorktree struct {
	Name     string `toml:"name"`
	Branch   string `toml:"branch,omitempty"`
	Source   string `toml:"source"`
	Target   string `toml:"target"`
	Main     bool   `toml:"main,omitempty"`
	Detached bool   `toml:"detached,omitempty"`
	Dirty    bool   `toml:"dirty,omitempty"`
}

// NewPlan describes the migration of cfg given a validation result
func NewPlan(cfg Config, result *ValidationResult) *Plan {
	plan := &Plan{
		Source:         cfg.SourceRoot,
		Target:         cfg.TargetRoot,
		BareRepo:       cfg.BareRepoPath(),
		Backup:         cfg.BackupPath(),
		SpaceNeeded:    clampInt64(result.SpaceNeeded),
		SpaceAvailable: clampInt64(result.SpaceAvailable),
		Warnings:       result.Warnings,
	}
	for _, wt := range result.Worktrees {
		name := TargetName(cfg, wt)
		pw := PlannedWorktree{
			Name:     name,
			Source:   wt.Path,
			Target:   cfg.WorktreePath(name),
			Main:     wt.IsMain,
			Detached: wt.IsDetached(),
			Dirty:    wt.Dirty,
		}
		if !wt.IsDetached() {
			pw.Branch = wt.Branch
		}
		plan.Worktrees = append(plan.Worktrees, pw)
	}
	return plan
}

// WriteTOML encodes the plan as TOML
func (p *Plan) WriteTOML(w io.Writer) error {
	if err := toml.NewEncoder(w).Encode(p); err != nil {
		return fmt.Errorf("failed to encode plan: %w", err)
	}
	return nil
}

func clampInt64(v uint64) int64 {
	if v > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(v)
}
