package migration

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/natefinch/atomic"
	"github.com/otiai10/copy"
	log "github.com/sirupsen/logrus"

	"github.com/gwt-tools/gwt/internal/git"
	"github.com/gwt-tools/gwt/internal/lock"
	"github.com/gwt-tools/gwt/internal/repository"
	"github.com/gwt-tools/gwt/internal/worktree"
)

// ProjectConfigFile marks a completed migration under {target}/.gwt
const ProjectConfigFile = "project.json"

// RepositoryInspector lists the worktrees of the source repository
type RepositoryInspector interface {
	ListWorktrees(ctx context.Context, sourceRoot string) ([]git.Worktree, error)
}

// BareRepoCreator creates the bare repository and refreshes it from origin
type BareRepoCreator interface {
	CreateBareRepo(ctx context.Context, sourceRoot, barePath string) error
	FetchRemote(ctx context.Context, barePath string) error
}

// WorktreeCreator converts one worktree into a worktree of the bare repository
type WorktreeCreator interface {
	AddWorktree(ctx context.Context, barePath string, opts worktree.AddOptions) error
	ResetIndex(ctx context.Context, worktreePath string) error
	TrackUpstream(ctx context.Context, worktreePath, branch string) error
	List(barePath string) ([]git.Worktree, error)
}

// WorktreeMigrationInfo records the conversion of one worktree
type WorktreeMigrationInfo struct {
	Branch     string
	SourcePath string
	TargetPath string
	Dirty      bool
	IsMainRepo bool
	Succeeded  bool
}

// Report summarizes a migration run
type Report struct {
	FinalState State
	Plan       *Plan
	Backup     *BackupInfo
	Worktrees  []WorktreeMigrationInfo
	Warnings   []string
}

// ProjectConfig is written to {target}/.gwt/project.json
type ProjectConfig struct {
	BareRepoName string    `json:"bare_repo_name"`
	MigratedAt   time.Time `json:"migrated_at"`
}

// Executor drives a migration through its phases
type Executor struct {
	inspector RepositoryInspector
	bare      BareRepoCreator
	worktrees WorktreeCreator
	validator *Validator
}

// NewExecutor creates an executor from its collaborators
func NewExecutor(inspector RepositoryInspector, bare BareRepoCreator, worktrees WorktreeCreator) *Executor {
	return &Executor{
		inspector: inspector,
		bare:      bare,
		worktrees: worktrees,
		validator: NewValidator(inspector),
	}
}

// ExecuteMigration runs cfg with the git-backed collaborators
func ExecuteMigration(ctx context.Context, cfg Config, progress ProgressFunc) (*Report, error) {
	e := NewExecutor(repository.NewInspector(), repository.NewBareCreator(), worktree.NewManager())
	return e.Execute(ctx, cfg, progress)
}

// run holds the mutable state of one Execute call
type run struct {
	cfg     Config
	machine *machine
	journal *Journal
	report  *Report
	// copied lists the main repository's top-level entries duplicated into
	// its new worktree
	copied []string
}

// Execute migrates cfg. progress, when non-nil, sees every state entered.
// Cancellation of ctx is honored between phases and between worktrees;
// a cancelled run keeps its backup and journal for RollbackMigration.
func (e *Executor) Execute(ctx context.Context, cfg Config, progress ProgressFunc) (*Report, error) {
	r := &run{
		cfg:     cfg,
		machine: newMachine(progress),
		journal: NewJournal(""),
		report:  &Report{},
	}
	// Steps already underway finish even if ctx is cancelled mid-phase.
	opCtx := context.WithoutCancel(ctx)

	logger := log.WithFields(log.Fields{
		"source": cfg.SourceRoot,
		"target": cfg.TargetRoot,
		"bare":   cfg.BareRepoName,
	})

	if ctx.Err() != nil {
		return r.finish(r.abort(&ErrCancelled{}))
	}
	if err := r.enter(State{Phase: PhaseValidating}); err != nil {
		return r.finish(err)
	}
	result, err := e.validator.Validate(opCtx, cfg)
	if err != nil {
		return r.finish(r.abort(&ErrValidationFailed{Reason: err.Error()}))
	}
	r.report.Plan = NewPlan(cfg, result)
	r.report.Warnings = append(r.report.Warnings, result.Warnings...)
	if !result.Passed {
		return r.finish(r.abort(result.Err()))
	}
	if cfg.DryRun {
		logger.Info("dry run: no changes made")
		return r.finish(r.enter(State{Phase: PhaseCompleted}))
	}

	if ctx.Err() != nil {
		return r.finish(r.abort(&ErrCancelled{}))
	}
	if err := r.enter(State{Phase: PhaseBackingUp}); err != nil {
		return r.finish(err)
	}
	backup, err := CreateBackup(cfg.SourceRoot, cfg.BackupPath())
	if err != nil {
		if rmErr := os.RemoveAll(cfg.BackupPath()); rmErr != nil {
			logger.WithError(rmErr).Warn("failed to remove partial backup")
		}
		return r.finish(r.abort(err))
	}
	r.report.Backup = backup
	r.journal = NewJournal(filepath.Join(cfg.BackupPath(), JournalFile))

	if ctx.Err() != nil {
		return r.finish(r.abort(&ErrCancelled{}))
	}
	if err := r.enter(State{Phase: PhaseCreatingBareRepo}); err != nil {
		return r.finish(err)
	}
	if err := e.createBareRepo(ctx, opCtx, r); err != nil {
		return r.finish(r.abort(err))
	}

	candidates := append([]git.Worktree(nil), result.Worktrees...)
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].IsMain && !candidates[j].IsMain
	})
	targets := make([]string, 0, len(candidates))
	for _, wt := range candidates {
		targets = append(targets, cfg.WorktreePath(TargetName(cfg, wt)))
	}

	for i, wt := range candidates {
		if ctx.Err() != nil {
			return r.finish(r.abort(&ErrCancelled{}))
		}
		if err := r.enter(MigratingWorktrees(i, len(candidates))); err != nil {
			return r.finish(err)
		}
		info, err := e.migrateWorktree(opCtx, r, wt, targets)
		r.report.Worktrees = append(r.report.Worktrees, info)
		if err != nil {
			return r.finish(r.abort(err))
		}
	}

	if ctx.Err() != nil {
		return r.finish(r.abort(&ErrCancelled{}))
	}
	if err := r.enter(State{Phase: PhaseCleaningUp}); err != nil {
		return r.finish(err)
	}
	if err := e.verify(r); err != nil {
		return r.finish(r.abort(err))
	}
	if err := r.commit(); err != nil {
		return r.finish(r.abort(err))
	}
	r.tidy()

	logger.WithField("worktrees", len(r.report.Worktrees)).Info("migration completed")
	return r.finish(r.enter(State{Phase: PhaseCompleted}))
}

func (r *run) enter(next State) error {
	return r.machine.transition(next)
}

func (r *run) finish(err error) (*Report, error) {
	r.report.FinalState = r.machine.state
	return r.report, err
}

// abort moves the machine to a terminal state for cause, rolling back
// first when cause calls for it.
func (r *run) abort(cause error) error {
	var cancelled *ErrCancelled
	if errors.As(cause, &cancelled) {
		if r.report.Backup != nil {
			log.WithField("backup", r.cfg.BackupPath()).Warn("migration cancelled; run rollback to restore the source")
		}
		r.settle(State{Phase: PhaseCancelled})
		return cause
	}

	if ShouldRollback(cause) {
		log.WithError(cause).Error("migration failed, rolling back")
		r.settle(State{Phase: PhaseRollingBack})
		if err := Rollback(r.cfg, r.journal); err != nil {
			r.settle(State{Phase: PhaseFailed})
			return errors.Join(cause, err)
		}
	}
	r.settle(State{Phase: PhaseFailed})
	return cause
}

// settle enters a state on the failure path. A refused transition is
// logged; the failure being handled still takes precedence.
func (r *run) settle(next State) {
	if err := r.machine.transition(next); err != nil {
		log.WithError(err).Warn("state transition refused")
	}
}

func (e *Executor) createBareRepo(ctx, opCtx context.Context, r *run) error {
	barePath := r.cfg.BareRepoPath()
	if err := r.journal.Record(JournalEntry{Kind: EntryBareRepo, Path: barePath}); err != nil {
		return err
	}
	if err := e.bare.CreateBareRepo(opCtx, r.cfg.SourceRoot, barePath); err != nil {
		return &ErrBareRepoCreationFailed{Reason: err.Error()}
	}

	_, err := RetryWithBackoff(ctx, r.cfg.MaxRetries, func(attempt int) (struct{}, error) {
		err := e.bare.FetchRemote(opCtx, barePath)
		if err == nil {
			return struct{}{}, nil
		}
		// Only a failed git fetch talks to the network; anything else is local.
		var cmdErr *git.CommandError
		if errors.As(err, &cmdErr) {
			return struct{}{}, &ErrNetwork{Reason: err.Error(), Attempt: attempt, MaxAttempts: r.cfg.MaxRetries, Err: err}
		}
		return struct{}{}, &ErrGit{Reason: err.Error()}
	})
	var gitErr *ErrGit
	if errors.As(err, &gitErr) {
		return gitErr
	}
	return err
}

func (e *Executor) migrateWorktree(ctx context.Context, r *run, wt git.Worktree, targets []string) (WorktreeMigrationInfo, error) {
	name := TargetName(r.cfg, wt)
	target := r.cfg.WorktreePath(name)
	info := WorktreeMigrationInfo{
		Branch:     name,
		SourcePath: wt.Path,
		TargetPath: target,
		Dirty:      wt.Dirty,
		IsMainRepo: wt.IsMain,
	}
	logger := log.WithFields(log.Fields{"worktree": name, "source": wt.Path, "target": target})

	sentinel := filepath.Join(wt.Path, lock.FileName)
	_, statErr := os.Lstat(sentinel)
	sentinelExisted := statErr == nil

	guard, err := lock.TryAcquire(wt.Path)
	if err != nil {
		return info, &ErrWorktreeMigrationFailed{Branch: name, Reason: err.Error()}
	}
	if guard == nil {
		return info, &ErrWorktreeMigrationFailed{Branch: name, Reason: "worktree is locked by another process"}
	}
	defer func() {
		if err := guard.Release(); err != nil {
			logger.WithError(err).Warn("failed to release worktree lock")
		}
		if !sentinelExisted {
			_ = os.Remove(sentinel)
		}
	}()

	if err := r.journal.Record(JournalEntry{Kind: EntryWorktree, Path: target, Branch: wt.Branch}); err != nil {
		return info, err
	}

	opts := worktree.AddOptions{Path: target, Branch: wt.Branch, NoCheckout: true}
	if wt.IsDetached() {
		opts = worktree.AddOptions{Path: target, Detach: true, Commit: wt.Head, NoCheckout: true}
	}
	if err := e.worktrees.AddWorktree(ctx, r.cfg.BareRepoPath(), opts); err != nil {
		return info, &ErrWorktreeMigrationFailed{Branch: name, Reason: err.Error()}
	}

	skip := linkedWorktreeExcludes(wt.Path)
	if wt.IsMain {
		skip = mainRootExcludes(r.cfg, targets)
	}
	copyOpts := copyOptions()
	copyOpts.Skip = func(_ os.FileInfo, src, _ string) (bool, error) {
		if skip(src) {
			return true, nil
		}
		if wt.IsMain && filepath.Dir(src) == filepath.Clean(wt.Path) {
			r.copied = append(r.copied, src)
		}
		return false, nil
	}
	if err := copy.Copy(wt.Path, target, copyOpts); err != nil {
		return info, newIOError(target, err)
	}

	if err := e.worktrees.ResetIndex(ctx, target); err != nil {
		return info, &ErrGit{Reason: err.Error()}
	}
	if !wt.IsDetached() {
		if err := e.worktrees.TrackUpstream(ctx, target, wt.Branch); err != nil {
			logger.WithError(err).Warn("could not restore upstream tracking")
			r.report.Warnings = append(r.report.Warnings, err.Error())
		}
	}

	logger.WithField("dirty", wt.Dirty).Info("migrated worktree")
	info.Succeeded = true
	return info, nil
}

// verify checks that the bare repository knows every converted worktree
// before the source is removed
func (e *Executor) verify(r *run) error {
	barePath := r.cfg.BareRepoPath()
	if !git.IsBareRepo(barePath) {
		return &ErrBareRepoCreationFailed{Reason: fmt.Sprintf("%s is not a bare repository", barePath)}
	}
	registered, err := e.worktrees.List(barePath)
	if err != nil {
		return &ErrGit{Reason: err.Error()}
	}
	known := make(map[string]bool, len(registered))
	for _, wt := range registered {
		known[canonicalPath(wt.Path)] = true
	}
	for _, info := range r.report.Worktrees {
		if !known[canonicalPath(info.TargetPath)] {
			return &ErrWorktreeMigrationFailed{Branch: info.Branch, Reason: fmt.Sprintf("%s is not registered with %s", info.TargetPath, barePath)}
		}
	}
	return nil
}

func canonicalPath(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		return resolved
	}
	return filepath.Clean(path)
}

// commit removes the source repository and marks the target as migrated.
// Failures here still roll back from the backup.
func (r *run) commit() error {
	for _, name := range []string{WorktreesDirName, ".git"} {
		path := filepath.Join(r.cfg.SourceRoot, name)
		if err := os.RemoveAll(path); err != nil {
			return newIOError(path, err)
		}
	}

	projectFile := filepath.Join(r.cfg.TargetRoot, ProjectDirName, ProjectConfigFile)
	if err := r.journal.Record(JournalEntry{Kind: EntryProjectConfig, Path: projectFile}); err != nil {
		return err
	}
	data, err := json.MarshalIndent(ProjectConfig{
		BareRepoName: r.cfg.BareRepoName,
		MigratedAt:   time.Now().UTC().Truncate(time.Second),
	}, "", "  ")
	if err != nil {
		return newIOError(projectFile, err)
	}
	if err := os.MkdirAll(filepath.Dir(projectFile), 0755); err != nil {
		return newIOError(projectFile, err)
	}
	if err := atomic.WriteFile(projectFile, bytes.NewReader(data)); err != nil {
		return newIOError(projectFile, err)
	}
	return nil
}

// tidy runs after the point of no return; failures are only logged
func (r *run) tidy() {
	for _, path := range r.copied {
		if err := os.RemoveAll(path); err != nil {
			log.WithError(err).WithField("path", path).Warn("failed to remove migrated file from source")
		}
	}
	if !isWithin(r.cfg.SourceRoot, r.cfg.TargetRoot) {
		r.removeSourceRoot()
	}
	if err := os.RemoveAll(r.cfg.BackupPath()); err != nil {
		log.WithError(err).WithField("backup", r.cfg.BackupPath()).Warn("failed to remove backup")
	}
}

// removeSourceRoot deletes the source directory once it is empty. Anything
// left in it (gwt metadata, files created during the migration) keeps it
// in place and is reported.
func (r *run) removeSourceRoot() {
	entries, err := os.ReadDir(r.cfg.SourceRoot)
	if err != nil {
		return
	}
	if len(entries) > 0 {
		leftover := make([]string, 0, len(entries))
		for _, e := range entries {
			leftover = append(leftover, e.Name())
		}
		log.WithFields(log.Fields{
			"source":   r.cfg.SourceRoot,
			"leftover": leftover,
		}).Info("source directory kept: it still has entries that were not migrated")
		r.report.Warnings = append(r.report.Warnings,
			fmt.Sprintf("%s was kept because it still contains: %s", r.cfg.SourceRoot, strings.Join(leftover, ", ")))
		return
	}
	if err := os.Remove(r.cfg.SourceRoot); err != nil {
		log.WithError(err).WithField("source", r.cfg.SourceRoot).Warn("failed to remove empty source directory")
	}
}

// mainRootExcludes matches what must not be copied out of the main
// repository: git metadata, gwt files, and anything the migration creates
// inside the source root.
func mainRootExcludes(cfg Config, targets []string) func(path string) bool {
	root := filepath.Clean(cfg.SourceRoot)
	topLevel := map[string]bool{
		".git":           true,
		WorktreesDirName: true,
		ProjectDirName:   true,
		lock.FileName:    true,
	}
	created := []string{filepath.Clean(cfg.TargetRoot), cfg.BareRepoPath(), cfg.BackupPath()}
	for _, t := range targets {
		created = append(created, filepath.Clean(t))
	}

	return func(path string) bool {
		path = filepath.Clean(path)
		if filepath.Dir(path) == root && topLevel[filepath.Base(path)] {
			return true
		}
		for _, c := range created {
			if path == c {
				return true
			}
		}
		return false
	}
}

func linkedWorktreeExcludes(worktreePath string) func(path string) bool {
	root := filepath.Clean(worktreePath)
	return func(path string) bool {
		path = filepath.Clean(path)
		if filepath.Dir(path) != root {
			return false
		}
		base := filepath.Base(path)
		return base == ".git" || base == lock.FileName
	}
}
