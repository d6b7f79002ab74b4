package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/gwt-tools/gwt/internal/config"
	"github.com/gwt-tools/gwt/internal/global"
	"github.com/gwt-tools/gwt/internal/migration"
	"github.com/gwt-tools/gwt/internal/repository"
)

var (
	migrateTarget     string
	migrateBareName   string
	migrateDryRun     bool
	migrateMaxRetries int
	migrateConfigFile string
	migrateExport     string
	migrateSave       bool
	migrateQuiet      bool
)

var migrateCmd = &cobra.Command{
	Use:   "migrate [source-path]",
	Short: "Convert a repository with .worktrees/ into a bare repository with sibling worktrees",
	Long: `Convert a repository that keeps its linked worktrees under .worktrees/
into a bare repository with one sibling directory per branch.

This command:
  1. Validates the repository (locks, free space, collisions)
  2. Backs up .git, .worktrees and .gwt to <target>/.gwt-migration-backup
  3. Creates <target>/<bare-name> and converts every worktree
  4. Preserves uncommitted changes and upstream tracking
  5. Removes the backup once every worktree has been converted

Any failure after the backup is taken restores the source from the backup.
Interrupting the command stops it between steps and keeps the backup, so
'gwt migrate rollback' can restore the source.

The source defaults to the repository containing the current directory.
The target defaults to gwt.target in the repository's git-config, or to the
source itself (in-place). The bare repository name defaults to
gwt.barereponame, or is derived from the origin URL.

Examples:
  gwt migrate
  gwt migrate ~/src/app --target ~/work/app
  gwt migrate --dry-run --export plan.toml
  gwt migrate --config gwt-migration.toml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runMigrate,
}

var migrateRollbackCmd = &cobra.Command{
	Use:   "rollback [target-path]",
	Short: "Restore the source of an interrupted migration from its backup",
	Long: `Restore the source of an interrupted migration.

Removes everything the migration recorded in its journal under the target
(bare repository, converted worktrees, project config), restores .git,
.worktrees and .gwt from <target>/.gwt-migration-backup, then deletes the
backup.

Examples:
  gwt migrate rollback
  gwt migrate rollback ~/work/app`,
	Args: cobra.MaximumNArgs(1),
	RunE: runMigrateRollback,
}

func init() {
	migrateCmd.Flags().StringVarP(&migrateTarget, "target", "t", "", "Directory for the bare repository and worktrees (default: in-place)")
	migrateCmd.Flags().StringVar(&migrateBareName, "bare-name", "", "Bare repository directory name (e.g. app.git)")
	migrateCmd.Flags().BoolVarP(&migrateDryRun, "dry-run", "n", false, "Validate and print the plan without changing anything")
	migrateCmd.Flags().IntVar(&migrateMaxRetries, "max-retries", 0, "Attempts for network steps (default: GWT_MAX_RETRIES, gwt.maxretries or 3)")
	migrateCmd.Flags().StringVarP(&migrateConfigFile, "config", "c", "", "Read migration settings from a TOML file")
	migrateCmd.Flags().StringVar(&migrateExport, "export", "", "Write the migration plan as TOML to this file")
	migrateCmd.Flags().BoolVar(&migrateSave, "save", false, "Remember --target and --bare-name in the repository's git-config")
	migrateCmd.Flags().BoolVarP(&migrateQuiet, "quiet", "q", false, "Do not print progress")

	migrateCmd.AddCommand(migrateRollbackCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := resolveMigrationConfig(cmd, args)
	if err != nil {
		return err
	}

	if migrateSave {
		settings := &config.RepoSettings{BareRepoName: cfg.BareRepoName}
		if cmd.Flags().Changed("target") {
			settings.Target = cfg.TargetRoot
		}
		if err := config.SaveRepoSettings(cfg.SourceRoot, settings); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	var progress migration.ProgressFunc
	if !migrateQuiet {
		progress = progressPrinter(cmd.ErrOrStderr())
	}

	log.WithFields(log.Fields{
		"source":  cfg.SourceRoot,
		"target":  cfg.TargetRoot,
		"bare":    cfg.BareRepoName,
		"dry_run": cfg.DryRun,
	}).Debug("starting migration")

	report, err := migration.ExecuteMigration(cmd.Context(), cfg, progress)

	if report != nil && report.Plan != nil && migrateExport != "" {
		if exportErr := exportPlan(migrateExport, report.Plan); exportErr != nil {
			log.WithError(exportErr).Error("failed to export plan")
		}
	}

	if err != nil {
		if report != nil && report.Plan != nil {
			printWarnings(cmd.ErrOrStderr(), report.Plan.Warnings)
		}
		var space *migration.ErrInsufficientDiskSpace
		if errors.As(err, &space) {
			fmt.Fprintf(cmd.ErrOrStderr(), "Free up at least %s at %s and retry.\n", space.Shortfall(), cfg.TargetRoot)
		}
		var cancelled *migration.ErrCancelled
		if errors.As(err, &cancelled) && report != nil && report.Backup != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Backup kept at %s\nRun 'gwt migrate rollback %s' to restore the source.\n",
				cfg.BackupPath(), cfg.TargetRoot)
		}
		return err
	}

	if cfg.DryRun {
		printPlan(out, report.Plan)
		fmt.Fprintln(out)
		fmt.Fprintln(out, secondaryStyle.Render("Dry run: no changes made."))
		return nil
	}

	printReport(out, report)
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Bare repository: %s\n", cfg.BareRepoPath())
	return nil
}

// resolveMigrationConfig builds the migration config. Priority for each
// field: flag > config file > repository git-config > derived default.
func resolveMigrationConfig(cmd *cobra.Command, args []string) (migration.Config, error) {
	var file *config.File
	if migrateConfigFile != "" {
		f, err := config.LoadFile(migrateConfigFile)
		if err != nil {
			return migration.Config{}, err
		}
		file = f
	}

	start := ""
	switch {
	case len(args) > 0:
		start = global.ExpandTilde(args[0])
	case file != nil && file.Migration.Source != "":
		start = global.ExpandTilde(file.Migration.Source)
	default:
		cwd, err := os.Getwd()
		if err != nil {
			return migration.Config{}, fmt.Errorf("failed to get current directory: %w", err)
		}
		start = cwd
	}
	absStart, err := filepath.Abs(start)
	if err != nil {
		return migration.Config{}, fmt.Errorf("failed to get absolute path: %w", err)
	}
	sourceRoot, err := repository.FindSourceRoot(absStart)
	if err != nil {
		return migration.Config{}, &migration.ErrInvalidSource{Reason: fmt.Sprintf("%s: %v", absStart, err)}
	}

	settings := config.LoadRepoSettings(sourceRoot)
	target := sourceRoot
	if settings.Target != "" {
		target = global.ExpandTilde(settings.Target)
	}
	bareName := settings.BareRepoName
	if bareName == "" {
		bareName = migration.DeriveBareRepoName(sourceRoot)
	}

	cfg := migration.NewConfig(sourceRoot, target, bareName)
	if globalConfig != nil {
		cfg.MaxRetries = globalConfig.MaxRetries
	}

	if file != nil {
		file.Apply(&cfg)
		// The source was already resolved to its repository root above.
		cfg.SourceRoot = sourceRoot
	}

	flags := cmd.Flags()
	if flags.Changed("target") {
		cfg.TargetRoot = global.ExpandTilde(migrateTarget)
	}
	if flags.Changed("bare-name") {
		cfg.BareRepoName = migrateBareName
	}
	if flags.Changed("dry-run") {
		cfg.DryRun = migrateDryRun
	}
	if flags.Changed("max-retries") {
		cfg.MaxRetries = migrateMaxRetries
	}

	if cfg.TargetRoot, err = filepath.Abs(cfg.TargetRoot); err != nil {
		return migration.Config{}, fmt.Errorf("failed to get absolute path: %w", err)
	}
	return cfg, nil
}

func exportPlan(path string, plan *migration.Plan) error {
	var buf bytes.Buffer
	if err := plan.WriteTOML(&buf); err != nil {
		return err
	}
	if err := atomic.WriteFile(path, &buf); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	log.WithField("path", path).Info("plan exported")
	return nil
}

func runMigrateRollback(cmd *cobra.Command, args []string) error {
	target := ""
	if len(args) > 0 {
		target = global.ExpandTilde(args[0])
	} else {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get current directory: %w", err)
		}
		target = cwd
	}
	target, err := filepath.Abs(target)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}

	backupDir := filepath.Join(target, migration.BackupDirName)
	info, err := migration.ReadBackupInfo(backupDir)
	if err != nil {
		return fmt.Errorf("no migration backup found under %s: %w", target, err)
	}

	cfg := migration.Config{
		SourceRoot: info.Source,
		TargetRoot: target,
	}
	if err := migration.RollbackMigration(cfg); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", okStyle.Render("Restored"), info.Source)
	return nil
}
