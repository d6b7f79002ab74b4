package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/gwt-tools/gwt/internal/global"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var logLevel string

// globalConfig is loaded once before any subcommand runs
var globalConfig *global.Config

var rootCmd = &cobra.Command{
	Use:     "gwt",
	Short:   "gwt - migrate git repositories from .worktrees subdirectories to a bare repository layout",
	Version: version,
	// Errors are printed by main
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := global.LoadConfig()
		if err != nil {
			return err
		}
		globalConfig = cfg
		return setupLogging(cfg)
	},
}

var versionCmd = &cobra.Command{
	Use:    "version",
	Short:  "Print version information",
	Hidden: true,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("gwt %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func setupLogging(cfg *global.Config) error {
	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	parsed, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	log.SetLevel(parsed)
	log.SetOutput(os.Stderr)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	return nil
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("gwt %s\n  commit: %s\n  built:  %s\n", version, commit, date))
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (trace, debug, info, warn, error); overrides GWT_LOG_LEVEL and gwt.loglevel")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(lockCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	// The first interrupt cancels the migration between steps; rollback
	// instructions are logged by the executor.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error:"), err)
		stop()
		os.Exit(exitCode(err))
	}
}
