package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/gwt-tools/gwt/internal/lock"
)

var (
	lockNoWait  bool
	lockTimeout time.Duration
)

var lockCmd = &cobra.Command{
	Use:   "lock",
	Short: "Inspect and hold worktree locks",
	Long: `Inspect and hold the advisory lock gwt takes on a worktree (.gwt.lock).

A migration refuses to start while any worktree of the source is locked.`,
}

var lockStatusCmd = &cobra.Command{
	Use:   "status <worktree-path>...",
	Short: "Report whether worktrees are locked",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runLockStatus,
}

var lockRunCmd = &cobra.Command{
	Use:   "run <worktree-path> -- <command> [args...]",
	Short: "Run a command while holding a worktree's lock",
	Long: `Run a command while holding a worktree's lock. The lock is released when
the command exits. By default this waits until the lock is free.

Examples:
  gwt lock run .worktrees/feature -- make test
  gwt lock run --no-wait . -- ./deploy.sh
  gwt lock run --timeout 30s . -- ./deploy.sh`,
	Args: cobra.MinimumNArgs(2),
	RunE: runLockRun,
}

func init() {
	lockRunCmd.Flags().BoolVar(&lockNoWait, "no-wait", false, "Fail immediately if the lock is held")
	lockRunCmd.Flags().DurationVar(&lockTimeout, "timeout", 0, "Give up waiting for the lock after this long")

	lockCmd.AddCommand(lockStatusCmd)
	lockCmd.AddCommand(lockRunCmd)
}

func runLockStatus(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	for _, arg := range args {
		path, err := filepath.Abs(arg)
		if err != nil {
			return fmt.Errorf("failed to get absolute path: %w", err)
		}
		if lock.IsLocked(path) {
			fmt.Fprintf(out, "%s %s\n", warnStyle.Render("locked  "), path)
		} else {
			fmt.Fprintf(out, "%s %s\n", okStyle.Render("unlocked"), path)
		}
	}
	return nil
}

func runLockRun(cmd *cobra.Command, args []string) error {
	path, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}
	command := args[1:]

	run := func() error {
		log.WithField("path", path).Debug("lock acquired")
		c := exec.CommandContext(cmd.Context(), command[0], command[1:]...)
		c.Stdin = os.Stdin
		c.Stdout = cmd.OutOrStdout()
		c.Stderr = cmd.ErrOrStderr()
		if err := c.Run(); err != nil {
			return fmt.Errorf("%s: %w", command[0], err)
		}
		return nil
	}

	switch {
	case lockNoWait:
		guard, err := lock.TryAcquire(path)
		if err != nil {
			return err
		}
		if guard == nil {
			return &lock.ErrWorktreeLocked{Path: path, Err: errors.New("held by another process")}
		}
		defer releaseGuard(guard)
		return run()

	case lockTimeout > 0:
		ctx, cancel := context.WithTimeout(cmd.Context(), lockTimeout)
		defer cancel()
		wl := lock.New(path)
		if err := wl.LockContext(ctx, 100*time.Millisecond); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return &lock.ErrWorktreeLocked{Path: path, Err: fmt.Errorf("still held after %s", lockTimeout)}
			}
			return err
		}
		defer func() {
			if err := wl.Unlock(); err != nil {
				log.WithError(err).Warn("failed to release lock")
			}
		}()
		return run()

	default:
		return lock.WithLock(path, run)
	}
}

func releaseGuard(guard *lock.LockGuard) {
	if err := guard.Release(); err != nil {
		log.WithError(err).WithField("path", guard.Path()).Warn("failed to release lock")
	}
}
