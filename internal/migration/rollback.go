package migration

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// Rollback undoes a failed migration: it removes the bare repository and
// every worktree and project file recorded in journal, then restores the
// backup over the source and deletes it. Cleanup failures are logged; only
// a failed restore is returned.
func Rollback(cfg Config, journal *Journal) error {
	logger := log.WithFields(log.Fields{
		"source": cfg.SourceRoot,
		"target": cfg.TargetRoot,
	})
	logger.Info("rolling back migration")

	if journal == nil {
		journal = NewJournal("")
	}

	for _, path := range journal.Paths(EntryBareRepo) {
		if err := os.RemoveAll(path); err != nil {
			logger.WithError(err).WithField("path", path).Warn("failed to remove bare repository")
		}
	}

	for i := len(journal.Entries) - 1; i >= 0; i-- {
		entry := journal.Entries[i]
		if entry.Kind == EntryBareRepo {
			continue
		}
		if err := os.RemoveAll(entry.Path); err != nil {
			logger.WithError(err).WithField("path", entry.Path).Warn("failed to remove migrated path")
			continue
		}
		pruneEmptyParents(filepath.Dir(entry.Path), cfg.TargetRoot)
	}

	backup := cfg.BackupPath()
	if _, err := os.Stat(backup); err != nil {
		logger.Warn("no backup found, nothing to restore")
		return nil
	}

	if err := RestoreBackup(backup, cfg.SourceRoot); err != nil {
		return &ErrRollbackFailed{
			Reason: fmt.Sprintf("%v (backup kept at %s)", err, backup),
			Err:    err,
		}
	}

	if err := os.RemoveAll(backup); err != nil {
		logger.WithError(err).Warn("failed to remove backup after restore")
	}
	logger.Info("rollback complete")
	return nil
}

// RollbackMigration undoes the migration described by cfg using the
// journal persisted in its backup directory.
func RollbackMigration(cfg Config) error {
	journal, err := LoadJournal(filepath.Join(cfg.BackupPath(), JournalFile))
	if err != nil {
		return &ErrRollbackFailed{Reason: fmt.Sprintf("cannot read journal: %v", err), Err: err}
	}
	return Rollback(cfg, journal)
}

// pruneEmptyParents removes empty directories from dir up to, but not
// including, stop. Directories outside stop are never touched.
func pruneEmptyParents(dir, stop string) {
	stop = filepath.Clean(stop)
	for {
		dir = filepath.Clean(dir)
		rel, err := filepath.Rel(stop, dir)
		if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return
		}
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

// backoffBase is the delay before the second attempt
var backoffBase = time.Second

// RetryWithBackoff calls op until it succeeds, returns a non-retryable
// error, or maxAttempts calls have been made. Attempt n (1-based) is
// followed by a 2^(n-1) * backoffBase sleep. Failures come back as
// *ErrNetwork wrapping the last cause.
func RetryWithBackoff[T any](ctx context.Context, maxAttempts int, op func(attempt int) (T, error)) (T, error) {
	var zero T
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for attempt := 1; ; attempt++ {
		result, err := op(attempt)
		if err == nil {
			return result, nil
		}

		if !IsRetryable(err) || attempt >= maxAttempts {
			return zero, asNetworkError(err, attempt, maxAttempts)
		}

		delay := backoffBase << (attempt - 1)
		log.WithFields(log.Fields{
			"attempt": attempt,
			"max":     maxAttempts,
			"delay":   delay,
		}).WithError(err).Warn("retrying after failure")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, &ErrCancelled{}
		case <-timer.C:
		}
	}
}

func asNetworkError(err error, attempt, maxAttempts int) *ErrNetwork {
	reason := err.Error()
	var netErr *ErrNetwork
	if errors.As(err, &netErr) {
		reason = netErr.Reason
	}
	return &ErrNetwork{Reason: reason, Attempt: attempt, MaxAttempts: maxAttempts, Err: err}
}
