package migration

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/natefinch/atomic"
	"github.com/otiai10/copy"
	log "github.com/sirupsen/logrus"
)

// BackupInfoFile records the provenance of a backup
const BackupInfoFile = "backup-info.json"

// backedUpDirs are the source directories a backup holds
var backedUpDirs = []string{".git", WorktreesDirName, ProjectDirName}

// BackupInfo describes a backup on disk
type BackupInfo struct {
	Path      string    `json:"-"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

// copyOptions preserve modes and times and copy symlinks as links
func copyOptions() copy.Options {
	return copy.Options{
		OnSymlink:         func(string) copy.SymlinkAction { return copy.Shallow },
		PermissionControl: copy.PerservePermission,
		PreserveTimes:     true,
	}
}

// CreateBackup copies .git, .worktrees and .gwt of source into backupDir
// and records backup-info.json. A partially written backup is left in
// place on error.
func CreateBackup(source, backupDir string) (*BackupInfo, error) {
	if err := os.MkdirAll(backupDir, 0755); err != nil {
		return nil, &ErrBackupFailed{Reason: fmt.Sprintf("cannot create %s: %v", backupDir, err)}
	}

	for _, name := range backedUpDirs {
		src := filepath.Join(source, name)
		if _, err := os.Lstat(src); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, &ErrBackupFailed{Reason: err.Error()}
		}
		if err := copy.Copy(src, filepath.Join(backupDir, name), copyOptions()); err != nil {
			return nil, &ErrBackupFailed{Reason: fmt.Sprintf("cannot copy %s: %v", name, err)}
		}
		log.WithFields(log.Fields{"dir": name, "backup": backupDir}).Debug("backed up directory")
	}

	info := &BackupInfo{
		Path:      backupDir,
		Source:    source,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return nil, &ErrBackupFailed{Reason: err.Error()}
	}
	if err := atomic.WriteFile(filepath.Join(backupDir, BackupInfoFile), bytes.NewReader(data)); err != nil {
		return nil, &ErrBackupFailed{Reason: fmt.Sprintf("cannot write %s: %v", BackupInfoFile, err)}
	}

	log.WithField("backup", backupDir).Info("backup created")
	return info, nil
}

// ReadBackupInfo loads backup-info.json from backupDir
func ReadBackupInfo(backupDir string) (*BackupInfo, error) {
	data, err := os.ReadFile(filepath.Join(backupDir, BackupInfoFile))
	if err != nil {
		return nil, err
	}
	var info BackupInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", BackupInfoFile, err)
	}
	info.Path = backupDir
	return &info, nil
}

// RestoreBackup replaces .git, .worktrees and .gwt under target with the
// copies in backupDir. Directories absent from the backup are left alone.
// Restoring twice yields the same result.
func RestoreBackup(backupDir, target string) error {
	if _, err := os.Stat(backupDir); err != nil {
		return &ErrRestoreFailed{Reason: fmt.Sprintf("backup not found at %s", backupDir)}
	}

	if info, err := ReadBackupInfo(backupDir); err == nil && !samePath(info.Source, target) {
		log.WithFields(log.Fields{
			"recorded": info.Source,
			"target":   target,
		}).Warn("restoring backup into a different location than it was taken from")
	}

	var errs []error
	for _, name := range backedUpDirs {
		src := filepath.Join(backupDir, name)
		if _, err := os.Lstat(src); err != nil {
			continue
		}
		dst := filepath.Join(target, name)
		if err := os.RemoveAll(dst); err != nil {
			errs = append(errs, fmt.Errorf("cannot remove %s: %w", dst, err))
			continue
		}
		if err := copy.Copy(src, dst, copyOptions()); err != nil {
			errs = append(errs, fmt.Errorf("cannot restore %s: %w", name, err))
			continue
		}
		log.WithField("dir", name).Debug("restored directory")
	}

	if err := errors.Join(errs...); err != nil {
		return &ErrRestoreFailed{Reason: err.Error()}
	}
	return nil
}

func samePath(a, b string) bool {
	ca, errA := filepath.Abs(a)
	cb, errB := filepath.Abs(b)
	return errA == nil && errB == nil && filepath.Clean(ca) == filepath.Clean(cb)
}
