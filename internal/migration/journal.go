package migration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/natefinch/atomic"
)

// JournalFile is stored next to the backup so a later process can undo an
// interrupted migration
const JournalFile = "migration-journal.json"

// EntryKind classifies a journaled path
type EntryKind string

const (
	EntryBareRepo      EntryKind = "bare-repo"
	EntryWorktree      EntryKind = "worktree"
	EntryProjectConfig EntryKind = "project-config"
)

// JournalEntry is a path created by a migration run
type JournalEntry struct {
	Kind   EntryKind `json:"kind"`
	Path   string    `json:"path"`
	Branch string    `json:"branch,omitempty"`
}

// Journal records, in order, what a migration created in the target root.
// Rollback removes exactly these paths.
type Journal struct {
	Entries []JournalEntry `json:"entries"`
	file    string
}

// NewJournal returns an empty journal persisted to file on every Record.
// An empty file keeps the journal in memory only.
func NewJournal(file string) *Journal {
	return &Journal{file: file}
}

// LoadJournal reads a persisted journal. A missing file yields an empty
// journal bound to that file.
func LoadJournal(file string) (*Journal, error) {
	j := NewJournal(file)
	data, err := os.ReadFile(file)
	if err != nil {
		if os.IsNotExist(err) {
			return j, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(data, j); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(file), err)
	}
	return j, nil
}

// Record appends an entry and persists the journal
func (j *Journal) Record(entry JournalEntry) error {
	j.Entries = append(j.Entries, entry)
	return j.save()
}

// Paths returns the journaled paths of the given kind, in record order
func (j *Journal) Paths(kind EntryKind) []string {
	var paths []string
	for _, e := range j.Entries {
		if e.Kind == kind {
			paths = append(paths, e.Path)
		}
	}
	return paths
}

func (j *Journal) save() error {
	if j.file == "" {
		return nil
	}
	data, err := json.MarshalIndent(j, "", "  ")
	if err != nil {
		return err
	}
	if err := atomic.WriteFile(j.file, bytes.NewReader(data)); err != nil {
		return newIOError(j.file, err)
	}
	return nil
}
