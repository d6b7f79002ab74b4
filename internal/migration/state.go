package migration

import "fmt"

// Phase is a step of the migration state machine
type Phase int

const (
	PhasePending Phase = iota
	PhaseValidating
	PhaseBackingUp
	PhaseCreatingBareRepo
	PhaseMigratingWorktrees
	PhaseCleaningUp
	PhaseCompleted
	PhaseRollingBack
	PhaseCancelled
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhasePending:
		return "pending"
	case PhaseValidating:
		return "validating"
	case PhaseBackingUp:
		return "backing-up"
	case PhaseCreatingBareRepo:
		return "creating-bare-repo"
	case PhaseMigratingWorktrees:
		return "migrating-worktrees"
	case PhaseCleaningUp:
		return "cleaning-up"
	case PhaseCompleted:
		return "completed"
	case PhaseRollingBack:
		return "rolling-back"
	case PhaseCancelled:
		return "cancelled"
	case PhaseFailed:
		return "failed"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// State is the current position of a migration. Current and Total are only
// meaningful in PhaseMigratingWorktrees. The zero value is Pending.
type State struct {
	Phase   Phase
	Current int
	Total   int
}

// MigratingWorktrees returns the state for converting worktree current
// (0-based) of total.
func MigratingWorktrees(current, total int) State {
	return State{Phase: PhaseMigratingWorktrees, Current: current, Total: total}
}

// Description returns human-readable progress text
func (s State) Description() string {
	switch s.Phase {
	case PhasePending:
		return "Waiting for confirmation..."
	case PhaseValidating:
		return "Validating prerequisites..."
	case PhaseBackingUp:
		return "Creating backup..."
	case PhaseCreatingBareRepo:
		return "Creating bare repository..."
	case PhaseMigratingWorktrees:
		return fmt.Sprintf("Migrating worktrees (%d/%d)...", s.Current+1, s.Total)
	case PhaseCleaningUp:
		return "Cleaning up..."
	case PhaseCompleted:
		return "Migration completed!"
	case PhaseRollingBack:
		return "Rolling back changes..."
	case PhaseCancelled:
		return "Migration cancelled."
	case PhaseFailed:
		return "Migration failed."
	}
	return s.Phase.String()
}

// IsTerminal reports whether no further transitions can happen
func (s State) IsTerminal() bool {
	switch s.Phase {
	case PhaseCompleted, PhaseCancelled, PhaseFailed:
		return true
	case PhasePending, PhaseValidating, PhaseBackingUp, PhaseCreatingBareRepo,
		PhaseMigratingWorktrees, PhaseCleaningUp, PhaseRollingBack:
		return false
	}
	return false
}

// IsInProgress reports whether work is underway
func (s State) IsInProgress() bool {
	switch s.Phase {
	case PhaseValidating, PhaseBackingUp, PhaseCreatingBareRepo,
		PhaseMigratingWorktrees, PhaseCleaningUp, PhaseRollingBack:
		return true
	case PhasePending, PhaseCompleted, PhaseCancelled, PhaseFailed:
		return false
	}
	return false
}

func (s State) String() string {
	if s.Phase == PhaseMigratingWorktrees {
		return fmt.Sprintf("%s(%d/%d)", s.Phase, s.Current+1, s.Total)
	}
	return s.Phase.String()
}

// CanTransitionTo reports whether next is a legal successor of s
func (s State) CanTransitionTo(next State) bool {
	switch s.Phase {
	case PhaseCompleted, PhaseCancelled, PhaseFailed:
		return false
	case PhaseRollingBack:
		return next.Phase == PhaseFailed
	case PhasePending:
		return next.Phase == PhaseValidating || next.Phase == PhaseCancelled || next.Phase == PhaseFailed
	case PhaseValidating:
		switch next.Phase {
		case PhaseBackingUp, PhaseCompleted, PhaseRollingBack, PhaseCancelled, PhaseFailed:
			return true
		}
		return false
	case PhaseBackingUp:
		switch next.Phase {
		case PhaseCreatingBareRepo, PhaseRollingBack, PhaseCancelled, PhaseFailed:
			return true
		}
		return false
	case PhaseCreatingBareRepo:
		switch next.Phase {
		case PhaseMigratingWorktrees, PhaseCleaningUp, PhaseRollingBack, PhaseCancelled, PhaseFailed:
			return true
		}
		return false
	case PhaseMigratingWorktrees:
		switch next.Phase {
		case PhaseMigratingWorktrees:
			return next.Current == s.Current+1 && next.Total == s.Total
		case PhaseCleaningUp, PhaseRollingBack, PhaseCancelled, PhaseFailed:
			return true
		}
		return false
	case PhaseCleaningUp:
		switch next.Phase {
		case PhaseCompleted, PhaseRollingBack, PhaseFailed:
			return true
		}
		return false
	}
	return false
}

// ProgressFunc receives every state the executor enters, before that
// phase's work starts.
type ProgressFunc func(State)

type machine struct {
	state    State
	progress ProgressFunc
}

func newMachine(progress ProgressFunc) *machine {
	return &machine{progress: progress}
}

func (m *machine) transition(next State) error {
	if !m.state.CanTransitionTo(next) {
		return fmt.Errorf("illegal migration transition %s -> %s", m.state, next)
	}
	m.state = next
	if m.progress != nil {
		m.progress(next)
	}
	return nil
}
