package syncengine

import (
	"errors"
	"fmt"

	"console/internal/permission"
)

// CellState is the lifecycle of one matrix cell during a toggle.
type CellState int

const (
	Idle CellState = iota
	Confirming
	Applying
	Committed
	RolledBack
)

func (s CellState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Confirming:
		return "confirming"
	case Applying:
		return "applying"
	case Committed:
		return "committed"
	case RolledBack:
		return "rolled-back"
	default:
		return fmt.Sprintf("CellState(%d)", int(s))
	}
}

func (s CellState) busy() bool {
	return s == Confirming || s == Applying
}

// Cell addresses one (module, kind) pair.
type Cell struct {
	Module string
	Kind   permission.Kind
}

var (
	ErrCellBusy          = errors.New("cell has a toggle in progress")
	ErrInvalidTransition = errors.New("invalid cell transition")
)

// State is everything the console holds for one role. Reduce never mutates
// the State it is given.
type State struct {
	RoleID string
	Matrix permission.Matrix
	Cells  map[Cell]CellState
	// Prev holds the pre-toggle value of cells in Applying.
	Prev map[Cell]bool
	// Dirty is set by staged edits not yet written to the backend.
	Dirty bool
}

// NewState wraps a freshly built matrix; every cell starts Idle.
func NewState(roleID string, m permission.Matrix) State {
	return State{
		RoleID: roleID,
		Matrix: m,
		Cells:  map[Cell]CellState{},
		Prev:   map[Cell]bool{},
	}
}

// Cell returns the lifecycle state of c.
func (s State) Cell(c Cell) CellState {
	return s.Cells[c]
}

func (s State) clone() State {
	out := State{
		RoleID: s.RoleID,
		Matrix: s.Matrix.Clone(),
		Cells:  make(map[Cell]CellState, len(s.Cells)),
		Prev:   make(map[Cell]bool, len(s.Prev)),
		Dirty:  s.Dirty,
	}
	for k, v := range s.Cells {
		out.Cells[k] = v
	}
	for k, v := range s.Prev {
		out.Prev[k] = v
	}
	return out
}

// Event is a transition of the per-role state.
type Event interface {
	apply(s *State) error
}

// ToggleRequested starts a toggle: the cell waits for confirmation.
type ToggleRequested struct{ Cell Cell }

// ToggleCancelled ends a declined toggle with no change.
type ToggleCancelled struct{ Cell Cell }

// ToggleApplied flips the cell optimistically and remembers its old value.
type ToggleApplied struct{ Cell Cell }

// ToggleCommitted accepts the optimistic value as authoritative.
type ToggleCommitted struct{ Cell Cell }

// ToggleRolledBack restores the cell's pre-toggle value.
type ToggleRolledBack struct{ Cell Cell }

// Staged flips a cell locally without writing it; BulkSaved persists it.
type Staged struct{ Cell Cell }

// BulkSaved marks the whole matrix as written.
type BulkSaved struct{}

func (e ToggleRequested) apply(s *State) error {
	if s.Cells[e.Cell].busy() {
		return fmt.Errorf("%w: %s.%s", ErrCellBusy, e.Cell.Module, e.Cell.Kind)
	}
	s.Cells[e.Cell] = Confirming
	return nil
}

func (e ToggleCancelled) apply(s *State) error {
	if s.Cells[e.Cell] != Confirming {
		return transitionError(e.Cell, s.Cells[e.Cell], Idle)
	}
	s.Cells[e.Cell] = Idle
	return nil
}

func (e ToggleApplied) apply(s *State) error {
	if s.Cells[e.Cell] != Confirming {
		return transitionError(e.Cell, s.Cells[e.Cell], Applying)
	}
	cur := s.Matrix.Get(e.Cell.Module, e.Cell.Kind)
	s.Prev[e.Cell] = cur
	s.Matrix.Set(e.Cell.Module, e.Cell.Kind, !cur)
	s.Cells[e.Cell] = Applying
	return nil
}

func (e ToggleCommitted) apply(s *State) error {
	if s.Cells[e.Cell] != Applying {
		return transitionError(e.Cell, s.Cells[e.Cell], Committed)
	}
	delete(s.Prev, e.Cell)
	s.Cells[e.Cell] = Committed
	// The write carried the full matrix, staged edits included.
	s.Dirty = false
	return nil
}

func (e ToggleRolledBack) apply(s *State) error {
	if s.Cells[e.Cell] != Applying {
		return transitionError(e.Cell, s.Cells[e.Cell], RolledBack)
	}
	s.Matrix.Set(e.Cell.Module, e.Cell.Kind, s.Prev[e.Cell])
	delete(s.Prev, e.Cell)
	s.Cells[e.Cell] = RolledBack
	return nil
}

func (e Staged) apply(s *State) error {
	if s.Cells[e.Cell].busy() {
		return fmt.Errorf("%w: %s.%s", ErrCellBusy, e.Cell.Module, e.Cell.Kind)
	}
	cur := s.Matrix.Get(e.Cell.Module, e.Cell.Kind)
	s.Matrix.Set(e.Cell.Module, e.Cell.Kind, !cur)
	s.Dirty = true
	return nil
}

func (BulkSaved) apply(s *State) error {
	s.Dirty = false
	return nil
}

func transitionError(c Cell, from, to CellState) error {
	return fmt.Errorf("%w: %s.%s %s -> %s", ErrInvalidTransition, c.Module, c.Kind, from, to)
}

// Reduce returns the state after e. On error the input state is returned
// unchanged.
func Reduce(s State, e Event) (State, error) {
	next := s.clone()
	if err := e.apply(&next); err != nil {
		return s, err
	}
	return next, nil
}
