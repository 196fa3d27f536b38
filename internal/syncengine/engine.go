// Package syncengine keeps the permission matrix of the selected role and
// pushes every change to the backend as a full per-role snapshot, applying
// toggles optimistically and rolling back the toggled cell on failure.
package syncengine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"console/internal/client"
	"console/internal/gate"
	"console/internal/permission"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

var (
	ErrNoRoleSelected = errors.New("no role selected")
	ErrRoleChanged    = errors.New("selected role changed")
)

// Status is the matrix lifecycle for the current selection.
type Status int

const (
	Unselected Status = iota
	Loading
	Populated
	LoadFailed
)

func (s Status) String() string {
	switch s {
	case Unselected:
		return "unselected"
	case Loading:
		return "loading"
	case Populated:
		return "populated"
	case LoadFailed:
		return "load-failed"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Backend is the subset of the REST client the engine needs.
type Backend interface {
	RolePermissions(ctx context.Context, roleID string) ([]permission.Grant, error)
	UpdateRolePermissions(ctx context.Context, roleID string, records []permission.Record) error
}

// ModuleIDs resolves module names to backend ids.
type ModuleIDs interface {
	IDs() map[string]string
}

// Outcome reports what a toggle did.
type Outcome struct {
	Cell     Cell
	Action   gate.Action
	Declined bool
	Applied  bool
	// Granted is the cell's value once the toggle has settled.
	Granted bool
}

type Engine struct {
	backend Backend
	modules ModuleIDs
	gate    gate.Gate
	notify  gate.Notifier
	log     *zap.Logger

	mu         sync.Mutex
	status     Status
	role       *client.Role
	generation uint64
	states     map[string]State
	writes     map[string]*semaphore.Weighted
}

func New(backend Backend, modules ModuleIDs, g gate.Gate, n gate.Notifier, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		backend: backend,
		modules: modules,
		gate:    g,
		notify:  n,
		log:     log,
		states:  make(map[string]State),
		writes:  make(map[string]*semaphore.Weighted),
	}
}

// Status returns the lifecycle status and the selected role.
func (e *Engine) Status() (Status, *client.Role) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.role == nil {
		return e.status, nil
	}
	r := *e.role
	return e.status, &r
}

// Matrix returns a copy of the selected role's matrix.
func (e *Engine) Matrix() (permission.Matrix, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.currentLocked()
	if !ok {
		return nil, false
	}
	return st.Matrix.Clone(), true
}

// CellState returns the toggle lifecycle of a cell of the selected role.
func (e *Engine) CellState(module string, kind permission.Kind) CellState {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.currentLocked()
	if !ok {
		return Idle
	}
	return st.Cell(Cell{Module: module, Kind: kind})
}

// Dirty reports whether staged edits are waiting for a bulk save.
func (e *Engine) Dirty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	st, ok := e.currentLocked()
	return ok && st.Dirty
}

func (e *Engine) currentLocked() (State, bool) {
	if e.role == nil || e.status != Populated {
		return State{}, false
	}
	st, ok := e.states[e.role.ID]
	return st, ok
}

// Select discards the current matrix and loads the matrix of role. A nil
// role clears the selection without any request. A response that arrives
// after the selection moved on is dropped.
func (e *Engine) Select(ctx context.Context, role *client.Role) error {
	e.mu.Lock()
	e.generation++
	gen := e.generation
	e.states = make(map[string]State)
	if role == nil {
		e.role = nil
		e.status = Unselected
		e.mu.Unlock()
		return nil
	}
	r := *role
	e.role = &r
	e.status = Loading
	e.mu.Unlock()

	grants, err := e.backend.RolePermissions(ctx, r.ID)

	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.generation {
		e.log.Debug("dropping stale permissions response", zap.String("role", r.ID))
		return nil
	}
	if err != nil {
		e.status = LoadFailed
		e.notify.Error("load permissions", err)
		return fmt.Errorf("loading permissions of role %s: %w", r.Name, err)
	}

	m := permission.Transform(permission.CanonicalModules, permission.Kinds, grants)
	e.states[r.ID] = NewState(r.ID, m)
	e.status = Populated
	return nil
}

// RoleSelected lets the engine follow a directory selection.
func (e *Engine) RoleSelected(ctx context.Context, role *client.Role) error {
	return e.Select(ctx, role)
}

// RoleRenamed updates the name shown in confirmation prompts.
func (e *Engine) RoleRenamed(role client.Role) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.role != nil && e.role.ID == role.ID {
		e.role.Name = role.Name
	}
}

func (e *Engine) writeLock(roleID string) *semaphore.Weighted {
	e.mu.Lock()
	defer e.mu.Unlock()
	sem, ok := e.writes[roleID]
	if !ok {
		sem = semaphore.NewWeighted(1)
		e.writes[roleID] = sem
	}
	return sem
}

func (e *Engine) selected() (client.Role, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.currentLocked(); !ok {
		return client.Role{}, ErrNoRoleSelected
	}
	return *e.role, nil
}

// dispatchLocked applies ev to the state of roleID. It is a no-op when that role
// is no longer loaded, so late results never touch another role's matrix.
func (e *Engine) dispatchLocked(roleID string, ev Event) (State, error) {
	st, ok := e.states[roleID]
	if !ok {
		return State{}, ErrRoleChanged
	}
	next, err := Reduce(st, ev)
	if err != nil {
		return st, err
	}
	e.states[roleID] = next
	return next, nil
}

// dispatchSinceLocked is dispatchLocked for an event started under selection
// generation gen. Any selection since then, even of the same role, yields
// ErrRoleChanged.
func (e *Engine) dispatchSinceLocked(gen uint64, roleID string, ev Event) (State, error) {
	if gen != e.generation {
		return State{}, ErrRoleChanged
	}
	return e.dispatchLocked(roleID, ev)
}

// Toggle flips one cell of the selected role: confirm, apply locally, write
// the full snapshot, then commit or roll back that cell. Writes for the same
// role run one at a time.
func (e *Engine) Toggle(ctx context.Context, module string, kind permission.Kind) (Outcome, error) {
	cell := Cell{Module: module, Kind: kind}
	out := Outcome{Cell: cell}

	role, err := e.selected()
	if err != nil {
		e.notify.Warn("Select a role before changing permissions")
		return out, err
	}

	sem := e.writeLock(role.ID)
	if err := sem.Acquire(ctx, 1); err != nil {
		return out, err
	}
	defer sem.Release(1)

	ids := e.modules.IDs()

	e.mu.Lock()
	st, ok := e.states[role.ID]
	if !ok {
		e.mu.Unlock()
		e.notify.Error("toggle permission", ErrRoleChanged)
		return out, ErrRoleChanged
	}
	cur := st.Matrix.Get(module, kind)
	trial := st.Matrix.Clone()
	trial.Set(module, kind, !cur)
	if _, err := permission.Snapshot(trial, ids); err != nil {
		e.mu.Unlock()
		e.notify.Error("toggle permission", err)
		return out, err
	}
	if _, err := e.dispatchLocked(role.ID, ToggleRequested{Cell: cell}); err != nil {
		e.mu.Unlock()
		return out, err
	}
	roleName := e.role.Name
	gen := e.generation
	e.mu.Unlock()

	out.Action = gate.ActionFor(cur)
	out.Granted = cur

	confirmed, err := e.gate.Confirm(ctx, gate.TogglePrompt(roleName, module, string(kind), out.Action))
	if err != nil || !confirmed {
		e.mu.Lock()
		_, _ = e.dispatchLocked(role.ID, ToggleCancelled{Cell: cell})
		e.mu.Unlock()
		out.Declined = err == nil
		return out, err
	}

	e.mu.Lock()
	st, err = e.dispatchSinceLocked(gen, role.ID, ToggleApplied{Cell: cell})
	if err != nil {
		e.mu.Unlock()
		e.notify.Error("toggle permission", err)
		return out, err
	}
	post := st.Matrix.Clone()
	e.mu.Unlock()

	records, err := permission.Snapshot(post, ids)
	if err != nil {
		_ = e.rollback(gen, role.ID, cell)
		e.notify.Error("toggle permission", err)
		return out, err
	}

	done := e.notify.Progress(fmt.Sprintf("Updating permissions of %s", roleName))
	err = e.backend.UpdateRolePermissions(ctx, role.ID, records)
	done()

	if err != nil {
		if rerr := e.rollback(gen, role.ID, cell); errors.Is(rerr, ErrRoleChanged) {
			err = fmt.Errorf("%w: %s: %w", ErrRoleChanged, roleName, err)
		}
		e.log.Warn("permission update failed",
			zap.String("role", role.ID), zap.String("module", module), zap.String("kind", string(kind)), zap.Error(err))
		e.notify.Error("update permissions", err)
		return out, err
	}

	e.mu.Lock()
	_, cerr := e.dispatchSinceLocked(gen, role.ID, ToggleCommitted{Cell: cell})
	e.mu.Unlock()

	out.Applied = true
	out.Granted = !cur
	if cerr != nil {
		// The write went through but its role is no longer on screen.
		err := fmt.Errorf("%w: %s.%s %sd for %s", ErrRoleChanged, module, kind, out.Action, roleName)
		e.notify.Error("update permissions", err)
		return out, err
	}
	e.notify.Success(fmt.Sprintf("%s.%s %sd for %s", module, kind, out.Action, roleName))
	return out, nil
}

func (e *Engine) rollback(gen uint64, roleID string, cell Cell) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, err := e.dispatchSinceLocked(gen, roleID, ToggleRolledBack{Cell: cell})
	if err != nil {
		e.log.Debug("rollback skipped", zap.String("role", roleID), zap.Error(err))
	}
	return err
}

// Stage flips a cell locally without writing it. Staged edits are sent by
// the next BulkSave or carried along by the next Toggle.
func (e *Engine) Stage(module string, kind permission.Kind) (bool, error) {
	role, err := e.selected()
	if err != nil {
		e.notify.Warn("Select a role before changing permissions")
		return false, err
	}
	sem := e.writeLock(role.ID)
	if !sem.TryAcquire(1) {
		return false, fmt.Errorf("%w: %s.%s", ErrCellBusy, module, kind)
	}
	defer sem.Release(1)

	e.mu.Lock()
	defer e.mu.Unlock()
	st, err := e.dispatchLocked(role.ID, Staged{Cell: Cell{Module: module, Kind: kind}})
	if err != nil {
		if errors.Is(err, ErrRoleChanged) {
			e.notify.Error("stage permission", err)
		}
		return false, err
	}
	return st.Matrix.Get(module, kind), nil
}

// BulkSave confirms and writes the selected role's whole current matrix.
// A failed save leaves the matrix as it is. A declined save returns false
// and no error.
func (e *Engine) BulkSave(ctx context.Context) (bool, error) {
	role, err := e.selected()
	if err != nil {
		e.notify.Warn("Select a role before saving permissions")
		return false, err
	}

	sem := e.writeLock(role.ID)
	if err := sem.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer sem.Release(1)

	ids := e.modules.IDs()

	e.mu.Lock()
	st, ok := e.states[role.ID]
	if !ok {
		e.mu.Unlock()
		e.notify.Error("save permissions", ErrRoleChanged)
		return false, ErrRoleChanged
	}
	records, err := permission.Snapshot(st.Matrix, ids)
	roleName := e.role.Name
	gen := e.generation
	e.mu.Unlock()
	if err != nil {
		e.notify.Error("save permissions", err)
		return false, err
	}

	confirmed, err := e.gate.Confirm(ctx, gate.SavePrompt(roleName))
	if err != nil || !confirmed {
		return false, err
	}

	done := e.notify.Progress(fmt.Sprintf("Saving permissions of %s", roleName))
	err = e.backend.UpdateRolePermissions(ctx, role.ID, records)
	done()
	if err != nil {
		e.notify.Error("save permissions", err)
		return false, err
	}

	e.mu.Lock()
	_, err = e.dispatchSinceLocked(gen, role.ID, BulkSaved{})
	e.mu.Unlock()
	if err != nil {
		err = fmt.Errorf("%w: permissions of %s saved", ErrRoleChanged, roleName)
		e.notify.Error("save permissions", err)
		return true, err
	}
	e.notify.Success(fmt.Sprintf("Permissions of %s saved", roleName))
	return true, nil
}
