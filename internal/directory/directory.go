// Package directory lists and mutates roles and tracks which role the
// operator has selected.
package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"console/internal/client"
	"console/internal/gate"

	"go.uber.org/zap"
)

var (
	ErrEmptyName   = errors.New("role name is required")
	ErrUnknownRole = errors.New("unknown role")
)

// Backend is the subset of the REST client the directory needs.
type Backend interface {
	ListRoles(ctx context.Context) ([]client.Role, error)
	CreateRole(ctx context.Context, name string) (client.Role, error)
	RenameRole(ctx context.Context, id, name string) (client.Role, error)
	DeleteRole(ctx context.Context, id string) error
}

// Listener follows the selected role. RoleSelected receives nil when the
// selection reverts to none.
type Listener interface {
	RoleSelected(ctx context.Context, role *client.Role) error
	RoleRenamed(role client.Role)
}

type Directory struct {
	backend Backend
	gate    gate.Gate
	notify  gate.Notifier
	log     *zap.Logger

	mu        sync.Mutex
	roles     []client.Role
	selected  string
	listeners []Listener
}

func New(backend Backend, g gate.Gate, n gate.Notifier, log *zap.Logger) *Directory {
	if log == nil {
		log = zap.NewNop()
	}
	return &Directory{backend: backend, gate: g, notify: n, log: log}
}

// Subscribe registers a listener for selection changes.
func (d *Directory) Subscribe(l Listener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, l)
}

// Refresh replaces the cached role list with the backend's.
func (d *Directory) Refresh(ctx context.Context) ([]client.Role, error) {
	roles, err := d.backend.ListRoles(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing roles: %w", err)
	}
	d.mu.Lock()
	d.roles = roles
	d.mu.Unlock()
	return d.Roles(), nil
}

// Roles returns the cached role list.
func (d *Directory) Roles() []client.Role {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]client.Role, len(d.roles))
	copy(out, d.roles)
	return out
}

// Lookup finds a cached role by id, then by case-insensitive name.
func (d *Directory) Lookup(ref string) (client.Role, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lookupLocked(ref)
}

func (d *Directory) lookupLocked(ref string) (client.Role, bool) {
	for _, r := range d.roles {
		if r.ID == ref {
			return r, true
		}
	}
	for _, r := range d.roles {
		if strings.EqualFold(r.Name, ref) {
			return r, true
		}
	}
	return client.Role{}, false
}

// Selected returns the selected role, if any.
func (d *Directory) Selected() (client.Role, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.selected == "" {
		return client.Role{}, false
	}
	return d.lookupLocked(d.selected)
}

// Select makes ref the selected role; an empty ref selects none.
func (d *Directory) Select(ctx context.Context, ref string) (*client.Role, error) {
	d.mu.Lock()
	var role *client.Role
	if ref != "" {
		r, ok := d.lookupLocked(ref)
		if !ok {
			d.mu.Unlock()
			return nil, fmt.Errorf("%w: %s", ErrUnknownRole, ref)
		}
		role = &r
		d.selected = r.ID
	} else {
		d.selected = ""
	}
	listeners := append([]Listener(nil), d.listeners...)
	d.mu.Unlock()

	for _, l := range listeners {
		if err := l.RoleSelected(ctx, role); err != nil {
			return role, err
		}
	}
	return role, nil
}

// Create adds a role after confirmation and refreshes the full list. A
// declined confirmation returns ok=false and no error.
func (d *Directory) Create(ctx context.Context, name string) (client.Role, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		d.notify.Warn(ErrEmptyName.Error())
		return client.Role{}, false, ErrEmptyName
	}

	confirmed, err := d.gate.Confirm(ctx, gate.CreateRolePrompt(name))
	if err != nil || !confirmed {
		return client.Role{}, false, err
	}

	done := d.notify.Progress("Creating role " + name)
	role, err := d.backend.CreateRole(ctx, name)
	done()
	if err != nil {
		d.notify.Error("create role", err)
		return client.Role{}, false, err
	}

	if _, err := d.Refresh(ctx); err != nil {
		d.log.Warn("role list refresh after create failed", zap.Error(err))
		d.mu.Lock()
		d.roles = append(d.roles, role)
		d.mu.Unlock()
	}
	d.notify.Success(fmt.Sprintf("Role %q created", role.Name))
	return role, true, nil
}

// Rename changes the name of role id after confirmation and patches the
// cached entry. A declined confirmation returns ok=false and no error.
func (d *Directory) Rename(ctx context.Context, id, name string) (client.Role, bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		d.notify.Warn(ErrEmptyName.Error())
		return client.Role{}, false, ErrEmptyName
	}
	current, ok := d.Lookup(id)
	if !ok {
		return client.Role{}, false, fmt.Errorf("%w: %s", ErrUnknownRole, id)
	}

	confirmed, err := d.gate.Confirm(ctx, gate.RenameRolePrompt(current.Name, name))
	if err != nil || !confirmed {
		return client.Role{}, false, err
	}

	done := d.notify.Progress("Renaming role " + current.Name)
	updated, err := d.backend.RenameRole(ctx, current.ID, name)
	done()
	if err != nil {
		d.notify.Error("rename role", err)
		return client.Role{}, false, err
	}
	if updated.ID == "" {
		updated = client.Role{ID: current.ID, Name: name}
	}

	d.mu.Lock()
	for i := range d.roles {
		if d.roles[i].ID == updated.ID {
			d.roles[i].Name = updated.Name
		}
	}
	listeners := append([]Listener(nil), d.listeners...)
	isSelected := d.selected == updated.ID
	d.mu.Unlock()

	if isSelected {
		for _, l := range listeners {
			l.RoleRenamed(updated)
		}
	}
	d.notify.Success(fmt.Sprintf("Role renamed to %q", updated.Name))
	return updated, true, nil
}

// Delete removes role id after a destructive confirmation. Deleting the
// selected role reverts the selection to none.
func (d *Directory) Delete(ctx context.Context, id string) (bool, error) {
	current, ok := d.Lookup(id)
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownRole, id)
	}

	confirmed, err := d.gate.Confirm(ctx, gate.DeleteRolePrompt(current.Name))
	if err != nil || !confirmed {
		return false, err
	}

	done := d.notify.Progress("Deleting role " + current.Name)
	err = d.backend.DeleteRole(ctx, current.ID)
	done()
	if err != nil {
		d.notify.Error("delete role", err)
		return false, err
	}

	d.mu.Lock()
	kept := d.roles[:0]
	for _, r := range d.roles {
		if r.ID != current.ID {
			kept = append(kept, r)
		}
	}
	d.roles = kept
	wasSelected := d.selected == current.ID
	d.mu.Unlock()

	d.notify.Success(fmt.Sprintf("Role %q deleted", current.Name))
	if wasSelected {
		if _, err := d.Select(ctx, ""); err != nil {
			return true, err
		}
	}
	return true, nil
}
