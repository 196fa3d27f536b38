package service

import (
	"context"
	"strings"
	"sync"

	"console/internal/model"
	"console/internal/repository"

	"github.com/google/uuid"
)

type fakeTx struct{ calls int }

func (f *fakeTx) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	f.calls++
	return fn(ctx)
}

type fakeRoles struct {
	roles    map[uuid.UUID]*model.Role
	detached map[uuid.UUID]int64
	deleted  []uuid.UUID
}

func newFakeRoles(roles ...model.Role) *fakeRoles {
	f := &fakeRoles{roles: map[uuid.UUID]*model.Role{}, detached: map[uuid.UUID]int64{}}
	for i := range roles {
		r := roles[i]
		f.roles[r.ID] = &r
	}
	return f
}

func (f *fakeRoles) Create(ctx context.Context, role *model.Role) error {
	if role.ID == uuid.Nil {
		role.ID = uuid.New()
	}
	cp := *role
	f.roles[role.ID] = &cp
	return nil
}

func (f *fakeRoles) Update(ctx context.Context, role *model.Role) error {
	cp := *role
	f.roles[role.ID] = &cp
	return nil
}

func (f *fakeRoles) Delete(ctx context.Context, id uuid.UUID) error {
	delete(f.roles, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeRoles) FindByID(ctx context.Context, id uuid.UUID) (*model.Role, error) {
	r, ok := f.roles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeRoles) FindByName(ctx context.Context, name string) (*model.Role, error) {
	for _, r := range f.roles {
		if strings.EqualFold(r.Name, name) {
			cp := *r
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeRoles) ListAll(ctx context.Context) ([]model.Role, error) {
	var out []model.Role
	for _, r := range f.roles {
		out = append(out, *r)
	}
	return out, nil
}

func (f *fakeRoles) DetachUsers(ctx context.Context, id uuid.UUID) (int64, error) {
	return f.detached[id], nil
}

type fakeModules struct {
	modules []model.Module
}

func (f *fakeModules) List(ctx context.Context) ([]model.Module, error) { return f.modules, nil }

func (f *fakeModules) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Module, error) {
	var out []model.Module
	for _, m := range f.modules {
		for _, id := range ids {
			if m.ID == id {
				out = append(out, m)
			}
		}
	}
	return out, nil
}

func (f *fakeModules) FindOrCreate(ctx context.Context, name string) (*model.Module, error) {
	for _, m := range f.modules {
		if m.Name == name {
			cp := m
			return &cp, nil
		}
	}
	m := model.Module{ID: uuid.New(), Name: name}
	f.modules = append(f.modules, m)
	return &m, nil
}

type fakePerms struct {
	rows     map[uuid.UUID][]model.RolePermission
	replaced int
}

func (f *fakePerms) ListByRole(ctx context.Context, roleID uuid.UUID) ([]model.RolePermission, error) {
	return f.rows[roleID], nil
}

func (f *fakePerms) Replace(ctx context.Context, roleID uuid.UUID, rows []model.RolePermission) error {
	f.replaced++
	if f.rows == nil {
		f.rows = map[uuid.UUID][]model.RolePermission{}
	}
	f.rows[roleID] = rows
	return nil
}

func (f *fakePerms) CodesForRole(ctx context.Context, roleID uuid.UUID) ([]string, error) {
	var out []string
	for _, r := range f.rows[roleID] {
		out = append(out, r.Module.Name+"."+r.Permission)
	}
	return out, nil
}

type fakeUsers struct {
	users []model.User
}

func (f *fakeUsers) Create(ctx context.Context, user *model.User) error {
	user.ID = uuid.New()
	f.users = append(f.users, *user)
	return nil
}

func (f *fakeUsers) GetByID(ctx context.Context, id string) (*model.User, error) {
	for i := range f.users {
		if f.users[i].ID.String() == id {
			return &f.users[i], nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUsers) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	for i := range f.users {
		if f.users[i].Email == email {
			return &f.users[i], nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUsers) List(ctx context.Context, offset, limit int) ([]model.User, int64, error) {
	return f.users, int64(len(f.users)), nil
}

type fakeAudit struct {
	entries []model.AuditLog
}

func (f *fakeAudit) Log(ctx context.Context, entry *model.AuditLog) error {
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeAudit) List(ctx context.Context, filter repository.AuditFilter, offset, limit int) ([]model.AuditLog, int64, error) {
	return f.entries, int64(len(f.entries)), nil
}

type published struct {
	event string
	data  interface{}
}

type fakeEvents struct {
	mu     sync.Mutex
	events []published
}

func (f *fakeEvents) Publish(event string, data interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, published{event: event, data: data})
}

type fakeCache struct{ purged []string }

func (f *fakeCache) Purge(roleID string) { f.purged = append(f.purged, roleID) }
