package service

import (
	"context"
	"testing"

	"console/internal/model"
	"console/internal/permission"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type permFixture struct {
	svc     PermissionService
	role    model.Role
	invoice model.Module
	leads   model.Module
	perms   *fakePerms
	audit   *fakeAudit
	events  *fakeEvents
	cache   *fakeCache
	tx      *fakeTx
}

func newPermFixture() *permFixture {
	f := &permFixture{
		role:    model.Role{ID: uuid.New(), Name: "Manager"},
		invoice: model.Module{ID: uuid.New(), Name: "Invoice"},
		leads:   model.Module{ID: uuid.New(), Name: "Leads"},
		perms:   &fakePerms{},
		audit:   &fakeAudit{},
		events:  &fakeEvents{},
		cache:   &fakeCache{},
		tx:      &fakeTx{},
	}
	modules := &fakeModules{modules: []model.Module{f.invoice, f.leads}}
	f.svc = NewPermissionService(newFakeRoles(f.role), modules, f.perms, f.audit, f.tx, f.events, f.cache, nil)
	return f
}

func TestUpdateRolePermissionsStripsSentinel(t *testing.T) {
	f := newPermFixture()

	grants, err := f.svc.UpdateRolePermissions(context.Background(), "", f.role.ID.String(), UpdateRolePermissionsRequest{
		Permissions: []permission.Record{
			{ModuleID: f.invoice.ID.String(), PermissionNames: []string{"delete", "view", "view"}},
			{ModuleID: f.leads.ID.String(), PermissionNames: []string{""}},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []permission.Grant{{Module: "Invoice", Permissions: []string{"view", "delete"}}}, grants)
	assert.Len(t, f.perms.rows[f.role.ID], 2)
	assert.Equal(t, 1, f.tx.calls)
	require.Len(t, f.audit.entries, 1)
	assert.Equal(t, model.ActionUpdateRolePermissions, f.audit.entries[0].Action)
	assert.Equal(t, []string{f.role.ID.String()}, f.cache.purged)
	require.Len(t, f.events.events, 1)
	assert.Equal(t, EventRolePermissionsUpdated, f.events.events[0].event)
}

func TestUpdateRolePermissionsAllSentinelsClearsRole(t *testing.T) {
	f := newPermFixture()
	f.perms.rows = map[uuid.UUID][]model.RolePermission{
		f.role.ID: {{RoleID: f.role.ID, ModuleID: f.invoice.ID, Permission: "view", Module: f.invoice}},
	}

	grants, err := f.svc.UpdateRolePermissions(context.Background(), "", f.role.ID.String(), UpdateRolePermissionsRequest{
		Permissions: []permission.Record{
			{ModuleID: f.invoice.ID.String(), PermissionNames: []string{""}},
			{ModuleID: f.leads.ID.String(), PermissionNames: []string{""}},
		},
	})
	require.NoError(t, err)
	assert.Empty(t, grants)
	assert.Empty(t, f.perms.rows[f.role.ID])
}

func TestUpdateRolePermissionsRejectsBadInput(t *testing.T) {
	tests := []struct {
		name    string
		records func(f *permFixture) []permission.Record
	}{
		{"unknown kind", func(f *permFixture) []permission.Record {
			return []permission.Record{{ModuleID: f.invoice.ID.String(), PermissionNames: []string{"approve"}}}
		}},
		{"unknown module", func(f *permFixture) []permission.Record {
			return []permission.Record{{ModuleID: uuid.NewString(), PermissionNames: []string{"view"}}}
		}},
		{"malformed module id", func(f *permFixture) []permission.Record {
			return []permission.Record{{ModuleID: "Invoice", PermissionNames: []string{"view"}}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPermFixture()
			_, err := f.svc.UpdateRolePermissions(context.Background(), "", f.role.ID.String(), UpdateRolePermissionsRequest{Permissions: tt.records(f)})
			assert.ErrorIs(t, err, ErrInvalidInput)
			assert.Zero(t, f.perms.replaced)
			assert.Empty(t, f.audit.entries)
			assert.Empty(t, f.events.events)
		})
	}
}

func TestUpdateRolePermissionsUnknownRole(t *testing.T) {
	f := newPermFixture()
	_, err := f.svc.UpdateRolePermissions(context.Background(), "", uuid.NewString(), UpdateRolePermissionsRequest{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRolePermissionsOmitsEmptyModules(t *testing.T) {
	f := newPermFixture()
	f.perms.rows = map[uuid.UUID][]model.RolePermission{
		f.role.ID: {
			{RoleID: f.role.ID, ModuleID: f.leads.ID, Permission: "edit", Module: f.leads},
			{RoleID: f.role.ID, ModuleID: f.leads.ID, Permission: "view", Module: f.leads},
		},
	}

	grants, err := f.svc.RolePermissions(context.Background(), f.role.ID.String())
	require.NoError(t, err)
	assert.Equal(t, []permission.Grant{{Module: "Leads", Permissions: []string{"view", "edit"}}}, grants)
}

func TestListModules(t *testing.T) {
	f := newPermFixture()
	modules, err := f.svc.ListModules(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []ModuleResponse{
		{ID: f.invoice.ID.String(), Name: "Invoice"},
		{ID: f.leads.ID.String(), Name: "Leads"},
	}, modules)
}
