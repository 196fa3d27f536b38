package directory

import (
	"context"
	"errors"
	"testing"

	"console/internal/client"
	"console/internal/gate/gatetest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	roles     []client.Role
	calls     []string
	failNext  error
	nextID    int
	listCalls int
}

func (f *fakeBackend) fail() error {
	err := f.failNext
	f.failNext = nil
	return err
}

func (f *fakeBackend) ListRoles(ctx context.Context) ([]client.Role, error) {
	f.calls = append(f.calls, "list")
	f.listCalls++
	return append([]client.Role(nil), f.roles...), nil
}

func (f *fakeBackend) CreateRole(ctx context.Context, name string) (client.Role, error) {
	f.calls = append(f.calls, "create")
	if err := f.fail(); err != nil {
		return client.Role{}, err
	}
	f.nextID++
	r := client.Role{ID: "new-" + string(rune('0'+f.nextID)), Name: name}
	f.roles = append(f.roles, r)
	return r, nil
}

func (f *fakeBackend) RenameRole(ctx context.Context, id, name string) (client.Role, error) {
	f.calls = append(f.calls, "rename")
	if err := f.fail(); err != nil {
		return client.Role{}, err
	}
	return client.Role{ID: id, Name: name}, nil
}

func (f *fakeBackend) DeleteRole(ctx context.Context, id string) error {
	f.calls = append(f.calls, "delete")
	return f.fail()
}

type recordingListener struct {
	selected []*client.Role
	renamed  []client.Role
}

func (l *recordingListener) RoleSelected(ctx context.Context, role *client.Role) error {
	l.selected = append(l.selected, role)
	return nil
}

func (l *recordingListener) RoleRenamed(role client.Role) {
	l.renamed = append(l.renamed, role)
}

func setup(t *testing.T, answers ...bool) (*Directory, *fakeBackend, *gatetest.Gate, *gatetest.Notifier) {
	t.Helper()
	backend := &fakeBackend{roles: []client.Role{{ID: "r1", Name: "Manager"}, {ID: "r2", Name: "Clerk"}}}
	g := gatetest.Answer(answers...)
	n := &gatetest.Notifier{}
	d := New(backend, g, n, nil)
	_, err := d.Refresh(context.Background())
	require.NoError(t, err)
	backend.calls = nil
	return d, backend, g, n
}

func TestCreateRejectsEmptyNameBeforeNetwork(t *testing.T) {
	d, backend, _, n := setup(t)

	_, _, err := d.Create(context.Background(), "   ")
	assert.ErrorIs(t, err, ErrEmptyName)
	assert.Empty(t, backend.calls)
	assert.Len(t, n.Warnings, 1)
}

func TestCreateRefreshesList(t *testing.T) {
	d, backend, g, n := setup(t, true)

	role, ok, err := d.Create(context.Background(), " Auditor ")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Auditor", role.Name)
	require.Len(t, g.Prompts, 1)
	assert.False(t, g.Prompts[0].Danger)
	assert.Contains(t, g.Prompts[0].Body, `"Auditor"`)
	assert.Equal(t, []string{"create", "list"}, backend.calls)
	assert.Len(t, d.Roles(), 3)
	assert.Len(t, n.Successes, 1)
	assert.Zero(t, n.Open)
}

func TestCreateFailureSurfacesError(t *testing.T) {
	d, backend, _, n := setup(t, true)
	backend.failNext = errors.New("conflict")

	_, _, err := d.Create(context.Background(), "Manager")
	require.Error(t, err)
	assert.Equal(t, []string{"create"}, backend.calls)
	assert.Equal(t, []string{"create role: conflict"}, n.Errors)
	assert.Zero(t, n.Open)
}

func TestCreateDeclinedDoesNothing(t *testing.T) {
	d, backend, g, n := setup(t, false)

	role, ok, err := d.Create(context.Background(), "Auditor")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, client.Role{}, role)
	assert.Empty(t, backend.calls)
	assert.Len(t, d.Roles(), 2)
	assert.Equal(t, 1, g.Asked())
	assert.Empty(t, n.Successes)
	assert.Empty(t, n.Titles)
}

func TestRenamePatchesLocalEntry(t *testing.T) {
	d, backend, g, _ := setup(t, true)
	l := &recordingListener{}
	d.Subscribe(l)
	_, err := d.Select(context.Background(), "r1")
	require.NoError(t, err)

	role, ok, err := d.Rename(context.Background(), "r1", "Supervisor")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, client.Role{ID: "r1", Name: "Supervisor"}, role)
	assert.Equal(t, []string{"rename"}, backend.calls)
	assert.Equal(t, 1, g.Asked())

	found, _ := d.Lookup("r1")
	assert.Equal(t, "Supervisor", found.Name)
	assert.Equal(t, []client.Role{{ID: "r1", Name: "Supervisor"}}, l.renamed)
}

func TestRenameDeclinedDoesNothing(t *testing.T) {
	d, backend, g, n := setup(t, false)
	l := &recordingListener{}
	d.Subscribe(l)
	_, err := d.Select(context.Background(), "r1")
	require.NoError(t, err)

	role, ok, err := d.Rename(context.Background(), "r1", "Supervisor")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, client.Role{}, role)
	assert.Empty(t, backend.calls)
	assert.Equal(t, 1, g.Asked())
	assert.Empty(t, n.Titles)
	assert.Empty(t, l.renamed)

	found, _ := d.Lookup("r1")
	assert.Equal(t, "Manager", found.Name)
}

func TestRenameValidatesName(t *testing.T) {
	d, backend, g, _ := setup(t, true)

	_, _, err := d.Rename(context.Background(), "r1", "")
	assert.ErrorIs(t, err, ErrEmptyName)
	assert.Empty(t, backend.calls)
	assert.Zero(t, g.Asked())
}

func TestDeleteDeclinedDoesNothing(t *testing.T) {
	d, backend, g, _ := setup(t, false)

	ok, err := d.Delete(context.Background(), "Manager")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, backend.calls)
	assert.Len(t, d.Roles(), 2)
	require.Len(t, g.Prompts, 1)
	assert.True(t, g.Prompts[0].Danger)
	assert.Contains(t, g.Prompts[0].Body, "cannot be undone")
	assert.Contains(t, g.Prompts[0].Body, "60 seconds")
}

func TestDeleteSelectedRoleRevertsSelection(t *testing.T) {
	d, backend, _, _ := setup(t, true)
	l := &recordingListener{}
	d.Subscribe(l)

	_, err := d.Select(context.Background(), "Manager")
	require.NoError(t, err)

	ok, err := d.Delete(context.Background(), "r1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"delete"}, backend.calls)

	_, selected := d.Selected()
	assert.False(t, selected)
	require.Len(t, l.selected, 2)
	assert.Nil(t, l.selected[1])
	assert.Equal(t, []client.Role{{ID: "r2", Name: "Clerk"}}, d.Roles())
}

func TestDeleteOtherRoleKeepsSelection(t *testing.T) {
	d, _, _, _ := setup(t, true)
	_, err := d.Select(context.Background(), "r1")
	require.NoError(t, err)

	_, err = d.Delete(context.Background(), "r2")
	require.NoError(t, err)

	role, ok := d.Selected()
	assert.True(t, ok)
	assert.Equal(t, "r1", role.ID)
}

func TestSelectUnknownRole(t *testing.T) {
	d, _, _, _ := setup(t)

	_, err := d.Select(context.Background(), "Ghost")
	assert.ErrorIs(t, err, ErrUnknownRole)
}
