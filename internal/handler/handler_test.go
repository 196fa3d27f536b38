package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"console/internal/middleware"
	"console/internal/permission"
	"console/internal/service"
	"console/pkg/pagination"
	"console/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("handler-secret")

type stubRoles struct {
	created service.CreateRoleRequest
	actor   string
	err     error
}

func (s *stubRoles) ListRoles(context.Context) ([]service.RoleResponse, error) {
	return []service.RoleResponse{{ID: "r-1", Name: "Manager"}}, s.err
}

func (s *stubRoles) GetRole(_ context.Context, id string) (*service.RoleResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &service.RoleResponse{ID: id, Name: "Manager"}, nil
}

func (s *stubRoles) CreateRole(_ context.Context, userID string, req service.CreateRoleRequest) (*service.RoleResponse, error) {
	s.actor, s.created = userID, req
	if s.err != nil {
		return nil, s.err
	}
	return &service.RoleResponse{ID: "r-new", Name: req.Name}, nil
}

func (s *stubRoles) RenameRole(_ context.Context, _, id string, req service.RenameRoleRequest) (*service.RoleResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &service.RoleResponse{ID: id, Name: req.Name}, nil
}

func (s *stubRoles) DeleteRole(context.Context, string, string) error { return s.err }

type stubPerms struct {
	update service.UpdateRolePermissionsRequest
	err    error
}

func (s *stubPerms) ListModules(context.Context) ([]service.ModuleResponse, error) {
	return []service.ModuleResponse{{ID: "m-1", Name: "Invoice"}}, nil
}

func (s *stubPerms) RolePermissions(context.Context, string) ([]permission.Grant, error) {
	return []permission.Grant{{Module: "Invoice", Permissions: []string{"view"}}}, s.err
}

func (s *stubPerms) UpdateRolePermissions(_ context.Context, _, _ string, req service.UpdateRolePermissionsRequest) ([]permission.Grant, error) {
	s.update = req
	if s.err != nil {
		return nil, s.err
	}
	return []permission.Grant{}, nil
}

func (s *stubPerms) CodesForRole(context.Context, string) ([]string, error) { return nil, nil }

type stubUsers struct{}

func (stubUsers) Login(_ context.Context, req service.LoginUserRequest) (*service.TokenResponse, error) {
	if req.Password != "pw" {
		return nil, service.ErrInvalidCredentials
	}
	return &service.TokenResponse{Token: "t"}, nil
}

func (stubUsers) Me(_ context.Context, id string) (*service.UserResponse, error) {
	return &service.UserResponse{Username: id, Permissions: []string{"Invoice.view"}}, nil
}

func (stubUsers) ListUsers(context.Context, pagination.Params) ([]service.UserResponse, int64, error) {
	return []service.UserResponse{{Username: "ops"}}, 1, nil
}

func token(t *testing.T, role, roleID string) string {
	t.Helper()
	claims := jwt.MapClaims{"sub": "u-1", "role": role, "exp": time.Now().Add(time.Hour).Unix()}
	if roleID != "" {
		claims["role_id"] = roleID
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)
	return s
}

func newTestRouter(roles service.RoleService, perms service.PermissionService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	cache := middleware.NewPermissionCache(func(_ context.Context, roleID string) ([]string, error) {
		if roleID == "r-clerk" {
			return []string{"Leads.view"}, nil
		}
		return nil, nil
	}, 8, time.Minute)
	auth := middleware.NewAuth(secret, cache)

	r := gin.New()
	api := r.Group("")
	NewRoleHandler(roles, auth).RegisterRoutes(api)
	NewPermissionHandler(perms, auth).RegisterRoutes(api)
	NewUserHandler(stubUsers{}, auth).RegisterRoutes(api)
	return r
}

func call(t *testing.T, r http.Handler, method, path, tok string, body interface{}) (*httptest.ResponseRecorder, response.Envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return w, env
}

func TestRoleRoutesRequireAdmin(t *testing.T) {
	r := newTestRouter(&stubRoles{}, &stubPerms{})

	w, _ := call(t, r, http.MethodGet, "/api/roles", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, env := call(t, r, http.MethodGet, "/api/roles", token(t, "clerk", "r-clerk"), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "error", env.Status)

	w, env = call(t, r, http.MethodGet, "/api/roles", token(t, "admin", ""), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	var roles []service.RoleResponse
	require.NoError(t, json.Unmarshal(env.Data, &roles))
	assert.Equal(t, "Manager", roles[0].Name)
}

func TestCreateRoleHandler(t *testing.T) {
	roles := &stubRoles{}
	r := newTestRouter(roles, &stubPerms{})

	w, env := call(t, r, http.MethodPost, "/api/roles", token(t, "admin", ""), map[string]string{"name": "Auditor"})
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Auditor", roles.created.Name)
	assert.Equal(t, "u-1", roles.actor)
	assert.Contains(t, string(env.Data), "r-new")

	w, _ = call(t, r, http.MethodPost, "/api/roles", token(t, "admin", ""), map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRenameRoleAcceptsPostAndPut(t *testing.T) {
	r := newTestRouter(&stubRoles{}, &stubPerms{})
	for _, method := range []string{http.MethodPost, http.MethodPut} {
		w, env := call(t, r, method, "/api/roles/r-1", token(t, "admin", ""), map[string]string{"name": "Lead"})
		assert.Equal(t, http.StatusOK, w.Code, method)
		assert.Contains(t, string(env.Data), `"name":"Lead"`)
	}
}

func TestServiceErrorsMapToStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("role x: %w", service.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("%w: bad", service.ErrInvalidInput), http.StatusBadRequest},
		{fmt.Errorf("%w: dup", service.ErrConflict), http.StatusConflict},
		{fmt.Errorf("%w: admin", service.ErrSystemRole), http.StatusForbidden},
		{fmt.Errorf("db gone"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		r := newTestRouter(&stubRoles{err: tt.err}, &stubPerms{})
		w, env := call(t, r, http.MethodDelete, "/api/roles/r-1", token(t, "admin", ""), nil)
		assert.Equal(t, tt.want, w.Code, tt.err.Error())
		assert.Equal(t, tt.err.Error(), env.Error)
	}
}

func TestUpdateRolePermissionsKeepsSentinel(t *testing.T) {
	perms := &stubPerms{}
	r := newTestRouter(&stubRoles{}, perms)

	body := map[string]interface{}{
		"permissions": []map[string]interface{}{
			{"module_id": "m-1", "permission_names": []string{""}},
			{"module_id": "m-2", "permission_names": []string{"view", "edit"}},
		},
	}
	w, _ := call(t, r, http.MethodPut, "/api/roles/r-1/permissions", token(t, "admin", ""), body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []permission.Record{
		{ModuleID: "m-1", PermissionNames: []string{""}},
		{ModuleID: "m-2", PermissionNames: []string{"view", "edit"}},
	}, perms.update.Permissions)

	w, _ = call(t, r, http.MethodPost, "/api/roles/r-1/permissions", token(t, "admin", ""), map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetRolePermissions(t *testing.T) {
	r := newTestRouter(&stubRoles{}, &stubPerms{})
	w, env := call(t, r, http.MethodGet, "/api/roles/r-1/permissions", token(t, "admin", ""), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var grants []permission.Grant
	require.NoError(t, json.Unmarshal(env.Data, &grants))
	assert.Equal(t, []permission.Grant{{Module: "Invoice", Permissions: []string{"view"}}}, grants)
}

func TestCheckAccess(t *testing.T) {
	r := newTestRouter(&stubRoles{}, &stubPerms{})

	w, env := call(t, r, http.MethodGet, "/api/access/Leads/view", token(t, "clerk", "r-clerk"), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"code":"Leads.view"`)

	w, _ = call(t, r, http.MethodGet, "/api/access/Leads/delete", token(t, "clerk", "r-clerk"), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = call(t, r, http.MethodGet, "/api/access/Leads/view", token(t, "clerk", ""), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestLoginAndMe(t *testing.T) {
	r := newTestRouter(&stubRoles{}, &stubPerms{})

	w, env := call(t, r, http.MethodPost, "/login", "", map[string]string{"email": "ops@example.com", "password": "pw"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), `"token":"t"`)

	w, _ = call(t, r, http.MethodPost, "/login", "", map[string]string{"email": "ops@example.com", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = call(t, r, http.MethodPost, "/login", "", map[string]string{"email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = call(t, r, http.MethodGet, "/me", token(t, "clerk", "r-clerk"), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(env.Data), "Invoice.view")
}

func TestListUsersPaginates(t *testing.T) {
	r := newTestRouter(&stubRoles{}, &stubPerms{})
	w, env := call(t, r, http.MethodGet, "/api/users?page=1&limit=5", token(t, "admin", ""), nil)
	require.Equal(t, http.StatusOK, w.Code)

	var page pagination.Result[service.UserResponse]
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.EqualValues(t, 1, page.Total)
	assert.Equal(t, 5, page.Limit)
	assert.Equal(t, "ops", page.Items[0].Username)
}
