package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"console/internal/permission"
	"console/pkg/response"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSON(t *testing.T, w http.ResponseWriter, status int, body interface{}) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(body))
}

func TestClientSendsBearerToken(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		writeJSON(t, w, http.StatusOK, response.Success(http.StatusOK, []Role{{ID: "r1", Name: "Manager"}}))
	}))
	defer server.Close()

	c := New(server.URL, WithToken("tok-123"))
	roles, err := c.ListRoles(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "Bearer tok-123", gotAuth)
	assert.Equal(t, []Role{{ID: "r1", Name: "Manager"}}, roles)
}

func TestClientRolePermissions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/roles/r1/permissions", r.URL.Path)
		writeJSON(t, w, http.StatusOK, response.Success(http.StatusOK, []permission.Grant{
			{Module: "Invoice", Permissions: []string{"view"}},
		}))
	}))
	defer server.Close()

	grants, err := New(server.URL).RolePermissions(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, []permission.Grant{{Module: "Invoice", Permissions: []string{"view"}}}, grants)
}

func TestClientUpdateRolePermissionsKeepsSentinel(t *testing.T) {
	var body map[string][]map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/roles/r1/permissions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		writeJSON(t, w, http.StatusOK, response.Success(http.StatusOK, nil))
	}))
	defer server.Close()

	err := New(server.URL).UpdateRolePermissions(context.Background(), "r1", []permission.Record{
		{ModuleID: "m1", PermissionNames: []string{""}},
	})
	require.NoError(t, err)

	require.Len(t, body["permissions"], 1)
	assert.Equal(t, "m1", body["permissions"][0]["module_id"])
	assert.Equal(t, []interface{}{""}, body["permissions"][0]["permission_names"])
}

func TestClientAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusBadRequest, response.Error(http.StatusBadRequest, "unknown module id"))
	}))
	defer server.Close()

	err := New(server.URL).DeleteRole(context.Background(), "r1")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "unknown module id", apiErr.Message)
	assert.Equal(t, "delete role", apiErr.Op)
}

func TestClientAPIErrorWithoutEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := New(server.URL).ListModules(context.Background())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusText(http.StatusBadGateway), apiErr.Message)
}

func TestClientLoginAndRename(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/login":
			var req loginRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "admin@example.com", req.Email)
			writeJSON(t, w, http.StatusOK, response.Success(http.StatusOK, tokenResponse{Token: "jwt"}))
		case "/api/roles/r1":
			assert.Equal(t, http.MethodPost, r.Method)
			var req roleNameRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			writeJSON(t, w, http.StatusOK, response.Success(http.StatusOK, Role{ID: "r1", Name: req.Name}))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	c := New(server.URL)
	token, err := c.Login(context.Background(), "admin@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "jwt", token)

	role, err := c.RenameRole(context.Background(), "r1", "Supervisor")
	require.NoError(t, err)
	assert.Equal(t, Role{ID: "r1", Name: "Supervisor"}, role)
}
