// Package client is the authenticated REST client the console uses to reach
// the roles, modules and permissions endpoints of the backend.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"console/internal/permission"
	"console/pkg/response"

	"golang.org/x/oauth2"
)

const defaultTimeout = 30 * time.Second

// Role is a named permission holder.
type Role struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Module is a functional area permissions apply to.
type Module struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// APIError is returned for any non-2xx response.
type APIError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s (status %d)", e.Op, e.Message, e.StatusCode)
}

type Client struct {
	baseURL string
	http    *http.Client
	token   string
	timeout time.Duration
}

type Option func(*Client)

// WithToken authenticates every request with a bearer token.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: c.timeout}
	}
	if c.token != "" {
		base := c.http
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
		authed := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: c.token}))
		authed.Timeout = base.Timeout
		c.http = authed
	}
	return c
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var out tokenResponse
	if err := c.do(ctx, "login", http.MethodPost, "/login", loginRequest{Email: email, Password: password}, &out); err != nil {
		return "", err
	}
	return out.Token, nil
}

func (c *Client) ListModules(ctx context.Context) ([]Module, error) {
	var out []Module
	if err := c.do(ctx, "list modules", http.MethodGet, "/api/modules", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListRoles(ctx context.Context) ([]Role, error) {
	var out []Role
	if err := c.do(ctx, "list roles", http.MethodGet, "/api/roles", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type roleNameRequest struct {
	Name string `json:"name"`
}

func (c *Client) CreateRole(ctx context.Context, name string) (Role, error) {
	var out Role
	err := c.do(ctx, "create role", http.MethodPost, "/api/roles", roleNameRequest{Name: name}, &out)
	return out, err
}

func (c *Client) RenameRole(ctx context.Context, id, name string) (Role, error) {
	var out Role
	err := c.do(ctx, "rename role", http.MethodPost, "/api/roles/"+url.PathEscape(id), roleNameRequest{Name: name}, &out)
	return out, err
}

func (c *Client) DeleteRole(ctx context.Context, id string) error {
	return c.do(ctx, "delete role", http.MethodDelete, "/api/roles/"+url.PathEscape(id), nil, nil)
}

// RolePermissions returns the sparse grant list of a role.
func (c *Client) RolePermissions(ctx context.Context, roleID string) ([]permission.Grant, error) {
	var out []permission.Grant
	path := "/api/roles/" + url.PathEscape(roleID) + "/permissions"
	if err := c.do(ctx, "get permissions", http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

type updatePermissionsRequest struct {
	Permissions []permission.Record `json:"permissions"`
}

// UpdateRolePermissions replaces every permission of a role with records.
func (c *Client) UpdateRolePermissions(ctx context.Context, roleID string, records []permission.Record) error {
	path := "/api/roles/" + url.PathEscape(roleID) + "/permissions"
	return c.do(ctx, "update permissions", http.MethodPost, path, updatePermissionsRequest{Permissions: records}, nil)
}

func (c *Client) do(ctx context.Context, op, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encoding request: %w", op, err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: reading response: %w", op, err)
	}

	var env response.Envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := http.StatusText(resp.StatusCode)
		if decodeErr == nil && env.Error != "" {
			msg = env.Error
		}
		return &APIError{Op: op, StatusCode: resp.StatusCode, Message: msg}
	}

	if out == nil {
		return nil
	}
	if decodeErr != nil {
		return fmt.Errorf("%s: decoding response: %w", op, decodeErr)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%s: decoding data: %w", op, err)
	}
	return nil
}
