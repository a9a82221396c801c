// Package client is a Go client for the projectdesk HTTP API, including the
// websocket watches. The terminal dashboard is built on it.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/projectdesk/projectdesk/internal/dashboard"
	"github.com/projectdesk/projectdesk/internal/handler/dto"
	"github.com/projectdesk/projectdesk/internal/model"
)

const defaultTimeout = 10 * time.Second

// APIError is a non-2xx response from the API.
type APIError struct {
	StatusCode int
	Message    string
	Missing    []string
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("api error %d: %s (missing: %s)", e.StatusCode, e.Message, strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// IsStatus reports whether err is an APIError with the given status code.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

// Client talks to one projectdesk server. It holds the session token and
// replaces it after login and role switches. Safe for concurrent use.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	dialer  *websocket.Dialer

	mu    sync.RWMutex
	token string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithToken starts the client with an existing session token.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// New creates a Client for the server at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	c := &Client{
		baseURL: u,
		http:    &http.Client{Timeout: defaultTimeout},
		dialer:  &websocket.Dialer{HandshakeTimeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Token returns the current session token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) setToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// ============================================================================
// Users
// ============================================================================

// Signup registers a new user. It does not log in.
func (c *Client) Signup(ctx context.Context, username, email, password string) (*model.User, error) {
	var resp dto.SignupResponse
	err := c.do(ctx, http.MethodPost, "/api/users/signup", nil, dto.SignupRequest{
		Username: username,
		Email:    email,
		Password: password,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.SavedUser, nil
}

// Login authenticates and keeps the returned token for later calls.
func (c *Client) Login(ctx context.Context, email, password string) error {
	var resp dto.LoginResponse
	if err := c.do(ctx, http.MethodPost, "/api/users/login", nil, dto.LoginRequest{
		Email:    email,
		Password: password,
	}, &resp); err != nil {
		return err
	}
	c.setToken(resp.Token)
	return nil
}

// Logout revokes the session token and forgets it.
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodGet, "/api/users/logout", nil, nil, nil)
	c.setToken("")
	return err
}

// Me returns the logged-in user.
func (c *Client) Me(ctx context.Context) (*model.User, error) {
	var resp dto.MeResponse
	if err := c.do(ctx, http.MethodGet, "/api/users/me", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// ============================================================================
// Projects
// ============================================================================

// ListOptions are the dashboard filter parameters. Zero values use the
// server defaults.
type ListOptions struct {
	Search string
	Status model.ProjectStatus
	// HidePast drops projects due before today.
	HidePast bool
	Date     *time.Time
}

func (o ListOptions) values() url.Values {
	q := url.Values{}
	if o.Search != "" {
		q.Set("search", o.Search)
	}
	if o.Status != "" {
		q.Set("status", string(o.Status))
	}
	if o.HidePast {
		q.Set("showPast", "false")
	}
	if o.Date != nil {
		q.Set("date", o.Date.Format(dto.DateLayout))
	}
	return q
}

// ListProjects returns the filtered dashboard view.
func (c *Client) ListProjects(ctx context.Context, opts ListOptions) (*dto.ProjectListResponse, error) {
	var resp dto.ProjectListResponse
	if err := c.do(ctx, http.MethodGet, "/api/projects", opts.values(), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateProject adds a project.
func (c *Client) CreateProject(ctx context.Context, req dto.CreateProjectRequest) (*model.Project, error) {
	var p model.Project
	if err := c.do(ctx, http.MethodPost, "/api/projects", nil, req, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateProject applies a partial update.
func (c *Client) UpdateProject(ctx context.Context, id string, req dto.UpdateProjectRequest) (*model.Project, error) {
	var p model.Project
	if err := c.do(ctx, http.MethodPatch, "/api/projects/"+url.PathEscape(id), nil, req, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateStatus changes only the project's status.
func (c *Client) UpdateStatus(ctx context.Context, id string, status model.ProjectStatus) (*model.Project, error) {
	var p model.Project
	path := "/api/projects/" + url.PathEscape(id) + "/status"
	if err := c.do(ctx, http.MethodPatch, path, nil, dto.StatusRequest{Status: string(status)}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// DeleteProject removes a project.
func (c *Client) DeleteProject(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/projects/"+url.PathEscape(id), nil, nil, nil)
}

// RaiseQuery flags a project for the manager.
func (c *Client) RaiseQuery(ctx context.Context, id, message string) (*model.ProjectQuery, error) {
	var q model.ProjectQuery
	path := "/api/projects/" + url.PathEscape(id) + "/queries"
	if err := c.do(ctx, http.MethodPost, path, nil, dto.QueryRequest{Message: message}, &q); err != nil {
		return nil, err
	}
	return &q, nil
}

// ListQueries returns recent queries, newest first. limit <= 0 uses the
// server default.
func (c *Client) ListQueries(ctx context.Context, limit int) ([]model.ProjectQuery, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var resp dto.QueryListResponse
	if err := c.do(ctx, http.MethodGet, "/api/queries", q, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// ============================================================================
// Manager password and role
// ============================================================================

// ManagerPasswordStatus reports whether a manager password is configured.
func (c *Client) ManagerPasswordStatus(ctx context.Context) (model.ManagerPasswordStatus, error) {
	var status model.ManagerPasswordStatus
	err := c.do(ctx, http.MethodGet, "/api/settings/manager-password", nil, nil, &status)
	return status, err
}

// SetManagerPassword replaces the manager password.
func (c *Client) SetManagerPassword(ctx context.Context, password string) error {
	return c.do(ctx, http.MethodPut, "/api/settings/manager-password", nil, dto.ManagerPasswordRequest{Password: password}, nil)
}

// SwitchRole requests role and adopts the token that carries it.
func (c *Client) SwitchRole(ctx context.Context, role model.Role, password string) (*dto.RoleResponse, error) {
	var resp dto.RoleResponse
	if err := c.do(ctx, http.MethodPost, "/api/session/role", nil, dto.RoleRequest{Role: role, Password: password}, &resp); err != nil {
		return nil, err
	}
	if resp.Token != "" {
		c.setToken(resp.Token)
	}
	return &resp, nil
}

// PasswordConfigured implements dashboard.ManagerAuthority.
func (c *Client) PasswordConfigured(ctx context.Context) (bool, error) {
	status, err := c.ManagerPasswordStatus(ctx)
	if err != nil {
		return false, err
	}
	return status.Configured, nil
}

// Elevate implements dashboard.ManagerAuthority.
func (c *Client) Elevate(ctx context.Context, password string) (bool, error) {
	resp, err := c.SwitchRole(ctx, model.RoleManager, password)
	if err != nil {
		if IsStatus(err, http.StatusForbidden) {
			return false, dashboard.ErrIncorrectPassword
		}
		return false, err
	}
	return resp.SetupRequired, nil
}

var _ dashboard.ManagerAuthority = (*Client)(nil)

// ============================================================================
// Transport
// ============================================================================

func (c *Client) endpoint(scheme, path string, query url.Values) string {
	u := *c.baseURL
	if scheme != "" {
		u.Scheme = scheme
	}
	u.Path = strings.TrimRight(u.Path, "/") + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *Client) authHeader() http.Header {
	h := http.Header{}
	if token := c.Token(); token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint("", path, query), reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header = c.authHeader()
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeAPIError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}

	var body dto.ErrorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body); err == nil && body.Error != "" {
		apiErr.Message = body.Error
		apiErr.Missing = body.Missing
	}
	if s, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
		apiErr.RetryAfter = time.Duration(s) * time.Second
	}
	return apiErr
}
