// Package client is a typed HTTP client for the devmux daemon API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/ternlight/devmux/internal/logbus"
	"github.com/ternlight/devmux/internal/store"
	"github.com/ternlight/devmux/internal/supervisor"
)

// Client communicates with a running devmux daemon.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// Config holds client configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Logger  *slog.Logger
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://localhost:8080/api",
		Timeout: 10 * time.Second,
	}
}

// New creates a new daemon API client.
func New(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:8080/api"
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Client{
		baseURL: config.BaseURL,
		logger:  config.Logger,
		client:  &http.Client{Timeout: config.Timeout},
	}
}

// IsReachable reports whether the daemon answers on the configured base URL.
func (c *Client) IsReachable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/projects", nil)
	if err != nil {
		return false
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("daemon unreachable", "error", err)
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK
}

// Start starts a registered process.
func (c *Client) Start(ctx context.Context, project, name string) error {
	return c.do(ctx, http.MethodPost, c.procURL("/start", project, name), nil, nil)
}

// Stop gracefully stops a running process.
func (c *Client) Stop(ctx context.Context, project, name string) error {
	return c.do(ctx, http.MethodPost, c.procURL("/stop", project, name), nil, nil)
}

// SendInput writes data to a running process's stdin.
func (c *Client) SendInput(ctx context.Context, project, name, data string) error {
	body := map[string]string{"data": data}
	return c.do(ctx, http.MethodPost, c.procURL("/input", project, name), body, nil)
}

// Status fetches the snapshot of one process.
func (c *Client) Status(ctx context.Context, project, name string) (supervisor.ProcessStatus, error) {
	var st supervisor.ProcessStatus
	err := c.do(ctx, http.MethodGet, c.procURL("/status", project, name), nil, &st)
	return st, err
}

// Statuses lists all processes of one project.
func (c *Client) Statuses(ctx context.Context, project string) ([]supervisor.ProcessStatus, error) {
	var sts []supervisor.ProcessStatus
	err := c.do(ctx, http.MethodGet, c.projectURL("/statuses", project), nil, &sts)
	return sts, err
}

// AddProject registers a project directory with the daemon.
func (c *Client) AddProject(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodPost, c.baseURL+"/projects", map[string]string{"path": path}, nil)
}

// RemoveProject stops a project's processes and drops it from the registry.
func (c *Client) RemoveProject(ctx context.Context, path string) error {
	u := c.baseURL + "/projects?path=" + url.QueryEscape(path)
	return c.do(ctx, http.MethodDelete, u, nil, nil)
}

// ListProjects returns the registered projects.
func (c *Client) ListProjects(ctx context.Context) ([]store.Project, error) {
	var list []store.Project
	err := c.do(ctx, http.MethodGet, c.baseURL+"/projects", nil, &list)
	return list, err
}

// ProjectConfig is the raw config file of a project.
type ProjectConfig struct {
	Path     string `json:"path"`
	Contents string `json:"contents"`
}

// GetConfig fetches the raw devmux.yml of a project.
func (c *Client) GetConfig(ctx context.Context, project string) (ProjectConfig, error) {
	var cfg ProjectConfig
	err := c.do(ctx, http.MethodGet, c.projectURL("/config", project), nil, &cfg)
	return cfg, err
}

// PutConfig replaces the project config and re-applies it.
func (c *Client) PutConfig(ctx context.Context, project, contents string) error {
	body := map[string]string{"contents": contents}
	return c.do(ctx, http.MethodPut, c.projectURL("/config", project), body, nil)
}

// TailLogs returns the retained recent log lines of one process.
func (c *Client) TailLogs(ctx context.Context, project, name string) ([]logbus.Record, error) {
	var recs []logbus.Record
	err := c.do(ctx, http.MethodGet, c.procURL("/logs/tail", project, name), nil, &recs)
	return recs, err
}

// ClearLogs drops the retained log lines of one process.
func (c *Client) ClearLogs(ctx context.Context, project, name string) error {
	return c.do(ctx, http.MethodDelete, c.procURL("/logs", project, name), nil, nil)
}

// StreamLogs follows the live log stream of a project (all processes when
// name is empty), invoking fn per record until the context is canceled, the
// stream ends, or fn returns false.
func (c *Client) StreamLogs(ctx context.Context, project, name string, fn func(logbus.Record) bool) error {
	u := c.projectURL("/logs", project)
	if name != "" {
		u += "&name=" + url.QueryEscape(name)
	}
	return streamSSE(ctx, c.client, u, fn)
}

// StreamEvents follows the daemon-wide state transition feed.
func (c *Client) StreamEvents(ctx context.Context, fn func(supervisor.StatusEvent) bool) error {
	return streamSSE(ctx, c.client, c.baseURL+"/events", fn)
}

func (c *Client) procURL(path, project, name string) string {
	return fmt.Sprintf("%s%s?project=%s&name=%s",
		c.baseURL, path, url.QueryEscape(project), url.QueryEscape(name))
}

func (c *Client) projectURL(path, project string) string {
	return fmt.Sprintf("%s%s?project=%s", c.baseURL, path, url.QueryEscape(project))
}

// do performs a JSON request; out (when non-nil) receives the decoded body.
func (c *Client) do(ctx context.Context, method, u string, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, u, &buf)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		var er struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&er); err != nil || er.Error == "" {
			return fmt.Errorf("HTTP %d", resp.StatusCode)
		}
		return fmt.Errorf("daemon: %s", er.Error)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
