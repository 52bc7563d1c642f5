// Package agentslack provides a client for the agentslack tool API.
package agentslack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"
)

// Client is an agentslack API client. Agent, when set, is sent as
// your_name on every tool call that does not name one.
type Client struct {
	BaseURL    string
	Agent      string
	AdminKey   string
	HTTPClient *http.Client
}

// NewClient creates a new client. Empty fields fall back to the
// AGENTSLACK_URL, AGENTSLACK_AGENT and AGENTSLACK_ADMIN_KEY variables.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("AGENTSLACK_URL")
	}
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return &Client{
		BaseURL:    baseURL,
		Agent:      os.Getenv("AGENTSLACK_AGENT"),
		AdminKey:   os.Getenv("AGENTSLACK_ADMIN_KEY"),
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// APIError is a non-2xx response.
type APIError struct {
	Status  int    `json:"-"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("agentslack %d %s: %s", e.Status, e.Kind, e.Message)
	}
	return fmt.Sprintf("agentslack %d: %s", e.Status, e.Message)
}

// IsKind reports whether err is an APIError of the given kind, such as
// "DmNotFound" or "PoolExhausted".
func IsKind(err error, kind string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == kind
}

// doRequest sends body as JSON and decodes the response into out.
func (c *Client) doRequest(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Agent != "" {
		req.Header.Set("X-Agent-Name", c.Agent)
	}
	if c.AdminKey != "" {
		req.Header.Set("X-Admin-Key", c.AdminKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode}
		if json.Unmarshal(respBody, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.Unmarshal(respBody, out)
}

// HealthResponse is the health check response.
type HealthResponse struct {
	Status  string                    `json:"status"`
	Version string                    `json:"version"`
	Checks  map[string]map[string]any `json:"checks"`
}

// Health checks server health.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.doRequest(ctx, http.MethodGet, "/health", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Param describes one tool parameter.
type Param struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Optional    bool   `json:"optional,omitempty"`
}

// Tool is a tool definition.
type Tool struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Parameters  []Param `json:"parameters"`
}

// ListTools returns every tool definition.
func (c *Client) ListTools(ctx context.Context) ([]Tool, error) {
	var resp struct {
		Tools []Tool `json:"tools"`
	}
	if err := c.doRequest(ctx, http.MethodGet, "/tools", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Tools, nil
}

// CallTool invokes a tool and decodes its result into out.
func (c *Client) CallTool(ctx context.Context, tool string, params map[string]any, out any) error {
	body := make(map[string]any, len(params)+1)
	for k, v := range params {
		body[k] = v
	}
	if _, ok := body["your_name"]; !ok && c.Agent != "" {
		body["your_name"] = c.Agent
	}
	resp := struct {
		Tool   string `json:"tool"`
		Result any    `json:"result"`
	}{Result: out}
	return c.doRequest(ctx, http.MethodPost, "/tools/"+url.PathEscape(tool), body, &resp)
}

// World is a registered world.
type World struct {
	Name       string    `json:"name"`
	StartEpoch string    `json:"start_epoch"`
	Channels   []Channel `json:"channels"`
}

// Agent is a registered agent.
type Agent struct {
	Name     string    `json:"name"`
	World    string    `json:"world"`
	UserID   string    `json:"user_id"`
	Channels []Channel `json:"channels"`
}

// RegisterWorld creates a world. Needs the admin key when the server
// enforces one.
func (c *Client) RegisterWorld(ctx context.Context, name string) (*World, error) {
	var resp World
	if err := c.doRequest(ctx, http.MethodPost, "/register_world", map[string]string{"world_name": name}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RegisterAgent binds an agent to a world.
func (c *Client) RegisterAgent(ctx context.Context, name, world string) (*Agent, error) {
	var resp Agent
	body := map[string]string{"agent_name": name, "world_name": world}
	if err := c.doRequest(ctx, http.MethodPost, "/register_agent", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
