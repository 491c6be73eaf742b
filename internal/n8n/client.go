package n8n

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

	"agendacerto/pkg/config"
	"agendacerto/prometheus"
)

// Workflow is the subset of an n8n workflow the provisioner works with.
// Nodes and connections are kept as raw JSON because the provisioner only
// rewrites placeholders inside them, never interprets their structure.
type Workflow struct {
	ID          string          `json:"id,omitempty"`
	Name        string          `json:"name"`
	Active      bool            `json:"active,omitempty"`
	Nodes       json.RawMessage `json:"nodes,omitempty"`
	Connections json.RawMessage `json:"connections,omitempty"`
	Settings    map[string]any  `json:"settings,omitempty"`
}

type workflowList struct {
	Data       []Workflow `json:"data"`
	NextCursor string     `json:"nextCursor"`
}

// APIError carries the status code of a failed n8n API call
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("n8n: api returned %d: %s", e.StatusCode, e.Body)
}

// IsNotFound reports whether err is an n8n 404
func IsNotFound(err error) bool {
	apiErr, ok := err.(*APIError)
	return ok && apiErr.StatusCode == http.StatusNotFound
}

// Client talks to the n8n public REST API
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates an n8n API client from configuration
func NewClient(cfg *config.N8NConfig) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// NewClientWith builds a client against an explicit base URL, used by tests
func NewClientWith(baseURL, apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey, httpClient: httpClient}
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	defer prometheus.TrackUpstream("n8n")(time.Now())

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("n8n: encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("X-N8N-API-KEY", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("n8n: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("n8n: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("n8n: decode response: %w", err)
		}
	}
	return nil
}

// ListWorkflows returns every workflow on the instance, following cursors
func (c *Client) ListWorkflows(ctx context.Context) ([]Workflow, error) {
	var all []Workflow
	cursor := ""
	for {
		path := "/api/v1/workflows?limit=100"
		if cursor != "" {
			path += "&cursor=" + url.QueryEscape(cursor)
		}
		var page workflowList
		if err := c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
			return nil, err
		}
		all = append(all, page.Data...)
		if page.NextCursor == "" {
			return all, nil
		}
		cursor = page.NextCursor
	}
}

// FindWorkflowByName returns the first workflow with exactly the given name,
// or nil when none exists
func (c *Client) FindWorkflowByName(ctx context.Context, name string) (*Workflow, error) {
	workflows, err := c.ListWorkflows(ctx)
	if err != nil {
		return nil, err
	}
	for i := range workflows {
		if workflows[i].Name == name {
			return &workflows[i], nil
		}
	}
	return nil, nil
}

// GetWorkflow fetches a single workflow by id
func (c *Client) GetWorkflow(ctx context.Context, id string) (*Workflow, error) {
	var wf Workflow
	if err := c.do(ctx, http.MethodGet, "/api/v1/workflows/"+url.PathEscape(id), nil, &wf); err != nil {
		return nil, err
	}
	return &wf, nil
}

// CreateWorkflow creates a new workflow and returns it with its assigned id
func (c *Client) CreateWorkflow(ctx context.Context, wf *Workflow) (*Workflow, error) {
	body := map[string]any{
		"name":        wf.Name,
		"nodes":       wf.Nodes,
		"connections": wf.Connections,
		"settings":    map[string]any{"executionOrder": "v1"},
	}
	var created Workflow
	if err := c.do(ctx, http.MethodPost, "/api/v1/workflows", body, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// ActivateWorkflow turns a workflow on
func (c *Client) ActivateWorkflow(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/api/v1/workflows/"+url.PathEscape(id)+"/activate", nil, nil)
}

// DeactivateWorkflow turns a workflow off
func (c *Client) DeactivateWorkflow(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/api/v1/workflows/"+url.PathEscape(id)+"/deactivate", nil, nil)
}

// DeleteWorkflow removes a workflow from the instance
func (c *Client) DeleteWorkflow(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/workflows/"+url.PathEscape(id), nil, nil)
}

// TriggerWebhook posts a payload to a production webhook on the instance
func (c *Client) TriggerWebhook(ctx context.Context, webhookID string, payload any) error {
	return c.do(ctx, http.MethodPost, "/webhook/"+url.PathEscape(webhookID), payload, nil)
}

// Ping verifies the API is reachable and the key is accepted
func (c *Client) Ping(ctx context.Context) error {
	var page workflowList
	return c.do(ctx, http.MethodGet, "/api/v1/workflows?limit=1", nil, &page)
}
