// Package client is an HTTP client for the silencegate API.
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

	"github.com/TimurManjosov/silencegate/internal/capability"
	"github.com/TimurManjosov/silencegate/internal/syncctl"
	"github.com/TimurManjosov/silencegate/internal/threshold"
	"github.com/TimurManjosov/silencegate/internal/view"
)

// Client is an HTTP client for the silencegate API
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new API client
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// APIError is a non-2xx response.
type APIError struct {
	Status    int               `json:"-"`
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	RequestID string            `json:"request_id,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("API error (status %d", e.Status)
	if e.Code != "" {
		msg += ", " + e.Code
	}
	msg += "): " + e.Message
	for field, m := range e.Fields {
		msg += fmt.Sprintf("; %s: %s", field, m)
	}
	return msg
}

// FeatureResult is the outcome of a toggle request. Accepted is set when a
// grant prompt was opened instead of committing.
type FeatureResult struct {
	syncctl.FeatureState
	ETag     string `json:"etag"`
	Accepted bool   `json:"-"`
}

type SelectionResult struct {
	Domain    string   `json:"domain"`
	Selection uint32   `json:"selection"`
	Selected  []string `json:"selected"`
	ETag      string   `json:"etag"`
}

type ThresholdResult struct {
	threshold.Config
	Description string `json:"description"`
	ETag        string `json:"etag"`
}

type Prompts struct {
	Pending []capability.Request `json:"pending"`
	Prompts []capability.Prompt  `json:"prompts"`
}

type Capabilities struct {
	Known    []capability.ID `json:"known"`
	Granted  []capability.ID `json:"granted"`
	RoleHeld bool            `json:"role_held"`
}

// State fetches the published snapshot.
func (c *Client) State(ctx context.Context) (*view.Snapshot, error) {
	var snap view.Snapshot
	if _, err := c.do(ctx, http.MethodGet, "/v1/state", nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// SetFeature requests a toggle change.
func (c *Client) SetFeature(ctx context.Context, feature string, enabled bool) (*FeatureResult, error) {
	var res FeatureResult
	status, err := c.do(ctx, http.MethodPost, "/v1/features/"+url.PathEscape(feature), map[string]bool{"enabled": enabled}, &res)
	if err != nil {
		return nil, err
	}
	res.Accepted = status == http.StatusAccepted
	return &res, nil
}

// SetSelection replaces a flag-set selection by flag names.
func (c *Client) SetSelection(ctx context.Context, domain string, flags []string) (*SelectionResult, error) {
	if flags == nil {
		flags = []string{}
	}
	var res SelectionResult
	if _, err := c.do(ctx, http.MethodPut, "/v1/domains/"+url.PathEscape(domain), map[string][]string{"flags": flags}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// SetSelectionValue replaces a flag-set selection by its integer value.
func (c *Client) SetSelectionValue(ctx context.Context, domain string, selection uint32) (*SelectionResult, error) {
	var res SelectionResult
	if _, err := c.do(ctx, http.MethodPut, "/v1/domains/"+url.PathEscape(domain), map[string]uint32{"selection": selection}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// SetThreshold commits both threshold fields.
func (c *Client) SetThreshold(ctx context.Context, count, minutes int) (*ThresholdResult, error) {
	var res ThresholdResult
	if _, err := c.do(ctx, http.MethodPut, "/v1/threshold", map[string]int{"count": count, "minutes": minutes}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Prompts lists in-flight grant requests and open platform prompts.
func (c *Client) Prompts(ctx context.Context) (*Prompts, error) {
	var res Prompts
	if _, err := c.do(ctx, http.MethodGet, "/v1/prompts", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Answer answers an open prompt.
func (c *Client) Answer(ctx context.Context, id string, granted bool) (*syncctl.Status, error) {
	var st syncctl.Status
	if _, err := c.do(ctx, http.MethodPost, "/v1/prompts/"+url.PathEscape(id), map[string]bool{"granted": granted}, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Capabilities lists what the platform currently grants.
func (c *Client) Capabilities(ctx context.Context) (*Capabilities, error) {
	var res Capabilities
	if _, err := c.do(ctx, http.MethodGet, "/v1/capabilities", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Grant grants a capability outside of any prompt.
func (c *Client) Grant(ctx context.Context, id string) (*syncctl.Status, error) {
	return c.status(ctx, "/v1/capabilities/"+url.PathEscape(id)+"/grant")
}

// Revoke withdraws a capability.
func (c *Client) Revoke(ctx context.Context, id string) (*syncctl.Status, error) {
	return c.status(ctx, "/v1/capabilities/"+url.PathEscape(id)+"/revoke")
}

// Activate starts observing preference changes.
func (c *Client) Activate(ctx context.Context) (*syncctl.Status, error) {
	return c.status(ctx, "/v1/lifecycle/activate")
}

// Deactivate stops observing preference changes.
func (c *Client) Deactivate(ctx context.Context) (*syncctl.Status, error) {
	return c.status(ctx, "/v1/lifecycle/deactivate")
}

func (c *Client) status(ctx context.Context, path string) (*syncctl.Status, error) {
	var st syncctl.Status
	if _, err := c.do(ctx, http.MethodPost, path, nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) (int, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{Status: resp.StatusCode}
		if json.Unmarshal(bodyBytes, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(bodyBytes))
		}
		return resp.StatusCode, apiErr
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}
