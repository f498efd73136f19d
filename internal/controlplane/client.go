package controlplane

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/wagiedev/sandbox-sdk-go/internal/errors"
)

// maxErrorBody bounds how much of an error response is kept.
const maxErrorBody = 64 << 10

// SandboxInfo describes a sandbox as reported by the control plane.
//
//nolint:tagliatelle // control plane uses snake_case
type SandboxInfo struct {
	Name         string `json:"name"`
	TemplateName string `json:"template_name"`
	DataplaneURL string `json:"dataplane_url,omitempty"`
	ID           string `json:"id,omitempty"`
	CreatedAt    string `json:"created_at,omitempty"`
	UpdatedAt    string `json:"updated_at,omitempty"`
}

// Client looks up sandboxes on the control plane.
type Client struct {
	log       *slog.Logger
	http      *http.Client
	baseURL   string
	apiKey    string
	userAgent string
}

// New creates a control-plane client for endpoint.
func New(log *slog.Logger, httpClient *http.Client, endpoint, apiKey, userAgent string) *Client {
	return &Client{
		log:       log.With("component", "controlplane"),
		http:      httpClient,
		baseURL:   strings.TrimRight(endpoint, "/") + "/v2/sandboxes",
		apiKey:    apiKey,
		userAgent: userAgent,
	}
}

// GetSandbox fetches a sandbox by name.
func (c *Client) GetSandbox(ctx context.Context, name string) (*SandboxInfo, error) {
	var info SandboxInfo
	if err := c.getJSON(ctx, "/boxes/"+url.PathEscape(name), &info); err != nil {
		return nil, err
	}

	info.DataplaneURL = strings.TrimRight(info.DataplaneURL, "/")

	c.log.Debug("Fetched sandbox", "name", info.Name, "has_dataplane", info.DataplaneURL != "")

	return &info, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Api-Key", c.apiKey)

	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &errors.ConnectionError{Message: "control plane request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

		c.log.Debug("Control plane returned error", "path", path, "status", resp.StatusCode)

		return ParseHTTPError(resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &errors.OperationError{
			Operation: "decode",
			Message:   fmt.Sprintf("invalid control plane response: %v", err),
			Err:       err,
		}
	}

	return nil
}

// ParseHTTPError converts a non-success response into a typed error.
//
// A JSON body's "detail" or "message" string is used as the error message,
// falling back to the raw body. 401 and 403 map to AuthError, 404 to
// NotFoundError, and everything else to HTTPError.
func ParseHTTPError(status int, body []byte) error {
	msg := strings.TrimSpace(string(body))

	var payload map[string]any
	if json.Unmarshal(body, &payload) == nil {
		if detail, ok := payload["detail"].(string); ok {
			msg = detail
		} else if m, ok := payload["message"].(string); ok {
			msg = m
		}
	}

	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &errors.AuthError{Message: msg}
	case http.StatusNotFound:
		return &errors.NotFoundError{ResourceType: "resource", Name: msg}
	default:
		return &errors.HTTPError{StatusCode: status, Body: msg}
	}
}
