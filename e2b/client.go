// Package e2b is the client for the remote template-build API: submitting a
// build, polling its status, and listing templates. Authentication is a
// bearer access token on every request.
package e2b

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/awse2b/awse2b/logging"
)

// notifyMaxAttempts bounds transport-level retries when submitting a build.
// A flaky connection gets a second chance; an unreachable API does not get
// an unbounded one.
const notifyMaxAttempts = 3

// APIError reports a non-2xx response from the API.
type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s failed with HTTP %d: %s", e.Op, e.StatusCode, e.Body)
}

// Client talks to the e2b API for one invocation.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient builds a Client for the given domain. The token must already be
// Bearer-normalized.
func NewClient(domain, token string) *Client {
	return &Client{
		baseURL:    "https://api." + domain,
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// NewClientWithBaseURL builds a Client against an explicit base URL. Used by
// tests with httptest servers.
func NewClientWithBaseURL(baseURL, token string) *Client {
	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// BuildRequest is the submit-build payload: the pushed registry reference
// plus the resolved resource and command parameters.
type BuildRequest struct {
	RegistryRef string
	MemoryMB    int
	CPUCount    int
	StartCmd    string
	ReadyCmd    string
	Alias       string

	// TemplateID switches the call from "create a new template" to "update
	// the existing one" when non-empty.
	TemplateID string
}

// BuildHandle identifies a submitted build.
type BuildHandle struct {
	BuildID    string `json:"buildID"`
	TemplateID string `json:"templateID"`
}

type buildPayload struct {
	FromImage  string `json:"fromImage"`
	MemoryMB   int    `json:"memoryMb"`
	CPUCount   int    `json:"cpuCount"`
	StartCmd   string `json:"startCmd,omitempty"`
	ReadyCmd   string `json:"readyCmd,omitempty"`
	Alias      string `json:"alias,omitempty"`
	TemplateID string `json:"templateID,omitempty"`
}

// SubmitBuild notifies the API that the image is published and a build
// should run. Transport errors are retried up to notifyMaxAttempts; an HTTP
// error status is fatal immediately.
func (c *Client) SubmitBuild(ctx context.Context, req BuildRequest) (*BuildHandle, error) {
	endpoint := c.baseURL + "/templates"
	if req.TemplateID != "" {
		endpoint = c.baseURL + "/templates/" + url.PathEscape(req.TemplateID)
	}

	body, err := json.Marshal(buildPayload{
		FromImage:  req.RegistryRef,
		MemoryMB:   req.MemoryMB,
		CPUCount:   req.CPUCount,
		StartCmd:   req.StartCmd,
		ReadyCmd:   req.ReadyCmd,
		Alias:      req.Alias,
		TemplateID: req.TemplateID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode build request: %w", err)
	}

	logging.Info("Submitting template build: %s", endpoint)

	var handle *BuildHandle
	attempt := 0
	operation := func() error {
		attempt++
		h, err := c.postBuild(ctx, endpoint, body)
		if err != nil {
			if _, fatal := err.(*APIError); fatal {
				return backoff.Permanent(err)
			}
			logging.Warn("Build submission attempt %d failed: %v", attempt, err)
			return err
		}
		handle = h
		return nil
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), notifyMaxAttempts-1), ctx)
	if err := backoff.Retry(operation, bo); err != nil {
		return nil, err
	}
	return handle, nil
}

func (c *Client) postBuild(ctx context.Context, endpoint string, body []byte) (*BuildHandle, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", c.token)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{Op: "submit build", StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var handle BuildHandle
	if err := json.Unmarshal(respBody, &handle); err != nil {
		return nil, fmt.Errorf("failed to decode build response: %w", err)
	}
	if handle.BuildID == "" {
		return nil, fmt.Errorf("build response carries no build identifier")
	}
	return &handle, nil
}

type statusResponse struct {
	Status  string `json:"status"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// GetBuildStatus fetches the current status of a build.
func (c *Client) GetBuildStatus(ctx context.Context, templateID, buildID string) (BuildStatus, error) {
	endpoint := fmt.Sprintf("%s/templates/%s/builds/%s/status",
		c.baseURL, url.PathEscape(templateID), url.PathEscape(buildID))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return BuildStatus{}, err
	}
	httpReq.Header.Set("Authorization", c.token)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return BuildStatus{}, err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return BuildStatus{}, &APIError{Op: "get build status", StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var sr statusResponse
	if err := json.Unmarshal(respBody, &sr); err != nil {
		return BuildStatus{}, fmt.Errorf("failed to decode status response: %w", err)
	}

	reason := sr.Reason
	if reason == "" {
		reason = sr.Message
	}
	return parseStatus(sr.Status, reason)
}

// Template describes one template owned by the caller.
type Template struct {
	TemplateID string   `json:"templateID"`
	Aliases    []string `json:"aliases"`
	CPUCount   int      `json:"cpuCount"`
	MemoryMB   int      `json:"memoryMB"`
	Public     bool     `json:"public"`
}

// ListTemplates fetches the caller's templates, optionally scoped to a team.
func (c *Client) ListTemplates(ctx context.Context, teamID string) ([]Template, error) {
	endpoint := c.baseURL + "/templates"
	if teamID != "" {
		endpoint += "?teamID=" + url.QueryEscape(teamID)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", c.token)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{Op: "list templates", StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var templates []Template
	if err := json.Unmarshal(respBody, &templates); err != nil {
		return nil, fmt.Errorf("failed to decode template list: %w", err)
	}
	return templates, nil
}
