// Package remote talks to the project-tracking gateway API.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/jordanlewiz/atlas-xray-sub001/internal/config"
)

// ErrNoWorkspace indicates the client has no workspace context. This is a
// systemic precondition failure: the calling stage must abort, not skip.
var ErrNoWorkspace = errors.New("no workspace configured")

// Client fetches project summaries and update streams from the remote
// system of record.
type Client interface {
	FetchProjectSummary(ctx context.Context, projectID string) (*SummaryPayload, error)
	FetchProjectUpdates(ctx context.Context, projectID string) ([]UpdatePayload, error)
}

// HTTPClient is the gateway-API implementation of Client.
type HTTPClient struct {
	baseURL     string
	workspaceID string
	token       string
	client      *http.Client
}

// NewHTTPClient creates a client from remote config.
func NewHTTPClient(cfg config.Remote) *HTTPClient {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		baseURL:     cfg.BaseURL,
		workspaceID: cfg.WorkspaceID,
		token:       os.Getenv(cfg.APITokenEnv),
		client:      &http.Client{Timeout: timeout},
	}
}

// FetchProjectSummary fetches a single project's summary.
func (c *HTTPClient) FetchProjectSummary(ctx context.Context, projectID string) (*SummaryPayload, error) {
	if c.workspaceID == "" {
		return nil, ErrNoWorkspace
	}

	var raw rawSummary
	url := fmt.Sprintf("%s/workspaces/%s/projects/%s", c.baseURL, c.workspaceID, projectID)
	if err := c.getJSON(ctx, url, &raw); err != nil {
		return nil, err
	}
	return parseSummary(&raw)
}

// FetchProjectUpdates fetches the full update stream for a project.
func (c *HTTPClient) FetchProjectUpdates(ctx context.Context, projectID string) ([]UpdatePayload, error) {
	if c.workspaceID == "" {
		return nil, ErrNoWorkspace
	}

	var raw struct {
		Updates []rawUpdate `json:"updates"`
	}
	url := fmt.Sprintf("%s/workspaces/%s/projects/%s/updates", c.baseURL, c.workspaceID, projectID)
	if err := c.getJSON(ctx, url, &raw); err != nil {
		return nil, err
	}

	payloads := make([]UpdatePayload, 0, len(raw.Updates))
	for i := range raw.Updates {
		p, err := parseUpdate(projectID, &raw.Updates[i])
		if err != nil {
			return nil, err
		}
		payloads = append(payloads, *p)
	}
	return payloads, nil
}

func (c *HTTPClient) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("gateway returned %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding gateway response: %w", err)
	}
	return nil
}
