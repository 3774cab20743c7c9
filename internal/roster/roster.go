// Package roster provides the HTTP client for the external participant
// roster, the spreadsheet-backed system of record for the experiment.
//
// Lookups are blocking GETs with a bounded timeout; mutations are
// fire-and-forget POSTs. The roster offers no acknowledgement contract for
// writes, so callers treat any failure as a silent no-op and never retry.
package roster

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/chiayulab/linebridge/internal/models"
)

// DefaultTimeout bounds every roster call.
const DefaultTimeout = 10 * time.Second

// lookupResponse is the roster's JSON reply to a GET lookup.
type lookupResponse struct {
	Found bool `json:"found"`
	models.Participant
}

// Client talks to the roster service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a roster client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
}

// NewClientWithHTTPClient creates a roster client with a custom HTTP client.
// Intended for tests.
func NewClientWithHTTPClient(baseURL string, httpClient *http.Client) *Client {
	return &Client{baseURL: baseURL, httpClient: httpClient}
}

// FindByCode looks up a roster record by one-time verification code.
// Returns (nil, nil) when the roster reports no match.
func (c *Client) FindByCode(ctx context.Context, code string) (*models.Participant, error) {
	return c.find(ctx, url.Values{"code": {code}})
}

// FindByUserID looks up a roster record by bound platform user identifier.
// Returns (nil, nil) when the roster reports no match.
func (c *Client) FindByUserID(ctx context.Context, userID string) (*models.Participant, error) {
	return c.find(ctx, url.Values{"user_id": {userID}})
}

func (c *Client) find(ctx context.Context, query url.Values) (*models.Participant, error) {
	reqURL := c.baseURL + "?" + query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build roster lookup request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.Warn("roster.find: lookup request failed", "error", err)
		return nil, fmt.Errorf("roster lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Warn("roster.find: lookup returned non-success status", "status", resp.StatusCode)
		return nil, fmt.Errorf("roster lookup returned status %d", resp.StatusCode)
	}

	var lr lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		slog.Warn("roster.find: failed to decode lookup response", "error", err)
		return nil, fmt.Errorf("failed to decode roster response: %w", err)
	}

	if !lr.Found {
		slog.Debug("roster.find: no record found")
		return nil, nil
	}

	p := lr.Participant
	slog.Debug("roster.find: record found", "group", p.Group, "day", p.Day, "d14_triggered", p.D14Triggered)
	return &p, nil
}

// Apply sends a fire-and-forget mutation to the roster. The operation is
// distinguished by which patch fields are present. Failures are logged and
// returned but callers are expected to treat them as silent no-ops.
func (c *Client) Apply(ctx context.Context, patch models.RosterPatch) error {
	body, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("failed to marshal roster patch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build roster patch request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.Warn("roster.Apply: patch request failed", "error", err, "user_id", patch.UserID)
		return fmt.Errorf("roster patch failed: %w", err)
	}
	defer resp.Body.Close()
	// The roster's reply body carries no contract; drain it so the
	// connection can be reused.
	io.Copy(io.Discard, resp.Body) //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Warn("roster.Apply: patch returned non-success status", "status", resp.StatusCode, "user_id", patch.UserID)
		return fmt.Errorf("roster patch returned status %d", resp.StatusCode)
	}

	slog.Debug("roster.Apply: patch accepted", "user_id", patch.UserID, "bind", patch.Code != "", "unbind", patch.ClearUserID, "d14", patch.D14Trigger)
	return nil
}
