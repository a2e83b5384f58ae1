// Package chaos calls the simulation-control API to inject or clear
// simulated bank failures. Calls are fire and forget from the dashboard's
// perspective: callers log failures and never retry.
package chaos

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// validBanks mirrors the backend's accepted chaos targets so an obvious
// typo fails locally instead of with a round trip.
var validBanks = map[string]bool{
	"HDFC": true, "ICICI": true, "SBI": true, "Axis": true,
	"Kotak": true, "Yes Bank": true, "PNB": true, "BOB": true,
}

// Client talks to the simulation-control API.
type Client struct {
	baseURL string
	httpc   *http.Client
}

// New creates a chaos client for the given control API base URL.
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: 10 * time.Second},
	}
}

// NewWithHTTPClient creates a chaos client with a caller-supplied
// http.Client.
func NewWithHTTPClient(baseURL string, httpc *http.Client) *Client {
	return &Client{baseURL: baseURL, httpc: httpc}
}

type injectRequest struct {
	FailureRate float64 `json:"failure_rate"`
}

// Inject triggers a simulated fault against the named bank.
func (c *Client) Inject(ctx context.Context, bank string, failureRate float64) error {
	if !validBanks[bank] {
		return fmt.Errorf("unknown chaos target %q", bank)
	}
	if failureRate < 0 || failureRate > 1 {
		return fmt.Errorf("failure rate must be in [0,1], got %v", failureRate)
	}
	return c.post(ctx, "/chaos/"+bank, injectRequest{FailureRate: failureRate})
}

// Reset clears all active chaos injection.
func (c *Client) Reset(ctx context.Context) error {
	return c.post(ctx, "/chaos/reset", nil)
}

func (c *Client) post(ctx context.Context, path string, body any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("post %s: unexpected status %d", path, resp.StatusCode)
	}
	return nil
}
