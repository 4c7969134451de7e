package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mtlprog/kursy/internal/domain"
)

// maxBodySize bounds provider responses; the largest NBP table is well under this.
const maxBodySize = 8 << 20

// Client is the network request primitive shared by the rate and history fetchers.
// It performs exactly one attempt per call.
type Client struct {
	httpClient *http.Client
	userAgent  string
}

// NewClient creates a Client with the given per-request timeout.
func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		userAgent:  "kursy/1.0",
	}
}

// Get issues a GET and returns the response body.
// Failures wrap domain.ErrTransport (unreachable, timeout, truncated body) or
// domain.ErrProtocol (non-2xx status).
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", domain.ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: HTTP %d from %s: %s", domain.ErrProtocol, resp.StatusCode, url, truncate(body, 200))
	}
	return body, nil
}

// GetJSON performs a GET and unmarshals the JSON response into dest.
// Parse failures wrap domain.ErrPayload.
func (c *Client) GetJSON(ctx context.Context, url string, dest any) error {
	body, err := c.Get(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("%w: parsing JSON from %s: %v", domain.ErrPayload, url, err)
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "…"
}
