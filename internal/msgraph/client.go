// Package msgraph is a minimal Microsoft Graph client covering the calls the
// checker needs: the signed-in user's profile, mail folder unread counts,
// unread message listings and the upcoming calendar view.
package msgraph

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// DefaultBaseURL is the Microsoft Graph v1.0 endpoint.
const DefaultBaseURL = "https://graph.microsoft.com/v1.0"

const userAgent = "OWA Checker"

// Client issues authenticated requests against Microsoft Graph.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *RateLimiter

	// anchorMailbox is sent as X-AnchorMailbox to route requests to the
	// right mailbox server. Empty until the user's address is known.
	anchorMailbox string
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the Graph endpoint, used by tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a Graph client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    NewRateLimiter(DefaultRateLimit),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetAnchorMailbox records the user's address for the X-AnchorMailbox header.
func (c *Client) SetAnchorMailbox(addr string) {
	c.anchorMailbox = addr
}

// getJSON performs a rate-limited GET against the given URL and decodes the
// JSON response into out. The URL may be absolute (@odata.nextLink) or a
// path relative to the Graph endpoint.
func (c *Client) getJSON(ctx context.Context, token, rawURL string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	u := rawURL
	if len(u) > 0 && u[0] == '/' {
		u = c.baseURL + u
	}
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if c.anchorMailbox != "" {
		req.Header.Set("X-AnchorMailbox", c.anchorMailbox)
	}
	// Correlate requests and responses in case of problems.
	req.Header.Set("client-request-id", uuid.NewString())
	req.Header.Set("return-client-request-id", "true")
	req.Header.Set("Prefer", `outlook.timezone="UTC"`)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("graph request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter, _ := strconv.Atoi(resp.Header.Get("Retry-After"))
		c.limiter.RecordRateLimitError(retryAfter)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("graph request failed: status %d: %s: %w",
			resp.StatusCode, body, WrapError(resp.StatusCode))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
