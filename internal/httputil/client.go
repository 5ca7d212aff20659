// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/pdiddy/litmine/pkg/types"
)

// maxBodyBytes bounds a single response body. Full PMC articles with
// supplementary tables stay well below this.
const maxBodyBytes = 32 << 20

// StatusError reports a non-2xx response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned HTTP %d", e.URL, e.StatusCode)
}

// Client wraps an http.Client with a shared token-bucket limiter and
// DoWithRetry. It is safe for concurrent use.
type Client struct {
	HTTP       *http.Client
	Limiter    *rate.Limiter
	UserAgent  string
	MaxRetries int
}

// NewClient builds a Client from cfg. A zero RequestsPerSecond disables
// rate limiting.
func NewClient(cfg types.HTTPConfig) *Client {
	c := &Client{
		HTTP:       &http.Client{Timeout: cfg.Timeout},
		UserAgent:  cfg.UserAgent,
		MaxRetries: cfg.MaxRetries,
	}
	if cfg.RequestsPerSecond > 0 {
		burst := max(int(cfg.RequestsPerSecond), 1)
		c.Limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return c
}

// Get fetches rawURL and returns the response body. Non-2xx responses are
// returned as *StatusError.
func (c *Client) Get(ctx context.Context, rawURL string) ([]byte, error) {
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := DoWithRetry(ctx, client, req, c.MaxRetries)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, &StatusError{URL: req.URL.Host + req.URL.Path, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}
	return body, nil
}
