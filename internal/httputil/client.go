// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Client wraps an http.Client with a per-API rate limiter and 429 retry.
type Client struct {
	HTTP      *http.Client
	Limiter   *rate.Limiter
	UserAgent string

	// MaxRetries is passed to DoWithRetry; 0 selects the default.
	MaxRetries int
}

// NewClient returns a Client that allows one request per interval with a
// burst of one. A zero interval disables rate limiting.
func NewClient(timeout time.Duration, userAgent string, interval time.Duration) *Client {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Client{
		HTTP:      &http.Client{Timeout: timeout},
		Limiter:   rate.NewLimiter(limit, 1),
		UserAgent: userAgent,
	}
}

// Get waits for the limiter, then issues a GET with retry. The caller owns
// the response body.
func (c *Client) Get(ctx context.Context, url string, headers map[string]string) (*http.Response, error) {
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	return DoWithRetry(ctx, hc, req, c.MaxRetries)
}

// GetJSON issues a GET and decodes a 200 response body into v. Any other
// status is an error naming api.
func (c *Client) GetJSON(ctx context.Context, api, url string, headers map[string]string, v any) error {
	resp, err := c.Get(ctx, url, headers)
	if err != nil {
		return fmt.Errorf("%s API request: %w", api, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return &StatusError{API: api, Code: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("parsing %s response: %w", api, err)
	}
	return nil
}

// StatusError reports a non-200 response.
type StatusError struct {
	API  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s API returned HTTP %d", e.API, e.Code)
}
