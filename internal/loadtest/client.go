package loadtest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// HTTPClient wraps http.Client with a timeout and an optional client side
// rate limit.
type HTTPClient struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

func newHTTPClient(cfg *Config) *HTTPClient {
	c := &HTTPClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		client:  &http.Client{Timeout: cfg.Timeout},
	}
	if cfg.RPS > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RPS), max(cfg.Workers, 1))
	}
	return c
}

// Response is a fully read HTTP response.
type Response struct {
	Status int
	Body   []byte
}

// Decode unmarshals the body into v.
func (r Response) Decode(v any) error {
	return json.Unmarshal(r.Body, v)
}

func (c *HTTPClient) do(ctx context.Context, method, path, contentType string, body []byte) (Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return Response{}, err
		}
	}
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return Response{}, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return Response{}, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("failed to read response: %w", err)
	}
	return Response{Status: resp.StatusCode, Body: raw}, nil
}

// Get performs a GET request.
func (c *HTTPClient) Get(ctx context.Context, path string) (Response, error) {
	return c.do(ctx, http.MethodGet, path, "", nil)
}

// PostJSON performs a POST request with a JSON body.
func (c *HTTPClient) PostJSON(ctx context.Context, path string, v any) (Response, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return Response{}, fmt.Errorf("failed to marshal request body: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, "application/json", raw)
}

// PostCalendar uploads an iCalendar document.
func (c *HTTPClient) PostCalendar(ctx context.Context, path, cal string) (Response, error) {
	return c.do(ctx, http.MethodPost, path, "text/calendar", []byte(cal))
}

// retryAfter backs off for a rejected request.
func retryAfter(ctx context.Context, attempt int) error {
	t := time.NewTimer(time.Duration(attempt+1) * 100 * time.Millisecond)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
