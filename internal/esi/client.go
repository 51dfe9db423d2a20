package esi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sicney/eve-mo/internal/config"
	"github.com/sicney/eve-mo/internal/logger"
	"golang.org/x/time/rate"
)

// Retry classes for transient failures.
const (
	classNetwork     = "network"
	classRateLimited = "rate_limited"
	classServer      = "server_error"
)

// statusErrorLimited is ESI's own "error limited" status, treated like 429.
const statusErrorLimited = 420

// Response is a successful ESI reply.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Client is a retrying, rate-limited ESI HTTP client.
//
// Failures never reach the caller as errors: every method reports "no payload"
// (nil / false) and logs the reason, so callers skip the unit of work and continue.
type Client struct {
	http    *http.Client
	baseURL string
	cfg     config.ESIConfig
	limiter *rate.Limiter
	sleep   func(ctx context.Context, d time.Duration) error
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.http = hc }
}

// WithBaseURL points the client at another ESI root (tests, proxies).
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimRight(baseURL, "/") }
}

// WithSleep replaces the backoff sleeper.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) ClientOption {
	return func(c *Client) { c.sleep = sleep }
}

// NewClient creates an ESI client. Successful requests are spaced by at least
// cfg.RequestDelay across all goroutines sharing the client.
func NewClient(cfg config.ESIConfig, opts ...ClientOption) *Client {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.RequestDelay), 1)
	}
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	c := &Client{
		http:    &http.Client{Timeout: cfg.Timeout},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		cfg:     cfg,
		limiter: limiter,
		sleep:   sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get issues a GET against path with bounded retries. It returns nil when no
// payload is available: a definitive HTTP failure, exhausted retries or a
// cancelled context.
func (c *Client) Get(ctx context.Context, path string, params url.Values) *Response {
	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		start := time.Now()
		resp, err := c.do(ctx, reqURL)
		requestDuration.Observe(time.Since(start).Seconds())

		var class string
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil
			}
			class = classNetwork
			logger.Warn("ESI", fmt.Sprintf("Request error %s: %v (attempt %d/%d)", reqURL, err, attempt, c.cfg.MaxRetries))
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == statusErrorLimited:
			class = classRateLimited
			logger.Warn("ESI", fmt.Sprintf("HTTP %d for %s (attempt %d/%d)", resp.StatusCode, reqURL, attempt, c.cfg.MaxRetries))
		case resp.StatusCode >= 500:
			class = classServer
			logger.Warn("ESI", fmt.Sprintf("HTTP %d for %s (attempt %d/%d)", resp.StatusCode, reqURL, attempt, c.cfg.MaxRetries))
		case resp.StatusCode != http.StatusOK:
			requestsTotal.WithLabelValues("definitive").Inc()
			logger.Warn("ESI", fmt.Sprintf("HTTP %d for %s, not retrying", resp.StatusCode, reqURL))
			return nil
		default:
			requestsTotal.WithLabelValues("ok").Inc()
			// Spacing applies to successful requests only; a cancelled wait
			// still hands back the payload we already have.
			_ = c.limiter.Wait(ctx)
			return resp
		}

		if attempt == c.cfg.MaxRetries {
			break
		}
		retriesTotal.WithLabelValues(class).Inc()
		if err := c.sleep(ctx, c.backoff(class, attempt)); err != nil {
			return nil
		}
	}

	requestsTotal.WithLabelValues("exhausted").Inc()
	logger.Error("ESI", fmt.Sprintf("Max attempts (%d) exceeded for %s", c.cfg.MaxRetries, reqURL))
	return nil
}

// GetJSON fetches path and decodes the body into dst. A body that does not
// decode into dst, or a JSON null, is reported as a malformed payload.
func (c *Client) GetJSON(ctx context.Context, path string, params url.Values, dst interface{}) (http.Header, bool) {
	resp := c.Get(ctx, path, params)
	if resp == nil {
		return nil, false
	}
	if bytes.Equal(bytes.TrimSpace(resp.Body), []byte("null")) {
		requestsTotal.WithLabelValues("malformed").Inc()
		logger.Warn("ESI", fmt.Sprintf("Unexpected payload for %s: null", path))
		return nil, false
	}
	if err := json.Unmarshal(resp.Body, dst); err != nil {
		requestsTotal.WithLabelValues("malformed").Inc()
		logger.Warn("ESI", fmt.Sprintf("Unexpected payload for %s: %v", path, err))
		return nil, false
	}
	return resp.Header, true
}

// backoff is linear in the attempt number with a per-class base delay.
func (c *Client) backoff(class string, attempt int) time.Duration {
	base := c.cfg.ServerErrorBackoff
	switch class {
	case classNetwork:
		base = c.cfg.NetworkBackoff
	case classRateLimited:
		base = c.cfg.RateLimitBackoff
	}
	return base * time.Duration(attempt)
}

func (c *Client) do(ctx context.Context, reqURL string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
