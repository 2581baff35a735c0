// Package gateway is the HTTP and WebSocket client layer for the
// Signal REST gateway.
//
// A single Client (one shared http.Client) underlies all resource
// clients. Every call goes through Request, which layers headers,
// resolves per-endpoint timeouts, waits on the rate limiter, guards
// the attempt with the circuit breaker, retries transient failures
// with exponential backoff, and maps failures to typed errors.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/AltairaLabs/chatkit/logger"
	"github.com/AltairaLabs/chatkit/metrics/prometheus"
)

// Default client tunables.
const (
	DefaultRetries           = 3
	DefaultBackoffFactor     = 500 * time.Millisecond
	DefaultTimeout           = 30 * time.Second
	DefaultIdempotencyHeader = "Idempotency-Key"
)

// HeaderProvider supplies dynamic headers per call, e.g. rotating auth
// material. It may block; the call's context bounds it.
type HeaderProvider func(ctx context.Context, method, path string) (map[string]string, error)

// Config configures a Client.
type Config struct {
	// BaseURL is the HTTP root of the gateway, e.g. "http://signal:8080".
	BaseURL string

	// HTTPClient is the shared session. A default with no client-level
	// timeout is used when nil (timeouts are enforced per call).
	HTTPClient *http.Client

	// Retries is the per-call retry cap for transient failures.
	Retries int

	// BackoffFactor scales the retry sleep: attempt k (0-indexed)
	// sleeps BackoffFactor * 2^k.
	BackoffFactor time.Duration

	// Timeout is the default per-call timeout.
	Timeout time.Duration

	// EndpointTimeouts overrides Timeout by path prefix. The longest
	// matching prefix wins.
	EndpointTimeouts map[string]time.Duration

	// IdempotencyHeader names the header carrying idempotency keys.
	IdempotencyHeader string

	// DefaultHeaders are sent on every request (lowest priority).
	DefaultHeaders map[string]string

	// HeaderProvider supplies dynamic headers (overrides defaults).
	HeaderProvider HeaderProvider

	// Limiter, when set, is awaited before any network I/O.
	Limiter *rate.Limiter

	// Breaker, when set, guards every attempt.
	Breaker *Breaker
}

func (c *Config) defaults() {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{}
	}
	if c.Retries == 0 {
		c.Retries = DefaultRetries
	}
	if c.BackoffFactor == 0 {
		c.BackoffFactor = DefaultBackoffFactor
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.IdempotencyHeader == "" {
		c.IdempotencyHeader = DefaultIdempotencyHeader
	}
}

// RequestOptions carries the per-call knobs for Client.Request.
type RequestOptions struct {
	// Body is JSON-marshaled when RawBody is nil.
	Body any

	// RawBody is sent verbatim.
	RawBody []byte

	// Headers are request-scoped and win over defaults and provider
	// headers.
	Headers map[string]string

	// Query parameters appended to the URL.
	Query url.Values

	// Timeout overrides the endpoint-timeout table for this call.
	Timeout time.Duration

	// Retries overrides the client retry cap for this call.
	Retries *int

	// IdempotencyKey is written into the configured idempotency header.
	IdempotencyKey string

	// MaxBodyBytes bounds how much of the response body is read. At
	// most MaxBodyBytes+1 bytes are buffered, so callers can detect an
	// oversized body without holding all of it. Zero means unbounded.
	MaxBodyBytes int64
}

// Response is the decoded result of a gateway call.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	isJSON     bool
}

// JSON reports whether the response body is JSON.
func (r *Response) JSON() bool { return r.isJSON }

// Decode unmarshals a JSON response body into v.
func (r *Response) Decode(v any) error {
	if len(r.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("gateway: decoding response: %w", err)
	}
	return nil
}

// Client issues REST calls against the gateway.
type Client struct {
	cfg Config
}

// NewClient creates a Client. The zero values of cfg are filled with
// the package defaults.
func NewClient(cfg Config) *Client {
	cfg.defaults()
	return &Client{cfg: cfg}
}

// BaseURL returns the configured gateway root.
func (c *Client) BaseURL() string { return c.cfg.BaseURL }

// Request issues one REST call with the full retry, rate-limit and
// breaker behavior and returns the decoded response or a typed error.
func (c *Client) Request(ctx context.Context, method, path string, opts RequestOptions) (*Response, error) {
	reqURL := c.cfg.BaseURL + path
	if len(opts.Query) > 0 {
		reqURL += "?" + opts.Query.Encode()
	}

	headers, err := c.composeHeaders(ctx, method, path, &opts)
	if err != nil {
		return nil, err
	}

	body := opts.RawBody
	if body == nil && opts.Body != nil {
		body, err = json.Marshal(opts.Body)
		if err != nil {
			return nil, fmt.Errorf("gateway: marshaling request body: %w", err)
		}
		if _, ok := headers["Content-Type"]; !ok {
			headers["Content-Type"] = "application/json"
		}
	}

	timeout := c.resolveTimeout(path, opts.Timeout)
	retries := c.cfg.Retries
	if opts.Retries != nil {
		retries = *opts.Retries
	}

	// Rate limit before any network I/O.
	if c.cfg.Limiter != nil {
		if err := c.cfg.Limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("gateway: rate limiter: %w", err)
		}
	}

	logger.APIRequest(method, reqURL, headers, json.RawMessage(body))

	var (
		resp    *Response
		lastErr error
	)
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			prometheus.RecordHTTPRetry()
			delay := c.cfg.BackoffFactor * (1 << (attempt - 1))
			logger.Warn("gateway request failed, retrying",
				"method", method,
				"path", path,
				"attempt", attempt,
				"max_retries", retries,
				"delay", delay,
				"error", lastErr,
			)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		resp, lastErr = c.attempt(ctx, method, reqURL, headers, body, timeout, opts.MaxBodyBytes)
		c.publishBreakerState()
		if lastErr == nil {
			return resp, nil
		}
		if !isTransient(lastErr) || ctx.Err() != nil {
			break
		}
	}

	logger.APIResponse(method, reqURL, 0, "", lastErr)
	return nil, lastErr
}

// attempt performs one guarded HTTP round trip.
func (c *Client) attempt(ctx context.Context, method, reqURL string, headers map[string]string, body []byte, timeout time.Duration, maxBody int64) (*Response, error) {
	run := func() (*Response, error) {
		attemptCtx := ctx
		if timeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(attemptCtx, method, reqURL, reader)
		if err != nil {
			return nil, fmt.Errorf("gateway: building request: %w", err)
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		start := time.Now()
		httpResp, err := c.cfg.HTTPClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("gateway: %s %s: %w", method, reqURL, err)
		}
		defer httpResp.Body.Close()

		bodyReader := io.Reader(httpResp.Body)
		if maxBody > 0 {
			bodyReader = io.LimitReader(bodyReader, maxBody+1)
		}
		respBody, err := io.ReadAll(bodyReader)
		if err != nil {
			return nil, fmt.Errorf("gateway: reading response: %w", err)
		}

		logger.APIResponse(method, reqURL, httpResp.StatusCode, string(respBody), nil)
		prometheus.RecordHTTPRequest(method, statusLabel(httpResp.StatusCode), time.Since(start).Seconds())

		if httpResp.StatusCode >= http.StatusBadRequest {
			return nil, classifyError(httpResp.StatusCode, respBody, reqURL)
		}

		return &Response{
			StatusCode: httpResp.StatusCode,
			Header:     httpResp.Header,
			Body:       respBody,
			isJSON:     strings.HasPrefix(httpResp.Header.Get("Content-Type"), "application/json"),
		}, nil
	}

	if c.cfg.Breaker == nil {
		return run()
	}

	var resp *Response
	err := c.cfg.Breaker.Guard(func() error {
		var guardErr error
		resp, guardErr = run()
		return guardErr
	})
	return resp, err
}

// composeHeaders layers headers: defaults, then the dynamic provider,
// then request-scoped headers, then the idempotency key.
func (c *Client) composeHeaders(ctx context.Context, method, path string, opts *RequestOptions) (map[string]string, error) {
	headers := make(map[string]string, len(c.cfg.DefaultHeaders)+len(opts.Headers)+1)
	for k, v := range c.cfg.DefaultHeaders {
		headers[k] = v
	}
	if c.cfg.HeaderProvider != nil {
		dynamic, err := c.cfg.HeaderProvider(ctx, method, path)
		if err != nil {
			return nil, fmt.Errorf("gateway: header provider: %w", err)
		}
		for k, v := range dynamic {
			headers[k] = v
		}
	}
	for k, v := range opts.Headers {
		headers[k] = v
	}
	if opts.IdempotencyKey != "" {
		headers[c.cfg.IdempotencyHeader] = opts.IdempotencyKey
	}
	return headers, nil
}

// resolveTimeout picks the per-call timeout: the request-scoped value
// wins, then the longest matching path prefix, then the default.
func (c *Client) resolveTimeout(path string, override time.Duration) time.Duration {
	if override > 0 {
		return override
	}
	var (
		best    time.Duration
		bestLen = -1
	)
	for prefix, t := range c.cfg.EndpointTimeouts {
		if strings.HasPrefix(path, prefix) && len(prefix) > bestLen {
			best = t
			bestLen = len(prefix)
		}
	}
	if bestLen >= 0 {
		return best
	}
	return c.cfg.Timeout
}

func (c *Client) publishBreakerState() {
	if c.cfg.Breaker != nil {
		prometheus.SetCircuitState(int(c.cfg.Breaker.State()))
	}
}

// isTransient reports whether an error should be retried: network
// failures, timeouts, and 5xx responses. Typed non-server API errors
// and breaker rejections short-circuit the retry loop.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrCircuitOpen) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsRetryable()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	// Remaining wrapped errors are transport-level (net.Error et al).
	return true
}

func statusLabel(status int) string {
	if status < http.StatusBadRequest {
		return "success"
	}
	return "error"
}
