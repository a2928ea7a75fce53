package resilience

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// maxResponseBytes bounds a single JSON payload read from upstream.
const maxResponseBytes = 16 << 20

// Response is a fully read upstream response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// ClientConfig holds configuration for the resilient client.
type ClientConfig struct {
	// BaseURL is prefixed to every request path.
	BaseURL string

	// Authorization is sent as the Authorization header on every request.
	Authorization string

	// Transport holds the socket timeouts. Zero fields use defaults.
	Transport TransportConfig

	// Retry is the backoff policy for network and timeout errors.
	Retry RetryConfig

	// RateLimit is the one-shot 429 policy.
	RateLimit RateLimitConfig

	// Registry holds the per-endpoint breakers. If nil, a registry with
	// DefaultBreakerConfig is created.
	Registry *Registry

	// Logger for transport events. Messages never include URLs or bodies.
	Logger zerolog.Logger
}

// DefaultClientConfig returns the default policies for the given upstream.
func DefaultClientConfig(baseURL, authorization string) ClientConfig {
	return ClientConfig{
		BaseURL:       baseURL,
		Authorization: authorization,
		Transport:     DefaultTransportConfig(),
		Retry:         DefaultRetryConfig(),
		RateLimit:     DefaultRateLimitConfig(),
		Logger:        zerolog.Nop(),
	}
}

// Client sends requests through a per-endpoint circuit breaker, a one-shot
// rate-limit policy and an exponential retry policy, in that order.
type Client struct {
	httpClient *http.Client
	baseURL    string
	headers    http.Header
	retry      RetryConfig
	rateLimit  RateLimitConfig
	registry   *Registry
	logger     zerolog.Logger
}

// NewClient creates a new resilient client with its own connection pool.
func NewClient(cfg ClientConfig) *Client {
	if cfg.RateLimit.DefaultRetryAfter == 0 {
		cfg.RateLimit = DefaultRateLimitConfig()
	}

	registry := cfg.Registry
	if registry == nil {
		registry = NewRegistry(DefaultBreakerConfig())
	}

	headers := make(http.Header)
	headers.Set("Accept", "application/json")
	headers.Set("Content-Type", "application/json")
	if cfg.Authorization != "" {
		headers.Set("Authorization", cfg.Authorization)
	}

	return &Client{
		httpClient: NewHTTPClient(cfg.Transport),
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		headers:    headers,
		retry:      cfg.Retry.withDefaults(),
		rateLimit:  cfg.RateLimit,
		registry:   registry,
		logger:     cfg.Logger,
	}
}

// Send issues one logical request to path on behalf of endpoint. A non-nil
// body is JSON encoded. Non-2xx responses are returned as *HTTPStatusError
// together with the response; a rejected call returns *CircuitOpenError.
func (c *Client) Send(ctx context.Context, endpoint, method, path string, body any) (*Response, error) {
	var payload []byte
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		payload = encoded
	}

	breaker := c.registry.Breaker(endpoint)
	resp, err := breaker.Execute(func() (*Response, error) {
		return c.sendRateLimited(ctx, endpoint, method, path, payload)
	})
	if err != nil {
		if !errors.Is(err, ErrCircuitOpen) {
			c.registry.RecordFailure(endpoint, err)
		}
		return resp, err
	}

	c.registry.RecordSuccess(endpoint)
	return resp, nil
}

// Registry returns the breaker registry used by this client.
func (c *Client) Registry() *Registry {
	return c.registry
}

// Close releases idle pooled connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

// sendRateLimited honors Retry-After once on HTTP 429, then makes exactly one
// more logical attempt with a fresh backoff budget.
func (c *Client) sendRateLimited(ctx context.Context, endpoint, method, path string, payload []byte) (*Response, error) {
	resp, err := c.sendWithRetry(ctx, endpoint, method, path, payload)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		wait := retryAfter(resp.Header, c.rateLimit.DefaultRetryAfter)
		c.logger.Warn().
			Str("endpoint", endpoint).
			Dur("retry_after", wait).
			Msg("rate limit exceeded, retrying")

		if err := sleep(ctx, wait); err != nil {
			return nil, &TimeoutError{Err: err}
		}

		resp, err = c.sendWithRetry(ctx, endpoint, method, path, payload)
		if err != nil {
			return nil, err
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp, &HTTPStatusError{StatusCode: resp.StatusCode, Response: resp}
	}

	return resp, nil
}

// sendWithRetry retries network and timeout errors with exponential backoff.
// Any HTTP response, whatever its status, ends the sequence.
func (c *Client) sendWithRetry(ctx context.Context, endpoint, method, path string, payload []byte) (*Response, error) {
	var resp *Response
	attempt := 0

	operation := func() error {
		attempt++
		r, err := c.do(ctx, method, path, payload)
		if err != nil {
			if ctx.Err() != nil || !isTransient(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		resp = r
		return nil
	}

	notify := func(err error, wait time.Duration) {
		c.logger.Warn().
			Str("endpoint", endpoint).
			Int("attempt", attempt).
			Dur("backoff", wait).
			Str("error", err.Error()).
			Msg("transient error, retrying")
	}

	if err := backoff.RetryNotify(operation, c.retry.newBackOff(ctx), notify); err != nil {
		if ctx.Err() != nil {
			return nil, &TimeoutError{Err: ctx.Err()}
		}
		return nil, err
	}

	return resp, nil
}

// do performs a single HTTP exchange and reads the whole body.
func (c *Client) do(ctx context.Context, method, path string, payload []byte) (*Response, error) {
	var body io.Reader = http.NoBody
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	for key, values := range c.headers {
		req.Header[key] = append([]string(nil), values...)
	}

	r, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer r.Body.Close()

	data, err := io.ReadAll(io.LimitReader(r.Body, maxResponseBytes))
	if err != nil {
		return nil, classifyTransportError(err)
	}

	return &Response{
		StatusCode: r.StatusCode,
		Header:     r.Header,
		Body:       data,
	}, nil
}
