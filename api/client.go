// ABOUTME: HTTP transport client for the orchestration platform's REST API.
// ABOUTME: Attaches the X-API-Key header, bounds every call with a timeout, and classifies failures.

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultTimeout bounds a call when neither the client nor the request sets one.
const DefaultTimeout = 10 * time.Second

// APIKeyHeader carries the platform API key on every request.
const APIKeyHeader = "X-API-Key"

// Request describes one call to the platform API.
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Body    any
	Headers map[string]string

	// Timeout overrides the client timeout for this call. It must be finite;
	// zero means use the client timeout.
	Timeout time.Duration
}

// Endpoint returns the path with its encoded query, e.g. "/workflows?limit=5&page=1".
// url.Values.Encode sorts keys so equal queries produce equal endpoints.
func (r Request) Endpoint() string {
	if len(r.Query) == 0 {
		return r.Path
	}
	return r.Path + "?" + r.Query.Encode()
}

func (r Request) method() string {
	if r.Method == "" {
		return http.MethodGet
	}
	return strings.ToUpper(r.Method)
}

// Client sends requests to the platform API.
type Client struct {
	BaseURL        string
	APIKey         string
	DefaultHeaders map[string]string
	Timeout        time.Duration
	HTTPClient     *http.Client
	Retry          RetryPolicy
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-call timeout. Non-positive values are ignored so a
// client can never be configured to wait forever.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.HTTPClient = hc
		}
	}
}

// WithRetryPolicy enables resending idempotent reads that fail with a
// retryable error. Writes are never resent.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) {
		c.Retry = p
	}
}

// WithHeader adds a header sent on every request.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.DefaultHeaders[key] = value
	}
}

// NewClient creates a Client for baseURL authenticating with apiKey.
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		BaseURL:        strings.TrimRight(baseURL, "/"),
		APIKey:         apiKey,
		DefaultHeaders: map[string]string{"Accept": "application/json"},
		Timeout:        DefaultTimeout,
		HTTPClient:     &http.Client{},
		Retry:          NoRetry(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send performs req and returns the raw response body. Failures are always one
// of the typed errors in this package. Only idempotent requests are resent
// under the client's RetryPolicy; writes are sent exactly once.
func (c *Client) Send(ctx context.Context, req Request) ([]byte, error) {
	policy := NoRetry()
	if Idempotent(req.method()) {
		policy = c.Retry
	}
	if policy.Resends > 0 {
		if policy.Budget <= 0 {
			policy.Budget = c.timeoutFor(req)
		}
		if policy.OnRetry == nil {
			policy.OnRetry = func(err error, resend int, wait time.Duration) {
				log.Printf("component=api action=retry endpoint=%s resend=%d wait=%s err=%v",
					req.Endpoint(), resend, wait.Round(time.Millisecond), err)
			}
		}
	}

	var payload []byte
	err := Retry(ctx, policy, func(attemptCtx context.Context) error {
		var err error
		payload, err = c.do(attemptCtx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return payload, nil
}

// timeoutFor picks the finite timeout that applies to req.
func (c *Client) timeoutFor(req Request) time.Duration {
	if req.Timeout > 0 {
		return req.Timeout
	}
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultTimeout
}

func (c *Client) do(ctx context.Context, req Request) ([]byte, error) {
	method := req.method()
	endpoint := req.Endpoint()
	label := method + " " + endpoint

	callCtx, cancel := context.WithTimeout(ctx, c.timeoutFor(req))
	defer cancel()

	var reqBody io.Reader
	if req.Body != nil {
		encoded, err := encodeBody(req.Body)
		if err != nil {
			return nil, &InvalidRequestError{APIError: APIError{
				Kind:     KindInvalidRequest,
				Message:  "encoding request body",
				Endpoint: label,
				Cause:    err,
			}}
		}
		reqBody = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(callCtx, method, c.BaseURL+endpoint, reqBody)
	if err != nil {
		return nil, &InvalidRequestError{APIError: APIError{
			Kind:     KindInvalidRequest,
			Message:  "creating request",
			Endpoint: label,
			Cause:    err,
		}}
	}

	httpReq.Header.Set("X-Request-ID", uuid.NewString())
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.DefaultHeaders {
		httpReq.Header.Set(k, v)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	// Set last so no extra header can replace the configured key.
	httpReq.Header.Set(APIKeyHeader, c.APIKey)

	start := time.Now()
	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(ctx, callCtx, label, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransportError(ctx, callCtx, label, fmt.Errorf("reading response body: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Printf("component=api action=request endpoint=%q status=%d duration=%s",
			label, resp.StatusCode, time.Since(start).Round(time.Millisecond))
		return nil, ErrorFromStatus(resp.StatusCode, label, body, parseRetryAfter(resp.Header))
	}

	return body, nil
}

// encodeBody JSON-encodes body; pre-encoded bytes are sent as-is.
func encodeBody(body any) ([]byte, error) {
	switch b := body.(type) {
	case json.RawMessage:
		return b, nil
	case []byte:
		return b, nil
	default:
		return json.Marshal(body)
	}
}

// classifyTransportError maps a failure with no HTTP response to Timeout,
// Aborted or NetworkError. parent is the caller's context; call is the
// per-request timeout context derived from it.
func classifyTransportError(parent, call context.Context, endpoint string, err error) error {
	if parent.Err() != nil {
		if errors.Is(parent.Err(), context.DeadlineExceeded) {
			return newTimeoutError(endpoint, err)
		}
		return newAbortError(endpoint, err)
	}
	if errors.Is(call.Err(), context.DeadlineExceeded) {
		return newTimeoutError(endpoint, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return newTimeoutError(endpoint, err)
	}
	return newNetworkError(endpoint, err)
}

// parseRetryAfter reads a Retry-After header expressed in seconds.
func parseRetryAfter(h http.Header) *float64 {
	v := h.Get("Retry-After")
	if v == "" {
		return nil
	}
	seconds, err := strconv.ParseFloat(v, 64)
	if err != nil || seconds < 0 {
		return nil
	}
	return &seconds
}
