// Package gateway holds the HTTP clients a dispatch station uses to reach the
// fulfillment and print gateways.
package gateway

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

	"github.com/Mrhamza01/prlabel/pkg/logging"
	"github.com/Mrhamza01/prlabel/pkg/metrics"
	"github.com/Mrhamza01/prlabel/pkg/resilience"
	"github.com/Mrhamza01/prlabel/pkg/tracing"
)

// DefaultTimeout bounds a single gateway request
const DefaultTimeout = 10 * time.Second

const maxBodyBytes = 1 << 20

// Header names shared with the gateway middleware
const (
	headerRequestID     = "X-Request-ID"
	headerCorrelationID = "X-Correlation-ID"
)

// Error is a failed gateway call. Logical marks a reachable gateway that
// refused the operation, either with success:false or a 4xx status.
type Error struct {
	Op         string
	StatusCode int
	Message    string
	Logical    bool
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": status %d", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// IsLogical reports whether err is a gateway refusal rather than a transport
// failure.
func IsLogical(err error) bool {
	var gwErr *Error
	return errors.As(err, &gwErr) && gwErr.Logical
}

// StatusCode returns the HTTP status carried by err, or zero
func StatusCode(err error) int {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr.StatusCode
	}
	return 0
}

// Option configures a gateway client
type Option func(*client)

// WithTimeout sets the HTTP client timeout
func WithTimeout(d time.Duration) Option {
	return func(c *client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets the client logger
func WithLogger(logger *logging.Logger) Option {
	return func(c *client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics exports breaker state changes
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *client) { c.metrics = m }
}

// WithoutCircuitBreaker sends every request straight through
func WithoutCircuitBreaker() Option {
	return func(c *client) { c.noBreaker = true }
}

type client struct {
	name       string
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
	metrics    *metrics.Metrics
	breaker    *resilience.CircuitBreaker
	noBreaker  bool
}

func newClient(name, baseURL string, opts ...Option) *client {
	c := &client{
		name:       name,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if !c.noBreaker {
		cfg := resilience.DefaultCircuitBreakerConfig(name)
		cfg.IsSuccessful = func(err error) bool { return err == nil || IsLogical(err) }
		c.breaker = resilience.NewCircuitBreaker(cfg, c.logger, c.metrics)
	}
	return c
}

// envelope picks out the fields gateways use to report logical failures
type envelope struct {
	Success *bool  `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// doRequest sends one JSON request and decodes the response into out
func (c *client) doRequest(ctx context.Context, op, method, path string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return &Error{Op: op, Err: fmt.Errorf("failed to marshal request body: %w", err)}
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	send := func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
		if err != nil {
			return &Error{Op: op, Err: fmt.Errorf("failed to create request: %w", err)}
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Accept", "application/json")
		if id, ok := ctx.Value(logging.CorrelationIDKey).(string); ok {
			req.Header.Set(headerCorrelationID, id)
		}
		if id, ok := ctx.Value(logging.RequestIDKey).(string); ok {
			req.Header.Set(headerRequestID, id)
		}
		tracing.InjectHTTPHeaders(ctx, req.Header)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return &Error{Op: op, Err: fmt.Errorf("request failed: %w", err)}
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return &Error{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response body: %w", err)}
		}

		var env envelope
		_ = json.Unmarshal(respBody, &env)

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			msg := env.Error
			if msg == "" {
				msg = env.Message
			}
			if msg == "" {
				msg = http.StatusText(resp.StatusCode)
			}
			return &Error{
				Op:         op,
				StatusCode: resp.StatusCode,
				Message:    msg,
				Logical:    resp.StatusCode < 500,
			}
		}

		if env.Success != nil && !*env.Success {
			msg := env.Error
			if msg == "" {
				msg = "gateway reported failure"
			}
			return &Error{Op: op, StatusCode: resp.StatusCode, Message: msg, Logical: true}
		}

		if out != nil && len(respBody) > 0 {
			if err := json.Unmarshal(respBody, out); err != nil {
				return &Error{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to decode response: %w", err)}
			}
		}
		return nil
	}

	if c.breaker == nil {
		return send(ctx)
	}
	err := c.breaker.Execute(ctx, send)
	if err != nil && errors.Is(err, resilience.ErrCircuitOpen) {
		return &Error{Op: op, Err: err}
	}
	return err
}
