package httpx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// ErrorRecorder receives outbound failures and breaker transitions.
// *metrics.Metrics implements it.
type ErrorRecorder interface {
	RecordHTTPError(client, errorType string)
	RecordCircuitState(name string, open bool)
}

// ResilientClient wraps an HTTP client with circuit breaker and retry logic.
// It is shared by the reputation lookups and the feed providers.
type ResilientClient struct {
	name     string
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker
	config   Config
	recorder ErrorRecorder
	log      zerolog.Logger
}

// Config holds configuration for the resilient client.
type Config struct {
	Timeout time.Duration

	// Circuit breaker settings
	EnableCircuitBreaker bool
	MaxFailures          uint32
	CircuitTimeout       time.Duration

	// Retry settings
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func DefaultConfig() Config {
	return Config{
		Timeout:              15 * time.Second,
		EnableCircuitBreaker: true,
		MaxFailures:          5,
		CircuitTimeout:       30 * time.Second,
		MaxRetries:           3,
		InitialInterval:      500 * time.Millisecond,
		MaxInterval:          5 * time.Second,
	}
}

type Option func(*ResilientClient)

func WithRecorder(r ErrorRecorder) Option {
	return func(c *ResilientClient) { c.recorder = r }
}

func WithLogger(log zerolog.Logger) Option {
	return func(c *ResilientClient) { c.log = log }
}

// New creates a resilient client. name labels its metrics and breaker.
func New(name string, config Config, opts ...Option) *ResilientClient {
	c := &ResilientClient{
		name:   name,
		client: &http.Client{Timeout: config.Timeout},
		config: config,
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if config.EnableCircuitBreaker {
		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Interval:    0, // never reset counts while closed
			Timeout:     config.CircuitTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= config.MaxFailures
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				c.log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
					Msg("⚡ circuit breaker changed state")
				if c.recorder != nil {
					c.recorder.RecordCircuitState(name, to == gobreaker.StateOpen)
				}
			},
		})
	}

	return c
}

func (c *ResilientClient) Name() string { return c.name }

// Do executes an HTTP request with circuit breaker and retry logic. Any
// status >= 400 is returned as an error with the body already closed.
func (c *ResilientClient) Do(req *http.Request) (*http.Response, error) {
	if c.breaker == nil {
		return c.doWithRetry(req)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.doWithRetry(req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.recordError("circuit_open")
			return nil, fmt.Errorf("circuit breaker is open: %w", err)
		}
		return nil, err
	}

	return result.(*http.Response), nil
}

// Get is a convenience wrapper used by the feed providers.
func (c *ResilientClient) Get(ctx context.Context, url string, header http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return c.Do(req)
}

func (c *ResilientClient) doWithRetry(req *http.Request) (*http.Response, error) {
	var bodyBytes []byte
	if req.Body != nil {
		var err error
		bodyBytes, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read request body: %w", err)
		}
		req.Body.Close()
	}

	var resp *http.Response
	var lastErr error

	operation := func() error {
		if bodyBytes != nil {
			req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		}

		var err error
		resp, err = c.client.Do(req)
		if err != nil {
			lastErr = err
			c.recordError("connection")
			if shouldRetry(err, nil) {
				return err
			}
			return backoff.Permanent(err)
		}

		if shouldRetry(nil, resp) {
			lastErr = fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
			c.recordErrorFromResponse(resp)
			resp.Body.Close()
			return lastErr
		}

		if resp.StatusCode >= 400 {
			c.recordErrorFromResponse(resp)
			resp.Body.Close()
			lastErr = fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
			return backoff.Permanent(lastErr)
		}

		return nil
	}

	if c.config.MaxRetries <= 0 {
		if err := operation(); err != nil {
			return nil, lastErr
		}
		return resp, nil
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = c.config.InitialInterval
	expBackoff.MaxInterval = c.config.MaxInterval
	expBackoff.Multiplier = 2.0
	expBackoff.MaxElapsedTime = 0 // bounded by MaxRetries only

	retryBackoff := backoff.WithContext(
		backoff.WithMaxRetries(expBackoff, uint64(c.config.MaxRetries)),
		req.Context(),
	)

	if err := backoff.Retry(operation, retryBackoff); err != nil {
		if lastErr == nil {
			lastErr = err
		}
		return nil, fmt.Errorf("request failed after retries: %w", lastErr)
	}

	return resp, nil
}

func shouldRetry(err error, resp *http.Response) bool {
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return false
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return true
		}
		msg := err.Error()
		return strings.Contains(msg, "connection refused") ||
			strings.Contains(msg, "connection reset") ||
			strings.Contains(msg, "EOF")
	}

	if resp != nil {
		switch resp.StatusCode {
		case http.StatusTooManyRequests,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout,
			http.StatusBadGateway,
			http.StatusInternalServerError:
			return true
		}
	}

	return false
}

func (c *ResilientClient) recordError(errorType string) {
	if c.recorder != nil {
		c.recorder.RecordHTTPError(c.name, errorType)
	}
}

func (c *ResilientClient) recordErrorFromResponse(resp *http.Response) {
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		c.recordError("auth")
	case http.StatusTooManyRequests:
		c.recordError("rate_limit")
	case http.StatusRequestTimeout:
		c.recordError("timeout")
	case http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		c.recordError("server_error")
	default:
		c.recordError("http_error")
	}
}
