// Package gateway wraps outbound HTTP calls with timeouts and retry-with-backoff.
//
// Transport errors and 5xx responses are retried up to the configured number of attempts with a
// quadratic, capped backoff; 4xx responses are returned to the caller immediately. The gateway
// knows nothing about tokens.
package gateway

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	autherrors "github.com/jrsteele09/go-setoran-session/internal/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	RequestIDHeader = "X-Request-Id"

	defaultMaxAttempts = 3
	defaultBackoffBase = time.Second
	defaultBackoffMax  = 5 * time.Second
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Transport is a retrying http.RoundTripper.
type Transport struct {
	base        http.RoundTripper
	maxAttempts int
	backoffBase time.Duration
	backoffMax  time.Duration
	timeout     time.Duration
	sleep       SleepFunc
	logger      zerolog.Logger
	metrics     *Metrics
}

var _ http.RoundTripper = (*Transport)(nil)

type Option func(*Transport)

func WithBase(base http.RoundTripper) Option {
	return func(t *Transport) {
		t.base = base
	}
}

func WithMaxAttempts(attempts int) Option {
	return func(t *Transport) {
		t.maxAttempts = attempts
	}
}

func WithBackoff(base, max time.Duration) Option {
	return func(t *Transport) {
		t.backoffBase = base
		t.backoffMax = max
	}
}

// WithAttemptTimeout bounds each attempt from sending the request to closing the response body.
// An attempt that runs out of time counts as a transport error and is retried.
func WithAttemptTimeout(timeout time.Duration) Option {
	return func(t *Transport) {
		t.timeout = timeout
	}
}

// WithSleep replaces the wait between attempts (primarily for testing)
func WithSleep(sleep SleepFunc) Option {
	return func(t *Transport) {
		t.sleep = sleep
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(t *Transport) {
		t.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(t *Transport) {
		t.metrics = m
	}
}

func NewTransport(options ...Option) *Transport {
	t := &Transport{
		base:   http.DefaultTransport,
		logger: log.Logger,
	}
	for _, opt := range options {
		opt(t)
	}

	if t.maxAttempts <= 0 {
		t.maxAttempts = defaultMaxAttempts
	}
	if t.backoffBase <= 0 {
		t.backoffBase = defaultBackoffBase
	}
	if t.backoffMax <= 0 {
		t.backoffMax = defaultBackoffMax
	}
	if t.sleep == nil {
		t.sleep = sleepContext
	}
	return t
}

// Backoff returns the wait after the given (1-based) attempt: min(base * attempt², max).
func Backoff(attempt int, base, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := base * time.Duration(attempt*attempt)
	if d <= 0 || d > max {
		return max
	}
	return d
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	requestID := req.Header.Get(RequestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	logger := t.logger.With().Str("request_id", requestID).Str("method", req.Method).Str("url", req.URL.Redacted()).Logger()

	// A body that cannot be rewound allows a single attempt only.
	attempts := t.maxAttempts
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		attempts = 1
	}

	for attempt := 1; ; attempt++ {
		attemptCtx, cancel := t.attemptContext(ctx)
		attemptReq, err := prepareAttempt(attemptCtx, req, attempt, requestID)
		if err != nil {
			cancel()
			return nil, err
		}

		resp, err := t.base.RoundTrip(attemptReq)
		switch {
		case err != nil:
			cancel()
			if ctx.Err() != nil {
				return nil, err
			}
			t.metrics.observe(outcomeTransportError)
			logger.Warn().Err(err).Int("attempt", attempt).Msg("gateway: transport error")
		case resp.StatusCode >= http.StatusInternalServerError:
			t.metrics.observe(outcomeServerError)
			logger.Warn().Int("status", resp.StatusCode).Int("attempt", attempt).Msg("gateway: server error")
		default:
			t.metrics.observe(outcomeFor(resp.StatusCode))
			return releaseOnClose(resp, cancel), nil
		}

		if attempt >= attempts {
			t.metrics.exhaust()
			logger.Error().Int("attempts", attempt).Msg("gateway: retries exhausted")
			if err != nil {
				return nil, fmt.Errorf("%w: %w", autherrors.ErrNetwork, err)
			}
			return releaseOnClose(resp, cancel), nil
		}

		if resp != nil {
			drainAndClose(resp.Body)
			cancel()
		}
		t.metrics.retry()
		if err := t.sleep(ctx, Backoff(attempt, t.backoffBase, t.backoffMax)); err != nil {
			return nil, err
		}
	}
}

func (t *Transport) attemptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if t.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, t.timeout)
}

func prepareAttempt(ctx context.Context, req *http.Request, attempt int, requestID string) (*http.Request, error) {
	r := req.Clone(ctx)
	r.Header.Set(RequestIDHeader, requestID)
	if attempt > 1 && req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("gateway rewind body: %w", err)
		}
		r.Body = body
	}
	return r, nil
}

func releaseOnClose(resp *http.Response, cancel context.CancelFunc) *http.Response {
	if resp.Body == nil {
		cancel()
		return resp
	}
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp
}

// cancelOnClose releases the attempt's deadline once the caller is done with the body.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 64<<10))
	_ = body.Close()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
