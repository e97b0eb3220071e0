// Package setoran is the client for the setoran resource API. Payloads are passed through as raw
// JSON; every call carries the session's bearer token.
package setoran

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/jrsteele09/go-setoran-session/gateway"
	"github.com/jrsteele09/go-setoran-session/session"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const maxResponseBody = 4 << 20

// Authorizer runs a call with a valid access token. *session.Manager implements it.
type Authorizer interface {
	AuthenticatedRequest(ctx context.Context, op session.Operation) error
}

var _ Authorizer = (*session.Manager)(nil)

type Client struct {
	baseURL    string
	httpClient *http.Client
	auth       Authorizer
	profile    *ProfileCache
	logger     zerolog.Logger
}

type Option func(*Client)

// WithProfileCache keeps the last DosenInfo response for offline display.
func WithProfileCache(cache *ProfileCache) Option {
	return func(c *Client) {
		c.profile = cache
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func New(baseURL string, httpClient *http.Client, auth Authorizer, options ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		auth:       auth,
		logger:     log.Logger,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// DosenInfo returns the lecturer profile and the students under their supervision.
func (c *Client) DosenInfo(ctx context.Context) (json.RawMessage, error) {
	data, err := c.Do(ctx, http.MethodGet, "/dosen/pa-saya", nil)
	if err != nil {
		return nil, err
	}
	if c.profile != nil {
		if err := c.profile.Save(data); err != nil {
			c.logger.Warn().Err(err).Msg("setoran: profile not cached")
		}
	}
	return data, nil
}

// StudentSetoran returns the setoran records of the student with the given NIM.
func (c *Client) StudentSetoran(ctx context.Context, nim string) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodGet, setoranPath(nim), nil)
}

// SubmitSetoran records setoran for a student.
func (c *Client) SubmitSetoran(ctx context.Context, nim string, payload json.RawMessage) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodPost, setoranPath(nim), payload)
}

// CancelSetoran removes previously recorded setoran.
func (c *Client) CancelSetoran(ctx context.Context, nim string, payload json.RawMessage) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodDelete, setoranPath(nim), payload)
}

func setoranPath(nim string) string {
	return "/mahasiswa/setoran/" + url.PathEscape(strings.TrimSpace(nim))
}

// Do sends an authenticated request to path (relative to the API base URL) and returns the body.
func (c *Client) Do(ctx context.Context, method, path string, payload json.RawMessage) (json.RawMessage, error) {
	if len(payload) > 0 && !json.Valid(payload) {
		return nil, errors.Errorf("[Client.Do] %s %s: payload is not valid JSON", method, path)
	}

	var body json.RawMessage
	err := c.auth.AuthenticatedRequest(ctx, func(ctx context.Context, accessToken string) error {
		data, err := c.send(ctx, method, path, payload, accessToken)
		if err != nil {
			return err
		}
		body = data
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (c *Client) send(ctx context.Context, method, path string, payload json.RawMessage, accessToken string) (json.RawMessage, error) {
	var reader io.Reader
	if len(payload) > 0 {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, errors.Wrapf(err, "[Client.send] %s %s", method, path)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, gateway.TransportError(err)
	}
	defer resp.Body.Close()

	if err := gateway.Classify(resp); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, gateway.TransportError(err)
	}
	return data, nil
}
