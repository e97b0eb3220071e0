package gateway

import (
	"net"
	"net/http"
	"time"

	"github.com/jrsteele09/go-setoran-session/internal/config"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// NewClient returns an *http.Client using a retrying Transport over a base transport whose connect,
// TLS handshake and response header timeouts all use the configured value. The same value bounds
// each attempt as a whole, body included. Extra options are applied after the configured ones.
func NewClient(cfg config.GatewayConfig, options ...Option) *http.Client {
	timeout := cfg.GetHTTPTimeout()
	base := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   timeout,
		ResponseHeaderTimeout: timeout,
		ExpectContinueTimeout: time.Second,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          10,
		ForceAttemptHTTP2:     true,
	}

	opts := append([]Option{
		WithBase(otelhttp.NewTransport(base)),
		WithMaxAttempts(cfg.GetMaxAttempts()),
		WithAttemptTimeout(timeout),
		WithBackoff(cfg.GetBackoffBase(), cfg.GetBackoffMax()),
	}, options...)

	return &http.Client{Transport: NewTransport(opts...)}
}
