package config

import "time"

type GatewayConfig interface {
	GetHTTPTimeout() time.Duration
	GetMaxAttempts() int
	GetBackoffBase() time.Duration
	GetBackoffMax() time.Duration
}

type Gateway struct{ values }

var _ GatewayConfig = Gateway{}

// GetHTTPTimeout is applied uniformly to connect, TLS handshake and response header reads, and
// bounds each request attempt as a whole
func (g Gateway) GetHTTPTimeout() time.Duration {
	return g.duration("HTTP_TIMEOUT", 15*time.Second)
}

func (g Gateway) GetMaxAttempts() int {
	return g.int("HTTP_MAX_ATTEMPTS", 3)
}

func (g Gateway) GetBackoffBase() time.Duration {
	return g.duration("HTTP_BACKOFF_BASE", time.Second)
}

func (g Gateway) GetBackoffMax() time.Duration {
	return g.duration("HTTP_BACKOFF_MAX", 5*time.Second)
}
