package gateway

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeSuccess        = "success"
	outcomeClientError    = "client_error"
	outcomeServerError    = "server_error"
	outcomeTransportError = "transport_error"
)

// Metrics counts gateway attempts. A nil *Metrics is valid and records nothing.
type Metrics struct {
	attempts  *prometheus.CounterVec
	retries   prometheus.Counter
	exhausted prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "setoran",
			Subsystem: "gateway",
			Name:      "attempts_total",
			Help:      "HTTP attempts made by the gateway, by outcome.",
		}, []string{"outcome"}),
		retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "setoran",
			Subsystem: "gateway",
			Name:      "retries_total",
			Help:      "Attempts that were retried after a transport or server error.",
		}),
		exhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "setoran",
			Subsystem: "gateway",
			Name:      "exhausted_total",
			Help:      "Calls that failed after using every attempt.",
		}),
	}
	reg.MustRegister(m.attempts, m.retries, m.exhausted)
	return m
}

func outcomeFor(status int) string {
	if status >= http.StatusBadRequest {
		return outcomeClientError
	}
	return outcomeSuccess
}

func (m *Metrics) observe(outcome string) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) retry() {
	if m == nil {
		return
	}
	m.retries.Inc()
}

func (m *Metrics) exhaust() {
	if m == nil {
		return
	}
	m.exhausted.Inc()
}
