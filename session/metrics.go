package session

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts session transitions. A nil *Metrics is valid and records nothing.
type Metrics struct {
	logins        *prometheus.CounterVec
	refreshes     *prometheus.CounterVec
	forcedLogouts prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "setoran",
			Subsystem: "session",
			Name:      "logins_total",
			Help:      "Password grant logins, by result.",
		}, []string{"result"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "setoran",
			Subsystem: "session",
			Name:      "refreshes_total",
			Help:      "Refresh token grants, by result.",
		}, []string{"result"}),
		forcedLogouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "setoran",
			Subsystem: "session",
			Name:      "forced_logouts_total",
			Help:      "Sessions cleared because they expired.",
		}),
	}
	reg.MustRegister(m.logins, m.refreshes, m.forcedLogouts)
	return m
}

func result(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

func (m *Metrics) login(err error) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(result(err)).Inc()
}

func (m *Metrics) refresh(err error) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(result(err)).Inc()
}

func (m *Metrics) forcedLogout() {
	if m == nil {
		return
	}
	m.forcedLogouts.Inc()
}
