package engine

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/possync/internal/ops"
)

// Drain attempt results recorded by Metrics.
const (
	resultSuccess = "success"
	resultFailure = "failure"
	resultFatal   = "fatal"
)

// Metrics are the engine's prometheus collectors.
type Metrics struct {
	pending         prometheus.Gauge
	online          prometheus.Gauge
	attempts        *prometheus.CounterVec
	persistFailures prometheus.Counter
}

// NewMetrics creates the collectors and registers them on reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "possync",
			Name:      "pending_operations",
			Help:      "Operations waiting to be applied to the remote store",
		}),
		online: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "possync",
			Name:      "online",
			Help:      "1 while the remote store is considered reachable",
		}),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "possync",
			Name:      "drain_attempts_total",
			Help:      "Remote apply attempts by operation kind and result",
		}, []string{"kind", "result"}),
		persistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "possync",
			Name:      "persist_failures_total",
			Help:      "Local operation log writes that failed",
		}),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{m.pending, m.online, m.attempts, m.persistFailures} {
			reg.MustRegister(c)
		}
	}
	return m
}

func (m *Metrics) observeState(pending int, online bool) {
	if m == nil {
		return
	}
	m.pending.Set(float64(pending))
	if online {
		m.online.Set(1)
	} else {
		m.online.Set(0)
	}
}

func (m *Metrics) observeAttempt(kind ops.Kind, result string) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(string(kind), result).Inc()
}

func (m *Metrics) observePersistFailure() {
	if m == nil {
		return
	}
	m.persistFailures.Inc()
}
