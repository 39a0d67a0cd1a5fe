package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks relay throughput and downstream health.
type Metrics struct {
	Published      prometheus.Counter
	PublishFailure prometheus.Counter
	BreakerSkipped prometheus.Counter
	BreakerState   prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Published: factory.NewCounter(prometheus.CounterOpts{
			Name: "oauth_provider_outbox_published_total",
			Help: "Outbox entries delivered to the audit topic",
		}),
		PublishFailure: factory.NewCounter(prometheus.CounterOpts{
			Name: "oauth_provider_outbox_publish_failures_total",
			Help: "Outbox batches that failed to publish and were left for retry",
		}),
		BreakerSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "oauth_provider_outbox_breaker_skipped_total",
			Help: "Drain attempts skipped because the publisher circuit was open",
		}),
		BreakerState: factory.NewGauge(prometheus.GaugeOpts{
			Name: "oauth_provider_outbox_breaker_state",
			Help: "Publisher circuit state (0=closed, 1=open)",
		}),
	}
}

func (m *Metrics) addPublished(n int) {
	if m == nil {
		return
	}
	m.Published.Add(float64(n))
}

func (m *Metrics) incFailure() {
	if m == nil {
		return
	}
	m.PublishFailure.Inc()
}

func (m *Metrics) incSkipped() {
	if m == nil {
		return
	}
	m.BreakerSkipped.Inc()
}

func (m *Metrics) setBreakerOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.BreakerState.Set(1)
	} else {
		m.BreakerState.Set(0)
	}
}
