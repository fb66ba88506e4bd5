// Package metrics exposes Prometheus collectors for the ingestion pipeline.
//
// Every method is safe on a nil *Metrics, so components take an optional
// metrics handle and callers that do not serve /metrics pass nil.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the pipeline's collectors.
type Metrics struct {
	// Registry owns every collector below.
	Registry *prometheus.Registry

	ingestTotal   *prometheus.CounterVec
	drainTotal    *prometheus.CounterVec
	opsTotal      *prometheus.CounterVec
	drainDuration prometheus.Histogram
	queueDepth    prometheus.Gauge
	online        prometheus.Gauge
}

// New creates a private registry and registers the pipeline metrics in it.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		ingestTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spice_ingest_total",
				Help: "Messages ingested by outcome.",
			},
			[]string{"outcome"},
		),
		drainTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spice_drain_total",
				Help: "Queue drains by result.",
			},
			[]string{"result"},
		),
		opsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spice_operations_total",
				Help: "Pending operations by terminal or retry result.",
			},
			[]string{"result"},
		),
		drainDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "spice_drain_duration_seconds",
				Help:    "Duration of queue drains.",
				Buckets: prometheus.DefBuckets,
			},
		),
		queueDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "spice_queue_depth",
				Help: "Operations waiting in the durable queue.",
			},
		),
		online: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "spice_ledger_online",
				Help: "1 when the remote ledger was reachable at the last probe.",
			},
		),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// IncrIngest counts one ingestion outcome.
func (m *Metrics) IncrIngest(outcome string) {
	if m == nil {
		return
	}
	m.ingestTotal.WithLabelValues(outcome).Inc()
}

// RecordDrain records a finished drain.
func (m *Metrics) RecordDrain(result string, applied, failed, dropped int, d time.Duration) {
	if m == nil {
		return
	}
	m.drainTotal.WithLabelValues(result).Inc()
	m.opsTotal.WithLabelValues("applied").Add(float64(applied))
	m.opsTotal.WithLabelValues("failed").Add(float64(failed))
	m.opsTotal.WithLabelValues("dropped").Add(float64(dropped))
	m.drainDuration.Observe(d.Seconds())
}

// SetQueueDepth sets the queue depth gauge.
func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

// SetOnline sets the connectivity gauge.
func (m *Metrics) SetOnline(online bool) {
	if m == nil {
		return
	}
	if online {
		m.online.Set(1)
		return
	}
	m.online.Set(0)
}
