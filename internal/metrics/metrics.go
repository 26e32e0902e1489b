// Package metrics exposes Prometheus counters fed by the event bus and the
// HTTP layer.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/fentz26/worklog/internal/events"
	"github.com/fentz26/worklog/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "worklog"

// Metrics owns a registry so several instances (one per test) never clash
// on registration.
type Metrics struct {
	reg *prometheus.Registry

	events               *prometheus.CounterVec
	dependencyRejections *prometheus.CounterVec
	autoStops            prometheus.Counter
	trackedSeconds       prometheus.Counter
	httpRequests         *prometheus.CounterVec
	httpLatency          *prometheus.HistogramVec
}

// New creates a Metrics with Go runtime and process collectors registered.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,

		// events counts domain events by kind.
		events: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "total",
			Help:      "Domain events published, by kind",
		}, []string{"kind"}),

		// dependencyRejections counts refused edges.
		// Labels: reason (self, cycle)
		dependencyRejections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dependencies",
			Name:      "rejected_total",
			Help:      "Dependency edges refused, by reason",
		}, []string{"reason"}),

		autoStops: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "timers",
			Name:      "auto_stopped_total",
			Help:      "Running timers closed because their user started another",
		}),

		trackedSeconds: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "timers",
			Name:      "tracked_seconds_total",
			Help:      "Seconds of work recorded by stopped timers",
		}),

		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests served, by route and status code",
		}, []string{"method", "route", "code"}),

		httpLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"method", "route"}),
	}
}

// Observe records a domain event. It is an events.Handler.
func (m *Metrics) Observe(e events.Event) {
	m.events.WithLabelValues(string(e.Kind)).Inc()

	switch e.Kind {
	case events.DependencyDenied:
		reason := e.Attrs["reason"]
		if reason == "" {
			reason = "unknown"
		}
		m.dependencyRejections.WithLabelValues(reason).Inc()
	case events.TimerStopped:
		if e.Attrs["auto_stopped"] == "true" {
			m.autoStops.Inc()
		}
		if entry, ok := e.Payload.(models.TimeLogEntry); ok && entry.Duration > 0 {
			m.trackedSeconds.Add(float64(entry.Duration))
		}
	}
}

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(method, route string, code int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.httpLatency.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}
