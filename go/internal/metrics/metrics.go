package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector defines the interface for collecting session service metrics
type Collector interface {
	RecordTransition(eventType string)
	RecordViolation(role string)
	RecordPublishFailure(transport string)
	ConnectionOpened()
	ConnectionClosed()
	RecordScheduledCompletion(success bool)
	RecordExpired(count int)
}

// NoOpCollector is a no-op implementation for when metrics aren't needed
type NoOpCollector struct{}

func (NoOpCollector) RecordTransition(eventType string)      {}
func (NoOpCollector) RecordViolation(role string)            {}
func (NoOpCollector) RecordPublishFailure(transport string)  {}
func (NoOpCollector) ConnectionOpened()                      {}
func (NoOpCollector) ConnectionClosed()                      {}
func (NoOpCollector) RecordScheduledCompletion(success bool) {}
func (NoOpCollector) RecordExpired(count int)                {}

// PrometheusCollector implements Collector using Prometheus
type PrometheusCollector struct {
	transitions     *prometheus.CounterVec
	violations      *prometheus.CounterVec
	publishFailures *prometheus.CounterVec
	connections     prometheus.Gauge
	completions     *prometheus.CounterVec
	expired         prometheus.Counter
	registry        *prometheus.Registry
}

// NewPrometheusCollector registers the session metrics on a fresh registry.
func NewPrometheusCollector() *PrometheusCollector {
	reg := prometheus.NewRegistry()
	c := &PrometheusCollector{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "focusnest",
			Name:      "session_events_total",
			Help:      "Session changes applied, by event type.",
		}, []string{"event_type"}),
		violations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "focusnest",
			Name:      "violations_total",
			Help:      "Away transitions recorded, by participant role.",
		}, []string{"role"}),
		publishFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "focusnest",
			Name:      "publish_failures_total",
			Help:      "Change events that could not be handed to the fan-out transport.",
		}, []string{"transport"}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "focusnest",
			Name:      "websocket_connections",
			Help:      "Open realtime subscriber connections.",
		}),
		completions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "focusnest",
			Name:      "scheduled_completions_total",
			Help:      "Server-side countdown completions, by outcome.",
		}, []string{"outcome"}),
		expired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "focusnest",
			Name:      "expired_sessions_total",
			Help:      "Waiting sessions removed by the expiry sweep.",
		}),
		registry: reg,
	}
	reg.MustRegister(
		c.transitions, c.violations, c.publishFailures,
		c.connections, c.completions, c.expired,
		collectors.NewGoCollector(),
	)
	return c
}

func (c *PrometheusCollector) RecordTransition(eventType string) {
	c.transitions.WithLabelValues(eventType).Inc()
}

func (c *PrometheusCollector) RecordViolation(role string) {
	c.violations.WithLabelValues(role).Inc()
}

func (c *PrometheusCollector) RecordPublishFailure(transport string) {
	c.publishFailures.WithLabelValues(transport).Inc()
}

func (c *PrometheusCollector) ConnectionOpened() {
	c.connections.Inc()
}

func (c *PrometheusCollector) ConnectionClosed() {
	c.connections.Dec()
}

func (c *PrometheusCollector) RecordScheduledCompletion(success bool) {
	outcome := "ok"
	if !success {
		outcome = "error"
	}
	c.completions.WithLabelValues(outcome).Inc()
}

func (c *PrometheusCollector) RecordExpired(count int) {
	c.expired.Add(float64(count))
}

// Handler serves the registry in the Prometheus exposition format.
func (c *PrometheusCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
