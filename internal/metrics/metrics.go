// Package metrics exposes Prometheus collectors for inbound requests and
// backend dispatch attempts.
//
// A nil *Collector is valid and records nothing, which is how metrics are
// disabled.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rasa_proxy"

var (
	// requestBuckets cover the proxy's end-to-end latency, dominated by
	// backend calls bounded by the per-attempt timeout.
	requestBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15, 30, 60}
	attemptBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15}
)

// Collector owns the proxy's metrics and the registry they live in.
type Collector struct {
	registry *prometheus.Registry

	requests         *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	attempts         *prometheus.CounterVec
	attemptDuration  *prometheus.HistogramVec
	dispatchFailures prometheus.Counter
	payloadVariants  *prometheus.CounterVec
}

// NewCollector registers all metrics on registry, creating a fresh registry
// when nil. Go runtime and process collectors are included.
func NewCollector(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	c := &Collector{
		registry: registry,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Chat completion requests by operating mode and HTTP status.",
		}, []string{"mode", "code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "End-to-end chat completion latency.",
			Buckets:   requestBuckets,
		}, []string{"mode"}),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "attempts_total",
			Help:      "Backend transport attempts by outcome.",
		}, []string{"transport", "outcome"}),
		attemptDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "attempt_duration_seconds",
			Help:      "Latency of individual backend transport attempts.",
			Buckets:   attemptBuckets,
		}, []string{"transport"}),
		dispatchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dispatch",
			Name:      "exhausted_total",
			Help:      "Dispatches where every transport failed.",
		}),
		payloadVariants: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "normalize",
			Name:      "payloads_total",
			Help:      "Normalized backend payloads by shape.",
		}, []string{"variant"}),
	}
	registry.MustRegister(
		c.requests,
		c.requestDuration,
		c.attempts,
		c.attemptDuration,
		c.dispatchFailures,
		c.payloadVariants,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// RecordRequest records a finished chat completion.
func (c *Collector) RecordRequest(mode string, status int, d time.Duration) {
	if c == nil {
		return
	}
	c.requests.WithLabelValues(mode, strconv.Itoa(status)).Inc()
	c.requestDuration.WithLabelValues(mode).Observe(d.Seconds())
}

// ObserveAttempt records one backend transport attempt.
func (c *Collector) ObserveAttempt(transport string, ok bool, d time.Duration) {
	if c == nil {
		return
	}
	outcome := "failure"
	if ok {
		outcome = "success"
	}
	c.attempts.WithLabelValues(transport, outcome).Inc()
	c.attemptDuration.WithLabelValues(transport).Observe(d.Seconds())
}

// RecordDispatchExhausted counts a dispatch where no transport succeeded.
func (c *Collector) RecordDispatchExhausted() {
	if c == nil {
		return
	}
	c.dispatchFailures.Inc()
}

// RecordPayloadVariant counts the shape of a normalized backend payload.
func (c *Collector) RecordPayloadVariant(variant string) {
	if c == nil {
		return
	}
	c.payloadVariants.WithLabelValues(variant).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}
