// Package metrics defines the Prometheus collectors exported by the portal.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "support_portal"

// Metrics holds the portal's collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	keysIssued   *prometheus.CounterVec
	keysRevoked  prometheus.Counter
	tickets      *prometheus.CounterVec
}

// New creates the collectors and registers them on a private registry
// together with the Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route pattern, method and status code.",
		}, []string{"route", "method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern and method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		keysIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_keys_issued_total",
			Help:      "API keys issued, by how they were issued (create or rotate).",
		}, []string{"reason"}),
		keysRevoked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_keys_revoked_total",
			Help:      "API keys revoked through the revoke endpoint.",
		}),
		tickets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tickets_created_total",
			Help:      "Tickets created, by auto-responder topic (none when escalated).",
		}, []string{"topic"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.keysIssued,
		m.keysRevoked,
		m.tickets,
	)
	return m
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(route, method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

// KeyIssued records a newly issued key. reason is "create" or "rotate".
func (m *Metrics) KeyIssued(reason string) {
	if m == nil {
		return
	}
	m.keysIssued.WithLabelValues(reason).Inc()
}

// KeyRevoked records a revoke that changed a key.
func (m *Metrics) KeyRevoked() {
	if m == nil {
		return
	}
	m.keysRevoked.Inc()
}

// TicketCreated records a new ticket. topic is empty when no auto-reply was sent.
func (m *Metrics) TicketCreated(topic string) {
	if m == nil {
		return
	}
	if topic == "" {
		topic = "none"
	}
	m.tickets.WithLabelValues(topic).Inc()
}
