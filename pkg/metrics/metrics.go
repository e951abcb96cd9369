// Package metrics exposes Prometheus metrics for forwarded requests.
package metrics

import (
	"context"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	proxy "github.com/codegene/devproxy/pkg/proxy/core"
)

// Metrics holds the forwarding collectors, registered on a private registry
type Metrics struct {
	registry *prometheus.Registry

	forwarded      *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	upstreamErrors *prometheus.CounterVec
	unmatched      prometheus.Counter
}

// New creates the collectors. Go runtime and process collectors are included.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		forwarded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "devproxy_forwarded_requests_total",
			Help: "Requests forwarded to a backend, by rule and response status",
		}, []string{"rule", "method", "status"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "devproxy_forward_duration_seconds",
			Help:    "Time from receiving a request to finishing the backend response",
			Buckets: prometheus.DefBuckets,
		}, []string{"rule"}),
		upstreamErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "devproxy_upstream_errors_total",
			Help: "Forwarding attempts that failed at the transport level",
		}, []string{"rule", "target"}),
		unmatched: factory.NewCounter(prometheus.CounterOpts{
			Name: "devproxy_unmatched_requests_total",
			Help: "Requests no proxy rule matched",
		}),
	}
}

// Observe implements proxy.Observer
func (m *Metrics) Observe(_ context.Context, ex proxy.Exchange) {
	if !ex.Matched {
		m.unmatched.Inc()
		return
	}

	m.forwarded.WithLabelValues(ex.Rule, ex.Method, strconv.Itoa(ex.Status)).Inc()
	m.duration.WithLabelValues(ex.Rule).Observe(ex.Duration.Seconds())
	if ex.Err != nil {
		m.upstreamErrors.WithLabelValues(ex.Rule, ex.Target).Inc()
	}
}

// Registry returns the registry the collectors are registered on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
