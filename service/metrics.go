package service

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "dev_proxy"

// Metrics holds the prometheus collectors of proxied traffic.
type Metrics struct {
	exchangesTotal     *prometheus.CounterVec
	exchangeDuration   *prometheus.HistogramVec
	upstreamErrors     *prometheus.CounterVec
	middlewareFailures *prometheus.CounterVec
	reloadsTotal       prometheus.Counter

	registry *prometheus.Registry
}

// NewMetrics creates Metrics registered on a registry of its own.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		exchangesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "exchanges_total",
				Help:      "Total number of proxied exchanges",
			},
			[]string{"env", "route", "kind", "status_class"},
		),

		exchangeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "exchange_duration_seconds",
				Help:      "Time from forwarding a request to receiving the upstream response headers",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"env", "route", "kind"},
		),

		upstreamErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "upstream_errors_total",
				Help:      "Total number of exchanges that failed to reach the upstream",
			},
			[]string{"env", "route", "kind"},
		),

		middlewareFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "middleware_failures_total",
				Help:      "Total number of middleware hooks that returned an error or panicked",
			},
			[]string{"kind"},
		),

		reloadsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "config_rebuilds_total",
				Help:      "Total number of times the effective proxy configuration was rebuilt",
			},
		),
	}

	m.registry.MustRegister(
		m.exchangesTotal,
		m.exchangeDuration,
		m.upstreamErrors,
		m.middlewareFailures,
		m.reloadsTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// ObserveExchange implements ExchangeObserver.
func (m *Metrics) ObserveExchange(ctx context.Context, summary ExchangeSummary) {
	kind := string(summary.Kind)

	if summary.Error != "" {
		m.upstreamErrors.WithLabelValues(summary.Env, summary.Route, kind).Inc()
	}

	m.exchangesTotal.WithLabelValues(summary.Env, summary.Route, kind, statusClass(summary.StatusCode)).Inc()

	if summary.HasDuration {
		m.exchangeDuration.WithLabelValues(summary.Env, summary.Route, kind).Observe(summary.Duration.Seconds())
	}
}

// MiddlewareFailed counts one failed hook of kind.
func (m *Metrics) MiddlewareFailed(kind TrafficKind) {
	m.middlewareFailures.WithLabelValues(string(kind)).Inc()
}

// ConfigRebuilt counts one rebuild of the effective configuration.
func (m *Metrics) ConfigRebuilt() {
	m.reloadsTotal.Inc()
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the prometheus scrape handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func statusClass(status int) string {
	if status < 100 || status > 599 {
		return "unknown"
	}
	return fmt.Sprintf("%dxx", status/100)
}
