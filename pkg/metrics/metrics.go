// Package metrics holds the Prometheus collectors of the storefront. All
// methods are safe to call on a nil *Metrics, which records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rugstore"

type Metrics struct {
	registry *prometheus.Registry

	httpRequests     *prometheus.CounterVec
	httpLatency      *prometheus.HistogramVec
	ordersPlaced     *prometheus.CounterVec
	orderValue       *prometheus.CounterVec
	paymentFailures  prometheus.Counter
	gatewayLatency   prometheus.Histogram
	activeSessions   prometheus.Gauge
	reviewsSubmitted *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		ordersPlaced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "placed_total",
			Help:      "Orders placed by payment method.",
		}, []string{"method"}),
		orderValue: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "value_total",
			Help:      "Sum of order totals by currency.",
		}, []string{"currency"}),
		paymentFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "payments",
			Name:      "verification_failures_total",
			Help:      "Payments whose signature did not verify.",
		}),
		gatewayLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "payments",
			Name:      "gateway_request_duration_seconds",
			Help:      "Latency of gateway order creation.",
			Buckets:   prometheus.DefBuckets,
		}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "active",
			Help:      "Session actors currently alive.",
		}),
		reviewsSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reviews",
			Name:      "submitted_total",
			Help:      "Reviews stored, by author role.",
		}, []string{"role"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpLatency,
		m.ordersPlaced,
		m.orderValue,
		m.paymentFailures,
		m.gatewayLatency,
		m.activeSessions,
		m.reviewsSubmitted,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveHTTP(route, method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.httpLatency.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

func (m *Metrics) OrderPlaced(method, currency string, total float64) {
	if m == nil {
		return
	}
	m.ordersPlaced.WithLabelValues(method).Inc()
	m.orderValue.WithLabelValues(currency).Add(total)
}

func (m *Metrics) PaymentVerificationFailed() {
	if m == nil {
		return
	}
	m.paymentFailures.Inc()
}

func (m *Metrics) ObserveGateway(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.gatewayLatency.Observe(elapsed.Seconds())
}

func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.activeSessions.Inc()
}

func (m *Metrics) SessionStopped() {
	if m == nil {
		return
	}
	m.activeSessions.Dec()
}

func (m *Metrics) ReviewSubmitted(admin bool) {
	if m == nil {
		return
	}
	role := "shopper"
	if admin {
		role = "admin"
	}
	m.reviewsSubmitted.WithLabelValues(role).Inc()
}
