package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector holds the Prometheus metrics of the service on a custom
// registry. Nothing is registered globally.
type MetricsCollector struct {
	Registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	ActiveRequests      prometheus.Gauge

	// StockTransactionsTotal counts loan approve/reject/return attempts by outcome.
	StockTransactionsTotal *prometheus.CounterVec
}

func NewMetricsCollector() *MetricsCollector {
	reg := prometheus.NewRegistry()
	m := &MetricsCollector{
		Registry: reg,

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "guyub",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		}, []string{"method", "route", "status_code"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "guyub",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),

		ActiveRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "guyub",
			Name:      "active_requests",
			Help:      "Number of currently active requests.",
		}),

		StockTransactionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "guyub",
			Subsystem: "stock",
			Name:      "transactions_total",
			Help:      "Loan stock transactions by action and outcome.",
		}, []string{"action", "outcome"}),
	}
	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.ActiveRequests,
		m.StockTransactionsTotal,
	)
	return m
}

// ObserveStock implements engine.StockObserver.
func (m *MetricsCollector) ObserveStock(action, outcome string) {
	if m == nil {
		return
	}
	m.StockTransactionsTotal.WithLabelValues(action, outcome).Inc()
}

func statusCode(code int) string {
	return strconv.Itoa(code)
}
