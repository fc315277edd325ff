package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsCollectorRegistersEverything(t *testing.T) {
	m := NewMetricsCollector()
	m.HTTPRequestsTotal.WithLabelValues("GET", "/x", "200").Inc()
	m.HTTPRequestDuration.WithLabelValues("GET", "/x").Observe(0.1)
	m.ObserveStock("approve", "committed")

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"guyub_http_requests_total",
		"guyub_http_request_duration_seconds",
		"guyub_active_requests",
		"guyub_stock_transactions_total",
	} {
		if !names[want] {
			t.Errorf("metric %s not registered", want)
		}
	}
}

func TestObserveStockCountsOutcomes(t *testing.T) {
	m := NewMetricsCollector()
	m.ObserveStock("approve", "committed")
	m.ObserveStock("approve", "conflict")
	m.ObserveStock("approve", "conflict")
	if got := testutil.ToFloat64(m.StockTransactionsTotal.WithLabelValues("approve", "conflict")); got != 2 {
		t.Fatalf("conflict count = %v", got)
	}
	var nilCollector *MetricsCollector
	nilCollector.ObserveStock("return", "committed")
}

func TestHTTPMetricsMiddlewareUsesRoutePattern(t *testing.T) {
	m := NewMetricsCollector()
	r := chi.NewRouter()
	r.Use(HTTPMetricsMiddleware(m))
	r.Get("/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	r.Get("/ok", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	for _, path := range []string{"/items/a", "/items/b", "/ok"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	if got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/items/{id}", "418")); got != 2 {
		t.Fatalf("items count = %v", got)
	}
	if got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/ok", "200")); got != 1 {
		t.Fatalf("ok count = %v", got)
	}
	if got := testutil.ToFloat64(m.ActiveRequests); got != 0 {
		t.Fatalf("active requests = %v", got)
	}
}
