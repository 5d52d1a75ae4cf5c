// Package metrics provides Prometheus instrumentation for trading sessions, market data and the dashboard.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result labels.
const (
	ResultOK       = "ok"
	ResultRejected = "rejected"
	ResultError    = "error"
	ResultHit      = "hit"
	ResultMiss     = "miss"
)

var (
	// TradesTotal counts trade attempts by action and outcome.
	TradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "papertrade_trades_total",
		Help: "Total number of trade attempts",
	}, []string{"action", "result"})

	// CacheLookups counts market data cache lookups by kind (catalog, price, history).
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "papertrade_marketdata_cache_total",
		Help: "Market data cache lookups",
	}, []string{"kind", "result"})

	// FetchDuration tracks upstream market data fetch latency.
	FetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "papertrade_marketdata_fetch_seconds",
		Help:    "Upstream market data fetch latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	// HTTPRequestsTotal counts dashboard requests by method, route and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "papertrade_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "route", "status"})

	// HTTPRequestDuration tracks dashboard request duration by method and route.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "papertrade_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "route"})
)

// ObserveTrade records one trade attempt.
func ObserveTrade(action, result string) {
	TradesTotal.WithLabelValues(action, result).Inc()
}

// ObserveCache records one cache lookup.
func ObserveCache(kind string, hit bool) {
	result := ResultMiss
	if hit {
		result = ResultHit
	}
	CacheLookups.WithLabelValues(kind, result).Inc()
}

// ObserveFetch records the latency of an upstream fetch started at start.
func ObserveFetch(kind string, start time.Time) {
	FetchDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware records request metrics labelled with the chi route pattern.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Flush keeps streaming responses working behind the middleware.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
