package worker

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metrics holds the worker's Prometheus instrumentation. A fresh registry
// per Service keeps tests from tripping over duplicate registration.
type metrics struct {
	registry *prometheus.Registry

	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	sessions prometheus.GaugeFunc
	wsConns  prometheus.GaugeFunc
}

func newMetrics(clientCount, activeSessions func() int) *metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &metrics{
		registry: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "claude_mem",
			Name:      "http_requests_total",
			Help:      "HTTP requests handled by the worker, by route and status.",
		}, []string{"route", "status"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "claude_mem",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		sessions: factory.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "claude_mem",
			Name:      "active_sessions",
			Help:      "Sessions currently in the active state.",
		}, func() float64 { return float64(activeSessions()) }),
		wsConns: factory.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "claude_mem",
			Name:      "websocket_clients",
			Help:      "Connected dashboard WebSocket clients.",
		}, func() float64 { return float64(clientCount()) }),
	}
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// instrument wraps a handler with request counting and latency observation.
func (m *metrics) instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next(sw, r)
		m.requests.WithLabelValues(route, strconv.Itoa(sw.status)).Inc()
		m.duration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
