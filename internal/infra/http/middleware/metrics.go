package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	activeConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_active_connections",
			Help: "Number of active HTTP connections",
		},
	)

	leadsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadsync_leads_processed_total",
			Help: "Leads handled by the forwarder, by outcome (sent, failed, error)",
		},
		[]string{"outcome"},
	)

	crmAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadsync_crm_attempts_total",
			Help: "Create-lead calls made to the CRM, by result",
		},
		[]string{"result"},
	)

	tokenRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadsync_token_refresh_total",
			Help: "OAuth access token refreshes, by result",
		},
		[]string{"result"},
	)
)

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Metrics records request count and latency labelled by the chi route pattern.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		activeConnections.Inc()
		defer activeConnections.Dec()

		rw := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(rw.statusCode)
		path := routePattern(r)

		httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

// PrometheusRecorder feeds the processing counters.
type PrometheusRecorder struct{}

func (PrometheusRecorder) LeadProcessed(outcome string) {
	leadsProcessed.WithLabelValues(outcome).Inc()
}

func (PrometheusRecorder) CRMAttempt(result string) {
	crmAttempts.WithLabelValues(result).Inc()
}

func (PrometheusRecorder) TokenRefresh(result string) {
	tokenRefreshes.WithLabelValues(result).Inc()
}
