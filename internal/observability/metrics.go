package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Histogram bucket definitions.
var (
	httpDurationBuckets  = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	storeDurationBuckets = []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}
	bodySizeBuckets      = []float64{100, 1024, 10240, 102400, 1048576}
)

// Metrics holds all Prometheus metric instruments for the service.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPRequestSizeBytes  *prometheus.HistogramVec
	HTTPResponseSizeBytes *prometheus.HistogramVec

	// Traveler lifecycle metrics
	TravelersCreatedTotal    *prometheus.CounterVec
	TravelerTransitionsTotal *prometheus.CounterVec
	TravelerDeletesTotal     prometheus.Counter
	StepCompletionsTotal     prometheus.Counter
	TravelerCreationDuration prometheus.Histogram

	// Approval metrics
	ApprovalRequestsTotal  *prometheus.CounterVec
	ApprovalDecisionsTotal *prometheus.CounterVec
	ApprovalsPending       prometheus.Gauge

	// Labor metrics
	LaborEntriesStartedTotal   prometheus.Counter
	LaborEntriesCompletedTotal prometheus.Counter
	LaborConflictsTotal        prometheus.Counter

	// Notification metrics
	NotificationsSentTotal   *prometheus.CounterVec
	NotificationsFailedTotal *prometheus.CounterVec

	// Store metrics
	StoreQueryDuration *prometheus.HistogramVec
}

// InitMetrics creates and registers all Prometheus metric instruments.
func InitMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		// HTTP
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "traveler_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path_pattern", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "traveler_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: httpDurationBuckets,
		}, []string{"method", "path_pattern"}),
		HTTPRequestSizeBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "traveler_http_request_size_bytes",
			Help:    "HTTP request body size in bytes.",
			Buckets: bodySizeBuckets,
		}, []string{"method", "path_pattern"}),
		HTTPResponseSizeBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "traveler_http_response_size_bytes",
			Help:    "HTTP response body size in bytes.",
			Buckets: bodySizeBuckets,
		}, []string{"method", "path_pattern"}),

		// Lifecycle
		TravelersCreatedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "traveler_created_total",
			Help: "Total number of travelers created.",
		}, []string{"traveler_type"}),
		TravelerTransitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "traveler_status_transitions_total",
			Help: "Total number of traveler status transitions.",
		}, []string{"from", "to"}),
		TravelerDeletesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "traveler_deletes_total",
			Help: "Total number of traveler hard deletes.",
		}),
		StepCompletionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "traveler_step_completions_total",
			Help: "Total number of process steps completed.",
		}),
		TravelerCreationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "traveler_creation_duration_seconds",
			Help:    "Traveler creation duration in seconds.",
			Buckets: storeDurationBuckets,
		}),

		// Approvals
		ApprovalRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "traveler_approval_requests_total",
			Help: "Total number of approval requests.",
		}, []string{"request_type"}),
		ApprovalDecisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "traveler_approval_decisions_total",
			Help: "Total number of approval decisions.",
		}, []string{"decision"}),
		ApprovalsPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "traveler_approvals_pending",
			Help: "Number of approvals currently pending.",
		}),

		// Labor
		LaborEntriesStartedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "traveler_labor_entries_started_total",
			Help: "Total number of labor entries started.",
		}),
		LaborEntriesCompletedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "traveler_labor_entries_completed_total",
			Help: "Total number of labor entries completed.",
		}),
		LaborConflictsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "traveler_labor_conflicts_total",
			Help: "Total number of rejected duplicate active labor entries.",
		}),

		// Notifications
		NotificationsSentTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "traveler_notifications_sent_total",
			Help: "Total number of notifications delivered.",
		}, []string{"kind"}),
		NotificationsFailedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "traveler_notifications_failed_total",
			Help: "Total number of failed notification deliveries.",
		}, []string{"kind"}),

		// Store
		StoreQueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "traveler_store_query_duration_seconds",
			Help:    "Store query duration in seconds.",
			Buckets: storeDurationBuckets,
		}, []string{"operation"}),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestSizeBytes,
		m.HTTPResponseSizeBytes,
		m.TravelersCreatedTotal,
		m.TravelerTransitionsTotal,
		m.TravelerDeletesTotal,
		m.StepCompletionsTotal,
		m.TravelerCreationDuration,
		m.ApprovalRequestsTotal,
		m.ApprovalDecisionsTotal,
		m.ApprovalsPending,
		m.LaborEntriesStartedTotal,
		m.LaborEntriesCompletedTotal,
		m.LaborConflictsTotal,
		m.NotificationsSentTotal,
		m.NotificationsFailedTotal,
		m.StoreQueryDuration,
	)

	return m
}

// RecordHTTPRequest records HTTP request metrics.
func (m *Metrics) RecordHTTPRequest(method, pathPattern string, status int, duration time.Duration, reqSize, respSize int) {
	statusStr := strconv.Itoa(status)
	m.HTTPRequestsTotal.WithLabelValues(method, pathPattern, statusStr).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, pathPattern).Observe(duration.Seconds())
	m.HTTPRequestSizeBytes.WithLabelValues(method, pathPattern).Observe(float64(reqSize))
	m.HTTPResponseSizeBytes.WithLabelValues(method, pathPattern).Observe(float64(respSize))
}

// RecordTravelerCreated records a traveler creation.
func (m *Metrics) RecordTravelerCreated(travelerType string, duration time.Duration) {
	m.TravelersCreatedTotal.WithLabelValues(travelerType).Inc()
	m.TravelerCreationDuration.Observe(duration.Seconds())
}

// RecordTransition records a status transition.
func (m *Metrics) RecordTransition(from, to string) {
	m.TravelerTransitionsTotal.WithLabelValues(from, to).Inc()
}

// RecordApprovalRequest records a new approval request.
func (m *Metrics) RecordApprovalRequest(requestType string) {
	m.ApprovalRequestsTotal.WithLabelValues(requestType).Inc()
	m.ApprovalsPending.Inc()
}

// RecordApprovalDecision records an approval decision.
func (m *Metrics) RecordApprovalDecision(decision string) {
	m.ApprovalDecisionsTotal.WithLabelValues(decision).Inc()
	m.ApprovalsPending.Dec()
}

// RecordNotification records a notification delivery attempt.
func (m *Metrics) RecordNotification(kind string, err error) {
	if err != nil {
		m.NotificationsFailedTotal.WithLabelValues(kind).Inc()
		return
	}
	m.NotificationsSentTotal.WithLabelValues(kind).Inc()
}

// RecordStoreQuery records the duration of one store operation.
func (m *Metrics) RecordStoreQuery(operation string, duration time.Duration) {
	m.StoreQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// MetricsMiddleware returns HTTP middleware that records request metrics
// using chi's route pattern (not the actual URL path) to avoid label
// cardinality explosion.
func (m *Metrics) MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &metricsResponseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		duration := time.Since(start)
		pathPattern := routePattern(r)
		reqSize := 0
		if r.ContentLength > 0 {
			reqSize = int(r.ContentLength)
		}

		m.RecordHTTPRequest(r.Method, pathPattern, sw.status, duration, reqSize, sw.bytes)
	})
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// routePattern extracts chi's route pattern from the request context.
// Falls back to the raw URL path if no pattern is found.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return r.URL.Path
	}
	pattern := strings.Join(rctx.RoutePatterns, "")
	// chi route patterns have trailing /*, remove it.
	pattern = strings.TrimSuffix(pattern, "/*")
	if pattern == "" {
		return r.URL.Path
	}
	return pattern
}

// metricsResponseWriter wraps http.ResponseWriter to capture status and bytes.
type metricsResponseWriter struct {
	http.ResponseWriter
	status  int
	bytes   int
	written bool
}

func (w *metricsResponseWriter) WriteHeader(code int) {
	if !w.written {
		w.status = code
		w.written = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *metricsResponseWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.written = true
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}
