package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func newTestMetrics(t *testing.T) (*Metrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := InitMetrics(reg)
	return m, reg
}

func TestInitMetrics_registersAllMetrics(t *testing.T) {
	m, reg := newTestMetrics(t)
	if m == nil {
		t.Fatal("InitMetrics returned nil")
	}

	// Record a value for each metric so they appear in Gather.
	m.RecordHTTPRequest("GET", "/test", 200, time.Millisecond, 0, 100)
	m.RecordTravelerCreated("PCB", time.Millisecond)
	m.RecordTransition("IN_PROGRESS", "COMPLETED")
	m.TravelerDeletesTotal.Inc()
	m.StepCompletionsTotal.Inc()
	m.RecordApprovalRequest("EDIT")
	m.RecordApprovalDecision("APPROVED")
	m.LaborEntriesStartedTotal.Inc()
	m.LaborEntriesCompletedTotal.Inc()
	m.LaborConflictsTotal.Inc()
	m.RecordNotification("traveler_created", nil)
	m.RecordNotification("decision", errors.New("smtp down"))
	m.RecordStoreQuery("traveler.create", time.Millisecond)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}

	expected := []string{
		"traveler_http_requests_total",
		"traveler_http_request_duration_seconds",
		"traveler_http_request_size_bytes",
		"traveler_http_response_size_bytes",
		"traveler_created_total",
		"traveler_status_transitions_total",
		"traveler_deletes_total",
		"traveler_step_completions_total",
		"traveler_creation_duration_seconds",
		"traveler_approval_requests_total",
		"traveler_approval_decisions_total",
		"traveler_approvals_pending",
		"traveler_labor_entries_started_total",
		"traveler_labor_entries_completed_total",
		"traveler_labor_conflicts_total",
		"traveler_notifications_sent_total",
		"traveler_notifications_failed_total",
		"traveler_store_query_duration_seconds",
	}
	for _, name := range expected {
		if !names[name] {
			t.Errorf("metric %q not registered", name)
		}
	}
}

func TestRecordHTTPRequest(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.RecordHTTPRequest("GET", "/api/travelers/{id}", 200, 50*time.Millisecond, 0, 1024)
	m.RecordHTTPRequest("GET", "/api/travelers/{id}", 200, 100*time.Millisecond, 0, 2048)
	m.RecordHTTPRequest("POST", "/api/travelers", 500, 200*time.Millisecond, 512, 256)

	val := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/api/travelers/{id}", "200"))
	if val != 2 {
		t.Errorf("GET requests = %v, want 2", val)
	}
	val = testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("POST", "/api/travelers", "500"))
	if val != 1 {
		t.Errorf("POST requests = %v, want 1", val)
	}
}

func TestRecordTravelerCreated(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.RecordTravelerCreated("PCB", 10*time.Millisecond)
	m.RecordTravelerCreated("PCB", 20*time.Millisecond)
	m.RecordTravelerCreated("ASSEMBLY", 5*time.Millisecond)

	pcb := testutil.ToFloat64(m.TravelersCreatedTotal.WithLabelValues("PCB"))
	if pcb != 2 {
		t.Errorf("PCB creations = %v, want 2", pcb)
	}
	asm := testutil.ToFloat64(m.TravelersCreatedTotal.WithLabelValues("ASSEMBLY"))
	if asm != 1 {
		t.Errorf("ASSEMBLY creations = %v, want 1", asm)
	}
	if count := testutil.CollectAndCount(m.TravelerCreationDuration); count == 0 {
		t.Error("expected creation duration histogram to have observations")
	}
}

func TestRecordTransition(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.RecordTransition("PENDING", "IN_PROGRESS")
	m.RecordTransition("PENDING", "IN_PROGRESS")
	m.RecordTransition("IN_PROGRESS", "COMPLETED")

	val := testutil.ToFloat64(m.TravelerTransitionsTotal.WithLabelValues("PENDING", "IN_PROGRESS"))
	if val != 2 {
		t.Errorf("PENDING->IN_PROGRESS = %v, want 2", val)
	}
	val = testutil.ToFloat64(m.TravelerTransitionsTotal.WithLabelValues("IN_PROGRESS", "COMPLETED"))
	if val != 1 {
		t.Errorf("IN_PROGRESS->COMPLETED = %v, want 1", val)
	}
}

func TestApprovalMetrics_pendingGauge(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.RecordApprovalRequest("EDIT")
	m.RecordApprovalRequest("CANCEL")
	pending := testutil.ToFloat64(m.ApprovalsPending)
	if pending != 2 {
		t.Errorf("pending = %v, want 2", pending)
	}

	m.RecordApprovalDecision("APPROVED")
	pending = testutil.ToFloat64(m.ApprovalsPending)
	if pending != 1 {
		t.Errorf("pending after decision = %v, want 1", pending)
	}

	approved := testutil.ToFloat64(m.ApprovalDecisionsTotal.WithLabelValues("APPROVED"))
	if approved != 1 {
		t.Errorf("approvals = %v, want 1", approved)
	}
}

func TestRecordNotification(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.RecordNotification("approval_requested", nil)
	m.RecordNotification("approval_requested", nil)
	m.RecordNotification("approval_requested", errors.New("dial tcp: refused"))

	sent := testutil.ToFloat64(m.NotificationsSentTotal.WithLabelValues("approval_requested"))
	if sent != 2 {
		t.Errorf("sent = %v, want 2", sent)
	}
	failed := testutil.ToFloat64(m.NotificationsFailedTotal.WithLabelValues("approval_requested"))
	if failed != 1 {
		t.Errorf("failed = %v, want 1", failed)
	}
}

func TestRecordStoreQuery(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.RecordStoreQuery("traveler.list", 5*time.Millisecond)
	m.RecordStoreQuery("traveler.list", 10*time.Millisecond)

	if count := testutil.CollectAndCount(m.StoreQueryDuration); count == 0 {
		t.Error("expected store query histogram to have observations")
	}
}

func TestMetricsMiddleware_recordsRequestMetrics(t *testing.T) {
	m, _ := newTestMetrics(t)

	// Build a chi router so route patterns are captured.
	r := chi.NewRouter()
	r.Use(m.MetricsMiddleware)
	r.Get("/api/travelers/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	req := httptest.NewRequest(http.MethodGet, "/api/travelers/42", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	// Metrics should use the route pattern, not the actual path.
	val := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/api/travelers/{id}", "200"))
	if val != 1 {
		t.Errorf("requests total = %v, want 1", val)
	}
}

func TestMetricsMiddleware_capturesResponseSize(t *testing.T) {
	m, _ := newTestMetrics(t)

	r := chi.NewRouter()
	r.Use(m.MetricsMiddleware)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("healthy"))
	})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if count := testutil.CollectAndCount(m.HTTPResponseSizeBytes); count == 0 {
		t.Error("expected response size histogram to have observations")
	}
}

func TestMetricsMiddleware_capturesStatusCode(t *testing.T) {
	m, _ := newTestMetrics(t)

	r := chi.NewRouter()
	r.Use(m.MetricsMiddleware)
	r.Post("/api/travelers", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/travelers", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	val := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("POST", "/api/travelers", "400"))
	if val != 1 {
		t.Errorf("400 requests = %v, want 1", val)
	}
}

func TestMetricsMiddleware_fallsBackToPath(t *testing.T) {
	m, _ := newTestMetrics(t)

	// Use middleware directly without chi router.
	handler := m.MetricsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/raw/path", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	// Without chi, should fall back to raw path.
	val := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/raw/path", "200"))
	if val != 1 {
		t.Errorf("raw path requests = %v, want 1", val)
	}
}

func TestHandler_servesMetrics(t *testing.T) {
	handler := Handler()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body := rec.Body.String()
	// Prometheus handler should return at least go runtime metrics.
	if !strings.Contains(body, "go_") {
		t.Error("metrics response should contain go runtime metrics")
	}
}

func TestHistogramBuckets(t *testing.T) {
	if len(httpDurationBuckets) != 11 {
		t.Errorf("httpDurationBuckets length = %d, want 11", len(httpDurationBuckets))
	}
	if len(storeDurationBuckets) != 9 {
		t.Errorf("storeDurationBuckets length = %d, want 9", len(storeDurationBuckets))
	}
	if len(bodySizeBuckets) != 5 {
		t.Errorf("bodySizeBuckets length = %d, want 5", len(bodySizeBuckets))
	}

	for i := 1; i < len(httpDurationBuckets); i++ {
		if httpDurationBuckets[i] <= httpDurationBuckets[i-1] {
			t.Errorf("httpDurationBuckets not sorted at index %d", i)
		}
	}
}
