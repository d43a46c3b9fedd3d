// Package integration provides a reusable test harness for end-to-end
// testing of the traveler API server. It starts a full HTTP server with
// in-memory stores, the real bearer-token middleware, and a test JWT
// signer sharing the server's HS256 secret.
package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/nexusmfg/traveler/internal/approval"
	"github.com/nexusmfg/traveler/internal/approver"
	"github.com/nexusmfg/traveler/internal/audit"
	"github.com/nexusmfg/traveler/internal/config"
	"github.com/nexusmfg/traveler/internal/idempotency"
	"github.com/nexusmfg/traveler/internal/labor"
	"github.com/nexusmfg/traveler/internal/notify"
	"github.com/nexusmfg/traveler/internal/transport"
	"github.com/nexusmfg/traveler/internal/traveler"
	"github.com/nexusmfg/traveler/internal/user"
	"github.com/nexusmfg/traveler/internal/workorder"
	"github.com/nexusmfg/traveler/model"
)

// TestHarness encapsulates a fully wired server instance backed by
// in-memory stores for integration testing.
type TestHarness struct {
	t      *testing.T
	server *httptest.Server
	issuer *tokenIssuer

	// Internal components exposed for advanced test scenarios.
	Travelers *traveler.Service
	Approvals *approval.Service
	Labor     *labor.Service
	Users     user.Store
	AuditLog  *audit.MemoryStore

	cfg *config.Config
}

// HarnessOption configures the test harness.
type HarnessOption func(*harnessConfig)

type harnessConfig struct {
	allowlist      []string
	handlerTimeout time.Duration
	extraUsers     []model.User
}

// WithAllowlist names accounts that hold approval authority regardless of
// their is_approver flag.
func WithAllowlist(usernames ...string) HarnessOption {
	return func(c *harnessConfig) {
		c.allowlist = usernames
	}
}

// WithHandlerTimeout sets the per-request handler timeout.
func WithHandlerTimeout(d time.Duration) HarnessOption {
	return func(c *harnessConfig) {
		c.handlerTimeout = d
	}
}

// WithUser seeds an additional account before the server starts.
func WithUser(u model.User) HarnessOption {
	return func(c *harnessConfig) {
		c.extraUsers = append(c.extraUsers, u)
	}
}

// NewTestHarness creates and starts a full server instance. The server is
// automatically cleaned up when the test completes.
func NewTestHarness(t *testing.T, opts ...HarnessOption) *TestHarness {
	t.Helper()

	hc := &harnessConfig{
		handlerTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(hc)
	}

	h := &TestHarness{
		t:      t,
		issuer: newTokenIssuer(t),
	}

	logger := zap.NewNop()
	h.AuditLog = audit.NewMemoryStore()
	auditor := audit.NewRecorder(h.AuditLog)
	policy := approver.New(hc.allowlist)
	notifier := notify.NewDispatcher(notify.NewLogSender(logger), logger, 0)
	t.Cleanup(notifier.Close)

	travelerStore := traveler.NewMemoryStore()
	workOrders := workorder.NewMemoryStore()
	h.Travelers = traveler.NewService(
		travelerStore,
		traveler.NewMemorySequencer(),
		traveler.BuiltinCatalog(),
		policy,
		auditor,
		notifier,
		workOrders,
		logger,
	)
	approvalStore := approval.NewMemoryStore()
	h.Approvals = approval.NewService(approvalStore, travelerStore, policy, auditor, notifier, logger)
	h.Travelers.SetApprovals(h.Approvals)
	h.Approvals.SetApplier(h.Travelers)

	laborStore := labor.NewMemoryStore()
	h.Labor = labor.NewService(laborStore, travelerStore, auditor, logger)
	h.Travelers.AddCascade(laborStore)
	h.Travelers.AddCascade(approvalStore)

	h.Users = user.NewMemoryStore()
	seedUsers(t, h.Users, hc.extraUsers)

	h.cfg = config.Defaults()
	h.cfg.Server.HandlerTimeout = hc.handlerTimeout
	h.cfg.Server.CORS.AllowedOrigins = []string{"http://localhost:3000"}
	h.cfg.Identity.Issuer = h.issuer.Issuer()
	h.cfg.Identity.Audience = h.issuer.Audience()
	h.cfg.Observability.Metrics.Enabled = false

	authn, err := transport.NewAuthenticator(h.cfg.Identity, h.issuer.Secret(), h.Users, logger)
	if err != nil {
		t.Fatalf("build authenticator: %v", err)
	}

	router := transport.NewRouter(transport.Dependencies{
		Config:       h.cfg,
		Logger:       logger,
		Travelers:    h.Travelers,
		Approvals:    h.Approvals,
		Labor:        h.Labor,
		Users:        user.NewService(h.Users),
		WorkOrders:   workOrders,
		Idempotency:  idempotency.NewMemoryStore(),
		Authenticate: authn.Middleware,
	})

	h.server = httptest.NewServer(router)
	t.Cleanup(h.server.Close)

	return h
}

func seedUsers(t *testing.T, store user.Store, extra []model.User) {
	t.Helper()

	seed := []model.User{
		{Username: "ahall", Email: "ahall@nexusmfg.example.com", Role: model.RoleAdmin, IsApprover: true, IsActive: true},
		{Username: "msupervisor", Email: "msup@nexusmfg.example.com", Role: model.RoleSupervisor, IsApprover: true, IsActive: true},
		{Username: "jdoe", Email: "jdoe@nexusmfg.example.com", Role: model.RoleOperator, IsActive: true},
		{Username: "vwatch", Email: "vwatch@nexusmfg.example.com", Role: model.RoleViewer, IsActive: true},
		{Username: "ghost", Email: "ghost@nexusmfg.example.com", Role: model.RoleOperator, IsActive: false},
	}
	seed = append(seed, extra...)
	for _, u := range seed {
		if _, err := store.Create(context.Background(), u); err != nil {
			t.Fatalf("seed user %s: %v", u.Username, err)
		}
	}
}

// BaseURL returns the test server's base URL.
func (h *TestHarness) BaseURL() string {
	return h.server.URL
}

// GenerateToken creates a valid JWT token with the given claims.
func (h *TestHarness) GenerateToken(claims TestClaims) string {
	return h.issuer.GenerateToken(claims)
}

// GenerateExpiredToken creates a JWT that has already expired.
func (h *TestHarness) GenerateExpiredToken(claims TestClaims) string {
	return h.issuer.GenerateExpiredToken(claims)
}

// --- HTTP client helpers ---

// GET performs an authenticated GET request.
func (h *TestHarness) GET(path, token string) *http.Response {
	h.t.Helper()
	return h.doRequest("GET", path, nil, token, nil)
}

// GETWithHeaders performs an authenticated GET request with additional headers.
func (h *TestHarness) GETWithHeaders(path, token string, headers map[string]string) *http.Response {
	h.t.Helper()
	return h.doRequest("GET", path, nil, token, headers)
}

// POST performs an authenticated POST request with a JSON body.
func (h *TestHarness) POST(path string, body any, token string) *http.Response {
	h.t.Helper()
	return h.doRequest("POST", path, body, token, nil)
}

// POSTWithHeaders performs an authenticated POST request with additional headers.
func (h *TestHarness) POSTWithHeaders(path string, body any, token string, headers map[string]string) *http.Response {
	h.t.Helper()
	return h.doRequest("POST", path, body, token, headers)
}

// PUT performs an authenticated PUT request with a JSON body.
func (h *TestHarness) PUT(path string, body any, token string) *http.Response {
	h.t.Helper()
	return h.doRequest("PUT", path, body, token, nil)
}

// DELETE performs an authenticated DELETE request.
func (h *TestHarness) DELETE(path, token string) *http.Response {
	h.t.Helper()
	return h.doRequest("DELETE", path, nil, token, nil)
}

func (h *TestHarness) doRequest(method, path string, body any, token string, headers map[string]string) *http.Response {
	h.t.Helper()

	url := h.server.URL + path

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			h.t.Fatalf("marshal request body: %v", err)
		}
		bodyReader = strings.NewReader(string(data))
	}

	req, err := http.NewRequestWithContext(context.Background(), method, url, bodyReader)
	if err != nil {
		h.t.Fatalf("create request: %v", err)
	}

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	client := &http.Client{
		Timeout: 10 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	resp, err := client.Do(req)
	if err != nil {
		h.t.Fatalf("%s %s failed: %v", method, path, err)
	}
	return resp
}

// ParseJSON reads the response body and unmarshals it into the target.
func (h *TestHarness) ParseJSON(resp *http.Response, target any) {
	h.t.Helper()
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		h.t.Fatalf("read response body: %v", err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		h.t.Fatalf("unmarshal response body: %v\nbody: %s", err, string(data))
	}
}

// ReadBody reads and returns the response body as bytes.
func (h *TestHarness) ReadBody(resp *http.Response) []byte {
	h.t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		h.t.Fatalf("read response body: %v", err)
	}
	return data
}

// AssertStatus checks that the response has the expected status code.
func (h *TestHarness) AssertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Errorf("status = %d, want %d\nbody: %s", resp.StatusCode, expected, string(body))
	}
}

// AssertJSON checks that the response has the expected status and parses the body.
func (h *TestHarness) AssertJSON(t *testing.T, resp *http.Response, expected int, target any) {
	t.Helper()
	if resp.StatusCode != expected {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("status = %d, want %d\nbody: %s", resp.StatusCode, expected, string(body))
	}
	h.ParseJSON(resp, target)
}

// --- Default test claims ---

// AdminClaims returns TestClaims for the seeded administrator account.
func AdminClaims() TestClaims {
	return TestClaims{Username: "ahall"}
}

// SupervisorClaims returns TestClaims for the seeded approver supervisor.
func SupervisorClaims() TestClaims {
	return TestClaims{Username: "msupervisor"}
}

// OperatorClaims returns TestClaims for the seeded shop-floor operator.
func OperatorClaims() TestClaims {
	return TestClaims{Username: "jdoe"}
}

// ViewerClaims returns TestClaims for the seeded read-only account.
func ViewerClaims() TestClaims {
	return TestClaims{Username: "vwatch"}
}

// --- Fixtures ---

// TravelerFixture returns a creation payload for a typical PCB job.
func TravelerFixture(jobNumber string) map[string]any {
	return map[string]any{
		"job_number":    jobNumber,
		"traveler_type": "PCB",
		"part_number":   "PN-4410",
		"quantity":      250,
		"work_center":   "SMT-1",
		"priority":      "NORMAL",
		"process_steps": []map[string]any{
			{"step_number": 1, "operation": "Kitting", "is_required": true},
			{"step_number": 2, "operation": "Reflow", "is_required": true},
		},
	}
}

// FormatJSON converts a value to indented JSON for test output.
func FormatJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
