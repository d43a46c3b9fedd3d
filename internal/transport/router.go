package transport

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/nexusmfg/traveler/internal/approval"
	"github.com/nexusmfg/traveler/internal/config"
	"github.com/nexusmfg/traveler/internal/idempotency"
	"github.com/nexusmfg/traveler/internal/labor"
	"github.com/nexusmfg/traveler/internal/observability"
	"github.com/nexusmfg/traveler/internal/traveler"
	"github.com/nexusmfg/traveler/internal/user"
	"github.com/nexusmfg/traveler/internal/workorder"
)

// Dependencies holds all injected dependencies for the HTTP transport layer.
type Dependencies struct {
	Config *config.Config
	Logger *zap.Logger

	Travelers  *traveler.Service
	Approvals  *approval.Service
	Labor      *labor.Service
	Users      *user.Service
	WorkOrders workorder.Store
	Catalog    *traveler.Catalog

	Idempotency idempotency.Store

	// Authenticate verifies bearer tokens; nil disables authentication
	// (tests only).
	Authenticate func(http.Handler) http.Handler

	Metrics   *observability.Metrics
	Readiness observability.ReadinessChecks
}

// NewRouter creates a chi.Router with the full middleware pipeline and all
// route registrations. Health, readiness, and metrics endpoints bypass the
// authentication middleware.
func NewRouter(deps Dependencies) chi.Router {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	catalog := deps.Catalog
	if catalog == nil {
		catalog = traveler.BuiltinCatalog()
	}

	r := chi.NewRouter()

	// Global middleware: applied to all routes including health.
	r.Use(Recovery(logger))
	r.Use(CORS(deps.Config.Server.CORS))
	r.Use(RequestID)
	r.Use(SecurityHeaders)
	if deps.Config.Observability.Tracing.Enabled {
		r.Use(observability.TracingMiddleware)
	}
	if deps.Metrics != nil {
		r.Use(deps.Metrics.MetricsMiddleware)
	}

	// Public routes.
	r.Get("/healthz", observability.HandleHealth())
	r.Get("/readyz", observability.HandleReady(deps.Readiness))
	if deps.Config.Observability.Metrics.Enabled {
		path := deps.Config.Observability.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		r.Method(http.MethodGet, path, observability.Handler())
	}

	// Authenticated routes.
	auth := deps.Authenticate
	if auth == nil {
		auth = func(next http.Handler) http.Handler { return next }
	}

	idemTTL := deps.Config.Idempotency.DefaultTTL
	if idemTTL <= 0 {
		idemTTL = 24 * time.Hour
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(auth)
		r.Use(HandlerTimeout(deps.Config.Server.HandlerTimeout))
		r.Use(RequestLogging(logger))

		r.Route("/travelers", func(r chi.Router) {
			r.Post("/", handleCreateTraveler(deps.Travelers, deps.Idempotency, idemTTL, logger))
			r.Get("/", handleListTravelers(deps.Travelers))
			r.Get("/{id}", handleGetTraveler(deps.Travelers))
			r.Put("/{id}", handleUpdateTraveler(deps.Travelers))
			r.Delete("/{id}", handleDeleteTraveler(deps.Travelers))
			r.Post("/{id}/status", handleTransitionStatus(deps.Travelers))
			r.Post("/{id}/steps/{stepID}/complete", handleCompleteStep(deps.Travelers))
			r.Post("/{id}/manual-steps", handleAddManualStep(deps.Travelers))
			r.Get("/{id}/history", handleTravelerHistory(deps.Travelers))
			r.Get("/{id}/labor", handleTravelerLabor(deps.Labor))
			r.Get("/{id}/approvals", handleTravelerApprovals(deps.Approvals))
		})

		r.Route("/approvals", func(r chi.Router) {
			r.Post("/", handleRequestApproval(deps.Approvals))
			r.Get("/", handleListPendingApprovals(deps.Approvals))
			r.Get("/mine", handleListMyApprovals(deps.Approvals))
			r.Post("/{id}/approve", handleApprove(deps.Approvals))
			r.Post("/{id}/reject", handleReject(deps.Approvals))
		})

		r.Route("/labor", func(r chi.Router) {
			r.Post("/", handleStartLabor(deps.Labor))
			r.Put("/{id}", handleUpdateLabor(deps.Labor))
			r.Get("/active", handleActiveLabor(deps.Labor))
			r.Get("/mine", handleMyLabor(deps.Labor))
			r.Get("/summary", handleLaborSummary(deps.Labor))
		})

		r.Route("/users", func(r chi.Router) {
			r.Post("/", handleCreateUser(deps.Users))
			r.Get("/", handleListUsers(deps.Users))
			r.Get("/me", handleCurrentUser(deps.Users))
			r.Get("/{id}", handleGetUser(deps.Users))
			r.Put("/{id}", handleUpdateUser(deps.Users))
		})

		r.Get("/manufacturing-steps/{type}", handleManufacturingSteps(catalog))

		r.Route("/work-orders", func(r chi.Router) {
			r.Get("/", handleListWorkOrders(deps.WorkOrders))
			r.Get("/{number}", handleGetWorkOrder(deps.WorkOrders))
		})
	})

	return r
}
