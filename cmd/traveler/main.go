// Package main is the entry point for the traveler workflow server.
// It wires all dependencies together and starts the HTTP server.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/nexusmfg/traveler/internal/approval"
	"github.com/nexusmfg/traveler/internal/approver"
	"github.com/nexusmfg/traveler/internal/audit"
	"github.com/nexusmfg/traveler/internal/config"
	"github.com/nexusmfg/traveler/internal/idempotency"
	"github.com/nexusmfg/traveler/internal/labor"
	"github.com/nexusmfg/traveler/internal/notify"
	"github.com/nexusmfg/traveler/internal/observability"
	"github.com/nexusmfg/traveler/internal/transport"
	"github.com/nexusmfg/traveler/internal/traveler"
	"github.com/nexusmfg/traveler/internal/user"
	"github.com/nexusmfg/traveler/internal/workorder"
)

// Build-time variables set via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.commit=abc1234"
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run())
}

// stores groups the persistence layer behind one struct so the driver
// switch happens in a single place.
type stores struct {
	travelers  traveler.Store
	sequencer  traveler.Sequencer
	users      user.Store
	approvals  approval.Store
	labor      labor.Store
	auditLog   audit.Store
	workOrders workorder.Store
	close      func()

	travelerCheck observability.HealthChecker
	userCheck     observability.HealthChecker
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return 1
	}

	observability.Version = version
	observability.Commit = commit

	logger, err := observability.NewLogger(cfg.Observability)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		return 1
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	tracingShutdown, err := observability.InitTracing(ctx, cfg.Observability.Tracing, "traveler", version)
	if err != nil {
		logger.Fatal("tracing initialization failed", zap.Error(err))
		return 1
	}

	var metrics *observability.Metrics
	if cfg.Observability.Metrics.Enabled {
		metrics = observability.InitMetrics(prometheus.DefaultRegisterer)
	}

	// Persistence.
	st, err := buildStores(ctx, cfg.Store, logger)
	if err != nil {
		logger.Fatal("store initialization failed", zap.Error(err))
		return 1
	}
	if st.close != nil {
		defer st.close()
	}

	// Step template catalog.
	catalog, err := traveler.LoadCatalog(cfg.Templates.Path)
	if err != nil {
		logger.Fatal("template catalog load failed", zap.Error(err))
		return 1
	}
	logger.Info("template catalog loaded", zap.Int("traveler_types", len(catalog.Types())))

	// Approver policy and notification delivery.
	policy := approver.New(cfg.Approvals.Allowlist)
	notifier, err := buildNotifier(cfg.Notifier, st.users, logger)
	if err != nil {
		logger.Fatal("notifier initialization failed", zap.Error(err))
		return 1
	}
	defer notifier.Close()

	// Idempotency store.
	idemStore, idemCheck, idemCloser := buildIdempotencyStore(cfg.Idempotency, logger)
	if idemCloser != nil {
		defer idemCloser()
	}

	// Services.
	auditor := audit.NewRecorder(st.auditLog)
	travelerSvc := traveler.NewService(st.travelers, st.sequencer, catalog, policy, auditor, notifier, st.workOrders, logger)
	approvalSvc := approval.NewService(st.approvals, st.travelers, policy, auditor, notifier, logger)
	travelerSvc.SetApprovals(approvalSvc)
	approvalSvc.SetApplier(travelerSvc)
	travelerSvc.AddCascade(st.labor)
	travelerSvc.AddCascade(st.approvals)
	laborSvc := labor.NewService(st.labor, st.travelers, auditor, logger)
	userSvc := user.NewService(st.users)

	// Authentication.
	secret := []byte(os.Getenv(cfg.Identity.SecretEnv))
	authenticator, err := transport.NewAuthenticator(cfg.Identity, secret, st.users, logger)
	if err != nil {
		logger.Fatal("authenticator initialization failed", zap.Error(err),
			zap.String("secret_env", cfg.Identity.SecretEnv))
		return 1
	}

	readiness := observability.ReadinessChecks{
		TemplatesLoaded:  func() bool { return len(catalog.Types()) > 0 },
		TravelerStore:    st.travelerCheck,
		UserStore:        st.userCheck,
		IdempotencyStore: idemCheck,
	}

	router := transport.NewRouter(transport.Dependencies{
		Config:       cfg,
		Logger:       logger,
		Travelers:    travelerSvc,
		Approvals:    approvalSvc,
		Labor:        laborSvc,
		Users:        userSvc,
		WorkOrders:   st.workOrders,
		Catalog:      catalog,
		Idempotency:  idemStore,
		Authenticate: authenticator.Middleware,
		Metrics:      metrics,
		Readiness:    readiness,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	logger.Info("server started",
		zap.Int("port", cfg.Server.Port),
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("store_driver", cfg.Store.Driver),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown initiated")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		return 1
	}

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout == 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	// Stop accepting new connections and drain in-flight requests.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	if err := tracingShutdown(shutdownCtx); err != nil {
		logger.Error("tracing shutdown error", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return 0
}

// buildStores creates the persistence layer for the configured driver.
func buildStores(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (*stores, error) {
	switch cfg.Driver {
	case "memory":
		logger.Info("using in-memory stores")
		return &stores{
			travelers:  traveler.NewMemoryStore(),
			sequencer:  traveler.NewMemorySequencer(),
			users:      user.NewMemoryStore(),
			approvals:  approval.NewMemoryStore(),
			labor:      labor.NewMemoryStore(),
			auditLog:   audit.NewMemoryStore(),
			workOrders: workorder.NewMemoryStore(),
		}, nil

	case "postgres", "":
		dsn := os.Getenv(cfg.DSNEnv)
		if dsn == "" {
			return nil, fmt.Errorf("store: %s environment variable not set", cfg.DSNEnv)
		}

		poolCfg, err := pgxpool.ParseConfig(dsn)
		if err != nil {
			return nil, fmt.Errorf("store: parse DSN: %w", err)
		}
		if cfg.MaxOpenConns > 0 {
			poolCfg.MaxConns = int32(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			poolCfg.MinConns = int32(cfg.MaxIdleConns)
		}
		if cfg.ConnMaxLifetime > 0 {
			poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
		}

		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, fmt.Errorf("store: connect: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("store: ping: %w", err)
		}

		travelerStore := traveler.NewPgStore(pool)
		userStore := user.NewPgStore(pool)
		return &stores{
			travelers:     travelerStore,
			sequencer:     traveler.NewPgSequencer(pool),
			users:         userStore,
			approvals:     approval.NewPgStore(pool),
			labor:         labor.NewPgStore(pool),
			auditLog:      audit.NewPgStore(pool),
			workOrders:    workorder.NewPgStore(pool),
			close:         pool.Close,
			travelerCheck: travelerStore,
			userCheck:     userStore,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported store driver: %q", cfg.Driver)
	}
}

// buildNotifier creates the notification dispatcher for the configured
// delivery driver.
func buildNotifier(cfg config.NotifierConfig, users user.Store, logger *zap.Logger) (*notify.Dispatcher, error) {
	switch cfg.Driver {
	case "smtp":
		username := os.Getenv(cfg.SMTP.UsernameEnv)
		password := os.Getenv(cfg.SMTP.PasswordEnv)
		if cfg.SMTP.Host == "" {
			return nil, fmt.Errorf("notifier: smtp host not configured")
		}

		// Fallback recipients when an event names none: every account
		// flagged as an approver.
		approverEmails := func() []string {
			all, err := users.List(context.Background())
			if err != nil {
				logger.Warn("notifier: approver lookup failed", zap.Error(err))
				return nil
			}
			var emails []string
			for _, u := range all {
				if u.IsApprover && u.IsActive && u.Email != "" {
					emails = append(emails, u.Email)
				}
			}
			return emails
		}

		sender := notify.NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port, username, password, cfg.SMTP.From, cfg.BaseURL, approverEmails)
		return notify.NewDispatcher(sender, logger, cfg.SendTimeout), nil

	case "log", "":
		return notify.NewDispatcher(notify.NewLogSender(logger), logger, cfg.SendTimeout), nil

	default:
		return nil, fmt.Errorf("unsupported notifier driver: %q", cfg.Driver)
	}
}

// buildIdempotencyStore creates the idempotency store based on config.
// Returns nil when the feature is disabled.
func buildIdempotencyStore(cfg config.IdempotencyConfig, logger *zap.Logger) (idempotency.Store, observability.HealthChecker, func()) {
	if !cfg.Enabled {
		return nil, nil, nil
	}

	switch cfg.Driver {
	case "redis":
		addr := os.Getenv(cfg.AddrEnv)
		if addr == "" {
			logger.Warn("idempotency: redis address not configured, using in-memory store",
				zap.String("addr_env", cfg.AddrEnv))
			return idempotency.NewMemoryStore(), nil, nil
		}
		client := redis.NewClient(&redis.Options{Addr: addr, DB: cfg.DB})
		store := idempotency.NewRedisStore(client)
		return store, store, func() { _ = client.Close() }

	default:
		logger.Info("using in-memory idempotency store")
		return idempotency.NewMemoryStore(), nil, nil
	}
}
