// Package config loads and validates application configuration from YAML files
// and environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root application configuration.
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Identity      IdentityConfig      `yaml:"identity"`
	Store         StoreConfig         `yaml:"store"`
	Approvals     ApprovalsConfig     `yaml:"approvals"`
	Templates     TemplatesConfig     `yaml:"templates"`
	Notifier      NotifierConfig      `yaml:"notifier"`
	Idempotency   IdempotencyConfig   `yaml:"idempotency"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig describes HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	HandlerTimeout  time.Duration `yaml:"handler_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	CORS            CORSConfig    `yaml:"cors"`
}

// CORSConfig describes Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
	MaxAge         int      `yaml:"max_age"`
}

// IdentityConfig describes JWT verification settings. Token issuance is the
// identity provider's concern; this service only verifies bearer tokens.
type IdentityConfig struct {
	Issuer     string   `yaml:"issuer"`
	Audience   string   `yaml:"audience"`
	SecretEnv  string   `yaml:"secret_env"`
	Algorithms []string `yaml:"algorithms"`
}

// StoreConfig describes persistence settings.
type StoreConfig struct {
	Driver          string        `yaml:"driver"` // "postgres" or "memory"
	DSNEnv          string        `yaml:"dsn_env"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// ApprovalsConfig describes the approver policy. The allowlist names
// accounts that hold approval authority regardless of their is_approver
// flag, so the workflow stays usable before user data is fully configured.
type ApprovalsConfig struct {
	Allowlist []string `yaml:"allowlist"`
}

// TemplatesConfig describes the manufacturing step template catalog.
type TemplatesConfig struct {
	Path string `yaml:"path"`
}

// NotifierConfig describes approval notification delivery. Delivery is
// best-effort; failures are logged and never fail the triggering operation.
type NotifierConfig struct {
	Driver      string        `yaml:"driver"` // "smtp" or "log"
	SMTP        SMTPConfig    `yaml:"smtp"`
	SendTimeout time.Duration `yaml:"send_timeout"`
	BaseURL     string        `yaml:"base_url"` // link target in notification bodies
}

// SMTPConfig describes the SMTP relay used by the email notifier.
type SMTPConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	UsernameEnv string `yaml:"username_env"`
	PasswordEnv string `yaml:"password_env"`
	From        string `yaml:"from"`
}

// IdempotencyConfig describes idempotency store settings for creation
// endpoints.
type IdempotencyConfig struct {
	Enabled    bool          `yaml:"enabled"`
	Driver     string        `yaml:"driver"` // "redis" or "memory"
	AddrEnv    string        `yaml:"addr_env"`
	DB         int           `yaml:"db"`
	DefaultTTL time.Duration `yaml:"default_ttl"`
}

// ObservabilityConfig describes logging, tracing, and metrics settings.
type ObservabilityConfig struct {
	LogLevel string        `yaml:"log_level"`
	Tracing  TracingConfig `yaml:"tracing"`
	Metrics  MetricsConfig `yaml:"metrics"`
}

// TracingConfig describes distributed tracing settings.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"sampling_rate"`
}

// MetricsConfig describes Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Defaults returns a Config with sensible default values.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			HandlerTimeout:  25 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			CORS: CORSConfig{
				AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
				AllowedHeaders: []string{"Authorization", "Content-Type",
					"X-Correlation-Id", "X-Idempotency-Key"},
				MaxAge: 86400,
			},
		},
		Identity: IdentityConfig{
			SecretEnv:  "TRAVELER_JWT_SECRET",
			Algorithms: []string{"HS256"},
		},
		Store: StoreConfig{
			Driver:          "postgres",
			DSNEnv:          "TRAVELER_DATABASE_URL",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Templates: TemplatesConfig{
			Path: "templates.yaml",
		},
		Notifier: NotifierConfig{
			Driver:      "log",
			SendTimeout: 10 * time.Second,
			SMTP: SMTPConfig{
				Port:        587,
				UsernameEnv: "TRAVELER_SMTP_USERNAME",
				PasswordEnv: "TRAVELER_SMTP_PASSWORD",
			},
		},
		Idempotency: IdempotencyConfig{
			Driver:     "memory",
			AddrEnv:    "TRAVELER_REDIS_ADDR",
			DefaultTTL: 24 * time.Hour,
		},
		Observability: ObservabilityConfig{
			LogLevel: "info",
			Tracing: TracingConfig{
				Exporter:     "otlp",
				SamplingRate: 0.1,
			},
			Metrics: MetricsConfig{
				Enabled: true,
				Path:    "/metrics",
			},
		},
	}
}

// Load reads a YAML config file, applies environment variable overrides,
// and validates required fields.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required fields are present and valid.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}
	if c.Identity.Issuer == "" {
		errs = append(errs, "identity.issuer is required")
	}
	if c.Identity.SecretEnv == "" {
		errs = append(errs, "identity.secret_env is required")
	}
	switch c.Store.Driver {
	case "postgres", "memory":
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q is not supported (postgres, memory)", c.Store.Driver))
	}
	switch c.Notifier.Driver {
	case "smtp", "log":
	default:
		errs = append(errs, fmt.Sprintf("notifier.driver %q is not supported (smtp, log)", c.Notifier.Driver))
	}
	if c.Notifier.Driver == "smtp" && c.Notifier.SMTP.Host == "" {
		errs = append(errs, "notifier.smtp.host is required when notifier.driver is smtp")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// applyEnvOverrides reads TRAVELER_* environment variables and overrides
// config values. Only the most commonly overridden fields are supported.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TRAVELER_SERVER_PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("TRAVELER_IDENTITY_ISSUER"); v != "" {
		cfg.Identity.Issuer = v
	}
	if v := os.Getenv("TRAVELER_IDENTITY_AUDIENCE"); v != "" {
		cfg.Identity.Audience = v
	}
	if v := os.Getenv("TRAVELER_STORE_DRIVER"); v != "" {
		cfg.Store.Driver = v
	}
	if v := os.Getenv("TRAVELER_OBSERVABILITY_LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}
	if v := os.Getenv("TRAVELER_APPROVALS_ALLOWLIST"); v != "" {
		cfg.Approvals.Allowlist = strings.Split(v, ",")
		for i := range cfg.Approvals.Allowlist {
			cfg.Approvals.Allowlist[i] = strings.TrimSpace(cfg.Approvals.Allowlist[i])
		}
	}
}
