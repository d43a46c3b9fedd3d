package config

import (
	"testing"
	"time"
)

func TestLoad_valid(t *testing.T) {
	cfg, err := Load("testdata/valid.yaml")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("Server.ReadTimeout = %v, want 15s", cfg.Server.ReadTimeout)
	}
	if cfg.Identity.Issuer != "https://auth.example.com" {
		t.Errorf("Identity.Issuer = %q", cfg.Identity.Issuer)
	}
	if cfg.Identity.Audience != "traveler-api" {
		t.Errorf("Identity.Audience = %q", cfg.Identity.Audience)
	}
	if cfg.Store.Driver != "memory" {
		t.Errorf("Store.Driver = %q, want memory", cfg.Store.Driver)
	}
	if len(cfg.Approvals.Allowlist) != 2 {
		t.Errorf("Approvals.Allowlist = %v, want 2 entries", cfg.Approvals.Allowlist)
	}
	if !cfg.Idempotency.Enabled {
		t.Error("Idempotency.Enabled = false, want true")
	}
	if cfg.Idempotency.DefaultTTL != time.Hour {
		t.Errorf("Idempotency.DefaultTTL = %v, want 1h", cfg.Idempotency.DefaultTTL)
	}
	if cfg.Observability.LogLevel != "debug" {
		t.Errorf("Observability.LogLevel = %q, want debug", cfg.Observability.LogLevel)
	}
}

func TestLoad_keeps_defaults_for_unset_fields(t *testing.T) {
	cfg, err := Load("testdata/valid.yaml")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// valid.yaml does not touch these; the defaults must survive the merge.
	if cfg.Server.ShutdownTimeout != 30*time.Second {
		t.Errorf("Server.ShutdownTimeout = %v, want 30s", cfg.Server.ShutdownTimeout)
	}
	if cfg.Identity.SecretEnv != "TRAVELER_JWT_SECRET" {
		t.Errorf("Identity.SecretEnv = %q", cfg.Identity.SecretEnv)
	}
	if cfg.Notifier.SMTP.Port != 587 {
		t.Errorf("Notifier.SMTP.Port = %d, want 587", cfg.Notifier.SMTP.Port)
	}
}

func TestLoad_missing_file(t *testing.T) {
	_, err := Load("testdata/nonexistent.yaml")
	if err == nil {
		t.Fatal("Load() with missing file should return error")
	}
}

func TestLoad_missing_identity(t *testing.T) {
	_, err := Load("testdata/missing_identity.yaml")
	if err == nil {
		t.Fatal("Load() with missing identity should return error")
	}
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if cfg.Server.Port != 8080 {
		t.Errorf("default Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Store.Driver != "postgres" {
		t.Errorf("default Store.Driver = %q, want postgres", cfg.Store.Driver)
	}
	if cfg.Idempotency.DefaultTTL != 24*time.Hour {
		t.Errorf("default Idempotency.DefaultTTL = %v, want 24h", cfg.Idempotency.DefaultTTL)
	}
	if cfg.Observability.LogLevel != "info" {
		t.Errorf("default LogLevel = %q, want info", cfg.Observability.LogLevel)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TRAVELER_SERVER_PORT", "3000")
	t.Setenv("TRAVELER_IDENTITY_ISSUER", "https://env-issuer.com")
	t.Setenv("TRAVELER_IDENTITY_AUDIENCE", "env-audience")
	t.Setenv("TRAVELER_OBSERVABILITY_LOG_LEVEL", "error")
	t.Setenv("TRAVELER_APPROVALS_ALLOWLIST", "alice, bob")

	cfg, err := Load("testdata/valid.yaml")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 3000 {
		t.Errorf("Server.Port = %d, want 3000 (env override)", cfg.Server.Port)
	}
	if cfg.Identity.Issuer != "https://env-issuer.com" {
		t.Errorf("Identity.Issuer = %q, want env override", cfg.Identity.Issuer)
	}
	if cfg.Identity.Audience != "env-audience" {
		t.Errorf("Identity.Audience = %q, want env override", cfg.Identity.Audience)
	}
	if cfg.Observability.LogLevel != "error" {
		t.Errorf("LogLevel = %q, want error (env override)", cfg.Observability.LogLevel)
	}
	if len(cfg.Approvals.Allowlist) != 2 || cfg.Approvals.Allowlist[1] != "bob" {
		t.Errorf("Approvals.Allowlist = %v, want [alice bob]", cfg.Approvals.Allowlist)
	}
}

func TestValidate_invalid_port(t *testing.T) {
	cfg := Defaults()
	cfg.Identity.Issuer = "https://auth.example.com"
	cfg.Server.Port = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() with port 0 should return error")
	}
}

func TestValidate_unknown_store_driver(t *testing.T) {
	cfg := Defaults()
	cfg.Identity.Issuer = "https://auth.example.com"
	cfg.Store.Driver = "sqlite"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() with unknown store driver should return error")
	}
}

func TestValidate_smtp_requires_host(t *testing.T) {
	cfg := Defaults()
	cfg.Identity.Issuer = "https://auth.example.com"
	cfg.Notifier.Driver = "smtp"
	cfg.Notifier.SMTP.Host = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate() with smtp driver and no host should return error")
	}
}

func TestLoad_env_priority_over_file(t *testing.T) {
	// File sets port 9090, env sets 5555; env wins.
	t.Setenv("TRAVELER_SERVER_PORT", "5555")

	cfg, err := Load("testdata/valid.yaml")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 5555 {
		t.Errorf("Server.Port = %d, want 5555 (env override beats file)", cfg.Server.Port)
	}
}
