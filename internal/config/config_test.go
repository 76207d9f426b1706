package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Server.Port != 5000 {
		t.Errorf("expected default port 5000, got %d", cfg.Server.Port)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("expected sqlite driver, got %q", cfg.Database.Driver)
	}
	if cfg.Stripe.Live() {
		t.Errorf("expected placeholder stripe key to select offline checkout")
	}
	if cfg.Auth.JWTTTL != 720*time.Hour {
		t.Errorf("expected 720h token ttl, got %v", cfg.Auth.JWTTTL)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "8081")
	t.Setenv("FRONTEND_URL", "https://shop.example.com/")
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_real")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "whsec_123")
	t.Setenv("STORE_TIMEOUT", "2s")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Server.Port != 8081 {
		t.Errorf("expected port 8081, got %d", cfg.Server.Port)
	}
	if cfg.Server.FrontendURL != "https://shop.example.com" {
		t.Errorf("expected trailing slash trimmed, got %q", cfg.Server.FrontendURL)
	}
	if !cfg.Stripe.Live() {
		t.Errorf("expected live stripe mode")
	}
	if cfg.Database.StoreTimeout != 2*time.Second {
		t.Errorf("expected 2s store timeout, got %v", cfg.Database.StoreTimeout)
	}
}

func TestLoad_LiveStripeRequiresWebhookSecret(t *testing.T) {
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_real")
	t.Setenv("STRIPE_WEBHOOK_SECRET", "")
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error when webhook secret is missing")
	}
}

func TestLoad_JWTSecretRequiredOutsideDevelopment(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("JWT_SECRET", "")
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error when JWT_SECRET is missing in production")
	}

	t.Setenv("JWT_SECRET", "prod-secret")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if !cfg.Server.Production() || cfg.Server.Development() {
		t.Errorf("environment flags = production %v, development %v", cfg.Server.Production(), cfg.Server.Development())
	}
	if cfg.Sentry.Environment != "production" {
		t.Errorf("expected sentry environment to follow ENVIRONMENT, got %q", cfg.Sentry.Environment)
	}

	t.Setenv("ENVIRONMENT", "Development")
	t.Setenv("JWT_SECRET", "")
	cfg, err = Load("")
	if err != nil {
		t.Fatalf("Load error in development: %v", err)
	}
	if cfg.Server.Production() {
		t.Errorf("development must not require secure cookies")
	}
}

func TestLoad_RejectsUnknownDriver(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "oracle")
	if _, err := Load(""); err == nil {
		t.Fatalf("expected error for unknown database driver")
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "autovault.yaml")
	content := "PORT: 7000\nCURRENCY: EUR\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Server.Port != 7000 {
		t.Errorf("expected port from file, got %d", cfg.Server.Port)
	}
	if cfg.Stripe.Currency != "eur" {
		t.Errorf("expected lowercased currency, got %q", cfg.Stripe.Currency)
	}
}
