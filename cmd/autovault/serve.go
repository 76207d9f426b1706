package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"autovault/internal/auth"
	"autovault/internal/blobstore"
	"autovault/internal/config"
	"autovault/internal/database"
	"autovault/internal/handlers"
	"autovault/internal/idempotency"
	"autovault/internal/metrics"
	"autovault/internal/payments"
	"autovault/internal/reporting"
	"autovault/internal/server"
	"autovault/internal/services"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, log)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	enabled, err := reporting.Init(cfg.Sentry)
	if err != nil {
		return err
	}
	if enabled {
		log.Info("sentry error reporting enabled", zap.String("environment", cfg.Sentry.Environment))
		defer reporting.Flush()
	}

	jwtSecret := secretOrGenerate(cfg.Auth.JWTSecret, "JWT_SECRET", log)
	sessionSecret := secretOrGenerate(cfg.Auth.SessionSecret, "SESSION_SECRET", log)

	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	blobs, err := blobstore.New(ctx, cfg.Storage, cfg.Server.PublicBaseURL, log)
	if err != nil {
		return err
	}

	m := metrics.New()
	timeout := cfg.Database.StoreTimeout

	checkoutCfg := services.CheckoutConfig{
		Verifier:    payments.NewStripeVerifier(cfg.Stripe.WebhookSecret),
		Claims:      webhookClaims(ctx, cfg, log),
		Metrics:     m,
		Reporter:    reporting.Capture,
		FrontendURL: cfg.Server.FrontendURL,
		Currency:    cfg.Stripe.Currency,
		Timeout:     timeout,
	}
	if cfg.Stripe.Live() {
		checkoutCfg.Checkout = payments.NewStripeCheckout(cfg.Stripe.SecretKey, log)
		log.Info("stripe checkout enabled", zap.String("currency", cfg.Stripe.Currency))
	} else {
		log.Warn("no stripe secret key configured, purchases are fulfilled offline")
	}

	accounts := services.NewAccountService(store, store, auth.NewTokenIssuer(jwtSecret, cfg.Auth.JWTTTL), timeout, log)
	maxUpload := cfg.Server.MaxUploadMB << 20

	h := handlers.New(handlers.Config{
		Accounts:      accounts,
		Catalog:       services.NewCatalogService(store, blobs, timeout, log),
		Uploads:       services.NewUploadService(blobs, maxUpload, log),
		Checkout:      services.NewCheckoutService(store, checkoutCfg, log),
		Store:         store,
		SecureCookies: cfg.Server.Production(),
		SessionTTL:    cfg.Auth.JWTTTL,
	}, log)

	uploadDir := ""
	if local, ok := blobs.(*blobstore.LocalStore); ok {
		uploadDir = local.Dir()
	}

	gin.SetMode(gin.ReleaseMode)
	router, err := server.NewRouter(server.RouterConfig{
		Handler:        h,
		Auth:           accounts,
		Metrics:        m,
		SessionSecret:  sessionSecret,
		FrontendURL:    cfg.Server.FrontendURL,
		UploadDir:      uploadDir,
		MaxUploadBytes: maxUpload,
	}, log)
	if err != nil {
		return err
	}

	return server.New(cfg.Server.Port, router, log).Run(ctx)
}

func openStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (database.Store, error) {
	if cfg.Database.Driver == "sqlite" && cfg.Database.URL != ":memory:" {
		if dir := filepath.Dir(cfg.Database.URL); dir != "." {
			if err := blobstore.EnsureDir(dir); err != nil {
				return nil, err
			}
		}
	}

	openCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	store, err := database.NewStore(openCtx, cfg.Database.Driver, cfg.Database.URL, cfg.Database.MongoName, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Database.Driver, err)
	}
	return store, nil
}

// webhookClaims falls back to the no-op claims when redis is absent or down;
// the order ledger still deduplicates by payment id.
func webhookClaims(ctx context.Context, cfg *config.Config, log *zap.Logger) idempotency.Claims {
	if cfg.Redis.Addr == "" {
		return idempotency.Noop{}
	}
	cl, err := idempotency.NewClient(ctx, cfg.Redis)
	if err != nil {
		log.Warn("redis unavailable, webhook claims disabled", zap.Error(err))
		return idempotency.Noop{}
	}
	log.Info("redis webhook claims enabled", zap.String("addr", cfg.Redis.Addr))
	return idempotency.NewRedisClaims("autovault:webhook", cl, idempotency.DefaultTTL)
}

func secretOrGenerate(value, name string, log *zap.Logger) string {
	if value != "" {
		return value
	}
	generated, err := services.GenerateSecureToken(32)
	if err != nil {
		log.Fatal("failed to generate secret", zap.String("name", name), zap.Error(err))
	}
	log.Warn("secret not set, generated an ephemeral one; sessions will not survive a restart", zap.String("name", name))
	return generated
}
