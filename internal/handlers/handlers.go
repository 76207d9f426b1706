package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"autovault/internal/services"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves the REST API on top of the services.
type Handler struct {
	accounts *services.AccountService
	catalog  *services.CatalogService
	uploads  *services.UploadService
	checkout *services.CheckoutService
	store    Pinger
	log      *zap.Logger
	// secureCookies marks the session cookie Secure; off for plain-http development.
	secureCookies bool
	sessionTTL    time.Duration
}

type Config struct {
	Accounts      *services.AccountService
	Catalog       *services.CatalogService
	Uploads       *services.UploadService
	Checkout      *services.CheckoutService
	Store         Pinger
	SecureCookies bool
	SessionTTL    time.Duration
}

func New(cfg Config, log *zap.Logger) *Handler {
	return &Handler{
		accounts:      cfg.Accounts,
		catalog:       cfg.Catalog,
		uploads:       cfg.Uploads,
		checkout:      cfg.Checkout,
		store:         cfg.Store,
		log:           log,
		secureCookies: cfg.SecureCookies,
		sessionTTL:    cfg.SessionTTL,
	}
}

// Root answers the bare index with a banner.
func (h *Handler) Root(c *gin.Context) {
	c.String(http.StatusOK, "AutoVault API is running...")
}

// Healthz pings the store.
func (h *Handler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()
	if err := h.store.Ping(ctx); err != nil {
		h.log.Warn("health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "offlinePayments": h.checkout.Offline()})
}
