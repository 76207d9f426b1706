package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"autovault/internal/blobstore"
	"autovault/internal/handlers"
	"autovault/internal/metrics"
	"autovault/internal/middleware"
)

const sessionName = "autovault_session"

// RouterConfig gathers what the route table needs.
type RouterConfig struct {
	Handler       *handlers.Handler
	Auth          middleware.Authenticator
	Metrics       *metrics.Metrics
	SessionSecret string
	FrontendURL   string
	// UploadDir is served under /uploads when set.
	UploadDir      string
	MaxUploadBytes int64
}

// NewRouter builds the gin engine with every route mounted.
func NewRouter(cfg RouterConfig, log *zap.Logger) (*gin.Engine, error) {
	router := gin.New()
	if err := router.SetTrustedProxies(nil); err != nil {
		return nil, fmt.Errorf("failed to set trusted proxies: %w", err)
	}
	router.MaxMultipartMemory = cfg.MaxUploadBytes

	router.Use(middleware.Recovery(log))
	router.Use(middleware.RequestLogger(log, cfg.Metrics))
	router.Use(middleware.CORS(cfg.FrontendURL))

	store := cookie.NewStore([]byte(cfg.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	router.Use(sessions.Sessions(sessionName, store))

	h := cfg.Handler
	authRequired := middleware.AuthRequired(cfg.Auth, log)
	adminRequired := middleware.AdminRequired(cfg.Auth)

	router.GET("/", h.Root)
	router.GET("/healthz", h.Healthz)
	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}
	if cfg.UploadDir != "" {
		router.Static(blobstore.URLPrefix, cfg.UploadDir)
	}

	api := router.Group("/api")

	auth := api.Group("/auth")
	{
		auth.POST("/register", h.Register)
		auth.POST("/login", h.Login)
		auth.POST("/logout", h.Logout)
		auth.GET("/profile", authRequired, h.Profile)
	}

	images := api.Group("/images")
	{
		images.GET("", h.ListImages)
		images.GET("/:id", h.GetImage)
		images.POST("", authRequired, adminRequired, h.CreateImage)
		images.PUT("/:id", authRequired, adminRequired, h.UpdateImage)
		images.DELETE("/:id", authRequired, adminRequired, h.DeleteImage)
	}

	api.POST("/upload", authRequired, adminRequired, h.Upload)

	pay := api.Group("/payments")
	{
		pay.POST("/create-checkout-session", authRequired, h.CreateCheckoutSession)
		pay.POST("/webhook", h.Webhook)
		pay.GET("/orders", authRequired, h.Orders)
	}

	return router, nil
}

// Server owns the http.Server around the router.
type Server struct {
	httpServer *http.Server
	log        *zap.Logger
}

func New(port int, handler http.Handler, log *zap.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       60 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
			MaxHeaderBytes:    1 << 20,
		},
		log: log,
	}
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server is running", zap.String("address", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	s.log.Info("server stopped")
	return nil
}
