package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"autovault/internal/metrics"
	"autovault/internal/models"
	"autovault/internal/services"
)

type mockAuth struct {
	authenticate func(token string) (string, error)
	requireAdmin func(ctx context.Context, id string) (*models.Account, error)
}

func (m *mockAuth) Authenticate(token string) (string, error) {
	return m.authenticate(token)
}

func (m *mockAuth) RequireAdmin(ctx context.Context, id string) (*models.Account, error) {
	return m.requireAdmin(ctx, id)
}

func newAuth() *mockAuth {
	return &mockAuth{
		authenticate: func(token string) (string, error) {
			switch token {
			case "user-token":
				return "user-1", nil
			case "admin-token":
				return "admin-1", nil
			}
			return "", services.ErrUnauthorized
		},
		requireAdmin: func(_ context.Context, id string) (*models.Account, error) {
			switch id {
			case "admin-1":
				return &models.Account{ID: id, IsAdmin: true}, nil
			case "user-1":
				return nil, services.ErrForbidden
			}
			return nil, errors.New("store down")
		},
	}
}

func newRouter(auth Authenticator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(sessions.Sessions("autovault", cookie.NewStore([]byte("test-session-secret"))))

	r.GET("/login", func(c *gin.Context) {
		s := sessions.Default(c)
		s.Set(SessionTokenKey, c.Query("token"))
		_ = s.Save()
		c.Status(http.StatusNoContent)
	})
	protected := r.Group("/", AuthRequired(auth, zap.NewNop()))
	protected.GET("/me", func(c *gin.Context) {
		c.String(http.StatusOK, AccountID(c))
	})
	protected.GET("/admin", AdminRequired(auth), func(c *gin.Context) {
		c.String(http.StatusOK, "admin:"+AccountID(c))
	})
	return r
}

func TestAuthRequired(t *testing.T) {
	r := newRouter(newAuth())

	tests := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"bearer", "Bearer user-token", http.StatusOK, "user-1"},
		{"lowercase scheme", "bearer user-token", http.StatusOK, "user-1"},
		{"missing", "", http.StatusUnauthorized, ""},
		{"bad token", "Bearer nope", http.StatusUnauthorized, ""},
		{"wrong scheme", "Basic user-token", http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			r.ServeHTTP(w, req)

			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d", w.Code, tt.status)
			}
			if tt.body != "" && w.Body.String() != tt.body {
				t.Errorf("body = %q, want %q", w.Body.String(), tt.body)
			}
		})
	}
}

func TestAuthRequiredFallsBackToSessionCookie(t *testing.T) {
	r := newRouter(newAuth())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/login?token=user-token", nil))
	cookies := w.Result().Cookies()
	if len(cookies) == 0 {
		t.Fatal("login did not set a session cookie")
	}

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK || w.Body.String() != "user-1" {
		t.Errorf("status = %d body = %q", w.Code, w.Body.String())
	}
}

func TestAdminRequired(t *testing.T) {
	r := newRouter(newAuth())

	tests := []struct {
		token  string
		status int
	}{
		{"admin-token", http.StatusOK},
		{"user-token", http.StatusForbidden},
		{"", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/admin", nil)
		if tt.token != "" {
			req.Header.Set("Authorization", "Bearer "+tt.token)
		}
		r.ServeHTTP(w, req)
		if w.Code != tt.status {
			t.Errorf("token %q: status = %d, want %d", tt.token, w.Code, tt.status)
		}
	}
}

func TestRequestLoggerCountsRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := metrics.New()
	r := gin.New()
	r.Use(RequestLogger(zap.NewNop(), m))
	r.GET("/api/images/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 3; i++ {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/images/abc", nil))
	}
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	if v := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/api/images/:id", "GET", "200")); v != 3 {
		t.Errorf("route counter = %v, want 3", v)
	}
	if v := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("unmatched", "GET", "404")); v != 1 {
		t.Errorf("unmatched counter = %v, want 1", v)
	}
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Recovery(zap.NewNop()))
	r.GET("/boom", func(*gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS("http://shop.test/"))
	r.GET("/api/images", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/api/images", nil)
	req.Header.Set("Origin", "http://shop.test")
	req.Header.Set("Access-Control-Request-Method", "GET")
	r.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://shop.test" {
		t.Errorf("Allow-Origin = %q", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("Allow-Credentials = %q", got)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/images", nil)
	req.Header.Set("Origin", "http://evil.test")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("foreign origin status = %d, want 403", w.Code)
	}
}
