package handlers

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"autovault/internal/middleware"
	"autovault/internal/models"
	"autovault/internal/services"
)

type accountResponse struct {
	ID      string `json:"_id"`
	Name    string `json:"name"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"isAdmin"`
	Token   string `json:"token,omitempty"`
}

type profileResponse struct {
	ID                string         `json:"_id"`
	Name              string         `json:"name"`
	Email             string         `json:"email"`
	IsAdmin           bool           `json:"isAdmin"`
	PurchasedImages   []models.Image `json:"purchasedImages"`
	PurchasedImageIDs []string       `json:"purchasedImageIds"`
}

func newAccountResponse(a *models.Account, token string) accountResponse {
	return accountResponse{ID: a.ID, Name: a.Name, Email: a.Email, IsAdmin: a.IsAdmin, Token: token}
}

// Register handles POST /api/auth/register.
func (h *Handler) Register(c *gin.Context) {
	var in services.RegisterInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	sess, err := h.accounts.Register(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	h.rememberToken(c, sess.Token)
	c.JSON(http.StatusCreated, newAccountResponse(sess.Account, sess.Token))
}

// Login handles POST /api/auth/login.
func (h *Handler) Login(c *gin.Context) {
	var in services.LoginInput
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	sess, err := h.accounts.Login(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	h.rememberToken(c, sess.Token)
	c.JSON(http.StatusOK, newAccountResponse(sess.Account, sess.Token))
}

// Logout handles POST /api/auth/logout by clearing the cookie session.
// Bearer tokens stay valid until they expire.
func (h *Handler) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{Path: "/", MaxAge: -1, HttpOnly: true})
	if err := session.Save(); err != nil {
		h.log.Warn("failed to clear session", zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// Profile handles GET /api/auth/profile.
func (h *Handler) Profile(c *gin.Context) {
	profile, err := h.accounts.Profile(c.Request.Context(), middleware.AccountID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	a := profile.Account
	c.JSON(http.StatusOK, profileResponse{
		ID:                a.ID,
		Name:              a.Name,
		Email:             a.Email,
		IsAdmin:           a.IsAdmin,
		PurchasedImages:   profile.PurchasedImages,
		PurchasedImageIDs: a.PurchasedImages,
	})
}

// rememberToken keeps the token in the cookie session for browser clients.
func (h *Handler) rememberToken(c *gin.Context, token string) {
	session := sessions.Default(c)
	session.Set(middleware.SessionTokenKey, token)
	session.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int(h.sessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	if err := session.Save(); err != nil {
		h.log.Warn("failed to save session", zap.Error(err))
	}
}
