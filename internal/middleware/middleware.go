package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"autovault/internal/models"
	"autovault/internal/services"
)

const (
	// SessionTokenKey is the cookie-session key the login handler stores the token under.
	SessionTokenKey = "token"

	accountIDKey = "accountID"
	accountKey   = "account"
)

// Authenticator is the part of the account service the middleware needs.
type Authenticator interface {
	Authenticate(token string) (string, error)
	RequireAdmin(ctx context.Context, accountID string) (*models.Account, error)
}

// AuthRequired accepts a bearer token or, failing that, the token kept in the
// cookie session. The account id is stored in the gin context.
func AuthRequired(auth Authenticator, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			if v, ok := sessions.Default(c).Get(SessionTokenKey).(string); ok {
				token = v
			}
		}
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Not authorized, no token"})
			return
		}

		accountID, err := auth.Authenticate(token)
		if err != nil {
			log.Debug("token rejected", zap.String("path", c.Request.URL.Path), zap.String("ip", c.ClientIP()), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Not authorized, token failed"})
			return
		}

		c.Set(accountIDKey, accountID)
		c.Next()
	}
}

// AdminRequired must run after AuthRequired.
func AdminRequired(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		account, err := auth.RequireAdmin(c.Request.Context(), AccountID(c))
		switch {
		case err == nil:
			c.Set(accountKey, account)
			c.Next()
		case errors.Is(err, services.ErrForbidden):
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "Not authorized as an admin"})
		case errors.Is(err, services.ErrUnauthorized):
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Not authorized"})
		default:
			_ = c.Error(err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": err.Error()})
		}
	}
}

// AccountID returns the id AuthRequired stored, or "".
func AccountID(c *gin.Context) string {
	return c.GetString(accountIDKey)
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
