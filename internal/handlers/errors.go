package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"autovault/internal/services"
)

const healthTimeout = 2 * time.Second

// statusFor maps the service error taxonomy onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, services.ErrConflict), errors.Is(err, services.ErrAlreadyPurchased):
		return http.StatusConflict
	case errors.Is(err, services.ErrNotPremium):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrUnsupportedMediaType):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, services.ErrPaymentProvider):
		return http.StatusBadGateway
	case errors.Is(err, services.ErrInvalidSignature):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes {"message": ...} and, for validation failures, the field map.
func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	_ = c.Error(err)

	body := gin.H{"message": message(err)}
	var verr *services.ValidationError
	if errors.As(err, &verr) {
		body["message"] = "validation failed"
		body["errors"] = verr.Fields
	}
	c.AbortWithStatusJSON(status, body)
}

// message keeps client-facing text stable for the well-known errors.
func message(err error) string {
	for _, known := range []error{
		services.ErrNotPremium,
		services.ErrAlreadyPurchased,
		services.ErrForbidden,
		services.ErrUnsupportedMediaType,
	} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return err.Error()
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": msg})
}
