package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"autovault/internal/middleware"
)

// maxWebhookBytes caps a provider event body.
const maxWebhookBytes = 64 << 10

type checkoutRequest struct {
	ImageID string `json:"imageId"`
}

// CreateCheckoutSession handles POST /api/payments/create-checkout-session.
func (h *Handler) CreateCheckoutSession(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}

	session, err := h.checkout.InitiateCheckout(c.Request.Context(), middleware.AccountID(c), req.ImageID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// Webhook handles POST /api/payments/webhook. The body is read raw, before
// any decoding, because the signature covers the exact bytes.
func (h *Handler) Webhook(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBytes)
	payload, err := c.GetRawData()
	if err != nil {
		h.log.Warn("failed to read webhook body", zap.Error(err))
		badRequest(c, "unreadable body")
		return
	}

	outcome, err := h.checkout.HandleConfirmation(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	if !outcome.Acknowledge() {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true, "outcome": outcome})
}

// Orders handles GET /api/payments/orders.
func (h *Handler) Orders(c *gin.Context) {
	orders, err := h.checkout.ListOrders(c.Request.Context(), middleware.AccountID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}
