package handlers

import (
	"errors"
	"io"
	"net/http"

	"botplatform_backend/internal/logger"
	"botplatform_backend/internal/payment"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type createPaymentRequest struct {
	ModuleID      int64           `json:"module_id" binding:"required"`
	BotID         int64           `json:"bot_id" binding:"required"`
	MarkupPercent decimal.Decimal `json:"markup_percent"`
}

// CreatePayment starts a module purchase and returns the provider intent the
// client confirms on its side. The transaction stays pending until the
// provider webhook settles it.
func (h *Handler) CreatePayment(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req createPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.MarkupPercent.IsNegative() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "markup cannot be negative"})
		return
	}

	tx, intent, err := h.Payments.CreateModulePayment(c.Request.Context(), userID, req.ModuleID, req.BotID, req.MarkupPercent)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"transaction":   tx,
		"client_secret": intent.ClientSecret,
	})
}

// ProviderWebhook receives payment provider callbacks. The signature covers
// the raw body, so the body is read before any decoding. Unknown references
// and duplicate deliveries return 200: the provider must not retry those.
func (h *Handler) ProviderWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	ev, err := h.Webhook.ParseWebhook(body, c.GetHeader("X-Signature"))
	if errors.Is(err, payment.ErrBadSignature) {
		logger.Warn("webhook with bad signature", "ip", c.ClientIP())
		c.JSON(http.StatusUnauthorized, gin.H{"error": "bad signature"})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed event"})
		return
	}

	if err := h.Payments.HandleEvent(c.Request.Context(), ev); err != nil {
		// a 5xx makes the provider redeliver later
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
