package handlers

import (
	"errors"
	"net/http"

	"botplatform_backend/internal/domain"
	"botplatform_backend/internal/logger"
	"botplatform_backend/internal/payment"
	"botplatform_backend/internal/service"

	"github.com/gin-gonic/gin"
)

// WebhookParser verifies and decodes provider callbacks.
type WebhookParser interface {
	ParseWebhook(payload []byte, signature string) (*payment.Event, error)
}

type Handler struct {
	Balance     *service.BalanceService
	Payments    *service.PaymentService
	Withdrawals *service.WithdrawalService
	Referrals   *service.ReferralService
	Refunds     *service.RefundService
	Ledger      service.LedgerStore
	Webhook     WebhookParser
}

func NewHandler(
	balance *service.BalanceService,
	payments *service.PaymentService,
	withdrawals *service.WithdrawalService,
	referrals *service.ReferralService,
	refunds *service.RefundService,
	ledger service.LedgerStore,
	webhook WebhookParser,
) *Handler {
	return &Handler{
		Balance:     balance,
		Payments:    payments,
		Withdrawals: withdrawals,
		Referrals:   referrals,
		Refunds:     refunds,
		Ledger:      ledger,
		Webhook:     webhook,
	}
}

// getUserID извлекает user_id из контекста Gin
func getUserID(c *gin.Context) (int64, bool) {
	uidVal, ok := c.Get("user_id")
	if !ok {
		return 0, false
	}
	uid, ok := uidVal.(int64)
	return uid, ok
}

// respondError maps domain errors onto HTTP statuses. Unrecognized errors are
// logged and reported as 500 without leaking internals.
func respondError(c *gin.Context, err error) {
	var le *domain.LimitError
	if errors.As(err, &le) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":  "withdrawal limit exceeded",
			"reason": string(le.Reason),
			"limit":  le.Limit,
		})
		return
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, domain.ErrAccessDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": "access denied"})
	case errors.Is(err, domain.ErrInvalidAmount):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
	case errors.Is(err, domain.ErrInsufficientBalance):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":  "insufficient balance",
			"reason": string(domain.ReasonInsufficientBalance),
		})
	case errors.Is(err, domain.ErrAlreadyActivated):
		c.JSON(http.StatusConflict, gin.H{"error": "module already active"})
	case errors.Is(err, domain.ErrAlreadyProcessed):
		c.JSON(http.StatusConflict, gin.H{"error": "already processed"})
	case errors.Is(err, domain.ErrNotCancellable):
		c.JSON(http.StatusConflict, gin.H{"error": "not cancellable"})
	case errors.Is(err, domain.ErrInvalidState):
		c.JSON(http.StatusConflict, gin.H{"error": "invalid state"})
	case errors.Is(err, domain.ErrProvider):
		c.JSON(http.StatusBadGateway, gin.H{"error": "payment provider unavailable"})
	default:
		logger.Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
