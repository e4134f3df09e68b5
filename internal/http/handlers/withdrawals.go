package handlers

import (
	"net/http"
	"strconv"

	"botplatform_backend/internal/domain"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type createWithdrawalRequest struct {
	Amount      decimal.Decimal `json:"amount" binding:"required"`
	Method      string          `json:"method" binding:"required"`
	Destination string          `json:"destination" binding:"required"`
}

// CreateWithdrawal submits a payout request. Eligibility is enforced
// atomically at submission; the request then waits for an admin decision.
func (h *Handler) CreateWithdrawal(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req createWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	tx, err := h.Withdrawals.CreateWithdrawalRequest(c.Request.Context(), userID, req.Amount, req.Method, req.Destination)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"transaction": tx})
}

// WithdrawalEstimate previews fee and net payout without submitting.
func (h *Handler) WithdrawalEstimate(c *gin.Context) {
	amount, err := decimal.NewFromString(c.Query("amount"))
	if err != nil || !amount.IsPositive() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
		return
	}

	fee, net := h.Withdrawals.Estimate(amount)
	c.JSON(http.StatusOK, gin.H{
		"amount": amount,
		"fee":    fee,
		"net":    net,
	})
}

// WithdrawalLimits returns the configured payout limits.
func (h *Handler) WithdrawalLimits(c *gin.Context) {
	l := h.Withdrawals.Limits()
	c.JSON(http.StatusOK, gin.H{
		"min":             l.MinAmount,
		"max":             l.MaxAmount,
		"daily_limit":     l.DailyLimit,
		"monthly_limit":   l.MonthlyLimit,
		"commission_rate": l.CommissionRate,
	})
}

// CanWithdraw runs the eligibility checks without submitting. The answer is
// advisory: submission re-validates.
func (h *Handler) CanWithdraw(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	amount, err := decimal.NewFromString(c.Query("amount"))
	if err != nil || !amount.IsPositive() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
		return
	}

	allowed, reason, err := h.Withdrawals.CanWithdraw(c.Request.Context(), userID, amount)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := gin.H{"allowed": allowed}
	if !allowed {
		resp["reason"] = string(reason)
	}
	c.JSON(http.StatusOK, resp)
}

// ListWithdrawals returns the user's withdrawal history.
func (h *Handler) ListWithdrawals(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	list, err := h.Balance.History(c.Request.Context(), userID, domain.TransactionFilter{
		Types: []domain.TransactionType{domain.TypeWithdrawal},
		Limit: 50,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"withdrawals": list})
}

// CancelWithdrawal lets the owner cancel a still-pending request.
func (h *Handler) CancelWithdrawal(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	if err := h.Withdrawals.CancelWithdrawal(c.Request.Context(), userID, id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"cancelled": true})
}
