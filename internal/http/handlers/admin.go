package handlers

import (
	"net/http"
	"strconv"
	"time"

	"botplatform_backend/internal/domain"
	"botplatform_backend/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type processWithdrawalRequest struct {
	Action string `json:"action" binding:"required"`
	Note   string `json:"note"`
}

// ProcessWithdrawal applies an admin approve/reject decision to a pending
// payout request.
func (h *Handler) ProcessWithdrawal(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var req processWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	tx, err := h.Withdrawals.ProcessWithdrawal(c.Request.Context(), id, req.Action, req.Note)
	if err != nil {
		respondError(c, err)
		return
	}

	adminID, _ := getUserID(c)
	logger.Info("withdrawal processed", "transaction_id", id, "action", req.Action, "admin_id", adminID)

	c.JSON(http.StatusOK, gin.H{"transaction": tx})
}

// ListPendingWithdrawals returns payout requests awaiting a decision.
func (h *Handler) ListPendingWithdrawals(c *gin.Context) {
	limit := 100
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	list, err := h.Ledger.ListByTypeAndStatus(c.Request.Context(), domain.TypeWithdrawal, domain.StatusPending, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"withdrawals": list, "count": len(list)})
}

type annotateRequest struct {
	Note string `json:"note" binding:"required"`
}

// AnnotateTransaction patches an admin note into a record's metadata. Works
// on terminal records too; amount, type and status stay immutable.
func (h *Handler) AnnotateTransaction(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	var req annotateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.Ledger.Annotate(c.Request.Context(), id, req.Note); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"annotated": true})
}

type adjustmentRequest struct {
	UserID int64           `json:"user_id" binding:"required"`
	Amount decimal.Decimal `json:"amount" binding:"required"`
	Note   string          `json:"note" binding:"required"`
}

// CreateAdjustment credits a user directly with a completed bonus record,
// bypassing the referral workflow. Support compensations and promos land
// here; the note is mandatory so the credit is always explained.
func (h *Handler) CreateAdjustment(c *gin.Context) {
	var req adjustmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if !req.Amount.IsPositive() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
		return
	}

	now := time.Now()
	tx := &domain.Transaction{
		UserID:      req.UserID,
		Type:        domain.TypeCommission,
		Amount:      req.Amount,
		Currency:    h.Payments.Currency(),
		Status:      domain.StatusCompleted,
		Description: "Manual bonus credit",
		ProcessedAt: &now,
		Meta:        &domain.CommissionMeta{AdminNote: req.Note},
	}
	if err := h.Ledger.Append(c.Request.Context(), tx); err != nil {
		respondError(c, err)
		return
	}

	adminID, _ := getUserID(c)
	logger.Info("manual adjustment", "user_id", req.UserID, "amount", req.Amount.String(), "admin_id", adminID)

	c.JSON(http.StatusCreated, gin.H{"transaction": tx})
}

type refundRequest struct {
	TransactionID int64           `json:"transaction_id" binding:"required"`
	Amount        decimal.Decimal `json:"amount"`
	Reason        string          `json:"reason"`
}

// CreateRefund refunds a completed payment. A zero amount refunds in full,
// which also deactivates the purchased module.
func (h *Handler) CreateRefund(c *gin.Context) {
	var req refundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	tx, err := h.Refunds.CreateRefund(c.Request.Context(), req.TransactionID, req.Amount, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}

	adminID, _ := getUserID(c)
	logger.Info("refund created", "original_id", req.TransactionID, "amount", tx.Amount.String(), "admin_id", adminID)

	c.JSON(http.StatusCreated, gin.H{"transaction": tx})
}
