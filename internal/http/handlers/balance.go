package handlers

import (
	"net/http"
	"strconv"
	"time"

	"botplatform_backend/internal/domain"

	"github.com/gin-gonic/gin"
)

// GetBalance returns the user's derived balance.
func (h *Handler) GetBalance(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	balance, err := h.Balance.GetBalance(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"balance": balance})
}

// GetStats returns the dashboard aggregates.
func (h *Handler) GetStats(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	stats, err := h.Balance.GetStats(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// GetHistory lists the user's transactions. Optional query params:
// type, status, from, to (RFC3339), limit.
func (h *Handler) GetHistory(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var f domain.TransactionFilter

	if v := c.Query("type"); v != "" {
		typ := domain.TransactionType(v)
		if !typ.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown transaction type"})
			return
		}
		f.Types = []domain.TransactionType{typ}
	}
	if v := c.Query("status"); v != "" {
		f.Statuses = []domain.TransactionStatus{domain.TransactionStatus(v)}
	}
	if v := c.Query("from"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from timestamp"})
			return
		}
		f.From = &ts
	}
	if v := c.Query("to"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to timestamp"})
			return
		}
		f.To = &ts
	}
	f.Limit = 50
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			f.Limit = n
		}
	}

	history, err := h.Balance.History(c.Request.Context(), userID, f)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transactions": history, "count": len(history)})
}
