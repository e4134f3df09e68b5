package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetTierInfo returns the user's current commission tier, their verified
// referral count, and the next tier to reach (absent at the top tier).
func (h *Handler) GetTierInfo(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	tier, count, next, err := h.Referrals.TierInfo(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := gin.H{
		"tier":               tier,
		"verified_referrals": count,
	}
	if next != nil {
		resp["next_tier"] = next
		resp["referrals_to_next"] = next.MinReferrals - count
	}
	c.JSON(http.StatusOK, resp)
}
