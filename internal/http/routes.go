package http

import (
	"time"

	"botplatform_backend/internal/config"
	"botplatform_backend/internal/http/handlers"
	"botplatform_backend/internal/http/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func RegisterRoutes(r *gin.Engine, h *handlers.Handler, health *handlers.HealthHandler, cfg *config.Config) {
	r.Use(middleware.Metrics())

	// Health checks and metrics (no rate limiting)
	r.GET("/health", health.Health)
	r.GET("/healthz", health.Liveness)
	r.GET("/readyz", health.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiWindow := time.Duration(cfg.RateLimitWindow) * time.Second

	v1 := r.Group("/api/v1")
	if middleware.RedisAvailable() {
		v1.Use(middleware.RedisRateLimit(cfg.RateLimit, apiWindow))
	} else {
		v1.Use(middleware.SimpleRateLimit(cfg.RateLimit, apiWindow))
	}

	// Provider callbacks authenticate by signature, not JWT
	v1.POST("/webhooks/payments", h.ProviderWebhook)

	// Balance and history
	v1.GET("/balance", middleware.JWT(), h.GetBalance)
	v1.GET("/stats", middleware.JWT(), h.GetStats)
	v1.GET("/transactions", middleware.JWT(), h.GetHistory)

	// Module purchases
	v1.POST("/payments", middleware.JWT(), h.CreatePayment)

	// Withdrawals. Submission is additionally limited per user: a client
	// retry loop must not be able to spray payout requests.
	withdrawRL := middleware.UserRateLimit("withdrawal", 5, time.Minute)
	w := v1.Group("/withdrawals")
	{
		w.GET("/limits", h.WithdrawalLimits)
		w.GET("/estimate", h.WithdrawalEstimate)
		w.GET("/can", middleware.JWT(), h.CanWithdraw)
		w.GET("", middleware.JWT(), h.ListWithdrawals)
		w.POST("", middleware.JWT(), withdrawRL, h.CreateWithdrawal)
		w.POST("/:id/cancel", middleware.JWT(), h.CancelWithdrawal)
	}

	// Referral program
	v1.GET("/referral/tier", middleware.JWT(), h.GetTierInfo)

	// Admin operations
	admin := v1.Group("/admin")
	admin.Use(middleware.JWT(), middleware.Admin())
	{
		admin.GET("/withdrawals/pending", h.ListPendingWithdrawals)
		admin.POST("/withdrawals/:id/process", h.ProcessWithdrawal)
		admin.POST("/transactions/:id/annotate", h.AnnotateTransaction)
		admin.POST("/adjustments", h.CreateAdjustment)
		admin.POST("/refunds", h.CreateRefund)
	}
}
