package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"botplatform_backend/internal/config"
	"botplatform_backend/internal/db"
	"botplatform_backend/internal/domain"
	httpServer "botplatform_backend/internal/http"
	"botplatform_backend/internal/http/handlers"
	"botplatform_backend/internal/http/middleware"
	"botplatform_backend/internal/jobs"
	"botplatform_backend/internal/logger"
	"botplatform_backend/internal/notify"
	"botplatform_backend/internal/payment"
	"botplatform_backend/internal/repository"
	"botplatform_backend/internal/service"

	"github.com/gin-gonic/gin"
)

var version = "dev"

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel, cfg.LogJSON)
	service.InitJWT()

	pool := db.Connect(cfg.DatabaseURL)
	defer pool.Close()

	middleware.InitRedisRateLimiter(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)

	ledger := repository.NewLedgerRepository(pool)
	users := repository.NewUserRepository(pool)
	modules := repository.NewModuleRepository(pool)

	var notifier notify.Notifier = notify.Noop{}
	if cfg.BotToken != "" {
		tg, err := notify.NewTelegram(cfg.BotToken, users)
		if err != nil {
			logger.Warn("telegram notifier disabled", "error", err)
		} else {
			notifier = tg
		}
	}

	provider := payment.NewClient(cfg.PaymentAPIURL, cfg.PaymentAPIKey, cfg.PaymentWebhookSecret)
	loc := cfg.Location()

	balanceSvc := service.NewBalanceService(ledger)
	referralSvc := service.NewReferralService(ledger, users, nil, notifier, cfg.Currency)
	paymentSvc := service.NewPaymentService(ledger, modules, modules, referralSvc, provider, notifier, cfg.Currency)
	withdrawalSvc := service.NewWithdrawalService(ledger, cfg.Withdrawal, loc, notifier, cfg.Currency)
	refundSvc := service.NewRefundService(ledger, modules, modules, provider)

	// Background jobs
	registry := jobs.NewRegistry(loc)
	if err := registry.Register("expire_stale_payments", "*/15 * * * *", func(ctx context.Context) error {
		n, err := paymentSvc.ExpireStalePayments(ctx, cfg.PendingPaymentTTL)
		if n > 0 {
			logger.Info("expired stale payments", "count", n)
		}
		return err
	}); err != nil {
		logger.Fatal("failed to register job", "error", err)
	}
	if err := registry.Register("pending_withdrawal_reminder", "0 9 * * *", func(ctx context.Context) error {
		pending, err := ledger.ListByTypeAndStatus(ctx, domain.TypeWithdrawal, domain.StatusPending, 500)
		if err != nil {
			return err
		}
		if len(pending) > 0 {
			logger.Warn("withdrawals awaiting admin review", "count", len(pending))
		}
		return nil
	}); err != nil {
		logger.Fatal("failed to register job", "error", err)
	}
	registry.Start()
	defer registry.Stop()

	h := handlers.NewHandler(balanceSvc, paymentSvc, withdrawalSvc, referralSvc, refundSvc, ledger, provider)
	health := handlers.NewHealthHandler(pool, version)

	r := gin.Default()
	httpServer.RegisterRoutes(r, h, health, cfg)

	srv := &http.Server{
		Addr:    ":" + cfg.AppPort,
		Handler: r,
	}

	go func() {
		logger.Info("server started", "port", cfg.AppPort, "version", version)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", "error", err)
	}

	logger.Info("server exited")
}
