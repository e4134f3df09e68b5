package config

import (
	"os"
	"strconv"
	"time"

	"botplatform_backend/internal/domain"
	"botplatform_backend/internal/logger"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	AppPort     string
	DatabaseURL string
	JWTSecret   string
	LogLevel    string
	LogJSON     bool

	Currency string
	Timezone string

	// Payment provider
	PaymentAPIURL        string
	PaymentAPIKey        string
	PaymentWebhookSecret string
	PendingPaymentTTL    time.Duration

	// Telegram notifications, disabled when the token is empty
	BotToken string

	// Redis (rate limiting)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	Withdrawal domain.WithdrawalLimits

	RateLimit       int
	RateLimitWindow int
}

// Загрузка конфига из env
func Load() *Config {
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		logger.Fatal("DATABASE_URL is not set")
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		logger.Fatal("JWT_SECRET is not set")
	}

	apiKey := os.Getenv("PAYMENT_API_KEY")
	if apiKey == "" {
		logger.Fatal("PAYMENT_API_KEY is not set")
	}

	webhookSecret := os.Getenv("PAYMENT_WEBHOOK_SECRET")
	if webhookSecret == "" {
		logger.Fatal("PAYMENT_WEBHOOK_SECRET is not set")
	}

	limits := domain.DefaultWithdrawalLimits()
	limits.MinAmount = envDecimal("WITHDRAWAL_MIN", limits.MinAmount)
	limits.MaxAmount = envDecimal("WITHDRAWAL_MAX", limits.MaxAmount)
	limits.DailyLimit = envDecimal("WITHDRAWAL_DAILY_LIMIT", limits.DailyLimit)
	limits.MonthlyLimit = envDecimal("WITHDRAWAL_MONTHLY_LIMIT", limits.MonthlyLimit)
	limits.CommissionRate = envDecimal("WITHDRAWAL_COMMISSION_RATE", limits.CommissionRate)

	return &Config{
		AppPort:     envStr("APP_PORT", "8080"),
		DatabaseURL: dbURL,
		JWTSecret:   jwtSecret,
		LogLevel:    envStr("LOG_LEVEL", "info"),
		LogJSON:     os.Getenv("LOG_JSON") == "true",

		Currency: envStr("CURRENCY", "USD"),
		Timezone: envStr("TIMEZONE", "UTC"),

		PaymentAPIURL:        envStr("PAYMENT_API_URL", "https://api.payments.example.com"),
		PaymentAPIKey:        apiKey,
		PaymentWebhookSecret: webhookSecret,
		PendingPaymentTTL:    envDuration("PENDING_PAYMENT_TTL", 24*time.Hour),

		BotToken: os.Getenv("BOT_TOKEN"),

		RedisAddr:     envStr("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       envInt("REDIS_DB", 0),

		Withdrawal: limits,

		RateLimit:       envInt("RATE_LIMIT", 60),
		RateLimitWindow: envInt("RATE_LIMIT_WINDOW", 60),
	}
}

// Location resolves the configured timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		logger.Warn("invalid TIMEZONE, using UTC", "value", c.Timezone)
		return time.UTC
	}
	return loc
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			return n
		}
	}
	return def
}

func envDecimal(key string, def decimal.Decimal) decimal.Decimal {
	if v := os.Getenv(key); v != "" {
		if d, err := decimal.NewFromString(v); err == nil && !d.IsNegative() {
			return d
		}
		logger.Warn("invalid decimal in env, using default", "key", key)
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
		logger.Warn("invalid duration in env, using default", "key", key)
	}
	return def
}
