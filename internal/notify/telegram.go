package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"botplatform_backend/internal/domain"
	"botplatform_backend/internal/logger"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"
)

// ChatResolver maps platform users to Telegram chats. Implemented by the
// user repository.
type ChatResolver interface {
	TelegramChatID(ctx context.Context, userID int64) (int64, error)
}

// Telegram sends event notifications through the platform bot. All errors
// are logged and dropped.
type Telegram struct {
	bot   *tgbotapi.BotAPI
	chats ChatResolver
}

func NewTelegram(token string, chats ChatResolver) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram notifier: %w", err)
	}
	logger.Info("telegram notifier ready", "bot", bot.Self.UserName)
	return &Telegram{bot: bot, chats: chats}, nil
}

func (t *Telegram) PaymentCompleted(userID int64, amount decimal.Decimal, currency, moduleName string) {
	t.send(userID, fmt.Sprintf("✅ Payment of %s %s for %q completed. The module is now active.", amount, currency, moduleName))
}

func (t *Telegram) PaymentFailed(userID int64, amount decimal.Decimal, currency string) {
	t.send(userID, fmt.Sprintf("❌ Payment of %s %s failed. You have not been charged.", amount, currency))
}

func (t *Telegram) WithdrawalProcessed(userID int64, amount decimal.Decimal, currency string, approved bool) {
	if approved {
		t.send(userID, fmt.Sprintf("💸 Your withdrawal of %s %s was approved and is on its way.", amount, currency))
		return
	}
	t.send(userID, fmt.Sprintf("⚠️ Your withdrawal of %s %s was rejected. The amount stays on your balance.", amount, currency))
}

func (t *Telegram) CommissionEarned(userID int64, amount decimal.Decimal, currency, tier string) {
	t.send(userID, fmt.Sprintf("🎉 Referral commission earned: %s %s (%s tier).", amount, currency, tier))
}

func (t *Telegram) send(userID int64, text string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	chatID, err := t.chats.TelegramChatID(ctx, userID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			logger.Warn("notify: resolve chat failed", "user_id", userID, "error", err)
		}
		return
	}

	if _, err := t.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		logger.Warn("notify: telegram send failed", "user_id", userID, "error", err)
	}
}
