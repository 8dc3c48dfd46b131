package push

import (
	"context"
	"fmt"

	"homeservices/internal/domain"
	"homeservices/internal/metrics"
	"homeservices/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramSender is the subset of *tgbotapi.BotAPI used for delivery.
type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramPusher forwards notifications to users who linked a Telegram chat.
type TelegramPusher struct {
	bot   TelegramSender
	users domain.UserDirectory
}

func NewTelegramPusher(bot TelegramSender, users domain.UserDirectory) *TelegramPusher {
	return &TelegramPusher{bot: bot, users: users}
}

func (p *TelegramPusher) Push(ctx context.Context, userID int64, n *models.Notification) error {
	user, err := p.users.GetUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("load user %d: %w", userID, err)
	}
	if user.TelegramChatID == nil {
		metrics.IncDelivery("telegram", "skipped")
		return nil
	}

	msg := tgbotapi.NewMessage(*user.TelegramChatID, FormatText(n))
	if _, err := p.bot.Send(msg); err != nil {
		metrics.IncDelivery("telegram", "error")
		return fmt.Errorf("telegram send: %w", err)
	}
	metrics.IncDelivery("telegram", "delivered")
	return nil
}

// FormatText renders a notification as a plain text message.
func FormatText(n *models.Notification) string {
	if n.Body == "" {
		return n.Title
	}
	return n.Title + "\n\n" + n.Body
}
