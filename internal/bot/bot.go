package bot

import (
	"context"
	"strconv"
	"time"

	"homeservices/internal/domain"
	"homeservices/internal/logging"
	"homeservices/internal/metrics"
	"homeservices/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// API is the part of the Telegram client the bot talks to.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type Authenticator interface {
	Authenticate(ctx context.Context, token string) (models.Caller, error)
	Resolve(ctx context.Context, userID int64) (models.Caller, error)
}

// ChatDirectory maps Telegram chats to marketplace users.
type ChatDirectory interface {
	LinkTelegramChat(ctx context.Context, userID, chatID int64) error
	GetUserByTelegramChat(ctx context.Context, chatID int64) (*models.User, error)
}

type BookingLister interface {
	ListBookings(ctx context.Context, caller models.Caller, filter models.BookingFilter, page models.PageQuery) ([]*models.Booking, models.PageMeta, error)
}

type NotificationReader interface {
	ListNotifications(ctx context.Context, caller models.Caller, unreadOnly bool, page models.PageQuery) ([]*models.Notification, models.PageMeta, error)
}

type Options struct {
	RateLimit  int
	RateWindow time.Duration
}

// Bot lets users link their Telegram chat to their account and check bookings
// and notifications. Deliveries to linked chats go through push.TelegramPusher.
type Bot struct {
	api           API
	auth          Authenticator
	chats         ChatDirectory
	bookings      BookingLister
	notifications NotificationReader
	limiter       domain.RateLimiter
	opts          Options
	logger        *zerolog.Logger
}

func NewBot(
	api API,
	auth Authenticator,
	chats ChatDirectory,
	bookings BookingLister,
	notifications NotificationReader,
	limiter domain.RateLimiter,
	opts Options,
	logger *zerolog.Logger,
) *Bot {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if opts.RateLimit > 0 && opts.RateWindow <= 0 {
		opts.RateWindow = time.Minute
	}
	return &Bot{
		api:           api,
		auth:          auth,
		chats:         chats,
		bookings:      bookings,
		notifications: notifications,
		limiter:       limiter,
		opts:          opts,
		logger:        logging.Component(logger, "telegram_bot"),
	}
}

func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	b.logger.Info().Msg("telegram bot started")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info().Msg("telegram bot stopping")
			b.api.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.processUpdate(ctx, update)
		}
	}
}

func (b *Bot) processUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.Message == nil || update.Message.Chat == nil {
		return
	}
	msg := update.Message
	command := msg.Command()
	if command == "" {
		command = "text"
	}

	start := time.Now()
	defer func() { metrics.ObserveBotUpdate(command, time.Since(start)) }()

	updateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	l := b.logger.With().Str("request_id", uuid.NewString()).Int64("chat_id", msg.Chat.ID).Logger()
	updateCtx = l.WithContext(updateCtx)

	b.withRecovery(func() {
		if !b.allow(updateCtx, msg.Chat.ID) {
			b.reply(msg.Chat.ID, "You are sending messages too fast. Please wait a moment.")
			return
		}
		b.handleMessage(updateCtx, msg)
	})
}

func (b *Bot) allow(ctx context.Context, chatID int64) bool {
	if b.limiter == nil || b.opts.RateLimit <= 0 {
		return true
	}
	allowed, err := b.limiter.Allow(ctx, "tg:"+strconv.FormatInt(chatID, 10), b.opts.RateLimit, b.opts.RateWindow)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("rate limit check failed")
		return true
	}
	return allowed
}

func (b *Bot) withRecovery(handler func()) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().Interface("panic", r).Msg("recovered from panic in update handler")
		}
	}()
	handler()
}

func (b *Bot) reply(chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("send reply")
	}
}
