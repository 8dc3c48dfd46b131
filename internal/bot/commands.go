package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"homeservices/internal/apperror"
	"homeservices/internal/database"
	"homeservices/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

const listLimit = 5

const helpText = `Commands:
/link <token> - connect this chat to your account
/bookings - your latest bookings
/notifications - your unread notifications
/help - this message`

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	switch msg.Command() {
	case "start", "help":
		b.reply(chatID, helpText)
	case "link":
		b.reply(chatID, b.link(ctx, chatID, msg.CommandArguments()))
	case "bookings":
		b.reply(chatID, b.listBookings(ctx, chatID))
	case "notifications":
		b.reply(chatID, b.listNotifications(ctx, chatID))
	default:
		b.reply(chatID, "Unknown command.\n\n"+helpText)
	}
}

func (b *Bot) link(ctx context.Context, chatID int64, token string) string {
	token = strings.TrimSpace(token)
	if token == "" {
		return "Usage: /link <token>. Copy the token from your account settings."
	}
	caller, err := b.auth.Authenticate(ctx, token)
	if err != nil {
		if apperror.KindOf(err) == apperror.KindUnauthorized {
			return "That token is not valid. Request a fresh one and try again."
		}
		zerolog.Ctx(ctx).Error().Err(err).Msg("authenticate link token")
		return "Something went wrong, please try again later."
	}
	if err := b.chats.LinkTelegramChat(ctx, caller.UserID, chatID); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("user_id", caller.UserID).Msg("link telegram chat")
		return "Something went wrong, please try again later."
	}
	zerolog.Ctx(ctx).Info().Int64("user_id", caller.UserID).Msg("telegram chat linked")
	return "Done! Notifications for your account will now arrive here."
}

// callerForChat returns the caller linked to chatID, or a reply explaining why there is none.
func (b *Bot) callerForChat(ctx context.Context, chatID int64) (models.Caller, string) {
	user, err := b.chats.GetUserByTelegramChat(ctx, chatID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return models.Caller{}, "This chat is not linked yet. Use /link <token> first."
		}
		zerolog.Ctx(ctx).Error().Err(err).Msg("lookup chat user")
		return models.Caller{}, "Something went wrong, please try again later."
	}
	caller, err := b.auth.Resolve(ctx, user.ID)
	if err != nil {
		if apperror.KindOf(err) == apperror.KindUnauthorized {
			return models.Caller{}, "Your account is not active."
		}
		zerolog.Ctx(ctx).Error().Err(err).Int64("user_id", user.ID).Msg("resolve chat user")
		return models.Caller{}, "Something went wrong, please try again later."
	}
	return caller, ""
}

func (b *Bot) listBookings(ctx context.Context, chatID int64) string {
	caller, problem := b.callerForChat(ctx, chatID)
	if problem != "" {
		return problem
	}
	bookings, meta, err := b.bookings.ListBookings(ctx, caller, models.BookingFilter{}, models.PageQuery{Page: 1, Limit: listLimit})
	if err != nil {
		if apperror.KindOf(err) == apperror.KindInternal {
			zerolog.Ctx(ctx).Error().Err(err).Msg("list bookings")
			return "Something went wrong, please try again later."
		}
		return apperror.From(err).Message
	}
	if len(bookings) == 0 {
		return "You have no bookings yet."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Your bookings (%d total):\n", meta.Total)
	for _, bk := range bookings {
		fmt.Fprintf(&sb, "\n#%d  %s %s  %s  $%.2f", bk.ID, bk.ScheduledDate, bk.ScheduledTime, statusLabel(bk.Status), bk.TotalPrice)
	}
	return sb.String()
}

func (b *Bot) listNotifications(ctx context.Context, chatID int64) string {
	caller, problem := b.callerForChat(ctx, chatID)
	if problem != "" {
		return problem
	}
	items, meta, err := b.notifications.ListNotifications(ctx, caller, true, models.PageQuery{Page: 1, Limit: listLimit})
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("list notifications")
		return "Something went wrong, please try again later."
	}
	if len(items) == 0 {
		return "No unread notifications."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Unread notifications (%d):\n", meta.Total)
	for _, n := range items {
		fmt.Fprintf(&sb, "\n%s: %s", n.Title, n.Body)
	}
	return sb.String()
}

func statusLabel(status string) string {
	switch status {
	case models.StatusInProgress:
		return "in progress"
	default:
		return status
	}
}
