package service

import (
	"context"
	"fmt"
	"time"

	"homeservices/internal/apperror"
	"homeservices/internal/domain"
	"homeservices/internal/events"
	"homeservices/internal/models"

	"github.com/rs/zerolog"
)

const handlerTimeout = 5 * time.Second

// NotificationService persists in-app notifications and queues their push delivery.
type NotificationService struct {
	repo      domain.NotificationRepository
	providers domain.ProviderDirectory
	outbox    domain.OutboxEnqueuer
	logger    *zerolog.Logger
}

func NewNotificationService(
	repo domain.NotificationRepository,
	providers domain.ProviderDirectory,
	outbox domain.OutboxEnqueuer,
	logger *zerolog.Logger,
) *NotificationService {
	return &NotificationService{
		repo:      repo,
		providers: providers,
		outbox:    outbox,
		logger:    logger,
	}
}

// Send stores the notification and schedules its push. Failures are logged only.
func (s *NotificationService) Send(ctx context.Context, userID int64, title, body, notificationType string, referenceID *int64) {
	n := &models.Notification{
		UserID:      userID,
		Title:       title,
		Body:        body,
		Type:        notificationType,
		ReferenceID: referenceID,
	}
	if err := s.repo.CreateNotification(ctx, n); err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Str("type", notificationType).Msg("store notification error")
		return
	}
	if s.outbox == nil {
		return
	}
	if err := s.outbox.EnqueueTask(ctx, models.TaskPushNotification, n.ID, n); err != nil {
		s.logger.Error().Err(err).Int64("notification_id", n.ID).Msg("enqueue push error")
	}
}

// Subscribe wires the notification rules onto bus.
func (s *NotificationService) Subscribe(bus *events.EventBus) {
	bus.SubscribeAll([]string{
		events.EventBookingCreated,
		events.EventBookingAccepted,
		events.EventBookingRejected,
		events.EventBookingStarted,
		events.EventBookingCompleted,
		events.EventBookingCancelled,
		events.EventPaymentReceived,
		events.EventReviewReceived,
	}, s.HandleEvent)
}

// HandleEvent turns a marketplace event into notifications for the affected party.
func (s *NotificationService) HandleEvent(event *events.Event) error {
	var p events.BookingEventPayload
	if err := event.Decode(&p); err != nil {
		return fmt.Errorf("decode %s payload: %w", event.Type, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	ref := p.BookingID
	toCustomer := func(title, body, kind string) {
		s.Send(ctx, p.CustomerID, title, body, kind, &ref)
	}
	toProvider := func(title, body, kind string) error {
		if p.ProviderID == 0 {
			return nil
		}
		provider, err := s.providers.GetProvider(ctx, p.ProviderID)
		if err != nil {
			return fmt.Errorf("resolve provider %d: %w", p.ProviderID, err)
		}
		s.Send(ctx, provider.UserID, title, body, kind, &ref)
		return nil
	}

	switch event.Type {
	case events.EventBookingCreated:
		return toProvider("New Booking Request",
			fmt.Sprintf("You have a new booking request (#%d) for %s", p.BookingID, p.ScheduledDate),
			models.NotificationBookingCreated)
	case events.EventBookingAccepted:
		toCustomer("Booking Accepted",
			fmt.Sprintf("Your booking #%d has been accepted by the provider!", p.BookingID),
			models.NotificationBookingAccepted)
	case events.EventBookingRejected:
		toCustomer("Booking Rejected",
			fmt.Sprintf("Unfortunately, your booking #%d was rejected. Please try another provider.", p.BookingID),
			models.NotificationBookingRejected)
	case events.EventBookingStarted:
		toCustomer("Service Started",
			fmt.Sprintf("The provider has started working on your booking #%d", p.BookingID),
			models.NotificationBookingStarted)
	case events.EventBookingCompleted:
		toCustomer("Service Completed",
			fmt.Sprintf("Your booking #%d has been completed. Please leave a review!", p.BookingID),
			models.NotificationBookingCompleted)
	case events.EventBookingCancelled:
		return s.notifyCancellation(p, toCustomer, toProvider)
	case events.EventPaymentReceived:
		return toProvider("Payment Received",
			fmt.Sprintf("Payment of $%v received for booking #%d", p.Amount, p.BookingID),
			models.NotificationPaymentReceived)
	case events.EventReviewReceived:
		return toProvider("New Review",
			fmt.Sprintf("You received a %d-star review for booking #%d", p.Rating, p.BookingID),
			models.NotificationReviewReceived)
	}
	return nil
}

// notifyCancellation informs whichever party did not cancel; an admin cancel informs both.
func (s *NotificationService) notifyCancellation(
	p events.BookingEventPayload,
	toCustomer func(title, body, kind string),
	toProvider func(title, body, kind string) error,
) error {
	const title = "Booking Cancelled"
	switch p.CancelledBy {
	case models.RoleCustomer:
		return toProvider(title, fmt.Sprintf("Booking #%d has been cancelled by the customer.", p.BookingID), models.NotificationBookingCancelled)
	case models.RoleProvider:
		toCustomer(title, fmt.Sprintf("Your booking #%d has been cancelled by the provider.", p.BookingID), models.NotificationBookingCancelled)
		return nil
	default:
		body := fmt.Sprintf("Booking #%d has been cancelled by an administrator.", p.BookingID)
		toCustomer(title, body, models.NotificationBookingCancelled)
		return toProvider(title, body, models.NotificationBookingCancelled)
	}
}

func (s *NotificationService) ListNotifications(ctx context.Context, caller models.Caller, unreadOnly bool, page models.PageQuery) ([]*models.Notification, models.PageMeta, error) {
	page = page.Normalize()
	items, total, err := s.repo.ListNotifications(ctx, caller.UserID, unreadOnly, page)
	if err != nil {
		return nil, models.PageMeta{}, apperror.Internal(err)
	}
	return items, models.NewPageMeta(page, total), nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, caller models.Caller) (int, error) {
	count, err := s.repo.CountUnreadNotifications(ctx, caller.UserID)
	if err != nil {
		return 0, apperror.Internal(err)
	}
	return count, nil
}

// MarkRead marks one of the caller's notifications read. Another user's
// notification is reported as missing.
func (s *NotificationService) MarkRead(ctx context.Context, caller models.Caller, id int64) (*models.Notification, error) {
	n, err := s.repo.GetNotification(ctx, id)
	if err != nil {
		return nil, lookupError(err, "Notification not found")
	}
	if n.UserID != caller.UserID {
		return nil, apperror.NotFound("Notification not found")
	}
	if n.IsRead {
		return n, nil
	}
	if err := s.repo.MarkNotificationRead(ctx, id); err != nil {
		return nil, lookupError(err, "Notification not found")
	}
	n.IsRead = true
	return n, nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, caller models.Caller) (int64, error) {
	changed, err := s.repo.MarkAllNotificationsRead(ctx, caller.UserID)
	if err != nil {
		return 0, apperror.Internal(err)
	}
	return changed, nil
}
