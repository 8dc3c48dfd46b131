package domain

import (
	"context"
	"time"

	"homeservices/internal/models"
)

type BookingRepository interface {
	CreateBooking(ctx context.Context, booking *models.Booking) error
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	ListBookings(ctx context.Context, filter models.BookingFilter, page models.PageQuery) ([]*models.Booking, int, error)
	AcceptBooking(ctx context.Context, id int64, providerID int64) error
	TransitionBooking(ctx context.Context, tr models.BookingTransition) error
}

type PaymentRepository interface {
	GetPayment(ctx context.Context, id int64) (*models.Payment, error)
	GetPaymentByBooking(ctx context.Context, bookingID int64) (*models.Payment, error)
	StartPaymentAttempt(ctx context.Context, payment *models.Payment) error
	ResolvePayment(ctx context.Context, res models.PaymentResolution) error
	RefundPayment(ctx context.Context, paymentID int64) error
}

type ReviewRepository interface {
	CreateReview(ctx context.Context, review *models.Review) error
	GetReviewByBooking(ctx context.Context, bookingID int64) (*models.Review, error)
	ListProviderReviews(ctx context.Context, providerID int64, page models.PageQuery) ([]*models.Review, int, error)
	ProviderRatingStats(ctx context.Context, providerID int64) (float64, int, error)
}

type NotificationRepository interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
	GetNotification(ctx context.Context, id int64) (*models.Notification, error)
	ListNotifications(ctx context.Context, userID int64, unreadOnly bool, page models.PageQuery) ([]*models.Notification, int, error)
	CountUnreadNotifications(ctx context.Context, userID int64) (int, error)
	MarkNotificationRead(ctx context.Context, id int64) error
	MarkAllNotificationsRead(ctx context.Context, userID int64) (int64, error)
}

type ServiceCatalog interface {
	GetActiveService(ctx context.Context, id int64) (*models.Service, error)
}

// ProviderDirectory is the only writer of provider counters.
type ProviderDirectory interface {
	GetProvider(ctx context.Context, id int64) (*models.ProviderProfile, error)
	GetProviderByUserID(ctx context.Context, userID int64) (*models.ProviderProfile, error)
	GetAvailableVerifiedProvider(ctx context.Context, id int64) (*models.ProviderProfile, error)
	IncrementTotalJobs(ctx context.Context, providerID int64) error
	SetRating(ctx context.Context, providerID int64, rating float64) error
}

type UserDirectory interface {
	GetUser(ctx context.Context, id int64) (*models.User, error)
}

// NotificationSink accepts fire-and-forget notifications. Send never fails the caller.
type NotificationSink interface {
	Send(ctx context.Context, userID int64, title, body, notificationType string, referenceID *int64)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// PaymentGateway resolves a processing payment to exactly one of two outcomes.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, bookingID int64, amount float64) (string, error)
	Charge(ctx context.Context, payment *models.Payment, gatewayPaymentID string) (bool, error)
}

type OutboxEnqueuer interface {
	EnqueueTask(ctx context.Context, taskType string, referenceID int64, payload interface{}) error
}

type OutboxStore interface {
	CreateOutboxTask(ctx context.Context, task *models.OutboxTask) error
	GetPendingOutboxTasks(ctx context.Context, limit int) ([]models.OutboxTask, error)
	UpdateOutboxTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type Pusher interface {
	Push(ctx context.Context, userID int64, n *models.Notification) error
}

type LedgerWriter interface {
	UpsertBooking(ctx context.Context, row *models.BookingExportRow) error
}
