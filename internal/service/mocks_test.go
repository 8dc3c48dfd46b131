package service

import (
	"context"

	"homeservices/internal/models"

	"github.com/stretchr/testify/mock"
)

type mockBookingRepo struct {
	mock.Mock
}

func (m *mockBookingRepo) CreateBooking(ctx context.Context, b *models.Booking) error {
	return m.Called(ctx, b).Error(0)
}
func (m *mockBookingRepo) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}
func (m *mockBookingRepo) ListBookings(ctx context.Context, f models.BookingFilter, p models.PageQuery) ([]*models.Booking, int, error) {
	args := m.Called(ctx, f, p)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]*models.Booking), args.Int(1), args.Error(2)
}
func (m *mockBookingRepo) AcceptBooking(ctx context.Context, id, pid int64) error {
	return m.Called(ctx, id, pid).Error(0)
}
func (m *mockBookingRepo) TransitionBooking(ctx context.Context, tr models.BookingTransition) error {
	return m.Called(ctx, tr).Error(0)
}

type mockPaymentRepo struct {
	mock.Mock
}

func (m *mockPaymentRepo) GetPayment(ctx context.Context, id int64) (*models.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}
func (m *mockPaymentRepo) GetPaymentByBooking(ctx context.Context, id int64) (*models.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}
func (m *mockPaymentRepo) StartPaymentAttempt(ctx context.Context, p *models.Payment) error {
	return m.Called(ctx, p).Error(0)
}
func (m *mockPaymentRepo) ResolvePayment(ctx context.Context, r models.PaymentResolution) error {
	return m.Called(ctx, r).Error(0)
}
func (m *mockPaymentRepo) RefundPayment(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

type mockReviewRepo struct {
	mock.Mock
}

func (m *mockReviewRepo) CreateReview(ctx context.Context, r *models.Review) error {
	return m.Called(ctx, r).Error(0)
}
func (m *mockReviewRepo) GetReviewByBooking(ctx context.Context, id int64) (*models.Review, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Review), args.Error(1)
}
func (m *mockReviewRepo) ListProviderReviews(ctx context.Context, id int64, p models.PageQuery) ([]*models.Review, int, error) {
	args := m.Called(ctx, id, p)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]*models.Review), args.Int(1), args.Error(2)
}
func (m *mockReviewRepo) ProviderRatingStats(ctx context.Context, id int64) (float64, int, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(float64), args.Int(1), args.Error(2)
}

type mockCatalog struct {
	mock.Mock
}

func (m *mockCatalog) GetActiveService(ctx context.Context, id int64) (*models.Service, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Service), args.Error(1)
}

type mockProviders struct {
	mock.Mock
}

func (m *mockProviders) GetProvider(ctx context.Context, id int64) (*models.ProviderProfile, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ProviderProfile), args.Error(1)
}
func (m *mockProviders) GetProviderByUserID(ctx context.Context, id int64) (*models.ProviderProfile, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ProviderProfile), args.Error(1)
}
func (m *mockProviders) GetAvailableVerifiedProvider(ctx context.Context, id int64) (*models.ProviderProfile, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ProviderProfile), args.Error(1)
}
func (m *mockProviders) IncrementTotalJobs(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}
func (m *mockProviders) SetRating(ctx context.Context, id int64, r float64) error {
	return m.Called(ctx, id, r).Error(0)
}

type mockEventBus struct {
	mock.Mock
}

func (m *mockEventBus) PublishJSON(et string, p interface{}) error { return m.Called(et, p).Error(0) }

type mockNotificationRepo struct {
	mock.Mock
}

func (m *mockNotificationRepo) CreateNotification(ctx context.Context, n *models.Notification) error {
	return m.Called(ctx, n).Error(0)
}
func (m *mockNotificationRepo) GetNotification(ctx context.Context, id int64) (*models.Notification, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Notification), args.Error(1)
}
func (m *mockNotificationRepo) ListNotifications(ctx context.Context, uid int64, unread bool, p models.PageQuery) ([]*models.Notification, int, error) {
	args := m.Called(ctx, uid, unread, p)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]*models.Notification), args.Int(1), args.Error(2)
}
func (m *mockNotificationRepo) CountUnreadNotifications(ctx context.Context, uid int64) (int, error) {
	args := m.Called(ctx, uid)
	return args.Int(0), args.Error(1)
}
func (m *mockNotificationRepo) MarkNotificationRead(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}
func (m *mockNotificationRepo) MarkAllNotificationsRead(ctx context.Context, uid int64) (int64, error) {
	args := m.Called(ctx, uid)
	return args.Get(0).(int64), args.Error(1)
}

type mockOutbox struct {
	mock.Mock
}

func (m *mockOutbox) EnqueueTask(ctx context.Context, tt string, ref int64, p interface{}) error {
	return m.Called(ctx, tt, ref, p).Error(0)
}

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) CreateOrder(ctx context.Context, id int64, amount float64) (string, error) {
	args := m.Called(ctx, id, amount)
	return args.String(0), args.Error(1)
}
func (m *mockGateway) Charge(ctx context.Context, p *models.Payment, gid string) (bool, error) {
	args := m.Called(ctx, p, gid)
	return args.Bool(0), args.Error(1)
}

func int64Ptr(v int64) *int64 { return &v }
