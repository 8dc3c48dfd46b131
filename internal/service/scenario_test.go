package service

import (
	"context"
	"testing"

	"homeservices/internal/apperror"
	"homeservices/internal/database"
	"homeservices/internal/events"
	"homeservices/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type marketplace struct {
	db            *database.DB
	bookings      *BookingService
	payments      *PaymentService
	reviews       *ReviewService
	notifications *NotificationService
	gateway       *MockGateway
	customer      models.Caller
	provider      models.Caller
	serviceID     int64
}

func newMarketplace(t *testing.T) *marketplace {
	t.Helper()
	ctx := context.Background()
	logger := zerolog.Nop()

	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	bus := events.NewEventBus()
	m := &marketplace{db: db, gateway: NewMockGateway(DefaultSuccessRate)}
	m.bookings = NewBookingService(db, db, db, bus, &logger)
	m.payments = NewPaymentService(db, db, m.gateway, bus, &logger)
	m.reviews = NewReviewService(db, db, db, bus, &logger)
	m.notifications = NewNotificationService(db, db, nil, &logger)
	m.notifications.Subscribe(bus)

	cust := &models.User{Name: "Casey", Email: "casey@example.com", Role: models.RoleCustomer, IsActive: true}
	require.NoError(t, db.CreateUser(ctx, cust))
	provUser := &models.User{Name: "Pat", Email: "pat@example.com", Role: models.RoleProvider, IsActive: true}
	require.NoError(t, db.CreateUser(ctx, provUser))
	profile := &models.ProviderProfile{UserID: provUser.ID, IsAvailable: true, Verified: true}
	require.NoError(t, db.CreateProvider(ctx, profile))
	svc := &models.Service{Name: "Deep clean", BasePrice: 60, DurationMinutes: 120, IsActive: true}
	require.NoError(t, db.CreateService(ctx, svc))

	m.customer = models.Caller{UserID: cust.ID, Role: models.RoleCustomer}
	m.provider = models.Caller{UserID: provUser.ID, Role: models.RoleProvider, ProviderID: profile.ID}
	m.serviceID = svc.ID
	return m
}

func (m *marketplace) book(t *testing.T) *models.Booking {
	t.Helper()
	b, err := m.bookings.CreateBooking(context.Background(), m.customer, models.CreateBookingInput{
		ServiceID: m.serviceID, ScheduledDate: "2026-11-01", ScheduledTime: "09:30", Address: "5 Elm St",
	})
	require.NoError(t, err)
	return b
}

func TestScenario_FullLifecycle(t *testing.T) {
	m := newMarketplace(t)
	ctx := context.Background()

	b := m.book(t)
	assert.Equal(t, 60.0, b.TotalPrice)
	assert.Equal(t, models.StatusPending, b.Status)

	b, err := m.bookings.AcceptBooking(ctx, m.provider, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAccepted, b.Status)
	assert.True(t, b.AssignedTo(m.provider.ProviderID))

	b, err = m.bookings.StartBooking(ctx, m.provider, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, b.Status)

	_, err = m.bookings.CompleteBooking(ctx, m.provider, b.ID)
	require.NoError(t, err)

	stored, err := m.db.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, stored.Status)
	assert.Equal(t, models.PaymentStatusPaid, stored.PaymentStatus)
	require.NotNil(t, stored.StartedAt)
	require.NotNil(t, stored.CompletedAt)
	assert.False(t, stored.CompletedAt.Before(*stored.StartedAt))
	assert.False(t, stored.StartedAt.Before(stored.CreatedAt))

	profile, err := m.db.GetProvider(ctx, m.provider.ProviderID)
	require.NoError(t, err)
	assert.Equal(t, 1, profile.TotalJobs)

	// the customer hears about accept, start and completion
	count, err := m.notifications.UnreadCount(ctx, m.customer)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	_, err = m.bookings.CancelBooking(ctx, m.customer, b.ID, "")
	assert.Equal(t, apperror.KindBadRequest, apperror.KindOf(err))
	assert.Equal(t, "Cannot transition from completed to cancelled", apperror.From(err).Message)
}

func TestScenario_PriceSnapshot(t *testing.T) {
	m := newMarketplace(t)
	ctx := context.Background()

	b := m.book(t)
	svc, err := m.db.GetServiceByName(ctx, "Deep clean")
	require.NoError(t, err)
	svc.BasePrice = 95
	require.NoError(t, m.db.UpdateService(ctx, svc))

	stored, err := m.db.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 60.0, stored.TotalPrice)
}

func TestScenario_PaymentRetry(t *testing.T) {
	m := newMarketplace(t)
	ctx := context.Background()
	b := m.book(t)

	first, err := m.payments.InitiatePayment(ctx, m.customer, b.ID, models.MethodCard)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentProcessing, first.Payment.Status)
	assert.Equal(t, 60.0, first.Payment.Amount)

	m.gateway.WithRand(func() float64 { return 0.999 })
	res, err := m.payments.ConfirmPayment(ctx, m.customer, b.ID, "")
	require.NoError(t, err)
	assert.False(t, res.Success)

	stored, err := m.db.GetPaymentByBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentFailed, stored.Status)
	booking, err := m.db.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFailed, booking.PaymentStatus)

	again, err := m.payments.InitiatePayment(ctx, m.customer, b.ID, models.MethodUPI)
	require.NoError(t, err)
	assert.Equal(t, first.Payment.ID, again.Payment.ID)
	assert.Equal(t, models.PaymentProcessing, again.Payment.Status)

	m.gateway.WithRand(func() float64 { return 0.01 })
	res, err = m.payments.ConfirmPayment(ctx, m.customer, b.ID, "")
	require.NoError(t, err)
	assert.True(t, res.Success)

	_, err = m.payments.InitiatePayment(ctx, m.customer, b.ID, models.MethodCard)
	assert.Equal(t, apperror.KindConflict, apperror.KindOf(err))

	refund, err := m.payments.RefundPayment(ctx, again.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentRefunded, refund.Payment.Status)

	booking, err = m.db.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusRefunded, booking.PaymentStatus)

	_, err = m.payments.RefundPayment(ctx, again.Payment.ID)
	assert.Equal(t, apperror.KindBadRequest, apperror.KindOf(err))
}

func TestScenario_RatingAverage(t *testing.T) {
	m := newMarketplace(t)
	ctx := context.Background()

	for _, rating := range []int{5, 3} {
		b := m.book(t)
		_, err := m.bookings.AcceptBooking(ctx, m.provider, b.ID)
		require.NoError(t, err)
		_, err = m.bookings.StartBooking(ctx, m.provider, b.ID)
		require.NoError(t, err)
		_, err = m.bookings.CompleteBooking(ctx, m.provider, b.ID)
		require.NoError(t, err)

		_, err = m.reviews.CreateReview(ctx, m.customer, models.CreateReviewInput{BookingID: b.ID, Rating: rating})
		require.NoError(t, err)

		_, err = m.reviews.CreateReview(ctx, m.customer, models.CreateReviewInput{BookingID: b.ID, Rating: 1})
		assert.Equal(t, apperror.KindConflict, apperror.KindOf(err))
	}

	profile, err := m.db.GetProvider(ctx, m.provider.ProviderID)
	require.NoError(t, err)
	assert.Equal(t, 4.0, profile.Rating)
	assert.Equal(t, 2, profile.TotalJobs)

	reviews, meta, err := m.reviews.ListProviderReviews(ctx, m.provider.ProviderID, models.PageQuery{})
	require.NoError(t, err)
	assert.Len(t, reviews, 2)
	assert.Equal(t, 2, meta.Total)
	assert.Equal(t, "Casey", reviews[0].CustomerName)

	// bookings were created without a provider, so reviews are the provider's only notifications
	items, _, err := m.notifications.ListNotifications(ctx, models.Caller{UserID: m.provider.UserID}, false, models.PageQuery{})
	require.NoError(t, err)
	assert.Len(t, items, 2)
	for _, n := range items {
		assert.Equal(t, models.NotificationReviewReceived, n.Type)
	}
}

func TestScenario_RejectTwice(t *testing.T) {
	m := newMarketplace(t)
	ctx := context.Background()
	b := m.book(t)

	_, err := m.bookings.RejectBooking(ctx, m.provider, b.ID)
	require.NoError(t, err)
	_, err = m.bookings.RejectBooking(ctx, m.provider, b.ID)
	assert.Equal(t, apperror.KindBadRequest, apperror.KindOf(err))
}
