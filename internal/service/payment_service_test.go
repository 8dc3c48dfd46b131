package service

import (
	"context"
	"errors"
	"io"
	"testing"

	"homeservices/internal/apperror"
	"homeservices/internal/database"
	"homeservices/internal/events"
	"homeservices/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type paymentDeps struct {
	payments *mockPaymentRepo
	bookings *mockBookingRepo
	gateway  *mockGateway
	bus      *mockEventBus
	svc      *PaymentService
}

func newPaymentDeps() paymentDeps {
	d := paymentDeps{
		payments: new(mockPaymentRepo),
		bookings: new(mockBookingRepo),
		gateway:  new(mockGateway),
		bus:      new(mockEventBus),
	}
	logger := zerolog.New(io.Discard)
	d.svc = NewPaymentService(d.payments, d.bookings, d.gateway, d.bus, &logger)
	return d
}

func acceptedBooking() *models.Booking {
	return &models.Booking{ID: 7, CustomerID: 1, ProviderID: int64Ptr(20), Status: models.StatusAccepted, TotalPrice: 60}
}

func TestPaymentService_InitiatePayment(t *testing.T) {
	ctx := context.Background()

	t.Run("CreatesProcessing", func(t *testing.T) {
		d := newPaymentDeps()
		d.bookings.On("GetBooking", ctx, int64(7)).Return(acceptedBooking(), nil).Once()
		d.gateway.On("CreateOrder", ctx, int64(7), 60.0).Return("order_1", nil).Once()
		d.payments.On("StartPaymentAttempt", ctx, mock.MatchedBy(func(p *models.Payment) bool {
			return p.Amount == 60 && p.Method == models.MethodCard && p.GatewayOrderID == "order_1"
		})).Run(func(args mock.Arguments) {
			p := args.Get(1).(*models.Payment)
			p.ID = 3
			p.Status = models.PaymentProcessing
		}).Return(nil).Once()

		res, err := d.svc.InitiatePayment(ctx, customer, 7, models.MethodCard)
		require.NoError(t, err)
		assert.Equal(t, "order_1", res.GatewayOrderID)
		assert.Equal(t, models.PaymentProcessing, res.Payment.Status)
		assert.Equal(t, 60.0, res.Payment.Amount)
	})

	t.Run("DefaultsToCash", func(t *testing.T) {
		d := newPaymentDeps()
		d.bookings.On("GetBooking", ctx, int64(7)).Return(acceptedBooking(), nil).Once()
		d.gateway.On("CreateOrder", ctx, int64(7), 60.0).Return("order_2", nil).Once()
		d.payments.On("StartPaymentAttempt", ctx, mock.MatchedBy(func(p *models.Payment) bool {
			return p.Method == models.MethodCash
		})).Return(nil).Once()

		_, err := d.svc.InitiatePayment(ctx, customer, 7, "")
		require.NoError(t, err)
		d.payments.AssertExpectations(t)
	})

	t.Run("AlreadyCompleted", func(t *testing.T) {
		d := newPaymentDeps()
		d.bookings.On("GetBooking", ctx, int64(7)).Return(acceptedBooking(), nil).Once()
		d.gateway.On("CreateOrder", ctx, int64(7), 60.0).Return("order_3", nil).Once()
		d.payments.On("StartPaymentAttempt", ctx, mock.Anything).Return(database.ErrPaymentCompleted).Once()

		_, err := d.svc.InitiatePayment(ctx, customer, 7, models.MethodUPI)
		assert.Equal(t, apperror.KindConflict, apperror.KindOf(err))
		assert.Equal(t, "Payment already completed", apperror.From(err).Message)
	})

	t.Run("NotOwner", func(t *testing.T) {
		d := newPaymentDeps()
		d.bookings.On("GetBooking", ctx, int64(7)).Return(acceptedBooking(), nil).Once()
		_, err := d.svc.InitiatePayment(ctx, models.Caller{UserID: 99, Role: models.RoleCustomer}, 7, models.MethodCard)
		assert.Equal(t, apperror.KindForbidden, apperror.KindOf(err))
	})

	t.Run("InvalidMethod", func(t *testing.T) {
		d := newPaymentDeps()
		_, err := d.svc.InitiatePayment(ctx, customer, 7, "bitcoin")
		assert.Equal(t, apperror.KindBadRequest, apperror.KindOf(err))
		assert.Contains(t, apperror.From(err).Details, "method")
	})

	t.Run("CancelledBooking", func(t *testing.T) {
		d := newPaymentDeps()
		b := acceptedBooking()
		b.Status = models.StatusCancelled
		d.bookings.On("GetBooking", ctx, int64(7)).Return(b, nil).Once()
		_, err := d.svc.InitiatePayment(ctx, customer, 7, models.MethodCard)
		assert.Equal(t, apperror.KindBadRequest, apperror.KindOf(err))
	})
}

func TestPaymentService_ConfirmPayment(t *testing.T) {
	ctx := context.Background()
	processing := func() *models.Payment {
		return &models.Payment{ID: 3, BookingID: 7, Amount: 60, Method: models.MethodCard, Status: models.PaymentProcessing}
	}

	t.Run("Success", func(t *testing.T) {
		d := newPaymentDeps()
		d.bookings.On("GetBooking", ctx, int64(7)).Return(acceptedBooking(), nil).Once()
		d.payments.On("GetPaymentByBooking", ctx, int64(7)).Return(processing(), nil).Once()
		d.gateway.On("Charge", ctx, mock.Anything, "gw_1").Return(true, nil).Once()
		d.payments.On("ResolvePayment", ctx, mock.MatchedBy(func(r models.PaymentResolution) bool {
			return r.Success && r.PaymentID == 3 && r.BookingID == 7 && len(r.TransactionID) == 16 && !r.PaidAt.IsZero()
		})).Return(nil).Once()
		d.bus.On("PublishJSON", events.EventPaymentReceived, mock.MatchedBy(func(p events.BookingEventPayload) bool {
			return p.Amount == 60 && p.ProviderID == 20
		})).Return(nil).Once()

		res, err := d.svc.ConfirmPayment(ctx, customer, 7, "gw_1")
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Equal(t, models.PaymentCompleted, res.Payment.Status)
		require.NotNil(t, res.Payment.TransactionID)
		assert.Regexp(t, `^TXN_`, *res.Payment.TransactionID)
		assert.NotNil(t, res.Payment.PaidAt)
		d.bus.AssertExpectations(t)
	})

	t.Run("Declined", func(t *testing.T) {
		d := newPaymentDeps()
		d.bookings.On("GetBooking", ctx, int64(7)).Return(acceptedBooking(), nil).Once()
		d.payments.On("GetPaymentByBooking", ctx, int64(7)).Return(processing(), nil).Once()
		d.gateway.On("Charge", ctx, mock.Anything, "").Return(false, nil).Once()
		d.payments.On("ResolvePayment", ctx, mock.MatchedBy(func(r models.PaymentResolution) bool {
			return !r.Success && r.TransactionID == ""
		})).Return(nil).Once()
		d.bus.On("PublishJSON", events.EventPaymentFailed, mock.Anything).Return(nil).Once()

		res, err := d.svc.ConfirmPayment(ctx, customer, 7, "")
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Equal(t, models.PaymentFailed, res.Payment.Status)
		assert.Nil(t, res.Payment.TransactionID)
	})

	t.Run("NotInitiated", func(t *testing.T) {
		d := newPaymentDeps()
		d.bookings.On("GetBooking", ctx, int64(7)).Return(acceptedBooking(), nil).Once()
		d.payments.On("GetPaymentByBooking", ctx, int64(7)).Return(nil, database.ErrNotFound).Once()
		_, err := d.svc.ConfirmPayment(ctx, customer, 7, "")
		assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))
	})

	t.Run("AlreadyCompleted", func(t *testing.T) {
		d := newPaymentDeps()
		p := processing()
		p.Status = models.PaymentCompleted
		d.bookings.On("GetBooking", ctx, int64(7)).Return(acceptedBooking(), nil).Once()
		d.payments.On("GetPaymentByBooking", ctx, int64(7)).Return(p, nil).Once()
		_, err := d.svc.ConfirmPayment(ctx, customer, 7, "")
		assert.Equal(t, apperror.KindConflict, apperror.KindOf(err))
		d.gateway.AssertNotCalled(t, "Charge", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("FailedNeedsReinitiate", func(t *testing.T) {
		d := newPaymentDeps()
		p := processing()
		p.Status = models.PaymentFailed
		d.bookings.On("GetBooking", ctx, int64(7)).Return(acceptedBooking(), nil).Once()
		d.payments.On("GetPaymentByBooking", ctx, int64(7)).Return(p, nil).Once()
		_, err := d.svc.ConfirmPayment(ctx, customer, 7, "")
		assert.Equal(t, apperror.KindBadRequest, apperror.KindOf(err))
	})

	t.Run("GatewayError", func(t *testing.T) {
		d := newPaymentDeps()
		d.bookings.On("GetBooking", ctx, int64(7)).Return(acceptedBooking(), nil).Once()
		d.payments.On("GetPaymentByBooking", ctx, int64(7)).Return(processing(), nil).Once()
		d.gateway.On("Charge", ctx, mock.Anything, "").Return(false, errors.New("timeout")).Once()
		_, err := d.svc.ConfirmPayment(ctx, customer, 7, "")
		assert.Equal(t, apperror.KindInternal, apperror.KindOf(err))
		d.payments.AssertNotCalled(t, "ResolvePayment", mock.Anything, mock.Anything)
	})

	t.Run("NotificationFailureDoesNotFail", func(t *testing.T) {
		d := newPaymentDeps()
		d.bookings.On("GetBooking", ctx, int64(7)).Return(acceptedBooking(), nil).Once()
		d.payments.On("GetPaymentByBooking", ctx, int64(7)).Return(processing(), nil).Once()
		d.gateway.On("Charge", ctx, mock.Anything, "").Return(true, nil).Once()
		d.payments.On("ResolvePayment", ctx, mock.Anything).Return(nil).Once()
		d.bus.On("PublishJSON", events.EventPaymentReceived, mock.Anything).Return(errors.New("down")).Once()

		res, err := d.svc.ConfirmPayment(ctx, customer, 7, "")
		require.NoError(t, err)
		assert.True(t, res.Success)
	})
}

func TestPaymentService_RefundPayment(t *testing.T) {
	ctx := context.Background()

	t.Run("Refunds", func(t *testing.T) {
		d := newPaymentDeps()
		d.payments.On("GetPayment", ctx, int64(3)).Return(&models.Payment{ID: 3, BookingID: 7, Amount: 60, Status: models.PaymentCompleted}, nil).Once()
		d.bookings.On("GetBooking", ctx, int64(7)).Return(acceptedBooking(), nil).Once()
		d.payments.On("RefundPayment", ctx, int64(3)).Return(nil).Once()
		d.bus.On("PublishJSON", events.EventPaymentRefunded, mock.Anything).Return(nil).Once()

		res, err := d.svc.RefundPayment(ctx, 3)
		require.NoError(t, err)
		assert.Equal(t, models.PaymentRefunded, res.Payment.Status)
		assert.Equal(t, "Payment refunded successfully", res.Message)
	})

	t.Run("NotCompleted", func(t *testing.T) {
		d := newPaymentDeps()
		d.payments.On("GetPayment", ctx, int64(3)).Return(&models.Payment{ID: 3, Status: models.PaymentProcessing}, nil).Once()
		_, err := d.svc.RefundPayment(ctx, 3)
		assert.Equal(t, apperror.KindBadRequest, apperror.KindOf(err))
	})

	t.Run("LostRace", func(t *testing.T) {
		d := newPaymentDeps()
		d.payments.On("GetPayment", ctx, int64(3)).Return(&models.Payment{ID: 3, BookingID: 7, Status: models.PaymentCompleted}, nil).Once()
		d.bookings.On("GetBooking", ctx, int64(7)).Return(acceptedBooking(), nil).Once()
		d.payments.On("RefundPayment", ctx, int64(3)).Return(database.ErrConcurrentModification).Once()
		_, err := d.svc.RefundPayment(ctx, 3)
		assert.Equal(t, apperror.KindBadRequest, apperror.KindOf(err))
	})

	t.Run("Missing", func(t *testing.T) {
		d := newPaymentDeps()
		d.payments.On("GetPayment", ctx, int64(3)).Return(nil, database.ErrNotFound).Once()
		_, err := d.svc.RefundPayment(ctx, 3)
		assert.Equal(t, "Payment not found", apperror.From(err).Message)
	})
}

func TestPaymentService_Reads(t *testing.T) {
	ctx := context.Background()

	t.Run("ByBookingScoped", func(t *testing.T) {
		d := newPaymentDeps()
		d.bookings.On("GetBooking", ctx, int64(7)).Return(acceptedBooking(), nil).Twice()
		d.payments.On("GetPaymentByBooking", ctx, int64(7)).Return(&models.Payment{ID: 3}, nil).Once()

		p, err := d.svc.GetPaymentByBooking(ctx, provider, 7)
		require.NoError(t, err)
		assert.Equal(t, int64(3), p.ID)

		_, err = d.svc.GetPaymentByBooking(ctx, models.Caller{UserID: 50, Role: models.RoleProvider, ProviderID: 50}, 7)
		assert.Equal(t, apperror.KindForbidden, apperror.KindOf(err))
	})

	t.Run("ByIDAdmin", func(t *testing.T) {
		d := newPaymentDeps()
		d.payments.On("GetPayment", ctx, int64(3)).Return(&models.Payment{ID: 3, BookingID: 7}, nil).Once()
		p, err := d.svc.GetPayment(ctx, admin, 3)
		require.NoError(t, err)
		assert.Equal(t, int64(7), p.BookingID)
		d.bookings.AssertNotCalled(t, "GetBooking", mock.Anything, mock.Anything)
	})

	t.Run("ByIDForeignCustomer", func(t *testing.T) {
		d := newPaymentDeps()
		d.payments.On("GetPayment", ctx, int64(3)).Return(&models.Payment{ID: 3, BookingID: 7}, nil).Once()
		d.bookings.On("GetBooking", ctx, int64(7)).Return(acceptedBooking(), nil).Once()
		_, err := d.svc.GetPayment(ctx, models.Caller{UserID: 8, Role: models.RoleCustomer}, 3)
		assert.Equal(t, apperror.KindForbidden, apperror.KindOf(err))
	})
}
