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

type reviewDeps struct {
	reviews   *mockReviewRepo
	bookings  *mockBookingRepo
	providers *mockProviders
	bus       *mockEventBus
	svc       *ReviewService
}

func newReviewDeps() reviewDeps {
	d := reviewDeps{
		reviews:   new(mockReviewRepo),
		bookings:  new(mockBookingRepo),
		providers: new(mockProviders),
		bus:       new(mockEventBus),
	}
	logger := zerolog.New(io.Discard)
	d.svc = NewReviewService(d.reviews, d.bookings, d.providers, d.bus, &logger)
	return d
}

func completedBooking() *models.Booking {
	return &models.Booking{ID: 7, CustomerID: 1, ProviderID: int64Ptr(20), Status: models.StatusCompleted}
}

func TestReviewService_CreateReview(t *testing.T) {
	ctx := context.Background()

	t.Run("RecomputesRating", func(t *testing.T) {
		d := newReviewDeps()
		d.bookings.On("GetBooking", ctx, int64(7)).Return(completedBooking(), nil).Once()
		d.reviews.On("CreateReview", ctx, mock.MatchedBy(func(r *models.Review) bool {
			return r.ProviderID == 20 && r.CustomerID == 1 && r.Rating == 3
		})).Return(nil).Once()
		d.reviews.On("ProviderRatingStats", ctx, int64(20)).Return(11.0/3.0, 3, nil).Once()
		d.providers.On("SetRating", ctx, int64(20), 3.67).Return(nil).Once()
		d.bus.On("PublishJSON", events.EventReviewReceived, mock.MatchedBy(func(p events.BookingEventPayload) bool {
			return p.Rating == 3 && p.ProviderID == 20
		})).Return(nil).Once()

		r, err := d.svc.CreateReview(ctx, customer, models.CreateReviewInput{BookingID: 7, Rating: 3})
		require.NoError(t, err)
		assert.Equal(t, 3, r.Rating)
		d.providers.AssertExpectations(t)
		d.bus.AssertExpectations(t)
	})

	t.Run("Duplicate", func(t *testing.T) {
		d := newReviewDeps()
		d.bookings.On("GetBooking", ctx, int64(7)).Return(completedBooking(), nil).Once()
		d.reviews.On("CreateReview", ctx, mock.Anything).Return(database.ErrDuplicate).Once()

		_, err := d.svc.CreateReview(ctx, customer, models.CreateReviewInput{BookingID: 7, Rating: 5})
		assert.Equal(t, apperror.KindConflict, apperror.KindOf(err))
		assert.Equal(t, "Review already exists for this booking", apperror.From(err).Message)
		d.providers.AssertNotCalled(t, "SetRating", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("RatingOutOfRange", func(t *testing.T) {
		d := newReviewDeps()
		for _, rating := range []int{0, 6, -1} {
			_, err := d.svc.CreateReview(ctx, customer, models.CreateReviewInput{BookingID: 7, Rating: rating})
			assert.Equal(t, apperror.KindBadRequest, apperror.KindOf(err))
		}
	})

	t.Run("NotOwner", func(t *testing.T) {
		d := newReviewDeps()
		d.bookings.On("GetBooking", ctx, int64(7)).Return(completedBooking(), nil).Once()
		_, err := d.svc.CreateReview(ctx, models.Caller{UserID: 9, Role: models.RoleCustomer}, models.CreateReviewInput{BookingID: 7, Rating: 5})
		assert.Equal(t, "You can only review your own bookings", apperror.From(err).Message)
	})

	t.Run("NotCompleted", func(t *testing.T) {
		d := newReviewDeps()
		b := completedBooking()
		b.Status = models.StatusInProgress
		d.bookings.On("GetBooking", ctx, int64(7)).Return(b, nil).Once()
		_, err := d.svc.CreateReview(ctx, customer, models.CreateReviewInput{BookingID: 7, Rating: 5})
		assert.Equal(t, "You can only review completed bookings", apperror.From(err).Message)
	})

	t.Run("NoProvider", func(t *testing.T) {
		d := newReviewDeps()
		b := completedBooking()
		b.ProviderID = nil
		d.bookings.On("GetBooking", ctx, int64(7)).Return(b, nil).Once()
		_, err := d.svc.CreateReview(ctx, customer, models.CreateReviewInput{BookingID: 7, Rating: 5})
		assert.Equal(t, apperror.KindBadRequest, apperror.KindOf(err))
		assert.Equal(t, "No provider assigned to this booking", apperror.From(err).Message)
	})

	t.Run("RecomputeFailureLogged", func(t *testing.T) {
		d := newReviewDeps()
		d.bookings.On("GetBooking", ctx, int64(7)).Return(completedBooking(), nil).Once()
		d.reviews.On("CreateReview", ctx, mock.Anything).Return(nil).Once()
		d.reviews.On("ProviderRatingStats", ctx, int64(20)).Return(0.0, 0, errors.New("busy")).Once()
		d.bus.On("PublishJSON", events.EventReviewReceived, mock.Anything).Return(nil).Once()

		_, err := d.svc.CreateReview(ctx, customer, models.CreateReviewInput{BookingID: 7, Rating: 5})
		assert.NoError(t, err)
	})
}

func TestRoundRating(t *testing.T) {
	assert.Equal(t, 4.0, RoundRating(4))
	assert.Equal(t, 3.67, RoundRating(11.0/3.0))
	assert.Equal(t, 4.33, RoundRating(13.0/3.0))
	assert.Equal(t, 4.5, RoundRating(4.5))
}

func TestReviewService_Reads(t *testing.T) {
	ctx := context.Background()

	t.Run("ByBooking", func(t *testing.T) {
		d := newReviewDeps()
		d.bookings.On("GetBooking", ctx, int64(7)).Return(completedBooking(), nil).Once()
		d.reviews.On("GetReviewByBooking", ctx, int64(7)).Return(nil, database.ErrNotFound).Once()
		_, err := d.svc.GetReviewByBooking(ctx, customer, 7)
		assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))
	})

	t.Run("ProviderReviewsPaged", func(t *testing.T) {
		d := newReviewDeps()
		d.providers.On("GetProvider", ctx, int64(20)).Return(&models.ProviderProfile{ID: 20}, nil).Once()
		d.reviews.On("ListProviderReviews", ctx, int64(20), models.PageQuery{Page: 1, Limit: 100}).
			Return([]*models.Review{{ID: 1}}, 1, nil).Once()

		items, meta, err := d.svc.ListProviderReviews(ctx, 20, models.PageQuery{Limit: 1000})
		require.NoError(t, err)
		assert.Len(t, items, 1)
		assert.Equal(t, 100, meta.Limit)
		assert.Equal(t, 1, meta.TotalPages)
	})

	t.Run("UnknownProvider", func(t *testing.T) {
		d := newReviewDeps()
		d.providers.On("GetProvider", ctx, int64(21)).Return(nil, database.ErrNotFound).Once()
		_, _, err := d.svc.ListProviderReviews(ctx, 21, models.PageQuery{})
		assert.Equal(t, apperror.KindNotFound, apperror.KindOf(err))
	})
}
