package service

import (
	"context"
	"errors"
	"math"

	"homeservices/internal/apperror"
	"homeservices/internal/database"
	"homeservices/internal/domain"
	"homeservices/internal/events"
	"homeservices/internal/models"

	"github.com/rs/zerolog"
)

type ReviewService struct {
	reviews   domain.ReviewRepository
	bookings  domain.BookingRepository
	providers domain.ProviderDirectory
	eventBus  domain.EventPublisher
	logger    *zerolog.Logger
}

func NewReviewService(
	reviews domain.ReviewRepository,
	bookings domain.BookingRepository,
	providers domain.ProviderDirectory,
	eventBus domain.EventPublisher,
	logger *zerolog.Logger,
) *ReviewService {
	return &ReviewService{
		reviews:   reviews,
		bookings:  bookings,
		providers: providers,
		eventBus:  eventBus,
		logger:    logger,
	}
}

func (s *ReviewService) CreateReview(ctx context.Context, caller models.Caller, in models.CreateReviewInput) (*models.Review, error) {
	if in.Rating < 1 || in.Rating > 5 {
		return nil, apperror.BadRequest("Validation failed").WithDetails(map[string][]string{
			"rating": {"must be between 1 and 5"},
		})
	}

	booking, err := s.bookings.GetBooking(ctx, in.BookingID)
	if err != nil {
		return nil, lookupError(err, "Booking not found")
	}
	if !caller.IsCustomer() || booking.CustomerID != caller.UserID {
		return nil, apperror.Forbidden("You can only review your own bookings")
	}
	if booking.Status != models.StatusCompleted {
		return nil, apperror.BadRequest("You can only review completed bookings")
	}
	if booking.ProviderID == nil {
		return nil, apperror.BadRequest("No provider assigned to this booking")
	}

	review := &models.Review{
		BookingID:  booking.ID,
		CustomerID: caller.UserID,
		ProviderID: *booking.ProviderID,
		Rating:     in.Rating,
		Comment:    in.Comment,
	}
	if err := s.reviews.CreateReview(ctx, review); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, apperror.Conflict("Review already exists for this booking")
		}
		return nil, apperror.Internal(err)
	}

	if err := s.RecomputeProviderRating(ctx, review.ProviderID); err != nil {
		s.logger.Error().Err(err).Int64("provider_id", review.ProviderID).Msg("recompute rating error")
	}

	if s.eventBus != nil {
		payload := bookingPayload(booking)
		payload.Rating = review.Rating
		payload.ActorID = caller.UserID
		if err := s.eventBus.PublishJSON(events.EventReviewReceived, payload); err != nil {
			s.logger.Error().Err(err).Str("event_type", events.EventReviewReceived).Int64("booking_id", booking.ID).Msg("publish event error")
		}
	}
	return review, nil
}

// RecomputeProviderRating stores the provider's mean rating rounded to two decimals.
func (s *ReviewService) RecomputeProviderRating(ctx context.Context, providerID int64) error {
	avg, count, err := s.reviews.ProviderRatingStats(ctx, providerID)
	if err != nil {
		return err
	}
	if count == 0 {
		return nil
	}
	return s.providers.SetRating(ctx, providerID, RoundRating(avg))
}

func RoundRating(avg float64) float64 {
	return math.Round(avg*100) / 100
}

func (s *ReviewService) GetReviewByBooking(ctx context.Context, caller models.Caller, bookingID int64) (*models.Review, error) {
	booking, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, lookupError(err, "Booking not found")
	}
	if !CanAccessBooking(caller, booking) {
		return nil, apperror.Forbidden("")
	}
	review, err := s.reviews.GetReviewByBooking(ctx, bookingID)
	if err != nil {
		return nil, lookupError(err, "Review not found")
	}
	return review, nil
}

func (s *ReviewService) ListProviderReviews(ctx context.Context, providerID int64, page models.PageQuery) ([]*models.Review, models.PageMeta, error) {
	if _, err := s.providers.GetProvider(ctx, providerID); err != nil {
		return nil, models.PageMeta{}, lookupError(err, "Provider not found")
	}
	page = page.Normalize()
	reviews, total, err := s.reviews.ListProviderReviews(ctx, providerID, page)
	if err != nil {
		return nil, models.PageMeta{}, apperror.Internal(err)
	}
	return reviews, models.NewPageMeta(page, total), nil
}
