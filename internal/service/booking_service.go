package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"homeservices/internal/apperror"
	"homeservices/internal/database"
	"homeservices/internal/domain"
	"homeservices/internal/events"
	"homeservices/internal/models"

	"github.com/rs/zerolog"
)

type BookingService struct {
	repo      domain.BookingRepository
	catalog   domain.ServiceCatalog
	providers domain.ProviderDirectory
	eventBus  domain.EventPublisher
	logger    *zerolog.Logger
	now       func() time.Time
}

func NewBookingService(
	repo domain.BookingRepository,
	catalog domain.ServiceCatalog,
	providers domain.ProviderDirectory,
	eventBus domain.EventPublisher,
	logger *zerolog.Logger,
) *BookingService {
	return &BookingService{
		repo:      repo,
		catalog:   catalog,
		providers: providers,
		eventBus:  eventBus,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *BookingService) CreateBooking(ctx context.Context, caller models.Caller, in models.CreateBookingInput) (*models.Booking, error) {
	if !caller.IsCustomer() {
		return nil, apperror.Forbidden("Only customers can create bookings")
	}
	if err := validateBookingInput(in); err != nil {
		return nil, err
	}

	svc, err := s.catalog.GetActiveService(ctx, in.ServiceID)
	if err != nil {
		return nil, lookupError(err, "Service not found or inactive")
	}

	if in.ProviderID != nil {
		if _, err := s.providers.GetAvailableVerifiedProvider(ctx, *in.ProviderID); err != nil {
			if errors.Is(err, database.ErrNotFound) {
				return nil, apperror.BadRequest("Provider not available")
			}
			return nil, apperror.Internal(err)
		}
	}

	booking := &models.Booking{
		CustomerID:    caller.UserID,
		ProviderID:    in.ProviderID,
		ServiceID:     svc.ID,
		Status:        models.StatusPending,
		ScheduledDate: in.ScheduledDate,
		ScheduledTime: in.ScheduledTime,
		Address:       strings.TrimSpace(in.Address),
		Lat:           in.Lat,
		Lng:           in.Lng,
		Notes:         in.Notes,
		TotalPrice:    svc.BasePrice,
		PaymentStatus: models.PaymentStatusPending,
	}
	if err := s.repo.CreateBooking(ctx, booking); err != nil {
		return nil, apperror.Internal(err)
	}

	s.publishEvent(events.EventBookingCreated, booking, "", caller)
	return booking, nil
}

func validateBookingInput(in models.CreateBookingInput) error {
	details := map[string][]string{}
	if in.ServiceID <= 0 {
		details["service_id"] = append(details["service_id"], "is required")
	}
	if _, err := time.Parse("2006-01-02", in.ScheduledDate); err != nil {
		details["scheduled_date"] = append(details["scheduled_date"], "must be a date in YYYY-MM-DD format")
	}
	if _, err := time.Parse("15:04", in.ScheduledTime); err != nil {
		details["scheduled_time"] = append(details["scheduled_time"], "must be a time in HH:MM format")
	}
	if strings.TrimSpace(in.Address) == "" {
		details["address"] = append(details["address"], "is required")
	}
	if len(details) > 0 {
		return apperror.BadRequest("Validation failed").WithDetails(details)
	}
	return nil
}

// AcceptBooking claims the booking for the calling provider. The claim is a
// single conditional update, so concurrent providers get at most one winner.
func (s *BookingService) AcceptBooking(ctx context.Context, caller models.Caller, id int64) (*models.Booking, error) {
	if err := requireProvider(caller); err != nil {
		return nil, err
	}
	booking, err := s.getBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canClaimBooking(caller, booking) {
		return nil, apperror.Forbidden("This booking is assigned to another provider")
	}
	if !models.CanTransition(booking.Status, models.StatusAccepted) {
		return nil, transitionError(booking.Status, models.StatusAccepted)
	}

	if err := s.repo.AcceptBooking(ctx, id, caller.ProviderID); err != nil {
		if !errors.Is(err, database.ErrConcurrentModification) {
			return nil, apperror.Internal(err)
		}
		return nil, s.explainLostAccept(ctx, caller, id)
	}

	previous := booking.Status
	providerID := caller.ProviderID
	booking.ProviderID = &providerID
	booking.Status = models.StatusAccepted
	booking.Version++
	booking.UpdatedAt = s.now()

	s.publishEvent(events.EventBookingAccepted, booking, previous, caller)
	return booking, nil
}

func (s *BookingService) explainLostAccept(ctx context.Context, caller models.Caller, id int64) error {
	current, err := s.getBooking(ctx, id)
	if err != nil {
		return err
	}
	if !canClaimBooking(caller, current) {
		return apperror.Forbidden("This booking is assigned to another provider")
	}
	if !models.CanTransition(current.Status, models.StatusAccepted) {
		return transitionError(current.Status, models.StatusAccepted)
	}
	return errConcurrentBooking
}

func (s *BookingService) RejectBooking(ctx context.Context, caller models.Caller, id int64) (*models.Booking, error) {
	if err := requireProvider(caller); err != nil {
		return nil, err
	}
	booking, err := s.getBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canClaimBooking(caller, booking) {
		return nil, apperror.Forbidden("This booking is assigned to another provider")
	}
	return s.transition(ctx, caller, booking, models.StatusRejected, events.EventBookingRejected, nil)
}

func (s *BookingService) StartBooking(ctx context.Context, caller models.Caller, id int64) (*models.Booking, error) {
	if err := requireProvider(caller); err != nil {
		return nil, err
	}
	booking, err := s.getVisibleBooking(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	return s.transition(ctx, caller, booking, models.StatusInProgress, events.EventBookingStarted, func(tr *models.BookingTransition) {
		tr.StartedAt = &now
	})
}

// CompleteBooking finishes the job. Completion settles the booking as paid
// whatever the payment record says (cash collected on site).
func (s *BookingService) CompleteBooking(ctx context.Context, caller models.Caller, id int64) (*models.Booking, error) {
	if err := requireProvider(caller); err != nil {
		return nil, err
	}
	booking, err := s.getVisibleBooking(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	updated, err := s.transition(ctx, caller, booking, models.StatusCompleted, events.EventBookingCompleted, func(tr *models.BookingTransition) {
		tr.CompletedAt = &now
		tr.PaymentStatus = models.PaymentStatusPaid
	})
	if err != nil {
		return nil, err
	}

	if err := s.providers.IncrementTotalJobs(ctx, *updated.ProviderID); err != nil {
		s.logger.Error().Err(err).Int64("provider_id", *updated.ProviderID).Int64("booking_id", id).Msg("increment total jobs error")
	}
	return updated, nil
}

func (s *BookingService) CancelBooking(ctx context.Context, caller models.Caller, id int64, reason string) (*models.Booking, error) {
	booking, err := s.getVisibleBooking(ctx, caller, id)
	if err != nil {
		return nil, err
	}
	cancelledBy := caller.Role
	var cancelReason *string
	if r := strings.TrimSpace(reason); r != "" {
		cancelReason = &r
	}
	return s.transition(ctx, caller, booking, models.StatusCancelled, events.EventBookingCancelled, func(tr *models.BookingTransition) {
		tr.CancelledBy = &cancelledBy
		tr.CancelReason = cancelReason
	})
}

func (s *BookingService) GetBooking(ctx context.Context, caller models.Caller, id int64) (*models.Booking, error) {
	return s.getVisibleBooking(ctx, caller, id)
}

// ListBookings returns a page of the bookings visible to caller.
func (s *BookingService) ListBookings(ctx context.Context, caller models.Caller, filter models.BookingFilter, page models.PageQuery) ([]*models.Booking, models.PageMeta, error) {
	if caller.IsProvider() && caller.ProviderID == 0 {
		return nil, models.PageMeta{}, apperror.NotFound("Provider profile not found")
	}
	if filter.Status != "" && !models.ValidBookingStatus(filter.Status) {
		return nil, models.PageMeta{}, apperror.BadRequest("Invalid booking status")
	}
	page = page.Normalize()
	bookings, total, err := s.repo.ListBookings(ctx, BookingScope(caller, filter), page)
	if err != nil {
		return nil, models.PageMeta{}, apperror.Internal(err)
	}
	return bookings, models.NewPageMeta(page, total), nil
}

// transition applies one edge of the state machine as a compare-and-set on status and version.
func (s *BookingService) transition(
	ctx context.Context,
	caller models.Caller,
	booking *models.Booking,
	to string,
	eventType string,
	mutate func(*models.BookingTransition),
) (*models.Booking, error) {
	if !models.CanTransition(booking.Status, to) {
		return nil, transitionError(booking.Status, to)
	}

	tr := models.BookingTransition{
		BookingID: booking.ID,
		Version:   booking.Version,
		From:      booking.Status,
		To:        to,
	}
	if mutate != nil {
		mutate(&tr)
	}

	if err := s.repo.TransitionBooking(ctx, tr); err != nil {
		if errors.Is(err, database.ErrConcurrentModification) {
			return nil, errConcurrentBooking
		}
		return nil, apperror.Internal(err)
	}

	updated := *booking
	updated.Status = to
	updated.Version++
	updated.UpdatedAt = s.now()
	if tr.StartedAt != nil {
		updated.StartedAt = tr.StartedAt
	}
	if tr.CompletedAt != nil {
		updated.CompletedAt = tr.CompletedAt
	}
	if tr.PaymentStatus != "" {
		updated.PaymentStatus = tr.PaymentStatus
	}
	if tr.CancelledBy != nil {
		updated.CancelledBy = tr.CancelledBy
	}
	if tr.CancelReason != nil {
		updated.CancelReason = tr.CancelReason
	}

	s.publishEvent(eventType, &updated, booking.Status, caller)
	return &updated, nil
}

func (s *BookingService) getBooking(ctx context.Context, id int64) (*models.Booking, error) {
	booking, err := s.repo.GetBooking(ctx, id)
	if err != nil {
		return nil, lookupError(err, "Booking not found")
	}
	return booking, nil
}

func (s *BookingService) getVisibleBooking(ctx context.Context, caller models.Caller, id int64) (*models.Booking, error) {
	if caller.IsProvider() && caller.ProviderID == 0 {
		return nil, apperror.NotFound("Provider profile not found")
	}
	booking, err := s.getBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanAccessBooking(caller, booking) {
		return nil, apperror.Forbidden("")
	}
	return booking, nil
}

func requireProvider(caller models.Caller) error {
	if !caller.IsProvider() {
		return apperror.Forbidden("Only providers can perform this action")
	}
	if caller.ProviderID == 0 {
		return apperror.NotFound("Provider profile not found")
	}
	return nil
}

func (s *BookingService) publishEvent(eventType string, booking *models.Booking, previous string, caller models.Caller) {
	if s.eventBus == nil {
		return
	}

	payload := bookingPayload(booking)
	payload.PreviousStatus = previous
	payload.ActorID = caller.UserID

	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("booking_id", booking.ID).Msg("publish event error")
	}
}

func bookingPayload(booking *models.Booking) events.BookingEventPayload {
	payload := events.BookingEventPayload{
		BookingID:     booking.ID,
		CustomerID:    booking.CustomerID,
		Status:        booking.Status,
		ScheduledDate: booking.ScheduledDate,
	}
	if booking.ProviderID != nil {
		payload.ProviderID = *booking.ProviderID
	}
	if booking.CancelledBy != nil {
		payload.CancelledBy = *booking.CancelledBy
	}
	return payload
}
