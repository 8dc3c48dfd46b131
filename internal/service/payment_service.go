package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"homeservices/internal/apperror"
	"homeservices/internal/database"
	"homeservices/internal/domain"
	"homeservices/internal/events"
	"homeservices/internal/models"

	"github.com/rs/zerolog"
)

type PaymentService struct {
	payments domain.PaymentRepository
	bookings domain.BookingRepository
	gateway  domain.PaymentGateway
	eventBus domain.EventPublisher
	logger   *zerolog.Logger
	now      func() time.Time
}

func NewPaymentService(
	payments domain.PaymentRepository,
	bookings domain.BookingRepository,
	gateway domain.PaymentGateway,
	eventBus domain.EventPublisher,
	logger *zerolog.Logger,
) *PaymentService {
	return &PaymentService{
		payments: payments,
		bookings: bookings,
		gateway:  gateway,
		eventBus: eventBus,
		logger:   logger,
		now:      time.Now,
	}
}

// InitiatePayment opens a payment attempt for the caller's booking. An existing
// attempt that is not completed is reset to processing with the new method.
func (s *PaymentService) InitiatePayment(ctx context.Context, caller models.Caller, bookingID int64, method string) (*models.PaymentInitiation, error) {
	if method == "" {
		method = models.MethodCash
	}
	if !models.ValidPaymentMethod(method) {
		return nil, apperror.BadRequest("Invalid payment method").WithDetails(map[string][]string{
			"method": {"must be one of card, upi, wallet, cash, net_banking"},
		})
	}

	booking, err := s.customerBooking(ctx, caller, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status == models.StatusCancelled || booking.Status == models.StatusRejected {
		return nil, apperror.BadRequest(fmt.Sprintf("Cannot pay for a %s booking", booking.Status))
	}

	orderID, err := s.gateway.CreateOrder(ctx, booking.ID, booking.TotalPrice)
	if err != nil {
		return nil, apperror.Internal(err)
	}

	payment := &models.Payment{
		BookingID:      booking.ID,
		Amount:         booking.TotalPrice,
		Method:         method,
		GatewayOrderID: orderID,
	}
	if err := s.payments.StartPaymentAttempt(ctx, payment); err != nil {
		if errors.Is(err, database.ErrPaymentCompleted) {
			return nil, apperror.Conflict("Payment already completed")
		}
		return nil, apperror.Internal(err)
	}

	return &models.PaymentInitiation{Payment: payment, GatewayOrderID: orderID}, nil
}

// ConfirmPayment resolves the processing attempt through the gateway. A declined
// charge is a normal result with Success false.
func (s *PaymentService) ConfirmPayment(ctx context.Context, caller models.Caller, bookingID int64, gatewayPaymentID string) (*models.PaymentConfirmation, error) {
	booking, err := s.customerBooking(ctx, caller, bookingID)
	if err != nil {
		return nil, err
	}

	payment, err := s.payments.GetPaymentByBooking(ctx, bookingID)
	if err != nil {
		return nil, lookupError(err, "No payment initiated for this booking")
	}
	switch payment.Status {
	case models.PaymentProcessing:
	case models.PaymentCompleted:
		return nil, apperror.Conflict("Payment already completed")
	case models.PaymentRefunded:
		return nil, apperror.Conflict("Payment already refunded")
	default:
		return nil, apperror.BadRequest("Payment is not awaiting confirmation, initiate it again")
	}

	approved, err := s.gateway.Charge(ctx, payment, gatewayPaymentID)
	if err != nil {
		return nil, apperror.Internal(err)
	}

	res := models.PaymentResolution{
		PaymentID: payment.ID,
		BookingID: booking.ID,
		Success:   approved,
	}
	if approved {
		res.TransactionID = NewTransactionID()
		res.PaidAt = s.now()
	}
	if err := s.payments.ResolvePayment(ctx, res); err != nil {
		if errors.Is(err, database.ErrConcurrentModification) {
			return nil, apperror.Conflict("Payment was modified concurrently, please retry")
		}
		return nil, apperror.Internal(err)
	}

	payment.UpdatedAt = s.now()
	payload := bookingPayload(booking)
	payload.Amount = payment.Amount
	payload.ActorID = caller.UserID

	if !approved {
		payment.Status = models.PaymentFailed
		payload.Status = models.PaymentFailed
		s.publishEvent(events.EventPaymentFailed, payload)
		return &models.PaymentConfirmation{Payment: payment, Success: false, Message: "Payment failed, please try again"}, nil
	}

	payment.Status = models.PaymentCompleted
	payment.TransactionID = &res.TransactionID
	payment.PaidAt = &res.PaidAt
	payload.Status = models.PaymentCompleted
	s.publishEvent(events.EventPaymentReceived, payload)
	return &models.PaymentConfirmation{Payment: payment, Success: true, Message: "Payment successful"}, nil
}

// RefundPayment reverses a completed payment.
func (s *PaymentService) RefundPayment(ctx context.Context, paymentID int64) (*models.PaymentRefund, error) {
	payment, err := s.payments.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, lookupError(err, "Payment not found")
	}
	if payment.Status != models.PaymentCompleted {
		return nil, apperror.BadRequest("Only completed payments can be refunded")
	}
	booking, err := s.bookings.GetBooking(ctx, payment.BookingID)
	if err != nil {
		return nil, lookupError(err, "Booking not found")
	}

	if err := s.payments.RefundPayment(ctx, paymentID); err != nil {
		switch {
		case errors.Is(err, database.ErrConcurrentModification):
			return nil, apperror.BadRequest("Only completed payments can be refunded")
		case errors.Is(err, database.ErrNotFound):
			return nil, apperror.NotFound("Payment not found")
		}
		return nil, apperror.Internal(err)
	}

	payment.Status = models.PaymentRefunded
	payment.UpdatedAt = s.now()

	payload := bookingPayload(booking)
	payload.Amount = payment.Amount
	payload.Status = models.PaymentRefunded
	s.publishEvent(events.EventPaymentRefunded, payload)

	return &models.PaymentRefund{Payment: payment, Message: "Payment refunded successfully"}, nil
}

func (s *PaymentService) GetPaymentByBooking(ctx context.Context, caller models.Caller, bookingID int64) (*models.Payment, error) {
	booking, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, lookupError(err, "Booking not found")
	}
	if !CanAccessBooking(caller, booking) {
		return nil, apperror.Forbidden("")
	}
	payment, err := s.payments.GetPaymentByBooking(ctx, bookingID)
	if err != nil {
		return nil, lookupError(err, "Payment not found")
	}
	return payment, nil
}

func (s *PaymentService) GetPayment(ctx context.Context, caller models.Caller, id int64) (*models.Payment, error) {
	payment, err := s.payments.GetPayment(ctx, id)
	if err != nil {
		return nil, lookupError(err, "Payment not found")
	}
	if caller.IsAdmin() {
		return payment, nil
	}
	booking, err := s.bookings.GetBooking(ctx, payment.BookingID)
	if err != nil {
		return nil, lookupError(err, "Booking not found")
	}
	if !CanAccessBooking(caller, booking) {
		return nil, apperror.Forbidden("")
	}
	return payment, nil
}

// customerBooking loads a booking the caller owns as customer.
func (s *PaymentService) customerBooking(ctx context.Context, caller models.Caller, bookingID int64) (*models.Booking, error) {
	booking, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, lookupError(err, "Booking not found")
	}
	if !caller.IsCustomer() || booking.CustomerID != caller.UserID {
		return nil, apperror.Forbidden("You can only pay for your own bookings")
	}
	return booking, nil
}

func (s *PaymentService) publishEvent(eventType string, payload events.BookingEventPayload) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event_type", eventType).Int64("booking_id", payload.BookingID).Msg("publish event error")
	}
}
