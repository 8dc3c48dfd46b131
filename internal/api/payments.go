package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type initiatePaymentRequest struct {
	BookingID int64  `json:"booking_id" binding:"required"`
	Method    string `json:"method"`
}

type confirmPaymentRequest struct {
	BookingID        int64  `json:"booking_id" binding:"required"`
	GatewayPaymentID string `json:"gateway_payment_id"`
}

func (s *HTTPServer) initiatePayment(c *gin.Context) {
	var req initiatePaymentRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, err, s.log)
		return
	}
	result, err := s.deps.Payments.InitiatePayment(c.Request.Context(), callerFrom(c), req.BookingID, req.Method)
	if err != nil {
		respondError(c, err, s.log)
		return
	}
	respond(c, http.StatusCreated, result, "Payment initiated")
}

func (s *HTTPServer) confirmPayment(c *gin.Context) {
	var req confirmPaymentRequest
	if err := bindJSON(c, &req); err != nil {
		respondError(c, err, s.log)
		return
	}
	result, err := s.deps.Payments.ConfirmPayment(c.Request.Context(), callerFrom(c), req.BookingID, req.GatewayPaymentID)
	if err != nil {
		respondError(c, err, s.log)
		return
	}
	// a declined charge is still a successful request
	respond(c, http.StatusOK, result, result.Message)
}

func (s *HTTPServer) getPaymentByBooking(c *gin.Context) {
	bookingID, err := pathID(c, "bookingId")
	if err != nil {
		respondError(c, err, s.log)
		return
	}
	payment, err := s.deps.Payments.GetPaymentByBooking(c.Request.Context(), callerFrom(c), bookingID)
	if err != nil {
		respondError(c, err, s.log)
		return
	}
	respond(c, http.StatusOK, payment, "")
}

func (s *HTTPServer) getPayment(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondError(c, err, s.log)
		return
	}
	payment, err := s.deps.Payments.GetPayment(c.Request.Context(), callerFrom(c), id)
	if err != nil {
		respondError(c, err, s.log)
		return
	}
	respond(c, http.StatusOK, payment, "")
}

func (s *HTTPServer) refundPayment(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondError(c, err, s.log)
		return
	}
	result, err := s.deps.Payments.RefundPayment(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, s.log)
		return
	}
	respond(c, http.StatusOK, result, result.Message)
}
