package api

import (
	"bytes"
	"context"
	"net/http"
	"strings"

	"homeservices/internal/apperror"
	"homeservices/internal/export"
	"homeservices/internal/models"

	"github.com/gin-gonic/gin"
)

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (s *HTTPServer) createBooking(c *gin.Context) {
	var in models.CreateBookingInput
	if err := bindJSON(c, &in); err != nil {
		respondError(c, err, s.log)
		return
	}
	booking, err := s.deps.Bookings.CreateBooking(c.Request.Context(), callerFrom(c), in)
	if err != nil {
		respondError(c, err, s.log)
		return
	}
	respond(c, http.StatusCreated, booking, "Booking created successfully")
}

func (s *HTTPServer) listBookings(c *gin.Context) {
	page, err := bindPage(c)
	if err != nil {
		respondError(c, err, s.log)
		return
	}
	filter := models.BookingFilter{
		Status:   strings.TrimSpace(c.Query("status")),
		DateFrom: strings.TrimSpace(c.Query("date_from")),
		DateTo:   strings.TrimSpace(c.Query("date_to")),
	}
	bookings, meta, err := s.deps.Bookings.ListBookings(c.Request.Context(), callerFrom(c), filter, page)
	if err != nil {
		respondError(c, err, s.log)
		return
	}
	respondPage(c, bookings, meta)
}

func (s *HTTPServer) getBooking(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondError(c, err, s.log)
		return
	}
	booking, err := s.deps.Bookings.GetBooking(c.Request.Context(), callerFrom(c), id)
	if err != nil {
		respondError(c, err, s.log)
		return
	}
	respond(c, http.StatusOK, booking, "")
}

type bookingAction func(ctx context.Context, caller models.Caller, id int64) (*models.Booking, error)

func (s *HTTPServer) bookingTransition(c *gin.Context, action bookingAction, message string) {
	id, err := pathID(c, "id")
	if err != nil {
		respondError(c, err, s.log)
		return
	}
	booking, err := action(c.Request.Context(), callerFrom(c), id)
	if err != nil {
		respondError(c, err, s.log)
		return
	}
	respond(c, http.StatusOK, booking, message)
}

func (s *HTTPServer) acceptBooking(c *gin.Context) {
	s.bookingTransition(c, s.deps.Bookings.AcceptBooking, "Booking accepted")
}

func (s *HTTPServer) rejectBooking(c *gin.Context) {
	s.bookingTransition(c, s.deps.Bookings.RejectBooking, "Booking rejected")
}

func (s *HTTPServer) startBooking(c *gin.Context) {
	s.bookingTransition(c, s.deps.Bookings.StartBooking, "Service started")
}

func (s *HTTPServer) completeBooking(c *gin.Context) {
	s.bookingTransition(c, s.deps.Bookings.CompleteBooking, "Service completed")
}

func (s *HTTPServer) cancelBooking(c *gin.Context) {
	var req cancelRequest
	// the reason is optional, so an empty body is fine
	if c.Request.ContentLength != 0 {
		if err := bindJSON(c, &req); err != nil {
			respondError(c, err, s.log)
			return
		}
	}
	s.bookingTransition(c, func(ctx context.Context, caller models.Caller, id int64) (*models.Booking, error) {
		return s.deps.Bookings.CancelBooking(ctx, caller, id, req.Reason)
	}, "Booking cancelled")
}

func (s *HTTPServer) exportBookings(c *gin.Context) {
	if s.deps.Exporter == nil {
		respondError(c, apperror.NotFound("Export is not configured"), s.log)
		return
	}
	filter := models.BookingFilter{
		Status:   strings.TrimSpace(c.Query("status")),
		DateFrom: strings.TrimSpace(c.Query("date_from")),
		DateTo:   strings.TrimSpace(c.Query("date_to")),
	}
	if filter.Status != "" && !models.ValidBookingStatus(filter.Status) {
		respondError(c, apperror.BadRequest("Invalid status filter"), s.log)
		return
	}

	var buf bytes.Buffer
	n, err := s.deps.Exporter.Write(c.Request.Context(), filter, &buf)
	if err != nil {
		respondError(c, err, s.log)
		return
	}
	s.log.Info().Int64("admin_id", callerFrom(c).UserID).Int("rows", n).Msg("bookings exported")
	c.Header("Content-Disposition", `attachment; filename="`+export.FileName(filter)+`"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}
