package api

import (
	"net/http"

	"homeservices/internal/models"

	"github.com/gin-gonic/gin"
)

func (s *HTTPServer) createReview(c *gin.Context) {
	var in models.CreateReviewInput
	if err := bindJSON(c, &in); err != nil {
		respondError(c, err, s.log)
		return
	}
	review, err := s.deps.Reviews.CreateReview(c.Request.Context(), callerFrom(c), in)
	if err != nil {
		respondError(c, err, s.log)
		return
	}
	respond(c, http.StatusCreated, review, "Review submitted")
}

func (s *HTTPServer) getReviewByBooking(c *gin.Context) {
	bookingID, err := pathID(c, "bookingId")
	if err != nil {
		respondError(c, err, s.log)
		return
	}
	review, err := s.deps.Reviews.GetReviewByBooking(c.Request.Context(), callerFrom(c), bookingID)
	if err != nil {
		respondError(c, err, s.log)
		return
	}
	respond(c, http.StatusOK, review, "")
}

func (s *HTTPServer) listProviderReviews(c *gin.Context) {
	providerID, err := pathID(c, "providerId")
	if err != nil {
		respondError(c, err, s.log)
		return
	}
	page, err := bindPage(c)
	if err != nil {
		respondError(c, err, s.log)
		return
	}
	reviews, meta, err := s.deps.Reviews.ListProviderReviews(c.Request.Context(), providerID, page)
	if err != nil {
		respondError(c, err, s.log)
		return
	}
	respondPage(c, reviews, meta)
}
