package api

import (
	"net/http"
	"strconv"

	"homeservices/internal/apperror"

	"github.com/gin-gonic/gin"
)

func (s *HTTPServer) listNotifications(c *gin.Context) {
	page, err := bindPage(c)
	if err != nil {
		respondError(c, err, s.log)
		return
	}
	unreadOnly := false
	if raw := c.Query("unread_only"); raw != "" {
		unreadOnly, err = strconv.ParseBool(raw)
		if err != nil {
			respondError(c, apperror.BadRequest("Invalid unread_only"), s.log)
			return
		}
	}
	items, meta, err := s.deps.Notifications.ListNotifications(c.Request.Context(), callerFrom(c), unreadOnly, page)
	if err != nil {
		respondError(c, err, s.log)
		return
	}
	respondPage(c, items, meta)
}

func (s *HTTPServer) unreadCount(c *gin.Context) {
	count, err := s.deps.Notifications.UnreadCount(c.Request.Context(), callerFrom(c))
	if err != nil {
		respondError(c, err, s.log)
		return
	}
	respond(c, http.StatusOK, gin.H{"count": count}, "")
}

func (s *HTTPServer) markRead(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		respondError(c, err, s.log)
		return
	}
	n, err := s.deps.Notifications.MarkRead(c.Request.Context(), callerFrom(c), id)
	if err != nil {
		respondError(c, err, s.log)
		return
	}
	respond(c, http.StatusOK, n, "")
}

func (s *HTTPServer) markAllRead(c *gin.Context) {
	updated, err := s.deps.Notifications.MarkAllRead(c.Request.Context(), callerFrom(c))
	if err != nil {
		respondError(c, err, s.log)
		return
	}
	respond(c, http.StatusOK, gin.H{"updated": updated}, "All notifications marked as read")
}

func (s *HTTPServer) notificationStream(c *gin.Context) {
	if s.deps.Hub == nil {
		respondError(c, apperror.NotFound("Notification stream is not enabled"), s.log)
		return
	}
	caller := callerFrom(c)
	// ServeWS writes its own error response when the upgrade fails
	if err := s.deps.Hub.ServeWS(c.Writer, c.Request, caller.UserID); err != nil {
		s.log.Warn().Err(err).Int64("user_id", caller.UserID).Msg("websocket upgrade failed")
	}
}
