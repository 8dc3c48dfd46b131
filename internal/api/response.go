package api

import (
	"errors"
	"net/http"
	"strconv"

	"homeservices/internal/apperror"
	"homeservices/internal/logging"
	"homeservices/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type envelope struct {
	Success bool             `json:"success"`
	Data    interface{}      `json:"data,omitempty"`
	Message string           `json:"message,omitempty"`
	Meta    *models.PageMeta `json:"meta,omitempty"`
}

type errorBody struct {
	Code    apperror.Kind       `json:"code"`
	Message string              `json:"message"`
	Details map[string][]string `json:"details,omitempty"`
}

type errorEnvelope struct {
	Success bool      `json:"success"`
	Error   errorBody `json:"error"`
}

func respond(c *gin.Context, status int, data interface{}, message string) {
	c.JSON(status, envelope{Success: true, Data: data, Message: message})
}

func respondPage(c *gin.Context, data interface{}, meta models.PageMeta) {
	c.JSON(http.StatusOK, envelope{Success: true, Data: data, Meta: &meta})
}

// respondError writes err as the error envelope. Internal failures are logged
// with their cause and reported without it.
func respondError(c *gin.Context, err error, fallback *zerolog.Logger) {
	appErr := apperror.From(err)
	if appErr.Kind == apperror.KindInternal {
		logging.FromContext(c.Request.Context(), fallback).Error().Err(err).
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Msg("request failed")
	}
	c.AbortWithStatusJSON(appErr.HTTPStatus(), errorEnvelope{
		Error: errorBody{Code: appErr.Kind, Message: appErr.Message, Details: appErr.Details},
	})
}

func pathID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperror.BadRequest("Invalid " + name)
	}
	return id, nil
}

func bindJSON(c *gin.Context, v interface{}) error {
	if err := c.ShouldBindJSON(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return apperror.BadRequest("Request body too large")
		}
		return apperror.BadRequest("Invalid request body").WithDetails(map[string][]string{"body": {err.Error()}})
	}
	return nil
}

func bindPage(c *gin.Context) (models.PageQuery, error) {
	var q models.PageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		return q, apperror.BadRequest("Invalid pagination parameters")
	}
	return q.Normalize(), nil
}
