package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"homeservices/internal/apperror"
	"homeservices/internal/domain"
	"homeservices/internal/logging"
	"homeservices/internal/metrics"
	"homeservices/internal/models"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	requestIDHeader = "X-Request-ID"
	callerKey       = "caller"
)

// Authenticator resolves bearer tokens to callers.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (models.Caller, error)
}

// requestLogger tags each request with an id and logs its outcome.
func requestLogger(logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(requestIDHeader, requestID)
		c.Request = c.Request.WithContext(logging.WithRequest(c.Request.Context(), logger, requestID))

		start := time.Now()
		c.Next()

		ev := logger.Info()
		if c.Writer.Status() >= http.StatusInternalServerError {
			ev = logger.Error()
		}
		ev.Str("request_id", requestID).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("http request")
	}
}

func metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		metrics.IncHTTP(c.Request.Method + " " + endpoint)
	}
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", requestIDHeader},
		ExposeHeaders: []string{"Content-Length", "Content-Disposition", requestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cors.New(cfg)
}

func bodyLimit(max int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if max > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, max)
		}
		c.Next()
	}
}

// requireAuth authenticates the bearer token and stores the caller on the context.
// The websocket endpoint may pass the token as a query parameter instead.
func requireAuth(auth Authenticator, logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerFromRequest(c)
		if !ok {
			respondError(c, apperror.Unauthorized("Authorization header required"), logger)
			return
		}
		caller, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			respondError(c, err, logger)
			return
		}
		c.Set(callerKey, caller)
		c.Next()
	}
}

func requireRole(logger *zerolog.Logger, roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := callerFrom(c)
		for _, r := range roles {
			if caller.Role == r {
				c.Next()
				return
			}
		}
		respondError(c, apperror.Forbidden("Insufficient permissions"), logger)
	}
}

// rateLimit applies a fixed window per caller, or per client IP before authentication.
func rateLimit(limiter domain.RateLimiter, limit int, window time.Duration, logger *zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ip:" + c.ClientIP()
		if v, ok := c.Get(callerKey); ok {
			key = "user:" + strconv.FormatInt(v.(models.Caller).UserID, 10)
		}

		allowed, err := limiter.Allow(c.Request.Context(), key, limit, window)
		if err != nil {
			// fail open
			logging.FromContext(c.Request.Context(), logger).Warn().Err(err).Msg("rate limiter unavailable")
			c.Next()
			return
		}
		if !allowed {
			c.Header("Retry-After", strconv.Itoa(int(window.Seconds())))
			respondError(c, apperror.TooManyRequests(""), logger)
			return
		}
		c.Next()
	}
}

func callerFrom(c *gin.Context) models.Caller {
	if v, ok := c.Get(callerKey); ok {
		if caller, ok := v.(models.Caller); ok {
			return caller
		}
	}
	return models.Caller{}
}
