package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"homeservices/internal/apperror"
	"homeservices/internal/auth"
	"homeservices/internal/config"
	"homeservices/internal/domain"
	"homeservices/internal/export"
	"homeservices/internal/models"
	"homeservices/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// WebsocketHub upgrades notification stream connections.
type WebsocketHub interface {
	ServeWS(w http.ResponseWriter, r *http.Request, userID int64) error
}

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

// Deps are the collaborators the REST API is built from.
type Deps struct {
	Bookings      *service.BookingService
	Payments      *service.PaymentService
	Reviews       *service.ReviewService
	Notifications *service.NotificationService
	Exporter      *export.BookingExporter
	Auth          Authenticator
	RateLimiter   domain.RateLimiter
	Hub           WebsocketHub
	Ready         map[string]ReadinessCheck
}

// HTTPServer serves the marketplace REST API.
type HTTPServer struct {
	cfg    config.Config
	deps   Deps
	engine *gin.Engine
	server *http.Server
	log    *zerolog.Logger
}

func NewHTTPServer(cfg config.Config, deps Deps, logger *zerolog.Logger) *HTTPServer {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	l := logger.With().Str("component", "http").Logger()

	s := &HTTPServer{cfg: cfg, deps: deps, log: &l}
	s.engine = s.routes()
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.API.HTTP.Port),
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.API.HTTP.ReadTimeout,
		WriteTimeout:      cfg.API.HTTP.WriteTimeout,
	}
	return s
}

// Handler exposes the router, mainly for tests.
func (s *HTTPServer) Handler() http.Handler { return s.engine }

func (s *HTTPServer) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *HTTPServer) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.log), metricsMiddleware(),
		corsMiddleware(s.cfg.API.HTTP.CORSOrigins), bodyLimit(s.cfg.API.HTTP.MaxRequestBody))

	r.GET("/healthz", s.healthz)
	r.GET("/readyz", s.readyz)

	v1 := r.Group("/api/v1")

	// public
	v1.GET("/reviews/provider/:providerId", s.listProviderReviews)

	authed := v1.Group("")
	authed.Use(requireAuth(s.deps.Auth, s.log))
	if s.cfg.RateLimit.Enabled && s.deps.RateLimiter != nil {
		authed.Use(rateLimit(s.deps.RateLimiter, s.cfg.RateLimit.Requests, s.cfg.RateLimit.Window, s.log))
	}

	customer := requireRole(s.log, models.RoleCustomer)
	provider := requireRole(s.log, models.RoleProvider)
	admin := requireRole(s.log, models.RoleAdmin)

	bookings := authed.Group("/bookings")
	bookings.POST("", customer, s.createBooking)
	bookings.GET("", s.listBookings)
	bookings.GET("/:id", s.getBooking)
	bookings.PUT("/:id/accept", provider, s.acceptBooking)
	bookings.PUT("/:id/reject", provider, s.rejectBooking)
	bookings.PUT("/:id/start", provider, s.startBooking)
	bookings.PUT("/:id/complete", provider, s.completeBooking)
	bookings.PUT("/:id/cancel", s.cancelBooking)

	payments := authed.Group("/payments")
	payments.POST("/initiate", customer, s.initiatePayment)
	payments.POST("/confirm", customer, s.confirmPayment)
	payments.GET("/booking/:bookingId", s.getPaymentByBooking)
	payments.GET("/:id", s.getPayment)
	payments.POST("/:id/refund", admin, s.refundPayment)

	reviews := authed.Group("/reviews")
	reviews.POST("", customer, s.createReview)
	reviews.GET("/booking/:bookingId", s.getReviewByBooking)

	notifications := authed.Group("/notifications")
	notifications.GET("", s.listNotifications)
	notifications.GET("/unread-count", s.unreadCount)
	notifications.PUT("/read-all", s.markAllRead)
	notifications.PUT("/:id/read", s.markRead)
	notifications.GET("/ws", s.notificationStream)

	authed.GET("/admin/bookings/export", admin, s.exportBookings)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, errorEnvelope{Error: errorBody{Code: apperror.KindNotFound, Message: "Route not found"}})
	})
	return r
}

func (s *HTTPServer) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)})
}

func (s *HTTPServer) readyz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := make(map[string]string, len(s.deps.Ready))
	ready := true
	for name, check := range s.deps.Ready {
		if err := check(ctx); err != nil {
			checks[name] = err.Error()
			ready = false
			continue
		}
		checks[name] = "ok"
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"ready": ready, "checks": checks})
}

func bearerFromRequest(c *gin.Context) (string, bool) {
	if token, ok := auth.BearerToken(c.GetHeader("Authorization")); ok {
		return token, true
	}
	// browsers cannot set headers on websocket upgrades
	if c.FullPath() == "/api/v1/notifications/ws" {
		if token := c.Query("token"); token != "" {
			return token, true
		}
	}
	return "", false
}
