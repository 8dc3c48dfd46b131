package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"homeservices/internal/api"
	"homeservices/internal/auth"
	"homeservices/internal/bot"
	"homeservices/internal/config"
	"homeservices/internal/database"
	"homeservices/internal/domain"
	"homeservices/internal/events"
	"homeservices/internal/export"
	"homeservices/internal/google"
	"homeservices/internal/logging"
	"homeservices/internal/metrics"
	"homeservices/internal/models"
	"homeservices/internal/push"
	"homeservices/internal/repository"
	"homeservices/internal/service"
	"homeservices/internal/worker"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()
	if version, err := db.SchemaVersion(ctx); err == nil {
		logger.Info().Int64("schema_version", version).Str("db_path", db.Path()).Msg("database ready")
	}

	redisClient := initRedis(ctx, cfg, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	bus := events.NewEventBus()
	bus.OnError(func(e *events.Event, err error) {
		logger.Error().Err(err).Str("event_type", e.Type).Msg("event handler failed")
	})
	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
		metrics.Subscribe(bus)
	}

	outbox := worker.NewOutboxWorker(db, redisClient, worker.RetryPolicy{
		MaxRetries:   cfg.Notifications.MaxRetries,
		InitialDelay: cfg.Notifications.InitialDelay,
		MaxDelay:     cfg.Notifications.MaxDelay,
	}, worker.Options{
		PollInterval: cfg.Notifications.PollInterval,
		BatchSize:    cfg.Notifications.BatchSize,
	}, logger)

	hub := push.NewHub(cfg.API.HTTP.CORSOrigins, logger)
	defer hub.Close()
	if cfg.Monitoring.PrometheusEnabled {
		metrics.WatchConnectedUsers(hub.ConnectedUsers)
	}
	tg := initTelegram(cfg, logger)
	var tgPusher domain.Pusher
	if tg != nil {
		tgPusher = push.NewTelegramPusher(tg, db)
	}
	outbox.Handle(models.TaskPushNotification, worker.PushHandler(push.NewMultiPusher(hub, tgPusher)))

	if ledger := initLedger(ctx, cfg, logger); ledger != nil {
		outbox.Handle(models.TaskLedgerUpsert, worker.LedgerHandler(db, ledger))
		worker.SubscribeLedger(bus, outbox, logger)
		go ledger.StartCacheRefresh(ctx, 30*time.Minute)
	}

	bookings := service.NewBookingService(db, db, db, bus, logger)
	payments := service.NewPaymentService(db, db, service.NewMockGateway(cfg.Payment.SuccessRate), bus, logger)
	reviews := service.NewReviewService(db, db, db, bus, logger)
	notifications := service.NewNotificationService(db, db, outbox, logger)
	notifications.Subscribe(bus)

	authn := auth.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer, db, db)
	limiter := initRateLimiter(ctx, redisClient, logger)

	go outbox.Start(ctx)

	if tg != nil {
		var botOpts bot.Options
		if cfg.RateLimit.Enabled {
			botOpts = bot.Options{RateLimit: cfg.RateLimit.Requests, RateWindow: cfg.RateLimit.Window}
		}
		tgBot := bot.NewBot(tg, authn, db, bookings, notifications, limiter, botOpts, logger)
		go tgBot.Start(ctx)
	}

	if cfg.Backup.Enabled {
		backupService := database.NewBackupService(db, cfg.Backup, logger)
		go backupService.Start(ctx)
	}

	startMetrics(ctx, cfg, logger)

	ready := map[string]api.ReadinessCheck{
		"database": func(ctx context.Context) error { return db.PingContext(ctx) },
	}
	if redisClient != nil {
		ready["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	httpServer := api.NewHTTPServer(*cfg, api.Deps{
		Bookings:      bookings,
		Payments:      payments,
		Reviews:       reviews,
		Notifications: notifications,
		Exporter:      export.NewBookingExporter(db, cfg.Exports.Path, logger),
		Auth:          authn,
		RateLimiter:   limiter,
		Hub:           hub,
		Ready:         ready,
	}, logger)

	var grpcServer *api.GRPCServer
	if cfg.API.GRPC.Enabled {
		grpcServer, err = api.NewGRPCServer(cfg.API.GRPC, api.NewAdminService(bookings, payments, logger), logger)
		if err != nil {
			logger.Error().Err(err).Msg("create grpc server")
			return err
		}
	}

	return startServers(ctx, grpcServer, httpServer, cfg, logger)
}

func loadConfigAndLogger() (*config.Config, *zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, baseLogger, closer, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if !cfg.Redis.Enabled || cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = redisClient.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

func initRateLimiter(ctx context.Context, redisClient *redis.Client, logger *zerolog.Logger) domain.RateLimiter {
	memory := repository.NewMemoryRateLimiter()
	go sweepRateLimits(ctx, memory, logger)
	if redisClient == nil {
		return memory
	}
	return repository.NewFailoverRateLimiter(repository.NewRedisRateLimiter(redisClient), memory, logger)
}

func sweepRateLimits(ctx context.Context, memory *repository.MemoryRateLimiter, logger *zerolog.Logger) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := memory.Sweep(); n > 0 {
				logger.Debug().Int("removed", n).Msg("rate limit windows swept")
			}
		}
	}
}

func initTelegram(cfg *config.Config, logger *zerolog.Logger) *tgbotapi.BotAPI {
	if cfg.Notifications.TelegramBotToken == "" {
		return nil
	}
	client, err := tgbotapi.NewBotAPI(cfg.Notifications.TelegramBotToken)
	if err != nil {
		logger.Warn().Err(err).Msg("telegram init failed, continuing without telegram")
		return nil
	}
	logger.Info().Str("bot", client.Self.UserName).Msg("telegram connected")
	return client
}

func initLedger(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *google.LedgerService {
	if !cfg.Ledger.Enabled {
		return nil
	}

	ledger, err := google.NewLedgerService(ctx, cfg.Ledger.CredentialsFile, cfg.Ledger.SpreadsheetID, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without ledger")
		return nil
	}
	if err := ledger.TestConnection(ctx); err != nil {
		logger.Warn().Err(err).Msg("google sheets unreachable, continuing without ledger")
		return nil
	}
	if err := ledger.EnsureHeader(ctx); err != nil {
		logger.Warn().Err(err).Msg("ledger header")
	}

	logger.Info().Msg("google sheets ledger connected")
	return ledger
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}
	go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger)
}

func startServers(
	ctx context.Context,
	grpcServer *api.GRPCServer,
	httpServer *api.HTTPServer,
	cfg *config.Config,
	logger *zerolog.Logger,
) error {
	if grpcServer != nil {
		go func() {
			if err := grpcServer.Serve(); err != nil {
				logger.Error().Err(err).Msg("grpc server stopped")
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Start()
	}()

	logger.Info().Int("http_port", cfg.API.HTTP.Port).Bool("grpc", grpcServer != nil).Msg("API server started")

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case runErr = <-errCh:
		if runErr != nil {
			logger.Error().Err(runErr).Msg("http server stopped")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if grpcServer != nil {
		grpcServer.Shutdown(shutdownCtx)
	}
	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("API server stopped")
	return runErr
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
