package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/streadway/amqp"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/boukath/cina/services/push_service/internal/config"
	"github.com/boukath/cina/services/push_service/internal/consumer"
	"github.com/boukath/cina/services/push_service/internal/credentials"
	"github.com/boukath/cina/services/push_service/internal/oauth"
	"github.com/boukath/cina/services/push_service/internal/repository"
	"github.com/boukath/cina/services/push_service/internal/routes"
	"github.com/boukath/cina/services/push_service/internal/services"
	"github.com/boukath/cina/services/push_service/pkg/logger"
	"github.com/boukath/cina/services/push_service/pkg/metrics"
	"github.com/boukath/cina/services/push_service/pkg/retry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logr := logger.New(cfg.LogLevel, cfg.LogFormat)
	logr.Info("starting push service", slog.String("app", cfg.AppName))

	cred, err := credentials.Parse([]byte(cfg.ServiceAccountJSON))
	if err != nil {
		logr.Error("invalid service account", slog.Any("error", err))
		os.Exit(1)
	}
	logr.Info("loaded service account", slog.String("credential", cred.String()))

	metricsCollector := metrics.New()

	var tokens oauth.TokenProvider = oauth.NewExchanger(
		cfg.TokenEndpoint,
		cfg.TokenExchangeTimeout,
		logr,
		oauth.WithRecorder(metricsCollector),
	)
	if cfg.TokenCacheEnabled {
		tokens = oauth.NewCache(tokens, logr,
			oauth.WithRefreshRatio(cfg.TokenRefreshRatio),
			oauth.WithHitRecorder(metricsCollector),
		)
	}

	fcmProvider := services.NewFCMProvider(cfg.FCMEndpoint, cred.ProjectIdentifier, cfg.ProviderTimeout, logr)
	opts := []services.DispatcherOption{services.WithWebLink(cfg.WebLink)}

	if cfg.RedisURL != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisURL})
		redisRepo := repository.NewRedisRepository(rdb, cfg.SuppressTTL)
		defer redisRepo.Close()
		if err := redisRepo.Ping(context.Background()); err != nil {
			logr.Warn("redis unreachable, continuing without suppression", slog.Any("error", err))
		} else {
			opts = append(opts, services.WithSuppressor(redisRepo, cfg.SuppressTTL))
		}
	}

	var (
		settingsStore *repository.SettingsStore
		statusStore   *repository.StatusStore
	)
	if cfg.DatabaseURL != "" {
		db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
		if err != nil {
			logr.Error("failed to connect database", slog.Any("error", err))
			os.Exit(1)
		}
		statusStore, err = repository.NewStatusStore(db, cfg.StatusTable)
		if err != nil {
			logr.Error("failed to migrate status table", slog.Any("error", err))
			os.Exit(1)
		}
		opts = append(opts, services.WithStatusUpdater(services.NewStatusUpdater(statusStore, logr)))
		settingsStore = repository.NewSettingsStore(db, cfg.SettingsTable)
	}

	dispatcher := services.NewNotificationDispatcher(cred, tokens, fcmProvider, metricsCollector, logr, opts...)

	deps := routes.Deps{
		Dispatcher:     dispatcher,
		AdminPhone:     cfg.AdminWhatsAppNumber,
		Metrics:        metricsCollector,
		Logger:         logr,
		Started:        time.Now(),
		AllowedOrigins: cfg.CORSAllowedOrigins,
		APIKey:         cfg.FunctionsAPIKey,
	}
	if statusStore != nil {
		deps.Statuses = statusStore
	}
	var admin *services.AdminNotifier
	if settingsStore != nil {
		admin = services.NewAdminNotifier(settingsStore, dispatcher, cfg.AdminTokenSettingKey, logr)
		deps.Admin = admin
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpSrv := startHTTPServer(cfg.HTTPPort, deps, logr)

	var consumers sync.WaitGroup
	if cfg.RabbitURL != "" && admin != nil {
		consumers.Add(1)
		go func() {
			defer consumers.Done()
			runBookingConsumer(ctx, cfg, admin, metricsCollector, logr)
		}()
	}

	<-ctx.Done()
	shutdownHTTP(httpSrv, logr)
	// Workers finish and ack their in-flight booking before the process exits.
	consumers.Wait()
	logr.Info("push service stopped")
}

func runBookingConsumer(ctx context.Context, cfg *config.Config, admin *services.AdminNotifier, m *metrics.Metrics, logr *slog.Logger) {
	conn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		logr.Error("failed to connect rabbitmq", slog.Any("error", err))
		return
	}
	defer conn.Close()

	base := consumer.NewBaseConsumer(
		conn,
		consumer.BookingTopology(cfg.BookingQueue, cfg.DeadLetterQueue),
		cfg.PrefetchCount,
		cfg.WorkerCount,
		logr,
	)
	retryCfg := retry.Config{
		MaxAttempts:    cfg.RetryMaxAttempts,
		InitialBackoff: cfg.RetryInitialBackoff,
		MaxBackoff:     cfg.RetryMaxBackoff,
		JitterFactor:   0.2,
	}
	bookings := consumer.NewBookingConsumer(base, admin, m, logr, retryCfg)
	if err := bookings.Start(ctx); err != nil {
		logr.Error("booking consumer exited", slog.Any("error", err))
	}
}

func startHTTPServer(port string, deps routes.Deps, logr *slog.Logger) *http.Server {
	if port == "" {
		port = "8082"
	}
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           routes.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logr.Info("http server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Error("http server error", slog.Any("error", err))
		}
	}()
	return srv
}

func shutdownHTTP(srv *http.Server, logr *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logr.Error("failed to shutdown http server", slog.Any("error", err))
	}
}
