package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SergeiKhy/routeforge/internal/config"
	"github.com/SergeiKhy/routeforge/internal/handler"
	"github.com/SergeiKhy/routeforge/internal/middleware"
	"github.com/SergeiKhy/routeforge/internal/ratelimit"
	"github.com/SergeiKhy/routeforge/internal/repository"
	"github.com/SergeiKhy/routeforge/internal/service"
	"github.com/SergeiKhy/routeforge/internal/worker"
	"go.uber.org/zap"
)

func main() {
	// Загрузка конфига
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Инициализация логгера
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Подключение к БД (postgres)
	db, err := repository.NewPostgresDB(ctx, cfg.DB)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("Connected to PostgreSQL")

	if err := repository.Migrate(ctx, db); err != nil {
		logger.Fatal("Failed to apply migrations", zap.Error(err))
	}

	// Подключение к Redis
	redis, err := repository.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer redis.Close()
	logger.Info("Connected to Redis")

	// Инициализация репозиториев
	routeRepo := repository.NewRouteRepository(db)
	hitRepo := repository.NewHitRepository(db)
	releaseRepo := repository.NewReleaseRepository(db)
	webhookRepo := repository.NewWebhookRepository(db)
	cacheRepo := repository.NewCacheRepository(redis, repository.CacheConfig{
		RouteTTL:   cfg.App.RouteCacheTTL,
		MissingTTL: cfg.App.RouteMissTTL,
	})

	// Очередь фоновых задач
	queue := worker.NewQueue(worker.Config{
		MaxQueue: cfg.Worker.MaxQueue,
		TaskTTL:  cfg.Worker.TaskTTL,
	}, logger)
	queue.Start()

	dispatcher := service.NewWebhookDispatcher(webhookRepo, service.DispatcherConfig{
		MaxRetries:     cfg.Webhook.MaxRetries,
		Backoff:        cfg.Webhook.Backoff,
		Timeout:        cfg.Webhook.Timeout,
		MaxConcurrency: cfg.Webhook.MaxConcurrency,
	}, logger)
	notifier := service.NewNotifier(queue, dispatcher, logger)

	// Инициализация сервисов
	services := handler.Services{
		Routes:    service.NewRouteService(routeRepo, hitRepo, releaseRepo, cacheRepo, cfg.TargetPolicy, logger),
		Redirects: service.NewRedirectService(routeRepo, hitRepo, cacheRepo, notifier, cfg.TargetPolicy, logger),
		Releases: service.NewReleaseService(
			releaseRepo,
			service.NewArtifactHasher(nil),
			queue,
			notifier,
			cfg.Worker.HashAsyncSizeBytes,
			logger,
		),
		Webhooks: service.NewWebhookService(webhookRepo, notifier, logger),
		Queue:    queue,
	}

	// Инициализация middleware
	buckets := ratelimit.NewBucketStore(func() ratelimit.Settings {
		tb := cfg.TokenBucket()
		return ratelimit.Settings{Capacity: tb.Capacity, Window: tb.Window}
	}, time.Now)
	windows := ratelimit.NewWindowLimiter(cfg.RateLimit.Limit, cfg.RateLimit.Window, time.Now)
	if cfg.RateLimit.IdleTTL > 0 {
		go buckets.RunEviction(ctx, cfg.RateLimit.IdleTTL)
		go windows.RunEviction(ctx, cfg.RateLimit.IdleTTL)
	}

	apiKey := middleware.NewAPIKey(cfg.Auth.APIKeys, cfg.Auth.DemoUserID)
	if apiKey.Enabled() {
		logger.Info("API key authentication enabled", zap.Int("keys_count", len(cfg.Auth.APIKeys)))
	} else {
		logger.Warn("API keys not configured, management API runs as demo user",
			zap.Int64("user_id", cfg.Auth.DemoUserID))
	}

	// Настройка роутера
	router := handler.NewRouter(services, handler.Limits{
		Bucket: middleware.NewRateLimiter(buckets),
		Paths:  middleware.NewPathRateLimiter(windows, cfg.RateLimit.PathPrefixes),
		APIKey: apiKey,
	}, cfg.App.AllowedOrigins, logger)

	// Запуск сервера
	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Запуск в горутине
	go func() {
		logger.Info("Server starting", zap.String("port", cfg.App.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	// Сначала очередь, потом доставки, запущенные её задачами
	queue.Stop()
	if err := dispatcher.Wait(shutdownCtx); err != nil {
		logger.Warn("Webhook deliveries still in flight", zap.Error(err))
	}

	logger.Info("Server exited")
}
