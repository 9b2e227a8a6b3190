package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SergeiKhy/shorty/internal/cache"
	"github.com/SergeiKhy/shorty/internal/config"
	"github.com/SergeiKhy/shorty/internal/handler"
	"github.com/SergeiKhy/shorty/internal/middleware"
	"github.com/SergeiKhy/shorty/internal/repository"
	"github.com/SergeiKhy/shorty/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	// Загрузка конфига
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Инициализация логгера
	logger, err := newLogger(cfg.App.LogLevel)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logger.Sync()

	gin.SetMode(gin.ReleaseMode)

	if cfg.DB.RunMigrations {
		if err := repository.RunMigrations(cfg.DB.MigrationURL(), logger); err != nil {
			logger.Fatal("Failed to run migrations", zap.Error(err))
		}
	}

	// Подключение к БД (postgres)
	db, err := repository.NewPostgresDB(cfg.DB)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	logger.Info("Connected to PostgreSQL")

	// Инициализация репозиториев
	urlRepo := repository.NewURLRepository(db)
	clickRepo := repository.NewClickRepository(db)

	// Процессор кликов (Worker Pool)
	clickProcessor := service.NewClickProcessor(clickRepo, logger, service.ClickProcessorConfig{})
	clickProcessor.Start()

	// Кэши и их периодическая оптимизация
	registry := cache.NewRegistry(logger)
	urlService := service.NewURLService(urlRepo, clickRepo, clickProcessor, registry, logger, service.Config{
		CodeLength:      cfg.ShortCode.Length,
		MaxCodeAttempts: cfg.ShortCode.MaxAttempts,
		CacheTTL:        cfg.Cache.TTL,
	})

	optimizeCtx, stopOptimize := context.WithCancel(context.Background())
	registry.ScheduleOptimizationForAll(optimizeCtx, cfg.Cache.OptimizationInterval)

	// Rate limiter: в памяти или общий через Redis
	limiterConfig := middleware.RateLimiterConfig{
		RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
		BurstSize:         cfg.RateLimit.BurstSize,
		CleanupInterval:   time.Minute,
	}
	var rateLimit gin.HandlerFunc
	switch cfg.RateLimit.Backend {
	case config.RateLimitBackendRedis:
		redisDB, err := repository.NewRedisClient(cfg.Redis)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisDB.Close()
		logger.Info("Connected to Redis", zap.String("addr", cfg.Redis.Addr()))
		rateLimit = middleware.NewRedisRateLimiter(redisDB.Client, limiterConfig, logger).Middleware()
	default:
		memoryLimiter := middleware.NewRateLimiter(limiterConfig)
		defer memoryLimiter.Close()
		rateLimit = memoryLimiter.Middleware()
	}

	if len(cfg.Auth.APIKeys) > 0 {
		logger.Info("API key authentication enabled", zap.Int("keys_count", len(cfg.Auth.APIKeys)))
	}

	// Настройка роутера
	router := handler.NewRouter(handler.RouterConfig{
		URLService:  urlService,
		ClickQueue:  clickProcessor,
		RateLimiter: rateLimit,
		APIKey:      middleware.RequireAPIKey(cfg.Auth.APIKeys),
		BaseURL:     cfg.App.BaseURL,
		Logger:      logger,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Server starting", zap.String("port", cfg.App.Port), zap.String("base_url", cfg.App.BaseURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	stopOptimize()
	registry.StopOptimizationForAll()
	clickProcessor.Stop()

	logger.Info("Server exited")
}

func newLogger(level string) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	zapCfg.Level = zap.NewAtomicLevelAt(lvl)

	return zapCfg.Build()
}
