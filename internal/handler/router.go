package handler

import (
	"net/http"
	"time"

	"github.com/SergeiKhy/shorty/internal/middleware"
	"github.com/SergeiKhy/shorty/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// QueueStats состояние очереди кликов для health check
type QueueStats interface {
	Stats() service.ChannelStats
}

// RouterConfig зависимости роутера; nil middleware пропускаются
type RouterConfig struct {
	URLService  service.URLService
	ClickQueue  QueueStats
	RateLimiter gin.HandlerFunc
	APIKey      gin.HandlerFunc
	BaseURL     string
	Logger      *zap.Logger
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger))

	// Метрики Prometheus без rate limiting
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if cfg.RateLimiter != nil {
		router.Use(cfg.RateLimiter)
	}

	urlHandler := NewURLHandler(cfg.URLService, cfg.BaseURL, logger)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", HealthCheck(cfg.ClickQueue))
		v1.GET("/cache/status", urlHandler.CacheStatus)

		v1.POST("/urls", urlHandler.CreateURL)
		v1.GET("/urls", urlHandler.ListURLs)
		v1.GET("/urls/recent", urlHandler.ListRecent)
		v1.GET("/urls/:code/stats", urlHandler.GetURL)
		v1.GET("/urls/:code/stats/daily", urlHandler.GetDailyStats)
		v1.GET("/urls/:code/analytics", urlHandler.GetAnalytics)

		// Удаление защищено API ключом
		protected := v1.Group("")
		if cfg.APIKey != nil {
			protected.Use(cfg.APIKey)
		}
		protected.DELETE("/urls", urlHandler.ClearAll)
		protected.DELETE("/urls/:code", urlHandler.DeleteURL)
	}

	// Редирект (корневой путь) - без API key проверки
	router.GET("/:code", urlHandler.Redirect)

	return router
}

// HealthCheck GET /api/v1/health
func HealthCheck(queue QueueStats) gin.HandlerFunc {
	return func(c *gin.Context) {
		body := gin.H{
			"status": "ok",
			"time":   time.Now().UTC().Format(time.RFC3339),
		}
		if queue != nil {
			body["click_queue"] = queue.Stats()
		}
		c.JSON(http.StatusOK, body)
	}
}
