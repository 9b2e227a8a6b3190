package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RateLimiterConfig конфигурация rate limiter
type RateLimiterConfig struct {
	RequestsPerSecond float64       // Количество запросов в секунду
	BurstSize         int           // Максимальный размер burst
	CleanupInterval   time.Duration // Интервал очистки неактивных посетителей
}

// DefaultRateLimiterConfig конфигурация по умолчанию
var DefaultRateLimiterConfig = RateLimiterConfig{
	RequestsPerSecond: 10, // 10 запросов в секунду
	BurstSize:         20, // Burst до 20 запросов
	CleanupInterval:   time.Minute,
}

func (c RateLimiterConfig) withDefaults() RateLimiterConfig {
	if c.RequestsPerSecond <= 0 {
		c.RequestsPerSecond = DefaultRateLimiterConfig.RequestsPerSecond
	}
	if c.BurstSize <= 0 {
		c.BurstSize = DefaultRateLimiterConfig.BurstSize
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = DefaultRateLimiterConfig.CleanupInterval
	}
	return c
}

// Decision результат проверки лимита
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Limiter token bucket по произвольному ключу
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// KeyFunc ключ ограничения для запроса
type KeyFunc func(c *gin.Context) string

// ClientIPKey ограничение по IP клиента
func ClientIPKey(c *gin.Context) string {
	return c.ClientIP()
}

// RateLimit middleware поверх любого Limiter.
// Ошибка лимитера не блокирует запрос.
func RateLimit(limiter Limiter, getKey KeyFunc, logger *zap.Logger) gin.HandlerFunc {
	if getKey == nil {
		getKey = ClientIPKey
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		key := getKey(c)
		if key == "" {
			key = c.ClientIP()
		}

		decision, err := limiter.Allow(c.Request.Context(), key)
		if err != nil {
			logger.Warn("Rate limiter unavailable, request allowed", zap.String("key", key), zap.Error(err))
		}

		if !decision.Allowed {
			retryAfter := int(math.Ceil(decision.RetryAfter.Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate_limit_exceeded",
				"message":     "Слишком много запросов, попробуйте позже",
				"retry_after": retryAfter,
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// visitor представляет rate limiter для одного клиента
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter ограничение запросов в памяти процесса (Token Bucket на ключ)
type RateLimiter struct {
	config    RateLimiterConfig
	visitors  map[string]*visitor // key -> visitor
	mu        sync.Mutex
	stop      chan struct{}
	closeOnce sync.Once
}

// NewRateLimiter создаёт rate limiter и запускает очистку неактивных посетителей.
// Close останавливает очистку.
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		config:   config.withDefaults(),
		visitors: make(map[string]*visitor),
		stop:     make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.cleanup()
		}
	}
}

// cleanup удаляет посетителей, которые не были активны долгое время
func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, v := range rl.visitors {
		if time.Since(v.lastSeen) > rl.config.CleanupInterval*3 {
			delete(rl.visitors, key)
		}
	}
}

func (rl *RateLimiter) Close() {
	rl.closeOnce.Do(func() {
		close(rl.stop)
	})
}

func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if v, exists := rl.visitors[key]; exists {
		v.lastSeen = time.Now()
		return v.limiter
	}

	limiter := rate.NewLimiter(rate.Limit(rl.config.RequestsPerSecond), rl.config.BurstSize)
	rl.visitors[key] = &visitor{
		limiter:  limiter,
		lastSeen: time.Now(),
	}

	return limiter
}

// Allow забирает токен из корзины ключа
func (rl *RateLimiter) Allow(_ context.Context, key string) (Decision, error) {
	if rl.getLimiter(key).Allow() {
		return Decision{Allowed: true}, nil
	}
	return Decision{
		RetryAfter: time.Duration(float64(time.Second) / rl.config.RequestsPerSecond),
	}, nil
}

// Visitors число отслеживаемых ключей
func (rl *RateLimiter) Visitors() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.visitors)
}

// Middleware ограничение по IP клиента
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return RateLimit(rl, ClientIPKey, nil)
}

// MiddlewareWithKey ограничение с кастомным ключом (например, API ключ)
func (rl *RateLimiter) MiddlewareWithKey(getKey KeyFunc) gin.HandlerFunc {
	return RateLimit(rl, getKey, nil)
}
