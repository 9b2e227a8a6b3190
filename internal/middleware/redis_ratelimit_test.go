package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

// fakeClock ручное время для Lua скрипта
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func newTestRedisLimiter(t *testing.T, client redis.Scripter, cfg RateLimiterConfig) (*RedisRateLimiter, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	rl := NewRedisRateLimiter(client, cfg, nil)
	rl.now = clock.Now
	return rl, clock
}

func setupMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisRateLimiter_TokenBucket(t *testing.T) {
	_, client := setupMiniredis(t)
	rl, clock := newTestRedisLimiter(t, client, RateLimiterConfig{RequestsPerSecond: 1, BurstSize: 3})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		decision, err := rl.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, decision.Allowed, "request %d", i)
	}

	decision, err := rl.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, time.Second, decision.RetryAfter)

	// Другой ключ со своей корзиной
	decision, err = rl.Allow(ctx, "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, decision.Allowed)

	// За секунду пополняется один токен
	clock.Advance(time.Second)
	decision, err = rl.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, decision.Allowed)

	decision, err = rl.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
}

// TestRedisRateLimiter_RefillCapped токены не копятся сверх burst
func TestRedisRateLimiter_RefillCapped(t *testing.T) {
	_, client := setupMiniredis(t)
	rl, clock := newTestRedisLimiter(t, client, RateLimiterConfig{RequestsPerSecond: 2, BurstSize: 2})
	ctx := context.Background()

	_, err := rl.Allow(ctx, "k")
	require.NoError(t, err)

	clock.Advance(time.Hour)

	allowed := 0
	for i := 0; i < 5; i++ {
		decision, err := rl.Allow(ctx, "k")
		require.NoError(t, err)
		if decision.Allowed {
			allowed++
		}
	}
	assert.Equal(t, 2, allowed)
}

func TestRedisRateLimiter_KeyExpires(t *testing.T) {
	mr, client := setupMiniredis(t)
	rl, _ := newTestRedisLimiter(t, client, RateLimiterConfig{RequestsPerSecond: 10, BurstSize: 20})

	_, err := rl.Allow(context.Background(), "ttl")
	require.NoError(t, err)

	require.True(t, mr.Exists(redisRateLimitPrefix+"ttl"))
	ttl := mr.TTL(redisRateLimitPrefix + "ttl")
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, 3*time.Second)
}

// TestRedisRateLimiter_FailOpen недоступный Redis не блокирует запросы
func TestRedisRateLimiter_FailOpen(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	rl, _ := newTestRedisLimiter(t, client, RateLimiterConfig{RequestsPerSecond: 1, BurstSize: 1})
	mr.Close()

	decision, err := rl.Allow(context.Background(), "down")
	assert.Error(t, err)
	assert.True(t, decision.Allowed)

	router := gin.New()
	router.Use(rl.Middleware())
	router.GET("/test", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestRedisRateLimiter_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	_, client := setupMiniredis(t)
	rl, _ := newTestRedisLimiter(t, client, RateLimiterConfig{RequestsPerSecond: 1, BurstSize: 2})

	router := gin.New()
	router.Use(rl.Middleware())
	router.GET("/test", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		router.ServeHTTP(w, req)
		codes = append(codes, w.Code)
		if w.Code == http.StatusTooManyRequests {
			assert.Equal(t, "1", w.Header().Get("Retry-After"))
		}
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

// TestRedisRateLimiter_RealRedis тот же скрипт на настоящем Redis
func TestRedisRateLimiter_RealRedis(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test, skipped in short mode")
	}
	ctx := t.Context()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	opts, err := redis.ParseURL(uri)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })

	rl, clock := newTestRedisLimiter(t, client, RateLimiterConfig{RequestsPerSecond: 1, BurstSize: 2})

	for i := 0; i < 2; i++ {
		decision, err := rl.Allow(ctx, "real")
		require.NoError(t, err)
		assert.True(t, decision.Allowed)
	}
	decision, err := rl.Allow(ctx, "real")
	require.NoError(t, err)
	assert.False(t, decision.Allowed)

	clock.Advance(time.Second)
	decision, err = rl.Allow(ctx, "real")
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
}
