package middleware

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const redisRateLimitPrefix = "ratelimit:"

// Token bucket в одном hash: tokens и ts (мс последнего пополнения).
//
// KEYS[1]: ключ корзины
// ARGV[1]: ёмкость
// ARGV[2]: токенов в секунду
// ARGV[3]: текущее время, мс
// ARGV[4]: TTL ключа, мс
//
// Возвращает {allowed, retry_after_ms}
const tokenBucketScript = `
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local state = redis.call('HMGET', key, 'tokens', 'ts')
local tokens = capacity
local ts = now
if state[1] then
    tokens = tonumber(state[1])
end
if state[2] then
    ts = tonumber(state[2])
end

local elapsed = math.max(0, now - ts)
tokens = math.min(capacity, tokens + elapsed * rate / 1000)

local allowed = 0
local retry_after = 0
if tokens >= 1 then
    tokens = tokens - 1
    allowed = 1
else
    retry_after = math.ceil((1 - tokens) * 1000 / rate)
end

redis.call('HSET', key, 'tokens', tostring(tokens), 'ts', tostring(now))
redis.call('PEXPIRE', key, ttl)

return {allowed, retry_after}
`

// RedisRateLimiter token bucket, общий для всех экземпляров сервиса.
// Атомарность обеспечивает Lua скрипт.
type RedisRateLimiter struct {
	client redis.Scripter
	config RateLimiterConfig
	script *redis.Script
	ttl    time.Duration
	logger *zap.Logger
	now    func() time.Time
}

func NewRedisRateLimiter(client redis.Scripter, config RateLimiterConfig, logger *zap.Logger) *RedisRateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	config = config.withDefaults()

	// Время полного пополнения корзины плюс запас
	refill := time.Duration(float64(config.BurstSize) / config.RequestsPerSecond * float64(time.Second))

	return &RedisRateLimiter{
		client: client,
		config: config,
		script: redis.NewScript(tokenBucketScript),
		ttl:    refill + time.Second,
		logger: logger,
		now:    time.Now,
	}
}

// Allow при ошибке Redis пропускает запрос и возвращает ошибку
func (rl *RedisRateLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	result, err := rl.script.Run(
		ctx,
		rl.client,
		[]string{redisRateLimitPrefix + key},
		rl.config.BurstSize,
		rl.config.RequestsPerSecond,
		rl.now().UnixMilli(),
		int64(math.Ceil(float64(rl.ttl)/float64(time.Millisecond))),
	).Int64Slice()
	if err != nil {
		return Decision{Allowed: true}, fmt.Errorf("redis rate limit: %w", err)
	}
	if len(result) != 2 {
		return Decision{Allowed: true}, fmt.Errorf("redis rate limit: unexpected reply %v", result)
	}

	return Decision{
		Allowed:    result[0] == 1,
		RetryAfter: time.Duration(result[1]) * time.Millisecond,
	}, nil
}

func (rl *RedisRateLimiter) Middleware() gin.HandlerFunc {
	return RateLimit(rl, ClientIPKey, rl.logger)
}
