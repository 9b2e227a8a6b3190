package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig
	DB        DBConfig
	Redis     RedisConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	ShortCode ShortCodeConfig
}

type AppConfig struct {
	Port     string
	BaseURL  string
	LogLevel string
}

type DBConfig struct {
	Host          string
	Port          string
	User          string
	Password      string
	Name          string
	SSLMode       string
	RunMigrations bool
}

// DSN строка подключения в формате postgres://
func (c DBConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     c.Host + ":" + c.Port,
		Path:     "/" + c.Name,
		RawQuery: "sslmode=" + c.SSLMode,
	}
	return u.String()
}

// MigrationURL та же строка со схемой драйвера pgx/v5 для golang-migrate
func (c DBConfig) MigrationURL() string {
	return "pgx5" + strings.TrimPrefix(c.DSN(), "postgres")
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

type AuthConfig struct {
	APIKeys map[string]string // API key -> name/description
}

// Бэкенды rate limiter
const (
	RateLimitBackendMemory = "memory"
	RateLimitBackendRedis  = "redis"
)

type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
	Backend           string
}

type CacheConfig struct {
	TTL                  time.Duration
	OptimizationInterval time.Duration
}

type ShortCodeConfig struct {
	Length      int
	MaxAttempts int
}

// Load читает .env (если есть) и переменные окружения
func Load() (*Config, error) {
	return LoadFile(".env")
}

// LoadFile читает конфиг из файла path; отсутствие файла не ошибка
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var pathErr *fs.PathError
		if !errors.As(err, &pathErr) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	cfg.App.Port = v.GetString("APP_PORT")
	cfg.App.BaseURL = strings.TrimRight(v.GetString("BASE_URL"), "/")
	if cfg.App.BaseURL == "" {
		cfg.App.BaseURL = "http://localhost:" + cfg.App.Port
	}
	cfg.App.LogLevel = v.GetString("LOG_LEVEL")

	cfg.DB.Host = v.GetString("DB_HOST")
	cfg.DB.Port = v.GetString("DB_PORT")
	cfg.DB.User = v.GetString("DB_USER")
	cfg.DB.Password = v.GetString("DB_PASSWORD")
	cfg.DB.Name = v.GetString("DB_NAME")
	cfg.DB.SSLMode = v.GetString("DB_SSLMODE")
	cfg.DB.RunMigrations = v.GetBool("RUN_MIGRATIONS")

	cfg.Redis.Host = v.GetString("REDIS_HOST")
	cfg.Redis.Port = v.GetString("REDIS_PORT")
	cfg.Redis.Password = v.GetString("REDIS_PASSWORD")
	cfg.Redis.DB = v.GetInt("REDIS_DB")

	// Формат: key1:name1,key2:name2
	cfg.Auth.APIKeys = parseAPIKeys(v.GetString("API_KEYS"))

	cfg.RateLimit.RequestsPerSecond = v.GetFloat64("RATE_LIMIT_RPS")
	if cfg.RateLimit.RequestsPerSecond <= 0 {
		cfg.RateLimit.RequestsPerSecond = 10
	}
	cfg.RateLimit.BurstSize = v.GetInt("RATE_LIMIT_BURST")
	if cfg.RateLimit.BurstSize <= 0 {
		cfg.RateLimit.BurstSize = 20
	}
	cfg.RateLimit.Backend = strings.ToLower(v.GetString("RATE_LIMIT_BACKEND"))
	if cfg.RateLimit.Backend != RateLimitBackendRedis {
		cfg.RateLimit.Backend = RateLimitBackendMemory
	}

	// CACHE_TTL в секундах, CACHE_OPTIMIZATION_INTERVAL в минутах
	cfg.Cache.TTL = time.Duration(v.GetInt("CACHE_TTL")) * time.Second
	if cfg.Cache.TTL <= 0 {
		cfg.Cache.TTL = time.Hour
	}
	cfg.Cache.OptimizationInterval = time.Duration(v.GetInt("CACHE_OPTIMIZATION_INTERVAL")) * time.Minute
	if cfg.Cache.OptimizationInterval <= 0 {
		cfg.Cache.OptimizationInterval = 30 * time.Minute
	}

	cfg.ShortCode.Length = v.GetInt("SHORT_CODE_LENGTH")
	if cfg.ShortCode.Length <= 0 {
		cfg.ShortCode.Length = 8
	}
	cfg.ShortCode.MaxAttempts = v.GetInt("SHORT_CODE_MAX_ATTEMPTS")
	if cfg.ShortCode.MaxAttempts <= 0 {
		cfg.ShortCode.MaxAttempts = 10
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_SSLMODE", "disable")
	v.SetDefault("RUN_MIGRATIONS", true)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("RATE_LIMIT_BACKEND", RateLimitBackendMemory)
}

// parseAPIKeys parses comma-separated API keys in format "key1:name1,key2:name2"
func parseAPIKeys(raw string) map[string]string {
	keys := make(map[string]string)
	if raw == "" {
		return keys
	}

	pairs := strings.Split(raw, ",")
	for _, pair := range pairs {
		parts := strings.SplitN(strings.TrimSpace(pair), ":", 2)
		if len(parts) == 2 {
			keys[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}

	return keys
}
