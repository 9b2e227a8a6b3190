// Package cache реализует in-process кэш с TTL на запись, метриками попаданий
// и реестром именованных экземпляров.
package cache

import (
	"context"
	"math"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

const (
	// KeyPrefix префикс ключей записей ссылок
	KeyPrefix = "url:"

	DefaultTTL = time.Hour
	// BaseTTL и MaxTTL задают границы динамического TTL в UpdateTTL
	BaseTTL = time.Hour
	MaxTTL  = 24 * time.Hour
)

// URLKey ключ кэша для короткого кода
func URLKey(shortCode string) string {
	return KeyPrefix + shortCode
}

// DynamicTTL возвращает min(BaseTTL * ln(accessCount+1), MaxTTL).
// Значения короче секунды заменяются на BaseTTL.
func DynamicTTL(accessCount int64) time.Duration {
	if accessCount < 0 {
		accessCount = 0
	}
	ttl := time.Duration(float64(BaseTTL) * math.Log(float64(accessCount)+1))
	if ttl > MaxTTL {
		return MaxTTL
	}
	if ttl < time.Second {
		return BaseTTL
	}
	return ttl
}

// RawStats внутреннее состояние go-cache
type RawStats struct {
	Items           int           `json:"items"`
	DefaultTTL      time.Duration `json:"default_ttl"`
	CleanupInterval time.Duration `json:"cleanup_interval"`
}

// Status диагностика одного кэша
type Status struct {
	Name     string   `json:"name"`
	KeyCount int      `json:"key_count"`
	Stats    RawStats `json:"stats"`
	Metrics  Snapshot `json:"metrics"`
}

// Store кэш с TTL на запись поверх go-cache.
// Значения хранятся по ссылке и не клонируются: вызывающий копирует
// значение перед изменением.
type Store struct {
	name            string
	items           *gocache.Cache
	defaultTTL      time.Duration
	cleanupInterval time.Duration
	metrics         *Metrics
}

// NewStore создаёт кэш с TTL по умолчанию defaultTTL.
// Просроченные записи вычищаются каждые defaultTTL/5.
func NewStore(name string, defaultTTL time.Duration, logger *zap.Logger) *Store {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	cleanup := defaultTTL / 5
	if cleanup < time.Second {
		cleanup = time.Second
	}

	s := &Store{
		name:            name,
		items:           gocache.New(defaultTTL, cleanup),
		defaultTTL:      defaultTTL,
		cleanupInterval: cleanup,
	}
	s.metrics = NewMetrics(name, s, logger)
	s.items.OnEvicted(func(string, interface{}) {
		s.metrics.UpdateSize(s.items.ItemCount())
	})
	return s
}

func (s *Store) Name() string {
	return s.name
}

func (s *Store) DefaultTTL() time.Duration {
	return s.defaultTTL
}

func (s *Store) Metrics() *Metrics {
	return s.metrics
}

// Get возвращает значение и учитывает попадание или промах
func (s *Store) Get(key string) (any, bool) {
	value, found := s.items.Get(key)
	if !found {
		s.metrics.RecordMiss()
		return nil, false
	}
	s.metrics.RecordHit()
	return value, true
}

// Set вставляет или заменяет запись. ttl == 0 означает TTL по умолчанию.
func (s *Store) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	s.items.Set(key, value, ttl)
	s.metrics.UpdateSize(s.items.ItemCount())
}

// Delete удаляет запись и сообщает, была ли она в кэше
func (s *Store) Delete(key string) bool {
	_, found := s.items.Get(key)
	s.items.Delete(key)
	s.metrics.UpdateSize(s.items.ItemCount())
	return found
}

// Flush удаляет все записи
func (s *Store) Flush() {
	s.items.Flush()
	s.metrics.UpdateSize(0)
	s.metrics.RecordCleanup()
}

// UpdateTTL перевставляет существующее значение с TTL, растущим логарифмически
// от числа обращений. false, если ключа нет.
func (s *Store) UpdateTTL(key string, accessCount int64) bool {
	value, found := s.items.Get(key)
	if !found {
		return false
	}
	s.items.Set(key, value, DynamicTTL(accessCount))
	s.metrics.UpdateSize(s.items.ItemCount())
	return true
}

// TTL оставшееся время жизни записи
func (s *Store) TTL(key string) (time.Duration, bool) {
	_, expiration, found := s.items.GetWithExpiration(key)
	if !found {
		return 0, false
	}
	if expiration.IsZero() {
		return 0, true
	}
	return time.Until(expiration), true
}

// RecentURLs значения всех живых записей с префиксом KeyPrefix.
// Порядок не определён.
func (s *Store) RecentURLs() []any {
	items := s.items.Items()
	values := make([]any, 0, len(items))
	for key, item := range items {
		if strings.HasPrefix(key, KeyPrefix) && item.Object != nil {
			values = append(values, item.Object)
		}
	}
	return values
}

func (s *Store) Status() Status {
	return Status{
		Name:     s.name,
		KeyCount: len(s.items.Items()),
		Stats: RawStats{
			Items:           s.items.ItemCount(),
			DefaultTTL:      s.defaultTTL,
			CleanupInterval: s.cleanupInterval,
		},
		Metrics: s.metrics.Snapshot(),
	}
}

func (s *Store) ScheduleOptimization(ctx context.Context, interval time.Duration) {
	s.metrics.ScheduleOptimization(ctx, interval)
}

func (s *Store) StopOptimization() {
	s.metrics.StopOptimization()
}
