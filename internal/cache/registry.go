package cache

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Имена кэшей, используемых сервисом ссылок
const (
	GlobalCacheName = "global"
	URLCacheName    = "urlCache"
)

// NamedStatus статус кэша с его именем
type NamedStatus struct {
	Name   string `json:"name"`
	Status Status `json:"status"`
}

// Registry владеет именованными кэшами процесса: один экземпляр на имя,
// общий для всех потребителей. Создаётся явно и передаётся зависимостью.
type Registry struct {
	mu     sync.RWMutex
	caches map[string]*Store
	order  []string
	logger *zap.Logger
}

func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		caches: make(map[string]*Store),
		logger: logger,
	}
}

// GetOrCreate возвращает кэш с именем name или создаёт его с TTL ttl.
// ttl существующего кэша не меняется.
func (r *Registry) GetOrCreate(name string, ttl time.Duration) *Store {
	r.mu.RLock()
	store, ok := r.caches[name]
	r.mu.RUnlock()
	if ok {
		return store
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if store, ok := r.caches[name]; ok {
		return store
	}
	store = NewStore(name, ttl, r.logger.With(zap.String("cache", name)))
	r.caches[name] = store
	r.order = append(r.order, name)

	r.logger.Debug("Cache created", zap.String("cache", name), zap.Duration("ttl", store.DefaultTTL()))
	return store
}

// Caches все кэши в порядке создания
func (r *Registry) Caches() []*Store {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stores := make([]*Store, 0, len(r.order))
	for _, name := range r.order {
		stores = append(stores, r.caches[name])
	}
	return stores
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// ScheduleOptimizationForAll запускает по одному таймеру оптимизации на кэш.
// Таймеры останавливаются при отмене ctx или через StopOptimizationForAll.
func (r *Registry) ScheduleOptimizationForAll(ctx context.Context, interval time.Duration) {
	for _, store := range r.Caches() {
		store.ScheduleOptimization(ctx, interval)
	}
	r.logger.Info("Cache optimization scheduled",
		zap.Strings("caches", r.Names()),
		zap.Duration("interval", interval),
	)
}

func (r *Registry) StopOptimizationForAll() {
	for _, store := range r.Caches() {
		store.StopOptimization()
	}
	r.logger.Info("Cache optimization stopped")
}

func (r *Registry) FlushAll() {
	for _, store := range r.Caches() {
		store.Flush()
	}
}

func (r *Registry) StatusForAll() []NamedStatus {
	stores := r.Caches()
	statuses := make([]NamedStatus, 0, len(stores))
	for _, store := range stores {
		statuses = append(statuses, NamedStatus{
			Name:   store.Name(),
			Status: store.Status(),
		})
	}
	return statuses
}
