package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Пороги принудительной очистки: большой кэш с низким hit rate
// считается заполненным «холодными» записями.
const (
	optimizeHitRateThreshold = 30.0
	optimizeSizeThreshold    = 1000

	DefaultOptimizationInterval = 30 * time.Minute
)

// Prometheus-метрики кэшей, метка cache = имя кэша в реестре
var (
	cacheHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shortener_cache_hits_total",
		Help: "Количество попаданий в кэш.",
	}, []string{"cache"})
	cacheMissesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shortener_cache_misses_total",
		Help: "Количество промахов кэша.",
	}, []string{"cache"})
	cacheEntries = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "shortener_cache_entries",
		Help: "Текущее количество записей в кэше.",
	}, []string{"cache"})
	cacheFlushesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shortener_cache_flushes_total",
		Help: "Количество полных очисток кэша.",
	}, []string{"cache"})
)

// Snapshot состояние метрик на момент вызова
type Snapshot struct {
	Hits        int64      `json:"hits"`
	Misses      int64      `json:"misses"`
	HitRate     float64    `json:"hit_rate"`
	Size        int64      `json:"size"`
	LastCleanup *time.Time `json:"last_cleanup"`
}

type flusher interface {
	Flush()
}

// Metrics счётчики одного экземпляра кэша. Все мутации атомарны.
type Metrics struct {
	name        string
	hits        atomic.Int64
	misses      atomic.Int64
	size        atomic.Int64
	lastCleanup atomic.Int64 // UnixNano, 0 если очистки не было

	owner  flusher
	logger *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewMetrics создаёт трекер для кэша owner (может быть nil)
func NewMetrics(name string, owner flusher, logger *zap.Logger) *Metrics {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Metrics{
		name:   name,
		owner:  owner,
		logger: logger,
	}
}

func (m *Metrics) RecordHit() {
	m.hits.Add(1)
	cacheHitsTotal.WithLabelValues(m.name).Inc()
}

func (m *Metrics) RecordMiss() {
	m.misses.Add(1)
	cacheMissesTotal.WithLabelValues(m.name).Inc()
}

func (m *Metrics) UpdateSize(n int) {
	m.size.Store(int64(n))
	cacheEntries.WithLabelValues(m.name).Set(float64(n))
}

func (m *Metrics) RecordCleanup() {
	m.lastCleanup.Store(time.Now().UnixNano())
	cacheFlushesTotal.WithLabelValues(m.name).Inc()
}

// HitRate процент попаданий, 0 если обращений ещё не было
func (m *Metrics) HitRate() float64 {
	return hitRate(m.hits.Load(), m.misses.Load())
}

func hitRate(hits, misses int64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total) * 100
}

func (m *Metrics) Snapshot() Snapshot {
	hits, misses := m.hits.Load(), m.misses.Load()
	s := Snapshot{
		Hits:    hits,
		Misses:  misses,
		HitRate: hitRate(hits, misses),
		Size:    m.size.Load(),
	}
	if ns := m.lastCleanup.Load(); ns != 0 {
		t := time.Unix(0, ns)
		s.LastCleanup = &t
	}
	return s
}

// Optimize сбрасывает кэш целиком, если он большой и почти бесполезный.
// Возвращает true, если сброс был выполнен.
func (m *Metrics) Optimize() bool {
	rate := m.HitRate()
	size := m.size.Load()
	if rate >= optimizeHitRateThreshold || size <= optimizeSizeThreshold {
		return false
	}

	// Store.Flush сам отмечает очистку
	if m.owner != nil {
		m.owner.Flush()
	} else {
		m.RecordCleanup()
	}

	m.logger.Info("Cache optimized due to low hit rate",
		zap.String("cache", m.name),
		zap.Float64("hit_rate", rate),
		zap.Int64("size", size),
	)
	return true
}

// ScheduleOptimization запускает периодический Optimize.
// Предыдущий таймер этого трекера останавливается до запуска нового.
func (m *Metrics) ScheduleOptimization(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultOptimizationInterval
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopLocked()

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	m.cancel = cancel
	m.done = done

	go func() {
		defer close(done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Optimize()
			}
		}
	}()
}

// StopOptimization останавливает таймер и ждёт завершения горутины
func (m *Metrics) StopOptimization() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
}

func (m *Metrics) stopLocked() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
	m.cancel, m.done = nil, nil
}

// OptimizationScheduled сообщает, запущен ли таймер
func (m *Metrics) OptimizationScheduled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancel != nil
}
