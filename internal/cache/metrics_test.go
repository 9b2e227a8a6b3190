package cache_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/SergeiKhy/shorty/internal/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fillStore заполняет кэш n записями и набирает заданное число попаданий и промахов
func fillStore(store *cache.Store, n, hits, misses int) {
	for i := 0; i < n; i++ {
		store.Set(fmt.Sprintf("url:%d", i), i, 0)
	}
	for i := 0; i < hits; i++ {
		store.Get("url:0")
	}
	for i := 0; i < misses; i++ {
		store.Get("url:missing")
	}
}

func TestMetrics_HitRateWithoutObservations(t *testing.T) {
	metrics := cache.NewMetrics("empty", nil, nil)

	assert.Equal(t, 0.0, metrics.HitRate())
	snapshot := metrics.Snapshot()
	assert.Nil(t, snapshot.LastCleanup)
	assert.Equal(t, int64(0), snapshot.Size)
}

func TestMetrics_Counters(t *testing.T) {
	metrics := cache.NewMetrics("counters", nil, nil)

	metrics.RecordHit()
	metrics.RecordHit()
	metrics.RecordHit()
	metrics.RecordMiss()
	metrics.UpdateSize(42)
	metrics.RecordCleanup()

	snapshot := metrics.Snapshot()
	assert.Equal(t, int64(3), snapshot.Hits)
	assert.Equal(t, int64(1), snapshot.Misses)
	assert.Equal(t, 75.0, snapshot.HitRate)
	assert.Equal(t, int64(42), snapshot.Size)
	require.NotNil(t, snapshot.LastCleanup)
	assert.WithinDuration(t, time.Now(), *snapshot.LastCleanup, time.Second)
}

// TestMetrics_Optimize_FlushesColdCache большой кэш с низким hit rate сбрасывается
func TestMetrics_Optimize_FlushesColdCache(t *testing.T) {
	store := cache.NewStore("cold", time.Minute, nil)
	fillStore(store, 1001, 1, 9)

	assert.True(t, store.Metrics().Optimize())

	snapshot := store.Metrics().Snapshot()
	assert.Equal(t, int64(0), snapshot.Size)
	assert.NotNil(t, snapshot.LastCleanup)
	assert.Equal(t, 0, store.Status().KeyCount)
}

// TestMetrics_Optimize_KeepsUsefulCache высокий hit rate защищает кэш от сброса
func TestMetrics_Optimize_KeepsUsefulCache(t *testing.T) {
	store := cache.NewStore("hot", time.Minute, nil)
	fillStore(store, 1001, 9, 1)

	assert.False(t, store.Metrics().Optimize())
	assert.Equal(t, 1001, store.Status().KeyCount)
	assert.Nil(t, store.Metrics().Snapshot().LastCleanup)
}

// TestMetrics_Optimize_KeepsSmallCache маленький кэш не сбрасывается даже с низким hit rate
func TestMetrics_Optimize_KeepsSmallCache(t *testing.T) {
	store := cache.NewStore("small", time.Minute, nil)
	fillStore(store, 1000, 0, 10)

	assert.False(t, store.Metrics().Optimize())
	assert.Equal(t, 1000, store.Status().KeyCount)
}

// TestMetrics_ScheduleOptimization проверяет периодический запуск оптимизации
func TestMetrics_ScheduleOptimization(t *testing.T) {
	store := cache.NewStore("scheduled", time.Minute, nil)
	fillStore(store, 1001, 0, 5)

	store.ScheduleOptimization(context.Background(), 10*time.Millisecond)
	defer store.StopOptimization()

	assert.Eventually(t, func() bool {
		return store.Status().KeyCount == 0
	}, time.Second, 10*time.Millisecond)
}

// TestMetrics_RescheduleReplacesTimer повторное планирование не плодит таймеры
func TestMetrics_RescheduleReplacesTimer(t *testing.T) {
	metrics := cache.NewMetrics("reschedule", nil, nil)

	metrics.ScheduleOptimization(context.Background(), time.Hour)
	metrics.ScheduleOptimization(context.Background(), time.Hour)
	assert.True(t, metrics.OptimizationScheduled())

	metrics.StopOptimization()
	assert.False(t, metrics.OptimizationScheduled())

	// повторная остановка безопасна
	metrics.StopOptimization()
}

func TestMetrics_ScheduleStopsOnContextCancel(t *testing.T) {
	store := cache.NewStore("cancelled", time.Minute, nil)
	ctx, cancel := context.WithCancel(context.Background())

	store.ScheduleOptimization(ctx, 5*time.Millisecond)
	cancel()

	done := make(chan struct{})
	go func() {
		store.StopOptimization()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("StopOptimization не завершился после отмены контекста")
	}
}
