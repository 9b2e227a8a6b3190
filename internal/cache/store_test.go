package cache_test

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/SergeiKhy/shorty/internal/cache"
	"github.com/SergeiKhy/shorty/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestStore_SetGet проверяет round-trip set/get
func TestStore_SetGet(t *testing.T) {
	store := cache.NewStore("test", time.Minute, nil)

	record := &models.URLRecord{ShortCode: "abc", OriginalURL: "https://example.com"}
	store.Set(cache.URLKey("abc"), record, 0)

	value, ok := store.Get(cache.URLKey("abc"))
	require.True(t, ok)
	assert.Same(t, record, value, "значение не должно клонироваться")

	_, ok = store.Get(cache.URLKey("missing"))
	assert.False(t, ok)
}

// TestStore_HitRate проверяет hit rate после 2 попаданий и 1 промаха
func TestStore_HitRate(t *testing.T) {
	store := cache.NewStore("hit-rate", 10*time.Minute, nil)

	store.Set("test1", "test 1", 0)
	store.Set("test2", "test 2", 0)

	_, ok := store.Get("test1")
	assert.True(t, ok)
	_, ok = store.Get("nonexistent")
	assert.False(t, ok)
	_, ok = store.Get("test2")
	assert.True(t, ok)

	snapshot := store.Status().Metrics
	assert.Equal(t, int64(2), snapshot.Hits)
	assert.Equal(t, int64(1), snapshot.Misses)
	assert.InDelta(t, 66.67, snapshot.HitRate, 0.01)
	assert.Equal(t, int64(2), snapshot.Size)
}

// TestStore_Expiration проверяет, что просроченная запись считается промахом
func TestStore_Expiration(t *testing.T) {
	store := cache.NewStore("expiring", time.Minute, nil)

	store.Set("short", "value", 30*time.Millisecond)
	_, ok := store.Get("short")
	require.True(t, ok)

	time.Sleep(60 * time.Millisecond)

	_, ok = store.Get("short")
	assert.False(t, ok)
	assert.Equal(t, int64(1), store.Metrics().Snapshot().Misses)
}

func TestStore_Delete(t *testing.T) {
	store := cache.NewStore("delete", time.Minute, nil)
	store.Set("k", 1, 0)

	assert.True(t, store.Delete("k"))
	assert.False(t, store.Delete("k"))

	_, ok := store.Get("k")
	assert.False(t, ok)
	assert.Equal(t, int64(0), store.Metrics().Snapshot().Size)
}

func TestStore_Flush(t *testing.T) {
	store := cache.NewStore("flush", time.Minute, nil)
	for i := 0; i < 5; i++ {
		store.Set(fmt.Sprintf("k%d", i), i, 0)
	}

	store.Flush()

	snapshot := store.Metrics().Snapshot()
	assert.Equal(t, int64(0), snapshot.Size)
	require.NotNil(t, snapshot.LastCleanup)
	assert.Equal(t, 0, store.Status().KeyCount)
}

// TestStore_UpdateTTL_Absent проверяет отказ для отсутствующего ключа
func TestStore_UpdateTTL_Absent(t *testing.T) {
	store := cache.NewStore("ttl-absent", time.Minute, nil)

	assert.False(t, store.UpdateTTL("missing", 100))

	_, ok := store.TTL("missing")
	assert.False(t, ok)
	assert.Equal(t, 0, store.Status().KeyCount)
}

// TestStore_UpdateTTL_Present проверяет перевставку того же значения с новым TTL
func TestStore_UpdateTTL_Present(t *testing.T) {
	store := cache.NewStore("ttl-present", time.Minute, nil)
	record := &models.URLRecord{ShortCode: "hot"}
	store.Set(cache.URLKey("hot"), record, 0)

	require.True(t, store.UpdateTTL(cache.URLKey("hot"), 10))

	ttl, ok := store.TTL(cache.URLKey("hot"))
	require.True(t, ok)
	expected := 3600 * math.Log(11)
	assert.InDelta(t, expected, ttl.Seconds(), 2)

	value, ok := store.Get(cache.URLKey("hot"))
	require.True(t, ok)
	assert.Same(t, record, value)
}

func TestDynamicTTL(t *testing.T) {
	tests := []struct {
		name        string
		accessCount int64
		expected    time.Duration
	}{
		{"одно обращение", 1, time.Duration(float64(time.Hour) * math.Log(2))},
		{"одиннадцать обращений", 11, time.Duration(float64(time.Hour) * math.Log(12))},
		{"ограничение сверху", 1_000_000_000_000, 24 * time.Hour},
		{"ноль обращений", 0, time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected.Seconds(), cache.DynamicTTL(tt.accessCount).Seconds(), 0.001)
		})
	}
}

// TestStore_RecentURLs проверяет выборку по префиксу url:
func TestStore_RecentURLs(t *testing.T) {
	store := cache.NewStore("recent", time.Minute, nil)
	store.Set(cache.URLKey("a"), &models.URLRecord{ShortCode: "a"}, 0)
	store.Set(cache.URLKey("b"), &models.URLRecord{ShortCode: "b"}, 0)
	store.Set("session:x", "other", 0)
	store.Set(cache.URLKey("gone"), &models.URLRecord{ShortCode: "gone"}, 20*time.Millisecond)

	time.Sleep(40 * time.Millisecond)

	values := store.RecentURLs()
	codes := make([]string, 0, len(values))
	for _, v := range values {
		codes = append(codes, v.(*models.URLRecord).ShortCode)
	}
	assert.ElementsMatch(t, []string{"a", "b"}, codes)
}

func TestStore_Status(t *testing.T) {
	store := cache.NewStore("status", 10*time.Minute, nil)
	store.Set("k", "v", 0)

	status := store.Status()
	assert.Equal(t, "status", status.Name)
	assert.Equal(t, 1, status.KeyCount)
	assert.Equal(t, 10*time.Minute, status.Stats.DefaultTTL)
	assert.Equal(t, 2*time.Minute, status.Stats.CleanupInterval)
	assert.Equal(t, int64(1), status.Metrics.Size)
}
