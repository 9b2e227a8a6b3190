package mocks

import (
	"context"
	"sort"
	"sync"

	"github.com/SergeiKhy/shorty/internal/models"
	"github.com/SergeiKhy/shorty/internal/repository"
)

// MockURLRepository implements repository.URLRepository for testing
type MockURLRepository struct {
	mu     sync.RWMutex
	urls   map[string]*models.URLRecord
	nextID int64

	// InsertErr, если задан, возвращается из Insert один раз
	InsertErr error
	// IncrementErr возвращается из IncrementVisitCount
	IncrementErr error
	InsertCalls  int
}

func NewMockURLRepository() *MockURLRepository {
	return &MockURLRepository{
		urls:   make(map[string]*models.URLRecord),
		nextID: 1,
	}
}

func (m *MockURLRepository) Insert(ctx context.Context, record *models.URLRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.InsertCalls++
	if m.InsertErr != nil {
		err := m.InsertErr
		m.InsertErr = nil
		return err
	}

	if _, exists := m.urls[record.ShortCode]; exists {
		return repository.ErrCodeExists
	}

	record.ID = m.nextID
	m.nextID++
	stored := *record
	m.urls[record.ShortCode] = &stored
	return nil
}

func (m *MockURLRepository) FindByShortCode(ctx context.Context, code string) (*models.URLRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	record, exists := m.urls[code]
	if !exists {
		return nil, repository.ErrURLNotFound
	}
	found := *record
	return &found, nil
}

func (m *MockURLRepository) IncrementVisitCount(ctx context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.IncrementErr != nil {
		return m.IncrementErr
	}

	record, exists := m.urls[code]
	if !exists {
		return repository.ErrURLNotFound
	}
	record.VisitCount++
	return nil
}

func (m *MockURLRepository) DeleteByShortCode(ctx context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.urls[code]; !exists {
		return repository.ErrURLNotFound
	}
	delete(m.urls, code)
	return nil
}

func (m *MockURLRepository) ListAll(ctx context.Context) ([]*models.URLRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := make([]*models.URLRecord, 0, len(m.urls))
	for _, record := range m.urls {
		found := *record
		records = append(records, &found)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].ID > records[j].ID
		}
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, nil
}

func (m *MockURLRepository) DeleteAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.urls = make(map[string]*models.URLRecord)
	return nil
}

// Put кладёт запись напрямую, минуя сервис
func (m *MockURLRepository) Put(record *models.URLRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record.ID = m.nextID
	m.nextID++
	stored := *record
	m.urls[record.ShortCode] = &stored
}

func (m *MockURLRepository) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.urls)
}

// MockClickRepository implements repository.ClickRepository for testing
type MockClickRepository struct {
	mu     sync.RWMutex
	clicks map[string][]*models.ClickEvent // short_code -> clicks
	nextID int64

	// RecordErr возвращается из RecordClick, пока FailRecords > 0
	RecordErr   error
	FailRecords int
	RecordCalls int
	Daily       []models.DailyClickStats
}

func NewMockClickRepository() *MockClickRepository {
	return &MockClickRepository{
		clicks: make(map[string][]*models.ClickEvent),
		nextID: 1,
	}
}

func (m *MockClickRepository) RecordClick(ctx context.Context, click *models.ClickEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.RecordCalls++
	if m.FailRecords > 0 {
		m.FailRecords--
		return m.RecordErr
	}

	click.ID = m.nextID
	m.nextID++
	m.clicks[click.ShortCode] = append(m.clicks[click.ShortCode], click)
	return nil
}

func (m *MockClickRepository) FindByShortCode(ctx context.Context, shortCode string) ([]*models.ClickEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stored := m.clicks[shortCode]
	clicks := make([]*models.ClickEvent, 0, len(stored))
	for i := len(stored) - 1; i >= 0; i-- {
		clicks = append(clicks, stored[i])
	}
	return clicks, nil
}

func (m *MockClickRepository) GetDailyStats(ctx context.Context, shortCode string, days int) ([]models.DailyClickStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.Daily == nil {
		return []models.DailyClickStats{}, nil
	}
	return m.Daily, nil
}

func (m *MockClickRepository) DeleteByShortCode(ctx context.Context, shortCode string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.clicks, shortCode)
	return nil
}

func (m *MockClickRepository) DeleteAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clicks = make(map[string][]*models.ClickEvent)
	return nil
}

func (m *MockClickRepository) Count(shortCode string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clicks[shortCode])
}

// Calls число вызовов RecordClick, включая неуспешные
func (m *MockClickRepository) Calls() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RecordCalls
}

// ClickRecorderFunc адаптер функции к service.ClickRecorder
type ClickRecorderFunc func(ctx context.Context, click *models.ClickEvent) error

func (f ClickRecorderFunc) RecordClick(ctx context.Context, click *models.ClickEvent) error {
	return f(ctx, click)
}
