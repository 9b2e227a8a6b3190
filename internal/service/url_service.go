package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/SergeiKhy/shorty/internal/cache"
	"github.com/SergeiKhy/shorty/internal/models"
	"github.com/SergeiKhy/shorty/internal/repository"
	"github.com/SergeiKhy/shorty/internal/shortcode"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Ошибки сервиса
var (
	ErrURLNotFound   = errors.New("url not found")
	ErrSlugInUse     = errors.New("custom slug already in use")
	ErrInvalidSlug   = errors.New("invalid custom slug")
	ErrInvalidURL    = errors.New("invalid url")
	ErrCodeExhausted = errors.New("failed to generate unique short code")
)

const (
	defaultMaxCodeAttempts = 10
	// Порог посещений, после которого TTL в кэше растёт при чтении
	ttlExtensionThreshold = 10
	defaultDailyStatsDays = 7
	unknownValue          = "unknown"
)

var slugPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,32}$`)

// Коды, совпадающие со служебными путями роутера
var reservedSlugs = map[string]struct{}{
	"api":     {},
	"metrics": {},
}

// ClickRecorder принимает события кликов; запись может быть асинхронной
type ClickRecorder interface {
	RecordClick(ctx context.Context, event *models.ClickEvent) error
}

// URLService интерфейс сервиса коротких ссылок
type URLService interface {
	Create(ctx context.Context, input *models.CreateURLInput) (*models.URLRecord, error)
	Lookup(ctx context.Context, code string) (*models.URLRecord, error)
	RecordVisit(ctx context.Context, code string, visitor *models.VisitorInfo) error
	Analytics(ctx context.Context, code string) (*models.Analytics, error)
	DailyStats(ctx context.Context, code string, days int) ([]models.DailyClickStats, error)
	ListAll(ctx context.Context) ([]*models.URLRecord, error)
	RecentFromCache() []*models.URLRecord
	ClearAll(ctx context.Context) error
	Remove(ctx context.Context, code string) error
	CacheStatus() []cache.NamedStatus
}

// Config параметры сервиса; нулевые значения заменяются значениями по умолчанию
type Config struct {
	CodeLength      int
	MaxCodeAttempts int
	CacheTTL        time.Duration
	// GenerateCode источник кандидатов для коротких кодов
	GenerateCode func(length int) string
}

type urlService struct {
	urlRepo   repository.URLRepository
	clickRepo repository.ClickRepository
	clicks    ClickRecorder
	registry  *cache.Registry
	local     *cache.Store
	global    *cache.Store
	logger    *zap.Logger
	cfg       Config
}

// NewURLService создаёт сервис. Локальный и глобальный кэши берутся из registry.
// clicks может быть nil: тогда события кликов не записываются.
func NewURLService(
	urlRepo repository.URLRepository,
	clickRepo repository.ClickRepository,
	clicks ClickRecorder,
	registry *cache.Registry,
	logger *zap.Logger,
	cfg Config,
) URLService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CodeLength <= 0 {
		cfg.CodeLength = shortcode.DefaultLength
	}
	if cfg.MaxCodeAttempts <= 0 {
		cfg.MaxCodeAttempts = defaultMaxCodeAttempts
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = cache.DefaultTTL
	}
	if cfg.GenerateCode == nil {
		cfg.GenerateCode = shortcode.Generate
	}

	return &urlService{
		urlRepo:   urlRepo,
		clickRepo: clickRepo,
		clicks:    clicks,
		registry:  registry,
		local:     registry.GetOrCreate(cache.URLCacheName, cfg.CacheTTL),
		global:    registry.GetOrCreate(cache.GlobalCacheName, cfg.CacheTTL),
		logger:    logger,
		cfg:       cfg,
	}
}

// Create создаёт короткую ссылку и сразу кладёт её в оба кэша
func (s *urlService) Create(ctx context.Context, input *models.CreateURLInput) (*models.URLRecord, error) {
	if input == nil || strings.TrimSpace(input.OriginalURL) == "" {
		return nil, ErrInvalidURL
	}

	originalURL := input.OriginalURL
	var utm *models.UTMParams
	if !input.UTMParams.IsEmpty() {
		params := *input.UTMParams
		utm = &params

		decorated, err := applyUTM(originalURL, utm)
		if err != nil {
			s.logger.Warn("Failed to apply UTM params, using original URL",
				zap.String("url", originalURL),
				zap.Error(err),
			)
		} else {
			originalURL = decorated
		}
	}

	now := time.Now()
	record := &models.URLRecord{
		OriginalURL: originalURL,
		CreatedAt:   now,
		UTMParams:   utm,
	}
	if input.ExpirationDays != nil && *input.ExpirationDays > 0 {
		expiresAt := now.AddDate(0, 0, *input.ExpirationDays)
		record.ExpiresAt = &expiresAt
	}

	var err error
	if input.CustomSlug != nil && *input.CustomSlug != "" {
		err = s.insertWithSlug(ctx, record, *input.CustomSlug)
	} else {
		err = s.insertWithGeneratedCode(ctx, record)
	}
	if err != nil {
		return nil, err
	}

	s.writeThrough(record)

	s.logger.Debug("Short URL created",
		zap.String("short_code", record.ShortCode),
		zap.Bool("custom", input.CustomSlug != nil && *input.CustomSlug != ""),
	)

	return record, nil
}

// insertWithSlug кастомный код проверяется один раз, без повторных попыток
func (s *urlService) insertWithSlug(ctx context.Context, record *models.URLRecord, slug string) error {
	if err := validateSlug(slug); err != nil {
		return err
	}

	_, err := s.urlRepo.FindByShortCode(ctx, slug)
	switch {
	case err == nil:
		return ErrSlugInUse
	case !errors.Is(err, repository.ErrURLNotFound):
		return fmt.Errorf("failed to check slug: %w", err)
	}

	record.ShortCode = slug
	if err := s.urlRepo.Insert(ctx, record); err != nil {
		// Конкурентный запрос успел занять код между проверкой и вставкой
		if errors.Is(err, repository.ErrCodeExists) {
			return ErrSlugInUse
		}
		return fmt.Errorf("failed to create url: %w", err)
	}
	return nil
}

func (s *urlService) insertWithGeneratedCode(ctx context.Context, record *models.URLRecord) error {
	for attempt := 1; attempt <= s.cfg.MaxCodeAttempts; attempt++ {
		code := s.cfg.GenerateCode(s.cfg.CodeLength)

		_, err := s.urlRepo.FindByShortCode(ctx, code)
		if err == nil {
			s.logger.Debug("Generated code collision", zap.String("code", code), zap.Int("attempt", attempt))
			continue
		}
		if !errors.Is(err, repository.ErrURLNotFound) {
			return fmt.Errorf("failed to check code: %w", err)
		}

		record.ShortCode = code
		err = s.urlRepo.Insert(ctx, record)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrCodeExists) {
			return fmt.Errorf("failed to create url: %w", err)
		}
		s.logger.Debug("Generated code taken on insert", zap.String("code", code), zap.Int("attempt", attempt))
	}

	record.ShortCode = ""
	return fmt.Errorf("%w after %d attempts", ErrCodeExhausted, s.cfg.MaxCodeAttempts)
}

// Lookup cache-aside: локальный кэш, затем хранилище.
// Истёкшая запись удаляется отовсюду и считается отсутствующей.
func (s *urlService) Lookup(ctx context.Context, code string) (*models.URLRecord, error) {
	key := cache.URLKey(code)

	if cached, ok := cachedRecord(s.local, key); ok {
		if cached.IsExpired(time.Now()) {
			return nil, s.expire(ctx, code)
		}
		return cached, nil
	}

	record, err := s.find(ctx, code)
	if err != nil {
		return nil, err
	}

	s.writeThrough(record)
	if record.VisitCount > ttlExtensionThreshold {
		s.local.UpdateTTL(key, record.VisitCount)
		s.global.UpdateTTL(key, record.VisitCount)
	}

	return record, nil
}

// RecordVisit всегда увеличивает счётчик в хранилище.
// Клик пишется best-effort, кэшированная копия обновляется оптимистично.
func (s *urlService) RecordVisit(ctx context.Context, code string, visitor *models.VisitorInfo) error {
	if err := s.urlRepo.IncrementVisitCount(ctx, code); err != nil {
		if errors.Is(err, repository.ErrURLNotFound) {
			return ErrURLNotFound
		}
		return fmt.Errorf("failed to increment visit count: %w", err)
	}

	if visitor != nil {
		s.recordClick(ctx, code, visitor)
	}

	key := cache.URLKey(code)
	if cached, ok := cachedRecord(s.local, key); ok {
		cached.VisitCount++
		s.writeThrough(cached)
		s.local.UpdateTTL(key, cached.VisitCount)
		s.global.UpdateTTL(key, cached.VisitCount)
	}

	return nil
}

func (s *urlService) recordClick(ctx context.Context, code string, visitor *models.VisitorInfo) {
	if s.clicks == nil {
		return
	}

	visitorID := visitor.VisitorID
	if visitorID == "" {
		visitorID = uuid.NewString()
	}

	event := &models.ClickEvent{
		ShortCode:  code,
		VisitorID:  visitorID,
		DeviceType: optional(visitor.DeviceType),
		Browser:    optional(visitor.Browser),
		OS:         optional(visitor.OS),
		IPAddress:  optional(visitor.IPAddress),
		ClickedAt:  time.Now(),
	}

	if err := s.clicks.RecordClick(ctx, event); err != nil {
		s.logger.Warn("Failed to record click",
			zap.String("short_code", code),
			zap.Error(err),
		)
	}
}

// Analytics читает только хранилище: для агрегации нужна вся история кликов
func (s *urlService) Analytics(ctx context.Context, code string) (*models.Analytics, error) {
	record, err := s.find(ctx, code)
	if err != nil {
		return nil, err
	}

	clicks, err := s.clickRepo.FindByShortCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to get clicks: %w", err)
	}

	info := models.DeviceInfo{
		DeviceTypes:      make(map[string]int),
		Browsers:         make(map[string]int),
		OperatingSystems: make(map[string]int),
	}
	for _, click := range clicks {
		info.DeviceTypes[valueOrUnknown(click.DeviceType)]++
		info.Browsers[valueOrUnknown(click.Browser)]++
		info.OperatingSystems[valueOrUnknown(click.OS)]++
	}

	return &models.Analytics{
		ShortCode:    record.ShortCode,
		OriginalURL:  record.OriginalURL,
		TotalClicks:  record.VisitCount,
		DeviceInfo:   info,
		ClickHistory: clicks,
		CreatedAt:    record.CreatedAt,
		ExpiresAt:    record.ExpiresAt,
	}, nil
}

func (s *urlService) DailyStats(ctx context.Context, code string, days int) ([]models.DailyClickStats, error) {
	if days <= 0 {
		days = defaultDailyStatsDays
	}

	if _, err := s.find(ctx, code); err != nil {
		return nil, err
	}

	stats, err := s.clickRepo.GetDailyStats(ctx, code, days)
	if err != nil {
		return nil, fmt.Errorf("failed to get daily stats: %w", err)
	}
	return stats, nil
}

// ListAll всегда из хранилища, новые первыми
func (s *urlService) ListAll(ctx context.Context) ([]*models.URLRecord, error) {
	records, err := s.urlRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list urls: %w", err)
	}
	return records, nil
}

// RecentFromCache только то, что сейчас лежит в глобальном кэше
func (s *urlService) RecentFromCache() []*models.URLRecord {
	items := s.global.RecentURLs()

	records := make([]*models.URLRecord, 0, len(items))
	for _, item := range items {
		if record, ok := item.(*models.URLRecord); ok {
			snapshot := *record
			records = append(records, &snapshot)
		}
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records
}

func (s *urlService) ClearAll(ctx context.Context) error {
	if err := s.clickRepo.DeleteAll(ctx); err != nil {
		return fmt.Errorf("failed to clear clicks: %w", err)
	}
	if err := s.urlRepo.DeleteAll(ctx); err != nil {
		return fmt.Errorf("failed to clear urls: %w", err)
	}

	s.local.Flush()
	s.global.Flush()

	s.logger.Info("All short URLs removed")
	return nil
}

// Remove записи кэша удаляются даже если в хранилище ссылки уже нет
func (s *urlService) Remove(ctx context.Context, code string) error {
	err := s.remove(ctx, code)
	if errors.Is(err, repository.ErrURLNotFound) {
		return ErrURLNotFound
	}
	return err
}

func (s *urlService) CacheStatus() []cache.NamedStatus {
	return s.registry.StatusForAll()
}

// find читает запись из хранилища; истёкшую удаляет
func (s *urlService) find(ctx context.Context, code string) (*models.URLRecord, error) {
	record, err := s.urlRepo.FindByShortCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrURLNotFound) {
			return nil, ErrURLNotFound
		}
		return nil, fmt.Errorf("failed to get url: %w", err)
	}

	if record.IsExpired(time.Now()) {
		return nil, s.expire(ctx, code)
	}
	return record, nil
}

// expire удаляет истёкшую ссылку и всегда возвращает ErrURLNotFound,
// если хранилище не вернуло другую ошибку
func (s *urlService) expire(ctx context.Context, code string) error {
	s.logger.Info("Removing expired short URL", zap.String("short_code", code))

	if err := s.remove(ctx, code); err != nil && !errors.Is(err, repository.ErrURLNotFound) {
		return err
	}
	return ErrURLNotFound
}

func (s *urlService) remove(ctx context.Context, code string) error {
	key := cache.URLKey(code)
	defer func() {
		s.local.Delete(key)
		s.global.Delete(key)
	}()

	if err := s.clickRepo.DeleteByShortCode(ctx, code); err != nil {
		return fmt.Errorf("failed to delete clicks: %w", err)
	}
	if err := s.urlRepo.DeleteByShortCode(ctx, code); err != nil {
		if errors.Is(err, repository.ErrURLNotFound) {
			return err
		}
		return fmt.Errorf("failed to delete url: %w", err)
	}
	return nil
}

// writeThrough кладёт в каждый кэш отдельный снимок записи
func (s *urlService) writeThrough(record *models.URLRecord) {
	key := cache.URLKey(record.ShortCode)
	for _, store := range []*cache.Store{s.local, s.global} {
		snapshot := *record
		store.Set(key, &snapshot, 0)
	}
}

// cachedRecord возвращает копию, чтобы изменения не попадали в кэш
func cachedRecord(store *cache.Store, key string) (*models.URLRecord, bool) {
	value, ok := store.Get(key)
	if !ok {
		return nil, false
	}
	record, ok := value.(*models.URLRecord)
	if !ok {
		return nil, false
	}
	snapshot := *record
	return &snapshot, true
}

func validateSlug(slug string) error {
	if !slugPattern.MatchString(slug) {
		return ErrInvalidSlug
	}
	if _, reserved := reservedSlugs[strings.ToLower(slug)]; reserved {
		return ErrInvalidSlug
	}
	return nil
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func valueOrUnknown(value *string) string {
	if value == nil || *value == "" {
		return unknownValue
	}
	return *value
}
