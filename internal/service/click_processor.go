package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/SergeiKhy/shorty/internal/models"
	"github.com/SergeiKhy/shorty/internal/repository"
	"go.uber.org/zap"
)

// Константы worker pool
const (
	defaultWorkerCount   = 3    // Количество воркеров
	defaultChannelBuffer = 1000 // Размер буфера канала
	defaultMaxRetries    = 3    // Максимальное количество попыток записи
	defaultRetryBackoff  = 100 * time.Millisecond
	clickWriteTimeout    = 5 * time.Second
)

var ErrProcessorStopped = errors.New("click processor stopped")

// ClickProcessor асинхронная запись кликов через worker pool
type ClickProcessor interface {
	ClickRecorder
	Start()
	Stop()
	Stats() ChannelStats
}

// ClickProcessorConfig нулевые значения заменяются значениями по умолчанию
type ClickProcessorConfig struct {
	Workers      int
	BufferSize   int
	MaxRetries   int
	RetryBackoff time.Duration
}

func (c ClickProcessorConfig) withDefaults() ClickProcessorConfig {
	if c.Workers <= 0 {
		c.Workers = defaultWorkerCount
	}
	if c.BufferSize <= 0 {
		c.BufferSize = defaultChannelBuffer
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = defaultRetryBackoff
	}
	return c
}

// ChannelStats статистика канала worker pool
type ChannelStats struct {
	BufferSize  int   `json:"buffer_size"`  // Общая ёмкость канала
	BufferUsed  int   `json:"buffer_used"`  // Текущее использование
	WorkerCount int   `json:"worker_count"` // Количество воркеров
	Processed   int64 `json:"processed"`
	Dropped     int64 `json:"dropped"`
	Failed      int64 `json:"failed"`
}

type clickProcessor struct {
	clickRepo    repository.ClickRepository
	logger       *zap.Logger
	cfg          ClickProcessorConfig
	clickChannel chan *models.ClickEvent
	quit         chan struct{}
	wg           sync.WaitGroup
	startOnce    sync.Once
	stopOnce     sync.Once
	stopped      atomic.Bool

	processed atomic.Int64
	dropped   atomic.Int64
	failed    atomic.Int64
}

// NewClickProcessor создаёт новый экземпляр процессора кликов
func NewClickProcessor(clickRepo repository.ClickRepository, logger *zap.Logger, cfg ClickProcessorConfig) ClickProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()

	return &clickProcessor{
		clickRepo:    clickRepo,
		logger:       logger,
		cfg:          cfg,
		clickChannel: make(chan *models.ClickEvent, cfg.BufferSize),
		quit:         make(chan struct{}),
	}
}

// Start запускает worker pool
func (p *clickProcessor) Start() {
	p.startOnce.Do(func() {
		p.logger.Info("Запуск воркеров процессора кликов", zap.Int("count", p.cfg.Workers))

		for i := 0; i < p.cfg.Workers; i++ {
			p.wg.Add(1)
			go p.worker(i)
		}
	})
}

// Stop перестаёт принимать события и дожидается записи уже принятых
func (p *clickProcessor) Stop() {
	p.stopOnce.Do(func() {
		p.logger.Info("Остановка процессора кликов...")
		p.stopped.Store(true)
		close(p.quit)
		p.wg.Wait()
		p.logger.Info("Процессор кликов остановлен",
			zap.Int64("processed", p.processed.Load()),
			zap.Int64("failed", p.failed.Load()),
			zap.Int64("dropped", p.dropped.Load()),
		)
	})
}

func (p *clickProcessor) worker(id int) {
	defer p.wg.Done()

	p.logger.Debug("Воркер кликов запущен", zap.Int("id", id))

	for {
		select {
		case <-p.quit:
			p.drain()
			p.logger.Debug("Воркер кликов остановлен", zap.Int("id", id))
			return

		case event := <-p.clickChannel:
			p.processClick(event)
		}
	}
}

func (p *clickProcessor) drain() {
	for {
		select {
		case event := <-p.clickChannel:
			p.processClick(event)
		default:
			return
		}
	}
}

// processClick записывает одно событие с retry и линейным backoff
func (p *clickProcessor) processClick(event *models.ClickEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), clickWriteTimeout)
	defer cancel()

	var err error
	for attempt := 1; attempt <= p.cfg.MaxRetries; attempt++ {
		if err = p.clickRepo.RecordClick(ctx, event); err == nil {
			p.processed.Add(1)
			return
		}
		if attempt < p.cfg.MaxRetries {
			p.logger.Debug("Повторная попытка записи клика",
				zap.String("short_code", event.ShortCode),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			time.Sleep(time.Duration(attempt) * p.cfg.RetryBackoff)
		}
	}

	p.failed.Add(1)
	p.logger.Error("Не удалось записать клик после всех попыток",
		zap.String("short_code", event.ShortCode),
		zap.Error(err),
	)
}

// RecordClick ставит событие в очередь (неблокирующая операция)
func (p *clickProcessor) RecordClick(ctx context.Context, event *models.ClickEvent) error {
	if p.stopped.Load() {
		return ErrProcessorStopped
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case p.clickChannel <- event:
		return nil
	default:
		// Канал заполнен: статистика теряется, запрос не блокируется
		p.dropped.Add(1)
		p.logger.Warn("Буфер канала кликов заполнен, событие потеряно",
			zap.String("short_code", event.ShortCode),
		)
		return nil
	}
}

func (p *clickProcessor) Stats() ChannelStats {
	return ChannelStats{
		BufferSize:  cap(p.clickChannel),
		BufferUsed:  len(p.clickChannel),
		WorkerCount: p.cfg.Workers,
		Processed:   p.processed.Load(),
		Dropped:     p.dropped.Load(),
		Failed:      p.failed.Load(),
	}
}
