// Package worker однопоточная очередь фоновых задач с ограниченным буфером.
package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/SergeiKhy/routeforge/internal/metrics"
	"github.com/SergeiKhy/routeforge/internal/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultMaxQueue = 256

// TaskFunc функция фоновой задачи. Ошибка или panic попадают в TaskRecord.Error.
type TaskFunc func(ctx context.Context, arg any) error

// Config параметры очереди
type Config struct {
	MaxQueue int           // Ёмкость буфера; при заполнении Submit возвращает false
	TaskTTL  time.Duration // Сколько хранить завершённые записи; 0 хранит до рестарта
}

type task struct {
	id   string
	kind string
	fn   TaskFunc
	arg  any
}

// Queue FIFO-очередь с одним потребителем. Задача никогда не блокирует
// отправителя: при полном буфере она отклоняется.
type Queue struct {
	cfg    Config
	logger *zap.Logger
	now    func() time.Time

	tasks chan task

	mu      sync.RWMutex
	records map[string]*models.TaskRecord

	stopped atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewQueue создаёт очередь. Потребитель запускается через Start.
func NewQueue(cfg Config, logger *zap.Logger) *Queue {
	if cfg.MaxQueue <= 0 {
		cfg.MaxQueue = defaultMaxQueue
	}
	return &Queue{
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
		tasks:   make(chan task, cfg.MaxQueue),
		records: make(map[string]*models.TaskRecord),
	}
}

// Start запускает потребителя и, если задан TaskTTL, очистку старых записей
func (q *Queue) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	q.cancel = cancel

	q.logger.Info("Запуск очереди задач",
		zap.Int("max_queue", q.cfg.MaxQueue),
		zap.Duration("task_ttl", q.cfg.TaskTTL),
	)

	q.wg.Add(1)
	go q.consume(ctx)

	if q.cfg.TaskTTL > 0 {
		q.wg.Add(1)
		go q.sweepLoop(ctx)
	}
}

// Stop дожидается завершения текущей задачи. Оставшиеся в буфере задачи
// не выполняются, новые отклоняются.
func (q *Queue) Stop() {
	if !q.stopped.CompareAndSwap(false, true) {
		return
	}
	q.logger.Info("Остановка очереди задач...", zap.Int("pending", len(q.tasks)))
	if q.cancel != nil {
		q.cancel()
	}
	q.wg.Wait()
	q.logger.Info("Очередь задач остановлена")
}

// Submit ставит задачу в очередь. Пустой id заменяется сгенерированным.
// false означает переполнение (или остановленную очередь): вызывающий
// должен пропустить необязательную работу, а не возвращать ошибку клиенту.
func (q *Queue) Submit(id, kind string, fn TaskFunc, arg any) bool {
	if q.stopped.Load() {
		return false
	}
	if id == "" {
		id = uuid.NewString()
	}

	q.mu.Lock()
	if rec, exists := q.records[id]; exists && !rec.Finished() {
		q.mu.Unlock()
		return false
	}
	q.records[id] = &models.TaskRecord{
		ID:        id,
		Kind:      kind,
		CreatedAt: q.now(),
		Status:    models.TaskQueued,
	}
	q.mu.Unlock()

	select {
	case q.tasks <- task{id: id, kind: kind, fn: fn, arg: arg}:
		metrics.QueueDepth.Set(float64(len(q.tasks)))
		return true
	default:
		q.mu.Lock()
		delete(q.records, id)
		q.mu.Unlock()

		metrics.TasksRejected.WithLabelValues(kind).Inc()
		q.logger.Warn("Очередь задач заполнена, задача отклонена",
			zap.String("task_id", id),
			zap.String("kind", kind),
		)
		return false
	}
}

// Status копия записи задачи
func (q *Queue) Status(id string) (models.TaskRecord, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	rec, ok := q.records[id]
	if !ok {
		return models.TaskRecord{}, false
	}
	return *rec, true
}

// Stats состояние буфера для мониторинга
func (q *Queue) Stats() Stats {
	q.mu.RLock()
	tracked := len(q.records)
	q.mu.RUnlock()

	return Stats{
		Depth:    len(q.tasks),
		Capacity: cap(q.tasks),
		Tracked:  tracked,
	}
}

// Stats статистика очереди
type Stats struct {
	Depth    int `json:"depth"`    // Задачи, ожидающие выполнения
	Capacity int `json:"capacity"` // Ёмкость буфера
	Tracked  int `json:"tracked"`  // Записи о задачах в памяти
}

func (q *Queue) consume(ctx context.Context) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case t := <-q.tasks:
			metrics.QueueDepth.Set(float64(len(q.tasks)))
			q.run(t)
		}
	}
}

// run выполняет задачу. Контекст задачи не отменяется при Stop.
func (q *Queue) run(t task) {
	started := q.now()
	q.update(t.id, func(rec *models.TaskRecord) {
		rec.Status = models.TaskRunning
		rec.StartedAt = &started
	})

	err := q.call(t)

	finished := q.now()
	status := models.TaskDone
	if err != nil {
		status = models.TaskError
		q.logger.Warn("Фоновая задача завершилась с ошибкой",
			zap.String("task_id", t.id),
			zap.String("kind", t.kind),
			zap.Error(err),
		)
	}
	q.update(t.id, func(rec *models.TaskRecord) {
		rec.Status = status
		rec.FinishedAt = &finished
		if err != nil {
			rec.Error = err.Error()
		}
	})
	metrics.Tasks.WithLabelValues(t.kind, string(status)).Inc()
}

func (q *Queue) call(t task) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	if t.fn == nil {
		return fmt.Errorf("task %s has no function", t.kind)
	}
	return t.fn(context.Background(), t.arg)
}

func (q *Queue) update(id string, fn func(rec *models.TaskRecord)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if rec, ok := q.records[id]; ok {
		fn(rec)
	}
}

// Sweep удаляет завершённые записи старше ttl
func (q *Queue) Sweep(ttl time.Duration) int {
	cutoff := q.now().Add(-ttl)

	q.mu.Lock()
	defer q.mu.Unlock()

	removed := 0
	for id, rec := range q.records {
		if rec.Finished() && rec.FinishedAt != nil && rec.FinishedAt.Before(cutoff) {
			delete(q.records, id)
			removed++
		}
	}
	return removed
}

func (q *Queue) sweepLoop(ctx context.Context) {
	defer q.wg.Done()

	ticker := time.NewTicker(q.cfg.TaskTTL)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := q.Sweep(q.cfg.TaskTTL); n > 0 {
				q.logger.Debug("Удалены старые записи задач", zap.Int("count", n))
			}
		}
	}
}
