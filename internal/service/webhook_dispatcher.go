package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/SergeiKhy/routeforge/internal/metrics"
	"github.com/SergeiKhy/routeforge/internal/models"
	"github.com/SergeiKhy/routeforge/internal/repository"
	"github.com/SergeiKhy/routeforge/internal/signature"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Заголовки исходящих webhook
const (
	HeaderWebhookEvent     = "X-RF-Webhook-Event"
	HeaderWebhookSignature = "X-RF-Webhook-Sign"
)

// DispatcherConfig параметры доставки webhook
type DispatcherConfig struct {
	MaxRetries     int           // Всего попыток на одну доставку
	Backoff        time.Duration // Пауза перед второй попыткой, дальше удваивается
	Timeout        time.Duration // Таймаут одного POST
	MaxConcurrency int           // Одновременных доставок

	// WrapBackoff оборачивает расписание пауз на каждую доставку. Тесты
	// записывают через него выданные паузы и сокращают ожидание.
	WrapBackoff func(retry.Backoff) retry.Backoff
}

// WebhookDispatcher рассылает события подписанным webhook. Доставка идёт в
// фоне и никогда не возвращает ошибку инициатору события.
type WebhookDispatcher struct {
	repo   repository.WebhookRepository
	client *http.Client
	cfg    DispatcherConfig
	sem    *semaphore.Weighted
	logger *zap.Logger
	now    func() time.Time

	wg sync.WaitGroup
}

func NewWebhookDispatcher(repo repository.WebhookRepository, cfg DispatcherConfig, logger *zap.Logger) *WebhookDispatcher {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 8
	}
	return &WebhookDispatcher{
		repo:   repo,
		client: &http.Client{Timeout: cfg.Timeout},
		cfg:    cfg,
		sem:    semaphore.NewWeighted(int64(cfg.MaxConcurrency)),
		logger: logger,
		now:    time.Now,
	}
}

// Enqueue находит активные webhook пользователя на событие и запускает
// доставку каждому. Возвращает число запущенных доставок.
func (d *WebhookDispatcher) Enqueue(ctx context.Context, userID int64, event string, payload map[string]any) (int, error) {
	hooks, err := d.repo.ListActive(ctx, userID, event)
	if err != nil {
		return 0, fmt.Errorf("failed to list webhooks: %w", err)
	}

	for _, hook := range hooks {
		d.Dispatch(models.WebhookJob{
			ID:      hook.ID,
			URL:     hook.URL,
			Secret:  hook.Secret,
			Event:   event,
			Payload: payload,
		})
	}

	return len(hooks), nil
}

// Dispatch запускает доставку одного задания в отдельной горутине
func (d *WebhookDispatcher) Dispatch(job models.WebhookJob) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()

		ctx := context.Background()
		if err := d.sem.Acquire(ctx, 1); err != nil {
			return
		}
		defer d.sem.Release(1)

		_ = d.Deliver(ctx, job)
	}()
}

// Deliver синхронно доставляет задание с повторами. После исчерпания
// попыток webhook помечается как неудачный.
func (d *WebhookDispatcher) Deliver(ctx context.Context, job models.WebhookJob) error {
	body, err := json.Marshal(job.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}
	sig := signature.Sign(job.Secret, body)

	attempt := 0
	err = retry.Do(ctx, d.backoff(), func(ctx context.Context) error {
		attempt++
		metrics.WebhookAttempts.Inc()
		if err := d.post(ctx, job, body, sig); err != nil {
			d.logger.Debug("Попытка доставки webhook не удалась",
				zap.Int64("webhook_id", job.ID),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			return retry.RetryableError(err)
		}
		return nil
	})

	if err == nil {
		metrics.WebhookDeliveries.WithLabelValues(job.Event, "delivered").Inc()
		return nil
	}

	metrics.WebhookDeliveries.WithLabelValues(job.Event, "failed").Inc()
	d.logger.Warn("Не удалось доставить webhook после всех попыток",
		zap.Int64("webhook_id", job.ID),
		zap.String("event", job.Event),
		zap.Int("attempts", attempt),
		zap.Error(err),
	)

	if job.ID != 0 {
		if markErr := d.repo.MarkFailed(ctx, job.ID, d.now()); markErr != nil {
			d.logger.Warn("Не удалось сохранить время неудачной доставки",
				zap.Int64("webhook_id", job.ID),
				zap.Error(markErr),
			)
		}
	}

	return err
}

func (d *WebhookDispatcher) backoff() retry.Backoff {
	// MaxRetries считает все попытки, WithMaxRetries только повторы
	b := retry.WithMaxRetries(uint64(d.cfg.MaxRetries-1), retry.NewExponential(d.cfg.Backoff))
	if d.cfg.WrapBackoff != nil {
		b = d.cfg.WrapBackoff(b)
	}
	return b
}

func (d *WebhookDispatcher) post(ctx context.Context, job models.WebhookJob, body []byte, sig string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, job.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderWebhookEvent, job.Event)
	req.Header.Set(HeaderWebhookSignature, sig)

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook responded with status %d", resp.StatusCode)
	}
	return nil
}

// Wait дожидается завершения запущенных доставок или отмены ctx
func (d *WebhookDispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
