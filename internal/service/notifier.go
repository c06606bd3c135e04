package service

import (
	"context"
	"fmt"
	"time"

	"github.com/SergeiKhy/routeforge/internal/models"
	"github.com/SergeiKhy/routeforge/internal/worker"
	"go.uber.org/zap"
)

// Типы фоновых задач
const (
	TaskRouteHit         = "webhook.route_hit"
	TaskReleasePublished = "webhook.release_published"
	TaskWebhookPing      = "webhook.ping"
	TaskArtifactHash     = "artifact.hash"
)

// TaskSubmitter очередь фоновых задач
type TaskSubmitter interface {
	Submit(id, kind string, fn worker.TaskFunc, arg any) bool
}

// WebhookFanout доставка событий подписчикам
type WebhookFanout interface {
	Enqueue(ctx context.Context, userID int64, event string, payload map[string]any) (int, error)
	Dispatch(job models.WebhookJob)
}

// EventPublisher публикует событие пользователя для webhook
type EventPublisher interface {
	Publish(userID int64, event string, payload map[string]any) bool
	Ping(hook models.Webhook) bool
}

type eventTask struct {
	UserID  int64
	Event   string
	Payload map[string]any
}

// Notifier рассылает события через очередь задач: подписчики ищутся
// потребителем очереди, а не обработчиком запроса
type Notifier struct {
	queue  TaskSubmitter
	fanout WebhookFanout
	logger *zap.Logger
}

func NewNotifier(queue TaskSubmitter, fanout WebhookFanout, logger *zap.Logger) *Notifier {
	return &Notifier{queue: queue, fanout: fanout, logger: logger}
}

func taskKind(event string) string {
	switch event {
	case models.EventRouteHit:
		return TaskRouteHit
	case models.EventReleasePublished:
		return TaskReleasePublished
	case models.EventWebhookPing:
		return TaskWebhookPing
	}
	return "webhook.event"
}

// Publish ставит рассылку в очередь. false: очередь заполнена, событие пропущено.
func (n *Notifier) Publish(userID int64, event string, payload map[string]any) bool {
	ok := n.queue.Submit("", taskKind(event), n.fanOut, eventTask{
		UserID:  userID,
		Event:   event,
		Payload: payload,
	})
	if !ok {
		n.logger.Warn("Событие webhook пропущено: очередь заполнена",
			zap.Int64("user_id", userID),
			zap.String("event", event),
		)
	}
	return ok
}

func (n *Notifier) fanOut(ctx context.Context, arg any) error {
	t, ok := arg.(eventTask)
	if !ok {
		return fmt.Errorf("unexpected task argument %T", arg)
	}

	count, err := n.fanout.Enqueue(ctx, t.UserID, t.Event, t.Payload)
	if err != nil {
		return err
	}
	n.logger.Debug("Событие разослано",
		zap.String("event", t.Event),
		zap.Int64("user_id", t.UserID),
		zap.Int("webhooks", count),
	)
	return nil
}

// Ping отправляет тестовое событие одному webhook
func (n *Notifier) Ping(hook models.Webhook) bool {
	job := models.WebhookJob{
		ID:     hook.ID,
		URL:    hook.URL,
		Secret: hook.Secret,
		Event:  models.EventWebhookPing,
		Payload: map[string]any{
			"event":      models.EventWebhookPing,
			"webhook_id": hook.ID,
			"ts":         time.Now().UTC().Format(time.RFC3339),
		},
	}
	return n.queue.Submit("", TaskWebhookPing, func(context.Context, any) error {
		n.fanout.Dispatch(job)
		return nil
	}, nil)
}
