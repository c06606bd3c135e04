package service_test

import (
	"context"
	"sync"

	"github.com/SergeiKhy/routeforge/internal/config"
	"github.com/SergeiKhy/routeforge/internal/models"
	"github.com/SergeiKhy/routeforge/internal/worker"
)

type publishedEvent struct {
	UserID  int64
	Event   string
	Payload map[string]any
}

// fakePublisher запоминает опубликованные события
type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	pings  []models.Webhook
}

func (p *fakePublisher) Publish(userID int64, event string, payload map[string]any) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{UserID: userID, Event: event, Payload: payload})
	return true
}

func (p *fakePublisher) Ping(hook models.Webhook) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pings = append(p.pings, hook)
	return true
}

func (p *fakePublisher) Events() []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]publishedEvent(nil), p.events...)
}

func (p *fakePublisher) Pings() []models.Webhook {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.Webhook(nil), p.pings...)
}

type submittedTask struct {
	ID   string
	Kind string
	Fn   worker.TaskFunc
	Arg  any
}

// fakeQueue копит задачи; Run выполняет их синхронно
type fakeQueue struct {
	mu     sync.Mutex
	tasks  []submittedTask
	Reject bool
}

func (q *fakeQueue) Submit(id, kind string, fn worker.TaskFunc, arg any) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.Reject {
		return false
	}
	q.tasks = append(q.tasks, submittedTask{ID: id, Kind: kind, Fn: fn, Arg: arg})
	return true
}

func (q *fakeQueue) Tasks() []submittedTask {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]submittedTask(nil), q.tasks...)
}

func (q *fakeQueue) Run(ctx context.Context) []error {
	var errs []error
	for _, t := range q.Tasks() {
		errs = append(errs, t.Fn(ctx, t.Arg))
	}
	return errs
}

func defaultPolicy() config.TargetPolicy {
	return config.TargetPolicy{AllowedSchemes: []string{"https", "http"}}
}
