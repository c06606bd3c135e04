package models

import (
	"time"
)

// События, на которые можно подписать webhook
const (
	EventRouteHit         = "route.hit"
	EventReleasePublished = "release.published"
	EventWebhookPing      = "webhook.ping"
)

type Webhook struct {
	ID           int64      `json:"id"`
	UserID       int64      `json:"user_id"`
	URL          string     `json:"url"`
	Secret       string     `json:"-"`
	Event        string     `json:"event"`
	Active       bool       `json:"active"`
	LastFailedAt *time.Time `json:"last_failed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// WebhookJob одна доставка события; живёт только в памяти на время попыток
type WebhookJob struct {
	ID      int64
	URL     string
	Secret  string
	Event   string
	Payload map[string]any
}

type CreateWebhookInput struct {
	UserID int64
	URL    string
	Event  string
}

// SubscribableEvents события, доступные для подписки
var SubscribableEvents = []string{EventRouteHit, EventReleasePublished}
