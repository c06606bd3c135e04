// Package metrics регистрирует Prometheus-коллекторы сервиса.
// Все коллекторы регистрируются в default registry и отдаются через /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Исходы редиректа
const (
	OutcomeRedirected  = "redirected"
	OutcomeNotFound    = "not_found"
	OutcomeRateLimited = "rate_limited"
	OutcomeInvalid     = "invalid_url"
)

var (
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	// Статус в латентность не входит, чтобы не раздувать кардинальность
	HTTPLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_inflight",
			Help: "Current number of in-flight HTTP requests.",
		},
	)

	Redirects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "routeforge_redirects_total",
			Help: "Redirect gate outcomes.",
		},
		[]string{"outcome"},
	)

	HitRecordFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "routeforge_hit_record_failures_total",
			Help: "Route hits that could not be persisted.",
		},
	)

	QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "routeforge_task_queue_depth",
			Help: "Tasks waiting in the background queue.",
		},
	)

	Tasks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "routeforge_tasks_total",
			Help: "Background tasks by kind and final status.",
		},
		[]string{"kind", "status"},
	)

	TasksRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "routeforge_tasks_rejected_total",
			Help: "Tasks rejected because the queue was full.",
		},
		[]string{"kind"},
	)

	WebhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "routeforge_webhook_deliveries_total",
			Help: "Webhook deliveries by event and result.",
		},
		[]string{"event", "result"},
	)

	WebhookAttempts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "routeforge_webhook_attempts_total",
			Help: "Individual webhook POST attempts, including retries.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequests, HTTPLatency, HTTPInflight,
		Redirects, HitRecordFailures,
		QueueDepth, Tasks, TasksRejected,
		WebhookDeliveries, WebhookAttempts,
	)
}
