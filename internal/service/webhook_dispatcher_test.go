package service_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/SergeiKhy/routeforge/internal/models"
	"github.com/SergeiKhy/routeforge/internal/service"
	"github.com/SergeiKhy/routeforge/internal/service/mocks"
	"github.com/SergeiKhy/routeforge/internal/signature"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingBackoff записывает паузы расписания диспетчера и ждёт
// вместо них wait
type recordingBackoff struct {
	wait time.Duration

	mu     sync.Mutex
	delays []time.Duration
}

func (r *recordingBackoff) wrap(next retry.Backoff) retry.Backoff {
	return retry.BackoffFunc(func() (time.Duration, bool) {
		d, stop := next.Next()
		if stop {
			return 0, true
		}
		r.mu.Lock()
		r.delays = append(r.delays, d)
		r.mu.Unlock()
		return r.wait, false
	})
}

func (r *recordingBackoff) Delays() []time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Duration(nil), r.delays...)
}

type captured struct {
	Event string
	Sign  string
	CT    string
	Body  []byte
}

func newHookServer(t *testing.T, status int) (*httptest.Server, *atomic.Int32, chan captured) {
	t.Helper()
	var calls atomic.Int32
	reqs := make(chan captured, 16)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		body, _ := io.ReadAll(r.Body)
		reqs <- captured{
			Event: r.Header.Get(service.HeaderWebhookEvent),
			Sign:  r.Header.Get(service.HeaderWebhookSignature),
			CT:    r.Header.Get("Content-Type"),
			Body:  body,
		}
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls, reqs
}

func TestWebhookDispatcher_DeliverSignsPayload(t *testing.T) {
	repo := mocks.NewMockWebhookRepository()
	srv, calls, reqs := newHookServer(t, http.StatusNoContent)
	d := service.NewWebhookDispatcher(repo, service.DispatcherConfig{MaxRetries: 3, Backoff: time.Millisecond}, zap.NewNop())

	job := models.WebhookJob{
		ID:      1,
		URL:     srv.URL,
		Secret:  "s3cret",
		Event:   models.EventRouteHit,
		Payload: map[string]any{"slug": "demo", "event": models.EventRouteHit},
	}
	require.NoError(t, d.Deliver(context.Background(), job))

	assert.Equal(t, int32(1), calls.Load())
	got := <-reqs
	assert.Equal(t, models.EventRouteHit, got.Event)
	assert.Equal(t, "application/json", got.CT)
	assert.True(t, signature.Verify("s3cret", got.Body, got.Sign))
	// json.Marshal сортирует ключи map
	assert.Equal(t, `{"event":"route.hit","slug":"demo"}`, string(got.Body))
	assert.Equal(t, 0, repo.FailedCount(1))
}

func TestWebhookDispatcher_RetriesThenMarksFailed(t *testing.T) {
	repo := mocks.NewMockWebhookRepository()
	hook := &models.Webhook{UserID: 1, URL: "placeholder", Event: models.EventRouteHit, Active: true}
	require.NoError(t, repo.Create(context.Background(), hook))

	srv, calls, _ := newHookServer(t, http.StatusInternalServerError)
	rec := &recordingBackoff{wait: time.Millisecond}
	const maxRetries = 4
	d := service.NewWebhookDispatcher(repo, service.DispatcherConfig{
		MaxRetries:  maxRetries,
		Backoff:     10 * time.Millisecond,
		WrapBackoff: rec.wrap,
	}, zap.NewNop())

	err := d.Deliver(context.Background(), models.WebhookJob{
		ID: hook.ID, URL: srv.URL, Secret: "x", Event: models.EventRouteHit,
		Payload: map[string]any{"event": models.EventRouteHit},
	})

	require.Error(t, err)
	assert.Equal(t, int32(maxRetries), calls.Load())

	delays := rec.Delays()
	require.Len(t, delays, maxRetries-1)
	for i := 1; i < len(delays); i++ {
		assert.Greater(t, delays[i], delays[i-1], "паузы между попытками должны расти")
	}

	assert.Equal(t, 1, repo.FailedCount(hook.ID))
	stored, err := repo.GetByID(context.Background(), hook.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.LastFailedAt)
}

// Настройки по умолчанию: 3 попытки, паузы 1s и 2s
func TestWebhookDispatcher_DefaultSchedule(t *testing.T) {
	repo := mocks.NewMockWebhookRepository()
	srv, calls, _ := newHookServer(t, http.StatusServiceUnavailable)
	rec := &recordingBackoff{wait: time.Millisecond}
	d := service.NewWebhookDispatcher(repo, service.DispatcherConfig{WrapBackoff: rec.wrap}, zap.NewNop())

	err := d.Deliver(context.Background(), models.WebhookJob{
		URL: srv.URL, Secret: "x", Event: models.EventReleasePublished,
		Payload: map[string]any{"event": models.EventReleasePublished},
	})

	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, rec.Delays())
}

func TestWebhookDispatcher_RecoversAfterFailure(t *testing.T) {
	repo := mocks.NewMockWebhookRepository()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	d := service.NewWebhookDispatcher(repo, service.DispatcherConfig{MaxRetries: 3, Backoff: time.Millisecond}, zap.NewNop())
	err := d.Deliver(context.Background(), models.WebhookJob{ID: 5, URL: srv.URL, Event: models.EventWebhookPing})

	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 0, repo.FailedCount(5))
}

func TestWebhookDispatcher_MarkFailedErrorIsSwallowed(t *testing.T) {
	repo := mocks.NewMockWebhookRepository()
	repo.MarkFailedErr = mocks.ErrUnavailable
	srv, _, _ := newHookServer(t, http.StatusInternalServerError)

	d := service.NewWebhookDispatcher(repo, service.DispatcherConfig{MaxRetries: 2, Backoff: time.Millisecond}, zap.NewNop())

	assert.NotPanics(t, func() {
		d.Dispatch(models.WebhookJob{ID: 9, URL: srv.URL, Event: models.EventRouteHit})
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, d.Wait(ctx))
	assert.Equal(t, 1, repo.FailedCount(9))
}

func TestWebhookDispatcher_EnqueueMatchesActiveHooks(t *testing.T) {
	repo := mocks.NewMockWebhookRepository()
	srv, calls, reqs := newHookServer(t, http.StatusOK)
	ctx := context.Background()

	for _, h := range []models.Webhook{
		{UserID: 1, URL: srv.URL, Secret: "a", Event: models.EventRouteHit, Active: true},
		{UserID: 1, URL: srv.URL, Secret: "b", Event: models.EventRouteHit, Active: true},
		{UserID: 1, URL: srv.URL, Secret: "c", Event: models.EventRouteHit, Active: false},
		{UserID: 1, URL: srv.URL, Secret: "d", Event: models.EventReleasePublished, Active: true},
		{UserID: 2, URL: srv.URL, Secret: "e", Event: models.EventRouteHit, Active: true},
	} {
		hook := h
		require.NoError(t, repo.Create(ctx, &hook))
	}

	d := service.NewWebhookDispatcher(repo, service.DispatcherConfig{MaxRetries: 1}, zap.NewNop())
	count, err := d.Enqueue(ctx, 1, models.EventRouteHit, map[string]any{"slug": "demo"})
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	require.NoError(t, d.Wait(waitCtx))
	assert.Equal(t, int32(2), calls.Load())

	for i := 0; i < 2; i++ {
		got := <-reqs
		var body map[string]any
		require.NoError(t, json.Unmarshal(got.Body, &body))
		assert.Equal(t, "demo", body["slug"])
	}
}

func TestWebhookDispatcher_EnqueueListError(t *testing.T) {
	repo := mocks.NewMockWebhookRepository()
	repo.ListErr = mocks.ErrUnavailable
	d := service.NewWebhookDispatcher(repo, service.DispatcherConfig{}, zap.NewNop())

	count, err := d.Enqueue(context.Background(), 1, models.EventRouteHit, nil)

	assert.ErrorIs(t, err, mocks.ErrUnavailable)
	assert.Zero(t, count)
}

func TestWebhookDispatcher_ConcurrencyIsCapped(t *testing.T) {
	repo := mocks.NewMockWebhookRepository()

	var inflight, peak atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := inflight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		<-release
		inflight.Add(-1)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	d := service.NewWebhookDispatcher(repo, service.DispatcherConfig{MaxRetries: 1, MaxConcurrency: 2}, zap.NewNop())
	for i := 0; i < 6; i++ {
		d.Dispatch(models.WebhookJob{ID: int64(i + 1), URL: srv.URL, Event: models.EventRouteHit})
	}

	require.Eventually(t, func() bool { return inflight.Load() == 2 }, 2*time.Second, 5*time.Millisecond)
	close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, d.Wait(ctx))
	assert.Equal(t, int32(2), peak.Load())
}
