package ratelimit

import (
	"context"
	"sync"
	"time"
)

// SlidingWindow счётчик событий за последние window
type SlidingWindow struct {
	window time.Duration
	events []time.Time
}

func NewSlidingWindow(window time.Duration) *SlidingWindow {
	if window <= 0 {
		window = time.Minute
	}
	return &SlidingWindow{window: window}
}

// AddAndPrune добавляет событие, отбрасывает вышедшие из окна и
// возвращает число событий в окне
func (w *SlidingWindow) AddAndPrune(now time.Time) int {
	w.events = append(w.events, now)
	cutoff := now.Add(-w.window)
	i := 0
	for i < len(w.events) && w.events[i].Before(cutoff) {
		i++
	}
	w.events = w.events[i:]
	return len(w.events)
}

func (w *SlidingWindow) last() time.Time {
	if len(w.events) == 0 {
		return time.Time{}
	}
	return w.events[len(w.events)-1]
}

type windowKey struct {
	ip     string
	prefix string
}

// WindowLimiter жёсткий потолок запросов на пару (IP, префикс пути)
type WindowLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	windows map[windowKey]*SlidingWindow
}

func NewWindowLimiter(limit int, window time.Duration, now func() time.Time) *WindowLimiter {
	if now == nil {
		now = time.Now
	}
	if limit <= 0 {
		limit = 1
	}
	return &WindowLimiter{
		limit:   limit,
		window:  window,
		now:     now,
		windows: make(map[windowKey]*SlidingWindow),
	}
}

// Allow учитывает запрос и сообщает, укладывается ли он в лимит.
// Отклонённые запросы тоже попадают в окно.
func (l *WindowLimiter) Allow(ip, prefix string) bool {
	key := windowKey{ip: ip, prefix: prefix}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.windows[key]
	if !ok {
		w = NewSlidingWindow(l.window)
		l.windows[key] = w
	}
	return w.AddAndPrune(now) <= l.limit
}

func (l *WindowLimiter) Window() time.Duration { return l.window }

// Evict удаляет окна без событий за последние idle
func (l *WindowLimiter) Evict(idle time.Duration) int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, w := range l.windows {
		if now.Sub(w.last()) > idle {
			delete(l.windows, key)
			removed++
		}
	}
	return removed
}

// RunEviction аналогичен BucketStore.RunEviction
func (l *WindowLimiter) RunEviction(ctx context.Context, idle time.Duration) {
	if idle <= 0 {
		return
	}
	if idle < l.window {
		idle = l.window
	}
	ticker := time.NewTicker(idle)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Evict(idle)
		}
	}
}
