// Package ratelimit содержит in-memory ограничители запросов:
// token bucket на клиента и скользящее окно на пару (клиент, префикс пути).
package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Settings ёмкость bucket и окно, за которое он полностью пополняется
type Settings struct {
	Capacity int
	Window   time.Duration
}

// SettingsFunc источник настроек; вызывается на каждый запрос
type SettingsFunc func() Settings

// TokenBucket непрерывно пополняемый bucket: Capacity/Window токенов в секунду,
// не больше Capacity. Безопасен для конкурентного использования.
type TokenBucket struct {
	mu       sync.Mutex // capacity и window
	capacity int
	window   time.Duration
	limiter  *rate.Limiter

	lastSeen time.Time // под BucketStore.mu
}

// NewTokenBucket создаёт полный bucket
func NewTokenBucket(capacity int, window time.Duration) *TokenBucket {
	if capacity <= 0 {
		capacity = 1
	}
	return &TokenBucket{
		capacity: capacity,
		window:   window,
		limiter:  rate.NewLimiter(refillRate(capacity, window), capacity),
	}
}

func refillRate(capacity int, window time.Duration) rate.Limit {
	if window <= 0 {
		return rate.Inf
	}
	return rate.Limit(float64(capacity) / window.Seconds())
}

// TryConsume пополняет bucket пропорционально прошедшему времени и
// списывает amount токенов, если их хватает
func (b *TokenBucket) TryConsume(now time.Time, amount int) bool {
	return b.limiter.AllowN(now, amount)
}

// Tokens текущее количество токенов на момент now
func (b *TokenBucket) Tokens(now time.Time) float64 {
	return b.limiter.TokensAt(now)
}

// RetryAfter время до появления одного токена
func (b *TokenBucket) RetryAfter() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.window <= 0 {
		return 0
	}
	secs := math.Ceil(b.window.Seconds() / float64(b.capacity))
	return time.Duration(secs) * time.Second
}

func (b *TokenBucket) reconfigure(now time.Time, s Settings) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if s.Capacity == b.capacity && s.Window == b.window {
		return
	}
	b.capacity = s.Capacity
	b.window = s.Window
	b.limiter.SetBurstAt(now, s.Capacity)
	b.limiter.SetLimitAt(now, refillRate(s.Capacity, s.Window))
}

// BucketStore набор token bucket по ключу (обычно IP клиента).
// Bucket создаётся лениво; настройки перечитываются при каждом обращении.
type BucketStore struct {
	settings SettingsFunc
	now      func() time.Time

	mu      sync.Mutex
	buckets map[string]*TokenBucket
}

// NewBucketStore создаёт хранилище. now == nil означает time.Now.
func NewBucketStore(settings SettingsFunc, now func() time.Time) *BucketStore {
	if now == nil {
		now = time.Now
	}
	return &BucketStore{
		settings: settings,
		now:      now,
		buckets:  make(map[string]*TokenBucket),
	}
}

// Bucket возвращает или создаёт bucket для ключа
func (s *BucketStore) Bucket(key string) *TokenBucket {
	now, cfg := s.now(), s.current()

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookup(key, now, cfg)
}

// Allow списывает один токен из bucket ключа. При отказе возвращает
// время до появления следующего токена.
func (s *BucketStore) Allow(key string) (bool, time.Duration) {
	now, cfg := s.now(), s.current()

	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.lookup(key, now, cfg)
	if b.TryConsume(now, 1) {
		return true, 0
	}
	return false, b.RetryAfter()
}

func (s *BucketStore) current() Settings {
	cfg := s.settings()
	if cfg.Capacity <= 0 {
		cfg.Capacity = 1
	}
	return cfg
}

// lookup вызывается под s.mu
func (s *BucketStore) lookup(key string, now time.Time, cfg Settings) *TokenBucket {
	b, ok := s.buckets[key]
	if !ok {
		b = NewTokenBucket(cfg.Capacity, cfg.Window)
		s.buckets[key] = b
	} else {
		b.reconfigure(now, cfg)
	}
	b.lastSeen = now
	return b
}

// Len количество bucket в памяти
func (s *BucketStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets)
}

// Evict удаляет bucket, к которым не обращались дольше idle
func (s *BucketStore) Evict(idle time.Duration) int {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, b := range s.buckets {
		if now.Sub(b.lastSeen) > idle {
			delete(s.buckets, key)
			removed++
		}
	}
	return removed
}

// RunEviction периодически вызывает Evict до отмены ctx.
// idle <= 0 отключает очистку: bucket живут всё время работы процесса.
func (s *BucketStore) RunEviction(ctx context.Context, idle time.Duration) {
	if idle <= 0 {
		return
	}
	ticker := time.NewTicker(idle)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Evict(idle)
		}
	}
}
