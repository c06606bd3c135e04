package mocks

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/SergeiKhy/routeforge/internal/models"
	"github.com/SergeiKhy/routeforge/internal/repository"
)

// ErrUnavailable имитирует недоступное хранилище
var ErrUnavailable = errors.New("storage unavailable")

// MockRouteRepository implements repository.RouteRepository for testing
type MockRouteRepository struct {
	mu     sync.RWMutex
	routes  map[string]*models.Route
	nextID  int64
	lookups int

	// GetErr возвращается из GetBySlug, если задан
	GetErr error
}

func NewMockRouteRepository() *MockRouteRepository {
	return &MockRouteRepository{
		routes: make(map[string]*models.Route),
		nextID: 1,
	}
}

func (m *MockRouteRepository) Create(ctx context.Context, route *models.Route) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.routes[route.Slug]; exists {
		return repository.ErrSlugExists
	}

	route.ID = m.nextID
	route.CreatedAt = time.Now()
	m.nextID++
	stored := *route
	m.routes[route.Slug] = &stored
	return nil
}

func (m *MockRouteRepository) GetBySlug(ctx context.Context, slug string) (*models.Route, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lookups++
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	route, exists := m.routes[slug]
	if !exists {
		return nil, repository.ErrRouteNotFound
	}
	cp := *route
	return &cp, nil
}

// Lookups число вызовов GetBySlug
func (m *MockRouteRepository) Lookups() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lookups
}

func (m *MockRouteRepository) ListByUser(ctx context.Context, userID int64) ([]models.Route, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	routes := []models.Route{}
	for _, r := range m.routes {
		if r.UserID == userID {
			routes = append(routes, *r)
		}
	}
	sort.Slice(routes, func(i, j int) bool { return routes[i].ID > routes[j].ID })
	return routes, nil
}

func (m *MockRouteRepository) Delete(ctx context.Context, slug string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.routes[slug]; !exists {
		return repository.ErrRouteNotFound
	}
	delete(m.routes, slug)
	return nil
}

// Put сохраняет маршрут как есть, минуя валидацию сервиса
func (m *MockRouteRepository) Put(route models.Route) *models.Route {
	m.mu.Lock()
	defer m.mu.Unlock()

	if route.ID == 0 {
		route.ID = m.nextID
		m.nextID++
	}
	if route.CreatedAt.IsZero() {
		route.CreatedAt = time.Now()
	}
	m.routes[route.Slug] = &route
	cp := route
	return &cp
}

// MockHitRepository implements repository.HitRepository for testing
type MockHitRepository struct {
	mu     sync.RWMutex
	hits   []models.RouteHit
	nextID int64

	// RecordErr возвращается из Record, если задан
	RecordErr error
}

func NewMockHitRepository() *MockHitRepository {
	return &MockHitRepository{nextID: 1}
}

func (m *MockHitRepository) Record(ctx context.Context, hit *models.RouteHit) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.RecordErr != nil {
		return m.RecordErr
	}
	hit.ID = m.nextID
	hit.CreatedAt = time.Now()
	m.nextID++
	m.hits = append(m.hits, *hit)
	return nil
}

func (m *MockHitRepository) GetStats(ctx context.Context, routeID int64) (*models.HitStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var total int64
	uniqueIPs := make(map[string]bool)
	for _, h := range m.hits {
		if h.RouteID == routeID {
			total++
			uniqueIPs[h.IP] = true
		}
	}

	return &models.HitStats{
		TotalHits:  total,
		UniqueHits: int64(len(uniqueIPs)),
	}, nil
}

func (m *MockHitRepository) GetDailyStats(ctx context.Context, routeID int64, days int) ([]models.DailyHitStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	since := time.Now().AddDate(0, 0, -days)
	counts := make(map[string]int64)
	for _, h := range m.hits {
		if h.RouteID == routeID && !h.CreatedAt.Before(since) {
			counts[h.CreatedAt.UTC().Format("2006-01-02")]++
		}
	}

	stats := []models.DailyHitStats{}
	for date, n := range counts {
		stats = append(stats, models.DailyHitStats{Date: date, Hits: n})
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Date > stats[j].Date })
	return stats, nil
}

func (m *MockHitRepository) CountByRef(ctx context.Context, routeID int64) ([]models.RefCount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counts := make(map[string]int64)
	for _, h := range m.hits {
		if h.RouteID == routeID {
			counts[h.Ref]++
		}
	}

	var out []models.RefCount
	for ref, n := range counts {
		out = append(out, models.RefCount{Ref: ref, Hits: n})
	}
	return out, nil
}

// Hits копия всех записанных переходов
func (m *MockHitRepository) Hits() []models.RouteHit {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.RouteHit(nil), m.hits...)
}

// MockCacheRepository implements repository.CacheRepository for testing
type MockCacheRepository struct {
	mu      sync.RWMutex
	cache   map[string]*models.Route
	missing map[string]bool

	// Err возвращается из всех методов, если задан
	Err error
}

func NewMockCacheRepository() *MockCacheRepository {
	return &MockCacheRepository{
		cache:   make(map[string]*models.Route),
		missing: make(map[string]bool),
	}
}

func (m *MockCacheRepository) Get(ctx context.Context, slug string) (*models.Route, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.Err != nil {
		return nil, m.Err
	}
	if m.missing[slug] {
		return nil, repository.ErrRouteNotFound
	}
	route, exists := m.cache[slug]
	if !exists {
		return nil, repository.ErrCacheMiss
	}
	cp := *route
	return &cp, nil
}

func (m *MockCacheRepository) Set(ctx context.Context, route *models.Route) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	cp := *route
	m.cache[route.Slug] = &cp
	delete(m.missing, route.Slug)
	return nil
}

func (m *MockCacheRepository) SetMissing(ctx context.Context, slug string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	if _, exists := m.cache[slug]; !exists {
		m.missing[slug] = true
	}
	return nil
}

func (m *MockCacheRepository) Delete(ctx context.Context, slug string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return m.Err
	}
	delete(m.cache, slug)
	delete(m.missing, slug)
	return nil
}

// Has true, если slug есть в кэше
func (m *MockCacheRepository) Has(slug string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.cache[slug]
	return ok
}

// Missing true, если slug закэширован как несуществующий
func (m *MockCacheRepository) Missing(slug string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.missing[slug]
}

// MockWebhookRepository implements repository.WebhookRepository for testing
type MockWebhookRepository struct {
	mu     sync.RWMutex
	hooks  map[int64]*models.Webhook
	nextID int64
	failed map[int64]int

	// ListErr и MarkFailedErr возвращаются соответствующими методами, если заданы
	ListErr       error
	MarkFailedErr error
}

func NewMockWebhookRepository() *MockWebhookRepository {
	return &MockWebhookRepository{
		hooks:  make(map[int64]*models.Webhook),
		nextID: 1,
		failed: make(map[int64]int),
	}
}

func (m *MockWebhookRepository) Create(ctx context.Context, hook *models.Webhook) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	hook.ID = m.nextID
	hook.CreatedAt = time.Now()
	m.nextID++
	cp := *hook
	m.hooks[hook.ID] = &cp
	return nil
}

func (m *MockWebhookRepository) GetByID(ctx context.Context, id int64) (*models.Webhook, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	hook, ok := m.hooks[id]
	if !ok {
		return nil, repository.ErrWebhookNotFound
	}
	cp := *hook
	return &cp, nil
}

func (m *MockWebhookRepository) ListByUser(ctx context.Context, userID int64) ([]models.Webhook, error) {
	return m.filter(func(h *models.Webhook) bool { return h.UserID == userID })
}

func (m *MockWebhookRepository) ListActive(ctx context.Context, userID int64, event string) ([]models.Webhook, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	return m.filter(func(h *models.Webhook) bool {
		return h.UserID == userID && h.Event == event && h.Active
	})
}

func (m *MockWebhookRepository) filter(keep func(h *models.Webhook) bool) ([]models.Webhook, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	hooks := []models.Webhook{}
	for _, h := range m.hooks {
		if keep(h) {
			hooks = append(hooks, *h)
		}
	}
	sort.Slice(hooks, func(i, j int) bool { return hooks[i].ID < hooks[j].ID })
	return hooks, nil
}

func (m *MockWebhookRepository) Toggle(ctx context.Context, id, userID int64) (*models.Webhook, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	hook, ok := m.hooks[id]
	if !ok || hook.UserID != userID {
		return nil, repository.ErrWebhookNotFound
	}
	hook.Active = !hook.Active
	cp := *hook
	return &cp, nil
}

func (m *MockWebhookRepository) Delete(ctx context.Context, id, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	hook, ok := m.hooks[id]
	if !ok || hook.UserID != userID {
		return repository.ErrWebhookNotFound
	}
	delete(m.hooks, id)
	return nil
}

func (m *MockWebhookRepository) MarkFailed(ctx context.Context, id int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.failed[id]++
	if m.MarkFailedErr != nil {
		return m.MarkFailedErr
	}
	if hook, ok := m.hooks[id]; ok {
		t := at
		hook.LastFailedAt = &t
	}
	return nil
}

// FailedCount сколько раз вызывался MarkFailed для webhook
func (m *MockWebhookRepository) FailedCount(id int64) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.failed[id]
}

// MockReleaseRepository implements repository.ReleaseRepository for testing
type MockReleaseRepository struct {
	mu       sync.RWMutex
	releases map[int64]*models.Release
	nextID   int64
}

func NewMockReleaseRepository() *MockReleaseRepository {
	return &MockReleaseRepository{
		releases: make(map[int64]*models.Release),
		nextID:   1,
	}
}

func (m *MockReleaseRepository) Create(ctx context.Context, release *models.Release) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	release.ID = m.nextID
	release.CreatedAt = time.Now()
	m.nextID++
	cp := *release
	m.releases[release.ID] = &cp
	return nil
}

func (m *MockReleaseRepository) GetByID(ctx context.Context, id int64) (*models.Release, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	release, ok := m.releases[id]
	if !ok {
		return nil, repository.ErrReleaseNotFound
	}
	cp := *release
	return &cp, nil
}

func (m *MockReleaseRepository) SetArtifactHash(ctx context.Context, id int64, sha256 string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	release, ok := m.releases[id]
	if !ok {
		return repository.ErrReleaseNotFound
	}
	h := sha256
	release.ArtifactSHA256 = &h
	return nil
}
