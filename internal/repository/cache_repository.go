package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/SergeiKhy/routeforge/internal/models"
	"github.com/redis/go-redis/v9"
)

// ErrCacheMiss slug в кэше нет, нужно читать из БД
var ErrCacheMiss = errors.New("cache miss")

const (
	defaultRouteTTL   = time.Hour
	defaultMissingTTL = 30 * time.Second

	// missingMarker хранится вместо JSON маршрута для несуществующих slug
	missingMarker = "-"
)

// CacheConfig время жизни записей кэша маршрутов
type CacheConfig struct {
	RouteTTL   time.Duration // найденный маршрут
	MissingTTL time.Duration // отметка "slug не существует"; отрицательное значение отключает
}

// CacheRepository кэш маршрутов по slug. Get возвращает ErrCacheMiss, если
// записи нет, и ErrRouteNotFound, если slug закэширован как несуществующий.
type CacheRepository interface {
	Get(ctx context.Context, slug string) (*models.Route, error)
	Set(ctx context.Context, route *models.Route) error
	SetMissing(ctx context.Context, slug string) error
	Delete(ctx context.Context, slug string) error
}

type cacheRepository struct {
	redis *RedisDB
	cfg   CacheConfig
}

func NewCacheRepository(redis *RedisDB, cfg CacheConfig) CacheRepository {
	if cfg.RouteTTL <= 0 {
		cfg.RouteTTL = defaultRouteTTL
	}
	if cfg.MissingTTL == 0 {
		cfg.MissingTTL = defaultMissingTTL
	}
	return &cacheRepository{redis: redis, cfg: cfg}
}

func (r *cacheRepository) Get(ctx context.Context, slug string) (*models.Route, error) {
	data, err := r.redis.Client.Get(ctx, routeKey(slug)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}
	if string(data) == missingMarker {
		return nil, ErrRouteNotFound
	}

	var route models.Route
	if err := json.Unmarshal(data, &route); err != nil {
		return nil, fmt.Errorf("failed to unmarshal route: %w", err)
	}
	return &route, nil
}

// Set кэширует маршрут, заодно снимая отметку о его отсутствии
func (r *cacheRepository) Set(ctx context.Context, route *models.Route) error {
	data, err := json.Marshal(route)
	if err != nil {
		return fmt.Errorf("failed to marshal route: %w", err)
	}
	return r.redis.Client.Set(ctx, routeKey(route.Slug), data, r.cfg.RouteTTL).Err()
}

// SetMissing запоминает, что slug не существует. Короткий TTL ограничивает
// окно, в котором созданный в обход кэша маршрут остаётся невидимым.
func (r *cacheRepository) SetMissing(ctx context.Context, slug string) error {
	if r.cfg.MissingTTL < 0 {
		return nil
	}
	// SetNX: не затираем маршрут, закэшированный параллельным запросом
	return r.redis.Client.SetNX(ctx, routeKey(slug), missingMarker, r.cfg.MissingTTL).Err()
}

func (r *cacheRepository) Delete(ctx context.Context, slug string) error {
	return r.redis.Client.Del(ctx, routeKey(slug)).Err()
}

func routeKey(slug string) string {
	return "route:" + slug
}
