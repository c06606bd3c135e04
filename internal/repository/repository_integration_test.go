package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/SergeiKhy/routeforge/internal/config"
	"github.com/SergeiKhy/routeforge/internal/models"
	"github.com/SergeiKhy/routeforge/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startStorage поднимает PostgreSQL и Redis в контейнерах и применяет миграции
func startStorage(t *testing.T) (*repository.PostgresDB, *repository.RedisDB) {
	t.Helper()
	if testing.Short() {
		t.Skip("Пропускаем интеграционный тест в коротком режиме")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()

	dbContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("routeforge"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	testcontainers.CleanupContainer(t, dbContainer)
	require.NoError(t, err)

	redisContainer, err := tcredis.Run(ctx, "redis:7-alpine")
	testcontainers.CleanupContainer(t, redisContainer)
	require.NoError(t, err)

	dbHost, err := dbContainer.Host(ctx)
	require.NoError(t, err)
	dbPort, err := dbContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	redisHost, err := redisContainer.Host(ctx)
	require.NoError(t, err)
	redisPort, err := redisContainer.MappedPort(ctx, "6379")
	require.NoError(t, err)

	db, err := repository.NewPostgresDB(ctx, config.DBConfig{
		Host:     dbHost,
		Port:     dbPort.Port(),
		User:     "user",
		Password: "password",
		Name:     "routeforge",
	})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, repository.Migrate(ctx, db))
	// Повторный запуск миграций ничего не меняет
	require.NoError(t, repository.Migrate(ctx, db))

	rdb, err := repository.NewRedisClient(ctx, config.RedisConfig{
		Host: redisHost,
		Port: redisPort.Port(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { rdb.Close() })

	return db, rdb
}

func TestRepositories_Integration(t *testing.T) {
	db, rdb := startStorage(t)
	ctx := context.Background()

	routes := repository.NewRouteRepository(db)
	hits := repository.NewHitRepository(db)
	hooks := repository.NewWebhookRepository(db)
	releases := repository.NewReleaseRepository(db)
	cache := repository.NewCacheRepository(rdb, repository.CacheConfig{RouteTTL: time.Minute, MissingTTL: time.Minute})

	release := &models.Release{UserID: 1, Version: "1.0.0", ArtifactURL: "https://cdn.example.com/app.zip"}
	require.NoError(t, releases.Create(ctx, release))

	route := &models.Route{UserID: 1, Slug: "demo", TargetURL: "https://example.com/", ReleaseID: &release.ID}

	t.Run("маршруты", func(t *testing.T) {
		require.NoError(t, routes.Create(ctx, route))
		assert.NotZero(t, route.ID)
		assert.False(t, route.CreatedAt.IsZero())

		dup := &models.Route{UserID: 2, Slug: "demo", TargetURL: "https://other.example/"}
		assert.ErrorIs(t, routes.Create(ctx, dup), repository.ErrSlugExists)

		got, err := routes.GetBySlug(ctx, "demo")
		require.NoError(t, err)
		assert.Equal(t, route.TargetURL, got.TargetURL)
		require.NotNil(t, got.ReleaseID)
		assert.Equal(t, release.ID, *got.ReleaseID)

		_, err = routes.GetBySlug(ctx, "missing")
		assert.ErrorIs(t, err, repository.ErrRouteNotFound)

		list, err := routes.ListByUser(ctx, 1)
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})

	t.Run("переходы и статистика", func(t *testing.T) {
		for _, h := range []models.RouteHit{
			{RouteID: route.ID, IP: "10.0.0.1", Ref: "twitter.com?utm_source=tw"},
			{RouteID: route.ID, IP: "10.0.0.1", Ref: "twitter.com?utm_source=tw"},
			{RouteID: route.ID, IP: "10.0.0.2", Ref: ""},
		} {
			hit := h
			require.NoError(t, hits.Record(ctx, &hit))
			assert.NotZero(t, hit.ID)
		}

		stats, err := hits.GetStats(ctx, route.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(3), stats.TotalHits)
		assert.Equal(t, int64(2), stats.UniqueHits)

		daily, err := hits.GetDailyStats(ctx, route.ID, 7)
		require.NoError(t, err)
		require.Len(t, daily, 1)
		assert.Equal(t, int64(3), daily[0].Hits)
		assert.Equal(t, time.Now().UTC().Format("2006-01-02"), daily[0].Date)

		refs, err := hits.CountByRef(ctx, route.ID)
		require.NoError(t, err)
		assert.Len(t, refs, 2)
	})

	t.Run("кэш маршрутов", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, route))
		cached, err := cache.Get(ctx, "demo")
		require.NoError(t, err)
		assert.Equal(t, route.TargetURL, cached.TargetURL)

		keys, err := rdb.Client.Keys(ctx, "route:*").Result()
		require.NoError(t, err)
		assert.Equal(t, []string{"route:demo"}, keys)

		// отметка об отсутствии не затирает закэшированный маршрут
		require.NoError(t, cache.SetMissing(ctx, "demo"))
		_, err = cache.Get(ctx, "demo")
		require.NoError(t, err)

		require.NoError(t, cache.Delete(ctx, "demo"))
		_, err = cache.Get(ctx, "demo")
		assert.ErrorIs(t, err, repository.ErrCacheMiss)

		require.NoError(t, cache.SetMissing(ctx, "ghost"))
		_, err = cache.Get(ctx, "ghost")
		assert.ErrorIs(t, err, repository.ErrRouteNotFound)
		ttl, err := rdb.Client.TTL(ctx, "route:ghost").Result()
		require.NoError(t, err)
		assert.LessOrEqual(t, ttl, time.Minute)

		// созданный маршрут заменяет отметку
		ghost := &models.Route{Slug: "ghost", TargetURL: "https://example.com/ghost"}
		require.NoError(t, cache.Set(ctx, ghost))
		cached, err = cache.Get(ctx, "ghost")
		require.NoError(t, err)
		assert.Equal(t, ghost.TargetURL, cached.TargetURL)
	})

	t.Run("webhooks", func(t *testing.T) {
		hook := &models.Webhook{UserID: 1, URL: "https://hooks.example/a", Secret: "s", Event: models.EventRouteHit, Active: true}
		require.NoError(t, hooks.Create(ctx, hook))
		other := &models.Webhook{UserID: 1, URL: "https://hooks.example/b", Secret: "s", Event: models.EventReleasePublished, Active: true}
		require.NoError(t, hooks.Create(ctx, other))

		active, err := hooks.ListActive(ctx, 1, models.EventRouteHit)
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, hook.ID, active[0].ID)

		toggled, err := hooks.Toggle(ctx, hook.ID, 1)
		require.NoError(t, err)
		assert.False(t, toggled.Active)

		active, err = hooks.ListActive(ctx, 1, models.EventRouteHit)
		require.NoError(t, err)
		assert.Empty(t, active)

		_, err = hooks.Toggle(ctx, hook.ID, 2)
		assert.ErrorIs(t, err, repository.ErrWebhookNotFound)

		failedAt := time.Now().UTC().Truncate(time.Second)
		require.NoError(t, hooks.MarkFailed(ctx, other.ID, failedAt))
		got, err := hooks.GetByID(ctx, other.ID)
		require.NoError(t, err)
		require.NotNil(t, got.LastFailedAt)
		assert.True(t, failedAt.Equal(*got.LastFailedAt))

		require.NoError(t, hooks.Delete(ctx, other.ID, 1))
		assert.ErrorIs(t, hooks.Delete(ctx, other.ID, 1), repository.ErrWebhookNotFound)
	})

	t.Run("релизы", func(t *testing.T) {
		require.NoError(t, releases.SetArtifactHash(ctx, release.ID, "ab12"))
		got, err := releases.GetByID(ctx, release.ID)
		require.NoError(t, err)
		require.NotNil(t, got.ArtifactSHA256)
		assert.Equal(t, "ab12", *got.ArtifactSHA256)

		_, err = releases.GetByID(ctx, 999999)
		assert.ErrorIs(t, err, repository.ErrReleaseNotFound)
	})

	t.Run("каскадное удаление", func(t *testing.T) {
		require.NoError(t, routes.Delete(ctx, "demo"))
		assert.ErrorIs(t, routes.Delete(ctx, "demo"), repository.ErrRouteNotFound)

		stats, err := hits.GetStats(ctx, route.ID)
		require.NoError(t, err)
		assert.Zero(t, stats.TotalHits)
	})
}
