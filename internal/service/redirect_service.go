package service

import (
	"context"
	"errors"
	"time"

	"github.com/SergeiKhy/routeforge/internal/metrics"
	"github.com/SergeiKhy/routeforge/internal/models"
	"github.com/SergeiKhy/routeforge/internal/referrer"
	"github.com/SergeiKhy/routeforge/internal/repository"
	"github.com/SergeiKhy/routeforge/internal/validator"
	"go.uber.org/zap"
)

// Visit данные запроса редиректа
type Visit struct {
	Slug      string
	IP        string
	UserAgent string
	Referer   string
	RawQuery  string
}

// RedirectService разрешает slug в целевой URL и записывает переход
type RedirectService interface {
	Redirect(ctx context.Context, visit Visit) (string, error)
	Resolve(ctx context.Context, slug string) (*models.Route, error)
}

type redirectService struct {
	routes   repository.RouteRepository
	hits     repository.HitRepository
	cache    repository.CacheRepository
	events   EventPublisher
	policy   PolicyFunc
	logger   *zap.Logger
}

func NewRedirectService(
	routes repository.RouteRepository,
	hits repository.HitRepository,
	cache repository.CacheRepository,
	events EventPublisher,
	policy PolicyFunc,
	logger *zap.Logger,
) RedirectService {
	return &redirectService{
		routes:   routes,
		hits:     hits,
		cache:    cache,
		events:   events,
		policy:   policy,
		logger:   logger,
	}
}

// Resolve ищет маршрут сначала в кэше, затем в БД. Несуществующий slug
// кэшируется отдельной отметкой, чтобы повторные запросы не доходили до БД.
// Любая ошибка хранилища превращается в ErrRouteNotFound.
func (s *redirectService) Resolve(ctx context.Context, slug string) (*models.Route, error) {
	route, err := s.cache.Get(ctx, slug)
	switch {
	case err == nil:
		return route, nil
	case errors.Is(err, repository.ErrRouteNotFound):
		return nil, repository.ErrRouteNotFound
	case !errors.Is(err, repository.ErrCacheMiss):
		s.logger.Debug("Кэш маршрутов недоступен", zap.String("slug", slug), zap.Error(err))
	}

	route, err = s.routes.GetBySlug(ctx, slug)
	if errors.Is(err, repository.ErrRouteNotFound) {
		if err := s.cache.SetMissing(ctx, slug); err != nil {
			s.logger.Debug("Не удалось закэшировать отсутствие маршрута", zap.String("slug", slug), zap.Error(err))
		}
		return nil, repository.ErrRouteNotFound
	}
	if err != nil {
		s.logger.Warn("Хранилище маршрутов недоступно", zap.String("slug", slug), zap.Error(err))
		return nil, repository.ErrRouteNotFound
	}

	// Кэширование результата
	if err := s.cache.Set(ctx, route); err != nil {
		s.logger.Debug("Не удалось закэшировать маршрут", zap.String("slug", slug), zap.Error(err))
	}

	return route, nil
}

// Redirect разрешает маршрут, синхронно записывает переход и проверяет
// target URL. Переход записывается до проверки URL, поэтому попадает в
// статистику даже при отказе в редиректе.
func (s *redirectService) Redirect(ctx context.Context, visit Visit) (string, error) {
	route, err := s.Resolve(ctx, visit.Slug)
	if err != nil {
		metrics.Redirects.WithLabelValues(metrics.OutcomeNotFound).Inc()
		return "", err
	}

	s.recordHit(ctx, route, visit)

	policy := s.policy()
	target, err := NormalizeTarget(route.TargetURL, policy)
	if err != nil {
		metrics.Redirects.WithLabelValues(metrics.OutcomeInvalid).Inc()
		s.logger.Warn("Target URL маршрута не прошёл проверку",
			zap.String("slug", route.Slug),
			zap.Error(err),
		)
		return "", &TargetError{Err: err, AllowedSchemes: validator.NormalizeSchemes(policy.AllowedSchemes)}
	}

	metrics.Redirects.WithLabelValues(metrics.OutcomeRedirected).Inc()
	return target, nil
}

// recordHit ошибки записи не прерывают редирект
func (s *redirectService) recordHit(ctx context.Context, route *models.Route, visit Visit) {
	ref := referrer.Parse(visit.Referer, visit.RawQuery)
	hit := &models.RouteHit{
		RouteID:   route.ID,
		IP:        visit.IP,
		UserAgent: visit.UserAgent,
		Ref:       referrer.Serialize(ref.Host, ref.UTM, visit.Referer),
	}

	if err := s.hits.Record(ctx, hit); err != nil {
		metrics.HitRecordFailures.Inc()
		s.logger.Warn("Не удалось записать переход",
			zap.String("slug", route.Slug),
			zap.Error(err),
		)
		return
	}

	s.logger.Info("Redirect",
		zap.String("slug", route.Slug),
		zap.Int64("route_id", route.ID),
		zap.String("ip", visit.IP),
	)

	if s.events == nil {
		return
	}
	s.events.Publish(route.UserID, models.EventRouteHit, map[string]any{
		"event":    models.EventRouteHit,
		"slug":     route.Slug,
		"route_id": route.ID,
		"ip":       hit.IP,
		"ref":      hit.Ref,
		"ts":       hit.CreatedAt.UTC().Format(time.RFC3339),
	})
}
