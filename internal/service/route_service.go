package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/SergeiKhy/routeforge/internal/config"
	"github.com/SergeiKhy/routeforge/internal/models"
	"github.com/SergeiKhy/routeforge/internal/referrer"
	"github.com/SergeiKhy/routeforge/internal/repository"
	"github.com/SergeiKhy/routeforge/internal/validator"
	"go.uber.org/zap"
)

// Константы сервиса
const (
	defaultDays        = 7
	maxDays            = 90
	slugGenerateTries  = 5
	directReferrerHost = "(direct)"
)

// PolicyFunc возвращает актуальные правила проверки target URL
type PolicyFunc func() config.TargetPolicy

// RouteService управление маршрутами и их статистикой
type RouteService interface {
	CreateRoute(ctx context.Context, input *models.CreateRouteInput) (*models.Route, error)
	ListRoutes(ctx context.Context, userID int64) ([]models.Route, error)
	DeleteRoute(ctx context.Context, userID int64, slug string) error
	GetStats(ctx context.Context, userID int64, slug string) (*models.HitStats, error)
	GetDailyStats(ctx context.Context, userID int64, slug string, days int) ([]models.DailyHitStats, error)
	GetReferrers(ctx context.Context, userID int64, slug string) ([]models.ReferrerStats, error)
}

type routeService struct {
	routes   repository.RouteRepository
	hits     repository.HitRepository
	releases repository.ReleaseRepository
	cache    repository.CacheRepository
	policy   PolicyFunc
	logger   *zap.Logger
}

// NewRouteService создаёт новый экземпляр сервиса
func NewRouteService(
	routes repository.RouteRepository,
	hits repository.HitRepository,
	releases repository.ReleaseRepository,
	cache repository.CacheRepository,
	policy PolicyFunc,
	logger *zap.Logger,
) RouteService {
	return &routeService{
		routes:   routes,
		hits:     hits,
		releases: releases,
		cache:    cache,
		policy:   policy,
		logger:   logger,
	}
}

// NormalizeTarget проверяет target URL по схемам и чёрному списку доменов
// и возвращает нормализованную форму
func NormalizeTarget(raw string, policy config.TargetPolicy) (string, error) {
	normalized, err := validator.ValidateTargetURL(raw, policy.AllowedSchemes)
	if err != nil {
		return "", err
	}
	if !validator.DomainAllowed(validator.HostOf(normalized), policy.BlockedDomains) {
		return "", validator.ErrBlockedDomain
	}
	return normalized, nil
}

// CreateRoute создаёт маршрут. Пустой slug заменяется случайным.
func (s *routeService) CreateRoute(ctx context.Context, input *models.CreateRouteInput) (*models.Route, error) {
	target, err := NormalizeTarget(input.TargetURL, s.policy())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTargetURL, err)
	}

	if input.ReleaseID != nil {
		release, err := s.releases.GetByID(ctx, *input.ReleaseID)
		if err != nil {
			return nil, err
		}
		if release.UserID != input.UserID {
			return nil, ErrForbidden
		}
	}

	route := &models.Route{
		UserID:    input.UserID,
		TargetURL: target,
		ReleaseID: input.ReleaseID,
	}

	if strings.TrimSpace(input.Slug) != "" {
		route.Slug = validator.Slugify(input.Slug)
		if err := validator.ValidateSlug(route.Slug); err != nil {
			return nil, err
		}
		if err := s.routes.Create(ctx, route); err != nil {
			return nil, err
		}
	} else if err := s.createWithGeneratedSlug(ctx, route); err != nil {
		return nil, err
	}

	// Кэширование
	if err := s.cache.Set(ctx, route); err != nil {
		s.logger.Debug("Не удалось закэшировать маршрут", zap.String("slug", route.Slug), zap.Error(err))
	}

	return route, nil
}

func (s *routeService) createWithGeneratedSlug(ctx context.Context, route *models.Route) error {
	for i := 0; i < slugGenerateTries; i++ {
		slug, err := validator.GenerateSlug()
		if err != nil {
			return fmt.Errorf("failed to generate slug: %w", err)
		}
		route.Slug = slug

		err = s.routes.Create(ctx, route)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrSlugExists) {
			return err
		}
	}
	return fmt.Errorf("failed to generate unique slug after %d attempts: %w", slugGenerateTries, repository.ErrSlugExists)
}

func (s *routeService) ListRoutes(ctx context.Context, userID int64) ([]models.Route, error) {
	return s.routes.ListByUser(ctx, userID)
}

// owned возвращает маршрут, если он принадлежит пользователю
func (s *routeService) owned(ctx context.Context, userID int64, slug string) (*models.Route, error) {
	route, err := s.routes.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if route.UserID != userID {
		return nil, ErrForbidden
	}
	return route, nil
}

// DeleteRoute удаляет маршрут владельца вместе с его переходами
func (s *routeService) DeleteRoute(ctx context.Context, userID int64, slug string) error {
	if _, err := s.owned(ctx, userID, slug); err != nil {
		return err
	}

	// Удаляем кэш
	if err := s.cache.Delete(ctx, slug); err != nil {
		s.logger.Debug("Не удалось удалить маршрут из кэша", zap.String("slug", slug), zap.Error(err))
	}

	return s.routes.Delete(ctx, slug)
}

func (s *routeService) GetStats(ctx context.Context, userID int64, slug string) (*models.HitStats, error) {
	route, err := s.owned(ctx, userID, slug)
	if err != nil {
		return nil, err
	}

	stats, err := s.hits.GetStats(ctx, route.ID)
	if err != nil {
		return nil, err
	}
	stats.Slug = route.Slug
	return stats, nil
}

// GetDailyStats статистика по дням; days приводится к диапазону 1..90
func (s *routeService) GetDailyStats(ctx context.Context, userID int64, slug string, days int) ([]models.DailyHitStats, error) {
	route, err := s.owned(ctx, userID, slug)
	if err != nil {
		return nil, err
	}
	return s.hits.GetDailyStats(ctx, route.ID, ClampDays(days))
}

// ClampDays 0 означает значение по умолчанию
func ClampDays(days int) int {
	switch {
	case days == 0:
		return defaultDays
	case days < 1:
		return 1
	case days > maxDays:
		return maxDays
	}
	return days
}

// GetReferrers группирует переходы по host источника и utm_source
func (s *routeService) GetReferrers(ctx context.Context, userID int64, slug string) ([]models.ReferrerStats, error) {
	route, err := s.owned(ctx, userID, slug)
	if err != nil {
		return nil, err
	}

	counts, err := s.hits.CountByRef(ctx, route.ID)
	if err != nil {
		return nil, err
	}

	type key struct{ host, source string }
	grouped := make(map[key]int64)
	for _, rc := range counts {
		ref := referrer.Decode(rc.Ref)
		host := ref.Host
		if host == "" {
			host = directReferrerHost
		}
		grouped[key{host: host, source: ref.UTM.Source}] += rc.Hits
	}

	stats := make([]models.ReferrerStats, 0, len(grouped))
	for k, hits := range grouped {
		stats = append(stats, models.ReferrerStats{Host: k.host, UTMSource: k.source, Hits: hits})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Hits != stats[j].Hits {
			return stats[i].Hits > stats[j].Hits
		}
		if stats[i].Host != stats[j].Host {
			return stats[i].Host < stats[j].Host
		}
		return stats[i].UTMSource < stats[j].UTMSource
	})

	return stats, nil
}
