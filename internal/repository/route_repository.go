package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/SergeiKhy/routeforge/internal/models"
	"github.com/jackc/pgx/v5"
)

type RouteRepository interface {
	Create(ctx context.Context, route *models.Route) error
	GetBySlug(ctx context.Context, slug string) (*models.Route, error)
	ListByUser(ctx context.Context, userID int64) ([]models.Route, error)
	Delete(ctx context.Context, slug string) error
}

type routeRepository struct {
	db *PostgresDB
}

func NewRouteRepository(db *PostgresDB) RouteRepository {
	return &routeRepository{db: db}
}

func (r *routeRepository) Create(ctx context.Context, route *models.Route) error {
	query := `
		INSERT INTO routes (user_id, slug, target_url, release_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	err := r.db.Pool.QueryRow(
		ctx,
		query,
		route.UserID,
		route.Slug,
		route.TargetURL,
		route.ReleaseID,
	).Scan(&route.ID, &route.CreatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrSlugExists
		}
		return fmt.Errorf("failed to create route: %w", err)
	}

	return nil
}

func (r *routeRepository) GetBySlug(ctx context.Context, slug string) (*models.Route, error) {
	query := `
		SELECT id, user_id, slug, target_url, release_id, created_at
		FROM routes
		WHERE slug = $1
	`

	route := &models.Route{}
	err := r.db.Pool.QueryRow(ctx, query, slug).Scan(
		&route.ID,
		&route.UserID,
		&route.Slug,
		&route.TargetURL,
		&route.ReleaseID,
		&route.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRouteNotFound
		}
		return nil, fmt.Errorf("failed to get route: %w", err)
	}

	return route, nil
}

func (r *routeRepository) ListByUser(ctx context.Context, userID int64) ([]models.Route, error) {
	query := `
		SELECT id, user_id, slug, target_url, release_id, created_at
		FROM routes
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.db.Pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list routes: %w", err)
	}
	defer rows.Close()

	routes := []models.Route{}
	for rows.Next() {
		var route models.Route
		if err := rows.Scan(
			&route.ID,
			&route.UserID,
			&route.Slug,
			&route.TargetURL,
			&route.ReleaseID,
			&route.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan route: %w", err)
		}
		routes = append(routes, route)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating routes: %w", err)
	}

	return routes, nil
}

// Delete удаляет маршрут; переходы удаляются каскадно
func (r *routeRepository) Delete(ctx context.Context, slug string) error {
	query := `DELETE FROM routes WHERE slug = $1`

	result, err := r.db.Pool.Exec(ctx, query, slug)
	if err != nil {
		return fmt.Errorf("failed to delete route: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrRouteNotFound
	}

	return nil
}
