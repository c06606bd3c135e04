package repository

import (
	"context"
	"fmt"

	"github.com/SergeiKhy/routeforge/internal/models"
)

type HitRepository interface {
	Record(ctx context.Context, hit *models.RouteHit) error
	GetStats(ctx context.Context, routeID int64) (*models.HitStats, error)
	GetDailyStats(ctx context.Context, routeID int64, days int) ([]models.DailyHitStats, error)
	CountByRef(ctx context.Context, routeID int64) ([]models.RefCount, error)
}

type hitRepository struct {
	db *PostgresDB
}

func NewHitRepository(db *PostgresDB) HitRepository {
	return &hitRepository{db: db}
}

func (r *hitRepository) Record(ctx context.Context, hit *models.RouteHit) error {
	query := `
		INSERT INTO route_hits (route_id, ip, user_agent, ref)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		hit.RouteID,
		hit.IP,
		hit.UserAgent,
		hit.Ref,
	).Scan(&hit.ID, &hit.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to record hit: %w", err)
	}

	return nil
}

func (r *hitRepository) GetStats(ctx context.Context, routeID int64) (*models.HitStats, error) {
	query := `
		SELECT
			COUNT(*) AS total_hits,
			COUNT(DISTINCT ip) AS unique_hits
		FROM route_hits
		WHERE route_id = $1
	`

	stats := &models.HitStats{}
	err := r.db.Pool.QueryRow(ctx, query, routeID).Scan(
		&stats.TotalHits,
		&stats.UniqueHits,
	)

	if err != nil {
		return nil, fmt.Errorf("failed to get hit stats: %w", err)
	}

	return stats, nil
}

func (r *hitRepository) GetDailyStats(ctx context.Context, routeID int64, days int) ([]models.DailyHitStats, error) {
	query := `
		SELECT
			TO_CHAR(DATE(created_at), 'YYYY-MM-DD') AS date,
			COUNT(*) AS hits
		FROM route_hits
		WHERE route_id = $1
			AND created_at >= NOW() - INTERVAL '1 day' * $2
		GROUP BY DATE(created_at)
		ORDER BY DATE(created_at) DESC
	`

	rows, err := r.db.Pool.Query(ctx, query, routeID, days)
	if err != nil {
		return nil, fmt.Errorf("failed to get daily stats: %w", err)
	}
	defer rows.Close()

	stats := []models.DailyHitStats{}
	for rows.Next() {
		var daily models.DailyHitStats
		if err := rows.Scan(&daily.Date, &daily.Hits); err != nil {
			return nil, fmt.Errorf("failed to scan daily stat: %w", err)
		}
		stats = append(stats, daily)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily stats: %w", err)
	}

	return stats, nil
}

// CountByRef группирует переходы по сохранённой строке ref
func (r *hitRepository) CountByRef(ctx context.Context, routeID int64) ([]models.RefCount, error) {
	query := `
		SELECT ref, COUNT(*) AS hits
		FROM route_hits
		WHERE route_id = $1
		GROUP BY ref
	`

	rows, err := r.db.Pool.Query(ctx, query, routeID)
	if err != nil {
		return nil, fmt.Errorf("failed to count hits by ref: %w", err)
	}
	defer rows.Close()

	var counts []models.RefCount
	for rows.Next() {
		var rc models.RefCount
		if err := rows.Scan(&rc.Ref, &rc.Hits); err != nil {
			return nil, fmt.Errorf("failed to scan ref count: %w", err)
		}
		counts = append(counts, rc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ref counts: %w", err)
	}

	return counts, nil
}
