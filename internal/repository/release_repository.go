package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/SergeiKhy/routeforge/internal/models"
	"github.com/jackc/pgx/v5"
)

type ReleaseRepository interface {
	Create(ctx context.Context, release *models.Release) error
	GetByID(ctx context.Context, id int64) (*models.Release, error)
	SetArtifactHash(ctx context.Context, id int64, sha256 string) error
}

type releaseRepository struct {
	db *PostgresDB
}

func NewReleaseRepository(db *PostgresDB) ReleaseRepository {
	return &releaseRepository{db: db}
}

func (r *releaseRepository) Create(ctx context.Context, release *models.Release) error {
	query := `
		INSERT INTO releases (user_id, version, notes, artifact_url)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		release.UserID,
		release.Version,
		release.Notes,
		release.ArtifactURL,
	).Scan(&release.ID, &release.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create release: %w", err)
	}

	return nil
}

func (r *releaseRepository) GetByID(ctx context.Context, id int64) (*models.Release, error) {
	query := `
		SELECT id, user_id, version, notes, artifact_url, artifact_sha256, created_at
		FROM releases
		WHERE id = $1
	`

	release := &models.Release{}
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&release.ID,
		&release.UserID,
		&release.Version,
		&release.Notes,
		&release.ArtifactURL,
		&release.ArtifactSHA256,
		&release.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReleaseNotFound
		}
		return nil, fmt.Errorf("failed to get release: %w", err)
	}

	return release, nil
}

func (r *releaseRepository) SetArtifactHash(ctx context.Context, id int64, sha256 string) error {
	query := `UPDATE releases SET artifact_sha256 = $2 WHERE id = $1`

	result, err := r.db.Pool.Exec(ctx, query, id, sha256)
	if err != nil {
		return fmt.Errorf("failed to set artifact hash: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrReleaseNotFound
	}

	return nil
}
