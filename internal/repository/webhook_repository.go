package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SergeiKhy/routeforge/internal/models"
	"github.com/jackc/pgx/v5"
)

type WebhookRepository interface {
	Create(ctx context.Context, hook *models.Webhook) error
	GetByID(ctx context.Context, id int64) (*models.Webhook, error)
	ListByUser(ctx context.Context, userID int64) ([]models.Webhook, error)
	ListActive(ctx context.Context, userID int64, event string) ([]models.Webhook, error)
	Toggle(ctx context.Context, id, userID int64) (*models.Webhook, error)
	Delete(ctx context.Context, id, userID int64) error
	MarkFailed(ctx context.Context, id int64, at time.Time) error
}

type webhookRepository struct {
	db *PostgresDB
}

func NewWebhookRepository(db *PostgresDB) WebhookRepository {
	return &webhookRepository{db: db}
}

const webhookColumns = `id, user_id, url, secret, event, active, last_failed_at, created_at`

func scanWebhook(row pgx.Row, hook *models.Webhook) error {
	return row.Scan(
		&hook.ID,
		&hook.UserID,
		&hook.URL,
		&hook.Secret,
		&hook.Event,
		&hook.Active,
		&hook.LastFailedAt,
		&hook.CreatedAt,
	)
}

func (r *webhookRepository) Create(ctx context.Context, hook *models.Webhook) error {
	query := `
		INSERT INTO webhooks (user_id, url, secret, event, active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		hook.UserID,
		hook.URL,
		hook.Secret,
		hook.Event,
		hook.Active,
	).Scan(&hook.ID, &hook.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create webhook: %w", err)
	}

	return nil
}

func (r *webhookRepository) GetByID(ctx context.Context, id int64) (*models.Webhook, error) {
	query := `SELECT ` + webhookColumns + ` FROM webhooks WHERE id = $1`

	hook := &models.Webhook{}
	if err := scanWebhook(r.db.Pool.QueryRow(ctx, query, id), hook); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWebhookNotFound
		}
		return nil, fmt.Errorf("failed to get webhook: %w", err)
	}

	return hook, nil
}

func (r *webhookRepository) ListByUser(ctx context.Context, userID int64) ([]models.Webhook, error) {
	query := `SELECT ` + webhookColumns + ` FROM webhooks WHERE user_id = $1 ORDER BY id`
	return r.list(ctx, query, userID)
}

// ListActive активные подписки пользователя на событие
func (r *webhookRepository) ListActive(ctx context.Context, userID int64, event string) ([]models.Webhook, error) {
	query := `
		SELECT ` + webhookColumns + `
		FROM webhooks
		WHERE user_id = $1 AND event = $2 AND active
		ORDER BY id
	`
	return r.list(ctx, query, userID, event)
}

func (r *webhookRepository) list(ctx context.Context, query string, args ...any) ([]models.Webhook, error) {
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhooks: %w", err)
	}
	defer rows.Close()

	hooks := []models.Webhook{}
	for rows.Next() {
		var hook models.Webhook
		if err := scanWebhook(rows, &hook); err != nil {
			return nil, fmt.Errorf("failed to scan webhook: %w", err)
		}
		hooks = append(hooks, hook)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating webhooks: %w", err)
	}

	return hooks, nil
}

// Toggle инвертирует флаг active у webhook владельца
func (r *webhookRepository) Toggle(ctx context.Context, id, userID int64) (*models.Webhook, error) {
	query := `
		UPDATE webhooks SET active = NOT active
		WHERE id = $1 AND user_id = $2
		RETURNING ` + webhookColumns

	hook := &models.Webhook{}
	if err := scanWebhook(r.db.Pool.QueryRow(ctx, query, id, userID), hook); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWebhookNotFound
		}
		return nil, fmt.Errorf("failed to toggle webhook: %w", err)
	}

	return hook, nil
}

func (r *webhookRepository) Delete(ctx context.Context, id, userID int64) error {
	query := `DELETE FROM webhooks WHERE id = $1 AND user_id = $2`

	result, err := r.db.Pool.Exec(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrWebhookNotFound
	}

	return nil
}

// MarkFailed запоминает время последней неудачной доставки
func (r *webhookRepository) MarkFailed(ctx context.Context, id int64, at time.Time) error {
	query := `UPDATE webhooks SET last_failed_at = $2 WHERE id = $1`

	result, err := r.db.Pool.Exec(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("failed to mark webhook failed: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrWebhookNotFound
	}

	return nil
}
