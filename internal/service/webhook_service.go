package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"

	"github.com/SergeiKhy/routeforge/internal/models"
	"github.com/SergeiKhy/routeforge/internal/repository"
	"github.com/SergeiKhy/routeforge/internal/validator"
	"go.uber.org/zap"
)

const webhookSecretBytes = 16

// WebhookService управление подписками пользователя
type WebhookService interface {
	CreateWebhook(ctx context.Context, input *models.CreateWebhookInput) (*models.Webhook, error)
	ListWebhooks(ctx context.Context, userID int64) ([]models.Webhook, error)
	ToggleWebhook(ctx context.Context, userID, id int64) (*models.Webhook, error)
	DeleteWebhook(ctx context.Context, userID, id int64) error
}

type webhookService struct {
	repo   repository.WebhookRepository
	events EventPublisher
	logger *zap.Logger
}

func NewWebhookService(repo repository.WebhookRepository, events EventPublisher, logger *zap.Logger) WebhookService {
	return &webhookService{repo: repo, events: events, logger: logger}
}

// CreateWebhook создаёт активный webhook со случайным секретом и
// отправляет ему webhook.ping
func (s *webhookService) CreateWebhook(ctx context.Context, input *models.CreateWebhookInput) (*models.Webhook, error) {
	event := strings.TrimSpace(input.Event)
	if !slices.Contains(models.SubscribableEvents, event) {
		return nil, fmt.Errorf("%w: unknown event %q", ErrInvalidRequest, event)
	}
	url, err := validator.ValidateTargetURL(input.URL, validator.DefaultSchemes)
	if err != nil {
		return nil, fmt.Errorf("%w: url: %w", ErrInvalidRequest, err)
	}

	secret, err := generateSecret()
	if err != nil {
		return nil, err
	}

	hook := &models.Webhook{
		UserID: input.UserID,
		URL:    url,
		Secret: secret,
		Event:  event,
		Active: true,
	}
	if err := s.repo.Create(ctx, hook); err != nil {
		return nil, err
	}

	if s.events != nil && !s.events.Ping(*hook) {
		s.logger.Warn("webhook.ping пропущен: очередь заполнена", zap.Int64("webhook_id", hook.ID))
	}

	return hook, nil
}

func generateSecret() (string, error) {
	b := make([]byte, webhookSecretBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate webhook secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func (s *webhookService) ListWebhooks(ctx context.Context, userID int64) ([]models.Webhook, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *webhookService) ToggleWebhook(ctx context.Context, userID, id int64) (*models.Webhook, error) {
	return s.repo.Toggle(ctx, id, userID)
}

func (s *webhookService) DeleteWebhook(ctx context.Context, userID, id int64) error {
	return s.repo.Delete(ctx, id, userID)
}
