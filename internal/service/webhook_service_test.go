package service_test

import (
	"context"
	"encoding/hex"
	"testing"

	"go.uber.org/zap"

	"github.com/SergeiKhy/routeforge/internal/models"
	"github.com/SergeiKhy/routeforge/internal/repository"
	"github.com/SergeiKhy/routeforge/internal/service"
	"github.com/SergeiKhy/routeforge/internal/service/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupWebhookService() (service.WebhookService, *mocks.MockWebhookRepository, *fakePublisher) {
	repo := mocks.NewMockWebhookRepository()
	events := &fakePublisher{}
	return service.NewWebhookService(repo, events, zap.NewNop()), repo, events
}

func TestWebhookService_CreateWebhook(t *testing.T) {
	svc, _, events := setupWebhookService()

	hook, err := svc.CreateWebhook(context.Background(), &models.CreateWebhookInput{
		UserID: 1,
		URL:    "https://Hooks.example.com/rf",
		Event:  models.EventRouteHit,
	})

	require.NoError(t, err)
	assert.True(t, hook.Active)
	assert.Equal(t, "https://hooks.example.com/rf", hook.URL)
	assert.Len(t, hook.Secret, 32)
	_, decodeErr := hex.DecodeString(hook.Secret)
	assert.NoError(t, decodeErr)

	pings := events.Pings()
	require.Len(t, pings, 1)
	assert.Equal(t, hook.ID, pings[0].ID)
	assert.Equal(t, hook.Secret, pings[0].Secret)
}

func TestWebhookService_CreateWebhook_UniqueSecrets(t *testing.T) {
	svc, _, _ := setupWebhookService()
	ctx := context.Background()
	input := &models.CreateWebhookInput{UserID: 1, URL: "https://hooks.example.com", Event: models.EventReleasePublished}

	a, err := svc.CreateWebhook(ctx, input)
	require.NoError(t, err)
	b, err := svc.CreateWebhook(ctx, input)
	require.NoError(t, err)

	assert.NotEqual(t, a.Secret, b.Secret)
}

func TestWebhookService_CreateWebhook_Invalid(t *testing.T) {
	svc, repo, events := setupWebhookService()
	ctx := context.Background()

	_, err := svc.CreateWebhook(ctx, &models.CreateWebhookInput{UserID: 1, URL: "https://hooks.example.com", Event: "route.deleted"})
	assert.ErrorIs(t, err, service.ErrInvalidRequest)

	_, err = svc.CreateWebhook(ctx, &models.CreateWebhookInput{UserID: 1, URL: "javascript:alert(1)", Event: models.EventRouteHit})
	assert.ErrorIs(t, err, service.ErrInvalidRequest)

	hooks, err := repo.ListByUser(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, hooks)
	assert.Empty(t, events.Pings())
}

func TestWebhookService_ToggleAndDelete(t *testing.T) {
	svc, _, _ := setupWebhookService()
	ctx := context.Background()

	hook, err := svc.CreateWebhook(ctx, &models.CreateWebhookInput{UserID: 1, URL: "https://hooks.example.com", Event: models.EventRouteHit})
	require.NoError(t, err)

	toggled, err := svc.ToggleWebhook(ctx, 1, hook.ID)
	require.NoError(t, err)
	assert.False(t, toggled.Active)

	// Чужой webhook для пользователя не существует
	_, err = svc.ToggleWebhook(ctx, 2, hook.ID)
	assert.ErrorIs(t, err, repository.ErrWebhookNotFound)
	assert.ErrorIs(t, svc.DeleteWebhook(ctx, 2, hook.ID), repository.ErrWebhookNotFound)

	hooks, err := svc.ListWebhooks(ctx, 1)
	require.NoError(t, err)
	require.Len(t, hooks, 1)

	require.NoError(t, svc.DeleteWebhook(ctx, 1, hook.ID))
	hooks, err = svc.ListWebhooks(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, hooks)
}
