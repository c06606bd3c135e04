package handler

import (
	"net/http"
	"strconv"

	"github.com/SergeiKhy/routeforge/internal/middleware"
	"github.com/SergeiKhy/routeforge/internal/models"
	"github.com/SergeiKhy/routeforge/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type WebhookHandler struct {
	service service.WebhookService
	logger  *zap.Logger
}

func NewWebhookHandler(service service.WebhookService, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{service: service, logger: logger}
}

type CreateWebhookRequest struct {
	URL   string `json:"url" binding:"required"`
	Event string `json:"event" binding:"required"`
}

// CreateWebhookResponse секрет отдаётся только при создании
type CreateWebhookResponse struct {
	*models.Webhook
	Secret string `json:"secret"`
}

// CreateWebhook godoc
// @Summary Register a webhook
// @Tags webhooks
// @Accept json
// @Produce json
// @Param request body CreateWebhookRequest true "Webhook"
// @Success 201 {object} CreateWebhookResponse
// @Failure 400 {object} models.ErrorResponse
// @Router /api/v1/webhooks [post]
func (h *WebhookHandler) CreateWebhook(c *gin.Context) {
	var req CreateWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", zap.Error(err))
		badRequest(c, err.Error())
		return
	}

	userID, _ := middleware.UserIDFrom(c)
	hook, err := h.service.CreateWebhook(c.Request.Context(), &models.CreateWebhookInput{
		UserID: userID,
		URL:    req.URL,
		Event:  req.Event,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, CreateWebhookResponse{Webhook: hook, Secret: hook.Secret})
}

func (h *WebhookHandler) ListWebhooks(c *gin.Context) {
	userID, _ := middleware.UserIDFrom(c)
	hooks, err := h.service.ListWebhooks(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, hooks)
}

func (h *WebhookHandler) ToggleWebhook(c *gin.Context) {
	id, ok := webhookID(c)
	if !ok {
		return
	}

	userID, _ := middleware.UserIDFrom(c)
	hook, err := h.service.ToggleWebhook(c.Request.Context(), userID, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, hook)
}

func (h *WebhookHandler) DeleteWebhook(c *gin.Context) {
	id, ok := webhookID(c)
	if !ok {
		return
	}

	userID, _ := middleware.UserIDFrom(c)
	if err := h.service.DeleteWebhook(c.Request.Context(), userID, id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func webhookID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "id must be an integer")
		return 0, false
	}
	return id, true
}
