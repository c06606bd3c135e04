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

type ReleaseHandler struct {
	service service.ReleaseService
	logger  *zap.Logger
}

func NewReleaseHandler(service service.ReleaseService, logger *zap.Logger) *ReleaseHandler {
	return &ReleaseHandler{service: service, logger: logger}
}

type CreateReleaseRequest struct {
	Version     string `json:"version" binding:"required"`
	ArtifactURL string `json:"artifact_url" binding:"required"`
	Notes       string `json:"notes,omitempty"`
}

// CreateRelease godoc
// @Summary Publish a release
// @Description Stores the release, hashes the artifact and notifies webhooks
// @Tags releases
// @Accept json
// @Produce json
// @Param request body CreateReleaseRequest true "Release"
// @Success 201 {object} models.Release
// @Failure 400 {object} models.ErrorResponse
// @Router /api/v1/releases [post]
func (h *ReleaseHandler) CreateRelease(c *gin.Context) {
	var req CreateReleaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", zap.Error(err))
		badRequest(c, err.Error())
		return
	}

	userID, _ := middleware.UserIDFrom(c)
	release, err := h.service.CreateRelease(c.Request.Context(), &models.CreateReleaseInput{
		UserID:      userID,
		Version:     req.Version,
		ArtifactURL: req.ArtifactURL,
		Notes:       req.Notes,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, release)
}

func (h *ReleaseHandler) GetRelease(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "id must be an integer")
		return
	}

	userID, _ := middleware.UserIDFrom(c)
	release, err := h.service.GetRelease(c.Request.Context(), userID, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, release)
}
