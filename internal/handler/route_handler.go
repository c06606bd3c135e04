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

type RouteHandler struct {
	service service.RouteService
	logger  *zap.Logger
}

func NewRouteHandler(service service.RouteService, logger *zap.Logger) *RouteHandler {
	return &RouteHandler{service: service, logger: logger}
}

type CreateRouteRequest struct {
	Slug      string `json:"slug,omitempty"`
	TargetURL string `json:"target_url" binding:"required"`
	ReleaseID *int64 `json:"release_id,omitempty"`
}

// CreateRoute godoc
// @Summary Create a route
// @Tags routes
// @Accept json
// @Produce json
// @Param request body CreateRouteRequest true "Route creation request"
// @Success 201 {object} models.Route
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Failure 422 {object} models.ErrorResponse
// @Router /api/v1/routes [post]
func (h *RouteHandler) CreateRoute(c *gin.Context) {
	var req CreateRouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", zap.Error(err))
		badRequest(c, err.Error())
		return
	}

	userID, _ := middleware.UserIDFrom(c)
	route, err := h.service.CreateRoute(c.Request.Context(), &models.CreateRouteInput{
		UserID:    userID,
		Slug:      req.Slug,
		TargetURL: req.TargetURL,
		ReleaseID: req.ReleaseID,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, route)
}

func (h *RouteHandler) ListRoutes(c *gin.Context) {
	userID, _ := middleware.UserIDFrom(c)
	routes, err := h.service.ListRoutes(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, routes)
}

// DeleteRoute godoc
// @Summary Delete a route
// @Tags routes
// @Param slug path string true "Route slug"
// @Success 204
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /api/v1/routes/{slug} [delete]
func (h *RouteHandler) DeleteRoute(c *gin.Context) {
	userID, _ := middleware.UserIDFrom(c)
	if err := h.service.DeleteRoute(c.Request.Context(), userID, c.Param("slug")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *RouteHandler) GetStats(c *gin.Context) {
	userID, _ := middleware.UserIDFrom(c)
	stats, err := h.service.GetStats(c.Request.Context(), userID, c.Param("slug"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GetDailyStats days вне диапазона 1..90 приводится к границе, мусор даёт 400
func (h *RouteHandler) GetDailyStats(c *gin.Context) {
	days := 0
	if d := c.Query("days"); d != "" {
		n, err := strconv.Atoi(d)
		if err != nil {
			badRequest(c, "days must be an integer")
			return
		}
		days = n
	}

	userID, _ := middleware.UserIDFrom(c)
	stats, err := h.service.GetDailyStats(c.Request.Context(), userID, c.Param("slug"), days)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *RouteHandler) GetReferrers(c *gin.Context) {
	userID, _ := middleware.UserIDFrom(c)
	stats, err := h.service.GetReferrers(c.Request.Context(), userID, c.Param("slug"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
