package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/SergeiKhy/routeforge/internal/middleware"
	"github.com/SergeiKhy/routeforge/internal/models"
	"github.com/SergeiKhy/routeforge/internal/repository"
	"github.com/SergeiKhy/routeforge/internal/service"
	"github.com/SergeiKhy/routeforge/internal/validator"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type RedirectHandler struct {
	service service.RedirectService
	logger  *zap.Logger
}

func NewRedirectHandler(service service.RedirectService, logger *zap.Logger) *RedirectHandler {
	return &RedirectHandler{service: service, logger: logger}
}

// Redirect godoc
// @Summary Redirect by slug
// @Description Records the hit and redirects to the route target
// @Tags redirect
// @Param slug path string true "Route slug"
// @Success 302
// @Failure 404 {object} models.ErrorResponse
// @Failure 422 {object} models.ErrorResponse
// @Failure 429 {object} models.ErrorResponse
// @Router /r/{slug} [get]
func (h *RedirectHandler) Redirect(c *gin.Context) {
	referer := c.GetHeader("Referer")
	if referer == "" {
		referer = c.GetHeader("Referrer")
	}

	target, err := h.service.Redirect(c.Request.Context(), service.Visit{
		Slug:      c.Param("slug"),
		IP:        middleware.ClientIP(c),
		UserAgent: c.Request.UserAgent(),
		Referer:   referer,
		RawQuery:  c.Request.URL.RawQuery,
	})
	if err != nil {
		if errors.Is(err, repository.ErrRouteNotFound) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{Error: models.CodeNotFound})
			return
		}
		c.JSON(http.StatusUnprocessableEntity, models.ErrorResponse{
			Error:  models.CodeInvalidURL,
			Detail: targetDetail(err),
		})
		return
	}

	c.Redirect(http.StatusFound, target)
}

// targetDetail текст для клиента без внутренних подробностей
func targetDetail(err error) string {
	var targetErr *service.TargetError
	switch {
	case errors.Is(err, validator.ErrSchemeDenied) && errors.As(err, &targetErr):
		return "Target URL scheme must be one of: " + strings.Join(targetErr.AllowedSchemes, ", ")
	case errors.Is(err, validator.ErrBlockedDomain):
		return "Target URL domain is blocked"
	default:
		return "Target URL is invalid"
	}
}
