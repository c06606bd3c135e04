package handler

import (
	"errors"
	"net/http"

	"github.com/SergeiKhy/routeforge/internal/models"
	"github.com/SergeiKhy/routeforge/internal/repository"
	"github.com/SergeiKhy/routeforge/internal/service"
	"github.com/SergeiKhy/routeforge/internal/validator"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type apiError struct {
	status int
	code   string
	detail string
}

// classify сопоставляет ошибку сервиса HTTP-статусу и коду ответа
func classify(err error) apiError {
	switch {
	case errors.Is(err, repository.ErrRouteNotFound):
		return apiError{http.StatusNotFound, models.CodeNotFound, "Route not found"}
	case errors.Is(err, repository.ErrReleaseNotFound):
		return apiError{http.StatusNotFound, models.CodeNotFound, "Release not found"}
	case errors.Is(err, repository.ErrWebhookNotFound):
		return apiError{http.StatusNotFound, models.CodeNotFound, "Webhook not found"}
	case errors.Is(err, repository.ErrSlugExists):
		return apiError{http.StatusConflict, models.CodeConflict, "Slug already exists"}
	case errors.Is(err, service.ErrInvalidTargetURL):
		return apiError{http.StatusUnprocessableEntity, models.CodeInvalidTargetURL, err.Error()}
	case errors.Is(err, validator.ErrInvalidSlug):
		return apiError{http.StatusUnprocessableEntity, models.CodeInvalidSlug, "Slug must be 2-128 lowercase letters, digits or dashes"}
	case errors.Is(err, service.ErrForbidden):
		return apiError{http.StatusForbidden, models.CodeForbidden, ""}
	case errors.Is(err, service.ErrInvalidRequest):
		return apiError{http.StatusBadRequest, models.CodeInvalidRequest, err.Error()}
	}
	return apiError{http.StatusInternalServerError, models.CodeInternal, "unexpected server error"}
}

// respondError пишет ошибку в едином формате; 5xx логируются с причиной
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	e := classify(err)
	if e.status >= http.StatusInternalServerError {
		logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
	c.JSON(e.status, models.ErrorResponse{Error: e.code, Detail: e.detail})
}

func badRequest(c *gin.Context, detail string) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Error:  models.CodeInvalidRequest,
		Detail: detail,
	})
}
