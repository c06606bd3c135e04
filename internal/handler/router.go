package handler

import (
	"net/http"
	"time"

	"github.com/SergeiKhy/routeforge/internal/middleware"
	"github.com/SergeiKhy/routeforge/internal/models"
	"github.com/SergeiKhy/routeforge/internal/service"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Services зависимости обработчиков
type Services struct {
	Routes    service.RouteService
	Redirects service.RedirectService
	Releases  service.ReleaseService
	Webhooks  service.WebhookService
	Queue     QueueStats
}

// Limits ограничители запросов и аутентификация
type Limits struct {
	Bucket *middleware.RateLimiter     // token bucket на /r/:slug
	Paths  *middleware.PathRateLimiter // скользящее окно по префиксам; nil отключает
	APIKey *middleware.APIKey
}

func NewRouter(
	services Services,
	limits Limits,
	allowedOrigins []string,
	logger *zap.Logger,
) *gin.Engine {
	router := gin.New()

	router.Use(
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Recovery(logger),
		middleware.Metrics(),
	)
	if limits.Paths != nil {
		router.Use(limits.Paths.Middleware())
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: models.CodeNotFound})
	})

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Редирект: только token bucket, без аутентификации
	redirectHandler := NewRedirectHandler(services.Redirects, logger)
	redirect := router.Group("/r")
	if limits.Bucket != nil {
		redirect.Use(limits.Bucket.Middleware())
	}
	redirect.GET("/:slug", redirectHandler.Redirect)
	redirect.HEAD("/:slug", redirectHandler.Redirect)

	// API v.1
	v1 := router.Group("/api/v1")
	v1.Use(corsMiddleware(allowedOrigins))
	{
		v1.GET("/health", HealthCheck(services.Queue))

		if limits.APIKey != nil {
			v1.Use(limits.APIKey.Middleware())
		}

		routeHandler := NewRouteHandler(services.Routes, logger)
		v1.POST("/routes", routeHandler.CreateRoute)
		v1.GET("/routes", routeHandler.ListRoutes)
		v1.DELETE("/routes/:slug", routeHandler.DeleteRoute)
		v1.GET("/routes/:slug/stats", routeHandler.GetStats)
		v1.GET("/routes/:slug/stats/daily", routeHandler.GetDailyStats)
		v1.GET("/routes/:slug/referrers", routeHandler.GetReferrers)

		releaseHandler := NewReleaseHandler(services.Releases, logger)
		v1.POST("/releases", releaseHandler.CreateRelease)
		v1.GET("/releases/:id", releaseHandler.GetRelease)

		webhookHandler := NewWebhookHandler(services.Webhooks, logger)
		v1.POST("/webhooks", webhookHandler.CreateWebhook)
		v1.GET("/webhooks", webhookHandler.ListWebhooks)
		v1.POST("/webhooks/:id/toggle", webhookHandler.ToggleWebhook)
		v1.DELETE("/webhooks/:id", webhookHandler.DeleteWebhook)
	}

	return router
}

// corsMiddleware пустой список источников разрешает любой origin
func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Content-Type", middleware.HeaderKeyID, middleware.HeaderSignature, middleware.RequestIDHeader},
		ExposeHeaders: []string{middleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	if len(allowedOrigins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = allowedOrigins
	}
	return cors.New(cfg)
}
