package handler

import (
	"net/http"

	"github.com/SergeiKhy/routeforge/internal/worker"
	"github.com/gin-gonic/gin"
)

const serviceName = "routeforge"

// QueueStats источник состояния очереди задач
type QueueStats interface {
	Stats() worker.Stats
}

type HealthResponse struct {
	Status  string       `json:"status"`
	Service string       `json:"service"`
	Queue   worker.Stats `json:"queue"`
}

// HealthCheck godoc
// @Summary Health check
// @Tags system
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /api/v1/health [get]
func HealthCheck(queue QueueStats) gin.HandlerFunc {
	return func(c *gin.Context) {
		resp := HealthResponse{Status: "ok", Service: serviceName}
		if queue != nil {
			resp.Queue = queue.Stats()
		}
		c.JSON(http.StatusOK, resp)
	}
}
