package middleware

import (
	"strconv"
	"time"

	"github.com/SergeiKhy/routeforge/internal/metrics"
	"github.com/gin-gonic/gin"
)

// Metrics счётчики и латентность HTTP-запросов. Метка path берётся из
// зарегистрированного маршрута (c.FullPath()); несовпавшие пути сводятся в одну метку.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		metrics.HTTPInflight.Inc()
		defer metrics.HTTPInflight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method
		status := strconv.Itoa(c.Writer.Status())

		metrics.HTTPRequests.WithLabelValues(method, path, status).Inc()
		metrics.HTTPLatency.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}
