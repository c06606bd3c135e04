package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// ClientIP первый непустой адрес из X-Forwarded-For, иначе адрес соединения.
// Доверенные прокси не проверяются.
func ClientIP(c *gin.Context) string {
	if xff := c.GetHeader("X-Forwarded-For"); xff != "" {
		for _, part := range strings.Split(xff, ",") {
			if ip := strings.TrimSpace(part); ip != "" {
				return ip
			}
		}
	}
	if ip := c.RemoteIP(); ip != "" {
		return ip
	}
	return "unknown"
}
