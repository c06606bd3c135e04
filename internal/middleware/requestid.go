package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	requestIDKey = "request_id"
	// RequestIDHeader заголовок корреляции запросов
	RequestIDHeader = "X-Request-ID"
)

// RequestID переиспользует входящий X-Request-ID или генерирует UUIDv4
// и возвращает его в ответе
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(RequestIDHeader)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Set(requestIDKey, rid)
		c.Writer.Header().Set(RequestIDHeader, rid)
		c.Next()
	}
}

// RequestIDFrom идентификатор текущего запроса или пустая строка
func RequestIDFrom(c *gin.Context) string {
	return c.GetString(requestIDKey)
}
