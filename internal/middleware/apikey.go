package middleware

import (
	"bytes"
	"errors"
	"io"
	"net/http"

	"github.com/SergeiKhy/routeforge/internal/config"
	"github.com/SergeiKhy/routeforge/internal/models"
	"github.com/SergeiKhy/routeforge/internal/signature"
	"github.com/gin-gonic/gin"
)

const (
	// HeaderKeyID идентификатор ключа
	HeaderKeyID = "X-RF-Key"
	// HeaderSignature hex HMAC-SHA256 тела запроса секретом ключа
	HeaderSignature = "X-RF-Sign"

	userIDKey = "user_id"
	keyIDKey  = "api_key_id"

	maxSignedBody = 1 << 20
)

// APIKey middleware аутентификации запросов управления по подписи тела.
// Если ключи не настроены, все запросы выполняются от имени demo-пользователя.
type APIKey struct {
	keys       map[string]config.APIKey
	demoUserID int64
}

// NewAPIKey создаёт новый API key middleware
func NewAPIKey(keys map[string]config.APIKey, demoUserID int64) *APIKey {
	return &APIKey{keys: keys, demoUserID: demoUserID}
}

// Enabled true, если настроен хотя бы один ключ
func (ak *APIKey) Enabled() bool {
	return len(ak.keys) > 0
}

// Middleware возвращает Gin middleware handler для API key аутентификации
func (ak *APIKey) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ak.Enabled() {
			c.Set(userIDKey, ak.demoUserID)
			c.Next()
			return
		}

		keyID := c.GetHeader(HeaderKeyID)
		sig := c.GetHeader(HeaderSignature)
		if keyID == "" || sig == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
				Error:  models.CodeHMACRequired,
				Detail: "X-RF-Key and X-RF-Sign headers are required",
			})
			return
		}

		body, err := readBody(c)
		if err != nil {
			status := http.StatusBadRequest
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				status = http.StatusRequestEntityTooLarge
			}
			c.AbortWithStatusJSON(status, models.ErrorResponse{
				Error:  models.CodeInvalidRequest,
				Detail: "unable to read request body",
			})
			return
		}

		key, ok := ak.keys[keyID]
		if !ok || !signature.Verify(key.Secret, body, sig) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
				Error:  models.CodeHMACInvalid,
				Detail: "signature does not match",
			})
			return
		}

		// Устанавливаем значения в контекст для последующих handlers
		c.Set(userIDKey, key.UserID)
		c.Set(keyIDKey, keyID)

		c.Next()
	}
}

// readBody вычитывает тело и подменяет его копией для следующих handlers
func readBody(c *gin.Context) ([]byte, error) {
	if c.Request.Body == nil {
		return nil, nil
	}
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxSignedBody))
	if err != nil {
		return nil, err
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(body))
	return body, nil
}

// UserIDFrom возвращает пользователя, установленного APIKey middleware
func UserIDFrom(c *gin.Context) (int64, bool) {
	v, exists := c.Get(userIDKey)
	if !exists {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}

// KeyIDFrom возвращает идентификатор ключа, которым подписан запрос
func KeyIDFrom(c *gin.Context) (string, bool) {
	v, exists := c.Get(keyIDKey)
	if !exists {
		return "", false
	}
	id, ok := v.(string)
	return id, ok
}
