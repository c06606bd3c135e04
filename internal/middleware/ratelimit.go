package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/SergeiKhy/routeforge/internal/metrics"
	"github.com/SergeiKhy/routeforge/internal/models"
	"github.com/SergeiKhy/routeforge/internal/ratelimit"
	"github.com/gin-gonic/gin"
)

// RateLimiter token bucket по IP клиента. Подключается только к маршрутам редиректа.
type RateLimiter struct {
	buckets *ratelimit.BucketStore
}

// NewRateLimiter создаёт middleware поверх готового хранилища bucket.
// Очистку неактивных bucket запускает вызывающий (BucketStore.RunEviction).
func NewRateLimiter(buckets *ratelimit.BucketStore) *RateLimiter {
	return &RateLimiter{buckets: buckets}
}

// Allow списывает токен из bucket данного IP
func (rl *RateLimiter) Allow(ip string) bool {
	ok, _ := rl.buckets.Allow(ip)
	return ok
}

// Middleware возвращает Gin middleware handler для rate limiting
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, after := rl.buckets.Allow(ClientIP(c))
		if !ok {
			metrics.Redirects.WithLabelValues(metrics.OutcomeRateLimited).Inc()
			if after > 0 {
				c.Header("Retry-After", strconv.Itoa(int(after.Seconds())))
			}
			abortRateLimited(c)
			return
		}

		c.Next()
	}
}

// PathRateLimiter скользящее окно на пару (IP, префикс пути).
// Действует только на GET, HEAD и POST под заданными префиксами.
type PathRateLimiter struct {
	limiter  *ratelimit.WindowLimiter
	prefixes []string
}

func NewPathRateLimiter(limiter *ratelimit.WindowLimiter, prefixes []string) *PathRateLimiter {
	return &PathRateLimiter{limiter: limiter, prefixes: prefixes}
}

func (pl *PathRateLimiter) match(path string) (string, bool) {
	for _, prefix := range pl.prefixes {
		if strings.HasPrefix(path, prefix) {
			return prefix, true
		}
	}
	return "", false
}

func (pl *PathRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodPost:
		default:
			c.Next()
			return
		}

		prefix, ok := pl.match(c.Request.URL.Path)
		if !ok {
			c.Next()
			return
		}

		if !pl.limiter.Allow(ClientIP(c), prefix) {
			c.Header("Retry-After", strconv.Itoa(int(pl.limiter.Window().Seconds())))
			abortRateLimited(c)
			return
		}

		c.Next()
	}
}

func abortRateLimited(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusTooManyRequests, models.ErrorResponse{
		Error:  models.CodeRateLimited,
		Detail: "Too many requests; please slow down.",
	})
}
