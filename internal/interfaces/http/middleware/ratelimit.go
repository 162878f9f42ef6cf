// Package middleware 提供 HTTP 中间件
package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mygads/genovaai-server-sub000/internal/infrastructure/persistence/redis"
	"github.com/mygads/genovaai-server-sub000/pkg/logger"
)

// RateLimit 按用户限流，限流器故障时放行
func RateLimit(limiter *redis.RateLimiter, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("user_id")
		if userID == "" || limiter == nil {
			c.Next()
			return
		}

		key := redis.BuildUserRateLimitKey(userID, c.FullPath())
		allowed, err := limiter.Allow(c.Request.Context(), key, limit, window)
		if err != nil {
			logger.Warn(c.Request.Context(), "rate limiter unavailable", "error", err)
			c.Next()
			return
		}
		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code":     429,
				"message":  "too many requests, slow down",
				"trace_id": c.GetString("trace_id"),
			})
			return
		}

		c.Next()
	}
}
