package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/earshot-fm/earshot/internal/config"
)

// RateLimit enforces a fixed-window per-client limit backed by Redis. The
// window key expires on its own, so abandoned clients cost nothing. Redis
// failures fail open: blocking traffic because the limiter is down is worse
// than briefly not limiting it.
func RateLimit(client *redis.Client, cfg config.RateLimitConfig, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		window := time.Now().Unix() / int64(cfg.Window.Seconds())
		key := fmt.Sprintf("ratelimit:%s:%d", c.ClientIP(), window)

		count, err := client.Incr(c.Request.Context(), key).Result()
		if err != nil {
			logger.WithError(err).Error("Failed to check rate limit")
			c.Next()
			return
		}
		if count == 1 {
			client.Expire(c.Request.Context(), key, cfg.Window)
		}

		remaining := cfg.Limit - int(count)
		if remaining < 0 {
			remaining = 0
		}
		resetAt := (window + 1) * int64(cfg.Window.Seconds())

		c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(resetAt, 10))

		if int(count) > cfg.Limit {
			logger.WithFields(logrus.Fields{
				"client_ip": c.ClientIP(),
				"limit":     cfg.Limit,
			}).Warn("Rate limit exceeded")

			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": gin.H{
					"code":    "RATE_LIMIT_EXCEEDED",
					"message": "Rate limit exceeded. Please try again later.",
				},
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
