package ginserver

import (
	"net/http"
	"strconv"
	"time"

	gin "github.com/gin-gonic/gin"

	"staybook/internal/infra/ratelimit"
)

// RateLimitMiddleware enforces a fixed-window request limit per caller.
// Authenticated callers are keyed by user id, anonymous ones by client IP.
// A limiter error never blocks traffic; Redis being down should not take
// the booking API down with it.
func RateLimitMiddleware(limiter *ratelimit.RedisLimiter, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil || limit <= 0 {
			c.Next()
			return
		}
		subject := c.ClientIP()
		if user, ok := currentPrincipal(c); ok && user.ID != "" {
			subject = user.ID
		}
		count, retryAfter, err := limiter.Consume(c.Request.Context(), "http", subject, limit, window)
		if err != nil {
			c.Next()
			return
		}
		if count > limit {
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
