package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tailorjob/backend/internal/ratelimit"
	"github.com/tailorjob/backend/internal/utils"
)

// RateLimit applies the limiter per user, or per client IP before auth.
func RateLimit(l *ratelimit.FixedWindowLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if l == nil {
			c.Next()
			return
		}
		key := "ip:" + c.ClientIP()
		if v, ok := c.Get("user_id"); ok {
			if s, ok := v.(string); ok && s != "" {
				key = "user:" + s
			}
		}

		d := l.Allow(c.Request.Context(), key)
		c.Header("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
		if !d.Allowed {
			if wait := time.Until(d.ResetAt); wait > 0 {
				c.Header("Retry-After", strconv.Itoa(int(wait.Seconds())+1))
			}
			abort(c, http.StatusTooManyRequests, utils.CodeTooManyRequests, "Rate limit exceeded. Please try again later.")
			return
		}
		c.Next()
	}
}
