package middleware

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tailorjob/backend/internal/metrics"
	"github.com/tailorjob/backend/internal/utils"
)

// Metrics records request counts, latency and in-flight requests per route template.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		metrics.HTTPInFlight.Inc()
		start := time.Now()
		c.Next()
		metrics.HTTPInFlight.Dec()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		metrics.HTTPDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// MetricsAuth guards the scrape endpoint with basic auth against a bcrypt hash.
// An empty user disables the check.
func MetricsAuth(user, passwordHash string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if user == "" {
			c.Next()
			return
		}
		u, p, ok := c.Request.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || utils.CheckPassword(passwordHash, p) != nil {
			c.Header("WWW-Authenticate", `Basic realm="metrics"`)
			abort(c, http.StatusUnauthorized, utils.CodeUnauthorized, "unauthorized")
			return
		}
		c.Next()
	}
}
