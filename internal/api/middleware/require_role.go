package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/tailorjob/backend/internal/models"
	"github.com/tailorjob/backend/internal/utils"
)

func RequireRole(allowed ...models.UserRole) gin.HandlerFunc {
	allow := map[string]struct{}{}
	for _, a := range allowed {
		if s := strings.TrimSpace(strings.ToLower(string(a))); s != "" {
			allow[s] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		role, _ := c.Get("role")
		s, _ := role.(string)
		if _, ok := allow[strings.ToLower(strings.TrimSpace(s))]; !ok {
			abort(c, http.StatusForbidden, utils.CodeForbidden, "forbidden")
			return
		}
		c.Next()
	}
}

func RequireAdmin() gin.HandlerFunc { return RequireRole(models.RoleAdmin) }
