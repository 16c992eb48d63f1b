package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
)

// FeatureGate is the part of the subscription service the gates need.
type FeatureGate interface {
	RequireFeature(ctx context.Context, userID, feature string) error
	RequireTier(ctx context.Context, userID, minTier string) error
}

// RequireFeature rejects the request with upgrade details when the user's
// monthly quota for feature is spent. Usage is recorded by the handler on success.
func RequireFeature(g FeatureGate, feature string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := g.RequireFeature(c.Request.Context(), c.GetString("user_id"), feature); err != nil {
			abortErr(c, err)
			return
		}
		c.Next()
	}
}

func RequireTier(g FeatureGate, minTier string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := g.RequireTier(c.Request.Context(), c.GetString("user_id"), minTier); err != nil {
			abortErr(c, err)
			return
		}
		c.Next()
	}
}
