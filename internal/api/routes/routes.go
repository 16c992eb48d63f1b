package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tailorjob/backend/config"
	"github.com/tailorjob/backend/internal/api/handlers"
	"github.com/tailorjob/backend/internal/api/middleware"
	"github.com/tailorjob/backend/internal/metrics"
	"github.com/tailorjob/backend/internal/ratelimit"
)

type Deps struct {
	JWT         middleware.JWTConfig
	MetricsUser string
	MetricsHash string
	Limiter     *ratelimit.FixedWindowLimiter
	Gate        middleware.FeatureGate

	System   *handlers.SystemHandler
	Profile  *handlers.ProfileHandler
	CV       *handlers.CVHandler
	Jobs     *handlers.JobHandler
	Matching *handlers.MatchingHandler
	Tailor   *handlers.TailorHandler
	Payments *handlers.PaymentHandler
	WS       *handlers.WSHandler
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	r.GET("/", d.System.Root)
	r.GET("/health", d.System.Health)
	r.GET("/metrics", middleware.MetricsAuth(d.MetricsUser, d.MetricsHash),
		gin.WrapH(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))

	// PayPal calls this without a user token.
	r.POST("/api/payments/webhooks/paypal", d.Payments.PayPalWebhook)

	api := r.Group("/api")
	api.Use(middleware.JWTAuth(d.JWT), middleware.RateLimit(d.Limiter))

	api.GET("/profile/me", d.Profile.Me)

	cv := api.Group("/cv")
	cv.POST("/upload", middleware.RequireFeature(d.Gate, "cv_upload"), d.CV.Upload)
	cv.GET("/status/:job_id", d.CV.Status)
	cv.GET("", d.CV.List)
	cv.GET("/notifications", d.CV.Notifications)
	cv.POST("/notifications/:notification_id/read", d.CV.MarkNotificationRead)
	cv.DELETE("/notifications/:notification_id", d.CV.DeleteNotification)
	cv.GET("/:cv_id", d.CV.Get)
	cv.POST("/:cv_id/reparse", d.CV.Reparse)
	cv.POST("/:cv_id/primary", d.CV.SetPrimary)
	cv.GET("/:cv_id/download", d.CV.Download)
	cv.DELETE("/:cv_id", d.CV.Delete)

	jobs := api.Group("/jobs")
	jobs.POST("", d.Jobs.Create)
	jobs.POST("/scrape", d.Jobs.Scrape)
	jobs.GET("", d.Jobs.List)
	jobs.GET("/:job_id", d.Jobs.Get)
	jobs.PATCH("/:job_id", d.Jobs.Update)
	jobs.PUT("/:job_id", d.Jobs.Update)
	jobs.DELETE("/:job_id", d.Jobs.Delete)

	matching := api.Group("/matching")
	matching.POST("/analyze", d.Matching.Analyze)
	matching.GET("/score/:cv_id/:job_id", d.Matching.Score)
	matching.DELETE("/score/:cv_id/:job_id", d.Matching.DeleteScore)
	matching.GET("/rank/:cv_id", middleware.RequireTier(d.Gate, config.TierBasic), d.Matching.Rank)

	tailor := api.Group("/tailor")
	tailor.POST("/:cv_id/:job_id", middleware.RequireFeature(d.Gate, "tailor_cv"), d.Tailor.Start)
	tailor.GET("/:cv_id/:job_id", d.Tailor.Get)
	tailor.GET("/:cv_id/:job_id/status", d.Tailor.Status)
	tailor.GET("/:cv_id/:job_id/revisions", d.Tailor.Revisions)

	chat := api.Group("/chat")
	chat.POST("/:cv_id/:job_id", d.Tailor.Chat)
	chat.GET("/:cv_id/:job_id", d.Tailor.ChatHistory)

	pay := api.Group("/payments")
	pay.POST("/subscriptions/create", d.Payments.CreateSubscription)
	pay.POST("/subscriptions/activate", d.Payments.ActivateSubscription)
	pay.GET("/subscriptions/me", d.Payments.MySubscription)
	pay.POST("/subscriptions/cancel", d.Payments.CancelSubscription)
	pay.POST("/subscriptions/upgrade", d.Payments.Upgrade)
	pay.GET("/usage", d.Payments.Usage)

	admin := api.Group("/admin", middleware.RequireAdmin())
	admin.GET("/paypal/health", d.System.PayPalHealth)

	// WebSocket; the token may come from ?token=
	ws := r.Group("/ws", middleware.JWTAuth(d.JWT))
	ws.GET("/tailor/:cv_id/:job_id", d.WS.TailorWS)
}
