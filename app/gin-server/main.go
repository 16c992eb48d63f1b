package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/tailorjob/backend/config"
	"github.com/tailorjob/backend/internal/api/handlers"
	"github.com/tailorjob/backend/internal/api/middleware"
	"github.com/tailorjob/backend/internal/api/routes"
	"github.com/tailorjob/backend/internal/cache"
	"github.com/tailorjob/backend/internal/cvparse"
	"github.com/tailorjob/backend/internal/logger"
	"github.com/tailorjob/backend/internal/matcher"
	"github.com/tailorjob/backend/internal/providers/llm"
	"github.com/tailorjob/backend/internal/providers/paypal"
	"github.com/tailorjob/backend/internal/queue"
	"github.com/tailorjob/backend/internal/ratelimit"
	mongorepo "github.com/tailorjob/backend/internal/repositories/mongo"
	pgrepo "github.com/tailorjob/backend/internal/repositories/postgres"
	"github.com/tailorjob/backend/internal/scheduler"
	"github.com/tailorjob/backend/internal/scraper"
	"github.com/tailorjob/backend/internal/services"
	"github.com/tailorjob/backend/internal/storage"
	"github.com/tailorjob/backend/internal/tailor"
	"github.com/tailorjob/backend/internal/workers"
)

func main() {
	_ = godotenv.Load()
	log := logger.New()

	settings, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := config.InitPostgres(); err != nil {
		log.WithError(err).Fatal("PostgreSQL init error")
	}
	log.Info("PostgreSQL connected")
	if settings.AutoMigrate {
		if err := config.RunMigrations(config.PostgresDB); err != nil {
			log.WithError(err).Fatal("migrations failed")
		}
	}

	if err := config.InitRedis(); err != nil {
		log.WithError(err).Fatal("Redis init error")
	}
	log.Info("Redis connected")

	if err := config.InitMongo(); err != nil {
		log.WithError(err).Fatal("MongoDB init error")
	}
	if err := config.EnsureMongoIndexes(); err != nil {
		log.WithError(err).Warn("mongo indexes not ensured")
	}
	log.Info("MongoDB connected")

	plans, err := config.LoadPlans()
	if err != nil {
		log.WithError(err).Fatal("plan catalog invalid")
	}

	store, err := newStore(ctx, settings)
	if err != nil {
		log.WithError(err).Fatal("storage init error")
	}
	defer store.Close()

	provider := newProvider(ctx, settings, log)
	if provider != nil {
		defer provider.Close()
	}

	var paypalAPI paypal.API
	if settings.PayPalConfigured() {
		paypalAPI = paypal.NewClient(settings.PayPalBaseURL, settings.PayPalClientID, settings.PayPalSecret, settings.PayPalWebhookID)
	} else {
		log.Warn("PayPal credentials not set; payments disabled")
	}

	// repositories
	db := config.PostgresDB
	cvRepo := pgrepo.NewCVRepo(db)
	jobRepo := pgrepo.NewJobRepo(db)
	matchRepo := pgrepo.NewMatchRepo(db)
	tailorRepo := pgrepo.NewTailorRepo(db)
	chatRepo := pgrepo.NewChatRepo(db)
	notificationRepo := pgrepo.NewNotificationRepo(db)
	billingRepo := pgrepo.NewBillingRepo(db)
	profileRepo := pgrepo.NewProfileRepo(db)
	webhookEvents := mongorepo.NewWebhookEventRepo(config.MongoDatabase(), settings.WebhookRetention)

	// queues and caches
	rdb := config.RedisClient
	redisCache := cache.NewRedisCache(rdb)
	parseQueue, err := queue.NewRedisJobQueue(rdb, queue.CVParseConfig())
	if err != nil {
		log.WithError(err).Fatal("cv parse queue init error")
	}
	tailorQueue, err := queue.NewRedisJobQueue(rdb, queue.AITailorConfig())
	if err != nil {
		log.WithError(err).Fatal("tailor queue init error")
	}
	publisher := queue.NewRedisPublisher(rdb)

	// AI components tolerate a nil provider and fall back to heuristics.
	parser := cvparse.NewParser(provider, logger.Component(log, "cvparse"))
	analyzer := matcher.New(provider, logger.Component(log, "matcher"))
	extractor := matcher.NewRequirementsExtractor(provider, logger.Component(log, "requirements"))
	tailorer := tailor.New(provider, logger.Component(log, "tailor"))
	jobScraper := scraper.New(provider, redisCache, logger.Component(log, "scraper"))

	// services
	subs := services.NewSubscriptionService(billingRepo, profileRepo, plans, redisCache, logger.Component(log, "subscriptions"))
	payments := services.NewPaymentService(paypalAPI, subs, profileRepo, plans, logger.Component(log, "payments"))
	webhooks := services.NewWebhookService(paypalAPI, webhookEvents, billingRepo, subs, logger.Component(log, "webhooks"))
	monitor := services.NewMonitorService(billingRepo, webhookEvents, logger.Component(log, "monitor"))
	cvSvc := services.NewCVService(cvRepo, notificationRepo, store, parseQueue, subs, logger.Component(log, "cv"))
	jobSvc := services.NewJobService(jobRepo, jobScraper, extractor, parser, logger.Component(log, "jobs"))
	matchingSvc := services.NewMatchingService(cvRepo, jobRepo, matchRepo, analyzer, subs, logger.Component(log, "matching"))
	tailorSvc := services.NewTailorService(cvRepo, jobRepo, tailorRepo, tailorQueue, subs, logger.Component(log, "tailoring"))
	chatSvc := services.NewChatService(tailorRepo, chatRepo, jobRepo, tailorer, publisher, logger.Component(log, "chat"))
	profileSvc := services.NewProfileService(profileRepo, subs)

	// workers
	parseWorker := &workers.CVParseWorker{
		CVs:           cvRepo,
		Notifications: notificationRepo,
		Store:         store,
		Parser:        parser,
		Logger:        log,
	}
	if err := parseWorker.Start(ctx, parseQueue, settings.WorkerConcurrency); err != nil {
		log.WithError(err).Fatal("cv parse worker failed to start")
	}
	tailorWorker := &workers.TailorWorker{
		CVs:       cvRepo,
		Jobs:      jobRepo,
		Matches:   matchRepo,
		Tailored:  tailorRepo,
		Matcher:   analyzer,
		Tailorer:  tailorer,
		Cache:     redisCache,
		Publisher: publisher,
		Logger:    log,
	}
	if err := tailorWorker.Start(ctx, tailorQueue, settings.WorkerConcurrency); err != nil {
		log.WithError(err).Fatal("tailor worker failed to start")
	}

	sched := scheduler.New(scheduler.Jobs{
		Monitor: monitor,
		Matches: matchRepo,
		CVs:     cvSvc,
		Queues: map[string]scheduler.QueueLen{
			queue.TypeCVParse:  parseQueue,
			queue.TypeAITailor: tailorQueue,
		},
	}, log)
	if err := sched.Start(ctx); err != nil {
		log.WithError(err).Fatal("scheduler failed to start")
	}
	defer sched.Stop()

	limiter, err := ratelimit.NewFixedWindowLimiter(rdb, "ratelimit", settings.RateLimitPerMinute, time.Minute)
	if err != nil {
		log.WithError(err).Fatal("rate limiter init error")
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.WithError(err).Fatal("postgres handle")
	}
	pingers := map[string]handlers.Pinger{
		"postgres": handlers.PingFunc(sqlDB.PingContext),
		"redis":    handlers.PingFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() }),
		"mongo":    handlers.PingFunc(func(ctx context.Context) error { return config.MongoClient.Ping(ctx, nil) }),
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(log), middleware.Metrics(), middleware.CORS(settings.CORSOrigins))

	routes.RegisterRoutes(r, routes.Deps{
		JWT: middleware.JWTConfig{
			Secret:   settings.JWTSecret,
			Issuer:   settings.JWTIssuer,
			Audience: settings.JWTAudience,
		},
		MetricsUser: settings.MetricsUser,
		MetricsHash: settings.MetricsPasswordHash,
		Limiter:     limiter,
		Gate:        subs,

		System:   handlers.NewSystemHandler(settings.APITitle, settings.APIVersion, pingers, monitor),
		Profile:  handlers.NewProfileHandler(profileSvc),
		CV:       handlers.NewCVHandler(cvSvc),
		Jobs:     handlers.NewJobHandler(jobSvc),
		Matching: handlers.NewMatchingHandler(matchingSvc),
		Tailor:   handlers.NewTailorHandler(tailorSvc, chatSvc),
		Payments: handlers.NewPaymentHandler(payments, webhooks),
		WS:       handlers.NewWSHandler(cvSvc, jobSvc, chatSvc, publisher, settings.CORSOrigins, logger.Component(log, "ws")),
	})

	srv := &http.Server{Addr: ":" + settings.Port, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		log.WithFields(logrus.Fields{"port": settings.Port, "version": settings.APIVersion}).Info("api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	_ = rdb.Close()
	_ = config.MongoClient.Disconnect(shutdownCtx)
	_ = sqlDB.Close()
}

func newStore(ctx context.Context, s *config.Settings) (storage.Store, error) {
	if s.StorageBackend == "minio" {
		return storage.NewMinioStore(ctx, s.MinioEndpoint, s.MinioAccessKey, s.MinioSecretKey, s.MinioBucket, s.MinioUseSSL)
	}
	return storage.NewGCSStore(ctx, s.GCSBucket)
}

// newProvider returns nil when no model is configured or it cannot be reached.
func newProvider(ctx context.Context, s *config.Settings, log *logrus.Logger) llm.Provider {
	var (
		p   llm.Provider
		err error
	)
	switch s.LLMBackend {
	case "gemini":
		switch {
		case s.GeminiAPIKey != "":
			p, err = llm.NewGemini(ctx, s.GeminiAPIKey, s.GeminiModel, s.EmbeddingModel)
		case s.VertexProject != "":
			// application default credentials against Vertex AI
			p, err = llm.NewGeminiVertex(ctx, s.VertexProject, s.VertexLocation, s.GeminiModel, s.EmbeddingModel)
		default:
			log.Warn("GEMINI_API_KEY not set; AI features use fallbacks")
			return nil
		}
	case "vertex":
		p, err = llm.NewVertexGemini(ctx, s.VertexProject, s.VertexLocation, s.GeminiModel, s.EmbeddingModel)
	default:
		return nil
	}
	if err != nil {
		log.WithError(err).Warn("llm provider unavailable; AI features use fallbacks")
		return nil
	}
	log.WithField("model", p.Model()).Info("llm provider ready")
	return p
}
