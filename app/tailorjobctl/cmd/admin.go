package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tailorjob/backend/config"
	"github.com/tailorjob/backend/internal/cache"
	"github.com/tailorjob/backend/internal/logger"
	"github.com/tailorjob/backend/internal/queue"
	mongorepo "github.com/tailorjob/backend/internal/repositories/mongo"
	pgrepo "github.com/tailorjob/backend/internal/repositories/postgres"
	"github.com/tailorjob/backend/internal/services"
)

var errUnhealthy = errors.New("subscription health checks reported problems")

type TierGranter interface {
	GrantTier(ctx context.Context, userID, tier string) error
}

type CVRequeuer interface {
	RequeueStuck(ctx context.Context, olderThan time.Time, limit int) (int, error)
}

type MatchCleaner interface {
	DeleteForUser(ctx context.Context, userID string) (int64, error)
	DeleteAll(ctx context.Context) (int64, error)
}

type HealthChecker interface {
	RunChecks(ctx context.Context) *services.HealthReport
}

// Admin carries out the maintenance commands.
type Admin struct {
	Subs    TierGranter
	CVs     CVRequeuer
	Matches MatchCleaner
	Monitor HealthChecker
	Out     io.Writer

	now   func() time.Time
	close func()
}

// newAdmin is swapped in tests.
var newAdmin = connect

func (a *Admin) GrantTier(ctx context.Context, userID, tier string) error {
	if userID == "" || tier == "" {
		return errors.New("--user and --tier are required")
	}
	if err := a.Subs.GrantTier(ctx, userID, tier); err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "granted tier %s to user %s\n", tier, userID)
	return nil
}

func (a *Admin) RequeueFailedCVs(ctx context.Context, olderThan time.Duration, limit int) error {
	n, err := a.CVs.RequeueStuck(ctx, a.clock().Add(-olderThan), limit)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "requeued %d cvs\n", n)
	return nil
}

// ClearMatches drops stored analyses for one user, or for everyone when userID is empty.
func (a *Admin) ClearMatches(ctx context.Context, userID string) error {
	var (
		n   int64
		err error
	)
	if userID != "" {
		n, err = a.Matches.DeleteForUser(ctx, userID)
	} else {
		n, err = a.Matches.DeleteAll(ctx)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "deleted %d match analyses\n", n)
	return nil
}

// CheckSubscriptions prints the PayPal health report and fails when any check is unhealthy.
func (a *Admin) CheckSubscriptions(ctx context.Context) error {
	r := a.Monitor.RunChecks(ctx)
	out, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(a.Out, string(out))

	problems := r.Problems()
	for _, p := range problems {
		fmt.Fprintln(a.Out, "problem:", p)
	}
	if len(problems) > 0 {
		return errUnhealthy
	}
	return nil
}

func (a *Admin) Close() {
	if a.close != nil {
		a.close()
	}
}

func (a *Admin) clock() time.Time {
	if a.now != nil {
		return a.now()
	}
	return time.Now().UTC()
}

// connect opens Postgres and Redis; Mongo is optional and only feeds the webhook checks.
func connect(ctx context.Context, log *logrus.Logger) (*Admin, error) {
	if err := config.InitPostgres(); err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	if err := config.InitRedis(); err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	plans, err := config.LoadPlans()
	if err != nil {
		return nil, err
	}

	var events mongorepo.WebhookEventRepository
	if os.Getenv("MONGO_URI") != "" {
		if err := config.InitMongo(); err != nil {
			log.WithError(err).Warn("mongo unavailable; webhook checks skipped")
		} else {
			events = mongorepo.NewWebhookEventRepo(config.MongoDatabase(), 0)
		}
	}

	db := config.PostgresDB
	billing := pgrepo.NewBillingRepo(db)
	profiles := pgrepo.NewProfileRepo(db)
	matches := pgrepo.NewMatchRepo(db)

	parseQueue, err := queue.NewRedisJobQueue(config.RedisClient, queue.CVParseConfig())
	if err != nil {
		return nil, err
	}
	subs := services.NewSubscriptionService(billing, profiles, plans, cache.NewRedisCache(config.RedisClient), logger.Component(log, "subscriptions"))
	// requeueing never touches object storage
	cvs := services.NewCVService(pgrepo.NewCVRepo(db), pgrepo.NewNotificationRepo(db), nil, parseQueue, subs, logger.Component(log, "cv"))

	return &Admin{
		Subs:    subs,
		CVs:     cvs,
		Matches: matches,
		Monitor: services.NewMonitorService(billing, events, logger.Component(log, "monitor")),
		Out:     os.Stdout,
		close: func() {
			_ = config.RedisClient.Close()
			if config.MongoClient != nil {
				_ = config.MongoClient.Disconnect(ctx)
			}
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		},
	}, nil
}
