// Package scheduler runs the periodic maintenance jobs of the API process.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/tailorjob/backend/internal/metrics"
	"github.com/tailorjob/backend/internal/services"
)

const (
	MonitorSpec    = "@every 10m"
	PurgeSpec      = "@every 24h"
	RequeueSpec    = "@every 1h"
	QueueGaugeSpec = "@every 1m"

	defaultStuckAfter   = 30 * time.Minute
	defaultRequeueLimit = 100
)

type HealthChecker interface {
	RunChecks(ctx context.Context) *services.HealthReport
}

type MatchPurger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

type CVRequeuer interface {
	RequeueStuck(ctx context.Context, olderThan time.Time, limit int) (int, error)
}

type QueueLen interface {
	Len(ctx context.Context) (int64, error)
}

// Jobs lists what the scheduler drives. Nil members are not scheduled.
type Jobs struct {
	Monitor HealthChecker
	Matches MatchPurger
	CVs     CVRequeuer
	Queues  map[string]QueueLen

	// StuckAfter is how long a CV may sit in uploaded or error before it is requeued.
	StuckAfter   time.Duration
	RequeueLimit int
}

// Scheduler wraps robfig/cron.
type Scheduler struct {
	cron *cron.Cron
	jobs Jobs
	log  *logrus.Entry
	now  func() time.Time
}

func New(jobs Jobs, log *logrus.Logger) *Scheduler {
	if jobs.StuckAfter <= 0 {
		jobs.StuckAfter = defaultStuckAfter
	}
	if jobs.RequeueLimit <= 0 {
		jobs.RequeueLimit = defaultRequeueLimit
	}
	cl := cron.PrintfLogger(log)
	return &Scheduler{
		cron: cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		jobs: jobs,
		log:  log.WithField("component", "scheduler"),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Start registers the configured jobs and starts the cron loop. ctx bounds every run.
func (s *Scheduler) Start(ctx context.Context) error {
	type entry struct {
		spec string
		name string
		run  func(context.Context)
	}
	var entries []entry
	if s.jobs.Monitor != nil {
		entries = append(entries, entry{MonitorSpec, "paypal_monitor", s.runMonitor})
	}
	if s.jobs.Matches != nil {
		entries = append(entries, entry{PurgeSpec, "purge_expired_matches", s.runPurge})
	}
	if s.jobs.CVs != nil {
		entries = append(entries, entry{RequeueSpec, "requeue_stuck_cvs", s.runRequeue})
	}
	if len(s.jobs.Queues) > 0 {
		entries = append(entries, entry{QueueGaugeSpec, "queue_length", s.runQueueGauge})
	}

	for _, e := range entries {
		run := e.run
		if _, err := s.cron.AddFunc(e.spec, func() { run(ctx) }); err != nil {
			return fmt.Errorf("schedule %s: %w", e.name, err)
		}
		s.log.WithFields(logrus.Fields{"job": e.name, "spec": e.spec}).Info("job scheduled")
	}
	s.cron.Start()
	return nil
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) runMonitor(ctx context.Context) {
	r := s.jobs.Monitor.RunChecks(ctx)
	if r == nil {
		return
	}
	s.log.WithFields(logrus.Fields{
		"payments_total": r.Payments.Total,
		"webhooks_total": r.Webhooks.Total,
		"churn_rate":     r.Subscriptions.ChurnRate,
		"active_subs":    r.Subscriptions.Active,
		"cancelled_subs": r.Subscriptions.Cancelled,
	}).Debug("paypal monitor run")
}

func (s *Scheduler) runPurge(ctx context.Context) {
	n, err := s.jobs.Matches.PurgeExpired(ctx, s.now())
	if err != nil {
		s.log.WithError(err).Error("purge expired matches failed")
		return
	}
	s.log.WithField("deleted", n).Info("expired matches purged")
}

func (s *Scheduler) runRequeue(ctx context.Context) {
	n, err := s.jobs.CVs.RequeueStuck(ctx, s.now().Add(-s.jobs.StuckAfter), s.jobs.RequeueLimit)
	if err != nil {
		s.log.WithError(err).Error("requeue stuck cvs failed")
		return
	}
	if n > 0 {
		s.log.WithField("requeued", n).Info("stuck cvs requeued")
	}
}

func (s *Scheduler) runQueueGauge(ctx context.Context) {
	for name, q := range s.jobs.Queues {
		n, err := q.Len(ctx)
		if err != nil {
			metrics.RedisErrors.Inc()
			s.log.WithError(err).WithField("queue", name).Warn("queue length unavailable")
			continue
		}
		metrics.QueueLength.WithLabelValues(name).Set(float64(n))
	}
}
