package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tailorjob/backend/internal/cache"
	"github.com/tailorjob/backend/internal/matcher"
	"github.com/tailorjob/backend/internal/metrics"
	"github.com/tailorjob/backend/internal/models"
	"github.com/tailorjob/backend/internal/queue"
	pgrepo "github.com/tailorjob/backend/internal/repositories/postgres"
	"github.com/tailorjob/backend/internal/services"
	"github.com/tailorjob/backend/internal/tailor"
	"github.com/tailorjob/backend/internal/utils"
)

const tailorOutputTTL = time.Hour

type CVTailorer interface {
	Tailor(ctx context.Context, in tailor.Input) (map[string]any, error)
}

// TailorWorker consumes ai_tailor jobs and writes the first revision of a tailored CV.
type TailorWorker struct {
	CVs       pgrepo.CVRepository
	Jobs      pgrepo.JobRepository
	Matches   pgrepo.MatchRepository
	Tailored  pgrepo.TailorRepository
	Matcher   services.MatchAnalyzer
	Tailorer  CVTailorer
	Cache     cache.Cache
	Publisher queue.Publisher
	Logger    *logrus.Logger

	now func() time.Time
}

func (w *TailorWorker) Start(ctx context.Context, q *queue.RedisJobQueue, concurrency int) error {
	if w.CVs == nil || w.Jobs == nil || w.Tailored == nil || w.Matcher == nil || w.Tailorer == nil {
		return errors.New("TailorWorker missing dependency: CVs/Jobs/Tailored/Matcher/Tailorer must be set")
	}
	q.Start(ctx, concurrency, w.Handle)
	return nil
}

func (w *TailorWorker) clock() time.Time {
	if w.now != nil {
		return w.now()
	}
	return time.Now().UTC()
}

func (w *TailorWorker) Handle(ctx context.Context, job queue.Job) error {
	start := time.Now()
	log := w.logger().WithFields(logrus.Fields{"job_id": job.ID, "cv_id": job.CVID, "target_job_id": job.TargetJobID, "queue": queue.TypeAITailor})
	defer func() { metrics.ObserveQueueJob(queue.TypeAITailor, time.Since(start)) }()

	row, err := w.Tailored.GetPair(ctx, job.CVID, job.TargetJobID)
	if errors.Is(err, utils.ErrNotFound) {
		log.Warn("tailored cv removed before processing")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load tailored cv: %w", err)
	}
	if row.Status == models.TailorStatusCompleted {
		return nil
	}
	channel := queue.TailorChannel(job.CVID, job.TargetJobID)

	if err := w.Tailored.SetStatus(ctx, row.ID, models.TailorStatusProcessing, nil); err != nil {
		return fmt.Errorf("set processing: %w", err)
	}
	w.publish(ctx, channel, queue.Event{Type: queue.EventStatus, Status: models.TailorStatusProcessing, Message: "Tailoring your CV"})

	rev, err := w.tailor(ctx, row, log)
	if err != nil {
		msg := utils.Truncate(err.Error(), 500, "...")
		if serr := w.Tailored.SetStatus(ctx, row.ID, models.TailorStatusFailed, &msg); serr != nil {
			log.WithError(serr).Error("failed to record tailoring error")
		}
		w.publish(ctx, channel, queue.Event{Type: queue.EventStatus, Status: models.TailorStatusFailed, Message: "Tailoring failed"})
		log.WithError(err).Error("tailoring failed")
		return err
	}

	if err := w.Tailored.SetStatus(ctx, row.ID, models.TailorStatusCompleted, nil); err != nil {
		return fmt.Errorf("set completed: %w", err)
	}
	w.publish(ctx, channel, queue.Event{Type: queue.EventStatus, Status: models.TailorStatusCompleted, Message: "Tailored CV ready", Data: rev})
	log.WithField("duration_ms", time.Since(start).Milliseconds()).Info("cv tailored")
	return nil
}

func (w *TailorWorker) tailor(ctx context.Context, row *models.TailoredCV, log *logrus.Entry) (*models.CVRevision, error) {
	facts, err := services.LoadFacts(ctx, w.CVs, row.UserID, row.CVID)
	if err != nil {
		return nil, fmt.Errorf("load cv facts: %w", err)
	}
	job, err := w.Jobs.GetByID(ctx, row.UserID, row.JobID)
	if err != nil {
		return nil, fmt.Errorf("load job: %w", err)
	}
	mj := services.MatcherJob(job)
	analysis := w.analysis(ctx, row, facts, mj, log)

	var contact tailor.Contact
	if sections, err := w.CVs.GetSections(ctx, row.CVID); err == nil {
		contact = tailor.ContactFromText(sections.RawText)
	}

	in := tailor.Input{
		Facts:          facts,
		Contact:        contact,
		JobTitle:       job.Title,
		JobDescription: job.Description,
		Requirements:   mj.Requirements,
		Analysis:       analysis,
	}
	key := cache.TailorOutputKey(utils.StableHash(facts, job.Title, job.Description, mj.Requirements, analysis.Strengths, analysis.Recommendations))
	content, err := cache.Remember(ctx, w.Cache, key, tailorOutputTTL, func(ctx context.Context) (map[string]any, error) {
		return w.Tailorer.Tailor(ctx, in)
	})
	if err != nil {
		return nil, err
	}
	tailor.MergeContact(content, contact)

	doc, err := json.Marshal(content)
	if err != nil {
		return nil, fmt.Errorf("encode tailored cv: %w", err)
	}
	rev, err := w.Tailored.AppendRevision(ctx, row.ID, doc, "Initial AI-tailored version", "ai")
	if err != nil {
		return nil, fmt.Errorf("store revision: %w", err)
	}
	return rev, nil
}

// analysis reuses a fresh stored match and otherwise runs the matcher and stores it.
func (w *TailorWorker) analysis(ctx context.Context, row *models.TailoredCV, facts matcher.CVFacts, job matcher.Job, log *logrus.Entry) *matcher.Result {
	now := w.clock()
	if w.Matches != nil {
		if m, err := w.Matches.Get(ctx, row.UserID, row.CVID, row.JobID); err == nil && m.Fresh(now) {
			var res matcher.Result
			if err := json.Unmarshal(m.Analysis, &res); err == nil {
				return &res
			}
		}
	}

	start := time.Now()
	res := w.Matcher.Analyze(ctx, facts, job)
	metrics.ObserveAIMatch(time.Since(start))

	if w.Matches == nil {
		return res
	}
	data, err := json.Marshal(res)
	if err != nil {
		return res
	}
	if err := w.Matches.Upsert(ctx, &models.CVJobMatch{
		ID:                  uuid.NewString(),
		UserID:              row.UserID,
		CVID:                row.CVID,
		JobID:               row.JobID,
		OverallScore:        res.OverallScore,
		SkillsScore:         res.SkillsScore,
		ExperienceScore:     res.ExperienceScore,
		QualificationsScore: res.QualificationsScore,
		Analysis:            data,
		CreatedAt:           now,
		UpdatedAt:           now,
		ExpiresAt:           now.Add(models.MatchTTL),
	}); err != nil {
		log.WithError(err).Warn("failed to store match score")
	}
	return res
}

func (w *TailorWorker) logger() *logrus.Logger {
	if w.Logger == nil {
		w.Logger = logrus.New()
	}
	return w.Logger
}

func (w *TailorWorker) publish(ctx context.Context, channel string, ev queue.Event) {
	if w.Publisher == nil {
		return
	}
	if err := w.Publisher.Publish(ctx, channel, ev); err != nil {
		w.logger().WithError(err).WithField("channel", channel).Debug("publish failed")
	}
}
