package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/tailorjob/backend/internal/cvparse"
	"github.com/tailorjob/backend/internal/matcher"
	"github.com/tailorjob/backend/internal/metrics"
	"github.com/tailorjob/backend/internal/models"
	"github.com/tailorjob/backend/internal/queue"
	pgrepo "github.com/tailorjob/backend/internal/repositories/postgres"
	"github.com/tailorjob/backend/internal/storage"
	"github.com/tailorjob/backend/internal/utils"
)

// CVParser is the AI side of CV parsing.
type CVParser interface {
	ParseSections(ctx context.Context, text string) (cvparse.Sections, error)
	ExtractFacts(ctx context.Context, text string, sections cvparse.Sections) (matcher.CVFacts, error)
	Embed(ctx context.Context, text string) ([]float32, error)
}

// errPermanent marks failures a retry cannot fix.
var errPermanent = errors.New("permanent")

// CVParseWorker consumes cv_parse jobs: text extraction, sections, facts,
// embedding, then a cv_parsed notification.
type CVParseWorker struct {
	CVs           pgrepo.CVRepository
	Notifications pgrepo.NotificationRepository
	Store         storage.Store
	Parser        CVParser
	Logger        *logrus.Logger

	now func() time.Time
}

func (w *CVParseWorker) Start(ctx context.Context, q *queue.RedisJobQueue, concurrency int) error {
	if w.CVs == nil || w.Notifications == nil || w.Store == nil || w.Parser == nil {
		return errors.New("CVParseWorker missing dependency: CVs/Notifications/Store/Parser must be set")
	}
	q.Start(ctx, concurrency, w.Handle)
	return nil
}

func (w *CVParseWorker) clock() time.Time {
	if w.now != nil {
		return w.now()
	}
	return time.Now().UTC()
}

func (w *CVParseWorker) logger() *logrus.Logger {
	if w.Logger == nil {
		w.Logger = logrus.New()
	}
	return w.Logger
}

// Handle parses one CV. Permanent failures are recorded on the CV and
// swallowed; transient ones are returned so the queue retries.
func (w *CVParseWorker) Handle(ctx context.Context, job queue.Job) error {
	start := time.Now()
	log := w.logger().WithFields(logrus.Fields{"job_id": job.ID, "cv_id": job.CVID, "user_id": job.UserID, "queue": queue.TypeCVParse})
	defer func() { metrics.ObserveQueueJob(queue.TypeCVParse, time.Since(start)) }()

	cv, err := w.CVs.GetByIDAny(ctx, job.CVID)
	if errors.Is(err, utils.ErrNotFound) {
		log.Warn("cv deleted before parsing")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load cv: %w", err)
	}

	if err := w.CVs.SetStatus(ctx, cv.ID, models.CVStatusParsing, nil); err != nil {
		return fmt.Errorf("set parsing: %w", err)
	}

	if err := w.parse(ctx, cv, log); err != nil {
		msg := utils.Truncate(err.Error(), 500, "...")
		if serr := w.CVs.SetStatus(ctx, cv.ID, models.CVStatusError, &msg); serr != nil {
			log.WithError(serr).Error("failed to record parse error")
		}
		if errors.Is(err, errPermanent) {
			log.WithError(err).Warn("cv parse failed permanently")
			return nil
		}
		log.WithError(err).Error("cv parse failed")
		return err
	}

	metrics.ObserveCVParse(time.Since(start))
	log.WithField("duration_ms", time.Since(start).Milliseconds()).Info("cv parsed")
	w.notify(ctx, cv, log)
	return nil
}

func (w *CVParseWorker) parse(ctx context.Context, cv *models.CV, log *logrus.Entry) error {
	data, err := w.Store.Download(ctx, cv.FilePath)
	if err != nil {
		metrics.CVParseError("download")
		if errors.Is(err, storage.ErrObjectNotFound) {
			return fmt.Errorf("%w: cv file missing from storage", errPermanent)
		}
		return fmt.Errorf("download cv: %w", err)
	}

	text, err := cvparse.ExtractText(cv.OriginalFilename, data)
	if err != nil {
		metrics.CVParseError("extract")
		return fmt.Errorf("%w: %v", errPermanent, err)
	}

	sections, err := w.Parser.ParseSections(ctx, text)
	if err != nil {
		metrics.CVParseError("ai_parse")
		return err
	}
	now := w.clock()
	record, err := sections.Record(cv.ID, text, now)
	if err != nil {
		return fmt.Errorf("%w: encode sections: %v", errPermanent, err)
	}
	if err := w.CVs.UpsertSections(ctx, record); err != nil {
		metrics.CVParseError("storage")
		return fmt.Errorf("store sections: %w", err)
	}

	facts, err := w.Parser.ExtractFacts(ctx, text, sections)
	if err != nil {
		// the sections are enough for matching, so facts fall back to them
		metrics.CVParseError("facts")
		log.WithError(err).Warn("fact extraction failed, using sections")
		facts = cvparse.FactsFromSections(sections)
	}
	factsJSON, err := json.Marshal(facts)
	if err != nil {
		return fmt.Errorf("%w: encode facts: %v", errPermanent, err)
	}
	profile := &models.CVProfile{
		CVID:            cv.ID,
		UserID:          cv.UserID,
		Skills:          pq.StringArray(nonNil(facts.Skills)),
		Technologies:    pq.StringArray(technologies(facts)),
		Seniority:       cvparse.Seniority(facts),
		YearsExperience: facts.YearsExperienceTotal,
		Facts:           factsJSON,
		UpdatedAt:       now,
	}
	if err := w.CVs.UpsertProfile(ctx, profile); err != nil {
		metrics.CVParseError("storage")
		return fmt.Errorf("store profile: %w", err)
	}

	embedding, err := w.Parser.Embed(ctx, text)
	if err != nil {
		log.WithError(err).Warn("cv embedding failed")
		embedding = nil
	}
	if err := w.CVs.MarkParsed(ctx, cv.ID, embedding, now); err != nil {
		metrics.CVParseError("storage")
		return fmt.Errorf("mark parsed: %w", err)
	}
	return nil
}

func (w *CVParseWorker) notify(ctx context.Context, cv *models.CV, log *logrus.Entry) {
	cvID := cv.ID
	n := &models.Notification{
		ID:        uuid.NewString(),
		UserID:    cv.UserID,
		CVID:      &cvID,
		Type:      "cv_parsed",
		Message:   fmt.Sprintf("Your CV '%s' has been successfully parsed and is ready to use!", cv.OriginalFilename),
		CreatedAt: w.clock(),
	}
	if err := w.Notifications.Insert(ctx, n); err != nil {
		log.WithError(err).Warn("failed to create notification")
	}
}

// technologies flattens the typed skill groups into one deduplicated list.
func technologies(f matcher.CVFacts) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, group := range [][]string{f.Languages, f.Frameworks, f.CloudPlatforms, f.Databases, f.Tools} {
		for _, s := range group {
			if s == "" || seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
