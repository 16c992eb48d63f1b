package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tailorjob/backend/internal/models"
	"github.com/tailorjob/backend/internal/queue"
	pgrepo "github.com/tailorjob/backend/internal/repositories/postgres"
	"github.com/tailorjob/backend/internal/utils"
)

type StartTailorResult struct {
	Message      string `json:"message"`
	TailoredCVID string `json:"tailored_cv_id"`
	JobID        string `json:"job_id,omitempty"`
}

type TailorStatus struct {
	TailoredCVID string    `json:"tailored_cv_id"`
	Status       string    `json:"status"`
	QueueStatus  string    `json:"queue_status"`
	ErrorMessage *string   `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type TailorService interface {
	// Start queues tailoring for the pair unless a tailored CV already exists.
	Start(ctx context.Context, userID, cvID, jobID string) (*StartTailorResult, error)
	Get(ctx context.Context, userID, cvID, jobID string) (*models.TailoredCV, error)
	Status(ctx context.Context, userID, cvID, jobID string) (*TailorStatus, error)
	Revisions(ctx context.Context, userID, cvID, jobID string) ([]models.CVRevision, error)
}

type tailorService struct {
	cvs      pgrepo.CVRepository
	jobs     pgrepo.JobRepository
	tailored pgrepo.TailorRepository
	queue    JobQueue
	usage    UsageTracker
	log      *logrus.Entry
	now      func() time.Time
}

func NewTailorService(cvs pgrepo.CVRepository, jobs pgrepo.JobRepository, tailored pgrepo.TailorRepository, q JobQueue, usage UsageTracker, log *logrus.Entry) TailorService {
	return &tailorService{
		cvs:      cvs,
		jobs:     jobs,
		tailored: tailored,
		queue:    q,
		usage:    usage,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *tailorService) Start(ctx context.Context, userID, cvID, jobID string) (*StartTailorResult, error) {
	const op = "TailorService.Start"

	if _, err := s.cvs.GetByID(ctx, userID, cvID); err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "CV not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to load cv", err)
	}
	if _, err := s.jobs.GetByID(ctx, userID, jobID); err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "Job not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to load job", err)
	}

	existing, err := s.tailored.GetPair(ctx, cvID, jobID)
	switch {
	case err == nil && existing.Status == models.TailorStatusFailed:
		// a failed run is retried on the same row
		if err := s.tailored.SetStatus(ctx, existing.ID, models.TailorStatusQueued, nil); err != nil {
			return nil, utils.E(utils.CodeInternal, op, "failed to reset tailored cv", err)
		}
		return s.enqueue(ctx, op, userID, existing)
	case err == nil:
		return &StartTailorResult{Message: "Tailored CV already exists", TailoredCVID: existing.ID}, nil
	case !errors.Is(err, utils.ErrNotFound):
		return nil, utils.E(utils.CodeInternal, op, "failed to check tailored cv", err)
	}

	now := s.now()
	row := &models.TailoredCV{
		ID:        uuid.NewString(),
		UserID:    userID,
		CVID:      cvID,
		JobID:     jobID,
		Status:    models.TailorStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.tailored.Create(ctx, row); err != nil {
		if errors.Is(err, utils.ErrDuplicate) {
			// a concurrent request created the pair first
			if other, gerr := s.tailored.GetPair(ctx, cvID, jobID); gerr == nil {
				return &StartTailorResult{Message: "Tailored CV already exists", TailoredCVID: other.ID}, nil
			}
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to create tailored cv", err)
	}
	return s.enqueue(ctx, op, userID, row)
}

// enqueue pushes the tailoring job for row. Usage is only counted once the
// job is on the queue.
func (s *tailorService) enqueue(ctx context.Context, op, userID string, row *models.TailoredCV) (*StartTailorResult, error) {
	log := s.log.WithFields(logrus.Fields{"user_id": userID, "cv_id": row.CVID, "job_id": row.JobID, "tailored_cv_id": row.ID})
	job, err := s.queue.Enqueue(ctx, queue.Job{
		ID:          queue.TailorJobID(row.CVID, row.JobID),
		Type:        queue.TypeAITailor,
		UserID:      userID,
		CVID:        row.CVID,
		TargetJobID: row.JobID,
	})
	if err != nil {
		msg := "failed to enqueue tailoring job"
		_ = s.tailored.SetStatus(ctx, row.ID, models.TailorStatusFailed, &msg)
		return nil, utils.E(utils.CodeUnavailable, op, "Tailoring queue unavailable, try again later", err)
	}
	if err := s.usage.TrackUsage(ctx, userID, "tailor_cv", 1); err != nil {
		log.WithError(err).Warn("usage tracking failed")
	}
	log.Info("tailoring queued")
	return &StartTailorResult{Message: "CV tailoring job queued", TailoredCVID: row.ID, JobID: job.ID}, nil
}

func (s *tailorService) Get(ctx context.Context, userID, cvID, jobID string) (*models.TailoredCV, error) {
	return getTailored(ctx, s.tailored, "TailorService.Get", userID, cvID, jobID)
}

func (s *tailorService) Status(ctx context.Context, userID, cvID, jobID string) (*TailorStatus, error) {
	const op = "TailorService.Status"

	row, err := getTailored(ctx, s.tailored, op, userID, cvID, jobID)
	if err != nil {
		return nil, err
	}
	queueStatus := "not_found"
	job, found, err := s.queue.GetJob(ctx, queue.TailorJobID(cvID, jobID))
	switch {
	case err != nil:
		s.log.WithError(err).WithField("tailored_cv_id", row.ID).Warn("queue status lookup failed")
		queueStatus = "unknown"
	case found:
		queueStatus = job.Status
	}
	return &TailorStatus{
		TailoredCVID: row.ID,
		Status:       row.Status,
		QueueStatus:  queueStatus,
		ErrorMessage: row.ErrorMessage,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}, nil
}

func (s *tailorService) Revisions(ctx context.Context, userID, cvID, jobID string) ([]models.CVRevision, error) {
	const op = "TailorService.Revisions"

	row, err := getTailored(ctx, s.tailored, op, userID, cvID, jobID)
	if err != nil {
		return nil, err
	}
	revs, err := s.tailored.ListRevisions(ctx, row.ID)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list revisions", err)
	}
	if revs == nil {
		revs = []models.CVRevision{}
	}
	return revs, nil
}

func getTailored(ctx context.Context, repo pgrepo.TailorRepository, op, userID, cvID, jobID string) (*models.TailoredCV, error) {
	row, err := repo.Get(ctx, userID, cvID, jobID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "Tailored CV not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to load tailored cv", err)
	}
	return row, nil
}
