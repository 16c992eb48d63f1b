package services

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tailorjob/backend/internal/models"
	"github.com/tailorjob/backend/internal/queue"
	pgrepo "github.com/tailorjob/backend/internal/repositories/postgres"
	"github.com/tailorjob/backend/internal/storage"
	"github.com/tailorjob/backend/internal/utils"
)

const (
	MaxCVBytes      = 10 << 20
	downloadURLTTL  = time.Hour
	notificationCap = 50
)

var cvContentTypes = map[string]string{
	".pdf":  "application/pdf",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// JobQueue is the producer side of a worker queue.
type JobQueue interface {
	Enqueue(ctx context.Context, job queue.Job) (queue.Job, error)
	GetJob(ctx context.Context, jobID string) (queue.Job, bool, error)
}

type UploadInput struct {
	Filename string
	Data     []byte
}

type ExistingCV struct {
	ID               string    `json:"id"`
	OriginalFilename string    `json:"original_filename"`
	CreatedAt        time.Time `json:"created_at"`
	Status           string    `json:"status"`
}

type UploadResult struct {
	CVID       string      `json:"cv_id"`
	JobID      *string     `json:"job_id"`
	Status     string      `json:"status"`
	Message    string      `json:"message"`
	ExistingCV *ExistingCV `json:"existing_cv,omitempty"`
}

type CVDetail struct {
	CV       *models.CV         `json:"cv"`
	Sections *models.CVSections `json:"sections"`
}

type ReparseResult struct {
	CVID    string `json:"cv_id"`
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

type CVService interface {
	Upload(ctx context.Context, userID string, in UploadInput) (*UploadResult, error)
	ParseStatus(ctx context.Context, jobID string) (*queue.Job, error)
	List(ctx context.Context, userID string) ([]models.CV, error)
	Get(ctx context.Context, userID, cvID string) (*CVDetail, error)
	Reparse(ctx context.Context, userID, cvID string) (*ReparseResult, error)
	SetPrimary(ctx context.Context, userID, cvID string) error
	Delete(ctx context.Context, userID, cvID string) error
	DownloadURL(ctx context.Context, userID, cvID string) (string, error)
	// RequeueStuck re-enqueues CVs left in uploaded or error since before olderThan.
	RequeueStuck(ctx context.Context, olderThan time.Time, limit int) (int, error)

	Notifications(ctx context.Context, userID string) ([]models.Notification, error)
	MarkNotificationRead(ctx context.Context, userID, id string) error
	DeleteNotification(ctx context.Context, userID, id string) error
}

type cvService struct {
	cvs           pgrepo.CVRepository
	notifications pgrepo.NotificationRepository
	store         storage.Store
	queue         JobQueue
	usage         UsageTracker
	log           *logrus.Entry
	now           func() time.Time
}

func NewCVService(cvs pgrepo.CVRepository, notifications pgrepo.NotificationRepository, store storage.Store, q JobQueue, usage UsageTracker, log *logrus.Entry) CVService {
	return &cvService{
		cvs:           cvs,
		notifications: notifications,
		store:         store,
		queue:         q,
		usage:         usage,
		log:           log,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (s *cvService) Upload(ctx context.Context, userID string, in UploadInput) (*UploadResult, error) {
	const op = "CVService.Upload"

	if userID == "" {
		return nil, utils.E(utils.CodeUnauthorized, op, "unauthorized", nil)
	}
	ext := strings.ToLower(filepath.Ext(in.Filename))
	contentType, ok := cvContentTypes[ext]
	if !ok {
		return nil, utils.E(utils.CodeInvalidArgument, op, "Only PDF and DOCX files are allowed", nil)
	}
	if len(in.Data) == 0 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "File is empty", nil)
	}
	if len(in.Data) > MaxCVBytes {
		return nil, utils.E(utils.CodeInvalidArgument, op, "File size must be less than 10MB", nil)
	}

	hash := utils.SHA256Hex(in.Data)
	log := s.log.WithFields(logrus.Fields{"user_id": userID, "filename": in.Filename, "hash": hash[:12]})

	existing, err := s.cvs.FindByHash(ctx, userID, hash)
	switch {
	case err == nil:
		return s.duplicate(ctx, existing, log)
	case !errors.Is(err, utils.ErrNotFound):
		return nil, utils.E(utils.CodeInternal, op, "failed to check for duplicate cv", err)
	}

	objectName := userID + "/" + uuid.NewString() + ext
	path, err := s.store.Upload(ctx, objectName, contentType, bytes.NewReader(in.Data), int64(len(in.Data)))
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "failed to upload file", err)
	}

	now := s.now()
	cv := &models.CV{
		ID:               uuid.NewString(),
		UserID:           userID,
		Filename:         filepath.Base(path),
		OriginalFilename: in.Filename,
		FilePath:         path,
		FileSize:         int64(len(in.Data)),
		MimeType:         contentType,
		FileHash:         hash,
		Status:           models.CVStatusUploaded,
		IsPrimary:        true,
		UploadedAt:       now,
		UpdatedAt:        now,
	}
	if err := s.cvs.Create(ctx, cv); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to persist cv", err)
	}
	log.WithField("cv_id", cv.ID).Info("cv uploaded")

	if err := s.usage.TrackUsage(ctx, userID, "cv_upload", 1); err != nil {
		log.WithError(err).Warn("usage tracking failed")
	}

	res := &UploadResult{CVID: cv.ID, Status: models.CVStatusUploaded, Message: "CV uploaded successfully, parsing initiated"}
	job, err := s.queue.Enqueue(ctx, queue.Job{UserID: userID, CVID: cv.ID})
	if err != nil {
		log.WithError(err).Error("enqueue cv parse failed")
		res.Message = "CV uploaded. Parsing will start when worker reconnects."
		return res, nil
	}
	res.JobID = &job.ID
	return res, nil
}

// duplicate re-parses a CV that never finished parsing, otherwise points at the existing one.
func (s *cvService) duplicate(ctx context.Context, existing *models.CV, log *logrus.Entry) (*UploadResult, error) {
	const op = "CVService.Upload"

	log = log.WithField("cv_id", existing.ID)
	if existing.Status == models.CVStatusUploaded || existing.Status == models.CVStatusError {
		// status is reset before enqueueing so a fast worker's result is not overwritten
		if err := s.cvs.SetStatus(ctx, existing.ID, models.CVStatusUploaded, nil); err != nil {
			return nil, utils.E(utils.CodeInternal, op, "failed to reset cv status", err)
		}
		res := &UploadResult{CVID: existing.ID, Status: models.CVStatusUploaded}
		job, err := s.queue.Enqueue(ctx, queue.Job{UserID: existing.UserID, CVID: existing.ID})
		if err != nil {
			log.WithError(err).Warn("re-enqueue of duplicate cv failed")
			res.Message = "CV already exists. Re-parsing will start when worker reconnects."
			return res, nil
		}
		res.JobID = &job.ID
		res.Message = "CV already exists, re-parsing initiated"
		log.Info("duplicate cv re-enqueued")
		return res, nil
	}

	log.Info("duplicate cv upload")
	return &UploadResult{
		CVID:    existing.ID,
		Status:  "duplicate",
		Message: "This CV already exists and is parsed",
		ExistingCV: &ExistingCV{
			ID:               existing.ID,
			OriginalFilename: existing.OriginalFilename,
			CreatedAt:        existing.UploadedAt,
			Status:           existing.Status,
		},
	}, nil
}

func (s *cvService) ParseStatus(ctx context.Context, jobID string) (*queue.Job, error) {
	const op = "CVService.ParseStatus"

	job, ok, err := s.queue.GetJob(ctx, jobID)
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "failed to read job status", err)
	}
	if !ok {
		return nil, utils.E(utils.CodeNotFound, op, "Job not found", nil)
	}
	return &job, nil
}

func (s *cvService) List(ctx context.Context, userID string) ([]models.CV, error) {
	const op = "CVService.List"

	rows, err := s.cvs.ListByUser(ctx, userID)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list cvs", err)
	}
	if rows == nil {
		rows = []models.CV{}
	}
	return rows, nil
}

func (s *cvService) owned(ctx context.Context, op, userID, cvID string) (*models.CV, error) {
	cv, err := s.cvs.GetByID(ctx, userID, cvID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "CV not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to load cv", err)
	}
	return cv, nil
}

func (s *cvService) Get(ctx context.Context, userID, cvID string) (*CVDetail, error) {
	const op = "CVService.Get"

	cv, err := s.owned(ctx, op, userID, cvID)
	if err != nil {
		return nil, err
	}
	sections, err := s.cvs.GetSections(ctx, cvID)
	if err != nil && !errors.Is(err, utils.ErrNotFound) {
		return nil, utils.E(utils.CodeInternal, op, "failed to load cv sections", err)
	}
	return &CVDetail{CV: cv, Sections: sections}, nil
}

func (s *cvService) Reparse(ctx context.Context, userID, cvID string) (*ReparseResult, error) {
	const op = "CVService.Reparse"

	if _, err := s.owned(ctx, op, userID, cvID); err != nil {
		return nil, err
	}
	if err := s.cvs.SetStatus(ctx, cvID, models.CVStatusUploaded, nil); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to reset cv status", err)
	}
	// on failure the cv stays uploaded and RequeueStuck retries it
	job, err := s.queue.Enqueue(ctx, queue.Job{UserID: userID, CVID: cvID})
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "failed to enqueue parse job", err)
	}
	s.log.WithFields(logrus.Fields{"cv_id": cvID, "job_id": job.ID}).Info("cv re-parse requested")
	return &ReparseResult{CVID: cvID, JobID: job.ID, Status: models.CVStatusUploaded, Message: "Re-parsing initiated"}, nil
}

func (s *cvService) SetPrimary(ctx context.Context, userID, cvID string) error {
	const op = "CVService.SetPrimary"

	err := s.cvs.SetPrimary(ctx, userID, cvID)
	if errors.Is(err, utils.ErrNotFound) {
		return utils.E(utils.CodeNotFound, op, "CV not found", err)
	}
	if err != nil {
		return utils.E(utils.CodeInternal, op, "failed to set primary cv", err)
	}
	return nil
}

// Delete removes the row even when the stored object cannot be deleted.
func (s *cvService) Delete(ctx context.Context, userID, cvID string) error {
	const op = "CVService.Delete"

	cv, err := s.owned(ctx, op, userID, cvID)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, cv.FilePath); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
		s.log.WithError(err).WithField("cv_id", cvID).Warn("failed to delete cv object")
	}
	if err := s.cvs.Delete(ctx, userID, cvID); err != nil && !errors.Is(err, utils.ErrNotFound) {
		return utils.E(utils.CodeInternal, op, "failed to delete cv", err)
	}
	return nil
}

func (s *cvService) DownloadURL(ctx context.Context, userID, cvID string) (string, error) {
	const op = "CVService.DownloadURL"

	cv, err := s.owned(ctx, op, userID, cvID)
	if err != nil {
		return "", err
	}
	url, err := s.store.SignedGetURL(ctx, cv.FilePath, downloadURLTTL)
	if err != nil {
		return "", utils.E(utils.CodeUnavailable, op, "failed to sign download url", err)
	}
	return url, nil
}

func (s *cvService) RequeueStuck(ctx context.Context, olderThan time.Time, limit int) (int, error) {
	const op = "CVService.RequeueStuck"

	rows, err := s.cvs.ListByStatus(ctx, []string{models.CVStatusUploaded, models.CVStatusError}, olderThan, limit)
	if err != nil {
		return 0, utils.E(utils.CodeInternal, op, "failed to list stuck cvs", err)
	}
	n := 0
	for _, cv := range rows {
		if err := s.cvs.SetStatus(ctx, cv.ID, models.CVStatusUploaded, nil); err != nil {
			s.log.WithError(err).WithField("cv_id", cv.ID).Warn("failed to reset cv status")
			continue
		}
		if _, err := s.queue.Enqueue(ctx, queue.Job{UserID: cv.UserID, CVID: cv.ID}); err != nil {
			return n, utils.E(utils.CodeUnavailable, op, "failed to enqueue parse job", err)
		}
		n++
	}
	if n > 0 {
		s.log.WithField("count", n).Info("requeued stuck cvs")
	}
	return n, nil
}

func (s *cvService) Notifications(ctx context.Context, userID string) ([]models.Notification, error) {
	const op = "CVService.Notifications"

	rows, err := s.notifications.ListUnread(ctx, userID, notificationCap)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list notifications", err)
	}
	if rows == nil {
		rows = []models.Notification{}
	}
	return rows, nil
}

func (s *cvService) MarkNotificationRead(ctx context.Context, userID, id string) error {
	return notificationErr("CVService.MarkNotificationRead", s.notifications.MarkRead(ctx, userID, id))
}

func (s *cvService) DeleteNotification(ctx context.Context, userID, id string) error {
	return notificationErr("CVService.DeleteNotification", s.notifications.Delete(ctx, userID, id))
}

func notificationErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, utils.ErrNotFound):
		return utils.E(utils.CodeNotFound, op, "Notification not found", err)
	default:
		return utils.E(utils.CodeInternal, op, "failed to update notification", err)
	}
}
