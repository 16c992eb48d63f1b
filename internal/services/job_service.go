package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/tailorjob/backend/internal/matcher"
	"github.com/tailorjob/backend/internal/models"
	pgrepo "github.com/tailorjob/backend/internal/repositories/postgres"
	"github.com/tailorjob/backend/internal/scraper"
	"github.com/tailorjob/backend/internal/utils"
)

var jobStatuses = map[string]bool{
	models.JobStatusSaved: true, "applied": true, "interviewing": true, "offer": true, "rejected": true, "archived": true,
}

type JobScraper interface {
	Scrape(ctx context.Context, rawURL string) (scraper.Posting, error)
}

type RequirementsExtractor interface {
	Extract(ctx context.Context, title, description string) matcher.Requirements
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type CreateJobInput struct {
	Title         string  `json:"title"`
	Company       string  `json:"company"`
	Description   string  `json:"description"`
	URL           *string `json:"url"`
	ExternalJobID *string `json:"-"`
}

// UpdateJobInput holds the optional fields of a partial update.
type UpdateJobInput struct {
	Title       *string `json:"title"`
	Company     *string `json:"company"`
	Description *string `json:"description"`
	URL         *string `json:"url"`
	Status      *string `json:"status"`
}

// DuplicateJob is the conflict detail returned when a posting is already saved.
type DuplicateJob struct {
	Error         string `json:"error"`
	ExistingJobID string `json:"existing_job_id"`
	Message       string `json:"message"`
}

type JobService interface {
	Create(ctx context.Context, userID string, in CreateJobInput) (*models.Job, error)
	List(ctx context.Context, userID string) ([]models.Job, error)
	Get(ctx context.Context, userID, jobID string) (*models.Job, error)
	Update(ctx context.Context, userID, jobID string, in UpdateJobInput) (*models.Job, error)
	Delete(ctx context.Context, userID, jobID string) error
	// Scrape fetches a posting and saves it as a job.
	Scrape(ctx context.Context, userID, url string) (*models.Job, error)
}

type jobService struct {
	jobs         pgrepo.JobRepository
	scraper      JobScraper
	requirements RequirementsExtractor
	embedder     Embedder
	log          *logrus.Entry
	now          func() time.Time
}

// NewJobService builds the job service; embedder may be nil when embeddings are unavailable.
func NewJobService(jobs pgrepo.JobRepository, s JobScraper, req RequirementsExtractor, embedder Embedder, log *logrus.Entry) JobService {
	return &jobService{
		jobs:         jobs,
		scraper:      s,
		requirements: req,
		embedder:     embedder,
		log:          log,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *jobService) Create(ctx context.Context, userID string, in CreateJobInput) (*models.Job, error) {
	return s.create(ctx, userID, in, models.JobSourceManual)
}

func (s *jobService) create(ctx context.Context, userID string, in CreateJobInput, source string) (*models.Job, error) {
	const op = "JobService.Create"

	in.Title = strings.TrimSpace(in.Title)
	in.Company = strings.TrimSpace(in.Company)
	in.Description = strings.TrimSpace(in.Description)
	in.URL = trimmedOrNil(in.URL)
	in.ExternalJobID = trimmedOrNil(in.ExternalJobID)
	if in.Title == "" || in.Company == "" || in.Description == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "title, company and description are required", nil)
	}

	key := pgrepo.DuplicateKey{Company: in.Company, Title: in.Title}
	if in.URL != nil {
		key.URL = *in.URL
	}
	if in.ExternalJobID != nil {
		key.ExternalJobID = *in.ExternalJobID
	}
	if err := s.checkDuplicate(ctx, op, userID, key); err != nil {
		return nil, err
	}

	now := s.now()
	job := &models.Job{
		ID:            uuid.NewString(),
		UserID:        userID,
		Title:         in.Title,
		Company:       in.Company,
		Description:   in.Description,
		URL:           in.URL,
		ExternalJobID: in.ExternalJobID,
		Source:        source,
		Status:        models.JobStatusSaved,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		if errors.Is(err, utils.ErrDuplicate) {
			// lost a race with a concurrent insert
			if derr := s.checkDuplicate(ctx, op, userID, key); derr != nil {
				return nil, derr
			}
			return nil, utils.E(utils.CodeConflict, op, "Job already exists", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to create job", err)
	}
	s.log.WithFields(logrus.Fields{"user_id": userID, "job_id": job.ID, "source": source}).Info("job created")

	s.enrich(ctx, job)
	return job, nil
}

func (s *jobService) checkDuplicate(ctx context.Context, op, userID string, key pgrepo.DuplicateKey) error {
	existing, err := s.jobs.FindDuplicate(ctx, userID, key)
	switch {
	case errors.Is(err, utils.ErrNotFound):
		return nil
	case err != nil:
		return utils.E(utils.CodeInternal, op, "failed to check for duplicate job", err)
	}
	return utils.ED(utils.CodeConflict, op, "Job already exists", DuplicateJob{
		Error:         "duplicate_job",
		ExistingJobID: existing.ID,
		Message:       "You have already saved this job posting",
	})
}

// enrich stores the requirements matrix, job profile and embedding. Failures
// leave the job usable, and matching then reports the missing matrix.
func (s *jobService) enrich(ctx context.Context, job *models.Job) {
	log := s.log.WithField("job_id", job.ID)

	req := s.requirements.Extract(ctx, job.Title, job.Description)
	matrix, err := json.Marshal(req)
	if err != nil {
		log.WithError(err).Warn("encode requirements matrix failed")
		return
	}

	var embedding []float32
	if s.embedder != nil {
		embedding, err = s.embedder.Embed(ctx, job.Title+"\n"+job.Description)
		if err != nil {
			log.WithError(err).Warn("job embedding failed")
			embedding = nil
		}
	}

	profile := &models.JobProfile{
		JobID:           job.ID,
		MustHave:        pq.StringArray(req.MustHave),
		NiceToHave:      pq.StringArray(req.NiceToHave),
		RoleLevel:       req.RoleLevel,
		ExperienceYears: req.ExperienceYears,
		UpdatedAt:       s.now(),
	}
	if err := s.jobs.SaveRequirements(ctx, job.ID, matrix, embedding, profile); err != nil {
		log.WithError(err).Warn("save job requirements failed")
		return
	}
	job.RequirementsMatrix = matrix
}

func (s *jobService) List(ctx context.Context, userID string) ([]models.Job, error) {
	const op = "JobService.List"

	rows, err := s.jobs.ListByUser(ctx, userID)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list jobs", err)
	}
	if rows == nil {
		rows = []models.Job{}
	}
	return rows, nil
}

func (s *jobService) Get(ctx context.Context, userID, jobID string) (*models.Job, error) {
	const op = "JobService.Get"

	job, err := s.jobs.GetByID(ctx, userID, jobID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "Job not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to load job", err)
	}
	return job, nil
}

func (s *jobService) Update(ctx context.Context, userID, jobID string, in UpdateJobInput) (*models.Job, error) {
	const op = "JobService.Update"

	fields := map[string]any{}
	setText := func(col string, v *string) {
		if v != nil {
			fields[col] = strings.TrimSpace(*v)
		}
	}
	setText("title", in.Title)
	setText("company", in.Company)
	setText("description", in.Description)
	if in.URL != nil {
		fields["url"] = trimmedOrNil(in.URL)
	}
	if in.Status != nil {
		st := strings.ToLower(strings.TrimSpace(*in.Status))
		if !jobStatuses[st] {
			return nil, utils.E(utils.CodeInvalidArgument, op, "Invalid job status", nil)
		}
		fields["status"] = st
	}
	if len(fields) == 0 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "No fields to update", nil)
	}

	job, err := s.jobs.Update(ctx, userID, jobID, fields)
	if err != nil {
		switch {
		case errors.Is(err, utils.ErrNotFound):
			return nil, utils.E(utils.CodeNotFound, op, "Job not found", err)
		case errors.Is(err, utils.ErrDuplicate):
			return nil, utils.E(utils.CodeConflict, op, "Job already exists", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to update job", err)
	}
	if in.Title != nil || in.Description != nil {
		s.enrich(ctx, job)
	}
	return job, nil
}

func (s *jobService) Delete(ctx context.Context, userID, jobID string) error {
	const op = "JobService.Delete"

	err := s.jobs.Delete(ctx, userID, jobID)
	if errors.Is(err, utils.ErrNotFound) {
		return utils.E(utils.CodeNotFound, op, "Job not found", err)
	}
	if err != nil {
		return utils.E(utils.CodeInternal, op, "failed to delete job", err)
	}
	return nil
}

func (s *jobService) Scrape(ctx context.Context, userID, url string) (*models.Job, error) {
	const op = "JobService.Scrape"

	posting, err := s.scraper.Scrape(ctx, url)
	if err != nil {
		s.log.WithError(err).WithField("url", url).Info("job scrape failed")
		return nil, utils.E(utils.CodeInvalidArgument, op, "Failed to scrape job: "+err.Error(), err)
	}
	in := CreateJobInput{
		Title:       posting.Title,
		Company:     posting.Company,
		Description: posting.Description,
		URL:         &url,
	}
	if posting.ExternalJobID != "" {
		in.ExternalJobID = &posting.ExternalJobID
	}
	return s.create(ctx, userID, in, models.JobSourceScraped)
}

func trimmedOrNil(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}
