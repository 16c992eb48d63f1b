package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tailorjob/backend/internal/cvparse"
	"github.com/tailorjob/backend/internal/matcher"
	"github.com/tailorjob/backend/internal/metrics"
	"github.com/tailorjob/backend/internal/models"
	pgrepo "github.com/tailorjob/backend/internal/repositories/postgres"
	"github.com/tailorjob/backend/internal/utils"
)

const defaultRankLimit = 20

type MatchAnalyzer interface {
	Analyze(ctx context.Context, facts matcher.CVFacts, job matcher.Job) *matcher.Result
}

type MatchResponse struct {
	OverallScore        int             `json:"overall_score"`
	SkillsScore         int             `json:"skills_score"`
	ExperienceScore     int             `json:"experience_score"`
	QualificationsScore int             `json:"qualifications_score"`
	Analysis            json.RawMessage `json:"analysis"`
	Cached              bool            `json:"cached"`
	CreatedAt           time.Time       `json:"created_at"`
}

type DeleteMatchResult struct {
	Message string `json:"message"`
	Deleted bool   `json:"deleted"`
}

type MatchingService interface {
	// Analyze serves a fresh cached analysis or runs the matcher and stores the result for 7 days.
	// Only a fresh run is checked against and counted toward the job_match quota.
	Analyze(ctx context.Context, userID, cvID, jobID string) (*MatchResponse, error)
	// GetScore returns nil when no fresh analysis is stored.
	GetScore(ctx context.Context, userID, cvID, jobID string) (*MatchResponse, error)
	DeleteScore(ctx context.Context, userID, cvID, jobID string) (*DeleteMatchResult, error)
	// Rank orders the user's jobs by embedding similarity to the CV.
	Rank(ctx context.Context, userID, cvID string, limit int) ([]models.RankedJob, error)
}

type matchingService struct {
	cvs     pgrepo.CVRepository
	jobs    pgrepo.JobRepository
	matches pgrepo.MatchRepository
	matcher MatchAnalyzer
	usage   QuotaGate
	log     *logrus.Entry
	now     func() time.Time
}

func NewMatchingService(cvs pgrepo.CVRepository, jobs pgrepo.JobRepository, matches pgrepo.MatchRepository, m MatchAnalyzer, usage QuotaGate, log *logrus.Entry) MatchingService {
	return &matchingService{
		cvs:     cvs,
		jobs:    jobs,
		matches: matches,
		matcher: m,
		usage:   usage,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func matchResponse(m *models.CVJobMatch, cached bool) *MatchResponse {
	return &MatchResponse{
		OverallScore:        m.OverallScore,
		SkillsScore:         m.SkillsScore,
		ExperienceScore:     m.ExperienceScore,
		QualificationsScore: m.QualificationsScore,
		Analysis:            json.RawMessage(m.Analysis),
		Cached:              cached,
		CreatedAt:           m.CreatedAt,
	}
}

func (s *matchingService) Analyze(ctx context.Context, userID, cvID, jobID string) (*MatchResponse, error) {
	const op = "MatchingService.Analyze"

	if cvID == "" || jobID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "cv_id and job_id are required", nil)
	}
	log := s.log.WithFields(logrus.Fields{"user_id": userID, "cv_id": cvID, "job_id": jobID})

	cached, err := s.matches.Get(ctx, userID, cvID, jobID)
	switch {
	case err == nil && cached.Fresh(s.now()):
		log.WithField("score", cached.OverallScore).Debug("returning cached match")
		return matchResponse(cached, true), nil
	case err != nil && !errors.Is(err, utils.ErrNotFound):
		log.WithError(err).Warn("match cache lookup failed")
	}
	if err := s.usage.RequireFeature(ctx, userID, "job_match"); err != nil {
		return nil, err
	}

	facts, err := LoadFacts(ctx, s.cvs, userID, cvID)
	if err != nil {
		return nil, utils.E(utils.CodeNotFound, op, "CV not found or not parsed yet. Please upload and parse a CV first.", err)
	}
	job, err := s.jobs.GetByID(ctx, userID, jobID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "Job not found or you don't have permission to access it.", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "Failed to fetch job data", err)
	}

	start := time.Now()
	result := s.matcher.Analyze(ctx, facts, MatcherJob(job))
	metrics.ObserveAIMatch(time.Since(start))

	analysis, err := json.Marshal(result)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to encode analysis", err)
	}
	now := s.now()
	m := &models.CVJobMatch{
		ID:                  uuid.NewString(),
		UserID:              userID,
		CVID:                cvID,
		JobID:               jobID,
		OverallScore:        result.OverallScore,
		SkillsScore:         result.SkillsScore,
		ExperienceScore:     result.ExperienceScore,
		QualificationsScore: result.QualificationsScore,
		Analysis:            analysis,
		CreatedAt:           now,
		UpdatedAt:           now,
		ExpiresAt:           now.Add(models.MatchTTL),
	}
	// the analysis is still returned when it cannot be stored
	if err := s.matches.Upsert(ctx, m); err != nil {
		log.WithError(err).Warn("failed to store match score")
	}
	if err := s.usage.TrackUsage(ctx, userID, "job_match", 1); err != nil {
		log.WithError(err).Warn("usage tracking failed")
	}
	log.WithField("score", result.OverallScore).Info("match analyzed")
	return matchResponse(m, false), nil
}

func (s *matchingService) GetScore(ctx context.Context, userID, cvID, jobID string) (*MatchResponse, error) {
	const op = "MatchingService.GetScore"

	m, err := s.matches.Get(ctx, userID, cvID, jobID)
	if errors.Is(err, utils.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "Failed to fetch match score", err)
	}
	if !m.Fresh(s.now()) {
		return nil, nil
	}
	return matchResponse(m, true), nil
}

func (s *matchingService) DeleteScore(ctx context.Context, userID, cvID, jobID string) (*DeleteMatchResult, error) {
	const op = "MatchingService.DeleteScore"

	deleted, err := s.matches.Delete(ctx, userID, cvID, jobID)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "Failed to delete match score", err)
	}
	return &DeleteMatchResult{Message: "Match score deleted successfully", Deleted: deleted}, nil
}

func (s *matchingService) Rank(ctx context.Context, userID, cvID string, limit int) ([]models.RankedJob, error) {
	const op = "MatchingService.Rank"

	cv, err := s.cvs.GetByID(ctx, userID, cvID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "CV not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to load cv", err)
	}
	if cv.Embedding == nil || len(cv.Embedding.Slice()) == 0 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "CV has not been embedded yet. Re-parse it with AI configured.", nil)
	}
	if limit <= 0 {
		limit = defaultRankLimit
	}
	rows, err := s.jobs.RankByEmbedding(ctx, userID, cv.Embedding.Slice(), cvID, limit)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to rank jobs", err)
	}
	if rows == nil {
		rows = []models.RankedJob{}
	}
	return rows, nil
}

// LoadFacts reads the user's parsed CV as matcher facts; it fails when the CV has no sections.
func LoadFacts(ctx context.Context, cvs pgrepo.CVRepository, userID, cvID string) (matcher.CVFacts, error) {
	if _, err := cvs.GetByID(ctx, userID, cvID); err != nil {
		return matcher.CVFacts{}, err
	}
	sections, err := cvs.GetSections(ctx, cvID)
	if err != nil {
		return matcher.CVFacts{}, err
	}
	profile, err := cvs.GetProfile(ctx, cvID)
	if err != nil && !errors.Is(err, utils.ErrNotFound) {
		return matcher.CVFacts{}, err
	}
	return cvparse.FactsFromProfile(profile, sections), nil
}

// MatcherJob decodes the stored requirements matrix; a missing or broken one yields the matcher fallback.
func MatcherJob(job *models.Job) matcher.Job {
	mj := matcher.Job{Title: job.Title}
	if len(job.RequirementsMatrix) == 0 {
		return mj
	}
	var req matcher.Requirements
	if err := json.Unmarshal(job.RequirementsMatrix, &req); err == nil {
		mj.Requirements = &req
	}
	return mj
}
