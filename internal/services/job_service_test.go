package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/tailorjob/backend/internal/matcher"
	"github.com/tailorjob/backend/internal/models"
	"github.com/tailorjob/backend/internal/scraper"
	"github.com/tailorjob/backend/internal/utils"
)

type stubScraper struct {
	posting scraper.Posting
	err     error
}

func (s stubScraper) Scrape(context.Context, string) (scraper.Posting, error) { return s.posting, s.err }

type stubRequirements struct{ calls int }

func (s *stubRequirements) Extract(_ context.Context, title, _ string) matcher.Requirements {
	s.calls++
	return matcher.Requirements{MustHave: []string{"go", "postgresql"}, NiceToHave: []string{"kubernetes"}, RoleLevel: "senior", ExperienceYears: 5}
}

type stubEmbedder struct{ err error }

func (s stubEmbedder) Embed(context.Context, string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func newTestJobs(sc JobScraper, emb Embedder) (JobService, *fakeJobRepo, *stubRequirements) {
	repo := newFakeJobRepo()
	req := &stubRequirements{}
	return NewJobService(repo, sc, req, emb, testLogger()), repo, req
}

func TestCreateJobValidates(t *testing.T) {
	svc, _, _ := newTestJobs(stubScraper{}, nil)
	_, err := svc.Create(context.Background(), "user-1", CreateJobInput{Title: "  ", Company: "Acme", Description: "x"})
	if !utils.IsCode(err, utils.CodeInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestCreateJobEnriches(t *testing.T) {
	svc, repo, req := newTestJobs(stubScraper{}, stubEmbedder{})

	job, err := svc.Create(context.Background(), "user-1", CreateJobInput{Title: " Backend Engineer ", Company: "Acme", Description: "Go and PostgreSQL"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if job.Title != "Backend Engineer" || job.Source != models.JobSourceManual || job.Status != models.JobStatusSaved {
		t.Fatalf("unexpected job: %+v", job)
	}
	if req.calls != 1 {
		t.Fatalf("expected requirements extraction, got %d calls", req.calls)
	}
	var stored matcher.Requirements
	if err := json.Unmarshal(repo.jobs[job.ID].RequirementsMatrix, &stored); err != nil {
		t.Fatalf("decode matrix: %v", err)
	}
	if len(stored.MustHave) != 2 || repo.profiles[job.ID].RoleLevel != "senior" {
		t.Fatalf("unexpected enrichment: %+v %+v", stored, repo.profiles[job.ID])
	}
	if len(repo.embeddings[job.ID]) != 3 {
		t.Fatal("embedding not stored")
	}
}

func TestCreateJobEmbeddingFailureKeepsJob(t *testing.T) {
	svc, repo, _ := newTestJobs(stubScraper{}, stubEmbedder{err: errors.New("quota")})

	job, err := svc.Create(context.Background(), "user-1", CreateJobInput{Title: "SRE", Company: "Acme", Description: "on-call"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(repo.jobs[job.ID].RequirementsMatrix) == 0 {
		t.Fatal("matrix should be stored without an embedding")
	}
	if repo.embeddings[job.ID] != nil {
		t.Fatal("no embedding expected")
	}
}

func TestCreateJobDuplicate(t *testing.T) {
	svc, _, _ := newTestJobs(stubScraper{}, nil)
	first, err := svc.Create(context.Background(), "user-1", CreateJobInput{Title: "SRE", Company: "Acme", Description: "on-call"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = svc.Create(context.Background(), "user-1", CreateJobInput{Title: "SRE", Company: "Acme", Description: "again"})
	var appErr *utils.AppError
	if !errors.As(err, &appErr) || appErr.Code != utils.CodeConflict {
		t.Fatalf("expected conflict, got %v", err)
	}
	detail, ok := appErr.Detail.(DuplicateJob)
	if !ok || detail.ExistingJobID != first.ID || detail.Error != "duplicate_job" {
		t.Fatalf("unexpected detail: %+v", appErr.Detail)
	}

	if _, err := svc.Create(context.Background(), "user-2", CreateJobInput{Title: "SRE", Company: "Acme", Description: "on-call"}); err != nil {
		t.Fatalf("another user may save the same posting: %v", err)
	}
}

func TestCreateJobUniqueViolationIsConflict(t *testing.T) {
	svc, repo, _ := newTestJobs(stubScraper{}, nil)
	repo.createErr = utils.ErrDuplicate

	_, err := svc.Create(context.Background(), "user-1", CreateJobInput{Title: "SRE", Company: "Acme", Description: "on-call"})
	if !utils.IsCode(err, utils.CodeConflict) || utils.HTTPStatus(err) != http.StatusConflict {
		t.Fatalf("expected 409 conflict, got %v", err)
	}
	if !errors.Is(err, utils.ErrDuplicate) {
		t.Fatalf("conflict should wrap the repository error: %v", err)
	}
}

func TestUpdateJob(t *testing.T) {
	svc, _, req := newTestJobs(stubScraper{}, nil)
	job, _ := svc.Create(context.Background(), "user-1", CreateJobInput{Title: "SRE", Company: "Acme", Description: "on-call"})

	if _, err := svc.Update(context.Background(), "user-1", job.ID, UpdateJobInput{}); !utils.IsCode(err, utils.CodeInvalidArgument) {
		t.Fatalf("expected no fields error, got %v", err)
	}
	bad := "hired"
	if _, err := svc.Update(context.Background(), "user-1", job.ID, UpdateJobInput{Status: &bad}); !utils.IsCode(err, utils.CodeInvalidArgument) {
		t.Fatalf("expected invalid status, got %v", err)
	}

	status := " Applied "
	updated, err := svc.Update(context.Background(), "user-1", job.ID, UpdateJobInput{Status: &status})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Status != "applied" || req.calls != 1 {
		t.Fatalf("status change should not re-enrich: status=%s calls=%d", updated.Status, req.calls)
	}

	title := "Senior SRE"
	if _, err := svc.Update(context.Background(), "user-1", job.ID, UpdateJobInput{Title: &title}); err != nil {
		t.Fatalf("update title: %v", err)
	}
	if req.calls != 2 {
		t.Fatalf("title change should re-enrich, got %d calls", req.calls)
	}

	if _, err := svc.Update(context.Background(), "user-2", job.ID, UpdateJobInput{Title: &title}); !utils.IsCode(err, utils.CodeNotFound) {
		t.Fatalf("expected not found for other user, got %v", err)
	}
}

func TestScrapeJob(t *testing.T) {
	posting := scraper.Posting{Title: "Data Engineer", Company: "Globex", Description: "Build pipelines in Go", ExternalJobID: "4021"}
	svc, _, _ := newTestJobs(stubScraper{posting: posting}, nil)

	job, err := svc.Scrape(context.Background(), "user-1", "https://jobs.example.com/4021")
	if err != nil {
		t.Fatalf("scrape: %v", err)
	}
	if job.Source != models.JobSourceScraped || job.URL == nil || job.ExternalJobID == nil || *job.ExternalJobID != "4021" {
		t.Fatalf("unexpected job: %+v", job)
	}

	failing, _, _ := newTestJobs(stubScraper{err: errors.New("blocked")}, nil)
	_, err = failing.Scrape(context.Background(), "user-1", "https://jobs.example.com/x")
	var appErr *utils.AppError
	if !errors.As(err, &appErr) || appErr.Message != "Failed to scrape job: blocked" {
		t.Fatalf("unexpected scrape error: %v", err)
	}
}

func TestDeleteJobNotFound(t *testing.T) {
	svc, _, _ := newTestJobs(stubScraper{}, nil)
	if err := svc.Delete(context.Background(), "user-1", "missing"); !utils.IsCode(err, utils.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
