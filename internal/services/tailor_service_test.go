package services

import (
	"context"
	"errors"
	"testing"

	"github.com/tailorjob/backend/internal/models"
	"github.com/tailorjob/backend/internal/queue"
	"github.com/tailorjob/backend/internal/utils"
)

type tailorFixture struct {
	svc      TailorService
	cvs      *fakeCVRepo
	jobs     *fakeJobRepo
	tailored *fakeTailorRepo
	queue    *fakeQueue
	usage    *fakeUsage
}

func newTailorFixture() tailorFixture {
	f := tailorFixture{
		cvs:      newFakeCVRepo(),
		jobs:     newFakeJobRepo(),
		tailored: newFakeTailorRepo(),
		queue:    newFakeQueue(),
		usage:    &fakeUsage{},
	}
	f.cvs.cvs["cv-1"] = &models.CV{ID: "cv-1", UserID: "user-1", Status: models.CVStatusParsed}
	f.jobs.jobs["job-1"] = &models.Job{ID: "job-1", UserID: "user-1", Title: "Platform Engineer"}
	f.svc = NewTailorService(f.cvs, f.jobs, f.tailored, f.queue, f.usage, testLogger())
	return f
}

func TestTailorStartQueues(t *testing.T) {
	f := newTailorFixture()

	res, err := f.svc.Start(context.Background(), "user-1", "cv-1", "job-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if res.Message != "CV tailoring job queued" || res.JobID != queue.TailorJobID("cv-1", "job-1") {
		t.Fatalf("unexpected result: %+v", res)
	}
	job := f.queue.queued[0]
	if job.Type != queue.TypeAITailor || job.TargetJobID != "job-1" || job.CVID != "cv-1" {
		t.Fatalf("unexpected queued job: %+v", job)
	}
	if row := f.tailored.rows[res.TailoredCVID]; row == nil || row.Status != models.TailorStatusQueued {
		t.Fatalf("tailored cv not created as queued: %+v", row)
	}
	if len(f.usage.tracked) != 1 || f.usage.tracked[0] != "tailor_cv" {
		t.Fatalf("usage not tracked: %v", f.usage.tracked)
	}

	again, err := f.svc.Start(context.Background(), "user-1", "cv-1", "job-1")
	if err != nil {
		t.Fatalf("second start: %v", err)
	}
	if again.Message != "Tailored CV already exists" || again.TailoredCVID != res.TailoredCVID {
		t.Fatalf("expected existing tailored cv, got %+v", again)
	}
	if len(f.queue.queued) != 1 || len(f.usage.tracked) != 1 {
		t.Fatal("existing pair must not be queued or counted again")
	}
}

func TestTailorStartMissingInputs(t *testing.T) {
	f := newTailorFixture()

	_, err := f.svc.Start(context.Background(), "user-1", "cv-x", "job-1")
	var appErr *utils.AppError
	if !errors.As(err, &appErr) || appErr.Code != utils.CodeNotFound || appErr.Message != "CV not found" {
		t.Fatalf("expected CV not found, got %v", err)
	}
	_, err = f.svc.Start(context.Background(), "user-2", "cv-1", "job-1")
	if !utils.IsCode(err, utils.CodeNotFound) {
		t.Fatalf("other user's cv must be hidden, got %v", err)
	}
	_, err = f.svc.Start(context.Background(), "user-1", "cv-1", "job-x")
	if !errors.As(err, &appErr) || appErr.Message != "Job not found" {
		t.Fatalf("expected Job not found, got %v", err)
	}
}

func TestTailorStartQueueDown(t *testing.T) {
	f := newTailorFixture()
	f.queue.err = errors.New("redis down")

	if _, err := f.svc.Start(context.Background(), "user-1", "cv-1", "job-1"); !utils.IsCode(err, utils.CodeUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
	row, err := f.tailored.GetPair(context.Background(), "cv-1", "job-1")
	if err != nil || row.Status != models.TailorStatusFailed {
		t.Fatalf("row should be marked failed: %+v %v", row, err)
	}
	if len(f.usage.tracked) != 0 {
		t.Fatal("failed start must not be counted")
	}
}

func TestTailorStartRetriesFailed(t *testing.T) {
	f := newTailorFixture()
	f.queue.err = errors.New("redis down")
	if _, err := f.svc.Start(context.Background(), "user-1", "cv-1", "job-1"); !utils.IsCode(err, utils.CodeUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
	failed, _ := f.tailored.GetPair(context.Background(), "cv-1", "job-1")

	f.queue.err = nil
	res, err := f.svc.Start(context.Background(), "user-1", "cv-1", "job-1")
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if res.Message != "CV tailoring job queued" || res.TailoredCVID != failed.ID || res.JobID == "" {
		t.Fatalf("unexpected retry result: %+v", res)
	}
	row, _ := f.tailored.GetPair(context.Background(), "cv-1", "job-1")
	if row.Status != models.TailorStatusQueued || row.ErrorMessage != nil {
		t.Fatalf("row should be queued again: %+v", row)
	}
	if len(f.queue.queued) != 1 || len(f.usage.tracked) != 1 {
		t.Fatalf("expected one queued job and one usage record, got %d/%d", len(f.queue.queued), len(f.usage.tracked))
	}
}

func TestTailorStatusAndRevisions(t *testing.T) {
	f := newTailorFixture()

	if _, err := f.svc.Status(context.Background(), "user-1", "cv-1", "job-1"); !utils.IsCode(err, utils.CodeNotFound) {
		t.Fatalf("expected not found before start, got %v", err)
	}
	res, err := f.svc.Start(context.Background(), "user-1", "cv-1", "job-1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	st, err := f.svc.Status(context.Background(), "user-1", "cv-1", "job-1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if st.TailoredCVID != res.TailoredCVID || st.Status != models.TailorStatusQueued || st.QueueStatus != queue.StatusQueued {
		t.Fatalf("unexpected status: %+v", st)
	}

	revs, err := f.svc.Revisions(context.Background(), "user-1", "cv-1", "job-1")
	if err != nil || revs == nil || len(revs) != 0 {
		t.Fatalf("expected empty revisions, got %v %v", revs, err)
	}
	if _, err := f.tailored.AppendRevision(context.Background(), res.TailoredCVID, []byte(`{"summary":"x"}`), "Initial AI-tailored version", "ai"); err != nil {
		t.Fatalf("append: %v", err)
	}
	revs, _ = f.svc.Revisions(context.Background(), "user-1", "cv-1", "job-1")
	if len(revs) != 1 || revs[0].RevisionNumber != 1 {
		t.Fatalf("unexpected revisions: %+v", revs)
	}
}
