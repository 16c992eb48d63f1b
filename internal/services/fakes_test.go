package services

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"github.com/tailorjob/backend/internal/matcher"
	"github.com/tailorjob/backend/internal/models"
	"github.com/tailorjob/backend/internal/providers/paypal"
	"github.com/tailorjob/backend/internal/queue"
	pgrepo "github.com/tailorjob/backend/internal/repositories/postgres"
	"github.com/tailorjob/backend/internal/tailor"
	"github.com/tailorjob/backend/internal/utils"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

type fakeCVRepo struct {
	mu        sync.Mutex
	cvs       map[string]*models.CV
	sections  map[string]*models.CVSections
	profiles  map[string]*models.CVProfile
	createErr error
}

func newFakeCVRepo() *fakeCVRepo {
	return &fakeCVRepo{
		cvs:      map[string]*models.CV{},
		sections: map[string]*models.CVSections{},
		profiles: map[string]*models.CVProfile{},
	}
}

func (r *fakeCVRepo) Create(_ context.Context, cv *models.CV) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *cv
	r.cvs[cv.ID] = &c
	return nil
}

func (r *fakeCVRepo) GetByID(_ context.Context, userID, cvID string) (*models.CV, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cv, ok := r.cvs[cvID]
	if !ok || cv.UserID != userID {
		return nil, utils.ErrNotFound
	}
	c := *cv
	return &c, nil
}

func (r *fakeCVRepo) GetByIDAny(_ context.Context, cvID string) (*models.CV, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cv, ok := r.cvs[cvID]
	if !ok {
		return nil, utils.ErrNotFound
	}
	c := *cv
	return &c, nil
}

func (r *fakeCVRepo) FindByHash(_ context.Context, userID, hash string) (*models.CV, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cv := range r.cvs {
		if cv.UserID == userID && cv.FileHash == hash {
			c := *cv
			return &c, nil
		}
	}
	return nil, utils.ErrNotFound
}

func (r *fakeCVRepo) ListByUser(_ context.Context, userID string) ([]models.CV, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.CV
	for _, cv := range r.cvs {
		if cv.UserID == userID {
			out = append(out, *cv)
		}
	}
	return out, nil
}

func (r *fakeCVRepo) ListByStatus(_ context.Context, statuses []string, olderThan time.Time, limit int) ([]models.CV, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.CV
	for _, cv := range r.cvs {
		for _, s := range statuses {
			if cv.Status == s && cv.UpdatedAt.Before(olderThan) && len(out) < limit {
				out = append(out, *cv)
			}
		}
	}
	return out, nil
}

func (r *fakeCVRepo) SetStatus(_ context.Context, cvID, status string, errMsg *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cv, ok := r.cvs[cvID]
	if !ok {
		return utils.ErrNotFound
	}
	cv.Status = status
	cv.ErrorMessage = errMsg
	return nil
}

func (r *fakeCVRepo) MarkParsed(_ context.Context, cvID string, embedding []float32, parsedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cv, ok := r.cvs[cvID]
	if !ok {
		return utils.ErrNotFound
	}
	cv.Status = models.CVStatusParsed
	cv.ParsedAt = &parsedAt
	if embedding != nil {
		v := pgvector.NewVector(embedding)
		cv.Embedding = &v
	}
	return nil
}

func (r *fakeCVRepo) SetPrimary(_ context.Context, userID, cvID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cv, ok := r.cvs[cvID]
	if !ok || cv.UserID != userID {
		return utils.ErrNotFound
	}
	for _, other := range r.cvs {
		if other.UserID == userID {
			other.IsPrimary = other.ID == cvID
		}
	}
	return nil
}

func (r *fakeCVRepo) Delete(_ context.Context, userID, cvID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cv, ok := r.cvs[cvID]
	if !ok || cv.UserID != userID {
		return utils.ErrNotFound
	}
	delete(r.cvs, cvID)
	return nil
}

func (r *fakeCVRepo) UpsertSections(_ context.Context, s *models.CVSections) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sections[s.CVID] = s
	return nil
}

func (r *fakeCVRepo) GetSections(_ context.Context, cvID string) (*models.CVSections, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sections[cvID]
	if !ok {
		return nil, utils.ErrNotFound
	}
	return s, nil
}

func (r *fakeCVRepo) UpsertProfile(_ context.Context, p *models.CVProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles[p.CVID] = p
	return nil
}

func (r *fakeCVRepo) GetProfile(_ context.Context, cvID string) (*models.CVProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[cvID]
	if !ok {
		return nil, utils.ErrNotFound
	}
	return p, nil
}

type fakeJobRepo struct {
	mu         sync.Mutex
	jobs       map[string]*models.Job
	profiles   map[string]*models.JobProfile
	embeddings map[string][]float32
	ranked     []models.RankedJob
	createErr  error
}

func newFakeJobRepo() *fakeJobRepo {
	return &fakeJobRepo{
		jobs:       map[string]*models.Job{},
		profiles:   map[string]*models.JobProfile{},
		embeddings: map[string][]float32{},
	}
}

func (r *fakeJobRepo) Create(_ context.Context, j *models.Job) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *j
	r.jobs[j.ID] = &c
	return nil
}

func (r *fakeJobRepo) GetByID(_ context.Context, userID, jobID string) (*models.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[jobID]
	if !ok || j.UserID != userID {
		return nil, utils.ErrNotFound
	}
	c := *j
	return &c, nil
}

func (r *fakeJobRepo) ListByUser(_ context.Context, userID string) ([]models.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Job
	for _, j := range r.jobs {
		if j.UserID == userID {
			out = append(out, *j)
		}
	}
	return out, nil
}

func (r *fakeJobRepo) Update(_ context.Context, userID, jobID string, fields map[string]any) (*models.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[jobID]
	if !ok || j.UserID != userID {
		return nil, utils.ErrNotFound
	}
	for k, v := range fields {
		switch k {
		case "title":
			j.Title = v.(string)
		case "company":
			j.Company = v.(string)
		case "description":
			j.Description = v.(string)
		case "status":
			j.Status = v.(string)
		case "url":
			j.URL = v.(*string)
		}
	}
	c := *j
	return &c, nil
}

func (r *fakeJobRepo) Delete(_ context.Context, userID, jobID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[jobID]
	if !ok || j.UserID != userID {
		return utils.ErrNotFound
	}
	delete(r.jobs, jobID)
	return nil
}

func (r *fakeJobRepo) FindDuplicate(_ context.Context, userID string, key pgrepo.DuplicateKey) (*models.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, j := range r.jobs {
		if j.UserID != userID {
			continue
		}
		if key.URL != "" && j.URL != nil && *j.URL == key.URL {
			return j, nil
		}
		if j.Company == key.Company && j.Title == key.Title {
			return j, nil
		}
	}
	return nil, utils.ErrNotFound
}

func (r *fakeJobRepo) SaveRequirements(_ context.Context, jobID string, matrix datatypes.JSON, embedding []float32, profile *models.JobProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[jobID]
	if !ok {
		return utils.ErrNotFound
	}
	j.RequirementsMatrix = matrix
	r.embeddings[jobID] = embedding
	r.profiles[jobID] = profile
	return nil
}

func (r *fakeJobRepo) RankByEmbedding(_ context.Context, _ string, _ []float32, _ string, limit int) ([]models.RankedJob, error) {
	if len(r.ranked) > limit {
		return r.ranked[:limit], nil
	}
	return r.ranked, nil
}

type fakeMatchRepo struct {
	mu      sync.Mutex
	rows    map[string]*models.CVJobMatch
	upserts int
}

func newFakeMatchRepo() *fakeMatchRepo { return &fakeMatchRepo{rows: map[string]*models.CVJobMatch{}} }

func matchKey(userID, cvID, jobID string) string { return userID + "|" + cvID + "|" + jobID }

func (r *fakeMatchRepo) Get(_ context.Context, userID, cvID, jobID string) (*models.CVJobMatch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.rows[matchKey(userID, cvID, jobID)]
	if !ok {
		return nil, utils.ErrNotFound
	}
	return m, nil
}

func (r *fakeMatchRepo) Upsert(_ context.Context, m *models.CVJobMatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upserts++
	r.rows[matchKey(m.UserID, m.CVID, m.JobID)] = m
	return nil
}

func (r *fakeMatchRepo) Delete(_ context.Context, userID, cvID, jobID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := matchKey(userID, cvID, jobID)
	_, ok := r.rows[k]
	delete(r.rows, k)
	return ok, nil
}

func (r *fakeMatchRepo) PurgeExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for k, m := range r.rows {
		if !m.ExpiresAt.After(now) {
			delete(r.rows, k)
			n++
		}
	}
	return n, nil
}

func (r *fakeMatchRepo) DeleteForUser(_ context.Context, userID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for k, m := range r.rows {
		if m.UserID == userID {
			delete(r.rows, k)
			n++
		}
	}
	return n, nil
}

func (r *fakeMatchRepo) DeleteAll(_ context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := int64(len(r.rows))
	r.rows = map[string]*models.CVJobMatch{}
	return n, nil
}

type fakeTailorRepo struct {
	mu        sync.Mutex
	rows      map[string]*models.TailoredCV
	revisions map[string][]models.CVRevision
	createErr error
}

func newFakeTailorRepo() *fakeTailorRepo {
	return &fakeTailorRepo{rows: map[string]*models.TailoredCV{}, revisions: map[string][]models.CVRevision{}}
}

func (r *fakeTailorRepo) Create(_ context.Context, t *models.TailoredCV) error {
	if r.createErr != nil {
		return r.createErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *t
	r.rows[t.ID] = &c
	return nil
}

func (r *fakeTailorRepo) Get(_ context.Context, userID, cvID, jobID string) (*models.TailoredCV, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.rows {
		if t.UserID == userID && t.CVID == cvID && t.JobID == jobID {
			c := *t
			return &c, nil
		}
	}
	return nil, utils.ErrNotFound
}

func (r *fakeTailorRepo) GetPair(_ context.Context, cvID, jobID string) (*models.TailoredCV, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.rows {
		if t.CVID == cvID && t.JobID == jobID {
			c := *t
			return &c, nil
		}
	}
	return nil, utils.ErrNotFound
}

func (r *fakeTailorRepo) SetStatus(_ context.Context, id, status string, errMsg *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.rows[id]
	if !ok {
		return utils.ErrNotFound
	}
	t.Status = status
	t.ErrorMessage = errMsg
	return nil
}

func (r *fakeTailorRepo) SaveContent(_ context.Context, id string, content datatypes.JSON) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.rows[id]
	if !ok {
		return utils.ErrNotFound
	}
	t.TailoredContent = content
	return nil
}

func (r *fakeTailorRepo) AppendRevision(_ context.Context, tailoredID string, content datatypes.JSON, summary, createdBy string) (*models.CVRevision, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.rows[tailoredID]
	if !ok {
		return nil, utils.ErrNotFound
	}
	rev := models.CVRevision{
		ID:             "rev-" + tailoredID,
		TailoredCVID:   tailoredID,
		RevisionNumber: len(r.revisions[tailoredID]) + 1,
		Content:        content,
		ChangeSummary:  summary,
		CreatedBy:      createdBy,
	}
	r.revisions[tailoredID] = append(r.revisions[tailoredID], rev)
	t.TailoredContent = content
	return &rev, nil
}

func (r *fakeTailorRepo) ListRevisions(_ context.Context, tailoredID string) ([]models.CVRevision, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.revisions[tailoredID], nil
}

type fakeChatRepo struct {
	mu   sync.Mutex
	msgs []models.ChatMessage
}

func (r *fakeChatRepo) Insert(_ context.Context, m *models.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, *m)
	return nil
}

func (r *fakeChatRepo) History(_ context.Context, userID, cvID, jobID string, limit int) ([]models.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.ChatMessage
	for _, m := range r.msgs {
		if m.UserID == userID && m.CVID == cvID && m.JobID == jobID {
			out = append(out, m)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

type fakeNotificationRepo struct {
	mu   sync.Mutex
	rows []models.Notification
}

func (r *fakeNotificationRepo) Insert(_ context.Context, n *models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, *n)
	return nil
}

func (r *fakeNotificationRepo) ListUnread(_ context.Context, userID string, limit int) ([]models.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Notification
	for _, n := range r.rows {
		if n.UserID == userID && !n.Read && len(out) < limit {
			out = append(out, n)
		}
	}
	return out, nil
}

func (r *fakeNotificationRepo) MarkRead(_ context.Context, userID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.rows {
		if r.rows[i].ID == id && r.rows[i].UserID == userID {
			r.rows[i].Read = true
			return nil
		}
	}
	return utils.ErrNotFound
}

func (r *fakeNotificationRepo) Delete(_ context.Context, userID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.rows {
		if r.rows[i].ID == id && r.rows[i].UserID == userID {
			r.rows = append(r.rows[:i], r.rows[i+1:]...)
			return nil
		}
	}
	return utils.ErrNotFound
}

type fakeBillingRepo struct {
	mu         sync.Mutex
	subs       map[string]*models.Subscription
	payments   map[string]*models.Payment
	usage      map[string]models.Usage
	increments []string
	payStats   pgrepo.PaymentStats
	churn      pgrepo.ChurnStats
	statsErr   error
}

func newFakeBillingRepo() *fakeBillingRepo {
	return &fakeBillingRepo{
		subs:     map[string]*models.Subscription{},
		payments: map[string]*models.Payment{},
		usage:    map[string]models.Usage{},
	}
}

func (r *fakeBillingRepo) GetSubscription(_ context.Context, userID string) (*models.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subs[userID]
	if !ok {
		return nil, utils.ErrNotFound
	}
	c := *s
	return &c, nil
}

func (r *fakeBillingRepo) GetSubscriptionByPayPalID(_ context.Context, id string) (*models.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.subs {
		if s.PayPalSubscriptionID != nil && *s.PayPalSubscriptionID == id {
			c := *s
			return &c, nil
		}
	}
	return nil, utils.ErrNotFound
}

func (r *fakeBillingRepo) UpsertSubscription(_ context.Context, s *models.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *s
	r.subs[s.UserID] = &c
	return nil
}

func (r *fakeBillingRepo) SetSubscriptionStatus(_ context.Context, id, status string, cancelledAt *time.Time) (*models.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.subs {
		if s.PayPalSubscriptionID != nil && *s.PayPalSubscriptionID == id {
			s.Status = status
			if cancelledAt != nil {
				s.CancelledAt = cancelledAt
			}
			if status == models.SubscriptionCancelled || status == models.SubscriptionExpired {
				s.Tier = "free"
			}
			c := *s
			return &c, nil
		}
	}
	return nil, utils.ErrNotFound
}

func (r *fakeBillingRepo) ListActiveSubscriptions(_ context.Context) ([]models.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Subscription
	for _, s := range r.subs {
		if s.Status == models.SubscriptionActive {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (r *fakeBillingRepo) InsertPayment(_ context.Context, p *models.Payment) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.payments[p.PayPalPaymentID]; ok {
		return false, nil
	}
	c := *p
	r.payments[p.PayPalPaymentID] = &c
	return true, nil
}

func (r *fakeBillingRepo) SetPaymentStatus(_ context.Context, id, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[id]
	if !ok {
		return utils.ErrNotFound
	}
	p.Status = status
	return nil
}

func (r *fakeBillingRepo) PaymentStats(context.Context, time.Time) (pgrepo.PaymentStats, error) {
	return r.payStats, r.statsErr
}

func (r *fakeBillingRepo) ChurnStats(context.Context, time.Time) (pgrepo.ChurnStats, error) {
	return r.churn, r.statsErr
}

func (r *fakeBillingRepo) IncrementUsage(_ context.Context, userID, feature string, amount int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u := r.usage[userID]
	switch feature {
	case "cv_upload":
		u.CVs += amount
	case "job_match":
		u.Matches += amount
	case "tailor_cv":
		u.Tailored += amount
	case "export_pdf":
		u.Exports += amount
	}
	r.usage[userID] = u
	r.increments = append(r.increments, feature)
	return nil
}

func (r *fakeBillingRepo) CurrentUsage(_ context.Context, userID string) (models.Usage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.usage[userID], nil
}

func (r *fakeBillingRepo) InitUsagePeriod(context.Context, string, time.Time, time.Time) error {
	return nil
}

type fakeProfileRepo struct {
	mu       sync.Mutex
	profiles map[string]*models.Profile
}

func newFakeProfileRepo() *fakeProfileRepo {
	return &fakeProfileRepo{profiles: map[string]*models.Profile{}}
}

func (r *fakeProfileRepo) GetByUserID(_ context.Context, userID string) (*models.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[userID]
	if !ok {
		return nil, utils.ErrNotFound
	}
	c := *p
	return &c, nil
}

func (r *fakeProfileRepo) FindByEmail(_ context.Context, email string) (*models.Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.profiles {
		if p.Email == email {
			c := *p
			return &c, nil
		}
	}
	return nil, utils.ErrNotFound
}

func (r *fakeProfileRepo) SetTier(_ context.Context, userID, tier, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[userID]
	if !ok {
		p = &models.Profile{ID: userID}
		r.profiles[userID] = p
	}
	p.SubscriptionTier = tier
	p.SubscriptionStatus = status
	return nil
}

type fakeWebhookEvents struct {
	mu     sync.Mutex
	events map[string]*models.WebhookEvent
	stats  models.WebhookStats
}

func newFakeWebhookEvents() *fakeWebhookEvents {
	return &fakeWebhookEvents{events: map[string]*models.WebhookEvent{}}
}

func (r *fakeWebhookEvents) Insert(_ context.Context, e *models.WebhookEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.events[e.PayPalEventID]; ok {
		return utils.ErrDuplicate
	}
	c := *e
	r.events[e.PayPalEventID] = &c
	return nil
}

func (r *fakeWebhookEvents) GetByEventID(_ context.Context, id string) (*models.WebhookEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[id]
	if !ok {
		return nil, utils.ErrNotFound
	}
	c := *e
	return &c, nil
}

func (r *fakeWebhookEvents) MarkProcessed(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[id]
	if !ok {
		return utils.ErrNotFound
	}
	e.Processed = true
	return nil
}

func (r *fakeWebhookEvents) MarkFailed(_ context.Context, id, msg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.events[id]
	if !ok {
		return utils.ErrNotFound
	}
	e.ErrorMessage = msg
	e.RetryCount++
	return nil
}

func (r *fakeWebhookEvents) Stats(context.Context, time.Time) (models.WebhookStats, error) {
	return r.stats, nil
}

type fakeQueue struct {
	mu     sync.Mutex
	jobs   map[string]queue.Job
	queued []queue.Job
	err    error
	// onEnqueue runs before the job is accepted.
	onEnqueue func(queue.Job)
}

func newFakeQueue() *fakeQueue { return &fakeQueue{jobs: map[string]queue.Job{}} }

func (q *fakeQueue) Enqueue(_ context.Context, job queue.Job) (queue.Job, error) {
	if q.onEnqueue != nil {
		q.onEnqueue(job)
	}
	if q.err != nil {
		return queue.Job{}, q.err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if job.ID == "" {
		job.ID = "job-" + job.CVID
	}
	if job.Type == "" {
		job.Type = queue.TypeCVParse
	}
	job.Status = queue.StatusQueued
	q.jobs[job.ID] = job
	q.queued = append(q.queued, job)
	return job, nil
}

func (q *fakeQueue) GetJob(_ context.Context, id string) (queue.Job, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	j, ok := q.jobs[id]
	return j, ok, nil
}

type fakeUsage struct {
	mu      sync.Mutex
	tracked []string
	deny    error
	checked []string
}

func (u *fakeUsage) RequireFeature(_ context.Context, _ string, feature string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.checked = append(u.checked, feature)
	return u.deny
}

func (u *fakeUsage) TrackUsage(_ context.Context, _ string, feature string, _ int) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.tracked = append(u.tracked, feature)
	return nil
}

type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
	err     error
}

func newFakeStore() *fakeStore { return &fakeStore{objects: map[string][]byte{}} }

func (s *fakeStore) Upload(_ context.Context, objectName, _ string, r io.Reader, _ int64) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[objectName] = b
	return objectName, nil
}

func (s *fakeStore) Download(_ context.Context, objectName string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.objects[objectName]
	if !ok {
		return nil, errors.New("object not found")
	}
	return b, nil
}

func (s *fakeStore) SignedGetURL(_ context.Context, objectName string, _ time.Duration) (string, error) {
	return "https://storage.test/" + objectName + "?sig=1", nil
}

func (s *fakeStore) Delete(_ context.Context, objectName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, objectName)
	s.deleted = append(s.deleted, objectName)
	return nil
}

func (s *fakeStore) Close() error { return nil }

type fakePayPal struct {
	subs      map[string]*paypal.Subscription
	created   []paypal.CreateSubscriptionInput
	cancelled []string
	verified  bool
}

func newFakePayPal() *fakePayPal {
	return &fakePayPal{subs: map[string]*paypal.Subscription{}, verified: true}
}

func (p *fakePayPal) CreateSubscription(_ context.Context, in paypal.CreateSubscriptionInput) (*paypal.Subscription, error) {
	p.created = append(p.created, in)
	return &paypal.Subscription{ID: "I-NEW", Status: "APPROVAL_PENDING", PlanID: in.PlanID, ApprovalURL: "https://paypal.test/approve/I-NEW"}, nil
}

func (p *fakePayPal) GetSubscription(_ context.Context, id string) (*paypal.Subscription, error) {
	s, ok := p.subs[id]
	if !ok {
		return nil, errors.New("paypal: RESOURCE_NOT_FOUND")
	}
	return s, nil
}

func (p *fakePayPal) CancelSubscription(_ context.Context, id, _ string) error {
	p.cancelled = append(p.cancelled, id)
	return nil
}

func (p *fakePayPal) SuspendSubscription(context.Context, string, string) error  { return nil }
func (p *fakePayPal) ActivateSubscription(context.Context, string, string) error { return nil }

func (p *fakePayPal) Transactions(context.Context, string, time.Time, time.Time) ([]paypal.Transaction, error) {
	return nil, nil
}

func (p *fakePayPal) PlanDetails(_ context.Context, planID string) (*paypal.Plan, error) {
	return &paypal.Plan{ID: planID, Status: "ACTIVE"}, nil
}

func (p *fakePayPal) VerifyWebhookSignature(context.Context, paypal.WebhookHeaders, []byte) (bool, error) {
	return p.verified, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []queue.Event
}

func (p *fakePublisher) Publish(_ context.Context, _ string, ev queue.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

type fakeAnalyzer struct {
	calls  int
	result matcher.Result
}

func (a *fakeAnalyzer) Analyze(context.Context, matcher.CVFacts, matcher.Job) *matcher.Result {
	a.calls++
	r := a.result
	return &r
}

type fakeResponder struct {
	chunks []string
	reply  tailor.ChatReply
	err    error
	input  tailor.ChatInput
}

func (f *fakeResponder) Reply(_ context.Context, in tailor.ChatInput, onChunk func(string)) (tailor.ChatReply, error) {
	f.input = in
	if f.err != nil {
		return tailor.ChatReply{}, f.err
	}
	for _, c := range f.chunks {
		onChunk(c)
	}
	return f.reply, nil
}
