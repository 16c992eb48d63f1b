package postgres

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/tailorjob/backend/internal/models"
	"github.com/tailorjob/backend/internal/utils"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DuplicateKey carries the fields the tiered job dedup policy looks at.
type DuplicateKey struct {
	URL           string
	Company       string
	ExternalJobID string
	Title         string
}

type JobRepository interface {
	Create(ctx context.Context, j *models.Job) error
	GetByID(ctx context.Context, userID, jobID string) (*models.Job, error)
	ListByUser(ctx context.Context, userID string) ([]models.Job, error)
	Update(ctx context.Context, userID, jobID string, fields map[string]any) (*models.Job, error)
	Delete(ctx context.Context, userID, jobID string) error
	FindDuplicate(ctx context.Context, userID string, key DuplicateKey) (*models.Job, error)
	SaveRequirements(ctx context.Context, jobID string, matrix datatypes.JSON, embedding []float32, profile *models.JobProfile) error
	RankByEmbedding(ctx context.Context, userID string, embedding []float32, cvID string, limit int) ([]models.RankedJob, error)
}

type jobRepo struct {
	db *gorm.DB
}

func NewJobRepo(db *gorm.DB) JobRepository {
	return &jobRepo{db: db}
}

func (r *jobRepo) Create(ctx context.Context, j *models.Job) error {
	err := r.db.WithContext(ctx).Create(j).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return utils.ErrDuplicate
	}
	return err
}

func (r *jobRepo) GetByID(ctx context.Context, userID, jobID string) (*models.Job, error) {
	var row models.Job
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", jobID, userID).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &row, err
}

func (r *jobRepo) ListByUser(ctx context.Context, userID string) ([]models.Job, error) {
	var rows []models.Job
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&rows).Error
	return rows, err
}

func (r *jobRepo) Update(ctx context.Context, userID, jobID string, fields map[string]any) (*models.Job, error) {
	fields["updated_at"] = time.Now().UTC()
	res := r.db.WithContext(ctx).
		Model(&models.Job{}).
		Where("id = ? AND user_id = ?", jobID, userID).
		Updates(fields)
	if err := affected(res); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, userID, jobID)
}

func (r *jobRepo) Delete(ctx context.Context, userID, jobID string) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", jobID, userID).
		Delete(&models.Job{})
	return affected(res)
}

// FindDuplicate applies the dedup tiers in order: url, (company, external id), then
// (company, title) only when the candidate has neither url nor external id.
func (r *jobRepo) FindDuplicate(ctx context.Context, userID string, key DuplicateKey) (*models.Job, error) {
	url := strings.TrimSpace(key.URL)
	company := strings.TrimSpace(key.Company)
	extID := strings.TrimSpace(key.ExternalJobID)
	title := strings.TrimSpace(key.Title)

	var q *gorm.DB
	switch {
	case url != "":
		q = r.db.Where("user_id = ? AND url = ?", userID, url)
	case extID != "" && company != "":
		q = r.db.Where("user_id = ? AND lower(company) = lower(?) AND external_job_id = ?", userID, company, extID)
	case company != "" && title != "":
		q = r.db.Where("user_id = ? AND lower(company) = lower(?) AND lower(title) = lower(?) AND url IS NULL AND external_job_id IS NULL", userID, company, title)
	default:
		return nil, utils.ErrNotFound
	}

	var row models.Job
	err := q.WithContext(ctx).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &row, err
}

func (r *jobRepo) SaveRequirements(ctx context.Context, jobID string, matrix datatypes.JSON, embedding []float32, profile *models.JobProfile) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{"updated_at": time.Now().UTC()}
		if len(matrix) > 0 {
			updates["requirements_matrix"] = matrix
		}
		if len(embedding) > 0 {
			updates["embedding"] = pgvector.NewVector(embedding)
		}
		if err := tx.Model(&models.Job{}).Where("id = ?", jobID).Updates(updates).Error; err != nil {
			return err
		}
		if profile == nil {
			return nil
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "job_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"must_have", "nice_to_have", "role_level", "experience_years", "updated_at"}),
		}).Create(profile).Error
	})
}

// RankByEmbedding orders a user's embedded jobs by cosine distance to the CV embedding,
// joining any fresh cached score for that CV.
func (r *jobRepo) RankByEmbedding(ctx context.Context, userID string, embedding []float32, cvID string, limit int) ([]models.RankedJob, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []models.RankedJob
	err := r.db.WithContext(ctx).
		Table("jobs AS j").
		Select("j.*, j.embedding <=> ? AS distance, m.overall_score", pgvector.NewVector(embedding)).
		Joins("LEFT JOIN cv_job_matches m ON m.job_id = j.id AND m.cv_id = ? AND m.expires_at > NOW()", cvID).
		Where("j.user_id = ? AND j.embedding IS NOT NULL", userID).
		Order("distance ASC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}
