package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/tailorjob/backend/internal/models"
	"github.com/tailorjob/backend/internal/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MatchRepository interface {
	Get(ctx context.Context, userID, cvID, jobID string) (*models.CVJobMatch, error)
	Upsert(ctx context.Context, m *models.CVJobMatch) error
	Delete(ctx context.Context, userID, cvID, jobID string) (bool, error)
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
	DeleteForUser(ctx context.Context, userID string) (int64, error)
	DeleteAll(ctx context.Context) (int64, error)
}

type matchRepo struct {
	db *gorm.DB
}

func NewMatchRepo(db *gorm.DB) MatchRepository {
	return &matchRepo{db: db}
}

func (r *matchRepo) Get(ctx context.Context, userID, cvID, jobID string) (*models.CVJobMatch, error) {
	var row models.CVJobMatch
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND cv_id = ? AND job_id = ?", userID, cvID, jobID).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &row, err
}

// Upsert replaces the analysis for (cv_id, job_id); expires_at is also refreshed by trigger.
func (r *matchRepo) Upsert(ctx context.Context, m *models.CVJobMatch) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "cv_id"}, {Name: "job_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"overall_score", "skills_score", "experience_score", "qualifications_score",
				"analysis", "updated_at", "expires_at",
			}),
		}).
		Create(m).Error
}

func (r *matchRepo) Delete(ctx context.Context, userID, cvID, jobID string) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND cv_id = ? AND job_id = ?", userID, cvID, jobID).
		Delete(&models.CVJobMatch{})
	return res.RowsAffected > 0, res.Error
}

func (r *matchRepo) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&models.CVJobMatch{})
	return res.RowsAffected, res.Error
}

func (r *matchRepo) DeleteForUser(ctx context.Context, userID string) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&models.CVJobMatch{})
	return res.RowsAffected, res.Error
}

func (r *matchRepo) DeleteAll(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&models.CVJobMatch{})
	return res.RowsAffected, res.Error
}
