package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/tailorjob/backend/internal/models"
	"github.com/tailorjob/backend/internal/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CVRepository owns cvs together with their parsed sections and fact profile.
type CVRepository interface {
	Create(ctx context.Context, cv *models.CV) error
	GetByID(ctx context.Context, userID, cvID string) (*models.CV, error)
	GetByIDAny(ctx context.Context, cvID string) (*models.CV, error)
	FindByHash(ctx context.Context, userID, fileHash string) (*models.CV, error)
	ListByUser(ctx context.Context, userID string) ([]models.CV, error)
	ListByStatus(ctx context.Context, statuses []string, olderThan time.Time, limit int) ([]models.CV, error)
	SetStatus(ctx context.Context, cvID, status string, errMsg *string) error
	MarkParsed(ctx context.Context, cvID string, embedding []float32, parsedAt time.Time) error
	SetPrimary(ctx context.Context, userID, cvID string) error
	Delete(ctx context.Context, userID, cvID string) error

	UpsertSections(ctx context.Context, s *models.CVSections) error
	GetSections(ctx context.Context, cvID string) (*models.CVSections, error)
	UpsertProfile(ctx context.Context, p *models.CVProfile) error
	GetProfile(ctx context.Context, cvID string) (*models.CVProfile, error)
}

type cvRepo struct {
	db *gorm.DB
}

func NewCVRepo(db *gorm.DB) CVRepository {
	return &cvRepo{db: db}
}

func (r *cvRepo) Create(ctx context.Context, cv *models.CV) error {
	return r.db.WithContext(ctx).Create(cv).Error
}

func (r *cvRepo) GetByID(ctx context.Context, userID, cvID string) (*models.CV, error) {
	var row models.CV
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", cvID, userID).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &row, err
}

func (r *cvRepo) GetByIDAny(ctx context.Context, cvID string) (*models.CV, error) {
	var row models.CV
	err := r.db.WithContext(ctx).Where("id = ?", cvID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &row, err
}

func (r *cvRepo) FindByHash(ctx context.Context, userID, fileHash string) (*models.CV, error) {
	var row models.CV
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND file_hash = ?", userID, fileHash).
		Order("uploaded_at DESC").
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &row, err
}

func (r *cvRepo) ListByUser(ctx context.Context, userID string) ([]models.CV, error) {
	var rows []models.CV
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("uploaded_at DESC").
		Find(&rows).Error
	return rows, err
}

// ListByStatus returns CVs in any of statuses last touched before olderThan, oldest first.
func (r *cvRepo) ListByStatus(ctx context.Context, statuses []string, olderThan time.Time, limit int) ([]models.CV, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []models.CV
	err := r.db.WithContext(ctx).
		Where("status IN ? AND updated_at < ?", statuses, olderThan).
		Order("updated_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *cvRepo) SetStatus(ctx context.Context, cvID, status string, errMsg *string) error {
	res := r.db.WithContext(ctx).
		Model(&models.CV{}).
		Where("id = ?", cvID).
		Updates(map[string]any{
			"status":        status,
			"error_message": errMsg,
			"updated_at":    time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.ErrNotFound
	}
	return nil
}

func (r *cvRepo) MarkParsed(ctx context.Context, cvID string, embedding []float32, parsedAt time.Time) error {
	updates := map[string]any{
		"status":        models.CVStatusParsed,
		"error_message": nil,
		"parsed_at":     parsedAt,
		"updated_at":    parsedAt,
	}
	if len(embedding) > 0 {
		updates["embedding"] = pgvector.NewVector(embedding)
	}
	return r.db.WithContext(ctx).
		Model(&models.CV{}).
		Where("id = ?", cvID).
		Updates(updates).Error
}

// SetPrimary flips the primary flag inside one transaction; the cvs trigger keeps the same invariant.
func (r *cvRepo) SetPrimary(ctx context.Context, userID, cvID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.CV{}).
			Where("id = ? AND user_id = ?", cvID, userID).
			Updates(map[string]any{"is_primary": true, "updated_at": time.Now().UTC()})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return utils.ErrNotFound
		}
		return tx.Model(&models.CV{}).
			Where("user_id = ? AND id <> ? AND is_primary", userID, cvID).
			Update("is_primary", false).Error
	})
}

func (r *cvRepo) Delete(ctx context.Context, userID, cvID string) error {
	res := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", cvID, userID).
		Delete(&models.CV{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return utils.ErrNotFound
	}
	return nil
}

func (r *cvRepo) UpsertSections(ctx context.Context, s *models.CVSections) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "cv_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"summary", "skills", "experience", "education", "certifications", "raw_text", "updated_at"}),
		}).
		Create(s).Error
}

func (r *cvRepo) GetSections(ctx context.Context, cvID string) (*models.CVSections, error) {
	var row models.CVSections
	err := r.db.WithContext(ctx).Where("cv_id = ?", cvID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &row, err
}

func (r *cvRepo) UpsertProfile(ctx context.Context, p *models.CVProfile) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "cv_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"skills", "technologies", "seniority", "years_experience", "facts", "updated_at"}),
		}).
		Create(p).Error
}

func (r *cvRepo) GetProfile(ctx context.Context, cvID string) (*models.CVProfile, error) {
	var row models.CVProfile
	err := r.db.WithContext(ctx).Where("cv_id = ?", cvID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &row, err
}
