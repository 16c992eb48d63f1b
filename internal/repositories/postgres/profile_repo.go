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

type ProfileRepository interface {
	GetByUserID(ctx context.Context, userID string) (*models.Profile, error)
	FindByEmail(ctx context.Context, email string) (*models.Profile, error)
	SetTier(ctx context.Context, userID, tier, status string) error
}

type profileRepo struct {
	db *gorm.DB
}

func NewProfileRepo(db *gorm.DB) ProfileRepository {
	return &profileRepo{db: db}
}

func (r *profileRepo) GetByUserID(ctx context.Context, userID string) (*models.Profile, error) {
	var p models.Profile
	err := r.db.WithContext(ctx).
		Where("id = ?", userID).
		Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &p, err
}

func (r *profileRepo) FindByEmail(ctx context.Context, email string) (*models.Profile, error) {
	var p models.Profile
	err := r.db.WithContext(ctx).
		Where("lower(email) = lower(?)", email).
		Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &p, err
}

// SetTier writes the denormalized subscription state, creating the profile row if auth never did.
func (r *profileRepo) SetTier(ctx context.Context, userID, tier, status string) error {
	now := time.Now().UTC()
	p := models.Profile{
		ID:                 userID,
		SubscriptionTier:   tier,
		SubscriptionStatus: status,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"subscription_tier", "subscription_status", "updated_at"}),
		}).
		Create(&p).Error
}
