package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/tailorjob/backend/internal/models"
	"github.com/tailorjob/backend/internal/utils"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TailorRepository interface {
	Create(ctx context.Context, t *models.TailoredCV) error
	Get(ctx context.Context, userID, cvID, jobID string) (*models.TailoredCV, error)
	GetPair(ctx context.Context, cvID, jobID string) (*models.TailoredCV, error)
	SetStatus(ctx context.Context, id, status string, errMsg *string) error
	SaveContent(ctx context.Context, id string, content datatypes.JSON) error

	// AppendRevision stores content as the next revision number and mirrors it onto the tailored CV.
	AppendRevision(ctx context.Context, tailoredID string, content datatypes.JSON, summary, createdBy string) (*models.CVRevision, error)
	ListRevisions(ctx context.Context, tailoredID string) ([]models.CVRevision, error)
}

type tailorRepo struct {
	db *gorm.DB
}

func NewTailorRepo(db *gorm.DB) TailorRepository {
	return &tailorRepo{db: db}
}

func (r *tailorRepo) Create(ctx context.Context, t *models.TailoredCV) error {
	err := r.db.WithContext(ctx).Create(t).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return utils.ErrDuplicate
	}
	return err
}

func (r *tailorRepo) Get(ctx context.Context, userID, cvID, jobID string) (*models.TailoredCV, error) {
	var row models.TailoredCV
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND cv_id = ? AND job_id = ?", userID, cvID, jobID).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &row, err
}

func (r *tailorRepo) GetPair(ctx context.Context, cvID, jobID string) (*models.TailoredCV, error) {
	var row models.TailoredCV
	err := r.db.WithContext(ctx).
		Where("cv_id = ? AND job_id = ?", cvID, jobID).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &row, err
}

func (r *tailorRepo) SetStatus(ctx context.Context, id, status string, errMsg *string) error {
	res := r.db.WithContext(ctx).
		Model(&models.TailoredCV{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": status, "error_message": errMsg, "updated_at": time.Now().UTC()})
	return affected(res)
}

func (r *tailorRepo) SaveContent(ctx context.Context, id string, content datatypes.JSON) error {
	res := r.db.WithContext(ctx).
		Model(&models.TailoredCV{}).
		Where("id = ?", id).
		Updates(map[string]any{"tailored_content": content, "updated_at": time.Now().UTC()})
	return affected(res)
}

func (r *tailorRepo) AppendRevision(ctx context.Context, tailoredID string, content datatypes.JSON, summary, createdBy string) (*models.CVRevision, error) {
	var rev models.CVRevision
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// lock the parent row so concurrent appends serialize on it
		var parent models.TailoredCV
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", tailoredID).Take(&parent).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.ErrNotFound
			}
			return err
		}
		var last int
		if err := tx.Model(&models.CVRevision{}).
			Where("tailored_cv_id = ?", tailoredID).
			Select("COALESCE(MAX(revision_number), 0)").
			Scan(&last).Error; err != nil {
			return err
		}
		now := time.Now().UTC()
		rev = models.CVRevision{
			ID:             uuid.NewString(),
			TailoredCVID:   tailoredID,
			RevisionNumber: last + 1,
			Content:        content,
			ChangeSummary:  summary,
			CreatedBy:      createdBy,
			CreatedAt:      now,
		}
		if err := tx.Create(&rev).Error; err != nil {
			return err
		}
		return tx.Model(&models.TailoredCV{}).
			Where("id = ?", tailoredID).
			Updates(map[string]any{"tailored_content": content, "updated_at": now}).Error
	})
	if err != nil {
		return nil, err
	}
	return &rev, nil
}

func (r *tailorRepo) ListRevisions(ctx context.Context, tailoredID string) ([]models.CVRevision, error) {
	var rows []models.CVRevision
	err := r.db.WithContext(ctx).
		Where("tailored_cv_id = ?", tailoredID).
		Order("revision_number DESC").
		Find(&rows).Error
	return rows, err
}
