package postgres

import (
	"context"

	"github.com/tailorjob/backend/internal/models"
	"gorm.io/gorm"
)

type ChatRepository interface {
	Insert(ctx context.Context, m *models.ChatMessage) error
	History(ctx context.Context, userID, cvID, jobID string, limit int) ([]models.ChatMessage, error)
}

type chatRepo struct {
	db *gorm.DB
}

func NewChatRepo(db *gorm.DB) ChatRepository {
	return &chatRepo{db: db}
}

func (r *chatRepo) Insert(ctx context.Context, m *models.ChatMessage) error {
	return r.db.WithContext(ctx).Create(m).Error
}

// History returns the latest limit messages in ascending order.
func (r *chatRepo) History(ctx context.Context, userID, cvID, jobID string, limit int) ([]models.ChatMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []models.ChatMessage
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND cv_id = ? AND job_id = ?", userID, cvID, jobID).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows, nil
}
