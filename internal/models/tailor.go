package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	TailorStatusQueued     = "queued"
	TailorStatusProcessing = "processing"
	TailorStatusCompleted  = "completed"
	TailorStatusFailed     = "failed"
)

type TailoredCV struct {
	ID              string         `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID          string         `gorm:"column:user_id;type:uuid;index" json:"user_id"`
	CVID            string         `gorm:"column:cv_id;type:uuid" json:"cv_id"`
	JobID           string         `gorm:"column:job_id;type:uuid" json:"job_id"`
	Status          string         `gorm:"column:status;type:text" json:"status"`
	TailoredContent datatypes.JSON `gorm:"column:tailored_content;type:jsonb" json:"tailored_content,omitempty"`
	ErrorMessage    *string        `gorm:"column:error_message;type:text" json:"error_message,omitempty"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamptz" json:"updated_at"`
}

func (TailoredCV) TableName() string { return "tailored_cvs" }

// CVRevision is append-only.
type CVRevision struct {
	ID             string         `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	TailoredCVID   string         `gorm:"column:tailored_cv_id;type:uuid;index" json:"tailored_cv_id"`
	RevisionNumber int            `gorm:"column:revision_number" json:"revision_number"`
	Content        datatypes.JSON `gorm:"column:content;type:jsonb" json:"content"`
	ChangeSummary  string         `gorm:"column:change_summary;type:text" json:"change_summary"`
	CreatedBy      string         `gorm:"column:created_by;type:text" json:"created_by"` // ai|user
	CreatedAt      time.Time      `gorm:"column:created_at;type:timestamptz" json:"created_at"`
}

func (CVRevision) TableName() string { return "cv_revisions" }

type ChatMessage struct {
	ID        string    `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID    string    `gorm:"column:user_id;type:uuid;index" json:"user_id"`
	CVID      string    `gorm:"column:cv_id;type:uuid" json:"cv_id"`
	JobID     string    `gorm:"column:job_id;type:uuid" json:"job_id"`
	Role      string    `gorm:"column:role;type:text" json:"role"` // "user" | "assistant"
	Content   string    `gorm:"column:content;type:text" json:"content"`
	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz;index" json:"created_at"`
}

func (ChatMessage) TableName() string { return "chat_messages" }
