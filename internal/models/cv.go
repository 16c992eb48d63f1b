package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

const (
	CVStatusUploaded = "uploaded"
	CVStatusParsing  = "parsing"
	CVStatusParsed   = "parsed"
	CVStatusError    = "error"
)

type CV struct {
	ID               string `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID           string `gorm:"column:user_id;type:uuid;index" json:"user_id"`
	Filename         string `gorm:"column:filename;type:text" json:"filename"`
	OriginalFilename string `gorm:"column:original_filename;type:text" json:"original_filename"`
	FilePath         string `gorm:"column:file_path;type:text" json:"file_path"`

	FileSize int64  `gorm:"column:file_size;type:bigint" json:"file_size"`
	MimeType string `gorm:"column:mime_type;type:text" json:"mime_type"`
	FileHash string `gorm:"column:file_hash;type:text" json:"file_hash,omitempty"`

	Status       string  `gorm:"column:status;type:text" json:"status"` // uploaded|parsing|parsed|error
	ErrorMessage *string `gorm:"column:error_message;type:text" json:"error_message,omitempty"`
	IsPrimary    bool    `gorm:"column:is_primary" json:"is_primary"`

	Embedding *pgvector.Vector `gorm:"column:embedding;type:vector(768)" json:"-"`

	UploadedAt time.Time  `gorm:"column:uploaded_at;type:timestamptz" json:"uploaded_at"`
	ParsedAt   *time.Time `gorm:"column:parsed_at;type:timestamptz" json:"parsed_at,omitempty"`
	UpdatedAt  time.Time  `gorm:"column:updated_at;type:timestamptz" json:"updated_at"`
}

func (CV) TableName() string { return "cvs" }

// CVSections holds the parsed, semi-structured content of a CV.
type CVSections struct {
	ID             string         `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	CVID           string         `gorm:"column:cv_id;type:uuid;uniqueIndex" json:"cv_id"`
	Summary        string         `gorm:"column:summary;type:text" json:"summary"`
	Skills         datatypes.JSON `gorm:"column:skills;type:jsonb" json:"skills"`
	Experience     datatypes.JSON `gorm:"column:experience;type:jsonb" json:"experience"`
	Education      datatypes.JSON `gorm:"column:education;type:jsonb" json:"education"`
	Certifications datatypes.JSON `gorm:"column:certifications;type:jsonb" json:"certifications"`
	RawText        string         `gorm:"column:raw_text;type:text" json:"-"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamptz" json:"updated_at"`
}

func (CVSections) TableName() string { return "cv_sections" }

// CVProfile is the normalized fact sheet the matcher works from.
type CVProfile struct {
	CVID            string         `gorm:"column:cv_id;type:uuid;primaryKey" json:"cv_id"`
	UserID          string         `gorm:"column:user_id;type:uuid;index" json:"user_id"`
	Skills          pq.StringArray `gorm:"column:skills;type:text[]" json:"skills"`
	Technologies    pq.StringArray `gorm:"column:technologies;type:text[]" json:"technologies"`
	Seniority       string         `gorm:"column:seniority;type:text" json:"seniority"`
	YearsExperience float64        `gorm:"column:years_experience;type:numeric(4,1)" json:"years_experience"`
	Facts           datatypes.JSON `gorm:"column:facts;type:jsonb" json:"facts"`
	UpdatedAt       time.Time      `gorm:"column:updated_at;type:timestamptz" json:"updated_at"`
}

func (CVProfile) TableName() string { return "cv_profiles" }

type Notification struct {
	ID        string    `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID    string    `gorm:"column:user_id;type:uuid;index" json:"user_id"`
	CVID      *string   `gorm:"column:cv_id;type:uuid" json:"cv_id,omitempty"`
	Type      string    `gorm:"column:type;type:text" json:"type"`
	Message   string    `gorm:"column:message;type:text" json:"message"`
	Read      bool      `gorm:"column:read" json:"read"`
	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz" json:"created_at"`
}

func (Notification) TableName() string { return "cv_notifications" }
