package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

const (
	JobSourceManual  = "manual"
	JobSourceScraped = "scraped"
	JobStatusSaved   = "saved"
)

type Job struct {
	ID            string  `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID        string  `gorm:"column:user_id;type:uuid;index" json:"user_id"`
	Title         string  `gorm:"column:title;type:text" json:"title"`
	Company       string  `gorm:"column:company;type:text" json:"company"`
	Description   string  `gorm:"column:description;type:text" json:"description"`
	URL           *string `gorm:"column:url;type:text" json:"url,omitempty"`
	ExternalJobID *string `gorm:"column:external_job_id;type:text" json:"external_job_id,omitempty"`
	Source        string  `gorm:"column:source;type:text" json:"source"` // manual|scraped
	Status        string  `gorm:"column:status;type:text" json:"status"`

	RequirementsMatrix datatypes.JSON   `gorm:"column:requirements_matrix;type:jsonb" json:"requirements_matrix,omitempty"`
	Embedding          *pgvector.Vector `gorm:"column:embedding;type:vector(768)" json:"-"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamptz" json:"updated_at"`
}

func (Job) TableName() string { return "jobs" }

type JobProfile struct {
	JobID           string         `gorm:"column:job_id;type:uuid;primaryKey" json:"job_id"`
	MustHave        pq.StringArray `gorm:"column:must_have;type:text[]" json:"must_have"`
	NiceToHave      pq.StringArray `gorm:"column:nice_to_have;type:text[]" json:"nice_to_have"`
	RoleLevel       string         `gorm:"column:role_level;type:text" json:"role_level"`
	ExperienceYears float64        `gorm:"column:experience_years;type:numeric(4,1)" json:"experience_years"`
	UpdatedAt       time.Time      `gorm:"column:updated_at;type:timestamptz" json:"updated_at"`
}

func (JobProfile) TableName() string { return "job_profiles" }

// RankedJob is a job annotated with its embedding distance and any cached score.
type RankedJob struct {
	Job
	Distance     float64 `gorm:"column:distance" json:"distance"`
	OverallScore *int    `gorm:"column:overall_score" json:"overall_score,omitempty"`
}
