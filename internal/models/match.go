package models

import (
	"time"

	"gorm.io/datatypes"
)

// MatchTTL is how long a stored match analysis stays fresh.
const MatchTTL = 7 * 24 * time.Hour

type CVJobMatch struct {
	ID                  string         `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID              string         `gorm:"column:user_id;type:uuid;index" json:"user_id"`
	CVID                string         `gorm:"column:cv_id;type:uuid" json:"cv_id"`
	JobID               string         `gorm:"column:job_id;type:uuid" json:"job_id"`
	OverallScore        int            `gorm:"column:overall_score" json:"overall_score"`
	SkillsScore         int            `gorm:"column:skills_score" json:"skills_score"`
	ExperienceScore     int            `gorm:"column:experience_score" json:"experience_score"`
	QualificationsScore int            `gorm:"column:qualifications_score" json:"qualifications_score"`
	Analysis            datatypes.JSON `gorm:"column:analysis;type:jsonb" json:"analysis"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz" json:"created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamptz" json:"updated_at"`
	ExpiresAt time.Time `gorm:"column:expires_at;type:timestamptz" json:"expires_at"`
}

func (CVJobMatch) TableName() string { return "cv_job_matches" }

// Fresh reports whether the cached analysis can still be served at now.
func (m *CVJobMatch) Fresh(now time.Time) bool {
	return m != nil && m.ExpiresAt.After(now)
}
