package models

import "time"

// Profile mirrors the auth user with the denormalized subscription state.
type Profile struct {
	ID                 string    `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Email              string    `gorm:"column:email;type:text" json:"email"`
	FullName           string    `gorm:"column:full_name;type:text" json:"full_name"`
	SubscriptionTier   string    `gorm:"column:subscription_tier;type:text" json:"subscription_tier"`
	SubscriptionStatus string    `gorm:"column:subscription_status;type:text" json:"subscription_status"`
	CreatedAt          time.Time `gorm:"column:created_at;type:timestamptz" json:"created_at"`
	UpdatedAt          time.Time `gorm:"column:updated_at;type:timestamptz" json:"updated_at"`
}

func (Profile) TableName() string { return "profiles" }
