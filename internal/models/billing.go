package models

import "time"

const (
	SubscriptionActive    = "active"
	SubscriptionCancelled = "cancelled"
	SubscriptionExpired   = "expired"
	SubscriptionSuspended = "suspended"
)

type Subscription struct {
	ID                   string     `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID               string     `gorm:"column:user_id;type:uuid;uniqueIndex" json:"user_id"`
	Tier                 string     `gorm:"column:tier;type:text" json:"tier"`
	Status               string     `gorm:"column:status;type:text" json:"status"`
	PayPalSubscriptionID *string    `gorm:"column:paypal_subscription_id;type:text" json:"paypal_subscription_id,omitempty"`
	PayPalPlanID         *string    `gorm:"column:paypal_plan_id;type:text" json:"paypal_plan_id,omitempty"`
	BillingCycle         string     `gorm:"column:billing_cycle;type:text" json:"billing_cycle"`
	Amount               float64    `gorm:"column:amount;type:numeric(10,2)" json:"amount"`
	Currency             string     `gorm:"column:currency;type:text" json:"currency"`
	CurrentPeriodStart   time.Time  `gorm:"column:current_period_start;type:timestamptz" json:"current_period_start"`
	CurrentPeriodEnd     *time.Time `gorm:"column:current_period_end;type:timestamptz" json:"current_period_end,omitempty"`
	CancelledAt          *time.Time `gorm:"column:cancelled_at;type:timestamptz" json:"cancelled_at,omitempty"`
	CreatedAt            time.Time  `gorm:"column:created_at;type:timestamptz" json:"created_at"`
	UpdatedAt            time.Time  `gorm:"column:updated_at;type:timestamptz" json:"updated_at"`
}

func (Subscription) TableName() string { return "subscriptions" }

type Payment struct {
	ID              string    `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID          string    `gorm:"column:user_id;type:uuid;index" json:"user_id"`
	SubscriptionID  *string   `gorm:"column:subscription_id;type:uuid" json:"subscription_id,omitempty"`
	PayPalPaymentID string    `gorm:"column:paypal_payment_id;type:text" json:"paypal_payment_id"`
	PayPalOrderID   string    `gorm:"column:paypal_order_id;type:text" json:"paypal_order_id,omitempty"`
	Amount          float64   `gorm:"column:amount;type:numeric(10,2)" json:"amount"`
	Currency        string    `gorm:"column:currency;type:text" json:"currency"`
	Status          string    `gorm:"column:status;type:text" json:"status"` // completed|refunded|failed
	PaymentType     string    `gorm:"column:payment_type;type:text" json:"payment_type"`
	CreatedAt       time.Time `gorm:"column:created_at;type:timestamptz" json:"created_at"`
	UpdatedAt       time.Time `gorm:"column:updated_at;type:timestamptz" json:"updated_at"`
}

func (Payment) TableName() string { return "payments" }

// Usage is the per-month feature counter set, keyed like the plan limits.
type Usage struct {
	CVs      int `json:"cvs"`
	Matches  int `json:"matches"`
	Tailored int `json:"tailored"`
	Exports  int `json:"exports"`
}

// Get returns the counter for a limit key.
func (u Usage) Get(key string) int {
	switch key {
	case "cvs":
		return u.CVs
	case "matches":
		return u.Matches
	case "tailored":
		return u.Tailored
	case "exports":
		return u.Exports
	}
	return 0
}

type UsageRow struct {
	ID           string    `gorm:"column:id;type:uuid;primaryKey"`
	UserID       string    `gorm:"column:user_id;type:uuid"`
	PeriodStart  time.Time `gorm:"column:period_start;type:date"`
	PeriodEnd    time.Time `gorm:"column:period_end;type:date"`
	CVsUploaded  int       `gorm:"column:cvs_uploaded"`
	JobsMatched  int       `gorm:"column:jobs_matched"`
	CVsTailored  int       `gorm:"column:cvs_tailored"`
	PDFsExported int       `gorm:"column:pdfs_exported"`
}

func (UsageRow) TableName() string { return "usage_tracking" }

func (r UsageRow) Usage() Usage {
	return Usage{CVs: r.CVsUploaded, Matches: r.JobsMatched, Tailored: r.CVsTailored, Exports: r.PDFsExported}
}
