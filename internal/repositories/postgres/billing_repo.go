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

// PaymentStats counts payments created in a window.
type PaymentStats struct {
	Total     int64
	Completed int64
}

// ChurnStats counts subscriptions cancelled in a window against those still active.
type ChurnStats struct {
	Cancelled int64
	Active    int64
}

type BillingRepository interface {
	GetSubscription(ctx context.Context, userID string) (*models.Subscription, error)
	GetSubscriptionByPayPalID(ctx context.Context, paypalSubscriptionID string) (*models.Subscription, error)
	UpsertSubscription(ctx context.Context, s *models.Subscription) error
	SetSubscriptionStatus(ctx context.Context, paypalSubscriptionID, status string, cancelledAt *time.Time) (*models.Subscription, error)
	ListActiveSubscriptions(ctx context.Context) ([]models.Subscription, error)

	InsertPayment(ctx context.Context, p *models.Payment) (bool, error)
	SetPaymentStatus(ctx context.Context, paypalPaymentID, status string) error
	PaymentStats(ctx context.Context, since time.Time) (PaymentStats, error)
	ChurnStats(ctx context.Context, since time.Time) (ChurnStats, error)

	IncrementUsage(ctx context.Context, userID, feature string, amount int) error
	CurrentUsage(ctx context.Context, userID string) (models.Usage, error)
	InitUsagePeriod(ctx context.Context, userID string, start, end time.Time) error
}

type billingRepo struct {
	db *gorm.DB
}

func NewBillingRepo(db *gorm.DB) BillingRepository {
	return &billingRepo{db: db}
}

func (r *billingRepo) GetSubscription(ctx context.Context, userID string) (*models.Subscription, error) {
	var row models.Subscription
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &row, err
}

func (r *billingRepo) GetSubscriptionByPayPalID(ctx context.Context, paypalSubscriptionID string) (*models.Subscription, error) {
	var row models.Subscription
	err := r.db.WithContext(ctx).Where("paypal_subscription_id = ?", paypalSubscriptionID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	return &row, err
}

func (r *billingRepo) UpsertSubscription(ctx context.Context, s *models.Subscription) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"tier", "status", "paypal_subscription_id", "paypal_plan_id", "billing_cycle",
				"amount", "currency", "current_period_start", "current_period_end", "cancelled_at", "updated_at",
			}),
		}).
		Create(s).Error
}

func (r *billingRepo) SetSubscriptionStatus(ctx context.Context, paypalSubscriptionID, status string, cancelledAt *time.Time) (*models.Subscription, error) {
	updates := map[string]any{"status": status, "updated_at": time.Now().UTC()}
	if cancelledAt != nil {
		updates["cancelled_at"] = *cancelledAt
	}
	// ending a subscription drops the user back to the free tier
	if status == models.SubscriptionCancelled || status == models.SubscriptionExpired {
		updates["tier"] = "free"
	}
	res := r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("paypal_subscription_id = ?", paypalSubscriptionID).
		Updates(updates)
	if err := affected(res); err != nil {
		return nil, err
	}
	return r.GetSubscriptionByPayPalID(ctx, paypalSubscriptionID)
}

func (r *billingRepo) ListActiveSubscriptions(ctx context.Context) ([]models.Subscription, error) {
	var rows []models.Subscription
	err := r.db.WithContext(ctx).
		Where("status = ? AND paypal_subscription_id IS NOT NULL", models.SubscriptionActive).
		Order("updated_at ASC").
		Find(&rows).Error
	return rows, err
}

// InsertPayment records a payment once per PayPal id; false means it was already stored.
func (r *billingRepo) InsertPayment(ctx context.Context, p *models.Payment) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "paypal_payment_id"}}, DoNothing: true}).
		Create(p)
	return res.RowsAffected > 0, res.Error
}

func (r *billingRepo) SetPaymentStatus(ctx context.Context, paypalPaymentID, status string) error {
	res := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("paypal_payment_id = ?", paypalPaymentID).
		Updates(map[string]any{"status": status, "updated_at": time.Now().UTC()})
	return affected(res)
}

func (r *billingRepo) PaymentStats(ctx context.Context, since time.Time) (PaymentStats, error) {
	var st PaymentStats
	err := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Select("COUNT(*) AS total, COUNT(*) FILTER (WHERE status = 'completed') AS completed").
		Where("created_at >= ?", since).
		Scan(&st).Error
	return st, err
}

func (r *billingRepo) ChurnStats(ctx context.Context, since time.Time) (ChurnStats, error) {
	var st ChurnStats
	err := r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Select("COUNT(*) FILTER (WHERE status = 'cancelled' AND cancelled_at >= ?) AS cancelled, COUNT(*) FILTER (WHERE status = 'active') AS active", since).
		Scan(&st).Error
	return st, err
}

// IncrementUsage delegates to increment_usage so the per-month row is created atomically.
func (r *billingRepo) IncrementUsage(ctx context.Context, userID, feature string, amount int) error {
	return r.db.WithContext(ctx).Exec("SELECT increment_usage(?, ?, ?)", userID, feature, amount).Error
}

func (r *billingRepo) CurrentUsage(ctx context.Context, userID string) (models.Usage, error) {
	var rows []models.UsageRow
	err := r.db.WithContext(ctx).
		Raw("SELECT * FROM get_current_usage(?)", userID).
		Scan(&rows).Error
	if err != nil || len(rows) == 0 {
		return models.Usage{}, err
	}
	return rows[0].Usage(), nil
}

func (r *billingRepo) InitUsagePeriod(ctx context.Context, userID string, start, end time.Time) error {
	row := models.UsageRow{UserID: userID, PeriodStart: start, PeriodEnd: end}
	return r.db.WithContext(ctx).
		Omit("id").
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}, {Name: "period_start"}}, DoNothing: true}).
		Create(&row).Error
}
