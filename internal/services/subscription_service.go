package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tailorjob/backend/config"
	"github.com/tailorjob/backend/internal/cache"
	"github.com/tailorjob/backend/internal/metrics"
	"github.com/tailorjob/backend/internal/models"
	pgrepo "github.com/tailorjob/backend/internal/repositories/postgres"
	"github.com/tailorjob/backend/internal/utils"
)

const subscriptionCacheTTL = 5 * time.Minute

// SubscriptionInfo is a user's effective plan together with this month's usage.
type SubscriptionInfo struct {
	Tier             string         `json:"tier"`
	Status           string         `json:"status"`
	Usage            models.Usage   `json:"usage"`
	Limits           map[string]int `json:"limits"`
	MatcherVersion   string         `json:"matcher_version"`
	SubscriptionID   *string        `json:"subscription_id"`
	CurrentPeriodEnd *time.Time     `json:"current_period_end"`
	CancelledAt      *time.Time     `json:"cancelled_at,omitempty"`
}

type UsageInfo struct {
	Tier             string         `json:"tier"`
	Status           string         `json:"status"`
	Usage            models.Usage   `json:"usage"`
	Limits           map[string]int `json:"limits"`
	Percentages      map[string]int `json:"percentages"`
	CurrentPeriodEnd *time.Time     `json:"current_period_end"`
}

// UsageTracker records feature consumption after an operation succeeds.
type UsageTracker interface {
	TrackUsage(ctx context.Context, userID, feature string, amount int) error
}

// QuotaGate checks a feature quota inside a service, for operations that are
// only metered on some paths.
type QuotaGate interface {
	UsageTracker
	RequireFeature(ctx context.Context, userID, feature string) error
}

type SubscriptionService interface {
	UsageTracker

	Get(ctx context.Context, userID string) (*SubscriptionInfo, error)
	// CanUseFeature reports whether the user is under the feature's limit, with a denial reason.
	CanUseFeature(ctx context.Context, userID, feature string) (bool, string, error)
	// RequireFeature is CanUseFeature as an error carrying upgrade details.
	RequireFeature(ctx context.Context, userID, feature string) error
	RequireTier(ctx context.Context, userID, minTier string) error
	UsageInfo(ctx context.Context, userID string) (*UsageInfo, error)

	Activate(ctx context.Context, in ActivateInput) (*models.Subscription, error)
	UpdateStatus(ctx context.Context, paypalSubscriptionID, status string, cancelledAt *time.Time) (*models.Subscription, error)
	// GrantTier sets a tier without PayPal, for support and admin use.
	GrantTier(ctx context.Context, userID, tier string) error
}

type ActivateInput struct {
	UserID               string
	PayPalSubscriptionID string
	PayPalPlanID         string
	Tier                 string
	BillingCycle         string
	Amount               float64
	Currency             string
}

type subscriptionService struct {
	billing  pgrepo.BillingRepository
	profiles pgrepo.ProfileRepository
	plans    *config.PlanCatalog
	cache    cache.Cache
	log      *logrus.Entry
	now      func() time.Time
}

func NewSubscriptionService(billing pgrepo.BillingRepository, profiles pgrepo.ProfileRepository, plans *config.PlanCatalog, c cache.Cache, log *logrus.Entry) SubscriptionService {
	return &subscriptionService{
		billing:  billing,
		profiles: profiles,
		plans:    plans,
		cache:    c,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type cachedSubscription struct {
	Found bool                 `json:"found"`
	Sub   *models.Subscription `json:"sub,omitempty"`
}

func (s *subscriptionService) subscription(ctx context.Context, userID string) (*models.Subscription, error) {
	cached, err := cache.Remember(ctx, s.cache, cache.SubscriptionKey(userID), subscriptionCacheTTL,
		func(ctx context.Context) (cachedSubscription, error) {
			sub, err := s.billing.GetSubscription(ctx, userID)
			if errors.Is(err, utils.ErrNotFound) {
				return cachedSubscription{}, nil
			}
			if err != nil {
				return cachedSubscription{}, err
			}
			return cachedSubscription{Found: true, Sub: sub}, nil
		})
	if err != nil || !cached.Found {
		return nil, err
	}
	return cached.Sub, nil
}

func (s *subscriptionService) invalidate(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, cache.SubscriptionKey(userID)); err != nil {
		s.log.WithError(err).WithField("user_id", userID).Warn("subscription cache invalidation failed")
	}
}

func (s *subscriptionService) Get(ctx context.Context, userID string) (*SubscriptionInfo, error) {
	const op = "SubscriptionService.Get"

	if userID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id is required", nil)
	}
	sub, err := s.subscription(ctx, userID)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to load subscription", err)
	}
	usage, err := s.billing.CurrentUsage(ctx, userID)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to load usage", err)
	}

	info := &SubscriptionInfo{Tier: config.TierFree, Status: models.SubscriptionActive, Usage: usage}
	if sub != nil {
		info.Tier = sub.Tier
		info.Status = sub.Status
		info.SubscriptionID = sub.PayPalSubscriptionID
		info.CurrentPeriodEnd = sub.CurrentPeriodEnd
		info.CancelledAt = sub.CancelledAt
		if sub.Status == models.SubscriptionCancelled || sub.Status == models.SubscriptionExpired {
			info.Tier = config.TierFree
		}
	}
	spec := s.plans.Tier(info.Tier)
	info.Limits = spec.Limits
	info.MatcherVersion = spec.MatcherVersion
	return info, nil
}

func (s *subscriptionService) CanUseFeature(ctx context.Context, userID, feature string) (bool, string, error) {
	const op = "SubscriptionService.CanUseFeature"

	key, ok := s.plans.UsageKey(feature)
	if !ok {
		return false, "", utils.E(utils.CodeInvalidArgument, op, "unknown feature "+feature, nil)
	}
	info, err := s.Get(ctx, userID)
	if err != nil {
		return false, "", err
	}
	allowed, reason := featureDecision(info, key)
	return allowed, reason, nil
}

func featureDecision(info *SubscriptionInfo, key string) (bool, string) {
	limit, ok := info.Limits[key]
	if !ok {
		limit = 0
	}
	if limit == -1 || info.Usage.Get(key) < limit {
		return true, ""
	}
	switch info.Tier {
	case config.TierFree:
		return false, fmt.Sprintf("Free tier limit reached (%d %s). Upgrade to Basic for more!", limit, key)
	case config.TierBasic:
		return false, fmt.Sprintf("Basic tier limit reached (%d %s). Upgrade to Pro for unlimited!", limit, key)
	default:
		return false, "Usage limit reached. Contact support."
	}
}

func (s *subscriptionService) RequireFeature(ctx context.Context, userID, feature string) error {
	const op = "SubscriptionService.RequireFeature"

	key, ok := s.plans.UsageKey(feature)
	if !ok {
		return utils.E(utils.CodeInvalidArgument, op, "unknown feature "+feature, nil)
	}
	info, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	allowed, reason := featureDecision(info, key)
	if allowed {
		return nil
	}

	detail := utils.UpgradeInfo{Error: reason, Message: "Contact support for assistance."}
	if next := s.plans.Tier(info.Tier).UpgradeTo; next != "" {
		detail.UpgradeTo = next
		detail.Message = upgradeMessage(next, s.plans.Tier(next).PriceMonthly)
	}
	return utils.ED(utils.CodeForbidden, op, reason, detail)
}

func upgradeMessage(tier string, price float64) string {
	name := strings.ToUpper(tier[:1]) + tier[1:]
	if tier == config.TierPro {
		return fmt.Sprintf("Upgrade to %s ($%.2f/month) for unlimited access!", name, price)
	}
	return fmt.Sprintf("Upgrade to %s ($%.2f/month) to unlock this feature!", name, price)
}

func (s *subscriptionService) RequireTier(ctx context.Context, userID, minTier string) error {
	const op = "SubscriptionService.RequireTier"

	if !s.plans.ValidTier(minTier) {
		return utils.E(utils.CodeInternal, op, "unknown tier "+minTier, nil)
	}
	info, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}
	if s.plans.Rank(info.Tier) >= s.plans.Rank(minTier) {
		return nil
	}
	msg := fmt.Sprintf("This feature requires %s tier or higher", minTier)
	return utils.ED(utils.CodeForbidden, op, msg, utils.UpgradeInfo{
		Error:        msg,
		CurrentTier:  info.Tier,
		RequiredTier: minTier,
		Message:      fmt.Sprintf("Upgrade to %s to access this feature", minTier),
	})
}

func (s *subscriptionService) TrackUsage(ctx context.Context, userID, feature string, amount int) error {
	const op = "SubscriptionService.TrackUsage"

	key, ok := s.plans.UsageKey(feature)
	if !ok {
		return utils.E(utils.CodeInvalidArgument, op, "unknown feature "+feature, nil)
	}
	if amount <= 0 {
		amount = 1
	}
	if err := s.billing.IncrementUsage(ctx, userID, canonicalFeature(key), amount); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to track usage", err)
	}
	tier := ""
	if sub, err := s.subscription(ctx, userID); err == nil && sub != nil {
		tier = sub.Tier
	}
	metrics.Feature(feature, tier)
	return nil
}

// canonicalFeature is the feature name increment_usage understands.
func canonicalFeature(usageKey string) string {
	switch usageKey {
	case "cvs":
		return "cv_upload"
	case "matches":
		return "job_match"
	case "tailored":
		return "tailor_cv"
	default:
		return "export_pdf"
	}
}

func (s *subscriptionService) UsageInfo(ctx context.Context, userID string) (*UsageInfo, error) {
	info, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	pct := make(map[string]int, len(config.UsageKeys))
	for _, k := range config.UsageKeys {
		pct[k] = usagePercent(info.Usage.Get(k), info.Limits[k])
	}
	return &UsageInfo{
		Tier:             info.Tier,
		Status:           info.Status,
		Usage:            info.Usage,
		Limits:           info.Limits,
		Percentages:      pct,
		CurrentPeriodEnd: info.CurrentPeriodEnd,
	}, nil
}

func usagePercent(used, limit int) int {
	switch {
	case limit == -1:
		return 0
	case limit == 0:
		return 100
	}
	p := used * 100 / limit
	if p > 100 {
		return 100
	}
	return p
}

func (s *subscriptionService) Activate(ctx context.Context, in ActivateInput) (*models.Subscription, error) {
	const op = "SubscriptionService.Activate"

	if in.UserID == "" || in.PayPalSubscriptionID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id and subscription_id are required", nil)
	}
	if !s.plans.ValidTier(in.Tier) {
		return nil, utils.E(utils.CodeInvalidArgument, op, "Invalid tier", nil)
	}
	if in.Currency == "" {
		in.Currency = "USD"
	}
	if in.BillingCycle == "" {
		in.BillingCycle = "monthly"
	}

	now := s.now()
	end := now.AddDate(0, 0, 30)
	if in.BillingCycle == "yearly" {
		end = now.AddDate(0, 0, 365)
	}
	planID := in.PayPalPlanID
	subID := in.PayPalSubscriptionID
	sub := &models.Subscription{
		ID:                   uuid.NewString(),
		UserID:               in.UserID,
		Tier:                 in.Tier,
		Status:               models.SubscriptionActive,
		PayPalSubscriptionID: &subID,
		PayPalPlanID:         &planID,
		BillingCycle:         in.BillingCycle,
		Amount:               in.Amount,
		Currency:             in.Currency,
		CurrentPeriodStart:   now,
		CurrentPeriodEnd:     &end,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := s.billing.UpsertSubscription(ctx, sub); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to store subscription", err)
	}
	if err := s.profiles.SetTier(ctx, in.UserID, in.Tier, models.SubscriptionActive); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to update profile tier", err)
	}
	// usage rows are keyed by calendar month, matching get_current_usage
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	if err := s.billing.InitUsagePeriod(ctx, in.UserID, monthStart, monthStart.AddDate(0, 1, -1)); err != nil {
		s.log.WithError(err).WithField("user_id", in.UserID).Warn("usage period init failed")
	}
	s.invalidate(ctx, in.UserID)
	metrics.SubscriptionEvent("activated", in.Tier)

	s.log.WithFields(logrus.Fields{"user_id": in.UserID, "tier": in.Tier, "cycle": in.BillingCycle}).Info("subscription activated")
	return sub, nil
}

func (s *subscriptionService) UpdateStatus(ctx context.Context, paypalSubscriptionID, status string, cancelledAt *time.Time) (*models.Subscription, error) {
	const op = "SubscriptionService.UpdateStatus"

	sub, err := s.billing.SetSubscriptionStatus(ctx, paypalSubscriptionID, status, cancelledAt)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "subscription not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to update subscription", err)
	}
	if err := s.profiles.SetTier(ctx, sub.UserID, sub.Tier, status); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to update profile", err)
	}
	s.invalidate(ctx, sub.UserID)
	metrics.SubscriptionEvent(status, sub.Tier)
	return sub, nil
}

func (s *subscriptionService) GrantTier(ctx context.Context, userID, tier string) error {
	const op = "SubscriptionService.GrantTier"

	if !s.plans.ValidTier(tier) {
		return utils.E(utils.CodeInvalidArgument, op, "Invalid tier", nil)
	}
	now := s.now()
	sub, err := s.billing.GetSubscription(ctx, userID)
	switch {
	case errors.Is(err, utils.ErrNotFound):
		sub = &models.Subscription{
			ID:                 uuid.NewString(),
			UserID:             userID,
			BillingCycle:       "monthly",
			Currency:           "USD",
			CurrentPeriodStart: now,
			CreatedAt:          now,
		}
	case err != nil:
		return utils.E(utils.CodeInternal, op, "failed to load subscription", err)
	}
	sub.Tier = tier
	sub.Status = models.SubscriptionActive
	sub.CancelledAt = nil
	sub.UpdatedAt = now
	if err := s.billing.UpsertSubscription(ctx, sub); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to store subscription", err)
	}
	if err := s.profiles.SetTier(ctx, userID, tier, models.SubscriptionActive); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to update profile tier", err)
	}
	s.invalidate(ctx, userID)
	metrics.SubscriptionEvent("granted", tier)
	return nil
}
