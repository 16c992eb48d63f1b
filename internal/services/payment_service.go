package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tailorjob/backend/config"
	"github.com/tailorjob/backend/internal/models"
	"github.com/tailorjob/backend/internal/providers/paypal"
	pgrepo "github.com/tailorjob/backend/internal/repositories/postgres"
	"github.com/tailorjob/backend/internal/utils"
)

type CreateSubscriptionRequest struct {
	PlanID    string `json:"plan_id"`
	ReturnURL string `json:"return_url"`
	CancelURL string `json:"cancel_url"`
}

type CreateSubscriptionResult struct {
	SubscriptionID string `json:"subscription_id"`
	ApprovalURL    string `json:"approval_url"`
	Status         string `json:"status"`
}

type ActivationResult struct {
	Success      bool                 `json:"success"`
	Subscription *models.Subscription `json:"subscription"`
	Message      string               `json:"message"`
}

// MySubscription is the subscription view merged with usage percentages.
type MySubscription struct {
	SubscriptionInfo
	Percentages map[string]int `json:"percentages"`
}

type CancelResult struct {
	Success   bool       `json:"success"`
	Message   string     `json:"message"`
	PeriodEnd *time.Time `json:"period_end"`
}

type UpgradeInstructions struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	PlanID  string `json:"plan_id"`
}

type PaymentService interface {
	CreateSubscription(ctx context.Context, userID string, req CreateSubscriptionRequest) (*CreateSubscriptionResult, error)
	// ActivateSubscription records a subscription the user approved on PayPal.
	ActivateSubscription(ctx context.Context, userID, paypalSubscriptionID string) (*ActivationResult, error)
	MySubscription(ctx context.Context, userID string) (*MySubscription, error)
	CancelSubscription(ctx context.Context, userID, reason string) (*CancelResult, error)
	Upgrade(ctx context.Context, userID, newTier, newPlanID string) (*UpgradeInstructions, error)
	Usage(ctx context.Context, userID string) (*UsageInfo, error)
}

type paymentService struct {
	paypal   paypal.API
	subs     SubscriptionService
	profiles pgrepo.ProfileRepository
	plans    *config.PlanCatalog
	log      *logrus.Entry
	now      func() time.Time
}

// NewPaymentService wires the PayPal client; a nil client makes PayPal-backed calls fail as unavailable.
func NewPaymentService(api paypal.API, subs SubscriptionService, profiles pgrepo.ProfileRepository, plans *config.PlanCatalog, log *logrus.Entry) PaymentService {
	return &paymentService{
		paypal:   api,
		subs:     subs,
		profiles: profiles,
		plans:    plans,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *paymentService) client(op string) (paypal.API, error) {
	if s.paypal == nil {
		return nil, utils.E(utils.CodeUnavailable, op, "PayPal is not configured", nil)
	}
	return s.paypal, nil
}

// resolvePlan accepts a catalog key (basic_monthly) or a raw PayPal plan id.
func (s *paymentService) resolvePlan(planID string) string {
	if p, ok := s.plans.Plans[planID]; ok && p.PayPalPlanID != "" {
		return p.PayPalPlanID
	}
	return planID
}

func (s *paymentService) CreateSubscription(ctx context.Context, userID string, req CreateSubscriptionRequest) (*CreateSubscriptionResult, error) {
	const op = "PaymentService.CreateSubscription"

	api, err := s.client(op)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.PlanID) == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "plan_id is required", nil)
	}
	if req.ReturnURL == "" || req.CancelURL == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "return_url and cancel_url are required", nil)
	}

	email := ""
	if p, err := s.profiles.GetByUserID(ctx, userID); err == nil {
		email = p.Email
	} else if !errors.Is(err, utils.ErrNotFound) {
		s.log.WithError(err).WithField("user_id", userID).Warn("profile lookup failed, creating subscription without email")
	}

	sub, err := api.CreateSubscription(ctx, paypal.CreateSubscriptionInput{
		PlanID:    s.resolvePlan(req.PlanID),
		ReturnURL: req.ReturnURL,
		CancelURL: req.CancelURL,
		Email:     email,
	})
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "Failed to create subscription", err)
	}
	if sub.ApprovalURL == "" {
		return nil, utils.E(utils.CodeInternal, op, "Failed to get PayPal approval URL", nil)
	}
	return &CreateSubscriptionResult{SubscriptionID: sub.ID, ApprovalURL: sub.ApprovalURL, Status: sub.Status}, nil
}

func (s *paymentService) ActivateSubscription(ctx context.Context, userID, paypalSubscriptionID string) (*ActivationResult, error) {
	const op = "PaymentService.ActivateSubscription"

	api, err := s.client(op)
	if err != nil {
		return nil, err
	}
	if paypalSubscriptionID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "subscription_id is required", nil)
	}
	remote, err := api.GetSubscription(ctx, paypalSubscriptionID)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "Failed to activate subscription", err)
	}
	if remote.Status != "ACTIVE" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "Subscription not active: "+remote.Status, nil)
	}

	tier, cycle := s.plans.TierForPayPalPlan(remote.PlanID)
	sub, err := s.subs.Activate(ctx, ActivateInput{
		UserID:               userID,
		PayPalSubscriptionID: paypalSubscriptionID,
		PayPalPlanID:         remote.PlanID,
		Tier:                 tier,
		BillingCycle:         cycle,
		Amount:               remote.LastPayment,
		Currency:             remote.Currency,
	})
	if err != nil {
		return nil, err
	}
	return &ActivationResult{
		Success:      true,
		Subscription: sub,
		Message:      fmt.Sprintf("Welcome to TailorJob %s!", strings.ToUpper(tier[:1])+tier[1:]),
	}, nil
}

func (s *paymentService) MySubscription(ctx context.Context, userID string) (*MySubscription, error) {
	usage, err := s.subs.UsageInfo(ctx, userID)
	if err != nil {
		return nil, err
	}
	info, err := s.subs.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &MySubscription{SubscriptionInfo: *info, Percentages: usage.Percentages}, nil
}

func (s *paymentService) CancelSubscription(ctx context.Context, userID, reason string) (*CancelResult, error) {
	const op = "PaymentService.CancelSubscription"

	info, err := s.subs.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if info.SubscriptionID == nil || *info.SubscriptionID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "No active subscription found", nil)
	}
	api, err := s.client(op)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(reason) == "" {
		reason = "User requested cancellation"
	}
	if err := api.CancelSubscription(ctx, *info.SubscriptionID, reason); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "Failed to cancel subscription", err)
	}
	now := s.now()
	if _, err := s.subs.UpdateStatus(ctx, *info.SubscriptionID, models.SubscriptionCancelled, &now); err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"user_id": userID, "subscription_id": *info.SubscriptionID}).Info("subscription cancelled")
	return &CancelResult{
		Success:   true,
		Message:   "Subscription cancelled. You can continue using until end of billing period.",
		PeriodEnd: info.CurrentPeriodEnd,
	}, nil
}

// Upgrade does not revise the PayPal plan; the client creates a new subscription for the target plan.
func (s *paymentService) Upgrade(ctx context.Context, userID, newTier, newPlanID string) (*UpgradeInstructions, error) {
	const op = "PaymentService.Upgrade"

	switch newTier {
	case config.TierBasic, config.TierPro, config.TierEnterprise:
	default:
		return nil, utils.E(utils.CodeInvalidArgument, op, "Invalid tier", nil)
	}
	info, err := s.subs.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if info.Tier == newTier {
		return nil, utils.E(utils.CodeInvalidArgument, op, "Already on this tier", nil)
	}
	return &UpgradeInstructions{
		Message: "To upgrade, please create a new subscription",
		Action:  "create_new_subscription",
		PlanID:  newPlanID,
	}, nil
}

func (s *paymentService) Usage(ctx context.Context, userID string) (*UsageInfo, error) {
	return s.subs.UsageInfo(ctx, userID)
}
