package services

import (
	"context"
	"testing"

	"github.com/tailorjob/backend/config"
	"github.com/tailorjob/backend/internal/models"
	"github.com/tailorjob/backend/internal/providers/paypal"
	"github.com/tailorjob/backend/internal/utils"
)

func newTestPayments(t *testing.T, api paypal.API) (PaymentService, *subscriptionService, *fakeBillingRepo, *fakeProfileRepo) {
	t.Helper()
	t.Setenv("PAYPAL_PLAN_ID_BASIC", "P-BASIC-123")
	t.Setenv("PAYPAL_PLAN_ID_PRO", "P-PRO-456")
	subs, billing, profiles := newTestSubscriptions(t)
	return NewPaymentService(api, subs, profiles, subs.plans, testLogger()), subs, billing, profiles
}

func TestPaymentsWithoutPayPal(t *testing.T) {
	svc, _, _, _ := newTestPayments(t, nil)

	_, err := svc.CreateSubscription(context.Background(), "user-1", CreateSubscriptionRequest{PlanID: "basic_monthly", ReturnURL: "r", CancelURL: "c"})
	if !utils.IsCode(err, utils.CodeUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}

func TestCreateSubscriptionResolvesPlanKey(t *testing.T) {
	api := newFakePayPal()
	svc, _, _, profiles := newTestPayments(t, api)
	profiles.profiles["user-1"] = &models.Profile{ID: "user-1", Email: "ana@example.com"}

	res, err := svc.CreateSubscription(context.Background(), "user-1", CreateSubscriptionRequest{
		PlanID: "pro_monthly", ReturnURL: "https://app/return", CancelURL: "https://app/cancel",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if res.ApprovalURL == "" || res.SubscriptionID != "I-NEW" {
		t.Fatalf("unexpected result: %+v", res)
	}
	got := api.created[0]
	if got.PlanID != "P-PRO-456" || got.Email != "ana@example.com" {
		t.Fatalf("unexpected paypal input: %+v", got)
	}

	if _, err := svc.CreateSubscription(context.Background(), "user-1", CreateSubscriptionRequest{PlanID: "P-RAW"}); !utils.IsCode(err, utils.CodeInvalidArgument) {
		t.Fatalf("missing urls should be rejected, got %v", err)
	}
}

func TestActivateSubscription(t *testing.T) {
	api := newFakePayPal()
	api.subs["I-OK"] = &paypal.Subscription{ID: "I-OK", Status: "ACTIVE", PlanID: "P-BASIC-123", LastPayment: 9.99, Currency: "USD"}
	api.subs["I-PENDING"] = &paypal.Subscription{ID: "I-PENDING", Status: "APPROVAL_PENDING", PlanID: "P-BASIC-123"}
	svc, _, billing, profiles := newTestPayments(t, api)

	res, err := svc.ActivateSubscription(context.Background(), "user-1", "I-OK")
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if !res.Success || res.Message != "Welcome to TailorJob Basic!" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if billing.subs["user-1"].Tier != config.TierBasic {
		t.Fatalf("expected basic subscription, got %+v", billing.subs["user-1"])
	}
	if profiles.profiles["user-1"].SubscriptionTier != config.TierBasic {
		t.Fatal("profile not upgraded")
	}

	if _, err := svc.ActivateSubscription(context.Background(), "user-2", "I-PENDING"); !utils.IsCode(err, utils.CodeInvalidArgument) {
		t.Fatalf("expected inactive subscription rejection, got %v", err)
	}
}

func TestCancelSubscription(t *testing.T) {
	api := newFakePayPal()
	svc, _, billing, _ := newTestPayments(t, api)

	if _, err := svc.CancelSubscription(context.Background(), "user-1", ""); !utils.IsCode(err, utils.CodeInvalidArgument) {
		t.Fatalf("expected no subscription error, got %v", err)
	}

	id := "I-CANCEL"
	billing.subs["user-1"] = &models.Subscription{UserID: "user-1", Tier: config.TierPro, Status: models.SubscriptionActive, PayPalSubscriptionID: &id}
	res, err := svc.CancelSubscription(context.Background(), "user-1", "")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if !res.Success || len(api.cancelled) != 1 || api.cancelled[0] != id {
		t.Fatalf("paypal cancel not called: %+v %v", res, api.cancelled)
	}
	if billing.subs["user-1"].Status != models.SubscriptionCancelled {
		t.Fatalf("expected cancelled, got %s", billing.subs["user-1"].Status)
	}
}

func TestUpgrade(t *testing.T) {
	svc, _, billing, _ := newTestPayments(t, newFakePayPal())
	billing.subs["user-1"] = &models.Subscription{UserID: "user-1", Tier: config.TierBasic, Status: models.SubscriptionActive}

	if _, err := svc.Upgrade(context.Background(), "user-1", config.TierBasic, "basic_monthly"); !utils.IsCode(err, utils.CodeInvalidArgument) {
		t.Fatalf("expected same tier rejection, got %v", err)
	}
	if _, err := svc.Upgrade(context.Background(), "user-1", config.TierFree, ""); !utils.IsCode(err, utils.CodeInvalidArgument) {
		t.Fatalf("free is not an upgrade target, got %v", err)
	}
	res, err := svc.Upgrade(context.Background(), "user-1", config.TierPro, "pro_monthly")
	if err != nil {
		t.Fatalf("upgrade: %v", err)
	}
	if res.Action != "create_new_subscription" || res.PlanID != "pro_monthly" {
		t.Fatalf("unexpected instructions: %+v", res)
	}
}
