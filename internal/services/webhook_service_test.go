package services

import (
	"context"
	"testing"

	"github.com/tailorjob/backend/config"
	"github.com/tailorjob/backend/internal/models"
	"github.com/tailorjob/backend/internal/providers/paypal"
	"github.com/tailorjob/backend/internal/utils"
)

func newTestWebhooks(t *testing.T) (WebhookService, *fakePayPal, *fakeWebhookEvents, *fakeBillingRepo) {
	t.Helper()
	subs, billing, _ := newTestSubscriptions(t)
	api := newFakePayPal()
	events := newFakeWebhookEvents()
	return NewWebhookService(api, events, billing, subs, testLogger()), api, events, billing
}

func seedSubscription(billing *fakeBillingRepo, userID, paypalID, tier string) {
	id := paypalID
	billing.subs[userID] = &models.Subscription{ID: "sub-" + userID, UserID: userID, Tier: tier, Status: models.SubscriptionActive, PayPalSubscriptionID: &id}
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	svc, api, events, _ := newTestWebhooks(t)
	api.verified = false

	_, err := svc.Handle(context.Background(), paypal.WebhookHeaders{}, []byte(`{"id":"WH-1","event_type":"BILLING.SUBSCRIPTION.ACTIVATED"}`))
	if !utils.IsCode(err, utils.CodeUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if len(events.events) != 0 {
		t.Fatal("unverified event must not be recorded")
	}
}

func TestWebhookRejectsInvalidJSON(t *testing.T) {
	svc, _, _, _ := newTestWebhooks(t)
	if _, err := svc.Handle(context.Background(), paypal.WebhookHeaders{}, []byte(`{nope`)); !utils.IsCode(err, utils.CodeInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestWebhookCancelledThenDuplicate(t *testing.T) {
	svc, _, events, billing := newTestWebhooks(t)
	seedSubscription(billing, "user-1", "I-77", config.TierPro)
	body := []byte(`{"id":"WH-2","event_type":"BILLING.SUBSCRIPTION.CANCELLED","resource_type":"subscription","resource":{"id":"I-77"}}`)

	res, err := svc.Handle(context.Background(), paypal.WebhookHeaders{}, body)
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if !res.Success || res.AlreadyProcessed {
		t.Fatalf("unexpected result: %+v", res)
	}
	if s := billing.subs["user-1"]; s.Status != models.SubscriptionCancelled || s.CancelledAt == nil {
		t.Fatalf("subscription not cancelled: %+v", s)
	}
	if !events.events["WH-2"].Processed {
		t.Fatal("event not marked processed")
	}

	res, err = svc.Handle(context.Background(), paypal.WebhookHeaders{}, body)
	if err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if !res.AlreadyProcessed {
		t.Fatal("expected already processed on redelivery")
	}
}

func TestWebhookSaleCompletedRecordsPaymentOnce(t *testing.T) {
	svc, _, _, billing := newTestWebhooks(t)
	seedSubscription(billing, "user-1", "I-88", config.TierBasic)

	body := []byte(`{"id":"WH-3","event_type":"PAYMENT.SALE.COMPLETED","resource":{"id":"SALE-1","billing_agreement_id":"I-88","amount":{"total":"9.99","currency":"EUR"}}}`)
	if _, err := svc.Handle(context.Background(), paypal.WebhookHeaders{}, body); err != nil {
		t.Fatalf("handle: %v", err)
	}
	p := billing.payments["SALE-1"]
	if p == nil {
		t.Fatal("payment not recorded")
	}
	if p.Amount != 9.99 || p.Currency != "EUR" || p.UserID != "user-1" || p.Status != "completed" {
		t.Fatalf("unexpected payment: %+v", p)
	}

	refund := []byte(`{"id":"WH-4","event_type":"PAYMENT.SALE.REFUNDED","resource":{"id":"REF-1","sale_id":"SALE-1"}}`)
	if _, err := svc.Handle(context.Background(), paypal.WebhookHeaders{}, refund); err != nil {
		t.Fatalf("refund: %v", err)
	}
	if billing.payments["SALE-1"].Status != "refunded" {
		t.Fatalf("expected refunded, got %s", billing.payments["SALE-1"].Status)
	}
}

func TestWebhookUnknownSubscriptionIgnored(t *testing.T) {
	svc, _, events, _ := newTestWebhooks(t)

	body := []byte(`{"id":"WH-5","event_type":"BILLING.SUBSCRIPTION.SUSPENDED","resource":{"id":"I-NOPE"}}`)
	res, err := svc.Handle(context.Background(), paypal.WebhookHeaders{}, body)
	if err != nil || !res.Success {
		t.Fatalf("expected success, got %+v %v", res, err)
	}
	if !events.events["WH-5"].Processed {
		t.Fatal("ignored event should still be marked processed")
	}
}
