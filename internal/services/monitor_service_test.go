package services

import (
	"context"
	"errors"
	"testing"

	"github.com/tailorjob/backend/internal/models"
	pgrepo "github.com/tailorjob/backend/internal/repositories/postgres"
)

func TestMonitorRates(t *testing.T) {
	billing := newFakeBillingRepo()
	billing.payStats = pgrepo.PaymentStats{Total: 10, Completed: 8}
	billing.churn = pgrepo.ChurnStats{Cancelled: 1, Active: 3}
	events := newFakeWebhookEvents()
	events.stats = models.WebhookStats{Total: 20, Processed: 19, Failed: 1}

	svc := NewMonitorService(billing, events, testLogger())
	if svc.Last() != nil {
		t.Fatal("expected no report before the first run")
	}
	r := svc.RunChecks(context.Background())

	if r.Payments.SuccessRate == nil || *r.Payments.SuccessRate != 0.8 || r.Payments.Failed != 2 {
		t.Fatalf("unexpected payments: %+v", r.Payments)
	}
	if r.Webhooks.ProcessingRate == nil || *r.Webhooks.ProcessingRate != 0.95 || r.Webhooks.Unprocessed != 1 {
		t.Fatalf("unexpected webhooks: %+v", r.Webhooks)
	}
	if r.Subscriptions.ChurnRate != 0.25 {
		t.Fatalf("expected churn 0.25, got %v", r.Subscriptions.ChurnRate)
	}
	if svc.Last() != r {
		t.Fatal("last report not kept")
	}
}

func TestMonitorEmptyWindowsAndErrors(t *testing.T) {
	billing := newFakeBillingRepo()
	svc := NewMonitorService(billing, nil, testLogger())

	r := svc.RunChecks(context.Background())
	if r.Payments.SuccessRate != nil || r.Webhooks.ProcessingRate != nil {
		t.Fatalf("rates should be nil without data: %+v", r)
	}

	billing.statsErr = errors.New("db down")
	r = svc.RunChecks(context.Background())
	if r.Payments.Error == "" || r.Subscriptions.Error == "" {
		t.Fatalf("expected check errors in report: %+v", r)
	}
}

func TestHealthReportProblems(t *testing.T) {
	low, ok := 0.5, 0.99
	r := &HealthReport{
		Payments:      PaymentHealth{SuccessRate: &low},
		Webhooks:      WebhookHealth{ProcessingRate: &ok},
		Subscriptions: SubscriptionHealth{Error: "db down"},
	}
	got := r.Problems()
	if len(got) != 2 || got[0] != "subscriptions check failed: db down" || got[1] != "payment success rate 50.0% is below 90%" {
		t.Fatalf("unexpected problems: %q", got)
	}
	if p := (&HealthReport{}).Problems(); len(p) != 0 {
		t.Fatalf("empty report should be healthy: %q", p)
	}
}
