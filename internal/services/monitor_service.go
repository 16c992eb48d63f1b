package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tailorjob/backend/internal/metrics"
	mongorepo "github.com/tailorjob/backend/internal/repositories/mongo"
	pgrepo "github.com/tailorjob/backend/internal/repositories/postgres"
)

const (
	paymentWindow      = 24 * time.Hour
	webhookWindow      = time.Hour
	churnWindow        = 7 * 24 * time.Hour
	minPaymentSuccess  = 0.9
	minWebhookProcRate = 0.95
)

// PaymentHealth covers payments created in the last 24h. SuccessRate is nil when there were none.
type PaymentHealth struct {
	SuccessRate *float64 `json:"success_rate"`
	Total       int64    `json:"total"`
	Successful  int64    `json:"successful"`
	Failed      int64    `json:"failed"`
	Error       string   `json:"error,omitempty"`
}

type WebhookHealth struct {
	ProcessingRate *float64 `json:"processing_rate"`
	Total          int64    `json:"total"`
	Processed      int64    `json:"processed"`
	Unprocessed    int64    `json:"unprocessed"`
	Failed         int64    `json:"failed"`
	Error          string   `json:"error,omitempty"`
}

type SubscriptionHealth struct {
	Active    int64   `json:"active"`
	Cancelled int64   `json:"cancelled"`
	ChurnRate float64 `json:"churn_rate"`
	Error     string  `json:"error,omitempty"`
}

type HealthReport struct {
	Timestamp     time.Time          `json:"timestamp"`
	Payments      PaymentHealth      `json:"payments"`
	Webhooks      WebhookHealth      `json:"webhooks"`
	Subscriptions SubscriptionHealth `json:"subscriptions"`
}

// Problems lists the checks that failed or fell below their thresholds.
func (r *HealthReport) Problems() []string {
	var out []string
	for name, msg := range map[string]string{"payments": r.Payments.Error, "webhooks": r.Webhooks.Error, "subscriptions": r.Subscriptions.Error} {
		if msg != "" {
			out = append(out, fmt.Sprintf("%s check failed: %s", name, msg))
		}
	}
	sort.Strings(out)
	if rate := r.Payments.SuccessRate; rate != nil && *rate < minPaymentSuccess {
		out = append(out, fmt.Sprintf("payment success rate %.1f%% is below %.0f%%", *rate*100, minPaymentSuccess*100))
	}
	if rate := r.Webhooks.ProcessingRate; rate != nil && *rate < minWebhookProcRate {
		out = append(out, fmt.Sprintf("webhook processing rate %.1f%% is below %.0f%%", *rate*100, minWebhookProcRate*100))
	}
	return out
}

type MonitorService interface {
	// RunChecks never fails; a broken check reports its error in the report.
	RunChecks(ctx context.Context) *HealthReport
	// Last is the most recent report, nil before the first run.
	Last() *HealthReport
}

type monitorService struct {
	billing pgrepo.BillingRepository
	events  mongorepo.WebhookEventRepository
	log     *logrus.Entry
	now     func() time.Time

	mu   sync.RWMutex
	last *HealthReport
}

// NewMonitorService builds the PayPal health checker; events may be nil when Mongo is not configured.
func NewMonitorService(billing pgrepo.BillingRepository, events mongorepo.WebhookEventRepository, log *logrus.Entry) MonitorService {
	return &monitorService{
		billing: billing,
		events:  events,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *monitorService) RunChecks(ctx context.Context) *HealthReport {
	now := s.now()
	r := &HealthReport{
		Timestamp:     now,
		Payments:      s.payments(ctx, now),
		Webhooks:      s.webhooks(ctx, now),
		Subscriptions: s.subscriptions(ctx, now),
	}
	s.log.WithFields(logrus.Fields{
		"payments_total":      r.Payments.Total,
		"payments_failed":     r.Payments.Failed,
		"webhooks_total":      r.Webhooks.Total,
		"webhooks_pending":    r.Webhooks.Unprocessed,
		"subscriptions_churn": r.Subscriptions.ChurnRate,
	}).Info("paypal health check complete")

	s.mu.Lock()
	s.last = r
	s.mu.Unlock()
	return r
}

func (s *monitorService) Last() *HealthReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

func (s *monitorService) payments(ctx context.Context, now time.Time) PaymentHealth {
	st, err := s.billing.PaymentStats(ctx, now.Add(-paymentWindow))
	if err != nil {
		s.log.WithError(err).Error("payment health check failed")
		return PaymentHealth{Error: err.Error()}
	}
	h := PaymentHealth{Total: st.Total, Successful: st.Completed, Failed: st.Total - st.Completed}
	if st.Total == 0 {
		return h
	}
	rate := float64(st.Completed) / float64(st.Total)
	h.SuccessRate = &rate
	metrics.PayPalHealth.WithLabelValues("payment_success").Set(rate)
	if rate < minPaymentSuccess {
		s.log.WithFields(logrus.Fields{"success_rate": rate, "successful": st.Completed, "total": st.Total}).
			Warn("paypal payment success rate low")
	}
	return h
}

func (s *monitorService) webhooks(ctx context.Context, now time.Time) WebhookHealth {
	if s.events == nil {
		return WebhookHealth{}
	}
	st, err := s.events.Stats(ctx, now.Add(-webhookWindow))
	if err != nil {
		s.log.WithError(err).Error("webhook health check failed")
		return WebhookHealth{Error: err.Error()}
	}
	h := WebhookHealth{Total: st.Total, Processed: st.Processed, Unprocessed: st.Total - st.Processed, Failed: st.Failed}
	if st.Total == 0 {
		return h
	}
	rate := float64(st.Processed) / float64(st.Total)
	h.ProcessingRate = &rate
	metrics.PayPalHealth.WithLabelValues("webhook_processing").Set(rate)
	if rate < minWebhookProcRate {
		s.log.WithFields(logrus.Fields{"processing_rate": rate, "processed": st.Processed, "total": st.Total}).
			Warn("paypal webhook processing rate low")
	}
	return h
}

func (s *monitorService) subscriptions(ctx context.Context, now time.Time) SubscriptionHealth {
	st, err := s.billing.ChurnStats(ctx, now.Add(-churnWindow))
	if err != nil {
		s.log.WithError(err).Error("subscription health check failed")
		return SubscriptionHealth{Error: err.Error()}
	}
	h := SubscriptionHealth{Active: st.Active, Cancelled: st.Cancelled}
	if total := st.Active + st.Cancelled; total > 0 {
		h.ChurnRate = float64(st.Cancelled) / float64(total)
	}
	metrics.PayPalHealth.WithLabelValues("churn").Set(h.ChurnRate)
	return h
}
