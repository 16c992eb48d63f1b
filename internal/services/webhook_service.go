package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tailorjob/backend/internal/metrics"
	"github.com/tailorjob/backend/internal/models"
	"github.com/tailorjob/backend/internal/providers/paypal"
	mongorepo "github.com/tailorjob/backend/internal/repositories/mongo"
	pgrepo "github.com/tailorjob/backend/internal/repositories/postgres"
	"github.com/tailorjob/backend/internal/utils"
)

const (
	EventSubscriptionActivated = "BILLING.SUBSCRIPTION.ACTIVATED"
	EventSubscriptionCancelled = "BILLING.SUBSCRIPTION.CANCELLED"
	EventSubscriptionSuspended = "BILLING.SUBSCRIPTION.SUSPENDED"
	EventSubscriptionExpired   = "BILLING.SUBSCRIPTION.EXPIRED"
	EventSaleCompleted         = "PAYMENT.SALE.COMPLETED"
	EventSaleRefunded          = "PAYMENT.SALE.REFUNDED"
)

type WebhookResult struct {
	Success          bool `json:"success"`
	AlreadyProcessed bool `json:"already_processed,omitempty"`
}

type WebhookService interface {
	// Handle verifies, audits and applies one PayPal notification.
	Handle(ctx context.Context, headers paypal.WebhookHeaders, raw []byte) (*WebhookResult, error)
}

type webhookService struct {
	paypal  paypal.API
	events  mongorepo.WebhookEventRepository
	billing pgrepo.BillingRepository
	subs    SubscriptionService
	log     *logrus.Entry
	now     func() time.Time
}

func NewWebhookService(api paypal.API, events mongorepo.WebhookEventRepository, billing pgrepo.BillingRepository, subs SubscriptionService, log *logrus.Entry) WebhookService {
	return &webhookService{
		paypal:  api,
		events:  events,
		billing: billing,
		subs:    subs,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *webhookService) Handle(ctx context.Context, headers paypal.WebhookHeaders, raw []byte) (*WebhookResult, error) {
	const op = "WebhookService.Handle"

	if s.paypal == nil {
		return nil, utils.E(utils.CodeUnavailable, op, "PayPal is not configured", nil)
	}
	if !gjson.ValidBytes(raw) {
		return nil, utils.E(utils.CodeInvalidArgument, op, "invalid webhook body", nil)
	}
	ok, err := s.paypal.VerifyWebhookSignature(ctx, headers, raw)
	if err != nil {
		s.log.WithError(err).Warn("webhook signature verification failed")
	}
	if err != nil || !ok {
		return nil, utils.E(utils.CodeUnauthorized, op, "Invalid webhook signature", err)
	}

	event := gjson.ParseBytes(raw)
	eventID := event.Get("id").String()
	eventType := event.Get("event_type").String()
	if eventID == "" || eventType == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "webhook event id and event_type are required", nil)
	}
	log := s.log.WithFields(logrus.Fields{"event_id": eventID, "event_type": eventType})

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, utils.E(utils.CodeInvalidArgument, op, "invalid webhook body", err)
	}
	err = s.events.Insert(ctx, &models.WebhookEvent{
		PayPalEventID: eventID,
		EventType:     eventType,
		ResourceType:  event.Get("resource_type").String(),
		Payload:       primitive.M(payload),
		CreatedAt:     s.now(),
	})
	switch {
	case errors.Is(err, utils.ErrDuplicate):
		prev, gerr := s.events.GetByEventID(ctx, eventID)
		if gerr == nil && prev.Processed {
			log.Info("webhook already processed")
			return &WebhookResult{Success: true, AlreadyProcessed: true}, nil
		}
		// redelivery of a failed event
	case err != nil:
		return nil, utils.E(utils.CodeInternal, op, "failed to record webhook event", err)
	}

	if err := s.dispatch(ctx, eventType, event.Get("resource")); err != nil {
		metrics.PayPalWebhook(eventType, false)
		if merr := s.events.MarkFailed(ctx, eventID, err.Error()); merr != nil {
			log.WithError(merr).Error("mark webhook failed")
		}
		log.WithError(err).Error("webhook processing failed")
		return nil, utils.E(utils.CodeInternal, op, "Webhook processing failed", err)
	}
	if err := s.events.MarkProcessed(ctx, eventID); err != nil {
		log.WithError(err).Error("mark webhook processed")
	}
	metrics.PayPalWebhook(eventType, true)
	log.Info("webhook processed")
	return &WebhookResult{Success: true}, nil
}

func (s *webhookService) dispatch(ctx context.Context, eventType string, resource gjson.Result) error {
	switch eventType {
	case EventSubscriptionActivated:
		return s.setStatus(ctx, resource, models.SubscriptionActive, nil)
	case EventSubscriptionCancelled:
		now := s.now()
		return s.setStatus(ctx, resource, models.SubscriptionCancelled, &now)
	case EventSubscriptionSuspended:
		return s.setStatus(ctx, resource, models.SubscriptionSuspended, nil)
	case EventSubscriptionExpired:
		return s.setStatus(ctx, resource, models.SubscriptionExpired, nil)
	case EventSaleCompleted:
		return s.saleCompleted(ctx, resource)
	case EventSaleRefunded:
		return s.saleRefunded(ctx, resource)
	default:
		s.log.WithField("event_type", eventType).Debug("webhook event ignored")
		return nil
	}
}

// setStatus ignores subscriptions this service never recorded.
func (s *webhookService) setStatus(ctx context.Context, resource gjson.Result, status string, cancelledAt *time.Time) error {
	id := resource.Get("id").String()
	if id == "" {
		return nil
	}
	_, err := s.subs.UpdateStatus(ctx, id, status, cancelledAt)
	if utils.IsCode(err, utils.CodeNotFound) {
		s.log.WithField("subscription_id", id).Warn("webhook for unknown subscription")
		return nil
	}
	return err
}

func (s *webhookService) saleCompleted(ctx context.Context, resource gjson.Result) error {
	agreement := resource.Get("billing_agreement_id").String()
	if agreement == "" {
		return nil
	}
	sub, err := s.billing.GetSubscriptionByPayPalID(ctx, agreement)
	if errors.Is(err, utils.ErrNotFound) {
		s.log.WithField("subscription_id", agreement).Warn("payment for unknown subscription")
		return nil
	}
	if err != nil {
		return err
	}

	currency := resource.Get("amount.currency").String()
	if currency == "" {
		currency = "USD"
	}
	now := s.now()
	subID := sub.ID
	inserted, err := s.billing.InsertPayment(ctx, &models.Payment{
		ID:              uuid.NewString(),
		UserID:          sub.UserID,
		SubscriptionID:  &subID,
		PayPalPaymentID: resource.Get("id").String(),
		Amount:          resource.Get("amount.total").Float(),
		Currency:        currency,
		Status:          "completed",
		PaymentType:     "subscription",
		CreatedAt:       now,
		UpdatedAt:       now,
	})
	if err != nil {
		return err
	}
	if inserted {
		metrics.SubscriptionEvent("payment_completed", sub.Tier)
	}
	return nil
}

func (s *webhookService) saleRefunded(ctx context.Context, resource gjson.Result) error {
	saleID := resource.Get("sale_id").String()
	if saleID == "" {
		return nil
	}
	err := s.billing.SetPaymentStatus(ctx, saleID, "refunded")
	if errors.Is(err, utils.ErrNotFound) {
		s.log.WithField("sale_id", saleID).Warn("refund for unknown payment")
		return nil
	}
	return err
}
