package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/tailorjob/backend/internal/providers/paypal"
	"github.com/tailorjob/backend/internal/services"
	"github.com/tailorjob/backend/internal/utils"
)

const maxWebhookBody = 1 << 20

type PaymentHandler struct {
	payments services.PaymentService
	webhooks services.WebhookService
}

func NewPaymentHandler(payments services.PaymentService, webhooks services.WebhookService) *PaymentHandler {
	return &PaymentHandler{payments: payments, webhooks: webhooks}
}

type ActivateSubscriptionRequest struct {
	SubscriptionID string `json:"subscription_id" binding:"required"`
}

type CancelSubscriptionRequest struct {
	Reason string `json:"reason"`
}

type UpgradeSubscriptionRequest struct {
	NewTier   string `json:"new_tier" binding:"required"`
	NewPlanID string `json:"new_plan_id"`
}

func (h *PaymentHandler) CreateSubscription(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	var req services.CreateSubscriptionRequest
	if !bindJSON(c, "PaymentHandler.CreateSubscription", &req) {
		return
	}
	res, err := h.payments.CreateSubscription(c.Request.Context(), userID, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *PaymentHandler) ActivateSubscription(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	var req ActivateSubscriptionRequest
	if !bindJSON(c, "PaymentHandler.ActivateSubscription", &req) {
		return
	}
	res, err := h.payments.ActivateSubscription(c.Request.Context(), userID, req.SubscriptionID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *PaymentHandler) MySubscription(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	res, err := h.payments.MySubscription(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *PaymentHandler) CancelSubscription(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	var req CancelSubscriptionRequest
	// the body is optional
	if c.Request.ContentLength > 0 && !bindJSON(c, "PaymentHandler.CancelSubscription", &req) {
		return
	}
	res, err := h.payments.CancelSubscription(c.Request.Context(), userID, req.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *PaymentHandler) Upgrade(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	var req UpgradeSubscriptionRequest
	if !bindJSON(c, "PaymentHandler.Upgrade", &req) {
		return
	}
	res, err := h.payments.Upgrade(c.Request.Context(), userID, req.NewTier, req.NewPlanID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *PaymentHandler) Usage(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	res, err := h.payments.Usage(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// PayPalWebhook is unauthenticated; the service verifies the PayPal signature.
func (h *PaymentHandler) PayPalWebhook(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "PaymentHandler.PayPalWebhook", "failed to read body", err))
		return
	}
	res, err := h.webhooks.Handle(c.Request.Context(), paypal.HeadersFrom(c.Request.Header), raw)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
