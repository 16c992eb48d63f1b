package paypal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tailorjob/backend/internal/metrics"
	"github.com/tidwall/gjson"
)

var ErrNotConfigured = errors.New("paypal: client credentials not configured")

// APIError is a non-2xx PayPal response.
type APIError struct {
	Operation string
	Status    int
	Name      string
	Message   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("paypal %s: %d %s %s", e.Operation, e.Status, e.Name, e.Message)
}

type Subscription struct {
	ID              string     `json:"id"`
	Status          string     `json:"status"`
	PlanID          string     `json:"plan_id"`
	ApprovalURL     string     `json:"approval_url,omitempty"`
	SubscriberEmail string     `json:"subscriber_email,omitempty"`
	NextBillingTime *time.Time `json:"next_billing_time,omitempty"`
	LastPayment     float64    `json:"last_payment_amount,omitempty"`
	Currency        string     `json:"currency,omitempty"`
}

type Transaction struct {
	ID       string    `json:"id"`
	Status   string    `json:"status"`
	Amount   float64   `json:"amount"`
	Currency string    `json:"currency"`
	Time     time.Time `json:"time"`
}

type Plan struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

// WebhookHeaders are the PayPal-* transmission headers needed for signature verification.
type WebhookHeaders struct {
	TransmissionID   string
	TransmissionTime string
	CertURL          string
	AuthAlgo         string
	TransmissionSig  string
}

func HeadersFrom(h http.Header) WebhookHeaders {
	return WebhookHeaders{
		TransmissionID:   h.Get("PayPal-Transmission-Id"),
		TransmissionTime: h.Get("PayPal-Transmission-Time"),
		CertURL:          h.Get("PayPal-Cert-Url"),
		AuthAlgo:         h.Get("PayPal-Auth-Algo"),
		TransmissionSig:  h.Get("PayPal-Transmission-Sig"),
	}
}

type CreateSubscriptionInput struct {
	PlanID    string
	ReturnURL string
	CancelURL string
	Email     string
}

// API is the subset of the PayPal REST surface the billing services use.
type API interface {
	CreateSubscription(ctx context.Context, in CreateSubscriptionInput) (*Subscription, error)
	GetSubscription(ctx context.Context, id string) (*Subscription, error)
	CancelSubscription(ctx context.Context, id, reason string) error
	SuspendSubscription(ctx context.Context, id, reason string) error
	ActivateSubscription(ctx context.Context, id, reason string) error
	Transactions(ctx context.Context, id string, start, end time.Time) ([]Transaction, error)
	PlanDetails(ctx context.Context, planID string) (*Plan, error)
	VerifyWebhookSignature(ctx context.Context, h WebhookHeaders, rawEvent []byte) (bool, error)
}

type Client struct {
	http      *resty.Client
	clientID  string
	secret    string
	webhookID string
	now       func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

func NewClient(baseURL, clientID, secret, webhookID string) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(20*time.Second).
			SetHeader("Accept", "application/json"),
		clientID:  clientID,
		secret:    secret,
		webhookID: webhookID,
		now:       time.Now,
	}
}

// accessToken returns the cached OAuth token, refreshing it after 80% of its lifetime.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	if c.clientID == "" || c.secret == "" {
		return "", ErrNotConfigured
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && c.now().Before(c.expiresAt) {
		return c.token, nil
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBasicAuth(c.clientID, c.secret).
		SetFormData(map[string]string{"grant_type": "client_credentials"}).
		Post("/v1/oauth2/token")
	metrics.PayPalCall("oauth_token", errOrStatus(resp, err))
	if err != nil {
		return "", fmt.Errorf("paypal oauth: %w", err)
	}
	if resp.IsError() {
		return "", apiError("oauth_token", resp)
	}
	body := resp.String()
	token := gjson.Get(body, "access_token").String()
	if token == "" {
		return "", errors.New("paypal oauth: empty access token")
	}
	expiresIn := gjson.Get(body, "expires_in").Int()
	if expiresIn <= 0 {
		expiresIn = 3600
	}
	c.token = token
	c.expiresAt = c.now().Add(time.Duration(float64(expiresIn)*0.8) * time.Second)
	return token, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, body any, query map[string]string) (string, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return "", err
	}
	req := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetHeader("Content-Type", "application/json")
	if body != nil {
		req.SetBody(body)
	}
	if len(query) > 0 {
		req.SetQueryParams(query)
	}
	resp, err := req.Execute(method, path)
	metrics.PayPalCall(op, errOrStatus(resp, err))
	if err != nil {
		return "", fmt.Errorf("paypal %s: %w", op, err)
	}
	if resp.IsError() {
		return "", apiError(op, resp)
	}
	return resp.String(), nil
}

func (c *Client) CreateSubscription(ctx context.Context, in CreateSubscriptionInput) (*Subscription, error) {
	if in.PlanID == "" {
		return nil, errors.New("paypal: plan id required")
	}
	payload := map[string]any{
		"plan_id": in.PlanID,
		"application_context": map[string]string{
			"brand_name":          "TailorJob",
			"locale":              "en-US",
			"shipping_preference": "NO_SHIPPING",
			"user_action":         "SUBSCRIBE_NOW",
			"return_url":          in.ReturnURL,
			"cancel_url":          in.CancelURL,
		},
	}
	if in.Email != "" {
		payload["subscriber"] = map[string]string{"email_address": in.Email}
	}
	body, err := c.do(ctx, "create_subscription", http.MethodPost, "/v1/billing/subscriptions", payload, nil)
	if err != nil {
		return nil, err
	}
	return parseSubscription(body), nil
}

func (c *Client) GetSubscription(ctx context.Context, id string) (*Subscription, error) {
	body, err := c.do(ctx, "get_subscription", http.MethodGet, "/v1/billing/subscriptions/"+id, nil, nil)
	if err != nil {
		return nil, err
	}
	return parseSubscription(body), nil
}

func (c *Client) CancelSubscription(ctx context.Context, id, reason string) error {
	_, err := c.do(ctx, "cancel_subscription", http.MethodPost, "/v1/billing/subscriptions/"+id+"/cancel", map[string]string{"reason": reason}, nil)
	return err
}

func (c *Client) SuspendSubscription(ctx context.Context, id, reason string) error {
	_, err := c.do(ctx, "suspend_subscription", http.MethodPost, "/v1/billing/subscriptions/"+id+"/suspend", map[string]string{"reason": reason}, nil)
	return err
}

func (c *Client) ActivateSubscription(ctx context.Context, id, reason string) error {
	_, err := c.do(ctx, "activate_subscription", http.MethodPost, "/v1/billing/subscriptions/"+id+"/activate", map[string]string{"reason": reason}, nil)
	return err
}

func (c *Client) Transactions(ctx context.Context, id string, start, end time.Time) ([]Transaction, error) {
	body, err := c.do(ctx, "get_transactions", http.MethodGet, "/v1/billing/subscriptions/"+id+"/transactions", nil, map[string]string{
		"start_time": start.UTC().Format(time.RFC3339),
		"end_time":   end.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, err
	}
	var out []Transaction
	gjson.Get(body, "transactions").ForEach(func(_, t gjson.Result) bool {
		out = append(out, Transaction{
			ID:       t.Get("id").String(),
			Status:   t.Get("status").String(),
			Amount:   t.Get("amount_with_breakdown.gross_amount.value").Float(),
			Currency: t.Get("amount_with_breakdown.gross_amount.currency_code").String(),
			Time:     t.Get("time").Time(),
		})
		return true
	})
	return out, nil
}

func (c *Client) PlanDetails(ctx context.Context, planID string) (*Plan, error) {
	body, err := c.do(ctx, "get_plan", http.MethodGet, "/v1/billing/plans/"+planID, nil, nil)
	if err != nil {
		return nil, err
	}
	return &Plan{
		ID:     gjson.Get(body, "id").String(),
		Name:   gjson.Get(body, "name").String(),
		Status: gjson.Get(body, "status").String(),
	}, nil
}

// VerifyWebhookSignature asks PayPal to validate the transmission; the event is forwarded byte for byte.
func (c *Client) VerifyWebhookSignature(ctx context.Context, h WebhookHeaders, rawEvent []byte) (bool, error) {
	if c.webhookID == "" {
		return false, errors.New("paypal: webhook id not configured")
	}
	if !json.Valid(rawEvent) {
		return false, errors.New("paypal: webhook body is not valid json")
	}
	payload := map[string]any{
		"transmission_id":   h.TransmissionID,
		"transmission_time": h.TransmissionTime,
		"cert_url":          h.CertURL,
		"auth_algo":         h.AuthAlgo,
		"transmission_sig":  h.TransmissionSig,
		"webhook_id":        c.webhookID,
		"webhook_event":     json.RawMessage(rawEvent),
	}
	body, err := c.do(ctx, "verify_webhook", http.MethodPost, "/v1/notifications/verify-webhook-signature", payload, nil)
	if err != nil {
		return false, err
	}
	return gjson.Get(body, "verification_status").String() == "SUCCESS", nil
}

func parseSubscription(body string) *Subscription {
	s := &Subscription{
		ID:              gjson.Get(body, "id").String(),
		Status:          gjson.Get(body, "status").String(),
		PlanID:          gjson.Get(body, "plan_id").String(),
		ApprovalURL:     gjson.Get(body, `links.#(rel=="approve").href`).String(),
		SubscriberEmail: gjson.Get(body, "subscriber.email_address").String(),
		LastPayment:     gjson.Get(body, "billing_info.last_payment.amount.value").Float(),
		Currency:        gjson.Get(body, "billing_info.last_payment.amount.currency_code").String(),
	}
	if v := gjson.Get(body, "billing_info.next_billing_time"); v.Exists() {
		t := v.Time()
		s.NextBillingTime = &t
	}
	return s
}

func apiError(op string, resp *resty.Response) error {
	body := resp.String()
	return &APIError{
		Operation: op,
		Status:    resp.StatusCode(),
		Name:      gjson.Get(body, "name").String(),
		Message:   firstNonEmpty(gjson.Get(body, "message").String(), gjson.Get(body, "error_description").String()),
	}
}

func errOrStatus(resp *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if resp != nil && resp.IsError() {
		return errors.New(resp.Status())
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
