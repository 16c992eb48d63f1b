package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// WebhookEvent is the audit record of an inbound PayPal notification.
type WebhookEvent struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	PayPalEventID string             `bson:"paypal_event_id" json:"paypal_event_id"`
	EventType     string             `bson:"event_type" json:"event_type"`
	ResourceType  string             `bson:"resource_type,omitempty" json:"resource_type,omitempty"`
	Payload       primitive.M        `bson:"payload" json:"payload"`

	Processed    bool       `bson:"processed" json:"processed"`
	ProcessedAt  *time.Time `bson:"processed_at,omitempty" json:"processed_at,omitempty"`
	ErrorMessage string     `bson:"error_message,omitempty" json:"error_message,omitempty"`
	RetryCount   int        `bson:"retry_count" json:"retry_count"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"` // for TTL index
}

// WebhookStats summarises processing over a window.
type WebhookStats struct {
	Total     int64 `json:"total"`
	Processed int64 `json:"processed"`
	Failed    int64 `json:"failed"`
}
