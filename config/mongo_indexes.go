package config

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const WebhookEventsCollection = "webhook_events"

func webhookEventIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		// retention: documents carry their own expiry date
		{
			Keys: bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().
				SetName("ttl_expires_at").
				SetExpireAfterSeconds(0),
		},
		// a PayPal event is stored once
		{
			Keys: bson.D{{Key: "paypal_event_id", Value: 1}},
			Options: options.Index().
				SetName("uniq_paypal_event_id").
				SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "processed", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("by_processed_created"),
		},
		{
			Keys:    bson.D{{Key: "event_type", Value: 1}, {Key: "created_at", Value: -1}},
			Options: options.Index().SetName("by_type_created"),
		},
	}
}

func EnsureMongoIndexes() error {
	if MongoClient == nil {
		return errors.New("MongoClient is nil; call InitMongo() first")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return EnsureWebhookEventIndexes(ctx, MongoDatabase())
}

// EnsureWebhookEventIndexes creates the retention and uniqueness indexes on db.
func EnsureWebhookEventIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(WebhookEventsCollection).Indexes().CreateMany(ctx, webhookEventIndexes())
	return err
}
