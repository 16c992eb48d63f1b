package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/tailorjob/backend/config"
	"github.com/tailorjob/backend/internal/models"
	"github.com/tailorjob/backend/internal/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type WebhookEventRepository interface {
	// Insert stores a new event; utils.ErrDuplicate means the PayPal event id was already recorded.
	Insert(ctx context.Context, e *models.WebhookEvent) error
	GetByEventID(ctx context.Context, paypalEventID string) (*models.WebhookEvent, error)
	MarkProcessed(ctx context.Context, paypalEventID string) error
	MarkFailed(ctx context.Context, paypalEventID, errMsg string) error
	Stats(ctx context.Context, since time.Time) (models.WebhookStats, error)
}

type webhookEventRepo struct {
	col       *mongo.Collection
	retention time.Duration
}

func NewWebhookEventRepo(db *mongo.Database, retention time.Duration) WebhookEventRepository {
	if retention <= 0 {
		retention = 180 * 24 * time.Hour
	}
	return &webhookEventRepo{col: db.Collection(config.WebhookEventsCollection), retention: retention}
}

func (r *webhookEventRepo) Insert(ctx context.Context, e *models.WebhookEvent) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if e.ExpiresAt.IsZero() {
		e.ExpiresAt = e.CreatedAt.Add(r.retention)
	}
	_, err := r.col.InsertOne(ctx, e)
	if mongo.IsDuplicateKeyError(err) {
		return utils.ErrDuplicate
	}
	return err
}

func (r *webhookEventRepo) GetByEventID(ctx context.Context, paypalEventID string) (*models.WebhookEvent, error) {
	var e models.WebhookEvent
	err := r.col.FindOne(ctx, bson.M{"paypal_event_id": paypalEventID}).Decode(&e)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.ErrNotFound
	}
	return &e, err
}

func (r *webhookEventRepo) MarkProcessed(ctx context.Context, paypalEventID string) error {
	now := time.Now().UTC()
	_, err := r.col.UpdateOne(ctx,
		bson.M{"paypal_event_id": paypalEventID},
		bson.M{
			"$set":   bson.M{"processed": true, "processed_at": now},
			"$unset": bson.M{"error_message": ""},
		},
	)
	return err
}

func (r *webhookEventRepo) MarkFailed(ctx context.Context, paypalEventID, errMsg string) error {
	_, err := r.col.UpdateOne(ctx,
		bson.M{"paypal_event_id": paypalEventID},
		bson.M{
			"$set": bson.M{"processed": false, "error_message": errMsg},
			"$inc": bson.M{"retry_count": 1},
		},
	)
	return err
}

func (r *webhookEventRepo) Stats(ctx context.Context, since time.Time) (models.WebhookStats, error) {
	var st models.WebhookStats
	window := bson.M{"created_at": bson.M{"$gte": since}}

	total, err := r.col.CountDocuments(ctx, window)
	if err != nil {
		return st, err
	}
	processed, err := r.col.CountDocuments(ctx, bson.M{"created_at": bson.M{"$gte": since}, "processed": true})
	if err != nil {
		return st, err
	}
	failed, err := r.col.CountDocuments(ctx, bson.M{
		"created_at":    bson.M{"$gte": since},
		"processed":     false,
		"error_message": bson.M{"$exists": true},
	})
	if err != nil {
		return st, err
	}
	st.Total, st.Processed, st.Failed = total, processed, failed
	return st, nil
}
