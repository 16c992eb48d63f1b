package mongo

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/tailorjob/backend/config"
	"github.com/tailorjob/backend/internal/models"
	"github.com/tailorjob/backend/internal/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// testRepo connects to TEST_MONGO_URI and works in a throwaway database.
func testRepo(t *testing.T) WebhookEventRepository {
	t.Helper()
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	db := client.Database("tailorjob_test_" + uuid.NewString()[:8])
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = db.Drop(ctx)
		_ = client.Disconnect(ctx)
	})
	if err := config.EnsureWebhookEventIndexes(ctx, db); err != nil {
		t.Fatalf("indexes: %v", err)
	}
	return NewWebhookEventRepo(db, time.Hour)
}

func TestWebhookEventInsertDuplicate(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	ev := &models.WebhookEvent{PayPalEventID: "WH-1", EventType: "PAYMENT.SALE.COMPLETED", Payload: bson.M{"id": "WH-1"}}
	if err := repo.Insert(ctx, ev); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if !ev.ExpiresAt.Equal(ev.CreatedAt.Add(time.Hour)) {
		t.Fatalf("expiry should follow retention: created=%v expires=%v", ev.CreatedAt, ev.ExpiresAt)
	}
	again := &models.WebhookEvent{PayPalEventID: "WH-1", EventType: "PAYMENT.SALE.COMPLETED"}
	if err := repo.Insert(ctx, again); !errors.Is(err, utils.ErrDuplicate) {
		t.Fatalf("expected duplicate, got %v", err)
	}
}

func TestWebhookEventLifecycle(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()
	since := time.Now().UTC().Add(-time.Minute)

	for _, id := range []string{"WH-ok", "WH-bad"} {
		if err := repo.Insert(ctx, &models.WebhookEvent{PayPalEventID: id, EventType: "BILLING.SUBSCRIPTION.ACTIVATED"}); err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
	}
	if err := repo.MarkFailed(ctx, "WH-bad", "subscription missing"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if err := repo.MarkFailed(ctx, "WH-ok", "transient"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if err := repo.MarkProcessed(ctx, "WH-ok"); err != nil {
		t.Fatalf("mark processed: %v", err)
	}

	ok, err := repo.GetByEventID(ctx, "WH-ok")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok.Processed || ok.ProcessedAt == nil || ok.ErrorMessage != "" || ok.RetryCount != 1 {
		t.Fatalf("unexpected processed event: %+v", ok)
	}
	if _, err := repo.GetByEventID(ctx, "WH-missing"); !errors.Is(err, utils.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	st, err := repo.Stats(ctx, since)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st != (models.WebhookStats{Total: 2, Processed: 1, Failed: 1}) {
		t.Fatalf("unexpected stats: %+v", st)
	}
}
