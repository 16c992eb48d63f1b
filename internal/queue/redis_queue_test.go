package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestQueue(t *testing.T, cfg Config) (*RedisJobQueue, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	if cfg.Stream == "" {
		cfg = CVParseConfig()
	}
	cfg.Consumer = "consumer-1"
	cfg.RetryDelay = time.Millisecond
	q, err := NewRedisJobQueue(rdb, cfg)
	if err != nil {
		t.Fatalf("new queue: %v", err)
	}
	return q, srv
}

func TestEnqueueWritesStatusWithTTL(t *testing.T) {
	q, srv := newTestQueue(t, Config{})
	ctx := context.Background()

	job, err := q.Enqueue(ctx, Job{CVID: "cv-1", UserID: "user-1"})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if job.ID == "" || job.Type != TypeCVParse || job.Status != StatusQueued {
		t.Fatalf("unexpected job: %+v", job)
	}
	if ttl := srv.TTL(StatusKey(job.ID)); ttl != time.Hour {
		t.Fatalf("expected 1h status ttl, got %v", ttl)
	}

	got, found, err := q.GetJob(ctx, job.ID)
	if err != nil || !found {
		t.Fatalf("get job: found=%v err=%v", found, err)
	}
	if got.CVID != "cv-1" || got.UserID != "user-1" || got.Status != StatusQueued {
		t.Fatalf("unexpected status record: %+v", got)
	}
	if n, _ := q.Len(ctx); n != 1 {
		t.Fatalf("expected one stream entry, got %d", n)
	}
}

func TestEnqueueRequiresCV(t *testing.T) {
	q, _ := newTestQueue(t, Config{})
	if _, err := q.Enqueue(context.Background(), Job{UserID: "u"}); err == nil {
		t.Fatalf("expected error for missing cv id")
	}
}

func TestTailorJobKeepsCompositeID(t *testing.T) {
	q, _ := newTestQueue(t, AITailorConfig())
	ctx := context.Background()

	job, err := q.Enqueue(ctx, Job{ID: TailorJobID("cv-1", "job-9"), CVID: "cv-1", TargetJobID: "job-9"})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if job.ID != "cv-1:job-9" || job.Type != TypeAITailor {
		t.Fatalf("unexpected job: %+v", job)
	}
	if _, found, _ := q.GetJob(ctx, "cv-1:job-9"); !found {
		t.Fatalf("status record missing")
	}
}

func TestHandleMessageSuccessMarksDone(t *testing.T) {
	q, ctx, msg := pendingMessage(t, Config{})

	var seen Job
	q.handleMessage(ctx, msg, func(_ context.Context, job Job) error {
		seen = job
		return nil
	})
	if seen.Attempts != 1 || seen.Status != StatusProcessing {
		t.Fatalf("handler saw unexpected job: %+v", seen)
	}
	got, _, _ := q.GetJob(ctx, seen.ID)
	if got.Status != StatusDone {
		t.Fatalf("expected done, got %q", got.Status)
	}
	assertNoPending(t, q, ctx)
}

func TestHandleMessageRetriesThenFails(t *testing.T) {
	cfg := CVParseConfig()
	cfg.MaxRetries = 2
	q, ctx, msg := pendingMessage(t, cfg)
	boom := errors.New("extract failed")

	q.handleMessage(ctx, msg, func(context.Context, Job) error { return boom })
	job := jobFromValues(msg.Values)
	got, _, _ := q.GetJob(ctx, job.ID)
	if got.Status != StatusQueued || got.ErrorMessage != "extract failed" || got.Attempts != 1 {
		t.Fatalf("expected requeued job, got %+v", got)
	}

	next := readOne(t, q, ctx, "consumer-2")
	q.handleMessage(ctx, next, func(context.Context, Job) error { return boom })
	got, _, _ = q.GetJob(ctx, job.ID)
	if got.Status != StatusFailed || got.Attempts != 2 {
		t.Fatalf("expected failed job after max retries, got %+v", got)
	}
	assertNoPending(t, q, ctx)
}

func TestRequeueAndAckFailureKeepsPendingMessage(t *testing.T) {
	q, ctx, msg := pendingMessage(t, Config{})

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	if err := q.requeueAndAck(canceled, msg.ID, jobFromValues(msg.Values)); err == nil {
		t.Fatalf("expected requeueAndAck to fail on canceled context")
	}
	pending, err := q.client.XPending(ctx, q.stream, q.group).Result()
	if err != nil {
		t.Fatalf("xpending: %v", err)
	}
	if pending.Count != 1 {
		t.Fatalf("expected original message to remain pending, got %d", pending.Count)
	}
}

func TestHandleMessageStatusWriteFailureKeepsMessage(t *testing.T) {
	q, ctx, msg := pendingMessage(t, Config{})

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	called := false
	q.handleMessage(canceled, msg, func(context.Context, Job) error { called = true; return nil })
	if called {
		t.Fatalf("handler must not run when the status record cannot be written")
	}
	pending, err := q.client.XPending(ctx, q.stream, q.group).Result()
	if err != nil {
		t.Fatalf("xpending: %v", err)
	}
	if pending.Count != 1 {
		t.Fatalf("expected message to stay pending for reclaim, got %d", pending.Count)
	}
	if n, _ := q.Len(ctx); n != 1 {
		t.Fatalf("expected stream entry to survive, len=%d", n)
	}
}

func TestHandleMessageDropsMalformedPayload(t *testing.T) {
	q, _ := newTestQueue(t, Config{})
	ctx := context.Background()
	q.ensureGroup(ctx)
	if err := q.client.XAdd(ctx, &redis.XAddArgs{Stream: q.stream, Values: map[string]any{"junk": "1"}}).Err(); err != nil {
		t.Fatalf("xadd: %v", err)
	}
	msg := readOne(t, q, ctx, "consumer-1")
	called := false
	q.handleMessage(ctx, msg, func(context.Context, Job) error { called = true; return nil })
	if called {
		t.Fatalf("handler must not run for malformed payload")
	}
	if n, _ := q.Len(ctx); n != 0 {
		t.Fatalf("malformed message should be deleted, len=%d", n)
	}
}

func pendingMessage(t *testing.T, cfg Config) (*RedisJobQueue, context.Context, redis.XMessage) {
	t.Helper()
	q, _ := newTestQueue(t, cfg)
	ctx := context.Background()
	q.ensureGroup(ctx)
	if _, err := q.Enqueue(ctx, Job{CVID: "cv-1", UserID: "user-1"}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	return q, ctx, readOne(t, q, ctx, "consumer-1")
}

func readOne(t *testing.T, q *RedisJobQueue, ctx context.Context, consumer string) redis.XMessage {
	t.Helper()
	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.group,
		Consumer: consumer,
		Streams:  []string{q.stream, ">"},
		Count:    1,
		Block:    -1,
	}).Result()
	if err != nil {
		t.Fatalf("readgroup: %v", err)
	}
	if len(streams) != 1 || len(streams[0].Messages) != 1 {
		t.Fatalf("expected one message, got %+v", streams)
	}
	return streams[0].Messages[0]
}

func assertNoPending(t *testing.T, q *RedisJobQueue, ctx context.Context) {
	t.Helper()
	pending, err := q.client.XPending(ctx, q.stream, q.group).Result()
	if err != nil {
		t.Fatalf("xpending: %v", err)
	}
	if pending.Count != 0 {
		t.Fatalf("expected no pending messages, got %d", pending.Count)
	}
}

func TestRedisPublisherDeliversEvents(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	ctx := context.Background()
	pub := NewRedisPublisher(client)

	sub := pub.Subscribe(ctx, TailorChannel("cv-1", "job-1"))
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := pub.Publish(ctx, "tailor:cv-1:job-1:status", Event{Type: EventStatus, Status: StatusProcessing}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	msg, err := sub.ReceiveMessage(ctx)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if msg.Payload != `{"type":"status","status":"processing"}` {
		t.Fatalf("unexpected payload %s", msg.Payload)
	}
}
