package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusDone       = "done"
	StatusFailed     = "failed"
)

const (
	TypeCVParse  = "cv_parse"
	TypeAITailor = "ai_tailor"

	StreamCVParse  = "queue:cv-parse"
	StreamAITailor = "queue:ai-tailor"
)

// Job is both the stream payload and the status record kept at job:{id}:status.
type Job struct {
	ID           string    `json:"job_id"`
	Type         string    `json:"type"`
	UserID       string    `json:"user_id"`
	CVID         string    `json:"cv_id"`
	TargetJobID  string    `json:"target_job_id,omitempty"`
	Status       string    `json:"status"`
	ErrorMessage string    `json:"error,omitempty"`
	Attempts     int       `json:"attempts"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Handler processes one job; a non-nil error schedules a retry until MaxRetries.
type Handler func(ctx context.Context, job Job) error

type RedisJobQueue struct {
	client       *redis.Client
	stream       string
	jobType      string
	group        string
	consumerBase string
	jobTTL       time.Duration
	maxRetries   int
	block        time.Duration
	claimIdle    time.Duration
	retryDelay   time.Duration
	maxLen       int64
	readCount    int64
	claimCount   int64
	once         sync.Once
}

type Config struct {
	Stream     string
	Type       string
	Group      string
	Consumer   string
	JobTTL     time.Duration
	MaxRetries int
	Block      time.Duration
	ClaimIdle  time.Duration
	RetryDelay time.Duration
	MaxLen     int64
	ReadCount  int64
	ClaimCount int64
}

// CVParseConfig and AITailorConfig are the two queues the workers consume.
func CVParseConfig() Config  { return Config{Stream: StreamCVParse, Type: TypeCVParse, Group: "cv-parsers"} }
func AITailorConfig() Config { return Config{Stream: StreamAITailor, Type: TypeAITailor, Group: "ai-tailors"} }

func NewRedisJobQueue(client *redis.Client, cfg Config) (*RedisJobQueue, error) {
	if client == nil {
		return nil, errors.New("redis client required")
	}
	stream := strings.TrimSpace(cfg.Stream)
	if stream == "" {
		return nil, errors.New("queue stream required")
	}
	jobType := strings.TrimSpace(cfg.Type)
	if jobType == "" {
		return nil, errors.New("queue job type required")
	}
	group := strings.TrimSpace(cfg.Group)
	if group == "" {
		group = "default"
	}
	consumer := strings.TrimSpace(cfg.Consumer)
	if consumer == "" {
		consumer = uuid.NewString()
	}
	jobTTL := cfg.JobTTL
	if jobTTL <= 0 {
		jobTTL = time.Hour
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	block := cfg.Block
	if block <= 0 {
		block = 5 * time.Second
	}
	claimIdle := cfg.ClaimIdle
	if claimIdle <= 0 {
		claimIdle = 2 * time.Minute
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = 2 * time.Second
	}
	maxLen := cfg.MaxLen
	if maxLen <= 0 {
		maxLen = 10000
	}
	readCount := cfg.ReadCount
	if readCount <= 0 {
		readCount = 1
	}
	claimCount := cfg.ClaimCount
	if claimCount <= 0 {
		claimCount = 10
	}

	return &RedisJobQueue{
		client:       client,
		stream:       stream,
		jobType:      jobType,
		group:        group,
		consumerBase: consumer,
		jobTTL:       jobTTL,
		maxRetries:   maxRetries,
		block:        block,
		claimIdle:    claimIdle,
		retryDelay:   retryDelay,
		maxLen:       maxLen,
		readCount:    readCount,
		claimCount:   claimCount,
	}, nil
}

func (q *RedisJobQueue) Stream() string { return q.stream }

// Enqueue writes the queued status and appends the job to the stream.
// An empty job.ID gets a fresh uuid; tailoring jobs pass "cv_id:job_id".
func (q *RedisJobQueue) Enqueue(ctx context.Context, job Job) (Job, error) {
	job.CVID = strings.TrimSpace(job.CVID)
	if job.CVID == "" {
		return Job{}, errors.New("cv_id required")
	}
	if strings.TrimSpace(job.ID) == "" {
		job.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	job.Type = q.jobType
	job.Status = StatusQueued
	job.ErrorMessage = ""
	job.Attempts = 0
	job.CreatedAt = now
	job.UpdatedAt = now
	if err := q.writeStatus(ctx, job); err != nil {
		return Job{}, err
	}
	if err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		MaxLen: q.maxLen,
		Approx: true,
		Values: streamValues(job),
	}).Err(); err != nil {
		return Job{}, err
	}
	return job, nil
}

func (q *RedisJobQueue) GetJob(ctx context.Context, jobID string) (Job, bool, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return Job{}, false, nil
	}
	data, err := q.client.HGetAll(ctx, StatusKey(jobID)).Result()
	if err != nil {
		return Job{}, false, err
	}
	if len(data) == 0 {
		return Job{}, false, nil
	}
	return decodeJob(jobID, data), true, nil
}

// Len is the stream length, exported as the queue_length gauge.
func (q *RedisJobQueue) Len(ctx context.Context) (int64, error) {
	return q.client.XLen(ctx, q.stream).Result()
}

func (q *RedisJobQueue) Start(ctx context.Context, concurrency int, handler Handler) {
	if concurrency <= 0 {
		concurrency = 1
	}
	q.ensureGroup(ctx)
	for i := 0; i < concurrency; i++ {
		consumer := fmt.Sprintf("%s-%d", q.consumerBase, i)
		go q.consumeLoop(ctx, consumer, handler)
	}
}

func (q *RedisJobQueue) ensureGroup(ctx context.Context) {
	q.once.Do(func() {
		// "0" so jobs enqueued before the first worker boots are still delivered
		err := q.client.XGroupCreateMkStream(ctx, q.stream, q.group, "0").Err()
		if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
			// best-effort; errors will surface on consume
		}
	})
}

func (q *RedisJobQueue) consumeLoop(ctx context.Context, consumer string, handler Handler) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if msgs, err := q.claimPending(ctx, consumer); err == nil {
			for _, msg := range msgs {
				q.handleMessage(ctx, msg, handler)
			}
		}

		streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    q.group,
			Consumer: consumer,
			Streams:  []string{q.stream, ">"},
			Count:    q.readCount,
			Block:    q.block,
		}).Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) {
				sleepCtx(ctx, 500*time.Millisecond)
			}
			continue
		}
		for _, stream := range streams {
			for _, msg := range stream.Messages {
				q.handleMessage(ctx, msg, handler)
			}
		}
	}
}

func (q *RedisJobQueue) claimPending(ctx context.Context, consumer string) ([]redis.XMessage, error) {
	res, _, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   q.stream,
		Group:    q.group,
		Consumer: consumer,
		MinIdle:  q.claimIdle,
		Start:    "0-0",
		Count:    q.claimCount,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (q *RedisJobQueue) handleMessage(ctx context.Context, msg redis.XMessage, handler Handler) {
	payload := jobFromValues(msg.Values)
	if payload.ID == "" || payload.CVID == "" {
		q.ackAndDel(ctx, msg.ID)
		return
	}
	job, err := q.markProcessing(ctx, payload)
	if err != nil {
		// left pending; claimPending picks it up after claimIdle
		return
	}
	herr := handler(ctx, job)
	if herr == nil {
		_ = q.mark(ctx, job, StatusDone, "")
		q.ackAndDel(ctx, msg.ID)
		return
	}
	if job.Attempts >= q.maxRetries {
		_ = q.mark(ctx, job, StatusFailed, herr.Error())
		q.ackAndDel(ctx, msg.ID)
		return
	}
	_ = q.mark(ctx, job, StatusQueued, herr.Error())
	if !sleepCtx(ctx, q.retryDelay) {
		return
	}
	_ = q.requeueAndAck(ctx, msg.ID, job)
}

func (q *RedisJobQueue) ackAndDel(ctx context.Context, msgID string) {
	_, _ = q.client.XAck(ctx, q.stream, q.group, msgID).Result()
	_, _ = q.client.XDel(ctx, q.stream, msgID).Result()
}

func (q *RedisJobQueue) requeueAndAck(ctx context.Context, msgID string, job Job) error {
	pipe := q.client.TxPipeline()
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		MaxLen: q.maxLen,
		Approx: true,
		Values: streamValues(job),
	})
	pipe.XAck(ctx, q.stream, q.group, msgID)
	pipe.XDel(ctx, q.stream, msgID)
	_, err := pipe.Exec(ctx)
	return err
}

func (q *RedisJobQueue) markProcessing(ctx context.Context, payload Job) (Job, error) {
	job, found, err := q.GetJob(ctx, payload.ID)
	if err != nil {
		return Job{}, err
	}
	if !found {
		job = payload
	}
	job.Type = q.jobType
	job.CVID = payload.CVID
	if payload.UserID != "" {
		job.UserID = payload.UserID
	}
	if payload.TargetJobID != "" {
		job.TargetJobID = payload.TargetJobID
	}
	job.Attempts++
	job.Status = StatusProcessing
	job.UpdatedAt = time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = job.UpdatedAt
	}
	if err := q.writeStatus(ctx, job); err != nil {
		return Job{}, err
	}
	return job, nil
}

func (q *RedisJobQueue) mark(ctx context.Context, job Job, status, errMsg string) error {
	job.Status = status
	job.ErrorMessage = errMsg
	job.UpdatedAt = time.Now().UTC()
	return q.writeStatus(ctx, job)
}

func (q *RedisJobQueue) writeStatus(ctx context.Context, job Job) error {
	key := StatusKey(job.ID)
	payload := map[string]any{
		"type":          job.Type,
		"user_id":       job.UserID,
		"cv_id":         job.CVID,
		"target_job_id": job.TargetJobID,
		"status":        job.Status,
		"error":         job.ErrorMessage,
		"attempts":      strconv.Itoa(job.Attempts),
		"created_at":    job.CreatedAt.Format(time.RFC3339Nano),
		"updated_at":    job.UpdatedAt.Format(time.RFC3339Nano),
	}
	if err := q.client.HSet(ctx, key, payload).Err(); err != nil {
		return err
	}
	_ = q.client.Expire(ctx, key, q.jobTTL).Err()
	return nil
}

// StatusKey is the hash holding a job's lifecycle state.
func StatusKey(jobID string) string {
	return "job:" + jobID + ":status"
}

// TailorJobID keys tailoring jobs so one (cv, job) pair has one status record.
func TailorJobID(cvID, jobID string) string {
	return cvID + ":" + jobID
}

func streamValues(job Job) map[string]any {
	return map[string]any{
		"job_id":        job.ID,
		"type":          job.Type,
		"user_id":       job.UserID,
		"cv_id":         job.CVID,
		"target_job_id": job.TargetJobID,
	}
}

func jobFromValues(v map[string]any) Job {
	get := func(k string) string {
		s, _ := v[k].(string)
		return s
	}
	return Job{
		ID:          get("job_id"),
		Type:        get("type"),
		UserID:      get("user_id"),
		CVID:        get("cv_id"),
		TargetJobID: get("target_job_id"),
	}
}

func decodeJob(jobID string, data map[string]string) Job {
	job := Job{
		ID:           jobID,
		Type:         data["type"],
		UserID:       data["user_id"],
		CVID:         data["cv_id"],
		TargetJobID:  data["target_job_id"],
		Status:       data["status"],
		ErrorMessage: data["error"],
	}
	if n, err := strconv.Atoi(data["attempts"]); err == nil {
		job.Attempts = n
	}
	if t, err := time.Parse(time.RFC3339Nano, data["created_at"]); err == nil {
		job.CreatedAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, data["updated_at"]); err == nil {
		job.UpdatedAt = t
	}
	return job
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
