package queue

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

const (
	EventStatus   = "status"
	EventChunk    = "chat_chunk"
	EventComplete = "chat_complete"
)

// Event is a progress message fanned out to live listeners of a tailoring session.
type Event struct {
	Type    string `json:"type"`
	Status  string `json:"status,omitempty"`
	Message string `json:"message,omitempty"`
	Seq     int    `json:"seq,omitempty"`
	Chunk   string `json:"chunk,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type Publisher interface {
	Publish(ctx context.Context, channel string, ev Event) error
}

type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, channel string, ev Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, channel, b).Err()
}

// Subscribe returns a live subscription; callers must Close it.
func (p *RedisPublisher) Subscribe(ctx context.Context, channel string) *redis.PubSub {
	return p.client.Subscribe(ctx, channel)
}

func TailorChannel(cvID, jobID string) string {
	return "tailor:" + cvID + ":" + jobID + ":status"
}
