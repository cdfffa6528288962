package publisher

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"sjsage522/eventworker/internal/event"
)

// MessageField is the stream entry field holding the JSON encoded event
const MessageField = "event"

// RedisPublisher implements Publisher using a Redis stream
type RedisPublisher struct {
	client          *redis.Client
	stream          string
	streamMaxLength int64
}

// NewRedisPublisher creates a new Redis publisher
func NewRedisPublisher(addr string, db int, stream string, streamMaxLength int) *RedisPublisher {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	return &RedisPublisher{
		client:          client,
		stream:          stream,
		streamMaxLength: int64(streamMaxLength),
	}
}

// Publish appends the event to the stream. The stream is capped
// approximately at the configured length on every append.
func (p *RedisPublisher) Publish(ctx context.Context, e *event.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"key":        e.Key,
			"source":     e.Source,
			MessageField: string(data),
		},
	}
	if p.streamMaxLength > 0 {
		args.MaxLen = p.streamMaxLength
		args.Approx = true
	}

	return p.client.XAdd(ctx, args).Err()
}

// Ping checks the connection to redis
func (p *RedisPublisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
