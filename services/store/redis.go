package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"sjsage522/eventworker/internal/event"
	"sjsage522/eventworker/logger"
)

// RedisStore keeps each event as a JSON string under its dedup key,
// plus a per-source sorted set ordered by creation time
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	now       func() time.Time
}

// NewRedisStore creates a redis backed store
func NewRedisStore(addr string, db int, keyPrefix string) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	return &RedisStore{
		client:    client,
		keyPrefix: keyPrefix,
		now:       time.Now,
	}
}

func (s *RedisStore) eventKey(key string) string {
	return s.keyPrefix + "event:" + key
}

func (s *RedisStore) sourceKey(source string) string {
	return s.keyPrefix + "source:" + source
}

// Ping checks the connection to redis
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// FindByKey implements Store
func (s *RedisStore) FindByKey(ctx context.Context, key string) (*event.Event, error) {
	data, err := s.client.Get(ctx, s.eventKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var e event.Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// Create implements Store. SETNX makes the key check atomic across workers.
func (s *RedisStore) Create(ctx context.Context, e *event.Event) (*event.Event, error) {
	created := prepare(e, s.now)

	data, err := json.Marshal(created)
	if err != nil {
		return nil, err
	}

	ok, err := s.client.SetNX(ctx, s.eventKey(created.Key), data, 0).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrDuplicate
	}

	if created.Source != "" {
		err = s.client.ZAdd(ctx, s.sourceKey(created.Source), redis.Z{
			Score:  float64(created.CreatedAt.Unix()),
			Member: created.Key,
		}).Err()
		if err != nil {
			// the event itself is stored, only the listing index lags
			logger.ForStore().Warn().Err(err).Str("key", created.Key).Msg("Failed to index event by source")
		}
	}
	return &created, nil
}

// KeysBySource returns the dedup keys created for source, oldest first
func (s *RedisStore) KeysBySource(ctx context.Context, source string) ([]string, error) {
	return s.client.ZRange(ctx, s.sourceKey(source), 0, -1).Result()
}

// Close implements Store
func (s *RedisStore) Close() error {
	return s.client.Close()
}
