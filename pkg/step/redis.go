package step

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "nodeflow:steps:"

// RedisStore keeps one hash per run, one field per step. Run hashes expire
// after ttl.
type RedisStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisStore(client redis.UniversalClient, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Load(ctx context.Context, runID, name string) (json.RawMessage, bool, error) {
	result, err := s.client.HGet(ctx, redisKeyPrefix+runID, name).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}

	if err != nil {
		return nil, false, err
	}

	return result, true, nil
}

func (s *RedisStore) Save(ctx context.Context, runID, name string, result json.RawMessage) error {
	key := redisKeyPrefix + runID

	pipe := s.client.TxPipeline()
	pipe.HSetNX(ctx, key, name, []byte(result))

	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}

	_, err := pipe.Exec(ctx)

	return err
}
