package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisTokenPrefix = "nodeflow:realtime:token:"

// RedisTokenStore shares issued tokens between API replicas. Keys expire
// together with the token.
type RedisTokenStore struct {
	client redis.UniversalClient
}

func NewRedisTokenStore(client redis.UniversalClient) *RedisTokenStore {
	return &RedisTokenStore{client: client}
}

func (s *RedisTokenStore) Put(ctx context.Context, token Token) error {
	payload, err := json.Marshal(token)
	if err != nil {
		return err
	}

	ttl := time.Until(token.ExpiresAt)
	if ttl <= 0 {
		return ErrInvalidToken
	}

	return s.client.Set(ctx, redisTokenPrefix+token.Value, payload, ttl).Err()
}

func (s *RedisTokenStore) Get(ctx context.Context, value string) (Token, error) {
	payload, err := s.client.Get(ctx, redisTokenPrefix+value).Bytes()
	if errors.Is(err, redis.Nil) {
		return Token{}, ErrInvalidToken
	}

	if err != nil {
		return Token{}, err
	}

	var token Token
	if err := json.Unmarshal(payload, &token); err != nil {
		return Token{}, err
	}

	return token, nil
}
