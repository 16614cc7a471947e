package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dukex/nodeflow/pkg/persistence"
	"github.com/dukex/nodeflow/pkg/realtime"
	"github.com/dukex/nodeflow/pkg/step"
)

// DefaultStepTTL bounds how long recorded step results are kept in Redis.
const DefaultStepTTL = 7 * 24 * time.Hour

// NewStepStore returns where step results are recorded: the database when
// storeURL is empty, process memory for "memory", or Redis for redis:// URLs.
func NewStepStore(storeURL string, p persistence.Persistence) (step.Store, error) {
	switch {
	case storeURL == "" || storeURL == "database":
		return p.StepRepository(), nil
	case storeURL == "memory":
		return step.NewMemoryStore(), nil
	case isRedisURL(storeURL):
		client, err := newRedisClient(storeURL)
		if err != nil {
			return nil, err
		}

		return step.NewRedisStore(client, DefaultStepTTL), nil
	default:
		return nil, fmt.Errorf("unsupported step store: %q", storeURL)
	}
}

// NewTokenStore returns where realtime tokens live. Memory is enough for a
// single API process; replicas behind a load balancer need Redis.
func NewTokenStore(storeURL string) (realtime.TokenStore, error) {
	switch {
	case storeURL == "" || storeURL == "memory":
		return realtime.NewMemoryTokenStore(), nil
	case isRedisURL(storeURL):
		client, err := newRedisClient(storeURL)
		if err != nil {
			return nil, err
		}

		return realtime.NewRedisTokenStore(client), nil
	default:
		return nil, fmt.Errorf("unsupported realtime token store: %q", storeURL)
	}
}

func isRedisURL(storeURL string) bool {
	return strings.HasPrefix(storeURL, "redis://") || strings.HasPrefix(storeURL, "rediss://")
}

func newRedisClient(storeURL string) (*redis.Client, error) {
	options, err := redis.ParseURL(storeURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	return redis.NewClient(options), nil
}
