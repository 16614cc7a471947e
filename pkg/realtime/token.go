package realtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

const DefaultTokenTTL = 5 * time.Minute

var (
	ErrInvalidToken   = errors.New("invalid or expired subscription token")
	ErrUnknownChannel = errors.New("unknown realtime channel")
)

// Token grants read access to a single channel until ExpiresAt.
type Token struct {
	Value     string    `json:"token"`
	Channel   Channel   `json:"channel"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (t Token) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// TokenStore persists issued tokens. Get returns ErrInvalidToken for unknown
// values.
type TokenStore interface {
	Put(ctx context.Context, token Token) error
	Get(ctx context.Context, value string) (Token, error)
}

type TokenIssuer struct {
	store TokenStore
	ttl   time.Duration
	now   func() time.Time
}

func NewTokenIssuer(store TokenStore, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	return &TokenIssuer{store: store, ttl: ttl, now: time.Now}
}

func (i *TokenIssuer) Issue(ctx context.Context, channel Channel) (Token, error) {
	if !channel.Valid() {
		return Token{}, fmt.Errorf("%w: %q", ErrUnknownChannel, channel)
	}

	token := Token{
		Value:     uuid.NewString(),
		Channel:   channel,
		ExpiresAt: i.now().Add(i.ttl).UTC(),
	}

	if err := i.store.Put(ctx, token); err != nil {
		return Token{}, fmt.Errorf("failed to store subscription token: %w", err)
	}

	return token, nil
}

func (i *TokenIssuer) Verify(ctx context.Context, value string) (Token, error) {
	if value == "" {
		return Token{}, ErrInvalidToken
	}

	token, err := i.store.Get(ctx, value)
	if err != nil {
		return Token{}, err
	}

	if token.Expired(i.now()) {
		return Token{}, ErrInvalidToken
	}

	return token, nil
}

type MemoryTokenStore struct {
	mu     sync.Mutex
	tokens map[string]Token
	now    func() time.Time
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{tokens: make(map[string]Token), now: time.Now}
}

func (s *MemoryTokenStore) Put(_ context.Context, token Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for value, existing := range s.tokens {
		if existing.Expired(now) {
			delete(s.tokens, value)
		}
	}

	s.tokens[token.Value] = token

	return nil
}

func (s *MemoryTokenStore) Get(_ context.Context, value string) (Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.tokens[value]
	if !ok {
		return Token{}, ErrInvalidToken
	}

	return token, nil
}
