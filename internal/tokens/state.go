package tokens

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// StateStore binds single-use OAuth states to the user who started the flow.
type StateStore interface {
	Put(ctx context.Context, state, userID string, ttl time.Duration) error
	// Take returns the bound user and deletes the state. Missing or expired
	// states yield ErrInvalidState.
	Take(ctx context.Context, state string) (string, error)
}

// RedisStateStore keeps states in Redis with a TTL.
type RedisStateStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStateStore constructs a RedisStateStore.
func NewRedisStateStore(client *redis.Client) *RedisStateStore {
	return &RedisStateStore{client: client, prefix: "qbportal:oauth:state:"}
}

// Put implements StateStore.
func (s *RedisStateStore) Put(ctx context.Context, state, userID string, ttl time.Duration) error {
	ok, err := s.client.SetNX(ctx, s.prefix+state, userID, ttl).Result()
	if err != nil {
		return fmt.Errorf("tokens: store state: %w", err)
	}
	if !ok {
		return errors.New("tokens: state collision")
	}
	return nil
}

// Take implements StateStore.
func (s *RedisStateStore) Take(ctx context.Context, state string) (string, error) {
	if state == "" {
		return "", ErrInvalidState
	}
	userID, err := s.client.GetDel(ctx, s.prefix+state).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrInvalidState
	}
	if err != nil {
		return "", fmt.Errorf("tokens: take state: %w", err)
	}
	return userID, nil
}

var _ StateStore = (*RedisStateStore)(nil)
