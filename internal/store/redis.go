package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the key snapshots are stored under.
const DefaultRedisKey = "tiered-memory:snapshot"

// RedisStore keeps the snapshot under a single Redis key.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore connects to addr. The connection is established lazily.
func NewRedisStore(addr, key string) (*RedisStore, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis backend requires an address")
	}
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		key:    key,
	}, nil
}

func (s *RedisStore) Load(ctx context.Context) ([]byte, error) {
	b, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", s.key, err)
	}
	return b, nil
}

func (s *RedisStore) Save(ctx context.Context, data []byte) error {
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", s.key, err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
