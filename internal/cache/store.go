package cache

import (
	"context"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const keyPrefix = "giftpool:cache:"

// Store is a byte-oriented cache shared across instances when backed by
// Redis.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// NewStore returns a Redis store when client is configured, otherwise an
// in-memory store.
func NewStore(client *redis.Client) Store {
	if client == nil {
		return NewMemoryStore()
	}
	return &redisStore{client: client}
}

type redisStore struct {
	client *redis.Client
}

func (s *redisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	raw, err := s.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return raw, true, nil
}

func (s *redisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.client.Set(ctx, keyPrefix+key, value, ttl).Err()
}

func (s *redisStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, keyPrefix+key).Err()
}

type memoryStore struct {
	items Cache[string, []byte]
}

func NewMemoryStore() Store {
	return &memoryStore{items: NewTTLCache[string, []byte]()}
}

func (s *memoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	raw, ok := s.items.Get(key)
	return raw, ok, nil
}

func (s *memoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.items.Set(key, value, ttl)
	return nil
}

func (s *memoryStore) Delete(_ context.Context, key string) error {
	s.items.Delete(key)
	return nil
}
