package results

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps results in Redis so that every server replica sees the
// same records.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore connects to addr. A zero ttl keeps values forever.
func NewRedisStore(addr, password string, db int, ttl time.Duration) *RedisStore {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisStore{client: rdb, prefix: "cogscreen:results", ttl: ttl}
}

func (s *RedisStore) key(owner, key string) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, owner, key)
}

func (s *RedisStore) Write(ctx context.Context, owner, key string, value []byte) error {
	if err := validate(owner, key); err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key(owner, key), value, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Read(ctx context.Context, owner, key string) ([]byte, error) {
	if err := validate(owner, key); err != nil {
		return nil, err
	}
	payload, err := s.client.Get(ctx, s.key(owner, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return payload, nil
}

func (s *RedisStore) Clear(ctx context.Context, owner, key string) error {
	if err := validate(owner, key); err != nil {
		return err
	}
	return s.client.Del(ctx, s.key(owner, key)).Err()
}

// ClearAll deletes the listed keys, or every key of the owner when none are
// given.
func (s *RedisStore) ClearAll(ctx context.Context, owner string, keys ...string) error {
	if owner == "" {
		return fmt.Errorf("results: owner is required")
	}
	var names []string
	if len(keys) > 0 {
		for _, k := range keys {
			names = append(names, s.key(owner, k))
		}
	} else {
		iter := s.client.Scan(ctx, 0, s.key(owner, "*"), 100).Iterator()
		for iter.Next(ctx) {
			names = append(names, iter.Val())
		}
		if err := iter.Err(); err != nil {
			return fmt.Errorf("redis scan: %w", err)
		}
	}
	if len(names) == 0 {
		return nil
	}
	return s.client.Del(ctx, names...).Err()
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
