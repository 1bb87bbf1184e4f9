package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStorage implements Storage on top of Redis, keeping fetched
// collections out of the process heap.
//
// Usage example:
//
//	redisClient := redis.NewClient(&redis.Options{
//		Addr: "localhost:6379",
//	})
//
//	if err := redisClient.Ping(context.Background()).Err(); err != nil {
//		log.Fatal("Failed to connect to Redis:", err)
//	}
//
//	client, err := sdk.New(&sdk.ClientOptions{
//		Endpoint: "http://localhost:5000/api/v1",
//		Storage:  cache.NewRedisStorage(redisClient, "ors_cache:", time.Hour),
//	})
//
// Every Cache namespaces its keys with its own instance id, so two processes
// pointed at the same Redis never read each other's entries. Entries expire
// after ttl so that keys left behind by a crashed process do not pile up.
type RedisStorage struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRedisStorage creates a Redis-backed storage. keyPrefix defaults to
// "ors_cache:" when empty; a zero ttl means entries never expire.
func NewRedisStorage(client *redis.Client, keyPrefix string, ttl time.Duration) *RedisStorage {
	if keyPrefix == "" {
		keyPrefix = "ors_cache:"
	}

	return &RedisStorage{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
	}
}

func (r *RedisStorage) key(k string) string {
	return r.keyPrefix + k
}

func (r *RedisStorage) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, true, nil
}

func (r *RedisStorage) Set(ctx context.Context, key string, value []byte) error {
	if err := r.client.Set(ctx, r.key(key), value, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *RedisStorage) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = r.key(k)
	}
	if err := r.client.Del(ctx, prefixed...).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}
