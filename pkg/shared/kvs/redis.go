package kvs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore stores values in Redis under a "namespace:" key prefix.
// Expiry is delegated to Redis TTLs.
type RedisStore struct {
	prefix string
	client *redis.Client

	mu     sync.RWMutex
	closed bool
}

// NewRedisStore connects to Redis and verifies the connection with PING.
func NewRedisStore(namespace string, cfg RedisConfig) (*RedisStore, error) {
	opts := &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("kvs/redis: failed to connect to %s: %w", cfg.Addr, err)
	}

	prefix := ""
	if namespace != "" {
		prefix = namespace + ":"
	}

	return &RedisStore{prefix: prefix, client: client}, nil
}

func (r *RedisStore) isClosed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.closed
}

// Get retrieves a value by key.
func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	if r.isClosed() {
		return nil, ErrClosed
	}

	value, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("kvs/redis: get failed: %w", err)
	}
	return value, nil
}

// Set stores a value with optional TTL.
func (r *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if r.isClosed() {
		return ErrClosed
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := r.client.Set(ctx, r.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("kvs/redis: set failed: %w", err)
	}
	return nil
}

// Delete removes a key.
func (r *RedisStore) Delete(ctx context.Context, key string) error {
	if r.isClosed() {
		return ErrClosed
	}
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return fmt.Errorf("kvs/redis: delete failed: %w", err)
	}
	return nil
}

// List scans keys with the given prefix and returns them sorted.
func (r *RedisStore) List(ctx context.Context, keyPrefix string) ([]string, error) {
	if r.isClosed() {
		return nil, ErrClosed
	}

	keys := make([]string, 0)
	iter := r.client.Scan(ctx, 0, r.prefix+keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), r.prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("kvs/redis: list failed: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}

// Close closes the Redis connection.
func (r *RedisStore) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrClosed
	}
	r.closed = true
	r.mu.Unlock()

	if err := r.client.Close(); err != nil {
		return fmt.Errorf("kvs/redis: close failed: %w", err)
	}
	return nil
}
