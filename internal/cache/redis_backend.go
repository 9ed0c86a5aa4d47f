package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrBackendClosed is returned by operations on a closed backend.
var ErrBackendClosed = errors.New("cache: backend closed")

// RedisBackend stores entries in Redis. Entries carry their own write
// timestamp so freshness is decided by the Cache, but a coarse server-side
// expiry is also set as a safety net against unbounded growth.
type RedisBackend struct {
	client *redis.Client
	maxAge time.Duration
	mu     sync.RWMutex
	closed bool
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	// Addr is the Redis server address (host:port).
	Addr string
	// Password is the Redis password (optional).
	Password string
	// DB is the Redis database number.
	DB int
	// MaxAge is the server-side expiry applied to every entry
	// (default 72h; TTL-based freshness is always shorter).
	MaxAge time.Duration
	// PoolSize is the connection pool size (default: 10).
	PoolSize int
}

// NewRedisBackend creates a Redis cache backend and verifies connectivity.
func NewRedisBackend(cfg RedisConfig) (*RedisBackend, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}

	poolSize := cfg.PoolSize
	if poolSize <= 0 {
		poolSize = 10
	}
	maxAge := cfg.MaxAge
	if maxAge <= 0 {
		maxAge = 72 * time.Hour
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: poolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisBackend{
		client: client,
		maxAge: maxAge,
	}, nil
}

// NewRedisBackendFromClient wraps an existing client. Useful for testing
// with miniredis.
func NewRedisBackendFromClient(client *redis.Client, maxAge time.Duration) *RedisBackend {
	if maxAge <= 0 {
		maxAge = 72 * time.Hour
	}
	return &RedisBackend{
		client: client,
		maxAge: maxAge,
	}
}

// Name identifies the backend in entry metadata and metrics.
func (b *RedisBackend) Name() string { return "redis" }

// Put stores an entry under key.
func (b *RedisBackend) Put(ctx context.Context, key string, entry *Entry) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrBackendClosed
	}
	b.mu.RUnlock()

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}

	if err := b.client.Set(ctx, key, data, b.maxAge).Err(); err != nil {
		return fmt.Errorf("set entry: %w", err)
	}
	return nil
}

// Get retrieves the entry for key, or ErrNotFound.
func (b *RedisBackend) Get(ctx context.Context, key string) (*Entry, error) {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return nil, ErrBackendClosed
	}
	b.mu.RUnlock()

	data, err := b.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get entry: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("unmarshal entry: %w", err)
	}
	return &entry, nil
}

// Delete removes the entry for key. Missing keys are not an error.
func (b *RedisBackend) Delete(ctx context.Context, key string) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrBackendClosed
	}
	b.mu.RUnlock()

	if err := b.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	return nil
}

// Ping checks if the Redis connection is alive.
func (b *RedisBackend) Ping(ctx context.Context) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrBackendClosed
	}
	b.mu.RUnlock()

	return b.client.Ping(ctx).Err()
}

// Close releases the connection pool.
func (b *RedisBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	return b.client.Close()
}
