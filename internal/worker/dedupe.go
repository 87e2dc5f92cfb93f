package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduper remembers which notifications were already sent. Claim returns
// true the first time a key is seen within ttl.
type Deduper interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

const dedupeKeyPrefix = "rentledger:notify:"

// RedisDeduper shares claims between server replicas through Redis
type RedisDeduper struct {
	rdb *redis.Client
}

// NewRedisDeduper connects to the Redis instance at url
func NewRedisDeduper(url string) (*RedisDeduper, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	rdb := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisDeduper{rdb: rdb}, nil
}

func (d *RedisDeduper) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := d.rdb.SetNX(ctx, dedupeKeyPrefix+key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim notification key: %w", err)
	}
	return ok, nil
}

// Ping checks connectivity
func (d *RedisDeduper) Ping(ctx context.Context) error {
	return d.rdb.Ping(ctx).Err()
}

// Close closes the Redis connection
func (d *RedisDeduper) Close() error {
	return d.rdb.Close()
}

// ClosingDeduper is a Deduper holding a connection
type ClosingDeduper interface {
	Deduper
	Close() error
}

// NewDeduper connects to Redis when url is set and falls back to an
// in-process deduper otherwise
func NewDeduper(url string) (ClosingDeduper, error) {
	if url == "" {
		return NewMemoryDeduper(), nil
	}
	d, err := NewRedisDeduper(url)
	if err != nil {
		return nil, err
	}
	return d, nil
}

// MemoryDeduper keeps claims in process. Claims are lost on restart.
type MemoryDeduper struct {
	mu    sync.Mutex
	items map[string]time.Time
	now   func() time.Time
}

// NewMemoryDeduper creates an empty MemoryDeduper
func NewMemoryDeduper() *MemoryDeduper {
	return &MemoryDeduper{items: map[string]time.Time{}, now: time.Now}
}

func (d *MemoryDeduper) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	for k, expiresAt := range d.items {
		if !now.Before(expiresAt) {
			delete(d.items, k)
		}
	}
	if _, taken := d.items[key]; taken {
		return false, nil
	}
	d.items[key] = now.Add(ttl)
	return true, nil
}

func (d *MemoryDeduper) Close() error { return nil }
