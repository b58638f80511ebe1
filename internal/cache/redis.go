package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/V1nSky/url-shortener/internal/config"
)

// keyPrefix namespaces resolution entries within Redis.
const keyPrefix = "short:"

// Redis is a Cache backed by a Redis server. Entries are JSON-encoded
// strings with Redis-native TTLs, so no sweep is needed - the server
// expires keys itself.
type Redis struct {
	client *redis.Client
}

// NewRedis connects to Redis and validates the connection before
// returning.
func NewRedis(ctx context.Context, cfg config.RedisConfig) (*Redis, error) {
	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	// Apply overrides only when set, so URL-provided values survive.
	if cfg.Password != "" {
		opt.Password = cfg.Password
	}
	if cfg.DB != 0 {
		opt.DB = cfg.DB
	}
	if cfg.PoolSize > 0 {
		opt.PoolSize = cfg.PoolSize
	}
	if cfg.MinIdleConns > 0 {
		opt.MinIdleConns = cfg.MinIdleConns
	}

	opt.DialTimeout = 5 * time.Second
	opt.ReadTimeout = 3 * time.Second
	opt.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return &Redis{client: client}, nil
}

// Get returns the entry for code, or (nil, nil) on a miss.
func (r *Redis) Get(ctx context.Context, code string) (*Entry, error) {
	data, err := r.client.Get(ctx, keyPrefix+code).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached entry: %w", err)
	}
	return &entry, nil
}

// Set stores entry under code for ttl.
func (r *Redis) Set(ctx context.Context, code string, entry *Entry, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}
	if err := r.client.Set(ctx, keyPrefix+code, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Delete removes the entry for code.
func (r *Redis) Delete(ctx context.Context, code string) error {
	if err := r.client.Del(ctx, keyPrefix+code).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

// Health checks if Redis is responsive.
func (r *Redis) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return r.client.Ping(ctx).Err()
}

// Close shuts down the Redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}
