package idempotency

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"autovault/internal/config"
)

// DefaultTTL bounds how long a processed event id is remembered.
const DefaultTTL = 72 * time.Hour

// Claims records which provider events have already been taken for processing.
type Claims interface {
	// Claim returns true when key was not claimed before.
	Claim(ctx context.Context, key string) (bool, error)
	// Release forgets key so a redelivery is processed again.
	Release(ctx context.Context, key string) error
}

// Noop claims every key. Used when no redis is configured; the order
// ledger's unique payment id still deduplicates fulfillment.
type Noop struct{}

func (Noop) Claim(context.Context, string) (bool, error) { return true, nil }
func (Noop) Release(context.Context, string) error       { return nil }

// RedisClaims stores claims as expiring keys under a namespace.
type RedisClaims struct {
	Redis     redis.UniversalClient
	Namespace string
	TTL       time.Duration
}

func NewRedisClaims(namespace string, client redis.UniversalClient, ttl time.Duration) *RedisClaims {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisClaims{Redis: client, Namespace: namespace, TTL: ttl}
}

func (c *RedisClaims) key(k string) string {
	return c.Namespace + ":" + k
}

func (c *RedisClaims) Claim(ctx context.Context, key string) (bool, error) {
	ok, err := c.Redis.SetNX(ctx, c.key(key), time.Now().UTC().Format(time.RFC3339), c.TTL).Result()
	if err != nil {
		return false, fmt.Errorf("redis claim %s: %w", key, err)
	}
	return ok, nil
}

func (c *RedisClaims) Release(ctx context.Context, key string) error {
	if err := c.Redis.Del(ctx, c.key(key)).Err(); err != nil {
		return fmt.Errorf("redis release %s: %w", key, err)
	}
	return nil
}

// NewClient connects to the configured redis and pings it.
func NewClient(ctx context.Context, cfg config.RedisConfig) (redis.UniversalClient, error) {
	cl := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := cl.Ping(pingCtx).Err(); err != nil {
		_ = cl.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}
	return cl, nil
}
