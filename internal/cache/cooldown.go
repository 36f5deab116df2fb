package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CooldownCache remembers tickers that were executed recently so the scout
// does not feed the same market back into the pipeline right away.
type CooldownCache interface {
	OnCooldown(ctx context.Context, ticker string) (bool, error)
	Mark(ctx context.Context, ticker string) error
	Close() error
}

type redisCooldownCache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisCooldownCache builds a cooldown cache keyed by ticker.
func NewRedisCooldownCache(addr, password string, db int, ttl time.Duration, prefix string) (CooldownCache, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if prefix == "" {
		prefix = "ticker_cooldown"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &redisCooldownCache{client: client, ttl: ttl, prefix: prefix}, nil
}

func (c *redisCooldownCache) key(ticker string) string {
	return fmt.Sprintf("%s:%s", c.prefix, ticker)
}

func (c *redisCooldownCache) OnCooldown(ctx context.Context, ticker string) (bool, error) {
	if c == nil || c.client == nil {
		return false, nil
	}
	_, err := c.client.Get(ctx, c.key(ticker)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (c *redisCooldownCache) Mark(ctx context.Context, ticker string) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Set(ctx, c.key(ticker), time.Now().UTC().Format(time.RFC3339), c.ttl).Err()
}

func (c *redisCooldownCache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}
