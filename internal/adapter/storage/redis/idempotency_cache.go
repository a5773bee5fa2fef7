package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"coin-tip-ledger/internal/core/ports"

	goredis "github.com/redis/go-redis/v9"
)

// IdempotencyCache implements ports.IdempotencyCache using Redis.
type IdempotencyCache struct {
	client *goredis.Client
	prefix string
}

// NewIdempotencyCache creates a new Redis-backed idempotency cache.
func NewIdempotencyCache(client *goredis.Client) *IdempotencyCache {
	return &IdempotencyCache{
		client: client,
		prefix: keyPrefix + "idempotency:",
	}
}

// GetWithdrawal returns the cached result for key, or nil, nil on a miss.
func (c *IdempotencyCache) GetWithdrawal(ctx context.Context, key string) (*ports.WithdrawalResult, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis idempotency get: %w", err)
	}

	var result ports.WithdrawalResult
	if err := json.Unmarshal(val, &result); err != nil {
		return nil, fmt.Errorf("decode cached withdrawal: %w", err)
	}
	return &result, nil
}

// SetWithdrawal caches a debited withdrawal's result with TTL.
func (c *IdempotencyCache) SetWithdrawal(ctx context.Context, key string, result *ports.WithdrawalResult, ttl time.Duration) error {
	val, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode withdrawal: %w", err)
	}
	if err := c.client.Set(ctx, c.prefix+key, val, ttl).Err(); err != nil {
		return fmt.Errorf("redis idempotency set: %w", err)
	}
	return nil
}
