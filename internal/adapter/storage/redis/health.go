package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// HealthCheck implements ports.HealthChecker for Redis. It writes a short-lived
// probe key: wallet locks and rate limit windows need a writable primary, and
// a read-only replica still answers PING.
type HealthCheck struct {
	client *goredis.Client
	key    string
}

func NewHealthCheck(client *goredis.Client) *HealthCheck {
	return &HealthCheck{client: client, key: keyPrefix + "health"}
}

func (h *HealthCheck) Ping(ctx context.Context) error {
	if err := h.client.Set(ctx, h.key, time.Now().Unix(), 10*time.Second).Err(); err != nil {
		return fmt.Errorf("redis probe write: %w", err)
	}
	return nil
}

func (h *HealthCheck) Name() string {
	return "redis"
}
