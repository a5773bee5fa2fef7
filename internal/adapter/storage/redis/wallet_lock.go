package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only if the caller still owns it.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// WalletLock implements ports.WalletLocker with SET NX PX leases, so that
// several ledger processes sharing one daemon never interleave wallet brackets.
type WalletLock struct {
	client *goredis.Client
	prefix string
}

// NewWalletLock creates a Redis-backed wallet lock.
func NewWalletLock(client *goredis.Client) *WalletLock {
	return &WalletLock{
		client: client,
		prefix: keyPrefix + "lock:",
	}
}

// Acquire takes the lease if it is free. ok is false when another holder owns it.
func (l *WalletLock) Acquire(ctx context.Context, name string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	result, err := l.client.SetArgs(ctx, l.prefix+name, token, goredis.SetArgs{
		Mode: "NX",
		TTL:  ttl,
	}).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("redis wallet lock acquire: %w", err)
	}
	return token, result == "OK", nil
}

// Release drops the lease if token still owns it. An expired lease is not an error.
func (l *WalletLock) Release(ctx context.Context, name, token string) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.prefix + name}, token).Err(); err != nil {
		return fmt.Errorf("redis wallet lock release: %w", err)
	}
	return nil
}
