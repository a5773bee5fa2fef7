package ports

import "context"

// HealthChecker reports whether an external dependency is reachable.
// Implemented by the store, the Redis client and every coin daemon gateway.
type HealthChecker interface {
	Ping(ctx context.Context) error
	Name() string // e.g. "postgresql", "redis", "daemon:BTC"
}
