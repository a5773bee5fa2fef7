package postgres

import (
	"context"
	"errors"
	"fmt"
)

var errSchemaMissing = errors.New("ledger schema missing (t_addrs, withdrawals)")

// HealthCheck implements ports.HealthChecker for PostgreSQL. A reachable
// database without the ledger tables is reported unhealthy.
type HealthCheck struct {
	pool Pool
}

func NewHealthCheck(pool Pool) *HealthCheck {
	return &HealthCheck{pool: pool}
}

func (h *HealthCheck) Ping(ctx context.Context) error {
	var ready bool
	err := h.pool.QueryRow(ctx,
		`SELECT to_regclass('t_addrs') IS NOT NULL AND to_regclass('withdrawals') IS NOT NULL`,
	).Scan(&ready)
	if err != nil {
		return fmt.Errorf("postgres probe: %w", err)
	}
	if !ready {
		return errSchemaMissing
	}
	return nil
}

func (h *HealthCheck) Name() string {
	return "postgresql"
}
